package engine

import (
	"context"
	"testing"

	"notai_engine/internal/config"
	"notai_engine/internal/model"
)

func TestLevelUpgradeStopsAtFirstFailure(t *testing.T) {
	for _, tc := range []struct {
		n, failAt, wantBought int
	}{
		{n: 5, failAt: 3, wantBought: 2},
		{n: 5, failAt: 1, wantBought: 0},
		{n: 3, failAt: 3, wantBought: 2},
		{n: 3, failAt: 0, wantBought: 3},
		{n: 0, failAt: 0, wantBought: 0},
	} {
		p := newFakeProvider()
		p.levels = []model.Level{{Level: 1}, {Level: 2}}
		p.levelFailAt = tc.failAt
		e, sl := newTestEngine(p, config.RunConfig{})
		prog := model.NewProgress("alice")

		if err := e.runLevelUpgrades(context.Background(), "tok", prog, tc.n); err != nil {
			t.Fatalf("runLevelUpgrades: %v", err)
		}

		attempts := tc.wantBought
		if tc.failAt > 0 {
			attempts = tc.failAt
		}
		if got := p.count("PurchaseLevel"); got != attempts {
			t.Fatalf("n=%d failAt=%d: attempts = %d, want %d", tc.n, tc.failAt, got, attempts)
		}
		if *prog.InitialLevel != 2 {
			t.Fatalf("initial level = %d", *prog.InitialLevel)
		}
		wantFinal := 2
		if tc.wantBought > 0 {
			wantFinal = 10 + tc.wantBought
		}
		if *prog.FinalLevel != wantFinal {
			t.Fatalf("n=%d failAt=%d: final level = %d, want %d", tc.n, tc.failAt, *prog.FinalLevel, wantFinal)
		}
		if n := sl.count(testPacing().Upgrade()); n != tc.wantBought {
			t.Fatalf("upgrade delays = %d, want %d", n, tc.wantBought)
		}
	}
}

func TestLevelUpgradeWithoutLevels(t *testing.T) {
	p := newFakeProvider()
	e, _ := newTestEngine(p, config.RunConfig{})
	prog := model.NewProgress("alice")

	if err := e.runLevelUpgrades(context.Background(), "tok", prog, 3); err != nil {
		t.Fatalf("runLevelUpgrades: %v", err)
	}
	if p.count("PurchaseLevel") != 0 || prog.InitialLevel != nil {
		t.Fatalf("no purchase expected without level info")
	}
}

func TestTappingUpgrades(t *testing.T) {
	p := newFakeProvider()
	p.upgrades = []model.TappingUpgrade{
		{ID: "dmg", BoostType: model.BoostTypeDamage},
		{ID: "nrg", BoostType: model.BoostTypeEnergy},
	}
	p.upgradeFail["nrg"] = 2
	e, _ := newTestEngine(p, config.RunConfig{})
	prog := model.NewProgress("alice")

	if err := e.runTappingUpgrades(context.Background(), "tok", prog, 3, 4); err != nil {
		t.Fatalf("runTappingUpgrades: %v", err)
	}
	if prog.DamageUpgrades != 3 || prog.LimitUpgrades != 1 {
		t.Fatalf("progress = %+v", prog)
	}
	if p.count("PurchaseTappingUpgrade:nrg") != 2 {
		t.Fatalf("energy loop should stop after the failing attempt: %v", p.Calls())
	}
}

func TestTappingUpgradeMissingType(t *testing.T) {
	p := newFakeProvider()
	p.upgrades = []model.TappingUpgrade{{ID: "nrg", BoostType: model.BoostTypeEnergy}}
	e, _ := newTestEngine(p, config.RunConfig{})
	prog := model.NewProgress("alice")

	if err := e.runTappingUpgrades(context.Background(), "tok", prog, 2, 1); err != nil {
		t.Fatalf("runTappingUpgrades: %v", err)
	}
	if prog.DamageUpgrades != 0 || prog.LimitUpgrades != 1 {
		t.Fatalf("progress = %+v", prog)
	}
}
