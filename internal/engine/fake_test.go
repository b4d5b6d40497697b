package engine

import (
	"context"
	"sync"
	"time"

	"notai_engine/internal/config"
	"notai_engine/internal/model"
	"notai_engine/internal/provider"
)

// fakeProvider 按脚本返回结果并记录每次调用的方法名。
type fakeProvider struct {
	mu    sync.Mutex
	calls []string

	username string
	loginErr error
	loginFn  func(token string) (string, error)

	missions    []model.Mission
	completeErr map[string]error
	claimErr    map[string]error

	levels      []model.Level
	levelFailAt int // 第几次购买失败（从 1 开始），0 表示不失败
	levelBought int

	upgrades     []model.TappingUpgrade
	upgradeFail  map[string]int
	upgradeCalls map[string]int

	statusFn func(n int) (model.GameStatus, error)
	submitFn func(n int, clicks int) (model.GameStatus, error)
	statusN  int
	submitN  int

	boosts    []model.Boost
	active    []string
	activeErr error
	bought    []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		username:     "alice",
		completeErr:  map[string]error{},
		claimErr:     map[string]error{},
		upgradeFail:  map[string]int{},
		upgradeCalls: map[string]int{},
	}
}

func (f *fakeProvider) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeProvider) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeProvider) count(name string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Login(_ context.Context, token string) (string, error) {
	f.record("Login")
	if f.loginFn != nil {
		return f.loginFn(token)
	}
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return f.username, nil
}

func (f *fakeProvider) ClaimDaily(context.Context, string) error {
	f.record("ClaimDaily")
	return nil
}

func (f *fakeProvider) ListMissions(context.Context, string, provider.MissionQuery) ([]model.Mission, error) {
	f.record("ListMissions")
	return f.missions, nil
}

func (f *fakeProvider) CompleteMission(_ context.Context, _ string, m model.Mission) error {
	f.record("CompleteMission:" + m.ID)
	return f.completeErr[m.ID]
}

func (f *fakeProvider) ClaimMissionReward(_ context.Context, _ string, m model.Mission) error {
	f.record("ClaimMissionReward:" + m.ID)
	return f.claimErr[m.ID]
}

func (f *fakeProvider) ListLevels(context.Context, string) ([]model.Level, error) {
	f.record("ListLevels")
	return f.levels, nil
}

func (f *fakeProvider) PurchaseLevel(context.Context, string) (provider.Purchase, error) {
	f.record("PurchaseLevel")
	f.levelBought++
	if f.levelFailAt > 0 && f.levelBought == f.levelFailAt {
		return provider.Purchase{}, provider.NewError("purchase-level", provider.OutcomeInsufficientFunds, 402, nil)
	}
	return provider.Purchase{Level: 10 + f.levelBought}, nil
}

func (f *fakeProvider) ListTappingUpgrades(context.Context, string) ([]model.TappingUpgrade, error) {
	f.record("ListTappingUpgrades")
	return f.upgrades, nil
}

func (f *fakeProvider) PurchaseTappingUpgrade(_ context.Context, _ string, id string) (provider.Purchase, error) {
	f.record("PurchaseTappingUpgrade:" + id)
	f.upgradeCalls[id]++
	if at := f.upgradeFail[id]; at > 0 && f.upgradeCalls[id] == at {
		return provider.Purchase{}, provider.NewError("purchase-upgrade", provider.OutcomeInsufficientFunds, 402, nil)
	}
	return provider.Purchase{Level: f.upgradeCalls[id]}, nil
}

func (f *fakeProvider) GameStatus(context.Context, string) (model.GameStatus, error) {
	f.record("GameStatus")
	f.statusN++
	if f.statusFn == nil {
		return model.GameStatus{}, provider.NewError("game-status", provider.OutcomeTransient, 500, nil)
	}
	return f.statusFn(f.statusN)
}

func (f *fakeProvider) SubmitTaps(_ context.Context, _ string, clicks int) (model.GameStatus, error) {
	f.record("SubmitTaps")
	f.submitN++
	if f.submitFn == nil {
		return model.GameStatus{}, provider.NewError("submit-taps", provider.OutcomeTransient, 500, nil)
	}
	return f.submitFn(f.submitN, clicks)
}

func (f *fakeProvider) FreezeGame(context.Context, string) error {
	f.record("FreezeGame")
	return nil
}

func (f *fakeProvider) ListActiveBoosts(context.Context, string) ([]string, error) {
	f.record("ListActiveBoosts")
	return f.active, f.activeErr
}

func (f *fakeProvider) ListBoosts(context.Context, string) ([]model.Boost, error) {
	f.record("ListBoosts")
	return append([]model.Boost(nil), f.boosts...), nil
}

func (f *fakeProvider) BuyBoost(_ context.Context, _ string, id string) (provider.BoostPurchase, error) {
	f.record("BuyBoost:" + id)
	for i := range f.boosts {
		if f.boosts[i].ID == id && f.boosts[i].Available > 0 {
			f.boosts[i].Available--
			f.bought = append(f.bought, id)
			return provider.BoostPurchase{ID: "act-" + id}, nil
		}
	}
	return provider.BoostPurchase{}, provider.NewError("buy-boost", provider.OutcomeRejected, 400, nil)
}

// sleepLog 代替真实等待，记录每次请求的时长。
type sleepLog struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *sleepLog) sleep(ctx context.Context, d time.Duration) bool {
	s.mu.Lock()
	s.sleeps = append(s.sleeps, d)
	s.mu.Unlock()
	return ctx.Err() == nil
}

func (s *sleepLog) count(d time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.sleeps {
		if v == d {
			n++
		}
	}
	return n
}

const testJitter = 999 * time.Millisecond

func testPacing() config.PacingConfig {
	return config.PacingConfig{
		MissionMs:     5000,
		UpgradeMs:     2000,
		BoostMs:       1000,
		DailyMs:       2100,
		RefillMs:      2200,
		StatusRetryMs: 5100,
		AccountMs:     10000,
	}
}

func testTap() config.TapConfig {
	return config.TapConfig{ClickCount: 15, RefillThreshold: 0.875, MaxConsecutiveFailures: 5}
}

func newTestEngine(p provider.Provider, run config.RunConfig) (*Engine, *sleepLog) {
	sl := &sleepLog{}
	e := New(Options{Provider: p, Run: run, Tap: testTap(), Pacing: testPacing()})
	e.sleep = sl.sleep
	e.jitter = func() time.Duration { return testJitter }
	return e, sl
}
