package engine

import (
	"context"

	"notai_engine/internal/model"
	"notai_engine/internal/provider"
)

// upgradeLoop 最多尝试 n 次购买，遇到第一次失败（余额不足或其他）立即停止，
// 不跳过、不重试。返回成功次数。
func (e *Engine) upgradeLoop(ctx context.Context, n int, attempt func() error) (int, error) {
	done := 0
	for i := 0; i < n; i++ {
		if err := attempt(); err != nil {
			return done, nil
		}
		done++
		if !e.sleep(ctx, e.pacing.Upgrade()) {
			return done, ctx.Err()
		}
	}
	return done, nil
}

func (e *Engine) runLevelUpgrades(ctx context.Context, token string, prog *model.Progress, n int) error {
	levels, err := e.provider.ListLevels(ctx, token)
	if err != nil || len(levels) == 0 {
		e.log("warn", "level upgrade skipped: no level info", map[string]any{"account": prog.Username})
		return ctx.Err()
	}
	prog.SetInitialLevel(levels[len(levels)-1].Level)

	done, err := e.upgradeLoop(ctx, n, func() error {
		p, err := e.provider.PurchaseLevel(ctx, token)
		if err != nil {
			e.logStop("level upgrade stopped", prog, err)
			return err
		}
		prog.SetFinalLevel(p.Level)
		return nil
	})
	e.log("info", "level upgrades finished", map[string]any{"account": prog.Username, "requested": n, "done": done})
	return err
}

func (e *Engine) runTappingUpgrades(ctx context.Context, token string, prog *model.Progress, damageN, limitN int) error {
	upgrades, err := e.provider.ListTappingUpgrades(ctx, token)
	if err != nil || len(upgrades) == 0 {
		e.log("warn", "tapping upgrade skipped: no upgrades listed", map[string]any{"account": prog.Username})
		return ctx.Err()
	}

	loops := []struct {
		boostType string
		label     string
		n         int
		counter   *int
	}{
		{model.BoostTypeDamage, "Damage", damageN, &prog.DamageUpgrades},
		{model.BoostTypeEnergy, "Limit energy", limitN, &prog.LimitUpgrades},
	}
	for _, l := range loops {
		u, ok := findUpgrade(upgrades, l.boostType)
		if !ok {
			e.log("info", "tapping upgrade not offered", map[string]any{"account": prog.Username, "type": l.label})
			continue
		}
		counter := l.counter
		label := l.label
		_, err := e.upgradeLoop(ctx, l.n, func() error {
			if _, err := e.provider.PurchaseTappingUpgrade(ctx, token, u.ID); err != nil {
				e.logStop(label+" tapping upgrade stopped", prog, err)
				return err
			}
			*counter++
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func findUpgrade(upgrades []model.TappingUpgrade, boostType string) (model.TappingUpgrade, bool) {
	for _, u := range upgrades {
		if u.BoostType == boostType {
			return u, true
		}
	}
	return model.TappingUpgrade{}, false
}

func (e *Engine) logStop(msg string, prog *model.Progress, err error) {
	reason := "failed"
	if provider.OutcomeOf(err) == provider.OutcomeInsufficientFunds {
		reason = "insufficient funds"
	}
	e.log("info", msg, map[string]any{"account": prog.Username, "reason": reason})
}
