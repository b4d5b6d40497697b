package engine

import (
	"context"
	"errors"
	"slices"

	"notai_engine/internal/model"
)

var ErrNoRefill = errors.New("no refill boost available")

// useBoost 激活一个加成；同类型已生效时跳过并返回 false。
// 查询生效列表失败时按“无生效加成”处理。
func (e *Engine) useBoost(ctx context.Context, token string, b model.Boost) (bool, error) {
	active, err := e.provider.ListActiveBoosts(ctx, token)
	if err == nil && slices.Contains(active, b.Type) {
		e.log("info", "boost already active, skipping", map[string]any{"type": b.Type})
		return false, nil
	}
	if _, err := e.provider.BuyBoost(ctx, token, b.ID); err != nil {
		return false, err
	}
	return true, nil
}

// useAvailableBoosts 依次激活所有 available > 0 的加成，每次之间短暂等待。
func (e *Engine) useAvailableBoosts(ctx context.Context, token string) error {
	boosts, err := e.provider.ListBoosts(ctx, token)
	if err != nil {
		return ctx.Err()
	}
	for _, b := range boosts {
		if b.Available <= 0 {
			continue
		}
		_, _ = e.useBoost(ctx, token, b)
		if !e.sleep(ctx, e.pacing.Boost()) {
			return ctx.Err()
		}
	}
	return nil
}

// useRefill 购买一个能量补充；没有可用的补充时返回 ErrNoRefill。
func (e *Engine) useRefill(ctx context.Context, token string) error {
	boosts, err := e.provider.ListBoosts(ctx, token)
	if err != nil {
		return err
	}
	for _, b := range boosts {
		if b.Type != model.BoostTypeRefillEnergy || b.Available <= 0 {
			continue
		}
		_, err := e.provider.BuyBoost(ctx, token, b.ID)
		return err
	}
	e.log("warn", "no refill boost available", nil)
	return ErrNoRefill
}
