package engine

import (
	"context"

	"notai_engine/internal/model"
)

// TapState 是自动点击状态机的状态。Frozen 与两个 Stopped 状态为终态。
type TapState string

const (
	TapRunning              TapState = "running"
	TapAwaitingStatus       TapState = "awaiting_status"
	TapTapping              TapState = "tapping"
	TapRefilling            TapState = "refilling"
	TapFrozen               TapState = "frozen"
	TapStoppedFailure       TapState = "stopped_failure"
	TapStoppedSwitchAccount TapState = "stopped_switch_account"
)

func (s TapState) String() string { return string(s) }

func (s TapState) Terminal() bool {
	switch s {
	case TapFrozen, TapStoppedFailure, TapStoppedSwitchAccount:
		return true
	}
	return false
}

const tapProgressStep = 100

// tapLoop 保存一个账号自动点击期间的可变状态。
type tapLoop struct {
	e     *Engine
	token string
	prog  *model.Progress

	state     TapState
	failures  int
	tapped    int
	lastBoost int64
}

// runAutoTap 循环点击直到进入终态。失败计数在查询状态与提交点击之间共享，
// 只有一次成功的点击才会清零；单纯的状态查询成功不清零。
func (e *Engine) runAutoTap(ctx context.Context, token string, prog *model.Progress) (TapState, error) {
	l := &tapLoop{e: e, token: token, prog: prog, state: TapRunning, lastBoost: e.now().UnixMilli()}
	for !l.state.Terminal() {
		if err := ctx.Err(); err != nil {
			return l.state, err
		}
		if err := l.step(ctx); err != nil {
			return l.state, err
		}
	}
	e.log("info", "auto-play stopped", map[string]any{
		"account": prog.Username,
		"state":   l.state.String(),
		"taps":    l.tapped,
	})
	return l.state, nil
}

// step 执行一轮循环体；只在 ctx 取消时返回错误。
func (l *tapLoop) step(ctx context.Context) error {
	e := l.e
	if now := e.now().UnixMilli(); now-l.lastBoost >= e.tap.BoostCheckInterval().Milliseconds() {
		if err := e.useAvailableBoosts(ctx, l.token); err != nil {
			return err
		}
		l.lastBoost = now
	}

	l.state = TapAwaitingStatus
	status, err := e.provider.GameStatus(ctx, l.token)
	if err != nil {
		if l.fail("failed to get game status") {
			return nil
		}
		if !e.sleep(ctx, e.pacing.StatusRetry()) {
			return ctx.Err()
		}
		return nil
	}

	cur, limit := status.CurrentClickedCount, status.TotalClicksLimit
	if float64(cur) >= float64(limit)*e.tap.RefillThreshold {
		l.state = TapRefilling
		e.log("info", "approaching click limit, attempting refill", map[string]any{
			"account": l.prog.Username, "current": cur, "limit": limit,
		})
		if err := e.useRefill(ctx, l.token); err != nil {
			e.log("info", "no refill available, switching to next account", map[string]any{"account": l.prog.Username})
			l.state = TapStoppedSwitchAccount
			return nil
		}
		if !e.sleep(ctx, e.pacing.Refill()) {
			return ctx.Err()
		}
		l.state = TapRunning
		return nil
	}

	if cur >= limit {
		e.log("info", "reached tapping limit, freezing game", map[string]any{"account": l.prog.Username})
		if err := e.provider.FreezeGame(ctx, l.token); err != nil {
			e.log("warn", "freeze game failed", map[string]any{"account": l.prog.Username, "error": err.Error()})
		}
		l.state = TapFrozen
		return nil
	}

	l.state = TapTapping
	next, err := e.provider.SubmitTaps(ctx, l.token, e.tap.ClickCount)
	if err != nil {
		if l.fail("failed to perform tapping") {
			return nil
		}
	} else {
		l.record(next.CurrentClickedCount - cur)
		l.failures = 0
	}

	if !e.sleep(ctx, e.jitter()) {
		return ctx.Err()
	}
	l.state = TapRunning
	return nil
}

// fail 累加失败次数；达到上限时切换到 StoppedFailure 并返回 true。
func (l *tapLoop) fail(msg string) bool {
	l.failures++
	fields := map[string]any{"account": l.prog.Username, "attempt": l.failures}
	if l.failures >= l.e.tap.MaxConsecutiveFailures {
		l.e.log("error", msg+", stopping auto-play", fields)
		l.state = TapStoppedFailure
		return true
	}
	l.e.log("warn", msg+", retrying", fields)
	return false
}

func (l *tapLoop) record(delta int) {
	if delta <= 0 {
		return
	}
	before := l.tapped
	l.tapped += delta
	l.prog.AddTaps(delta)
	if l.tapped/tapProgressStep > before/tapProgressStep {
		l.e.log("info", "tapping progress", map[string]any{"account": l.prog.Username, "taps": l.tapped})
	}
}
