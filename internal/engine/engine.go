package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"notai_engine/internal/config"
	"notai_engine/internal/logbus"
	"notai_engine/internal/model"
	"notai_engine/internal/notify"
	"notai_engine/internal/provider"
)

// RunRecorder 持久化每个账号的运行结果；sqlite.Store 实现了它。
type RunRecorder interface {
	RecordRun(ctx context.Context, report model.RunReport) error
}

type Options struct {
	Provider provider.Provider
	Bus      *logbus.Bus
	Recorder RunRecorder
	Notifier notify.Notifier
	Run      config.RunConfig
	Tap      config.TapConfig
	Pacing   config.PacingConfig
}

// Engine 按顺序处理账号：一个账号的全部阶段结束后才开始下一个。
type Engine struct {
	provider provider.Provider
	bus      *logbus.Bus
	recorder RunRecorder
	notifier notify.Notifier

	run    config.RunConfig
	tap    config.TapConfig
	pacing config.PacingConfig

	sleep  func(ctx context.Context, d time.Duration) bool
	now    func() time.Time
	jitter func() time.Duration

	mu      sync.Mutex
	running bool
	batchID string
	current *model.AccountState
	reports []model.RunReport
}

var ErrAlreadyRunning = errors.New("a batch is already running")

func New(opts Options) *Engine {
	e := &Engine{
		provider: opts.Provider,
		bus:      opts.Bus,
		recorder: opts.Recorder,
		notifier: opts.Notifier,
		run:      opts.Run,
		tap:      opts.Tap,
		pacing:   opts.Pacing,
		sleep:    sleepFor,
		now:      time.Now,
	}
	e.jitter = e.randomJitter
	return e
}

// RunBatch 依次处理所有账号。单个账号的失败只记录日志，不会中断整批；
// 只有 ctx 被取消时提前返回。
func (e *Engine) RunBatch(ctx context.Context, accounts []model.Account) (model.BatchSummary, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return model.BatchSummary{}, ErrAlreadyRunning
	}
	e.running = true
	e.batchID = uuid.NewString()
	e.reports = nil
	summary := model.BatchSummary{BatchID: e.batchID, StartedMs: e.now().UnixMilli()}
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.current = nil
		e.mu.Unlock()
	}()

	e.log("info", "batch started", map[string]any{"batchId": summary.BatchID, "accounts": len(accounts)})

	var runErr error
	for i, acc := range accounts {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		report := e.ProcessAccount(ctx, acc)
		report.BatchID = summary.BatchID
		if e.recorder != nil {
			if err := e.recorder.RecordRun(context.WithoutCancel(ctx), report); err != nil {
				e.log("warn", "failed to record run", map[string]any{"account": acc.TokenHint(), "error": err.Error()})
			}
		}
		summary.Reports = append(summary.Reports, report)
		e.mu.Lock()
		e.reports = append(e.reports, report)
		e.mu.Unlock()

		if i == len(accounts)-1 {
			break
		}
		e.log("info", "finished processing account, waiting before next account", map[string]any{
			"account": accountLabel(acc, report.Progress.Username),
			"wait":    e.pacing.Account().String(),
		})
		if !e.sleep(ctx, e.pacing.Account()) {
			runErr = ctx.Err()
			break
		}
	}

	summary.FinishedMs = e.now().UnixMilli()
	loggedIn, missions, taps := summary.Totals()
	e.log("info", "batch finished", map[string]any{
		"batchId":   summary.BatchID,
		"accounts":  len(summary.Reports),
		"loggedIn":  loggedIn,
		"missions":  missions,
		"taps":      taps,
		"cancelled": runErr != nil,
	})
	if e.notifier != nil {
		e.notifier.NotifyBatchFinished(context.WithoutCancel(ctx), summary)
	}
	return summary, runErr
}

// ProcessAccount 执行一个账号的完整流程：登录 → 每日奖励 → 任务 → 升级 → 汇总 → 自动点击。
// 登录失败时后续阶段都不会执行；任何错误（包括 panic）都被记录到报告里而不是向上抛出。
func (e *Engine) ProcessAccount(ctx context.Context, acc model.Account) (report model.RunReport) {
	report = model.RunReport{
		ID:        uuid.NewString(),
		TokenHint: acc.TokenHint(),
		StartedMs: e.now().UnixMilli(),
	}
	var prog *model.Progress

	defer func() {
		if r := recover(); r != nil {
			report.Error = fmt.Sprintf("panic: %v", r)
			e.log("error", "error processing account", map[string]any{
				"account": accountLabel(acc, report.Progress.Username),
				"error":   report.Error,
			})
		}
		if prog != nil {
			report.Progress = *prog
		}
		report.FinishedMs = e.now().UnixMilli()
		e.setState(acc, model.PhaseDone, prog, report.Error)
	}()

	e.setState(acc, model.PhaseLogin, nil, "")
	username, err := e.provider.Login(ctx, acc.Token)
	if err != nil {
		report.Error = err.Error()
		e.log("error", "failed to log in with provided token", map[string]any{
			"account": acc.TokenHint(),
			"outcome": provider.OutcomeOf(err).String(),
		})
		return report
	}
	acc.Username = username
	prog = model.NewProgress(username)
	report.Progress.Username = username
	report.LoggedIn = true

	outcome, err := e.runPhases(ctx, acc, prog)
	if outcome != "" {
		report.TapOutcome = outcome.String()
	}
	if err != nil {
		report.Error = err.Error()
		e.log("error", "error processing account", map[string]any{"account": username, "error": err.Error()})
	}
	return report
}

func (e *Engine) runPhases(ctx context.Context, acc model.Account, prog *model.Progress) (TapState, error) {
	e.setState(acc, model.PhaseDaily, prog, "")
	if err := e.provider.ClaimDaily(ctx, acc.Token); err != nil && provider.OutcomeOf(err) != provider.OutcomeNoOp {
		e.log("warn", "daily claim skipped", map[string]any{"account": prog.Username, "error": err.Error()})
	}
	if !e.sleep(ctx, e.pacing.Daily()) {
		return "", ctx.Err()
	}

	e.setState(acc, model.PhaseMissions, prog, "")
	if err := e.runMissions(ctx, acc.Token, prog); err != nil {
		return "", err
	}

	if e.run.LevelUpgrade.Enabled {
		e.setState(acc, model.PhaseLevelUpgrade, prog, "")
		if err := e.runLevelUpgrades(ctx, acc.Token, prog, e.run.LevelUpgrade.Count); err != nil {
			return "", err
		}
	}
	if e.run.TappingUpgrade.Enabled {
		e.setState(acc, model.PhaseTappingUpgrade, prog, "")
		if err := e.runTappingUpgrades(ctx, acc.Token, prog, e.run.TappingUpgrade.DamageCount, e.run.TappingUpgrade.LimitCount); err != nil {
			return "", err
		}
	}

	e.summarize(prog)

	if !e.run.AutoTap.Enabled {
		return "", nil
	}
	e.setState(acc, model.PhaseAutoTap, prog, "")
	e.log("info", "starting auto-play", map[string]any{"account": prog.Username})
	return e.runAutoTap(ctx, acc.Token, prog)
}

func (e *Engine) summarize(prog *model.Progress) {
	fields := map[string]any{
		"account":           prog.Username,
		"damageUpgrades":    prog.DamageUpgrades,
		"limitUpgrades":     prog.LimitUpgrades,
		"missionsCompleted": prog.MissionsCompleted,
		"tapsPerformed":     prog.TapsPerformed,
	}
	if prog.InitialLevel != nil && prog.FinalLevel != nil {
		fields["levels"] = fmt.Sprintf("%d -> %d", *prog.InitialLevel, *prog.FinalLevel)
	}
	e.log("info", "account summary", fields)
}

func (e *Engine) State() model.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := model.EngineState{Running: e.running, BatchID: e.batchID}
	if e.current != nil {
		cur := *e.current
		out.Current = &cur
	}
	out.Reports = append([]model.RunReport(nil), e.reports...)
	return out
}

func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) setState(acc model.Account, phase model.Phase, prog *model.Progress, lastErr string) {
	st := model.AccountState{
		Index:     acc.Index,
		TokenHint: acc.TokenHint(),
		Phase:     phase,
		LastError: lastErr,
	}
	if prog != nil {
		snap := *prog
		st.Progress = &snap
	}
	e.mu.Lock()
	e.current = &st
	e.mu.Unlock()
	if e.bus != nil {
		e.bus.Publish(logbus.TypeAccountState, st)
	}
}

func (e *Engine) log(level, msg string, fields map[string]any) {
	if e.bus != nil {
		e.bus.Log(level, msg, fields)
	}
}

func (e *Engine) randomJitter() time.Duration {
	lo, hi := e.pacing.JitterMin(), e.pacing.JitterMax()
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo)
}

func accountLabel(acc model.Account, username string) string {
	if username != "" {
		return username
	}
	return acc.TokenHint()
}

func sleepFor(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
