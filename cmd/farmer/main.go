package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"notai_engine/internal/config"
	"notai_engine/internal/engine"
	"notai_engine/internal/httpapi"
	"notai_engine/internal/logbus"
	"notai_engine/internal/logging"
	"notai_engine/internal/model"
	"notai_engine/internal/notify"
	"notai_engine/internal/provider/notai"
	"notai_engine/internal/ratelimit"
	"notai_engine/internal/store/sqlite"
)

const (
	exitOK       = 0
	exitFatal    = 1
	exitNoTokens = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "./config.yaml", "path to config.yaml")
	interactive := flag.Bool("interactive", false, "ask which phases to run before starting")
	history := flag.Int("history", 0, "print the last N recorded runs and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return exitFatal
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logging: %v\n", err)
		return exitFatal
	}
	defer func() { _ = logger.Sync() }()

	bus := logbus.New(500, logger)
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store *sqlite.Store
	if cfg.Storage.SQLitePath != "" {
		store, err = sqlite.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			bus.Log("error", "open sqlite failed", map[string]any{"path": cfg.Storage.SQLitePath, "error": err.Error()})
			return exitFatal
		}
		defer store.Close()
	}

	if *history > 0 {
		if store == nil {
			bus.Log("error", "run history is disabled: storage.sqlitePath is empty", nil)
			return exitFatal
		}
		if err := printHistory(ctx, store, *history); err != nil {
			bus.Log("error", "read run history failed", map[string]any{"error": err.Error()})
			return exitFatal
		}
		return exitOK
	}

	accounts, err := loadAccounts(cfg.Tokens.File)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			bus.Log("error", "token file not found", map[string]any{"file": cfg.Tokens.File})
			return exitNoTokens
		}
		bus.Log("error", "read token file failed", map[string]any{"file": cfg.Tokens.File, "error": err.Error()})
		return exitFatal
	}
	if len(accounts) == 0 {
		bus.Log("warn", "token file contains no tokens", map[string]any{"file": cfg.Tokens.File})
		return exitOK
	}

	if (*interactive || cfg.Run.Interactive) && config.StdinIsTerminal() {
		cfg.Run, err = config.Prompt(os.Stdin, os.Stdout, cfg.Run)
		if err != nil {
			bus.Log("error", "read answers failed", map[string]any{"error": err.Error()})
			return exitFatal
		}
	}

	gate := ratelimit.NewGate(cfg.Limits.WindowCalls, cfg.Limits.Window())
	prov := notai.New(cfg.Provider, gate, bus)

	opts := engine.Options{
		Provider: prov,
		Bus:      bus,
		Run:      cfg.Run,
		Tap:      cfg.Tap,
		Pacing:   cfg.Pacing,
	}
	if store != nil {
		opts.Recorder = store
	}
	if n := notify.NewEmailNotifier(cfg.Notify.Email, bus); n != nil {
		opts.Notifier = n
	}
	eng := engine.New(opts)

	if cfg.Server.Addr != "" {
		shutdown := startMonitor(cfg.Server, bus, eng, store)
		defer shutdown()
	}

	bus.Log("info", "farmer starting", map[string]any{
		"accounts":     len(accounts),
		"campaignId":   cfg.Run.CampaignID,
		"levelUpgrade": cfg.Run.LevelUpgrade.Enabled,
		"tapUpgrade":   cfg.Run.TappingUpgrade.Enabled,
		"autoTap":      cfg.Run.AutoTap.Enabled,
		"schedule":     cfg.Run.Schedule,
	})

	if cfg.Run.Schedule == "" {
		if _, err := eng.RunBatch(ctx, accounts); err != nil {
			bus.Log("warn", "batch interrupted", map[string]any{"error": err.Error()})
		}
		return exitOK
	}
	if err := runScheduled(ctx, cfg.Run.Schedule, logger, bus, eng, cfg.Tokens.File); err != nil {
		bus.Log("error", "invalid run.schedule", map[string]any{"schedule": cfg.Run.Schedule, "error": err.Error()})
		return exitFatal
	}
	return exitOK
}

func loadAccounts(path string) ([]model.Account, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return model.ParseTokens(string(b)), nil
}

// runScheduled 立即跑一轮，然后按 cron 表达式重复，直到收到退出信号。
// 每轮重新读取 token 文件；上一轮未结束时跳过本次触发。
func runScheduled(ctx context.Context, schedule string, logger *zap.Logger, bus *logbus.Bus, eng *engine.Engine, tokensFile string) error {
	batch := func() {
		accounts, err := loadAccounts(tokensFile)
		if err != nil {
			bus.Log("error", "read token file failed", map[string]any{"file": tokensFile, "error": err.Error()})
			return
		}
		if _, err := eng.RunBatch(ctx, accounts); err != nil && !errors.Is(err, context.Canceled) {
			bus.Log("warn", "batch not completed", map[string]any{"error": err.Error()})
		}
	}

	cl := logging.CronLogger(logger)
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	if _, err := c.AddFunc(schedule, batch); err != nil {
		return err
	}

	batch()
	c.Start()
	bus.Log("info", "waiting for next scheduled batch", map[string]any{"schedule": schedule})
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func startMonitor(cfg config.ServerConfig, bus *logbus.Bus, eng *engine.Engine, store *sqlite.Store) func() {
	opts := httpapi.Options{Cfg: cfg, Bus: bus, State: eng}
	if store != nil {
		opts.History = store
	}
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.New(opts).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			bus.Log("error", "http server error", map[string]any{"error": err.Error()})
		}
	}()
	bus.Log("info", "monitor listening", map[string]any{"addr": cfg.Addr})

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
}

func printHistory(ctx context.Context, store *sqlite.Store, n int) error {
	runs, err := store.ListRuns(ctx, n)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tACCOUNT\tLEVEL\tDMG/LIM\tMISSIONS\tTAPS\tRESULT")
	for _, r := range runs {
		account := r.Progress.Username
		if account == "" {
			account = r.TokenHint
		}
		level := "-"
		if r.Progress.InitialLevel != nil && r.Progress.FinalLevel != nil {
			level = fmt.Sprintf("%d->%d", *r.Progress.InitialLevel, *r.Progress.FinalLevel)
		}
		result := r.TapOutcome
		switch {
		case !r.LoggedIn:
			result = "login failed"
		case r.Error != "":
			result = r.Error
		case result == "":
			result = "done"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%d\t%d\t%s\n",
			time.UnixMilli(r.StartedMs).Format("2006-01-02 15:04:05"), account, level,
			r.Progress.DamageUpgrades, r.Progress.LimitUpgrades, r.Progress.MissionsCompleted, r.Progress.TapsPerformed, result)
	}
	return w.Flush()
}
