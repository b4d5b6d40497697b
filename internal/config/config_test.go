package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("CAMPAIGN_ID", "")
	t.Setenv("NOTAI_TOKENS_FILE", "")
	t.Setenv("NOTAI_BASE_URL", "")
	t.Setenv("NOTAI_LOG_LEVEL", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Run.CampaignID != DefaultCampaignID {
		t.Fatalf("campaign = %q", cfg.Run.CampaignID)
	}
	if cfg.Tap.ClickCount != 15 || cfg.Tap.RefillThreshold != 0.875 || cfg.Tap.MaxConsecutiveFailures != 5 {
		t.Fatalf("unexpected tap defaults: %+v", cfg.Tap)
	}
	if cfg.Tap.BoostCheckInterval() != 300*time.Second {
		t.Fatalf("boost interval = %v", cfg.Tap.BoostCheckInterval())
	}
	if cfg.Limits.WindowCalls != 5 || cfg.Limits.Window() != 10*time.Second {
		t.Fatalf("unexpected limits: %+v", cfg.Limits)
	}
	p := cfg.Pacing
	if p.Mission() != 5*time.Second || p.Upgrade() != 2*time.Second || p.Boost() != time.Second ||
		p.Account() != 10*time.Second || p.StatusRetry() != 5*time.Second {
		t.Fatalf("unexpected pacing defaults")
	}
	if p.JitterMin() != 800*time.Millisecond || p.JitterMax() != 1200*time.Millisecond {
		t.Fatalf("jitter = [%v, %v)", p.JitterMin(), p.JitterMax())
	}
	if cfg.Tokens.File != "./token.txt" {
		t.Fatalf("tokens file = %q", cfg.Tokens.File)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
provider:
  baseURL: http://127.0.0.1:9999
run:
  campaignId: from-file
  levelUpgrade:
    enabled: true
    count: 3
tap:
  clickCount: 20
pacing:
  jitterMinMs: 50
  jitterMaxMs: 10
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CAMPAIGN_ID", "from-env")
	t.Setenv("NOTAI_TOKENS_FILE", "")
	t.Setenv("NOTAI_BASE_URL", "")
	t.Setenv("NOTAI_LOG_LEVEL", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Run.CampaignID != "from-env" {
		t.Fatalf("env should override campaign, got %q", cfg.Run.CampaignID)
	}
	if cfg.Provider.BaseURL != "http://127.0.0.1:9999" {
		t.Fatalf("baseURL = %q", cfg.Provider.BaseURL)
	}
	if !cfg.Run.LevelUpgrade.Enabled || cfg.Run.LevelUpgrade.Count != 3 {
		t.Fatalf("levelUpgrade = %+v", cfg.Run.LevelUpgrade)
	}
	if cfg.Tap.ClickCount != 20 {
		t.Fatalf("clickCount = %d", cfg.Tap.ClickCount)
	}
	if cfg.Pacing.JitterMax() != cfg.Pacing.JitterMin() {
		t.Fatalf("jitter max below min should clamp to min")
	}
}

func TestLoadRejectsBadThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("tap:\n  refillThreshold: 1.5\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestPromptRepeatsInvalidAnswers(t *testing.T) {
	in := strings.NewReader("maybe\ny\nabc\n4\nn\nY\n")
	var out bytes.Buffer

	run, err := Prompt(in, &out, RunConfig{CampaignID: "c"})
	if err != nil {
		t.Fatalf("Prompt: %v", err)
	}
	if !run.LevelUpgrade.Enabled || run.LevelUpgrade.Count != 4 {
		t.Fatalf("levelUpgrade = %+v", run.LevelUpgrade)
	}
	if run.TappingUpgrade.Enabled {
		t.Fatalf("tapping upgrade should be disabled")
	}
	if !run.AutoTap.Enabled {
		t.Fatalf("auto tap should be enabled")
	}
	if run.CampaignID != "c" {
		t.Fatalf("campaign must be preserved")
	}
	if strings.Count(out.String(), "Invalid input") != 2 {
		t.Fatalf("expected two invalid-input notices, got:\n%s", out.String())
	}
}

func TestPromptEOF(t *testing.T) {
	if _, err := Prompt(strings.NewReader(""), &bytes.Buffer{}, RunConfig{}); err == nil {
		t.Fatal("expected error on empty input")
	}
}

func TestLoadRejectsBadProxy(t *testing.T) {
	t.Setenv("NOTAI_PROXY", "not a url")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected proxy validation error")
	}
}
