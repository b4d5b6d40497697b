package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"notai_engine/internal/utils"
)

// DefaultCampaignID 是活动任务默认所属的 campaign。
const DefaultCampaignID = "d6a146d0-092b-4206-8b02-8d00c05d7a89"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
	Limits   LimitsConfig   `yaml:"limits"`
	Tokens   TokensConfig   `yaml:"tokens"`
	Run      RunConfig      `yaml:"run"`
	Tap      TapConfig      `yaml:"tap"`
	Pacing   PacingConfig   `yaml:"pacing"`
	Provider ProviderConfig `yaml:"provider"`
	Notify   NotifyConfig   `yaml:"notify"`
}

// ServerConfig 是可选的监控服务；Addr 为空时不启动。
type ServerConfig struct {
	Addr string     `yaml:"addr"`
	Cors CorsConfig `yaml:"cors"`
}

type CorsConfig struct {
	AllowOrigins     []string `yaml:"allowOrigins"`
	AllowCredentials bool     `yaml:"allowCredentials"`
}

// StorageConfig: SQLitePath 为空表示不记录运行历史。
type StorageConfig struct {
	SQLitePath string `yaml:"sqlitePath"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// LimitsConfig 描述全局调用限额：任意滚动窗口内最多 WindowCalls 次请求。
type LimitsConfig struct {
	WindowCalls int `yaml:"windowCalls"`
	WindowMs    int `yaml:"windowMs"`
}

func (c LimitsConfig) Window() time.Duration {
	if c.WindowMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.WindowMs) * time.Millisecond
}

type TokensConfig struct {
	File string `yaml:"file"`
}

type RunConfig struct {
	CampaignID     string               `yaml:"campaignId"`
	LevelUpgrade   LevelUpgradeConfig   `yaml:"levelUpgrade"`
	TappingUpgrade TappingUpgradeConfig `yaml:"tappingUpgrade"`
	AutoTap        AutoTapConfig        `yaml:"autoTap"`
	Interactive    bool                 `yaml:"interactive"`
	// Schedule 是 cron 表达式（如 "@every 8h"）；为空时只跑一轮。
	Schedule string `yaml:"schedule"`
}

type LevelUpgradeConfig struct {
	Enabled bool `yaml:"enabled"`
	Count   int  `yaml:"count"`
}

type TappingUpgradeConfig struct {
	Enabled     bool `yaml:"enabled"`
	DamageCount int  `yaml:"damageCount"`
	LimitCount  int  `yaml:"limitCount"`
}

type AutoTapConfig struct {
	Enabled bool `yaml:"enabled"`
}

type TapConfig struct {
	ClickCount             int     `yaml:"clickCount"`
	RefillThreshold        float64 `yaml:"refillThreshold"`
	BoostCheckIntervalMs   int     `yaml:"boostCheckIntervalMs"`
	MaxConsecutiveFailures int     `yaml:"maxConsecutiveFailures"`
}

func (c TapConfig) BoostCheckInterval() time.Duration {
	if c.BoostCheckIntervalMs <= 0 {
		return 300 * time.Second
	}
	return time.Duration(c.BoostCheckIntervalMs) * time.Millisecond
}

// PacingConfig 保存各阶段之间的固定等待，模拟人工节奏。
type PacingConfig struct {
	MissionMs     int `yaml:"missionMs"`
	UpgradeMs     int `yaml:"upgradeMs"`
	BoostMs       int `yaml:"boostMs"`
	DailyMs       int `yaml:"dailyMs"`
	RefillMs      int `yaml:"refillMs"`
	StatusRetryMs int `yaml:"statusRetryMs"`
	AccountMs     int `yaml:"accountMs"`
	JitterMinMs   int `yaml:"jitterMinMs"`
	JitterMaxMs   int `yaml:"jitterMaxMs"`
}

func msOr(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

func (c PacingConfig) Mission() time.Duration     { return msOr(c.MissionMs, 5*time.Second) }
func (c PacingConfig) Upgrade() time.Duration     { return msOr(c.UpgradeMs, 2*time.Second) }
func (c PacingConfig) Boost() time.Duration       { return msOr(c.BoostMs, 1*time.Second) }
func (c PacingConfig) Daily() time.Duration       { return msOr(c.DailyMs, 2*time.Second) }
func (c PacingConfig) Refill() time.Duration      { return msOr(c.RefillMs, 2*time.Second) }
func (c PacingConfig) StatusRetry() time.Duration { return msOr(c.StatusRetryMs, 5*time.Second) }
func (c PacingConfig) Account() time.Duration     { return msOr(c.AccountMs, 10*time.Second) }
func (c PacingConfig) JitterMin() time.Duration   { return msOr(c.JitterMinMs, 800*time.Millisecond) }

func (c PacingConfig) JitterMax() time.Duration {
	hi := msOr(c.JitterMaxMs, 1200*time.Millisecond)
	if lo := c.JitterMin(); hi < lo {
		return lo
	}
	return hi
}

type ProviderConfig struct {
	BaseURL   string           `yaml:"baseURL"`
	TimeoutMs int              `yaml:"timeoutMs"`
	Retry     ProviderRetryCfg `yaml:"retry"`
	UserAgent string           `yaml:"userAgent"`
	// Proxy 形如 http://host:port 或 socks5://host:port；为空直连。
	Proxy string `yaml:"proxy"`
}

type ProviderRetryCfg struct {
	Count     int `yaml:"count"`
	WaitMs    int `yaml:"waitMs"`
	MaxWaitMs int `yaml:"maxWaitMs"`
}

func (c ProviderConfig) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

func (c ProviderRetryCfg) Wait() time.Duration {
	if c.WaitMs <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.WaitMs) * time.Millisecond
}

func (c ProviderRetryCfg) MaxWait() time.Duration {
	if c.MaxWaitMs <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.MaxWaitMs) * time.Millisecond
}

type NotifyConfig struct {
	Email EmailConfig `yaml:"email"`
}

type EmailConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// Load 读取 config.yaml；文件不存在时使用默认值。调用前会尝试加载 .env，
// 环境变量优先于文件配置。
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("CAMPAIGN_ID")); v != "" {
		c.Run.CampaignID = v
	}
	if v := strings.TrimSpace(os.Getenv("NOTAI_TOKENS_FILE")); v != "" {
		c.Tokens.File = v
	}
	if v := strings.TrimSpace(os.Getenv("NOTAI_BASE_URL")); v != "" {
		c.Provider.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("NOTAI_PROXY")); v != "" {
		c.Provider.Proxy = v
	}
	if v := strings.TrimSpace(os.Getenv("NOTAI_LOG_LEVEL")); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) applyDefaults() {
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = "https://api.notai.com"
	}
	c.Provider.UserAgent = utils.NormalizeBrowserUserAgent(c.Provider.UserAgent)
	if c.Provider.Retry.Count < 0 {
		c.Provider.Retry.Count = 0
	}
	if c.Limits.WindowCalls <= 0 {
		c.Limits.WindowCalls = 5
	}
	if c.Tokens.File == "" {
		c.Tokens.File = "./token.txt"
	}
	if c.Run.CampaignID == "" {
		c.Run.CampaignID = DefaultCampaignID
	}
	if c.Run.LevelUpgrade.Count < 0 {
		c.Run.LevelUpgrade.Count = 0
	}
	if c.Run.TappingUpgrade.DamageCount < 0 {
		c.Run.TappingUpgrade.DamageCount = 0
	}
	if c.Run.TappingUpgrade.LimitCount < 0 {
		c.Run.TappingUpgrade.LimitCount = 0
	}
	if c.Tap.ClickCount <= 0 {
		c.Tap.ClickCount = 15
	}
	if c.Tap.RefillThreshold <= 0 {
		c.Tap.RefillThreshold = 0.875
	}
	if c.Tap.MaxConsecutiveFailures <= 0 {
		c.Tap.MaxConsecutiveFailures = 5
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Notify.Email.Port <= 0 {
		c.Notify.Email.Port = 465
	}
}

func (c Config) validate() error {
	if c.Provider.BaseURL == "" {
		return errors.New("provider.baseURL is required")
	}
	if c.Provider.Proxy != "" {
		u, err := url.Parse(c.Provider.Proxy)
		if err != nil || u.Host == "" {
			return fmt.Errorf("provider.proxy is not a valid URL: %q", c.Provider.Proxy)
		}
	}
	if c.Tap.RefillThreshold > 1 {
		return errors.New("tap.refillThreshold must be within (0, 1]")
	}
	if c.Notify.Email.Enabled {
		if c.Notify.Email.Host == "" {
			return errors.New("notify.email.host is required when email is enabled")
		}
		if len(c.Notify.Email.To) == 0 {
			return errors.New("notify.email.to is required when email is enabled")
		}
	}
	return nil
}
