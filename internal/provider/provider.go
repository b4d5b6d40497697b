package provider

import (
	"context"

	"notai_engine/internal/model"
)

// MissionQuery 对应任务列表接口的过滤条件。
type MissionQuery struct {
	CampaignID string
}

type Purchase struct {
	Level int `json:"level"`
}

type BoostPurchase struct {
	ID string `json:"id"`
}

// Provider 封装远端游戏服务的全部操作。所有方法失败时返回 *Error，
// 调用方通过 OutcomeOf / errors.Is 判断结果类别，不接触 HTTP 状态码。
type Provider interface {
	Name() string

	Login(ctx context.Context, token string) (string, error)
	ClaimDaily(ctx context.Context, token string) error

	ListMissions(ctx context.Context, token string, q MissionQuery) ([]model.Mission, error)
	CompleteMission(ctx context.Context, token string, mission model.Mission) error
	ClaimMissionReward(ctx context.Context, token string, mission model.Mission) error

	ListLevels(ctx context.Context, token string) ([]model.Level, error)
	PurchaseLevel(ctx context.Context, token string) (Purchase, error)
	ListTappingUpgrades(ctx context.Context, token string) ([]model.TappingUpgrade, error)
	PurchaseTappingUpgrade(ctx context.Context, token string, upgradeID string) (Purchase, error)

	GameStatus(ctx context.Context, token string) (model.GameStatus, error)
	SubmitTaps(ctx context.Context, token string, clicks int) (model.GameStatus, error)
	FreezeGame(ctx context.Context, token string) error

	ListActiveBoosts(ctx context.Context, token string) ([]string, error)
	ListBoosts(ctx context.Context, token string) ([]model.Boost, error)
	BuyBoost(ctx context.Context, token string, boostID string) (BoostPurchase, error)
}
