package notai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"notai_engine/internal/config"
	"notai_engine/internal/logbus"
	"notai_engine/internal/model"
	"notai_engine/internal/provider"
	"notai_engine/internal/ratelimit"
)

// Client 是 notai 游戏服务的网关。所有请求（包括 resty 的重试）在发出前都要经过共享的 Gate。
type Client struct {
	cfg  config.ProviderConfig
	bus  *logbus.Bus
	gate *ratelimit.Gate
	rest *resty.Client
	now  func() time.Time
}

var _ provider.Provider = (*Client)(nil)

func New(cfg config.ProviderConfig, gate *ratelimit.Gate, bus *logbus.Bus) *Client {
	c := &Client{
		cfg:  cfg,
		bus:  bus,
		gate: gate,
		now:  time.Now,
	}
	c.rest = c.newHTTPClient()
	return c
}

func (c *Client) Name() string { return "notai" }

type listEnvelope[T any] struct {
	Data []T `json:"data"`
}

type loginResp struct {
	User *struct {
		Nickname string `json:"nickname"`
	} `json:"user"`
}

type dailyInfoResp struct {
	TodayClaimed bool `json:"todayClaimed"`
}

type missionActivityResp struct {
	Success bool `json:"success"`
}

type clickReq struct {
	ClickedCount int `json:"clickedCount"`
}

type activeBoostResp struct {
	BoostModification struct {
		Type string `json:"type"`
	} `json:"boostModification"`
}

type buyBoostReq struct {
	BoostModificationID string `json:"boostModificationId"`
}

func (c *Client) Login(ctx context.Context, token string) (string, error) {
	var resp loginResp
	if err := c.do(ctx, token, call{op: "login", method: http.MethodGet, path: "/scoreboard/me", result: &resp}); err != nil {
		c.logFailure("login failed", err, nil)
		return "", err
	}
	if resp.User == nil || resp.User.Nickname == "" {
		err := provider.NewError("login", provider.OutcomeAuthFailure, 0, errors.New("no nickname in response"))
		c.logFailure("login succeeded but no nickname found in response", err, nil)
		return "", err
	}
	c.log("info", "login successful", map[string]any{"username": resp.User.Nickname})
	return resp.User.Nickname, nil
}

func (c *Client) ClaimDaily(ctx context.Context, token string) error {
	var info dailyInfoResp
	if err := c.do(ctx, token, call{op: "daily_info", method: http.MethodGet, path: "/daily-rewards/today-info", result: &info}); err != nil {
		c.logFailure("failed to get daily reward info", err, nil)
		return err
	}
	if info.TodayClaimed {
		c.log("info", "daily reward already claimed today", nil)
		return provider.NewError("claim_daily", provider.OutcomeNoOp, 0, errors.New("already claimed today"))
	}
	if err := c.do(ctx, token, call{op: "claim_daily", method: http.MethodPost, path: "/daily-rewards/claim"}); err != nil {
		c.logFailure("failed to claim daily reward", err, nil)
		return err
	}
	c.log("info", "daily reward claimed", nil)
	return nil
}

func (c *Client) ListMissions(ctx context.Context, token string, q provider.MissionQuery) ([]model.Mission, error) {
	params := url.Values{}
	params.Set("filter[progress]", "true")
	params.Set("filter[rewards]", "true")
	params.Set("filter[completedPercent]", "true")
	params.Set("filter[hidden]", "false")
	params.Set("filter[campaignId]", q.CampaignID)
	params.Set("filter[date]", c.now().UTC().Format("2006-01-02T15:04:05.000000Z"))
	params.Set("filter[grouped]", "true")
	params.Set("filter[status]", "AVAILABLE")
	params.Add("filter[excludeCategories]", "REFERRALS")
	params.Add("filter[excludeCategories]", "ACHIEVEMENTS")

	var resp listEnvelope[model.Mission]
	if err := c.do(ctx, token, call{op: "list_missions", method: http.MethodGet, path: "/missions", query: params, result: &resp}); err != nil {
		c.logFailure("failed to get missions for campaign", err, map[string]any{"campaignId": q.CampaignID})
		return nil, err
	}
	c.log("info", "retrieved missions for campaign", map[string]any{"campaignId": q.CampaignID, "count": len(resp.Data)})
	return resp.Data, nil
}

func (c *Client) CompleteMission(ctx context.Context, token string, mission model.Mission) error {
	fields := map[string]any{"mission": mission.Label, "missionId": mission.ID}
	var resp missionActivityResp
	err := c.do(ctx, token, call{op: "complete_mission", method: http.MethodPost, path: "/mission-activity/" + url.PathEscape(mission.ID), result: &resp})
	if err == nil && !resp.Success {
		err = provider.NewError("complete_mission", provider.OutcomeRejected, 0, errors.New("success=false"))
	}
	if err != nil {
		c.logFailure("unable to complete mission", err, fields)
		return err
	}
	c.log("info", "mission completed", fields)
	return nil
}

func (c *Client) ClaimMissionReward(ctx context.Context, token string, mission model.Mission) error {
	fields := map[string]any{"mission": mission.Label, "missionId": mission.ID}
	err := c.do(ctx, token, call{op: "claim_mission_reward", method: http.MethodPost, path: "/mission-reward/" + url.PathEscape(mission.ID), expect: http.StatusCreated})
	if err != nil {
		c.logFailure("unable to claim mission reward", err, fields)
		return err
	}
	c.log("info", "mission reward claimed", fields)
	return nil
}

func (c *Client) ListLevels(ctx context.Context, token string) ([]model.Level, error) {
	var levels []model.Level
	if err := c.do(ctx, token, call{op: "list_levels", method: http.MethodGet, path: "/levels", result: &levels}); err != nil {
		c.logFailure("failed to get levels", err, nil)
		return nil, err
	}
	return levels, nil
}

func (c *Client) PurchaseLevel(ctx context.Context, token string) (provider.Purchase, error) {
	var out provider.Purchase
	if err := c.do(ctx, token, call{op: "purchase_level", method: http.MethodPost, path: "/boost/level/purchase", result: &out, expect: http.StatusCreated}); err != nil {
		c.logFailure("unable to upgrade level", err, nil)
		return provider.Purchase{}, err
	}
	c.log("info", "level upgraded", map[string]any{"level": out.Level})
	return out, nil
}

func (c *Client) ListTappingUpgrades(ctx context.Context, token string) ([]model.TappingUpgrade, error) {
	q := url.Values{}
	q.Set("filter[type]", "CLICKER_BOOSTER")
	var resp listEnvelope[model.TappingUpgrade]
	if err := c.do(ctx, token, call{op: "list_tapping_upgrades", method: http.MethodGet, path: "/boost/card", query: q, result: &resp}); err != nil {
		c.logFailure("failed to get tapping upgrades", err, nil)
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) PurchaseTappingUpgrade(ctx context.Context, token string, upgradeID string) (provider.Purchase, error) {
	fields := map[string]any{"upgradeId": upgradeID}
	var out provider.Purchase
	if err := c.do(ctx, token, call{op: "purchase_tapping_upgrade", method: http.MethodPost, path: "/boost/purchase/" + url.PathEscape(upgradeID), result: &out, expect: http.StatusCreated}); err != nil {
		c.logFailure("unable to purchase tapping upgrade", err, fields)
		return provider.Purchase{}, err
	}
	fields["level"] = out.Level
	c.log("info", "tapping upgrade purchased", fields)
	return out, nil
}

// GameStatus 以 clickedCount=0 提交，只读取当前点击数与上限。
func (c *Client) GameStatus(ctx context.Context, token string) (model.GameStatus, error) {
	var st model.GameStatus
	if err := c.do(ctx, token, call{op: "game_status", method: http.MethodPost, path: "/game-clicker/submit", body: clickReq{}, result: &st}); err != nil {
		c.logFailure("error getting game status", err, nil)
		return model.GameStatus{}, err
	}
	c.log("info", "game status", map[string]any{"currentClicks": st.CurrentClickedCount, "totalLimit": st.TotalClicksLimit})
	return st, nil
}

func (c *Client) SubmitTaps(ctx context.Context, token string, clicks int) (model.GameStatus, error) {
	var st model.GameStatus
	if err := c.do(ctx, token, call{op: "submit_taps", method: http.MethodPost, path: "/game-clicker/submit", body: clickReq{ClickedCount: clicks}, result: &st}); err != nil {
		c.logFailure("error performing tapping", err, map[string]any{"clicks": clicks})
		return model.GameStatus{}, err
	}
	c.log("info", "tapping performed", map[string]any{"clicks": clicks, "currentClicks": st.CurrentClickedCount})
	return st, nil
}

func (c *Client) FreezeGame(ctx context.Context, token string) error {
	if err := c.do(ctx, token, call{op: "freeze_game", method: http.MethodPost, path: "/game-clicker/freeze"}); err != nil {
		c.logFailure("error freezing game", err, nil)
		return err
	}
	c.log("info", "game frozen", nil)
	return nil
}

func (c *Client) ListActiveBoosts(ctx context.Context, token string) ([]string, error) {
	var resp []activeBoostResp
	if err := c.do(ctx, token, call{op: "list_active_boosts", method: http.MethodGet, path: "/boost-modification/active", result: &resp}); err != nil {
		c.logFailure("error getting active boosts", err, nil)
		return nil, err
	}
	types := make([]string, 0, len(resp))
	for _, b := range resp {
		types = append(types, b.BoostModification.Type)
	}
	c.log("info", "active boosts", map[string]any{"types": types})
	return types, nil
}

func (c *Client) ListBoosts(ctx context.Context, token string) ([]model.Boost, error) {
	var resp listEnvelope[model.Boost]
	if err := c.do(ctx, token, call{op: "list_boosts", method: http.MethodGet, path: "/boost-modification", result: &resp}); err != nil {
		c.logFailure("error getting boosts", err, nil)
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) BuyBoost(ctx context.Context, token string, boostID string) (provider.BoostPurchase, error) {
	fields := map[string]any{"boostId": boostID}
	var out provider.BoostPurchase
	if err := c.do(ctx, token, call{op: "buy_boost", method: http.MethodPost, path: "/boost-modification/buy", body: buyBoostReq{BoostModificationID: boostID}, result: &out}); err != nil {
		c.logFailure("unable to activate boost", err, fields)
		return provider.BoostPurchase{}, err
	}
	fields["activationId"] = out.ID
	c.log("info", "boost activated", fields)
	return out, nil
}

type call struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	result any
	// expect 为 0 时接受任意 2xx；否则只有该状态码算成功（领取/购买接口用 201）。
	expect int
}

func (c *Client) do(ctx context.Context, token string, cl call) error {
	req := c.rest.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+token)
	if cl.query != nil {
		req.SetQueryParamsFromValues(cl.query)
	}
	if cl.body != nil {
		req.SetBody(cl.body)
	}

	resp, err := req.Execute(cl.method, cl.path)
	if err != nil {
		return provider.NewError(cl.op, provider.OutcomeTransient, 0, err)
	}

	status := resp.StatusCode()
	ok := status >= 200 && status < 300
	if cl.expect != 0 {
		ok = status == cl.expect
	}
	if !ok {
		return provider.NewError(cl.op, provider.ClassifyStatus(status), status, statusErr(resp))
	}

	if cl.result != nil {
		if err := json.Unmarshal(resp.Body(), cl.result); err != nil {
			return provider.NewError(cl.op, provider.OutcomeTransient, status, fmt.Errorf("decode response: %w", err))
		}
	}
	return nil
}

func statusErr(resp *resty.Response) error {
	body := resp.String()
	if len(body) > 200 {
		body = body[:200]
	}
	if body == "" {
		return errors.New(resp.Status())
	}
	return errors.New(body)
}

func (c *Client) newHTTPClient() *resty.Client {
	client := resty.New().
		SetBaseURL(c.cfg.BaseURL).
		SetTimeout(c.cfg.Timeout()).
		SetRetryCount(c.cfg.Retry.Count).
		SetRetryWaitTime(c.cfg.Retry.Wait()).
		SetRetryMaxWaitTime(c.cfg.Retry.MaxWait()).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			if r == nil {
				return true
			}
			return r.StatusCode() >= 500
		})

	client.SetHeader("User-Agent", c.cfg.UserAgent)
	client.SetHeader("Accept", "*/*")
	if c.cfg.Proxy != "" {
		client.SetProxy(c.cfg.Proxy)
	}

	// 重试也会经过这里，每一次真实发出的请求都占用一个限流名额。
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if c.gate != nil {
			if err := c.gate.Wait(req.Context()); err != nil {
				return err
			}
		}
		if c.bus != nil {
			c.bus.Log("debug", "http request", map[string]any{
				"method": req.Method,
				"url":    req.URL,
			})
		}
		return nil
	})

	return client
}

func (c *Client) log(level, msg string, fields map[string]any) {
	if c.bus != nil {
		c.bus.Log(level, msg, fields)
	}
}

func (c *Client) logFailure(msg string, err error, fields map[string]any) {
	if c.bus == nil {
		return
	}
	out := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		out[k] = v
	}
	out["error"] = err.Error()
	out["outcome"] = provider.OutcomeOf(err).String()
	level := "warn"
	switch provider.OutcomeOf(err) {
	case provider.OutcomeNoOp, provider.OutcomeInsufficientFunds:
		level = "info"
	case provider.OutcomeTransient, provider.OutcomeAuthFailure:
		level = "error"
	}
	c.bus.Log(level, msg, out)
}
