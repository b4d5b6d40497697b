package engine

import (
	"context"

	"notai_engine/internal/model"
	"notai_engine/internal/provider"
)

// runMissions 完成并领取活动中尚未完成的任务。每个任务之后固定等待，不论成败；
// 同一轮内失败的任务不重试。
func (e *Engine) runMissions(ctx context.Context, token string, prog *model.Progress) error {
	missions, err := e.provider.ListMissions(ctx, token, provider.MissionQuery{CampaignID: e.run.CampaignID})
	if err != nil {
		e.log("warn", "missions skipped", map[string]any{"account": prog.Username, "error": err.Error()})
		return ctx.Err()
	}

	for _, m := range missions {
		fields := map[string]any{"account": prog.Username, "mission": m.Label, "missionId": m.ID}
		e.log("info", "processing mission", fields)

		if m.CompletedPercent.Complete() {
			e.log("info", "mission already completed", fields)
		} else if e.provider.CompleteMission(ctx, token, m) == nil {
			if e.provider.ClaimMissionReward(ctx, token, m) == nil {
				prog.MissionsCompleted++
			}
		}

		if !e.sleep(ctx, e.pacing.Mission()) {
			return ctx.Err()
		}
	}
	return nil
}
