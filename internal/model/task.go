package model

// Phase 是账号当前所处的阶段。
type Phase string

const (
	PhaseLogin          Phase = "login"
	PhaseDaily          Phase = "daily"
	PhaseMissions       Phase = "missions"
	PhaseLevelUpgrade   Phase = "level_upgrade"
	PhaseTappingUpgrade Phase = "tapping_upgrade"
	PhaseAutoTap        Phase = "auto_tap"
	PhaseDone           Phase = "done"
)

// AccountState 是正在处理的账号快照，通过 logbus 推送给监控端。
type AccountState struct {
	Index     int       `json:"index"`
	TokenHint string    `json:"tokenHint"`
	Phase     Phase     `json:"phase"`
	Progress  *Progress `json:"progress,omitempty"`
	LastError string    `json:"lastError,omitempty"`
}

// RunReport 是一个账号处理完成后的结果，写入运行历史。
type RunReport struct {
	ID         string   `json:"id"`
	BatchID    string   `json:"batchId"`
	TokenHint  string   `json:"tokenHint"`
	Progress   Progress `json:"progress"`
	LoggedIn   bool     `json:"loggedIn"`
	TapOutcome string   `json:"tapOutcome,omitempty"`
	Error      string   `json:"error,omitempty"`
	StartedMs  int64    `json:"startedMs"`
	FinishedMs int64    `json:"finishedMs"`
}

type EngineState struct {
	Running bool          `json:"running"`
	BatchID string        `json:"batchId,omitempty"`
	Current *AccountState `json:"current,omitempty"`
	Reports []RunReport   `json:"reports"`
}

// BatchSummary 是一轮批处理的汇总，用于邮件通知。
type BatchSummary struct {
	BatchID    string      `json:"batchId"`
	StartedMs  int64       `json:"startedMs"`
	FinishedMs int64       `json:"finishedMs"`
	Reports    []RunReport `json:"reports"`
}

func (b BatchSummary) Totals() (loggedIn, missions, taps int) {
	for _, r := range b.Reports {
		if r.LoggedIn {
			loggedIn++
		}
		missions += r.Progress.MissionsCompleted
		taps += r.Progress.TapsPerformed
	}
	return loggedIn, missions, taps
}
