package model

// Progress 记录单个账号本轮的成果。由编排器在登录后创建，按指针传给各阶段，
// 账号处理结束后丢弃；计数只增不减。
type Progress struct {
	Username          string `json:"username"`
	InitialLevel      *int   `json:"initialLevel,omitempty"`
	FinalLevel        *int   `json:"finalLevel,omitempty"`
	DamageUpgrades    int    `json:"damageUpgrades"`
	LimitUpgrades     int    `json:"limitUpgrades"`
	MissionsCompleted int    `json:"missionsCompleted"`
	TapsPerformed     int    `json:"tapsPerformed"`
}

func NewProgress(username string) *Progress {
	return &Progress{Username: username}
}

func (p *Progress) SetInitialLevel(level int) {
	p.InitialLevel = &level
	p.FinalLevel = &level
}

func (p *Progress) SetFinalLevel(level int) {
	p.FinalLevel = &level
}

// AddTaps 累加点击数；负的差值（服务端重置计数时可能出现）不计入。
func (p *Progress) AddTaps(n int) {
	if n > 0 {
		p.TapsPerformed += n
	}
}
