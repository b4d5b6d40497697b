package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

const (
	BoostTypeDamage       = "CLICKER_DAMAGE"
	BoostTypeEnergy       = "CLICKER_ENERGY"
	BoostTypeRefillEnergy = "REFILL_ENERGY"
)

// Percent 兼容接口返回的字符串或数字形式的完成度。
type Percent string

func (p *Percent) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*p = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = Percent(strings.TrimSpace(s))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*p = Percent(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

func (p Percent) Complete() bool { return p == "100" }

type Mission struct {
	ID               string  `json:"id"`
	Label            string  `json:"label"`
	CompletedPercent Percent `json:"completedPercent"`
}

type Level struct {
	Level int `json:"level"`
}

type TappingUpgrade struct {
	ID        string `json:"id"`
	BoostType string `json:"boostType"`
	Level     int    `json:"level"`
}

type Boost struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Available int    `json:"available"`
}

type GameStatus struct {
	CurrentClickedCount int `json:"currentClickedCount"`
	TotalClicksLimit    int `json:"totalClicksLimit"`
}
