package model

import (
	"encoding/json"
	"testing"
)

func TestParseTokensSkipsBlankLines(t *testing.T) {
	accs := ParseTokens("  tok-a  \n\n\t\ntok-b\r\n")
	if len(accs) != 2 {
		t.Fatalf("len = %d", len(accs))
	}
	if accs[0].Token != "tok-a" || accs[1].Token != "tok-b" {
		t.Fatalf("tokens = %q, %q", accs[0].Token, accs[1].Token)
	}
	if accs[1].Index != 1 {
		t.Fatalf("index = %d", accs[1].Index)
	}
}

func TestTokenHintMasksToken(t *testing.T) {
	a := Account{Token: "eyJhbGciOiJIUzI1NiJ9.payload.signature"}
	if got := a.TokenHint(); got != "eyJhbG...ture" {
		t.Fatalf("hint = %q", got)
	}
	if got := (Account{Token: "short"}).TokenHint(); got != "***" {
		t.Fatalf("short hint = %q", got)
	}
}

func TestPercentAcceptsStringAndNumber(t *testing.T) {
	var ms []Mission
	body := `[{"id":"a","completedPercent":"100"},{"id":"b","completedPercent":100},{"id":"c","completedPercent":50.5},{"id":"d","completedPercent":null}]`
	if err := json.Unmarshal([]byte(body), &ms); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !ms[0].CompletedPercent.Complete() || !ms[1].CompletedPercent.Complete() {
		t.Fatalf("100 should be complete: %q %q", ms[0].CompletedPercent, ms[1].CompletedPercent)
	}
	if ms[2].CompletedPercent != "50.5" || ms[2].CompletedPercent.Complete() {
		t.Fatalf("50.5 = %q", ms[2].CompletedPercent)
	}
	if ms[3].CompletedPercent.Complete() {
		t.Fatal("null should not be complete")
	}
}

func TestProgressCountsNeverDecrease(t *testing.T) {
	p := NewProgress("alice")
	p.AddTaps(15)
	p.AddTaps(-3)
	if p.TapsPerformed != 15 {
		t.Fatalf("taps = %d", p.TapsPerformed)
	}
	p.SetInitialLevel(3)
	p.SetFinalLevel(5)
	if *p.InitialLevel != 3 || *p.FinalLevel != 5 {
		t.Fatalf("levels = %d -> %d", *p.InitialLevel, *p.FinalLevel)
	}
}
