package model

import "strings"

// Account 对应 token 文件中的一行；Username 在登录成功后填充。
type Account struct {
	Index    int    `json:"index"`
	Token    string `json:"-"`
	Username string `json:"username,omitempty"`
}

// TokenHint 返回 token 的脱敏形式，用于日志与运行记录。
func (a Account) TokenHint() string {
	t := strings.TrimSpace(a.Token)
	if len(t) <= 10 {
		return "***"
	}
	return t[:6] + "..." + t[len(t)-4:]
}

// ParseTokens 按行切分 token 文件内容，去掉首尾空白并跳过空行。
func ParseTokens(content string) []Account {
	var out []Account
	for _, line := range strings.Split(content, "\n") {
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		out = append(out, Account{Index: len(out), Token: t})
	}
	return out
}
