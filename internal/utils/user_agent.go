package utils

import "strings"

const defaultBrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36"

// DefaultBrowserUserAgent 返回默认的桌面 Chrome UA，与网页端游戏客户端一致。
func DefaultBrowserUserAgent() string {
	return defaultBrowserUserAgent
}

// NormalizeBrowserUserAgent 当入参为空或不像浏览器 UA 时返回默认 UA。
func NormalizeBrowserUserAgent(ua string) string {
	v := strings.TrimSpace(ua)
	if v == "" || !looksLikeBrowserUA(v) {
		return defaultBrowserUserAgent
	}
	return v
}

func looksLikeBrowserUA(ua string) bool {
	s := strings.ToLower(ua)
	if !strings.HasPrefix(s, "mozilla/") {
		return false
	}
	return strings.Contains(s, "chrome") || strings.Contains(s, "safari") || strings.Contains(s, "firefox")
}
