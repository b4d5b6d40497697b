package utils

import "testing"

func TestNormalizeBrowserUserAgent(t *testing.T) {
	firefox := "Mozilla/5.0 (X11; Linux x86_64; rv:131.0) Gecko/20100101 Firefox/131.0"
	cases := map[string]string{
		"":                DefaultBrowserUserAgent(),
		"  ":              DefaultBrowserUserAgent(),
		"curl/8.4.0":      DefaultBrowserUserAgent(),
		"Mozilla/5.0 bot": DefaultBrowserUserAgent(),
		firefox:           firefox,
		" " + firefox:     firefox,
	}
	for in, want := range cases {
		if got := NormalizeBrowserUserAgent(in); got != want {
			t.Errorf("NormalizeBrowserUserAgent(%q) = %q, want %q", in, got, want)
		}
	}
}
