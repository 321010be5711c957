package logger

import (
	"strings"
	"testing"
)

func TestRedactToken(t *testing.T) {
	cases := []struct{ in, want string }{
		{
			"https://api.telegram.org/bot123456789:AAE-abc_DEF123/sendMessage",
			"https://api.telegram.org/bot<redacted>/sendMessage",
		},
		{"no token here", "no token here"},
		{"", ""},
		{
			"bot1:a and bot22:bb",
			"bot<redacted> and bot<redacted>",
		},
	}
	for _, tc := range cases {
		if got := RedactToken(tc.in); got != tc.want {
			t.Errorf("RedactToken(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeLimitFlattens(t *testing.T) {
	in := "line one\nline\ttwo   spaced"
	want := "line one line two spaced"
	if got := SanitizeLimit(in, 100); got != want {
		t.Errorf("SanitizeLimit = %q, want %q", got, want)
	}
}

func TestSanitizeLimitTruncates(t *testing.T) {
	in := strings.Repeat("x", 50)
	got := SanitizeLimit(in, 10)
	if got != strings.Repeat("x", 10)+"..." {
		t.Errorf("SanitizeLimit = %q", got)
	}
}

func TestSanitizeRedacts(t *testing.T) {
	got := Sanitize("failed: bot987:zz refused")
	if strings.Contains(got, "987:zz") {
		t.Fatalf("token survived: %q", got)
	}
}
