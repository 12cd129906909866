package innertube

import (
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestResolveVisitorData(t *testing.T) {
	cookies := []*http.Cookie{
		{Name: "PREF", Value: "f6=400"},
		{Name: "visitor_info1_live", Value: " CgtYeW91 "},
	}
	tests := []struct {
		name       string
		cookies    []*http.Cookie
		configured string
		want       string
	}{
		{"configured wins", cookies, "configured", "configured"},
		{"from cookie", cookies, "", "CgtYeW91"},
		{"nothing", nil, " ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveVisitorData(tt.cookies, tt.configured); got != tt.want {
				t.Fatalf("ResolveVisitorData() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSessionHeaders(t *testing.T) {
	now := time.Unix(1700000000, 0)
	const origin = "https://www.youtube.com"

	h := SessionHeaders([]*http.Cookie{
		{Name: "APISID", Value: "fallback"},
		{Name: "__Secure-3PAPISID", Value: "third"},
		{Name: "LOGIN_INFO", Value: "AFmmF2sw"},
	}, origin, now, SessionAuth{})
	auth := h.Get("Authorization")
	if !strings.HasPrefix(auth, "SAPISIDHASH 1700000000_") || !strings.Contains(auth, " SAPISID3PHASH 1700000000_") {
		t.Fatalf("Authorization = %q", auth)
	}
	if strings.Contains(auth, "SAPISID1PHASH") {
		t.Fatalf("Authorization = %q, want no 1P scheme without its cookie", auth)
	}
	if h.Get("X-Origin") != origin || h.Get("X-Youtube-Bootstrap-Logged-In") != "true" {
		t.Fatalf("headers = %v", h)
	}
	if h.Get("X-Goog-AuthUser") != "" {
		t.Fatalf("X-Goog-AuthUser = %q, want unset without a session", h.Get("X-Goog-AuthUser"))
	}
}

func TestSessionHeadersDelegatedSession(t *testing.T) {
	index := 2
	h := SessionHeaders(
		[]*http.Cookie{{Name: "SAPISID", Value: "sid-value"}},
		"https://www.youtube.com",
		time.Unix(1700000000, 0),
		SessionAuth{DelegatedSessionID: "delegated-id", UserSessionID: "user-id", SessionIndex: &index},
	)
	if got := h.Get("X-Goog-PageId"); got != "delegated-id" {
		t.Fatalf("X-Goog-PageId = %q", got)
	}
	if got := h.Get("X-Goog-AuthUser"); got != "2" {
		t.Fatalf("X-Goog-AuthUser = %q", got)
	}
	if got := h.Get("Authorization"); !strings.HasSuffix(got, "_u") {
		t.Fatalf("Authorization = %q, want _u suffix", got)
	}
}

func TestSidHashIsDeterministic(t *testing.T) {
	a := sidHash(1700000000, "sid", "https://www.youtube.com", "")
	b := sidHash(1700000000, "sid", "https://www.youtube.com", "")
	if a != b || len(a) != len("1700000000_")+40 {
		t.Fatalf("sidHash() = %q, %q", a, b)
	}
	if a == sidHash(1700000000, "sid", "https://music.youtube.com", "") {
		t.Fatalf("sidHash() ignores the origin")
	}
}

func TestSessionHeadersWithoutCookies(t *testing.T) {
	if h := SessionHeaders(nil, "https://www.youtube.com", time.Now(), SessionAuth{}); len(h) != 0 {
		t.Fatalf("headers = %v, want none", h)
	}
}
