package innertube

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// SessionAuth is the account context scraped from a signed-in watch page.
type SessionAuth struct {
	DelegatedSessionID string
	UserSessionID      string
	SessionIndex       *int
}

// sidSchemes pairs each Authorization scheme with the cookies that feed it,
// in order of preference.
var sidSchemes = []struct {
	scheme  string
	cookies []string
}{
	{"SAPISIDHASH", []string{"SAPISID", "APISID"}},
	{"SAPISID1PHASH", []string{"__Secure-1PAPISID"}},
	{"SAPISID3PHASH", []string{"__Secure-3PAPISID"}},
}

// ResolveVisitorData returns the configured visitor data or the VISITOR_INFO1_LIVE cookie.
func ResolveVisitorData(cookies []*http.Cookie, configured string) string {
	if v := strings.TrimSpace(configured); v != "" {
		return v
	}
	return cookieValues(cookies)["VISITOR_INFO1_LIVE"]
}

// SessionHeaders derives the headers a signed-in browser sends with API
// calls: SAPISIDHASH authorization from the session cookies plus the page id
// and account index of a delegated session.
func SessionHeaders(cookies []*http.Cookie, origin string, now time.Time, auth SessionAuth) http.Header {
	h := make(http.Header)
	delegated := strings.TrimSpace(auth.DelegatedSessionID)
	if delegated != "" {
		h.Set("X-Goog-PageId", delegated)
	}
	if delegated != "" || auth.SessionIndex != nil {
		index := 0
		if auth.SessionIndex != nil {
			index = *auth.SessionIndex
		}
		h.Set("X-Goog-AuthUser", strconv.Itoa(index))
	}

	values := cookieValues(cookies)
	user := strings.TrimSpace(auth.UserSessionID)
	var schemes []string
	for _, s := range sidSchemes {
		for _, name := range s.cookies {
			if sid := values[name]; sid != "" {
				schemes = append(schemes, s.scheme+" "+sidHash(now.Unix(), sid, origin, user))
				break
			}
		}
	}
	if len(schemes) > 0 {
		h.Set("Authorization", strings.Join(schemes, " "))
		h.Set("X-Origin", origin)
	}
	if values["LOGIN_INFO"] != "" {
		h.Set("X-Youtube-Bootstrap-Logged-In", "true")
	}
	return h
}

// sidHash is "<ts>_<sha1 hex>" with a "_u" suffix when a user session id is
// part of the hashed input.
func sidHash(ts int64, sid, origin, user string) string {
	input := fmt.Sprintf("%d %s %s", ts, sid, origin)
	if user != "" {
		input = user + " " + input
	}
	sum := sha1.Sum([]byte(input))
	out := strconv.FormatInt(ts, 10) + "_" + hex.EncodeToString(sum[:])
	if user != "" {
		out += "_u"
	}
	return out
}

// cookieValues maps cookie names to trimmed, non-empty values. Names are
// matched exactly except VISITOR_INFO1_LIVE, which browsers sometimes lowercase.
func cookieValues(cookies []*http.Cookie) map[string]string {
	out := make(map[string]string, len(cookies))
	for _, c := range cookies {
		name, value := strings.TrimSpace(c.Name), strings.TrimSpace(c.Value)
		if name == "" || value == "" {
			continue
		}
		if strings.EqualFold(name, "VISITOR_INFO1_LIVE") {
			name = "VISITOR_INFO1_LIVE"
		}
		if _, seen := out[name]; !seen {
			out[name] = value
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if v := strings.TrimSpace(value); v != "" {
			return v
		}
	}
	return ""
}
