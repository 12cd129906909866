package innertube

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	innertubeAPIKeyPattern          = regexp.MustCompile(`(?i)["']INNERTUBE_API_KEY["']\s*:\s*["']([^"']+)["']`)
	visitorDataPattern              = regexp.MustCompile(`(?i)["']VISITOR_DATA["']\s*:\s*["']([^"']+)["']`)
	delegatedSessionIDPattern       = regexp.MustCompile(`(?i)["']DELEGATED_SESSION_ID["']\s*:\s*["']([^"']+)["']`)
	userSessionIDPattern            = regexp.MustCompile(`(?i)["']USER_SESSION_ID["']\s*:\s*["']([^"']+)["']`)
	dataSyncIDPattern               = regexp.MustCompile(`(?i)["']DATASYNC_ID["']\s*:\s*["']([^"']+)["']`)
	sessionIndexPattern             = regexp.MustCompile(`(?i)["']SESSION_INDEX["']\s*:\s*["']?(\d+)["']?`)
	signatureTimestampPattern       = regexp.MustCompile(`(?i)["']STS["']\s*:\s*["']?(\d+)["']?`)
	playerSignatureTimestampPattern = regexp.MustCompile(`(?i)(?:signatureTimestamp|sts)\s*:\s*(\d{5})`)
	playerJSURLCfgPattern           = regexp.MustCompile(`(?i)["']PLAYER_JS_URL["']\s*:\s*["']([^"']+)["']`)
	webPlayerContextJSURLPattern    = regexp.MustCompile(`(?i)["']jsUrl["']\s*:\s*["']([^"']+/base\.js)["']`)
	playerURLPattern                = regexp.MustCompile(`(/s/player/[A-Za-z0-9_-]+/[A-Za-z0-9._/-]*/base\.js)`)
)

// WatchConfig holds the ytcfg values scraped from a watch page.
type WatchConfig struct {
	APIKey             string
	VisitorData        string
	PlayerURL          string
	SignatureTimestamp int
	Auth               SessionAuth
}

// ParseWatchPage extracts ytcfg values from a watch page body. Missing values stay zero.
func ParseWatchPage(body []byte) WatchConfig {
	var cfg WatchConfig
	cfg.APIKey = firstSubmatch(innertubeAPIKeyPattern, body)
	cfg.VisitorData = firstSubmatch(visitorDataPattern, body)
	cfg.PlayerURL = ExtractPlayerURL(body)
	if sts, err := strconv.Atoi(firstSubmatch(signatureTimestampPattern, body)); err == nil {
		cfg.SignatureTimestamp = sts
	}

	cfg.Auth.DelegatedSessionID = firstSubmatch(delegatedSessionIDPattern, body)
	cfg.Auth.UserSessionID = firstSubmatch(userSessionIDPattern, body)
	if dataSyncID := firstSubmatch(dataSyncIDPattern, body); dataSyncID != "" {
		delegated, user := parseDataSyncID(dataSyncID)
		if cfg.Auth.DelegatedSessionID == "" {
			cfg.Auth.DelegatedSessionID = delegated
		}
		if cfg.Auth.UserSessionID == "" {
			cfg.Auth.UserSessionID = user
		}
	}
	if idx, err := strconv.Atoi(firstSubmatch(sessionIndexPattern, body)); err == nil {
		cfg.Auth.SessionIndex = &idx
	}
	return cfg
}

// ExtractPlayerURL finds the player base.js path referenced by a watch page.
func ExtractPlayerURL(body []byte) string {
	for _, re := range []*regexp.Regexp{playerJSURLCfgPattern, webPlayerContextJSURLPattern, playerURLPattern} {
		candidate := firstSubmatch(re, body)
		if candidate == "" {
			continue
		}
		candidate = strings.ReplaceAll(candidate, `\/`, "/")
		if strings.HasPrefix(candidate, "//") {
			return "https:" + candidate
		}
		return candidate
	}
	return ""
}

// PlayerSignatureTimestamp reads the signature timestamp embedded in player JS.
func PlayerSignatureTimestamp(js string) int {
	sts, _ := strconv.Atoi(firstSubmatch(playerSignatureTimestampPattern, []byte(js)))
	return sts
}

func firstSubmatch(re *regexp.Regexp, body []byte) string {
	m := re.FindSubmatch(body)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(string(m[1]))
}

func parseDataSyncID(dataSyncID string) (string, string) {
	parts := strings.SplitN(strings.TrimSpace(dataSyncID), "||", 2)
	if len(parts) == 2 {
		first := strings.TrimSpace(parts[0])
		second := strings.TrimSpace(parts[1])
		if second != "" {
			return first, second
		}
		return "", first
	}
	return "", strings.TrimSpace(parts[0])
}
