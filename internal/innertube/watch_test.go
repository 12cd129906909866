package innertube

import "testing"

func TestParseWatchPage(t *testing.T) {
	body := []byte(`<script>ytcfg.set({"INNERTUBE_API_KEY":"key-123","VISITOR_DATA":"visitor-abc",` +
		`"STS":20480,"DATASYNC_ID":"delegated||user","SESSION_INDEX":"1",` +
		`"PLAYER_JS_URL":"\/s\/player\/abcd1234\/player_ias.vflset\/en_US\/base.js"});</script>`)

	cfg := ParseWatchPage(body)
	if cfg.APIKey != "key-123" {
		t.Fatalf("APIKey = %q", cfg.APIKey)
	}
	if cfg.VisitorData != "visitor-abc" {
		t.Fatalf("VisitorData = %q", cfg.VisitorData)
	}
	if cfg.SignatureTimestamp != 20480 {
		t.Fatalf("SignatureTimestamp = %d", cfg.SignatureTimestamp)
	}
	if cfg.PlayerURL != "/s/player/abcd1234/player_ias.vflset/en_US/base.js" {
		t.Fatalf("PlayerURL = %q", cfg.PlayerURL)
	}
	if cfg.Auth.DelegatedSessionID != "delegated" || cfg.Auth.UserSessionID != "user" {
		t.Fatalf("Auth = %+v", cfg.Auth)
	}
	if cfg.Auth.SessionIndex == nil || *cfg.Auth.SessionIndex != 1 {
		t.Fatalf("SessionIndex = %v", cfg.Auth.SessionIndex)
	}
}

func TestExtractPlayerURLFallsBackToJSURL(t *testing.T) {
	body := []byte(`{"WEB_PLAYER_CONTEXT_CONFIGS":{"X":{"jsUrl":"\/s\/player\/efgh5678\/player_ias.vflset\/en_US\/base.js"}}}`)
	if got := ExtractPlayerURL(body); got != "/s/player/efgh5678/player_ias.vflset/en_US/base.js" {
		t.Fatalf("ExtractPlayerURL() = %q", got)
	}
	if got := ExtractPlayerURL([]byte("<html></html>")); got != "" {
		t.Fatalf("ExtractPlayerURL() = %q, want empty", got)
	}
}

func TestPlayerSignatureTimestamp(t *testing.T) {
	if got := PlayerSignatureTimestamp(`var x={signatureTimestamp:19834,foo:1}`); got != 19834 {
		t.Fatalf("PlayerSignatureTimestamp() = %d", got)
	}
	if got := PlayerSignatureTimestamp(`nothing here`); got != 0 {
		t.Fatalf("PlayerSignatureTimestamp() = %d, want 0", got)
	}
}
