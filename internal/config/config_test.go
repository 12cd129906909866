package config

import (
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), "", zerolog.Nop())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr != ":8080" || cfg.Locale != "pt-BR" || cfg.Retries != 2 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.SuccessTTL != 10*time.Second || cfg.ErrorTTL != 30*time.Second || cfg.CacheTTL != 5*time.Minute {
		t.Fatalf("ttls = %v %v %v", cfg.SuccessTTL, cfg.ErrorTTL, cfg.CacheTTL)
	}
	if !reflect.DeepEqual(cfg.Strategies, DefaultStrategies) {
		t.Fatalf("Strategies = %v", cfg.Strategies)
	}
	if !reflect.DeepEqual(cfg.Clients, []string{"android", "ios", "web", "web_embedded", "tv"}) {
		t.Fatalf("Clients = %v", cfg.Clients)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeFile(t, "tubemux.yaml", `
addr: ":9000"
log-format: json
strategies: [page, library]
retry-backoff: 250ms
`)
	t.Setenv("TUBEMUX_ADDR", ":9100")
	t.Setenv("TUBEMUX_CLIENTS", "web,tv")

	cfg, err := Load(viper.New(), path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr != ":9100" {
		t.Fatalf("Addr = %q, want env override", cfg.Addr)
	}
	if cfg.LogFormat != "json" || cfg.RetryBackoff != 250*time.Millisecond {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.Strategies, []string{"page", "library"}) {
		t.Fatalf("Strategies = %v", cfg.Strategies)
	}
	if !reflect.DeepEqual(cfg.Clients, []string{"web", "tv"}) {
		t.Fatalf("Clients = %v", cfg.Clients)
	}
}

func TestLoadDotEnv(t *testing.T) {
	t.Setenv("TUBEMUX_LOCALE", "")
	os.Unsetenv("TUBEMUX_LOCALE")
	env := writeFile(t, ".env", "TUBEMUX_LOCALE=en\n")

	cfg, err := Load(viper.New(), "", zerolog.Nop(), env)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Locale != "en" {
		t.Fatalf("Locale = %q, want en from .env", cfg.Locale)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	if _, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"), zerolog.Nop()); err == nil {
		t.Fatalf("Load() error = nil, want missing file error")
	}
}

func TestValidateResetsInvalidValues(t *testing.T) {
	cfg := &Config{
		Addr:           " ",
		LogLevel:       "chatty",
		LogFormat:      "xml",
		OutputDir:      "",
		Proxy:          "not a url",
		RelayURL:       "ftp://relay",
		Strategies:     []string{"Page", "bogus", "page"},
		Clients:        []string{"web", "nokia"},
		RequestTimeout: -time.Second,
		LookupInterval: -time.Second,
		Retries:        0,
	}
	Validate(cfg, zerolog.Nop())

	if cfg.Addr != ":8080" || cfg.LogLevel != "info" || cfg.LogFormat != "console" || cfg.OutputDir != "downloads" {
		t.Fatalf("basic resets = %+v", cfg)
	}
	if cfg.Proxy != "" || cfg.RelayURL != "" {
		t.Fatalf("urls not cleared: %q %q", cfg.Proxy, cfg.RelayURL)
	}
	if !reflect.DeepEqual(cfg.Strategies, []string{"page"}) {
		t.Fatalf("Strategies = %v", cfg.Strategies)
	}
	if len(cfg.Clients) != 5 {
		t.Fatalf("Clients = %v, want defaults", cfg.Clients)
	}
	if cfg.RequestTimeout != 30*time.Second || cfg.LookupInterval != time.Second || cfg.Retries != 2 {
		t.Fatalf("numeric resets = %v %v %d", cfg.RequestTimeout, cfg.LookupInterval, cfg.Retries)
	}
	if cfg.SuccessTTL != 10*time.Second || cfg.ErrorTTL != 30*time.Second {
		t.Fatalf("ttl resets = %v %v", cfg.SuccessTTL, cfg.ErrorTTL)
	}
}

func TestValidateEmptyStrategiesFallsBack(t *testing.T) {
	cfg := &Config{Strategies: []string{"bogus"}}
	Validate(cfg, zerolog.Nop())
	if !reflect.DeepEqual(cfg.Strategies, DefaultStrategies) {
		t.Fatalf("Strategies = %v", cfg.Strategies)
	}
}

func TestHTTPClientProxy(t *testing.T) {
	client := HTTPClient("http://127.0.0.1:3128")
	tr, ok := client.Transport.(*http.Transport)
	if !ok || tr.Proxy == nil {
		t.Fatalf("transport = %#v, want proxy", client.Transport)
	}
	req, _ := http.NewRequest(http.MethodGet, "https://www.youtube.com", nil)
	u, err := tr.Proxy(req)
	if err != nil || u == nil || u.Host != "127.0.0.1:3128" {
		t.Fatalf("Proxy() = %v, %v", u, err)
	}
}
