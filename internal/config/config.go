// Package config loads tubemux settings from defaults, an optional config
// file, a .env file, TUBEMUX_* environment variables and command flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/famomatic/tubemux/internal/innertube"
	"github.com/famomatic/tubemux/internal/logging"
	"github.com/famomatic/tubemux/internal/mux"
	"github.com/famomatic/tubemux/internal/provider"
)

// EnvPrefix prefixes every environment variable, e.g. TUBEMUX_ADDR.
const EnvPrefix = "TUBEMUX"

// Keys shared by viper, flags and config files.
const (
	KeyAddr               = "addr"
	KeyAllowedOrigins     = "allowed-origins"
	KeyLocale             = "locale"
	KeyLogLevel           = "log-level"
	KeyLogFormat          = "log-format"
	KeyOutputDir          = "output-dir"
	KeyWorkDir            = "work-dir"
	KeyFFmpegPath         = "ffmpeg"
	KeyFFprobePath        = "ffprobe"
	KeyProxy              = "proxy"
	KeyUserAgent          = "user-agent"
	KeyStrategies         = "strategies"
	KeyClients            = "clients"
	KeyVisitorData        = "visitor-data"
	KeyCookiesFile        = "cookies"
	KeyCookiesFromBrowser = "cookies-from-browser"
	KeyRequestTimeout     = "request-timeout"
	KeyLookupInterval     = "lookup-interval"
	KeyCacheTTL           = "cache-ttl"
	KeyPlayerCacheTTL     = "player-cache-ttl"
	KeyRetries            = "retries"
	KeyRetryBackoff       = "retry-backoff"
	KeySuccessTTL         = "success-ttl"
	KeyErrorTTL           = "error-ttl"
	KeyRelayURL           = "relay-url"
)

// Strategy names accepted in KeyStrategies.
const (
	StrategyInnertube = "innertube"
	StrategyLibrary   = "library"
	StrategyPage      = "page"
)

// DefaultStrategies is the lookup chain, highest fidelity first.
var DefaultStrategies = []string{StrategyInnertube, StrategyLibrary, StrategyPage}

// Config is the resolved application configuration.
type Config struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed-origins"`
	Locale         string   `mapstructure:"locale"`
	LogLevel       string   `mapstructure:"log-level"`
	LogFormat      string   `mapstructure:"log-format"`

	OutputDir   string `mapstructure:"output-dir"`
	WorkDir     string `mapstructure:"work-dir"`
	FFmpegPath  string `mapstructure:"ffmpeg"`
	FFprobePath string `mapstructure:"ffprobe"`

	Proxy              string        `mapstructure:"proxy"`
	UserAgent          string        `mapstructure:"user-agent"`
	Strategies         []string      `mapstructure:"strategies"`
	Clients            []string      `mapstructure:"clients"`
	VisitorData        string        `mapstructure:"visitor-data"`
	CookiesFile        string        `mapstructure:"cookies"`
	CookiesFromBrowser bool          `mapstructure:"cookies-from-browser"`
	RequestTimeout     time.Duration `mapstructure:"request-timeout"`
	LookupInterval     time.Duration `mapstructure:"lookup-interval"`
	CacheTTL           time.Duration `mapstructure:"cache-ttl"`
	PlayerCacheTTL     time.Duration `mapstructure:"player-cache-ttl"`

	Retries      int           `mapstructure:"retries"`
	RetryBackoff time.Duration `mapstructure:"retry-backoff"`
	SuccessTTL   time.Duration `mapstructure:"success-ttl"`
	ErrorTTL     time.Duration `mapstructure:"error-ttl"`
	// RelayURL points mux downloads at a remote /relay endpoint instead of
	// fetching upstream directly.
	RelayURL string `mapstructure:"relay-url"`
}

// SetDefaults registers every key so environment variables are picked up
// by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyAddr, ":8080")
	v.SetDefault(KeyAllowedOrigins, []string{"*"})
	v.SetDefault(KeyLocale, "pt-BR")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, logging.FormatConsole)
	v.SetDefault(KeyOutputDir, "downloads")
	v.SetDefault(KeyWorkDir, "")
	v.SetDefault(KeyFFmpegPath, "ffmpeg")
	v.SetDefault(KeyFFprobePath, "ffprobe")
	v.SetDefault(KeyProxy, "")
	v.SetDefault(KeyUserAgent, "")
	v.SetDefault(KeyStrategies, DefaultStrategies)
	v.SetDefault(KeyClients, innertube.DefaultClientOrder)
	v.SetDefault(KeyVisitorData, "")
	v.SetDefault(KeyCookiesFile, "")
	v.SetDefault(KeyCookiesFromBrowser, false)
	v.SetDefault(KeyRequestTimeout, 30*time.Second)
	v.SetDefault(KeyLookupInterval, provider.DefaultMinInterval)
	v.SetDefault(KeyCacheTTL, provider.DefaultCacheTTL)
	v.SetDefault(KeyPlayerCacheTTL, 6*time.Hour)
	v.SetDefault(KeyRetries, mux.DefaultRetries)
	v.SetDefault(KeyRetryBackoff, mux.DefaultRetryBackoff)
	v.SetDefault(KeySuccessTTL, mux.DefaultSuccessTTL)
	v.SetDefault(KeyErrorTTL, mux.DefaultErrorTTL)
	v.SetDefault(KeyRelayURL, "")
}

// Load reads .env files, configFile (or tubemux.{yaml,toml,json} in the
// working directory when empty) and the environment into a validated Config.
func Load(v *viper.Viper, configFile string, log zerolog.Logger, envFiles ...string) (*Config, error) {
	if err := LoadDotEnv(envFiles...); err != nil {
		return nil, err
	}
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("tubemux")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	if used := v.ConfigFileUsed(); used != "" {
		log.Debug().Str("file", used).Msg("loaded config file")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	Validate(&cfg, log)
	return &cfg, nil
}

// LoadDotEnv loads the given .env files (default ".env") without overriding
// variables already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Validate resets invalid values to their defaults and logs a warning for each.
func Validate(cfg *Config, log zerolog.Logger) {
	warn := func(key string, got any, reset any) {
		log.Warn().Str("key", key).Interface("value", got).Interface("reset_to", reset).Msg("invalid config value")
	}

	if strings.TrimSpace(cfg.Addr) == "" {
		warn(KeyAddr, cfg.Addr, ":8080")
		cfg.Addr = ":8080"
	}
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		warn(KeyLogLevel, cfg.LogLevel, "info")
		cfg.LogLevel = "info"
	}
	switch strings.ToLower(cfg.LogFormat) {
	case logging.FormatConsole, logging.FormatJSON:
	default:
		warn(KeyLogFormat, cfg.LogFormat, logging.FormatConsole)
		cfg.LogFormat = logging.FormatConsole
	}
	if strings.TrimSpace(cfg.OutputDir) == "" {
		warn(KeyOutputDir, cfg.OutputDir, "downloads")
		cfg.OutputDir = "downloads"
	}
	if cfg.Proxy != "" {
		if u, err := url.Parse(cfg.Proxy); err != nil || u.Scheme == "" || u.Host == "" {
			warn(KeyProxy, cfg.Proxy, "")
			cfg.Proxy = ""
		}
	}
	if cfg.RelayURL != "" {
		if u, err := url.Parse(cfg.RelayURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			warn(KeyRelayURL, cfg.RelayURL, "")
			cfg.RelayURL = ""
		}
	}

	cfg.Strategies = validStrategies(cfg.Strategies, warn)
	if _, err := innertube.NewRegistry().Resolve(cfg.Clients); err != nil {
		warn(KeyClients, cfg.Clients, innertube.DefaultClientOrder)
		cfg.Clients = append([]string(nil), innertube.DefaultClientOrder...)
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	resetDuration(&cfg.RequestTimeout, KeyRequestTimeout, 30*time.Second, warn)
	resetDuration(&cfg.CacheTTL, KeyCacheTTL, provider.DefaultCacheTTL, warn)
	resetDuration(&cfg.PlayerCacheTTL, KeyPlayerCacheTTL, 6*time.Hour, warn)
	resetDuration(&cfg.RetryBackoff, KeyRetryBackoff, mux.DefaultRetryBackoff, warn)
	resetDuration(&cfg.SuccessTTL, KeySuccessTTL, mux.DefaultSuccessTTL, warn)
	resetDuration(&cfg.ErrorTTL, KeyErrorTTL, mux.DefaultErrorTTL, warn)
	if cfg.LookupInterval < 0 {
		warn(KeyLookupInterval, cfg.LookupInterval, provider.DefaultMinInterval)
		cfg.LookupInterval = provider.DefaultMinInterval
	}
	if cfg.Retries < 1 {
		warn(KeyRetries, cfg.Retries, mux.DefaultRetries)
		cfg.Retries = mux.DefaultRetries
	}
}

func validStrategies(names []string, warn func(string, any, any)) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		switch n {
		case StrategyInnertube, StrategyLibrary, StrategyPage:
		default:
			warn(KeyStrategies, n, nil)
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	if len(out) == 0 {
		warn(KeyStrategies, names, DefaultStrategies)
		return append([]string(nil), DefaultStrategies...)
	}
	return out
}

func resetDuration(d *time.Duration, key string, def time.Duration, warn func(string, any, any)) {
	if *d <= 0 {
		warn(key, *d, def)
		*d = def
	}
}

// HTTPClient returns the client used for upstream requests, routed through
// proxy when one is configured.
func HTTPClient(proxy string) *http.Client {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return &http.Client{}
	}
	transport := base.Clone()
	if strings.TrimSpace(proxy) != "" {
		if u, err := url.Parse(proxy); err == nil && u.Scheme != "" && u.Host != "" {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{Transport: transport}
}
