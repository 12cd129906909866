package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/famomatic/tubemux/internal/config"
	"github.com/famomatic/tubemux/internal/cookies"
	"github.com/famomatic/tubemux/internal/innertube"
	"github.com/famomatic/tubemux/internal/jobs"
	"github.com/famomatic/tubemux/internal/mux"
	"github.com/famomatic/tubemux/internal/playerjs"
	"github.com/famomatic/tubemux/internal/provider"
	"github.com/famomatic/tubemux/internal/relay"
	"github.com/famomatic/tubemux/internal/transcoder"
	"github.com/famomatic/tubemux/internal/types"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	files    afero.Fs
	provider *provider.Provider
	fetcher  mux.Fetcher
	ffmpeg   *transcoder.FFmpeg
	pipeline *mux.Pipeline
}

func newProvider(ctx context.Context, cfg *config.Config, client *http.Client, log zerolog.Logger) (*provider.Provider, error) {
	loaded, err := cookies.NewLoader(afero.NewOsFs(), log).Load(ctx, cookies.Options{
		File:    cfg.CookiesFile,
		Browser: cfg.CookiesFromBrowser,
	})
	if err != nil {
		return nil, err
	}
	if len(loaded) > 0 {
		jar, err := cookies.NewJar(loaded)
		if err != nil {
			return nil, fmt.Errorf("build cookie jar: %w", err)
		}
		withJar := *client
		withJar.Jar = jar
		client = &withJar
	}

	profiles, err := innertube.NewRegistry().Resolve(cfg.Clients)
	if err != nil {
		return nil, err
	}

	var strategies []provider.Strategy
	for _, name := range cfg.Strategies {
		switch name {
		case config.StrategyInnertube:
			strategies = append(strategies, &provider.InnertubeStrategy{
				Client: innertube.NewClient(innertube.Config{
					HTTPClient:     client,
					VisitorData:    innertube.ResolveVisitorData(loaded, cfg.VisitorData),
					RequestTimeout: cfg.RequestTimeout,
				}),
				Profiles: profiles,
				Player: playerjs.NewResolver(client, playerjs.NewMemoryCache(cfg.PlayerCacheTTL), playerjs.ResolverConfig{
					UserAgent: cfg.UserAgent,
				}),
				Logger: log.With().Str("strategy", name).Logger(),
			})
		case config.StrategyLibrary:
			strategies = append(strategies, provider.NewLibraryStrategy(client, log.With().Str("strategy", name).Logger()))
		case config.StrategyPage:
			strategies = append(strategies, &provider.PageStrategy{
				HTTPClient: client,
				UserAgent:  cfg.UserAgent,
				Logger:     log.With().Str("strategy", name).Logger(),
			})
		}
	}

	return provider.New(provider.Options{
		Strategies: strategies,
		Limiter:    provider.NewLimiter(cfg.LookupInterval, nil),
		Cache:      provider.NewCache(cfg.CacheTTL, nil),
		Logger:     log.With().Str("component", "provider").Logger(),
	}), nil
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
	client := config.HTTPClient(cfg.Proxy)

	p, err := newProvider(ctx, cfg, client, log)
	if err != nil {
		return nil, err
	}

	var fetcher mux.Fetcher = relay.New(relay.Config{
		HTTPClient: client,
		UserAgent:  cfg.UserAgent,
		Logger:     log.With().Str("component", "relay").Logger(),
	})
	if cfg.RelayURL != "" {
		fetcher = &relay.Client{BaseURL: cfg.RelayURL, HTTPClient: client}
	}

	ff, err := transcoder.NewFFmpeg(transcoder.FFmpegConfig{
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
		Dir:         cfg.WorkDir,
		Logger:      log.With().Str("component", "ffmpeg").Logger(),
	})
	if err != nil {
		return nil, err
	}

	files := afero.NewOsFs()
	pipeline := mux.New(mux.Config{
		Fetcher:      fetcher,
		Transcoder:   ff,
		Sink:         mux.DirSink{Fs: files, Dir: cfg.OutputDir},
		Tracker:      jobs.NewTracker(jobs.RealClock, log.With().Str("component", "jobs").Logger()),
		Retries:      cfg.Retries,
		RetryBackoff: cfg.RetryBackoff,
		SuccessTTL:   cfg.SuccessTTL,
		ErrorTTL:     cfg.ErrorTTL,
		Locale:       types.ParseLocale(cfg.Locale),
		Logger:       log.With().Str("component", "mux").Logger(),
	})

	return &app{
		cfg:      cfg,
		log:      log,
		files:    files,
		provider: p,
		fetcher:  fetcher,
		ffmpeg:   ff,
		pipeline: pipeline,
	}, nil
}
