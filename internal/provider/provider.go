// Package provider looks up video metadata and raw stream records through an
// ordered chain of extraction strategies.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/famomatic/tubemux/internal/formats"
	"github.com/famomatic/tubemux/internal/types"
)

// VideoInfo is the result of a successful lookup. Treat it as immutable.
type VideoInfo struct {
	VideoID         string            `json:"videoId"`
	Title           string            `json:"title"`
	DurationSeconds string            `json:"duration"`
	Thumbnail       string            `json:"thumbnail"`
	Author          string            `json:"author,omitempty"`
	UploadDate      time.Time         `json:"uploadDate,omitempty"`
	Source          string            `json:"source"`
	Variants        []formats.Variant `json:"formats"`
	Skipped         []formats.Skip    `json:"skipped,omitempty"`
}

// Clone returns a deep copy of v.
func (v *VideoInfo) Clone() *VideoInfo {
	if v == nil {
		return nil
	}
	out := *v
	out.Variants = append([]formats.Variant(nil), v.Variants...)
	out.Skipped = append([]formats.Skip(nil), v.Skipped...)
	return &out
}

// Extraction is what a strategy returns before normalization.
type Extraction struct {
	Title           string
	DurationSeconds string
	Thumbnail       string
	Author          string
	UploadDate      time.Time
	Raw             []formats.Raw
}

// Strategy is one way of extracting a video's metadata and stream records.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, videoID string) (*Extraction, error)
}

// Options configures a Provider. Nil Limiter or Cache disables that feature.
type Options struct {
	Strategies []Strategy
	Limiter    *Limiter
	Cache      *Cache
	Logger     zerolog.Logger
}

// Provider runs the strategy chain with rate limiting and caching.
type Provider struct {
	strategies []Strategy
	limiter    *Limiter
	cache      *Cache
	log        zerolog.Logger
}

func New(opts Options) *Provider {
	return &Provider{
		strategies: opts.Strategies,
		limiter:    opts.Limiter,
		cache:      opts.Cache,
		log:        opts.Logger,
	}
}

// Lookup resolves rawURL into a VideoInfo. Failures wrap one of the types
// sentinels (ErrInvalidInput, ErrNotFound, ErrRestricted, ErrBlocked) when
// the cause is known.
func (p *Provider) Lookup(ctx context.Context, rawURL string) (*VideoInfo, error) {
	videoID, err := ExtractVideoID(rawURL)
	if err != nil {
		return nil, err
	}
	log := p.log.With().Str("video_id", videoID).Logger()

	if p.cache != nil {
		if info, ok := p.cache.Get(videoID); ok {
			log.Debug().Str("source", info.Source).Msg("lookup served from cache")
			return info, nil
		}
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	info, err := p.run(ctx, videoID, log)
	if err != nil {
		return nil, err
	}
	if p.cache != nil {
		p.cache.Set(videoID, info)
	}
	return info.Clone(), nil
}

func (p *Provider) run(ctx context.Context, videoID string, log zerolog.Logger) (*VideoInfo, error) {
	chainErr := &ChainError{VideoID: videoID}
	for _, s := range p.strategies {
		start := time.Now()
		ext, err := s.Extract(ctx, videoID)
		if err != nil {
			err = classify(err)
			log.Warn().Err(err).Str("strategy", s.Name()).Dur("elapsed", time.Since(start)).Msg("strategy failed")
			chainErr.Attempts = append(chainErr.Attempts, Attempt{Strategy: s.Name(), Err: err})
			if ctx.Err() != nil || errors.Is(err, types.ErrInvalidInput) {
				break
			}
			continue
		}

		res := formats.NormalizeAll(ext.Raw)
		log.Info().
			Str("strategy", s.Name()).
			Int("variants", len(res.Variants)).
			Int("skipped", len(res.Skipped)).
			Dur("elapsed", time.Since(start)).
			Msg("lookup succeeded")
		for _, skip := range res.Skipped {
			log.Debug().Int("itag", skip.Itag).Str("shape", string(skip.Shape)).Str("reason", string(skip.Reason)).Msg("raw format skipped")
		}
		return &VideoInfo{
			VideoID:         videoID,
			Title:           ext.Title,
			DurationSeconds: durationOrZero(ext.DurationSeconds),
			Thumbnail:       ext.Thumbnail,
			Author:          ext.Author,
			UploadDate:      ext.UploadDate,
			Source:          s.Name(),
			Variants:        res.Variants,
			Skipped:         res.Skipped,
		}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("lookup %s: %w", videoID, err)
	}
	return nil, chainErr
}

func durationOrZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
