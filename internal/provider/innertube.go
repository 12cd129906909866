package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/rs/zerolog"

	"github.com/famomatic/tubemux/internal/formats"
	"github.com/famomatic/tubemux/internal/innertube"
	"github.com/famomatic/tubemux/internal/playerjs"
)

// InnertubeStrategy queries the player endpoint with each client profile in
// turn and resolves ciphered formats with the player JS.
type InnertubeStrategy struct {
	Client   *innertube.Client
	Profiles []innertube.ClientProfile
	Player   playerjs.Resolver
	Logger   zerolog.Logger
}

func (s *InnertubeStrategy) Name() string { return "innertube" }

func (s *InnertubeStrategy) Extract(ctx context.Context, videoID string) (*Extraction, error) {
	if s.Client == nil || len(s.Profiles) == 0 {
		return nil, errors.New("innertube strategy is not configured")
	}
	log := s.Logger.With().Str("video_id", videoID).Logger()

	watch := s.watchConfig(ctx, videoID, log)
	decipherer := s.decipherer(ctx, &watch, log)

	attempts := &ChainError{VideoID: videoID}
	var fallback *innertube.PlayerResponse
	var fallbackProfile innertube.ClientProfile
	for _, profile := range s.Profiles {
		resp, err := s.Client.Player(ctx, profile, videoID, watch)
		if err != nil {
			err = classify(err)
			log.Debug().Err(err).Str("client", profile.ID).Msg("player request failed")
			attempts.Attempts = append(attempts.Attempts, Attempt{Strategy: s.Name() + "/" + profile.ID, Err: err})
			var playErr *innertube.PlayabilityError
			if errors.As(err, &playErr) && playErr.IsUnavailable() && !playErr.IsBlocked() {
				break
			}
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if len(resp.StreamingData.Formats)+len(resp.StreamingData.AdaptiveFormats) == 0 {
			if fallback == nil {
				fallback, fallbackProfile = resp, profile
			}
			log.Debug().Str("client", profile.ID).Msg("player response has no formats")
			continue
		}
		return s.extraction(resp, profile, decipherer, log), nil
	}
	if fallback != nil {
		return s.extraction(fallback, fallbackProfile, decipherer, log), nil
	}
	if len(attempts.Attempts) == 1 {
		return nil, attempts.Attempts[0].Err
	}
	return nil, attempts
}

func (s *InnertubeStrategy) watchConfig(ctx context.Context, videoID string, log zerolog.Logger) innertube.WatchConfig {
	body, err := s.Client.WatchPage(ctx, videoID)
	if err != nil {
		log.Debug().Err(err).Msg("watch page unavailable, continuing without ytcfg")
		return innertube.WatchConfig{}
	}
	return innertube.ParseWatchPage(body)
}

func (s *InnertubeStrategy) decipherer(ctx context.Context, watch *innertube.WatchConfig, log zerolog.Logger) *playerjs.Decipherer {
	if s.Player == nil || watch.PlayerURL == "" {
		return nil
	}
	js, err := s.Player.GetPlayerJS(ctx, watch.PlayerURL)
	if err != nil {
		log.Warn().Err(err).Str("player_url", watch.PlayerURL).Msg("player js unavailable, ciphered formats will be skipped")
		return nil
	}
	if watch.SignatureTimestamp == 0 {
		watch.SignatureTimestamp = innertube.PlayerSignatureTimestamp(js)
	}
	return playerjs.NewDecipherer(js)
}

func (s *InnertubeStrategy) extraction(resp *innertube.PlayerResponse, profile innertube.ClientProfile, d *playerjs.Decipherer, log zerolog.Logger) *Extraction {
	details := resp.VideoDetails
	micro := resp.Microformat.Renderer

	ext := &Extraction{
		Title:           firstNonEmpty(details.Title, micro.Title.SimpleText),
		DurationSeconds: firstNonEmpty(details.LengthSeconds, micro.LengthSeconds),
		Thumbnail:       firstNonEmpty(details.Thumbnail.Best(), micro.Thumbnail.Best()),
		Author:          firstNonEmpty(details.Author, micro.OwnerChannelName),
	}
	if date := firstNonEmpty(micro.PublishDate, micro.UploadDate); date != "" {
		if t, err := dateparse.ParseAny(date); err == nil {
			ext.UploadDate = t
		}
	}

	resolved := 0
	for _, raw := range formats.FromPlayerResponse(resp) {
		f := raw.(formats.Streaming).Format
		if d != nil && needsPlayerJS(f, profile) {
			u, err := d.DecodeURL(f.URL, firstNonEmpty(f.SignatureCipher, f.Cipher))
			if err != nil {
				log.Debug().Err(err).Int("itag", f.Itag).Msg("format url could not be deciphered")
			} else {
				f.URL = u
				resolved++
			}
		}
		ext.Raw = append(ext.Raw, formats.Streaming{Format: f})
	}
	log.Debug().Str("client", profile.ID).Int("deciphered", resolved).Int("formats", len(ext.Raw)).Msg("player response accepted")
	return ext
}

func needsPlayerJS(f innertube.Format, profile innertube.ClientProfile) bool {
	if f.Ciphered() {
		return true
	}
	return profile.RequireJSPlayer && strings.Contains(f.URL, "n=")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

var _ Strategy = (*InnertubeStrategy)(nil)

func (s *InnertubeStrategy) String() string {
	ids := make([]string, 0, len(s.Profiles))
	for _, p := range s.Profiles {
		ids = append(ids, p.ID)
	}
	return fmt.Sprintf("innertube(%s)", strings.Join(ids, ","))
}
