package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog"

	"github.com/famomatic/tubemux/internal/formats"
	"github.com/famomatic/tubemux/internal/innertube"
	"github.com/famomatic/tubemux/internal/types"
)

// VideoClient is the part of the kkdai/youtube client the library strategy uses.
type VideoClient interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetStreamURLContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (string, error)
}

// LibraryStrategy extracts through github.com/kkdai/youtube/v2.
type LibraryStrategy struct {
	Client VideoClient
	Logger zerolog.Logger
}

// NewLibraryStrategy builds the strategy around a kkdai client sharing httpClient.
func NewLibraryStrategy(httpClient *http.Client, logger zerolog.Logger) *LibraryStrategy {
	return &LibraryStrategy{
		Client: &youtube.Client{HTTPClient: httpClient},
		Logger: logger,
	}
}

func (s *LibraryStrategy) Name() string { return "library" }

func (s *LibraryStrategy) Extract(ctx context.Context, videoID string) (*Extraction, error) {
	video, err := s.Client.GetVideoContext(ctx, WatchURL(videoID))
	if err != nil {
		return nil, classifyLibrary(err)
	}

	ext := &Extraction{
		Title:           video.Title,
		DurationSeconds: strconv.Itoa(int(video.Duration.Seconds())),
		Author:          video.Author,
		UploadDate:      video.PublishDate,
	}
	if n := len(video.Thumbnails); n > 0 {
		best := video.Thumbnails[0]
		for _, t := range video.Thumbnails[1:] {
			if t.Width > best.Width {
				best = t
			}
		}
		ext.Thumbnail = best.URL
	}

	for i := range video.Formats {
		f := &video.Formats[i]
		rec := formats.Listed{
			Itag:          f.ItagNo,
			URL:           f.URL,
			Cipher:        f.Cipher,
			MimeType:      f.MimeType,
			QualityLabel:  f.QualityLabel,
			Quality:       f.Quality,
			ContentLength: f.ContentLength,
			Bitrate:       f.Bitrate,
			AudioQuality:  f.AudioQuality,
			AudioChannels: f.AudioChannels,
			Width:         f.Width,
			Height:        f.Height,
			FPS:           f.FPS,
		}
		if f.AudioChannels > 0 || f.AudioQuality != "" {
			rec.AudioBitrate = f.AverageBitrate
			if rec.AudioBitrate == 0 {
				rec.AudioBitrate = f.Bitrate
			}
		}
		if rec.URL == "" && rec.Cipher != "" {
			u, err := s.Client.GetStreamURLContext(ctx, video, f)
			if err != nil {
				s.Logger.Debug().Err(err).Str("video_id", videoID).Int("itag", f.ItagNo).Msg("library could not resolve cipher")
			} else {
				rec.URL = u
			}
		}
		ext.Raw = append(ext.Raw, rec)
	}
	return ext, nil
}

func classifyLibrary(err error) error {
	switch {
	case errors.Is(err, youtube.ErrVideoPrivate):
		return fmt.Errorf("%w: %w", types.ErrNotFound, err)
	case errors.Is(err, youtube.ErrLoginRequired), errors.Is(err, youtube.ErrNotPlayableInEmbed):
		return fmt.Errorf("%w: %w", types.ErrRestricted, err)
	case errors.Is(err, youtube.ErrInvalidCharactersInVideoID), errors.Is(err, youtube.ErrVideoIDMinLength):
		return fmt.Errorf("%w: %w", types.ErrInvalidInput, err)
	}

	var statusErr *youtube.ErrPlayabiltyStatus
	if errors.As(err, &statusErr) {
		view := &innertube.PlayabilityError{Client: "library", Status: statusErr.Status, Reason: statusErr.Reason}
		if sentinel := playabilitySentinel(view); sentinel != nil {
			return fmt.Errorf("%w: %w", sentinel, err)
		}
		return err
	}
	var codeErr youtube.ErrUnexpectedStatusCode
	if errors.As(err, &codeErr) {
		if sentinel := statusSentinel(int(codeErr)); sentinel != nil {
			return fmt.Errorf("%w: %w", sentinel, err)
		}
		return err
	}
	return classify(err)
}
