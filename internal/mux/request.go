package mux

import (
	"fmt"

	"github.com/famomatic/tubemux/internal/catalog"
	"github.com/famomatic/tubemux/internal/formats"
	"github.com/famomatic/tubemux/internal/provider"
	"github.com/famomatic/tubemux/internal/types"
)

// RequestFromInfo picks the variants named by itag out of a lookup result.
// A zero audioItag selects the best audio-only variant.
func RequestFromInfo(info *provider.VideoInfo, videoItag, audioItag int) (Request, error) {
	cat, err := catalog.Build(info.Variants)
	if err != nil {
		return Request{}, err
	}
	video, ok := cat.Find(videoItag)
	if !ok {
		return Request{}, fmt.Errorf("%w: video itag %d not offered", types.ErrInvalidInput, videoItag)
	}
	if !video.HasVideo {
		return Request{}, fmt.Errorf("%w: itag %d has no video track", types.ErrInvalidInput, videoItag)
	}

	var audio formats.Variant
	if audioItag > 0 {
		audio, ok = cat.Find(audioItag)
		if !ok {
			return Request{}, fmt.Errorf("%w: audio itag %d not offered", types.ErrInvalidInput, audioItag)
		}
	} else {
		audio, ok = cat.BestAudio()
		if !ok {
			return Request{}, fmt.Errorf("%w: no audio-only variant", types.ErrNoFormatsAvailable)
		}
	}
	if !audio.HasAudio {
		return Request{}, fmt.Errorf("%w: itag %d has no audio track", types.ErrInvalidInput, audio.Itag)
	}
	return newRequest(info, video, audio), nil
}

// RequestFromFormat picks the variants matching a format expression such as
// "bv[height<=1080]+ba/best".
func RequestFromFormat(info *provider.VideoInfo, expr string) (Request, error) {
	sel, err := catalog.ParseSelector(expr)
	if err != nil {
		return Request{}, err
	}
	cat, err := catalog.Build(info.Variants)
	if err != nil {
		return Request{}, err
	}
	video, audio, err := cat.Select(sel)
	if err != nil {
		return Request{}, err
	}
	return newRequest(info, video, audio), nil
}

func newRequest(info *provider.VideoInfo, video, audio formats.Variant) Request {
	return Request{
		Title:           info.Title,
		Author:          info.Author,
		DurationSeconds: info.DurationSeconds,
		Video:           video,
		Audio:           audio,
	}
}
