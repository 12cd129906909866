package types

import (
	"context"
	"errors"
)

var (
	// ErrInvalidInput indicates a missing or malformed video URL.
	ErrInvalidInput = errors.New("invalid input")

	// ErrBlocked indicates the upstream answered with an anti-automation or rate-limit response.
	ErrBlocked = errors.New("blocked by upstream")

	// ErrNotFound indicates that the video is unavailable (deleted, private, etc.).
	ErrNotFound = errors.New("video unavailable")

	// ErrRestricted indicates that the video is age restricted or needs a signed-in account.
	ErrRestricted = errors.New("video restricted")

	// ErrNoFormatsAvailable indicates the lookup succeeded but nothing downloadable was left.
	ErrNoFormatsAvailable = errors.New("no formats available")

	// ErrUpstreamTransfer indicates a media fetch failed after its retry budget.
	ErrUpstreamTransfer = errors.New("upstream transfer failed")

	// ErrTranscode indicates the transcoder rejected the input or the command.
	ErrTranscode = errors.New("transcode failed")
)

// Kind is the user-facing failure category of an error.
type Kind string

const (
	KindNone               Kind = ""
	KindInvalidInput       Kind = "invalid_input"
	KindBlocked            Kind = "blocked"
	KindNotFound           Kind = "not_found"
	KindRestricted         Kind = "restricted"
	KindNoFormatsAvailable Kind = "no_formats"
	KindUpstreamTransfer   Kind = "upstream_transfer"
	KindTranscode          Kind = "transcode"
	KindTimeout            Kind = "timeout"
	KindInternal           Kind = "internal"
)

// KindOf classifies err by the sentinel it wraps.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrRestricted):
		return KindRestricted
	case errors.Is(err, ErrBlocked):
		return KindBlocked
	case errors.Is(err, ErrNoFormatsAvailable):
		return KindNoFormatsAvailable
	case errors.Is(err, ErrUpstreamTransfer):
		return KindUpstreamTransfer
	case errors.Is(err, ErrTranscode):
		return KindTranscode
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}
	return KindInternal
}
