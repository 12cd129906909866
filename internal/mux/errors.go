package mux

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"

	"github.com/famomatic/tubemux/internal/types"
)

// StreamError reports a stream whose download failed on every attempt.
type StreamError struct {
	// Stream is types.MsgStreamVideo or types.MsgStreamAudio.
	Stream   string
	Attempts int
	Err      error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf(types.MsgStreamFailed, e.Stream, e.Attempts, e.Err)
}

// Unwrap keeps the cause visible and marks the failure as a transfer error.
func (e *StreamError) Unwrap() []error {
	return []error{e.Err, types.ErrUpstreamTransfer}
}

// Localized renders the error for a user in locale tag.
func (e *StreamError) Localized(tag language.Tag) string {
	return types.Localize(tag, types.MsgStreamFailed, types.Localize(tag, e.Stream), e.Attempts, e.Err.Error())
}

// errorKind classifies a job failure. An exhausted stream is a transfer
// failure whatever status its last attempt saw.
func errorKind(err error) types.Kind {
	var se *StreamError
	if errors.As(err, &se) {
		return types.KindUpstreamTransfer
	}
	return types.KindOf(err)
}

// userMessage picks the localized text shown on a failed job.
func userMessage(err error, tag language.Tag) string {
	var se *StreamError
	if errors.As(err, &se) {
		return se.Localized(tag)
	}
	return types.Message(types.KindOf(err), tag)
}
