package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/famomatic/tubemux/internal/innertube"
	"github.com/famomatic/tubemux/internal/types"
)

// Attempt captures one failed strategy (or client) attempt.
type Attempt struct {
	Strategy string
	Err      error
}

// ChainError is returned when every strategy failed.
type ChainError struct {
	VideoID  string
	Attempts []Attempt
}

func (e *ChainError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("no strategy available for %s", e.VideoID)
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.Strategy+": "+a.Err.Error())
	}
	return fmt.Sprintf("all strategies failed for %s: %s", e.VideoID, strings.Join(parts, "; "))
}

// Unwrap returns the most significant attempt error: an authoritative
// unavailable or restricted answer beats a block, which beats anything else.
func (e *ChainError) Unwrap() error {
	for _, target := range []error{types.ErrNotFound, types.ErrRestricted, types.ErrBlocked} {
		for _, a := range e.Attempts {
			if errors.Is(a.Err, target) {
				return a.Err
			}
		}
	}
	if len(e.Attempts) > 0 {
		return e.Attempts[len(e.Attempts)-1].Err
	}
	return nil
}

var blockedMarkers = []string{"SIGN IN TO CONFIRM", "NOT A BOT", "UNUSUAL TRAFFIC", "TOO MANY REQUESTS"}

// classify attaches the matching types sentinel to an upstream error.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{types.ErrNotFound, types.ErrRestricted, types.ErrBlocked, types.ErrInvalidInput} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	var statusErr *innertube.HTTPStatusError
	if errors.As(err, &statusErr) {
		if sentinel := statusSentinel(statusErr.StatusCode); sentinel != nil {
			return fmt.Errorf("%w: %w", sentinel, err)
		}
		return err
	}
	var playErr *innertube.PlayabilityError
	if errors.As(err, &playErr) {
		if sentinel := playabilitySentinel(playErr); sentinel != nil {
			return fmt.Errorf("%w: %w", sentinel, err)
		}
		return err
	}
	upper := strings.ToUpper(err.Error())
	for _, marker := range blockedMarkers {
		if strings.Contains(upper, marker) {
			return fmt.Errorf("%w: %w", types.ErrBlocked, err)
		}
	}
	return err
}

func statusSentinel(code int) error {
	switch code {
	case http.StatusTooManyRequests, http.StatusForbidden:
		return types.ErrBlocked
	case http.StatusNotFound, http.StatusGone:
		return types.ErrNotFound
	case http.StatusUnauthorized:
		return types.ErrRestricted
	}
	return nil
}

func playabilitySentinel(e *innertube.PlayabilityError) error {
	switch {
	case e.IsBlocked():
		return types.ErrBlocked
	case e.IsAgeRestricted():
		return types.ErrRestricted
	case e.IsUnavailable(), e.IsGeoRestricted():
		return types.ErrNotFound
	case e.RequiresLogin():
		return types.ErrRestricted
	}
	return nil
}
