package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/hlog"
	"golang.org/x/text/language"

	"github.com/famomatic/tubemux/internal/relay"
	"github.com/famomatic/tubemux/internal/types"
)

// errorBody is the {error, code} shape of every failed response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func locale(r *http.Request) language.Tag {
	return types.MatchLocale(r.Header.Get("Accept-Language"))
}

// statusFor maps a failure kind to the HTTP status of /lookup and /jobs.
func statusFor(kind types.Kind) int {
	switch kind {
	case types.KindInvalidInput:
		return http.StatusBadRequest
	case types.KindNotFound, types.KindNoFormatsAvailable:
		return http.StatusNotFound
	case types.KindRestricted:
		return http.StatusForbidden
	case types.KindBlocked:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// writeError renders err as a localized {error, code} body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := types.KindOf(err)
	status := statusFor(kind)
	code := string(kind)

	var rerr *relay.Error
	if errors.As(err, &rerr) {
		status = rerr.HTTPStatus()
		code = rerr.Code
		if rerr.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(rerr.RetryAfter.Seconds())))
		}
	}

	ev := hlog.FromRequest(r).Warn()
	if status >= http.StatusInternalServerError {
		ev = hlog.FromRequest(r).Error()
	}
	ev.Err(err).Str("code", code).Int("status", status).Msg("request failed")

	writeJSON(w, status, errorBody{Error: types.Message(kind, locale(r)), Code: code})
}

// contentDisposition builds an attachment header for a client-supplied name.
func contentDisposition(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '"', '\\', '/', '\r', '\n':
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" {
		name = "video.mp4"
	}
	return `attachment; filename="` + name + `"`
}
