// Package relay streams upstream media bytes on behalf of a browser that
// cannot fetch them directly.
package relay

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const sniffLen = 512

// Stream is an open upstream response. The caller must close Body.
type Stream struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	AcceptRanges  string
	CacheControl  string
}

// Config configures a Relay.
type Config struct {
	HTTPClient *http.Client
	UserAgent  string
	// Headers are added to every upstream request, replacing the defaults.
	Headers http.Header
	Logger  zerolog.Logger
	Now     func() time.Time
}

// Relay opens upstream media URLs with browser-like headers.
type Relay struct {
	client    *http.Client
	userAgent string
	headers   http.Header
	log       zerolog.Logger
	now       func() time.Time
}

func New(cfg Config) *Relay {
	r := &Relay{
		client:    cfg.HTTPClient,
		userAgent: cfg.UserAgent,
		headers:   cloneHeader(cfg.Headers),
		log:       cfg.Logger,
		now:       cfg.Now,
	}
	if r.client == nil {
		r.client = http.DefaultClient
	}
	if r.userAgent == "" {
		r.userAgent = defaultUserAgent
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Open starts the upstream transfer. HTML answers, which upstream sends
// instead of media when it blocks a request, are rejected with
// CodeNonMediaContent.
func (r *Relay) Open(ctx context.Context, upstreamURL string) (*Stream, error) {
	u, err := parseUpstream(upstreamURL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &Error{Code: CodeInvalidURL, Message: "invalid upstream url", Err: err}
	}
	applyBrowserHeaders(req, r.userAgent, r.headers)

	log := r.log.With().Str("host", u.Hostname()).Str("itag", u.Query().Get("itag")).Logger()
	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn().Err(err).Msg("relay upstream request failed")
		return nil, &Error{Code: CodeTransport, Message: "upstream request failed", Err: err}
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		rerr := statusError(resp.StatusCode, parseRetryAfter(resp.Header.Get("Retry-After"), r.now()))
		log.Warn().Int("status", resp.StatusCode).Str("code", rerr.Code).Msg("relay upstream rejected request")
		return nil, rerr
	}

	contentType := resp.Header.Get("Content-Type")
	br := bufio.NewReaderSize(resp.Body, sniffLen)
	head, _ := br.Peek(sniffLen)
	if isHTML(contentType, head) {
		resp.Body.Close()
		log.Warn().Str("content_type", contentType).Msg("relay upstream returned html instead of media")
		return nil, &Error{Code: CodeNonMediaContent, StatusCode: resp.StatusCode, Message: "upstream returned a web page instead of media"}
	}

	length := resp.ContentLength
	if length < 0 {
		length = 0
	}
	log.Debug().Int("status", resp.StatusCode).Int64("content_length", length).Msg("relay stream opened")
	return &Stream{
		Body:          readCloser{Reader: br, Closer: resp.Body},
		ContentType:   resolveContentType(contentType, u),
		ContentLength: length,
		AcceptRanges:  resp.Header.Get("Accept-Ranges"),
		CacheControl:  resp.Header.Get("Cache-Control"),
	}, nil
}

// Fetch reads the whole upstream body.
func (r *Relay) Fetch(ctx context.Context, upstreamURL string) ([]byte, error) {
	s, err := r.Open(ctx, upstreamURL)
	if err != nil {
		return nil, err
	}
	defer s.Body.Close()
	body, err := io.ReadAll(s.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Code: CodeTransport, Message: "upstream body read failed", Err: err}
	}
	return body, nil
}

func parseUpstream(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &Error{Code: CodeInvalidURL, Message: "missing url"}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &Error{Code: CodeInvalidURL, Message: "invalid upstream url", Err: err}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &Error{Code: CodeInvalidURL, Message: "upstream url must be absolute http(s)"}
	}
	return u, nil
}

func isHTML(contentType string, head []byte) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && (mt == "text/html" || mt == "application/xhtml+xml") {
		return true
	}
	trimmed := bytes.ToLower(bytes.TrimSpace(head))
	return bytes.HasPrefix(trimmed, []byte("<!doctype html")) || bytes.HasPrefix(trimmed, []byte("<html"))
}

// resolveContentType falls back to the mime= query parameter of googlevideo
// URLs when upstream does not name a media type.
func resolveContentType(contentType string, u *url.URL) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err == nil && mt != "application/octet-stream" && mt != "binary/octet-stream" {
		return contentType
	}
	if m := u.Query().Get("mime"); strings.HasPrefix(m, "video/") || strings.HasPrefix(m, "audio/") {
		return m
	}
	if contentType == "" {
		return "application/octet-stream"
	}
	return contentType
}

type readCloser struct {
	io.Reader
	io.Closer
}
