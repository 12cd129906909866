package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/hlog"

	"github.com/famomatic/tubemux/internal/catalog"
	"github.com/famomatic/tubemux/internal/formats"
	"github.com/famomatic/tubemux/internal/relay"
	"github.com/famomatic/tubemux/internal/types"
)

const maxBodyBytes = 1 << 20

type lookupRequest struct {
	URL string `json:"url"`
}

type catalogFormat struct {
	formats.Variant
	Category string `json:"category"`
}

type lookupResponse struct {
	VideoID   string            `json:"videoId"`
	Title     string            `json:"title"`
	Duration  string            `json:"duration"`
	Thumbnail string            `json:"thumbnail"`
	Author    string            `json:"author,omitempty"`
	Source    string            `json:"source"`
	Formats   []catalogFormat   `json:"formats"`
	Muxed     []formats.Variant `json:"muxed"`
	VideoOnly []formats.Variant `json:"videoOnly"`
	AudioOnly []formats.Variant `json:"audioOnly"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.opts.Ready != nil {
		if err := s.opts.Ready(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	var req lookupRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: decode body: %w", types.ErrInvalidInput, err))
		return
	}
	info, err := s.opts.Provider.Lookup(r.Context(), req.URL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cat, err := catalog.Build(info.Variants)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := lookupResponse{
		VideoID:   info.VideoID,
		Title:     info.Title,
		Duration:  info.DurationSeconds,
		Thumbnail: info.Thumbnail,
		Author:    info.Author,
		Source:    info.Source,
		Formats:   make([]catalogFormat, 0, len(cat.Entries)),
		Muxed:     nonNil(cat.Muxed),
		VideoOnly: nonNil(cat.VideoOnly),
		AudioOnly: nonNil(cat.AudioOnly),
	}
	for _, e := range cat.Entries {
		resp.Formats = append(resp.Formats, catalogFormat{Variant: e.Variant, Category: e.Category.String()})
	}
	hlog.FromRequest(r).Info().
		Str("video_id", info.VideoID).
		Str("source", info.Source).
		Int("formats", len(resp.Formats)).
		Msg("lookup served")
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRelay(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target := q.Get("url")
	if target == "" {
		writeError(w, r, &relay.Error{Code: relay.CodeInvalidURL, Message: "missing url parameter"})
		return
	}

	stream, err := s.opts.Relay.Open(r.Context(), target)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer stream.Body.Close()

	h := w.Header()
	h.Set("Content-Type", stream.ContentType)
	if stream.ContentLength > 0 {
		h.Set("Content-Length", strconv.FormatInt(stream.ContentLength, 10))
	}
	if name := q.Get("filename"); name != "" {
		h.Set("Content-Disposition", contentDisposition(name))
	}
	if stream.AcceptRanges != "" {
		h.Set("Accept-Ranges", stream.AcceptRanges)
	}
	if stream.CacheControl != "" {
		h.Set("Cache-Control", stream.CacheControl)
	}
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, stream.Body)
	if err != nil && r.Context().Err() == nil {
		hlog.FromRequest(r).Warn().Err(err).Int64("bytes", n).Msg("relay copy interrupted")
	}
}

func nonNil(v []formats.Variant) []formats.Variant {
	if v == nil {
		return []formats.Variant{}
	}
	return v
}
