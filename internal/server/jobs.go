package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/famomatic/tubemux/internal/formats"
	"github.com/famomatic/tubemux/internal/jobs"
	"github.com/famomatic/tubemux/internal/mux"
	"github.com/famomatic/tubemux/internal/types"
)

// createJobRequest names variants of a fresh lookup by format expression or
// by itag, or spells them out in full. Format wins over the itags.
type createJobRequest struct {
	URL       string `json:"url"`
	Format    string `json:"format"`
	VideoItag int    `json:"videoItag"`
	AudioItag int    `json:"audioItag"`

	Title           string           `json:"title"`
	Author          string           `json:"author"`
	DurationSeconds string           `json:"durationSeconds"`
	Video           *formats.Variant `json:"video"`
	Audio           *formats.Variant `json:"audio"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var body createJobRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, r, fmt.Errorf("%w: decode body: %w", types.ErrInvalidInput, err))
		return
	}

	var req mux.Request
	switch {
	case body.URL != "":
		info, err := s.opts.Provider.Lookup(r.Context(), body.URL)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if body.Format != "" {
			req, err = mux.RequestFromFormat(info, body.Format)
		} else {
			req, err = mux.RequestFromInfo(info, body.VideoItag, body.AudioItag)
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
	case body.Video != nil && body.Audio != nil:
		req = mux.Request{
			Title:           body.Title,
			Author:          body.Author,
			DurationSeconds: body.DurationSeconds,
			Video:           *body.Video,
			Audio:           *body.Audio,
		}
	default:
		writeError(w, r, fmt.Errorf("%w: either url or video and audio are required", types.ErrInvalidInput))
		return
	}
	req.Locale = locale(r)

	job, err := s.opts.Pipeline.Start(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	hlog.FromRequest(r).Info().
		Str("job_id", job.ID).
		Int("video_itag", job.Video.Itag).
		Int("audio_itag", job.Audio.Itag).
		Msg("mux job started")
	w.Header().Set("Location", "/jobs/"+job.ID)
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	list := s.opts.Pipeline.Tracker().List()
	if list == nil {
		list = []jobs.Job{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.opts.Pipeline.Tracker().Get(chi.URLParam(r, "id"))
	if !ok {
		writeJobNotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleJobEvents streams job snapshots as server-sent events until the job
// reaches a terminal status or disappears.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tracker := s.opts.Pipeline.Tracker()
	if _, ok := tracker.Get(id); !ok {
		writeJobNotFound(w, r)
		return
	}
	updates, cancel := tracker.Subscribe(id)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)

	ticker := time.NewTicker(s.opts.EventInterval)
	defer ticker.Stop()
	for {
		job, ok := tracker.Get(id)
		if !ok {
			fmt.Fprint(w, "event: error\ndata: job not found\n\n")
			_ = rc.Flush()
			return
		}
		data, _ := json.Marshal(job)
		fmt.Fprintf(w, "data: %s\n\n", data)
		if err := rc.Flush(); err != nil {
			return
		}
		if job.Status.Terminal() {
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		case <-updates:
		}
	}
}

func (s *Server) handleJobFile(w http.ResponseWriter, r *http.Request) {
	job, ok := s.opts.Pipeline.Tracker().Get(chi.URLParam(r, "id"))
	if !ok {
		writeJobNotFound(w, r)
		return
	}
	if job.Status != jobs.StatusCompleted || job.OutputPath == "" {
		writeJSON(w, http.StatusConflict, errorBody{Error: types.Localize(locale(r), types.MsgJobNotReady), Code: "not_ready"})
		return
	}

	f, err := s.opts.Files.Open(job.OutputPath)
	if err != nil {
		writeJobNotFound(w, r)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeError(w, r, err)
		return
	}
	name := filepath.Base(job.OutputPath)
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", contentDisposition(name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func writeJobNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody{
		Error: types.Localize(locale(r), types.MsgJobNotFound),
		Code:  string(types.KindNotFound),
	})
}
