// Package mux pairs a video-only stream with an audio-only stream and
// remuxes them into one MP4 file, reporting progress into a jobs.Tracker.
package mux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"github.com/famomatic/tubemux/internal/formats"
	"github.com/famomatic/tubemux/internal/jobs"
	"github.com/famomatic/tubemux/internal/relay"
	"github.com/famomatic/tubemux/internal/transcoder"
	"github.com/famomatic/tubemux/internal/types"
)

const (
	DefaultRetries      = 2
	DefaultRetryBackoff = time.Second
	DefaultSuccessTTL   = 10 * time.Second
	DefaultErrorTTL     = 30 * time.Second
)

// Fetcher opens or fully reads a media URL; *relay.Relay and *relay.Client
// implement it.
type Fetcher interface {
	Open(ctx context.Context, url string) (*relay.Stream, error)
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Config wires a Pipeline. Zero durations and counts take the defaults.
type Config struct {
	Fetcher      Fetcher
	Transcoder   transcoder.Transcoder
	Sink         Sink
	Tracker      *jobs.Tracker
	Retries      int
	RetryBackoff time.Duration
	SuccessTTL   time.Duration
	ErrorTTL     time.Duration
	// Locale is used for job error messages when a request names none.
	Locale language.Tag
	Logger zerolog.Logger
	NewID  func() string
}

// Request describes one mux job.
type Request struct {
	Title           string
	Author          string
	DurationSeconds string
	Video           formats.Variant
	Audio           formats.Variant
	Locale          language.Tag
}

// Pipeline runs mux jobs. The transcoder section is serialized across jobs.
type Pipeline struct {
	cfg     Config
	log     zerolog.Logger
	mu      sync.Mutex
	locales sync.Map
	wg      sync.WaitGroup
}

func New(cfg Config) *Pipeline {
	if cfg.Retries <= 0 {
		cfg.Retries = DefaultRetries
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	if cfg.SuccessTTL <= 0 {
		cfg.SuccessTTL = DefaultSuccessTTL
	}
	if cfg.ErrorTTL <= 0 {
		cfg.ErrorTTL = DefaultErrorTTL
	}
	if cfg.Locale == language.Und {
		cfg.Locale = types.Locales[0]
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Tracker == nil {
		cfg.Tracker = jobs.NewTracker(nil, cfg.Logger)
	}
	return &Pipeline{cfg: cfg, log: cfg.Logger}
}

// Tracker returns the tracker jobs are reported into.
func (p *Pipeline) Tracker() *jobs.Tracker { return p.cfg.Tracker }

// Create validates req and registers a new job without running it.
func (p *Pipeline) Create(req Request) (jobs.Job, error) {
	if err := validate(req); err != nil {
		return jobs.Job{}, err
	}
	job := jobs.Job{
		ID:             p.cfg.NewID(),
		Title:          req.Title,
		Author:         req.Author,
		Video:          req.Video,
		Audio:          req.Audio,
		Status:         jobs.StatusPreparing,
		OutputFileName: OutputFileName(req.Title, req.Video.Quality),
	}
	if req.Locale != language.Und {
		p.locales.Store(job.ID, req.Locale)
	}
	p.cfg.Tracker.Create(job)
	return job, nil
}

// Start creates the job and runs it in its own goroutine, detached from any
// request context.
func (p *Pipeline) Start(req Request) (jobs.Job, error) {
	job, err := p.Create(req)
	if err != nil {
		return jobs.Job{}, err
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		_ = p.Run(context.Background(), job)
	}()
	return job, nil
}

// Wait blocks until every job started with Start has finished.
func (p *Pipeline) Wait() { p.wg.Wait() }

// Run executes the job's state machine and returns the failure, if any,
// after it has been recorded on the job.
func (p *Pipeline) Run(ctx context.Context, job jobs.Job) error {
	ctx = types.WithJobID(ctx, job.ID)
	log := p.log.With().Str("job_id", job.ID).Logger()
	names := namesFor(job.ID, job.Video.Container, job.Audio.Container)

	if err := p.run(ctx, job, names, log); err != nil {
		p.fail(ctx, job, err, log)
		return err
	}
	return nil
}

func (p *Pipeline) run(ctx context.Context, job jobs.Job, names workspaceNames, log zerolog.Logger) error {
	t := p.cfg.Tracker
	id := job.ID

	t.AppendLog(id, fmt.Sprintf("Starting mux: %s + audio", job.Video.Quality))
	t.AppendLog(id, fmt.Sprintf("Video: %s (%s)", job.Video.Container, sizeOrUnknown(job.Video.FileSize)))
	t.AppendLog(id, fmt.Sprintf("Audio: %s (%s)", job.Audio.Container, sizeOrUnknown(job.Audio.FileSize)))
	t.AppendLog(id, "Output file: "+job.OutputFileName)

	t.Update(id, jobs.Patch{Status: jobs.Ptr(jobs.StatusDownloading), Progress: jobs.Ptr(5)})
	video, err := p.download(ctx, id, job.Video.URL, types.MsgStreamVideo, log)
	if err != nil {
		return err
	}
	t.Update(id, jobs.Patch{Progress: jobs.Ptr(25)})

	audio, err := p.download(ctx, id, job.Audio.URL, types.MsgStreamAudio, log)
	if err != nil {
		return err
	}
	t.AppendLog(id, "Preparing to process")
	t.Update(id, jobs.Patch{Status: jobs.Ptr(jobs.StatusProcessing), Progress: jobs.Ptr(45)})

	output, err := p.transcode(ctx, job, names, video, audio, log)
	video, audio = nil, nil
	if err != nil {
		return err
	}

	t.AppendLog(id, fmt.Sprintf("Final file generated: %s", megabytes(len(output))))
	path, err := p.cfg.Sink.Deliver(ctx, job.OutputFileName, output)
	output = nil
	if err != nil {
		return fmt.Errorf("deliver output: %w", err)
	}
	p.deleteAll(ctx, []string{names.video, names.audio, names.output}, log)
	t.AppendLog(id, "Temporary files removed")

	t.AppendLog(id, "Mux completed successfully")
	t.AppendLog(id, "Saved: "+path)
	t.Update(id, jobs.Patch{
		Status:     jobs.Ptr(jobs.StatusCompleted),
		Progress:   jobs.Ptr(100),
		OutputPath: jobs.Ptr(path),
	})
	t.ScheduleRemoval(id, p.cfg.SuccessTTL)
	p.locales.Delete(id)
	log.Info().Str("output", path).Msg("mux job completed")
	return nil
}

// download fetches one stream with Retries attempts, waiting
// attempt × RetryBackoff between them.
func (p *Pipeline) download(ctx context.Context, id, url, stream string, log zerolog.Logger) ([]byte, error) {
	t := p.cfg.Tracker
	var lastErr error
	for attempt := 1; attempt <= p.cfg.Retries; attempt++ {
		t.AppendLog(id, fmt.Sprintf("Downloading %s (attempt %d/%d)", stream, attempt, p.cfg.Retries))
		data, err := p.cfg.Fetcher.Fetch(ctx, url)
		if err == nil {
			t.AppendLog(id, fmt.Sprintf("%s downloaded: %s", stream, megabytes(len(data))))
			return data, nil
		}
		lastErr = err
		t.AppendLog(id, fmt.Sprintf("Attempt %d failed: %v", attempt, err))
		log.Warn().Err(err).Str("stream", stream).Int("attempt", attempt).Msg("stream download failed")
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < p.cfg.Retries {
			if err := waitBackoff(ctx, time.Duration(attempt)*p.cfg.RetryBackoff); err != nil {
				return nil, err
			}
		}
	}
	return nil, &StreamError{Stream: stream, Attempts: p.cfg.Retries, Err: lastErr}
}

func (p *Pipeline) transcode(ctx context.Context, job jobs.Job, names workspaceNames, video, audio []byte, log zerolog.Logger) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t := p.cfg.Tracker
	id := job.ID
	tc := p.cfg.Transcoder

	t.AppendLog(id, "Loading files into the transcoder")
	if err := tc.WriteFile(ctx, names.video, bytes.NewReader(video)); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrTranscode, err)
	}
	if err := tc.WriteFile(ctx, names.audio, bytes.NewReader(audio)); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrTranscode, err)
	}
	t.AppendLog(id, fmt.Sprintf("Files loaded: %s and %s", names.video, names.audio))

	args := transcoder.WithMetadata(
		transcoder.RemuxArgs(names.video, names.audio, names.output),
		types.Metadata{Title: job.Title, Artist: job.Author},
	)
	t.AppendLog(id, "Combining video and audio")
	t.Update(id, jobs.Patch{Progress: jobs.Ptr(50)})
	t.AppendLog(id, fmt.Sprintf("Running: ffmpeg %s", strings.Join(args, " ")))

	start := time.Now()
	err := tc.Exec(ctx, args, func(fraction float64) {
		if fraction <= 0 {
			return
		}
		t.Update(id, jobs.Patch{Progress: jobs.Ptr(min(50+int(fraction*40), 90))})
	})
	if err != nil {
		if !errors.Is(err, types.ErrTranscode) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", types.ErrTranscode, err)
		}
		return nil, err
	}
	log.Debug().Dur("elapsed", time.Since(start)).Msg("remux finished")

	t.AppendLog(id, "Finalizing file")
	t.Update(id, jobs.Patch{Progress: jobs.Ptr(90)})
	out, err := tc.ReadFile(ctx, names.output)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrTranscode, err)
	}
	return out, nil
}

func (p *Pipeline) fail(ctx context.Context, job jobs.Job, err error, log zerolog.Logger) {
	tag := p.cfg.Locale
	if v, ok := p.locales.LoadAndDelete(job.ID); ok {
		tag = v.(language.Tag)
	}
	kind := errorKind(err)
	msg := userMessage(err, tag)

	log.Error().Err(err).Str("kind", string(kind)).Msg("mux job failed")
	p.cfg.Tracker.AppendLog(job.ID, "Error: "+msg)
	p.cfg.Tracker.Update(job.ID, jobs.Patch{
		Status:    jobs.Ptr(jobs.StatusError),
		Error:     jobs.Ptr(msg),
		ErrorKind: jobs.Ptr(kind),
	})

	cleanupCtx := context.WithoutCancel(ctx)
	p.mu.Lock()
	p.deleteAll(cleanupCtx, allNames(job.ID), log)
	p.mu.Unlock()
	p.cfg.Tracker.ScheduleRemoval(job.ID, p.cfg.ErrorTTL)
}

func (p *Pipeline) deleteAll(ctx context.Context, names []string, log zerolog.Logger) {
	for _, name := range names {
		if err := p.cfg.Transcoder.DeleteFile(ctx, name); err != nil {
			log.Debug().Err(err).Str("name", name).Msg("workspace cleanup failed")
		}
	}
}

func validate(req Request) error {
	switch {
	case req.Video.URL == "":
		return fmt.Errorf("%w: video variant has no url", types.ErrInvalidInput)
	case !req.Video.HasVideo:
		return fmt.Errorf("%w: itag %d has no video track", types.ErrInvalidInput, req.Video.Itag)
	case req.Audio.URL == "":
		return fmt.Errorf("%w: audio variant has no url", types.ErrInvalidInput)
	case !req.Audio.HasAudio:
		return fmt.Errorf("%w: itag %d has no audio track", types.ErrInvalidInput, req.Audio.Itag)
	}
	return nil
}

func waitBackoff(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func sizeOrUnknown(size string) string {
	if size == "" {
		return "unknown size"
	}
	return size
}

func megabytes(n int) string {
	return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
}

