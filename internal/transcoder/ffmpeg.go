package transcoder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alessio/shellescape"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/famomatic/tubemux/internal/types"
)

const stderrTail = 4 << 10

var stderrDurationPattern = regexp.MustCompile(`Duration:\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)

// FFmpegConfig configures FFmpeg.
type FFmpegConfig struct {
	// FFmpegPath and FFprobePath default to the binaries on PATH.
	FFmpegPath  string
	FFprobePath string
	// Dir is the on-disk workspace directory. It is created when missing.
	Dir    string
	Logger zerolog.Logger
}

// FFmpeg runs a local ffmpeg binary against an on-disk workspace.
type FFmpeg struct {
	Workspace
	ffmpeg  string
	ffprobe string
	dir     string
	log     zerolog.Logger
}

// NewFFmpeg prepares the workspace directory.
func NewFFmpeg(cfg FFmpegConfig) (*FFmpeg, error) {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.Dir == "" {
		dir, err := os.MkdirTemp("", "tubemux-")
		if err != nil {
			return nil, fmt.Errorf("create transcoder workspace: %w", err)
		}
		cfg.Dir = dir
	}
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcoder workspace: %w", err)
	}
	return &FFmpeg{
		Workspace: Workspace{Fs: afero.NewBasePathFs(osFs, cfg.Dir)},
		ffmpeg:    cfg.FFmpegPath,
		ffprobe:   cfg.FFprobePath,
		dir:       cfg.Dir,
		log:       cfg.Logger,
	}, nil
}

// Dir returns the workspace directory.
func (f *FFmpeg) Dir() string { return f.dir }

// Available reports whether the ffmpeg binary can be found.
func (f *FFmpeg) Available() bool {
	_, err := exec.LookPath(f.ffmpeg)
	return err == nil
}

// Exec runs ffmpeg with args inside the workspace directory. Progress is
// derived from -progress output against the first input's duration.
func (f *FFmpeg) Exec(ctx context.Context, args []string, onProgress ProgressFunc) error {
	log := f.log
	if id, ok := types.JobIDFromContext(ctx); ok {
		log = log.With().Str("job_id", id).Logger()
	}

	var total time.Duration
	if inputs := InputNames(args); len(inputs) > 0 {
		d, err := f.Duration(ctx, inputs[0])
		if err != nil {
			log.Debug().Err(err).Str("input", inputs[0]).Msg("ffprobe failed, duration taken from ffmpeg output")
		}
		total = d
	}

	full := append([]string{"-hide_banner", "-nostdin", "-progress", "pipe:1", "-nostats"}, args...)
	cmd := exec.CommandContext(ctx, f.ffmpeg, full...)
	cmd.Dir = f.dir
	stderr := &tailBuffer{max: stderrTail}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrTranscode, err)
	}

	log.Debug().Str("cmd", shellescape.QuoteCommand(append([]string{f.ffmpeg}, full...))).Msg("running ffmpeg")
	start := time.Now()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start ffmpeg: %w", types.ErrTranscode, err)
	}
	readProgress(stdout, func() time.Duration {
		if total > 0 {
			return total
		}
		return stderr.duration()
	}, onProgress)

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: ffmpeg: %w: %s", types.ErrTranscode, err, lastLine(stderr.String()))
	}
	log.Debug().Dur("elapsed", time.Since(start)).Msg("ffmpeg finished")
	return nil
}

// Duration returns the container duration of a workspace entry.
func (f *FFmpeg) Duration(ctx context.Context, name string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, f.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		name)
	cmd.Dir = f.dir
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", name, err)
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: parse duration: %w", name, err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// readProgress consumes ffmpeg -progress key=value blocks.
func readProgress(r io.Reader, total func() time.Duration, onProgress ProgressFunc) {
	sc := bufio.NewScanner(r)
	last := -1.0
	report := func(v float64) {
		if onProgress == nil || v <= last {
			return
		}
		last = v
		onProgress(v)
	}
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms":
			// ffmpeg reports microseconds under both keys.
			us, err := strconv.ParseInt(value, 10, 64)
			if err != nil || us < 0 {
				continue
			}
			d := total()
			if d <= 0 {
				continue
			}
			report(min(float64(us)/float64(d.Microseconds()), 1))
		case "progress":
			if value == "end" {
				report(1)
			}
		}
	}
	_, _ = io.Copy(io.Discard, r)
}

// tailBuffer keeps the last max bytes written and remembers the first
// "Duration:" ffmpeg prints.
type tailBuffer struct {
	mu   sync.Mutex
	max  int
	buf  []byte
	dur  time.Duration
	seen bool
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.seen {
		if m := stderrDurationPattern.FindSubmatch(p); m != nil {
			h, _ := strconv.Atoi(string(m[1]))
			mnt, _ := strconv.Atoi(string(m[2]))
			s, _ := strconv.ParseFloat(string(m[3]), 64)
			b.dur = time.Duration(h)*time.Hour + time.Duration(mnt)*time.Minute + time.Duration(s*float64(time.Second))
			b.seen = true
		}
	}
	b.buf = append(b.buf, p...)
	if len(b.buf) > b.max {
		b.buf = b.buf[len(b.buf)-b.max:]
	}
	return len(p), nil
}

func (b *tailBuffer) duration() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dur
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return "no output"
}

var _ Transcoder = (*FFmpeg)(nil)
