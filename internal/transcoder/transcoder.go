// Package transcoder drives the media transcoder over a file workspace.
package transcoder

import (
	"context"
	"io"

	"github.com/famomatic/tubemux/internal/types"
)

// ProgressFunc receives the completed fraction in [0, 1].
type ProgressFunc func(fraction float64)

// Transcoder is a workspace plus a command runner. Names passed to the file
// methods and used as arguments to Exec refer to the same workspace entries.
type Transcoder interface {
	WriteFile(ctx context.Context, name string, r io.Reader) error
	ReadFile(ctx context.Context, name string) ([]byte, error)
	DeleteFile(ctx context.Context, name string) error
	Exec(ctx context.Context, args []string, onProgress ProgressFunc) error
}

// RemuxArgs copies the first video stream of videoName and re-encodes the
// first audio stream of audioName to AAC 128k. Any audio carried by a
// progressive videoName is dropped.
func RemuxArgs(videoName, audioName, outputName string) []string {
	return []string{
		"-i", videoName,
		"-i", audioName,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		"-shortest",
		"-y", outputName,
	}
}

// WithMetadata inserts -metadata pairs for the non-empty fields of meta
// ahead of the trailing "-y <output>".
func WithMetadata(args []string, meta types.Metadata) []string {
	var extra []string
	for _, kv := range [][2]string{{"title", meta.Title}, {"artist", meta.Artist}, {"date", meta.Date}} {
		if kv[1] != "" {
			extra = append(extra, "-metadata", kv[0]+"="+kv[1])
		}
	}
	if len(extra) == 0 {
		return args
	}
	cut := len(args)
	if cut >= 2 && args[cut-2] == "-y" {
		cut -= 2
	}
	out := make([]string, 0, len(args)+len(extra))
	out = append(out, args[:cut]...)
	out = append(out, extra...)
	return append(out, args[cut:]...)
}

// InputNames returns the values of every -i argument.
func InputNames(args []string) []string {
	var out []string
	for i := 0; i+1 < len(args); i++ {
		if args[i] == "-i" {
			out = append(out, args[i+1])
			i++
		}
	}
	return out
}
