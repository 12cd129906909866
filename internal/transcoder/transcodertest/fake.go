// Package transcodertest provides an in-memory transcoder for tests.
package transcodertest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/spf13/afero"

	"github.com/famomatic/tubemux/internal/transcoder"
	"github.com/famomatic/tubemux/internal/types"
)

// Fake is a Transcoder over an afero memory filesystem. By default Exec
// writes the concatenated inputs to the last argument.
type Fake struct {
	transcoder.Workspace

	// Progress is reported in order by Exec.
	Progress []float64
	// ExecErr makes Exec fail after reporting progress.
	ExecErr error
	// OnExec runs inside Exec before the output is written.
	OnExec func(args []string)

	mu    sync.Mutex
	names map[string]struct{}
	calls [][]string
}

func New() *Fake {
	return &Fake{
		Workspace: transcoder.Workspace{Fs: afero.NewMemMapFs()},
		Progress:  []float64{0.25, 0.5, 1},
		names:     make(map[string]struct{}),
	}
}

func (f *Fake) WriteFile(ctx context.Context, name string, r io.Reader) error {
	f.track(name)
	return f.Workspace.WriteFile(ctx, name, r)
}

func (f *Fake) Exec(ctx context.Context, args []string, onProgress transcoder.ProgressFunc) error {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), args...))
	f.mu.Unlock()
	if f.OnExec != nil {
		f.OnExec(args)
	}

	var out bytes.Buffer
	for _, in := range transcoder.InputNames(args) {
		b, err := f.Workspace.ReadFile(ctx, in)
		if err != nil {
			return fmt.Errorf("%w: %w", types.ErrTranscode, err)
		}
		out.Write(b)
	}
	for _, p := range f.Progress {
		if onProgress != nil {
			onProgress(p)
		}
	}
	if f.ExecErr != nil {
		return f.ExecErr
	}
	if len(args) == 0 {
		return fmt.Errorf("%w: no arguments", types.ErrTranscode)
	}
	return f.WriteFile(ctx, args[len(args)-1], &out)
}

// Calls returns the argument lists Exec received.
func (f *Fake) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}

// Files lists the workspace entries that currently exist.
func (f *Fake) Files() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for name := range f.names {
		if f.Exists(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (f *Fake) track(name string) {
	f.mu.Lock()
	f.names[name] = struct{}{}
	f.mu.Unlock()
}

var _ transcoder.Transcoder = (*Fake)(nil)
