package mux

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// Sink receives finished outputs.
type Sink interface {
	// Deliver stores data under name and returns where it ended up.
	Deliver(ctx context.Context, name string, data []byte) (string, error)
}

// DirSink writes outputs into a directory, never overwriting an existing file.
type DirSink struct {
	Fs  afero.Fs
	Dir string
}

func (s DirSink) Deliver(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fs := s.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if err := fs.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	f, path, err := createUnique(fs, filepath.Join(s.Dir, filepath.Base(name)))
	if err != nil {
		return "", err
	}
	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = fs.Remove(path)
		return "", fmt.Errorf("write output: %w", err)
	}
	return path, nil
}

// createUnique exclusively creates path, appending " (n)" before the
// extension while the name is taken.
func createUnique(fs afero.Fs, path string) (afero.File, string, error) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	candidate := path
	for n := 1; n < 1000; n++ {
		f, err := fs.OpenFile(candidate, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return f, candidate, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("create output: %w", err)
		}
		candidate = base + " (" + strconv.Itoa(n) + ")" + ext
	}
	return nil, "", fmt.Errorf("no free output name for %s", path)
}
