package transcoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/afero"
)

// Workspace is the flat file area the transcoder reads inputs from and
// writes outputs to.
type Workspace struct {
	Fs afero.Fs
}

// WriteFile stores r under name, replacing any previous content.
func (w Workspace) WriteFile(ctx context.Context, name string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := w.Fs.OpenFile(name, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("workspace write %s: %w", name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("workspace write %s: %w", name, err)
	}
	return f.Close()
}

// ReadFile returns the content stored under name.
func (w Workspace) ReadFile(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := afero.ReadFile(w.Fs, name)
	if err != nil {
		return nil, fmt.Errorf("workspace read %s: %w", name, err)
	}
	return b, nil
}

// DeleteFile removes name. Missing files are not an error.
func (w Workspace) DeleteFile(_ context.Context, name string) error {
	if err := w.Fs.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("workspace delete %s: %w", name, err)
	}
	return nil
}

// Exists reports whether name is present.
func (w Workspace) Exists(name string) bool {
	ok, err := afero.Exists(w.Fs, name)
	return err == nil && ok
}
