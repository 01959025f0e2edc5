package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
)

type localTarget struct {
	location string
	path     string
	logger   *zap.Logger
}

func newLocalTarget(location, path string, logger *zap.Logger) *localTarget {
	return &localTarget{location: location, path: path, logger: logger}
}

func (t *localTarget) Location() string {
	return t.location
}

func (t *localTarget) Check(_ context.Context) error {
	dir := filepath.Dir(t.path)
	info, err := os.Stat(dir)
	if err != nil {
		return recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "output directory does not exist").
			WithDetail("dir", dir)
	}
	if !info.IsDir() {
		return recoerrors.New(recoerrors.ErrorTypeFile, "output directory is not a directory").
			WithDetail("dir", dir)
	}
	return nil
}

func (t *localTarget) Exists(_ context.Context) (bool, error) {
	_, err := os.Stat(t.path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "failed to stat output").
			WithDetail("path", t.path)
	}
}

func (t *localTarget) Create(_ context.Context) (Object, error) {
	dir, base := filepath.Split(t.path)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "failed to create temporary file").
			WithDetail("dir", dir)
	}
	// outputs keep the mode of the file they replace, 0644 otherwise
	mode := fs.FileMode(0o644)
	if info, err := os.Stat(t.path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := f.Chmod(mode); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "failed to set output mode").
			WithDetail("path", t.path)
	}
	t.logger.Debug("writing temporary file", zap.String("tmp", f.Name()), zap.String("path", t.path))
	return &localObject{f: f, path: t.path}, nil
}

func (t *localTarget) Open(_ context.Context) (io.ReadCloser, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "failed to open file").
			WithDetail("path", t.path)
	}
	return f, nil
}

func (t *localTarget) Close() error {
	return nil
}

// localObject writes to a temporary file in the destination directory and
// renames it into place on commit.
type localObject struct {
	f    *os.File
	path string
	done bool
}

func (o *localObject) Write(p []byte) (int, error) {
	return o.f.Write(p)
}

func (o *localObject) Commit() error {
	if o.done {
		return recoerrors.New(recoerrors.ErrorTypeFile, "object already finished")
	}
	o.done = true

	if err := o.f.Sync(); err != nil {
		o.discard()
		return recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "failed to sync output")
	}
	if err := o.f.Close(); err != nil {
		_ = os.Remove(o.f.Name())
		return recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "failed to close output")
	}
	if err := os.Rename(o.f.Name(), o.path); err != nil {
		_ = os.Remove(o.f.Name())
		return recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "failed to move output into place").
			WithDetail("path", o.path)
	}
	return nil
}

func (o *localObject) Abort() error {
	if o.done {
		return nil
	}
	o.done = true
	o.discard()
	return nil
}

func (o *localObject) discard() {
	_ = o.f.Close()
	_ = os.Remove(o.f.Name())
}
