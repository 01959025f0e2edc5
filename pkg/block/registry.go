package block

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
)

// Reader materializes a block file into memory.
type Reader interface {
	Read(ctx context.Context, path string) (*Block, error)
}

// ReaderFactory creates reader instances.
type ReaderFactory func(logger *zap.Logger) Reader

type readerEntry struct {
	factory    ReaderFactory
	extensions []string
}

// Registry manages block reader registration by format name and file
// extension.
type Registry struct {
	mu      sync.RWMutex
	readers map[string]readerEntry
}

var globalRegistry = NewRegistry()

// NewRegistry creates an empty reader registry.
func NewRegistry() *Registry {
	return &Registry{readers: make(map[string]readerEntry)}
}

// Register registers a reader factory under a format name. Extensions
// include the leading dot, e.g. ".json".
func (r *Registry) Register(format string, factory ReaderFactory, extensions ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.readers[format]; exists {
		return recoerrors.New(recoerrors.ErrorTypeConfig, fmt.Sprintf("block reader %s already registered", format))
	}
	r.readers[format] = readerEntry{factory: factory, extensions: extensions}
	return nil
}

// Create returns a reader for the named format.
func (r *Registry) Create(format string, logger *zap.Logger) (Reader, error) {
	r.mu.RLock()
	entry, ok := r.readers[format]
	r.mu.RUnlock()

	if !ok {
		return nil, recoerrors.New(recoerrors.ErrorTypeConfig, fmt.Sprintf("block reader %s not found", format)).
			WithDetail("available", r.Formats())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return entry.factory(logger.With(zap.String("reader", format))), nil
}

// Detect returns the format registered for the extension of path.
func (r *Registry) Detect(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))

	r.mu.RLock()
	defer r.mu.RUnlock()

	for format, entry := range r.readers {
		for _, e := range entry.extensions {
			if e == ext {
				return format, nil
			}
		}
	}
	return "", recoerrors.New(recoerrors.ErrorTypeConfig, "cannot detect block format from file extension").
		WithDetail("path", path)
}

// Formats lists registered format names, sorted.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.readers))
	for name := range r.readers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RegisterReader registers a reader factory in the global registry. It is
// meant to be called from init functions and panics on duplicates.
func RegisterReader(format string, factory ReaderFactory, extensions ...string) {
	if err := globalRegistry.Register(format, factory, extensions...); err != nil {
		panic(err)
	}
}

// OpenReader returns a reader from the global registry. An empty format is
// detected from the path extension.
func OpenReader(format, path string, logger *zap.Logger) (Reader, error) {
	if format == "" {
		detected, err := globalRegistry.Detect(path)
		if err != nil {
			return nil, err
		}
		format = detected
	}
	return globalRegistry.Create(format, logger)
}

// ReaderFormats lists formats in the global registry.
func ReaderFormats() []string {
	return globalRegistry.Formats()
}
