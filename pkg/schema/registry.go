package schema

import (
	"sort"
	"sync"

	"github.com/ajitpratap0/recoconv/pkg/block"
)

// Transform rewrites one field before shape classification. Returning the
// input field unchanged means the transform does not apply.
type Transform func(f *block.Field) (*block.Field, error)

// Transforms maps field names to the transform applied to them during
// inference.
type Transforms struct {
	mu     sync.RWMutex
	byName map[string]Transform
}

// NewTransforms creates an empty transform registry.
func NewTransforms() *Transforms {
	return &Transforms{byName: make(map[string]Transform)}
}

// DefaultTransforms returns a registry holding the runid collapse.
func DefaultTransforms() *Transforms {
	t := NewTransforms()
	t.Register(RunIDField, CollapseRunID)
	return t
}

// Register sets the transform for a field name, replacing any previous one.
func (t *Transforms) Register(field string, fn Transform) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byName[field] = fn
}

// Lookup returns the transform registered for a field name.
func (t *Transforms) Lookup(field string) (Transform, bool) {
	if t == nil {
		return nil, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn, ok := t.byName[field]
	return fn, ok
}

// Names returns the registered field names, sorted.
func (t *Transforms) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.byName))
	for name := range t.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
