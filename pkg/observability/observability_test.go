package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_Disabled(t *testing.T) {
	p, err := NewProvider(DefaultTracingConfig())
	require.NoError(t, err)
	require.NotNil(t, p.Tracer())

	_, span := p.StartStage(context.Background(), "infer")
	span.SetAttribute("columns", 3)
	assert.GreaterOrEqual(t, int64(span.End(nil)), int64(0))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestProvider_ExportsStages(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultTracingConfig()
	cfg.Enabled = true
	cfg.Writer = &buf

	p, err := NewProvider(cfg)
	require.NoError(t, err)

	ctx, parent := p.StartStage(context.Background(), "convert")
	_, child := p.StartStage(ctx, "encode")
	child.SetAttribute("events", int64(10))
	child.SetAttribute("dropped", []string{"time_stamps"})
	child.End(errors.New("value overflow"))
	parent.End(nil)

	require.NoError(t, p.Shutdown(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "recoconv.convert")
	assert.Contains(t, out, "recoconv.encode")
	assert.Contains(t, out, "value overflow")
	assert.Contains(t, out, "time_stamps")
}

func TestSampleResources(t *testing.T) {
	usage, err := SampleResources()
	require.NotNil(t, usage)
	assert.Greater(t, usage.HeapAlloc, uint64(0))
	assert.Greater(t, usage.GoroutineCount, 0)
	if err == nil {
		assert.Greater(t, usage.MemoryRSS, uint64(0))
	}
}
