// Package metrics records conversion statistics with Prometheus.
//
// Each conversion run owns a Collector backed by a private registry, so
// repeated runs in one process never collide on registration. The
// collected values can be written to a node-exporter textfile:
//
//	collector := metrics.NewCollector()
//	timer := metrics.NewTimer("encode")
//	rs, err := encoder.Encode(b, s)
//	collector.ObserveStage(timer.Name(), timer.Stop())
//	collector.RecordConversion("arrow", "success", s.Events(), s.Len())
//	_ = collector.WriteTextfile("/var/lib/node_exporter/recoconv.prom")
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
)

// Collector holds the metrics of conversion runs.
type Collector struct {
	registry       *prometheus.Registry
	conversions    *prometheus.CounterVec   // runs by format and status
	events         *prometheus.CounterVec   // events written
	fieldsDropped  prometheus.Counter       // fields removed by the skip list
	columns        prometheus.Gauge         // columns in the last schema
	bytesWritten   *prometheus.CounterVec   // bytes of record files
	stageDuration  *prometheus.HistogramVec // per-stage wall time
	throughput     prometheus.Gauge         // events per second of the last run
	memoryResident prometheus.Gauge         // resident set size after row assembly
	startTime      time.Time
}

// NewCollector creates a collector with its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		conversions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recoconv_conversions_total",
				Help: "Total number of conversion runs",
			},
			[]string{"format", "status"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recoconv_events_total",
				Help: "Total number of events written as records",
			},
			[]string{"format"},
		),
		fieldsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recoconv_fields_dropped_total",
			Help: "Total number of fields removed by the skip list",
		}),
		columns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "recoconv_schema_columns",
			Help: "Number of columns in the most recent schema",
		}),
		bytesWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recoconv_bytes_written_total",
				Help: "Total bytes of record files written",
			},
			[]string{"format"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "recoconv_stage_duration_seconds",
				Help: "Wall time of each conversion stage",
				Buckets: []float64{
					0.001, // 1ms - small blocks
					0.01,
					0.1,
					1,
					10,
					60, // 1m - full runs read from cloud storage
				},
			},
			[]string{"stage"},
		),
		throughput: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "recoconv_throughput_events_per_second",
			Help: "Events per second of the most recent conversion",
		}),
		memoryResident: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "recoconv_memory_resident_bytes",
			Help: "Resident set size sampled after row assembly",
		}),
		startTime: time.Now(),
	}

	c.registry.MustRegister(
		c.conversions,
		c.events,
		c.fieldsDropped,
		c.columns,
		c.bytesWritten,
		c.stageDuration,
		c.throughput,
		c.memoryResident,
	)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// StartTime returns when the collector was created
func (c *Collector) StartTime() time.Time {
	return c.startTime
}

// RecordConversion counts one finished run. Events and columns are only
// recorded for successful runs.
func (c *Collector) RecordConversion(format, status string, events, columns int) {
	c.conversions.WithLabelValues(format, status).Inc()
	if status != StatusSuccess {
		return
	}
	c.events.WithLabelValues(format).Add(float64(events))
	c.columns.Set(float64(columns))
}

// RecordDropped counts fields removed by the skip list.
func (c *Collector) RecordDropped(n int) {
	c.fieldsDropped.Add(float64(n))
}

// RecordBytes counts bytes written for a format.
func (c *Collector) RecordBytes(format string, n int64) {
	c.bytesWritten.WithLabelValues(format).Add(float64(n))
}

// ObserveStage records the duration of a stage.
func (c *Collector) ObserveStage(stage string, d time.Duration) {
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordThroughput sets the throughput gauge from an event count and the
// time it took to process them.
func (c *Collector) RecordThroughput(events int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	eps := float64(events) / d.Seconds()
	c.throughput.Set(eps)
	return eps
}

// RecordMemory sets the resident memory gauge.
func (c *Collector) RecordMemory(rss uint64) {
	c.memoryResident.Set(float64(rss))
}

// WriteTextfile writes every collected metric to path in the text
// exposition format. The file is replaced atomically.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "failed to write metrics textfile").
			WithDetail("path", path)
	}
	return nil
}

// Run outcomes used as the status label.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Timer provides a simple timing mechanism for measuring stage durations.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
//
// Example:
//
//	timer := metrics.NewTimer("read")
//	b, err := reader.Read(ctx, path)
//	logger.Info("time to read", zap.Duration("duration", timer.Stop()))
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the name the timer was created with.
func (t *Timer) Name() string {
	return t.name
}

// Stop returns the elapsed duration since creation. It can be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
