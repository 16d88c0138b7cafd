// Package metrics provides a lightweight, Prometheus-compatible collector
// for ZapGate. It renders text/plain in Prometheus exposition format without
// pulling in the heavy prometheus/client_golang dependency.
package metrics

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector is the process-wide metrics collector.
var Collector = NewCollector()

// MetricsCollector aggregates counters, gauges, and histograms.
type MetricsCollector struct {
	mu         sync.Mutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	startTime  time.Time
}

func NewCollector() *MetricsCollector {
	return &MetricsCollector{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
		startTime:  time.Now(),
	}
}

// Uptime returns how long the collector has been running.
func (c *MetricsCollector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name  string
	help  string
	value atomic.Int64
}

func (c *Counter) Inc()         { c.value.Add(1) }
func (c *Counter) Add(n int64)  { c.value.Add(n) }
func (c *Counter) Value() int64 { return c.value.Load() }

// Gauge is a value that can go up and down.
type Gauge struct {
	name  string
	help  string
	value atomic.Int64
}

func (g *Gauge) Set(v int64)  { g.value.Store(v) }
func (g *Gauge) Inc()         { g.value.Add(1) }
func (g *Gauge) Dec()         { g.value.Add(-1) }
func (g *Gauge) Value() int64 { return g.value.Load() }

// Histogram tracks the distribution of observed values.
type Histogram struct {
	name    string
	help    string
	mu      sync.Mutex
	count   int64
	sum     float64
	buckets []histBucket
}

type histBucket struct {
	le    float64
	count int64
}

// Observe records a value in the histogram.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i := range h.buckets {
		if v <= h.buckets[i].le {
			h.buckets[i].count++
		}
	}
}

// Counter returns or creates a counter with the given name.
func (c *MetricsCollector) Counter(name, help string) *Counter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctr, ok := c.counters[name]; ok {
		return ctr
	}
	ctr := &Counter{name: name, help: help}
	c.counters[name] = ctr
	return ctr
}

// Gauge returns or creates a gauge with the given name.
func (c *MetricsCollector) Gauge(name, help string) *Gauge {
	c.mu.Lock()
	defer c.mu.Unlock()
	if g, ok := c.gauges[name]; ok {
		return g
	}
	g := &Gauge{name: name, help: help}
	c.gauges[name] = g
	return g
}

// Histogram returns or creates a histogram with the given bucket boundaries.
func (c *MetricsCollector) Histogram(name, help string, buckets []float64) *Histogram {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.histograms[name]; ok {
		return h
	}
	sort.Float64s(buckets)
	hb := make([]histBucket, len(buckets))
	for i, b := range buckets {
		hb[i] = histBucket{le: b}
	}
	h := &Histogram{name: name, help: help, buckets: hb}
	c.histograms[name] = h
	return h
}

// Handler renders all metrics in Prometheus text format.
func (c *MetricsCollector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var sb strings.Builder

		fmt.Fprintf(&sb, "# HELP zapgate_uptime_seconds Time since start in seconds\n")
		fmt.Fprintf(&sb, "# TYPE zapgate_uptime_seconds gauge\n")
		fmt.Fprintf(&sb, "zapgate_uptime_seconds %d\n\n", int64(c.Uptime().Seconds()))

		c.mu.Lock()
		counters := sortedKeys(c.counters)
		gauges := sortedKeys(c.gauges)
		histograms := sortedKeys(c.histograms)
		c.mu.Unlock()

		for _, name := range counters {
			ctr := c.counters[name]
			fmt.Fprintf(&sb, "# HELP %s %s\n", ctr.name, ctr.help)
			fmt.Fprintf(&sb, "# TYPE %s counter\n", ctr.name)
			fmt.Fprintf(&sb, "%s %d\n", ctr.name, ctr.Value())
		}
		for _, name := range gauges {
			g := c.gauges[name]
			fmt.Fprintf(&sb, "# HELP %s %s\n", g.name, g.help)
			fmt.Fprintf(&sb, "# TYPE %s gauge\n", g.name)
			fmt.Fprintf(&sb, "%s %d\n", g.name, g.Value())
		}
		for _, name := range histograms {
			h := c.histograms[name]
			h.mu.Lock()
			fmt.Fprintf(&sb, "# HELP %s %s\n", h.name, h.help)
			fmt.Fprintf(&sb, "# TYPE %s histogram\n", h.name)
			for _, b := range h.buckets {
				le := fmt.Sprintf("%g", b.le)
				if math.IsInf(b.le, 1) {
					le = "+Inf"
				}
				fmt.Fprintf(&sb, "%s_bucket{le=%q} %d\n", h.name, le, b.count)
			}
			fmt.Fprintf(&sb, "%s_count %d\n", h.name, h.count)
			fmt.Fprintf(&sb, "%s_sum %f\n", h.name, h.sum)
			h.mu.Unlock()
		}

		fmt.Fprint(w, sb.String())
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// --- Pre-defined metrics used across the bridge ---

var (
	InboundTotal     = Collector.Counter("zapgate_inbound_messages_total", "Inbound message events received from the gateway")
	InboundFiltered  = Collector.Counter("zapgate_inbound_filtered_total", "Inbound events discarded by the group/broadcast filter")
	MediaFailures    = Collector.Counter("zapgate_media_download_failures_total", "Inbound audio downloads that failed")
	RelaysTotal      = Collector.Counter("zapgate_relays_total", "Relay payloads posted to the webhook consumer")
	RelayFailures    = Collector.Counter("zapgate_relay_failures_total", "Webhook relays that failed (dropped payloads)")
	CascadeAttempts  = Collector.Counter("zapgate_audio_send_attempts_total", "Individual audio delivery strategy attempts")
	AudioSendsTotal  = Collector.Counter("zapgate_audio_sends_total", "Outbound deliveries that ended audio_sent")
	TextSendsTotal   = Collector.Counter("zapgate_text_sends_total", "Outbound deliveries that ended text_sent")
	FailedSendsTotal = Collector.Counter("zapgate_failed_sends_total", "Outbound deliveries that ended failed")

	RelayLatency = Collector.Histogram("zapgate_relay_latency_seconds", "Webhook relay latency in seconds",
		[]float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10})
	SendLatency = Collector.Histogram("zapgate_send_latency_seconds", "Outbound delivery latency in seconds",
		[]float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30})
)
