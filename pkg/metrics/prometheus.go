package metrics

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
)

// PrometheusExporter exports metrics in Prometheus text format.
type PrometheusExporter struct {
	collector *Collector
	namespace string
}

// NewPrometheusExporter creates a new Prometheus exporter for the given collector.
// The namespace is prepended to all metric names (e.g., "qals").
func NewPrometheusExporter(c *Collector, namespace string) *PrometheusExporter {
	return &PrometheusExporter{
		collector: c,
		namespace: namespace,
	}
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (e *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		e.WriteMetrics(w)
	})
}

// WriteMetrics writes all metrics in Prometheus text format to the writer.
func (e *PrometheusExporter) WriteMetrics(w io.Writer) {
	snap := e.collector.Snapshot()
	labels := e.formatLabels(snap.Labels)

	// --- Search Metrics ---
	e.writeCounter(w, "search_trials_total", "Total ideal search trials evaluated", labels, snap.SearchTrials)
	e.writeCounter(w, "noise_trials_total", "Total noisy search trials evaluated", labels, snap.NoiseTrials)

	// --- Channel Metrics ---
	e.writeCounter(w, "channel_scenarios_total", "Total key-exchange scenarios simulated", labels, snap.Scenarios)
	e.writeCounter(w, "channel_zero_key_scenarios_total", "Scenarios whose secure key length was zero", labels, snap.ZeroKeyScenarios)
	e.writeCounter(w, "channel_secure_bits_total", "Total secure key bits produced", labels, snap.SecureBits)

	// --- Decision Metrics ---
	e.writeHelp(w, "threat_assessments_total", "Threat assessments by level")
	e.writeType(w, "threat_assessments_total", "counter")
	for _, lv := range []struct {
		name  string
		value uint64
	}{
		{"LOW", snap.ThreatLow},
		{"MEDIUM", snap.ThreatMedium},
		{"HIGH", snap.ThreatHigh},
	} {
		e.writeMetric(w, "threat_assessments_total", joinLabels(labels, `level="`+lv.name+`"`), float64(lv.value))
	}

	// --- Storage Metrics ---
	e.writeCounter(w, "packages_sealed_total", "Total encrypted packages produced", labels, snap.PackagesSealed)
	e.writeCounter(w, "packages_opened_total", "Total packages that passed verification", labels, snap.PackagesOpened)
	e.writeCounter(w, "integrity_failures_total", "Total packages rejected by authentication", labels, snap.IntegrityFailures)
	e.writeCounter(w, "bytes_sealed_total", "Total plaintext bytes sealed", labels, snap.BytesSealed)

	// --- Run Metrics ---
	e.writeCounter(w, "runs_completed_total", "Total pipeline runs completed", labels, snap.RunsCompleted)
	e.writeCounter(w, "runs_failed_total", "Total pipeline runs that failed", labels, snap.RunsFailed)

	// --- Uptime ---
	e.writeHelp(w, "uptime_seconds", "Time since the collector was created")
	e.writeType(w, "uptime_seconds", "gauge")
	e.writeMetric(w, "uptime_seconds", labels, snap.Uptime.Seconds())

	// --- Histograms ---
	e.writeHistogram(w, "search_success_probability", "Estimated search success probability", labels, snap.SearchSuccess)
	e.writeHistogram(w, "channel_qber", "Observed quantum bit error rate", labels, snap.ChannelQBER)

	name := "stage_duration_milliseconds"
	e.writeHelp(w, name, "Pipeline stage duration in milliseconds")
	e.writeType(w, name, "histogram")
	for _, s := range Stages {
		h, ok := snap.StageLatency[s]
		if !ok {
			continue
		}
		e.writeHistogramSeries(w, name, joinLabels(labels, `stage="`+string(s)+`"`), h)
	}
}

// writeCounter writes HELP, TYPE and value lines for a counter.
func (e *PrometheusExporter) writeCounter(w io.Writer, name, help, labels string, v uint64) {
	e.writeHelp(w, name, help)
	e.writeType(w, name, "counter")
	e.writeMetric(w, name, labels, float64(v))
}

// writeHelp writes a HELP line.
func (e *PrometheusExporter) writeHelp(w io.Writer, name, help string) {
	fmt.Fprintf(w, "# HELP %s_%s %s\n", e.namespace, name, help)
}

// writeType writes a TYPE line.
func (e *PrometheusExporter) writeType(w io.Writer, name, typ string) {
	fmt.Fprintf(w, "# TYPE %s_%s %s\n", e.namespace, name, typ)
}

// writeMetric writes a single metric line.
func (e *PrometheusExporter) writeMetric(w io.Writer, name, labels string, value float64) {
	if labels != "" {
		fmt.Fprintf(w, "%s_%s{%s} %g\n", e.namespace, name, labels, value)
	} else {
		fmt.Fprintf(w, "%s_%s %g\n", e.namespace, name, value)
	}
}

// writeHistogram writes a histogram in Prometheus format.
func (e *PrometheusExporter) writeHistogram(w io.Writer, name, help, labels string, h HistogramSummary) {
	e.writeHelp(w, name, help)
	e.writeType(w, name, "histogram")
	e.writeHistogramSeries(w, name, labels, h)
}

// writeHistogramSeries writes bucket, sum and count lines for one series.
func (e *PrometheusExporter) writeHistogramSeries(w io.Writer, name, labels string, h HistogramSummary) {
	fullName := e.namespace + "_" + name

	for _, b := range h.Buckets {
		le := fmt.Sprintf("%g", b.UpperBound)
		if math.IsInf(b.UpperBound, 1) {
			le = "+Inf"
		}
		fmt.Fprintf(w, "%s_bucket{%s} %d\n", fullName, joinLabels(labels, `le="`+le+`"`), b.Count)
	}

	if labels != "" {
		fmt.Fprintf(w, "%s_sum{%s} %g\n", fullName, labels, h.Sum)
		fmt.Fprintf(w, "%s_count{%s} %d\n", fullName, labels, h.Count)
	} else {
		fmt.Fprintf(w, "%s_sum %g\n", fullName, h.Sum)
		fmt.Fprintf(w, "%s_count %d\n", fullName, h.Count)
	}
}

func joinLabels(base, extra string) string {
	if base == "" {
		return extra
	}
	return base + "," + extra
}

// formatLabels converts Labels to Prometheus label format.
func (e *PrometheusExporter) formatLabels(labels Labels) string {
	if len(labels) == 0 {
		return ""
	}

	// Sort keys for consistent output
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := escapePromValue(labels[k])
		parts = append(parts, fmt.Sprintf("%s=\"%s\"", k, v))
	}

	return strings.Join(parts, ",")
}

// escapePromValue escapes a string for use as a Prometheus label value.
func escapePromValue(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
