package metrics

import (
	"math"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pzverkov/quantum-messenger/pkg/mode"
)

type promModeCounter struct {
	name, help string
	value      func(Snapshot) ModeCounts
}

type promCounter struct {
	name, help string
	value      func(Snapshot) uint64
}

type promHistogram struct {
	name, help string
	bounds     []float64
	value      func(Snapshot) HistogramSummary
}

var promModeCounters = []promModeCounter{
	{"messages_sealed_total", "Envelopes created, by crypto mode.",
		func(s Snapshot) ModeCounts { return s.MessagesSealed }},
	{"messages_opened_total", "Envelopes decrypted and verified, by crypto mode.",
		func(s Snapshot) ModeCounts { return s.MessagesOpened }},
	{"key_pairs_generated_total", "Key pairs generated, by crypto mode.",
		func(s Snapshot) ModeCounts { return s.KeyPairs }},
}

var promCounters = []promCounter{
	{"payload_bytes_sealed_total", "Payload bytes encrypted.",
		func(s Snapshot) uint64 { return s.BytesSealed }},
	{"payload_bytes_opened_total", "Payload bytes decrypted.",
		func(s Snapshot) uint64 { return s.BytesOpened }},
	{"policy_rejections_total", "Envelopes refused for a crypto mode below the minimum.",
		func(s Snapshot) uint64 { return s.PolicyRejections }},
	{"rate_limited_total", "Envelopes refused by the per-inbox rate limit.",
		func(s Snapshot) uint64 { return s.RateLimited }},
	{"decrypt_failures_total", "Envelopes that failed to decrypt.",
		func(s Snapshot) uint64 { return s.DecryptFailures }},
	{"verify_failures_total", "Payloads whose sender signature did not verify.",
		func(s Snapshot) uint64 { return s.VerifyFailures }},
	{"expired_dropped_total", "Envelopes dropped after expiry.",
		func(s Snapshot) uint64 { return s.ExpiredDropped }},
	{"envelopes_stored_total", "Envelopes accepted into relay mailboxes.",
		func(s Snapshot) uint64 { return s.EnvelopesStored }},
	{"envelopes_fetched_total", "Envelopes handed out by fetch requests.",
		func(s Snapshot) uint64 { return s.EnvelopesFetched }},
	{"claims_published_total", "Username claims accepted.",
		func(s Snapshot) uint64 { return s.ClaimsPublished }},
	{"protocol_errors_total", "Malformed or unsupported relay messages.",
		func(s Snapshot) uint64 { return s.ProtocolErrors }},
}

var promHistograms = []promHistogram{
	{"encrypt_duration_microseconds", "Message encryption latency in microseconds.", LatencyBuckets,
		func(s Snapshot) HistogramSummary { return s.EncryptLatency }},
	{"decrypt_duration_microseconds", "Message decryption latency in microseconds.", LatencyBuckets,
		func(s Snapshot) HistogramSummary { return s.DecryptLatency }},
	{"keygen_duration_microseconds", "Key pair generation latency in microseconds.", KeyGenLatencyBuckets,
		func(s Snapshot) HistogramSummary { return s.KeyGenLatency }},
}

// PrometheusExporter exposes a Collector through the Prometheus client
// library. Every scrape reads a fresh Snapshot, so the exporter holds no
// state of its own. It implements prometheus.Collector and can be added
// to any registry.
type PrometheusExporter struct {
	collector *Collector
	registry  *prometheus.Registry

	modeDescs  []*prometheus.Desc
	descs      []*prometheus.Desc
	histDescs  []*prometheus.Desc
	uptimeDesc *prometheus.Desc
}

var _ prometheus.Collector = (*PrometheusExporter)(nil)

// NewPrometheusExporter creates an exporter for c. Metric names are
// prefixed with namespace, and the collector's labels become constant
// labels on every series. The exporter's own registry also carries the Go
// runtime and process collectors.
func NewPrometheusExporter(c *Collector, namespace string) *PrometheusExporter {
	constLabels := prometheus.Labels(c.labels)
	desc := func(name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, variable, constLabels)
	}

	e := &PrometheusExporter{
		collector:  c,
		uptimeDesc: desc("uptime_seconds", "Seconds since the collector was created."),
	}
	for _, m := range promModeCounters {
		e.modeDescs = append(e.modeDescs, desc(m.name, m.help, "mode"))
	}
	for _, m := range promCounters {
		e.descs = append(e.descs, desc(m.name, m.help))
	}
	for _, m := range promHistograms {
		e.histDescs = append(e.histDescs, desc(m.name, m.help))
	}

	e.registry = prometheus.NewRegistry()
	e.registry.MustRegister(
		e,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
	)
	return e
}

// Describe implements prometheus.Collector.
func (e *PrometheusExporter) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range e.modeDescs {
		ch <- d
	}
	for _, d := range e.descs {
		ch <- d
	}
	for _, d := range e.histDescs {
		ch <- d
	}
	ch <- e.uptimeDesc
}

// Collect implements prometheus.Collector.
func (e *PrometheusExporter) Collect(ch chan<- prometheus.Metric) {
	snap := e.collector.Snapshot()

	for i, m := range promModeCounters {
		counts := m.value(snap)
		for _, md := range mode.All() {
			ch <- prometheus.MustNewConstMetric(e.modeDescs[i], prometheus.CounterValue,
				float64(counts.Get(md)), md.String())
		}
	}
	for i, m := range promCounters {
		ch <- prometheus.MustNewConstMetric(e.descs[i], prometheus.CounterValue, float64(m.value(snap)))
	}
	for i, m := range promHistograms {
		s := m.value(snap)
		ch <- prometheus.MustNewConstHistogram(e.histDescs[i], s.Count, s.Sum, promBuckets(m.bounds, s))
	}
	ch <- prometheus.MustNewConstMetric(e.uptimeDesc, prometheus.GaugeValue, snap.Uptime.Seconds())
}

// promBuckets maps each finite bound to its cumulative count. An empty
// summary still reports every bound so the series set stays fixed.
func promBuckets(bounds []float64, s HistogramSummary) map[float64]uint64 {
	out := make(map[float64]uint64, len(bounds))
	for _, b := range bounds {
		out[b] = 0
	}
	for _, b := range s.Buckets {
		if !math.IsInf(b.UpperBound, 1) {
			out[b.UpperBound] = b.Count
		}
	}
	return out
}

// Register adds the exporter to reg, for processes that serve their own
// registry.
func (e *PrometheusExporter) Register(reg prometheus.Registerer) error {
	return reg.Register(e)
}

// Handler serves the exporter's registry in the Prometheus exposition
// format.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// ServePrometheus serves /metrics for c on addr.
func ServePrometheus(addr string, c *Collector, namespace string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", NewPrometheusExporter(c, namespace).Handler())
	return newHTTPServer(addr, mux).ListenAndServe()
}
