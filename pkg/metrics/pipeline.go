package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline bundles the instruments of the image pipeline. One instance per
// service lifecycle, registered on an instance registry.
type Pipeline struct {
	// RequestsTotal counts processed requests by outcome. The code label is
	// "OK" for success or the error code for failures.
	RequestsTotal *prometheus.CounterVec

	// RequestDuration observes end-to-end request duration in seconds.
	RequestDuration prometheus.Histogram

	// StageDuration observes per-stage duration in seconds, labeled by
	// stage name (TEMPLATE_RESOLVE, MANIFEST_LOAD, RENDER, STORE).
	StageDuration *prometheus.HistogramVec

	// TemplateCacheHits counts resolves served from the on-disk cache.
	TemplateCacheHits prometheus.Counter

	// TemplateDownloads counts resolves that hit the upstream.
	TemplateDownloads prometheus.Counter

	// InFlight tracks requests currently being processed.
	InFlight prometheus.Gauge
}

// NewPipeline creates and registers the pipeline instrument set.
func NewPipeline(registry prometheus.Registerer) *Pipeline {
	return &Pipeline{
		RequestsTotal: NewCounterVec(registry,
			"pipeline_requests_total",
			"Processed pipeline requests by outcome code.",
			[]string{"code"}),
		RequestDuration: NewHistogram(registry,
			"pipeline_request_duration_seconds",
			"End-to-end pipeline request duration.",
			DurationBuckets()),
		StageDuration: NewHistogramVec(registry,
			"pipeline_stage_duration_seconds",
			"Pipeline stage duration by stage name.",
			DurationBuckets(),
			[]string{"stage"}),
		TemplateCacheHits: NewCounter(registry,
			"pipeline_template_cache_hits_total",
			"Template resolves served from the local cache."),
		TemplateDownloads: NewCounter(registry,
			"pipeline_template_downloads_total",
			"Template resolves that downloaded from upstream."),
		InFlight: NewGauge(registry,
			"pipeline_requests_in_flight",
			"Requests currently being processed."),
	}
}

// ObserveStage records one stage duration.
func (p *Pipeline) ObserveStage(stage string, d time.Duration) {
	p.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}
