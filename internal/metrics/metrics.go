// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface used by the registry, compiler, projector and HTTP layer
type Recorder interface {
	ParticipantAdded()
	SubmissionRejected(reason string)
	ParticipantsImported(imported, skipped int)
	ArtifactCompiled(contacts int)
	CompileFailed(reason string)
	StreamResubscribed(table string)
	ProjectionRefreshed()
	HTTPStatus(statusCode int)
}

// Collector is the Prometheus implementation of Recorder
type Collector struct {
	participantsAdded   prometheus.Counter
	submissionsRejected *prometheus.CounterVec
	importRows          *prometheus.CounterVec
	artifactsCompiled   prometheus.Counter
	artifactContacts    prometheus.Histogram
	compileFailures     *prometheus.CounterVec
	streamResubscribes  *prometheus.CounterVec
	projectionRefreshes prometheus.Counter
	httpStatus          *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		participantsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vcfgather_participants_added_total",
			Help: "Participants accepted into a session.",
		}),
		submissionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vcfgather_submissions_rejected_total",
			Help: "Rejected contact submissions by reason.",
		}, []string{"reason"}),
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vcfgather_import_rows_total",
			Help: "Bulk import rows by outcome.",
		}, []string{"outcome"}),
		artifactsCompiled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vcfgather_artifacts_compiled_total",
			Help: "Contact files compiled.",
		}),
		artifactContacts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vcfgather_artifact_contacts",
			Help:    "Contacts per compiled file.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		compileFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vcfgather_compile_failures_total",
			Help: "Failed compilations by reason.",
		}, []string{"reason"}),
		streamResubscribes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vcfgather_stream_resubscribes_total",
			Help: "Change stream resubscriptions by table.",
		}, []string{"table"}),
		projectionRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vcfgather_projection_refreshes_total",
			Help: "Full participant refetches applied to live projections.",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vcfgather_http_status_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.participantsAdded,
		c.submissionsRejected,
		c.importRows,
		c.artifactsCompiled,
		c.artifactContacts,
		c.compileFailures,
		c.streamResubscribes,
		c.projectionRefreshes,
		c.httpStatus,
	)

	return c
}

func (c *Collector) ParticipantAdded() {
	c.participantsAdded.Inc()
}

func (c *Collector) SubmissionRejected(reason string) {
	c.submissionsRejected.WithLabelValues(reason).Inc()
}

func (c *Collector) ParticipantsImported(imported, skipped int) {
	c.importRows.WithLabelValues("imported").Add(float64(imported))
	c.importRows.WithLabelValues("skipped").Add(float64(skipped))
}

func (c *Collector) ArtifactCompiled(contacts int) {
	c.artifactsCompiled.Inc()
	c.artifactContacts.Observe(float64(contacts))
}

func (c *Collector) CompileFailed(reason string) {
	c.compileFailures.WithLabelValues(reason).Inc()
}

func (c *Collector) StreamResubscribed(table string) {
	c.streamResubscribes.WithLabelValues(table).Inc()
}

func (c *Collector) ProjectionRefreshed() {
	c.projectionRefreshes.Inc()
}

func (c *Collector) HTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop discards every measurement
type Nop struct{}

func (Nop) ParticipantAdded() {}
func (Nop) SubmissionRejected(string) {}
func (Nop) ParticipantsImported(int, int) {}
func (Nop) ArtifactCompiled(int) {}
func (Nop) CompileFailed(string) {}
func (Nop) StreamResubscribed(string) {}
func (Nop) ProjectionRefreshed() {}
func (Nop) HTTPStatus(int) {}

// Handler returns the scrape handler for gatherer
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working behind the middleware
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Middleware records the status code of every response
func Middleware(rec Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sr, r)
			rec.HTTPStatus(sr.status)
		})
	}
}
