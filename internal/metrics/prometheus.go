package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// PrometheusSink implements Sink with Prometheus collectors. Registration
// errors are logged and the sink keeps working unregistered.
type PrometheusSink struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	documentsUploaded *prometheus.CounterVec
	uploadBytes       prometheus.Counter
	downloadsTotal    prometheus.Counter
	downloadBytes     prometheus.Counter

	log logrus.FieldLogger
}

func NewPrometheusSink(reg prometheus.Registerer, log logrus.FieldLogger) *PrometheusSink {
	s := &PrometheusSink{log: log}
	s.initHTTPMetrics(reg)
	s.initDocumentMetrics(reg)
	return s
}

func (s *PrometheusSink) initHTTPMetrics(reg prometheus.Registerer) {
	s.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobtracker_http_requests_total",
		Help: "Total number of HTTP requests served.",
	}, []string{"method", "route", "status"})

	s.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jobtracker_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "route", "status_class"})

	s.register(reg, s.requestsTotal, "jobtracker_http_requests_total")
	s.register(reg, s.requestDuration, "jobtracker_http_request_duration_seconds")
}

func (s *PrometheusSink) initDocumentMetrics(reg prometheus.Registerer) {
	s.documentsUploaded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobtracker_documents_uploaded_total",
		Help: "Uploaded files by outcome (stored or skipped as non-PDF).",
	}, []string{"outcome"})
	s.uploadBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobtracker_document_upload_bytes_total",
		Help: "Total bytes of accepted document uploads.",
	})
	s.downloadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobtracker_document_downloads_total",
		Help: "Total number of document downloads.",
	})
	s.downloadBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobtracker_document_download_bytes_total",
		Help: "Total bytes of served document downloads.",
	})

	s.register(reg, s.documentsUploaded, "jobtracker_documents_uploaded_total")
	s.register(reg, s.uploadBytes, "jobtracker_document_upload_bytes_total")
	s.register(reg, s.downloadsTotal, "jobtracker_document_downloads_total")
	s.register(reg, s.downloadBytes, "jobtracker_document_download_bytes_total")
}

func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		s.log.WithError(err).WithField("metric", name).Warn("metrics: failed to register")
	}
}

func (s *PrometheusSink) RequestCompleted(method, route string, status int, duration time.Duration) {
	s.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	s.requestDuration.WithLabelValues(method, route, StatusClass(status)).Observe(duration.Seconds())
}

func (s *PrometheusSink) DocumentsUploaded(stored, skipped int, bytes int64) {
	s.documentsUploaded.WithLabelValues("stored").Add(float64(stored))
	s.documentsUploaded.WithLabelValues("skipped").Add(float64(skipped))
	s.uploadBytes.Add(float64(bytes))
}

func (s *PrometheusSink) DocumentDownloaded(bytes int64) {
	s.downloadsTotal.Inc()
	s.downloadBytes.Add(float64(bytes))
}
