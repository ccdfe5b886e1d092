package metrics

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
)

var (
	_ Sink = (*NoopSink)(nil)
	_ Sink = (*PrometheusSink)(nil)
)

func newTestSink(t *testing.T) (*PrometheusSink, *prometheus.Registry, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	reg := prometheus.NewRegistry()
	return NewPrometheusSink(reg, log), reg, hook
}

func TestPrometheusSinkRequests(t *testing.T) {
	c := qt.New(t)
	sink, _, _ := newTestSink(t)

	sink.RequestCompleted("GET", "GET /jobs/{id}", 200, 20*time.Millisecond)
	sink.RequestCompleted("GET", "GET /jobs/{id}", 200, 30*time.Millisecond)
	sink.RequestCompleted("GET", "GET /jobs/{id}", 404, time.Millisecond)

	c.Assert(testutil.ToFloat64(sink.requestsTotal.WithLabelValues("GET", "GET /jobs/{id}", "200")), qt.Equals, 2.0)
	c.Assert(testutil.ToFloat64(sink.requestsTotal.WithLabelValues("GET", "GET /jobs/{id}", "404")), qt.Equals, 1.0)
	c.Assert(testutil.CollectAndCount(sink.requestDuration), qt.Equals, 2)
}

func TestPrometheusSinkDocuments(t *testing.T) {
	c := qt.New(t)
	sink, reg, _ := newTestSink(t)

	sink.DocumentsUploaded(2, 1, 2048)
	sink.DocumentDownloaded(1024)

	c.Assert(testutil.ToFloat64(sink.documentsUploaded.WithLabelValues("stored")), qt.Equals, 2.0)
	c.Assert(testutil.ToFloat64(sink.documentsUploaded.WithLabelValues("skipped")), qt.Equals, 1.0)
	c.Assert(testutil.ToFloat64(sink.uploadBytes), qt.Equals, 2048.0)
	c.Assert(testutil.ToFloat64(sink.downloadsTotal), qt.Equals, 1.0)
	c.Assert(testutil.ToFloat64(sink.downloadBytes), qt.Equals, 1024.0)

	n, err := testutil.GatherAndCount(reg, "jobtracker_document_downloads_total")
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 1)
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	c := qt.New(t)
	log, hook := test.NewNullLogger()
	reg := prometheus.NewRegistry()
	NewPrometheusSink(reg, log)

	second := NewPrometheusSink(reg, log)
	second.DocumentDownloaded(1)
	c.Assert(len(hook.AllEntries()) > 0, qt.IsTrue)
}

func TestNoopSink(t *testing.T) {
	s := NewNoopSink()
	s.RequestCompleted("GET", "GET /jobs", 200, time.Millisecond)
	s.DocumentsUploaded(1, 0, 10)
	s.DocumentDownloaded(10)
}

func TestStatusClass(t *testing.T) {
	c := qt.New(t)
	for status, want := range map[int]string{200: "2xx", 201: "2xx", 304: "3xx", 400: "4xx", 413: "4xx", 500: "5xx", 503: "5xx", 101: "1xx"} {
		c.Assert(StatusClass(status), qt.Equals, want)
	}
}
