package metrics

import "time"

// NoopSink is used when metrics are disabled.
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) RequestCompleted(method, route string, status int, duration time.Duration) {}
func (n *NoopSink) DocumentsUploaded(stored, skipped int, bytes int64)                        {}
func (n *NoopSink) DocumentDownloaded(bytes int64)                                            {}
