package metrics

import "time"

// Sink records service metrics. Methods must not block or return errors.
type Sink interface {
	// RequestCompleted records one served HTTP request. route is the
	// matched pattern, not the raw path.
	RequestCompleted(method, route string, status int, duration time.Duration)

	DocumentsUploaded(stored, skipped int, bytes int64)
	DocumentDownloaded(bytes int64)
}

// StatusClass buckets an HTTP status as "2xx", "4xx" and so on.
func StatusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	}
	return "1xx"
}
