package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate returns every problem with cfg, or nil.
func Validate(cfg Config) error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch cfg.DBDriver {
	case DriverMongo:
		if cfg.MongoURI == "" {
			add("MONGODB_URI", "required when DB_DRIVER is %q", DriverMongo)
		}
		if cfg.MongoDatabase == "" {
			add("MONGODB_DATABASE", "required")
		}
	case DriverSQLite:
		if cfg.SQLitePath == "" {
			add("SQLITE_PATH", "required when DB_DRIVER is %q", DriverSQLite)
		}
	case DriverPostgres:
		if cfg.PostgresURL == "" {
			add("POSTGRES_URL", "required when DB_DRIVER is %q", DriverPostgres)
		}
	default:
		add("DB_DRIVER", "must be one of mongo, sqlite, postgres, got %q", cfg.DBDriver)
	}

	switch cfg.BlobBackend {
	case BlobLocal:
		if cfg.UploadDir == "" {
			add("UPLOAD_DIR", "required when BLOB_BACKEND is %q", BlobLocal)
		}
	case BlobS3:
		if cfg.S3.Bucket == "" {
			add("S3_BUCKET", "required when BLOB_BACKEND is %q", BlobS3)
		}
		if (cfg.S3.AccessKeyID == "") != (cfg.S3.SecretAccessKey == "") {
			add("S3_ACCESS_KEY_ID", "must be set together with S3_SECRET_ACCESS_KEY")
		}
	case BlobNone:
	default:
		add("BLOB_BACKEND", "must be one of local, s3, none, got %q", cfg.BlobBackend)
	}

	if d, err := time.ParseDuration(cfg.HTTPShutdownTimeoutStr); err != nil {
		add("HTTP_SHUTDOWN_TIMEOUT", "invalid duration: %v", err)
	} else if d <= 0 {
		add("HTTP_SHUTDOWN_TIMEOUT", "must be positive")
	}

	if cfg.MaxUploadBytesStr != "" {
		if n, err := strconv.ParseInt(cfg.MaxUploadBytesStr, 10, 64); err != nil || n <= 0 {
			add("MAX_UPLOAD_BYTES", "must be a positive integer, got %q", cfg.MaxUploadBytesStr)
		}
	} else if cfg.MaxUploadBytes <= 0 {
		add("MAX_UPLOAD_BYTES", "must be positive")
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		add("LOG_LEVEL", "%v", err)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		add("LOG_FORMAT", "must be 'text' or 'json', got %q", cfg.LogFormat)
	}

	if cfg.MetricsEnabled && !strings.HasPrefix(cfg.MetricsPath, "/") {
		add("METRICS_PATH", "must start with '/', got %q", cfg.MetricsPath)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
