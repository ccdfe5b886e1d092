package config

import (
	"encoding/json"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr               string        `json:"http_addr"`
	HTTPShutdownTimeout    time.Duration `json:"-"`
	HTTPShutdownTimeoutStr string        `json:"http_shutdown_timeout"`
	CORSOrigin             string        `json:"cors_origin"`
	MaxUploadBytes         int64         `json:"max_upload_bytes"`
	MaxUploadBytesStr      string        `json:"-"`

	DBDriver      string   `json:"db_driver"`
	MongoURI      string   `json:"mongodb_uri"`
	MongoDatabase string   `json:"mongodb_database"`
	SQLitePath    string   `json:"sqlite_path"`
	PostgresURL   string   `json:"postgres_url"`
	BlobBackend   string   `json:"blob_backend"`
	UploadDir     string   `json:"upload_dir"`
	S3            S3Config `json:"s3"`

	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`
}

type S3Config struct {
	Bucket          string `json:"bucket"`
	Prefix          string `json:"prefix"`
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint,omitempty"`
	AccessKeyID     string `json:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty"`
}

const (
	DriverMongo    = "mongo"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	BlobLocal = "local"
	BlobS3    = "s3"
	BlobNone  = "none"

	defaultMaxUploadBytes = 32 << 20
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Serverless reports whether the process runs on a host without a
// persistent writable filesystem.
func Serverless() bool {
	return os.Getenv("VERCEL") == "1" || strings.EqualFold(os.Getenv("SERVERLESS"), "true")
}

// Load reads the configuration from the environment. Values that fail to
// parse are left for Validate to report.
func Load() Config {
	cfg := Config{
		HTTPAddr:               os.Getenv("HTTP_ADDR"),
		HTTPShutdownTimeoutStr: getEnv("HTTP_SHUTDOWN_TIMEOUT", "10s"),
		CORSOrigin:             getEnv("CORS_ORIGIN", "*"),
		MaxUploadBytesStr:      getEnv("MAX_UPLOAD_BYTES", strconv.Itoa(defaultMaxUploadBytes)),

		DBDriver:      strings.ToLower(getEnv("DB_DRIVER", DriverMongo)),
		MongoURI:      os.Getenv("MONGODB_URI"),
		MongoDatabase: getEnv("MONGODB_DATABASE", "jobtracker"),
		SQLitePath:    getEnv("SQLITE_PATH", "data/jobtracker.db"),
		PostgresURL:   os.Getenv("POSTGRES_URL"),
		UploadDir:     getEnv("UPLOAD_DIR", "public/uploads"),
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Prefix:          getEnv("S3_PREFIX", "uploads"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),

		MetricsEnabled: strings.EqualFold(getEnv("METRICS_ENABLED", "false"), "true"),
		MetricsPath:    getEnv("METRICS_PATH", "/metrics"),
	}

	// PORT is what most hosting platforms set.
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":" + getEnv("PORT", "8080")
	}

	blobDefault := BlobLocal
	if Serverless() {
		blobDefault = BlobNone
	}
	cfg.BlobBackend = strings.ToLower(getEnv("BLOB_BACKEND", blobDefault))

	if d, err := time.ParseDuration(cfg.HTTPShutdownTimeoutStr); err == nil {
		cfg.HTTPShutdownTimeout = d
	}
	if n, err := strconv.ParseInt(cfg.MaxUploadBytesStr, 10, 64); err == nil {
		cfg.MaxUploadBytes = n
	}
	return cfg
}

// MaskedJSON returns the configuration as JSON with credentials hidden.
func (c Config) MaskedJSON() ([]byte, error) {
	m := c
	m.MongoURI = maskURL(c.MongoURI)
	m.PostgresURL = maskURL(c.PostgresURL)
	if m.S3.AccessKeyID != "" {
		m.S3.AccessKeyID = "***"
	}
	if m.S3.SecretAccessKey != "" {
		m.S3.SecretAccessKey = "***"
	}
	return json.MarshalIndent(m, "", "  ")
}

// maskURL keeps the scheme and host of a connection string and hides the
// credentials and everything after the host.
func maskURL(s string) string {
	if s == "" {
		return ""
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "***"
	}
	return u.Scheme + "://***@" + u.Host + "/***"
}
