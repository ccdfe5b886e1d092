package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/kidandcat/jobtracker/internal/api"
	"github.com/kidandcat/jobtracker/internal/blob"
	"github.com/kidandcat/jobtracker/internal/config"
	"github.com/kidandcat/jobtracker/internal/db/mongodb"
	"github.com/kidandcat/jobtracker/internal/db/sqldb"
	"github.com/kidandcat/jobtracker/internal/metrics"
	"github.com/kidandcat/jobtracker/internal/tracker"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	switch cmd := os.Args[1]; cmd {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`tracker - job and task tracker API server

Usage:
  tracker <command>

Commands:
  serve      Start the HTTP API
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  HTTP_ADDR / PORT          Listen address (default: ":8080")
  HTTP_SHUTDOWN_TIMEOUT     Graceful shutdown timeout (default: "10s")
  CORS_ORIGIN               Allowed origin (default: "*")
  MAX_UPLOAD_BYTES          Multipart upload limit (default: "33554432")

  DB_DRIVER                 mongo, sqlite or postgres (default: "mongo")
  MONGODB_URI               MongoDB connection string (required for mongo)
  MONGODB_DATABASE          MongoDB database (default: "jobtracker")
  SQLITE_PATH               SQLite file (default: "data/jobtracker.db")
  POSTGRES_URL              PostgreSQL connection string (required for postgres)

  BLOB_BACKEND              local, s3 or none (default: "local", "none" when serverless)
  UPLOAD_DIR                Local upload directory (default: "public/uploads")
  S3_BUCKET, S3_PREFIX, S3_REGION, S3_ENDPOINT
  S3_ACCESS_KEY_ID, S3_SECRET_ACCESS_KEY

  LOG_LEVEL                 Log level (default: "info")
  LOG_FORMAT                text or json (default: "text")
  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")`)
}

func setupLogger(cfg config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.DateTime,
		})
	}
	return log
}

// backend is the record store selected by DB_DRIVER.
type backend struct {
	jobs   tracker.JobStore
	tasks  tracker.TaskStore
	health api.HealthChecker
	close  func()
}

func openBackend(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*backend, error) {
	switch cfg.DBDriver {
	case config.DriverMongo:
		conn := mongodb.NewConnector(cfg.MongoURI, cfg.MongoDatabase, mongodb.WithLogger(log))
		// Connect eagerly so a bad URI fails at startup rather than on the
		// first request.
		if err := conn.Ping(ctx); err != nil {
			return nil, err
		}
		return &backend{
			jobs:   mongodb.NewJobStore(conn),
			tasks:  mongodb.NewTaskStore(conn),
			health: conn,
			close: func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := conn.Close(ctx); err != nil {
					log.WithError(err).Warn("mongodb disconnect failed")
				}
			},
		}, nil

	case config.DriverSQLite, config.DriverPostgres:
		var (
			db  *sqldb.DB
			err error
		)
		if cfg.DBDriver == config.DriverSQLite {
			db, err = sqldb.OpenSQLite(ctx, cfg.SQLitePath)
		} else {
			db, err = sqldb.OpenPostgres(ctx, cfg.PostgresURL)
		}
		if err != nil {
			return nil, err
		}
		return &backend{
			jobs:   db.Jobs(),
			tasks:  db.Tasks(),
			health: db,
			close:  func() { db.Close() },
		}, nil
	}
	return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
}

func openBlobs(ctx context.Context, cfg config.Config) (blob.Store, error) {
	switch cfg.BlobBackend {
	case config.BlobLocal:
		return blob.NewLocal(cfg.UploadDir)
	case config.BlobS3:
		return blob.NewS3(ctx, blob.S3Config{
			Bucket:          cfg.S3.Bucket,
			Prefix:          cfg.S3.Prefix,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
	case config.BlobNone:
		return blob.Discard{}, nil
	}
	return nil, fmt.Errorf("unknown BLOB_BACKEND %q", cfg.BlobBackend)
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}
	log := setupLogger(cfg)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStart()

	be, err := openBackend(startCtx, cfg, log)
	if err != nil {
		log.WithError(err).WithField("driver", cfg.DBDriver).Error("failed to open database")
		return exitRuntimeError
	}
	defer be.close()

	blobs, err := openBlobs(startCtx, cfg)
	if err != nil {
		log.WithError(err).WithField("backend", cfg.BlobBackend).Error("failed to open blob storage")
		return exitRuntimeError
	}
	if cfg.BlobBackend == config.BlobNone {
		log.Warn("BLOB_BACKEND is none; uploaded documents keep metadata only")
	}

	opts := api.Options{
		Log:            log,
		Health:         be.health,
		CORSOrigin:     cfg.CORSOrigin,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts.Metrics = metrics.NewPrometheusSink(reg, log)
		opts.MetricsPath = cfg.MetricsPath
		opts.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		log.WithField("path", cfg.MetricsPath).Info("metrics enabled")
	}

	srv := api.New(
		tracker.NewJobRepository(be.jobs, blobs, log),
		tracker.NewTaskRepository(be.tasks, log),
		tracker.NewStatsService(be.jobs, be.tasks, time.Local),
		opts,
	)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.WithFields(logrus.Fields{
		"addr":       cfg.HTTPAddr,
		"driver":     cfg.DBDriver,
		"blobs":      cfg.BlobBackend,
		"max_upload": humanize.Bytes(uint64(cfg.MaxUploadBytes)),
	}).Info("http server listening")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)
	return serve(httpServer, sig, cfg.HTTPShutdownTimeout, log)
}

// serve runs srv until a signal arrives or the listener fails. A listener
// failure is a runtime error.
func serve(srv *http.Server, sig <-chan os.Signal, shutdownTimeout time.Duration, log logrus.FieldLogger) int {
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		log.WithError(err).Error("http server error")
		return exitRuntimeError
	case received := <-sig:
		log.WithField("signal", received.String()).Info("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("http server shutdown error")
	}
	log.Info("stopped")
	return exitSuccess
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("tracker version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
