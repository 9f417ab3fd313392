package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"checkin/internal/accounts"
	"checkin/internal/attendance"
	"checkin/internal/audit"
	"checkin/internal/auth"
	"checkin/internal/config"
	"checkin/internal/httpapi"
	"checkin/internal/httpmiddleware"
	"checkin/internal/logger"
	"checkin/internal/metrics"
	"checkin/internal/options"
	"checkin/internal/orgday"
	"checkin/internal/permissions"
	"checkin/internal/queue"
	"checkin/internal/store"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "checkin-api")
	if err != nil {
		stdlog.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = log.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cal, err := orgday.New(cfg.OrgTimezone)
	if err != nil {
		return err
	}
	policy, err := attendance.ParsePolicy(cfg.DuplicatePolicy)
	if err != nil {
		return err
	}

	checks := map[string]httpapi.Checker{}
	var (
		records attendance.RecordStore
		users   accounts.Store
		db      *store.DB
		history httpapi.History
	)
	if cfg.StoreBackend == "memory" {
		log.Warn("using in-memory stores; data is lost on restart")
		records = attendance.NewMemoryStore()
		users = accounts.NewMemoryStore()
	} else {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		db, err = store.NewDB(connectCtx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			return err
		}
		defer db.Close()
		if cfg.AutoMigrate {
			if err := db.Migrate(ctx); err != nil {
				return err
			}
		}
		records = attendance.NewRepository(db.Client)
		users = accounts.NewPostgresStore(db.Client)
		history = audit.NewRepository(db.Client)
		checks["db"] = db.Healthy
	}

	source, editor := optionSource(cfg, db, log)

	var redisClient *store.Redis
	if cfg.QueueBackend == "redis" || cfg.RateLimitBackend == "redis" {
		redisClient, err = store.NewRedis(cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		checks["redis"] = redisClient.Healthy
	}

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		mem := queue.NewInMemory(256)
		go func() {
			_ = audit.NewConsumer(mem, audit.LogSink{Log: log.Named("audit")}, log).Run(ctx)
		}()
		q = mem
	} else {
		q = queue.NewRedisQueue(redisClient.Client, queue.DefaultAuditKey, log)
	}
	publisher := audit.NewQueuePublisher(q)

	var limiter httpmiddleware.Limiter
	if cfg.RateLimitBackend == "redis" {
		limiter = httpmiddleware.NewRedisLimiter(redisClient.Client, cfg.RateLimitPerMin)
	} else {
		limiter = httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	att := attendance.NewService(records, source, cal,
		attendance.WithLogger(log.Named("attendance")),
		attendance.WithMetrics(m),
		attendance.WithPublisher(publisher),
		attendance.WithRepeatWindow(cfg.ScanRepeatWindow),
	)
	accts := accounts.NewService(users, permissions.NewGate(cfg.PrivilegedAccounts), log.Named("accounts"), publisher)

	var issuer httpapi.TokenIssuer
	if !cfg.IsProduction() {
		log.Warn("development token route enabled at /v1/dev/token")
		issuer = func(email, name string) (auth.TokenPair, error) {
			return auth.Issue(email, name, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		}
	}

	r := httpapi.New(httpapi.Config{
		Attendance:  att,
		Accounts:    accts,
		Directory:   auth.NewJWTDirectory(cfg.JWTSigningKey, cfg.JWTIssuer),
		Options:     editor,
		Publisher:   publisher,
		History:     history,
		Limiter:     limiter,
		Metrics:     m,
		Gatherer:    prometheus.DefaultGatherer,
		Logger:      log.Named("http"),
		Policy:      policy,
		Checks:      checks,
		CORSOrigins: cfg.CORSOrigins,
		Issuer:      issuer,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server",
			zap.String("addr", srv.Addr),
			zap.String("timezone", cfg.OrgTimezone),
			zap.String("store", cfg.StoreBackend),
			zap.String("duplicate_policy", string(policy)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced shutdown", zap.Error(err))
	}
	log.Info("server exited")
	return nil
}

// optionSource picks where option sets come from. The editor is nil when the
// lists cannot be changed at runtime.
func optionSource(cfg config.App, db *store.DB, log *zap.Logger) (options.Source, options.Editor) {
	switch {
	case cfg.OptionsSource == "file":
		log.Info("option sets read from file", zap.String("path", cfg.OptionsFile))
		return options.NewFileSource(cfg.OptionsFile), nil
	case cfg.OptionsSource == "db" && db != nil:
		src := options.NewPostgresSource(db.Client)
		return src, src
	}
	mem := options.NewMemory(options.Default())
	return mem, mem
}
