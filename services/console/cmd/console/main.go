package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"adminconsole/internal/util"
	"adminconsole/pkg/storage"
	"adminconsole/services/console/internal/app"
	"adminconsole/services/console/internal/catalog"
	"adminconsole/services/console/internal/config"
	"adminconsole/services/console/internal/security"
	"adminconsole/services/console/internal/server"
)

func main() {
	path := config.ConfigPath
	if p := os.Getenv("CONSOLE_CONFIG"); p != "" {
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	debounce, err := config.ParseDuration("searchDebounce", cfg.SearchDebounce)
	if err != nil {
		log.Fatalf("failed to parse search debounce: %v", err)
	}
	toastTTL, err := config.ParseDuration("toastTTL", cfg.ToastTTL)
	if err != nil {
		log.Fatalf("failed to parse toast TTL: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resources := make([]catalog.Definition, 0, len(cfg.Resources))
	for _, r := range cfg.Resources {
		resources = append(resources, catalog.Definition{Name: r.Name, Path: r.Path, Label: r.Label, Filters: r.Filters})
	}

	appCore, err := app.New(ctx, app.Config{
		APIBaseURL:              cfg.APIBaseURL,
		APITimeout:              cfg.APITimeout(),
		PageSize:                cfg.PageSize,
		SearchDebounce:          debounce,
		DiscardStale:            cfg.DiscardStaleResponses,
		ToastTTL:                toastTTL,
		LoginPath:               cfg.LoginPath,
		SessionBackend:          cfg.SessionBackend,
		SessionPath:             cfg.SessionPath,
		SessionNamespace:        cfg.SessionNamespace,
		SessionEncryptionKey:    cfg.SessionEncryptionKey,
		CheckTokenExpiry:        cfg.CheckTokenExpiry,
		DatabaseURL:             cfg.DatabaseURL,
		RedisAddr:               cfg.RedisAddr,
		RedisPassword:           cfg.RedisPassword,
		RedisPrefix:             cfg.RedisPrefix,
		LoginRateLimitPerMinute: cfg.LoginRateLimitPerMinute,
		UploadBackend:           cfg.UploadBackend,
		Minio: storage.MinioConfig{
			Endpoint:      cfg.MinioEndpoint,
			AccessKey:     cfg.MinioAccessKey,
			SecretKey:     cfg.MinioSecretKey,
			Bucket:        cfg.MinioBucket,
			UseSSL:        cfg.MinioUseSSL,
			PublicBaseURL: cfg.MinioPublicBaseURL,
		},
		AMQPURL:      cfg.AMQPURL,
		AMQPExchange: cfg.AMQPExchange,
		Resources:    resources,
		Logger:       logger,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}
	defer appCore.Close()

	alerter := security.NewAuditAlerter(cfg.RedisAddr, cfg.RedisPassword, "")
	defer alerter.Close()

	httpServer, err := server.New(server.Config{
		App:           appCore,
		AllowedOrigin: cfg.AllowedOrigin,
		LoginPath:     cfg.LoginPath,
		Alerter:       alerter,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := cfg.Addr()
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		// Gated routes answer 503 until the stored session has been read.
		appCore.Session.Initialize(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
