package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/app"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/config"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/server"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/synthetic"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	// Get the project root directory (where go.mod is)
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// main is the entry point for the API server
// It assembles the quote service, starts its background workers and serves HTTP
// until SIGINT/SIGTERM
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	if cfg.DevMode {
		logger.SetLevel(logrus.DebugLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	svc, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to assemble quote service")
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.WithError(err).Warn("close failed")
		}
	}()

	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		svc.Run(ctx)
	}()

	h := &server.Handlers{
		Engine:    svc.Engine,
		Sessions:  svc.Sessions,
		Market:    svc.Market,
		Synthetic: synthetic.New(nil),
		Wallet:    svc.Wallet,
		Flags:     svc.Flags,
		Providers: svc.Providers,
		Journal:   svc.Journal,
		Activity:  svc.Activity,
		Metrics:   svc.Metrics,
		DevMode:   cfg.DevMode,
		Logger:    logger,
	}
	if svc.Ticker != nil {
		h.Ticker = svc.Ticker
	}

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:           cfg.APIAddr,
			DevMode:        cfg.DevMode,
			APIKey:         cfg.APIKey,
			QuoteRateLimit: cfg.QuoteRateLimit,
			QuoteRateBurst: cfg.QuoteRateBurst,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
		_ = srv.Shutdown(context.Background())
	}()

	logger.WithField("addr", cfg.APIAddr).Info("api server starting")
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("api server failed")
	}

	if err := srv.WaitClosed(context.Background()); err != nil {
		logger.WithError(err).Warn("server did not close cleanly")
	}
	<-workersDone
}
