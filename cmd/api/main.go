package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"

	"github.com/arfaar/swapfinity/internal/config"
	"github.com/arfaar/swapfinity/internal/db"
	"github.com/arfaar/swapfinity/internal/identity"
	"github.com/arfaar/swapfinity/internal/logging"
	"github.com/arfaar/swapfinity/internal/media"
	"github.com/arfaar/swapfinity/internal/server"
)

// Set with -ldflags "-X main.sha=... -X main.buildTime=...".
var (
	sha       = "dev"
	buildTime = ""
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []option.ClientOption
	if cfg.GoogleCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GoogleCredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID}, opts...)
	if err != nil {
		return fmt.Errorf("init firebase: %w", err)
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		return fmt.Errorf("init firebase auth: %w", err)
	}
	provider, err := identity.NewFirebaseProvider(ctx, authClient, cfg.FirebaseAPIKey, log)
	if err != nil {
		return fmt.Errorf("init identity provider: %w", err)
	}

	store, err := db.OpenStore(ctx, cfg, app, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	deps := server.Deps{
		Store:          store,
		Identity:       provider,
		AllowedOrigins: cfg.AllowedOrigins,
		FanoutLimit:    cfg.FanoutLimit,
		Logger:         log,
		SHA:            sha,
		BuildTime:      buildTime,
	}
	if cfg.GCSBucket != "" {
		uploader, err := media.NewGCSUploader(ctx, cfg.GCSBucket, cfg.GoogleCredentialsFile, cfg.UploadURLTTL, log)
		if err != nil {
			return fmt.Errorf("init uploader: %w", err)
		}
		defer uploader.Close()
		deps.Uploader = uploader
	} else {
		log.Info("GCS_BUCKET not set; uploads disabled")
	}

	srv := server.New(deps)
	addr := ":" + cfg.Port

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", addr, "sha", sha)
		errCh <- srv.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
