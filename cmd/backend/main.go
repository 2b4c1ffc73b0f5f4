package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/jayrajpamnani/HexDrop/internal/db"
	"github.com/jayrajpamnani/HexDrop/internal/records"
	"github.com/jayrajpamnani/HexDrop/internal/server"
	"github.com/jayrajpamnani/HexDrop/internal/storage"
	"github.com/jayrajpamnani/HexDrop/internal/transfer"
)

func main() {
	// Local development convenience; absent .env is fine.
	_ = godotenv.Load()

	cfg, err := server.LoadAppConfig()
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "config_invalid", err)
		os.Exit(1)
	}

	build := server.BuildInfo{
		Version: getenvDefault("HEXDROP_VERSION", "dev"),
		Commit:  getenvDefault("HEXDROP_COMMIT", "unknown"),
	}

	// Database
	dbConn, err := server.OpenDB(cfg.DatabaseURL)
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "db_connect_failed", err)
		os.Exit(1)
	}
	defer func() { _ = dbConn.Close() }()

	// Run migrations
	log.Printf("service=backend msg=%q", "running_migrations")
	if err := db.RunMigrations(dbConn); err != nil {
		log.Printf("service=backend msg=%q err=%v", "migration_failed", err)
		os.Exit(1)
	}
	log.Printf("service=backend msg=%q", "migrations_complete")

	// Object storage
	objects, err := storage.New(context.Background(), storage.Config{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.Bucket,
	})
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "storage_connect_failed", err)
		os.Exit(1)
	}

	recs := records.NewStore(dbConn)

	svc := transfer.NewService(objects, recs, nil, transfer.Options{
		MaxFileSize:  cfg.MaxUploadBytes,
		TTL:          cfg.TTL,
		MaxDownloads: cfg.MaxDownloads,
	})

	srv := server.New(server.Config{
		Addr:           cfg.Addr,
		Build:          build,
		DB:             dbConn,
		Objects:        objects,
		Service:        svc,
		RateLimit:      rate.Limit(cfg.RateLimit),
		RateBurst:      cfg.RateBurst,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	// Expired-transfer sweeper, stopped with the process context.
	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	defer cancelCleanup()
	go server.StartCleanupJob(cleanupCtx, server.GetCleanupConfigFromEnv(recs, objects))

	// Start the HTTP server in a background goroutine so we can listen
	// for OS signals while it runs.
	errCh := make(chan error, 1)
	go func() {
		log.Printf("service=backend msg=%q addr=%s version=%s commit=%s",
			"starting", cfg.Addr, build.Version, build.Commit)
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("service=backend msg=%q signal=%s", "shutting_down", sig.String())
		cancelCleanup()
		// Give the server 5 seconds to finish in-flight requests.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("service=backend msg=%q err=%v", "shutdown_error", err)
			os.Exit(1)
		}
		log.Printf("service=backend msg=%q", "shutdown_complete")
	case err := <-errCh:
		if err != nil {
			log.Printf("service=backend msg=%q err=%v", "server_error", err)
			os.Exit(1)
		}
	}
}

// getenvDefault reads an environment variable and returns a default value
// if not set.
func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
