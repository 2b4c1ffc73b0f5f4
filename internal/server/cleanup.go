package server

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jayrajpamnani/HexDrop/internal/transfer"
)

// expiredLister is the slice of the record store the sweeper needs.
type expiredLister interface {
	ExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]transfer.Record, error)
	Delete(ctx context.Context, key int) error
}

type objectRemover interface {
	Remove(ctx context.Context, locator string) error
}

// CleanupConfig holds configuration for the expired-transfer sweeper.
type CleanupConfig struct {
	Enabled  bool
	Interval time.Duration
	Batch    int
	Records  expiredLister
	Objects  objectRemover
}

// StartCleanupJob periodically deletes transfers whose TTL elapsed: blob
// first, then record. Deleting expired rows is what returns their keys to
// the pool, since transfer_key is globally unique in the store.
func StartCleanupJob(ctx context.Context, cfg CleanupConfig) {
	if !cfg.Enabled {
		log.Printf("service=cleanup msg=%q", "disabled")
		return
	}

	log.Printf("service=cleanup msg=%q interval=%s batch=%d",
		"starting", cfg.Interval, cfg.Batch)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	// Run immediately on start
	runCleanup(ctx, cfg)

	for {
		select {
		case <-ctx.Done():
			log.Printf("service=cleanup msg=%q", "shutting_down")
			return
		case <-ticker.C:
			runCleanup(ctx, cfg)
		}
	}
}

func runCleanup(ctx context.Context, cfg CleanupConfig) {
	start := time.Now()

	expired, err := cfg.Records.ExpiredBefore(ctx, time.Now(), cfg.Batch)
	if err != nil {
		log.Printf("service=cleanup msg=%q err=%v", "query_failed", err)
		return
	}

	deleted := 0
	for _, rec := range expired {
		log.Printf("service=cleanup msg=%q key=%d expired_at=%s",
			"deleting_expired_transfer", rec.TransferKey, rec.ExpiresAt.Format(time.RFC3339))

		if err := cfg.Objects.Remove(ctx, rec.StorageLocator); err != nil {
			log.Printf("service=cleanup msg=%q key=%d err=%v", "blob_delete_failed", rec.TransferKey, err)
			// Keep the record; its locator is the only pointer to the blob,
			// so deleting it now would orphan the bytes. Retried next sweep.
			continue
		}

		if err := cfg.Records.Delete(ctx, rec.TransferKey); err != nil {
			log.Printf("service=cleanup msg=%q key=%d err=%v", "record_delete_failed", rec.TransferKey, err)
			continue
		}
		deleted++
	}

	log.Printf("service=cleanup msg=%q deleted=%d duration_ms=%d",
		"cleanup_complete", deleted, time.Since(start).Milliseconds())
}

// GetCleanupConfigFromEnv reads sweeper settings from the environment.
func GetCleanupConfigFromEnv(recs expiredLister, objs objectRemover) CleanupConfig {
	enabled := os.Getenv("HEXDROP_CLEANUP_ENABLED") != "false"

	interval := 1 * time.Hour
	if v := os.Getenv("HEXDROP_CLEANUP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			interval = d
		}
	}

	return CleanupConfig{
		Enabled:  enabled,
		Interval: interval,
		Batch:    100,
		Records:  recs,
		Objects:  objs,
	}
}
