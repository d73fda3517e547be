package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// L1Archiver uploads recorded updates older than a cutoff to cold storage.
// The s3blob Archiver satisfies this.
type L1Archiver interface {
	ArchiveL1Updates(ctx context.Context, before time.Time) (int64, error)
}

// UpdateDeleter removes recorded updates older than a cutoff from the
// primary store after they have been archived.
type UpdateDeleter interface {
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// Archiver periodically moves old recorded updates from the database to
// blob storage, then deletes the archived rows. The delete only runs after
// the archive upload has succeeded.
type Archiver struct {
	blobArchiver  L1Archiver
	deleter       UpdateDeleter
	retentionDays int
	interval      time.Duration
	logger        *slog.Logger
}

// NewArchiver creates a new Archiver. retentionDays controls how far back
// records are kept in the database; interval is how often an archive run
// executes.
func NewArchiver(blobArchiver L1Archiver, deleter UpdateDeleter, retentionDays int, interval time.Duration, logger *slog.Logger) *Archiver {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Archiver{
		blobArchiver:  blobArchiver,
		deleter:       deleter,
		retentionDays: retentionDays,
		interval:      interval,
		logger:        logger,
	}
}

// Run executes a single archive run. It calculates the cutoff time from the
// retention window, archives all updates older than the cutoff, and deletes
// them once the upload has succeeded.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-time.Duration(a.retentionDays) * 24 * time.Hour)
	a.logger.Info("starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	archived, err := a.blobArchiver.ArchiveL1Updates(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving updates before %v: %w", cutoff, err)
	}
	if archived == 0 {
		a.logger.Info("archive run complete, nothing to archive")
		return nil
	}

	deleted, err := a.deleter.DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("deleting archived updates before %v: %w", cutoff, err)
	}

	a.logger.Info("archive run complete",
		slog.Int64("archived", archived),
		slog.Int64("deleted", deleted),
	)
	return nil
}

// RunPeriodic runs the archiver on its configured interval until the context
// is cancelled. A failed run is logged and retried on the next tick.
func (a *Archiver) RunPeriodic(ctx context.Context) error {
	a.logger.Info("archiver started", slog.Duration("interval", a.interval))

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archiver stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}
