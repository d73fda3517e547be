package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/idexbot/internal/domain"
)

// L1ArchiveStore provides read access to recorded top-of-book updates for
// archival purposes. The Postgres L1UpdateStore satisfies this implicitly.
type L1ArchiveStore interface {
	// ListBefore returns all updates with a timestamp strictly before the
	// given cutoff time.
	ListBefore(ctx context.Context, before time.Time) ([]domain.L1Update, error)
}

// Archiver moves old recorded updates from the database to cold storage as
// newline-delimited JSON files partitioned by year-month.
//
// Deletion of the archived records from the primary store is intentionally
// NOT performed here; that is a separate, explicit step executed after the
// archive has been written.
type Archiver struct {
	writer  domain.BlobWriter
	updates L1ArchiveStore
}

// NewArchiver creates a new Archiver.
func NewArchiver(writer domain.BlobWriter, updates L1ArchiveStore) *Archiver {
	return &Archiver{
		writer:  writer,
		updates: updates,
	}
}

// ArchiveL1Updates queries all updates recorded before the cutoff, serializes
// them to JSONL, and uploads the file at archive/l1_updates/YYYY-MM.jsonl.
// It returns the number of records archived.
func (a *Archiver) ArchiveL1Updates(ctx context.Context, before time.Time) (int64, error) {
	updates, err := a.updates.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive l1 updates query: %w", err)
	}
	if len(updates) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(updates)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive l1 updates marshal: %w", err)
	}

	path := archivePath("l1_updates", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive l1 updates upload: %w", err)
	}

	return int64(len(updates)), nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/l1_updates/2026-08.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
