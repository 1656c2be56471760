package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/oddslab/syntharb/internal/domain"
)

// defaultBatchSize caps how many rows a single archive object holds.
const defaultBatchSize = 5000

// Archiver ages detected opportunities out of PostgreSQL into JSONL objects
// in blob storage. Rows are only deleted after their batch has been written.
type Archiver struct {
	store     domain.OpportunityStore
	writer    domain.BlobWriter
	batchSize int
	logger    *slog.Logger
}

// NewArchiver creates an Archiver. batchSize caps rows per archive object;
// zero or negative falls back to the default.
func NewArchiver(store domain.OpportunityStore, writer domain.BlobWriter, batchSize int, logger *slog.Logger) *Archiver {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Archiver{
		store:     store,
		writer:    writer,
		batchSize: batchSize,
		logger:    logger.With("component", "archiver"),
	}
}

// Archive moves all opportunities detected before olderThan into blob
// storage, one JSONL object per batch, then deletes the archived rows.
func (a *Archiver) Archive(ctx context.Context, olderThan time.Time) error {
	total := 0
	for {
		batch, err := a.store.ListBefore(ctx, olderThan, a.batchSize)
		if err != nil {
			return fmt.Errorf("archiver: list opportunities: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		body, err := marshalJSONL(batch)
		if err != nil {
			return fmt.Errorf("archiver: marshal batch: %w", err)
		}

		path := archivePath("opportunities", batch[0].DetectedAt)
		if err := a.writer.Write(ctx, path, bytes.NewReader(body), "application/x-ndjson"); err != nil {
			return fmt.Errorf("archiver: write batch: %w", err)
		}

		// Delete only up to the last archived row so nothing written
		// after the list call is lost.
		last := batch[len(batch)-1].DetectedAt
		deleted, err := a.store.DeleteBefore(ctx, last.Add(time.Nanosecond))
		if err != nil {
			return fmt.Errorf("archiver: delete archived rows: %w", err)
		}

		total += len(batch)
		a.logger.Info("archived opportunity batch",
			"path", path,
			"rows", len(batch),
			"deleted", deleted,
		)

		if len(batch) < a.batchSize {
			break
		}
	}

	if total > 0 {
		a.logger.Info("archive pass complete", "rows", total, "older_than", olderThan)
	}
	return nil
}

// archivePath partitions archive objects by month, with a nanosecond batch
// suffix so batches within a month never collide.
func archivePath(kind string, first time.Time) string {
	return fmt.Sprintf("archive/%s/%s/%d.jsonl",
		kind, first.UTC().Format("2006-01"), first.UTC().UnixNano())
}

// marshalJSONL encodes a slice as newline-delimited JSON.
func marshalJSONL[T any](items []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*Archiver)(nil)
