package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/identity-field/sheetsync/pkg/smartsheet"
)

// RowWriter is the write surface of the sheet service client. Each call
// carries at most one chunk of row operations.
type RowWriter interface {
	InsertRows(ctx context.Context, sheetID int64, rows []smartsheet.RowWrite) error
	UpdateRows(ctx context.Context, sheetID int64, rows []smartsheet.RowWrite) error
}

// FailureRecord captures one row operation that could not be applied after
// the chunk retry and the per-row fallback.
type FailureRecord struct {
	Operation string
	RowID     int64
	Message   string
}

// Summary reports what an apply pass did, or would have done in dry-run mode.
type Summary struct {
	Inserted int
	Updated  int
	DryRun   bool
	Failures []FailureRecord
}

// HasFailures reports whether any row operation failed.
func (s Summary) HasFailures() bool {
	return len(s.Failures) > 0
}

// Applier performs chunked insert/update calls against the sheet service with
// retry-then-per-row-fallback on chunk failure. A dry-run applier issues zero
// network writes and reports would-be counts.
type Applier struct {
	writer    RowWriter
	chunkSize int
	dryRun    bool
	logger    *zap.Logger
}

// NewApplier creates an applier with the service's 500-row chunk limit.
func NewApplier(writer RowWriter, logger *zap.Logger) *Applier {
	return &Applier{
		writer:    writer,
		chunkSize: smartsheet.MaxBatchRows,
		logger:    logger,
	}
}

// WithChunkSize sets the chunk size and returns the modified applier.
func (a *Applier) WithChunkSize(size int) *Applier {
	if size > 0 {
		a.chunkSize = size
	}
	return a
}

// WithDryRun sets dry-run mode and returns the modified applier.
func (a *Applier) WithDryRun(dryRun bool) *Applier {
	a.dryRun = dryRun
	return a
}

// Apply writes the planned inserts and updates to the destination sheet.
// Returns immediately when both lists are empty. A failed chunk is retried
// once as a whole, then degraded to one call per row so a single bad row
// cannot block the rest of the run; individual failures are recorded in the
// summary rather than aborting.
func (a *Applier) Apply(ctx context.Context, sheetID int64, inserts, updates []smartsheet.RowWrite) Summary {
	summary := Summary{DryRun: a.dryRun}
	if len(inserts) == 0 && len(updates) == 0 {
		return summary
	}

	if a.dryRun {
		summary.Inserted = len(inserts)
		summary.Updated = len(updates)
		a.logger.Warn("Dry-run mode on, no changes will be written",
			zap.Int64("sheetId", sheetID),
			zap.Int("wouldInsert", len(inserts)),
			zap.Int("wouldUpdate", len(updates)))
		return summary
	}

	summary.Inserted, summary.Failures = a.applyList(ctx, sheetID, "insert", inserts, summary.Failures, a.writer.InsertRows)
	summary.Updated, summary.Failures = a.applyList(ctx, sheetID, "update", updates, summary.Failures, a.writer.UpdateRows)

	return summary
}

// applyList chunks one operation list and writes it chunk by chunk.
func (a *Applier) applyList(
	ctx context.Context,
	sheetID int64,
	op string,
	rows []smartsheet.RowWrite,
	failures []FailureRecord,
	write func(context.Context, int64, []smartsheet.RowWrite) error,
) (int, []FailureRecord) {
	applied := 0

	for start := 0; start < len(rows); start += a.chunkSize {
		end := start + a.chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		err := write(ctx, sheetID, chunk)
		if err != nil {
			a.logger.Warn("Chunk write failed, retrying once",
				zap.Int64("sheetId", sheetID),
				zap.String("operation", op),
				zap.Int("rows", len(chunk)),
				zap.Error(err))
			err = write(ctx, sheetID, chunk)
		}
		if err == nil {
			applied += len(chunk)
			continue
		}

		a.logger.Warn("Chunk retry failed, falling back to per-row writes",
			zap.Int64("sheetId", sheetID),
			zap.String("operation", op),
			zap.Int("rows", len(chunk)),
			zap.Error(err))

		for _, row := range chunk {
			if rowErr := write(ctx, sheetID, []smartsheet.RowWrite{row}); rowErr != nil {
				failures = append(failures, FailureRecord{
					Operation: op,
					RowID:     row.ID,
					Message:   rowErr.Error(),
				})
				a.logger.Error("Row write failed",
					zap.Int64("sheetId", sheetID),
					zap.String("operation", op),
					zap.Int64("rowId", row.ID),
					zap.Error(rowErr))
				continue
			}
			applied++
		}
	}

	return applied, failures
}
