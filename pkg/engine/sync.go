package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/identity-field/sheetsync/pkg/smartsheet"
)

// SheetReader is the read surface of the sheet service client.
type SheetReader interface {
	FetchAllRows(ctx context.Context, sheetID int64) ([]smartsheet.Row, error)
	ColumnTitles(ctx context.Context, sheetID int64) (map[int64]string, error)
}

// SheetService combines the read and write surfaces a sync job needs.
type SheetService interface {
	SheetReader
	RowWriter
}

// LastRunStore persists the last-run timestamp marker between invocations.
// The marker is informational only: every run performs a full rescan.
type LastRunStore interface {
	LoadLastRun(ctx context.Context) time.Time
	SaveLastRun(ctx context.Context, ts time.Time) error
}

// RunResult summarizes one sync job invocation.
type RunResult struct {
	Job              string
	SourceCandidates int
	IndexedKeys      int
	PlannedInserts   int
	PlannedUpdates   int
	Summary          Summary
	StartedAt        time.Time
	Duration         time.Duration
}

// SyncJob runs the fetch/index/plan/apply cycle for one JobSpec. A job is
// single-threaded and run-to-completion; there is no overlap control between
// invocations.
type SyncJob struct {
	spec    JobSpec
	service SheetService
	state   LastRunStore
	dryRun  bool
	logger  *zap.Logger
}

// NewSyncJob creates a sync job for the given spec. The state store is
// optional; when nil no last-run marker is written.
func NewSyncJob(spec JobSpec, service SheetService, logger *zap.Logger) (*SyncJob, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &SyncJob{
		spec:    spec,
		service: service,
		logger:  logger.With(zap.String("job", spec.Name)),
	}, nil
}

// WithState sets the last-run store and returns the modified job.
func (j *SyncJob) WithState(state LastRunStore) *SyncJob {
	j.state = state
	return j
}

// WithDryRun sets dry-run mode and returns the modified job.
func (j *SyncJob) WithDryRun(dryRun bool) *SyncJob {
	j.dryRun = dryRun
	return j
}

// Name returns the job name.
func (j *SyncJob) Name() string {
	return j.spec.Name
}

// Run executes one full reconciliation pass: fetch source candidates, index
// the destination, plan, and apply. Fetch failures abort the run; write
// failures degrade per the applier's fallback and are reported in the result.
func (j *SyncJob) Run(ctx context.Context) (*RunResult, error) {
	start := time.Now().UTC()
	result := &RunResult{Job: j.spec.Name, StartedAt: start}

	j.logger.Info("Sync triggered",
		zap.Time("startedAt", start),
		zap.Bool("dryRun", j.dryRun))

	if j.state != nil {
		lastRun := j.state.LoadLastRun(ctx)
		// Always full scan for correctness; the marker is logged, not used.
		j.logger.Info("Last run marker", zap.Time("lastRun", lastRun))
	}

	sourceRows, err := j.service.FetchAllRows(ctx, j.spec.SourceSheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch source sheet %d: %w", j.spec.SourceSheetID, err)
	}

	planner := j.newPlanner(ctx)

	candidates := j.filterSource(sourceRows)
	result.SourceCandidates = len(candidates)
	j.logger.Info("Source candidate rows", zap.Int("count", len(candidates)))

	if len(candidates) == 0 {
		j.saveLastRun(ctx, start)
		j.logger.Info("Nothing to do")
		result.Duration = time.Since(start)
		return result, nil
	}

	destRows, err := j.service.FetchAllRows(ctx, j.spec.DestSheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch destination sheet %d: %w", j.spec.DestSheetID, err)
	}

	index := BuildIndex(destRows, j.spec.DestRowColumn, j.spec.DestRowValue, []int64{j.spec.DestKeyColumn}, j.logger)
	result.IndexedKeys = len(index)
	j.logger.Info("Indexed destination rows",
		zap.String("rowType", j.spec.DestRowValue),
		zap.Int("keys", len(index)))

	plan := planner.BuildPlan(candidates, index)
	result.PlannedInserts = len(plan.Inserts)
	result.PlannedUpdates = len(plan.Updates)
	j.logger.Info("Plan built",
		zap.Int("inserts", len(plan.Inserts)),
		zap.Int("updates", len(plan.Updates)),
		zap.Int("skippedIneligible", plan.SkippedIneligible),
		zap.Int("skippedNoKey", plan.SkippedNoKey),
		zap.Int("skippedGate", plan.SkippedGate),
		zap.Int("skippedUnchanged", plan.SkippedUnchanged))

	applier := NewApplier(j.service, j.logger).WithDryRun(j.dryRun)
	result.Summary = applier.Apply(ctx, j.spec.DestSheetID, plan.Inserts, plan.Updates)

	j.saveLastRun(ctx, start)
	result.Duration = time.Since(start)

	j.logger.Info("Sync completed",
		zap.Int("inserted", result.Summary.Inserted),
		zap.Int("updated", result.Summary.Updated),
		zap.Int("failures", len(result.Summary.Failures)),
		zap.Bool("dryRun", result.Summary.DryRun),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// newPlanner builds the planner with column titles for readable diff logs.
// Title fetches are best-effort: a failure falls back to raw identifiers.
func (j *SyncJob) newPlanner(ctx context.Context) *Planner {
	srcTitles, err := j.service.ColumnTitles(ctx, j.spec.SourceSheetID)
	if err != nil {
		j.logger.Warn("Failed to fetch source column titles", zap.Error(err))
	}
	destTitles, err := j.service.ColumnTitles(ctx, j.spec.DestSheetID)
	if err != nil {
		j.logger.Warn("Failed to fetch destination column titles", zap.Error(err))
	}
	return NewPlanner(j.spec, srcTitles, destTitles, j.logger)
}

// filterSource applies the static source predicate up front so candidate
// counts are logged before planning.
func (j *SyncJob) filterSource(rows []smartsheet.Row) []smartsheet.Row {
	planner := NewPlanner(j.spec, nil, nil, j.logger)
	candidates := make([]smartsheet.Row, 0, len(rows))
	for _, row := range rows {
		if planner.eligible(row.CellMap()) {
			candidates = append(candidates, row)
		}
	}
	return candidates
}

// saveLastRun overwrites the marker blob; failures are logged, never fatal.
func (j *SyncJob) saveLastRun(ctx context.Context, ts time.Time) {
	if j.state == nil {
		return
	}
	if err := j.state.SaveLastRun(ctx, ts); err != nil {
		j.logger.Warn("Failed to save last-run marker", zap.Error(err))
	}
}
