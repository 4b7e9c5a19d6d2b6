package jobs

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/identity-field/sheetsync/pkg/engine"
	"github.com/identity-field/sheetsync/pkg/smartsheet"
)

// Default source key columns for the project-missing check.
const (
	missingSrcTankCol  int64 = 6122430917201796
	missingSrcCityCol  int64 = 2744731196673924
	missingSrcStateCol int64 = 7248330824044420
)

// SheetReport summarizes what a fan-out job did on one destination sheet.
type SheetReport struct {
	Sheet    string
	Updated  int
	Failures int
	Err      string
}

// FanOutResult summarizes a run across every destination sheet.
type FanOutResult struct {
	Sheets       []SheetReport
	TotalUpdated int
}

// MissingCheckJob flags destination rows whose tank|city|state key no longer
// exists in the source sheet by setting each sheet's "Project Missing"
// checkbox column.
type MissingCheckJob struct {
	service       engine.SheetService
	sourceSheetID int64
	sourceKeyCols []int64
	dests         []DestSheet
	dryRun        bool
	logger        *zap.Logger
}

// NewMissingCheckJob creates the job over the configured destination sheets.
func NewMissingCheckJob(service engine.SheetService, dests []DestSheet, logger *zap.Logger) *MissingCheckJob {
	return &MissingCheckJob{
		service:       service,
		sourceSheetID: ScopeSheetID,
		sourceKeyCols: []int64{missingSrcTankCol, missingSrcCityCol, missingSrcStateCol},
		dests:         dests,
		logger:        logger.With(zap.String("job", "project-missing-check")),
	}
}

// WithSource overrides the source sheet and key columns and returns the
// modified job.
func (j *MissingCheckJob) WithSource(sheetID int64, keyCols []int64) *MissingCheckJob {
	j.sourceSheetID = sheetID
	j.sourceKeyCols = keyCols
	return j
}

// WithDryRun sets dry-run mode and returns the modified job.
func (j *MissingCheckJob) WithDryRun(dryRun bool) *MissingCheckJob {
	j.dryRun = dryRun
	return j
}

// Run loads the source key set, then walks each destination sheet and flags
// rows whose key is absent. A source fetch failure aborts the run; a failure
// on one destination sheet is reported and the remaining sheets still get
// processed.
func (j *MissingCheckJob) Run(ctx context.Context) (*FanOutResult, error) {
	j.logger.Info("Starting project-missing check",
		zap.Bool("dryRun", j.dryRun),
		zap.Int("destinationSheets", len(j.dests)))

	srcRows, err := j.service.FetchAllRows(ctx, j.sourceSheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch source sheet %d: %w", j.sourceSheetID, err)
	}

	srcKeys := make(map[string]bool)
	for _, row := range srcRows {
		if key, ok := engine.ExtractKey(row, j.sourceKeyCols); ok {
			srcKeys[key] = true
		}
	}
	j.logger.Info("Loaded source keys",
		zap.Int64("sheetId", j.sourceSheetID),
		zap.Int("keys", len(srcKeys)))

	result := &FanOutResult{}
	for _, dest := range j.dests {
		report := j.checkSheet(ctx, dest, srcKeys)
		result.Sheets = append(result.Sheets, report)
		result.TotalUpdated += report.Updated
	}

	j.logger.Info("Project-missing check completed",
		zap.Int("totalUpdated", result.TotalUpdated),
		zap.Bool("dryRun", j.dryRun))
	return result, nil
}

// checkSheet flags the missing rows on one destination sheet.
func (j *MissingCheckJob) checkSheet(ctx context.Context, dest DestSheet, srcKeys map[string]bool) SheetReport {
	report := SheetReport{Sheet: dest.Name()}

	if err := dest.validateKeyColumns(); err != nil {
		report.Err = err.Error()
		j.logger.Error("Skipping destination sheet with invalid mapping", zap.Error(err))
		return report
	}
	if dest.Cols.Missing == 0 {
		report.Err = "missing column id not configured"
		j.logger.Error("Skipping destination sheet without missing column",
			zap.String("sheet", dest.Name()))
		return report
	}

	rows, err := j.service.FetchAllRows(ctx, dest.SheetID)
	if err != nil {
		report.Err = err.Error()
		j.logger.Error("Failed to fetch destination sheet, continuing with the rest",
			zap.String("sheet", dest.Name()),
			zap.Error(err))
		return report
	}

	updates := make([]smartsheet.RowWrite, 0)
	for _, row := range rows {
		key, ok := engine.ExtractKey(row, []int64{dest.Cols.Tank, dest.Cols.City, dest.Cols.State})
		if !ok {
			continue
		}
		if !srcKeys[key] {
			updates = append(updates, smartsheet.RowWrite{
				ID:    row.ID,
				Cells: []smartsheet.Cell{{ColumnID: dest.Cols.Missing, Value: true}},
			})
		}
	}

	if len(updates) == 0 {
		j.logger.Info("No missing rows found", zap.String("sheet", dest.Name()))
		return report
	}

	applier := engine.NewApplier(j.service, j.logger).WithDryRun(j.dryRun)
	summary := applier.Apply(ctx, dest.SheetID, nil, updates)
	report.Updated = summary.Updated
	report.Failures = len(summary.Failures)

	j.logger.Info("Marked rows project-missing",
		zap.String("sheet", dest.Name()),
		zap.Int("updated", summary.Updated),
		zap.Int("failures", len(summary.Failures)),
		zap.Bool("dryRun", j.dryRun))
	return report
}
