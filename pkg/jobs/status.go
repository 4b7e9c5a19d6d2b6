package jobs

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/identity-field/sheetsync/pkg/engine"
	"github.com/identity-field/sheetsync/pkg/smartsheet"
)

// Source columns for the status propagation job (scope sheet).
const (
	statusSrcTankCol   int64 = 3633417232797572
	statusSrcCityCol   int64 = 818667465691012
	statusSrcStateCol  int64 = 5322267093061508
	statusSrcStatusCol int64 = 1917042186473348
)

// statusChange is one pending status flip, kept for the CSV change log.
type statusChange struct {
	sheet     string
	rowID     int64
	tank      string
	city      string
	state     string
	oldStatus string
	newStatus string
}

// StatusUpdateJob propagates the source status column to every configured
// destination sheet by tank|city|state key. Fetch failures on a destination
// degrade to "sheet has zero rows" so one unreachable sheet cannot block the
// rest.
type StatusUpdateJob struct {
	service       engine.SheetService
	sourceSheetID int64
	dests         []DestSheet
	csvPath       string
	dryRun        bool
	logger        *zap.Logger
}

// NewStatusUpdateJob creates the job over the configured destination sheets.
func NewStatusUpdateJob(service engine.SheetService, dests []DestSheet, logger *zap.Logger) *StatusUpdateJob {
	return &StatusUpdateJob{
		service:       service,
		sourceSheetID: ScopeSheetID,
		dests:         dests,
		logger:        logger.With(zap.String("job", "status-update")),
	}
}

// WithCSVLog sets the per-run change log path and returns the modified job.
// An empty path disables the CSV log.
func (j *StatusUpdateJob) WithCSVLog(path string) *StatusUpdateJob {
	j.csvPath = path
	return j
}

// WithDryRun sets dry-run mode and returns the modified job.
func (j *StatusUpdateJob) WithDryRun(dryRun bool) *StatusUpdateJob {
	j.dryRun = dryRun
	return j
}

// Run builds the source key -> status lookup and reconciles every destination
// sheet against it.
func (j *StatusUpdateJob) Run(ctx context.Context) (*FanOutResult, error) {
	j.logger.Info("Starting status sync",
		zap.Bool("dryRun", j.dryRun),
		zap.Int("destinationSheets", len(j.dests)))

	if len(j.dests) == 0 {
		j.logger.Warn("No destination sheets configured")
		return &FanOutResult{}, nil
	}

	srcRows, err := j.service.FetchAllRows(ctx, j.sourceSheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch source sheet %d: %w", j.sourceSheetID, err)
	}

	srcStatus := make(map[string]string)
	for _, row := range srcRows {
		key, ok := engine.ExtractKey(row, []int64{statusSrcTankCol, statusSrcCityCol, statusSrcStateCol})
		if !ok {
			continue
		}
		srcStatus[key] = engine.Normalize(row.CellValue(statusSrcStatusCol))
	}
	j.logger.Info("Loaded source status values",
		zap.Int64("sheetId", j.sourceSheetID),
		zap.Int("keys", len(srcStatus)))

	result := &FanOutResult{}
	changes := make([]statusChange, 0)

	for _, dest := range j.dests {
		report, sheetChanges := j.syncSheet(ctx, dest, srcStatus)
		result.Sheets = append(result.Sheets, report)
		result.TotalUpdated += report.Updated
		changes = append(changes, sheetChanges...)
	}

	if len(changes) > 0 && j.csvPath != "" {
		if err := j.writeChangeLog(changes); err != nil {
			j.logger.Error("Failed to write CSV change log",
				zap.String("path", j.csvPath),
				zap.Error(err))
		}
	}

	j.logger.Info("Status sync completed",
		zap.Int("totalUpdated", result.TotalUpdated),
		zap.Bool("dryRun", j.dryRun))
	return result, nil
}

// syncSheet reconciles one destination sheet's status column.
func (j *StatusUpdateJob) syncSheet(ctx context.Context, dest DestSheet, srcStatus map[string]string) (SheetReport, []statusChange) {
	report := SheetReport{Sheet: dest.Name()}

	if err := dest.validateKeyColumns(); err != nil {
		report.Err = err.Error()
		j.logger.Error("Skipping destination sheet with invalid mapping", zap.Error(err))
		return report, nil
	}
	if dest.Cols.Status == 0 {
		report.Err = "status column id not configured"
		j.logger.Error("Skipping destination sheet without status column",
			zap.String("sheet", dest.Name()))
		return report, nil
	}

	rows, err := j.service.FetchAllRows(ctx, dest.SheetID)
	if err != nil {
		// Treated as a sheet with zero rows rather than a run failure.
		j.logger.Warn("Failed to fetch destination sheet, treating as empty",
			zap.String("sheet", dest.Name()),
			zap.Error(err))
		return report, nil
	}

	updates := make([]smartsheet.RowWrite, 0)
	changes := make([]statusChange, 0)

	for _, row := range rows {
		key, ok := engine.ExtractKey(row, []int64{dest.Cols.Tank, dest.Cols.City, dest.Cols.State})
		if !ok {
			continue
		}

		destVal := engine.Normalize(row.CellValue(dest.Cols.Status))
		srcVal := srcStatus[key]

		if srcVal == "" && destVal == "" {
			continue
		}
		if srcVal == destVal {
			continue
		}

		cells := row.CellMap()
		j.logger.Info("Status change planned",
			zap.String("sheet", dest.Name()),
			zap.Int64("rowId", row.ID),
			zap.String("key", key),
			zap.String("from", destVal),
			zap.String("to", srcVal))

		updates = append(updates, smartsheet.RowWrite{
			ID:    row.ID,
			Cells: []smartsheet.Cell{{ColumnID: dest.Cols.Status, Value: srcVal}},
		})
		changes = append(changes, statusChange{
			sheet:     dest.Name(),
			rowID:     row.ID,
			tank:      engine.NormalizeKeyComponent(cells[dest.Cols.Tank].Value),
			city:      engine.Normalize(cells[dest.Cols.City].Value),
			state:     engine.Normalize(cells[dest.Cols.State].Value),
			oldStatus: destVal,
			newStatus: srcVal,
		})
	}

	if len(updates) == 0 {
		j.logger.Info("No status changes needed", zap.String("sheet", dest.Name()))
		return report, nil
	}

	applier := engine.NewApplier(j.service, j.logger).WithDryRun(j.dryRun)
	summary := applier.Apply(ctx, dest.SheetID, nil, updates)
	report.Updated = summary.Updated
	report.Failures = len(summary.Failures)

	j.logger.Info("Status updates applied",
		zap.String("sheet", dest.Name()),
		zap.Int("updated", summary.Updated),
		zap.Int("failures", len(summary.Failures)),
		zap.Bool("dryRun", j.dryRun))
	return report, changes
}

// writeChangeLog writes the per-run CSV audit of status flips.
func (j *StatusUpdateJob) writeChangeLog(changes []statusChange) error {
	f, err := os.Create(j.csvPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Sheet Name", "Row ID", "Tank", "City", "State", "Old Status", "New Status"}); err != nil {
		return err
	}
	for _, c := range changes {
		record := []string{
			c.sheet,
			strconv.FormatInt(c.rowID, 10),
			c.tank, c.city, c.state,
			c.oldStatus, c.newStatus,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()

	j.logger.Info("Logged status changes",
		zap.Int("changes", len(changes)),
		zap.String("path", j.csvPath))
	return w.Error()
}
