package engine

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/identity-field/sheetsync/pkg/smartsheet"
)

// Plan is the output of one planning pass: disjoint insert and update lists
// plus skip counters for the run summary. Plans are produced once per
// invocation, consumed exactly once by the applier, and never persisted.
type Plan struct {
	Inserts []smartsheet.RowWrite
	Updates []smartsheet.RowWrite

	SkippedIneligible int
	SkippedNoKey      int
	SkippedGate       int
	SkippedUnchanged  int
}

// Planner computes the insert/update plan for one job. Planning is
// deterministic and side-effect-free: identical inputs yield identical plans,
// order included.
type Planner struct {
	spec       JobSpec
	srcTitles  map[int64]string
	destTitles map[int64]string
	logger     *zap.Logger
}

// NewPlanner creates a planner for the given spec. Column title maps are used
// only to render readable diff log lines and may be nil.
func NewPlanner(spec JobSpec, srcTitles, destTitles map[int64]string, logger *zap.Logger) *Planner {
	return &Planner{
		spec:       spec,
		srcTitles:  srcTitles,
		destTitles: destTitles,
		logger:     logger,
	}
}

// BuildPlan walks the source rows against the destination index and produces
// the operation lists. A source row is skipped unless its row-type and order
// discriminators match the spec; a row with an invalid key never matches
// anything. Missing destination rows become inserts subject to the insertion
// gate; present ones become updates iff at least one tracked column differs
// after normalization.
func (p *Planner) BuildPlan(sourceRows []smartsheet.Row, index DestinationIndex) Plan {
	plan := Plan{
		Inserts: make([]smartsheet.RowWrite, 0),
		Updates: make([]smartsheet.RowWrite, 0),
	}

	for _, srow := range sourceRows {
		cells := srow.CellMap()

		if !p.eligible(cells) {
			plan.SkippedIneligible++
			continue
		}

		key, ok := ExtractKey(srow, []int64{p.spec.SourceKeyColumn})
		if !ok {
			plan.SkippedNoKey++
			p.logger.Debug("Skipping source row with incomplete key",
				zap.Int64("rowId", srow.ID))
			continue
		}

		gateVal := strings.TrimSpace(Normalize(cells[p.spec.GateColumn].Value))

		destRow, found := index.Lookup(key, p.spec.DestRowColumn, p.spec.DestRowValue)
		if !found {
			if !p.spec.GateAccepts(gateVal) {
				plan.SkippedGate++
				p.logger.Info("Plan: skip insert, gate value not accepted",
					zap.String("job", p.spec.Name),
					zap.String("key", key),
					zap.String("gateValue", gateVal))
				continue
			}

			plan.Inserts = append(plan.Inserts, smartsheet.RowWrite{
				ToBottom: true,
				Cells:    p.insertCells(cells, gateVal),
			})
			p.logger.Info("Plan: insert",
				zap.String("job", p.spec.Name),
				zap.String("key", key),
				zap.String("gateValue", gateVal))
			continue
		}

		updateCells, diffs := p.updateCells(cells, destRow.CellMap())
		if len(updateCells) == 0 {
			plan.SkippedUnchanged++
			p.logger.Debug("Plan: skip update, no differences",
				zap.String("job", p.spec.Name),
				zap.String("key", key))
			continue
		}

		plan.Updates = append(plan.Updates, smartsheet.RowWrite{
			ID:    destRow.ID,
			Cells: updateCells,
		})
		p.logger.Info("Plan: update",
			zap.String("job", p.spec.Name),
			zap.String("key", key),
			zap.Int64("destRowId", destRow.ID),
			zap.Strings("diffs", diffs))
	}

	return plan
}

// eligible applies the static source predicate: the row-type and order
// discriminators must equal the configured literals, and jobs that pre-filter
// by gate require an accepted (or at least non-blank) gate value as well. A
// blank-gated row dropped here can never reach the update path and blank out
// destination data it never owned.
func (p *Planner) eligible(cells map[int64]smartsheet.Cell) bool {
	rowVal := strings.TrimSpace(Normalize(cells[p.spec.SourceRowColumn].Value))
	orderVal := strings.TrimSpace(Normalize(cells[p.spec.SourceOrderColumn].Value))

	if rowVal != p.spec.SourceRowValue || orderVal != p.spec.SourceOrderValue {
		return false
	}

	gateVal := strings.TrimSpace(Normalize(cells[p.spec.GateColumn].Value))
	if p.spec.FilterSourceByGate && !p.spec.GateAccepts(gateVal) {
		return false
	}
	if p.spec.RequireGateValue && gateVal == "" {
		return false
	}

	return true
}

// insertCells builds the full mapped payload for a new destination row: every
// mapped column present on the source, the forced literal cells, the
// insert-only cells, and optionally the gate value copied into its
// destination column.
func (p *Planner) insertCells(src map[int64]smartsheet.Cell, gateVal string) []smartsheet.Cell {
	cells := p.mappedCells(src)
	cells = append(cells, p.spec.ForcedCells...)
	cells = append(cells, p.spec.InsertOnlyCells...)
	if p.spec.CopyGateToColumn != 0 {
		cells = append(cells, smartsheet.Cell{ColumnID: p.spec.CopyGateToColumn, Value: gateVal})
	}
	return cells
}

// mappedCells copies every (source, dest) pair present in the source row, in
// column-map order.
func (p *Planner) mappedCells(src map[int64]smartsheet.Cell) []smartsheet.Cell {
	cells := make([]smartsheet.Cell, 0, len(p.spec.ColumnMap))
	for _, pair := range p.spec.ColumnMap {
		if cell, ok := src[pair.Source]; ok {
			cells = append(cells, smartsheet.Cell{ColumnID: pair.Dest, Value: cell.Value})
		}
	}
	return cells
}

// updateCells computes the update payload for an existing destination row
// along with human-readable diff descriptions. Under DiffAllMapped any
// difference rewrites the full mapped payload plus forced cells; under
// DiffTrackedGroups only the changed groups are written, each group as a
// unit.
func (p *Planner) updateCells(src, dest map[int64]smartsheet.Cell) ([]smartsheet.Cell, []string) {
	switch p.spec.DiffMode {
	case DiffTrackedGroups:
		return p.trackedGroupCells(src, dest)
	default:
		diffs := p.columnDiffs(src, dest)
		if len(diffs) == 0 {
			return nil, nil
		}
		cells := p.mappedCells(src)
		cells = append(cells, p.spec.ForcedCells...)
		return cells, diffs
	}
}

// columnDiffs compares every mapped pair and describes each difference as
// "SrcTitle->DestTitle: 'src' vs 'dest'".
func (p *Planner) columnDiffs(src, dest map[int64]smartsheet.Cell) []string {
	diffs := make([]string, 0)
	for _, pair := range p.spec.ColumnMap {
		srcVal := Normalize(src[pair.Source].Value)
		destVal := Normalize(dest[pair.Dest].Value)
		if srcVal != destVal {
			diffs = append(diffs, fmt.Sprintf("%s->%s: '%s' vs '%s'",
				p.columnTitle(p.srcTitles, pair.Source),
				p.columnTitle(p.destTitles, pair.Dest),
				srcVal, destVal))
		}
	}
	return diffs
}

// trackedGroupCells emits the cells of every group containing at least one
// differing pair. A group writes all of its columns together: the NTP date
// triple (date, contract days, completion date) must stay consistent even
// when only the date moved.
func (p *Planner) trackedGroupCells(src, dest map[int64]smartsheet.Cell) ([]smartsheet.Cell, []string) {
	cells := make([]smartsheet.Cell, 0)
	diffs := make([]string, 0)

	for _, group := range p.spec.TrackedGroups {
		changed := false
		for _, pair := range group {
			if Normalize(src[pair.Source].Value) != Normalize(dest[pair.Dest].Value) {
				changed = true
				diffs = append(diffs, fmt.Sprintf("%s->%s: '%s' vs '%s'",
					p.columnTitle(p.srcTitles, pair.Source),
					p.columnTitle(p.destTitles, pair.Dest),
					Normalize(src[pair.Source].Value),
					Normalize(dest[pair.Dest].Value)))
			}
		}
		if !changed {
			continue
		}
		for _, pair := range group {
			cells = append(cells, smartsheet.Cell{ColumnID: pair.Dest, Value: src[pair.Source].Value})
		}
	}

	return cells, diffs
}

// columnTitle resolves a column identifier to its title for logging, falling
// back to the raw identifier.
func (p *Planner) columnTitle(titles map[int64]string, columnID int64) string {
	if title, ok := titles[columnID]; ok {
		return title
	}
	return fmt.Sprintf("%d", columnID)
}
