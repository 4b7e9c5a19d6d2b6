package engine

import (
	"errors"
	"fmt"

	"github.com/identity-field/sheetsync/pkg/smartsheet"
)

// ColumnPair maps one source column onto one destination column.
type ColumnPair struct {
	Source int64
	Dest   int64
}

// DiffMode selects how the planner decides that an existing destination row
// is stale.
type DiffMode int

const (
	// DiffAllMapped compares every mapped column pair; a stale row gets the
	// full mapped payload rewritten.
	DiffAllMapped DiffMode = iota

	// DiffTrackedGroups compares only the configured tracked groups; a stale
	// row gets exactly the changed groups' cells. When any column in a group
	// differs, every column in that group is written together.
	DiffTrackedGroups
)

// JobSpec is the immutable per-job configuration driving the reconciliation
// engine: which sheets, which columns correlate rows, which columns are
// copied, and the job's eligibility, gating, and diff policies. One engine
// serves every job; only the spec changes.
type JobSpec struct {
	Name string

	SourceSheetID int64
	DestSheetID   int64

	// ColumnMap copies source column values into destination columns, in a
	// fixed order so planning output is deterministic.
	ColumnMap []ColumnPair

	// Source-side eligibility: the row-type and order discriminators must
	// equal these literals for a source row to be a sync candidate.
	SourceRowColumn   int64
	SourceRowValue    string
	SourceOrderColumn int64
	SourceOrderValue  string

	// SourceKeyColumn holds the composite key component on the source side
	// (the tank/asset number for all current jobs).
	SourceKeyColumn int64

	// Destination-side discriminator and key columns. The index may hold
	// several row-types per key; the planner selects the candidate whose
	// row-type cell equals DestRowValue.
	DestKeyColumn int64
	DestRowColumn int64
	DestRowValue  string

	// Insertion gate: an insert is only emitted when the source gate column
	// equals one of the accepted literals. FilterSourceByGate additionally
	// applies the gate when selecting source candidates, matching jobs that
	// pre-filter at fetch time. RequireGateValue drops source candidates whose
	// gate cell is blank without constraining it to the accepted literals, for
	// jobs that update on any non-blank gate value but insert on few.
	GateColumn         int64
	GateValues         []string
	FilterSourceByGate bool
	RequireGateValue   bool

	// CopyGateToColumn, when non-zero, writes the source gate value into this
	// destination column on insert.
	CopyGateToColumn int64

	// ForcedCells are literal cells appended to every insert and update
	// payload (typically the destination row-type cell). InsertOnlyCells are
	// appended to inserts alone (primary and order columns).
	ForcedCells     []smartsheet.Cell
	InsertOnlyCells []smartsheet.Cell

	DiffMode      DiffMode
	TrackedGroups [][]ColumnPair
}

// Validate checks the invariants a spec must hold before the engine will run
// it: identifiers present, source columns unique, and no destination column
// mapped twice.
func (s JobSpec) Validate() error {
	if s.Name == "" {
		return errors.New("job spec requires a name")
	}
	if s.SourceSheetID == 0 || s.DestSheetID == 0 {
		return fmt.Errorf("job %s: source and destination sheet IDs are required", s.Name)
	}
	if len(s.ColumnMap) == 0 {
		return fmt.Errorf("job %s: column map is empty", s.Name)
	}
	if s.SourceKeyColumn == 0 || s.DestKeyColumn == 0 {
		return fmt.Errorf("job %s: key columns are required", s.Name)
	}

	seenSrc := make(map[int64]bool, len(s.ColumnMap))
	seenDest := make(map[int64]bool, len(s.ColumnMap))
	for _, pair := range s.ColumnMap {
		if seenSrc[pair.Source] {
			return fmt.Errorf("job %s: source column %d mapped twice", s.Name, pair.Source)
		}
		if seenDest[pair.Dest] {
			return fmt.Errorf("job %s: destination column %d mapped twice", s.Name, pair.Dest)
		}
		seenSrc[pair.Source] = true
		seenDest[pair.Dest] = true
	}

	if s.DiffMode == DiffTrackedGroups && len(s.TrackedGroups) == 0 {
		return fmt.Errorf("job %s: tracked-group diffing requires at least one group", s.Name)
	}

	return nil
}

// GateAccepts reports whether the given source gate value is in the accepted
// literal set. An empty accepted set means the job has no insertion gate.
func (s JobSpec) GateAccepts(val string) bool {
	if len(s.GateValues) == 0 {
		return true
	}
	for _, accepted := range s.GateValues {
		if val == accepted {
			return true
		}
	}
	return false
}
