// Package jobs holds the concrete job definitions: the three sheet-to-sheet
// sync specs, the project-missing check, and the status propagation job. The
// column identifiers here mirror the deployed sheets and are fixed at deploy
// time; everything behavioral lives in the engine.
package jobs

import (
	"github.com/identity-field/sheetsync/pkg/engine"
	"github.com/identity-field/sheetsync/pkg/smartsheet"
)

// Shared sheets and source columns (the "02-Identity Scope" sheet).
const (
	ScopeSheetID        int64 = 639499383033732
	FoundationSheetID   int64 = 4814574961250180
	SubcontractsSheetID int64 = 436476211842948

	srcTankCol  int64 = 3633417232797572
	srcRowCol   int64 = 537192488980356
	srcOrderCol int64 = 8699966813589380

	srcFrontEndCol           int64 = 5744479558127492
	srcInsulationCol         int64 = 959404954046340
	srcGroundImprovementsCol int64 = 7996279371812740

	srcNTPDateCol           int64 = 3844523465330564
	srcContractDaysCol      int64 = 8348123092701060
	srcNTPCompletionDateCol int64 = 1029773698224004

	rowValueProject   = "Project"
	orderValueProject = "0000 - Project"
)

// Destination columns on the foundation sheet (shared by the foundation and
// ground-improvement jobs).
const (
	fdnTankCol    int64 = 492931382988676
	fdnRowCol     int64 = 5102084126625668
	fdnPrimaryCol int64 = 1618831289831300
	fdnOrderCol   int64 = 598484499255172

	fdnNTPDateCol            int64 = 1055881336409988
	fdnContractDaysCol       int64 = 5559480963780484
	fdnNTPCompletionDateCol  int64 = 3307681150095236
	fdnGroundImprovementsCol int64 = 1052563474173828
)

// Destination columns on the subcontracts sheet (insulation job).
const (
	subTankCol    int64 = 7584488200294276
	subRowCol     int64 = 1136952015015812
	subPrimaryCol int64 = 8710388107136900
	subOrderCol   int64 = 6766451549228932

	subNTPDateCol           int64 = 1673513689370500
	subContractDaysCol      int64 = 6177113316740996
	subNTPCompletionDateCol int64 = 3925313503055748
	subInsulationCol        int64 = 3388751828701060
)

// foundationColumnMap copies the shared project fields onto the foundation
// sheet.
var foundationColumnMap = []engine.ColumnPair{
	{Source: srcTankCol, Dest: fdnTankCol},                           // Tank #
	{Source: 8137016860168068, Dest: 4996531010359172},               // Site name
	{Source: 818667465691012, Dest: 2744731196673924},                // City
	{Source: 5322267093061508, Dest: 7248330824044420},               // State
	{Source: 2155673605066628, Dest: 6122430917201796},               // Size
	{Source: 6659273232437124, Dest: 3870631103516548},               // Type
	{Source: 4618579651284868, Dest: 5665034080046980},               // Project manager
	{Source: 5885217046482820, Dest: 3413234266361732},               // Estimator
	{Source: 6448166999904132, Dest: 8374230730887044},               // Contract date
	{Source: srcNTPDateCol, Dest: fdnNTPDateCol},                     // NTP date
	{Source: srcContractDaysCol, Dest: fdnContractDaysCol},           // Contract days
	{Source: srcNTPCompletionDateCol, Dest: fdnNTPCompletionDateCol}, // NTP completion date
	{Source: 5533373325594500, Dest: 7811280777465732},               // LDs
	{Source: 4407473418751876, Dest: 6790933986889604},               // Engineering firm
	{Source: 8911073046122372, Dest: 1161434452676484},               // Owner
	{Source: 1381617419112324, Dest: 7916833893732228},               // Bid #
}

// insulationColumnMap copies the same fields onto the subcontracts sheet.
var insulationColumnMap = []engine.ColumnPair{
	{Source: srcTankCol, Dest: subTankCol},                           // Tank #
	{Source: 8137016860168068, Dest: 1954988666081156},               // Site name
	{Source: 818667465691012, Dest: 6458588293451652},                // City
	{Source: 5322267093061508, Dest: 4206788479766404},               // State
	{Source: 2155673605066628, Dest: 5051213409898372},               // Size
	{Source: 6659273232437124, Dest: 2799413596213124},               // Type
	{Source: 4618579651284868, Dest: 547613782527876},                // Project manager
	{Source: 5885217046482820, Dest: 11052108173188},                 // Estimator
	{Source: 6448166999904132, Dest: 7303013223583620},               // Contract date
	{Source: srcNTPDateCol, Dest: subNTPDateCol},                     // NTP date
	{Source: srcContractDaysCol, Dest: subContractDaysCol},           // Contract days
	{Source: srcNTPCompletionDateCol, Dest: subNTPCompletionDateCol}, // NTP completion date
	{Source: 5533373325594500, Dest: 8428913130426244},               // LDs
	{Source: 4407473418751876, Dest: 4488263456477060},               // Engineering firm
	{Source: 8911073046122372, Dest: 8991863083847556},               // Owner
	{Source: 1381617419112324, Dest: 4514651735543684},               // Bid #
}

// FoundationSpec syncs project rows onto the foundation sheet as
// "Front-End - Site Work" rows. Source candidates are pre-filtered by the
// front-end gate; any mapped column difference rewrites the full mapped
// payload.
func FoundationSpec() engine.JobSpec {
	return engine.JobSpec{
		Name:          "foundation-sync",
		SourceSheetID: ScopeSheetID,
		DestSheetID:   FoundationSheetID,
		ColumnMap:     foundationColumnMap,

		SourceRowColumn:   srcRowCol,
		SourceRowValue:    rowValueProject,
		SourceOrderColumn: srcOrderCol,
		SourceOrderValue:  orderValueProject,
		SourceKeyColumn:   srcTankCol,

		DestKeyColumn: fdnTankCol,
		DestRowColumn: fdnRowCol,
		DestRowValue:  "Front-End - Site Work",

		GateColumn:         srcFrontEndCol,
		GateValues:         []string{"Phoenix", "Subcontractor"},
		FilterSourceByGate: true,

		ForcedCells: []smartsheet.Cell{
			{ColumnID: fdnRowCol, Value: "Front-End - Site Work"},
		},
		InsertOnlyCells: []smartsheet.Cell{
			{ColumnID: fdnPrimaryCol, Value: "Front-End - Site Work"},
			{ColumnID: fdnOrderCol, Value: "00002 - Front-End - Site Work"},
		},

		DiffMode: engine.DiffAllMapped,
	}
}

// GroundImprovementSpec syncs project rows onto the foundation sheet as
// "Ground Improvements" rows. Source candidates must carry a non-blank gate
// value; inserts are additionally gated on the value "Required". Updates track
// the gate column and the NTP date triple only.
func GroundImprovementSpec() engine.JobSpec {
	return engine.JobSpec{
		Name:          "ground-improvement-sync",
		SourceSheetID: ScopeSheetID,
		DestSheetID:   FoundationSheetID,
		ColumnMap:     foundationColumnMap,

		SourceRowColumn:   srcRowCol,
		SourceRowValue:    rowValueProject,
		SourceOrderColumn: srcOrderCol,
		SourceOrderValue:  orderValueProject,
		SourceKeyColumn:   srcTankCol,

		DestKeyColumn: fdnTankCol,
		DestRowColumn: fdnRowCol,
		DestRowValue:  "Ground Improvements",

		GateColumn:       srcGroundImprovementsCol,
		GateValues:       []string{"Required"},
		RequireGateValue: true,
		CopyGateToColumn: fdnGroundImprovementsCol,

		ForcedCells: []smartsheet.Cell{
			{ColumnID: fdnRowCol, Value: "Ground Improvements"},
		},
		InsertOnlyCells: []smartsheet.Cell{
			{ColumnID: fdnPrimaryCol, Value: "Ground Improvements"},
			{ColumnID: fdnOrderCol, Value: "0003 - Ground Improvements"},
		},

		DiffMode: engine.DiffTrackedGroups,
		TrackedGroups: [][]engine.ColumnPair{
			{{Source: srcGroundImprovementsCol, Dest: fdnGroundImprovementsCol}},
			{
				{Source: srcNTPDateCol, Dest: fdnNTPDateCol},
				{Source: srcContractDaysCol, Dest: fdnContractDaysCol},
				{Source: srcNTPCompletionDateCol, Dest: fdnNTPCompletionDateCol},
			},
		},
	}
}

// InsulationSpec syncs project rows onto the subcontracts sheet as
// "Insulation" rows. Inserts are gated on "Phoenix" or "Subcontractor" in the
// source insulation column, which is also copied to the destination; updates
// track the insulation column and the NTP date triple.
func InsulationSpec() engine.JobSpec {
	return engine.JobSpec{
		Name:          "insulation-sync",
		SourceSheetID: ScopeSheetID,
		DestSheetID:   SubcontractsSheetID,
		ColumnMap:     insulationColumnMap,

		SourceRowColumn:   srcRowCol,
		SourceRowValue:    rowValueProject,
		SourceOrderColumn: srcOrderCol,
		SourceOrderValue:  orderValueProject,
		SourceKeyColumn:   srcTankCol,

		DestKeyColumn: subTankCol,
		DestRowColumn: subRowCol,
		DestRowValue:  "Insulation",

		GateColumn:       srcInsulationCol,
		GateValues:       []string{"Phoenix", "Subcontractor"},
		CopyGateToColumn: subInsulationCol,

		ForcedCells: []smartsheet.Cell{
			{ColumnID: subRowCol, Value: "Insulation"},
		},
		InsertOnlyCells: []smartsheet.Cell{
			{ColumnID: subPrimaryCol, Value: "Insulation"},
			{ColumnID: subOrderCol, Value: "0008 - Insulation"},
		},

		DiffMode: engine.DiffTrackedGroups,
		TrackedGroups: [][]engine.ColumnPair{
			{{Source: srcInsulationCol, Dest: subInsulationCol}},
			{
				{Source: srcNTPDateCol, Dest: subNTPDateCol},
				{Source: srcContractDaysCol, Dest: subContractDaysCol},
				{Source: srcNTPCompletionDateCol, Dest: subNTPCompletionDateCol},
			},
		},
	}
}
