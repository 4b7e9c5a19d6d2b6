package jobs

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/identity-field/sheetsync/pkg/engine"
	"github.com/identity-field/sheetsync/pkg/smartsheet"
)

// fakeService serves canned rows per sheet and records row writes.
type fakeService struct {
	rows     map[int64][]smartsheet.Row
	fetchErr map[int64]error
	updates  map[int64][]smartsheet.RowWrite
	inserts  map[int64][]smartsheet.RowWrite
}

func newFakeService() *fakeService {
	return &fakeService{
		rows:     make(map[int64][]smartsheet.Row),
		fetchErr: make(map[int64]error),
		updates:  make(map[int64][]smartsheet.RowWrite),
		inserts:  make(map[int64][]smartsheet.RowWrite),
	}
}

func (f *fakeService) FetchAllRows(ctx context.Context, sheetID int64) ([]smartsheet.Row, error) {
	if err := f.fetchErr[sheetID]; err != nil {
		return nil, err
	}
	return f.rows[sheetID], nil
}

func (f *fakeService) ColumnTitles(ctx context.Context, sheetID int64) (map[int64]string, error) {
	return nil, nil
}

func (f *fakeService) InsertRows(ctx context.Context, sheetID int64, rows []smartsheet.RowWrite) error {
	f.inserts[sheetID] = append(f.inserts[sheetID], rows...)
	return nil
}

func (f *fakeService) UpdateRows(ctx context.Context, sheetID int64, rows []smartsheet.RowWrite) error {
	f.updates[sheetID] = append(f.updates[sheetID], rows...)
	return nil
}

func scopeRow(id int64, tank, city, state, status interface{}) smartsheet.Row {
	return smartsheet.Row{
		ID: id,
		Cells: []smartsheet.Cell{
			{ColumnID: missingSrcTankCol, Value: tank},
			{ColumnID: missingSrcCityCol, Value: city},
			{ColumnID: missingSrcStateCol, Value: state},
			{ColumnID: statusSrcTankCol, Value: tank},
			{ColumnID: statusSrcCityCol, Value: city},
			{ColumnID: statusSrcStateCol, Value: state},
			{ColumnID: statusSrcStatusCol, Value: status},
		},
	}
}

const (
	testDestID      int64 = 777
	testDestTank    int64 = 71
	testDestCity    int64 = 72
	testDestState   int64 = 73
	testDestMissing int64 = 74
	testDestStatus  int64 = 75
)

func testDest() DestSheet {
	return DestSheet{
		SheetID:   testDestID,
		SheetName: "Erection",
		Cols: DestColumns{
			Tank:    testDestTank,
			City:    testDestCity,
			State:   testDestState,
			Missing: testDestMissing,
			Status:  testDestStatus,
		},
	}
}

func destJobRow(id int64, tank, city, state, status interface{}) smartsheet.Row {
	return smartsheet.Row{
		ID: id,
		Cells: []smartsheet.Cell{
			{ColumnID: testDestTank, Value: tank},
			{ColumnID: testDestCity, Value: city},
			{ColumnID: testDestState, Value: state},
			{ColumnID: testDestStatus, Value: status},
		},
	}
}

func TestParseDestSheets(t *testing.T) {
	sheets, err := ParseDestSheets(`[{"sheet_id":777,"sheet_name":"Erection","cols":{"tank":71,"city":72,"state":73,"missing":74,"status":75}}]`)
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	assert.Equal(t, "Erection", sheets[0].Name())
	assert.Equal(t, int64(74), sheets[0].Cols.Missing)

	sheets, err = ParseDestSheets("")
	require.NoError(t, err)
	assert.Empty(t, sheets)

	_, err = ParseDestSheets("not json")
	assert.Error(t, err)
}

func TestSyncSpecsValidate(t *testing.T) {
	assert.NoError(t, FoundationSpec().Validate())
	assert.NoError(t, GroundImprovementSpec().Validate())
	assert.NoError(t, InsulationSpec().Validate())
}

func TestMissingCheckFlagsAbsentKeys(t *testing.T) {
	svc := newFakeService()
	svc.rows[ScopeSheetID] = []smartsheet.Row{
		scopeRow(1, "10", "Tulsa", "OK", "Active"),
	}
	svc.rows[testDestID] = []smartsheet.Row{
		// Present in source, gone from source, and invalid key.
		destJobRow(901, "10", "Tulsa", "OK", nil),
		destJobRow(902, "99", "Enid", "OK", nil),
		destJobRow(903, nil, "Yukon", "OK", nil),
	}

	job := NewMissingCheckJob(svc, []DestSheet{testDest()}, zap.NewNop())
	result, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalUpdated)
	require.Len(t, svc.updates[testDestID], 1)

	upd := svc.updates[testDestID][0]
	assert.Equal(t, int64(902), upd.ID)
	require.Len(t, upd.Cells, 1)
	assert.Equal(t, testDestMissing, upd.Cells[0].ColumnID)
	assert.Equal(t, true, upd.Cells[0].Value)
}

func TestMissingCheckSourceFetchAborts(t *testing.T) {
	svc := newFakeService()
	svc.fetchErr[ScopeSheetID] = errors.New("boom")

	job := NewMissingCheckJob(svc, []DestSheet{testDest()}, zap.NewNop())
	_, err := job.Run(context.Background())
	assert.Error(t, err)
	assert.Empty(t, svc.updates)
}

func TestMissingCheckContinuesPastBadSheet(t *testing.T) {
	broken := testDest()
	broken.SheetID = 888
	broken.SheetName = "Broken"

	svc := newFakeService()
	svc.rows[ScopeSheetID] = []smartsheet.Row{scopeRow(1, "10", "Tulsa", "OK", "Active")}
	svc.fetchErr[888] = errors.New("boom")
	svc.rows[testDestID] = []smartsheet.Row{destJobRow(902, "99", "Enid", "OK", nil)}

	job := NewMissingCheckJob(svc, []DestSheet{broken, testDest()}, zap.NewNop())
	result, err := job.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Sheets, 2)
	assert.NotEmpty(t, result.Sheets[0].Err)
	assert.Equal(t, 1, result.Sheets[1].Updated)
	assert.Equal(t, 1, result.TotalUpdated)
}

func TestMissingCheckDryRun(t *testing.T) {
	svc := newFakeService()
	svc.rows[ScopeSheetID] = nil
	svc.rows[testDestID] = []smartsheet.Row{destJobRow(902, "99", "Enid", "OK", nil)}

	job := NewMissingCheckJob(svc, []DestSheet{testDest()}, zap.NewNop()).WithDryRun(true)
	result, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalUpdated)
	assert.Empty(t, svc.updates)
}

func TestStatusUpdatePropagatesChanges(t *testing.T) {
	svc := newFakeService()
	svc.rows[ScopeSheetID] = []smartsheet.Row{
		scopeRow(1, "10", "Tulsa", "OK", "Complete"),
		scopeRow(2, "11", "Enid", "OK", "Active"),
	}
	svc.rows[testDestID] = []smartsheet.Row{
		// Stale status, current status, and a row with no source counterpart
		// whose status is already empty.
		destJobRow(901, "10", "Tulsa", "OK", "Active"),
		destJobRow(902, "11", "Enid", "OK", "Active"),
		destJobRow(903, "12", "Yukon", "OK", nil),
	}

	job := NewStatusUpdateJob(svc, []DestSheet{testDest()}, zap.NewNop())
	result, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalUpdated)
	require.Len(t, svc.updates[testDestID], 1)

	upd := svc.updates[testDestID][0]
	assert.Equal(t, int64(901), upd.ID)
	require.Len(t, upd.Cells, 1)
	assert.Equal(t, testDestStatus, upd.Cells[0].ColumnID)
	assert.Equal(t, "Complete", upd.Cells[0].Value)
}

func TestStatusUpdateSkipsBothEmpty(t *testing.T) {
	svc := newFakeService()
	svc.rows[ScopeSheetID] = []smartsheet.Row{scopeRow(1, "10", "Tulsa", "OK", nil)}
	svc.rows[testDestID] = []smartsheet.Row{destJobRow(901, "10", "Tulsa", "OK", nil)}

	job := NewStatusUpdateJob(svc, []DestSheet{testDest()}, zap.NewNop())
	result, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, result.TotalUpdated)
	assert.Empty(t, svc.updates)
}

func TestStatusUpdateFetchErrorDegradesToEmpty(t *testing.T) {
	svc := newFakeService()
	svc.rows[ScopeSheetID] = []smartsheet.Row{scopeRow(1, "10", "Tulsa", "OK", "Active")}
	svc.fetchErr[testDestID] = errors.New("boom")

	job := NewStatusUpdateJob(svc, []DestSheet{testDest()}, zap.NewNop())
	result, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, result.TotalUpdated)
	require.Len(t, result.Sheets, 1)
	assert.Empty(t, result.Sheets[0].Err)
}

func TestFoundationSyncInsertsNewProject(t *testing.T) {
	svc := newFakeService()
	svc.rows[ScopeSheetID] = []smartsheet.Row{{
		ID: 1,
		Cells: []smartsheet.Cell{
			{ColumnID: srcTankCol, Value: "77"},
			{ColumnID: srcRowCol, Value: "Project"},
			{ColumnID: srcOrderCol, Value: "0000 - Project"},
			{ColumnID: srcFrontEndCol, Value: "Phoenix"},
			{ColumnID: 818667465691012, Value: "Tulsa"},
			{ColumnID: 5322267093061508, Value: "OK"},
		},
	}}
	svc.rows[FoundationSheetID] = nil

	job, err := engine.NewSyncJob(FoundationSpec(), svc, zap.NewNop())
	require.NoError(t, err)

	result, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Summary.Inserted)
	assert.Zero(t, result.Summary.Updated)

	require.Len(t, svc.inserts[FoundationSheetID], 1)
	ins := svc.inserts[FoundationSheetID][0]
	assert.True(t, ins.ToBottom)

	byCol := make(map[int64]interface{}, len(ins.Cells))
	for _, c := range ins.Cells {
		byCol[c.ColumnID] = c.Value
	}
	assert.Equal(t, "77", byCol[fdnTankCol])
	assert.Equal(t, "Front-End - Site Work", byCol[fdnRowCol])
	assert.Equal(t, "Front-End - Site Work", byCol[fdnPrimaryCol])
	assert.Equal(t, "00002 - Front-End - Site Work", byCol[fdnOrderCol])
}

func TestGroundImprovementSyncIgnoresBlankGateRows(t *testing.T) {
	svc := newFakeService()
	svc.rows[ScopeSheetID] = []smartsheet.Row{{
		ID: 1,
		Cells: []smartsheet.Cell{
			{ColumnID: srcTankCol, Value: "77"},
			{ColumnID: srcRowCol, Value: "Project"},
			{ColumnID: srcOrderCol, Value: "0000 - Project"},
			{ColumnID: srcGroundImprovementsCol, Value: nil},
		},
	}}
	svc.rows[FoundationSheetID] = []smartsheet.Row{{
		ID: 960,
		Cells: []smartsheet.Cell{
			{ColumnID: fdnTankCol, Value: "77"},
			{ColumnID: fdnRowCol, Value: "Ground Improvements"},
			{ColumnID: fdnGroundImprovementsCol, Value: "Required"},
		},
	}}

	job, err := engine.NewSyncJob(GroundImprovementSpec(), svc, zap.NewNop())
	require.NoError(t, err)

	// The destination gate value must survive untouched when the source cell
	// went blank.
	result, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Summary.Inserted)
	assert.Zero(t, result.Summary.Updated)
	assert.Empty(t, svc.updates)
	assert.Empty(t, svc.inserts)
}

func TestInsulationSyncUpdatesDateTripleTogether(t *testing.T) {
	svc := newFakeService()
	svc.rows[ScopeSheetID] = []smartsheet.Row{{
		ID: 1,
		Cells: []smartsheet.Cell{
			{ColumnID: srcTankCol, Value: "77"},
			{ColumnID: srcRowCol, Value: "Project"},
			{ColumnID: srcOrderCol, Value: "0000 - Project"},
			{ColumnID: srcInsulationCol, Value: "Phoenix"},
			{ColumnID: srcNTPDateCol, Value: "2024-06-01"},
			{ColumnID: srcContractDaysCol, Value: float64(120)},
			{ColumnID: srcNTPCompletionDateCol, Value: "2024-09-29"},
		},
	}}
	svc.rows[SubcontractsSheetID] = []smartsheet.Row{{
		ID: 950,
		Cells: []smartsheet.Cell{
			{ColumnID: subTankCol, Value: "77"},
			{ColumnID: subRowCol, Value: "Insulation"},
			{ColumnID: subInsulationCol, Value: "Phoenix"},
			{ColumnID: subNTPDateCol, Value: "2024-05-01"},
			{ColumnID: subContractDaysCol, Value: float64(120)},
			{ColumnID: subNTPCompletionDateCol, Value: "2024-08-29"},
		},
	}}

	job, err := engine.NewSyncJob(InsulationSpec(), svc, zap.NewNop())
	require.NoError(t, err)

	result, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Summary.Inserted)
	assert.Equal(t, 1, result.Summary.Updated)

	require.Len(t, svc.updates[SubcontractsSheetID], 1)
	upd := svc.updates[SubcontractsSheetID][0]
	assert.Equal(t, int64(950), upd.ID)

	// The unchanged contract-days cell still rides along with its group.
	byCol := make(map[int64]interface{}, len(upd.Cells))
	for _, c := range upd.Cells {
		byCol[c.ColumnID] = c.Value
	}
	assert.Equal(t, "2024-06-01", byCol[subNTPDateCol])
	assert.Equal(t, float64(120), byCol[subContractDaysCol])
	assert.Equal(t, "2024-09-29", byCol[subNTPCompletionDateCol])
	_, hasGate := byCol[subInsulationCol]
	assert.False(t, hasGate)
}

func TestStatusUpdateWritesCSVLog(t *testing.T) {
	svc := newFakeService()
	svc.rows[ScopeSheetID] = []smartsheet.Row{scopeRow(1, "10", "Tulsa", "OK", "Complete")}
	svc.rows[testDestID] = []smartsheet.Row{destJobRow(901, "10", "Tulsa", "OK", "Active")}

	csvPath := filepath.Join(t.TempDir(), "status_changes.csv")
	job := NewStatusUpdateJob(svc, []DestSheet{testDest()}, zap.NewNop()).WithCSVLog(csvPath)

	_, err := job.Run(context.Background())
	require.NoError(t, err)

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"Sheet Name", "Row ID", "Tank", "City", "State", "Old Status", "New Status"}, records[0])
	assert.Equal(t, []string{"Erection", "901", "10", "Tulsa", "OK", "Active", "Complete"}, records[1])
}
