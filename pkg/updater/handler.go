// Package updater exposes the HTTP endpoint that lets the project-planning
// side push field changes into the department sheets and read scheduling
// values back in the same round trip.
package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/identity-field/sheetsync/pkg/audit"
	"github.com/identity-field/sheetsync/pkg/engine"
	"github.com/identity-field/sheetsync/pkg/smartsheet"
)

// departmentSheets routes an incoming department name to its sheet. Sales and
// Engineering share the scope sheet; Coatings and Subcontracts share the
// subcontracts sheet.
var departmentSheets = map[string]int64{
	"Sales":        639499383033732,
	"Engineering":  639499383033732,
	"Shaft":        5148656698085252,
	"Erection":     1936716945379204,
	"Coatings":     5695766275248004,
	"Subcontracts": 5695766275248004,
	"Foundation":   4814574961250180,
	"Punch List":   2176504579444612,
}

// ParseDepartmentSheets decodes a JSON department-to-sheet override from
// configuration. An empty string keeps the built-in routing table.
func ParseDepartmentSheets(raw string) (map[string]int64, error) {
	if raw == "" {
		out := make(map[string]int64, len(departmentSheets))
		for k, v := range departmentSheets {
			out[k] = v
		}
		return out, nil
	}
	var out map[string]int64
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("invalid department sheet map JSON: %w", err)
	}
	return out, nil
}

// fieldTitles maps incoming update field names to destination column titles.
var fieldTitles = map[string]string{
	"PM":          "Project Manager",
	"ENG":         "Assigned To",
	"FDN":         "Assigned To",
	"Foreman/Sub": "Foreman/Sub",
}

// returnTitles are the scheduling columns echoed back to the caller.
var returnTitles = []string{"Duration", "Start Date", "End Date"}

// UpdateItem is one requested row update.
type UpdateItem struct {
	JobNumber  string            `json:"jobNumber"`
	Department string            `json:"department"`
	City       string            `json:"city"`
	State      string            `json:"state"`
	Updates    map[string]string `json:"updates"`
}

// ItemResult reports the outcome for one UpdateItem.
type ItemResult struct {
	JobNumber    string            `json:"jobNumber"`
	Department   string            `json:"department"`
	RowID        int64             `json:"rowId,omitempty"`
	Updated      []string          `json:"updated,omitempty"`
	ReturnValues map[string]string `json:"returnValues,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// Handler serves the project update endpoint.
type Handler struct {
	service engine.SheetService
	auditor *audit.Logger
	sheets  map[string]int64
	dryRun  bool
	logger  *zap.Logger
}

// NewHandler creates the updater handler with the built-in department routing
// table. The audit logger may be nil when no audit database is configured.
func NewHandler(service engine.SheetService, auditor *audit.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		auditor: auditor,
		sheets:  departmentSheets,
		logger:  logger.With(zap.String("component", "updater")),
	}
}

// WithDepartmentSheets overrides the department routing table and returns the
// modified handler.
func (h *Handler) WithDepartmentSheets(sheets map[string]int64) *Handler {
	if len(sheets) > 0 {
		h.sheets = sheets
	}
	return h
}

// WithDryRun sets dry-run mode and returns the modified handler.
func (h *Handler) WithDryRun(dryRun bool) *Handler {
	h.dryRun = dryRun
	return h
}

// Routes mounts the updater endpoints on a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/project-updates", h.handleProjectUpdates)
	return r
}

func (h *Handler) handleProjectUpdates(w http.ResponseWriter, r *http.Request) {
	correlationID := r.Header.Get("X-Correlation-ID")
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	caller := callerIdentity(r)
	logger := h.logger.With(
		zap.String("correlationId", correlationID),
		zap.String("caller", caller))

	var items []UpdateItem
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		logger.Warn("Rejected malformed update request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"status":        "error",
			"correlationId": correlationID,
			"message":       "request body must be a JSON array of update items",
		})
		return
	}

	logger.Info("Processing project updates",
		zap.Int("items", len(items)),
		zap.Bool("dryRun", h.dryRun))

	// Per-item failures (unmatched rows, unknown departments) are local
	// outcomes carried in their results entry; the request itself succeeded.
	results := make([]ItemResult, 0, len(items))
	for _, item := range items {
		results = append(results, h.processItem(r.Context(), logger, caller, item))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"dryRun":        h.dryRun,
		"correlationId": correlationID,
		"results":       results,
	})
}

// processItem resolves one item's sheet and row, applies its field updates,
// and collects the scheduling return values.
func (h *Handler) processItem(ctx context.Context, logger *zap.Logger, caller string, item UpdateItem) ItemResult {
	res := ItemResult{JobNumber: item.JobNumber, Department: item.Department}

	sheetID, ok := h.sheets[item.Department]
	if !ok {
		res.Error = fmt.Sprintf("unknown department %q", item.Department)
		logger.Warn("Update item for unknown department",
			zap.String("department", item.Department),
			zap.String("jobNumber", item.JobNumber))
		return res
	}

	titles, err := h.service.ColumnTitles(ctx, sheetID)
	if err != nil {
		res.Error = fmt.Sprintf("failed to load sheet columns: %v", err)
		return res
	}
	columnByTitle := make(map[string]int64, len(titles))
	for id, title := range titles {
		columnByTitle[title] = id
	}

	rows, err := h.service.FetchAllRows(ctx, sheetID)
	if err != nil {
		res.Error = fmt.Sprintf("failed to fetch sheet %d: %v", sheetID, err)
		return res
	}

	row, found := matchRow(rows, columnByTitle, item)
	if !found {
		res.Error = "No matching Smartsheet row found"
		logger.Warn("No row matched update item",
			zap.String("jobNumber", item.JobNumber),
			zap.String("city", item.City),
			zap.String("state", item.State),
			zap.Int64("sheetId", sheetID))
		h.record(ctx, caller, item, sheetID, 0, "UPDATE_ROW", "MSP_TO_SS", false, res.Error)
		return res
	}
	res.RowID = row.ID

	cells := make([]smartsheet.Cell, 0, len(item.Updates))
	for field, value := range item.Updates {
		title, ok := fieldTitles[field]
		if !ok {
			logger.Warn("Skipping unmapped update field",
				zap.String("field", field),
				zap.String("jobNumber", item.JobNumber))
			continue
		}
		colID, ok := columnByTitle[title]
		if !ok {
			logger.Warn("Destination sheet has no column for field",
				zap.String("field", field),
				zap.String("column", title),
				zap.Int64("sheetId", sheetID))
			continue
		}
		cells = append(cells, smartsheet.Cell{ColumnID: colID, Value: value})
		res.Updated = append(res.Updated, title)
	}

	if len(cells) > 0 && !h.dryRun {
		err = h.service.UpdateRows(ctx, sheetID, []smartsheet.RowWrite{{ID: row.ID, Cells: cells}})
		if err != nil {
			res.Error = fmt.Sprintf("row update failed: %v", err)
			h.record(ctx, caller, item, sheetID, row.ID, "UPDATE_ROW", "MSP_TO_SS", false, res.Error)
			return res
		}
	}
	if len(cells) > 0 {
		logger.Info("Applied project update",
			zap.String("jobNumber", item.JobNumber),
			zap.Int64("sheetId", sheetID),
			zap.Int64("rowId", row.ID),
			zap.Strings("columns", res.Updated),
			zap.Bool("dryRun", h.dryRun))
		h.record(ctx, caller, item, sheetID, row.ID, "UPDATE_ROW", "MSP_TO_SS", true,
			fmt.Sprintf("updated %s", strings.Join(res.Updated, ", ")))
	}

	res.ReturnValues = returnValues(row, columnByTitle)
	h.record(ctx, caller, item, sheetID, row.ID, "RETURN_VALUES", "SS_TO_MSP", true,
		fmt.Sprintf("returned %d values", len(res.ReturnValues)))
	return res
}

// matchRow finds the row whose Tank #, City, and State match the item after
// trimming and lowercasing. Display values are preferred so formatted numbers
// compare the way users see them.
func matchRow(rows []smartsheet.Row, columnByTitle map[string]int64, item UpdateItem) (smartsheet.Row, bool) {
	tankCol := columnByTitle["Tank #"]
	cityCol := columnByTitle["City"]
	stateCol := columnByTitle["State"]

	wantTank := engine.NormalizeKeyComponent(item.JobNumber)
	wantCity := strings.ToLower(strings.TrimSpace(item.City))
	wantState := strings.ToLower(strings.TrimSpace(item.State))

	for _, row := range rows {
		cells := row.CellMap()
		if engine.NormalizeKeyComponent(displayOrValue(cells[tankCol])) != wantTank {
			continue
		}
		if strings.ToLower(strings.TrimSpace(displayOrValue(cells[cityCol]))) != wantCity {
			continue
		}
		if strings.ToLower(strings.TrimSpace(displayOrValue(cells[stateCol]))) != wantState {
			continue
		}
		return row, true
	}
	return smartsheet.Row{}, false
}

// returnValues collects the scheduling columns present on the matched row.
func returnValues(row smartsheet.Row, columnByTitle map[string]int64) map[string]string {
	out := make(map[string]string)
	cells := row.CellMap()
	for _, title := range returnTitles {
		colID, ok := columnByTitle[title]
		if !ok {
			continue
		}
		if v := displayOrValue(cells[colID]); v != "" {
			out[title] = v
		}
	}
	return out
}

// displayOrValue prefers the rendered display value, falling back to the raw
// value's normalized form.
func displayOrValue(c smartsheet.Cell) string {
	if c.DisplayValue != "" {
		return c.DisplayValue
	}
	return engine.Normalize(c.Value)
}

// record writes one audit row, silently skipping when no auditor is wired.
func (h *Handler) record(ctx context.Context, caller string, item UpdateItem, sheetID, rowID int64, operation, direction string, success bool, message string) {
	if h.auditor == nil {
		return
	}
	h.auditor.Record(ctx, audit.Entry{
		Direction:   direction,
		Operation:   operation,
		SheetID:     sheetID,
		RowID:       rowID,
		JobNumber:   item.JobNumber,
		Department:  item.Department,
		City:        item.City,
		State:       item.State,
		Success:     success,
		Message:     message,
		PerformedBy: caller,
	})
}

// callerIdentity extracts who is making the request from the auth headers the
// gateway forwards.
func callerIdentity(r *http.Request) string {
	if v := r.Header.Get("X-MS-CLIENT-PRINCIPAL-NAME"); v != "" {
		return v
	}
	if v := r.Header.Get("X-User"); v != "" {
		return v
	}
	return "unknown"
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
