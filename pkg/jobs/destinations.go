package jobs

import (
	"encoding/json"
	"fmt"
)

// DestColumns names the per-sheet column identifiers a fan-out job needs.
// Missing is used by the project-missing check, Status by the status
// propagation job; each job validates the columns it requires.
type DestColumns struct {
	Tank    int64 `json:"tank"`
	City    int64 `json:"city"`
	State   int64 `json:"state"`
	Missing int64 `json:"missing"`
	Status  int64 `json:"status"`
}

// DestSheet describes one destination sheet for the fan-out jobs.
type DestSheet struct {
	SheetID   int64       `json:"sheet_id"`
	SheetName string      `json:"sheet_name"`
	Cols      DestColumns `json:"cols"`
}

// Name returns the configured sheet name, falling back to the identifier.
func (d DestSheet) Name() string {
	if d.SheetName != "" {
		return d.SheetName
	}
	return fmt.Sprintf("%d", d.SheetID)
}

// ParseDestSheets decodes the JSON destination descriptor array from
// configuration.
func ParseDestSheets(raw string) ([]DestSheet, error) {
	if raw == "" {
		return nil, nil
	}
	var sheets []DestSheet
	if err := json.Unmarshal([]byte(raw), &sheets); err != nil {
		return nil, fmt.Errorf("invalid destination sheets JSON: %w", err)
	}
	return sheets, nil
}

// validateKeyColumns checks the composite key columns every fan-out job needs.
func (d DestSheet) validateKeyColumns() error {
	if d.SheetID == 0 {
		return fmt.Errorf("destination sheet %q: missing sheet_id", d.SheetName)
	}
	if d.Cols.Tank == 0 || d.Cols.City == 0 || d.Cols.State == 0 {
		return fmt.Errorf("destination sheet %s: missing tank/city/state column ids", d.Name())
	}
	return nil
}
