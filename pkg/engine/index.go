package engine

import (
	"strings"

	"go.uber.org/zap"

	"github.com/identity-field/sheetsync/pkg/smartsheet"
)

// DestinationIndex maps a composite key to the destination rows carrying it.
// Several row-types can legitimately share a key column (one row per phase),
// so the index always keeps a list; the planner disambiguates by row-type at
// lookup time.
type DestinationIndex map[string][]smartsheet.Row

// BuildIndex indexes destination rows by composite key. A row is retained iff
// its row-type cell equals rowTypeValue and its key is valid. Duplicate keys
// within the same row-type are kept in fetch order and logged: the planner
// takes the first match, and the log line makes the data-quality problem
// visible instead of hiding it behind map ordering.
func BuildIndex(
	rows []smartsheet.Row,
	rowTypeColumn int64,
	rowTypeValue string,
	keyColumns []int64,
	logger *zap.Logger,
) DestinationIndex {
	idx := make(DestinationIndex)

	for _, row := range rows {
		rowType := strings.TrimSpace(Normalize(row.CellValue(rowTypeColumn)))
		if rowType != rowTypeValue {
			continue
		}

		key, ok := ExtractKey(row, keyColumns)
		if !ok {
			logger.Debug("Excluding destination row with incomplete key",
				zap.Int64("rowId", row.ID))
			continue
		}

		if existing := idx[key]; len(existing) > 0 {
			logger.Warn("Duplicate destination key, first match wins",
				zap.String("key", key),
				zap.String("rowType", rowTypeValue),
				zap.Int64("rowId", row.ID),
				zap.Int64("firstRowId", existing[0].ID))
		}

		idx[key] = append(idx[key], row)
	}

	return idx
}

// Lookup returns the first candidate row under key whose row-type cell equals
// rowTypeValue, or false when no candidate matches.
func (idx DestinationIndex) Lookup(key string, rowTypeColumn int64, rowTypeValue string) (smartsheet.Row, bool) {
	for _, row := range idx[key] {
		if strings.TrimSpace(Normalize(row.CellValue(rowTypeColumn))) == rowTypeValue {
			return row, true
		}
	}
	return smartsheet.Row{}, false
}
