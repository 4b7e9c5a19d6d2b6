package engine

import (
	"strings"

	"github.com/identity-field/sheetsync/pkg/smartsheet"
)

// KeyDelimiter joins normalized composite key components.
const KeyDelimiter = "|"

// ExtractKey derives the normalized composite key for a row from the given
// columns, in order. The second return value is false when any component is
// empty after normalization; callers must exclude such rows from indexing and
// matching entirely. An empty-string key is never valid: early versions
// matched unrelated rows to each other through empty keys.
func ExtractKey(row smartsheet.Row, columnIDs []int64) (string, bool) {
	if len(columnIDs) == 0 {
		return "", false
	}

	cells := row.CellMap()
	components := make([]string, 0, len(columnIDs))

	for _, colID := range columnIDs {
		component := NormalizeKeyComponent(cells[colID].Value)
		if component == "" {
			return "", false
		}
		components = append(components, component)
	}

	return strings.Join(components, KeyDelimiter), true
}
