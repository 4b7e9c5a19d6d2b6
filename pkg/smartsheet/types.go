package smartsheet

// Cell is a single cell in a sheet row. Value is whatever scalar the API
// returned (string, number, boolean, or nil); DisplayValue is the rendered
// form and is used only for logging and matching fallbacks.
type Cell struct {
	ColumnID     int64       `json:"columnId"`
	Value        interface{} `json:"value,omitempty"`
	DisplayValue string      `json:"displayValue,omitempty"`
}

// Row is an immutable snapshot of a sheet row at fetch time.
type Row struct {
	ID    int64  `json:"id,omitempty"`
	Cells []Cell `json:"cells"`
}

// Column describes a sheet column. Only the identifier and title are needed;
// titles are used for human-readable diff logging.
type Column struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Sheet is the response shape of GET /sheets/{id}.
type Sheet struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	TotalRows  int64    `json:"totalRowCount"`
	Columns    []Column `json:"columns"`
	Rows       []Row    `json:"rows"`
	Page       int      `json:"pageNumber"`
	PageSize   int      `json:"pageSize"`
	TotalPages int      `json:"totalPages"`
}

// RowWrite is the payload shape for POST/PUT /sheets/{id}/rows. ID is set for
// updates, ToBottom for inserts.
type RowWrite struct {
	ID       int64  `json:"id,omitempty"`
	ToBottom bool   `json:"toBottom,omitempty"`
	Cells    []Cell `json:"cells"`
}

// CellMap converts a row's cell array into a columnId-keyed lookup.
func (r Row) CellMap() map[int64]Cell {
	out := make(map[int64]Cell, len(r.Cells))
	for _, c := range r.Cells {
		out[c.ColumnID] = c
	}
	return out
}

// CellValue returns the raw value of the cell in the given column, or nil if
// the row has no cell there.
func (r Row) CellValue(columnID int64) interface{} {
	for _, c := range r.Cells {
		if c.ColumnID == columnID {
			return c.Value
		}
	}
	return nil
}
