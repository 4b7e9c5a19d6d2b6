// Package audit writes per-operation audit rows for the project updater to
// Postgres. Audit logging must never fail a request: every error is logged
// and swallowed.
package audit

import (
	"context"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Expected table:
//
//	CREATE TABLE project_sheet_audit_log (
//	    id            BIGSERIAL PRIMARY KEY,
//	    direction     TEXT NOT NULL,
//	    operation     TEXT NOT NULL,
//	    sheet_id      BIGINT,
//	    row_id        BIGINT,
//	    job_number    TEXT,
//	    department    TEXT,
//	    city          TEXT,
//	    state         TEXT,
//	    success       BOOLEAN NOT NULL,
//	    message       TEXT,
//	    performed_by  TEXT,
//	    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
const insertSQL = `
	INSERT INTO project_sheet_audit_log (
		direction, operation, sheet_id, row_id,
		job_number, department, city, state,
		success, message, performed_by
	) VALUES (
		:direction, :operation, :sheet_id, :row_id,
		:job_number, :department, :city, :state,
		:success, :message, :performed_by
	)`

// Entry is one audit row.
type Entry struct {
	Direction   string `db:"direction"`
	Operation   string `db:"operation"`
	SheetID     int64  `db:"sheet_id"`
	RowID       int64  `db:"row_id"`
	JobNumber   string `db:"job_number"`
	Department  string `db:"department"`
	City        string `db:"city"`
	State       string `db:"state"`
	Success     bool   `db:"success"`
	Message     string `db:"message"`
	PerformedBy string `db:"performed_by"`
}

// Logger writes audit entries to the audit table.
type Logger struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Open connects to the audit database and verifies the connection.
func Open(dsn string, logger *zap.Logger) (*Logger, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return &Logger{db: db, logger: logger}, nil
}

// Record inserts one audit row. Failures are logged and dropped so an audit
// outage cannot take the integration down with it.
func (l *Logger) Record(ctx context.Context, e Entry) {
	if l == nil || l.db == nil {
		return
	}
	if _, err := l.db.NamedExecContext(ctx, insertSQL, e); err != nil {
		l.logger.Error("Failed to write audit row",
			zap.String("operation", e.Operation),
			zap.Int64("sheetId", e.SheetID),
			zap.Int64("rowId", e.RowID),
			zap.Error(err))
	}
}

// Close releases the database connection.
func (l *Logger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}
