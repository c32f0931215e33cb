package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/grantflow/internal/core/domain"
)

const schemaLockID int64 = 2025031501

// ExportRepository archives application.exported events.
type ExportRepository struct {
	db *sql.DB
}

func NewExportRepository(db *sql.DB) *ExportRepository {
	return &ExportRepository{db: db}
}

func (r *ExportRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across worker replicas.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS application_exports (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	format TEXT NOT NULL,
	storage_key TEXT NOT NULL DEFAULT '',
	organization TEXT NOT NULL DEFAULT '',
	determination TEXT NOT NULL DEFAULT '',
	size_bytes INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_application_exports_session ON application_exports(session_id, created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Save is idempotent per event id, so redelivered events are harmless.
func (r *ExportRepository) Save(ctx context.Context, event domain.ExportEvent) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO application_exports (
	id, session_id, filename, format, storage_key, organization, determination, size_bytes, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO NOTHING
`,
		event.ID, event.SessionID, event.Filename, string(event.Format), event.StorageKey,
		event.Organization, string(event.Determination), event.SizeBytes, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert export: %w", err)
	}
	return nil
}

func (r *ExportRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.ExportEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, session_id, filename, format, storage_key, organization, determination, size_bytes, created_at
FROM application_exports
WHERE session_id = $1
ORDER BY created_at DESC
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query exports: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ExportEvent, 0)
	for rows.Next() {
		var (
			event         domain.ExportEvent
			format        string
			determination string
		)
		if err := rows.Scan(
			&event.ID, &event.SessionID, &event.Filename, &format, &event.StorageKey,
			&event.Organization, &determination, &event.SizeBytes, &event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		event.Type = domain.EventApplicationExported
		event.Format = domain.ExportFormat(format)
		event.Determination = domain.Determination(determination)
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exports: %w", err)
	}
	return out, nil
}
