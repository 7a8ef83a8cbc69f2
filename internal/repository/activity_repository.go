package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-mt-approvals/internal/platform/database"
	"github.com/pesio-ai/be-mt-approvals/internal/platform/errors"
)

// ActivityRepository appends and reads immutable report activity entries.
type ActivityRepository struct {
	db *database.DB
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(db *database.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Append inserts one activity entry.
func (r *ActivityRepository) Append(ctx context.Context, entry *ActivityEntry) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		return appendActivity(ctx, tx, entry)
	})
}

// GetByReportID returns the activity trail for a report ordered oldest-first.
func (r *ActivityRepository) GetByReportID(ctx context.Context, reportID string) ([]*ActivityEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, report_id, action, performed_by, performed_at, metadata
		FROM report_activity_log
		WHERE report_id = $1
		ORDER BY performed_at ASC, id ASC
	`, reportID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get activity log")
	}
	defer rows.Close()

	var entries []*ActivityEntry
	for rows.Next() {
		entry := &ActivityEntry{}
		var metadataJSON []byte
		if err := rows.Scan(&entry.ID, &entry.ReportID, &entry.Action, &entry.PerformedBy, &entry.PerformedAt, &metadataJSON); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan activity entry")
		}
		if metadataJSON != nil {
			if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal activity metadata")
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ── shared helpers ────────────────────────────────────────────────────────────

func appendActivity(ctx context.Context, tx pgx.Tx, entry *ActivityEntry) error {
	var metadataJSON []byte
	if entry.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal activity metadata")
		}
	}

	err := tx.QueryRow(ctx, `
		INSERT INTO report_activity_log (report_id, action, performed_by, metadata)
		VALUES ($1, $2, $3, $4)
		RETURNING id, performed_at
	`, entry.ReportID, entry.Action, entry.PerformedBy, metadataJSON).Scan(&entry.ID, &entry.PerformedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to append activity entry")
	}
	return nil
}
