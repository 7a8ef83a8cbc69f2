package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-mt-approvals/internal/approval"
	"github.com/pesio-ai/be-mt-approvals/internal/platform/database"
	"github.com/pesio-ai/be-mt-approvals/internal/platform/errors"
)

// ReportRepository handles monitoring reports and their item results.
type ReportRepository struct {
	db *database.DB
}

// NewReportRepository creates a new ReportRepository.
func NewReportRepository(db *database.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// GetByID returns a report with its items ordered by position.
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*Report, error) {
	report := &Report{}
	err := r.db.QueryRow(ctx, `
		SELECT id, template_id, area_name, submitted_by, submitted_at, created_at, updated_at
		FROM monitoring_reports
		WHERE id = $1
	`, id).Scan(
		&report.ID,
		&report.TemplateID,
		&report.AreaName,
		&report.SubmittedBy,
		&report.SubmittedAt,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("monitoring_report", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get monitoring report")
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, report_id, position, checklist_item, required, result, notes, updated_by, updated_at
		FROM monitoring_report_items
		WHERE report_id = $1
		ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get report items")
	}
	defer rows.Close()

	for rows.Next() {
		item := &ReportItem{}
		var result string
		if err := rows.Scan(
			&item.ID,
			&item.ReportID,
			&item.Position,
			&item.ChecklistItem,
			&item.Required,
			&result,
			&item.Notes,
			&item.UpdatedBy,
			&item.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan report item")
		}
		item.Result, _ = ParseItemResult(result)
		report.Items = append(report.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to read report items")
	}
	return report, nil
}

// EditGuard decides, from state read under the report lock, whether a save may proceed.
// A non-nil error aborts the transaction and is returned to the caller.
type EditGuard func(submitted bool, decisions []approval.Decision) error

// SaveResults writes item results, optionally stamps the report as submitted, and records
// an activity entry, all in one transaction. The report row is locked and guard is run
// against the decisions committed at that point, before anything is written.
func (r *ReportRepository) SaveResults(
	ctx context.Context,
	reportID, userID string,
	updates []ItemResultUpdate,
	markSubmitted bool,
	activity *ActivityEntry,
	guard EditGuard,
) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		submitted, err := lockReport(ctx, tx, reportID)
		if err != nil {
			return err
		}
		if guard != nil {
			decisions, err := listDecisions(ctx, tx, reportID)
			if err != nil {
				return err
			}
			if err := guard(submitted, decisions); err != nil {
				return err
			}
		}

		for _, u := range updates {
			tag, err := tx.Exec(ctx, `
				UPDATE monitoring_report_items
				SET result     = $3,
				    notes      = $4,
				    updated_by = $5,
				    updated_at = NOW()
				WHERE id = $1 AND report_id = $2
			`, u.ItemID, reportID, string(u.Result), u.Notes, userID)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "failed to update report item")
			}
			if tag.RowsAffected() == 0 {
				return errors.NotFound("report_item", u.ItemID)
			}
		}

		query := `UPDATE monitoring_reports SET updated_at = NOW() WHERE id = $1`
		args := []any{reportID}
		if markSubmitted {
			query = `
				UPDATE monitoring_reports
				SET submitted_by = COALESCE(submitted_by, $2),
				    submitted_at = COALESCE(submitted_at, NOW()),
				    updated_at   = NOW()
				WHERE id = $1
			`
			args = append(args, userID)
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to update monitoring report")
		}

		if activity != nil {
			return appendActivity(ctx, tx, activity)
		}
		return nil
	})
}

// ListSubmittedForApprover returns ids of submitted reports whose template names userID
// as an approver at any step.
func (r *ReportRepository) ListSubmittedForApprover(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT m.id, m.submitted_at
		FROM monitoring_reports m
		JOIN approval_template_steps s ON s.template_id = m.template_id
		WHERE s.approver_user_id = $1
		  AND m.submitted_at IS NOT NULL
		ORDER BY m.submitted_at ASC
	`, userID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list reports for approver")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var (
			id string
			at any
		)
		if err := rows.Scan(&id, &at); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan report id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
