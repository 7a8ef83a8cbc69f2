package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-mt-approvals/internal/approval"
	"github.com/pesio-ai/be-mt-approvals/internal/platform/database"
	"github.com/pesio-ai/be-mt-approvals/internal/platform/errors"
)

// DecisionRepository is the append-only approval ledger.
type DecisionRepository struct {
	db *database.DB
}

// NewDecisionRepository creates a new DecisionRepository.
func NewDecisionRepository(db *database.DB) *DecisionRepository {
	return &DecisionRepository{db: db}
}

// ListByReport returns all decisions for a report, oldest first.
func (r *DecisionRepository) ListByReport(ctx context.Context, reportID string) ([]approval.Decision, error) {
	return listDecisions(ctx, r.db, reportID)
}

// querier is satisfied by both *database.DB and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listDecisions(ctx context.Context, q querier, reportID string) ([]approval.Decision, error) {
	rows, err := q.Query(ctx, `
		SELECT step_number, approver_user_id, status, comment, decided_at
		FROM approval_decisions
		WHERE report_id = $1
		ORDER BY decided_at ASC, id ASC
	`, reportID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list approval decisions")
	}
	defer rows.Close()

	var out []approval.Decision
	for rows.Next() {
		var (
			d      approval.Decision
			status string
		)
		if err := rows.Scan(&d.StepNumber, &d.ApproverID, &status, &d.Comment, &d.DecidedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan approval decision")
		}
		d.Outcome = approval.ParseOutcome(status)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to read approval decisions")
	}
	return out, nil
}

// lockReport takes a row lock on the report for the rest of tx and returns whether it has
// been submitted. Decisions and result saves both lock here, so they serialize per report.
func lockReport(ctx context.Context, tx pgx.Tx, reportID string) (bool, error) {
	var submittedAt *time.Time
	err := tx.QueryRow(ctx, `
		SELECT submitted_at FROM monitoring_reports WHERE id = $1 FOR UPDATE
	`, reportID).Scan(&submittedAt)
	if err == pgx.ErrNoRows {
		return false, errors.NotFound("monitoring_report", reportID)
	}
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternal, "failed to lock monitoring report")
	}
	return submittedAt != nil, nil
}

// Append records a decision and an activity entry in one transaction. A second decision
// for the same (report, step, approver) returns a CONFLICT error and writes nothing.
func (r *DecisionRepository) Append(ctx context.Context, reportID string, d *approval.Decision, activity *ActivityEntry) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := lockReport(ctx, tx, reportID); err != nil {
			return err
		}

		var decidedAt time.Time
		err := tx.QueryRow(ctx, `
			INSERT INTO approval_decisions
			    (report_id, step_number, approver_user_id, status, comment)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (report_id, step_number, approver_user_id) DO NOTHING
			RETURNING decided_at
		`, reportID, d.StepNumber, d.ApproverID, string(d.Outcome), d.Comment).Scan(&decidedAt)
		if err == pgx.ErrNoRows {
			return errors.New(errors.ErrCodeConflict, "step has already been decided")
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to append approval decision")
		}
		d.DecidedAt = decidedAt

		if activity != nil {
			if err := appendActivity(ctx, tx, activity); err != nil {
				return err
			}
		}
		return nil
	})
}
