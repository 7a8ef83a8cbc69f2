package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-mt-approvals/internal/approval"
	"github.com/pesio-ai/be-mt-approvals/internal/platform/database"
	"github.com/pesio-ai/be-mt-approvals/internal/platform/errors"
)

// TemplateRepository reads approval templates. Templates are managed by configuration
// tooling outside this service.
type TemplateRepository struct {
	db *database.DB
}

// NewTemplateRepository creates a new TemplateRepository.
func NewTemplateRepository(db *database.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// GetByID returns a template with its steps ordered by step_number.
func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*approval.Template, error) {
	tpl := &approval.Template{}
	err := r.db.QueryRow(ctx, `
		SELECT id, name, is_active
		FROM approval_templates
		WHERE id = $1
	`, id).Scan(&tpl.ID, &tpl.Name, &tpl.IsActive)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("approval_template", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get approval template")
	}

	rows, err := r.db.Query(ctx, `
		SELECT s.step_number, s.approver_user_id,
		       COALESCE(u.display_name, ''), COALESCE(u.position, ''), COALESCE(u.department, '')
		FROM approval_template_steps s
		LEFT JOIN users u ON u.id = s.approver_user_id
		WHERE s.template_id = $1
		ORDER BY s.step_number ASC
	`, id)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get approval template steps")
	}
	defer rows.Close()

	for rows.Next() {
		var s approval.Step
		if err := rows.Scan(&s.Number, &s.ApproverID, &s.ApproverName, &s.ApproverPosition, &s.ApproverDepartment); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan approval template step")
		}
		tpl.Steps = append(tpl.Steps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to read approval template steps")
	}
	return tpl, nil
}
