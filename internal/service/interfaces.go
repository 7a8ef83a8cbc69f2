package service

import (
	"context"

	"github.com/pesio-ai/be-mt-approvals/internal/approval"
	"github.com/pesio-ai/be-mt-approvals/internal/repository"
)

// TemplateStore reads approval templates.
type TemplateStore interface {
	GetByID(ctx context.Context, id string) (*approval.Template, error)
}

// DecisionStore is the append-only decision ledger.
type DecisionStore interface {
	ListByReport(ctx context.Context, reportID string) ([]approval.Decision, error)
	Append(ctx context.Context, reportID string, d *approval.Decision, activity *repository.ActivityEntry) error
}

// ReportStore reads and updates monitoring reports.
type ReportStore interface {
	GetByID(ctx context.Context, id string) (*repository.Report, error)
	SaveResults(ctx context.Context, reportID, userID string, updates []repository.ItemResultUpdate, markSubmitted bool, activity *repository.ActivityEntry, guard repository.EditGuard) error
	ListSubmittedForApprover(ctx context.Context, userID string) ([]string, error)
}

// UserStore reads user profiles.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*repository.User, error)
}

// ActivityStore reads the report activity log.
type ActivityStore interface {
	GetByReportID(ctx context.Context, reportID string) ([]*repository.ActivityEntry, error)
}

// Notifier delivers workflow events to interested users. Implementations must not block
// on delivery failures.
type Notifier interface {
	PublishReportEvent(ctx context.Context, eventType, reportID, actorID string, recipients []string, payload map[string]interface{})
}
