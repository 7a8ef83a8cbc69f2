package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pesio-ai/be-mt-approvals/internal/approval"
	"github.com/pesio-ai/be-mt-approvals/internal/platform/errors"
	"github.com/pesio-ai/be-mt-approvals/internal/repository"
)

type fakeTemplates struct {
	byID map[string]*approval.Template
}

func (f *fakeTemplates) GetByID(_ context.Context, id string) (*approval.Template, error) {
	t, ok := f.byID[id]
	if !ok {
		return nil, errors.NotFound("approval_template", id)
	}
	cp := *t
	cp.Steps = append([]approval.Step(nil), t.Steps...)
	return &cp, nil
}

type fakeLedger struct {
	mu       sync.Mutex
	byReport map[string][]approval.Decision
	activity *fakeActivity
	now      time.Time
}

func (f *fakeLedger) ListByReport(_ context.Context, reportID string) ([]approval.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]approval.Decision(nil), f.byReport[reportID]...), nil
}

func (f *fakeLedger) Append(_ context.Context, reportID string, d *approval.Decision, activity *repository.ActivityEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, prev := range f.byReport[reportID] {
		if prev.StepNumber == d.StepNumber && prev.ApproverID == d.ApproverID {
			return errors.New(errors.ErrCodeConflict, "step has already been decided")
		}
	}
	f.now = f.now.Add(time.Minute)
	d.DecidedAt = f.now
	f.byReport[reportID] = append(f.byReport[reportID], *d)
	if activity != nil {
		f.activity.add(activity)
	}
	return nil
}

func (f *fakeLedger) count(reportID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byReport[reportID])
}

type fakeReports struct {
	mu       sync.Mutex
	byID     map[string]*repository.Report
	activity *fakeActivity
	ledger   *fakeLedger
	gets     int32
	saves    int32
	gate     chan struct{}
	// beforeWrite runs between the service's load and the write transaction, standing in
	// for a concurrent commit.
	beforeWrite func()
}

func (f *fakeReports) GetByID(_ context.Context, id string) (*repository.Report, error) {
	atomic.AddInt32(&f.gets, 1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok {
		return nil, errors.NotFound("monitoring_report", id)
	}
	cp := *r
	cp.Items = make([]*repository.ReportItem, len(r.Items))
	for i, it := range r.Items {
		item := *it
		cp.Items[i] = &item
	}
	return &cp, nil
}

func (f *fakeReports) SaveResults(
	ctx context.Context,
	reportID, userID string,
	updates []repository.ItemResultUpdate,
	markSubmitted bool,
	activity *repository.ActivityEntry,
	guard repository.EditGuard,
) error {
	if f.beforeWrite != nil {
		f.beforeWrite()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.byID[reportID]
	if guard != nil {
		decisions, err := f.ledger.ListByReport(ctx, reportID)
		if err != nil {
			return err
		}
		if err := guard(r.SubmittedAt != nil, decisions); err != nil {
			return err
		}
	}
	atomic.AddInt32(&f.saves, 1)
	for _, u := range updates {
		for _, it := range r.Items {
			if it.ID == u.ItemID {
				it.Result = u.Result
				it.Notes = u.Notes
			}
		}
	}
	if markSubmitted && r.SubmittedAt == nil {
		now := time.Now()
		r.SubmittedAt = &now
		r.SubmittedBy = &userID
	}
	if activity != nil {
		f.activity.add(activity)
	}
	return nil
}

func (f *fakeReports) ListSubmittedForApprover(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, r := range f.byID {
		if r.SubmittedAt != nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type fakeUsers struct {
	byID map[string]*repository.User
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*repository.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, errors.NotFound("user", id)
	}
	return u, nil
}

type fakeActivity struct {
	mu      sync.Mutex
	entries []*repository.ActivityEntry
}

func (f *fakeActivity) add(e *repository.ActivityEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = int64(len(f.entries) + 1)
	f.entries = append(f.entries, e)
}

func (f *fakeActivity) GetByReportID(_ context.Context, reportID string) ([]*repository.ActivityEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*repository.ActivityEntry
	for _, e := range f.entries {
		if e.ReportID == reportID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeActivity) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

type sentEvent struct {
	Type       string
	ReportID   string
	Actor      string
	Recipients []string
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (f *fakeNotifier) PublishReportEvent(_ context.Context, eventType, reportID, actorID string, recipients []string, _ map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{Type: eventType, ReportID: reportID, Actor: actorID, Recipients: recipients})
}

func (f *fakeNotifier) last() sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return sentEvent{}
	}
	return f.events[len(f.events)-1]
}
