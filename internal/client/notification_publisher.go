package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/pesio-ai/be-mt-approvals/internal/platform/logger"
	"github.com/pesio-ai/be-mt-approvals/internal/platform/middleware"
)

// NotificationPublisher publishes approval workflow events to NATS for consumption by the
// notifications service.
//
// Subject convention: notifications.monitoring.<event_type>
// Event types: approval_required, report_approved, step_rejected, feedback_given,
//              report_edited
//
// Publish failures are logged and never returned, so a notification outage never blocks
// an approval.
type NotificationPublisher struct {
	conn *nats.Conn
	log  *logger.Logger
}

// NotificationEvent is the JSON schema published to NATS.
type NotificationEvent struct {
	EventType    string                 `json:"event_type"`
	ActorID      string                 `json:"actor_id"`
	Recipients   []string               `json:"recipients"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   string                 `json:"resource_id"`
	IsActionable bool                   `json:"is_actionable,omitempty"`
	ActionURL    string                 `json:"action_url,omitempty"`
	Severity     string                 `json:"severity,omitempty"`
	Category     string                 `json:"category,omitempty"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
}

// NewNotificationPublisher creates a publisher. A nil conn makes every publish a no-op.
func NewNotificationPublisher(conn *nats.Conn, log *logger.Logger) *NotificationPublisher {
	return &NotificationPublisher{conn: conn, log: log.Component("notifications")}
}

// ConnectNATS dials the NATS server with reconnects enabled.
func ConnectNATS(url, name string, log *logger.Logger) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
}

// Subject returns the NATS subject for an event type.
func Subject(eventType string) string {
	return fmt.Sprintf("notifications.monitoring.%s", eventType)
}

// PublishReportEvent publishes a monitoring report approval event.
func (p *NotificationPublisher) PublishReportEvent(ctx context.Context, eventType, reportID, actorID string, recipients []string, payload map[string]interface{}) {
	if p == nil || p.conn == nil {
		return
	}
	if len(recipients) == 0 {
		return
	}

	event := &NotificationEvent{
		EventType:    eventType,
		ActorID:      actorID,
		Recipients:   recipients,
		ResourceType: "monitoring_report",
		ResourceID:   reportID,
		IsActionable: eventType == "approval_required",
		ActionURL:    "/reports/" + reportID + "/approval",
		Severity:     severity(eventType),
		Category:     "monitoring_approval",
		Payload:      payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", eventType).Msg("notification: failed to marshal event")
		return
	}

	subject := Subject(eventType)
	msg := nats.NewMsg(subject)
	msg.Data = data
	if id := middleware.RequestIDFrom(ctx); id != "" {
		msg.Header.Set(middleware.RequestIDHeader, id)
	}
	if err := p.conn.PublishMsg(msg); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("report_id", reportID).
			Msg("notification: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("report_id", reportID).
		Int("recipients", len(recipients)).
		Msg("notification: event published")
}

func severity(eventType string) string {
	switch eventType {
	case "step_rejected":
		return "warning"
	default:
		return "info"
	}
}
