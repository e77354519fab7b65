package engine

import (
	"context"
	"time"

	"vigil/internal/model"
)

// RuleStore supplies the active rules for an organization.
type RuleStore interface {
	ListActiveRules(ctx context.Context, orgID string) ([]model.Rule, error)
}

// EventStore supplies historical events and subject metadata. The engine
// never writes events; recording happens before evaluation, outside it.
type EventStore interface {
	// CountMatching returns the number of events in [windowStart, windowEnd]
	// for the organization, optionally narrowed to subjectIDs and
	// eventTypeIDs. A nil slice means no narrowing on that dimension.
	CountMatching(ctx context.Context, orgID string, subjectIDs, eventTypeIDs []string, windowStart, windowEnd time.Time) (int, error)

	// ResolveSubjectGroup returns the group the subject currently belongs
	// to, or "" when the subject is in no group.
	ResolveSubjectGroup(ctx context.Context, subjectID string) (string, error)

	ResolveGroupMembers(ctx context.Context, groupID string) ([]string, error)
	ResolveEventTypesBySeverity(ctx context.Context, orgID string, severity model.Severity) ([]string, error)
}

// NotificationSink persists notifications and rule trigger statistics.
type NotificationSink interface {
	// FindRecentNotification returns the newest notification for the rule
	// created at or after since, or nil when there is none.
	FindRecentNotification(ctx context.Context, ruleID string, since time.Time) (*model.Notification, error)

	InsertNotification(ctx context.Context, n model.Notification) (model.Notification, error)

	// BumpRuleStats sets the rule's last-triggered timestamp and increments
	// its trigger count by one. Implementations should use an atomic
	// increment rather than read-then-write.
	BumpRuleStats(ctx context.Context, ruleID string, triggeredAt time.Time) error
}

// Dispatcher delivers a fired notification to its recipients. Best-effort;
// implementations log failures and never surface them to the evaluation
// pass.
type Dispatcher interface {
	Send(ctx context.Context, rule model.Rule, n model.Notification)
}
