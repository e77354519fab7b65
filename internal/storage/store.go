// Package storage implements the engine's collaborator interfaces
// (rule store, event store, notification sink, recipient directory) on
// top of database/sql, with sqlite and postgres drivers.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"vigil/internal/config"
	"vigil/internal/model"
)

// Store is the full persistence surface of the service. The engine only
// sees the narrow slices it declares for itself; the API and ingest layers
// additionally record events, and the dispatcher resolves contacts.
type Store interface {
	Init(ctx context.Context) error
	Close() error

	ListActiveRules(ctx context.Context, orgID string) ([]model.Rule, error)

	InsertEvent(ctx context.Context, ev model.Event) (model.Event, error)
	CountMatching(ctx context.Context, orgID string, subjectIDs, eventTypeIDs []string, windowStart, windowEnd time.Time) (int, error)
	ResolveSubjectGroup(ctx context.Context, subjectID string) (string, error)
	ResolveGroupMembers(ctx context.Context, groupID string) ([]string, error)
	ResolveEventTypesBySeverity(ctx context.Context, orgID string, severity model.Severity) ([]string, error)

	FindRecentNotification(ctx context.Context, ruleID string, since time.Time) (*model.Notification, error)
	InsertNotification(ctx context.Context, n model.Notification) (model.Notification, error)
	BumpRuleStats(ctx context.Context, ruleID string, triggeredAt time.Time) error

	ResolveOwnerContact(ctx context.Context, userID string) (*model.Contact, error)
	ResolvePrivilegedContacts(ctx context.Context, orgID string) ([]model.Contact, error)
}

func NewStore(cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

const ruleColumns = `id, org_id, owner_id, name, description, scope, subject_id, group_id,
	filter, event_type_id, severity, mode, threshold, window_days, target, active,
	last_triggered_at, trigger_count`

func scanRule(rows *sql.Rows) (model.Rule, error) {
	var r model.Rule
	var description, subjectID, groupID, eventTypeID, severity sql.NullString
	var lastTriggered sql.NullTime
	err := rows.Scan(
		&r.ID, &r.OrgID, &r.OwnerID, &r.Name, &description, &r.Scope, &subjectID, &groupID,
		&r.Filter, &eventTypeID, &severity, &r.Mode, &r.Threshold, &r.WindowDays, &r.Target, &r.Active,
		&lastTriggered, &r.TriggerCount,
	)
	if err != nil {
		return model.Rule{}, err
	}
	r.Description = description.String
	r.SubjectID = subjectID.String
	r.GroupID = groupID.String
	r.EventTypeID = eventTypeID.String
	r.Severity = model.Severity(severity.String)
	if lastTriggered.Valid {
		ts := lastTriggered.Time.UTC()
		r.LastTriggeredAt = &ts
	}
	return r, nil
}

const notificationColumns = `id, rule_id, org_id, event_id, rule_name, message, count, created_at,
	read, read_by, read_at`

func scanNotification(row *sql.Row) (*model.Notification, error) {
	var n model.Notification
	var readBy sql.NullString
	var readAt sql.NullTime
	err := row.Scan(
		&n.ID, &n.RuleID, &n.OrgID, &n.EventID, &n.RuleName, &n.Message, &n.Count, &n.CreatedAt,
		&n.Read, &readBy, &readAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	n.ReadBy = readBy.String
	if readAt.Valid {
		ts := readAt.Time.UTC()
		n.ReadAt = &ts
	}
	n.CreatedAt = n.CreatedAt.UTC()
	return &n, nil
}

func collectStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
