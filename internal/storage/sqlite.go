package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"vigil/internal/model"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:vigil.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS subjects (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			name TEXT NOT NULL,
			group_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_subjects_group ON subjects(group_id)`,
		`CREATE TABLE IF NOT EXISTS event_types (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			name TEXT NOT NULL,
			severity TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_event_types_org_severity ON event_types(org_id, severity)`,
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			subject_id TEXT NOT NULL,
			event_type_id TEXT NOT NULL,
			severity TEXT NOT NULL,
			occurred_at TIMESTAMP NOT NULL,
			description TEXT,
			recorder_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_org_occurred ON events(org_id, occurred_at)`,
		`CREATE TABLE IF NOT EXISTS rules (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			scope TEXT NOT NULL,
			subject_id TEXT,
			group_id TEXT,
			filter TEXT NOT NULL,
			event_type_id TEXT,
			severity TEXT,
			mode TEXT NOT NULL,
			threshold INTEGER NOT NULL,
			window_days INTEGER NOT NULL DEFAULT 0,
			target TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT 1,
			last_triggered_at TIMESTAMP,
			trigger_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rules_org_active ON rules(org_id, active)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			rule_id TEXT NOT NULL,
			org_id TEXT NOT NULL,
			event_id TEXT NOT NULL,
			rule_name TEXT NOT NULL,
			message TEXT NOT NULL,
			count INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL,
			read BOOLEAN NOT NULL DEFAULT 0,
			read_by TEXT,
			read_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_rule_created ON notifications(rule_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS members (
			user_id TEXT NOT NULL,
			org_id TEXT NOT NULL,
			name TEXT,
			address TEXT NOT NULL,
			role TEXT NOT NULL,
			removed BOOLEAN NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, org_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) ListActiveRules(ctx context.Context, orgID string) ([]model.Rule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM rules WHERE org_id = ? AND active`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Rule, 0)
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) InsertEvent(ctx context.Context, ev model.Event) (model.Event, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = nowUTC()
	}
	if ev.Severity == "" {
		var severity string
		err := s.db.QueryRowContext(ctx,
			`SELECT severity FROM event_types WHERE id = ?`, ev.EventTypeID).Scan(&severity)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return model.Event{}, fmt.Errorf("unknown event type %s", ev.EventTypeID)
			}
			return model.Event{}, err
		}
		ev.Severity = model.Severity(severity)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, org_id, subject_id, event_type_id, severity, occurred_at, description, recorder_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.OrgID, ev.SubjectID, ev.EventTypeID, string(ev.Severity),
		ev.OccurredAt.UTC(), nullable(ev.Description), nullable(ev.RecorderID),
	)
	return ev, err
}

func (s *sqliteStore) CountMatching(ctx context.Context, orgID string, subjectIDs, eventTypeIDs []string, windowStart, windowEnd time.Time) (int, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT COUNT(*) FROM events WHERE org_id = ? AND occurred_at >= ? AND occurred_at <= ?`)
	args := []any{orgID, windowStart.UTC(), windowEnd.UTC()}
	if len(subjectIDs) > 0 {
		sb.WriteString(` AND subject_id IN (` + qPlaceholders(len(subjectIDs)) + `)`)
		for _, id := range subjectIDs {
			args = append(args, id)
		}
	}
	if len(eventTypeIDs) > 0 {
		sb.WriteString(` AND event_type_id IN (` + qPlaceholders(len(eventTypeIDs)) + `)`)
		for _, id := range eventTypeIDs {
			args = append(args, id)
		}
	}
	var count int
	err := s.db.QueryRowContext(ctx, sb.String(), args...).Scan(&count)
	return count, err
}

func (s *sqliteStore) ResolveSubjectGroup(ctx context.Context, subjectID string) (string, error) {
	var groupID sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT group_id FROM subjects WHERE id = ?`, subjectID).Scan(&groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return groupID.String, nil
}

func (s *sqliteStore) ResolveGroupMembers(ctx context.Context, groupID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM subjects WHERE group_id = ?`, groupID)
	if err != nil {
		return nil, err
	}
	return collectStrings(rows)
}

func (s *sqliteStore) ResolveEventTypesBySeverity(ctx context.Context, orgID string, severity model.Severity) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM event_types WHERE org_id = ? AND severity = ?`, orgID, string(severity))
	if err != nil {
		return nil, err
	}
	return collectStrings(rows)
}

func (s *sqliteStore) FindRecentNotification(ctx context.Context, ruleID string, since time.Time) (*model.Notification, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		WHERE rule_id = ? AND created_at >= ?
		ORDER BY created_at DESC LIMIT 1`,
		ruleID, since.UTC())
	return scanNotification(row)
}

func (s *sqliteStore) InsertNotification(ctx context.Context, n model.Notification) (model.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = nowUTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, rule_id, org_id, event_id, rule_name, message, count, created_at, read)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		n.ID, n.RuleID, n.OrgID, n.EventID, n.RuleName, n.Message, n.Count, n.CreatedAt.UTC(),
	)
	return n, err
}

func (s *sqliteStore) BumpRuleStats(ctx context.Context, ruleID string, triggeredAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE rules SET trigger_count = trigger_count + 1, last_triggered_at = ? WHERE id = ?`,
		triggeredAt.UTC(), ruleID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("rule %s not found", ruleID)
	}
	return nil
}

func (s *sqliteStore) ResolveOwnerContact(ctx context.Context, userID string) (*model.Contact, error) {
	var c model.Contact
	var name sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, name, address FROM members WHERE user_id = ? AND NOT removed AND address <> '' LIMIT 1`,
		userID).Scan(&c.UserID, &name, &c.Address)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Name = name.String
	return &c, nil
}

func (s *sqliteStore) ResolvePrivilegedContacts(ctx context.Context, orgID string) ([]model.Contact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, name, address FROM members
		WHERE org_id = ? AND NOT removed AND address <> '' AND role IN ('admin', 'read_admin')`,
		orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Contact, 0)
	for rows.Next() {
		var c model.Contact
		var name sql.NullString
		if err := rows.Scan(&c.UserID, &name, &c.Address); err != nil {
			return nil, err
		}
		c.Name = name.String
		out = append(out, c)
	}
	return out, rows.Err()
}

func qPlaceholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
