package model

import (
	"errors"
	"time"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// RuleScope selects which events a rule looks at.
type RuleScope string

const (
	ScopeSubject RuleScope = "subject"
	ScopeGroup   RuleScope = "group"
	ScopeOrg     RuleScope = "org"
)

// RuleFilter narrows matching events by type or severity.
type RuleFilter string

const (
	FilterEventType RuleFilter = "event_type"
	FilterSeverity  RuleFilter = "severity"
	FilterAny       RuleFilter = "any"
)

type TriggerMode string

const (
	ModeImmediate TriggerMode = "immediate"
	ModeThreshold TriggerMode = "threshold"
)

// NotifyTarget selects who receives dispatched messages when a rule fires.
type NotifyTarget string

const (
	TargetOwner      NotifyTarget = "owner"
	TargetPrivileged NotifyTarget = "privileged"
)

// Rule is a configured monitoring condition. Rules are owned by the
// surrounding application; the engine reads them and only writes back
// trigger statistics when one fires.
type Rule struct {
	ID          string       `json:"id"`
	OrgID       string       `json:"org_id"`
	OwnerID     string       `json:"owner_id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Scope       RuleScope    `json:"scope"`
	SubjectID   string       `json:"subject_id,omitempty"`
	GroupID     string       `json:"group_id,omitempty"`
	Filter      RuleFilter   `json:"filter"`
	EventTypeID string       `json:"event_type_id,omitempty"`
	Severity    Severity     `json:"severity,omitempty"`
	Mode        TriggerMode  `json:"mode"`
	Threshold   int          `json:"threshold"`
	WindowDays  int          `json:"window_days,omitempty"`
	Target      NotifyTarget `json:"target"`
	Active      bool         `json:"active"`

	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`
	TriggerCount    int        `json:"trigger_count"`
}

var ErrInvalidRule = errors.New("rule violates mode/window invariant")

// Validate checks the mode/window invariant. Rule CRUD upstream should
// never let an invalid rule through; the engine still refuses to evaluate
// one that slipped past.
func (r Rule) Validate() error {
	switch r.Mode {
	case ModeImmediate:
		if r.WindowDays != 0 || r.Threshold != 1 {
			return ErrInvalidRule
		}
	case ModeThreshold:
		if r.WindowDays < 1 || r.Threshold < 1 {
			return ErrInvalidRule
		}
	default:
		return ErrInvalidRule
	}
	return nil
}

// Immediate reports whether the rule fires on every matching event
// without a counting window.
func (r Rule) Immediate() bool {
	return r.Mode == ModeImmediate
}

// Event is a recorded occurrence tied to a subject. Immutable once
// recorded as far as the engine is concerned.
type Event struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"org_id"`
	SubjectID   string    `json:"subject_id"`
	EventTypeID string    `json:"event_type_id"`
	Severity    Severity  `json:"severity"`
	OccurredAt  time.Time `json:"occurred_at"`
	Description string    `json:"description,omitempty"`
	RecorderID  string    `json:"recorder_id,omitempty"`
}

// Notification is the record of one rule firing. Created exactly once per
// non-deduped fire; read-state is owned by the consuming UI, not here.
type Notification struct {
	ID        string    `json:"id"`
	RuleID    string    `json:"rule_id"`
	OrgID     string    `json:"org_id"`
	EventID   string    `json:"event_id"`
	RuleName  string    `json:"rule_name"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	CreatedAt time.Time `json:"created_at"`

	Read   bool       `json:"read"`
	ReadBy string     `json:"read_by,omitempty"`
	ReadAt *time.Time `json:"read_at,omitempty"`
}

// Contact is a resolved message recipient.
type Contact struct {
	UserID  string `json:"user_id"`
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}
