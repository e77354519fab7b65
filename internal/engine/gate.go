package engine

import (
	"context"
	"time"

	"vigil/internal/model"
)

// Outcome is the result of a fire attempt.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeDeduped Outcome = "deduped"
)

// DefaultCooldown is the minimum time between two notifications from the
// same threshold-mode rule.
const DefaultCooldown = 60 * time.Minute

// Gate enforces at most one notification per rule per cooldown window and
// persists the notification plus the rule's trigger statistics.
// Immediate-mode rules bypass the cooldown entirely.
type Gate struct {
	sink     NotificationSink
	cooldown time.Duration
	now      func() time.Time
}

func NewGate(sink NotificationSink, cooldown time.Duration) *Gate {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Gate{sink: sink, cooldown: cooldown, now: time.Now}
}

// FireIfNeeded creates a notification for the rule unless a previous one
// for the same rule falls inside the cooldown window. The cooldown check
// is best-effort: two overlapping passes can both slip through, and that
// is accepted.
//
// When the insert succeeds but the stats bump fails, the notification
// stands and FireIfNeeded returns OutcomeCreated together with the bump
// error; the caller logs it and carries on.
func (g *Gate) FireIfNeeded(ctx context.Context, rule model.Rule, ev model.Event, count int) (Outcome, model.Notification, error) {
	now := g.now().UTC()

	if !rule.Immediate() {
		recent, err := g.sink.FindRecentNotification(ctx, rule.ID, now.Add(-g.cooldown))
		if err != nil {
			return "", model.Notification{}, err
		}
		if recent != nil {
			return OutcomeDeduped, model.Notification{}, nil
		}
	}

	n := model.Notification{
		RuleID:    rule.ID,
		OrgID:     rule.OrgID,
		EventID:   ev.ID,
		RuleName:  rule.Name,
		Message:   RenderMessage(rule, count),
		Count:     count,
		CreatedAt: now,
	}
	created, err := g.sink.InsertNotification(ctx, n)
	if err != nil {
		return "", model.Notification{}, err
	}
	if err := g.sink.BumpRuleStats(ctx, rule.ID, now); err != nil {
		return OutcomeCreated, created, err
	}
	return OutcomeCreated, created, nil
}
