package engine

import (
	"context"
	"time"

	"vigil/internal/model"
)

// WindowCounter counts qualifying events inside a rule's trailing window,
// applying the same scope and filter semantics as Matches.
type WindowCounter struct {
	events EventStore
	now    func() time.Time
}

func NewWindowCounter(events EventStore) *WindowCounter {
	return &WindowCounter{events: events, now: time.Now}
}

// Count returns how many events qualify for the rule inside its window.
// Rules without a window (immediate mode) always count 1 and never touch
// the event store.
func (c *WindowCounter) Count(ctx context.Context, rule model.Rule, orgID string) (int, error) {
	if rule.WindowDays <= 0 {
		return 1, nil
	}

	var subjectIDs []string
	switch rule.Scope {
	case model.ScopeSubject:
		subjectIDs = []string{rule.SubjectID}
	case model.ScopeGroup:
		members, err := c.events.ResolveGroupMembers(ctx, rule.GroupID)
		if err != nil {
			return 0, err
		}
		if len(members) == 0 {
			return 0, nil
		}
		subjectIDs = members
	}

	var eventTypeIDs []string
	switch rule.Filter {
	case model.FilterEventType:
		eventTypeIDs = []string{rule.EventTypeID}
	case model.FilterSeverity:
		ids, err := c.events.ResolveEventTypesBySeverity(ctx, orgID, rule.Severity)
		if err != nil {
			return 0, err
		}
		if len(ids) == 0 {
			return 0, nil
		}
		eventTypeIDs = ids
	}

	windowEnd := c.now().UTC()
	windowStart := windowEnd.AddDate(0, 0, -rule.WindowDays)
	return c.events.CountMatching(ctx, orgID, subjectIDs, eventTypeIDs, windowStart, windowEnd)
}
