package engine

import (
	"context"
	"errors"
	"strconv"
	"time"

	"vigil/internal/model"
)

// fakeEventStore serves canned history and metadata, and records how the
// counter queries it.
type fakeEventStore struct {
	history    []model.Event
	groups     map[string]string
	members    map[string][]string
	typesBySev map[model.Severity][]string

	countCalls  int
	lastStart   time.Time
	lastEnd     time.Time
	failCount   bool
	failResolve bool
}

var errStoreDown = errors.New("store unavailable")

func (f *fakeEventStore) CountMatching(_ context.Context, orgID string, subjectIDs, eventTypeIDs []string, windowStart, windowEnd time.Time) (int, error) {
	f.countCalls++
	f.lastStart = windowStart
	f.lastEnd = windowEnd
	if f.failCount {
		return 0, errStoreDown
	}
	count := 0
	for _, ev := range f.history {
		if ev.OrgID != orgID {
			continue
		}
		if ev.OccurredAt.Before(windowStart) || ev.OccurredAt.After(windowEnd) {
			continue
		}
		if len(subjectIDs) > 0 && !containsString(subjectIDs, ev.SubjectID) {
			continue
		}
		if len(eventTypeIDs) > 0 && !containsString(eventTypeIDs, ev.EventTypeID) {
			continue
		}
		count++
	}
	return count, nil
}

func (f *fakeEventStore) ResolveSubjectGroup(_ context.Context, subjectID string) (string, error) {
	if f.failResolve {
		return "", errStoreDown
	}
	return f.groups[subjectID], nil
}

func (f *fakeEventStore) ResolveGroupMembers(_ context.Context, groupID string) ([]string, error) {
	return f.members[groupID], nil
}

func (f *fakeEventStore) ResolveEventTypesBySeverity(_ context.Context, _ string, severity model.Severity) ([]string, error) {
	return f.typesBySev[severity], nil
}

// fakeSink persists notifications in memory and counts stats bumps.
type fakeSink struct {
	created  []model.Notification
	bumps    map[string]int
	lastBump map[string]time.Time

	failInsert bool
	failBump   bool
}

func newFakeSink() *fakeSink {
	return &fakeSink{bumps: make(map[string]int), lastBump: make(map[string]time.Time)}
}

func (f *fakeSink) FindRecentNotification(_ context.Context, ruleID string, since time.Time) (*model.Notification, error) {
	for i := len(f.created) - 1; i >= 0; i-- {
		n := f.created[i]
		if n.RuleID == ruleID && !n.CreatedAt.Before(since) {
			return &n, nil
		}
	}
	return nil, nil
}

func (f *fakeSink) InsertNotification(_ context.Context, n model.Notification) (model.Notification, error) {
	if f.failInsert {
		return model.Notification{}, errStoreDown
	}
	if n.ID == "" {
		n.ID = "n" + strconv.Itoa(len(f.created)+1)
	}
	f.created = append(f.created, n)
	return n, nil
}

func (f *fakeSink) BumpRuleStats(_ context.Context, ruleID string, triggeredAt time.Time) error {
	if f.failBump {
		return errStoreDown
	}
	f.bumps[ruleID]++
	f.lastBump[ruleID] = triggeredAt
	return nil
}

// fakeRuleStore returns a fixed rule set.
type fakeRuleStore struct {
	rules []model.Rule
	fail  bool
}

func (f *fakeRuleStore) ListActiveRules(_ context.Context, _ string) ([]model.Rule, error) {
	if f.fail {
		return nil, errStoreDown
	}
	return f.rules, nil
}

// fakeDispatcher records every Send.
type fakeDispatcher struct {
	sent []model.Notification
}

func (f *fakeDispatcher) Send(_ context.Context, _ model.Rule, n model.Notification) {
	f.sent = append(f.sent, n)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

