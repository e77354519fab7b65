package engine

import (
	"context"
	"testing"
	"time"

	"vigil/internal/model"
)

type testHarness struct {
	rules      *fakeRuleStore
	events     *fakeEventStore
	sink       *fakeSink
	dispatcher *fakeDispatcher
	engine     *Engine
	now        time.Time
}

func newHarness(rules ...model.Rule) *testHarness {
	h := &testHarness{
		rules:      &fakeRuleStore{rules: rules},
		events:     &fakeEventStore{groups: map[string]string{}, members: map[string][]string{}, typesBySev: map[model.Severity][]string{}},
		sink:       newFakeSink(),
		dispatcher: &fakeDispatcher{},
		now:        fixedNow(),
	}
	h.engine = New(h.rules, h.events, h.sink, h.dispatcher, nil, Options{})
	h.engine.counter.now = func() time.Time { return h.now }
	h.engine.gate.now = func() time.Time { return h.now }
	return h
}

// record appends the event to history and evaluates it, the way the
// service records first and evaluates second.
func (h *testHarness) record(ev model.Event) {
	h.events.history = append(h.events.history, ev)
	h.engine.Evaluate(context.Background(), ev)
}

func TestThresholdRuleFiresOnThirdQualifyingEvent(t *testing.T) {
	rule := model.Rule{
		ID: "r1", OrgID: "org1", Name: "high severity burst",
		Scope: model.ScopeOrg, Filter: model.FilterSeverity, Severity: model.SeverityHigh,
		Mode: model.ModeThreshold, Threshold: 3, WindowDays: 7,
		Target: model.TargetPrivileged, Active: true,
	}
	h := newHarness(rule)
	h.events.typesBySev[model.SeverityHigh] = []string{"typeH"}

	base := h.now
	for i := 0; i < 3; i++ {
		h.now = base.Add(time.Duration(i) * 24 * time.Hour)
		h.record(model.Event{
			ID: "e" + string(rune('1'+i)), OrgID: "org1", SubjectID: "subj1",
			EventTypeID: "typeH", Severity: model.SeverityHigh,
			OccurredAt: h.now,
		})
	}

	if len(h.sink.created) != 1 {
		t.Fatalf("expected exactly one notification after the third event, got %d", len(h.sink.created))
	}
	n := h.sink.created[0]
	if n.Count != 3 {
		t.Fatalf("expected count 3, got %d", n.Count)
	}
	want := "3 event(s) with severity high in the organization occurred in the last 7 day(s)."
	if n.Message != want {
		t.Fatalf("got message %q, want %q", n.Message, want)
	}
	if len(h.dispatcher.sent) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(h.dispatcher.sent))
	}
}

func TestImmediateSubjectRuleFiresOnEveryEvent(t *testing.T) {
	rule := model.Rule{
		ID: "r1", OrgID: "org1", Name: "watch subject X",
		Scope: model.ScopeSubject, SubjectID: "subjX", Filter: model.FilterAny,
		Mode: model.ModeImmediate, Threshold: 1,
		Target: model.TargetOwner, Active: true,
	}
	h := newHarness(rule)

	h.record(model.Event{ID: "e1", OrgID: "org1", SubjectID: "subjX", EventTypeID: "t1", Severity: model.SeverityLow, OccurredAt: h.now})
	if len(h.sink.created) != 1 {
		t.Fatalf("expected a notification for subject X, got %d", len(h.sink.created))
	}
	n := h.sink.created[0]
	if n.Count != 1 {
		t.Fatalf("expected count 1, got %d", n.Count)
	}
	want := "A new event for the monitored subject was recorded."
	if n.Message != want {
		t.Fatalf("got message %q, want %q", n.Message, want)
	}
	if h.events.countCalls != 0 {
		t.Fatalf("immediate rule must not query history")
	}

	h.record(model.Event{ID: "e2", OrgID: "org1", SubjectID: "subjY", EventTypeID: "t1", Severity: model.SeverityLow, OccurredAt: h.now})
	if len(h.sink.created) != 1 {
		t.Fatalf("event for another subject must not fire the rule")
	}
}

func TestGroupRuleUsesMembershipAtEvaluationTime(t *testing.T) {
	rule := model.Rule{
		ID: "r1", OrgID: "org1", Name: "group incidents",
		Scope: model.ScopeGroup, GroupID: "grpG", Filter: model.FilterAny,
		Mode: model.ModeThreshold, Threshold: 2, WindowDays: 30,
		Target: model.TargetOwner, Active: true,
	}
	h := newHarness(rule)
	h.events.groups["subj1"] = "grpG"
	h.events.members["grpG"] = []string{"subj1"}

	h.record(model.Event{ID: "e1", OrgID: "org1", SubjectID: "subj1", EventTypeID: "t1", OccurredAt: h.now})
	if len(h.sink.created) != 0 {
		t.Fatalf("threshold 2 must not fire on the first event")
	}

	// Subject leaves the group before the second event is evaluated.
	h.events.groups["subj1"] = ""
	h.events.members["grpG"] = nil
	h.record(model.Event{ID: "e2", OrgID: "org1", SubjectID: "subj1", EventTypeID: "t1", OccurredAt: h.now})

	if len(h.sink.created) != 0 {
		t.Fatalf("rule must not fire once the subject left the group")
	}
}

func TestEngineCooldownSuppressesSecondFire(t *testing.T) {
	rule := model.Rule{
		ID: "r1", OrgID: "org1", Name: "burst",
		Scope: model.ScopeOrg, Filter: model.FilterAny,
		Mode: model.ModeThreshold, Threshold: 1, WindowDays: 7,
		Target: model.TargetOwner, Active: true,
	}
	h := newHarness(rule)

	h.record(model.Event{ID: "e1", OrgID: "org1", SubjectID: "subj1", EventTypeID: "t1", OccurredAt: h.now})
	h.now = h.now.Add(10 * time.Minute)
	h.record(model.Event{ID: "e2", OrgID: "org1", SubjectID: "subj1", EventTypeID: "t1", OccurredAt: h.now})

	if len(h.sink.created) != 1 {
		t.Fatalf("expected the second fire to be deduped, got %d notifications", len(h.sink.created))
	}
	if len(h.dispatcher.sent) != 1 {
		t.Fatalf("deduped fire must not dispatch")
	}
	if h.sink.bumps[rule.ID] != 1 {
		t.Fatalf("expected one stats bump per non-deduped fire, got %d", h.sink.bumps[rule.ID])
	}
}

func TestEngineSkipsInvalidRuleAndKeepsGoing(t *testing.T) {
	invalid := model.Rule{
		ID: "bad", OrgID: "org1", Name: "broken",
		Scope: model.ScopeOrg, Filter: model.FilterAny,
		Mode: model.ModeImmediate, Threshold: 1, WindowDays: 5, // violates the invariant
		Target: model.TargetOwner, Active: true,
	}
	valid := model.Rule{
		ID: "ok", OrgID: "org1", Name: "working",
		Scope: model.ScopeOrg, Filter: model.FilterAny,
		Mode: model.ModeImmediate, Threshold: 1,
		Target: model.TargetOwner, Active: true,
	}
	h := newHarness(invalid, valid)

	h.record(model.Event{ID: "e1", OrgID: "org1", SubjectID: "subj1", EventTypeID: "t1", OccurredAt: h.now})

	if len(h.sink.created) != 1 {
		t.Fatalf("expected only the valid rule to fire, got %d notifications", len(h.sink.created))
	}
	if h.sink.created[0].RuleID != "ok" {
		t.Fatalf("wrong rule fired: %s", h.sink.created[0].RuleID)
	}
}

func TestEngineOneRuleFailureDoesNotAbortThePass(t *testing.T) {
	counting := model.Rule{
		ID: "r1", OrgID: "org1", Name: "counting",
		Scope: model.ScopeOrg, Filter: model.FilterAny,
		Mode: model.ModeThreshold, Threshold: 1, WindowDays: 7,
		Target: model.TargetOwner, Active: true,
	}
	immediate := model.Rule{
		ID: "r2", OrgID: "org1", Name: "immediate",
		Scope: model.ScopeOrg, Filter: model.FilterAny,
		Mode: model.ModeImmediate, Threshold: 1,
		Target: model.TargetOwner, Active: true,
	}
	h := newHarness(counting, immediate)
	h.events.failCount = true // the counting rule's history query fails

	h.record(model.Event{ID: "e1", OrgID: "org1", SubjectID: "subj1", EventTypeID: "t1", OccurredAt: h.now})

	if len(h.sink.created) != 1 {
		t.Fatalf("the immediate rule must still fire, got %d notifications", len(h.sink.created))
	}
	if h.sink.created[0].RuleID != "r2" {
		t.Fatalf("wrong rule fired: %s", h.sink.created[0].RuleID)
	}
}

func TestEngineRuleLoadFailureIsSwallowed(t *testing.T) {
	h := newHarness()
	h.rules.fail = true
	// Must not panic or dispatch anything.
	h.engine.Evaluate(context.Background(), model.Event{ID: "e1", OrgID: "org1", SubjectID: "subj1"})
	if len(h.dispatcher.sent) != 0 {
		t.Fatalf("nothing should dispatch when rules cannot be loaded")
	}
}
