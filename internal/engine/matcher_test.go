package engine

import (
	"testing"

	"vigil/internal/model"
)

func subjectRule(subjectID string, filter model.RuleFilter) model.Rule {
	return model.Rule{
		ID:        "r1",
		OrgID:     "org1",
		Scope:     model.ScopeSubject,
		SubjectID: subjectID,
		Filter:    filter,
		Mode:      model.ModeImmediate,
		Threshold: 1,
	}
}

func testEvent() model.Event {
	return model.Event{
		ID:          "e1",
		OrgID:       "org1",
		SubjectID:   "subj1",
		EventTypeID: "type1",
		Severity:    model.SeverityHigh,
	}
}

func TestMatchesSubjectScope(t *testing.T) {
	ev := testEvent()
	for _, filter := range []model.RuleFilter{model.FilterAny, model.FilterEventType, model.FilterSeverity} {
		rule := subjectRule("subj1", filter)
		rule.EventTypeID = "type1"
		rule.Severity = model.SeverityHigh
		if !Matches(rule, ev, "") {
			t.Fatalf("expected match for subject scope with filter %s", filter)
		}
		other := subjectRule("subj2", filter)
		other.EventTypeID = "type1"
		other.Severity = model.SeverityHigh
		if Matches(other, ev, "") {
			t.Fatalf("unexpected match for different subject with filter %s", filter)
		}
	}
}

func TestMatchesSeverityFilter(t *testing.T) {
	rule := model.Rule{Scope: model.ScopeOrg, Filter: model.FilterSeverity, Severity: model.SeverityHigh}
	ev := testEvent()
	if !Matches(rule, ev, "") {
		t.Fatalf("expected match for severity high")
	}
	ev.Severity = model.SeverityLow
	if Matches(rule, ev, "") {
		t.Fatalf("unexpected match for severity low")
	}
}

func TestMatchesEventTypeFilter(t *testing.T) {
	rule := model.Rule{Scope: model.ScopeOrg, Filter: model.FilterEventType, EventTypeID: "type1"}
	if !Matches(rule, testEvent(), "") {
		t.Fatalf("expected match for configured type")
	}
	rule.EventTypeID = "type2"
	if Matches(rule, testEvent(), "") {
		t.Fatalf("unexpected match for other type")
	}
}

func TestMatchesGroupScope(t *testing.T) {
	rule := model.Rule{Scope: model.ScopeGroup, GroupID: "grp1", Filter: model.FilterAny}
	if !Matches(rule, testEvent(), "grp1") {
		t.Fatalf("expected match when subject currently in the rule's group")
	}
	if Matches(rule, testEvent(), "grp2") {
		t.Fatalf("unexpected match for a different current group")
	}
}

func TestMatchesGroupScopeFailsClosedWithoutGroup(t *testing.T) {
	rule := model.Rule{Scope: model.ScopeGroup, GroupID: "grp1", Filter: model.FilterAny}
	if Matches(rule, testEvent(), "") {
		t.Fatalf("group rule must not match a subject with no resolvable group")
	}
}

func TestMatchesOrgScopeAlwaysPasses(t *testing.T) {
	rule := model.Rule{Scope: model.ScopeOrg, Filter: model.FilterAny}
	if !Matches(rule, testEvent(), "") {
		t.Fatalf("org-scoped any-filter rule must match every event")
	}
}
