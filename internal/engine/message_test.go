package engine

import (
	"strings"
	"testing"

	"vigil/internal/model"
)

func TestRenderThresholdSeverityOrgMessage(t *testing.T) {
	rule := model.Rule{
		Scope: model.ScopeOrg, Filter: model.FilterSeverity, Severity: model.SeverityHigh,
		Mode: model.ModeThreshold, Threshold: 3, WindowDays: 7,
	}
	got := RenderMessage(rule, 3)
	want := "3 event(s) with severity high in the organization occurred in the last 7 day(s)."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRenderImmediateSubjectMessageCollapsesEmptyFilter(t *testing.T) {
	rule := model.Rule{
		Scope: model.ScopeSubject, SubjectID: "subj1", Filter: model.FilterAny,
		Mode: model.ModeImmediate, Threshold: 1,
	}
	got := RenderMessage(rule, 1)
	want := "A new event for the monitored subject was recorded."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if strings.Contains(got, "  ") {
		t.Fatalf("message contains a double space: %q", got)
	}
}

func TestRenderThresholdGroupTypeMessage(t *testing.T) {
	rule := model.Rule{
		Scope: model.ScopeGroup, GroupID: "grp1", Filter: model.FilterEventType, EventTypeID: "type1",
		Mode: model.ModeThreshold, Threshold: 2, WindowDays: 30,
	}
	got := RenderMessage(rule, 2)
	want := "2 event(s) matching the configured type in the monitored group occurred in the last 30 day(s)."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	rule := model.Rule{
		Scope: model.ScopeOrg, Filter: model.FilterSeverity, Severity: model.SeverityLow,
		Mode: model.ModeThreshold, Threshold: 5, WindowDays: 14,
	}
	first := RenderMessage(rule, 5)
	for i := 0; i < 10; i++ {
		if RenderMessage(rule, 5) != first {
			t.Fatalf("message rendering is not deterministic")
		}
	}
}
