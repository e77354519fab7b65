package engine

import (
	"fmt"
	"strings"

	"vigil/internal/model"
)

// RenderMessage builds the human-readable notification text for a fired
// rule. Deterministic: the same rule and count always render the same
// message.
func RenderMessage(rule model.Rule, count int) string {
	scope := scopeClause(rule)
	filter := filterClause(rule)
	var msg string
	if rule.Immediate() {
		msg = fmt.Sprintf("A new event %s %s was recorded.", filter, scope)
	} else {
		msg = fmt.Sprintf("%d event(s) %s %s occurred in the last %d day(s).",
			count, filter, scope, rule.WindowDays)
	}
	return collapseSpaces(msg)
}

func scopeClause(rule model.Rule) string {
	switch rule.Scope {
	case model.ScopeSubject:
		return "for the monitored subject"
	case model.ScopeGroup:
		return "in the monitored group"
	default:
		return "in the organization"
	}
}

func filterClause(rule model.Rule) string {
	switch rule.Filter {
	case model.FilterEventType:
		return "matching the configured type"
	case model.FilterSeverity:
		return "with severity " + string(rule.Severity)
	default:
		return ""
	}
}

// collapseSpaces removes the double space left behind by an empty filter
// clause.
func collapseSpaces(s string) string {
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return s
}
