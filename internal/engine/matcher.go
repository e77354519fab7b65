package engine

import "vigil/internal/model"

// Matches reports whether the rule applies to the event. groupID is the
// group the event's subject belongs to at evaluation time, which may
// differ from its group when the event was recorded. A subject with no
// resolvable group never matches a group-scoped rule.
func Matches(rule model.Rule, ev model.Event, groupID string) bool {
	switch rule.Scope {
	case model.ScopeSubject:
		if rule.SubjectID != ev.SubjectID {
			return false
		}
	case model.ScopeGroup:
		if groupID == "" || rule.GroupID != groupID {
			return false
		}
	case model.ScopeOrg:
	default:
		return false
	}

	switch rule.Filter {
	case model.FilterEventType:
		return rule.EventTypeID == ev.EventTypeID
	case model.FilterSeverity:
		return rule.Severity == ev.Severity
	case model.FilterAny:
		return true
	}
	return false
}
