// Package engine decides, after each newly recorded event, whether any
// configured monitoring rule fires, creates the resulting notification and
// hands it to the dispatcher. Rule matching, windowed counting, cooldown
// deduplication and dispatch fan-out all live here; storage and delivery
// are collaborator interfaces.
package engine

import (
	"context"
	"log/slog"
	"time"

	"vigil/internal/metrics"
	"vigil/internal/model"
	"vigil/internal/notifications"
)

// Engine is the per-event evaluation entry point. One Evaluate call runs
// every active rule of the event's organization through
// match -> count -> threshold -> gate -> dispatch. Failures in one rule's
// pipeline are logged and never abort the remaining rules.
type Engine struct {
	rules      RuleStore
	events     EventStore
	counter    *WindowCounter
	gate       *Gate
	dispatcher Dispatcher
	recent     *notifications.Store
	logger     *slog.Logger
	timeout    time.Duration
}

type Options struct {
	// Cooldown overrides the 60-minute default between notifications from
	// the same threshold-mode rule.
	Cooldown time.Duration
	// RuleTimeout bounds each rule's pipeline. Zero means no bound beyond
	// the caller's context.
	RuleTimeout time.Duration
	// Recent, when set, receives every created notification for the API's
	// hot view.
	Recent *notifications.Store
}

func New(rules RuleStore, events EventStore, sink NotificationSink, dispatcher Dispatcher, logger *slog.Logger, opts Options) *Engine {
	return &Engine{
		rules:      rules,
		events:     events,
		counter:    NewWindowCounter(events),
		gate:       NewGate(sink, opts.Cooldown),
		dispatcher: dispatcher,
		recent:     opts.Recent,
		logger:     logger,
		timeout:    opts.RuleTimeout,
	}
}

// Evaluate runs one evaluation pass for the event. Fire-and-forget for the
// caller: all failures stay internal and surface only as logs and metrics.
func (e *Engine) Evaluate(ctx context.Context, ev model.Event) {
	metrics.EventsEvaluated.Inc()

	rules, err := e.rules.ListActiveRules(ctx, ev.OrgID)
	if err != nil {
		metrics.RuleErrors.WithLabelValues("load").Inc()
		e.logWarn("rule load failed", "org_id", ev.OrgID, "err", err)
		return
	}
	if len(rules) == 0 {
		return
	}

	// Resolved once per pass. Group-scoped rules use the subject's group
	// at evaluation time, not at event time.
	groupID, err := e.events.ResolveSubjectGroup(ctx, ev.SubjectID)
	if err != nil {
		// Group rules fail closed without a resolvable group; the rest of
		// the pass still runs.
		groupID = ""
		e.logWarn("subject group lookup failed", "subject_id", ev.SubjectID, "err", err)
	}

	for _, rule := range rules {
		e.evaluateRule(ctx, rule, ev, groupID)
	}
}

func (e *Engine) evaluateRule(ctx context.Context, rule model.Rule, ev model.Event, groupID string) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	if err := rule.Validate(); err != nil {
		e.logWarn("skipping rule with inconsistent mode/window", "rule_id", rule.ID, "mode", rule.Mode, "window_days", rule.WindowDays, "threshold", rule.Threshold)
		return
	}

	if !Matches(rule, ev, groupID) {
		return
	}
	metrics.RulesMatched.Inc()

	count := 1
	if !rule.Immediate() {
		var err error
		count, err = e.counter.Count(ctx, rule, ev.OrgID)
		if err != nil {
			metrics.RuleErrors.WithLabelValues("count").Inc()
			e.logWarn("window count failed", "rule_id", rule.ID, "err", err)
			return
		}
		if count < rule.Threshold {
			return
		}
	}

	outcome, n, err := e.gate.FireIfNeeded(ctx, rule, ev, count)
	if err != nil {
		if outcome != OutcomeCreated {
			metrics.RuleErrors.WithLabelValues("gate").Inc()
			e.logWarn("notification write failed", "rule_id", rule.ID, "err", err)
			return
		}
		// Insert succeeded, only the stats bump failed. The notification
		// is authoritative, so delivery still happens.
		e.logWarn("rule stats bump failed", "rule_id", rule.ID, "err", err)
	}
	if outcome == OutcomeDeduped {
		metrics.NotificationsDeduped.Inc()
		return
	}

	metrics.NotificationsCreated.Inc()
	if e.recent != nil {
		e.recent.Add(n)
	}
	if e.logger != nil {
		e.logger.Info("notification created",
			"rule_id", rule.ID,
			"rule", rule.Name,
			"event_id", ev.ID,
			"count", count,
		)
	}
	if e.dispatcher != nil {
		e.dispatcher.Send(ctx, rule, n)
	}
}

func (e *Engine) logWarn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}
