// Package dispatch delivers fired notifications to their resolved
// recipients over one or more outbound channels. Everything here is
// best-effort: a failed send is logged and counted, never retried and
// never surfaced to the evaluation pass.
package dispatch

import (
	"context"
	"log/slog"

	"vigil/internal/metrics"
	"vigil/internal/model"
)

// Directory resolves who should receive messages for a rule.
type Directory interface {
	// ResolveOwnerContact returns the rule owner's contact, or nil when the
	// owner has no resolvable contact.
	ResolveOwnerContact(ctx context.Context, userID string) (*model.Contact, error)

	// ResolvePrivilegedContacts returns every active, non-removed member of
	// the organization holding an administrative role.
	ResolvePrivilegedContacts(ctx context.Context, orgID string) ([]model.Contact, error)
}

// Channel delivers one message to one recipient.
type Channel interface {
	Name() string
	SendOne(ctx context.Context, to model.Contact, subject, body string) error
}

type Dispatcher struct {
	directory Directory
	channels  []Channel
	logger    *slog.Logger
}

func New(directory Directory, channels []Channel, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{directory: directory, channels: channels, logger: logger}
}

// Send fans the notification out to every resolved recipient on every
// channel. One recipient failing never stops the attempts for the others.
func (d *Dispatcher) Send(ctx context.Context, rule model.Rule, n model.Notification) {
	recipients := d.resolve(ctx, rule)
	if len(recipients) == 0 {
		if d.logger != nil {
			d.logger.Debug("no recipients resolved", "rule_id", rule.ID, "target", rule.Target)
		}
		return
	}
	subject := "Alert: " + rule.Name
	for _, rcpt := range recipients {
		for _, ch := range d.channels {
			if err := ch.SendOne(ctx, rcpt, subject, n.Message); err != nil {
				metrics.DispatchFailures.WithLabelValues(ch.Name()).Inc()
				if d.logger != nil {
					d.logger.Warn("dispatch failed",
						"channel", ch.Name(),
						"recipient", rcpt.UserID,
						"rule_id", rule.ID,
						"err", err,
					)
				}
			}
		}
	}
}

func (d *Dispatcher) resolve(ctx context.Context, rule model.Rule) []model.Contact {
	switch rule.Target {
	case model.TargetPrivileged:
		contacts, err := d.directory.ResolvePrivilegedContacts(ctx, rule.OrgID)
		if err != nil {
			if d.logger != nil {
				d.logger.Warn("recipient resolution failed", "rule_id", rule.ID, "org_id", rule.OrgID, "err", err)
			}
			return nil
		}
		return contacts
	default:
		contact, err := d.directory.ResolveOwnerContact(ctx, rule.OwnerID)
		if err != nil {
			if d.logger != nil {
				d.logger.Warn("owner contact resolution failed", "rule_id", rule.ID, "owner_id", rule.OwnerID, "err", err)
			}
			return nil
		}
		if contact == nil {
			return nil
		}
		return []model.Contact{*contact}
	}
}
