package dispatch

import (
	"context"
	"log/slog"

	"vigil/internal/model"
)

// LogChannel writes each message to the service log. Useful on its own in
// development and as a delivery audit trail alongside real channels.
type LogChannel struct {
	logger *slog.Logger
}

func NewLogChannel(logger *slog.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) SendOne(_ context.Context, to model.Contact, subject, body string) error {
	if c.logger != nil {
		c.logger.Info("notification delivered",
			"recipient", to.UserID,
			"address", to.Address,
			"subject", subject,
			"body", body,
		)
	}
	return nil
}
