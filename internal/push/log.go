package push

import (
	"context"
	"errors"
	"log/slog"
)

// LogGateway writes messages to the log and always succeeds.
type LogGateway struct {
	logger *slog.Logger
}

func NewLogGateway(logger *slog.Logger) *LogGateway {
	return &LogGateway{logger: logger.With("component", "push", "provider", "mock")}
}

func (g *LogGateway) Send(ctx context.Context, msg Message) error {
	if msg.Token == "" {
		return errors.New("empty push token")
	}
	g.logger.InfoContext(ctx, "mock push",
		"token", maskToken(msg.Token),
		"title", msg.Title,
		"body", msg.Body,
		"data", msg.Data,
	)
	return nil
}
