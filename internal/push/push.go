// Package push delivers notifications to devices.
package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mr1hm/go-shelter-alerts/internal/config"
)

var (
	// ErrNotConfigured is returned by New when the selected provider lacks credentials.
	ErrNotConfigured = errors.New("push transport not configured")
	// ErrUnavailable marks a failure of the transport itself rather than of one message.
	ErrUnavailable = errors.New("push transport unavailable")
)

type Message struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

// Gateway sends a single message. A nil error means the provider accepted it.
type Gateway interface {
	Send(ctx context.Context, msg Message) error
}

func New(cfg config.PushConfig, logger *slog.Logger) (Gateway, error) {
	switch cfg.Provider {
	case "", "mock":
		return NewLogGateway(logger), nil
	case "fcm":
		if cfg.FCMServerKey == "" {
			return nil, fmt.Errorf("fcm: %w: FCM_SERVER_KEY is empty", ErrNotConfigured)
		}
		return NewFCMGateway(cfg.FCMURL, cfg.FCMServerKey, cfg.Timeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown push provider %q: %w", cfg.Provider, ErrNotConfigured)
	}
}

func maskToken(token string) string {
	if len(token) <= 20 {
		return token
	}
	return token[:20] + "..."
}
