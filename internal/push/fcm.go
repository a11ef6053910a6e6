package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// FCMGateway talks to the Firebase Cloud Messaging legacy HTTP endpoint.
type FCMGateway struct {
	client    *http.Client
	url       string
	serverKey string
	logger    *slog.Logger
}

func NewFCMGateway(url, serverKey string, timeout time.Duration, logger *slog.Logger) *FCMGateway {
	return &FCMGateway{
		client:    &http.Client{Timeout: timeout},
		url:       url,
		serverKey: serverKey,
		logger:    logger.With("component", "push", "provider", "fcm"),
	}
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Sound string `json:"sound"`
	Badge int    `json:"badge"`
}

type fcmRequest struct {
	To               string            `json:"to"`
	Notification     fcmNotification   `json:"notification"`
	Priority         string            `json:"priority"`
	ContentAvailable bool              `json:"content_available"`
	Data             map[string]string `json:"data,omitempty"`
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		Error string `json:"error"`
	} `json:"results"`
}

func (g *FCMGateway) Send(ctx context.Context, msg Message) error {
	if msg.Token == "" {
		return errors.New("empty push token")
	}

	payload, err := json.Marshal(fcmRequest{
		To:               msg.Token,
		Notification:     fcmNotification{Title: msg.Title, Body: msg.Body, Sound: "default", Badge: 1},
		Priority:         "high",
		ContentAvailable: true,
		Data:             msg.Data,
	})
	if err != nil {
		return fmt.Errorf("encode fcm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build fcm request: %w", err)
	}
	req.Header.Set("Authorization", "key="+g.serverKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		// A timed-out send is a per-message failure; anything else means
		// the endpoint could not be reached at all.
		if ctx.Err() != nil || isTimeout(err) {
			return fmt.Errorf("fcm request: %w", err)
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read fcm response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fcm returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var out fcmResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("decode fcm response: %w", err)
	}
	if out.Success == 0 {
		reason := "unknown"
		if len(out.Results) > 0 && out.Results[0].Error != "" {
			reason = out.Results[0].Error
		}
		return fmt.Errorf("fcm rejected message: %s", reason)
	}

	g.logger.DebugContext(ctx, "fcm push sent", "token", maskToken(msg.Token))
	return nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
