// Package events carries alert lifecycle events from the write path to
// fan-out and external sinks.
package events

import (
	"context"
	"time"

	"github.com/mr1hm/go-shelter-alerts/internal/models"
)

type Kind string

const (
	KindAlertCreated  Kind = "alert.created"
	KindAlertVerified Kind = "alert.verified" // PENDING -> VERIFIED by votes
)

type Event struct {
	Kind  Kind
	Alert models.Alert
	At    time.Time
}

type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Discard drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, Event) {}
