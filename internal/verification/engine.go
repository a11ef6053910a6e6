// Package verification turns community votes into alert status changes.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/go-shelter-alerts/internal/events"
	"github.com/mr1hm/go-shelter-alerts/internal/models"
	"github.com/mr1hm/go-shelter-alerts/internal/observability"
	"github.com/mr1hm/go-shelter-alerts/internal/repository"
)

const (
	VerifyThreshold = 3
	RejectThreshold = -3
)

var (
	ErrSelfVote      = errors.New("cannot vote on own alert")
	ErrAlertRejected = errors.New("alert has been rejected")
)

// InitialStatus is the status of a newly created alert. Without a creator the
// alert is a system alert and starts ACTIVE; it is never PENDING.
func InitialStatus(createdBy string, official bool) models.AlertStatus {
	switch {
	case createdBy == "":
		return models.StatusActive
	case official:
		return models.StatusVerified
	default:
		return models.StatusPending
	}
}

// Transition applies the threshold rule. Only PENDING alerts move; VERIFIED,
// REJECTED and ACTIVE keep their status whatever the score.
func Transition(current models.AlertStatus, score int) models.AlertStatus {
	if current != models.StatusPending {
		return current
	}
	switch {
	case score >= VerifyThreshold:
		return models.StatusVerified
	case score <= RejectThreshold:
		return models.StatusRejected
	default:
		return current
	}
}

// CheckEligibility reports whether voterID may vote on a.
func CheckEligibility(a *models.Alert, voterID string) error {
	if a.CreatedBy != "" && a.CreatedBy == voterID {
		return ErrSelfVote
	}
	if a.Status == models.StatusRejected {
		return ErrAlertRejected
	}
	return nil
}

// IsLive is the predicate every reader uses to decide whether an alert counts.
func IsLive(a *models.Alert, now time.Time) bool {
	return a.IsLive(now)
}

type VoteResult struct {
	Vote           models.Vote
	Created        bool
	Score          int
	PreviousStatus models.AlertStatus
	Status         models.AlertStatus
	Alert          models.Alert
}

func (r *VoteResult) Transitioned() bool {
	return r.PreviousStatus != r.Status
}

type Engine struct {
	store     repository.VoteRepository
	publisher events.Publisher
	clock     clockwork.Clock
	metrics   *observability.Metrics
	logger    *slog.Logger
}

func NewEngine(store repository.VoteRepository, publisher events.Publisher, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Engine {
	if publisher == nil {
		publisher = events.Discard
	}
	return &Engine{
		store:     store,
		publisher: publisher,
		clock:     clock,
		metrics:   metrics,
		logger:    logger.With("component", "verification"),
	}
}

// CastVote records voterID's vote and recomputes the alert's score from all
// votes in the same transaction, so concurrent votes on one alert serialize.
func (e *Engine) CastVote(ctx context.Context, alertID, voterID string, dir models.VoteDirection) (*VoteResult, error) {
	if voterID == "" {
		return nil, errors.New("voter id is required")
	}
	now := e.clock.Now()

	var res VoteResult
	err := e.store.WithinVoteTx(ctx, func(tx repository.VoteTx) error {
		a, err := tx.GetAlert(ctx, alertID)
		if err != nil {
			return err
		}
		if err := CheckEligibility(a, voterID); err != nil {
			return err
		}

		vote, created, err := tx.UpsertVote(ctx, voterID, alertID, dir, now)
		if err != nil {
			return err
		}

		up, down, err := tx.CountByDirection(ctx, alertID)
		if err != nil {
			return err
		}
		score := up - down
		prev := a.Status
		status := Transition(prev, score)

		if err := tx.UpdateScoreAndStatus(ctx, alertID, score, status); err != nil {
			return err
		}

		a.Score = score
		a.Status = status
		res = VoteResult{
			Vote:           vote,
			Created:        created,
			Score:          score,
			PreviousStatus: prev,
			Status:         status,
			Alert:          *a,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cast vote on %s: %w", alertID, err)
	}

	e.metrics.Votes.WithLabelValues(string(dir)).Inc()
	if res.Transitioned() {
		e.metrics.StatusTransitions.WithLabelValues(string(res.PreviousStatus), string(res.Status)).Inc()
		e.logger.InfoContext(ctx, "alert status changed by votes",
			"alert_id", alertID, "from", res.PreviousStatus, "to", res.Status, "score", res.Score)
		if res.Status == models.StatusVerified {
			e.publisher.Publish(ctx, events.Event{Kind: events.KindAlertVerified, Alert: res.Alert, At: now})
		}
	}
	return &res, nil
}
