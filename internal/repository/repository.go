package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mr1hm/go-shelter-alerts/internal/geo"
	"github.com/mr1hm/go-shelter-alerts/internal/models"
)

var ErrNotFound = errors.New("not found")

type AlertFilter struct {
	Limit  int
	LiveAt *time.Time // only VERIFIED/ACTIVE alerts still valid at this instant
}

type AlertRepository interface {
	CreateAlert(ctx context.Context, a *models.Alert) error
	GetAlert(ctx context.Context, id string) (*models.Alert, error)
	ListAlerts(ctx context.Context, opts AlertFilter) ([]models.Alert, error)
	CountLiveAlerts(ctx context.Context, now time.Time) (int, error)
	// MarkDispatched claims the alert for fan-out. It reports false when the
	// alert was already claimed.
	MarkDispatched(ctx context.Context, id string, at time.Time) (bool, error)
}

// VoteTx is the unit in which a vote write, the score recount and the status
// write happen. Implementations must serialize concurrent VoteTx on one alert.
type VoteTx interface {
	GetAlert(ctx context.Context, id string) (*models.Alert, error)
	UpsertVote(ctx context.Context, voterID, alertID string, dir models.VoteDirection, at time.Time) (v models.Vote, created bool, err error)
	CountByDirection(ctx context.Context, alertID string) (up, down int, err error)
	UpdateScoreAndStatus(ctx context.Context, alertID string, score int, status models.AlertStatus) error
}

type VoteRepository interface {
	// WithinVoteTx runs fn in one transaction, committing when fn returns nil.
	WithinVoteTx(ctx context.Context, fn func(tx VoteTx) error) error
}

type DeviceRepository interface {
	UpsertDevice(ctx context.Context, d *models.Device) error
	FindWithPushTokenAndPosition(ctx context.Context) ([]models.Device, error)
}

type ShelterRepository interface {
	AddShelter(ctx context.Context, s *models.Shelter) error
	FindOpenInBoundingBox(ctx context.Context, box geo.Bounds) ([]models.Shelter, error)
	CountShelters(ctx context.Context) (int, error)
	ImportShelters(ctx context.Context, shelters []models.Shelter) (created, updated int, err error)
}
