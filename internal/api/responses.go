package api

import (
	"math"
	"time"

	"github.com/mr1hm/go-shelter-alerts/internal/models"
	"github.com/mr1hm/go-shelter-alerts/internal/shelter"
)

type shelterResponse struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Type       string  `json:"shelter_type"`
	Address    string  `json:"address"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Capacity   *int    `json:"capacity"`
	IsVerified bool    `json:"is_verified"`
	DistanceKm float64 `json:"distance_km"`
	ETASeconds int     `json:"eta_seconds"`
}

func toShelterResponse(r shelter.Result) shelterResponse {
	return shelterResponse{
		ID:         r.Shelter.ID,
		Name:       r.Shelter.Name,
		Type:       string(r.Shelter.Type),
		Address:    r.Shelter.Address,
		Lat:        r.Shelter.Latitude,
		Lon:        r.Shelter.Longitude,
		Capacity:   r.Shelter.Capacity,
		IsVerified: r.Shelter.IsVerified,
		DistanceKm: math.Round(r.DistanceKm*1000) / 1000,
		ETASeconds: r.ETASeconds,
	}
}

type alertResponse struct {
	ID         string    `json:"id"`
	HazardType string    `json:"hazard_type"`
	Severity   string    `json:"severity"`
	CenterLat  float64   `json:"center_lat"`
	CenterLon  float64   `json:"center_lon"`
	RadiusM    int       `json:"radius_m"`
	DistanceKm *float64  `json:"distance_km,omitempty"`
	ValidUntil time.Time `json:"valid_until"`
	Source     string    `json:"source"`
	Status     string    `json:"status"`
	Score      int       `json:"score"`
	Official   bool      `json:"official"`
	CreatedAt  time.Time `json:"created_at"`
	Message    string    `json:"message,omitempty"`
}

func toAlertResponse(a *models.Alert) alertResponse {
	return alertResponse{
		ID:         a.ID,
		HazardType: string(a.HazardType),
		Severity:   string(a.Severity),
		CenterLat:  a.CenterLat,
		CenterLon:  a.CenterLon,
		RadiusM:    a.RadiusM,
		ValidUntil: a.ValidUntil.UTC(),
		Source:     a.Source,
		Status:     string(a.Status),
		Score:      a.Score,
		Official:   a.Official,
		CreatedAt:  a.CreatedAt.UTC(),
	}
}
