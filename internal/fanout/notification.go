package fanout

import (
	"fmt"
	"strconv"
	"time"

	"github.com/mr1hm/go-shelter-alerts/internal/models"
	"github.com/mr1hm/go-shelter-alerts/internal/push"
	"github.com/mr1hm/go-shelter-alerts/internal/shelter"
)

const (
	notificationType = "emergency_alert"
	actionNavigate   = "navigate_to_shelter"
)

// Title renders "{emoji} {severity} {hazard}", e.g. "🚀 Critical Missile".
func Title(a *models.Alert) string {
	return fmt.Sprintf("%s %s %s", a.HazardType.Emoji(), a.Severity.Display(), a.HazardType.Display())
}

func Body(distanceKm float64, etaSeconds int) string {
	return fmt.Sprintf("Nearest shelter %s away, ETA %s", FormatDistance(distanceKm), FormatETA(etaSeconds))
}

// FormatDistance prints whole meters below 1 km and one-decimal kilometers otherwise.
func FormatDistance(km float64) string {
	if km < 1 {
		return fmt.Sprintf("%dm", int(km*1000))
	}
	return fmt.Sprintf("%.1fkm", km)
}

func FormatETA(seconds int) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dmin", seconds/60)
	default:
		return fmt.Sprintf("%dh %dmin", seconds/3600, (seconds%3600)/60)
	}
}

// Data is the structured payload clients use to open navigation to the shelter.
func Data(a *models.Alert, nearest shelter.Result) map[string]string {
	return map[string]string{
		"type":                 notificationType,
		"alert_id":             a.ID,
		"hazard_type":          string(a.HazardType),
		"severity":             string(a.Severity),
		"center_lat":           strconv.FormatFloat(a.CenterLat, 'f', -1, 64),
		"center_lon":           strconv.FormatFloat(a.CenterLon, 'f', -1, 64),
		"radius_m":             strconv.Itoa(a.RadiusM),
		"valid_until":          a.ValidUntil.UTC().Format(time.RFC3339),
		"nearest_shelter_id":   strconv.FormatInt(nearest.Shelter.ID, 10),
		"nearest_shelter_name": nearest.Shelter.Name,
		"shelter_distance_km":  strconv.FormatFloat(nearest.DistanceKm, 'f', 3, 64),
		"shelter_eta_seconds":  strconv.Itoa(nearest.ETASeconds),
		"action":               actionNavigate,
	}
}

func BuildMessage(token string, a *models.Alert, nearest shelter.Result) push.Message {
	return push.Message{
		Token: token,
		Title: Title(a),
		Body:  Body(nearest.DistanceKm, nearest.ETASeconds),
		Data:  Data(a, nearest),
	}
}
