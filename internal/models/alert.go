package models

import (
	"fmt"
	"strings"
	"time"
)

type HazardType string

const (
	HazardAirRaid          HazardType = "AIR_RAID"
	HazardDrone            HazardType = "DRONE"
	HazardMissile          HazardType = "MISSILE"
	HazardFlood            HazardType = "FLOOD"
	HazardFire             HazardType = "FIRE"
	HazardIndustrial       HazardType = "INDUSTRIAL"
	HazardShooting         HazardType = "SHOOTING"
	HazardStorm            HazardType = "STORM"
	HazardTsunami          HazardType = "TSUNAMI"
	HazardChemicalWeapon   HazardType = "CHEMICAL WEAPON"
	HazardBiohazard        HazardType = "BIOHAZARD"
	HazardNuclear          HazardType = "NUCLEAR"
	HazardUnmarkedSoldiers HazardType = "UNMARKED SOLDIERS"
	HazardPandemic         HazardType = "PANDEMIC"
	HazardTerroristAttack  HazardType = "TERRORIST ATTACK"
	HazardMassPoisoning    HazardType = "MASS POISONING"
	HazardCyberAttack      HazardType = "CYBER ATTACK"
	HazardEarthquake       HazardType = "EARTHQUAKE"
)

// DefaultHazardEmoji is used for categories without a dedicated emoji.
const DefaultHazardEmoji = "🚨"

type hazardInfo struct {
	display string
	emoji   string
}

var hazards = map[HazardType]hazardInfo{
	HazardAirRaid:          {"Air Raid", "🚨"},
	HazardDrone:            {"Drone", "🛸"},
	HazardMissile:          {"Missile", "🚀"},
	HazardFlood:            {"Flood", "🌊"},
	HazardFire:             {"Fire", "🔥"},
	HazardIndustrial:       {"Industrial Accident", "⚠️"},
	HazardShooting:         {"Shooting", ""},
	HazardStorm:            {"Storm", ""},
	HazardTsunami:          {"Tsunami", ""},
	HazardChemicalWeapon:   {"Chemical Weapon", ""},
	HazardBiohazard:        {"Biohazard", ""},
	HazardNuclear:          {"Nuclear", ""},
	HazardUnmarkedSoldiers: {"Unmarked Soldiers", ""},
	HazardPandemic:         {"Pandemic", ""},
	HazardTerroristAttack:  {"Terrorist Attack", ""},
	HazardMassPoisoning:    {"Mass Poisoning", ""},
	HazardCyberAttack:      {"Cyber Attack", ""},
	HazardEarthquake:       {"Earthquake", ""},
}

// HazardTypes lists every hazard category in declaration order.
var HazardTypes = []HazardType{
	HazardAirRaid, HazardDrone, HazardMissile, HazardFlood, HazardFire, HazardIndustrial,
	HazardShooting, HazardStorm, HazardTsunami, HazardChemicalWeapon, HazardBiohazard,
	HazardNuclear, HazardUnmarkedSoldiers, HazardPandemic, HazardTerroristAttack,
	HazardMassPoisoning, HazardCyberAttack, HazardEarthquake,
}

// ParseHazardType accepts the stored form ("CHEMICAL WEAPON") and is lenient
// about case and underscores vs spaces.
func ParseHazardType(s string) (HazardType, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	if _, ok := hazards[HazardType(norm)]; ok {
		return HazardType(norm), nil
	}
	for _, alt := range []string{strings.ReplaceAll(norm, "_", " "), strings.ReplaceAll(norm, " ", "_")} {
		if _, ok := hazards[HazardType(alt)]; ok {
			return HazardType(alt), nil
		}
	}
	return "", fmt.Errorf("unknown hazard type: %q", s)
}

func (h HazardType) Valid() bool {
	_, ok := hazards[h]
	return ok
}

func (h HazardType) Display() string {
	if info, ok := hazards[h]; ok {
		return info.display
	}
	return string(h)
}

func (h HazardType) Emoji() string {
	if info, ok := hazards[h]; ok && info.emoji != "" {
		return info.emoji
	}
	return DefaultHazardEmoji
}

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	switch sev {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return sev, nil
	}
	return "", fmt.Errorf("unknown severity: %q", s)
}

// Rank orders severities for display, CRITICAL first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

func (s Severity) Display() string {
	switch s {
	case SeverityLow:
		return "Low"
	case SeverityMedium:
		return "Medium"
	case SeverityHigh:
		return "High"
	case SeverityCritical:
		return "Critical"
	default:
		return string(s)
	}
}

type AlertStatus string

const (
	StatusPending  AlertStatus = "PENDING"
	StatusVerified AlertStatus = "VERIFIED"
	StatusRejected AlertStatus = "REJECTED"
	StatusActive   AlertStatus = "ACTIVE"
)

// Live reports whether the status alone allows notifications and client queries.
func (s AlertStatus) Live() bool {
	return s == StatusVerified || s == StatusActive
}

// Alert is a hazard alert with a circular affected area.
type Alert struct {
	ID         string
	HazardType HazardType
	Severity   Severity
	CenterLat  float64
	CenterLon  float64
	RadiusM    int
	ValidUntil time.Time
	Source     string
	CreatedBy  string // empty for system/official alerts
	Status     AlertStatus
	Score      int
	Official   bool
	CreatedAt  time.Time

	// DispatchedAt is set once the alert has been claimed for fan-out.
	DispatchedAt *time.Time
}

func (a *Alert) Center() Coordinates {
	return Coordinates{Latitude: a.CenterLat, Longitude: a.CenterLon}
}

func (a *Alert) RadiusKm() float64 {
	return float64(a.RadiusM) / 1000
}

// IsLive reports whether the alert is verified or active and still within its validity window.
func (a *Alert) IsLive(now time.Time) bool {
	return a.Status.Live() && now.Before(a.ValidUntil)
}

type Coordinates struct {
	Latitude  float64
	Longitude float64
}
