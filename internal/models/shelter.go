package models

import "time"

type ShelterType string

const (
	ShelterPublic  ShelterType = "PUBLIC"
	ShelterPrivate ShelterType = "PRIVATE"
	ShelterAdhoc   ShelterType = "ADHOC"
)

type Shelter struct {
	ID         int64
	Name       string
	Type       ShelterType
	Address    string
	Latitude   float64
	Longitude  float64
	Capacity   *int
	IsVerified bool
	IsOpen     bool
	Source     string
	CreatedAt  time.Time
}

func (s *Shelter) Coordinates() Coordinates {
	return Coordinates{Latitude: s.Latitude, Longitude: s.Longitude}
}
