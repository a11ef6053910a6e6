package models

import "time"

// Device is owned by the registration flow; fan-out only reads it.
type Device struct {
	DeviceID   string
	PushToken  string
	LastLat    *float64
	LastLon    *float64
	LastSeenAt *time.Time
}

// Position returns the last known position, if any.
func (d *Device) Position() (Coordinates, bool) {
	if d.LastLat == nil || d.LastLon == nil {
		return Coordinates{}, false
	}
	return Coordinates{Latitude: *d.LastLat, Longitude: *d.LastLon}, true
}

// Reachable reports whether the device has both a push token and a position.
func (d *Device) Reachable() bool {
	_, ok := d.Position()
	return ok && d.PushToken != ""
}
