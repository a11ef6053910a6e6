package fanout

import (
	"github.com/mr1hm/go-shelter-alerts/internal/models"
)

type Outcome string

const (
	OutcomeSent         Outcome = "sent"
	OutcomeFailed       Outcome = "failed"
	OutcomeNoShelter    Outcome = "no_shelter"
	OutcomeNotAttempted Outcome = "not_attempted"
)

// DeviceResult is the record for one affected device.
type DeviceResult struct {
	DeviceID          string
	DistanceKm        float64 // device to alert center
	Shelter           *models.Shelter
	ShelterDistanceKm float64
	ETASeconds        int
	Outcome           Outcome
	Err               error
}

// Result summarizes one fan-out run. Partial is set when the run stopped
// before every affected device was attempted.
type Result struct {
	AlertID    string
	Candidates int
	Devices    []DeviceResult
	Partial    bool
}

func (r *Result) Affected() int {
	return len(r.Devices)
}

func (r *Result) Count(o Outcome) int {
	n := 0
	for _, d := range r.Devices {
		if d.Outcome == o {
			n++
		}
	}
	return n
}

func (r *Result) Sent() int         { return r.Count(OutcomeSent) }
func (r *Result) Failed() int       { return r.Count(OutcomeFailed) }
func (r *Result) NoShelter() int    { return r.Count(OutcomeNoShelter) }
func (r *Result) NotAttempted() int { return r.Count(OutcomeNotAttempted) }

// ShelterAssigned counts devices that were given a shelter, whether or not the send succeeded.
func (r *Result) ShelterAssigned() int {
	n := 0
	for _, d := range r.Devices {
		if d.Shelter != nil {
			n++
		}
	}
	return n
}
