package models

import (
	"fmt"
	"strings"
	"time"
)

type VoteDirection string

const (
	VoteUp   VoteDirection = "UPVOTE"
	VoteDown VoteDirection = "DOWNVOTE"
)

func ParseVoteDirection(s string) (VoteDirection, error) {
	d := VoteDirection(strings.ToUpper(strings.TrimSpace(s)))
	switch d {
	case VoteUp, VoteDown:
		return d, nil
	}
	return "", fmt.Errorf("unknown vote direction: %q", s)
}

// Vote is unique per (VoterID, AlertID); a repeat vote flips Direction in place.
type Vote struct {
	ID        int64
	VoterID   string
	AlertID   string
	Direction VoteDirection
	CreatedAt time.Time
	UpdatedAt time.Time
}
