// Package scheduler detects double bookings between sessions.
package scheduler

import "time"

// Slot is the time range a session occupies for its participants.
type Slot struct {
	ID           string
	Participants []string
	Start        time.Time
	End          time.Time
}

// Overlaps reports whether the half-open ranges [Start, End) of s and other intersect.
func (s Slot) Overlaps(other Slot) bool {
	return s.Start.Before(other.End) && other.Start.Before(s.End)
}

// Conflict names an existing slot that shares a participant with the candidate.
type Conflict struct {
	WithSlotID  string
	Participant string
}

// DetectConflicts returns one conflict per shared participant for every
// existing slot overlapping candidate, in the order of existing. A slot with
// the candidate's ID is the candidate itself and never conflicts.
func DetectConflicts(existing []Slot, candidate Slot) []Conflict {
	var conflicts []Conflict
	for _, slot := range existing {
		if slot.ID == candidate.ID || !slot.Overlaps(candidate) {
			continue
		}
		for _, participant := range candidate.Participants {
			if contains(slot.Participants, participant) {
				conflicts = append(conflicts, Conflict{WithSlotID: slot.ID, Participant: participant})
			}
		}
	}
	return conflicts
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
