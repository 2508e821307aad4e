package domain

import "time"

type Phase string

const (
	PhaseOpening   Phase = "opening"
	PhaseRebuttal  Phase = "rebuttal"
	PhaseClosing   Phase = "closing"
	PhaseCompleted Phase = "completed"
)

// DebateState is the host-authoritative turn state of a room.
// It is always broadcast as a full snapshot, never as a delta, so a
// client that misses one update converges on the next.
type DebateState struct {
	Phase            Phase     `json:"phase"`
	RoundNumber      int       `json:"round_number"`
	SpeakingOrder    []UserID  `json:"speaking_order"`
	CurrentSpeakerID UserID    `json:"current_speaker_id,omitempty"`
	TurnStartTime    time.Time `json:"turn_start_time"`
}

// Next returns the linear successor; completed is terminal.
func (p Phase) Next() Phase {
	switch p {
	case PhaseOpening:
		return PhaseRebuttal
	case PhaseRebuttal:
		return PhaseClosing
	case PhaseClosing:
		return PhaseCompleted
	default:
		return PhaseCompleted
	}
}
