package domain

// PresenceStatus is the transient per-participant status table entry.
// Each field is updated independently; a speaking update must never
// clobber mute state and vice versa.
type PresenceStatus struct {
	IsMuted     bool    `json:"isMuted"`
	IsStreaming bool    `json:"isStreaming"`
	IsRaised    bool    `json:"isRaised"`
	IsSpeaking  bool    `json:"isSpeaking"`
	LastVolume  float64 `json:"lastVolume,omitempty"`
}
