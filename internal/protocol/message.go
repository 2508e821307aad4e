// Package protocol defines the closed set of message kinds exchanged
// over the signaling channel. Payloads are decoded into these structs at
// the transport boundary; unrecognized kinds are ignored there, never
// trusted deeper in.
package protocol

import (
	"encoding/json"
	"errors"
	"time"
)

type Kind string

// Client → server.
const (
	KindJoinRoom       Kind = "join-room"
	KindLeaveRoom      Kind = "leave-room"
	KindAudioStatus    Kind = "audio-status"
	KindSpeakingStatus Kind = "speaking-status"
	KindHandStatus     Kind = "hand-status"
	KindOffer          Kind = "webrtc-offer"
	KindAnswer         Kind = "webrtc-answer"
	KindICECandidate   Kind = "webrtc-ice-candidate"
	KindStartDebate    Kind = "start-debate"
	KindAdvanceTurn    Kind = "advance-turn"
	KindHostEndMeeting Kind = "host-end-meeting"
	KindPing           Kind = "ping"
)

// Server → client.
const (
	KindRoomParticipants Kind = "room-participants"
	KindParticipantJoin  Kind = "participant-joined"
	KindParticipantLeft  Kind = "participant-left"
	KindAudioUpdate      Kind = "participant-audio-update"
	KindSpeakingUpdate   Kind = "speaking-update"
	KindHandUpdate       Kind = "participant-hand-update"
	KindStateChange      Kind = "state_change"
	KindMeetingEnded     Kind = "meeting-ended-by-host"
	KindPong             Kind = "pong"
	KindError            Kind = "error"
)

var ErrNoType = errors.New("message has no type")

// Peek extracts the kind without touching the payload. The raw bytes are
// handed back so the handler for that kind decodes the rest itself.
func Peek(data []byte) (Kind, error) {
	var env struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return "", err
	}
	if env.Type == "" {
		return "", ErrNoType
	}
	return env.Type, nil
}

// ---- client → server payloads ----

type JoinRoom struct {
	Type     Kind   `json:"type"`
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Role     string `json:"role,omitempty"`
}

type AudioStatus struct {
	Type        Kind `json:"type"`
	IsMuted     bool `json:"isMuted"`
	IsStreaming bool `json:"isStreaming"`
}

type SpeakingStatus struct {
	Type       Kind    `json:"type"`
	IsSpeaking bool    `json:"isSpeaking"`
	Volume     float64 `json:"volume"`
}

type HandStatus struct {
	Type     Kind `json:"type"`
	IsRaised bool `json:"isRaised"`
}

// Signal carries an opaque negotiation payload to one peer. Exactly one
// of Offer/Answer/Candidate is set, matching the kind; the relay never
// inspects it.
type Signal struct {
	Type      Kind            `json:"type"`
	RoomID    string          `json:"roomId,omitempty"`
	ToUserID  string          `json:"toUserId,omitempty"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type StartDebate struct {
	Type          Kind     `json:"type"`
	RoomID        string   `json:"roomId"`
	SpeakingOrder []string `json:"speakingOrder,omitempty"`
}

type AdvanceTurn struct {
	Type   Kind   `json:"type"`
	RoomID string `json:"roomId"`
}

type HostEndMeeting struct {
	Type   Kind   `json:"type"`
	RoomID string `json:"roomId"`
}

// ---- server → client payloads ----

type RoomParticipants struct {
	Type            Kind     `json:"type"`
	ParticipantList []string `json:"participantList"`
}

type ParticipantEvent struct {
	Type     Kind   `json:"type"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type AudioUpdate struct {
	Type        Kind   `json:"type"`
	UserID      string `json:"userId"`
	UserName    string `json:"userName"`
	IsMuted     bool   `json:"isMuted"`
	IsStreaming bool   `json:"isStreaming"`
}

type SpeakingUpdate struct {
	Type       Kind    `json:"type"`
	UserID     string  `json:"userId"`
	UserName   string  `json:"userName"`
	IsSpeaking bool    `json:"isSpeaking"`
	Volume     float64 `json:"volume"`
}

type HandUpdate struct {
	Type     Kind   `json:"type"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	IsRaised bool   `json:"isRaised"`
}

// SignalRelay is the forwarded form of Signal: toUserId is replaced by
// fromUserId, the opaque payload travels unchanged.
type SignalRelay struct {
	Type       Kind            `json:"type"`
	FromUserID string          `json:"fromUserId"`
	Offer      json.RawMessage `json:"offer,omitempty"`
	Answer     json.RawMessage `json:"answer,omitempty"`
	Candidate  json.RawMessage `json:"candidate,omitempty"`
}

// StateChange is the full DebateState snapshot.
type StateChange struct {
	Type             Kind      `json:"type"`
	Phase            string    `json:"phase"`
	RoundNumber      int       `json:"round_number"`
	SpeakingOrder    []string  `json:"speaking_order"`
	CurrentSpeakerID string    `json:"current_speaker_id,omitempty"`
	TurnStartTime    time.Time `json:"turn_start_time"`
	TurnDuration     float64   `json:"turn_duration_seconds,omitempty"`
}

type MeetingEnded struct {
	Type Kind `json:"type"`
}

type ErrorMessage struct {
	Type  Kind   `json:"type"`
	Error string `json:"error"`
}
