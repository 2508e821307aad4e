package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeek(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    Kind
		wantErr bool
	}{
		{name: "join", data: `{"type":"join-room","roomId":"R1"}`, want: KindJoinRoom},
		{name: "relay", data: `{"type":"webrtc-offer","toUserId":"Y"}`, want: KindOffer},
		{name: "unknown_kind_still_peeks", data: `{"type":"yodel"}`, want: Kind("yodel")},
		{name: "missing_type", data: `{"roomId":"R1"}`, wantErr: true},
		{name: "not_json", data: `nope`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, err := Peek([]byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestSignalPayloadStaysOpaque(t *testing.T) {
	in := `{"type":"webrtc-ice-candidate","roomId":"R1","toUserId":"Y","candidate":{"candidate":"candidate:1 1 UDP 2122252543 192.0.2.1 54321 typ host","sdpMid":"0"}}`

	var sig Signal
	require.NoError(t, json.Unmarshal([]byte(in), &sig))
	assert.Equal(t, KindICECandidate, sig.Type)
	assert.Equal(t, "Y", sig.ToUserID)

	out := SignalRelay{
		Type:       sig.Type,
		FromUserID: "X",
		Candidate:  sig.Candidate,
	}
	encoded, err := json.Marshal(out)
	require.NoError(t, err)

	var back SignalRelay
	require.NoError(t, json.Unmarshal(encoded, &back))
	assert.JSONEq(t, string(sig.Candidate), string(back.Candidate), "relay must not rewrite the payload")
}

func TestStateChangeRoundTrip(t *testing.T) {
	msg := StateChange{
		Type:             KindStateChange,
		Phase:            "rebuttal",
		RoundNumber:      2,
		SpeakingOrder:    []string{"A", "B", "C"},
		CurrentSpeakerID: "B",
	}
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	kind, err := Peek(data)
	require.NoError(t, err)
	assert.Equal(t, KindStateChange, kind)

	var back StateChange
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, msg.SpeakingOrder, back.SpeakingOrder)
	assert.Equal(t, msg.CurrentSpeakerID, back.CurrentSpeakerID)
}
