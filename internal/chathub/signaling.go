package chathub

import (
	"encoding/json"

	"anonchat/backend/internal/models"
)

// SignalKind is a WebRTC signaling step relayed between room peers.
type SignalKind string

const (
	SignalOffer        SignalKind = "offer"
	SignalAnswer       SignalKind = "answer"
	SignalICECandidate SignalKind = "ice-candidate"
	SignalEnd          SignalKind = "end"
	SignalReject       SignalKind = "reject"
)

var signalEvents = map[string]SignalKind{
	models.EventCallOffer:    SignalOffer,
	models.EventCallAnswer:   SignalAnswer,
	models.EventICECandidate: SignalICECandidate,
	models.EventCallEnd:      SignalEnd,
	models.EventCallReject:   SignalReject,
}

// SignalKindFor maps a wire event type to its signaling kind.
func SignalKindFor(eventType string) (SignalKind, bool) {
	k, ok := signalEvents[eventType]
	return k, ok
}

// Event returns the wire event type of the kind.
func (k SignalKind) Event() string {
	for event, kind := range signalEvents {
		if kind == k {
			return event
		}
	}
	return ""
}

func (k SignalKind) closesRoom() bool {
	return k == SignalEnd || k == SignalReject
}

// relaySignal forwards payload untouched to the other real peer of the room.
// A synthetic peer receives nothing. end and reject close the room after
// delivery. The error is ErrNotInRoom or ErrSessionNotFound for stale
// signals, which callers drop.
func (m *ManagerService) relaySignal(kind SignalKind, senderID, roomID string, payload json.RawMessage) error {
	sender, room, err := m.activeRoomOf(senderID, roomID)
	if err != nil {
		return err
	}

	if other, _ := room.Other(senderID); !other.IsSynthetic() {
		m.send(other.SessionID, models.OutboundEvent{
			Type:   kind.Event(),
			RoomID: roomID,
			Payload: models.SignalPayload{
				RoomID:          roomID,
				Payload:         payload,
				SenderSessionID: senderID,
				DisplayName:     sender.Profile.DisplayName,
				AvatarRef:       sender.Profile.AvatarRef,
			},
		})
		m.metrics.SignalRelayed(string(kind))
	}

	if kind.closesRoom() {
		m.closeRoom(roomID, sender.Clone())
	}
	return nil
}
