package models

import (
	"encoding/json"
	"time"
)

// Wire event types exchanged over the websocket.
const (
	EventJoin         = "join"
	EventJoined       = "joined"
	EventFindNewChat  = "find-new-chat"
	EventMatched      = "matched"
	EventWaiting      = "waiting"
	EventSendMessage  = "send-message"
	EventMessage      = "message"
	EventShareMedia   = "share-media"
	EventTyping       = "typing"
	EventPeerTyping   = "peer-typing"
	EventCallOffer    = "call-offer"
	EventCallAnswer   = "call-answer"
	EventICECandidate = "ice-candidate"
	EventCallEnd      = "call-end"
	EventCallReject   = "call-reject"
	EventPartnerLeft  = "partner-left"
	EventError        = "error"
)

// InboundEvent is a frame received from a client.
type InboundEvent struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"roomId,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// ConnID identifies the connection the frame arrived on.
	// It is set by the read pump and never taken from JSON.
	ConnID string `json:"-"`
	// Malformed is set by the read pump when the frame could not be decoded.
	Malformed bool `json:"-"`
}

// OutboundEvent is a frame sent to a client. Payload is marshalled by the
// connection's write pump.
type OutboundEvent struct {
	Type    string `json:"type"`
	RoomID  string `json:"roomId,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// JoinPayload is the body of a join event. LookingFor is left nil when the
// field is absent so that "no preference" can be told apart from "[]".
type JoinPayload struct {
	DisplayName string   `json:"displayName"`
	AvatarRef   string   `json:"avatarRef"`
	Gender      string   `json:"gender"`
	LookingFor  []string `json:"lookingFor"`
	Interests   []string `json:"interests"`
	Language    string   `json:"language,omitempty"`
}

type SendMessagePayload struct {
	Body string `json:"body"`
}

type ShareMediaPayload struct {
	MediaURL  string `json:"mediaUrl"`
	MediaKind string `json:"mediaKind"`
	FileName  string `json:"fileName"`
	Body      string `json:"body,omitempty"`
}

type TypingPayload struct {
	IsTyping bool `json:"isTyping"`
}

type JoinedPayload struct {
	SessionID   string   `json:"sessionId"`
	DisplayName string   `json:"displayName"`
	AvatarRef   string   `json:"avatarRef"`
	Gender      Gender   `json:"gender"`
	LookingFor  []Gender `json:"lookingFor"`
	Interests   []string `json:"interests"`
}

// PartnerView is the partner profile sent inside a matched event.
type PartnerView struct {
	SessionID       string   `json:"sessionId"`
	DisplayName     string   `json:"displayName"`
	AvatarRef       string   `json:"avatarRef"`
	Gender          Gender   `json:"gender"`
	CommonInterests []string `json:"commonInterests"`
	IsSynthetic     bool     `json:"isSynthetic,omitempty"`
}

type MatchedPayload struct {
	RoomID  string      `json:"roomId"`
	Partner PartnerView `json:"partner"`
}

type Preferences struct {
	LookingFor []Gender `json:"lookingFor"`
	Interests  []string `json:"interests"`
}

type WaitingPayload struct {
	Message     string      `json:"message"`
	Preferences Preferences `json:"preferences"`
}

type PeerTypingPayload struct {
	SenderSessionID string `json:"senderSessionId"`
	DisplayName     string `json:"displayName"`
	IsTyping        bool   `json:"isTyping"`
}

// SignalPayload carries an opaque WebRTC signaling blob plus the sender's
// identity. Payload is forwarded byte for byte.
type SignalPayload struct {
	RoomID          string          `json:"roomId"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	SenderSessionID string          `json:"senderSessionId"`
	DisplayName     string          `json:"displayName"`
	AvatarRef       string          `json:"avatarRef"`
}

type PartnerLeftPayload struct {
	SessionID   string `json:"sessionId"`
	DisplayName string `json:"displayName"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// HubStats is a point-in-time view of the hub's in-memory state.
type HubStats struct {
	ActiveSessions  int       `json:"activeSessions"`
	WaitingSessions int       `json:"waitingSessions"`
	ActiveRooms     int       `json:"activeRooms"`
	Connections     int       `json:"connections"`
	Timestamp       time.Time `json:"timestamp"`
}

// RoomSummary describes one live room for operators.
type RoomSummary struct {
	RoomID      string    `json:"roomId"`
	Members     []string  `json:"members"`
	IsSynthetic bool      `json:"isSynthetic"`
	Messages    uint64    `json:"messages"`
	CreatedAt   time.Time `json:"createdAt"`
}
