package models

import (
	"strings"
	"time"
)

// MediaKind is the category of an attachment shared in a room.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// ParseMediaKind validates a wire media kind.
func ParseMediaKind(s string) (MediaKind, bool) {
	switch MediaKind(strings.ToLower(strings.TrimSpace(s))) {
	case MediaImage:
		return MediaImage, true
	case MediaAudio:
		return MediaAudio, true
	case MediaVideo:
		return MediaVideo, true
	}
	return "", false
}

// MediaKindFromMIME maps a MIME type such as "image/png" to its MediaKind.
func MediaKindFromMIME(mime string) (MediaKind, bool) {
	major, _, _ := strings.Cut(strings.ToLower(mime), "/")
	return ParseMediaKind(major)
}

// Media describes an uploaded file referenced by a message. The URL comes
// from the upload service and is never fetched by the relay.
type Media struct {
	URL      string    `json:"url"`
	Kind     MediaKind `json:"kind"`
	FileName string    `json:"fileName"`
}

// RelayMessage is a chat message as confirmed by the server. It is built,
// broadcast to the room and then dropped; durable copies are ChatHistory rows.
type RelayMessage struct {
	MessageID       string    `json:"messageId"`
	Seq             uint64    `json:"seq"`
	RoomID          string    `json:"roomId"`
	SenderSessionID string    `json:"senderSessionId"`
	DisplayName     string    `json:"displayName"`
	AvatarRef       string    `json:"avatarRef"`
	Body            string    `json:"body"`
	Media           *Media    `json:"media,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// History converts the message into its persisted form.
func (m RelayMessage) History() *ChatHistory {
	h := &ChatHistory{
		MessageID:   m.MessageID,
		Seq:         m.Seq,
		RoomID:      m.RoomID,
		SenderID:    m.SenderSessionID,
		DisplayName: m.DisplayName,
		AvatarRef:   m.AvatarRef,
		Body:        m.Body,
		SentAt:      m.Timestamp,
	}
	if m.Media != nil {
		h.MediaURL = m.Media.URL
		h.MediaKind = string(m.Media.Kind)
		h.FileName = m.Media.FileName
	}
	return h
}
