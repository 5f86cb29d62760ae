package models

import (
	"time"

	"gorm.io/gorm"
)

// ChatHistory represents a saved chat message in the database.
// The embedded gorm.Model provides the row ID and bookkeeping timestamps;
// MessageID is the id clients saw on the wire.
type ChatHistory struct {
	gorm.Model

	// MessageID is the server-assigned id of the relayed message.
	MessageID string `gorm:"type:varchar(64);uniqueIndex;not null"`
	// Seq is the per-room sequence number of the message.
	Seq uint64
	// RoomID is the identifier of the chat room where the message was sent.
	RoomID string `gorm:"type:varchar(160);not null;index:idx_room_msg"`
	// SenderID is the session ID of the participant who sent the message.
	SenderID    string `gorm:"type:varchar(64);not null;index:idx_room_msg"`
	DisplayName string `gorm:"type:text"`
	AvatarRef   string `gorm:"type:text"`
	// Body is the message text, or the caption when media is attached.
	Body string `gorm:"type:text"`

	MediaURL  string `gorm:"type:text"`
	MediaKind string `gorm:"type:varchar(16)"`
	FileName  string `gorm:"type:text"`

	// SentAt is the server clock at relay time.
	SentAt time.Time `gorm:"index"`
}
