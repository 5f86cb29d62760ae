package models

import "time"

// ChatRoom is the persisted record of a two-party room.
// Room ids are derived from the participant pair, so a rematch of the same
// pair overwrites the previous record.
type ChatRoom struct {
	// RoomID is the deterministic room identifier.
	RoomID string `gorm:"primaryKey;type:varchar(160)"`
	// User1ID is the session ID of the first participant (lexicographically smaller).
	User1ID string `gorm:"type:varchar(64);index"`
	// User2ID is the session ID of the second participant.
	User2ID string `gorm:"type:varchar(64);index"`
	// IsSynthetic marks rooms where the second participant is the built-in partner.
	IsSynthetic bool
	// IsActive indicates whether the chat room is currently active.
	IsActive bool `gorm:"index"`
	// StartedAt is the timestamp when the chat room was created.
	StartedAt time.Time
	// EndedAt is the timestamp when the chat room was closed.
	EndedAt *time.Time
}
