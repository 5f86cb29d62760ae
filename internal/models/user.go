package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq" // pq.StringArray for tag lists
	"gorm.io/gorm"
)

// User is the persisted snapshot of a guest participant.
// The ID is the session ID handed out on join.
type User struct {
	ID             string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	DisplayName    string         `gorm:"type:text" json:"displayName"`
	AvatarRef      string         `gorm:"type:text" json:"avatarRef"`
	Gender         string         `gorm:"type:varchar(16)" json:"gender"`
	Interests      pq.StringArray `gorm:"type:text" json:"interests"`
	LookingFor     pq.StringArray `gorm:"type:text" json:"lookingFor"`
	IsOnline       bool           `gorm:"index" json:"isOnline"`
	JoinedAt       time.Time      `json:"joinedAt"`
	DisconnectedAt *time.Time     `json:"disconnectedAt,omitempty"`
}

// BeforeCreate is a GORM hook that fills in a UUID when no ID was set.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// UserFromSession builds the persisted form of a live session.
func UserFromSession(s ParticipantSession) *User {
	lookingFor := make(pq.StringArray, 0, len(s.Profile.LookingFor))
	for _, g := range s.Profile.LookingFor {
		lookingFor = append(lookingFor, string(g))
	}
	return &User{
		ID:          s.SessionID,
		DisplayName: s.Profile.DisplayName,
		AvatarRef:   s.Profile.AvatarRef,
		Gender:      string(s.Profile.Gender),
		Interests:   pq.StringArray(append([]string(nil), s.Profile.Interests...)),
		LookingFor:  lookingFor,
		IsOnline:    true,
		JoinedAt:    s.JoinedAt,
	}
}
