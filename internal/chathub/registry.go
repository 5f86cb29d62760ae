package chathub

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"anonchat/backend/internal/config"
	"anonchat/backend/internal/models"

	"github.com/google/uuid"
)

// sessionRegistry maps session IDs to their state. It is owned by the hub
// goroutine; Lookup hands out copies only.
type sessionRegistry struct {
	sessions map[string]*models.ParticipantSession
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[string]*models.ParticipantSession)}
}

// Register creates an Idle session for the join payload and returns a copy.
func (r *sessionRegistry) Register(p models.JoinPayload, now time.Time) models.ParticipantSession {
	id := uuid.NewString()
	s := &models.ParticipantSession{
		SessionID: id,
		Profile:   newProfile(p, id),
		State:     models.StateIdle,
		JoinedAt:  now,
	}
	r.sessions[id] = s
	return s.Clone()
}

func (r *sessionRegistry) Lookup(id string) (models.ParticipantSession, error) {
	s, ok := r.sessions[id]
	if !ok {
		return models.ParticipantSession{}, fmt.Errorf("lookup %s: %w", id, ErrSessionNotFound)
	}
	return s.Clone(), nil
}

// Update applies fn to the stored session.
func (r *sessionRegistry) Update(id string, fn func(s *models.ParticipantSession)) error {
	s, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("update %s: %w", id, ErrSessionNotFound)
	}
	fn(s)
	return nil
}

// Remove deletes the session and returns its last state.
func (r *sessionRegistry) Remove(id string) (models.ParticipantSession, bool) {
	s, ok := r.sessions[id]
	if !ok {
		return models.ParticipantSession{}, false
	}
	delete(r.sessions, id)
	return *s, true
}

func (r *sessionRegistry) Len() int {
	return len(r.sessions)
}

// peek returns the stored session without copying. Callers must not keep
// the pointer past the current event.
func (r *sessionRegistry) peek(id string) (*models.ParticipantSession, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

func newProfile(p models.JoinPayload, sessionID string) models.Profile {
	gender, ok := models.ParseGender(p.Gender)
	if !ok {
		gender = models.GenderOther
	}
	name := strings.TrimSpace(p.DisplayName)
	if name == "" {
		name = guestName()
	}
	avatar := strings.TrimSpace(p.AvatarRef)
	if avatar == "" {
		avatar = fmt.Sprintf(config.GuestAvatarTemplate, sessionID)
	}
	lang := strings.TrimSpace(p.Language)
	if lang == "" {
		lang = config.DefaultLanguage
	}
	return models.Profile{
		DisplayName: name,
		AvatarRef:   avatar,
		Gender:      gender,
		Interests:   models.NormalizeInterests(p.Interests),
		LookingFor:  models.NormalizeLookingFor(p.LookingFor),
		Language:    lang,
	}
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

func guestName() string {
	var b strings.Builder
	b.WriteString(config.GuestNamePrefix)
	for range 9 {
		b.WriteByte(base36[rand.IntN(len(base36))])
	}
	return b.String()
}
