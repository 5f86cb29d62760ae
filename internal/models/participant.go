package models

import (
	"slices"
	"strings"
	"time"
)

// Gender is a self-declared participant gender.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// AllGenders lists every accepted gender value in declaration order.
var AllGenders = []Gender{GenderMale, GenderFemale, GenderOther}

// ParseGender converts a wire value into a Gender. Values are case-insensitive.
func ParseGender(s string) (Gender, bool) {
	switch Gender(strings.ToLower(strings.TrimSpace(s))) {
	case GenderMale:
		return GenderMale, true
	case GenderFemale:
		return GenderFemale, true
	case GenderOther:
		return GenderOther, true
	}
	return "", false
}

// LifecycleState is the position of a session in the matchmaking lifecycle.
// The three states are mutually exclusive.
type LifecycleState int

const (
	StateIdle LifecycleState = iota
	StateWaiting
	StateInRoom
)

func (s LifecycleState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaiting:
		return "waiting"
	case StateInRoom:
		return "in_room"
	default:
		return "unknown"
	}
}

// Profile is what a participant declares about themselves on join.
// DisplayName and AvatarRef are opaque to the server.
type Profile struct {
	DisplayName string   `json:"displayName"`
	AvatarRef   string   `json:"avatarRef"`
	Gender      Gender   `json:"gender"`
	Interests   []string `json:"interests"`
	LookingFor  []Gender `json:"lookingFor"`
	// Language selects the catalog used for server-generated text.
	Language string `json:"-"`
}

// Accepts reports whether g is one of the genders this profile is looking for.
func (p Profile) Accepts(g Gender) bool {
	return slices.Contains(p.LookingFor, g)
}

// MutuallyCompatible reports whether a and b accept each other's gender.
func MutuallyCompatible(a, b Profile) bool {
	return a.Accepts(b.Gender) && b.Accepts(a.Gender)
}

// CommonInterests returns the interests present in both a and b, in a's order.
// Comparison is case-sensitive.
func CommonInterests(a, b []string) []string {
	common := make([]string, 0)
	for _, interest := range a {
		if slices.Contains(b, interest) {
			common = append(common, interest)
		}
	}
	return common
}

// Clone returns a deep copy so callers never share slices with the registry.
func (p Profile) Clone() Profile {
	c := p
	c.Interests = slices.Clone(p.Interests)
	c.LookingFor = slices.Clone(p.LookingFor)
	return c
}

// ParticipantSession is the server-side state of one live connection.
type ParticipantSession struct {
	SessionID string
	Profile   Profile
	State     LifecycleState
	// RoomID is set iff State == StateInRoom.
	RoomID   string
	JoinedAt time.Time
}

// Clone returns a deep copy of the session.
func (s ParticipantSession) Clone() ParticipantSession {
	c := s
	c.Profile = s.Profile.Clone()
	return c
}

// NormalizeInterests drops blank tags and duplicates while preserving order.
func NormalizeInterests(in []string) []string {
	out := make([]string, 0, len(in))
	for _, tag := range in {
		tag = strings.TrimSpace(tag)
		if tag == "" || slices.Contains(out, tag) {
			continue
		}
		out = append(out, tag)
	}
	return out
}

// NormalizeLookingFor parses wire gender values. A nil input means the
// participant did not state a preference and accepts everyone; an explicit
// empty list stays empty and matches nobody.
func NormalizeLookingFor(in []string) []Gender {
	if in == nil {
		return slices.Clone(AllGenders)
	}
	out := make([]Gender, 0, len(in))
	for _, raw := range in {
		g, ok := ParseGender(raw)
		if !ok || slices.Contains(out, g) {
			continue
		}
		out = append(out, g)
	}
	return out
}
