package chathub

import (
	"slices"
	"time"

	"anonchat/backend/internal/config"
	"anonchat/backend/internal/models"

	"github.com/google/uuid"
)

// PeerKind tags a RoomPeer.
type PeerKind int

const (
	PeerReal PeerKind = iota
	PeerSynthetic
)

// RoomPeer is one side of a room: a registered session or the built-in
// synthetic partner. The synthetic partner has an ID for addressing but no
// registry entry.
type RoomPeer struct {
	Kind      PeerKind
	SessionID string
}

func RealPeer(sessionID string) RoomPeer {
	return RoomPeer{Kind: PeerReal, SessionID: sessionID}
}

// SyntheticPeer returns a synthetic partner with a fresh ID.
func SyntheticPeer() RoomPeer {
	return RoomPeer{Kind: PeerSynthetic, SessionID: "bot_" + uuid.NewString()}
}

func (p RoomPeer) IsSynthetic() bool {
	return p.Kind == PeerSynthetic
}

// syntheticProfile is the fixed profile every synthetic partner presents.
func syntheticProfile() models.Profile {
	return models.Profile{
		DisplayName: config.SyntheticPartnerName,
		AvatarRef:   config.SyntheticAvatarRef,
		Gender:      models.GenderMale,
		Interests:   slices.Clone(config.SyntheticPartnerInterests),
		LookingFor:  slices.Clone(models.AllGenders),
		Language:    config.DefaultLanguage,
	}
}

type RoomStatus int

const (
	RoomActive RoomStatus = iota
	RoomClosed
)

// Room is a two-party chat room. Peers are ordered by session ID so that
// Peers[0] and Peers[1] match the two halves of ID.
type Room struct {
	ID        string
	Peers     [2]RoomPeer
	CreatedAt time.Time
	Status    RoomStatus

	seq uint64
}

// RoomIDFor derives the room ID of an unordered pair.
func RoomIDFor(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return "room_" + a + "_" + b
}

func newRoom(a, b RoomPeer, now time.Time) *Room {
	if a.SessionID > b.SessionID {
		a, b = b, a
	}
	return &Room{
		ID:        RoomIDFor(a.SessionID, b.SessionID),
		Peers:     [2]RoomPeer{a, b},
		CreatedAt: now,
		Status:    RoomActive,
	}
}

// Other returns the peer facing sessionID. ok is false if sessionID is not
// in the room.
func (r *Room) Other(sessionID string) (peer RoomPeer, ok bool) {
	switch sessionID {
	case r.Peers[0].SessionID:
		return r.Peers[1], true
	case r.Peers[1].SessionID:
		return r.Peers[0], true
	}
	return RoomPeer{}, false
}

// Members returns the IDs of the real sessions in the room.
func (r *Room) Members() []string {
	members := make([]string, 0, len(r.Peers))
	for _, p := range r.Peers {
		if !p.IsSynthetic() {
			members = append(members, p.SessionID)
		}
	}
	return members
}

// Synthetic returns the synthetic peer of the room, if any.
func (r *Room) Synthetic() (RoomPeer, bool) {
	for _, p := range r.Peers {
		if p.IsSynthetic() {
			return p, true
		}
	}
	return RoomPeer{}, false
}

func (r *Room) nextSeq() uint64 {
	r.seq++
	return r.seq
}

func (r *Room) record() models.ChatRoom {
	_, synthetic := r.Synthetic()
	return models.ChatRoom{
		RoomID:      r.ID,
		User1ID:     r.Peers[0].SessionID,
		User2ID:     r.Peers[1].SessionID,
		IsSynthetic: synthetic,
		IsActive:    r.Status == RoomActive,
		StartedAt:   r.CreatedAt,
	}
}

func (r *Room) summary() models.RoomSummary {
	_, synthetic := r.Synthetic()
	return models.RoomSummary{
		RoomID:      r.ID,
		Members:     r.Members(),
		IsSynthetic: synthetic,
		Messages:    r.seq,
		CreatedAt:   r.CreatedAt,
	}
}

// roomTable holds the Active rooms. Closed rooms are removed so that a
// rematch of the same pair starts from a fresh room.
type roomTable struct {
	rooms map[string]*Room
}

func newRoomTable() *roomTable {
	return &roomTable{rooms: make(map[string]*Room)}
}

func (t *roomTable) get(id string) (*Room, bool) {
	r, ok := t.rooms[id]
	return r, ok
}

func (t *roomTable) put(r *Room) {
	t.rooms[r.ID] = r
}

func (t *roomTable) delete(id string) {
	delete(t.rooms, id)
}

func (t *roomTable) Len() int {
	return len(t.rooms)
}

func (t *roomTable) summaries() []models.RoomSummary {
	out := make([]models.RoomSummary, 0, len(t.rooms))
	for _, r := range t.rooms {
		out = append(out, r.summary())
	}
	slices.SortFunc(out, func(a, b models.RoomSummary) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

// createRoom opens a room for the pair and moves real peers to InRoom.
// While a room for the pair is Active it is returned unchanged.
func (m *ManagerService) createRoom(a, b RoomPeer) *Room {
	id := RoomIDFor(a.SessionID, b.SessionID)
	if r, ok := m.rooms.get(id); ok && r.Status == RoomActive {
		return r
	}

	r := newRoom(a, b, m.now())
	m.rooms.put(r)
	for _, member := range r.Members() {
		_ = m.sessions.Update(member, func(s *models.ParticipantSession) {
			s.State = models.StateInRoom
			s.RoomID = r.ID
		})
	}
	m.persister.RoomOpened(r.record())
	m.logger.Info("room opened", zapRoom(r)...)
	return r
}

// closeRoom closes roomID on behalf of leaver. Remaining real members go
// back to Idle and every still-connected one other than leaver receives
// partner-left. Closing an unknown or closed room is a no-op.
func (m *ManagerService) closeRoom(roomID string, leaver models.ParticipantSession) {
	r, ok := m.rooms.get(roomID)
	if !ok || r.Status == RoomClosed {
		return
	}
	r.Status = RoomClosed
	m.rooms.delete(roomID)
	m.greetings.cancel(roomID)

	for _, member := range r.Members() {
		s, ok := m.sessions.peek(member)
		if !ok {
			continue
		}
		if s.State == models.StateInRoom && s.RoomID == roomID {
			s.State = models.StateIdle
			s.RoomID = ""
		}
		if member == leaver.SessionID {
			continue
		}
		m.send(member, models.OutboundEvent{
			Type:   models.EventPartnerLeft,
			RoomID: roomID,
			Payload: models.PartnerLeftPayload{
				SessionID:   leaver.SessionID,
				DisplayName: leaver.Profile.DisplayName,
			},
		})
	}

	m.persister.RoomClosed(roomID, m.now())
	m.logger.Info("room closed", zapRoom(r)...)
}
