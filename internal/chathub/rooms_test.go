package chathub

import (
	"anonchat/backend/internal/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomIDFor_IsSymmetric(t *testing.T) {
	assert.Equal(t, "room_a_b", RoomIDFor("a", "b"))
	assert.Equal(t, RoomIDFor("a", "b"), RoomIDFor("b", "a"))
}

func TestRoom_PeersAndMembers(t *testing.T) {
	bot := SyntheticPeer()
	require.Regexp(t, `^bot_[0-9a-f-]{36}$`, bot.SessionID)

	r := newRoom(RealPeer("s-1"), bot, time.Now())

	other, ok := r.Other("s-1")
	assert.True(t, ok)
	assert.Equal(t, bot, other)

	_, ok = r.Other("stranger")
	assert.False(t, ok)

	assert.Equal(t, []string{"s-1"}, r.Members())
	got, ok := r.Synthetic()
	assert.True(t, ok)
	assert.Equal(t, bot, got)
	assert.True(t, r.record().IsSynthetic)
}

func TestCreateRoom_IdempotentWhileActive(t *testing.T) {
	m := newInternalHub(t, false)
	_, aID := m.joinDirect(t, "conn-a", models.JoinPayload{Gender: "male", LookingFor: []string{"male"}})
	_, bID := m.joinDirect(t, "conn-b", models.JoinPayload{Gender: "female", LookingFor: []string{"female"}})

	first := m.createRoom(RealPeer(aID), RealPeer(bID))
	second := m.createRoom(RealPeer(bID), RealPeer(aID))

	assert.Same(t, first, second)
	assert.Equal(t, 1, m.rooms.Len())
	s, _ := m.sessions.Lookup(aID)
	assert.Equal(t, models.StateInRoom, s.State)
	assert.Equal(t, first.ID, s.RoomID)
}

func TestCloseRoom_OnlyOnce(t *testing.T) {
	m := newInternalHub(t, false)
	ca, aID := m.joinDirect(t, "conn-a", models.JoinPayload{Gender: "male", LookingFor: []string{"male"}})
	cb, bID := m.joinDirect(t, "conn-b", models.JoinPayload{Gender: "female", LookingFor: []string{"female"}})
	room := m.createRoom(RealPeer(aID), RealPeer(bID))
	drain(ca)
	drain(cb)

	leaver, _ := m.sessions.Lookup(aID)
	m.closeRoom(room.ID, leaver)
	m.closeRoom(room.ID, leaver)

	assert.Equal(t, 1, countType(drain(cb), models.EventPartnerLeft))
	assert.Empty(t, drain(ca), "the leaver is not told about its own departure")
	assert.Equal(t, RoomClosed, room.Status)
	assert.Equal(t, 0, m.rooms.Len())

	for _, id := range []string{aID, bID} {
		s, _ := m.sessions.Lookup(id)
		assert.Equal(t, models.StateIdle, s.State)
		assert.Empty(t, s.RoomID)
	}

	reopened := m.createRoom(RealPeer(aID), RealPeer(bID))
	assert.NotSame(t, room, reopened)
	assert.Equal(t, room.ID, reopened.ID)
	assert.Equal(t, RoomActive, reopened.Status)
}
