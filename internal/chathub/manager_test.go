package chathub_test

import (
	"anonchat/backend/internal/chathub"
	"anonchat/backend/internal/models"
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestManager_RegisterUnregister(t *testing.T) {
	hub := newTestHub(t, chathub.Options{})

	clientA := connect(t, hub, "conn-a")
	assert.Equal(t, 1, barrier(t, hub).Connections)

	hub.Unregister(clientA)
	assert.Equal(t, 0, barrier(t, hub).Connections)
	assert.True(t, clientA.IsClosed())
}

func TestManager_JoinAppliesGuestDefaults(t *testing.T) {
	hub := newTestHub(t, chathub.Options{})
	a := connect(t, hub, "conn-a")

	send(t, hub, a, models.EventJoin, "", nil)
	joined := expectEvent(t, a, models.EventJoined).Payload.(models.JoinedPayload)

	assert.Regexp(t, regexp.MustCompile(`^Guest_[0-9a-z]{9}$`), joined.DisplayName)
	assert.Equal(t, "https://api.dicebear.com/7.x/avataaars/svg?seed="+joined.SessionID, joined.AvatarRef)
	assert.Equal(t, models.GenderOther, joined.Gender)
	assert.Equal(t, models.AllGenders, joined.LookingFor)
	assert.Empty(t, joined.Interests)

	session := lookup(t, hub, joined.SessionID)
	assert.Equal(t, models.StateWaiting, session.State)
	assert.Equal(t, "en", session.Profile.Language)
}

func TestManager_JoinTwiceIsRejected(t *testing.T) {
	hub := newTestHub(t, chathub.Options{})
	a := connect(t, hub, "conn-a")
	join(t, hub, a, models.JoinPayload{Gender: "male", LookingFor: []string{"female"}})
	expectEvent(t, a, models.EventWaiting)

	send(t, hub, a, models.EventJoin, "", models.JoinPayload{Gender: "female"})

	errEv := expectEvent(t, a, models.EventError).Payload.(models.ErrorPayload)
	assert.Equal(t, "You have already joined", errEv.Message)
	assert.Equal(t, 1, barrier(t, hub).ActiveSessions)
}

func TestManager_MalformedInput(t *testing.T) {
	hub := newTestHub(t, chathub.Options{})
	a := connect(t, hub, "conn-a")

	require.True(t, hub.Dispatch(models.InboundEvent{ConnID: "conn-a", Malformed: true}))
	barrier(t, hub)
	assert.Equal(t, "Malformed event", expectEvent(t, a, models.EventError).Payload.(models.ErrorPayload).Message)

	send(t, hub, a, models.EventJoin, "", "not an object")
	expectEvent(t, a, models.EventError)
	assert.Equal(t, 0, barrier(t, hub).ActiveSessions, "a bad join creates no session")
}

func TestManager_UnknownEventTypeLocalized(t *testing.T) {
	hub := newTestHub(t, chathub.Options{})
	a := connect(t, hub, "conn-a")
	join(t, hub, a, models.JoinPayload{Gender: "male", LookingFor: []string{"female"}, Language: "uk"})
	expectEvent(t, a, models.EventWaiting)

	send(t, hub, a, "dance", "", nil)

	errEv := expectEvent(t, a, models.EventError).Payload.(models.ErrorPayload)
	assert.Equal(t, "Невідомий тип події", errEv.Message)
}

func TestManager_EventsBeforeJoinAreDropped(t *testing.T) {
	hub := newTestHub(t, chathub.Options{})
	a := connect(t, hub, "conn-a")

	send(t, hub, a, models.EventSendMessage, "room_a_b", models.SendMessagePayload{Body: "hi"})
	send(t, hub, a, models.EventFindNewChat, "", nil)

	expectNoEvent(t, a)
	assert.Equal(t, 0, barrier(t, hub).ActiveSessions)
}

func TestManager_EventsFromUnknownConnectionAreDropped(t *testing.T) {
	hub := newTestHub(t, chathub.Options{})

	require.True(t, hub.Dispatch(models.InboundEvent{Type: models.EventJoin, ConnID: "ghost"}))
	assert.Equal(t, 0, barrier(t, hub).ActiveSessions)
}

func TestManager_DisconnectRemovesSession(t *testing.T) {
	hub := newTestHub(t, chathub.Options{})
	a := connect(t, hub, "conn-a")
	aID := join(t, hub, a, models.JoinPayload{Gender: "male", LookingFor: []string{"female"}})
	expectEvent(t, a, models.EventWaiting)

	hub.Unregister(a)
	stats := barrier(t, hub)

	_, err := hub.Lookup(context.Background(), aID)
	assert.ErrorIs(t, err, chathub.ErrSessionNotFound)
	assert.Equal(t, 0, stats.ActiveSessions)
	assert.Equal(t, 0, stats.WaitingSessions)

	// a second unregister of the same client is ignored
	hub.Unregister(a)
	assert.Equal(t, 0, barrier(t, hub).Connections)
}

func TestManager_Rooms(t *testing.T) {
	hub := newTestHub(t, chathub.Options{})
	_, _, aID, bID, roomID := pair(t, hub)

	rooms, err := hub.Rooms(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, roomID, rooms[0].RoomID)
	assert.ElementsMatch(t, []string{aID, bID}, rooms[0].Members)
	assert.False(t, rooms[0].IsSynthetic)

	members, err := hub.MembersOf(context.Background(), roomID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{aID, bID}, members)

	members, err = hub.MembersOf(context.Background(), "room_x_y")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestManager_FullSendBufferDoesNotBlock(t *testing.T) {
	hub := newTestHub(t, chathub.Options{})
	slow := newMockClientWithBuffer("conn-slow", 1)
	require.True(t, hub.Register(slow))

	// joined fills the buffer, the waiting notice is dropped
	send(t, hub, slow, models.EventJoin, "", models.JoinPayload{Gender: "male", LookingFor: []string{"female"}})
	send(t, hub, slow, models.EventFindNewChat, "", nil)

	assert.Equal(t, 1, barrier(t, hub).ActiveSessions)
	assert.Equal(t, models.EventJoined, (<-slow.RecvChannel).Type)
	expectNoEvent(t, slow)
}

func TestManager_StopClosesClients(t *testing.T) {
	hub := chathub.NewManagerService(chathub.Options{Logger: zap.NewNop()})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	a := newMockClient("conn-a")
	require.True(t, hub.Register(a))
	cancel()
	<-hub.Done()

	assert.True(t, a.IsClosed())
	assert.False(t, hub.Register(newMockClient("conn-b")))
	assert.False(t, hub.Dispatch(models.InboundEvent{ConnID: "conn-a"}))
	_, err := hub.Stats(context.Background())
	assert.ErrorIs(t, err, chathub.ErrHubStopped)
}
