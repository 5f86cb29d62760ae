package chathub_test

import (
	"anonchat/backend/internal/chathub"
	"anonchat/backend/internal/models"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHub(t *testing.T, opts chathub.Options) *chathub.ManagerService {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	hub := chathub.NewManagerService(opts)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
	})
	return hub
}

func connect(t *testing.T, hub *chathub.ManagerService, connID string) *MockClient {
	t.Helper()
	c := newMockClient(connID)
	require.True(t, hub.Register(c))
	return c
}

// barrier returns once every event dispatched before it has been handled.
func barrier(t *testing.T, hub *chathub.ManagerService) models.HubStats {
	t.Helper()
	stats, err := hub.Stats(context.Background())
	require.NoError(t, err)
	return stats
}

func send(t *testing.T, hub *chathub.ManagerService, c *MockClient, eventType, roomID string, payload any) {
	t.Helper()
	var raw json.RawMessage
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		require.NoError(t, err)
	}
	require.True(t, hub.Dispatch(models.InboundEvent{
		Type:    eventType,
		RoomID:  roomID,
		Payload: raw,
		ConnID:  c.connID,
	}))
	barrier(t, hub)
}

func join(t *testing.T, hub *chathub.ManagerService, c *MockClient, p models.JoinPayload) string {
	t.Helper()
	send(t, hub, c, models.EventJoin, "", p)
	ev := expectEvent(t, c, models.EventJoined)
	return ev.Payload.(models.JoinedPayload).SessionID
}

func expectEvent(t *testing.T, c *MockClient, eventType string) models.OutboundEvent {
	t.Helper()
	select {
	case ev := <-c.RecvChannel:
		require.Equal(t, eventType, ev.Type, "unexpected event for %s: %+v", c.connID, ev.Payload)
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("%s: timed out waiting for %s", c.connID, eventType)
	}
	return models.OutboundEvent{}
}

func expectNoEvent(t *testing.T, c *MockClient) {
	t.Helper()
	select {
	case ev := <-c.RecvChannel:
		t.Fatalf("%s: unexpected %s event: %+v", c.connID, ev.Type, ev.Payload)
	default:
	}
}

func lookup(t *testing.T, hub *chathub.ManagerService, sessionID string) models.ParticipantSession {
	t.Helper()
	s, err := hub.Lookup(context.Background(), sessionID)
	require.NoError(t, err)
	return s
}

// pair joins a male and a female participant who accept each other and
// returns them matched, with their matched events consumed.
func pair(t *testing.T, hub *chathub.ManagerService) (a, b *MockClient, aID, bID, roomID string) {
	t.Helper()
	a = connect(t, hub, "conn-a")
	aID = join(t, hub, a, models.JoinPayload{
		DisplayName: "Adam", Gender: "male", LookingFor: []string{"female"}, Interests: []string{"Music"},
	})
	expectEvent(t, a, models.EventWaiting)

	b = connect(t, hub, "conn-b")
	bID = join(t, hub, b, models.JoinPayload{
		DisplayName: "Eve", Gender: "female", LookingFor: []string{"male"}, Interests: []string{"Music"},
	})
	roomID = expectEvent(t, a, models.EventMatched).Payload.(models.MatchedPayload).RoomID
	expectEvent(t, b, models.EventMatched)
	return a, b, aID, bID, roomID
}
