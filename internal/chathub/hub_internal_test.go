package chathub

import (
	"anonchat/backend/internal/models"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubClient struct {
	id   string
	send chan models.OutboundEvent
}

func (c *stubClient) GetConnID() string                          { return c.id }
func (c *stubClient) GetSendChannel() chan<- models.OutboundEvent { return c.send }
func (c *stubClient) Run()                                        {}
func (c *stubClient) Close()                                      {}

// newInternalHub returns a hub whose handlers are driven directly from the
// test goroutine; Run is never started.
func newInternalHub(t *testing.T, synthetic bool) *ManagerService {
	t.Helper()
	m := NewManagerService(Options{
		GreetingDelay:    time.Hour,
		SyntheticPartner: synthetic,
		Logger:           zap.NewNop(),
	})
	t.Cleanup(func() {
		m.greetings.stopAll()
		close(m.done)
	})
	return m
}

func (m *ManagerService) joinDirect(t *testing.T, connID string, p models.JoinPayload) (*stubClient, string) {
	t.Helper()
	c := &stubClient{id: connID, send: make(chan models.OutboundEvent, 64)}
	m.handleRegister(c)
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	m.handleIncoming(models.InboundEvent{Type: models.EventJoin, ConnID: connID, Payload: raw})
	sessionID, ok := m.sessionOf[connID]
	require.True(t, ok)
	return c, sessionID
}

func drain(c *stubClient) []models.OutboundEvent {
	var out []models.OutboundEvent
	for {
		select {
		case ev := <-c.send:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func countType(events []models.OutboundEvent, eventType string) int {
	n := 0
	for _, ev := range events {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}
