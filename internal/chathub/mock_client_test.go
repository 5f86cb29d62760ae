package chathub_test

import (
	"anonchat/backend/internal/models"
	"sync/atomic"
)

type MockClient struct {
	connID      string
	RecvChannel chan models.OutboundEvent
	closed      atomic.Bool
}

func newMockClient(connID string) *MockClient {
	return newMockClientWithBuffer(connID, 64)
}

func newMockClientWithBuffer(connID string, size int) *MockClient {
	return &MockClient{
		connID:      connID,
		RecvChannel: make(chan models.OutboundEvent, size),
	}
}

func (c *MockClient) GetConnID() string {
	return c.connID
}

func (c *MockClient) GetSendChannel() chan<- models.OutboundEvent {
	return c.RecvChannel
}

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.closed.Store(true)
}

func (c *MockClient) IsClosed() bool {
	return c.closed.Load()
}
