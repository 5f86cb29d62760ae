package chathub

import "anonchat/backend/internal/models"

// Client is the interface for one live connection.
// It abstracts the underlying transport so the hub can address every
// connection the same way.
type Client interface {
	// GetConnID returns the identifier the client stamps on its inbound events.
	GetConnID() string

	// GetSendChannel returns the channel to which the ManagerService (hub) sends
	// events intended for this specific client. It is a send-only channel.
	GetSendChannel() chan<- models.OutboundEvent

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts down the client's outbound channel. Only the hub calls it.
	Close()
}
