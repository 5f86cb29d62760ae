package chathub

import "errors"

var (
	// ErrNotInRoom is returned when an action addresses a room the sender is not in.
	ErrNotInRoom = errors.New("sender is not in the room")

	// ErrSessionNotFound is returned for an unknown session ID.
	ErrSessionNotFound = errors.New("session not found")

	// ErrMatchRace means a match candidate stopped waiting before the match committed.
	ErrMatchRace = errors.New("match candidate is no longer waiting")

	ErrEmptyMessage     = errors.New("message body is required")
	ErrInvalidMediaKind = errors.New("media kind must be image, audio or video")
	ErrAlreadyJoined    = errors.New("connection has already joined")

	// ErrHubStopped is returned by calls made after Run has returned.
	ErrHubStopped = errors.New("chat hub stopped")

	errBadPayload   = errors.New("malformed event payload")
	errUnknownEvent = errors.New("unknown event type")
)
