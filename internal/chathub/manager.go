// Package chathub is the matchmaking and relay core. A single
// ManagerService goroutine owns the session registry, the waiting pool and
// the room table; connections feed it through channels.
package chathub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"anonchat/backend/internal/config"
	"anonchat/backend/internal/localization"
	"anonchat/backend/internal/metrics"
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/storage"

	"go.uber.org/zap"
)

// Options configures a ManagerService. Nil collaborators are replaced by
// no-op or default implementations.
type Options struct {
	GreetingDelay    time.Duration
	SyntheticPartner bool

	Persister storage.Persister
	Localizer *localization.Localizer
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// ManagerService is the hub. Every field below the channels is touched only
// by the Run goroutine.
type ManagerService struct {
	RegisterCh   chan Client
	UnregisterCh chan Client
	IncomingCh   chan models.InboundEvent

	greetingCh chan greetingTick
	queryCh    chan func()
	done       chan struct{}

	clients   map[string]Client // by connection ID
	sessionOf map[string]string // connection ID -> session ID
	connOf    map[string]string // session ID -> connection ID

	sessions  *sessionRegistry
	waiting   *waitingPool
	rooms     *roomTable
	greetings *greetingScheduler

	opts      Options
	persister storage.Persister
	localizer *localization.Localizer
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewManagerService(opts Options) *ManagerService {
	if opts.GreetingDelay <= 0 {
		opts.GreetingDelay = config.DefaultGreetingDelay
	}
	if opts.Persister == nil {
		opts.Persister = storage.NopPersister{}
	}
	if opts.Localizer == nil {
		opts.Localizer = localization.MustNewLocalizer()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	m := &ManagerService{
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		IncomingCh:   make(chan models.InboundEvent),
		greetingCh:   make(chan greetingTick),
		queryCh:      make(chan func()),
		done:         make(chan struct{}),
		clients:      make(map[string]Client),
		sessionOf:    make(map[string]string),
		connOf:       make(map[string]string),
		sessions:     newSessionRegistry(),
		waiting:      newWaitingPool(),
		rooms:        newRoomTable(),
		opts:         opts,
		persister:    opts.Persister,
		localizer:    opts.Localizer,
		metrics:      opts.Metrics,
		logger:       opts.Logger.Named("chathub"),
		now:          time.Now,
	}
	m.greetings = newGreetingScheduler(opts.GreetingDelay, m.postGreeting)
	return m
}

// Run processes hub events until ctx is cancelled. On return every client
// is closed and later calls fail with ErrHubStopped.
func (m *ManagerService) Run(ctx context.Context) {
	m.logger.Info("chat hub started",
		zap.Bool("synthetic_partner", m.opts.SyntheticPartner),
		zap.Duration("greeting_delay", m.opts.GreetingDelay))
	defer m.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-m.RegisterCh:
			m.handleRegister(client)
		case client := <-m.UnregisterCh:
			m.handleUnregister(client)
		case ev := <-m.IncomingCh:
			m.handleIncoming(ev)
		case tick := <-m.greetingCh:
			m.deliverGreeting(tick)
		case query := <-m.queryCh:
			query()
		}
		m.metrics.SetPresence(m.sessions.Len(), m.waiting.Len(), m.rooms.Len())
	}
}

func (m *ManagerService) shutdown() {
	close(m.done)
	m.greetings.stopAll()
	for id, client := range m.clients {
		client.Close()
		delete(m.clients, id)
	}
	m.logger.Info("chat hub stopped")
}

// Done is closed when Run returns.
func (m *ManagerService) Done() <-chan struct{} {
	return m.done
}

// Register hands a new connection to the hub. It reports false if the hub
// has stopped.
func (m *ManagerService) Register(c Client) bool {
	select {
	case m.RegisterCh <- c:
		return true
	case <-m.done:
		return false
	}
}

func (m *ManagerService) Unregister(c Client) {
	select {
	case m.UnregisterCh <- c:
	case <-m.done:
	}
}

// Dispatch hands an inbound event to the hub. It reports false if the hub
// has stopped.
func (m *ManagerService) Dispatch(ev models.InboundEvent) bool {
	select {
	case m.IncomingCh <- ev:
		return true
	case <-m.done:
		return false
	}
}

func (m *ManagerService) postGreeting(tick greetingTick) {
	select {
	case m.greetingCh <- tick:
	case <-m.done:
	}
}

// query runs fn on the hub goroutine and waits for it to finish.
func (m *ManagerService) query(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	select {
	case m.queryCh <- func() { fn(); close(finished) }:
	case <-m.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// Stats returns the current sizes of the hub's tables.
func (m *ManagerService) Stats(ctx context.Context) (models.HubStats, error) {
	var stats models.HubStats
	err := m.query(ctx, func() {
		stats = models.HubStats{
			ActiveSessions:  m.sessions.Len(),
			WaitingSessions: m.waiting.Len(),
			ActiveRooms:     m.rooms.Len(),
			Connections:     len(m.clients),
			Timestamp:       m.now(),
		}
	})
	return stats, err
}

// Lookup returns a copy of the session.
func (m *ManagerService) Lookup(ctx context.Context, sessionID string) (models.ParticipantSession, error) {
	var (
		session   models.ParticipantSession
		lookupErr error
	)
	if err := m.query(ctx, func() { session, lookupErr = m.sessions.Lookup(sessionID) }); err != nil {
		return models.ParticipantSession{}, err
	}
	return session, lookupErr
}

// Rooms lists the Active rooms, oldest first.
func (m *ManagerService) Rooms(ctx context.Context) ([]models.RoomSummary, error) {
	var rooms []models.RoomSummary
	err := m.query(ctx, func() { rooms = m.rooms.summaries() })
	return rooms, err
}

// MembersOf returns the real members of an Active room, or nil if the room
// is not Active.
func (m *ManagerService) MembersOf(ctx context.Context, roomID string) ([]string, error) {
	var members []string
	err := m.query(ctx, func() {
		if r, ok := m.rooms.get(roomID); ok && r.Status == RoomActive {
			members = r.Members()
		}
	})
	return members, err
}

func (m *ManagerService) handleRegister(c Client) {
	m.clients[c.GetConnID()] = c
	m.logger.Debug("client registered", zap.String("conn_id", c.GetConnID()))
}

// handleUnregister unbinds the connection first so that teardown never
// addresses the departing client, then removes its session.
func (m *ManagerService) handleUnregister(c Client) {
	connID := c.GetConnID()
	if _, ok := m.clients[connID]; !ok {
		return
	}
	delete(m.clients, connID)
	if sessionID, ok := m.sessionOf[connID]; ok {
		delete(m.sessionOf, connID)
		delete(m.connOf, sessionID)
		m.removeSession(sessionID)
	}
	c.Close()
	m.logger.Debug("client unregistered", zap.String("conn_id", connID))
}

// removeSession deletes the session, evicts it from the waiting pool and
// closes its room. No other path removes sessions.
func (m *ManagerService) removeSession(sessionID string) {
	session, ok := m.sessions.Remove(sessionID)
	if !ok {
		return
	}
	m.leaveWaiting(sessionID)
	if session.State == models.StateInRoom {
		m.closeRoom(session.RoomID, session)
	}
	m.persister.UserLeft(sessionID, m.now())
	m.logger.Info("session removed", zap.String("session_id", sessionID))
}

func (m *ManagerService) handleIncoming(ev models.InboundEvent) {
	if _, ok := m.clients[ev.ConnID]; !ok {
		m.logger.Debug("event from unknown connection dropped", zap.String("conn_id", ev.ConnID))
		return
	}
	if ev.Malformed {
		m.replyError(ev.ConnID, errBadPayload)
		return
	}
	if ev.Type == models.EventJoin {
		if err := m.handleJoin(ev); err != nil {
			m.replyError(ev.ConnID, err)
		}
		return
	}

	sessionID, ok := m.sessionOf[ev.ConnID]
	if !ok {
		m.logger.Debug("event before join dropped",
			zap.String("conn_id", ev.ConnID), zap.String("type", ev.Type),
			zap.Error(ErrSessionNotFound))
		return
	}

	var err error
	switch ev.Type {
	case models.EventFindNewChat:
		err = m.handleFindNewChat(sessionID)
	case models.EventSendMessage:
		var p models.SendMessagePayload
		if err = decodePayload(ev.Payload, &p); err == nil {
			_, err = m.postMessage(sessionID, ev.RoomID, p.Body, nil)
		}
	case models.EventShareMedia:
		var p models.ShareMediaPayload
		if err = decodePayload(ev.Payload, &p); err == nil {
			_, err = m.shareMedia(sessionID, ev.RoomID, p)
		}
	case models.EventTyping:
		var p models.TypingPayload
		if err = decodePayload(ev.Payload, &p); err == nil {
			if typingErr := m.postTyping(sessionID, ev.RoomID, p.IsTyping); typingErr != nil {
				m.logger.Debug("typing indicator dropped", zap.String("session_id", sessionID), zap.Error(typingErr))
			}
		}
	default:
		kind, isSignal := SignalKindFor(ev.Type)
		if !isSignal {
			err = fmt.Errorf("%q: %w", ev.Type, errUnknownEvent)
			break
		}
		if signalErr := m.relaySignal(kind, sessionID, ev.RoomID, ev.Payload); signalErr != nil {
			m.logger.Info("stale signal dropped",
				zap.String("session_id", sessionID), zap.String("kind", string(kind)), zap.Error(signalErr))
		}
	}

	if err != nil {
		m.replyError(ev.ConnID, err)
	}
}

func (m *ManagerService) handleJoin(ev models.InboundEvent) error {
	if _, joined := m.sessionOf[ev.ConnID]; joined {
		return ErrAlreadyJoined
	}
	var p models.JoinPayload
	if err := decodePayload(ev.Payload, &p); err != nil {
		return err
	}

	session := m.sessions.Register(p, m.now())
	m.sessionOf[ev.ConnID] = session.SessionID
	m.connOf[session.SessionID] = ev.ConnID

	m.send(session.SessionID, models.OutboundEvent{
		Type: models.EventJoined,
		Payload: models.JoinedPayload{
			SessionID:   session.SessionID,
			DisplayName: session.Profile.DisplayName,
			AvatarRef:   session.Profile.AvatarRef,
			Gender:      session.Profile.Gender,
			LookingFor:  session.Profile.LookingFor,
			Interests:   session.Profile.Interests,
		},
	})
	m.persister.UserJoined(session)
	m.logger.Info("session joined",
		zap.String("session_id", session.SessionID),
		zap.String("gender", string(session.Profile.Gender)),
		zap.Int("interests", len(session.Profile.Interests)))

	m.enterWaiting(session.SessionID)
	m.findMatch(session.SessionID)
	return nil
}

// handleFindNewChat leaves the current room, if any, and runs a match pass.
func (m *ManagerService) handleFindNewChat(sessionID string) error {
	session, err := m.sessions.Lookup(sessionID)
	if err != nil {
		return err
	}
	switch session.State {
	case models.StateInRoom:
		m.closeRoom(session.RoomID, session)
		m.enterWaiting(sessionID)
	case models.StateIdle:
		m.enterWaiting(sessionID)
	}
	m.findMatch(sessionID)
	return nil
}

func (m *ManagerService) enterWaiting(sessionID string) {
	err := m.sessions.Update(sessionID, func(s *models.ParticipantSession) {
		s.State = models.StateWaiting
		s.RoomID = ""
	})
	if err != nil {
		return
	}
	if m.waiting.Enqueue(sessionID) {
		m.persister.WaitingChanged(sessionID, true)
	}
}

// leaveWaiting dequeues the session. The caller sets the next state.
func (m *ManagerService) leaveWaiting(sessionID string) {
	if m.waiting.Dequeue(sessionID) {
		m.persister.WaitingChanged(sessionID, false)
	}
}

// send delivers ev to the session's connection without blocking. A full
// send buffer drops the event for that client.
func (m *ManagerService) send(sessionID string, ev models.OutboundEvent) {
	connID, ok := m.connOf[sessionID]
	if !ok {
		return
	}
	m.sendToConn(connID, ev)
}

func (m *ManagerService) sendToConn(connID string, ev models.OutboundEvent) {
	client, ok := m.clients[connID]
	if !ok {
		return
	}
	select {
	case client.GetSendChannel() <- ev:
	default:
		m.metrics.OutboundDropped(ev.Type)
		m.logger.Warn("client send buffer full, event dropped",
			zap.String("conn_id", connID), zap.String("type", ev.Type))
	}
}

func (m *ManagerService) replyError(connID string, err error) {
	lang := config.DefaultLanguage
	if sessionID, ok := m.sessionOf[connID]; ok {
		lang = m.languageOf(sessionID)
	}
	m.logger.Debug("event rejected", zap.String("conn_id", connID), zap.Error(err))
	m.sendToConn(connID, models.OutboundEvent{
		Type:    models.EventError,
		Payload: models.ErrorPayload{Message: m.localizer.GetString(lang, errorKey(err))},
	})
}

func (m *ManagerService) languageOf(sessionID string) string {
	if s, ok := m.sessions.peek(sessionID); ok && s.Profile.Language != "" {
		return s.Profile.Language
	}
	return config.DefaultLanguage
}

func errorKey(err error) string {
	switch {
	case errors.Is(err, ErrNotInRoom):
		return localization.KeyNotInRoom
	case errors.Is(err, ErrEmptyMessage):
		return localization.KeyEmptyMessage
	case errors.Is(err, ErrInvalidMediaKind):
		return localization.KeyInvalidMedia
	case errors.Is(err, ErrAlreadyJoined):
		return localization.KeyAlreadyJoined
	case errors.Is(err, errUnknownEvent):
		return localization.KeyUnknownEvent
	default:
		return localization.KeyBadPayload
	}
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %w", errBadPayload, err)
	}
	return nil
}

func zapRoom(r *Room) []zap.Field {
	_, synthetic := r.Synthetic()
	return []zap.Field{
		zap.String("room_id", r.ID),
		zap.Strings("members", r.Members()),
		zap.Bool("synthetic", synthetic),
	}
}
