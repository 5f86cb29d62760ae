package chathub

import (
	"fmt"
	"strings"

	"anonchat/backend/internal/localization"
	"anonchat/backend/internal/models"

	"github.com/google/uuid"
)

// activeRoomOf returns the room senderID is in, provided it is roomID.
func (m *ManagerService) activeRoomOf(senderID, roomID string) (*models.ParticipantSession, *Room, error) {
	sender, ok := m.sessions.peek(senderID)
	if !ok {
		return nil, nil, fmt.Errorf("sender %s: %w", senderID, ErrSessionNotFound)
	}
	if sender.State != models.StateInRoom || sender.RoomID != roomID {
		return nil, nil, fmt.Errorf("room %q: %w", roomID, ErrNotInRoom)
	}
	room, ok := m.rooms.get(roomID)
	if !ok || room.Status != RoomActive {
		return nil, nil, fmt.Errorf("room %q: %w", roomID, ErrNotInRoom)
	}
	return sender, room, nil
}

// postMessage relays a chat message to every real member of the room,
// sender included. Body is required unless media is attached.
func (m *ManagerService) postMessage(senderID, roomID, body string, media *models.Media) (models.RelayMessage, error) {
	sender, room, err := m.activeRoomOf(senderID, roomID)
	if err != nil {
		return models.RelayMessage{}, err
	}
	if media == nil && strings.TrimSpace(body) == "" {
		return models.RelayMessage{}, ErrEmptyMessage
	}

	msg := m.newMessage(room, senderID, sender.Profile, body, media)
	m.broadcast(room, msg)

	kind := "text"
	if media != nil {
		kind = string(media.Kind)
	}
	m.metrics.MessageRelayed(kind)
	return msg, nil
}

// shareMedia relays a media message. An empty caption becomes the
// localized "Shared a <kind>" text.
func (m *ManagerService) shareMedia(senderID, roomID string, p models.ShareMediaPayload) (models.RelayMessage, error) {
	kind, ok := models.ParseMediaKind(p.MediaKind)
	if !ok {
		return models.RelayMessage{}, fmt.Errorf("%q: %w", p.MediaKind, ErrInvalidMediaKind)
	}
	if strings.TrimSpace(p.MediaURL) == "" {
		return models.RelayMessage{}, fmt.Errorf("media url: %w", errBadPayload)
	}
	body := p.Body
	if strings.TrimSpace(body) == "" {
		lang := m.languageOf(senderID)
		body = m.localizer.Format(lang, localization.KeyMediaCaption, map[string]any{"Kind": string(kind)})
	}
	return m.postMessage(senderID, roomID, body, &models.Media{
		URL:      p.MediaURL,
		Kind:     kind,
		FileName: p.FileName,
	})
}

// postTyping forwards a typing indicator to the other real member only.
func (m *ManagerService) postTyping(senderID, roomID string, isTyping bool) error {
	sender, room, err := m.activeRoomOf(senderID, roomID)
	if err != nil {
		return err
	}
	other, _ := room.Other(senderID)
	if other.IsSynthetic() {
		return nil
	}
	m.send(other.SessionID, models.OutboundEvent{
		Type:   models.EventPeerTyping,
		RoomID: roomID,
		Payload: models.PeerTypingPayload{
			SenderSessionID: senderID,
			DisplayName:     sender.Profile.DisplayName,
			IsTyping:        isTyping,
		},
	})
	return nil
}

func (m *ManagerService) newMessage(room *Room, senderID string, sender models.Profile, body string, media *models.Media) models.RelayMessage {
	seq := room.nextSeq()
	return models.RelayMessage{
		MessageID:       fmt.Sprintf("%s-%d", uuid.NewString(), seq),
		Seq:             seq,
		RoomID:          room.ID,
		SenderSessionID: senderID,
		DisplayName:     sender.DisplayName,
		AvatarRef:       sender.AvatarRef,
		Body:            body,
		Media:           media,
		Timestamp:       m.now(),
	}
}

// broadcast sends msg to the room's real members and hands it to the
// persister.
func (m *ManagerService) broadcast(room *Room, msg models.RelayMessage) {
	for _, member := range room.Members() {
		m.send(member, models.OutboundEvent{
			Type:    models.EventMessage,
			RoomID:  room.ID,
			Payload: msg,
		})
	}
	m.persister.MessageRelayed(msg)
}

// deliverGreeting sends the synthetic partner's greeting if the room it was
// scheduled for is still Active.
func (m *ManagerService) deliverGreeting(tick greetingTick) {
	if !m.greetings.take(tick) {
		return
	}
	room, ok := m.rooms.get(tick.roomID)
	if !ok || room.Status != RoomActive {
		return
	}
	bot, ok := room.Synthetic()
	if !ok {
		return
	}
	other, _ := room.Other(bot.SessionID)
	member, ok := m.sessions.peek(other.SessionID)
	if !ok {
		return
	}

	body := m.localizer.Format(member.Profile.Language, localization.KeyGreeting, map[string]any{
		"Name": member.Profile.DisplayName,
	})
	m.broadcast(room, m.newMessage(room, bot.SessionID, syntheticProfile(), body, nil))
	m.metrics.MessageRelayed("greeting")
}
