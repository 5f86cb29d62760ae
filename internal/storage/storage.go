// Package storage is the best-effort persistence side channel of the chat
// hub: gorm keeps users, rooms and message history, Redis mirrors presence
// and publishes room events. Either backend may be absent.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"anonchat/backend/internal/config"
	"anonchat/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var (
	// ErrUpstreamUnavailable wraps every failure of a persistence backend.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrRoomNotFound        = errors.New("chat room not found")
)

type Storage interface {
	SaveUser(ctx context.Context, user *models.User) error
	MarkUserOffline(ctx context.Context, userID string, at time.Time) error
	SaveRoom(ctx context.Context, room *models.ChatRoom) error
	CloseRoom(ctx context.Context, roomID string, at time.Time) error
	SaveMessage(ctx context.Context, history *models.ChatHistory) error

	GetChatHistory(ctx context.Context, roomID string) ([]models.ChatHistory, error)
	GetActiveRooms(ctx context.Context) ([]models.ChatRoom, error)
	GetRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error)

	AddUserToSearchQueue(ctx context.Context, userID string) error
	RemoveUserFromSearchQueue(ctx context.Context, userID string) error
	GetSearchingUsers(ctx context.Context) ([]string, error)
	SetOnline(ctx context.Context, userID string, online bool) error
	CountOnline(ctx context.Context) (int64, error)

	PublishEvent(ctx context.Context, event RoomEvent) error
}

// RoomEvent is the record mirrored to the Redis events channel.
type RoomEvent struct {
	Type      string    `json:"type"`
	RoomID    string    `json:"roomId,omitempty"`
	SessionID string    `json:"sessionId,omitempty"`
	MessageID string    `json:"messageId,omitempty"`
	At        time.Time `json:"at"`
}

const (
	EventRoomOpened = "room-opened"
	EventRoomClosed = "room-closed"
	EventMessage    = "message"
)

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client

	prefix  string
	channel string
}

var _ Storage = (*Service)(nil)

// NewStorageService Constructor. db and rdb may be nil.
func NewStorageService(db *gorm.DB, rdb *redis.Client, cfg config.RedisConfig) *Service {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "anonchat"
	}
	channel := cfg.Channel
	if channel == "" {
		channel = prefix + ":events"
	}
	return &Service{DB: db, Redis: rdb, prefix: prefix, channel: channel}
}

func upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrUpstreamUnavailable, op, err)
}

var errNoDatabase = errors.New("database disabled")

func (s *Service) key(name string) string {
	return s.prefix + ":" + name
}

// SaveUser upserts the user row.
func (s *Service) SaveUser(ctx context.Context, user *models.User) error {
	if s.DB == nil {
		return nil
	}
	return upstream("save user", s.DB.WithContext(ctx).Save(user).Error)
}

// MarkUserOffline flips is_online and stamps disconnected_at.
func (s *Service) MarkUserOffline(ctx context.Context, userID string, at time.Time) error {
	if s.DB == nil {
		return nil
	}
	err := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"is_online":       false,
			"disconnected_at": at,
		}).Error
	return upstream("mark user offline", err)
}

func (s *Service) SaveRoom(ctx context.Context, room *models.ChatRoom) error {
	if s.DB == nil {
		return nil
	}
	return upstream("save room", s.DB.WithContext(ctx).Save(room).Error)
}

// CloseRoom sets IsActive = false and EndedAt = at.
func (s *Service) CloseRoom(ctx context.Context, roomID string, at time.Time) error {
	if s.DB == nil {
		return nil
	}
	err := s.DB.WithContext(ctx).Model(&models.ChatRoom{}).
		Where("room_id = ?", roomID).
		Updates(map[string]interface{}{
			"is_active": false,
			"ended_at":  at,
		}).Error
	return upstream("close room", err)
}

func (s *Service) SaveMessage(ctx context.Context, history *models.ChatHistory) error {
	if s.DB == nil {
		return nil
	}
	return upstream("save message", s.DB.WithContext(ctx).Create(history).Error)
}

// GetChatHistory returns the room's messages in relay order.
func (s *Service) GetChatHistory(ctx context.Context, roomID string) ([]models.ChatHistory, error) {
	if s.DB == nil {
		return nil, upstream("get chat history", errNoDatabase)
	}
	var history []models.ChatHistory
	err := s.DB.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("sent_at asc, seq asc").
		Find(&history).Error
	if err != nil {
		return nil, upstream("get chat history", err)
	}
	return history, nil
}

func (s *Service) GetActiveRooms(ctx context.Context) ([]models.ChatRoom, error) {
	if s.DB == nil {
		return nil, upstream("get active rooms", errNoDatabase)
	}
	var rooms []models.ChatRoom
	err := s.DB.WithContext(ctx).
		Where("is_active = ?", true).
		Order("started_at asc").
		Find(&rooms).Error
	if err != nil {
		return nil, upstream("get active rooms", err)
	}
	return rooms, nil
}

func (s *Service) GetRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	if s.DB == nil {
		return nil, upstream("get room", errNoDatabase)
	}
	var room models.ChatRoom
	err := s.DB.WithContext(ctx).Where("room_id = ?", roomID).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, upstream("get room", err)
	}
	return &room, nil
}

// AddUserToSearchQueue mirrors a session entering the waiting pool.
func (s *Service) AddUserToSearchQueue(ctx context.Context, userID string) error {
	if s.Redis == nil {
		return nil
	}
	return upstream("add to search queue", s.Redis.SAdd(ctx, s.key("search_queue"), userID).Err())
}

func (s *Service) RemoveUserFromSearchQueue(ctx context.Context, userID string) error {
	if s.Redis == nil {
		return nil
	}
	return upstream("remove from search queue", s.Redis.SRem(ctx, s.key("search_queue"), userID).Err())
}

// GetSearchingUsers returns every session mirrored as waiting.
func (s *Service) GetSearchingUsers(ctx context.Context) ([]string, error) {
	if s.Redis == nil {
		return nil, nil
	}
	users, err := s.Redis.SMembers(ctx, s.key("search_queue")).Result()
	if err != nil {
		return nil, upstream("get searching users", err)
	}
	return users, nil
}

func (s *Service) SetOnline(ctx context.Context, userID string, online bool) error {
	if s.Redis == nil {
		return nil
	}
	if online {
		return upstream("set online", s.Redis.SAdd(ctx, s.key("online"), userID).Err())
	}
	pipe := s.Redis.TxPipeline()
	pipe.SRem(ctx, s.key("online"), userID)
	pipe.SRem(ctx, s.key("search_queue"), userID)
	_, err := pipe.Exec(ctx)
	return upstream("set offline", err)
}

func (s *Service) CountOnline(ctx context.Context) (int64, error) {
	if s.Redis == nil {
		return 0, nil
	}
	n, err := s.Redis.SCard(ctx, s.key("online")).Result()
	if err != nil {
		return 0, upstream("count online", err)
	}
	return n, nil
}

// PublishEvent publishes the event as JSON on the events channel.
func (s *Service) PublishEvent(ctx context.Context, event RoomEvent) error {
	if s.Redis == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return upstream("publish event", s.Redis.Publish(ctx, s.channel, payload).Err())
}

// SubscribeEvents subscribes to the events channel. The caller closes the
// returned PubSub. Returns nil when Redis is disabled.
func (s *Service) SubscribeEvents(ctx context.Context) *redis.PubSub {
	if s.Redis == nil {
		return nil
	}
	return s.Redis.Subscribe(ctx, s.channel)
}
