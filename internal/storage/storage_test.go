package storage_test

import (
	"anonchat/backend/internal/config"
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/storage"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, storage.Migrate(db))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return rdb, mr
}

func TestService_UserLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := storage.NewStorageService(db, nil, config.RedisConfig{})

	user := &models.User{ID: "s-1", DisplayName: "Ann", Gender: "female", IsOnline: true, JoinedAt: time.Now()}
	require.NoError(t, svc.SaveUser(ctx, user))

	left := time.Now()
	require.NoError(t, svc.MarkUserOffline(ctx, "s-1", left))

	var got models.User
	require.NoError(t, db.First(&got, "id = ?", "s-1").Error)
	assert.False(t, got.IsOnline)
	require.NotNil(t, got.DisconnectedAt)
	assert.WithinDuration(t, left, *got.DisconnectedAt, time.Second)
}

func TestService_RoomLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := storage.NewStorageService(newTestDB(t), nil, config.RedisConfig{})

	room := &models.ChatRoom{RoomID: "room_a_b", User1ID: "a", User2ID: "b", IsActive: true, StartedAt: time.Now()}
	require.NoError(t, svc.SaveRoom(ctx, room))
	require.NoError(t, svc.SaveRoom(ctx, &models.ChatRoom{RoomID: "room_c_d", User1ID: "c", User2ID: "d", IsActive: true, StartedAt: time.Now()}))

	active, err := svc.GetActiveRooms(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	require.NoError(t, svc.CloseRoom(ctx, "room_a_b", time.Now()))

	active, err = svc.GetActiveRooms(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "room_c_d", active[0].RoomID)

	closed, err := svc.GetRoomByID(ctx, "room_a_b")
	require.NoError(t, err)
	assert.False(t, closed.IsActive)
	assert.NotNil(t, closed.EndedAt)

	_, err = svc.GetRoomByID(ctx, "room_x_y")
	assert.ErrorIs(t, err, storage.ErrRoomNotFound)
}

func TestService_ChatHistoryOrdered(t *testing.T) {
	ctx := context.Background()
	svc := storage.NewStorageService(newTestDB(t), nil, config.RedisConfig{})

	base := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	msgs := []models.RelayMessage{
		{MessageID: "m-2", Seq: 2, RoomID: "room_a_b", SenderSessionID: "b", Body: "second", Timestamp: base.Add(time.Second)},
		{MessageID: "m-1", Seq: 1, RoomID: "room_a_b", SenderSessionID: "a", Body: "first", Timestamp: base},
		{MessageID: "m-3", Seq: 1, RoomID: "room_c_d", SenderSessionID: "c", Body: "other room", Timestamp: base},
		{MessageID: "m-4", Seq: 3, RoomID: "room_a_b", SenderSessionID: "a",
			Media: &models.Media{URL: "/uploads/cat.png", Kind: models.MediaImage, FileName: "cat.png"}, Timestamp: base.Add(2 * time.Second)},
	}
	for _, m := range msgs {
		require.NoError(t, svc.SaveMessage(ctx, m.History()))
	}

	history, err := svc.GetChatHistory(ctx, "room_a_b")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "first", history[0].Body)
	assert.Equal(t, "second", history[1].Body)
	assert.Equal(t, "/uploads/cat.png", history[2].MediaURL)
	assert.Equal(t, "image", history[2].MediaKind)
}

func TestService_WithoutDatabase(t *testing.T) {
	ctx := context.Background()
	svc := storage.NewStorageService(nil, nil, config.RedisConfig{})

	assert.NoError(t, svc.SaveUser(ctx, &models.User{ID: "x"}))
	assert.NoError(t, svc.CloseRoom(ctx, "room_a_b", time.Now()))
	assert.NoError(t, svc.PublishEvent(ctx, storage.RoomEvent{Type: storage.EventMessage}))

	_, err := svc.GetActiveRooms(ctx)
	assert.ErrorIs(t, err, storage.ErrUpstreamUnavailable)
	_, err = svc.GetChatHistory(ctx, "room_a_b")
	assert.ErrorIs(t, err, storage.ErrUpstreamUnavailable)

	users, err := svc.GetSearchingUsers(ctx)
	assert.NoError(t, err)
	assert.Empty(t, users)
	assert.Nil(t, svc.SubscribeEvents(ctx))
}

func TestService_PresenceMirror(t *testing.T) {
	ctx := context.Background()
	rdb, mr := newTestRedis(t)
	svc := storage.NewStorageService(nil, rdb, config.RedisConfig{Prefix: "test"})

	require.NoError(t, svc.SetOnline(ctx, "a", true))
	require.NoError(t, svc.SetOnline(ctx, "b", true))
	require.NoError(t, svc.AddUserToSearchQueue(ctx, "a"))
	require.NoError(t, svc.AddUserToSearchQueue(ctx, "b"))

	waiting, err := svc.GetSearchingUsers(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, waiting)
	assert.True(t, mr.Exists("test:search_queue"))

	require.NoError(t, svc.RemoveUserFromSearchQueue(ctx, "a"))
	require.NoError(t, svc.SetOnline(ctx, "b", false))

	waiting, err = svc.GetSearchingUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, waiting, "going offline also leaves the search queue")

	online, err := svc.CountOnline(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), online)
}

func TestService_PublishEvent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rdb, _ := newTestRedis(t)
	svc := storage.NewStorageService(nil, rdb, config.RedisConfig{Prefix: "test", Channel: "test:events"})

	sub := svc.SubscribeEvents(ctx)
	require.NotNil(t, sub)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	event := storage.RoomEvent{Type: storage.EventRoomOpened, RoomID: "room_a_b", At: time.Now().UTC()}
	require.NoError(t, svc.PublishEvent(ctx, event))

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, "test:events", msg.Channel)
		var got storage.RoomEvent
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, storage.EventRoomOpened, got.Type)
		assert.Equal(t, "room_a_b", got.RoomID)
	case <-ctx.Done():
		t.Fatal("event was not delivered")
	}
}

func TestService_RedisFailureIsUpstreamUnavailable(t *testing.T) {
	ctx := context.Background()
	rdb, mr := newTestRedis(t)
	svc := storage.NewStorageService(nil, rdb, config.RedisConfig{})
	mr.Close()

	err := svc.AddUserToSearchQueue(ctx, "a")
	assert.ErrorIs(t, err, storage.ErrUpstreamUnavailable)
}

func TestOpenDatabase(t *testing.T) {
	db, err := storage.OpenDatabase(config.DatabaseConfig{Driver: "none"})
	assert.NoError(t, err)
	assert.Nil(t, db)

	_, err = storage.OpenDatabase(config.DatabaseConfig{Driver: "mongo"})
	assert.Error(t, err)

	dsn := filepath.Join(t.TempDir(), "data", "chat.db")
	db, err = storage.OpenDatabase(config.DatabaseConfig{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	assert.True(t, db.Migrator().HasTable(&models.ChatHistory{}))
	assert.NoError(t, storage.CloseDatabase(db))
	assert.NoError(t, storage.CloseDatabase(nil))
}

func TestNewRedisClient(t *testing.T) {
	ctx := context.Background()

	rdb, err := storage.NewRedisClient(ctx, config.RedisConfig{Enabled: false})
	assert.NoError(t, err)
	assert.Nil(t, rdb)

	mr := miniredis.RunT(t)
	rdb, err = storage.NewRedisClient(ctx, config.RedisConfig{Enabled: true, Addr: mr.Addr()})
	require.NoError(t, err)
	assert.NoError(t, rdb.Close())
}
