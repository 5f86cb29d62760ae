package storage

import (
	"context"
	"time"

	"anonchat/backend/internal/metrics"
	"anonchat/backend/internal/models"

	"go.uber.org/zap"
)

// Persister receives hub state changes. Implementations must not block.
type Persister interface {
	UserJoined(session models.ParticipantSession)
	UserLeft(sessionID string, at time.Time)
	WaitingChanged(sessionID string, waiting bool)
	RoomOpened(room models.ChatRoom)
	RoomClosed(roomID string, at time.Time)
	MessageRelayed(msg models.RelayMessage)
}

// NopPersister discards everything.
type NopPersister struct{}

func (NopPersister) UserJoined(models.ParticipantSession) {}
func (NopPersister) UserLeft(string, time.Time)           {}
func (NopPersister) WaitingChanged(string, bool)          {}
func (NopPersister) RoomOpened(models.ChatRoom)           {}
func (NopPersister) RoomClosed(string, time.Time)         {}
func (NopPersister) MessageRelayed(models.RelayMessage)   {}

const defaultJobTimeout = 5 * time.Second

type job struct {
	name string
	run  func(ctx context.Context) error
}

// AsyncWriter turns Persister calls into queued Storage writes executed by
// Run. A full queue drops the write.
type AsyncWriter struct {
	store   Storage
	queue   chan job
	metrics *metrics.Metrics
	logger  *zap.Logger
	timeout time.Duration
}

var _ Persister = (*AsyncWriter)(nil)

func NewAsyncWriter(store Storage, size int, m *metrics.Metrics, logger *zap.Logger) *AsyncWriter {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AsyncWriter{
		store:   store,
		queue:   make(chan job, size),
		metrics: m,
		logger:  logger.Named("storage.async"),
		timeout: defaultJobTimeout,
	}
}

// Run executes queued writes until ctx is cancelled, then drains what is
// already queued.
func (w *AsyncWriter) Run(ctx context.Context) {
	for {
		select {
		case j := <-w.queue:
			w.exec(ctx, j)
		case <-ctx.Done():
			w.drain()
			return
		}
	}
}

func (w *AsyncWriter) drain() {
	for {
		select {
		case j := <-w.queue:
			w.exec(context.Background(), j)
		default:
			return
		}
	}
}

func (w *AsyncWriter) exec(ctx context.Context, j job) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	defer cancel()
	if err := j.run(ctx); err != nil {
		w.metrics.PersistenceDropped()
		w.logger.Warn("persistence write failed", zap.String("job", j.name), zap.Error(err))
	}
}

func (w *AsyncWriter) enqueue(name string, run func(ctx context.Context) error) {
	select {
	case w.queue <- job{name: name, run: run}:
	default:
		w.metrics.PersistenceDropped()
		w.logger.Warn("persistence queue full, dropping write", zap.String("job", name))
	}
}

func (w *AsyncWriter) UserJoined(session models.ParticipantSession) {
	user := models.UserFromSession(session)
	w.enqueue("user-joined", func(ctx context.Context) error {
		if err := w.store.SaveUser(ctx, user); err != nil {
			return err
		}
		return w.store.SetOnline(ctx, user.ID, true)
	})
}

func (w *AsyncWriter) UserLeft(sessionID string, at time.Time) {
	w.enqueue("user-left", func(ctx context.Context) error {
		if err := w.store.MarkUserOffline(ctx, sessionID, at); err != nil {
			return err
		}
		return w.store.SetOnline(ctx, sessionID, false)
	})
}

func (w *AsyncWriter) WaitingChanged(sessionID string, waiting bool) {
	w.enqueue("waiting-changed", func(ctx context.Context) error {
		if waiting {
			return w.store.AddUserToSearchQueue(ctx, sessionID)
		}
		return w.store.RemoveUserFromSearchQueue(ctx, sessionID)
	})
}

func (w *AsyncWriter) RoomOpened(room models.ChatRoom) {
	w.enqueue("room-opened", func(ctx context.Context) error {
		if err := w.store.SaveRoom(ctx, &room); err != nil {
			return err
		}
		return w.store.PublishEvent(ctx, RoomEvent{Type: EventRoomOpened, RoomID: room.RoomID, At: room.StartedAt})
	})
}

func (w *AsyncWriter) RoomClosed(roomID string, at time.Time) {
	w.enqueue("room-closed", func(ctx context.Context) error {
		if err := w.store.CloseRoom(ctx, roomID, at); err != nil {
			return err
		}
		return w.store.PublishEvent(ctx, RoomEvent{Type: EventRoomClosed, RoomID: roomID, At: at})
	})
}

func (w *AsyncWriter) MessageRelayed(msg models.RelayMessage) {
	history := msg.History()
	w.enqueue("message-relayed", func(ctx context.Context) error {
		if err := w.store.SaveMessage(ctx, history); err != nil {
			return err
		}
		return w.store.PublishEvent(ctx, RoomEvent{
			Type:      EventMessage,
			RoomID:    msg.RoomID,
			SessionID: msg.SenderSessionID,
			MessageID: msg.MessageID,
			At:        msg.Timestamp,
		})
	})
}
