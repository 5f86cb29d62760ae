package handler

import (
	"errors"
	"net/http"

	"anonchat/backend/internal/chathub"
	"anonchat/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Stats reports the hub's live table sizes.
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.Hub.Stats(c.Request.Context())
	if err != nil {
		hubUnavailable(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ListRooms lists the rooms that are Active right now.
func (h *Handler) ListRooms(c *gin.Context) {
	rooms, err := h.Hub.Rooms(c.Request.Context())
	if err != nil {
		hubUnavailable(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms, "count": len(rooms)})
}

// RoomHistory returns the persisted record and messages of a room.
func (h *Handler) RoomHistory(c *gin.Context) {
	roomID := c.Param("roomId")
	if h.History == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history is not available"})
		return
	}

	room, err := h.History.GetRoomByID(c.Request.Context(), roomID)
	if err != nil {
		h.historyError(c, roomID, err)
		return
	}
	messages, err := h.History.GetChatHistory(c.Request.Context(), roomID)
	if err != nil {
		h.historyError(c, roomID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room, "messages": messages})
}

func (h *Handler) historyError(c *gin.Context, roomID string, err error) {
	switch {
	case errors.Is(err, storage.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
	case errors.Is(err, storage.ErrUpstreamUnavailable):
		h.logger.Warn("history unavailable", zap.String("room_id", roomID), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history is not available"})
	default:
		h.logger.Error("history lookup failed", zap.String("room_id", roomID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func hubUnavailable(c *gin.Context, err error) {
	if errors.Is(err, chathub.ErrHubStopped) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat hub is stopped"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
