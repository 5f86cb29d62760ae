// Package handler is the HTTP surface of the chat server: the websocket
// upgrade, media uploads, stats and the operator endpoints.
package handler

import (
	"context"

	"anonchat/backend/internal/chathub"
	"anonchat/backend/internal/config"
	"anonchat/backend/internal/metrics"
	"anonchat/backend/internal/models"

	"go.uber.org/zap"
)

// HistoryReader is the part of storage the operator endpoints read from.
type HistoryReader interface {
	GetRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error)
	GetChatHistory(ctx context.Context, roomID string) ([]models.ChatHistory, error)
}

// Handler holds the collaborators of every route.
type Handler struct {
	Hub     *chathub.ManagerService
	History HistoryReader
	Metrics *metrics.Metrics

	cfg    *config.Config
	logger *zap.Logger
}

func NewHandler(hub *chathub.ManagerService, history HistoryReader, m *metrics.Metrics, cfg *config.Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Hub:     hub,
		History: history,
		Metrics: m,
		cfg:     cfg,
		logger:  logger.Named("http"),
	}
}
