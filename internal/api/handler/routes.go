package handler

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts every endpoint on r.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/ws", h.ServeWebSocket)

	api := r.Group("/api")
	{
		api.GET("/stats", h.Stats)
		api.POST("/upload", h.Upload)
	}

	r.Static(h.cfg.Upload.PublicPrefix, h.cfg.Upload.Dir)

	if h.cfg.Metrics.Enabled && h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics.Handler()))
	}

	admin := r.Group("/admin", RequireAdmin(h.cfg.Admin.JWTSecret))
	{
		admin.GET("/rooms", h.ListRooms)
		admin.GET("/rooms/:roomId/history", h.RoomHistory)
	}
}
