package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wfunc/obscura/internal/game"
	"github.com/wfunc/obscura/internal/logger"
	"github.com/wfunc/obscura/internal/middleware"
	"github.com/wfunc/obscura/internal/websocket"
)

// WebSocketHandler WebSocket接入
type WebSocketHandler struct {
	hub      *websocket.Hub
	sessions *game.SessionService
	identity *middleware.IdentityMiddleware
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(hub *websocket.Hub, sessions *game.SessionService, identity *middleware.IdentityMiddleware) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, sessions: sessions, identity: identity}
}

// Connect 加入会话的实时连接，会话不存在时不升级
// @Summary WebSocket连接
// @Description 浏览器通过 ?token= 传递身份令牌
// @Tags WebSocket
// @Param id path string true "会话ID"
// @Param token query string false "身份令牌"
// @Router /api/v1/sessions/{id}/ws [get]
func (h *WebSocketHandler) Connect(c *gin.Context) {
	sid := sessionID(c)
	if _, err := h.sessions.JoinSession(c.Request.Context(), sid); err != nil {
		fail(c, err)
		return
	}

	if _, err := h.hub.Serve(c.Writer, c.Request, sid, h.identity.GetActor(c)); err != nil {
		// 升级失败时 gorilla 已写入响应
		logger.WithModule(logger.ModuleWebSocket).Warn("WebSocket升级失败",
			zap.String("session_id", sid),
			zap.Error(err))
	}
}
