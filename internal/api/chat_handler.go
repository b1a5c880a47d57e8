package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wfunc/obscura/internal/errors"
	"github.com/wfunc/obscura/internal/game"
	"github.com/wfunc/obscura/internal/middleware"
	"github.com/wfunc/obscura/internal/models"
)

// 发言频道
const (
	ChannelTable = ""    // 按指令或扮演角色发言
	ChannelOOC   = "ooc" // 场外
	ChannelIC    = "ic"  // 场内
)

// ChatHandler 聊天处理器
type ChatHandler struct {
	chat     *game.ChatService
	identity *middleware.IdentityMiddleware
}

// NewChatHandler 创建聊天处理器
func NewChatHandler(chat *game.ChatService, identity *middleware.IdentityMiddleware) *ChatHandler {
	return &ChatHandler{chat: chat, identity: identity}
}

// SendRequest 发言
type SendRequest struct {
	Text    string `json:"text"`
	Channel string `json:"channel"`
}

// DiceRequest 自由骰
type DiceRequest struct {
	Expression string `json:"expression"`
	OOC        bool   `json:"ooc"`
}

// ImageRequest 图片
type ImageRequest struct {
	Data string `json:"data"`
}

// Recent 最近的聊天记录，按时间升序
// @Summary 聊天记录
// @Tags Chat
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {array} models.ChatMessage
// @Router /api/v1/sessions/{id}/chat [get]
func (h *ChatHandler) Recent(c *gin.Context) {
	msgs, err := h.chat.Recent(c.Request.Context(), sessionID(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, msgs)
}

// Send 发言
// @Summary 发言
// @Description channel 为空时解析 /r、/html 等指令；ooc 为场外聊天；ic 为场内发言
// @Tags Chat
// @Accept json
// @Produce json
// @Param id path string true "会话ID"
// @Param X-Acting-Character header string false "扮演角色ID"
// @Param request body SendRequest true "发言"
// @Success 201 {object} models.ChatMessage
// @Router /api/v1/sessions/{id}/chat [post]
func (h *ChatHandler) Send(c *gin.Context) {
	var req SendRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx, actor, sid := c.Request.Context(), h.identity.GetActor(c), sessionID(c)
	var (
		msg *models.ChatMessage
		err error
	)
	switch req.Channel {
	case ChannelTable:
		msg, err = h.chat.Send(ctx, actor, sid, req.Text)
	case ChannelOOC:
		msg, err = h.chat.SendOOC(ctx, actor, sid, req.Text)
	case ChannelIC:
		msg, err = h.chat.SendIC(ctx, actor, sid, req.Text)
	default:
		err = errors.Newf(errors.ErrInvalidParam, "未知频道: %s", req.Channel)
	}
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, msg)
}

// RollDice 自由骰
// @Summary 掷骰
// @Tags Chat
// @Accept json
// @Produce json
// @Param request body DiceRequest true "表达式"
// @Success 201 {object} models.ChatMessage
// @Router /api/v1/sessions/{id}/chat/dice [post]
func (h *ChatHandler) RollDice(c *gin.Context) {
	var req DiceRequest
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.chat.RollDice(c.Request.Context(), h.identity.GetActor(c), sessionID(c), req.Expression, req.OOC)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, msg)
}

// SendImage 发送图片
// @Summary 发送图片
// @Tags Chat
// @Router /api/v1/sessions/{id}/chat/image [post]
func (h *ChatHandler) SendImage(c *gin.Context) {
	var req ImageRequest
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.chat.SendImage(c.Request.Context(), sessionID(c), req.Data)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, msg)
}

// Export 导出聊天记录为独立 HTML
// @Summary 导出日志
// @Tags Chat
// @Produce html
// @Param id path string true "会话ID"
// @Success 200 {string} string "HTML"
// @Router /api/v1/sessions/{id}/chat/export [get]
func (h *ChatHandler) Export(c *gin.Context) {
	sid := sessionID(c)
	out, err := h.chat.ExportLog(c.Request.Context(), sid)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "obscura-log-"+sid+".html"))
	c.Data(http.StatusOK, "text/html; charset=utf-8", out)
}
