package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wfunc/obscura/internal/game"
	"github.com/wfunc/obscura/internal/middleware"
)

// RollHandler 技能检定处理器
type RollHandler struct {
	rolls    *game.RollService
	identity *middleware.IdentityMiddleware
}

// NewRollHandler 创建检定处理器
func NewRollHandler(rolls *game.RollService, identity *middleware.IdentityMiddleware) *RollHandler {
	return &RollHandler{rolls: rolls, identity: identity}
}

// SkillCheck 技能检定
// @Summary 技能检定
// @Description 未给出 value 时使用角色的技能实时值
// @Tags Roll
// @Accept json
// @Produce json
// @Param id path string true "会话ID"
// @Param request body game.RollRequest true "检定"
// @Success 201 {object} models.ChatMessage
// @Failure 400 {object} errors.ErrorResponse
// @Router /api/v1/sessions/{id}/rolls/skill [post]
func (h *RollHandler) SkillCheck(c *gin.Context) {
	var req game.RollRequest
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.rolls.SkillCheck(c.Request.Context(), h.identity.GetActor(c), sessionID(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, msg)
}

// BonusPenalty 奖惩骰检定
// @Summary 奖惩骰
// @Tags Roll
// @Accept json
// @Produce json
// @Param request body game.RollRequest true "检定"
// @Success 201 {object} models.ChatMessage
// @Router /api/v1/sessions/{id}/rolls/bonus [post]
func (h *RollHandler) BonusPenalty(c *gin.Context) {
	var req game.RollRequest
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.rolls.BonusPenalty(c.Request.Context(), h.identity.GetActor(c), sessionID(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, msg)
}
