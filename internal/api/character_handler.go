package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wfunc/obscura/internal/game"
	"github.com/wfunc/obscura/internal/middleware"
)

// CharacterHandler 角色卡处理器
type CharacterHandler struct {
	characters *game.CharacterService
	identity   *middleware.IdentityMiddleware
}

// NewCharacterHandler 创建角色卡处理器
func NewCharacterHandler(characters *game.CharacterService, identity *middleware.IdentityMiddleware) *CharacterHandler {
	return &CharacterHandler{characters: characters, identity: identity}
}

// CreateCharacterRequest 新建角色
type CreateCharacterRequest struct {
	Name string `json:"name"`
}

// OverrideRequest KP覆盖只读字段
type OverrideRequest struct {
	Field string `json:"field" binding:"required"`
	Value int    `json:"value"`
}

// TalentRequest 新增天赋
type TalentRequest struct {
	Name   string `json:"name"`
	Effect string `json:"effect"`
}

// ExpressionRequest 表情立绘
type ExpressionRequest struct {
	URL string `json:"url"`
}

// Create 新建角色
// @Summary 新建角色
// @Tags Character
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "会话ID"
// @Param request body CreateCharacterRequest false "角色名"
// @Success 201 {object} models.Character
// @Router /api/v1/sessions/{id}/characters [post]
func (h *CharacterHandler) Create(c *gin.Context) {
	var req CreateCharacterRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	ch, err := h.characters.Create(c.Request.Context(), h.identity.GetActor(c), sessionID(c), req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, ch)
}

// List 会话内全部角色
// @Summary 角色列表
// @Tags Character
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {array} models.Character
// @Router /api/v1/sessions/{id}/characters [get]
func (h *CharacterHandler) List(c *gin.Context) {
	chars, err := h.characters.List(c.Request.Context(), sessionID(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, chars)
}

// Load 读取角色卡，包含上限与技能实时值
// @Summary 读取角色卡
// @Tags Character
// @Produce json
// @Param id path string true "会话ID"
// @Param cid path string true "角色ID"
// @Success 200 {object} game.Sheet
// @Failure 404 {object} errors.ErrorResponse
// @Router /api/v1/sessions/{id}/characters/{cid} [get]
func (h *CharacterHandler) Load(c *gin.Context) {
	sheet, err := h.characters.Load(c.Request.Context(), h.identity.GetActor(c), sessionID(c), c.Param("cid"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, sheet)
}

// Update 修改字段，键为点分路径
// @Summary 修改角色
// @Tags Character
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "会话ID"
// @Param cid path string true "角色ID"
// @Param request body object true "字段路径到值的映射"
// @Success 200 {object} models.Character
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /api/v1/sessions/{id}/characters/{cid} [patch]
func (h *CharacterHandler) Update(c *gin.Context) {
	var fields map[string]interface{}
	if !bindJSON(c, &fields) {
		return
	}

	ch, err := h.characters.Update(c.Request.Context(), h.identity.GetActor(c), sessionID(c), c.Param("cid"), fields)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, ch)
}

// Override KP直接设置 MOV 或初始SAN
// @Summary KP覆盖
// @Tags Character
// @Accept json
// @Security BearerAuth
// @Param request body OverrideRequest true "字段与值"
// @Success 204
// @Router /api/v1/sessions/{id}/characters/{cid}/override [put]
func (h *CharacterHandler) Override(c *gin.Context) {
	var req OverrideRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.characters.KeeperOverride(c.Request.Context(), h.identity.GetActor(c), sessionID(c), c.Param("cid"), req.Field, req.Value)
	if err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddWeapon 新增武器
// @Summary 新增武器
// @Tags Character
// @Router /api/v1/sessions/{id}/characters/{cid}/weapons [post]
func (h *CharacterHandler) AddWeapon(c *gin.Context) {
	var req game.WeaponInput
	if !bindJSON(c, &req) {
		return
	}

	w, err := h.characters.AddWeapon(c.Request.Context(), h.identity.GetActor(c), sessionID(c), c.Param("cid"), req)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, w)
}

// RemoveWeapon 删除武器
// @Summary 删除武器
// @Tags Character
// @Router /api/v1/sessions/{id}/characters/{cid}/weapons/{itemId} [delete]
func (h *CharacterHandler) RemoveWeapon(c *gin.Context) {
	err := h.characters.RemoveWeapon(c.Request.Context(), h.identity.GetActor(c), sessionID(c), c.Param("cid"), c.Param("itemId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddTalent 新增天赋
// @Summary 新增天赋
// @Tags Character
// @Router /api/v1/sessions/{id}/characters/{cid}/talents [post]
func (h *CharacterHandler) AddTalent(c *gin.Context) {
	var req TalentRequest
	if !bindJSON(c, &req) {
		return
	}

	t, err := h.characters.AddTalent(c.Request.Context(), h.identity.GetActor(c), sessionID(c), c.Param("cid"), req.Name, req.Effect)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, t)
}

// RemoveTalent 删除天赋
// @Summary 删除天赋
// @Tags Character
// @Router /api/v1/sessions/{id}/characters/{cid}/talents/{itemId} [delete]
func (h *CharacterHandler) RemoveTalent(c *gin.Context) {
	err := h.characters.RemoveTalent(c.Request.Context(), h.identity.GetActor(c), sessionID(c), c.Param("cid"), c.Param("itemId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetExpression 设置表情立绘
// @Summary 设置表情
// @Tags Character
// @Router /api/v1/sessions/{id}/characters/{cid}/expressions/{name} [put]
func (h *CharacterHandler) SetExpression(c *gin.Context) {
	var req ExpressionRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.characters.SetExpression(c.Request.Context(), h.identity.GetActor(c), sessionID(c), c.Param("cid"), c.Param("name"), req.URL)
	if err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveExpression 删除表情
// @Summary 删除表情
// @Tags Character
// @Router /api/v1/sessions/{id}/characters/{cid}/expressions/{name} [delete]
func (h *CharacterHandler) RemoveExpression(c *gin.Context) {
	err := h.characters.RemoveExpression(c.Request.Context(), h.identity.GetActor(c), sessionID(c), c.Param("cid"), c.Param("name"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
