package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wfunc/obscura/internal/game"
	"github.com/wfunc/obscura/internal/middleware"
	"github.com/wfunc/obscura/internal/models"
)

// SessionHandler 会话与场景处理器
type SessionHandler struct {
	sessions *game.SessionService
	identity *middleware.IdentityMiddleware
}

// NewSessionHandler 创建会话处理器
func NewSessionHandler(sessions *game.SessionService, identity *middleware.IdentityMiddleware) *SessionHandler {
	return &SessionHandler{sessions: sessions, identity: identity}
}

// CatalogRequest 场景素材
type CatalogRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// PointerRequest 切换当前素材，url 为空表示清除
type PointerRequest struct {
	URL string `json:"url"`
}

// Create 创建会话，调用者成为KP
// @Summary 创建会话
// @Tags Session
// @Produce json
// @Security BearerAuth
// @Success 201 {object} models.Session
// @Failure 403 {object} errors.ErrorResponse
// @Router /api/v1/sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	sess, err := h.sessions.CreateSession(c.Request.Context(), h.identity.GetActor(c))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, sess)
}

// Get 加入会话前的存在性检查
// @Summary 获取会话
// @Tags Session
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} models.Session
// @Failure 404 {object} errors.ErrorResponse
// @Router /api/v1/sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	sess, err := h.sessions.JoinSession(c.Request.Context(), sessionID(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, sess)
}

type catalogFunc func(ctx context.Context, actor game.Actor, sessionID, name, url string) (models.CatalogItem, error)

func (h *SessionHandler) addCatalog(c *gin.Context, add catalogFunc) {
	var req CatalogRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := add(c.Request.Context(), h.identity.GetActor(c), sessionID(c), req.Name, req.URL)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, item)
}

// AddMap 添加背景
// @Summary 添加背景
// @Tags Scene
// @Accept json
// @Produce json
// @Param id path string true "会话ID"
// @Param request body CatalogRequest true "背景"
// @Success 201 {object} models.CatalogItem
// @Router /api/v1/sessions/{id}/maps [post]
func (h *SessionHandler) AddMap(c *gin.Context) {
	h.addCatalog(c, h.sessions.AddMap)
}

// AddBgm 添加BGM
// @Summary 添加BGM
// @Tags Scene
// @Router /api/v1/sessions/{id}/bgms [post]
func (h *SessionHandler) AddBgm(c *gin.Context) {
	h.addCatalog(c, h.sessions.AddBgm)
}

// AddHandout 添加资料
// @Summary 添加资料
// @Tags Scene
// @Router /api/v1/sessions/{id}/handouts [post]
func (h *SessionHandler) AddHandout(c *gin.Context) {
	h.addCatalog(c, h.sessions.AddHandout)
}

type pointerFunc func(ctx context.Context, actor game.Actor, sessionID, url string) error

func (h *SessionHandler) setPointer(c *gin.Context, set pointerFunc) {
	var req PointerRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := set(c.Request.Context(), h.identity.GetActor(c), sessionID(c), req.URL); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"url": req.URL})
}

// SetActiveMap 切换背景
// @Summary 切换背景
// @Tags Scene
// @Router /api/v1/sessions/{id}/scene/map [put]
func (h *SessionHandler) SetActiveMap(c *gin.Context) {
	h.setPointer(c, h.sessions.SetActiveMap)
}

// SetActiveBgm 切换BGM
// @Summary 切换BGM
// @Tags Scene
// @Router /api/v1/sessions/{id}/scene/bgm [put]
func (h *SessionHandler) SetActiveBgm(c *gin.Context) {
	h.setPointer(c, h.sessions.SetActiveBgm)
}

// ShowHandout 展示资料
// @Summary 展示资料
// @Tags Scene
// @Router /api/v1/sessions/{id}/scene/handout [put]
func (h *SessionHandler) ShowHandout(c *gin.Context) {
	h.setPointer(c, h.sessions.ShowHandout)
}

// HideHandout 收起资料
// @Summary 收起资料
// @Tags Scene
// @Router /api/v1/sessions/{id}/scene/handout [delete]
func (h *SessionHandler) HideHandout(c *gin.Context) {
	if err := h.sessions.HideHandout(c.Request.Context(), h.identity.GetActor(c), sessionID(c)); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
