package api

import (
	"github.com/gin-gonic/gin"

	"github.com/wfunc/obscura/internal/middleware"
	"github.com/wfunc/obscura/internal/utils"
)

// IdentityHandler 匿名身份处理器
type IdentityHandler struct {
	jwt *utils.JWTManager
}

// NewIdentityHandler 创建身份处理器
func NewIdentityHandler(jwt *utils.JWTManager) *IdentityHandler {
	return &IdentityHandler{jwt: jwt}
}

// SignInRequest 匿名登录请求
type SignInRequest struct {
	Nickname string `json:"nickname"`
}

// IdentityResponse 身份令牌
type IdentityResponse struct {
	Token     string `json:"token"`
	UID       string `json:"uid"`
	Nickname  string `json:"nickname"`
	ExpiresAt int64  `json:"expiresAt"`
}

func newIdentityResponse(token string, claims *utils.IdentityClaims) IdentityResponse {
	resp := IdentityResponse{Token: token, UID: claims.UID, Nickname: claims.Nickname}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time.UnixMilli()
	}
	return resp
}

// SignIn 匿名登录
// @Summary 匿名登录
// @Description 分配新的 uid 并签发身份令牌
// @Tags Identity
// @Accept json
// @Produce json
// @Param request body SignInRequest false "昵称"
// @Success 200 {object} IdentityResponse
// @Router /api/v1/identity/anonymous [post]
func (h *IdentityHandler) SignIn(c *gin.Context) {
	var req SignInRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	token, claims, err := h.jwt.IssueAnonymous(req.Nickname)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, newIdentityResponse(token, claims))
}

// Me 当前身份
// @Summary 当前身份
// @Tags Identity
// @Produce json
// @Security BearerAuth
// @Success 200 {object} IdentityResponse
// @Router /api/v1/identity/me [get]
func (h *IdentityHandler) Me(c *gin.Context) {
	claims, err := h.jwt.ValidateToken(c.GetString(middleware.ContextToken))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, newIdentityResponse(c.GetString(middleware.ContextToken), claims))
}

// Rename 修改昵称，沿用原 uid 重新签发令牌
// @Summary 修改昵称
// @Tags Identity
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SignInRequest true "新昵称"
// @Success 200 {object} IdentityResponse
// @Router /api/v1/identity/nickname [put]
func (h *IdentityHandler) Rename(c *gin.Context) {
	var req SignInRequest
	if !bindJSON(c, &req) {
		return
	}

	token, claims, err := h.jwt.Issue(c.GetString(middleware.ContextUID), req.Nickname)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, newIdentityResponse(token, claims))
}
