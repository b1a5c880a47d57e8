package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/obscura/internal/errors"
	"github.com/wfunc/obscura/internal/game"
	"github.com/wfunc/obscura/internal/utils"
)

// 上下文键
const (
	ContextUID      = "uid"
	ContextNickname = "nickname"
	ContextToken    = "token"

	// HeaderActingCharacter 当前扮演的角色
	HeaderActingCharacter = "X-Acting-Character"
)

// IdentityMiddleware 身份中间件
type IdentityMiddleware struct {
	jwt               *utils.JWTManager
	anonymousNickname string
}

// NewIdentityMiddleware 创建身份中间件
func NewIdentityMiddleware(jwt *utils.JWTManager, anonymousNickname string) *IdentityMiddleware {
	return &IdentityMiddleware{jwt: jwt, anonymousNickname: anonymousNickname}
}

// RequireIdentity 必须携带有效令牌
func (m *IdentityMiddleware) RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c)
		if token == "" {
			AbortWithError(c, errors.New(errors.ErrAuthentication, "缺少身份令牌"))
			return
		}

		claims, err := m.jwt.ValidateToken(token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		setIdentity(c, claims, token)
		c.Next()
	}
}

// OptionalIdentity 没有令牌时以匿名身份继续，令牌无效时拒绝
func (m *IdentityMiddleware) OptionalIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c)
		if token != "" {
			claims, err := m.jwt.ValidateToken(token)
			if err != nil {
				AbortWithError(c, err)
				return
			}
			setIdentity(c, claims, token)
		}
		c.Next()
	}
}

func setIdentity(c *gin.Context, claims *utils.IdentityClaims, token string) {
	c.Set(ContextUID, claims.UID)
	c.Set(ContextNickname, claims.Nickname)
	c.Set(ContextToken, token)
}

// ExtractToken 从请求中提取令牌
func ExtractToken(c *gin.Context) string {
	// 1. Authorization: Bearer
	if bearer := c.GetHeader("Authorization"); bearer != "" {
		parts := strings.SplitN(bearer, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	// 2. X-Access-Token
	if token := c.GetHeader("X-Access-Token"); token != "" {
		return token
	}

	// 3. 查询参数（浏览器 WebSocket 无法设置请求头）
	return c.Query("token")
}

// GetActor 从上下文构造身份
func (m *IdentityMiddleware) GetActor(c *gin.Context) game.Actor {
	actor := GetActor(c)
	if actor.IsAnonymous() && actor.Nickname == "" {
		actor.Nickname = m.anonymousNickname
	}
	return actor
}

// GetActor 从上下文构造身份，未认证时为匿名身份
func GetActor(c *gin.Context) game.Actor {
	actor := game.Actor{
		UID:      c.GetString(ContextUID),
		Nickname: c.GetString(ContextNickname),
	}
	if id := strings.TrimSpace(c.GetHeader(HeaderActingCharacter)); id != "" {
		actor.ActingCharacterID = id
	} else if id := c.Query("as"); id != "" {
		actor.ActingCharacterID = id
	}
	return actor
}

// IsAuthenticated 是否携带了有效身份
func IsAuthenticated(c *gin.Context) bool {
	return c.GetString(ContextUID) != ""
}
