package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/obscura/internal/errors"
	"github.com/wfunc/obscura/internal/game"
	"github.com/wfunc/obscura/internal/logger"
	"github.com/wfunc/obscura/internal/middleware"
	"github.com/wfunc/obscura/internal/utils"
	"github.com/wfunc/obscura/internal/websocket"
)

// RouterConfig 路由依赖
type RouterConfig struct {
	DB       *gorm.DB
	Services *game.Services
	Hub      *websocket.Hub
	JWT      *utils.JWTManager
	Logger   *zap.Logger

	// WebSocketPath 会话下的连接路径，默认 /ws
	WebSocketPath string
}

// DefaultWebSocketPath 默认连接路径
const DefaultWebSocketPath = "/ws"

// webSocketPath 规范化连接路径
func webSocketPath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return DefaultWebSocketPath
	}
	return "/" + p
}

// Router API路由器
type Router struct {
	engine   *gin.Engine
	db       *gorm.DB
	services *game.Services
	identity *middleware.IdentityMiddleware
	log      *zap.Logger
	wsPath   string

	identityHandler  *IdentityHandler
	sessionHandler   *SessionHandler
	characterHandler *CharacterHandler
	chatHandler      *ChatHandler
	rollHandler      *RollHandler
	wsHandler        *WebSocketHandler
}

// NewRouter 创建路由器
func NewRouter(cfg *RouterConfig) *Router {
	log := cfg.Logger
	if log == nil {
		log = logger.WithModule(logger.ModuleAPI)
	}

	// 创建Gin引擎
	engine := gin.New()

	// 全局中间件
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Recovery())
	engine.Use(middleware.RequestLogger())

	identity := middleware.NewIdentityMiddleware(cfg.JWT, cfg.Services.Options.AnonymousNickname)

	router := &Router{
		engine:           engine,
		db:               cfg.DB,
		services:         cfg.Services,
		identity:         identity,
		log:              log,
		wsPath:           webSocketPath(cfg.WebSocketPath),
		identityHandler:  NewIdentityHandler(cfg.JWT),
		sessionHandler:   NewSessionHandler(cfg.Services.Sessions, identity),
		characterHandler: NewCharacterHandler(cfg.Services.Characters, identity),
		chatHandler:      NewChatHandler(cfg.Services.Chat, identity),
		rollHandler:      NewRollHandler(cfg.Services.Rolls, identity),
		wsHandler:        NewWebSocketHandler(cfg.Hub, cfg.Services.Sessions, identity),
	}

	router.setupRoutes()
	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 健康检查
	r.engine.GET("/health", r.healthCheck)

	registerOpenAPIRoutes(r.engine)
	registerSwaggerRoutes(r.engine)

	v1 := r.engine.Group("/api/v1")
	{
		identity := v1.Group("/identity")
		{
			identity.POST("/anonymous", r.identityHandler.SignIn)

			authRequired := identity.Group("")
			authRequired.Use(r.identity.RequireIdentity())
			{
				authRequired.GET("/me", r.identityHandler.Me)
				authRequired.PUT("/nickname", r.identityHandler.Rename)
			}
		}

		// 未携带令牌时按匿名身份处理，权限由服务层判断
		sessions := v1.Group("/sessions")
		sessions.Use(r.identity.OptionalIdentity())
		{
			sessions.POST("", r.sessionHandler.Create)
			sessions.GET("/:id", r.sessionHandler.Get)
			sessions.POST("/:id/maps", r.sessionHandler.AddMap)
			sessions.POST("/:id/bgms", r.sessionHandler.AddBgm)
			sessions.POST("/:id/handouts", r.sessionHandler.AddHandout)
			sessions.PUT("/:id/scene/map", r.sessionHandler.SetActiveMap)
			sessions.PUT("/:id/scene/bgm", r.sessionHandler.SetActiveBgm)
			sessions.PUT("/:id/scene/handout", r.sessionHandler.ShowHandout)
			sessions.DELETE("/:id/scene/handout", r.sessionHandler.HideHandout)

			sessions.POST("/:id/characters", r.characterHandler.Create)
			sessions.GET("/:id/characters", r.characterHandler.List)
			sessions.GET("/:id/characters/:cid", r.characterHandler.Load)
			sessions.PATCH("/:id/characters/:cid", r.characterHandler.Update)
			sessions.PUT("/:id/characters/:cid/override", r.characterHandler.Override)
			sessions.POST("/:id/characters/:cid/weapons", r.characterHandler.AddWeapon)
			sessions.DELETE("/:id/characters/:cid/weapons/:itemId", r.characterHandler.RemoveWeapon)
			sessions.POST("/:id/characters/:cid/talents", r.characterHandler.AddTalent)
			sessions.DELETE("/:id/characters/:cid/talents/:itemId", r.characterHandler.RemoveTalent)
			sessions.PUT("/:id/characters/:cid/expressions/:name", r.characterHandler.SetExpression)
			sessions.DELETE("/:id/characters/:cid/expressions/:name", r.characterHandler.RemoveExpression)

			sessions.GET("/:id/chat", r.chatHandler.Recent)
			sessions.POST("/:id/chat", r.chatHandler.Send)
			sessions.POST("/:id/chat/dice", r.chatHandler.RollDice)
			sessions.POST("/:id/chat/image", r.chatHandler.SendImage)
			sessions.GET("/:id/chat/export", r.chatHandler.Export)

			sessions.POST("/:id/rolls/skill", r.rollHandler.SkillCheck)
			sessions.POST("/:id/rolls/bonus", r.rollHandler.BonusPenalty)

			sessions.GET("/:id"+r.wsPath, r.wsHandler.Connect)
		}
	}

	// 404处理
	r.engine.NoRoute(func(c *gin.Context) {
		middleware.AbortWithError(c, errors.New(errors.ErrNotFound, "接口不存在"))
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	// 检查数据库连接
	sqlDB, err := r.db.DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"message": "数据库连接失败",
		})
		return
	}

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"message": "数据库ping失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "服务运行正常",
	})
}

// Handler 作为 http.Handler 挂载
func (r *Router) Handler() http.Handler {
	return r.engine
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
