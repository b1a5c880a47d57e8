package game

import (
	"github.com/wfunc/obscura/internal/dice"
	"github.com/wfunc/obscura/internal/logger"
	"github.com/wfunc/obscura/internal/store"
	"go.uber.org/zap"
)

// ServicesConfig 服务配置
type ServicesConfig struct {
	Store   store.DocumentStore
	Source  dice.Source
	Options Options
	Logger  *zap.Logger
}

// Services 跑团桌的全部服务
type Services struct {
	Sessions   *SessionService
	Characters *CharacterService
	Chat       *ChatService
	Rolls      *RollService
	Options    Options
}

// NewServices 创建服务集合
func NewServices(cfg *ServicesConfig) *Services {
	log := cfg.Logger
	if log == nil {
		log = logger.WithModule(logger.ModuleTable)
	}
	src := cfg.Source
	if src == nil {
		src = dice.NewCryptoSource()
	}
	opts := cfg.Options
	if opts.SessionIDLength <= 0 {
		opts = DefaultOptions()
	}

	sessions := NewSessionService(cfg.Store, src, opts, log.Named("session"))
	characters := NewCharacterService(cfg.Store, sessions, log.Named("character"))
	chat := NewChatService(cfg.Store, sessions, characters, src, opts, log.Named("chat"))
	rolls := NewRollService(chat, characters, src, opts, log.Named("roll"))

	return &Services{
		Sessions:   sessions,
		Characters: characters,
		Chat:       chat,
		Rolls:      rolls,
		Options:    opts,
	}
}
