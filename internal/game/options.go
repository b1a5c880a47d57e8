package game

import (
	"github.com/wfunc/obscura/internal/config"
	"github.com/wfunc/obscura/internal/dice"
	"github.com/wfunc/obscura/internal/store"
)

// Options 跑团桌参数
type Options struct {
	ChatWindow        int
	SessionIDLength   int
	AnonymousNickname string
	NarratorName      string
	DiceLimits        dice.Limits
}

// DefaultOptions 默认参数
func DefaultOptions() Options {
	return Options{
		ChatWindow:        store.DefaultQueryLimit,
		SessionIDLength:   6,
		AnonymousNickname: "익명",
		NarratorName:      "나레이션",
		DiceLimits:        dice.DefaultLimits,
	}
}

// OptionsFromConfig 从配置构造参数，未设置的字段使用默认值
func OptionsFromConfig(cfg *config.TableConfig) Options {
	opts := DefaultOptions()
	if cfg == nil {
		return opts
	}
	if cfg.ChatWindow > 0 {
		opts.ChatWindow = cfg.ChatWindow
	}
	if cfg.SessionIDLength > 0 {
		opts.SessionIDLength = cfg.SessionIDLength
	}
	if cfg.AnonymousNickname != "" {
		opts.AnonymousNickname = cfg.AnonymousNickname
	}
	if cfg.NarratorName != "" {
		opts.NarratorName = cfg.NarratorName
	}
	if cfg.MaxDiceCount > 0 {
		opts.DiceLimits.MaxCount = cfg.MaxDiceCount
	}
	if cfg.MaxDiceSides > 0 {
		opts.DiceLimits.MaxSides = cfg.MaxDiceSides
	}
	return opts
}

// 文档路径
func sessionPath(sessionID string) string {
	return store.Join("sessions", sessionID)
}

func charactersPath(sessionID string) string {
	return store.Join("sessions", sessionID, "characters")
}

func characterPath(sessionID, characterID string) string {
	return store.Join("sessions", sessionID, "characters", characterID)
}

func chatPath(sessionID string) string {
	return store.Join("sessions", sessionID, "chat")
}
