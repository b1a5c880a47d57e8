package game

import (
	"github.com/wfunc/obscura/internal/errors"
)

// Actor 发起操作的身份上下文
//
// UID 为空表示匿名身份：可以查看和掷骰，但不能拥有角色或会话。
type Actor struct {
	UID               string `json:"uid"`
	Nickname          string `json:"nickname"`
	ActingCharacterID string `json:"actingCharacterId,omitempty"`
}

// Anonymous 匿名身份
func Anonymous(nickname string) Actor {
	return Actor{Nickname: nickname}
}

// IsAnonymous 是否为匿名身份
func (a Actor) IsAnonymous() bool {
	return a.UID == ""
}

// NameOr 昵称，为空时使用给定的默认值
func (a Actor) NameOr(fallback string) string {
	if a.Nickname != "" {
		return a.Nickname
	}
	return fallback
}

// WithActingCharacter 切换当前扮演的角色
func (a Actor) WithActingCharacter(characterID string) Actor {
	a.ActingCharacterID = characterID
	return a
}

// requireIdentity 匿名身份不允许拥有资源
func (a Actor) requireIdentity() error {
	if a.IsAnonymous() {
		return errors.New(errors.ErrAnonymousForbidden)
	}
	return nil
}
