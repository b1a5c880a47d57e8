package game

import (
	"context"
	"strings"
	"time"

	"github.com/wfunc/obscura/internal/dice"
	"github.com/wfunc/obscura/internal/errors"
	"github.com/wfunc/obscura/internal/models"
	"github.com/wfunc/obscura/internal/store"
	"go.uber.org/zap"
)

const (
	sessionIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	sessionIDAttempts = 5
)

// 场景字段
const (
	sceneMapURL        = "mapUrl"
	sceneMaps          = "maps"
	sceneBgmURL        = "bgmUrl"
	sceneBgms          = "bgms"
	sceneActiveHandout = "activeHandout"
	sceneHandouts      = "handouts"
)

// SessionService 会话与共享场景
type SessionService struct {
	store  store.DocumentStore
	source dice.Source
	opts   Options
	log    *zap.Logger
	now    func() time.Time
}

// NewSessionService 创建会话服务
func NewSessionService(st store.DocumentStore, src dice.Source, opts Options, log *zap.Logger) *SessionService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionService{store: st, source: src, opts: opts, log: log, now: time.Now}
}

// newSessionID 由随机源生成大写 base36 会话ID
func (s *SessionService) newSessionID() string {
	var b strings.Builder
	for i := 0; i < s.opts.SessionIDLength; i++ {
		b.WriteByte(sessionIDAlphabet[s.source.RollUniform(0, len(sessionIDAlphabet)-1)])
	}
	return b.String()
}

// NormalizeSessionID 会话ID不区分大小写
func NormalizeSessionID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// CreateSession 以调用者为KP创建新会话
func (s *SessionService) CreateSession(ctx context.Context, actor Actor) (*models.Session, error) {
	if err := actor.requireIdentity(); err != nil {
		return nil, err
	}

	sess := &models.Session{
		KeeperID:  actor.UID,
		CreatedAt: s.now().UnixMilli(),
		Scene:     models.NewScene(),
	}

	var lastErr error
	for i := 0; i < sessionIDAttempts; i++ {
		id := s.newSessionID()
		err := s.store.Create(ctx, sessionPath(id), sess)
		if err == nil {
			sess.ID = id
			s.log.Info("创建会话", zap.String("session_id", id), zap.String("keeper", actor.UID))
			return sess, nil
		}
		if !errors.Is(err, errors.ErrAlreadyExists) {
			return nil, err
		}
		lastErr = err
	}
	return nil, errors.Wrap(lastErr, errors.ErrSyncWrite, "无法分配会话ID")
}

// GetSession 读取会话，不存在时返回 ErrSessionNotFound
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	sessionID = NormalizeSessionID(sessionID)
	if sessionID == "" {
		return nil, errors.New(errors.ErrSessionNotFound)
	}

	snap, err := s.store.Get(ctx, sessionPath(sessionID))
	if err != nil {
		return nil, err
	}
	return decodeSession(snap)
}

// JoinSession 加入会话，只做存在性检查
func (s *SessionService) JoinSession(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.GetSession(ctx, sessionID)
}

func decodeSession(snap store.Snapshot) (*models.Session, error) {
	if !snap.Exists {
		return nil, errors.New(errors.ErrSessionNotFound, snap.ID())
	}
	var sess models.Session
	if err := snap.Decode(&sess); err != nil {
		return nil, err
	}
	sess.ID = snap.ID()
	normalizeScene(&sess.Scene)
	return &sess, nil
}

func normalizeScene(sc *models.Scene) {
	if sc.Maps == nil {
		sc.Maps = []models.CatalogItem{}
	}
	if sc.Bgms == nil {
		sc.Bgms = []models.CatalogItem{}
	}
	if sc.Handouts == nil {
		sc.Handouts = []models.CatalogItem{}
	}
}

// SubscribeSession 订阅会话；会话不存在时回调收到 nil
func (s *SessionService) SubscribeSession(ctx context.Context, sessionID string, fn func(*models.Session)) (store.Unsubscribe, error) {
	sessionID = NormalizeSessionID(sessionID)
	return s.store.Subscribe(ctx, sessionPath(sessionID), func(snap store.Snapshot) {
		sess, err := decodeSession(snap)
		if err != nil {
			if !errors.Is(err, errors.ErrSessionNotFound) {
				s.log.Warn("会话快照解码失败", zap.String("session_id", sessionID), zap.Error(err))
			}
			fn(nil)
			return
		}
		fn(sess)
	})
}

// requireKeeper 读取会话并确认调用者是KP
func (s *SessionService) requireKeeper(ctx context.Context, actor Actor, sessionID string) (*models.Session, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.IsKeeper(actor.UID) {
		return nil, errors.New(errors.ErrNotKeeper, sess.ID)
	}
	return sess, nil
}

// IsKeeper 调用者是否为该会话的KP
func (s *SessionService) IsKeeper(ctx context.Context, actor Actor, sessionID string) (bool, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return sess.IsKeeper(actor.UID), nil
}

// patchScene 只写 scene.<field> 路径
func (s *SessionService) patchScene(ctx context.Context, actor Actor, sessionID string, fields map[string]interface{}) error {
	sess, err := s.requireKeeper(ctx, actor, sessionID)
	if err != nil {
		return err
	}

	patch := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		patch["scene."+k] = v
	}
	if err := s.store.Patch(ctx, sessionPath(sess.ID), patch); err != nil {
		return err
	}

	s.log.Debug("更新场景", zap.String("session_id", sess.ID), zap.Any("fields", fields))
	return nil
}

func catalogItem(name, url, fallback string) (models.CatalogItem, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return models.CatalogItem{}, errors.New(errors.ErrInvalidScene, "素材地址不能为空")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = fallback
	}
	return models.CatalogItem{Name: name, URL: url}, nil
}

// addToCatalog 在事务中追加到目录末尾
func (s *SessionService) addToCatalog(ctx context.Context, actor Actor, sessionID, field string, item models.CatalogItem) error {
	return s.patchScene(ctx, actor, sessionID, map[string]interface{}{
		store.AppendElement(field): item,
	})
}

// AddMap 添加背景
func (s *SessionService) AddMap(ctx context.Context, actor Actor, sessionID, name, url string) (models.CatalogItem, error) {
	item, err := catalogItem(name, url, models.DefaultMapName)
	if err != nil {
		return item, err
	}
	return item, s.addToCatalog(ctx, actor, sessionID, sceneMaps, item)
}

// AddBgm 添加BGM
func (s *SessionService) AddBgm(ctx context.Context, actor Actor, sessionID, name, url string) (models.CatalogItem, error) {
	item, err := catalogItem(name, url, "BGM")
	if err != nil {
		return item, err
	}
	return item, s.addToCatalog(ctx, actor, sessionID, sceneBgms, item)
}

// AddHandout 添加资料
func (s *SessionService) AddHandout(ctx context.Context, actor Actor, sessionID, name, url string) (models.CatalogItem, error) {
	item, err := catalogItem(name, url, models.DefaultHandoutName)
	if err != nil {
		return item, err
	}
	return item, s.addToCatalog(ctx, actor, sessionID, sceneHandouts, item)
}

// SetActiveMap 切换背景，空地址表示清除
func (s *SessionService) SetActiveMap(ctx context.Context, actor Actor, sessionID, url string) error {
	return s.patchScene(ctx, actor, sessionID, map[string]interface{}{sceneMapURL: strings.TrimSpace(url)})
}

// SetActiveBgm 切换BGM，空地址表示停止
func (s *SessionService) SetActiveBgm(ctx context.Context, actor Actor, sessionID, url string) error {
	return s.patchScene(ctx, actor, sessionID, map[string]interface{}{sceneBgmURL: strings.TrimSpace(url)})
}

// ShowHandout 向所有人展示资料
func (s *SessionService) ShowHandout(ctx context.Context, actor Actor, sessionID, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return errors.New(errors.ErrInvalidScene, "资料地址不能为空")
	}
	return s.patchScene(ctx, actor, sessionID, map[string]interface{}{sceneActiveHandout: url})
}

// HideHandout 收起资料
func (s *SessionService) HideHandout(ctx context.Context, actor Actor, sessionID string) error {
	return s.patchScene(ctx, actor, sessionID, map[string]interface{}{sceneActiveHandout: nil})
}
