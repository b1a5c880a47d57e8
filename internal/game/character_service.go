package game

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/wfunc/obscura/internal/errors"
	"github.com/wfunc/obscura/internal/models"
	"github.com/wfunc/obscura/internal/rules"
	"github.com/wfunc/obscura/internal/store"
	"go.uber.org/zap"
)

// 覆盖字段
const (
	FieldInitialSAN = "vitals.initialSAN"
	FieldMovement   = "stats.MOV"
)

type fieldKind int

const (
	kindInt fieldKind = iota
	kindBool
	kindString
)

// editableFields 所有者可写的顶层与二级字段
var editableFields = map[string]fieldKind{
	"name":            kindString,
	"portraitUrl":     kindString,
	"player_name":     kindString,
	"age":             kindInt,
	"sex":             kindString,
	"height":          kindString,
	"family":          kindString,
	"mentalCondition": kindString,

	"stats.STR": kindInt,
	"stats.CON": kindInt,
	"stats.SIZ": kindInt,
	"stats.DEX": kindInt,
	"stats.APP": kindInt,
	"stats.INT": kindInt,
	"stats.POW": kindInt,
	"stats.EDU": kindInt,

	"vitals.HP":                 kindInt,
	"vitals.MP":                 kindInt,
	"vitals.SAN":                kindInt,
	"vitals.LUCK":               kindInt,
	"vitals.temporaryInsanity":  kindBool,
	"vitals.indefiniteInsanity": kindBool,
	"vitals.majorWound":         kindBool,
	"vitals.dying":              kindBool,
	"vitals.pulpHp":             kindBool,
}

// readOnlyFields 只能由重算或KP覆盖写入
var readOnlyFields = map[string]bool{
	FieldMovement:   true,
	FieldInitialSAN: true,
}

// derivedTriggers 变化后需要重算派生值的字段
var derivedTriggers = map[string]bool{
	"stats.STR": true,
	"stats.SIZ": true,
	"stats.DEX": true,
	"age":       true,
}

// Sheet 角色卡视图：存储值加上读取时计算的上限与技能实时值
type Sheet struct {
	Character *models.Character `json:"character"`
	Ceilings  rules.Ceilings    `json:"ceilings"`
	Skills    map[string]int    `json:"liveSkills"`
}

// WeaponInput 新增武器
type WeaponInput struct {
	Name    string `json:"name"`
	Skill   string `json:"skill"`
	Damage  string `json:"damage"`
	Range   string `json:"range"`
	Attacks string `json:"attacks"`
	Ammo    string `json:"ammo"`
	Malf    string `json:"malf"`
}

// CharacterService 角色卡
type CharacterService struct {
	store    store.DocumentStore
	sessions *SessionService
	log      *zap.Logger
	newID    func() string
}

// NewCharacterService 创建角色服务
func NewCharacterService(st store.DocumentStore, sessions *SessionService, log *zap.Logger) *CharacterService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CharacterService{
		store:    st,
		sessions: sessions,
		log:      log,
		newID:    uuid.NewString,
	}
}

// Create 以模板新建角色，所有者为调用者
func (s *CharacterService) Create(ctx context.Context, actor Actor, sessionID, name string) (*models.Character, error) {
	if err := actor.requireIdentity(); err != nil {
		return nil, err
	}
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	ch := models.NewCharacterTemplate(strings.TrimSpace(name), actor.UID, actor.Nickname)
	id := s.newID()
	if err := s.store.Put(ctx, characterPath(sess.ID, id), ch); err != nil {
		return nil, err
	}
	ch.ID = id

	s.log.Info("创建角色",
		zap.String("session_id", sess.ID),
		zap.String("character_id", id),
		zap.String("owner", actor.UID))
	return ch, nil
}

func decodeCharacter(snap store.Snapshot) (*models.Character, error) {
	if !snap.Exists {
		return nil, errors.New(errors.ErrCharacterNotFound, snap.ID())
	}
	var ch models.Character
	if err := snap.Decode(&ch); err != nil {
		return nil, err
	}
	ch.ID = snap.ID()
	ch.Normalize()
	return &ch, nil
}

// Get 读取角色
func (s *CharacterService) Get(ctx context.Context, sessionID, characterID string) (*models.Character, error) {
	sessionID = NormalizeSessionID(sessionID)
	if characterID == "" {
		return nil, errors.New(errors.ErrCharacterNotFound)
	}
	snap, err := s.store.Get(ctx, characterPath(sessionID, characterID))
	if err != nil {
		return nil, err
	}
	return decodeCharacter(snap)
}

// List 会话中的全部角色
func (s *CharacterService) List(ctx context.Context, sessionID string) ([]*models.Character, error) {
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	snaps, err := s.store.List(ctx, charactersPath(sess.ID))
	if err != nil {
		return nil, err
	}
	return s.decodeAll(snaps), nil
}

func (s *CharacterService) decodeAll(snaps []store.Snapshot) []*models.Character {
	out := make([]*models.Character, 0, len(snaps))
	for _, snap := range snaps {
		ch, err := decodeCharacter(snap)
		if err != nil {
			s.log.Warn("跳过无法解码的角色", zap.String("path", snap.Path), zap.Error(err))
			continue
		}
		out = append(out, ch)
	}
	return out
}

// SubscribeCharacters 订阅会话的角色列表
func (s *CharacterService) SubscribeCharacters(ctx context.Context, sessionID string, fn func([]*models.Character)) (store.Unsubscribe, error) {
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.store.SubscribeCollection(ctx, charactersPath(sess.ID), func(cs store.CollectionSnapshot) {
		fn(s.decodeAll(cs.Docs))
	})
}

// Load 读取角色卡视图
//
// 所有者首次加载时写回缺失的动态默认技能，并修正与存储不一致的伤害加值和体格。
func (s *CharacterService) Load(ctx context.Context, actor Actor, sessionID, characterID string) (*Sheet, error) {
	ch, err := s.Get(ctx, sessionID, characterID)
	if err != nil {
		return nil, err
	}

	if ch.IsOwnedBy(actor.UID) {
		patch := map[string]interface{}{}
		for name, v := range rules.MissingDynamicDefaults(ch.Skills, ch.Stats.DEX, ch.Stats.EDU) {
			patch[store.FieldPath("skills", name)] = v
			ch.Skills[name] = v
		}
		d := rules.Calculate(ch.DerivedInputs())
		for k, v := range derivedPatch(ch, d) {
			// MOV 保留KP覆盖值，直到下一次重算
			if k != FieldMovement {
				patch[k] = v
			}
		}
		if len(patch) > 0 {
			if err := s.store.Patch(ctx, characterPath(NormalizeSessionID(sessionID), ch.ID), patch); err != nil {
				return nil, err
			}
			ch.Derived.DamageBonus = d.DamageBonus
			ch.Derived.Build = d.Build
			s.log.Debug("补全角色默认值", zap.String("character_id", ch.ID), zap.Int("fields", len(patch)))
		}
	}

	return &Sheet{Character: ch, Ceilings: ch.Ceilings(), Skills: ch.LiveSkills()}, nil
}

// derivedPatch 与存储值不同的派生字段
func derivedPatch(ch *models.Character, d rules.Derived) map[string]interface{} {
	patch := map[string]interface{}{}
	if ch.Derived.DamageBonus != d.DamageBonus {
		patch["derived.damage_bonus"] = d.DamageBonus
	}
	if ch.Derived.Build != d.Build {
		patch["derived.build"] = d.Build
	}
	if ch.Stats.MOV != d.Movement {
		patch[FieldMovement] = d.Movement
	}
	return patch
}

func applyDerived(ch *models.Character, d rules.Derived) {
	ch.Derived.DamageBonus = d.DamageBonus
	ch.Derived.Build = d.Build
	ch.Stats.MOV = d.Movement
}

// requireOwner 读取角色并确认调用者是所有者
func (s *CharacterService) requireOwner(ctx context.Context, actor Actor, sessionID, characterID string) (*models.Character, error) {
	if err := actor.requireIdentity(); err != nil {
		return nil, err
	}
	if _, err := s.sessions.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	ch, err := s.Get(ctx, sessionID, characterID)
	if err != nil {
		return nil, err
	}
	if !ch.IsOwnedBy(actor.UID) {
		return nil, errors.New(errors.ErrNotOwner, characterID)
	}
	return ch, nil
}

// Update 所有者逐字段修改
//
// 键为 "stats.STR"、"skills.관찰력"、"backstory.memo" 形式的路径；
// 修改 STR/SIZ/DEX/年龄时派生值在同一补丁中写回。
func (s *CharacterService) Update(ctx context.Context, actor Actor, sessionID, characterID string, fields map[string]interface{}) (*models.Character, error) {
	if len(fields) == 0 {
		return nil, errors.New(errors.ErrInvalidParam, "没有要修改的字段")
	}

	// 先校验，任何一项不合法都不写入
	patch := make(map[string]interface{}, len(fields)+3)
	recompute := false
	for path, raw := range fields {
		key, value, err := normalizeField(path, raw)
		if err != nil {
			return nil, err
		}
		patch[key] = value
		if derivedTriggers[path] {
			recompute = true
		}
	}

	ch, err := s.requireOwner(ctx, actor, sessionID, characterID)
	if err != nil {
		return nil, err
	}

	if err := applyFields(ch, patch); err != nil {
		return nil, err
	}
	if recompute {
		d := rules.Calculate(ch.DerivedInputs())
		for k, v := range derivedPatch(ch, d) {
			patch[k] = v
		}
		applyDerived(ch, d)
	}

	if err := s.store.Patch(ctx, characterPath(NormalizeSessionID(sessionID), ch.ID), patch); err != nil {
		return nil, err
	}

	s.log.Debug("修改角色",
		zap.String("character_id", ch.ID),
		zap.Int("fields", len(patch)),
		zap.Bool("recomputed", recompute))
	return ch, nil
}

// normalizeField 校验单个字段并返回存储用的字段路径与值
func normalizeField(path string, raw interface{}) (string, interface{}, error) {
	if path == "" {
		return "", nil, errors.New(errors.ErrInvalidParam, "字段路径为空")
	}
	if readOnlyFields[path] || strings.HasPrefix(path, "derived.") || path == "derived" {
		return "", nil, errors.New(errors.ErrReadOnlyField, path)
	}

	if kind, ok := editableFields[path]; ok {
		v, err := coerce(kind, path, raw)
		return path, v, err
	}

	head, rest, found := strings.Cut(path, ".")
	if !found || rest == "" {
		return "", nil, errors.Newf(errors.ErrInvalidParam, "不可修改的字段: %s", path)
	}

	switch head {
	case "skills":
		v, err := toInt(raw)
		if err != nil {
			return "", nil, errors.Newf(errors.ErrInvalidSkill, "%s: 技能值必须是整数", rest)
		}
		return store.FieldPath("skills", rest), v, nil
	case "backstory":
		if !isBackstoryField(rest) {
			return "", nil, errors.Newf(errors.ErrInvalidParam, "未知的背景字段: %s", rest)
		}
		v, err := coerce(kindString, path, raw)
		return store.FieldPath("backstory", rest), v, err
	case "expressions":
		v, err := coerce(kindString, path, raw)
		return store.FieldPath("expressions", rest), v, err
	}
	return "", nil, errors.Newf(errors.ErrInvalidParam, "不可修改的字段: %s", path)
}

func isBackstoryField(name string) bool {
	for _, f := range models.BackstoryFields {
		if f == name {
			return true
		}
	}
	return false
}

func coerce(kind fieldKind, path string, raw interface{}) (interface{}, error) {
	switch kind {
	case kindInt:
		v, err := toInt(raw)
		if err != nil {
			return nil, errors.Newf(errors.ErrInvalidStat, "%s: 必须是整数", path)
		}
		return v, nil
	case kindBool:
		v, ok := raw.(bool)
		if !ok {
			return nil, errors.Newf(errors.ErrInvalidParam, "%s: 必须是布尔值", path)
		}
		return v, nil
	default:
		v, ok := raw.(string)
		if !ok {
			return nil, errors.Newf(errors.ErrInvalidParam, "%s: 必须是字符串", path)
		}
		return v, nil
	}
}

// toInt 接受 JSON 解码得到的各种整数表示，拒绝字符串和小数
func toInt(raw interface{}) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, errors.New(errors.ErrInvalidParam)
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, errors.Wrap(err, errors.ErrInvalidParam)
		}
		return int(n), nil
	}
	return 0, errors.New(errors.ErrInvalidParam)
}

// applyFields 把补丁应用到内存中的角色上，用于重算与返回值
func applyFields(ch *models.Character, patch map[string]interface{}) error {
	data, err := json.Marshal(ch)
	if err != nil {
		return errors.Wrap(err, errors.ErrDataIntegrity)
	}
	updated, err := store.ApplyPatch(data, patch)
	if err != nil {
		return err
	}
	id := ch.ID
	var next models.Character
	if err := json.Unmarshal(updated, &next); err != nil {
		return errors.Wrap(err, errors.ErrDataIntegrity)
	}
	next.ID = id
	next.Normalize()
	*ch = next
	return nil
}

// KeeperOverride KP直接设置 initialSAN 或 MOV
func (s *CharacterService) KeeperOverride(ctx context.Context, actor Actor, sessionID, characterID, field string, value int) error {
	if !readOnlyFields[field] {
		return errors.Newf(errors.ErrInvalidParam, "不支持覆盖的字段: %s", field)
	}
	sess, err := s.sessions.requireKeeper(ctx, actor, sessionID)
	if err != nil {
		return err
	}
	ch, err := s.Get(ctx, sess.ID, characterID)
	if err != nil {
		return err
	}
	if err := s.store.Patch(ctx, characterPath(sess.ID, ch.ID), map[string]interface{}{field: value}); err != nil {
		return err
	}
	s.log.Info("KP覆盖",
		zap.String("session_id", sess.ID),
		zap.String("character_id", ch.ID),
		zap.String("field", field),
		zap.Int("value", value))
	return nil
}

// AddWeapon 添加武器
func (s *CharacterService) AddWeapon(ctx context.Context, actor Actor, sessionID, characterID string, in WeaponInput) (models.Weapon, error) {
	ch, err := s.requireOwner(ctx, actor, sessionID, characterID)
	if err != nil {
		return models.Weapon{}, err
	}
	w := models.Weapon{
		ID:      s.newID(),
		Name:    in.Name,
		Skill:   in.Skill,
		Damage:  in.Damage,
		Range:   in.Range,
		Attacks: in.Attacks,
		Ammo:    in.Ammo,
		Malf:    in.Malf,
	}
	err = s.store.Patch(ctx, characterPath(NormalizeSessionID(sessionID), ch.ID), map[string]interface{}{
		store.AppendElement("weapons"): w,
	})
	return w, err
}

// RemoveWeapon 删除武器
func (s *CharacterService) RemoveWeapon(ctx context.Context, actor Actor, sessionID, characterID, weaponID string) error {
	ch, err := s.requireOwner(ctx, actor, sessionID, characterID)
	if err != nil {
		return err
	}
	kept := make([]models.Weapon, 0, len(ch.Weapons))
	for _, w := range ch.Weapons {
		if w.ID != weaponID {
			kept = append(kept, w)
		}
	}
	if len(kept) == len(ch.Weapons) {
		return errors.Newf(errors.ErrNotFound, "武器不存在: %s", weaponID)
	}
	return s.store.Patch(ctx, characterPath(NormalizeSessionID(sessionID), ch.ID), map[string]interface{}{"weapons": kept})
}

// AddTalent 添加特质
func (s *CharacterService) AddTalent(ctx context.Context, actor Actor, sessionID, characterID, name, effect string) (models.Talent, error) {
	ch, err := s.requireOwner(ctx, actor, sessionID, characterID)
	if err != nil {
		return models.Talent{}, err
	}
	t := models.Talent{ID: s.newID(), Name: name, Effect: effect}
	err = s.store.Patch(ctx, characterPath(NormalizeSessionID(sessionID), ch.ID), map[string]interface{}{
		store.AppendElement("talents"): t,
	})
	return t, err
}

// RemoveTalent 删除特质
func (s *CharacterService) RemoveTalent(ctx context.Context, actor Actor, sessionID, characterID, talentID string) error {
	ch, err := s.requireOwner(ctx, actor, sessionID, characterID)
	if err != nil {
		return err
	}
	kept := make([]models.Talent, 0, len(ch.Talents))
	for _, t := range ch.Talents {
		if t.ID != talentID {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(ch.Talents) {
		return errors.Newf(errors.ErrNotFound, "特质不存在: %s", talentID)
	}
	return s.store.Patch(ctx, characterPath(NormalizeSessionID(sessionID), ch.ID), map[string]interface{}{"talents": kept})
}

// SetExpression 设置表情立绘
func (s *CharacterService) SetExpression(ctx context.Context, actor Actor, sessionID, characterID, name, url string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New(errors.ErrInvalidParam, "表情名不能为空")
	}
	ch, err := s.requireOwner(ctx, actor, sessionID, characterID)
	if err != nil {
		return err
	}
	return s.store.Patch(ctx, characterPath(NormalizeSessionID(sessionID), ch.ID), map[string]interface{}{
		store.FieldPath("expressions", name): url,
	})
}

// RemoveExpression 删除表情立绘
func (s *CharacterService) RemoveExpression(ctx context.Context, actor Actor, sessionID, characterID, name string) error {
	ch, err := s.requireOwner(ctx, actor, sessionID, characterID)
	if err != nil {
		return err
	}
	if _, ok := ch.Expressions[name]; !ok {
		return errors.Newf(errors.ErrNotFound, "表情不存在: %s", name)
	}
	next := make(map[string]string, len(ch.Expressions))
	for k, v := range ch.Expressions {
		if k != name {
			next[k] = v
		}
	}
	return s.store.Patch(ctx, characterPath(NormalizeSessionID(sessionID), ch.ID), map[string]interface{}{"expressions": next})
}

// Owner 只读取角色的所有者字段
func (s *CharacterService) Owner(ctx context.Context, sessionID, characterID string) (string, error) {
	snap, err := s.store.Get(ctx, characterPath(NormalizeSessionID(sessionID), characterID))
	if err != nil {
		return "", err
	}
	if !snap.Exists {
		return "", errors.New(errors.ErrCharacterNotFound, characterID)
	}
	owner := snap.Get("owner")
	if owner.Type != gjson.String {
		return "", errors.New(errors.ErrDataIntegrity, "角色缺少所有者")
	}
	return owner.String(), nil
}
