package game

import (
	"bytes"
	"context"
	"html/template"
	"strings"

	"github.com/wfunc/obscura/internal/dice"
	"github.com/wfunc/obscura/internal/errors"
	"github.com/wfunc/obscura/internal/models"
	"github.com/wfunc/obscura/internal/store"
	"go.uber.org/zap"
)

// 聊天命令前缀
const (
	commandRoll   = "/r "
	commandMarkup = "/html "
	commandPrefix = "/"
)

// ChatService 聊天日志
type ChatService struct {
	store      store.DocumentStore
	sessions   *SessionService
	characters *CharacterService
	source     dice.Source
	opts       Options
	log        *zap.Logger
}

// NewChatService 创建聊天服务
func NewChatService(st store.DocumentStore, sessions *SessionService, characters *CharacterService, src dice.Source, opts Options, log *zap.Logger) *ChatService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChatService{
		store:      st,
		sessions:   sessions,
		characters: characters,
		source:     src,
		opts:       opts,
		log:        log,
	}
}

// Post 校验并追加一条消息，回填存储分配的ID与时间戳
func (s *ChatService) Post(ctx context.Context, sessionID string, msg *models.ChatMessage) (*models.ChatMessage, error) {
	if msg == nil {
		return nil, errors.New(errors.ErrInvalidChatMessage, "消息为空")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	msg.ID = ""
	msg.Timestamp = 0
	entry, err := s.store.Append(ctx, chatPath(sess.ID), msg)
	if err != nil {
		return nil, err
	}
	msg.ID = entry.ID
	msg.Timestamp = entry.Timestamp

	s.log.Debug("追加聊天消息",
		zap.String("session_id", sess.ID),
		zap.String("type", string(msg.Type)),
		zap.String("id", entry.ID))
	return msg, nil
}

// actingCharacter 当前扮演的角色，未选择或已不存在时返回 nil
func (s *ChatService) actingCharacter(ctx context.Context, actor Actor, sessionID string) (*models.Character, error) {
	if actor.ActingCharacterID == "" || s.characters == nil {
		return nil, nil
	}
	ch, err := s.characters.Get(ctx, sessionID, actor.ActingCharacterID)
	if errors.Is(err, errors.ErrCharacterNotFound) {
		return nil, nil
	}
	return ch, err
}

// Send 主输入框：解析命令后写入对应类型的消息
//
//	/r <表达式>  掷骰
//	/html <标记> 原样展示
//	/其他        旁白
//	普通文本     角色台词
func (s *ChatService) Send(ctx context.Context, actor Actor, sessionID, text string) (*models.ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New(errors.ErrInvalidChatMessage, "消息内容为空")
	}

	switch {
	case strings.HasPrefix(text, commandRoll):
		return s.RollDice(ctx, actor, sessionID, strings.TrimSpace(text[len(commandRoll):]), false)
	case strings.HasPrefix(text, commandMarkup):
		return s.Post(ctx, sessionID, models.NewMarkup(text[len(commandMarkup):]))
	case strings.HasPrefix(text, commandPrefix):
		return s.Post(ctx, sessionID, models.NewNarration(text))
	}

	ch, err := s.actingCharacter(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return s.Post(ctx, sessionID, models.NewVNLine(s.opts.NarratorName, text, nil, nil))
	}
	id := ch.ID
	var portrait *string
	if ch.PortraitURL != "" {
		portrait = &ch.PortraitURL
	}
	return s.Post(ctx, sessionID, models.NewVNLine(ch.Name, text, &id, portrait))
}

// SendOOC 场外聊天，发送者为昵称
func (s *ChatService) SendOOC(ctx context.Context, actor Actor, sessionID, text string) (*models.ChatMessage, error) {
	return s.Post(ctx, sessionID, models.NewOOCChat(actor.NameOr(s.opts.AnonymousNickname), text))
}

// SendIC 旧式角色台词
func (s *ChatService) SendIC(ctx context.Context, actor Actor, sessionID, text string) (*models.ChatMessage, error) {
	ch, err := s.actingCharacter(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	sender := actor.NameOr(s.opts.AnonymousNickname)
	if ch != nil {
		sender = ch.Name
	}
	return s.Post(ctx, sessionID, models.NewICLine(sender, text))
}

// RollDice 掷骰；表达式不合法时写入一条旁白说明
func (s *ChatService) RollDice(ctx context.Context, actor Actor, sessionID, raw string, ooc bool) (*models.ChatMessage, error) {
	expr, err := dice.ParseExpression(raw, s.opts.DiceLimits)
	if err != nil {
		s.log.Debug("无效的骰子表达式", zap.String("expr", raw), zap.Error(err))
		return s.Post(ctx, sessionID, models.NewNarration(dice.InvalidText(raw)))
	}

	sender := actor.NameOr(s.opts.AnonymousNickname)
	if !ooc {
		ch, err := s.actingCharacter(ctx, actor, sessionID)
		if err != nil {
			return nil, err
		}
		sender = s.opts.AnonymousNickname
		if ch != nil {
			sender = ch.Name
		}
	}

	result := expr.Roll(s.source)
	return s.Post(ctx, sessionID, models.NewDiceMessage(sender, result, ooc))
}

// SendImage 图片消息
func (s *ChatService) SendImage(ctx context.Context, sessionID, data string) (*models.ChatMessage, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, errors.New(errors.ErrInvalidChatMessage, "图片数据为空")
	}
	return s.Post(ctx, sessionID, models.NewImageMessage(data))
}

func (s *ChatService) window() store.Query {
	return store.Query{Limit: s.opts.ChatWindow}
}

func (s *ChatService) decodeEntries(entries []store.Entry) []*models.ChatMessage {
	out := make([]*models.ChatMessage, 0, len(entries))
	for _, e := range entries {
		var msg models.ChatMessage
		if err := e.Decode(&msg); err != nil {
			s.log.Warn("跳过无法解码的消息", zap.String("id", e.ID), zap.Error(err))
			continue
		}
		msg.ID = e.ID
		msg.Timestamp = e.Timestamp
		out = append(out, &msg)
	}
	return out
}

// Recent 最近一个窗口内的消息，按时间升序
func (s *ChatService) Recent(ctx context.Context, sessionID string) ([]*models.ChatMessage, error) {
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	q := s.window()
	q.Collection = chatPath(sess.ID)
	entries, err := s.store.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	return s.decodeEntries(entries), nil
}

// Subscribe 订阅消息窗口
func (s *ChatService) Subscribe(ctx context.Context, sessionID string, fn func([]*models.ChatMessage)) (store.Unsubscribe, error) {
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	q := s.window()
	q.Collection = chatPath(sess.ID)
	return s.store.SubscribeQuery(ctx, q, func(entries []store.Entry) {
		fn(s.decodeEntries(entries))
	})
}

var exportTemplate = template.Must(template.New("log").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Obscura Log {{.SessionID}}</title>
<style>
body { background: #111; color: #ddd; font-family: sans-serif; padding: 20px; }
.msg { margin-bottom: 6px; }
.sender { color: #c9a227; font-weight: bold; margin-right: 4px; }
img { max-width: 480px; display: block; margin: 8px 0; }
</style>
</head>
<body>
<h1>Log Export: {{.SessionID}}</h1>
{{range .Lines}}{{if .Raw}}<div>{{.Raw}}</div>
{{else if .Image}}<img src="{{.Image}}">
{{else}}<div class="msg"><span class="sender">{{.Sender}}:</span> {{.Text}}</div>
{{end}}{{end}}</body>
</html>
`))

type exportLine struct {
	Raw    template.HTML
	Image  interface{}
	Sender string
	Text   string
}

const exportDefaultSender = "System"

// ExportLog 把当前窗口渲染为独立的HTML文档
func (s *ChatService) ExportLog(ctx context.Context, sessionID string) ([]byte, error) {
	msgs, err := s.Recent(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	lines := make([]exportLine, 0, len(msgs))
	for _, m := range msgs {
		switch {
		case m.Type == models.ChatHTML:
			lines = append(lines, exportLine{Raw: template.HTML(m.Text)})
		case m.IsImage():
			lines = append(lines, exportLine{Image: imageSource(m.ImageData())})
		default:
			sender := m.Sender
			if sender == "" {
				sender = exportDefaultSender
			}
			lines = append(lines, exportLine{Sender: sender, Text: exportText(m)})
		}
	}

	var buf bytes.Buffer
	err = exportTemplate.Execute(&buf, struct {
		SessionID string
		Lines     []exportLine
	}{SessionID: NormalizeSessionID(sessionID), Lines: lines})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrUnknown, "渲染日志失败")
	}
	return buf.Bytes(), nil
}

// imageSource 只有 data:image/ 原样输出，其余交给模板按URL过滤
func imageSource(data string) interface{} {
	if strings.HasPrefix(data, "data:image/") {
		return template.URL(data)
	}
	return data
}

// exportText 检定消息没有 text 字段，导出时用技能名与结果代替
func exportText(m *models.ChatMessage) string {
	if m.Text != "" {
		return m.Text
	}
	switch m.Type {
	case models.ChatSkill:
		return m.SkillName + " " + m.ResultText
	case models.ChatBonusSkill:
		return m.SkillName
	}
	return ""
}
