package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"github.com/wfunc/obscura/internal/database"
	"github.com/wfunc/obscura/internal/dice"
	"github.com/wfunc/obscura/internal/errors"
	"github.com/wfunc/obscura/internal/game"
	"github.com/wfunc/obscura/internal/models"
	"github.com/wfunc/obscura/internal/store"
	"gorm.io/gorm"
)

const readTimeout = 2 * time.Second

type TableHandlerTestSuite struct {
	suite.Suite
	db      *gorm.DB
	store   *store.Store
	svc     *game.Services
	hub     *Hub
	server  *httptest.Server
	cancel  context.CancelFunc
	session *models.Session
}

func TestTableHandlerSuite(t *testing.T) {
	suite.Run(t, new(TableHandlerTestSuite))
}

func (s *TableHandlerTestSuite) SetupTest() {
	db, err := database.OpenMemory()
	s.Require().NoError(err)
	s.db = db

	st, err := store.New(db, store.WithWriteTimeout(time.Second))
	s.Require().NoError(err)
	s.store = st

	// 前 6 个值生成会话ID ABCDEF，之后的检定骰为 12
	s.svc = game.NewServices(&game.ServicesConfig{
		Store:  st,
		Source: dice.NewSequenceSource(10, 11, 12, 13, 14, 15, 12),
	})

	s.session, err = s.svc.Sessions.CreateSession(context.Background(), game.Actor{UID: "keeper-uid", Nickname: "KP"})
	s.Require().NoError(err)

	s.hub = NewHub(NewTableHandler(s.svc, time.Second, nil), DefaultHubOptions(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.hub.Run(ctx)

	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		actor := game.Actor{UID: q.Get("uid"), Nickname: q.Get("nickname")}
		if _, err := s.hub.Serve(w, r, q.Get("session"), actor); err != nil {
			s.T().Logf("serve: %v", err)
		}
	}))
}

func (s *TableHandlerTestSuite) TearDownTest() {
	s.server.Close()
	s.cancel()
	s.store.Close()
	database.CloseDB(s.db)
}

func (s *TableHandlerTestSuite) dial(uid, nickname string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") +
		"/?session=" + s.session.ID + "&uid=" + uid + "&nickname=" + nickname
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	s.T().Cleanup(func() { conn.Close() })

	s.readUntil(conn, func(m *Message) bool { return m.Type == MessageTypeConnected })
	return conn
}

func (s *TableHandlerTestSuite) send(conn *websocket.Conn, msg Message) {
	s.Require().NoError(conn.WriteJSON(msg))
}

func (s *TableHandlerTestSuite) command(conn *websocket.Conn, id, msgType string, data interface{}) {
	raw, err := json.Marshal(data)
	s.Require().NoError(err)
	s.send(conn, Message{Type: msgType, ID: id, Data: raw})
}

// readUntil 读取消息直到满足条件，其余消息丢弃
func (s *TableHandlerTestSuite) readUntil(conn *websocket.Conn, match func(*Message) bool) *Message {
	deadline := time.Now().Add(readTimeout)
	s.Require().NoError(conn.SetReadDeadline(deadline))
	for {
		var msg Message
		s.Require().NoError(conn.ReadJSON(&msg))
		if match(&msg) {
			return &msg
		}
	}
}

func (s *TableHandlerTestSuite) reply(conn *websocket.Conn, id string) *Message {
	return s.readUntil(conn, func(m *Message) bool {
		return m.ID == id && (m.Type == MessageTypeAck || m.Type == MessageTypeError || m.Type == MessageTypePong)
	})
}

func (s *TableHandlerTestSuite) errorCode(msg *Message) errors.ErrorCode {
	s.Require().Equal(MessageTypeError, msg.Type, string(msg.Data))
	var p ErrorPayload
	s.Require().NoError(json.Unmarshal(msg.Data, &p))
	return p.Code
}

func (s *TableHandlerTestSuite) TestConnectAndPresence() {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/?session=" + s.session.ID + "&nickname=guest"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	defer conn.Close()

	msg := s.readUntil(conn, func(m *Message) bool { return m.Type == MessageTypeConnected })
	var connected ConnectedPayload
	s.Require().NoError(msg.Decode(&connected))
	s.Equal(s.session.ID, connected.SessionID)
	s.NotEmpty(connected.ClientID)
	s.True(connected.Actor.IsAnonymous())
	s.Equal("guest", connected.Actor.Nickname)

	s.dial("player-uid", "sky")
	msg = s.readUntil(conn, func(m *Message) bool {
		var p PresencePayload
		return m.Type == MessageTypePresence && m.Decode(&p) == nil && p.Online == 2
	})
	s.Equal(s.session.ID, msg.SessionID)
	s.Equal(2, s.hub.SessionClientCount(s.session.ID))
}

func (s *TableHandlerTestSuite) TestSubscribeChat() {
	conn := s.dial("player-uid", "sky")

	s.send(conn, Message{Type: MessageTypeSubscribe, ID: "s1", Topic: TopicChat})
	ack := s.reply(conn, "s1")
	s.Equal(MessageTypeAck, ack.Type)
	s.Equal(TopicChat, ack.Topic)

	s.command(conn, "c1", MessageTypeChat, TextPayload{Text: "문이 열린다"})
	ack = s.reply(conn, "c1")
	s.Require().Equal(MessageTypeAck, ack.Type)
	var sent models.ChatMessage
	s.Require().NoError(ack.Decode(&sent))
	s.Equal(models.ChatVN, sent.Type)
	s.Equal("문이 열린다", sent.Text)

	snap := s.readUntil(conn, func(m *Message) bool {
		var msgs []*models.ChatMessage
		return m.Type == MessageTypeSnapshot && m.Topic == TopicChat &&
			m.Decode(&msgs) == nil && len(msgs) == 1
	})
	s.Equal(s.session.ID, snap.SessionID)

	s.send(conn, Message{Type: MessageTypeUnsubscribe, ID: "u1", Topic: TopicChat})
	ack = s.reply(conn, "u1")
	s.JSONEq(`{"topic":"chat","removed":true}`, string(ack.Data))
}

func (s *TableHandlerTestSuite) TestSubscribeScene() {
	conn := s.dial("keeper-uid", "KP")

	s.send(conn, Message{Type: MessageTypeSubscribe, ID: "s1", Topic: TopicScene})
	s.Equal(MessageTypeAck, s.reply(conn, "s1").Type)

	keeper := game.Actor{UID: "keeper-uid"}
	s.Require().NoError(s.svc.Sessions.SetActiveMap(context.Background(), keeper, s.session.ID, "https://map/1.png"))

	s.readUntil(conn, func(m *Message) bool {
		var sess models.Session
		return m.Type == MessageTypeSnapshot && m.Topic == TopicScene &&
			m.Decode(&sess) == nil && sess.Scene.MapURL == "https://map/1.png"
	})
}

func (s *TableHandlerTestSuite) TestActRollAndPatch() {
	player := game.Actor{UID: "player-uid", Nickname: "sky"}
	ch, err := s.svc.Characters.Create(context.Background(), player, s.session.ID, "에드워드")
	s.Require().NoError(err)

	conn := s.dial("player-uid", "sky")

	s.command(conn, "a1", MessageTypeAct, ActPayload{CharacterID: ch.ID})
	ack := s.reply(conn, "a1")
	var actor game.Actor
	s.Require().NoError(ack.Decode(&actor))
	s.Equal(ch.ID, actor.ActingCharacterID)

	s.command(conn, "r1", MessageTypeRoll, RollPayload{RollRequest: game.RollRequest{
		CharacterID: ch.ID,
		SkillName:   "회피",
	}})
	ack = s.reply(conn, "r1")
	s.Require().Equal(MessageTypeAck, ack.Type, string(ack.Data))
	var rolled models.ChatMessage
	s.Require().NoError(ack.Decode(&rolled))
	s.Equal(models.ChatSkill, rolled.Type)
	s.Equal("에드워드", rolled.Sender)
	s.Equal("success-hard", rolled.ResultClass)

	s.command(conn, "p1", MessageTypePatch, PatchPayload{
		CharacterID: ch.ID,
		Fields:      map[string]interface{}{"stats.STR": 80},
	})
	ack = s.reply(conn, "p1")
	s.Require().Equal(MessageTypeAck, ack.Type, string(ack.Data))
	var updated models.Character
	s.Require().NoError(ack.Decode(&updated))
	s.Equal(80, updated.Stats.STR)

	other := s.dial("other-uid", "sea")
	s.command(other, "p2", MessageTypePatch, PatchPayload{
		CharacterID: ch.ID,
		Fields:      map[string]interface{}{"stats.STR": 10},
	})
	s.Equal(errors.ErrNotOwner, s.errorCode(s.reply(other, "p2")))

	s.command(other, "a2", MessageTypeAct, ActPayload{CharacterID: "gone"})
	s.Equal(errors.ErrCharacterNotFound, s.errorCode(s.reply(other, "a2")))
}

func (s *TableHandlerTestSuite) TestRejections() {
	conn := s.dial("player-uid", "sky")

	s.send(conn, Message{Type: MessageTypePing, ID: "p"})
	s.Equal(MessageTypePong, s.reply(conn, "p").Type)

	tests := []struct {
		name string
		msg  Message
		code errors.ErrorCode
	}{
		{"unknown type", Message{Type: "dance", ID: "1"}, errors.ErrMessageFormat},
		{"empty type", Message{ID: "2"}, errors.ErrMessageFormat},
		{"unknown topic", Message{Type: MessageTypeSubscribe, ID: "3", Topic: "weather"}, errors.ErrInvalidParam},
		{"missing data", Message{Type: MessageTypeChat, ID: "4"}, errors.ErrMessageFormat},
		{"blank chat", Message{Type: MessageTypeChat, ID: "5", Data: json.RawMessage(`{"text":" "}`)}, errors.ErrInvalidChatMessage},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.send(conn, tt.msg)
			s.Equal(tt.code, s.errorCode(s.reply(conn, tt.msg.ID)))
		})
	}

	s.Require().NoError(conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msg := s.readUntil(conn, func(m *Message) bool { return m.Type == MessageTypeError })
	s.Equal(errors.ErrMessageFormat, s.errorCode(msg))
}

func (s *TableHandlerTestSuite) TestDisconnectReleasesClient() {
	conn := s.dial("player-uid", "sky")
	s.send(conn, Message{Type: MessageTypeSubscribe, ID: "s1", Topic: TopicCharacters})
	s.reply(conn, "s1")
	s.Equal(1, s.hub.ClientCount())

	conn.Close()
	s.Eventually(func() bool { return s.hub.ClientCount() == 0 }, readTimeout, 10*time.Millisecond)
}
