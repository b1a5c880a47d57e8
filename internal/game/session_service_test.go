package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/obscura/internal/dice"
	"github.com/wfunc/obscura/internal/errors"
	"github.com/wfunc/obscura/internal/models"
)

type SessionServiceTestSuite struct {
	tableSuite
}

func TestSessionServiceSuite(t *testing.T) {
	suite.Run(t, new(SessionServiceTestSuite))
}

func (s *SessionServiceTestSuite) TestCreateSession() {
	sess := s.newSession()
	s.Equal("ABCDEF", sess.ID)
	s.Equal(s.keeper.UID, sess.KeeperID)
	s.NotZero(sess.CreatedAt)

	snap, err := s.store.Get(s.ctx, "sessions/ABCDEF")
	s.Require().NoError(err)
	s.True(snap.Exists)
	s.Equal("keeper-uid", snap.Get("keeperId").String())
	s.Equal("", snap.Get("scene.mapUrl").String())
	s.True(snap.Get("scene.maps").IsArray())
	s.True(snap.Get("scene.bgms").IsArray())
	s.True(snap.Get("scene.handouts").IsArray())
	s.True(snap.Get("scene.activeHandout").Exists())
	s.Equal("null", snap.Get("scene.activeHandout").Raw)
}

func (s *SessionServiceTestSuite) TestCreateSessionAnonymous() {
	_, err := s.svc.Sessions.CreateSession(s.ctx, s.anon)
	s.True(errors.Is(err, errors.ErrAnonymousForbidden))
}

func (s *SessionServiceTestSuite) TestCreateSessionRetriesOnCollision() {
	s.Require().NoError(s.store.Put(s.ctx, "sessions/ABCDEF", map[string]interface{}{"keeperId": "someone"}))

	svc := NewSessionService(s.store, dice.NewSequenceSource(10, 11, 12, 13, 14, 15, 0, 1, 2, 3, 4, 5), DefaultOptions(), nil)
	sess, err := svc.CreateSession(s.ctx, s.keeper)
	s.Require().NoError(err)
	s.Equal("012345", sess.ID)

	// 原会话保持不变
	snap, err := s.store.Get(s.ctx, "sessions/ABCDEF")
	s.Require().NoError(err)
	s.Equal("someone", snap.Get("keeperId").String())
}

func (s *SessionServiceTestSuite) TestCreateSessionGivesUp() {
	s.Require().NoError(s.store.Put(s.ctx, "sessions/ABCDEF", map[string]interface{}{"keeperId": "someone"}))

	svc := NewSessionService(s.store, dice.NewSequenceSource(10, 11, 12, 13, 14, 15), DefaultOptions(), nil)
	_, err := svc.CreateSession(s.ctx, s.keeper)
	s.True(errors.Is(err, errors.ErrSyncWrite))
}

func (s *SessionServiceTestSuite) TestJoinSession() {
	s.newSession()

	sess, err := s.svc.Sessions.JoinSession(s.ctx, "abcdef")
	s.Require().NoError(err)
	s.Equal("ABCDEF", sess.ID)
	s.NotNil(sess.Scene.Maps)

	_, err = s.svc.Sessions.JoinSession(s.ctx, "ZZZZZZ")
	s.True(errors.Is(err, errors.ErrSessionNotFound))

	_, err = s.svc.Sessions.JoinSession(s.ctx, "  ")
	s.True(errors.Is(err, errors.ErrSessionNotFound))
}

func (s *SessionServiceTestSuite) TestSceneCatalogs() {
	sess := s.newSession()
	svc := s.svc.Sessions

	item, err := svc.AddMap(s.ctx, s.keeper, sess.ID, "", "https://img/1.png")
	s.Require().NoError(err)
	s.Equal(models.DefaultMapName, item.Name)

	_, err = svc.AddMap(s.ctx, s.keeper, sess.ID, "저택", "https://img/2.png")
	s.Require().NoError(err)
	_, err = svc.AddBgm(s.ctx, s.keeper, sess.ID, "빗소리", "https://bgm/rain.mp3")
	s.Require().NoError(err)
	_, err = svc.AddHandout(s.ctx, s.keeper, sess.ID, "", "https://img/letter.png")
	s.Require().NoError(err)

	got, err := svc.GetSession(s.ctx, sess.ID)
	s.Require().NoError(err)
	s.Require().Len(got.Scene.Maps, 2)
	s.Equal("저택", got.Scene.Maps[1].Name)
	s.Equal("https://img/2.png", got.Scene.Maps[1].URL)
	s.Require().Len(got.Scene.Bgms, 1)
	s.Require().Len(got.Scene.Handouts, 1)
	s.Equal(models.DefaultHandoutName, got.Scene.Handouts[0].Name)
}

func (s *SessionServiceTestSuite) TestScenePointers() {
	sess := s.newSession()
	svc := s.svc.Sessions

	s.Require().NoError(svc.SetActiveMap(s.ctx, s.keeper, sess.ID, "https://img/1.png"))
	s.Require().NoError(svc.SetActiveBgm(s.ctx, s.keeper, sess.ID, "https://bgm/rain.mp3"))
	s.Require().NoError(svc.ShowHandout(s.ctx, s.keeper, sess.ID, "https://img/letter.png"))

	got, err := svc.GetSession(s.ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal("https://img/1.png", got.Scene.MapURL)
	s.Equal("https://bgm/rain.mp3", got.Scene.BgmURL)
	s.Require().NotNil(got.Scene.ActiveHandout)
	s.Equal("https://img/letter.png", *got.Scene.ActiveHandout)

	s.Require().NoError(svc.HideHandout(s.ctx, s.keeper, sess.ID))
	got, err = svc.GetSession(s.ctx, sess.ID)
	s.Require().NoError(err)
	s.Nil(got.Scene.ActiveHandout)
	// 其他字段不受影响
	s.Equal("https://img/1.png", got.Scene.MapURL)
}

func (s *SessionServiceTestSuite) TestSceneRequiresKeeper() {
	sess := s.newSession()
	svc := s.svc.Sessions

	_, err := svc.AddMap(s.ctx, s.player, sess.ID, "x", "https://img/1.png")
	s.True(errors.Is(err, errors.ErrNotKeeper))
	s.True(errors.Is(svc.SetActiveMap(s.ctx, s.anon, sess.ID, "https://img/1.png"), errors.ErrNotKeeper))
	s.True(errors.Is(svc.HideHandout(s.ctx, s.player, sess.ID), errors.ErrNotKeeper))

	got, err := svc.GetSession(s.ctx, sess.ID)
	s.Require().NoError(err)
	s.Empty(got.Scene.Maps)
	s.Empty(got.Scene.MapURL)

	ok, err := svc.IsKeeper(s.ctx, s.keeper, sess.ID)
	s.Require().NoError(err)
	s.True(ok)
	ok, err = svc.IsKeeper(s.ctx, s.player, sess.ID)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *SessionServiceTestSuite) TestSceneValidation() {
	sess := s.newSession()
	svc := s.svc.Sessions

	_, err := svc.AddMap(s.ctx, s.keeper, sess.ID, "x", "  ")
	s.True(errors.Is(err, errors.ErrInvalidScene))
	s.True(errors.Is(svc.ShowHandout(s.ctx, s.keeper, sess.ID, ""), errors.ErrInvalidScene))

	_, err = svc.AddMap(s.ctx, s.keeper, "ZZZZZZ", "x", "https://img/1.png")
	s.True(errors.Is(err, errors.ErrSessionNotFound))
}

func (s *SessionServiceTestSuite) TestSubscribeSession() {
	rec := newRecorder[*models.Session]()
	unsub, err := s.svc.Sessions.SubscribeSession(s.ctx, "ABCDEF", rec.add)
	s.Require().NoError(err)
	defer unsub()

	// 会话尚不存在
	first := rec.waitN(s.T(), 1)
	s.Nil(first[0])

	sess := s.newSession()
	s.Require().Eventually(func() bool {
		last, ok := rec.last()
		return ok && last != nil
	}, waitFor, 5*time.Millisecond)

	s.Require().NoError(s.svc.Sessions.SetActiveMap(s.ctx, s.keeper, sess.ID, "https://img/1.png"))
	s.Require().Eventually(func() bool {
		last, ok := rec.last()
		return ok && last != nil && last.Scene.MapURL == "https://img/1.png"
	}, waitFor, 5*time.Millisecond)
}

func TestNormalizeSessionID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abc123", "ABC123"},
		{" AbC123 ", "ABC123"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSessionID(tt.in))
		})
	}
}

func TestNewSessionIDAlphabet(t *testing.T) {
	svc := NewSessionService(nil, dice.NewSequenceSource(0, 9, 10, 35), Options{SessionIDLength: 4}, nil)
	require.Equal(t, "09AZ", svc.newSessionID())
}
