package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/obscura/internal/errors"
)

// JWTTestSuite JWT工具测试套件
type JWTTestSuite struct {
	suite.Suite
	manager *JWTManager
}

func (suite *JWTTestSuite) SetupTest() {
	suite.manager = NewJWTManager("test-secret-key", "obscura", time.Hour)
}

func (suite *JWTTestSuite) TestIssueAnonymous() {
	token, claims, err := suite.manager.IssueAnonymous("  하늘  ")
	suite.Require().NoError(err)
	suite.NotEmpty(token)
	suite.Len(claims.UID, 36)
	suite.Equal("하늘", claims.Nickname)
	suite.Equal("obscura", claims.Issuer)

	other, _, err := suite.manager.IssueAnonymous("하늘")
	suite.Require().NoError(err)
	suite.NotEqual(token, other)
}

func (suite *JWTTestSuite) TestValidateToken() {
	token, issued, err := suite.manager.Issue("uid-1", "바다")
	suite.Require().NoError(err)

	claims, err := suite.manager.ValidateToken(token)
	suite.Require().NoError(err)
	suite.Equal(issued.UID, claims.UID)
	suite.Equal("바다", claims.Nickname)
}

func (suite *JWTTestSuite) TestIssueRequiresUID() {
	_, _, err := suite.manager.Issue("", "x")
	suite.True(errors.Is(err, errors.ErrInvalidParam))
}

func (suite *JWTTestSuite) TestExpiredToken() {
	past := time.Now().Add(-2 * time.Hour)
	suite.manager.now = func() time.Time { return past }
	token, _, err := suite.manager.Issue("uid-1", "x")
	suite.Require().NoError(err)

	suite.manager.now = time.Now
	_, err = suite.manager.ValidateToken(token)
	suite.True(errors.Is(err, errors.ErrTokenExpired))
}

func (suite *JWTTestSuite) TestInvalidTokens() {
	token, _, err := suite.manager.Issue("uid-1", "x")
	suite.Require().NoError(err)

	otherSecret, _, err := NewJWTManager("other-secret", "obscura", time.Hour).Issue("uid-1", "x")
	suite.Require().NoError(err)
	otherIssuer, _, err := NewJWTManager("test-secret-key", "someone", time.Hour).Issue("uid-1", "x")
	suite.Require().NoError(err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &IdentityClaims{UID: "uid-1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	suite.Require().NoError(err)

	tests := map[string]string{
		"empty":        "",
		"garbage":      "not.a.token",
		"tampered":     token + "x",
		"other secret": otherSecret,
		"other issuer": otherIssuer,
		"alg none":     unsigned,
	}
	for name, tok := range tests {
		suite.Run(name, func() {
			_, err := suite.manager.ValidateToken(tok)
			suite.True(errors.Is(err, errors.ErrTokenInvalid), err)
		})
	}
}

func TestJWTSuite(t *testing.T) {
	suite.Run(t, new(JWTTestSuite))
}

func TestNormalizeNickname(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trim", "  kp ", "kp"},
		{"empty", "   ", ""},
		{"korean kept", "탐사자", "탐사자"},
		{"truncate", strings.Repeat("가", 40), strings.Repeat("가", MaxNicknameLength)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeNickname(tt.in))
		})
	}
}
