package utils

import (
	stderrors "errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/wfunc/obscura/internal/errors"
)

// MaxNicknameLength 昵称最大长度（按字符计）
const MaxNicknameLength = 32

// IdentityClaims 匿名身份令牌
type IdentityClaims struct {
	UID      string `json:"uid"`
	Nickname string `json:"nickname"`
	jwt.RegisteredClaims
}

// JWTManager JWT管理器
type JWTManager struct {
	secretKey []byte
	issuer    string
	expiry    time.Duration
	now       func() time.Time
}

// NewJWTManager 创建JWT管理器
func NewJWTManager(secretKey, issuer string, expiry time.Duration) *JWTManager {
	return &JWTManager{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		expiry:    expiry,
		now:       time.Now,
	}
}

// NormalizeNickname 去掉首尾空白并截断
func NormalizeNickname(nickname string) string {
	nickname = strings.TrimSpace(nickname)
	if r := []rune(nickname); len(r) > MaxNicknameLength {
		nickname = string(r[:MaxNicknameLength])
	}
	return nickname
}

// IssueAnonymous 匿名登录：分配新的 uid 并签发令牌
func (j *JWTManager) IssueAnonymous(nickname string) (string, *IdentityClaims, error) {
	return j.Issue(uuid.NewString(), nickname)
}

// Issue 为已有 uid 签发令牌（修改昵称时沿用原 uid）
func (j *JWTManager) Issue(uid, nickname string) (string, *IdentityClaims, error) {
	if uid == "" {
		return "", nil, errors.New(errors.ErrInvalidParam, "uid 不能为空")
	}

	now := j.now()
	claims := &IdentityClaims{
		UID:      uid,
		Nickname: NormalizeNickname(nickname),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(j.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    j.issuer,
			Subject:   uid,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", nil, errors.Wrap(err, errors.ErrAuthentication, "签发令牌失败")
	}
	return signed, claims, nil
}

// ValidateToken 验证令牌
func (j *JWTManager) ValidateToken(tokenString string) (*IdentityClaims, error) {
	if tokenString == "" {
		return nil, errors.New(errors.ErrTokenInvalid, "令牌为空")
	}

	token, err := jwt.ParseWithClaims(tokenString, &IdentityClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, stderrors.New("unexpected signing method")
		}
		return j.secretKey, nil
	}, jwt.WithIssuer(j.issuer), jwt.WithTimeFunc(j.now))
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.Wrap(err, errors.ErrTokenExpired)
		}
		return nil, errors.Wrap(err, errors.ErrTokenInvalid)
	}

	claims, ok := token.Claims.(*IdentityClaims)
	if !ok || !token.Valid || claims.UID == "" {
		return nil, errors.New(errors.ErrTokenInvalid)
	}
	return claims, nil
}

// Expiry 令牌有效期
func (j *JWTManager) Expiry() time.Duration {
	return j.expiry
}
