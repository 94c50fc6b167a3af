package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	strconv2 "github.com/savsgio/gotils/strconv"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Tokens issues bearer tokens of the form payload.signature, where payload is
// base64url("identity|unix-expiry") and signature is its HMAC-SHA256.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *Tokens) Issue(identity string) string {
	expires := t.now().Add(t.ttl).Unix()
	payload := base64.RawURLEncoding.EncodeToString(
		strconv2.S2B(identity + "|" + strconv.FormatInt(expires, 10)),
	)
	return payload + "." + t.sign(payload)
}

// Verify 返回 token 对应的身份
func (t *Tokens) Verify(token string) (string, error) {
	payload, sig, ok := strings.Cut(token, ".")
	if !ok || !hmac.Equal(strconv2.S2B(sig), strconv2.S2B(t.sign(payload))) {
		return "", ErrInvalidToken
	}

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", ErrInvalidToken
	}
	// 邮箱本地部分允许出现 '|'，从右侧切分
	sep := strings.LastIndexByte(strconv2.B2S(raw), '|')
	if sep <= 0 {
		return "", ErrInvalidToken
	}
	identity := string(raw[:sep])
	expires, err := strconv.ParseInt(string(raw[sep+1:]), 10, 64)
	if err != nil {
		return "", ErrInvalidToken
	}
	if t.now().Unix() > expires {
		return "", ErrTokenExpired
	}
	return identity, nil
}

func (t *Tokens) sign(payload string) string {
	mac := hmac.New(sha256.New, t.secret)
	mac.Write(strconv2.S2B(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
