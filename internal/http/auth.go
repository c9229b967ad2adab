package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Claims 令牌主体（当前只需区分调用方身份）
type Claims struct {
	Subject string
}

var ErrInvalidToken = errors.New("invalid token")

// SignToken 生成 "subject.signature" 形式令牌
// signature = hex(hmac-sha256(secret, subject))
func SignToken(subject, secret string) string {
	return subject + "." + signSubject(subject, secret)
}

// VerifyToken 校验令牌并取出主体
func VerifyToken(token, secret string) (Claims, error) {
	dot := strings.LastIndex(token, ".")
	if dot <= 0 || dot == len(token)-1 {
		return Claims{}, ErrInvalidToken
	}
	subject, sig := token[:dot], token[dot+1:]
	if !hmac.Equal([]byte(sig), []byte(signSubject(subject, secret))) {
		return Claims{}, ErrInvalidToken
	}
	return Claims{Subject: subject}, nil
}

func signSubject(subject, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(subject))
	return hex.EncodeToString(mac.Sum(nil))
}

// bearerToken 从 Authorization 头取出令牌（兼容无 Bearer 前缀）
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return header
}
