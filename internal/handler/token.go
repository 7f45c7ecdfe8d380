package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ecnc-dev/task-tracker/backend/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	errMissingToken = errors.New("missing bearer token")
	errInvalidToken = errors.New("invalid or expired token")
)

// AuthClaims 中 sub 为用户 ID，jti 用于登出后吊销
type AuthClaims struct {
	jwt.RegisteredClaims
}

func (h *Handler) issueToken(user *domain.User) (string, error) {
	now := time.Now()
	expiration := now.Add(time.Duration(h.config.JWT.Expiration) * time.Hour)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	})

	return token.SignedString([]byte(h.config.JWT.Secret))
}

func (h *Handler) parseToken(tokenString string) (*AuthClaims, error) {
	claims := &AuthClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			return []byte(h.config.JWT.Secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || claims.Subject == "" || claims.ID == "" {
		return nil, errInvalidToken
	}

	return claims, nil
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errMissingToken
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errInvalidToken
	}

	return strings.TrimSpace(token), nil
}

func revokedTokenKey(jti string) string {
	return fmt.Sprintf("revoked_token_%s", jti)
}

func (h *Handler) redisContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(h.config.Redis.OperationTimeout)*time.Second)
}

func (h *Handler) isTokenRevoked(claims *AuthClaims) (bool, error) {
	ctx, cancel := h.redisContext()
	defer cancel()

	n, err := h.redisClient.Exists(ctx, revokedTokenKey(claims.ID)).Result()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// revokeToken 记录吊销的 jti，保留到令牌本身过期为止
func (h *Handler) revokeToken(claims *AuthClaims) error {
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}

	ctx, cancel := h.redisContext()
	defer cancel()

	return h.redisClient.Set(ctx, revokedTokenKey(claims.ID), 1, ttl).Err()
}
