package utils

import (
	"context"
	"errors"
	"fmt"

	"github.com/cambiartech/buykoins-be-sub000/internal/models"

	"github.com/golang-jwt/jwt/v4"
)

type JWTUtil struct {
	secret string
	redis  *RedisClient
}

func NewJWTUtil(secret string, redis *RedisClient) *JWTUtil {
	return &JWTUtil{secret: secret, redis: redis}
}

// ParseIdentity validates a bearer token and maps its claims onto an Account
// or Operator identity. Blacklisted tokens (logged-out sessions) fail the
// same way expired ones do.
func (j *JWTUtil) ParseIdentity(ctx context.Context, tokenString string) (models.Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(j.secret), nil
	})
	if err != nil || !token.Valid {
		return models.Identity{}, fmt.Errorf("%w: invalid bearer token", models.ErrAuthenticationFailed)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Identity{}, fmt.Errorf("%w: malformed claims", models.ErrAuthenticationFailed)
	}
	userID, _ := claims["user_id"].(string)
	role, _ := claims["role"].(string)
	if userID == "" {
		return models.Identity{}, fmt.Errorf("%w: missing subject", models.ErrAuthenticationFailed)
	}

	if j.redis != nil && j.isBlacklisted(ctx, tokenString) {
		return models.Identity{}, fmt.Errorf("%w: token revoked", models.ErrAuthenticationFailed)
	}

	switch role {
	case "operator", "admin":
		return models.OperatorIdentity(userID, permissionsFromClaims(claims)), nil
	default:
		return models.AccountIdentity(userID), nil
	}
}

func (j *JWTUtil) isBlacklisted(ctx context.Context, tokenString string) bool {
	var blacklisted bool
	err := j.redis.Get(ctx, fmt.Sprintf("blacklist:%s", tokenString), &blacklisted)
	return err == nil && blacklisted
}

func permissionsFromClaims(claims jwt.MapClaims) []string {
	raw, ok := claims["permissions"].([]interface{})
	if !ok {
		return nil
	}
	perms := make([]string, 0, len(raw))
	for _, p := range raw {
		if s, ok := p.(string); ok {
			perms = append(perms, s)
		}
	}
	return perms
}
