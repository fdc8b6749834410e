// Package auth issues and verifies the HS256 access and refresh tokens
// used by the HTTP surface. Tokens embed a per-user version so logout
// can invalidate everything issued before it.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Shiwasmii/CunaPay.Api/internal/identity"
)

// ErrInvalidToken covers malformed, expired, and mis-signed tokens.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the verified content of a token.
type Claims struct {
	UserID  string
	Email   string
	Role    string
	Version int
}

func sign(user identity.User, secret string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"role":  user.Role,
		"ver":   user.TokenVersion,
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func verify(tokenStr, secret string) (Claims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	sub, _ := mapClaims["sub"].(string)
	email, _ := mapClaims["email"].(string)
	role, _ := mapClaims["role"].(string)
	ver, _ := mapClaims["ver"].(float64)
	if sub == "" {
		return Claims{}, ErrInvalidToken
	}
	return Claims{UserID: sub, Email: email, Role: role, Version: int(ver)}, nil
}
