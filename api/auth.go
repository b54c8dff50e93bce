package api

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vigia-social/vigia/models"
)

const (
	accessScope = "vigia.access"
	tokenTTL    = 24 * time.Hour
)

func (s *Server) createAuthToken(uid models.Uid) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   strconv.FormatUint(uint64(uid), 10),
		"scope": accessScope,
		"iat":   now.Unix(),
		"exp":   now.Add(tokenTTL).Unix(),
	})

	signed, err := tok.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// VerifyToken checks an access token's signature and claims and returns the
// user identity it was issued to. It also backs the realtime gateway's
// handshake (realtime.TokenVerifier).
func (s *Server) VerifyToken(credential string) (models.Uid, error) {
	tok, err := jwt.Parse(credential, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil {
		return 0, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return 0, fmt.Errorf("invalid token claims")
	}

	if scope, _ := claims["scope"].(string); scope != accessScope {
		return 0, fmt.Errorf("unexpected token scope")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return 0, fmt.Errorf("expected user id in subject")
	}

	uid, err := strconv.ParseUint(sub, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed subject: %w", err)
	}

	return models.Uid(uid), nil
}
