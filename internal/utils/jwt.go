package utils

import (
	"errors"
	"strconv"
	"time"

	"exchange/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "exchange-api"

var (
	ErrJWTSecretMissing = errors.New("JWT secret not configured")
	ErrInvalidToken     = errors.New("invalid token claims")
)

// GenerateToken signs an access token for claims that expires after ttl.
func GenerateToken(secret string, ttl time.Duration, claims *models.UserClaims, now time.Time) (string, error) {
	if secret == "" {
		return "", ErrJWTSecretMissing
	}

	signed := models.UserClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatUint(uint64(claims.UserID), 10),
			ID:        claims.SessionID,
		},
		UserID:    claims.UserID,
		Username:  claims.Username,
		Role:      claims.Role,
		SessionID: claims.SessionID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, signed).SignedString([]byte(secret))
}

// ParseToken parses and validates a JWT token string.
func ParseToken(secret, tokenStr string) (*models.UserClaims, error) {
	if secret == "" {
		return nil, ErrJWTSecretMissing
	}

	token, err := jwt.ParseWithClaims(tokenStr, &models.UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*models.UserClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
