// Package auth issues and verifies the HS256 bearer tokens the API uses to
// identify actors. Role checks themselves live in the booking domain; this
// package only turns a token into a booking.Actor.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/clinicbook/clinic-booking/internal/booking"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are the JWT claims carried in access tokens.
type Claims struct {
	Role booking.Role `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an access token for the given actor.
func IssueToken(secret []byte, actor booking.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role: actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken parses and validates a token and returns the actor it names.
func VerifyToken(secret []byte, tokenString string) (booking.Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return booking.Actor{}, ErrInvalidToken
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return booking.Actor{}, ErrInvalidToken
	}

	switch claims.Role {
	case booking.RolePatient, booking.RoleSecretary, booking.RoleAdmin:
	default:
		return booking.Actor{}, ErrInvalidToken
	}

	return booking.Actor{ID: id, Role: claims.Role}, nil
}
