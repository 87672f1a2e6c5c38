package utils // package utils provides helpers for minting and verifying access tokens

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and parsing signed tokens
)

// AccessToken represents a signed JWT access token along with its expiry.
// Tokens are issued by the auth service; this service only mints them for
// local development through the dev-token command.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// Identity is what an access token says about its bearer.
type Identity struct {
	UserID uint64
	Role   string
}

// ErrInvalidClaims is returned when a verified token lacks a usable
// subject or role.
var ErrInvalidClaims = errors.New("invalid token claims")

// NewAccessToken builds and signs an HS256 JWT for a user.  The JWT carries
// the subject (sub), role, expiration (exp) and issued at (iat) claims.
func NewAccessToken(secret string, userID uint64, role string, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies raw with the HS256 secret and returns the
// bearer's identity.  Expired tokens and other signing methods are
// rejected.
func ParseAccessToken(secret, raw string) (Identity, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, err
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return Identity{}, ErrInvalidClaims
	}
	id, err := subject(claims["sub"])
	if err != nil {
		return Identity{}, err
	}
	role, _ := claims["role"].(string)
	if role == "" {
		return Identity{}, ErrInvalidClaims
	}
	return Identity{UserID: id, Role: role}, nil
}

// subject accepts the numeric sub written by NewAccessToken (decoded as a
// float64) as well as the string form other issuers use.
func subject(v interface{}) (uint64, error) {
	switch s := v.(type) {
	case float64:
		if s <= 0 || s != float64(uint64(s)) {
			return 0, ErrInvalidClaims
		}
		return uint64(s), nil
	case string:
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil || id == 0 {
			return 0, ErrInvalidClaims
		}
		return id, nil
	}
	return 0, ErrInvalidClaims
}
