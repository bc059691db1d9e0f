package web

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const sessionCookie = "bronx_session"

var ErrInvalidSession = errors.New("invalid session")

// Session is the authenticated dashboard identity carried in the JWT
// cookie. The Discord access token rides along so guild listings can
// be fetched without server-side session storage.
type Session struct {
	UserID      string
	Username    string
	AccessToken string
}

type sessionClaims struct {
	Username    string `json:"username"`
	AccessToken string `json:"access_token"`
	jwt.RegisteredClaims
}

// Sessions signs and verifies dashboard session cookies.
type Sessions struct {
	secret []byte
	ttl    time.Duration
}

func NewSessions(secret string, ttl time.Duration) *Sessions {
	return &Sessions{secret: []byte(secret), ttl: ttl}
}

func (s *Sessions) Issue(sess Session) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Username:    sess.Username,
		AccessToken: sess.AccessToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Sessions) Verify(tokenString string) (Session, error) {
	var claims sessionClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return Session{
		UserID:      claims.Subject,
		Username:    claims.Username,
		AccessToken: claims.AccessToken,
	}, nil
}
