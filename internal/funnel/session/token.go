package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenIssuer = "signup-funnel"
	tokenType   = "funnel_session"
)

var errInvalidToken = errors.New("invalid session token")

// Tokens signs and verifies the bearer tokens that carry a session id.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens creates an HS256 signer. ttl bounds how long a browser can hold on to a session.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for sessionID.
func (t *Tokens) Issue(sessionID uuid.UUID) (string, error) {
	now := t.now()
	claims := jwt.MapClaims{
		"sub":  sessionID.String(),
		"iss":  tokenIssuer,
		"type": tokenType,
		"iat":  now.Unix(),
		"exp":  now.Add(t.ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// ParseToken verifies raw and returns the session id it carries.
func (t *Tokens) ParseToken(raw string) (uuid.UUID, error) {
	parsed, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return t.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(t.now))
	if err != nil || !parsed.Valid {
		return uuid.Nil, errInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, errInvalidToken
	}
	if typ, _ := claims["type"].(string); typ != tokenType {
		return uuid.Nil, errInvalidToken
	}

	sub, _ := claims["sub"].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, errInvalidToken
	}
	return id, nil
}
