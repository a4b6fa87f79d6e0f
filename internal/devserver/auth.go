package devserver

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingPublicKey = errors.New("missing public key")
	ErrUnknownPublicKey = errors.New("unknown public key")
	ErrInvalidToken     = errors.New("invalid identity token")
)

// Claims carries the account uid an identity token was issued for.
type Claims struct {
	jwt.RegisteredClaims
	UID string `json:"uid"`
}

// Tokens issues and verifies HS256 identity tokens.
type Tokens struct {
	secret   []byte
	validity time.Duration
	now      func() time.Time
}

func NewTokens(secret string, validity time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), validity: validity, now: time.Now}
}

// Issue returns a signed token for uid.
func (t *Tokens) Issue(uid string) (string, error) {
	now := t.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.validity)),
		},
		UID: uid,
	})
	return token.SignedString(t.secret)
}

// Verify returns the uid a valid token was issued for.
func (t *Tokens) Verify(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		return "", errors.Join(ErrInvalidToken, err)
	}
	if !token.Valid || claims.UID == "" {
		return "", ErrInvalidToken
	}
	return claims.UID, nil
}
