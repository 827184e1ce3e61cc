package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated is returned for any credential the verifier cannot
// accept: bad signature, expired, malformed, or missing claims.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is the result of verifying a credential.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Verifier validates and issues signed bearer tokens. It is stateless:
// every privileged operation re-derives the identity from the raw token,
// so a revoked or expired token stops working on the very next event.
type Verifier struct {
	secret []byte
	ttl    time.Duration
}

func NewVerifier(secret string, ttl time.Duration) *Verifier {
	return &Verifier{secret: []byte(secret), ttl: ttl}
}

// Verify parses tokenString and returns the identity it carries.
func (v *Verifier) Verify(tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, ErrUnauthenticated
	}

	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrUnauthenticated
	}
	if c.Subject == "" {
		return Identity{}, ErrUnauthenticated
	}
	return Identity{ID: c.Subject, Username: c.Username}, nil
}

// Issue signs a token for the given user, valid for the verifier's TTL.
func (v *Verifier) Issue(id, username string) (string, error) {
	now := time.Now()
	c := claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(v.secret)
}
