// Package session issues and verifies the stateless HS256 session tokens
// handed to callers after a successful login.
package session

import (
	"crypto/hmac"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/ucenter-gateway/internal/timex"
)

// DefaultTTL applies when neither the call nor the Config sets a lifetime.
const DefaultTTL = 2 * time.Hour

var (
	ErrTokenEmpty       = errors.New("session token is empty")
	ErrTokenMalformed   = errors.New("session token is malformed")
	ErrTokenSignature   = errors.New("session token signature mismatch")
	ErrTokenNotYetValid = errors.New("session token not valid yet")
	ErrTokenExpired     = errors.New("session token expired")
	ErrNoSecret         = errors.New("session secret is empty")
)

// Claims is the session payload: the registered claims plus the username.
// Subject holds the uid as decimal text.
type Claims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// UID parses Subject.
func (c *Claims) UID() (int64, error) {
	uid, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || uid <= 0 {
		return 0, fmt.Errorf("%w: subject %q is not a uid", ErrTokenMalformed, c.Subject)
	}
	return uid, nil
}

type Config struct {
	Secret   []byte
	TTL      time.Duration
	Issuer   string
	Audience string
	Clock    timex.Clock
}

// Issuer mints and verifies tokens with one shared secret.
type Issuer struct {
	secret   []byte
	ttl      time.Duration
	issuer   string
	audience string
	clock    timex.Clock
	parser   *jwt.Parser
}

func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrNoSecret
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	i := &Issuer{
		secret:   append([]byte(nil), cfg.Secret...),
		ttl:      ttl,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		clock:    cfg.Clock,
	}
	i.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithoutClaimsValidation(),
	)
	return i, nil
}

// Issue signs claims with iat and nbf set to now and exp to now+ttl. A
// non-positive ttl selects the configured default. Issuer, audience and a
// random token id are filled in when claims leave them empty.
func (i *Issuer) Issue(claims Claims, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = i.ttl
	}
	now := i.clock.Now()

	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.NotBefore = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	if claims.Issuer == "" {
		claims.Issuer = i.issuer
	}
	if len(claims.Audience) == 0 && i.audience != "" {
		claims.Audience = jwt.ClaimStrings{i.audience}
	}
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

// IssueFor mints a default-lifetime token for an authenticated account.
func (i *Issuer) IssueFor(uid int64, username string) (string, error) {
	return i.Issue(Claims{
		Username:         username,
		RegisteredClaims: jwt.RegisteredClaims{Subject: strconv.FormatInt(uid, 10)},
	}, 0)
}

// Verify checks token and returns its claims. The recomputed signature is
// compared in constant time with the encoded segment before the payload is
// decoded. nbf and exp are then checked in whole seconds: a token is valid
// up to and including its exp second.
func (i *Issuer) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrTokenEmpty
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrTokenMalformed
	}

	mac, err := jwt.SigningMethodHS256.Sign(parts[0]+"."+parts[1], i.secret)
	if err != nil {
		return nil, ErrTokenSignature
	}
	want := base64.RawURLEncoding.EncodeToString(mac)
	if !hmac.Equal([]byte(want), []byte(parts[2])) {
		return nil, ErrTokenSignature
	}

	claims := &Claims{}
	_, err = i.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, ErrTokenSignature
	default:
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	now := i.clock.Now().Unix()
	if claims.NotBefore != nil && claims.NotBefore.Unix() > now {
		return nil, ErrTokenNotYetValid
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Unix() < now {
		return nil, ErrTokenExpired
	}
	return claims, nil
}
