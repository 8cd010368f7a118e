// Package credentials defines the third-party identifier types and the
// deterministic credential bundle derived from an identifier.
//
// A bundle is a pure function of (type, identifier, domain): the same input
// always yields the same username, email and password, so an account created
// for an identifier can be re-authenticated later without any stored state.
package credentials

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// DefaultEmailDomain is used when no domain is configured.
const DefaultEmailDomain = "jiuzhoufeiyi.com"

// MaxUsernameLength is the longest raw username the identity authority accepts.
const MaxUsernameLength = 50

// Type is a third-party identifier scheme.
type Type string

const (
	TypePhone         Type = "phone"
	TypeWechatUnionID Type = "wechat_unionid"
	TypeWeiboOpenID   Type = "weibo_openid"
	TypeQQUnionID     Type = "qq_unionid"
)

// Types lists every recognized identifier type in a stable order.
var Types = []Type{TypePhone, TypeWechatUnionID, TypeWeiboOpenID, TypeQQUnionID}

// ErrUnknownType is returned by ParseType for unrecognized names.
type ErrUnknownType string

func (e ErrUnknownType) Error() string {
	return fmt.Sprintf("unsupported identifier type %q", string(e))
}

// ParseType validates s as an identifier type.
func ParseType(s string) (Type, error) {
	t := Type(strings.TrimSpace(s))
	if !t.Valid() {
		return "", ErrUnknownType(s)
	}
	return t, nil
}

// Valid reports whether t is one of Types.
func (t Type) Valid() bool {
	switch t {
	case TypePhone, TypeWechatUnionID, TypeWeiboOpenID, TypeQQUnionID:
		return true
	}
	return false
}

// Prefix is prepended to the identifier before hashing into a username. The
// same prefix marks identifier-style usernames in the local engine.
func (t Type) Prefix() string {
	switch t {
	case TypePhone:
		return "phone_"
	case TypeWechatUnionID:
		return "wechat_"
	case TypeWeiboOpenID:
		return "weibo_"
	case TypeQQUnionID:
		return "qq_"
	}
	return ""
}

// ProfileField is the extended account attribute that stores the identifier.
func (t Type) ProfileField() string {
	switch t {
	case TypePhone:
		return "phone"
	case TypeWechatUnionID:
		return "wechat_unionid"
	case TypeWeiboOpenID:
		return "weibo_openid"
	case TypeQQUnionID:
		return "qq_union_id"
	}
	return ""
}

// Bundle is the synthetic {username, email, password} triple for an identifier.
type Bundle struct {
	Username string
	Email    string
	Password string
}

// Derive computes the bundle for (t, identifier, domain). An empty domain
// falls back to DefaultEmailDomain.
func Derive(t Type, identifier, domain string) Bundle {
	if domain == "" {
		domain = DefaultEmailDomain
	}

	raw := truncateRunes(t.Prefix()+sanitize(identifier), MaxUsernameLength)
	sum := md5.Sum([]byte(raw))
	username := hex.EncodeToString(sum[:])

	return Bundle{
		Username: username,
		Email:    username[8:24] + "@" + domain,
		Password: GeneratedPassword(t, identifier),
	}
}

// GeneratedPassword is the first 16 hex characters of sha256("type|identifier").
func GeneratedPassword(t Type, identifier string) string {
	sum := sha256.Sum256([]byte(string(t) + "|" + identifier))
	return hex.EncodeToString(sum[:])[:16]
}

// ParseUsername splits an identifier-style username such as "phone_138..."
// into its type and identifier. ok is false for ordinary usernames.
func ParseUsername(username string) (t Type, identifier string, ok bool) {
	for _, candidate := range Types {
		if rest, found := strings.CutPrefix(username, candidate.Prefix()); found && rest != "" {
			return candidate, rest, true
		}
	}
	return "", "", false
}

func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
