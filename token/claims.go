package token

import (
	"sort"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-client/internal/utils"
)

// Standard claim names carried by the provider's identity token.
const (
	ClaimSubject           = "sub"
	ClaimEmail             = "email"
	ClaimEmailVerified     = "email_verified"
	ClaimPreferredUsername = "preferred_username"
	ClaimName              = "name"
	ClaimNickname          = "nickname"
	ClaimGivenName         = "given_name"
	ClaimFamilyName        = "family_name"
	ClaimPicture           = "picture"
	ClaimIssuedAt          = "iat"
	ClaimExpiresAt         = "exp"
	ClaimGroups            = "cognito:groups"
	ClaimUsername          = "cognito:username"
)

// Claims is the decoded identity token payload. The provider may add or omit
// claims at will, so it stays an open map and the accessors tolerate absence.
type Claims map[string]any

// Str returns the named claim if it is a string, "" otherwise.
func (c Claims) Str(name string) string {
	s, _ := c[name].(string)
	return s
}

func (c Claims) Subject() string           { return c.Str(ClaimSubject) }
func (c Claims) Email() string             { return c.Str(ClaimEmail) }
func (c Claims) PreferredUsername() string { return c.Str(ClaimPreferredUsername) }
func (c Claims) Name() string              { return c.Str(ClaimName) }
func (c Claims) Nickname() string          { return c.Str(ClaimNickname) }
func (c Claims) GivenName() string         { return c.Str(ClaimGivenName) }
func (c Claims) FamilyName() string        { return c.Str(ClaimFamilyName) }
func (c Claims) Picture() string           { return c.Str(ClaimPicture) }

// EmailVerified accepts both a JSON boolean and the string "true"; the provider
// has used both over time.
func (c Claims) EmailVerified() bool {
	switch v := c[ClaimEmailVerified].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}

// IssuedAt returns the iat claim in unix seconds, 0 when absent or invalid.
func (c Claims) IssuedAt() int64 {
	t, err := jwt.MapClaims(c).GetIssuedAt()
	if err != nil || t == nil {
		return 0
	}
	return t.Unix()
}

// ExpiresAt returns the exp claim in unix seconds, 0 when absent or invalid.
func (c Claims) ExpiresAt() int64 {
	t, err := jwt.MapClaims(c).GetExpirationTime()
	if err != nil || t == nil {
		return 0
	}
	return t.Unix()
}

func (c Claims) Groups() []string {
	groups, ok := c[ClaimGroups].([]any)
	if !ok {
		return nil
	}
	return utils.ToStringSlice(groups)
}

// Names lists every claim present, sorted.
func (c Claims) Names() []string {
	names := make([]string, 0, len(c))
	for k := range c {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
