package sessions

import (
	"time"

	"github.com/jrsteele09/go-auth-client/token"
	"golang.org/x/oauth2"
)

// Session is the signed-in state of the app. Tokens come from the identity
// provider; the profile fields are derived from the identity token's claims at
// sign-in and are not touched by a refresh.
type Session struct {
	ID string `json:"id,omitempty"` // Client-local session identifier (UUID)

	// Tokens
	AccessToken  string `json:"accessToken"`  // Short-lived bearer credential
	IDToken      string `json:"idToken"`      // Signed identity token carrying the claims
	RefreshToken string `json:"refreshToken"` // Long-lived, mints new access/identity tokens

	// Profile derived from the identity token
	Email         string `json:"email"`
	Username      string `json:"username"`
	Name          string `json:"name"` // Full display name
	GivenName     string `json:"givenName,omitempty"`
	FamilyName    string `json:"familyName,omitempty"`
	Picture       string `json:"picture,omitempty"`
	Sub           string `json:"sub"`
	EmailVerified bool   `json:"emailVerified,omitempty"`
	Iat           int64  `json:"iat,omitempty"` // Identity token issued-at, unix seconds
	Exp           int64  `json:"exp,omitempty"` // Identity token expiry, unix seconds

	CreatedAt   time.Time `json:"createdAt"`
	RefreshedAt time.Time `json:"refreshedAt,omitempty"`
}

// Token exposes the access token as an oauth2 bearer token for outgoing calls.
// Expiry is the access token's own exp claim, else the identity token's.
func (s *Session) Token() *oauth2.Token {
	t := &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: s.RefreshToken,
	}
	exp := s.Exp
	if claims, err := token.Decode(s.AccessToken); err == nil && claims.ExpiresAt() > 0 {
		exp = claims.ExpiresAt()
	}
	if exp > 0 {
		t.Expiry = time.Unix(exp, 0)
	}
	return t
}

// Clone returns a copy that callers may mutate freely.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
