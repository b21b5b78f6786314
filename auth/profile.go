package auth

import (
	"strings"

	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/token"
)

// Profile is the normalized view of the identity token's claims.
type Profile struct {
	Email         string   `json:"email"`
	Username      string   `json:"username"`
	FullName      string   `json:"fullName"`
	GivenName     string   `json:"givenName,omitempty"`
	FamilyName    string   `json:"familyName,omitempty"`
	Picture       string   `json:"picture,omitempty"`
	EmailVerified bool     `json:"emailVerified"`
	Sub           string   `json:"sub"`
	Groups        []string `json:"groups,omitempty"`
	ClaimNames    []string `json:"claimNames"` // every claim present, for callers that need more than the above
}

// DeriveUsername picks the first non-empty of preferred_username, name,
// nickname and the email's local part.
func DeriveUsername(claims token.Claims, email string) string {
	return utils.FirstNonEmpty(
		claims.PreferredUsername(),
		claims.Name(),
		claims.Nickname(),
		utils.LocalPart(email),
	)
}

// DeriveFullName prefers the name claim, then "given family", then username.
func DeriveFullName(claims token.Claims, username string) string {
	if name := claims.Name(); strings.TrimSpace(name) != "" {
		return name
	}
	var parts []string
	for _, part := range []string{claims.GivenName(), claims.FamilyName()} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	return username
}

func profileFromClaims(claims token.Claims, fallbackEmail string) *Profile {
	email := utils.FirstNonEmpty(claims.Email(), fallbackEmail)
	username := DeriveUsername(claims, email)
	return &Profile{
		Email:         email,
		Username:      username,
		FullName:      DeriveFullName(claims, username),
		GivenName:     claims.GivenName(),
		FamilyName:    claims.FamilyName(),
		Picture:       claims.Picture(),
		EmailVerified: claims.EmailVerified(),
		Sub:           claims.Subject(),
		Groups:        claims.Groups(),
		ClaimNames:    claims.Names(),
	}
}
