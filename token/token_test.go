package token_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-client/token"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("test-signing-key")

func signHS256(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testKey)
	require.NoError(t, err)
	return raw
}

func TestDecode_RoundTrip(t *testing.T) {
	in := jwt.MapClaims{"sub": "123", "email": "a@b.com", "name": "Alice Smith"}
	claims, err := token.Decode(signHS256(t, in))
	require.NoError(t, err)
	require.Equal(t, token.Claims{"sub": "123", "email": "a@b.com", "name": "Alice Smith"}, claims)
}

func TestDecode_IgnoresHeaderAndSignature(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"abc"}`))
	claims, err := token.Decode("not-a-header." + payload + ".not-a-signature")
	require.NoError(t, err)
	require.Equal(t, "abc", claims.Subject())
}

func TestDecode_PaddedPayload(t *testing.T) {
	payload := base64.URLEncoding.EncodeToString([]byte(`{"sub":"ab"}`))
	claims, err := token.Decode("h." + payload + ".s")
	require.NoError(t, err)
	require.Equal(t, "ab", claims.Subject())
}

func TestDecode_FailsClosed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"one segment", "abc"},
		{"two segments", "abc.def"},
		{"four segments", "a.b.c.d"},
		{"invalid base64", "h.!!!.s"},
		{"not json", "h." + base64.RawURLEncoding.EncodeToString([]byte("hello")) + ".s"},
		{"json array", "h." + base64.RawURLEncoding.EncodeToString([]byte(`["a"]`)) + ".s"},
		{"json null", "h." + base64.RawURLEncoding.EncodeToString([]byte(`null`)) + ".s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := token.Decode(tt.raw)
			require.ErrorIs(t, err, token.ErrMalformed)
			require.Nil(t, claims)
		})
	}
}

func TestClaims_Accessors(t *testing.T) {
	iat := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	raw := signHS256(t, jwt.MapClaims{
		"sub":                "u-1",
		"email":              "alice@example.com",
		"email_verified":     "true",
		"preferred_username": "alice",
		"given_name":         "Alice",
		"family_name":        "Smith",
		"picture":            "https://example.com/a.png",
		"cognito:groups":     []string{"students", "beta"},
		"iat":                iat.Unix(),
		"exp":                iat.Add(time.Hour).Unix(),
		"custom:school":      42,
	})

	claims, err := token.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, "u-1", claims.Subject())
	require.Equal(t, "alice@example.com", claims.Email())
	require.True(t, claims.EmailVerified())
	require.Equal(t, "alice", claims.PreferredUsername())
	require.Equal(t, "Alice", claims.GivenName())
	require.Equal(t, "Smith", claims.FamilyName())
	require.Equal(t, "", claims.Name())
	require.Equal(t, "", claims.Nickname())
	require.Equal(t, "https://example.com/a.png", claims.Picture())
	require.Equal(t, []string{"students", "beta"}, claims.Groups())
	require.Equal(t, iat.Unix(), claims.IssuedAt())
	require.Equal(t, iat.Add(time.Hour).Unix(), claims.ExpiresAt())
	require.Equal(t, "", claims.Str("custom:school"), "non-string claims read as empty")
	require.Contains(t, claims.Names(), "custom:school")
	require.IsIncreasing(t, claims.Names())
}

func TestClaims_Absent(t *testing.T) {
	var claims token.Claims
	require.Equal(t, "", claims.Email())
	require.False(t, claims.EmailVerified())
	require.Zero(t, claims.IssuedAt())
	require.Zero(t, claims.ExpiresAt())
	require.Nil(t, claims.Groups())
	require.Empty(t, claims.Names())

	require.True(t, token.Claims{"email_verified": true}.EmailVerified())
	require.False(t, token.Claims{"email_verified": "false"}.EmailVerified())
}

func TestStaticVerifier(t *testing.T) {
	const issuer = "https://cognito-idp.us-east-1.amazonaws.com/pool"
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	sign := func(claims jwt.MapClaims) string {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
		require.NoError(t, err)
		return raw
	}
	now := time.Now()
	valid := jwt.MapClaims{"iss": issuer, "aud": "client-1", "sub": "u", "iat": now.Unix(), "exp": now.Add(time.Hour).Unix()}

	v := token.NewStaticVerifier(issuer, "client-1", &key.PublicKey)
	require.NoError(t, v.Verify(context.Background(), sign(valid)))

	wrongAud := jwt.MapClaims{"iss": issuer, "aud": "other", "sub": "u", "exp": now.Add(time.Hour).Unix()}
	require.Error(t, v.Verify(context.Background(), sign(wrongAud)))

	expired := jwt.MapClaims{"iss": issuer, "aud": "client-1", "sub": "u", "exp": now.Add(-time.Hour).Unix()}
	require.Error(t, v.Verify(context.Background(), sign(expired)))

	require.Error(t, v.Verify(context.Background(), signHS256(t, valid)))
}
