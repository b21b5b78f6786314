package auth_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/identity"
	"github.com/jrsteele09/go-auth-client/identity/identityfake"
	"github.com/jrsteele09/go-auth-client/kvstore"
	"github.com/jrsteele09/go-auth-client/kvstore/memstore"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/token"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "alice@example.com"
	testPassword = "Passw0rdOK"
)

var fixedNow = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

type fixture struct {
	provider *identityfake.Provider
	server   *httptest.Server
	kv       *memstore.MemStore
	repo     *sessions.Store
	service  *auth.Service
}

// setup wires a Service to an in-memory user pool over real HTTP.
func setup(t *testing.T, options ...auth.ServiceOption) *fixture {
	t.Helper()
	p, err := identityfake.New()
	require.NoError(t, err)
	srv := httptest.NewServer(p.Handler())
	t.Cleanup(srv.Close)

	client, err := identity.NewClient(identity.Settings{
		UserPoolID: p.UserPoolID(),
		ClientID:   p.ClientID(),
		Endpoint:   srv.URL,
	})
	require.NoError(t, err)

	kv := memstore.New()
	repo := sessions.NewStore(kv)
	options = append([]auth.ServiceOption{auth.WithNowTime(func() time.Time { return fixedNow })}, options...)
	svc, err := auth.NewService(client, repo, options...)
	require.NoError(t, err)

	return &fixture{provider: p, server: srv, kv: kv, repo: repo, service: svc}
}

func (f *fixture) addUser(t *testing.T, attributes map[string]string) {
	t.Helper()
	attrs := map[string]string{token.ClaimEmail: testEmail}
	for k, v := range attributes {
		attrs[k] = v
	}
	_, err := f.provider.AddUser(testEmail, testPassword, attrs, true)
	require.NoError(t, err)
}

func requireCategory(t *testing.T, err error, category string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, category, auth.CategoryOf(err), "error: %v", err)
}

// unsignedJWT builds a token whose payload is claims; header and signature are
// placeholders since decoding ignores them.
func unsignedJWT(t *testing.T, claims map[string]any) string {
	t.Helper()
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".c2ln"
}

type stubResponse struct {
	status int
	body   string
}

// stubProvider answers each request with the next scripted response.
type stubProvider struct {
	lock      sync.Mutex
	responses []stubResponse
	targets   []string
	bodies    []map[string]any
}

func (s *stubProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	defer s.lock.Unlock()

	body := map[string]any{}
	_ = json.NewDecoder(r.Body).Decode(&body)
	s.targets = append(s.targets, r.Header.Get(identity.TargetHeader))
	s.bodies = append(s.bodies, body)

	resp := stubResponse{status: http.StatusInternalServerError, body: `{"__type":"InternalErrorException","message":"no scripted response"}`}
	if len(s.responses) > 0 {
		resp, s.responses = s.responses[0], s.responses[1:]
	}
	w.Header().Set("Content-Type", identity.ContentType)
	w.WriteHeader(resp.status)
	_, _ = w.Write([]byte(resp.body))
}

func stubService(t *testing.T, responses ...stubResponse) (*auth.Service, *stubProvider, *sessions.Store) {
	t.Helper()
	stub := &stubProvider{responses: responses}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	client, err := identity.NewClient(identity.Settings{ClientID: "client-1", Endpoint: srv.URL})
	require.NoError(t, err)
	repo := sessions.NewStore(memstore.New())
	svc, err := auth.NewService(client, repo, auth.WithNowTime(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return svc, stub, repo
}

func TestNewService_RequiresDependencies(t *testing.T) {
	repo := sessions.NewStore(memstore.New())
	client, err := identity.NewClient(identity.Settings{ClientID: "c", Region: "us-east-1"})
	require.NoError(t, err)

	_, err = auth.NewService(nil, repo)
	require.Error(t, err)
	_, err = auth.NewService(client, nil)
	require.Error(t, err)
}

func TestSignIn_StubbedEndpoint(t *testing.T) {
	idToken := unsignedJWT(t, map[string]any{"sub": "123", "email": "a@b.com", "preferred_username": "alice"})
	svc, stub, _ := stubService(t, stubResponse{
		status: http.StatusOK,
		body:   `{"AuthenticationResult":{"AccessToken":"A","IdToken":"` + idToken + `","RefreshToken":"R"}}`,
	})

	res := auth.NewResult(svc.SignIn(context.Background(), "a@b.com", "pw"))
	require.True(t, res.Success)
	require.NotNil(t, res.User)
	require.Equal(t, "a@b.com", res.User.Email)
	require.Equal(t, "alice", res.User.Username)
	require.Equal(t, "123", res.User.Sub)
	require.Equal(t, "A", res.User.AccessToken)
	require.Equal(t, idToken, res.User.IDToken)
	require.Equal(t, "R", res.User.RefreshToken)
	require.Equal(t, "alice", res.User.Name)
	require.Equal(t, fixedNow, res.User.CreatedAt)
	require.NotEmpty(t, res.User.ID)

	require.Equal(t, []string{identity.TargetPrefix + identity.OpInitiateAuth}, stub.targets)
	require.Equal(t, identity.AuthFlowUserPassword, stub.bodies[0]["AuthFlow"])
	require.Equal(t, "client-1", stub.bodies[0]["ClientId"])
}

func TestSignIn_RejectedLeavesPriorSession(t *testing.T) {
	ctx := context.Background()
	svc, _, repo := stubService(t, stubResponse{
		status: http.StatusBadRequest,
		body:   `{"__type":"NotAuthorizedException","message":"Incorrect username or password."}`,
	})
	prior := &sessions.Session{ID: "old", AccessToken: "A0", IDToken: "I0", RefreshToken: "R0", Email: "a@b.com"}
	require.NoError(t, repo.Save(ctx, prior))

	res := auth.NewResult(svc.SignIn(ctx, "a@b.com", "pw"))
	require.Equal(t, auth.Result{
		Success: false,
		Error:   "NotAuthorizedException",
		Message: "Incorrect username or password.",
	}, res)

	stored, err := repo.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, prior, stored)
}

func TestSignIn_UsernameDerivation(t *testing.T) {
	tests := []struct {
		name     string
		claims   map[string]any
		email    string
		expected string
	}{
		{"preferred username wins", map[string]any{"preferred_username": "pref", "name": "Full Name", "nickname": "nick"}, "x@y.com", "pref"},
		{"name when no preferred username", map[string]any{"preferred_username": "", "name": "Full Name", "nickname": "nick"}, "x@y.com", "Full Name"},
		{"nickname next", map[string]any{"nickname": "nick"}, "x@y.com", "nick"},
		{"email local part last", map[string]any{}, "carol@y.com", "carol"},
		{"blank values skipped", map[string]any{"preferred_username": "  ", "nickname": "nick"}, "x@y.com", "nick"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := map[string]any{"sub": "s-1", "email": tt.email}
			for k, v := range tt.claims {
				claims[k] = v
			}
			svc, _, _ := stubService(t, stubResponse{
				status: http.StatusOK,
				body:   `{"AuthenticationResult":{"AccessToken":"A","IdToken":"` + unsignedJWT(t, claims) + `","RefreshToken":"R"}}`,
			})
			session, err := svc.SignIn(context.Background(), tt.email, "pw")
			require.NoError(t, err)
			require.Equal(t, tt.expected, session.Username)
		})
	}
}

func TestSignIn_FullNameDerivation(t *testing.T) {
	tests := []struct {
		name     string
		claims   map[string]any
		expected string
	}{
		{"name claim", map[string]any{"name": "Alice Liddell", "given_name": "A", "family_name": "L"}, "Alice Liddell"},
		{"given and family", map[string]any{"given_name": " Alice ", "family_name": "Liddell "}, "Alice Liddell"},
		{"given only", map[string]any{"given_name": "Alice"}, "Alice"},
		{"username fallback", map[string]any{"preferred_username": "ali"}, "ali"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := map[string]any{"sub": "s-1", "email": testEmail}
			for k, v := range tt.claims {
				claims[k] = v
			}
			svc, _, _ := stubService(t, stubResponse{
				status: http.StatusOK,
				body:   `{"AuthenticationResult":{"AccessToken":"A","IdToken":"` + unsignedJWT(t, claims) + `","RefreshToken":"R"}}`,
			})
			session, err := svc.SignIn(context.Background(), testEmail, "pw")
			require.NoError(t, err)
			require.Equal(t, tt.expected, session.Name)
		})
	}
}

func TestSignIn_UndecodableIDToken(t *testing.T) {
	svc, _, repo := stubService(t, stubResponse{
		status: http.StatusOK,
		body:   `{"AuthenticationResult":{"AccessToken":"A","IdToken":"not-a-jwt","RefreshToken":"R"}}`,
	})

	session, err := svc.SignIn(context.Background(), "dora@example.com", "pw")
	require.NoError(t, err)
	require.Equal(t, "dora@example.com", session.Email)
	require.Equal(t, "dora", session.Username)
	require.Equal(t, "dora", session.Name)
	require.Empty(t, session.Sub)

	_, err = repo.Get(context.Background())
	require.NoError(t, err)
}

func TestSignIn_MissingResult(t *testing.T) {
	svc, _, repo := stubService(t,
		stubResponse{status: http.StatusOK, body: `{}`},
		stubResponse{status: http.StatusOK, body: `{"AuthenticationResult":{"AccessToken":"","IdToken":""}}`},
		stubResponse{status: http.StatusOK, body: `{not json`},
	)
	ctx := context.Background()

	_, err := svc.SignIn(ctx, testEmail, "pw")
	requireCategory(t, err, auth.CategoryInvalidResponse)
	_, err = svc.SignIn(ctx, testEmail, "pw")
	requireCategory(t, err, auth.CategoryInvalidResponse)
	_, err = svc.SignIn(ctx, testEmail, "pw")
	requireCategory(t, err, auth.CategoryInvalidResponse)

	_, err = repo.Get(ctx)
	require.ErrorIs(t, err, sessions.ErrNoSession)
}

func TestSignIn_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := identity.NewClient(identity.Settings{ClientID: "c", Endpoint: url})
	require.NoError(t, err)
	svc, err := auth.NewService(client, sessions.NewStore(memstore.New()))
	require.NoError(t, err)

	res := auth.NewResult(svc.SignIn(context.Background(), testEmail, testPassword))
	require.False(t, res.Success)
	require.Equal(t, auth.CategoryNetwork, res.Error)
	require.NotEmpty(t, res.Message)
}

func TestSignIn_Validation(t *testing.T) {
	svc, stub, _ := stubService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		message  string
	}{
		{"missing email", "", "pw", "email is required"},
		{"bad email", "not-an-email", "pw", "email must be a valid email address"},
		{"missing password", testEmail, "", "password is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SignIn(ctx, tt.email, tt.password)
			requireCategory(t, err, auth.CategoryInvalidParameter)
			var f *auth.Failure
			require.True(t, errors.As(err, &f))
			require.Equal(t, tt.message, f.Message)
		})
	}
	require.Empty(t, stub.targets, "invalid input must not reach the provider")
}

func TestSignUpConfirmSignIn(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	res, err := f.service.SignUp(ctx, testEmail, testPassword, "Alice L")
	require.NoError(t, err)
	require.False(t, res.UserConfirmed)
	require.NotEmpty(t, res.UserSub)
	require.NotNil(t, res.CodeDelivery)
	require.Equal(t, "EMAIL", res.CodeDelivery.Medium)

	// No session until a sign-in succeeds.
	user, err := f.service.GetCurrentUser(ctx)
	require.NoError(t, err)
	require.Nil(t, user)
	require.Empty(t, f.kv.Keys())

	_, err = f.service.SignIn(ctx, testEmail, testPassword)
	requireCategory(t, err, identity.ErrTypeUserNotConfirmed)

	requireCategory(t, f.service.ConfirmSignUp(ctx, testEmail, "000000x"), identity.ErrTypeCodeMismatch)
	require.NoError(t, f.service.ConfirmSignUp(ctx, testEmail, f.provider.ConfirmationCode(testEmail)))

	session, err := f.service.SignIn(ctx, testEmail, testPassword)
	require.NoError(t, err)
	require.Equal(t, testEmail, session.Email)
	require.Equal(t, "Alice L", session.Username)
	require.Equal(t, "Alice L", session.Name)
	require.Equal(t, res.UserSub, session.Sub)
	require.True(t, session.EmailVerified)
	require.NotZero(t, session.Iat)
	require.Greater(t, session.Exp, session.Iat)

	current, err := f.service.GetCurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, session, current)
}

func TestSignUp_DefaultDisplayName(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.service.SignUp(ctx, "bob@example.com", testPassword, "  ")
	require.NoError(t, err)

	user, ok := f.provider.User("bob@example.com")
	require.True(t, ok)
	require.Equal(t, "bob", user.Attributes[token.ClaimPreferredUsername])
	require.Equal(t, "bob", user.Attributes[token.ClaimName])
	require.Equal(t, "bob@example.com", user.Attributes[token.ClaimEmail])
}

func TestSignUp_Rejections(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.addUser(t, nil)

	_, err := f.service.SignUp(ctx, testEmail, testPassword, "")
	requireCategory(t, err, identity.ErrTypeUsernameExists)

	_, err = f.service.SignUp(ctx, "new@example.com", "weak", "")
	requireCategory(t, err, identity.ErrTypeInvalidPassword)

	_, err = f.service.SignUp(ctx, "new@example.com", "", "")
	requireCategory(t, err, auth.CategoryInvalidParameter)
}

func TestSignIn_ProviderRejections(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.addUser(t, nil)

	_, err := f.service.SignIn(ctx, testEmail, "WrongPass1")
	requireCategory(t, err, identity.ErrTypeNotAuthorized)

	_, err = f.service.SignIn(ctx, "nobody@example.com", testPassword)
	requireCategory(t, err, identity.ErrTypeUserNotFound)
}

func TestSignIn_Challenge(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.addUser(t, nil)
	require.NoError(t, f.provider.RequirePasswordChange(testEmail))

	_, err := f.service.SignIn(ctx, testEmail, testPassword)
	requireCategory(t, err, auth.CategoryChallenge)
	var fail *auth.Failure
	require.True(t, errors.As(err, &fail))
	require.Equal(t, "NEW_PASSWORD_REQUIRED", fail.Message)

	user, err := f.service.GetCurrentUser(ctx)
	require.NoError(t, err)
	require.Nil(t, user)
}

func TestSignIn_ReplacesPreviousSession(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.addUser(t, map[string]string{token.ClaimPreferredUsername: "alice"})

	first, err := f.service.SignIn(ctx, testEmail, testPassword)
	require.NoError(t, err)
	second, err := f.service.SignIn(ctx, testEmail, testPassword)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	current, err := f.service.GetCurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, second.ID, current.ID)
}

func TestSignIn_Verifier(t *testing.T) {
	ctx := context.Background()

	t.Run("accepts provider signed token", func(t *testing.T) {
		p, err := identityfake.New()
		require.NoError(t, err)
		srv := httptest.NewServer(p.Handler())
		t.Cleanup(srv.Close)

		_, err = p.AddUser(testEmail, testPassword, map[string]string{token.ClaimEmail: testEmail}, true)
		require.NoError(t, err)

		client, err := identity.NewClient(identity.Settings{ClientID: p.ClientID(), Endpoint: srv.URL})
		require.NoError(t, err)
		verifier := token.NewStaticVerifier(p.Issuer(srv.URL), p.ClientID(), p.Keys().PublicKey())
		svc, err := auth.NewService(client, sessions.NewStore(memstore.New()), auth.WithVerifier(verifier))
		require.NoError(t, err)

		_, err = svc.SignIn(ctx, testEmail, testPassword)
		require.NoError(t, err)
	})

	t.Run("rejects unsigned token without persisting", func(t *testing.T) {
		idToken := unsignedJWT(t, map[string]any{"sub": "123", "email": "a@b.com"})
		stub := &stubProvider{responses: []stubResponse{{
			status: http.StatusOK,
			body:   `{"AuthenticationResult":{"AccessToken":"A","IdToken":"` + idToken + `","RefreshToken":"R"}}`,
		}}}
		srv := httptest.NewServer(stub)
		t.Cleanup(srv.Close)

		keys, err := identityfake.GenerateRSAKeyPair("k", 2048)
		require.NoError(t, err)
		client, err := identity.NewClient(identity.Settings{ClientID: "client-1", Endpoint: srv.URL})
		require.NoError(t, err)
		repo := sessions.NewStore(memstore.New())
		svc, err := auth.NewService(client, repo, auth.WithVerifier(token.NewStaticVerifier("https://issuer", "client-1", keys.PublicKey())))
		require.NoError(t, err)

		_, err = svc.SignIn(ctx, "a@b.com", "pw")
		requireCategory(t, err, auth.CategoryInvalidIDToken)
		_, err = repo.Get(ctx)
		require.ErrorIs(t, err, sessions.ErrNoSession)
	})
}

func TestGetCurrentUser(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	user, err := f.service.GetCurrentUser(ctx)
	require.NoError(t, err)
	require.Nil(t, user)

	res := auth.NewResult(user, err)
	require.True(t, res.Success)
	require.Nil(t, res.User)
	require.Equal(t, auth.NoUserMessage, res.Message)

	require.NoError(t, f.kv.Set(ctx, sessions.CurrentKey, []byte("{broken")))
	_, err = f.service.GetCurrentUser(ctx)
	requireCategory(t, err, auth.CategorySessionCorrupted)
}

func TestUnusableStoredSession(t *testing.T) {
	for _, raw := range []string{"null", "{}", `{"email":"a@b.com","refreshToken":""}`} {
		t.Run(raw, func(t *testing.T) {
			ctx := context.Background()
			f := setup(t)
			require.NoError(t, f.kv.Set(ctx, sessions.CurrentKey, []byte(raw)))

			user, err := f.service.GetCurrentUser(ctx)
			requireCategory(t, err, auth.CategorySessionCorrupted)
			require.Nil(t, user)

			res := auth.NewResult(user, err)
			require.False(t, res.Success)
			require.Nil(t, res.User)
			require.Equal(t, auth.CategorySessionCorrupted, res.Error)

			_, err = f.service.GetUserProfile(ctx)
			requireCategory(t, err, auth.CategorySessionCorrupted)
			_, err = f.service.RefreshSession(ctx)
			requireCategory(t, err, auth.CategorySessionCorrupted)

			// Signing out clears it.
			require.NoError(t, f.service.SignOut(ctx))
			user, err = f.service.GetCurrentUser(ctx)
			require.NoError(t, err)
			require.Nil(t, user)
		})
	}
}

func TestGetUserProfile(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.addUser(t, map[string]string{
		token.ClaimGivenName:  "Alice",
		token.ClaimFamilyName: "Liddell",
		token.ClaimPicture:    "https://example.com/a.png",
	})

	session, err := f.service.SignIn(ctx, testEmail, testPassword)
	require.NoError(t, err)

	profile, err := f.service.GetUserProfile(ctx)
	require.NoError(t, err)
	require.Equal(t, testEmail, profile.Email)
	require.Equal(t, "alice", profile.Username)
	require.Equal(t, "Alice Liddell", profile.FullName)
	require.Equal(t, "Alice", profile.GivenName)
	require.Equal(t, "Liddell", profile.FamilyName)
	require.Equal(t, "https://example.com/a.png", profile.Picture)
	require.True(t, profile.EmailVerified)
	require.Equal(t, session.Sub, profile.Sub)
	require.Contains(t, profile.ClaimNames, "cognito:username")
	require.Contains(t, profile.ClaimNames, "token_use")
}

func TestGetUserProfile_Failures(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.service.GetUserProfile(ctx)
	requireCategory(t, err, auth.CategoryNoUser)

	require.NoError(t, f.repo.Save(ctx, &sessions.Session{AccessToken: "A", RefreshToken: "R"}))
	_, err = f.service.GetUserProfile(ctx)
	requireCategory(t, err, auth.CategoryNoIDToken)

	require.NoError(t, f.repo.Save(ctx, &sessions.Session{AccessToken: "A", IDToken: "only.two", RefreshToken: "R"}))
	_, err = f.service.GetUserProfile(ctx)
	requireCategory(t, err, auth.CategoryInvalidIDToken)
}

func TestRefreshSession_ReplacesOnlyTokens(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.addUser(t, map[string]string{token.ClaimName: "Alice Liddell", token.ClaimPreferredUsername: "alice"})

	before, err := f.service.SignIn(ctx, testEmail, testPassword)
	require.NoError(t, err)

	after, err := f.service.RefreshSession(ctx)
	require.NoError(t, err)
	require.NotEqual(t, before.AccessToken, after.AccessToken)
	require.NotEqual(t, before.IDToken, after.IDToken)
	require.Equal(t, fixedNow, after.RefreshedAt)

	expected := before.Clone()
	expected.AccessToken = after.AccessToken
	expected.IDToken = after.IDToken
	expected.RefreshedAt = after.RefreshedAt
	require.Equal(t, expected, after)

	stored, err := f.service.GetCurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, after, stored)
}

func TestRefreshSession_Failures(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.addUser(t, nil)

	_, err := f.service.RefreshSession(ctx)
	requireCategory(t, err, auth.CategoryNoUser)

	require.NoError(t, f.repo.Save(ctx, &sessions.Session{AccessToken: "A", IDToken: "I"}))
	_, err = f.service.RefreshSession(ctx)
	requireCategory(t, err, auth.CategoryNoRefreshToken)

	before, err := f.service.SignIn(ctx, testEmail, testPassword)
	require.NoError(t, err)
	f.provider.RevokeRefreshTokens(testEmail)

	_, err = f.service.RefreshSession(ctx)
	requireCategory(t, err, identity.ErrTypeNotAuthorized)

	stale, err := f.service.GetCurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, before, stale)
}

// swappingRepo replaces the stored session between the read and the update,
// as a concurrent sign-in would.
type swappingRepo struct {
	*sessions.Store
	replacement *sessions.Session
}

func (r *swappingRepo) Update(ctx context.Context, fn func(*sessions.Session) error) (*sessions.Session, error) {
	if err := r.Store.Save(ctx, r.replacement); err != nil {
		return nil, err
	}
	return r.Store.Update(ctx, fn)
}

func TestRefreshSession_SessionReplacedConcurrently(t *testing.T) {
	ctx := context.Background()
	idToken := unsignedJWT(t, map[string]any{"sub": "123"})
	stub := &stubProvider{responses: []stubResponse{{
		status: http.StatusOK,
		body:   `{"AuthenticationResult":{"AccessToken":"A2","IdToken":"` + idToken + `"}}`,
	}}}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	client, err := identity.NewClient(identity.Settings{ClientID: "client-1", Endpoint: srv.URL})
	require.NoError(t, err)
	replacement := &sessions.Session{ID: "new", AccessToken: "B", IDToken: "J", RefreshToken: "R2"}
	repo := &swappingRepo{Store: sessions.NewStore(memstore.New()), replacement: replacement}
	require.NoError(t, repo.Store.Save(ctx, &sessions.Session{ID: "old", AccessToken: "A", IDToken: "I", RefreshToken: "R1", Sub: "123"}))

	svc, err := auth.NewService(client, repo)
	require.NoError(t, err)

	_, err = svc.RefreshSession(ctx)
	requireCategory(t, err, auth.CategorySessionChanged)

	stored, err := repo.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, replacement, stored)

	require.Equal(t, identity.AuthFlowRefreshToken, stub.bodies[0]["AuthFlow"])
	params, ok := stub.bodies[0]["AuthParameters"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "R1", params[identity.AuthParamRefreshToken])
}

func TestRefreshSession_WithClientSecret(t *testing.T) {
	ctx := context.Background()
	p, err := identityfake.New(identityfake.WithClientSecret("s3cret"))
	require.NoError(t, err)
	srv := httptest.NewServer(p.Handler())
	t.Cleanup(srv.Close)
	_, err = p.AddUser(testEmail, testPassword, map[string]string{token.ClaimEmail: testEmail}, true)
	require.NoError(t, err)

	client, err := identity.NewClient(identity.Settings{ClientID: p.ClientID(), ClientSecret: "s3cret", Endpoint: srv.URL})
	require.NoError(t, err)
	svc, err := auth.NewService(client, sessions.NewStore(memstore.New()))
	require.NoError(t, err)

	_, err = svc.SignIn(ctx, testEmail, testPassword)
	require.NoError(t, err)
	_, err = svc.RefreshSession(ctx)
	require.NoError(t, err)
}

func TestSignOut(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.addUser(t, nil)

	_, err := f.service.SignIn(ctx, testEmail, testPassword)
	require.NoError(t, err)
	require.NoError(t, f.kv.Set(ctx, sessions.LegacyKey, []byte(`{"token":"old"}`)))

	require.NoError(t, f.service.SignOut(ctx))

	for _, key := range []string{sessions.CurrentKey, sessions.LegacyKey} {
		_, err := f.kv.Get(ctx, key)
		require.ErrorIs(t, err, kvstore.ErrNotFound, key)
	}

	user, err := f.service.GetCurrentUser(ctx)
	require.NoError(t, err)
	require.Nil(t, user)

	// Signing out twice is fine.
	require.NoError(t, f.service.SignOut(ctx))
}

type brokenKV struct {
	kvstore.Store
}

var errBroken = errors.New("storage unavailable")

func (brokenKV) Get(context.Context, string) ([]byte, error) { return nil, errBroken }
func (brokenKV) Set(context.Context, string, []byte) error   { return errBroken }
func (brokenKV) Remove(context.Context, string) error        { return errBroken }

func TestStorageFailures(t *testing.T) {
	ctx := context.Background()
	idToken := unsignedJWT(t, map[string]any{"sub": "123", "email": "a@b.com"})
	stub := &stubProvider{responses: []stubResponse{{
		status: http.StatusOK,
		body:   `{"AuthenticationResult":{"AccessToken":"A","IdToken":"` + idToken + `","RefreshToken":"R"}}`,
	}}}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	client, err := identity.NewClient(identity.Settings{ClientID: "client-1", Endpoint: srv.URL})
	require.NoError(t, err)
	svc, err := auth.NewService(client, sessions.NewStore(brokenKV{}))
	require.NoError(t, err)

	_, err = svc.SignIn(ctx, "a@b.com", "pw")
	requireCategory(t, err, auth.CategoryStorage)
	_, err = svc.GetCurrentUser(ctx)
	requireCategory(t, err, auth.CategoryStorage)
	_, err = svc.GetUserProfile(ctx)
	requireCategory(t, err, auth.CategoryStorage)
	_, err = svc.RefreshSession(ctx)
	requireCategory(t, err, auth.CategoryStorage)
	requireCategory(t, svc.SignOut(ctx), auth.CategoryStorage)
	require.ErrorIs(t, svc.SignOut(ctx), errBroken)
}

func TestResendConfirmationCode(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.service.SignUp(ctx, testEmail, testPassword, "")
	require.NoError(t, err)
	first := f.provider.ConfirmationCode(testEmail)

	delivery, err := f.service.ResendConfirmationCode(ctx, testEmail)
	require.NoError(t, err)
	require.NotNil(t, delivery)
	require.Equal(t, "EMAIL", delivery.Medium)
	require.Equal(t, "a***@e***", delivery.Destination)

	second := f.provider.ConfirmationCode(testEmail)
	require.NotEmpty(t, second)
	if first != second {
		requireCategory(t, f.service.ConfirmSignUp(ctx, testEmail, first), identity.ErrTypeCodeMismatch)
	}
	require.NoError(t, f.service.ConfirmSignUp(ctx, testEmail, second))

	_, err = f.service.ResendConfirmationCode(ctx, "nobody@example.com")
	requireCategory(t, err, identity.ErrTypeUserNotFound)
	_, err = f.service.ResendConfirmationCode(ctx, "")
	requireCategory(t, err, auth.CategoryInvalidParameter)
}

func TestForgotPassword(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.addUser(t, nil)

	delivery, err := f.service.ForgotPassword(ctx, testEmail)
	require.NoError(t, err)
	require.Equal(t, "EMAIL", delivery.Medium)

	code := f.provider.ResetCode(testEmail)
	require.NotEmpty(t, code)

	requireCategory(t, f.service.ConfirmForgotPassword(ctx, testEmail, "bad-code", "N3wPassword"), identity.ErrTypeCodeMismatch)
	requireCategory(t, f.service.ConfirmForgotPassword(ctx, testEmail, code, ""), auth.CategoryInvalidParameter)
	require.NoError(t, f.service.ConfirmForgotPassword(ctx, testEmail, code, "N3wPassword"))

	_, err = f.service.SignIn(ctx, testEmail, testPassword)
	requireCategory(t, err, identity.ErrTypeNotAuthorized)
	_, err = f.service.SignIn(ctx, testEmail, "N3wPassword")
	require.NoError(t, err)
}

func TestTokenSource(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.addUser(t, nil)

	_, err := f.service.TokenSource(ctx)
	requireCategory(t, err, auth.CategoryNoUser)

	session, err := f.service.SignIn(ctx, testEmail, testPassword)
	require.NoError(t, err)

	ts, err := f.service.TokenSource(ctx)
	require.NoError(t, err)
	tok, err := ts.Token()
	require.NoError(t, err)
	require.Equal(t, session.AccessToken, tok.AccessToken)
	require.Equal(t, "Bearer", tok.Type())
	require.False(t, tok.Expiry.IsZero())
}
