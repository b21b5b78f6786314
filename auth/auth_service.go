package auth

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/identity"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// IdentityProvider is the remote user pool. *identity.Client implements it.
type IdentityProvider interface {
	SignUp(ctx context.Context, username, password string, attributes []identity.AttributeType) (*identity.SignUpOutput, error)
	ConfirmSignUp(ctx context.Context, username, code string) error
	InitiatePasswordAuth(ctx context.Context, username, password string) (*identity.InitiateAuthOutput, error)
	InitiateRefreshAuth(ctx context.Context, refreshToken, username string) (*identity.InitiateAuthOutput, error)
	ResendConfirmationCode(ctx context.Context, username string) (*identity.ResendConfirmationCodeOutput, error)
	ForgotPassword(ctx context.Context, username string) (*identity.ForgotPasswordOutput, error)
	ConfirmForgotPassword(ctx context.Context, username, code, newPassword string) error
}

var _ IdentityProvider = (*identity.Client)(nil)

// IDTokenVerifier checks an identity token's signature. *token.Verifier implements it.
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) error
}

var _ IDTokenVerifier = (*token.Verifier)(nil)

// SignUpResult acknowledges a registration that still needs confirming.
type SignUpResult struct {
	UserConfirmed bool          `json:"userConfirmed"`
	UserSub       string        `json:"userSub"`
	CodeDelivery  *CodeDelivery `json:"codeDelivery,omitempty"`
}

// CodeDelivery says where a confirmation or reset code was sent.
type CodeDelivery struct {
	Medium      string `json:"medium"`
	Destination string `json:"destination"`
}

// Service is the session/auth client: the only component that talks to the
// identity provider and the only writer of the persisted session.
type Service struct {
	provider IdentityProvider
	sessions sessions.Repo
	verifier IDTokenVerifier
	validate *validator.Validate
	logger   zerolog.Logger
	nowTime  func() time.Time
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// WithVerifier enables identity token signature verification at sign-in
func WithVerifier(v IDTokenVerifier) ServiceOption {
	return func(s *Service) {
		s.verifier = v
	}
}

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(provider IdentityProvider, sessionRepo sessions.Repo, options ...ServiceOption) (*Service, error) {
	if provider == nil {
		return nil, errors.New("[NewService] identity provider is required")
	}
	if sessionRepo == nil {
		return nil, errors.New("[NewService] session repo is required")
	}

	s := &Service{
		provider: provider,
		sessions: sessionRepo,
		validate: newValidator(),
		logger:   zerolog.Nop(),
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// SignUp registers a new account. displayName defaults to the email's local
// part. No session is created; the account must be confirmed first.
func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (*SignUpResult, error) {
	in := signUpInput{Email: strings.TrimSpace(email), Password: password, DisplayName: strings.TrimSpace(displayName)}
	if f := s.validateInput(in); f != nil {
		return nil, f
	}
	if in.DisplayName == "" {
		in.DisplayName = utils.LocalPart(in.Email)
	}

	out, err := s.provider.SignUp(ctx, in.Email, in.Password, []identity.AttributeType{
		{Name: token.ClaimEmail, Value: in.Email},
		{Name: token.ClaimPreferredUsername, Value: in.DisplayName},
		{Name: token.ClaimName, Value: in.DisplayName},
	})
	if err != nil {
		return nil, s.providerFailed("SignUp", err)
	}

	s.logger.Info().Str("op", "SignUp").Str("sub", out.UserSub).Msg("account pending confirmation")
	return &SignUpResult{
		UserConfirmed: out.UserConfirmed,
		UserSub:       out.UserSub,
		CodeDelivery:  codeDelivery(out.CodeDeliveryDetails),
	}, nil
}

func (s *Service) ConfirmSignUp(ctx context.Context, email, code string) error {
	in := confirmInput{Email: strings.TrimSpace(email), Code: strings.TrimSpace(code)}
	if f := s.validateInput(in); f != nil {
		return f
	}
	if err := s.provider.ConfirmSignUp(ctx, in.Email, in.Code); err != nil {
		return s.providerFailed("ConfirmSignUp", err)
	}
	return nil
}

// SignIn exchanges credentials for tokens, derives the profile from the
// identity token and persists the session, replacing any previous one. On
// failure the persisted session is left as it was.
func (s *Service) SignIn(ctx context.Context, email, password string) (*sessions.Session, error) {
	in := credentialsInput{Email: strings.TrimSpace(email), Password: password}
	if f := s.validateInput(in); f != nil {
		return nil, f
	}

	out, err := s.provider.InitiatePasswordAuth(ctx, in.Email, in.Password)
	if err != nil {
		return nil, s.providerFailed("SignIn", err)
	}
	if out.AuthenticationResult == nil {
		if out.ChallengeName != "" {
			return nil, newFailure(CategoryChallenge, out.ChallengeName, autherrors.ErrChallengeRequired)
		}
		return nil, newFailure(CategoryInvalidResponse, "no authentication result", autherrors.ErrInvalidResponse)
	}
	result := out.AuthenticationResult
	if result.AccessToken == "" || result.IDToken == "" {
		return nil, newFailure(CategoryInvalidResponse, "authentication result is missing tokens", autherrors.ErrInvalidResponse)
	}

	if s.verifier != nil {
		if err := s.verifier.Verify(ctx, result.IDToken); err != nil {
			return nil, newFailure(CategoryInvalidIDToken, err.Error(), err)
		}
	}

	claims, err := token.Decode(result.IDToken)
	if err != nil {
		// Carry on with what we have; the profile falls back to the email.
		s.logger.Warn().Err(err).Str("op", "SignIn").Msg("identity token could not be decoded")
	}

	profile := profileFromClaims(claims, in.Email)
	session := &sessions.Session{
		ID:            uuid.NewString(),
		AccessToken:   result.AccessToken,
		IDToken:       result.IDToken,
		RefreshToken:  result.RefreshToken,
		Email:         profile.Email,
		Username:      profile.Username,
		Name:          profile.FullName,
		GivenName:     profile.GivenName,
		FamilyName:    profile.FamilyName,
		Picture:       profile.Picture,
		Sub:           profile.Sub,
		EmailVerified: profile.EmailVerified,
		Iat:           claims.IssuedAt(),
		Exp:           claims.ExpiresAt(),
		CreatedAt:     s.nowTime(),
	}

	if err := s.sessions.Save(ctx, session); err != nil {
		s.logger.Err(err).Str("op", "SignIn").Msg("failed to persist session")
		return nil, storageFailure(err)
	}

	s.logger.Info().Str("op", "SignIn").Str("sub", session.Sub).Str("session_id", session.ID).Msg("signed in")
	return session.Clone(), nil
}

// GetCurrentUser returns the persisted session as stored, without contacting
// the provider or checking expiry. It returns (nil, nil) when nobody is signed in.
func (s *Service) GetCurrentUser(ctx context.Context) (*sessions.Session, error) {
	session, err := s.sessions.Get(ctx)
	switch {
	case err == nil:
		return session, nil
	case autherrors.Is(err, sessions.ErrNoSession):
		return nil, nil
	}
	return nil, s.sessionFailed("GetCurrentUser", err)
}

// GetUserProfile re-decodes the persisted identity token.
func (s *Service) GetUserProfile(ctx context.Context) (*Profile, error) {
	session, err := s.sessions.Get(ctx)
	if err != nil {
		return nil, s.sessionFailed("GetUserProfile", err)
	}
	if session.IDToken == "" {
		return nil, newFailure(CategoryNoIDToken, "session has no id token", autherrors.ErrNoIDToken)
	}

	claims, err := token.Decode(session.IDToken)
	if err != nil {
		return nil, newFailure(CategoryInvalidIDToken, err.Error(), err)
	}
	return profileFromClaims(claims, session.Email), nil
}

// RefreshSession exchanges the refresh token for new access and identity
// tokens. Only those two tokens change; the refresh token and the derived
// profile stay as they were. On failure the stale session is kept.
func (s *Service) RefreshSession(ctx context.Context) (*sessions.Session, error) {
	current, err := s.sessions.Get(ctx)
	if err != nil {
		return nil, s.sessionFailed("RefreshSession", err)
	}
	if current.RefreshToken == "" {
		return nil, newFailure(CategoryNoRefreshToken, "session has no refresh token", autherrors.ErrNoRefreshToken)
	}

	out, err := s.provider.InitiateRefreshAuth(ctx, current.RefreshToken, current.Sub)
	if err != nil {
		return nil, s.providerFailed("RefreshSession", err)
	}
	if out.AuthenticationResult == nil || out.AuthenticationResult.AccessToken == "" || out.AuthenticationResult.IDToken == "" {
		return nil, newFailure(CategoryInvalidResponse, "refresh returned no tokens", autherrors.ErrInvalidResponse)
	}
	result := out.AuthenticationResult

	updated, err := s.sessions.Update(ctx, func(session *sessions.Session) error {
		if session.RefreshToken != current.RefreshToken {
			return newFailure(CategorySessionChanged, "session was replaced while refreshing", nil)
		}
		session.AccessToken = result.AccessToken
		session.IDToken = result.IDToken
		session.RefreshedAt = s.nowTime()
		return nil
	})
	if err != nil {
		var f *Failure
		if autherrors.As(err, &f) {
			return nil, f
		}
		return nil, s.sessionFailed("RefreshSession", err)
	}

	s.logger.Info().Str("op", "RefreshSession").Str("session_id", updated.ID).Msg("tokens refreshed")
	return updated, nil
}

// SignOut forgets the local session. The provider is not contacted.
func (s *Service) SignOut(ctx context.Context) error {
	if err := s.sessions.Delete(ctx); err != nil {
		s.logger.Err(err).Str("op", "SignOut").Msg("failed to remove session")
		return storageFailure(err)
	}
	s.logger.Info().Str("op", "SignOut").Msg("signed out")
	return nil
}

func (s *Service) ResendConfirmationCode(ctx context.Context, email string) (*CodeDelivery, error) {
	in := emailInput{Email: strings.TrimSpace(email)}
	if f := s.validateInput(in); f != nil {
		return nil, f
	}
	out, err := s.provider.ResendConfirmationCode(ctx, in.Email)
	if err != nil {
		return nil, s.providerFailed("ResendConfirmationCode", err)
	}
	return codeDelivery(out.CodeDeliveryDetails), nil
}

func (s *Service) ForgotPassword(ctx context.Context, email string) (*CodeDelivery, error) {
	in := emailInput{Email: strings.TrimSpace(email)}
	if f := s.validateInput(in); f != nil {
		return nil, f
	}
	out, err := s.provider.ForgotPassword(ctx, in.Email)
	if err != nil {
		return nil, s.providerFailed("ForgotPassword", err)
	}
	return codeDelivery(out.CodeDeliveryDetails), nil
}

func (s *Service) ConfirmForgotPassword(ctx context.Context, email, code, newPassword string) error {
	in := resetInput{Email: strings.TrimSpace(email), Code: strings.TrimSpace(code), NewPassword: newPassword}
	if f := s.validateInput(in); f != nil {
		return f
	}
	if err := s.provider.ConfirmForgotPassword(ctx, in.Email, in.Code, in.NewPassword); err != nil {
		return s.providerFailed("ConfirmForgotPassword", err)
	}
	return nil
}

// TokenSource returns the persisted access token for authenticating calls to
// the app's backend. It never refreshes; call RefreshSession for that.
func (s *Service) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	session, err := s.sessions.Get(ctx)
	if err != nil {
		return nil, s.sessionFailed("TokenSource", err)
	}
	return oauth2.StaticTokenSource(session.Token()), nil
}

func (s *Service) providerFailed(op string, err error) *Failure {
	f := providerFailure(err)
	s.logger.Info().Str("op", op).Str("category", f.Category).Msg("operation failed")
	return f
}

// sessionFailed classifies errors from reading the session repo.
func (s *Service) sessionFailed(op string, err error) *Failure {
	switch {
	case autherrors.Is(err, sessions.ErrNoSession):
		return newFailure(CategoryNoUser, NoUserMessage, err)
	case autherrors.Is(err, sessions.ErrCorruptSession):
		s.logger.Warn().Err(err).Str("op", op).Msg("stored session is corrupted")
		return newFailure(CategorySessionCorrupted, "stored session could not be read", err)
	}
	s.logger.Err(err).Str("op", op).Msg("session storage failed")
	return storageFailure(err)
}

func codeDelivery(d *identity.CodeDeliveryDetails) *CodeDelivery {
	if d == nil {
		return nil
	}
	return &CodeDelivery{Medium: d.DeliveryMedium, Destination: d.Destination}
}
