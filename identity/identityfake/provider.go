// Package identityfake is an in-memory user pool that speaks the identity
// provider's JSON wire protocol. It backs the auth tests and cmd/fakeidp.
package identityfake

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jrsteele09/go-auth-client/identity"
	"github.com/rs/zerolog"
)

const (
	DefaultUserPoolID = "local_pool"
	DefaultClientID   = "local-client"
	tokenLifetime     = time.Hour
)

type Provider struct {
	userPoolID    string
	clientID      string
	clientSecret  string
	keys          *KeyPair
	nowFunc       func() time.Time
	logger        zerolog.Logger
	users         map[string]*User  // username -> user
	refreshTokens map[string]string // refresh token -> username
	lock          sync.RWMutex
}

// ProviderOption defines a function type to modify the Provider instance.
type ProviderOption func(*Provider)

func WithUserPoolID(id string) ProviderOption {
	return func(p *Provider) { p.userPoolID = id }
}

func WithClientID(id string) ProviderOption {
	return func(p *Provider) { p.clientID = id }
}

// WithClientSecret makes the pool require a matching SecretHash.
func WithClientSecret(secret string) ProviderOption {
	return func(p *Provider) { p.clientSecret = secret }
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ProviderOption {
	return func(p *Provider) { p.nowFunc = nowFunc }
}

func WithLogger(logger zerolog.Logger) ProviderOption {
	return func(p *Provider) { p.logger = logger }
}

func New(options ...ProviderOption) (*Provider, error) {
	keys, err := GenerateRSAKeyPair("fake-key-1", 2048)
	if err != nil {
		return nil, err
	}
	p := &Provider{
		userPoolID:    DefaultUserPoolID,
		clientID:      DefaultClientID,
		keys:          keys,
		nowFunc:       time.Now,
		logger:        zerolog.Nop(),
		users:         make(map[string]*User),
		refreshTokens: make(map[string]string),
	}
	for _, opt := range options {
		opt(p)
	}
	return p, nil
}

func (p *Provider) UserPoolID() string { return p.userPoolID }
func (p *Provider) ClientID() string   { return p.clientID }
func (p *Provider) Keys() *KeyPair     { return p.keys }

// Handler serves the RPC endpoint at "/" and the pool's OpenID discovery
// documents under "/{userPoolID}".
func (p *Provider) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/", p.dispatch)
	r.Route("/"+p.userPoolID, func(r chi.Router) {
		r.Get("/.well-known/openid-configuration", p.discovery)
		r.Get("/.well-known/jwks.json", p.jwks)
	})
	return r
}

// Issuer returns the issuer for a server reachable at baseURL.
func (p *Provider) Issuer(baseURL string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + p.userPoolID
}

func issuerBase(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func (p *Provider) dispatch(w http.ResponseWriter, r *http.Request) {
	target := r.Header.Get(identity.TargetHeader)
	operation := strings.TrimPrefix(target, identity.TargetPrefix)
	log := p.logger.With().Str("operation", operation).Str("request_id", middleware.GetReqID(r.Context())).Logger()

	var (
		out any
		err *identity.ProviderError
	)
	switch operation {
	case identity.OpSignUp:
		out, err = p.signUp(r)
	case identity.OpConfirmSignUp:
		out, err = p.confirmSignUp(r)
	case identity.OpInitiateAuth:
		out, err = p.initiateAuth(r)
	case identity.OpResendConfirmationCode:
		out, err = p.resendConfirmationCode(r)
	case identity.OpForgotPassword:
		out, err = p.forgotPassword(r)
	case identity.OpConfirmForgotPassword:
		out, err = p.confirmForgotPassword(r)
	default:
		err = providerError(http.StatusBadRequest, identity.ErrTypeUnknownOperation, fmt.Sprintf("Unknown operation %q", target))
	}

	if err != nil {
		log.Info().Str("error_type", err.Type).Msg("request rejected")
		writeJSON(w, err.StatusCode, map[string]string{"__type": err.Type, "message": err.Message})
		return
	}
	log.Info().Msg("request ok")
	writeJSON(w, http.StatusOK, out)
}

func (p *Provider) discovery(w http.ResponseWriter, r *http.Request) {
	issuer := p.Issuer(issuerBase(r))
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                issuer,
		"jwks_uri":                              issuer + "/.well-known/jwks.json",
		"authorization_endpoint":                issuer + "/oauth2/authorize",
		"token_endpoint":                        issuer + "/oauth2/token",
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{RS256},
	})
}

func (p *Provider) jwks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, p.keys.JWKS())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", identity.ContentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func providerError(status int, errType, message string) *identity.ProviderError {
	return &identity.ProviderError{StatusCode: status, Type: errType, Message: message}
}

func decode(r *http.Request, in any) *identity.ProviderError {
	if err := json.NewDecoder(r.Body).Decode(in); err != nil {
		return providerError(http.StatusBadRequest, "SerializationException", err.Error())
	}
	return nil
}

func newConfirmationCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf("%06d", n.Int64())
}

func newRefreshToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

// maskEmail renders "alice@example.com" as "a***@e***" like code delivery details.
func maskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" {
		return "***"
	}
	return local[:1] + "***@" + domain[:1] + "***"
}
