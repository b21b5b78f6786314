package identity

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// ContentType is the JSON-RPC style envelope the provider expects.
	ContentType = "application/x-amz-json-1.1"
	// TargetHeader selects the provider operation for a request.
	TargetHeader = "X-Amz-Target"
	// TargetPrefix is prepended to the operation name in TargetHeader.
	TargetPrefix = "AWSCognitoIdentityProviderService."

	maxErrorBody = 64 << 10
)

// Endpoint returns the fixed regional endpoint every operation is sent to.
func Endpoint(region string) string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/", region)
}

// Issuer returns the OpenID issuer of a user pool's identity tokens.
func Issuer(region, userPoolID string) string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", region, userPoolID)
}

// Settings configure a Client.
type Settings struct {
	Region       string
	UserPoolID   string
	ClientID     string
	ClientSecret string        // optional; enables SecretHash
	Endpoint     string        // optional; overrides Endpoint(Region)
	Timeout      time.Duration // optional; 0 keeps the http.Client's own timeout
}

// Client speaks the identity provider's wire protocol: one POST endpoint,
// operation chosen by TargetHeader.
type Client struct {
	settings   Settings
	endpoint   string
	httpClient *http.Client
	logger     zerolog.Logger
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client (e.g. with an httptest server's client)
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(settings Settings, options ...ClientOption) (*Client, error) {
	if settings.ClientID == "" {
		return nil, errors.New("[identity.NewClient] ClientID is required")
	}
	if settings.Region == "" && settings.Endpoint == "" {
		return nil, errors.New("[identity.NewClient] Region or Endpoint is required")
	}

	endpoint := settings.Endpoint
	if endpoint == "" {
		endpoint = Endpoint(settings.Region)
	}

	c := &Client{
		settings:   settings,
		endpoint:   endpoint,
		httpClient: &http.Client{},
		logger:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	if settings.Timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = settings.Timeout
		c.httpClient = &hc
	}
	return c, nil
}

func (c *Client) ClientID() string {
	return c.settings.ClientID
}

func (c *Client) EndpointURL() string {
	return c.endpoint
}

// SecretHash computes the SECRET_HASH value required when the app client has a
// secret. It is "" when no secret is configured.
func (c *Client) SecretHash(username string) string {
	if c.settings.ClientSecret == "" {
		return ""
	}
	return ComputeSecretHash(c.settings.ClientSecret, username, c.settings.ClientID)
}

func ComputeSecretHash(clientSecret, username, clientID string) string {
	mac := hmac.New(sha256.New, []byte(clientSecret))
	mac.Write([]byte(username + clientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Call sends one operation. A non-2xx response is returned as *ProviderError,
// a failed round trip as *NetworkError.
func (c *Client) Call(ctx context.Context, operation string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.Wrapf(err, "[Client.Call] marshal %s request", operation)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrapf(err, "[Client.Call] build %s request", operation)
	}
	req.Header.Set("Content-Type", ContentType)
	req.Header.Set(TargetHeader, TargetPrefix+operation)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("operation", operation).Msg("identity request failed")
		return &NetworkError{Operation: operation, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("operation", operation).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("identity request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeProviderError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return &InvalidResponseError{Operation: operation, Err: err}
	}
	return nil
}

func decodeProviderError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body struct {
		Type         string `json:"__type"`
		Message      string `json:"message"`
		MessageUpper string `json:"Message"`
	}
	_ = json.Unmarshal(data, &body)

	pe := &ProviderError{
		StatusCode: resp.StatusCode,
		Type:       errorTypeSuffix(body.Type),
		Message:    body.Message,
	}
	if pe.Message == "" {
		pe.Message = body.MessageUpper
	}
	if pe.Type == "" {
		pe.Type = headerErrorType(resp.Header.Get("X-Amzn-ErrorType"))
	}
	if pe.Type == "" {
		pe.Type = UnknownErrorType
	}
	if pe.Message == "" {
		pe.Message = http.StatusText(resp.StatusCode)
	}
	return pe
}

// errorTypeSuffix strips any namespace, e.g. "com.amazon#NotAuthorizedException".
func errorTypeSuffix(t string) string {
	if i := strings.LastIndex(t, "#"); i >= 0 {
		return t[i+1:]
	}
	return t
}

// headerErrorType reads "NotAuthorizedException:http://..." style headers.
func headerErrorType(h string) string {
	t, _, _ := strings.Cut(h, ":")
	return errorTypeSuffix(t)
}
