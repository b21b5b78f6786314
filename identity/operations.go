package identity

import "context"

// Operation names sent in TargetHeader.
const (
	OpSignUp                 = "SignUp"
	OpConfirmSignUp          = "ConfirmSignUp"
	OpInitiateAuth           = "InitiateAuth"
	OpResendConfirmationCode = "ResendConfirmationCode"
	OpForgotPassword         = "ForgotPassword"
	OpConfirmForgotPassword  = "ConfirmForgotPassword"
)

// AuthFlow values for InitiateAuth.
const (
	AuthFlowUserPassword = "USER_PASSWORD_AUTH"
	AuthFlowRefreshToken = "REFRESH_TOKEN_AUTH"
)

// AuthParameters keys for InitiateAuth.
const (
	AuthParamUsername     = "USERNAME"
	AuthParamPassword     = "PASSWORD"
	AuthParamRefreshToken = "REFRESH_TOKEN"
	AuthParamSecretHash   = "SECRET_HASH"
)

type AttributeType struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

type CodeDeliveryDetails struct {
	AttributeName  string `json:"AttributeName,omitempty"`
	DeliveryMedium string `json:"DeliveryMedium,omitempty"`
	Destination    string `json:"Destination,omitempty"`
}

type SignUpInput struct {
	ClientID       string          `json:"ClientId"`
	SecretHash     string          `json:"SecretHash,omitempty"`
	Username       string          `json:"Username"`
	Password       string          `json:"Password"`
	UserAttributes []AttributeType `json:"UserAttributes,omitempty"`
}

type SignUpOutput struct {
	UserConfirmed       bool                 `json:"UserConfirmed"`
	UserSub             string               `json:"UserSub"`
	CodeDeliveryDetails *CodeDeliveryDetails `json:"CodeDeliveryDetails,omitempty"`
}

type ConfirmSignUpInput struct {
	ClientID         string `json:"ClientId"`
	SecretHash       string `json:"SecretHash,omitempty"`
	Username         string `json:"Username"`
	ConfirmationCode string `json:"ConfirmationCode"`
}

type InitiateAuthInput struct {
	ClientID       string            `json:"ClientId"`
	AuthFlow       string            `json:"AuthFlow"`
	AuthParameters map[string]string `json:"AuthParameters"`
}

type AuthenticationResult struct {
	AccessToken  string `json:"AccessToken"`
	IDToken      string `json:"IdToken"`
	RefreshToken string `json:"RefreshToken,omitempty"`
	ExpiresIn    int    `json:"ExpiresIn,omitempty"`
	TokenType    string `json:"TokenType,omitempty"`
}

type InitiateAuthOutput struct {
	AuthenticationResult *AuthenticationResult `json:"AuthenticationResult,omitempty"`
	ChallengeName        string                `json:"ChallengeName,omitempty"`
	ChallengeParameters  map[string]string     `json:"ChallengeParameters,omitempty"`
	Session              string                `json:"Session,omitempty"`
}

type ResendConfirmationCodeInput struct {
	ClientID   string `json:"ClientId"`
	SecretHash string `json:"SecretHash,omitempty"`
	Username   string `json:"Username"`
}

type ResendConfirmationCodeOutput struct {
	CodeDeliveryDetails *CodeDeliveryDetails `json:"CodeDeliveryDetails,omitempty"`
}

type ForgotPasswordInput struct {
	ClientID   string `json:"ClientId"`
	SecretHash string `json:"SecretHash,omitempty"`
	Username   string `json:"Username"`
}

type ForgotPasswordOutput struct {
	CodeDeliveryDetails *CodeDeliveryDetails `json:"CodeDeliveryDetails,omitempty"`
}

type ConfirmForgotPasswordInput struct {
	ClientID         string `json:"ClientId"`
	SecretHash       string `json:"SecretHash,omitempty"`
	Username         string `json:"Username"`
	ConfirmationCode string `json:"ConfirmationCode"`
	Password         string `json:"Password"`
}

func (c *Client) SignUp(ctx context.Context, username, password string, attributes []AttributeType) (*SignUpOutput, error) {
	out := &SignUpOutput{}
	err := c.Call(ctx, OpSignUp, SignUpInput{
		ClientID:       c.ClientID(),
		SecretHash:     c.SecretHash(username),
		Username:       username,
		Password:       password,
		UserAttributes: attributes,
	}, out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ConfirmSignUp(ctx context.Context, username, code string) error {
	return c.Call(ctx, OpConfirmSignUp, ConfirmSignUpInput{
		ClientID:         c.ClientID(),
		SecretHash:       c.SecretHash(username),
		Username:         username,
		ConfirmationCode: code,
	}, nil)
}

// InitiatePasswordAuth runs the USER_PASSWORD_AUTH flow.
func (c *Client) InitiatePasswordAuth(ctx context.Context, username, password string) (*InitiateAuthOutput, error) {
	params := map[string]string{
		AuthParamUsername: username,
		AuthParamPassword: password,
	}
	if hash := c.SecretHash(username); hash != "" {
		params[AuthParamSecretHash] = hash
	}
	return c.initiateAuth(ctx, AuthFlowUserPassword, params)
}

// InitiateRefreshAuth runs the REFRESH_TOKEN_AUTH flow. username is only used
// for the secret hash, where the provider expects the user's subject id.
func (c *Client) InitiateRefreshAuth(ctx context.Context, refreshToken, username string) (*InitiateAuthOutput, error) {
	params := map[string]string{
		AuthParamRefreshToken: refreshToken,
	}
	if hash := c.SecretHash(username); hash != "" {
		params[AuthParamSecretHash] = hash
	}
	return c.initiateAuth(ctx, AuthFlowRefreshToken, params)
}

func (c *Client) initiateAuth(ctx context.Context, flow string, params map[string]string) (*InitiateAuthOutput, error) {
	out := &InitiateAuthOutput{}
	err := c.Call(ctx, OpInitiateAuth, InitiateAuthInput{
		ClientID:       c.ClientID(),
		AuthFlow:       flow,
		AuthParameters: params,
	}, out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ResendConfirmationCode(ctx context.Context, username string) (*ResendConfirmationCodeOutput, error) {
	out := &ResendConfirmationCodeOutput{}
	err := c.Call(ctx, OpResendConfirmationCode, ResendConfirmationCodeInput{
		ClientID:   c.ClientID(),
		SecretHash: c.SecretHash(username),
		Username:   username,
	}, out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ForgotPassword(ctx context.Context, username string) (*ForgotPasswordOutput, error) {
	out := &ForgotPasswordOutput{}
	err := c.Call(ctx, OpForgotPassword, ForgotPasswordInput{
		ClientID:   c.ClientID(),
		SecretHash: c.SecretHash(username),
		Username:   username,
	}, out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ConfirmForgotPassword(ctx context.Context, username, code, newPassword string) error {
	return c.Call(ctx, OpConfirmForgotPassword, ConfirmForgotPasswordInput{
		ClientID:         c.ClientID(),
		SecretHash:       c.SecretHash(username),
		Username:         username,
		ConfirmationCode: code,
		Password:         newPassword,
	}, nil)
}
