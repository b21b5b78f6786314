package identityfake

import (
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/identity"
)

func (p *Provider) checkClient(clientID, username, secretHash string) *identity.ProviderError {
	if clientID != p.clientID {
		return providerError(http.StatusBadRequest, identity.ErrTypeResourceNotFound, "User pool client "+clientID+" does not exist.")
	}
	if p.clientSecret != "" && secretHash != identity.ComputeSecretHash(p.clientSecret, username, p.clientID) {
		return providerError(http.StatusBadRequest, identity.ErrTypeNotAuthorized, "Unable to verify secret hash for client "+clientID)
	}
	return nil
}

func userNotFound() *identity.ProviderError {
	return providerError(http.StatusBadRequest, identity.ErrTypeUserNotFound, "Username/client id combination not found.")
}

func codeMismatch() *identity.ProviderError {
	return providerError(http.StatusBadRequest, identity.ErrTypeCodeMismatch, "Invalid verification code provided, please try again.")
}

func (p *Provider) signUp(r *http.Request) (*identity.SignUpOutput, *identity.ProviderError) {
	var in identity.SignUpInput
	if err := decode(r, &in); err != nil {
		return nil, err
	}
	if err := p.checkClient(in.ClientID, in.Username, in.SecretHash); err != nil {
		return nil, err
	}
	if in.Username == "" {
		return nil, providerError(http.StatusBadRequest, identity.ErrTypeInvalidParameter, "Username cannot be empty")
	}
	if err := ValidatePasswordStrength(in.Password); err != nil {
		return nil, providerError(http.StatusBadRequest, identity.ErrTypeInvalidPassword, "Password did not conform with policy: "+err.Error())
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	if _, exists := p.users[in.Username]; exists {
		return nil, providerError(http.StatusBadRequest, identity.ErrTypeUsernameExists, "An account with the given email already exists.")
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, providerError(http.StatusInternalServerError, identity.ErrTypeInternalError, err.Error())
	}

	user := &User{
		Sub:              uuid.NewString(),
		Username:         in.Username,
		PasswordHash:     hash,
		Attributes:       map[string]string{},
		confirmationCode: newConfirmationCode(),
	}
	for _, a := range in.UserAttributes {
		user.Attributes[a.Name] = a.Value
	}
	p.users[in.Username] = user

	return &identity.SignUpOutput{
		UserConfirmed:       false,
		UserSub:             user.Sub,
		CodeDeliveryDetails: p.delivery(user),
	}, nil
}

func (p *Provider) delivery(user *User) *identity.CodeDeliveryDetails {
	return &identity.CodeDeliveryDetails{
		AttributeName:  "email",
		DeliveryMedium: "EMAIL",
		Destination:    maskEmail(user.Attributes["email"]),
	}
}

func (p *Provider) confirmSignUp(r *http.Request) (struct{}, *identity.ProviderError) {
	var in identity.ConfirmSignUpInput
	if err := decode(r, &in); err != nil {
		return struct{}{}, err
	}
	if err := p.checkClient(in.ClientID, in.Username, in.SecretHash); err != nil {
		return struct{}{}, err
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	user, ok := p.users[in.Username]
	if !ok {
		return struct{}{}, userNotFound()
	}
	if user.Confirmed {
		return struct{}{}, providerError(http.StatusBadRequest, identity.ErrTypeNotAuthorized, "User cannot be confirmed. Current status is CONFIRMED")
	}
	if in.ConfirmationCode == "" || in.ConfirmationCode != user.confirmationCode {
		return struct{}{}, codeMismatch()
	}
	user.Confirmed = true
	user.confirmationCode = ""
	return struct{}{}, nil
}

func (p *Provider) initiateAuth(r *http.Request) (*identity.InitiateAuthOutput, *identity.ProviderError) {
	var in identity.InitiateAuthInput
	if err := decode(r, &in); err != nil {
		return nil, err
	}
	issuer := p.Issuer(issuerBase(r))

	switch in.AuthFlow {
	case identity.AuthFlowUserPassword:
		return p.passwordAuth(in, issuer)
	case identity.AuthFlowRefreshToken:
		return p.refreshAuth(in, issuer)
	}
	return nil, providerError(http.StatusBadRequest, identity.ErrTypeInvalidParameter, "Unsupported AuthFlow "+in.AuthFlow)
}

func (p *Provider) passwordAuth(in identity.InitiateAuthInput, issuer string) (*identity.InitiateAuthOutput, *identity.ProviderError) {
	username := in.AuthParameters[identity.AuthParamUsername]
	if err := p.checkClient(in.ClientID, username, in.AuthParameters[identity.AuthParamSecretHash]); err != nil {
		return nil, err
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	user, ok := p.users[username]
	if !ok {
		return nil, providerError(http.StatusBadRequest, identity.ErrTypeUserNotFound, "User does not exist.")
	}
	if !CheckPasswordHash(in.AuthParameters[identity.AuthParamPassword], user.PasswordHash) {
		return nil, providerError(http.StatusBadRequest, identity.ErrTypeNotAuthorized, "Incorrect username or password.")
	}
	if !user.Confirmed {
		return nil, providerError(http.StatusBadRequest, identity.ErrTypeUserNotConfirmed, "User is not confirmed.")
	}
	if user.ForceChangePassword {
		return &identity.InitiateAuthOutput{
			ChallengeName:       "NEW_PASSWORD_REQUIRED",
			ChallengeParameters: map[string]string{"USER_ID_FOR_SRP": user.Username},
			Session:             newRefreshToken(),
		}, nil
	}

	result, err := p.issueTokens(user, issuer)
	if err != nil {
		return nil, err
	}
	result.RefreshToken = newRefreshToken()
	p.refreshTokens[result.RefreshToken] = user.Username
	return &identity.InitiateAuthOutput{AuthenticationResult: result}, nil
}

func (p *Provider) refreshAuth(in identity.InitiateAuthInput, issuer string) (*identity.InitiateAuthOutput, *identity.ProviderError) {
	p.lock.RLock()
	defer p.lock.RUnlock()

	username, ok := p.refreshTokens[in.AuthParameters[identity.AuthParamRefreshToken]]
	if !ok {
		return nil, providerError(http.StatusBadRequest, identity.ErrTypeNotAuthorized, "Invalid Refresh Token")
	}
	user, ok := p.users[username]
	if !ok {
		return nil, providerError(http.StatusBadRequest, identity.ErrTypeNotAuthorized, "Refresh Token has been revoked")
	}
	// The secret hash for a refresh is computed over the user's sub.
	if err := p.checkClient(in.ClientID, user.Sub, in.AuthParameters[identity.AuthParamSecretHash]); err != nil {
		return nil, err
	}

	result, err := p.issueTokens(user, issuer)
	if err != nil {
		return nil, err
	}
	return &identity.InitiateAuthOutput{AuthenticationResult: result}, nil
}

func (p *Provider) issueTokens(user *User, issuer string) (*identity.AuthenticationResult, *identity.ProviderError) {
	now := p.nowFunc()
	exp := now.Add(tokenLifetime)

	idClaims := jwt.MapClaims{
		"iss":              issuer,
		"aud":              p.clientID,
		"sub":              user.Sub,
		"token_use":        "id",
		"auth_time":        now.Unix(),
		"iat":              now.Unix(),
		"exp":              exp.Unix(),
		"jti":              uuid.NewString(),
		"cognito:username": user.Username,
		"email_verified":   user.Confirmed,
	}
	for k, v := range user.Attributes {
		if v != "" {
			idClaims[k] = v
		}
	}
	idToken, err := p.keys.Sign(idClaims)
	if err != nil {
		return nil, providerError(http.StatusInternalServerError, identity.ErrTypeInternalError, err.Error())
	}

	accessToken, err := p.keys.Sign(jwt.MapClaims{
		"iss":       issuer,
		"client_id": p.clientID,
		"sub":       user.Sub,
		"token_use": "access",
		"scope":     "aws.cognito.signin.user.admin",
		"username":  user.Username,
		"iat":       now.Unix(),
		"exp":       exp.Unix(),
		"jti":       uuid.NewString(),
	})
	if err != nil {
		return nil, providerError(http.StatusInternalServerError, identity.ErrTypeInternalError, err.Error())
	}

	return &identity.AuthenticationResult{
		AccessToken: accessToken,
		IDToken:     idToken,
		ExpiresIn:   int(tokenLifetime.Seconds()),
		TokenType:   "Bearer",
	}, nil
}

func (p *Provider) resendConfirmationCode(r *http.Request) (*identity.ResendConfirmationCodeOutput, *identity.ProviderError) {
	var in identity.ResendConfirmationCodeInput
	if err := decode(r, &in); err != nil {
		return nil, err
	}
	if err := p.checkClient(in.ClientID, in.Username, in.SecretHash); err != nil {
		return nil, err
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	user, ok := p.users[in.Username]
	if !ok {
		return nil, userNotFound()
	}
	if user.Confirmed {
		return nil, providerError(http.StatusBadRequest, identity.ErrTypeInvalidParameter, "User is already confirmed.")
	}
	user.confirmationCode = newConfirmationCode()
	return &identity.ResendConfirmationCodeOutput{CodeDeliveryDetails: p.delivery(user)}, nil
}

func (p *Provider) forgotPassword(r *http.Request) (*identity.ForgotPasswordOutput, *identity.ProviderError) {
	var in identity.ForgotPasswordInput
	if err := decode(r, &in); err != nil {
		return nil, err
	}
	if err := p.checkClient(in.ClientID, in.Username, in.SecretHash); err != nil {
		return nil, err
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	user, ok := p.users[in.Username]
	if !ok {
		return nil, userNotFound()
	}
	user.resetCode = newConfirmationCode()
	return &identity.ForgotPasswordOutput{CodeDeliveryDetails: p.delivery(user)}, nil
}

func (p *Provider) confirmForgotPassword(r *http.Request) (struct{}, *identity.ProviderError) {
	var in identity.ConfirmForgotPasswordInput
	if err := decode(r, &in); err != nil {
		return struct{}{}, err
	}
	if err := p.checkClient(in.ClientID, in.Username, in.SecretHash); err != nil {
		return struct{}{}, err
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	user, ok := p.users[in.Username]
	if !ok {
		return struct{}{}, userNotFound()
	}
	if user.resetCode == "" {
		return struct{}{}, providerError(http.StatusBadRequest, identity.ErrTypeExpiredCode, "Invalid code provided, please request a code again.")
	}
	if in.ConfirmationCode != user.resetCode {
		return struct{}{}, codeMismatch()
	}
	if err := ValidatePasswordStrength(in.Password); err != nil {
		return struct{}{}, providerError(http.StatusBadRequest, identity.ErrTypeInvalidPassword, "Password does not conform to policy: "+err.Error())
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return struct{}{}, providerError(http.StatusInternalServerError, identity.ErrTypeInternalError, err.Error())
	}
	user.PasswordHash = hash
	user.resetCode = ""
	user.ForceChangePassword = false
	return struct{}{}, nil
}
