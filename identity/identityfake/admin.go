package identityfake

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// AddUser seeds a user directly, bypassing sign-up and its password policy.
func (p *Provider) AddUser(username, password string, attributes map[string]string, confirmed bool) (*User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, errors.Wrap(err, "[Provider.AddUser] HashPassword")
	}
	attrs := map[string]string{}
	for k, v := range attributes {
		attrs[k] = v
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	if _, exists := p.users[username]; exists {
		return nil, errors.New("[Provider.AddUser] user already exists")
	}
	user := &User{
		Sub:          uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Attributes:   attrs,
		Confirmed:    confirmed,
	}
	p.users[username] = user
	return user, nil
}

// RequirePasswordChange makes the next password sign-in answer with a challenge.
func (p *Provider) RequirePasswordChange(username string) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	user, ok := p.users[username]
	if !ok {
		return errors.New("[Provider.RequirePasswordChange] user not found")
	}
	user.ForceChangePassword = true
	return nil
}

// ConfirmationCode returns the pending sign-up code, as if read from the email.
func (p *Provider) ConfirmationCode(username string) string {
	p.lock.RLock()
	defer p.lock.RUnlock()

	if user, ok := p.users[username]; ok {
		return user.confirmationCode
	}
	return ""
}

// ResetCode returns the pending forgot-password code.
func (p *Provider) ResetCode(username string) string {
	p.lock.RLock()
	defer p.lock.RUnlock()

	if user, ok := p.users[username]; ok {
		return user.resetCode
	}
	return ""
}

// RevokeRefreshTokens invalidates every refresh token issued to username.
func (p *Provider) RevokeRefreshTokens(username string) {
	p.lock.Lock()
	defer p.lock.Unlock()

	for token, owner := range p.refreshTokens {
		if owner == username {
			delete(p.refreshTokens, token)
		}
	}
}

// User returns a copy of the stored user.
func (p *Provider) User(username string) (User, bool) {
	p.lock.RLock()
	defer p.lock.RUnlock()

	user, ok := p.users[username]
	if !ok {
		return User{}, false
	}
	return *user, true
}
