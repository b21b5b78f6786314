package config

import "time"

const (
	DefaultRegion     = "us-east-1"
	DefaultUserPoolID = "us-east-1_notesapp"
	DefaultClientID   = "notesapp-mobile"
)

type Identity struct{}

var _ IdentityConfig = Identity{}

func (Identity) GetRegion() string {
	return GetEnv("AUTH_REGION", DefaultRegion)
}

func (Identity) GetUserPoolID() string {
	return GetEnv("AUTH_USER_POOL_ID", DefaultUserPoolID)
}

func (Identity) GetClientID() string {
	return GetEnv("AUTH_CLIENT_ID", DefaultClientID)
}

// GetClientSecret is only set for app clients created with a secret.
func (Identity) GetClientSecret() string {
	return GetEnv("AUTH_CLIENT_SECRET", "")
}

// GetEndpoint overrides the regional endpoint, e.g. to point at a local fake provider.
func (Identity) GetEndpoint() string {
	return GetEnv("AUTH_ENDPOINT", "")
}

func (Identity) GetHTTPTimeout() time.Duration {
	return GetEnvDuration("AUTH_HTTP_TIMEOUT", 30*time.Second)
}

func (Identity) GetVerifyIDToken() bool {
	return GetEnvBool("AUTH_VERIFY_ID_TOKEN", false)
}
