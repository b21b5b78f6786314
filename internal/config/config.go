package config

import (
	"time"

	"github.com/joho/godotenv"
)

type Config interface {
	EnvConfig
	IdentityConfig
	StorageConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetPort() string
}

type IdentityConfig interface {
	GetRegion() string
	GetUserPoolID() string
	GetClientID() string
	GetClientSecret() string
	GetEndpoint() string
	GetHTTPTimeout() time.Duration
	GetVerifyIDToken() bool
}

type StorageConfig interface {
	GetStorageBackend() string
	GetDataFolder() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
}

type mainConfig struct {
	EnvVars
	Identity
	Storage
}

func New() Config {
	return mainConfig{}
}

// Load reads the given .env files (".env" when none are named) into the process
// environment before returning the config. Missing files are ignored.
func Load(files ...string) Config {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
	return New()
}
