package cmd

import (
	"context"
	"strings"

	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/identity"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/kvstore"
	"github.com/jrsteele09/go-auth-client/kvstore/filestore"
	"github.com/jrsteele09/go-auth-client/kvstore/memstore"
	"github.com/jrsteele09/go-auth-client/kvstore/redisstore"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const redisKeyPrefix = "notesauth:"

// app is everything a subcommand needs, built once per invocation.
type app struct {
	service *auth.Service
	closers []func() error
}

func newApp(ctx context.Context, c config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{}

	kv, err := a.openStore(ctx, c)
	if err != nil {
		return nil, err
	}

	client, err := identity.NewClient(identity.Settings{
		Region:       c.GetRegion(),
		UserPoolID:   c.GetUserPoolID(),
		ClientID:     c.GetClientID(),
		ClientSecret: c.GetClientSecret(),
		Endpoint:     c.GetEndpoint(),
		Timeout:      c.GetHTTPTimeout(),
	}, identity.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	options := []auth.ServiceOption{auth.WithLogger(logger)}
	if c.GetVerifyIDToken() {
		verifier, err := token.NewVerifier(ctx, issuerFor(c), c.GetClientID())
		if err != nil {
			return nil, err
		}
		options = append(options, auth.WithVerifier(verifier))
	}

	a.service, err = auth.NewService(client, sessions.NewStore(kv), options...)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context, c config.StorageConfig) (kvstore.Store, error) {
	switch strings.ToLower(c.GetStorageBackend()) {
	case config.StorageBackendFile:
		return filestore.New(c.GetDataFolder())
	case config.StorageBackendRedis:
		rs, err := redisstore.New(ctx, redisstore.Options{
			Addr:     c.GetRedisAddr(),
			Password: c.GetRedisPassword(),
			DB:       c.GetRedisDB(),
			Prefix:   redisKeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rs.Close)
		return rs, nil
	case config.StorageBackendMemory:
		return memstore.New(), nil
	}
	return nil, errors.Errorf("[newApp] unknown storage backend %q", c.GetStorageBackend())
}

// issuerFor returns the identity token issuer. A custom endpoint (e.g. a local
// fake pool) publishes its discovery documents under "{endpoint}/{pool}".
func issuerFor(c config.IdentityConfig) string {
	if endpoint := c.GetEndpoint(); endpoint != "" {
		return strings.TrimSuffix(endpoint, "/") + "/" + c.GetUserPoolID()
	}
	return identity.Issuer(c.GetRegion(), c.GetUserPoolID())
}

func (a *app) Close() error {
	var firstErr error
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
