package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-auth-client/identity/identityfake"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/internal/logging"
	"github.com/rs/zerolog"
)

// seedUsersEnv lists email:password accounts, comma separated, created
// confirmed at startup, e.g. "alice@example.com:Passw0rdOK".
const seedUsersEnv = "SEED_USERS"

func main() {
	c := config.Load()
	logger := logging.New(c.GetEnv(), c.GetLogLevel())

	for {
		if err := run(c, logger); err != nil {
			logger.Error().Err(err).Msg("Error running fake identity provider")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	logger.Info().Msg("Server stopped")
}

func run(c config.Config, logger zerolog.Logger) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	options := []identityfake.ProviderOption{
		identityfake.WithUserPoolID(c.GetUserPoolID()),
		identityfake.WithClientID(c.GetClientID()),
		identityfake.WithLogger(logger),
	}
	if secret := c.GetClientSecret(); secret != "" {
		options = append(options, identityfake.WithClientSecret(secret))
	}
	provider, err := identityfake.New(options...)
	if err != nil {
		return err
	}
	if err := seed(provider, config.GetEnv(seedUsersEnv, "")); err != nil {
		return err
	}

	displayAppname(c.GetAppName() + " IdP")
	server := &http.Server{Addr: c.GetPort(), Handler: provider.Handler()}
	errs := make(chan error, 1)
	go func() { errs <- listenAndServe(server, logger) }()

	select {
	case err := <-errs:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(server)
}

func seed(provider *identityfake.Provider, users string) error {
	for _, entry := range strings.Split(users, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		email, password, ok := strings.Cut(entry, ":")
		if !ok {
			return fmt.Errorf("seed user %q: expected email:password", entry)
		}
		if _, err := provider.AddUser(email, password, map[string]string{"email": email}, true); err != nil {
			return fmt.Errorf("seed user %q: %w", email, err)
		}
	}
	return nil
}

func listenAndServe(server *http.Server, logger zerolog.Logger) error {
	logger.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
