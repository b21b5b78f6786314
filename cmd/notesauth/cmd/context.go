package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

func contextWithApp(ctx context.Context, a *app) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, contextKey{}, a)
}

func appFrom(cmd *cobra.Command) *app {
	if a, ok := cmd.Context().Value(contextKey{}).(*app); ok {
		return a
	}
	return &app{}
}
