// Package main is the entry point for the datausage CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2/clientcredentials"

	"datausage/internal/adapter/postgres"
	"datausage/internal/adapter/remoteapi"
	"datausage/internal/adapter/sqlite"
	"datausage/internal/config"
	"datausage/internal/domain"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "datausage",
		Short:         "Track mobile data usage and sync it with a remote store",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringP("config", "c", "", "path to datausage.toml (defaults plus environment when empty)")

	root.AddCommand(
		serveCmd(),
		syncCmd(),
		recordCmd(),
		planCmd(),
		statusCmd(),
		hashTokenCmd(),
		initCmd(),
	)
	return root
}

// setup loads and validates the configuration and builds the logger.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path := cmd.Flag("config").Value.String()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.LogLevel()}))
	return cfg, logger, nil
}

func openLocal(cfg *config.Config) (*sqlite.DB, error) {
	db, err := sqlite.Open(cfg.Device.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("local store: %w", err)
	}
	return db, nil
}

// remote bundles the configured remote store with its optional change feed.
type remote struct {
	store domain.RemoteStore
	feed  domain.ChangeFeed
	close func() error
}

func openRemote(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*remote, error) {
	switch cfg.Remote.Kind {
	case config.RemotePostgres:
		db, err := postgres.Open(cfg.Remote.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("remote store: %w", err)
		}
		return &remote{store: db, feed: db, close: db.Close}, nil

	case config.RemoteHTTP:
		var cc *clientcredentials.Config
		if o := cfg.Remote.OAuth2; o.ClientID != "" {
			cc = &clientcredentials.Config{
				ClientID:     o.ClientID,
				ClientSecret: o.ClientSecret,
				TokenURL:     o.TokenURL,
				Scopes:       o.Scopes,
			}
		}
		c, err := remoteapi.New(cfg.Remote.URL, remoteapi.HTTPClient(ctx, cfg.Remote.Token, cc), logger)
		if err != nil {
			return nil, fmt.Errorf("remote store: %w", err)
		}
		return &remote{store: c, close: func() error { return nil }}, nil
	}
	return nil, errors.New("remote store: unsupported kind " + cfg.Remote.Kind)
}
