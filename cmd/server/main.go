package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-fanout/internal/app"
	"github.com/vovakirdan/wirechat-fanout/internal/auth"
	"github.com/vovakirdan/wirechat-fanout/internal/config"
	"github.com/vovakirdan/wirechat-fanout/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "wirechat-fanout",
		Short:         "Realtime message fanout for chat conversations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml")

	root.AddCommand(newServeCmd(&configPath), newTokenCmd(&configPath))
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	var overrides config.Config

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			bootstrap := log.New("info", "console")
			cfg, path, err := config.Load(bootstrap, *configPath)
			if err != nil {
				return err
			}
			cfg.UpdateFrom(overrides)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			logger := log.New(cfg.LogLevel, cfg.LogFormat)
			logger.Info().Str("config", path).Msg("configuration loaded")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(&cfg, logger)
			if err != nil {
				return fmt.Errorf("init app: %w", err)
			}

			logger.Info().Str("addr", cfg.Addr).Msg("starting wirechat fanout server")
			if err := application.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("server exited with error")
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
	flags.DurationVar(&overrides.ReadHeaderTimeout, "read-header-timeout", 0, "HTTP read header timeout")
	flags.DurationVar(&overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&overrides.LogFormat, "log-format", "", "log format (console, json)")
	flags.StringVar(&overrides.DatabasePath, "db", "", "SQLite database path")
	flags.StringVar(&overrides.RedisAddr, "redis-addr", "", "Redis address for cross-instance fanout")
	return cmd
}

func newTokenCmd(configPath *string) *cobra.Command {
	var (
		userID int64
		name   string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a session token for local testing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := config.Load(nil, *configPath)
			if err != nil {
				return err
			}

			svc := auth.NewService(&auth.JWTConfig{
				Secret:   []byte(cfg.JWTSecret),
				Issuer:   cfg.JWTIssuer,
				Audience: cfg.JWTAudience,
				TTL:      cfg.TokenTTL,
			})
			token, err := svc.Issue(userID, name)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "user id the token authenticates")
	cmd.Flags().StringVar(&name, "name", "", "display name carried in the token")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
