package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pitchside/pitchside/internal/activity"
	"github.com/pitchside/pitchside/internal/auth"
	"github.com/pitchside/pitchside/internal/blob"
	"github.com/pitchside/pitchside/internal/hooks"
	"github.com/pitchside/pitchside/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Pitchside API server",
		Long:  "Start the HTTP server that serves the public content API and the admin dashboard API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(dev bool) error {
	logLevel := slog.LevelInfo
	if dev {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	blobs, err := blob.Open(viper.GetString("store.driver"), viper.GetString("store.dsn"))
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	logger.Info("blob store opened", "driver", viper.GetString("store.driver"))

	secret := auth.DeriveSecret(viper.GetString("auth.token_secret"), logger)
	tokens := auth.NewTokenCodec(secret, viper.GetBool("auth.allow_legacy_tokens"), logger)
	limiter := auth.NewLoginLimiter(blobs)
	users := auth.NewUserService(blobs, limiter, tokens, logger)
	recorder := activity.NewRecorder(blobs, logger)
	logHooks := hooks.LogHooks{Logger: logger}

	// First-run check: warn loudly when no admin account exists yet.
	hasUser, err := users.HasAnyUser(context.Background())
	if err != nil {
		logger.Warn("failed to check for admin accounts", "error", err)
	} else if !hasUser {
		logger.Warn("no admin account found - run: pitchside admin create")
	}

	cfg := server.Config{
		Host:              viper.GetString("server.host"),
		Port:              viper.GetInt("server.port"),
		ShutdownTimeout:   30 * time.Second,
		CORSOrigins:       viper.GetStringSlice("server.cors_origins"),
		RequestsPerMinute: viper.GetInt("server.requests_per_minute"),
		Version:           appVersion,
	}
	srv, err := server.New(cfg, blobs, users, recorder, logHooks, logHooks, logger)
	if err != nil {
		return err
	}

	fmt.Printf("→ Pitchside %s\n", appVersion)
	fmt.Printf("→ Listening on http://%s:%d\n", cfg.Host, cfg.Port)
	fmt.Printf("→ Health:  http://%s:%d/healthz\n", cfg.Host, cfg.Port)
	fmt.Printf("→ Metrics: http://%s:%d/metrics\n", cfg.Host, cfg.Port)
	fmt.Println()

	return srv.ListenAndServe()
}
