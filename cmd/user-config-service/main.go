package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/beemstream/user-config-service/internal/activation"
	"github.com/beemstream/user-config-service/internal/config"
	"github.com/beemstream/user-config-service/internal/database"
	"github.com/beemstream/user-config-service/internal/favourites"
	"github.com/beemstream/user-config-service/internal/logging"
	"github.com/beemstream/user-config-service/internal/platform"
	"github.com/beemstream/user-config-service/internal/presets"
	"github.com/beemstream/user-config-service/internal/server"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "user-config-service",
		Short: "Stream preset and favourite channel service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("auth-url", defaults.GetString("auth.url"), "Profile endpoint of the authentication service")
	cmd.PersistentFlags().String("platform-api-url", defaults.GetString("platform.api_url"), "Streaming platform API base URL")
	cmd.PersistentFlags().String("platform-auth-url", defaults.GetString("platform.auth_url"), "Streaming platform token validation base URL")
	cmd.PersistentFlags().String("platform-client-id", defaults.GetString("platform.client_id"), "Streaming platform application client id")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "auth.url", "auth-url")
	bindFlag(cmd, "platform.api_url", "platform-api-url")
	bindFlag(cmd, "platform.auth_url", "platform-auth-url")
	bindFlag(cmd, "platform.client_id", "platform-client-id")
	bindFlag(cmd, "log.level", "log-level")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	// Local .env files are a convenience for development; absence is fine.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		// An explicitly requested file must load; the implicit lookup may miss.
		if cfgFile != "" {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	platformClient, err := platform.NewClient(platform.ClientConfig{
		AuthURL:        appConfig.AuthURL,
		APIBaseURL:     appConfig.PlatformAPIURL,
		AuthBaseURL:    appConfig.PlatformAuthURL,
		ClientID:       appConfig.PlatformClientID,
		RequestTimeout: appConfig.RequestTimeout,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	registry, err := favourites.NewRegistry(favourites.RegistryConfig{
		Database: db,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	store, err := presets.NewStore(presets.StoreConfig{
		Database: db,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	orchestrator, err := activation.NewOrchestrator(activation.OrchestratorConfig{
		Platform: platformClient,
		Presets:  store,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Registry:     registry,
		Store:        store,
		Orchestrator: orchestrator,
		Platform:     platformClient,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
