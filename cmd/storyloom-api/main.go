package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/storyloomhq/storyloom/backend/internal/auth"
	"github.com/storyloomhq/storyloom/backend/internal/catalog"
	"github.com/storyloomhq/storyloom/backend/internal/config"
	"github.com/storyloomhq/storyloom/backend/internal/database"
	"github.com/storyloomhq/storyloom/backend/internal/logging"
	"github.com/storyloomhq/storyloom/backend/internal/mentions"
	"github.com/storyloomhq/storyloom/backend/internal/notifications"
	"github.com/storyloomhq/storyloom/backend/internal/presence"
	"github.com/storyloomhq/storyloom/backend/internal/server"
	"github.com/storyloomhq/storyloom/backend/internal/threads"
	"github.com/storyloomhq/storyloom/backend/internal/users"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "storyloom-api",
		Short: "Storyloom comment and notification backend",
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
	cmd.PersistentFlags().String("redis-url", defaults.GetString("redis.url"), "Redis URL for the shared presence mirror (optional)")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("token.ttl_minutes"), "Backend token TTL in minutes")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Backend signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "redis.url", "redis-url")
	bindFlag(cmd, "token.ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
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

	tokenManager := auth.NewTokenManager(auth.TokenManagerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "storyloom-auth",
		Audience:      "storyloom-api",
		TokenTTL:      appConfig.TokenTTL,
	})

	directory, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		return err
	}

	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Database: db,
		Points:   directory,
	})
	if err != nil {
		return err
	}

	var mirror presence.Mirror
	if appConfig.RedisURL != "" {
		redisMirror, mirrorErr := presence.NewRedisMirror(appConfig.RedisURL)
		if mirrorErr != nil {
			return mirrorErr
		}
		defer redisMirror.Close() //nolint:errcheck
		mirror = redisMirror
	}

	hub := presence.NewHub(presence.HubConfig{
		Mirror: mirror,
		Logger: logger,
	})

	store, err := notifications.NewStore(notifications.StoreConfig{Database: db})
	if err != nil {
		return err
	}

	dispatcher, err := notifications.NewDispatcher(notifications.DispatcherConfig{
		Store:      store,
		IDProvider: threads.NewUUIDProvider(),
		Presence:   hub,
		Pusher:     hub,
		Catalog:    catalogService,
		Directory:  directory,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	threadService, err := threads.NewService(threads.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: threads.NewUUIDProvider(),
		Directory:  directory,
		Events:     dispatcher,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	resolver, err := mentions.NewResolver(mentions.ResolverConfig{
		Commenters: threadService,
		Directory:  directory,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		TokenManager:  tokenManager,
		Threads:       threadService,
		Notifications: store,
		Mentions:      resolver,
		Catalog:       catalogService,
		Hub:           hub,
		Logger:        logger,
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
