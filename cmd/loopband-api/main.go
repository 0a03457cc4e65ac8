package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loopband/backend/internal/activity"
	"github.com/loopband/backend/internal/auth"
	"github.com/loopband/backend/internal/config"
	"github.com/loopband/backend/internal/database"
	"github.com/loopband/backend/internal/greenaudit"
	"github.com/loopband/backend/internal/logging"
	"github.com/loopband/backend/internal/scheduler"
	"github.com/loopband/backend/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile      string
	tokenSubject string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "loopband-api",
		Short: "Loopband lanyard platform backend with the Green ICT audit engine",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an administrator token for the audit endpoints",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return mintToken(cmd.Context())
		},
	}
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Administrator subject to embed in the token")
	rootCmd.AddCommand(tokenCmd)

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
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Admin token signing secret (overrides env)")
	cmd.PersistentFlags().String("trigger-secret", "", "Scheduler trigger shared secret (overrides env)")
	cmd.PersistentFlags().Bool("auto-audit", defaults.GetBool("audit.auto_run"), "Run the monthly audit automatically")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "audit.signing_secret", "signing-secret")
	bindFlag(cmd, "audit.trigger_secret", "trigger-secret")
	bindFlag(cmd, "audit.auto_run", "auto-audit")
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

func mintToken(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	authorizer, err := auth.NewTriggerAuthorizer(auth.TriggerAuthorizerConfig{
		SigningSecret: []byte(appConfig.AdminSigningSecret),
		TriggerSecret: appConfig.TriggerSecret,
	})
	if err != nil {
		return err
	}

	token, expiresIn, err := authorizer.IssueAdminToken(ctx, tokenSubject)
	if err != nil {
		return err
	}
	fmt.Printf("%s\nexpires_in=%d\n", token, expiresIn)
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

	authorizer, err := auth.NewTriggerAuthorizer(auth.TriggerAuthorizerConfig{
		SigningSecret: []byte(appConfig.AdminSigningSecret),
		TriggerSecret: appConfig.TriggerSecret,
	})
	if err != nil {
		return err
	}

	collector, err := activity.NewCollector(db)
	if err != nil {
		return err
	}

	auditService, err := greenaudit.NewService(greenaudit.ServiceConfig{
		Database:    db,
		Collector:   collector,
		Clock:       time.Now,
		IDProvider:  greenaudit.NewUUIDProvider(),
		Methodology: greenaudit.DefaultMethodology(),
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		AuditService: auditService,
		Authorizer:   authorizer,
		Clock:        time.Now,
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

	if appConfig.AutoAudit {
		monthly, err := scheduler.New(scheduler.Config{
			AuditService: auditService,
			Clock:        time.Now,
			Logger:       logger,
		})
		if err != nil {
			return err
		}
		go monthly.Run(signalCtx)
	}

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
