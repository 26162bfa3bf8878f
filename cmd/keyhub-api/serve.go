package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/keyhub/internal/auth"
	"github.com/MarcoPoloResearchLab/keyhub/internal/config"
	"github.com/MarcoPoloResearchLab/keyhub/internal/importer"
	"github.com/MarcoPoloResearchLab/keyhub/internal/onboarding"
	"github.com/MarcoPoloResearchLab/keyhub/internal/server"
	"github.com/MarcoPoloResearchLab/keyhub/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	deps, err := openServices(appConfig)
	if err != nil {
		return err
	}
	defer deps.Close()
	logger := deps.logger

	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.SessionSigningKey),
		Issuer:        appConfig.SessionIssuer,
		CookieName:    appConfig.SessionCookieName,
	})
	if err != nil {
		return err
	}

	onboarder, err := onboarding.New(deps.store, deps.presets, logger)
	if err != nil {
		return err
	}
	userService, err := users.NewService(users.ServiceConfig{
		Database:  deps.db,
		Clock:     time.Now,
		Logger:    logger,
		OnNewUser: onboarder.OnNewUser,
	})
	if err != nil {
		return err
	}

	var legacyImporter server.LegacyImporter
	if appConfig.LegacyImportURL != "" {
		imp, err := importer.New(importer.Config{
			Source:   importer.NewHTTPSource(appConfig.LegacyImportURL, appConfig.LegacyImportTimeout),
			Store:    deps.store,
			Presets:  deps.presets,
			Logger:   logger,
			Recorder: deps.metrics,
		})
		if err != nil {
			return err
		}
		legacyImporter = imp
	} else {
		logger.Info("legacy import disabled: import.base_url not set")
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Sessions:       sessionValidator,
		Users:          userService,
		Loadouts:       deps.store,
		Presets:        deps.presets,
		Importer:       legacyImporter,
		Metrics:        deps.metrics,
		AllowedOrigins: appConfig.AllowedOrigins,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
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
