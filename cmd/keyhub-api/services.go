package main

import (
	"time"

	"github.com/MarcoPoloResearchLab/keyhub/internal/config"
	"github.com/MarcoPoloResearchLab/keyhub/internal/database"
	"github.com/MarcoPoloResearchLab/keyhub/internal/loadout"
	"github.com/MarcoPoloResearchLab/keyhub/internal/logging"
	"github.com/MarcoPoloResearchLab/keyhub/internal/metrics"
	"github.com/MarcoPoloResearchLab/keyhub/internal/presets"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// services holds the storage backed components shared by every command.
type services struct {
	db      *gorm.DB
	logger  *zap.Logger
	metrics *metrics.Registry
	store   *loadout.Store
	presets *presets.Service
}

func openServices(appConfig config.AppConfig) (*services, error) {
	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return nil, err
	}

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return nil, err
	}

	registry := metrics.New()
	store, err := loadout.NewStore(loadout.StoreConfig{
		Database:  db,
		Clock:     time.Now,
		Logger:    logger,
		BatchSize: appConfig.WriteBatchSize,
	})
	if err != nil {
		return nil, err
	}
	presetService, err := presets.NewService(presets.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: presets.NewUUIDProvider(),
		Logger:     logger,
		Recorder:   registry,
	})
	if err != nil {
		return nil, err
	}

	return &services{
		db:      db,
		logger:  logger,
		metrics: registry,
		store:   store,
		presets: presetService,
	}, nil
}

func (s *services) Close() {
	_ = s.logger.Sync()
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
