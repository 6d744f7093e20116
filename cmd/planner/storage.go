package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/orbitpath/planner/internal/config"
	"github.com/orbitpath/planner/internal/database"
	"github.com/orbitpath/planner/internal/influx"
	"github.com/orbitpath/planner/internal/storage"
	gormstorage "github.com/orbitpath/planner/internal/storage/gorm"
	"github.com/orbitpath/planner/internal/storage/memory"
	sqlitestorage "github.com/orbitpath/planner/internal/storage/sqlite"
	wsstorage "github.com/orbitpath/planner/internal/storage/websocket"
)

// postgresBackend closes its database connection with the backend.
type postgresBackend struct {
	*gormstorage.Backend
	db *database.Manager
}

func (b *postgresBackend) Close() error {
	if err := b.Backend.Close(); err != nil {
		return err
	}
	return b.db.Close()
}

func initStorage() (storage.Backend, error) {
	storageCfg := config.GetStorageConfig()

	backend, err := createStorageBackend(storageCfg)
	if err != nil {
		Logger.Error("Failed to create storage backend", "error", err)
		return nil, err
	}
	if err := backend.Init(); err != nil {
		Logger.Error("Failed to initialize storage backend", "error", err)
		_ = backend.Close()
		return nil, err
	}
	return backend, nil
}

func createStorageBackend(storageCfg config.StorageConfig) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		dbManager := database.NewManager(ZLogger)
		if err := dbManager.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if dbManager.ShouldSaveLocal {
			Logger.Warn("Postgres unreachable, plans are kept in memory only")
		}
		Logger.Info("Postgres storage backend initialized")
		return &postgresBackend{
			Backend: gormstorage.New(gormstorage.Dependencies{
				DB:         dbManager.DB,
				LogManager: SlogManager,
			}),
			db: dbManager,
		}, nil

	case "sqlite":
		sqliteCfg := storageCfg.SQLite
		if sqliteCfg.DumpPath == "" {
			sqliteCfg.DumpPath = filepath.Join(".", fmt.Sprintf("%s_%s.db", AppName, SessionStartTime.Format("20060102_150405")))
		}
		backend, err := sqlitestorage.New(sqliteCfg, SlogManager)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		Logger.Info("SQLite storage backend initialized", "dumpPath", sqliteCfg.DumpPath)
		return backend, nil

	case "websocket":
		wsCfg := storageCfg.WebSocket
		if wsCfg.URL == "" {
			wsCfg.URL = httpToWS(viper.GetString("viewer.serverUrl")) + "/api/live"
		}
		if wsCfg.Secret == "" {
			wsCfg.Secret = viper.GetString("viewer.apiKey")
		}
		Logger.Info("WebSocket storage backend initialized", "url", wsCfg.URL)
		return wsstorage.New(wsCfg, Logger), nil

	case "memory", "":
		Logger.Info("Memory storage backend initialized", "outputDir", storageCfg.Memory.OutputDir)
		return memory.New(storageCfg.Memory), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}

// initInflux returns nil when influx is disabled or cannot be set up.
func initInflux() *influx.Manager {
	cfg := config.GetInfluxConfig()
	if !cfg.Enabled {
		return nil
	}

	backupPath := filepath.Join(viper.GetString("logsDir"),
		fmt.Sprintf("influx_%s.lp.gz", SessionStartTime.Format("20060102_150405")))
	m := influx.NewManager(ZLogger, cfg, backupPath)
	ctx, cancel := shortContext()
	defer cancel()
	if err := m.Connect(ctx); err != nil {
		Logger.Warn("Failed to set up InfluxDB, samples will not be exported", "error", err)
		return nil
	}
	return m
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
