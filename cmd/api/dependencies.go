package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/assistant"
	assistanthandler "github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/assistant/handler"
	authhandler "github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/auth/handler"
	authservice "github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/auth/service"
	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/report/sheets"
	unithandler "github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/unit/handler"
	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/unit/repository"
	unitservice "github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/unit/service"
	"github.com/FACorreiaa/radiology-revenue-tracker/internal/server"
	"github.com/FACorreiaa/radiology-revenue-tracker/pkg/config"
	"github.com/FACorreiaa/radiology-revenue-tracker/pkg/cron"
	"github.com/FACorreiaa/radiology-revenue-tracker/pkg/db"
	"github.com/FACorreiaa/radiology-revenue-tracker/pkg/metrics"
	"github.com/FACorreiaa/radiology-revenue-tracker/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Connections
	DB          *db.DB
	MongoClient *mongo.Client
	SQLite      *sql.DB

	// Stores
	UnitStore repository.Store
	Tiered    *repository.TieredStore // nil unless a fallback cache is configured
	Archive   storage.Storage

	// Services
	AuthService *authservice.AuthService
	UnitService *unitservice.UnitService
	Sheets      *sheets.Client    // nil when GOOGLE_CREDENTIALS_FILE is unset
	Assistant   *assistant.Client // nil when GEMINI_API_KEY is unset
	Scheduler   *cron.Scheduler

	// Handlers
	AuthHandler      *authhandler.AuthHandler
	UnitHandler      *unithandler.UnitHandler
	AssistantHandler *assistanthandler.AssistantHandler

	Server *server.Server
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}
	if cfg.Observability.MetricsEnabled {
		deps.Metrics = metrics.New()
	}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"stores", deps.initStores},
		{"services", deps.initServices},
		{"handlers", deps.initHandlers},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			deps.Cleanup()
			return nil, fmt.Errorf("failed to init %s: %w", step.name, err)
		}
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initStores connects the primary unit store, the local fallback cache and
// the report archive.
func (d *Dependencies) initStores(ctx context.Context) error {
	var primary repository.Store

	switch d.Config.Store.Backend {
	case config.BackendPostgres:
		database, err := db.New(ctx, db.Config{
			DSN:             d.Config.Database.DSN(),
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: 5 * time.Minute,
			MaxConnIdleTime: 10 * time.Minute,
		}, d.Logger)
		if err != nil {
			return err
		}
		d.DB = database

		if err := d.DB.RunMigrations(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		primary = repository.NewPostgresStore(d.DB.Pool)

	case config.BackendMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		client, err := repository.ConnectMongo(connectCtx, d.Config.Mongo.URI)
		if err != nil {
			return err
		}
		d.MongoClient = client
		primary = repository.NewMongoStore(client.Database(d.Config.Mongo.Database).Collection(repository.UnitsCollection))

	case config.BackendSQLite:
		// The local file is the only store; there is nothing to fall back to.
		sqlDB, err := db.OpenSQLite(ctx, d.Config.Store.FallbackPath, d.Logger)
		if err != nil {
			return err
		}
		d.SQLite = sqlDB
		d.UnitStore = repository.NewSQLiteCache(sqlDB)
	}

	if primary != nil {
		d.UnitStore = primary
		if d.Config.Store.FallbackPath != "" {
			sqlDB, err := db.OpenSQLite(ctx, d.Config.Store.FallbackPath, d.Logger)
			if err != nil {
				return fmt.Errorf("failed to open fallback cache: %w", err)
			}
			d.SQLite = sqlDB
			d.Tiered = repository.NewTieredStore(primary, repository.NewSQLiteCache(sqlDB), d.Logger)
			d.UnitStore = d.Tiered
		}
	}

	archive, err := storage.New(&storage.Config{LocalPath: d.Config.Storage.ArchivePath})
	if err != nil {
		return fmt.Errorf("failed to init report archive: %w", err)
	}
	d.Archive = archive

	d.Logger.Info("stores initialized",
		slog.String("backend", d.Config.Store.Backend),
		slog.Bool("fallback_cache", d.Tiered != nil),
	)
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices(ctx context.Context) error {
	tokenManager, err := authservice.NewTokenManager(d.Config.Auth.JWTSecret, d.Config.Auth.TokenTTL)
	if err != nil {
		return err
	}
	d.AuthService, err = authservice.NewAuthService(d.Config.Auth.AdminCode, tokenManager, d.Logger)
	if err != nil {
		return err
	}

	loc, err := time.LoadLocation(d.Config.Business.Timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone: %w", err)
	}

	d.UnitService = unitservice.NewUnitService(d.UnitStore, unitservice.Config{
		Units:         d.Config.Business.Units,
		DefaultTarget: d.Config.Business.DefaultTarget,
		Location:      loc,
	}, d.Logger).
		WithArchive(d.Archive).
		WithMetrics(d.Metrics)

	// Google Sheets is optional
	if d.Config.Sheets.CredentialsFile != "" {
		d.Sheets, err = sheets.NewClient(ctx, d.Config.Sheets.CredentialsFile, d.Logger)
		if err != nil {
			return err
		}
	} else {
		d.Logger.Warn("GOOGLE_CREDENTIALS_FILE not set, spreadsheet uploads disabled")
	}

	// Assistant is optional
	if d.Config.Gemini.APIKey != "" {
		d.Assistant, err = assistant.NewClient(assistant.Config{
			APIKey:  d.Config.Gemini.APIKey,
			BaseURL: d.Config.Gemini.BaseURL,
			Model:   d.Config.Gemini.Model,
		}, d.Logger)
		if err != nil {
			return err
		}
	} else {
		d.Logger.Warn("GEMINI_API_KEY not set, assistant disabled")
	}

	if d.Tiered != nil {
		d.Scheduler = cron.NewScheduler(d.Config.Scheduler.ResyncSchedule, d.Tiered, d.Metrics, d.Logger)
	}

	d.Logger.Info("services initialized")
	return nil
}

// initHandlers initializes all handler dependencies and the HTTP server
func (d *Dependencies) initHandlers(context.Context) error {
	d.AuthHandler = authhandler.NewAuthHandler(d.AuthService, d.Logger)

	d.UnitHandler = unithandler.NewUnitHandler(d.UnitService, d.Config.Server.MaxUploadBytes(), d.Logger)
	if d.Sheets != nil {
		d.UnitHandler.WithSheets(d.Sheets)
	}

	// Keep the interface nil rather than holding a typed nil pointer.
	var client assistanthandler.Assistant
	if d.Assistant != nil {
		client = d.Assistant
	}
	d.AssistantHandler = assistanthandler.NewAssistantHandler(client, d.Logger)

	d.Server = server.New(server.Config{
		Addr:               d.Config.Server.Addr(),
		CORSOrigins:        d.Config.Server.CORSOrigins,
		RateLimitPerSecond: d.Config.Server.RateLimitPerSecond,
		RateLimitBurst:     d.Config.Server.RateLimitBurst,
		MetricsEnabled:     d.Config.Observability.MetricsEnabled,
	}, server.Handlers{
		Auth:      d.AuthHandler,
		Units:     d.UnitHandler,
		Assistant: d.AssistantHandler,
	}, d.Metrics, d.Logger)

	d.Logger.Info("handlers initialized")
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
	if d.MongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.MongoClient.Disconnect(ctx); err != nil {
			d.Logger.Error("failed to close mongodb connection", slog.Any("error", err))
		}
	}
	if d.SQLite != nil {
		if err := d.SQLite.Close(); err != nil {
			d.Logger.Error("failed to close sqlite", slog.Any("error", err))
		}
	}
	d.Logger.Info("cleanup completed")
}
