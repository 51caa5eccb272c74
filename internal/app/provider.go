package app

import (
	"context"
	"fmt"

	"github.com/joacominatel/dataprism-demo/internal/cdn"
	"github.com/joacominatel/dataprism-demo/internal/config"
	"github.com/joacominatel/dataprism-demo/internal/engine"
	"github.com/joacominatel/dataprism-demo/internal/engine/duckdb"
	"github.com/joacominatel/dataprism-demo/internal/engine/postgres"
	"github.com/joacominatel/dataprism-demo/internal/logging"
	"go.uber.org/zap"
)

// Selection describes which engine was brought up and why.
type Selection struct {
	Driver   string        `json:"driver"`
	Fallback bool          `json:"fallback"`
	Reason   string        `json:"reason,omitempty"`
	Manifest *cdn.Manifest `json:"manifest,omitempty"`
}

// Provide builds and initializes the configured engine.
//
// In auto mode the CDN manifest is fetched first; when it loads, DuckDB is
// started with the CDN assets as its extension repository. Any failure on
// that path degrades to the mock engine and is reported in the Selection,
// never returned. Explicitly selected drivers surface their errors.
func Provide(ctx context.Context, cfg *config.Config, logger *zap.Logger) (engine.Engine, Selection, error) {
	switch cfg.Engine.Driver {
	case config.DriverMock:
		eng, err := startMock(ctx, cfg)
		return eng, Selection{Driver: config.DriverMock}, err

	case config.DriverDuckDB:
		eng := duckdb.New(cfg.Engine.DuckDBPath)
		if err := eng.Initialize(ctx); err != nil {
			return nil, Selection{}, &ErrEngine{Driver: config.DriverDuckDB, Cause: err}
		}
		return eng, Selection{Driver: config.DriverDuckDB}, nil

	case config.DriverPostgres:
		dsn, err := postgresDSN(cfg)
		if err != nil {
			return nil, Selection{}, &ErrConfig{Cause: err}
		}
		logger.Info("connecting to postgres", zap.String("dsn", logging.SanitizeConnectionString(dsn)))
		eng := postgres.New(dsn)
		if err := eng.Initialize(ctx); err != nil {
			return nil, Selection{}, &ErrEngine{Driver: config.DriverPostgres, Cause: err}
		}
		return eng, Selection{Driver: config.DriverPostgres}, nil

	case config.DriverAuto, "":
		return provideAuto(ctx, cfg, logger)

	default:
		return nil, Selection{}, &ErrConfig{Cause: fmt.Errorf("unknown engine driver %q", cfg.Engine.Driver)}
	}
}

func provideAuto(ctx context.Context, cfg *config.Config, logger *zap.Logger) (engine.Engine, Selection, error) {
	loader := cdn.NewLoader(cfg.CDN, logger)

	manifest, err := loader.FetchManifest(ctx)
	if err == nil {
		eng := duckdb.New(cfg.Engine.DuckDBPath, duckdb.WithExtensionRepository(loader.Assets().AssetsDir))
		if err = eng.Initialize(ctx); err == nil {
			logger.Info("engine ready", zap.String("driver", config.DriverDuckDB), zap.String("cdn_version", manifest.Version))
			return eng, Selection{Driver: config.DriverDuckDB, Manifest: manifest}, nil
		}
		err = &ErrEngine{Driver: config.DriverDuckDB, Cause: err}
	}
	if ctx.Err() != nil {
		return nil, Selection{}, ctx.Err()
	}

	logger.Warn("real engine unavailable, falling back to mock engine", zap.Error(err))
	eng, mockErr := startMock(ctx, cfg)
	if mockErr != nil {
		return nil, Selection{}, mockErr
	}
	return eng, Selection{Driver: config.DriverMock, Fallback: true, Reason: err.Error()}, nil
}

func startMock(ctx context.Context, cfg *config.Config) (*engine.MockEngine, error) {
	eng := engine.NewMock(engine.WithDelays(cfg.Engine.MockInitDelay, cfg.Engine.MockLoadDelay))
	if err := eng.Initialize(ctx); err != nil {
		return nil, err
	}
	return eng, nil
}

func postgresDSN(cfg *config.Config) (string, error) {
	if cfg.Engine.DSN != "" {
		return cfg.Engine.DSN, nil
	}

	var conn *config.Connection
	if cfg.Engine.Connection != "" {
		c, ok := cfg.FindConnection(cfg.Engine.Connection)
		if !ok {
			return "", fmt.Errorf("connection %q not found", cfg.Engine.Connection)
		}
		conn = &c
	} else {
		conn = config.DefaultConnection(cfg)
	}
	if conn == nil {
		return "", fmt.Errorf("no postgres dsn or saved connection")
	}

	withPw, err := config.WithSecret(*conn)
	if err != nil {
		return "", err
	}
	return withPw.DSN(), nil
}
