package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/seatwise/floorplan/internal/bootstrap"
	"github.com/seatwise/floorplan/internal/employees"
	"github.com/seatwise/floorplan/internal/floorplan"
	"github.com/seatwise/floorplan/internal/layout"
	"github.com/seatwise/floorplan/internal/logger"
	"github.com/seatwise/floorplan/internal/server"
	"github.com/seatwise/floorplan/internal/store"
	memorystore "github.com/seatwise/floorplan/internal/store/memory"
	postgresstore "github.com/seatwise/floorplan/internal/store/postgres"
	"github.com/seatwise/floorplan/internal/telemetry"
)

type ServerCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"FLOORPLAN_LISTEN"`
	Cert   string `help:"path to TLS cert file" default:"" env:"FLOORPLAN_TLS_CERT"`
	Key    string `help:"path to TLS key file" default:"" env:"FLOORPLAN_TLS_KEY"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"*" env:"FLOORPLAN_CORS_ORIGINS"`

	// Floor grid configuration
	GridRows    int `help:"number of rows in the floor grid" default:"13" env:"FLOORPLAN_GRID_ROWS"`
	GridColumns int `help:"number of columns in the floor grid" default:"30" env:"FLOORPLAN_GRID_COLUMNS"`

	// Data configuration
	Seed      string `help:"path to a YAML seed file with departments and desks" default:"" env:"FLOORPLAN_SEED"`
	Employees string `help:"path to the employee roster CSV" default:"" env:"FLOORPLAN_EMPLOYEES_CSV"`

	// Operational modes
	Tracing bool `help:"enable tracing" default:"false" env:"FLOORPLAN_TRACING"`

	// Store configuration
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"FLOORPLAN_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"5"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"FLOORPLAN_POSTGRES_AUTO_MIGRATE"`
}

func (s *PostgresStoreFlags) Validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

func (c *ServerCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx := context.Background()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	// Setup telemetry if enabled
	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, "floorplan-server", globals.Version)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	// Create the store based on store type
	var (
		floorStore store.FloorStore
		err        error
	)

	switch c.StoreType {
	case "postgres":
		if err := c.PostgresStore.Validate(); err != nil {
			return fmt.Errorf("failed to validate postgres flags: %w", err)
		}
		floorStore, err = postgresstore.NewFloorStore(ctx, &postgresstore.Config{
			ConnString:      c.PostgresStore.ConnString,
			MaxConns:        c.PostgresStore.MaxConns,
			MinConns:        c.PostgresStore.MinConns,
			MaxConnLifetime: c.PostgresStore.MaxConnLifetime,
			MaxConnIdleTime: c.PostgresStore.MaxConnIdleTime,
			AutoMigrate:     c.PostgresStore.AutoMigrate,
		})
		if err != nil {
			return fmt.Errorf("failed to create postgres store: %w", err)
		}
		log.Info().Msg("Using PostgreSQL floor store")

	default:
		floorStore = memorystore.NewFloorStore()
		log.Info().Msg("Using in-memory floor store")
	}

	if err := floorStore.Start(); err != nil {
		return err
	}
	defer func() {
		if err := floorStore.Stop(); err != nil {
			log.Error().Err(err).Msg("Failed to stop floor store")
		}
	}()

	grid := layout.Grid{Rows: c.GridRows, Columns: c.GridColumns}
	if grid.Rows < 1 || grid.Columns < 1 {
		return errors.New("grid dimensions must be at least 1x1")
	}

	// Apply seed data if configured
	if c.Seed != "" {
		if _, err := bootstrap.Seed(ctx, floorStore, grid, c.Seed); err != nil {
			return fmt.Errorf("failed to apply seed file: %w", err)
		}
	}

	var directory *employees.Directory
	if c.Employees != "" {
		directory = employees.NewDirectory(c.Employees)
		log.Info().Str("path", c.Employees).Msg("Employee roster configured")
	}

	service := floorplan.NewService(floorStore, grid, nil)
	api := server.NewFloorPlanServer(service, directory)

	handler := logger.AccessLog(log)(withCORS(c.CORSOrigins, api.Handler()))

	httpServer := configureHTTPServer(c.Listen, handler)
	if c.Cert != "" && c.Key != "" {
		log.Info().Str("addr", c.Listen).Msg("Starting HTTPS server")
		return httpServer.ListenAndServeTLS(c.Cert, c.Key)
	}
	log.Info().Str("addr", c.Listen).Msg("Starting HTTP server")
	return httpServer.ListenAndServe()
}

// withCORS adds CORS support for browser clients on other origins.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	})
	return middleware.Handler(h)
}
