// Package bootstrap wires all dependencies and starts the application.
// The schema descriptor is built once here, before the HTTP server starts,
// and shared read-only by every request.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"

	"github.com/artpar/predefine/adapters/clock"
	apihttp "github.com/artpar/predefine/adapters/http"
	"github.com/artpar/predefine/adapters/idgen"
	"github.com/artpar/predefine/adapters/memory"
	"github.com/artpar/predefine/adapters/metrics"
	natsadapter "github.com/artpar/predefine/adapters/nats"
	"github.com/artpar/predefine/adapters/sqlite"
	"github.com/artpar/predefine/app"
	"github.com/artpar/predefine/config"
	"github.com/artpar/predefine/core/events"
	"github.com/artpar/predefine/core/openapi"
	"github.com/artpar/predefine/core/schema"
	"github.com/artpar/predefine/ports"
)

// App represents the running application.
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Schema     *schema.Descriptor
	DB         *sqlite.DB // nil with the memory driver
	Store      ports.PredefineStore
	Service    *app.PredefineService
	Bus        *events.Bus
	Metrics    *metrics.Collector
	Handler    http.Handler
	HTTPServer *http.Server

	// Prefix is the API mount point derived from the API version, e.g. "/v1".
	Prefix string

	publisher ports.EventPublisher
}

// Options provides optional dependencies for New.
type Options struct {
	// Logger overrides the logger built from cfg.Logging.
	Logger *zerolog.Logger
	// Clock overrides the wall clock.
	Clock ports.Clock
	// IDs overrides the generator selected by cfg.Predefine.IDFormat.
	IDs ports.IDGenerator
	// Publisher overrides the NATS publisher built from cfg.Events.
	Publisher ports.EventPublisher
}

// New creates and initializes the application.
func New(cfg *config.Config, opts Options) (*App, error) {
	logger := NewLogger(cfg.Logging, os.Stdout)
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	desc, err := BuildSchema(cfg)
	if err != nil {
		return nil, err
	}

	prefix, err := MountPrefix(cfg.API.Version)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("model", desc.ModelName()).
		Str("collection", desc.Collection()).
		Strs("locales", desc.Locales()).
		Strs("buckets", desc.Buckets()).
		Str("fingerprint", desc.Fingerprint()).
		Msg("schema built")

	a := &App{
		Config: cfg,
		Logger: logger,
		Schema: desc,
		Prefix: prefix,
	}

	if err := a.initStore(); err != nil {
		a.Shutdown()
		return nil, fmt.Errorf("init store: %w", err)
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		a.Metrics.SchemaInfo.WithLabelValues(desc.ModelName(), desc.Fingerprint()).Set(1)
		logger.Info().Str("path", cfg.Metrics.Path).Msg("prometheus metrics enabled")
	}

	if err := a.initEvents(opts.Publisher); err != nil {
		a.Shutdown()
		return nil, fmt.Errorf("init events: %w", err)
	}

	ids := opts.IDs
	if ids == nil {
		if ids, err = idgen.ForFormat(cfg.Predefine.IDFormat); err != nil {
			a.Shutdown()
			return nil, err
		}
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}

	a.Service = app.NewPredefineService(app.PredefineDeps{
		Store:   a.Store,
		Schema:  desc,
		IDs:     ids,
		Clock:   clk,
		Bus:     a.Bus,
		Metrics: a.Metrics,
		Logger:  logger.With().Str("component", "predefine").Logger(),
	})

	if err := a.initHTTPServer(); err != nil {
		a.Shutdown()
		return nil, fmt.Errorf("init http server: %w", err)
	}

	return a, nil
}

// BuildSchema builds the schema descriptor from configuration.
func BuildSchema(cfg *config.Config) (*schema.Descriptor, error) {
	desc, err := schema.NewBuilder(cfg).Build()
	if err != nil {
		return nil, fmt.Errorf("build schema: %w", err)
	}
	return desc, nil
}

// MountPrefix returns "/v<major>" for a semantic API version.
func MountPrefix(version string) (string, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return "", &config.ConfigurationError{Key: config.EnvAPIVersion, Err: err}
	}
	return "/v" + strconv.FormatUint(v.Major(), 10), nil
}

// NewLogger creates the application logger.
func NewLogger(cfg config.LoggingConfig, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func (a *App) initStore() error {
	ctx := context.Background()

	switch a.Config.Database.Driver {
	case config.DriverMemory:
		a.Store = memory.NewPredefineStore(a.Schema)
		a.Logger.Warn().Msg("using in-memory store; documents are lost on exit")
		return nil
	default:
		db, err := sqlite.Open(a.Config.Database.DSN)
		if err != nil {
			return err
		}
		a.DB = db

		store, err := sqlite.NewPredefineStore(ctx, db, a.Schema)
		if err != nil {
			return err
		}
		a.Store = store
		a.Logger.Info().Str("dsn", a.Config.Database.DSN).Msg("database initialized")
		return nil
	}
}

func (a *App) initEvents(publisher ports.EventPublisher) error {
	a.Bus = events.NewBus(a.Logger.With().Str("component", "events").Logger())

	if publisher == nil && a.Config.Events.NATSURL != "" {
		p, err := natsadapter.Connect(a.Config.Events.NATSURL, a.Config.Events.Subject, a.Logger)
		if err != nil {
			return err
		}
		publisher = p
		a.Logger.Info().Str("url", a.Config.Events.NATSURL).Str("subject", a.Config.Events.Subject).Msg("publishing events to nats")
	}
	if publisher != nil {
		a.publisher = publisher
		a.Bus.Subscribe("predefine.*", publisher.Publish)
	}
	return nil
}

func (a *App) initHTTPServer() error {
	handler := apihttp.NewPredefineHandler(a.Service, a.Logger)

	var health *apihttp.HealthHandler
	if a.DB != nil {
		health = apihttp.NewHealthHandler(a.DB)
	} else {
		health = apihttp.NewHealthHandler(nil)
	}

	routerCfg := apihttp.RouterConfig{
		Prefix:      a.Prefix,
		Version:     a.Config.API.Version,
		Metrics:     a.Metrics,
		MetricsPath: a.Config.Metrics.Path,
	}

	if a.Config.OpenAPI.Enabled {
		gen := openapi.NewGenerator(a.Schema)
		gen.SetInfo(openapi.Info{
			Title:   a.Schema.ModelName() + " API",
			Version: a.Config.API.Version,
		})
		gen.AddServer(a.Prefix, "current API version")

		name := openapi.InstanceName(a.Schema.Fingerprint())
		if err := openapi.Register(name, gen.Generate()); err != nil {
			return err
		}
		routerCfg.SwaggerInstance = name
		a.Logger.Info().Msg("openapi documentation enabled at /swagger/index.html")
	}

	a.Handler = apihttp.NewRouter(handler, health, a.Logger, routerCfg)
	a.HTTPServer = &http.Server{
		Addr:         net.JoinHostPort(a.Config.Server.Host, strconv.Itoa(a.Config.Server.Port)),
		Handler:      a.Handler,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}

	for _, url := range apihttp.BucketURLs(handler, a.Prefix) {
		a.Logger.Info().Msgf("visit http://%s%s", a.HTTPServer.Addr, url)
	}
	return nil
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Str("prefix", a.Prefix).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		a.Shutdown()
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("event publisher close error")
		}
		a.publisher = nil
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
		a.DB = nil
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}
