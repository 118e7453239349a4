package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/specialistvlad/imageburst/internal/config"
	"github.com/specialistvlad/imageburst/internal/connmgr"
	"github.com/specialistvlad/imageburst/internal/ctxlog"
	"github.com/specialistvlad/imageburst/internal/image"
	"github.com/specialistvlad/imageburst/internal/metrics"
	"github.com/specialistvlad/imageburst/internal/registry"
	"github.com/specialistvlad/imageburst/internal/upload"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	registry *registry.Registry
	accept   image.Accept
	fs       billy.Filesystem

	manager *connmgr.Manager
	session *upload.Session
	metrics *metrics.Recorder

	httpServer *http.Server
}

// NewApp is the constructor for the main application. It loads the config
// files named in cfg, merges them under the flag values and builds every
// component. cfg itself is not modified.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	c := *cfg
	c.Paths = append([]string(nil), cfg.Paths...)
	c.Headers = maps.Clone(cfg.Headers)
	if len(c.ConfigPaths) > 0 {
		model, err := loader.Load(ctx, c.ConfigPaths...)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		c.applyFile(model)
		logger.Debug("Configuration files merged.", "paths", c.ConfigPaths)
	}
	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All transport modules registered.", "transports", reg.Names())

	accept, err := image.NewAccept(c.Accept)
	if err != nil {
		return nil, err
	}

	dialer, err := reg.Dialer(c.Transport, c.transportConfig(), logger)
	if err != nil {
		return nil, err
	}

	mgr := connmgr.New(dialer, logger)
	session := upload.New(mgr, logger)
	rec := metrics.NewRecorder()
	mgr.Subscribe(rec)
	session.Subscribe(rec)

	logger.Debug("Application assembled.", "url", c.URL, "transport", c.Transport, "accept", []string(accept))

	return &App{
		outW:     outW,
		logger:   logger,
		config:   &c,
		registry: reg,
		accept:   accept,
		fs:       osfs.New("/"),
		manager:  mgr,
		session:  session,
		metrics:  rec,
	}, nil
}

// Config returns the merged configuration.
func (a *App) Config() Config {
	return *a.config
}

// Session returns the upload session. This is primarily for testing.
func (a *App) Session() *upload.Session {
	return a.session
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}
