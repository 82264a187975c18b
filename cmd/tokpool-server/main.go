package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokpool/internal/infra/buildinfo"
	"github.com/yndnr/tokpool/internal/infra/confloader"
	"github.com/yndnr/tokpool/internal/infra/shutdown"
	"github.com/yndnr/tokpool/internal/infra/tlsroots"
	"github.com/yndnr/tokpool/internal/server/config"
	"github.com/yndnr/tokpool/internal/server/httpserver"
	"github.com/yndnr/tokpool/internal/server/httpserver/handler"
	"github.com/yndnr/tokpool/internal/storage"
	"github.com/yndnr/tokpool/internal/storage/tokenstore"
	"github.com/yndnr/tokpool/internal/telemetry/logger"
	"github.com/yndnr/tokpool/internal/telemetry/metric"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "tokpool-server",
		Usage:   "Token pool HTTP server",
		Version: buildinfo.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				EnvVars: []string{"TOKPOOL_CONFIG"},
			},
		},
		Action: func(c *cli.Context) error {
			return run(c.Context, c.String("config"))
		},
	}
}

func run(ctx context.Context, configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	info := buildinfo.Get()
	log.Info("starting tokpool-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", configFile)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	srv, err := newServer(cfg, log)
	if err != nil {
		return err
	}
	return srv.serve(ctx, configFile)
}

// initLogger builds the process logger and installs it as the default.
func initLogger(cfg *config.ServerConfig) (*slog.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)
	return logger.Slog(log), nil
}

// server is one wired tokpool-server process.
type server struct {
	cfg      *config.ServerConfig
	log      *slog.Logger
	store    *tokenstore.Store
	handler  *handler.Handler
	http     *httpserver.Server
	listener net.Listener
}

// newServer opens storage, builds the router and binds the listener.
func newServer(cfg *config.ServerConfig, log *slog.Logger) (*server, error) {
	reg := metric.NewRegistry()

	backend, err := openBackend(&cfg.Storage, log, reg)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	store, err := tokenstore.New(backend,
		tokenstore.WithTTL(cfg.Storage.TTL),
		tokenstore.WithSweepInterval(cfg.Storage.SweepInterval),
		tokenstore.WithLogger(log),
		tokenstore.WithMetrics(reg),
	)
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("init token store: %w", err)
	}

	h := handler.New(store, log).WithMaxBodyBytes(cfg.Server.HTTP.MaxBodyBytes)
	httpCfg := cfg.Server.HTTP
	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Handler:             h,
		Metrics:             reg,
		Logger:              log,
		AdminToken:          httpCfg.AdminToken,
		AdminAllowList:      httpCfg.AdminAllowList,
		MetricsAuthRequired: httpCfg.MetricsAuthRequired,
		CORSAllowedOrigins:  httpCfg.CORSAllowedOrigins,
		GlobalRateLimit:     httpCfg.RateLimit,
		MaxBodyBytes:        httpCfg.MaxBodyBytes,
		EnableAudit:         httpCfg.EnableAudit,
	})

	ln, err := net.Listen("tcp", httpCfg.Addr)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen %s: %w", httpCfg.Addr, err)
	}

	return &server{
		cfg:      cfg,
		log:      log,
		store:    store,
		handler:  h,
		http:     httpserver.New(httpCfg.Addr, router),
		listener: ln,
	}, nil
}

// openBackend opens the configured storage backend.
func openBackend(cfg *config.StorageSection, log *slog.Logger, reg *metric.Registry) (tokenstore.Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		log.Warn("using in-memory storage, tokens are lost on restart")
		return tokenstore.NewMemoryBackend(), nil
	case config.BackendBadger:
		b, err := storage.OpenBadgerBackend(cfg.DataDir, cfg.Badger, log)
		if err != nil {
			return nil, err
		}
		return b.RegisterMetrics(reg.Prometheus()), nil
	default:
		return tokenstore.NewFileBackend(cfg.Path)
	}
}

// Addr returns the bound listen address.
func (s *server) Addr() string {
	return s.listener.Addr().String()
}

// serve runs until ctx is done or a signal arrives, then shuts down.
func (s *server) serve(ctx context.Context, configFile string) error {
	log := s.log
	bg, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownHandler := shutdown.NewHandler(s.cfg.Server.HTTP.ShutdownTimeout, log)

	// Hooks run in reverse order of registration.
	shutdownHandler.OnShutdown("store", func(context.Context) error {
		log.Info("closing token store")
		return s.store.Close()
	})
	shutdownHandler.OnShutdown("watchers", func(context.Context) error {
		cancel()
		return nil
	})
	shutdownHandler.OnShutdown("http", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		s.handler.SetReady(false)
		return s.http.Shutdown(ctx)
	})

	if configFile != "" {
		s.watchConfig(bg, configFile)
	}

	httpCfg := s.cfg.Server.HTTP
	serveFn := s.http.Serve
	if httpCfg.TLSCertFile != "" && httpCfg.TLSKeyFile != "" {
		reloader, err := tlsroots.NewReloader(httpCfg.TLSCertFile, httpCfg.TLSKeyFile, tlsroots.WithLogger(log))
		if err != nil {
			_ = s.listener.Close()
			_ = s.store.Close()
			return fmt.Errorf("load TLS key pair: %w", err)
		}
		go func() {
			if err := reloader.Run(bg); err != nil {
				log.Error("certificate reloader stopped", "error", err)
			}
		}()
		serveFn = func(l net.Listener) error {
			return s.http.ServeTLS(l, reloader.ServerConfig())
		}
	}

	go func() {
		log.Info("HTTP server listening", "addr", s.Addr(), "tls", httpCfg.TLSCertFile != "")
		if err := serveFn(s.listener); err != nil {
			log.Error("HTTP server error", "error", err)
			shutdownHandler.Trigger("http server failed")
		}
	}()

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// watchConfig applies log level changes from the config file.
// Other settings need a restart.
func (s *server) watchConfig(ctx context.Context, path string) {
	w := confloader.NewWatcher(path, confloader.WithWatcherLogger(s.log))
	w.OnChange(func(changed string) {
		cfg, err := config.Load(changed)
		if err != nil {
			s.log.Warn("ignoring invalid config change", "path", changed, "error", err)
			return
		}
		if cfg.Log.Level != logger.GetLevel() {
			logger.SetLevel(cfg.Log.Level)
			s.log.Info("log level updated", "level", cfg.Log.Level)
		}
	})

	go func() {
		if err := w.Run(ctx); err != nil {
			s.log.Error("config watcher stopped", "error", err)
		}
	}()
}
