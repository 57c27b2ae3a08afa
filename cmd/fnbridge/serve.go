package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cryguy/fnbridge"
	"github.com/cryguy/fnbridge/internal/config"
	"github.com/cryguy/fnbridge/internal/logging"
	"github.com/cryguy/fnbridge/internal/metrics"
	"github.com/cryguy/fnbridge/internal/store"
	"github.com/cryguy/fnbridge/internal/trigger/httptrigger"
	"github.com/cryguy/fnbridge/internal/trigger/wstrigger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a function over HTTP",
	Long: `Load the configured function into a worker pool and serve it.

Endpoints:
  ANY  /*        Invoke the function (request -> event)
  GET  /ws       WebSocket trigger, when [server] websocket = true
  GET  /healthz  Health check
  GET  /metrics  Prometheus metrics

The config path comes from --config or $FNBRIDGE_CONFIG.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "Path to the TOML config file")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	app := fx.New(serveModule(cfg))
	if err := app.Err(); err != nil {
		return err
	}
	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-app.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return app.Stop(stopCtx)
}

// serveModule wires config -> logger -> metrics -> pool -> router -> server.
func serveModule(cfg config.Config) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		fx.Provide(
			provideLogger,
			provideMetrics,
			providePool,
			provideRouter,
		),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
		fx.Invoke(registerHooks),
	)
}

func provideLogger(cfg config.Config) (*zap.Logger, error) {
	return logging.NewLog(logging.Options{
		Dir:        cfg.Log.Dir,
		File:       cfg.Log.File,
		Level:      cfg.Log.Level,
		Console:    cfg.Log.Console,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
}

type metricsOut struct {
	fx.Out
	Collector *metrics.Collector
	Handler   http.Handler `name:"metrics"`
}

func provideMetrics() (metricsOut, error) {
	reg := prometheus.NewRegistry()
	col, err := metrics.NewCollector(reg)
	if err != nil {
		return metricsOut{}, err
	}
	return metricsOut{Collector: col, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}, nil
}

func providePool(lc fx.Lifecycle, cfg config.Config, zl *zap.Logger, col *metrics.Collector) (*fnbridge.Pool, error) {
	fn := cfg.Function
	source, handler, loader := "", fn.Handler, fn.Loader
	filename := ""
	if fn.Source != "" {
		b, err := os.ReadFile(fn.Source)
		if err != nil {
			return nil, fmt.Errorf("reading function source: %w", err)
		}
		source, filename = string(b), filepath.Base(fn.Source)
	} else {
		s, err := store.Open(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		stored, err := s.Get(fn.Name)
		s.Close()
		if err != nil {
			return nil, err
		}
		source, handler = stored.Source, stored.Handler
		if stored.Loader != "" {
			loader = stored.Loader
		}
	}

	mode, _ := fnbridge.ParseLockMode(fn.LockMode)
	name := fn.Name
	if name == "" {
		name = "function"
	}
	pool, err := fnbridge.NewPool(fnbridge.Config{
		Name:          name,
		LockMode:      mode,
		MemoryLimitMB: fn.MemoryLimitMB,
		Loader:        loader,
		Filename:      filename,
		Logger:        logging.New(zl).Named("worker"),
		Metrics:       col,
	}, fn.PoolSize, source, handler)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})
	return pool, nil
}

type routerIn struct {
	fx.In
	Config  config.Config
	Logger  *zap.Logger
	Pool    *fnbridge.Pool
	Metrics http.Handler `name:"metrics"`
}

type routerOut struct {
	fx.Out
	Handler http.Handler `name:"app"`
}

func provideRouter(in routerIn) routerOut {
	opts := httptrigger.Options{
		Logger:    in.Logger.Named("http"),
		Metrics:   in.Metrics,
		JWTSecret: in.Config.Auth.JWTSecret,
		Issuer:    in.Config.Auth.Issuer,
		Compress:  in.Config.Server.Compress,
	}
	if in.Config.Server.WebSocket {
		opts.WebSocket = wstrigger.New(in.Pool, in.Logger.Named("ws"))
	}
	return routerOut{Handler: httptrigger.NewRouter(in.Pool, opts)}
}

type serverIn struct {
	fx.In
	Config     config.Config
	Logger     *zap.Logger
	Handler    http.Handler `name:"app"`
	Shutdowner fx.Shutdowner
}

func registerHooks(lc fx.Lifecycle, in serverIn) {
	s := in.Config.Server
	srv := httptrigger.NewServer(s.Addr, in.Handler, s.H2C,
		time.Duration(s.ReadTimeoutMS)*time.Millisecond,
		time.Duration(s.WriteTimeoutMS)*time.Millisecond)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			in.Logger.Info("server starting",
				zap.String("addr", ln.Addr().String()),
				zap.Bool("h2c", s.H2C),
				zap.String("engine", fnbridge.Backend))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					in.Logger.Error("server failed", zap.Error(err))
					_ = in.Shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			in.Logger.Info("server stopping")
			return srv.Shutdown(ctx)
		},
	})
}
