package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"argus/api"
	"argus/config"
	"argus/storage"
	"argus/upstream"
)

// App represents the Argus dashboard application with all its components.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	Mongo     *storage.MongoDB
	Users     storage.UserStorage
	Forwarder *upstream.Forwarder
	APIServer *api.API

	shutdownCh chan struct{}
}

// NewApp creates a new application instance and initializes all components.
func NewApp(ctx context.Context) (*App, error) {
	app := &App{
		shutdownCh: make(chan struct{}),
	}

	logger, sugar, err := InitLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger = logger
	app.Sugar = sugar

	sugar.Info("Argus dashboard starting...")

	cfg, err := InitConfig(sugar)
	if err != nil {
		return nil, err
	}
	app.Config = cfg

	mongo, err := storage.AcquireMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Database, cfg.MongoDB.MaxPoolSize, sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	app.Mongo = mongo

	users, err := storage.NewMongoUserStore(ctx, mongo, sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize user store: %w", err)
	}
	app.Users = users

	if _, err := RunFirstRunSetup(ctx, users, cfg.Auth.BcryptCost, sugar); err != nil {
		return nil, err
	}

	app.Forwarder = upstream.NewForwarder(cfg.Upstream.BaseURL, cfg.Upstream.APIKey, cfg.Upstream.Timeout, sugar)

	apiServer, err := api.NewAPI(users, app.Forwarder, cfg, sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize API server: %w", err)
	}
	apiServer.SetMongoPing(mongo.Ping)
	app.APIServer = apiServer

	return app, nil
}

// Start starts the HTTP server. It returns once the listener has been
// launched; fatal listen errors are reported on the returned channel.
func (a *App) Start() <-chan error {
	errCh := make(chan error, 1)
	addr := fmt.Sprintf(":%d", a.Config.Server.Port)

	go func() {
		var err error
		if a.Config.Server.TLS {
			a.Sugar.Infow("API server listening (TLS)", "addr", addr)
			err = a.APIServer.StartTLS(addr, a.Config.Server.CertFile, a.Config.Server.KeyFile)
		} else {
			a.Sugar.Infow("API server listening", "addr", addr)
			err = a.APIServer.Start(addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh
}

// WaitForShutdown blocks until a shutdown signal or fatal server error.
func (a *App) WaitForShutdown(errCh <-chan error) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-c:
		a.Sugar.Infow("Shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			a.Sugar.Errorw("API server failed", "error", err)
		}
	}
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown() {
	a.Sugar.Info("Shutting down...")
	close(a.shutdownCh)

	// Drain in-flight requests before dropping the Mongo pool they may use.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if a.APIServer != nil {
		if err := a.APIServer.Stop(ctx); err != nil {
			a.Sugar.Errorw("Failed to stop API server", "error", err)
		}
	}

	if a.Mongo != nil {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := a.Mongo.Close(closeCtx); err != nil {
			a.Sugar.Errorw("Failed to close MongoDB connection", "error", err)
		}
	}

	a.Sugar.Info("Shutdown complete")
	_ = a.Logger.Sync()
}
