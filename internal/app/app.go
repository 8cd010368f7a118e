// Package app wires configuration, storage, the gateway backend, the
// resolver and the HTTP server into a runnable application.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrijs2005/ucenter-gateway/internal/config"
	"github.com/dmitrijs2005/ucenter-gateway/internal/gateway"
	"github.com/dmitrijs2005/ucenter-gateway/internal/gateway/local"
	"github.com/dmitrijs2005/ucenter-gateway/internal/gateway/remote"
	"github.com/dmitrijs2005/ucenter-gateway/internal/httpapi"
	"github.com/dmitrijs2005/ucenter-gateway/internal/identity"
	"github.com/dmitrijs2005/ucenter-gateway/internal/logging"
	"github.com/dmitrijs2005/ucenter-gateway/internal/metrics"
	"github.com/dmitrijs2005/ucenter-gateway/internal/repositories/repomanager"
	"github.com/dmitrijs2005/ucenter-gateway/internal/session"
)

const shutdownTimeout = 5 * time.Second

// Seams for tests.
var (
	openDB     = repomanager.Open
	newManager = repomanager.NewPostgresRepositoryManager
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	gateway  gateway.Gateway
	remote   *remote.Gateway
	issuer   *session.Issuer
	resolver *identity.Resolver
	metrics  *metrics.Metrics
	handler  http.Handler
}

// NewApp validates c and builds every component. Logs go to logOut. When a
// database DSN is set the schema is migrated before anything else uses it.
func NewApp(ctx context.Context, c *config.Config, logOut io.Writer) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logOut == nil {
		logOut = os.Stdout
	}

	app := &App{
		config:  c,
		logger:  logging.New(c.LogFormat, c.LogLevel, logOut).With("component", "ucenter-gateway"),
		metrics: metrics.New(prometheus.NewRegistry()),
	}

	var mgr repomanager.RepositoryManager
	if c.DatabaseDSN != "" {
		db, err := openDB(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		app.db = db
		mgr = newManager()
		if err := mgr.RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}

	switch c.Mode {
	case config.ModeLocal:
		app.gateway = local.New(mgr.Accounts(app.db), local.WithLogger(app.logger))
	default:
		rg, err := remote.New(remote.Config{
			BaseURL: c.BaseURL,
			AppID:   c.AppID,
			Secret:  c.AppSecret,
			Timeout: c.HTTPTimeout,
		}, remote.WithLogger(app.logger), remote.WithMetrics(app.metrics))
		if err != nil {
			app.closeDB()
			return nil, fmt.Errorf("remote gateway: %w", err)
		}
		app.gateway, app.remote = rg, rg
	}

	issuer, err := session.NewIssuer(session.Config{
		Secret:   []byte(c.SessionSecret),
		TTL:      c.SessionTTL,
		Issuer:   c.SessionIssuer,
		Audience: c.SessionAudience,
	})
	if err != nil {
		app.closeDB()
		return nil, err
	}
	app.issuer = issuer

	opts := []identity.Option{
		identity.WithIssuer(issuer),
		identity.WithEmailDomain(c.EmailDomain),
		identity.WithSystemUID(c.SystemUID),
		identity.WithLogger(app.logger),
		identity.WithMetrics(app.metrics),
	}
	if c.BindingsEnabled {
		opts = append(opts, identity.WithBindingStore(mgr.Bindings(app.db)))
	}
	app.resolver = identity.New(app.gateway, opts...)

	app.handler = httpapi.NewRouter(httpapi.NewHandler(app.resolver, issuer,
		httpapi.WithLogger(app.logger),
		httpapi.WithMetrics(app.metrics),
	))
	return app, nil
}

func (app *App) Resolver() *identity.Resolver { return app.resolver }

func (app *App) Issuer() *session.Issuer { return app.issuer }

func (app *App) Gateway() gateway.Gateway { return app.gateway }

// Remote returns the remote gateway, or nil in local mode.
func (app *App) Remote() *remote.Gateway { return app.remote }

func (app *App) Logger() logging.Logger { return app.logger }

func (app *App) Handler() http.Handler { return app.handler }

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves HTTP on the configured address until ctx is cancelled or a
// termination signal arrives, then shuts down and releases resources.
func (app *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", app.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", app.config.ListenAddr, err)
	}
	return app.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (app *App) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	app.initSignalHandler(cancelFunc)

	srv := &http.Server{
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	app.logger.Info(ctx, "starting app", "addr", ln.Addr().String(), "mode", app.config.Mode)

	var (
		wg       sync.WaitGroup
		serveErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
			app.logger.Error(ctx, "http server failed", "error", err)
			cancelFunc()
		}
	}()

	<-ctx.Done()
	app.logger.Info(context.Background(), "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	shutdownErr := srv.Shutdown(shutdownCtx)
	wg.Wait()

	return errors.Join(serveErr, shutdownErr, app.Close())
}

// Close drops the bearer token and closes the database.
func (app *App) Close() error {
	var err error
	if app.remote != nil {
		err = app.remote.Close()
	}
	return errors.Join(err, app.closeDB())
}

func (app *App) closeDB() error {
	if app.db == nil {
		return nil
	}
	db := app.db
	app.db = nil
	return db.Close()
}
