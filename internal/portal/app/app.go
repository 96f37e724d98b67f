package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	httpapi "github.com/gymslim/portal/internal/portal/http"
	"github.com/gymslim/portal/internal/portal/service"
	"github.com/gymslim/portal/internal/portal/session"
	"github.com/gymslim/portal/internal/portal/store"
	"github.com/gymslim/portal/internal/portal/store/drivers/sqlite"
	"github.com/gymslim/portal/pkg/cryptox"
	"github.com/gymslim/portal/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application wires the portal together: storage, session backend,
// services, and the HTTP server.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db          store.Store
	sessions    *session.Manager
	redisClient *redis.Client

	authService      *service.AuthService
	mfaService       *service.MFAService
	deviceService    *service.TrustedDeviceService
	settingsService  *service.SettingsService
	userService      *service.UserService
	bootstrapService *service.BootstrapService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized. Startup
// fails hard on a missing encryption key, an unreachable database, or a
// failed migration, bootstrap, or settings load.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "gym-portal",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	key, err := cfg.DecodeMFAKey()
	if err != nil {
		return nil, err
	}
	cipher, err := cryptox.NewSecretCipher(key)
	if err != nil {
		return nil, fmt.Errorf("initialize secret cipher: %w", err)
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initSessions(); err != nil {
		return nil, err
	}
	app.initServices(cipher)

	ctx := slogx.WithContext(context.Background(), app.logger)
	if err := app.bootstrapService.Run(ctx); err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	if err := app.settingsService.Load(ctx); err != nil {
		return nil, err
	}

	app.initHTTP()
	return app, nil
}

func (app *Application) initDatabase() error {
	db, err := sqlite.NewStore(app.cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("apply migrations: %w", err)
	}
	app.db = db
	app.logger.Info("database ready", "file", app.cfg.DatabaseFile)
	return nil
}

func (app *Application) initSessions() error {
	var backing session.Store
	switch app.cfg.SessionBackend {
	case "memory", "":
		backing = session.NewMemoryStore()
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     app.cfg.RedisAddr,
			Password: app.cfg.RedisPassword,
			DB:       app.cfg.RedisDB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return fmt.Errorf("connect to redis at %s: %w", app.cfg.RedisAddr, err)
		}
		app.redisClient = client
		backing = session.NewRedisStore(client)
	default:
		return fmt.Errorf("unknown session backend %q (want memory or redis)", app.cfg.SessionBackend)
	}

	app.sessions = &session.Manager{
		Store:  backing,
		TTL:    app.cfg.SessionTTL,
		Secure: app.cfg.Env == "prod",
	}
	app.logger.Info("session store ready", "backend", app.cfg.SessionBackend)
	return nil
}

func (app *Application) initServices(cipher *cryptox.SecretCipher) {
	app.settingsService = &service.SettingsService{Store: app.db}
	app.deviceService = &service.TrustedDeviceService{Store: app.db, Settings: app.settingsService}
	app.authService = &service.AuthService{Store: app.db, Cipher: cipher, Devices: app.deviceService}
	app.mfaService = &service.MFAService{
		Store:   app.db,
		Cipher:  cipher,
		Devices: app.deviceService,
		Issuer:  app.cfg.MFAIssuer,
	}
	app.userService = &service.UserService{Store: app.db}
	app.bootstrapService = &service.BootstrapService{
		Store:         app.db,
		AdminUsername: app.cfg.AdminUsername,
		AdminPassword: app.cfg.AdminPassword,
		AdminName:     app.cfg.AdminName,
	}
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		BuildVersion,
		app.db,
		app.sessions,
		app.cfg.Env == "prod",
		app.logger,
	)
	router.AuthService = app.authService
	router.MFAService = app.mfaService
	router.DeviceService = app.deviceService
	router.SettingsService = app.settingsService
	router.UserService = app.userService
	router.ApplyRoutes()

	app.router = router
	app.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.cfg.Port),
		Handler: router,
	}
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.logger.Info("portal starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}
	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down portal...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if app.redisClient != nil {
		if err := app.redisClient.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
	}

	app.logger.Info("portal stopped")
	return nil
}
