// Package server assembles the Git Coder API from its configuration
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nsvirk/gitcoderapi/internal/api"
	"github.com/nsvirk/gitcoderapi/internal/api/middleware"
	"github.com/nsvirk/gitcoderapi/internal/config"
	"github.com/nsvirk/gitcoderapi/internal/gitapi"
	"github.com/nsvirk/gitcoderapi/internal/repository"
	"github.com/nsvirk/gitcoderapi/internal/service"
	"github.com/nsvirk/gitcoderapi/pkg/utils/zaplogger"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// Backends are the external resources the server runs on. Nil members are optional.
type Backends struct {
	DB    *gorm.DB
	Redis *redis.Client
	Clock repository.Clock
	// Transport replaces the default round tripper for upstream calls
	Transport http.RoundTripper
}

// Connect opens the backends named by the configuration
func Connect(cfg *config.Config) (Backends, error) {
	var b Backends

	if cfg.PostgresDsn != "" {
		db, err := repository.ConnectPostgres(cfg)
		if err != nil {
			return b, err
		}
		if err := zaplogger.InitLogger(db); err != nil {
			return b, eris.Wrap(err, "failed to initialize logger")
		}
		b.DB = db
		zaplogger.Info("Postgres initialized")
	}

	if cfg.SessionStore == config.SessionStoreRedis {
		client, err := repository.ConnectRedis(cfg)
		if err != nil {
			return b, err
		}
		b.Redis = client
		zaplogger.Info("Redis initialized")
	}

	return b, nil
}

// Server is the assembled HTTP application
type Server struct {
	cfg  *config.Config
	e    *echo.Echo
	cron *service.CronService
}

// New wires the services and routes onto a fresh echo instance
func New(cfg *config.Config, b Backends) (*Server, error) {
	if b.Clock == nil {
		b.Clock = repository.RealClock{}
	}

	store, err := sessionStore(cfg, b)
	if err != nil {
		return nil, err
	}

	var audits *repository.CommitAuditRepository
	if b.DB != nil {
		audits = repository.NewCommitAuditRepository(b.DB)
	}

	github := gitapi.NewFactory(gitapi.Options{
		BaseURL:   cfg.GitHubAPIURL,
		UserAgent: cfg.GitHubUserAgent,
		Timeout:   cfg.UpstreamTimeout,
		Transport: b.Transport,
	})

	sessions := service.NewSessionService(store, github)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	middleware.SetupLoggerMiddleware(e, cfg)
	api.SetupRoutes(e, cfg, api.Services{
		Sessions: sessions,
		Repos:    service.NewRepoService(github),
		Files:    service.NewFileService(github),
		Branches: service.NewBranchService(github),
		Git:      service.NewGitService(github, audits),
		Commits:  service.NewCommitService(github, audits),
	})

	if cfg.StaticDir != "" {
		e.Static("/", cfg.StaticDir)
		zaplogger.Info("serving static files", zaplogger.Fields{"dir": cfg.StaticDir})
	}

	return &Server{
		cfg:  cfg,
		e:    e,
		cron: service.NewCronService(cfg, sessions),
	}, nil
}

func sessionStore(cfg *config.Config, b Backends) (repository.SessionStore, error) {
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		if b.Redis == nil {
			return nil, errors.New("redis session store requires a redis client")
		}
		sealer, err := repository.NewTokenSealer(cfg.SessionSecret)
		if err != nil {
			return nil, err
		}
		return repository.NewRedisSessionStore(b.Redis, sealer, cfg.SessionMaxAge, b.Clock), nil
	default:
		return repository.NewMemorySessionStore(cfg.SessionMaxAge, b.Clock), nil
	}
}

// Handler returns the HTTP handler of the application
func (s *Server) Handler() http.Handler {
	return s.e
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	if err := s.cron.Start(); err != nil {
		return eris.Wrap(err, "failed to start cron service")
	}
	defer s.cron.Stop()

	port := s.cfg.ServerPort
	if port == "" {
		port = "3000"
	}

	errCh := make(chan error, 1)
	go func() {
		zaplogger.Info("SERVER STARTED ON PORT " + port)
		errCh <- s.e.Start(":" + port)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	zaplogger.Info("SERVER SHUTTING DOWN")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.e.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "graceful shutdown failed")
	}
	return nil
}
