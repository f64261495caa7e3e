package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/upmarkt/backend/internal/config"
	"github.com/upmarkt/backend/internal/pkg/metrics"
	pgrepo "github.com/upmarkt/backend/internal/repo/postgres"
	redrepo "github.com/upmarkt/backend/internal/repo/redis"
	authsvc "github.com/upmarkt/backend/internal/services/auth"
	catalogsvc "github.com/upmarkt/backend/internal/services/catalog"
	checkoutsvc "github.com/upmarkt/backend/internal/services/checkout"
	lifecyclesvc "github.com/upmarkt/backend/internal/services/lifecycle"
	purchasesvc "github.com/upmarkt/backend/internal/services/purchases"
	reconcilesvc "github.com/upmarkt/backend/internal/services/reconcile"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	sessionRepo := redrepo.NewSessionRepo(redisClient)
	catalogCache := redrepo.NewCatalogCacheRepo(redisClient, cfg.Catalog.CacheTTL)
	userRepo := pgrepo.NewUserRepo(pool)
	packageRepo := pgrepo.NewPackageRepo(pool)
	purchaseRepo := pgrepo.NewPurchaseRepo(pool)

	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)
	authService := authsvc.NewService(jwtManager, sessionRepo, userRepo, cfg.Auth.RefreshTTL)
	catalogService := catalogsvc.NewService(packageRepo)
	catalogService.AttachCache(catalogCache)
	checkoutService := checkoutsvc.NewService(purchaseRepo, packageRepo, userRepo)
	lifecycleManager := lifecyclesvc.NewManager(purchaseRepo)
	reconcileService := reconcilesvc.NewService(purchaseRepo, lifecycleManager)
	purchaseService := purchasesvc.NewService(purchaseRepo)
	appMetrics := metrics.New()

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	RegisterRoutes(r, Dependencies{
		AuthService:      authService,
		CatalogService:   catalogService,
		CheckoutService:  checkoutService,
		ReconcileService: reconcileService,
		PurchaseService:  purchaseService,
		Metrics:          appMetrics,
		Logger:           log,
		Config:           cfg,
	})

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
