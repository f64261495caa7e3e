package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/upmarkt/backend/internal/config"
	"github.com/upmarkt/backend/internal/pkg/metrics"
	authsvc "github.com/upmarkt/backend/internal/services/auth"
	catalogsvc "github.com/upmarkt/backend/internal/services/catalog"
	checkoutsvc "github.com/upmarkt/backend/internal/services/checkout"
	purchasesvc "github.com/upmarkt/backend/internal/services/purchases"
	reconcilesvc "github.com/upmarkt/backend/internal/services/reconcile"
	"github.com/upmarkt/backend/internal/transport/http/handlers"
)

type Dependencies struct {
	AuthService      *authsvc.Service
	CatalogService   *catalogsvc.Service
	CheckoutService  *checkoutsvc.Service
	ReconcileService *reconcilesvc.Service
	PurchaseService  *purchasesvc.Service
	Metrics          *metrics.Metrics
	Logger           *zap.Logger
	Config           config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	authHandler := handlers.NewAuthHandler(deps.AuthService)
	packageHandler := handlers.NewPackageHandler(deps.CatalogService)
	checkoutHandler := handlers.NewCheckoutHandler(deps.CheckoutService, deps.Metrics, deps.Logger)
	webhookHandler := handlers.NewWebhookHandler(
		deps.ReconcileService,
		deps.Config.Payments.WebhookSecret,
		deps.Config.Payments.SignatureSkew,
		deps.Metrics,
		deps.Logger,
	)
	purchaseHandler := handlers.NewPurchaseHandler(deps.PurchaseService)
	authMW := AuthMiddleware(deps.AuthService, deps.Logger)

	r.Get("/healthz", healthHandler.Get)
	if deps.Metrics != nil {
		r.Method("GET", "/metrics", deps.Metrics.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		r.With(authMW).Post("/logout", authHandler.Logout)
	})

	r.Get("/packages", packageHandler.List)
	r.With(authMW).Post("/checkout", checkoutHandler.Create)
	r.Post("/payments/webhook", webhookHandler.Handle)
	r.With(authMW).Get("/purchases", purchaseHandler.History)
	r.With(authMW).Get("/purchases/dashboard", purchaseHandler.Dashboard)
}
