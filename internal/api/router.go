package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ecmcloud/ecm/internal/api/handler"
	"github.com/ecmcloud/ecm/internal/api/middleware"
	"github.com/ecmcloud/ecm/internal/auth"
	"github.com/ecmcloud/ecm/internal/console"
	"github.com/ecmcloud/ecm/internal/ledger"
	"github.com/ecmcloud/ecm/internal/plan"
	"github.com/ecmcloud/ecm/internal/tenant"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Logger      *zap.Logger
	DBPinger    handler.DBPinger
	Version     string
	Auth        *auth.Service
	Console     *console.Service
	Ledger      *ledger.Service
	Tenants     *tenant.Manager
	Plans       *plan.Catalog
	CORSOrigins []string
	LoginLimit  middleware.RateLimitConfig
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable it only behind a reverse proxy that overwrites those headers.
	TrustProxy bool
}

// NewRouter creates and configures a Chi router with all middleware and routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	if deps.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(deps.Logger))
	r.Use(middleware.Recovery)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	healthHandler := handler.NewHealthHandler(deps.DBPinger, deps.Tenants, deps.Version)
	r.Get("/health", healthHandler.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	r.With(middleware.OptionalUser(deps.Auth)).Get("/", healthHandler.Info)

	authHandler := handler.NewAuthHandler(deps.Auth, deps.Console)
	userHandler := handler.NewUserHandler(deps.Auth)
	ledgerHandler := handler.NewLedgerHandler(deps.Ledger)
	consoleHandler := handler.NewConsoleHandler(deps.Console, deps.Plans)

	loginLimit := middleware.RateLimiter(deps.LoginLimit)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(loginLimit).Post("/login", authHandler.Login)
			r.With(loginLimit).Post("/company-register", authHandler.Register)
			r.Get("/verify", authHandler.Verify)
			r.With(middleware.RequireUser(deps.Auth)).Get("/me", authHandler.Me)
		})

		r.With(loginLimit).Post("/super/login", authHandler.OperatorLogin)

		// Tenant user routes.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser(deps.Auth))

			r.Put("/users/me/password", authHandler.ChangePassword)
			r.Route("/users", func(r chi.Router) {
				r.Use(middleware.RequireAdmin())
				r.Get("/", userHandler.List)
				r.Post("/", userHandler.Create)
				r.Put("/{id}", userHandler.Update)
				r.Delete("/{id}", userHandler.Delete)
			})

			r.Route("/projects", func(r chi.Router) {
				r.With(middleware.RequirePermission(auth.PermViewProjects)).Get("/", ledgerHandler.ListProjects)
				r.Post("/", ledgerHandler.CreateProject)
				r.With(middleware.RequireAdmin()).Get("/by-user/{userId}", ledgerHandler.ListProjectsByUser)
				r.With(middleware.RequirePermission(auth.PermViewProjects)).Get("/{id}", ledgerHandler.GetProject)
				r.Put("/{id}", ledgerHandler.UpdateProject)
				r.Delete("/{id}", ledgerHandler.DeleteProject)
			})

			r.Route("/costs", func(r chi.Router) {
				r.With(middleware.RequirePermission(auth.PermViewCosts)).Get("/", ledgerHandler.ListCosts)
				r.Post("/", ledgerHandler.CreateCost)
				r.Put("/{id}", ledgerHandler.UpdateCost)
				r.Delete("/{id}", ledgerHandler.DeleteCost)
			})

			r.Route("/vendors", func(r chi.Router) {
				r.With(middleware.RequirePermission(auth.PermViewPartners)).Get("/", ledgerHandler.ListVendors)
				r.Post("/", ledgerHandler.CreateVendor)
				r.Put("/{id}", ledgerHandler.UpdateVendor)
				r.Delete("/{id}", ledgerHandler.DeleteVendor)
			})

			r.Route("/customers", func(r chi.Router) {
				r.With(middleware.RequirePermission(auth.PermViewPartners)).Get("/", ledgerHandler.ListCustomers)
				r.Post("/", ledgerHandler.CreateCustomer)
				r.Put("/{id}", ledgerHandler.UpdateCustomer)
				r.Delete("/{id}", ledgerHandler.DeleteCustomer)
			})

			r.Route("/categories", func(r chi.Router) {
				r.Get("/", ledgerHandler.ListCategories)
				r.Post("/", ledgerHandler.CreateCategory)
				r.Put("/{id}", ledgerHandler.UpdateCategory)
				r.Delete("/{id}", ledgerHandler.DeleteCategory)
			})

			r.Route("/settings", func(r chi.Router) {
				r.Get("/", ledgerHandler.ListSettings)
				r.Get("/fiscal", ledgerHandler.GetFiscal)
				r.With(middleware.RequireAdmin()).Put("/fiscal", ledgerHandler.PutFiscal)
				r.Get("/{key}", ledgerHandler.GetSetting)
				r.With(middleware.RequireAdmin()).Put("/{key}", ledgerHandler.PutSetting)
			})

			r.With(middleware.RequirePermission(auth.PermViewDashboard)).Get("/dashboard/summary", ledgerHandler.Summary)
		})

		// Operator routes.
		r.Route("/super", func(r chi.Router) {
			r.Use(middleware.RequireOperator(deps.Auth))

			r.Get("/companies", consoleHandler.ListCompanies)
			r.Post("/companies", consoleHandler.CreateCompany)
			r.Get("/companies/{id}/users", consoleHandler.ListCompanyUsers)
			r.Put("/companies/{id}/toggle-active", consoleHandler.ToggleActive)
			r.Put("/companies/{id}/plan", consoleHandler.ChangePlan)
			r.Delete("/companies/{id}", consoleHandler.DeleteCompany)
			r.Post("/companies/{id}/backup", consoleHandler.BackupCompany)
			r.Get("/backups", consoleHandler.ListBackups)
			r.Delete("/backups/{companyId}/{filename}", consoleHandler.DeleteBackup)
			r.Get("/stats", consoleHandler.Stats)
			r.Post("/users/{id}/reset-password", consoleHandler.ResetPassword)
		})
	})

	return r
}
