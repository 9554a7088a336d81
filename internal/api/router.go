package api

import (
	"log/slog"
	"net/http"
	"time"

	"greenloan-engine/internal/api/handler"
	mw "greenloan-engine/internal/api/middleware"
	"greenloan-engine/internal/config"
	"greenloan-engine/internal/domain/applicant"
	"greenloan-engine/internal/domain/application"
	"greenloan-engine/internal/domain/catalog"
	"greenloan-engine/internal/domain/credit"
	"greenloan-engine/internal/domain/loan"
	"greenloan-engine/internal/domain/payment"

	_ "greenloan-engine/docs"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/traceid"
	"github.com/redis/go-redis/v9"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

// Services bundles the domain services the router exposes.
type Services struct {
	Catalog     catalog.CatalogService
	Applicant   applicant.ApplicantService
	Application application.ApplicationService
	Loan        loan.LoanService
	Payment     payment.PaymentService
	Credit      credit.CreditService
}

func SetupRouter(svcs Services, cfg *config.Config, redisClient *redis.Client, logger *slog.Logger) *chi.Mux {
	router := chi.NewRouter()

	setupMiddleware(router, cfg, redisClient, logger)
	setupMetricsEndpoint(router, cfg, logger)
	setupAuthRoutes(router, cfg, logger)
	setupApplicantRoutes(router, cfg, svcs, logger)
	setupCatalogRoutes(router, cfg, svcs, logger)
	setupApplicationRoutes(router, cfg, svcs, logger)
	setupLoanRoutes(router, cfg, svcs, logger)
	setupPaymentRoutes(router, cfg, svcs, logger)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	setupSwaggerEndpoint(router, logger)

	return router
}

func setupMiddleware(router *chi.Mux, cfg *config.Config, redisClient *redis.Client, logger *slog.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(traceid.Middleware)
	router.Use(mw.StructuredLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(mw.NewRateLimiterMiddleware(cfg.Server.RateLimit, redisClient, logger).Middleware)
	router.Use(mw.MetricsMiddleware())
}

func setupMetricsEndpoint(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	metricsPath := cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	logger.Info("Setting up Prometheus metrics endpoint", "path", metricsPath)
	router.Handle(metricsPath, promhttp.Handler())
}

func setupSwaggerEndpoint(router *chi.Mux, logger *slog.Logger) {
	logger.Info("Setting up Swagger UI endpoint", "path", "/swagger/")
	router.Get("/swagger/*", httpSwagger.WrapHandler)
	router.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
	})
}

func setupAuthRoutes(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	authHandler := handler.NewAuthHandler(*cfg, logger)
	router.Route("/auth", func(r chi.Router) {
		r.Post("/token", authHandler.GenerateBearerToken)
	})
}

func setupApplicantRoutes(router *chi.Mux, cfg *config.Config, svcs Services, logger *slog.Logger) {
	h := handler.NewApplicantHandler(svcs.Applicant, svcs.Credit, logger)

	router.Route("/applicants", func(r chi.Router) {
		r.Post("/", h.CreateApplicant)
		r.Group(func(r chi.Router) {
			r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
			r.Route("/{applicantID}", func(r chi.Router) {
				r.Get("/", h.GetApplicant)
				r.Get("/credit-score", h.GetCreditScore)
				r.Post("/kyc/submit", h.SubmitKYC)
				r.With(mw.RequireOfficer(logger)).Post("/kyc/review", h.ReviewKYC)
			})
		})
	})
}

func setupCatalogRoutes(router *chi.Mux, cfg *config.Config, svcs Services, logger *slog.Logger) {
	h := handler.NewCatalogHandler(svcs.Catalog, logger)

	router.Route("/loan-types", func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Get("/", h.ListLoanTypes)
		r.Get("/{loanTypeID}", h.GetLoanType)
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireOfficer(logger))
			r.Post("/", h.CreateLoanType)
			r.Delete("/{loanTypeID}", h.DeactivateLoanType)
		})
	})
}

func setupApplicationRoutes(router *chi.Mux, cfg *config.Config, svcs Services, logger *slog.Logger) {
	h := handler.NewApplicationHandler(svcs.Application, logger)

	router.Route("/applications", func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Post("/", h.SubmitApplication)
		r.Get("/", h.ListMyApplications)
		r.Route("/{applicationID}", func(r chi.Router) {
			r.Get("/", h.GetApplication)
			r.Get("/history", h.GetStatusHistory)
			r.Get("/documents", h.ListDocuments)
			r.Post("/documents", h.UploadDocument)
			r.With(mw.RequireOfficer(logger)).Post("/documents/request", h.RequestDocuments)
			r.Post("/transition", h.Transition)
		})
	})

	router.Route("/documents", func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.With(mw.RequireOfficer(logger)).Post("/{documentID}/review", h.ReviewDocument)
	})
}

func setupLoanRoutes(router *chi.Mux, cfg *config.Config, svcs Services, logger *slog.Logger) {
	h := handler.NewLoanHandler(svcs.Loan, logger)

	router.Route("/loans", func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Get("/", h.ListMyLoans)
		r.Get("/{loanID}", h.GetLoan)
		r.Get("/{loanID}/schedule", h.GetSchedule)
		r.Get("/{loanID}/outstanding", h.GetOutstanding)
	})
}

func setupPaymentRoutes(router *chi.Mux, cfg *config.Config, svcs Services, logger *slog.Logger) {
	h := handler.NewPaymentHandler(svcs.Payment, cfg.Gateway, logger)

	router.Route("/payments", func(r chi.Router) {
		// The gateway callback is called by the provider, not by a portal user.
		r.Post("/gateway/callback", h.GatewayCallback)
		r.Group(func(r chi.Router) {
			r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
			r.Post("/", h.ConfirmPayment)
			r.Post("/gateway", h.InitiateGatewayPayment)
		})
	})

	router.Route("/repayments", func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Get("/{repaymentID}/payments", h.ListPaymentsByRepayment)
	})
}
