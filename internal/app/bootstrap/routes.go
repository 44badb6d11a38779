// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"
	"time"

	adminfeature "github.com/dalemusser/impacthub/internal/app/features/admin"
	authnfeature "github.com/dalemusser/impacthub/internal/app/features/authn"
	dashboardfeature "github.com/dalemusser/impacthub/internal/app/features/dashboard"
	eventsfeature "github.com/dalemusser/impacthub/internal/app/features/events"
	healthfeature "github.com/dalemusser/impacthub/internal/app/features/health"
	impactfeature "github.com/dalemusser/impacthub/internal/app/features/impact"
	ngosfeature "github.com/dalemusser/impacthub/internal/app/features/ngos"
	participationsfeature "github.com/dalemusser/impacthub/internal/app/features/participations"
	reportsfeature "github.com/dalemusser/impacthub/internal/app/features/reports"
	userstore "github.com/dalemusser/impacthub/internal/app/store/users"
	"github.com/dalemusser/impacthub/internal/app/system/apperr"
	"github.com/dalemusser/impacthub/internal/app/system/auth"
	"github.com/dalemusser/impacthub/internal/app/system/metrics"
	"github.com/dalemusser/impacthub/internal/app/system/respond"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed. Every feature router is mounted under
// /api except /health and /metrics.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	svc := deps.svc
	if svc == nil || svc.runner == nil {
		return nil, errors.New("build handler: Startup has not run")
	}
	db := deps.MongoDatabase

	tokens := auth.NewTokens(appCfg.JWTSecret, appCfg.JWTIssuer, appCfg.JWTExpiry)
	mw := auth.NewMiddleware(tokens, userstore.New(db), logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: appCfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         int((12 * time.Hour).Seconds()),
	}))
	if appCfg.MetricsEnabled {
		r.Use(metrics.Middleware)
		r.Handle("/metrics", metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		respond.Error(w, req, logger, apperr.Missing("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		respond.JSON(w, http.StatusMethodNotAllowed, map[string]string{
			"error":   "MethodNotAllowed",
			"message": req.Method + " is not supported on " + req.URL.Path,
		})
	})

	// Health check for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, deps.Redis, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	r.Route("/api", func(api chi.Router) {
		authnHandler := authnfeature.NewHandler(authnfeature.NewService(db, tokens), svc.limiter, svc.audit, logger)
		api.Mount("/auth", authnfeature.Routes(authnHandler, mw))

		ngosHandler := ngosfeature.NewHandler(ngosfeature.NewService(db, svc.cascades), svc.audit, logger)
		api.Mount("/ngos", ngosfeature.Routes(ngosHandler, mw))

		eventsHandler := eventsfeature.NewHandler(eventsfeature.NewService(db, svc.runner, svc.cascades), logger)
		api.Mount("/events", eventsfeature.Routes(eventsHandler, mw))

		partsHandler := participationsfeature.NewHandler(participationsfeature.NewService(db, svc.runner, logger), logger)
		api.Mount("/participations", participationsfeature.Routes(partsHandler, mw))

		reportsHandler := reportsfeature.NewHandler(reportsfeature.NewService(db, svc.runner), svc.audit, logger)
		api.Mount("/verification-reports", reportsfeature.Routes(reportsHandler, mw))

		adminHandler := adminfeature.NewHandler(adminfeature.NewService(db, svc.cascades), svc.audit, logger)
		api.Mount("/admin", adminfeature.Routes(adminHandler, mw))

		// Public
		api.Mount("/dashboard", dashboardfeature.Routes(dashboardfeature.NewHandler(dashboardfeature.NewService(db), logger)))
		api.Mount("/impact", impactfeature.Routes(impactfeature.NewHandler(logger)))
	})

	logger.Info("routes mounted",
		zap.Bool("metrics", appCfg.MetricsEnabled),
		zap.Strings("cors_origins", appCfg.CORSAllowedOrigins))

	return r, nil
}
