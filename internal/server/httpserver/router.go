package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/tokpool/internal/server/httpserver/handler"
	"github.com/yndnr/tokpool/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Handler serves all application routes.
	Handler *handler.Handler

	// Metrics enables request metrics and GET /metrics when set.
	Metrics *metric.Registry

	// Logger for request logging.
	Logger *slog.Logger

	// AdminToken guards /admin/v1/* (empty = no token check).
	AdminToken string

	// AdminAllowList is the IP/CIDR allowlist for admin API (empty = no restriction).
	AdminAllowList []string

	// MetricsAuthRequired makes /metrics require the admin token.
	MetricsAuthRequired bool

	// CORSAllowedOrigins is the list of allowed CORS origins (empty = allow all).
	CORSAllowedOrigins []string

	// GlobalRateLimit is the rate limit per client IP (requests/second, 0 = off).
	GlobalRateLimit int

	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64

	// EnableAudit enables audit logging for all requests.
	EnableAudit bool
}

// DefaultRouterConfig returns default router configuration.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		AdminAllowList:  []string{"127.0.0.1", "::1"},
		GlobalRateLimit: 1000,
		MaxBodyBytes:    handler.DefaultMaxBodyBytes,
		EnableAudit:     true,
	}
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	h := cfg.Handler

	// Order: Recover -> RequestID -> Metrics -> CORS -> RateLimit -> BodyLimit -> Audit -> Handler
	common := []Middleware{
		Recover(log),
		RequestID(),
		Metrics(cfg.Metrics),
		CORS(cfg.CORSAllowedOrigins),
		RateLimit(cfg.GlobalRateLimit),
		BodyLimit(cfg.MaxBodyBytes),
	}
	if cfg.EnableAudit {
		common = append(common, Audit(log))
	}

	mux := http.NewServeMux()

	// Probes skip rate limiting and audit.
	probe := Chain(h, Recover(log), RequestID())
	mux.Handle("GET /health", probe)
	mux.Handle("GET /ready", probe)

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", Chain(cfg.Metrics.Handler(),
			Recover(log),
			MetricsAuth(cfg.AdminToken, cfg.MetricsAuthRequired),
		))
	}

	business := Chain(h, common...)
	mux.Handle("GET /{$}", business)
	mux.Handle("POST /save-token", business)
	mux.Handle("GET /tokens", business)
	mux.Handle("OPTIONS /", business)

	adminMiddlewares := append([]Middleware{}, common...)
	adminMiddlewares = append(adminMiddlewares,
		NetworkACL(&NetworkACLConfig{AllowList: cfg.AdminAllowList, Logger: log}),
		AdminAuth(cfg.AdminToken),
	)
	admin := Chain(h, adminMiddlewares...)
	mux.Handle("GET /admin/v1/status/summary", admin)
	mux.Handle("POST /admin/v1/gc/trigger", admin)

	return mux
}
