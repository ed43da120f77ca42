package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/attendmesh/internal/core/service"
	"github.com/yndnr/attendmesh/internal/server/httpserver/handler"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Handler serves every route; see handler.New.
	Handler *handler.Handler

	// AuthService resolves bearer tokens.
	AuthService *service.AuthService

	// Logger for request logging.
	Logger *slog.Logger

	// Requests receives per-request metrics (optional).
	Requests RequestObserver

	// MetricsAuthRequired restricts /metrics to staff tokens.
	MetricsAuthRequired bool

	// CORSAllowedOrigins is the list of allowed CORS origins (empty = allow all).
	CORSAllowedOrigins []string

	// GlobalRateLimit is the per-IP rate limit (requests/second, 0 = off).
	GlobalRateLimit int

	// EnableAudit enables request logging and metrics.
	EnableAudit bool
}

// NewRouter creates and configures the HTTP router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	h := cfg.Handler

	// Order: Recover -> RequestID -> CORS -> RateLimit -> Audit -> (auth) -> Handler
	base := []Middleware{Recover(log), RequestID(log), CORS(cfg.CORSAllowedOrigins)}
	if cfg.GlobalRateLimit > 0 {
		base = append(base, RateLimit(cfg.GlobalRateLimit))
	}
	if cfg.EnableAudit {
		base = append(base, Audit(log, cfg.Requests))
	}
	with := func(extra ...Middleware) http.Handler {
		mws := append(append([]Middleware{}, base...), extra...)
		return Chain(h, mws...)
	}

	public := with()
	user := with(Auth(cfg.AuthService))
	staff := with(Auth(cfg.AuthService), StaffAuth(cfg.AuthService))
	mux := http.NewServeMux()

	// Health endpoints - no authentication required
	mux.Handle(handler.RouteHealth, Chain(h, Recover(log), RequestID(log)))
	mux.Handle(handler.RouteReady, Chain(h, Recover(log), RequestID(log)))

	// Metrics endpoint - configurable authentication
	mux.Handle(handler.RouteMetrics, Chain(h, Recover(log), RequestID(log), MetricsAuth(cfg.AuthService, cfg.MetricsAuthRequired)))

	// Auth
	mux.Handle(handler.RouteLogin, public)
	mux.Handle(handler.RouteLogout, user)
	mux.Handle(handler.RouteMe, user)

	// Attendance
	mux.Handle(handler.RouteStart, user)
	mux.Handle(handler.RouteBreakToggle, user)
	mux.Handle(handler.RouteRevive, user)
	mux.Handle(handler.RouteStatus, user)
	mux.Handle(handler.RoutePolicy, public)

	// Unload beacons send the token in the body.
	mux.Handle(handler.RouteEnd, with(OptionalAuth(cfg.AuthService)))

	// Staff endpoints
	for _, route := range []string{
		handler.RouteFeed,
		handler.RouteExportToday,
		handler.RouteExportDay,
		handler.RouteSaveToday,
		handler.RouteSaveDay,
		handler.RouteEmployees,
		handler.RouteEmployeeTrack,
		handler.RouteAdminCreate,
		handler.RouteAdminPromote,
		handler.RouteAdminDelete,
		handler.RouteAdminFlush,
		handler.RouteAdminFlushAll,
	} {
		mux.Handle(route, staff)
	}

	return mux
}

// DefaultRouterConfig returns default router configuration.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		GlobalRateLimit: 100,
		EnableAudit:     true,
	}
}
