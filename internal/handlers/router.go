package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/RANAPRINCE06/Watch/internal/platform/httpx"
)

// RouteRegistrar adds one group's routes to r.
type RouteRegistrar func(r chi.Router)

// routeGroups lists the mounted groups in registration order.
var routeGroups = []string{"products", "orders", "payment", "users", "admin"}

type routerConfig struct {
	basePath    string
	middlewares []func(http.Handler) http.Handler
	health      *HealthHandlers
	groups      map[string]RouteRegistrar
}

// Option customises the router configuration before construction.
type Option func(*routerConfig)

const (
	defaultAPIPrefix  = "/api"
	defaultTimeout    = 60 * time.Second
	errorNotFoundCode = "route_not_found"
)

// NewRouter constructs the chi router with shared middleware and the storefront route groups.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{
		basePath: defaultAPIPrefix,
		groups:   make(map[string]RouteRegistrar, len(routeGroups)),
		middlewares: []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Timeout(defaultTimeout),
		},
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	r := chi.NewRouter()

	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	for _, mw := range cfg.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError(errorNotFoundCode, fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)

	r.Route(cfg.basePath, func(api chi.Router) {
		for _, name := range routeGroups {
			registrar := cfg.groups[name]
			api.Route("/"+name, func(group chi.Router) {
				if registrar == nil {
					registerNotImplemented(group, name)
					return
				}
				registrar(group)
			})
		}
	})

	return r
}

// WithBasePath overrides the prefix the API groups are mounted under.
func WithBasePath(path string) Option {
	return func(cfg *routerConfig) {
		path = strings.TrimRight(strings.TrimSpace(path), "/")
		if path == "" {
			return
		}
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		cfg.basePath = path
	}
}

// WithMiddlewares appends router-wide middleware after the chi defaults.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithHealthHandlers serves /healthz and /readyz from h.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.health = h
	}
}

func withGroup(name string, reg RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.groups[name] = reg }
}

// WithProductRoutes mounts the catalog under /products.
func WithProductRoutes(reg RouteRegistrar) Option { return withGroup("products", reg) }

// WithOrderRoutes mounts order, coupon and invoice endpoints under /orders.
func WithOrderRoutes(reg RouteRegistrar) Option { return withGroup("orders", reg) }

// WithPaymentRoutes mounts gateway intents, callbacks and webhooks under /payment.
func WithPaymentRoutes(reg RouteRegistrar) Option { return withGroup("payment", reg) }

// WithUserRoutes mounts the wishlist under /users.
func WithUserRoutes(reg RouteRegistrar) Option { return withGroup("users", reg) }

// WithAdminRoutes mounts the admin surface under /admin.
func WithAdminRoutes(reg RouteRegistrar) Option { return withGroup("admin", reg) }

func registerNotImplemented(r chi.Router, name string) {
	unavailable := func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("not_implemented", name+" is not enabled", http.StatusNotImplemented))
	}
	r.HandleFunc("/", unavailable)
	r.HandleFunc("/*", unavailable)
}
