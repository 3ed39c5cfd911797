package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/erazemk/popis/internal/backend"
	"github.com/erazemk/popis/internal/metrics"
	"github.com/erazemk/popis/internal/store"
)

// LoginRateLimit is the number of login attempts allowed per IP per minute.
const LoginRateLimit = 10

// Config holds the dependencies of the API router.
type Config struct {
	Store *store.Store
	// Backend holds the owner's credentials and the token secret.
	Backend backend.Backend
	Metrics *metrics.Metrics
	// Origins allowed to call the API from a browser. Empty allows all.
	Origins     []string
	Development bool
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(cfg Config) http.Handler {
	authHandler := &AuthHandler{Backend: cfg.Backend}
	categoriesHandler := &CategoriesHandler{Store: cfg.Store, Metrics: cfg.Metrics}
	itemsHandler := &ItemsHandler{Store: cfg.Store, Metrics: cfg.Metrics}

	origins := cfg.Origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	sec := secure.New(secure.Options{
		STSSeconds:            63072000,
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		IsDevelopment:         cfg.Development,
	})

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer,
		middleware.RequestID,
		middleware.RealIP,
		LoggingMiddleware,
		cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}),
		RequestBodyLimit(1<<20),
		sec.Handler,
	)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		// Public: login.
		r.With(httprate.LimitByIP(LoginRateLimit, time.Minute)).Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(cfg.Backend))

			r.Put("/auth/password", authHandler.ChangePassword)
			r.Post("/auth/logout", authHandler.Logout)

			r.Get("/categories", categoriesHandler.List)
			r.Post("/categories", categoriesHandler.Create)
			r.Get("/categories/{id}", categoriesHandler.Get)
			r.Put("/categories/{id}", categoriesHandler.Update)
			r.Delete("/categories/{id}", categoriesHandler.Delete)

			r.Get("/items", itemsHandler.List)
			r.Post("/items", itemsHandler.Create)
			r.Get("/items/{id}", itemsHandler.Get)
			r.Put("/items/{id}", itemsHandler.Update)
			r.Delete("/items/{id}", itemsHandler.Delete)
		})
	})

	return r
}
