package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/distrihogar/storefront-backend/api/controllers"
	cartcontrollers "github.com/distrihogar/storefront-backend/api/controllers/cart"
	catalogcontrollers "github.com/distrihogar/storefront-backend/api/controllers/catalog"
	"github.com/distrihogar/storefront-backend/api/middleware"
	cartsvc "github.com/distrihogar/storefront-backend/internal/cart"
	catalogsvc "github.com/distrihogar/storefront-backend/internal/catalog"
	"github.com/distrihogar/storefront-backend/pkg/config"
	"github.com/distrihogar/storefront-backend/pkg/db"
	"github.com/distrihogar/storefront-backend/pkg/logger"
	"github.com/distrihogar/storefront-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	catalogService catalogsvc.Service,
	cartService cartsvc.Service,
	registry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, redisClient, logg))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Catalog reads are public; the storefront renders them before login.
		r.Get("/products", catalogcontrollers.ProductList(catalogService, logg))
		r.Get("/products/{productId}", catalogcontrollers.ProductFetch(catalogService, logg))
		r.Get("/categories", catalogcontrollers.CategoryList(catalogService, logg))
		r.Get("/categories/{categoryId}", catalogcontrollers.CategoryFetch(catalogService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			// Token mint stays outside the anti-forgery gate: it is the
			// recovery path after a token rejection.
			r.Get("/auth/csrf", controllers.AntiForgeryToken(cfg.CSRF, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.AntiForgery(cfg.CSRF, logg))

				r.Route("/cart", func(r chi.Router) {
					r.Get("/", cartcontrollers.CartFetch(cartService, logg))
					r.Put("/", cartcontrollers.CartReplace(cartService, logg))
					r.Delete("/", cartcontrollers.CartClear(cartService, logg))
					r.Post("/items", cartcontrollers.ItemAdd(cartService, logg))
					r.Patch("/items/{itemId}", cartcontrollers.ItemUpdate(cartService, logg))
					r.Delete("/items/{itemId}", cartcontrollers.ItemRemove(cartService, logg))
				})
			})
		})
	})

	return r
}
