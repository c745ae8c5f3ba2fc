package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mesa-digital/api/internal/config"
	"github.com/mesa-digital/api/internal/database"
	"github.com/mesa-digital/api/internal/enum"
	"github.com/mesa-digital/api/internal/handler"
	"github.com/mesa-digital/api/internal/idempotency"
	"github.com/mesa-digital/api/internal/metrics"
	mw "github.com/mesa-digital/api/internal/middleware"
	"github.com/mesa-digital/api/internal/printing"
	"github.com/mesa-digital/api/internal/service"
	"github.com/mesa-digital/api/internal/storage"
	"github.com/mesa-digital/api/internal/ws"
	"github.com/rs/zerolog/log"
)

// Infra carries the long-lived components built in main.
type Infra struct {
	Objects     *storage.FS
	Printer     *printing.Dispatcher
	Idempotency idempotency.Store
	OrderLimit  *mw.RateLimiter
}

// New creates a Chi router with all application routes wired up.
// Applies authentication and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub, infra Infra) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.InstrumentHandler)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOriginList(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Content-Disposition", "Idempotent-Replayed"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})
	r.Handle("/metrics", metrics.Handler())

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Services
	orderService := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	})
	checkoutService := service.NewCheckoutService(pool, func(db database.DBTX) service.CheckoutStore {
		return database.New(db)
	})

	// Public diner surface
	settingsHandler := handler.NewSettingsHandler(queries, infra.Objects)
	settingsHandler.RegisterPublicRoutes(r)

	menuHandler := handler.NewMenuHandler(queries, orderService, hub)
	r.Route("/menu", menuHandler.RegisterRoutes)
	r.Route("/tables", func(r chi.Router) {
		if infra.OrderLimit != nil {
			r.Use(infra.OrderLimit.Handler)
		}
		if infra.Idempotency != nil {
			r.Use(idempotency.Middleware(infra.Idempotency))
		}
		menuHandler.RegisterOrderRoutes(r)
	})

	fileHandler := handler.NewFileHandler(infra.Objects)
	r.Route("/storage", fileHandler.RegisterRoutes)

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	orderHandler := handler.NewOrderHandler(queries, hub)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		authHandler.RegisterAuthenticatedRoutes(r)

		// Kitchen board, also open to admins
		r.Route("/kitchen", func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleKitchen, enum.UserRoleAdmin))
			r.Route("/orders", orderHandler.RegisterKitchenRoutes)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin))

			categoryHandler := handler.NewCategoryHandler(queries)
			r.Route("/categories", categoryHandler.RegisterRoutes)

			addonHandler := handler.NewAddonHandler(queries)
			r.Route("/addons", addonHandler.RegisterRoutes)

			menuItemHandler := handler.NewMenuItemHandler(
				queries,
				pool,
				func(db database.DBTX) handler.MenuItemStore {
					return database.New(db)
				},
				infra.Objects,
				hub,
			)
			sizeVariantHandler := handler.NewSizeVariantHandler(
				queries,
				pool,
				func(db database.DBTX) handler.SizeVariantStore {
					return database.New(db)
				},
			)
			r.Route("/menu-items", func(r chi.Router) {
				menuItemHandler.RegisterRoutes(r)
				r.Route("/{mid}", sizeVariantHandler.RegisterRoutes)
			})

			tableHandler := handler.NewTableHandler(queries, cfg.PublicOrigin, hub)
			checkoutHandler := handler.NewCheckoutHandler(checkoutService, queries, infra.Printer, hub)
			r.Route("/tables", func(r chi.Router) {
				tableHandler.RegisterRoutes(r)
				checkoutHandler.RegisterTableRoutes(r)
			})
			r.Route("/payments", checkoutHandler.RegisterRoutes)

			r.Route("/orders", orderHandler.RegisterRoutes)

			printJobHandler := handler.NewPrintJobHandler(queries, infra.Printer)
			r.Route("/print-jobs", printJobHandler.RegisterRoutes)

			r.Route("/settings", settingsHandler.RegisterRoutes)

			reportsHandler := handler.NewReportsHandler(queries)
			r.Route("/reports", reportsHandler.RegisterRoutes)

			userHandler := handler.NewUserHandler(queries)
			r.Route("/users", userHandler.RegisterRoutes)
		})
	})

	log.Info().Msg("router initialized with all handlers")
	return r
}
