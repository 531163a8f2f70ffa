package transport

import (
	"net/http"

	"garmentshop-be/internal/cache"
	"garmentshop-be/internal/logger"
	"garmentshop-be/internal/middleware"
	"garmentshop-be/internal/notification"
	"garmentshop-be/internal/order"
	"garmentshop-be/internal/product"
	"garmentshop-be/internal/utils"
)

type RouterConfig struct {
	Auth          *middleware.Authenticator
	Cache         *cache.HTTPCache
	Orders        order.Service
	Products      product.Service
	Notifications notification.Service
}

// NewRouter builds the full HTTP surface: request-id -> logging -> principal
// resolution -> rate limiting, then per-route auth and caching. The
// authenticator runs before the limiter so authenticated callers are bucketed
// by user id, not by shared ip.
//
// Catalog reads are cached under a shared key family; notification reads are
// cached per user. Order reads are never cached.
func NewRouter(cfg RouterConfig) http.Handler {
	orders := NewOrderHandler(cfg.Orders)
	products := NewProductHandler(cfg.Products)
	notifications := NewNotificationHandler(cfg.Notifications)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.Handle("GET /api/products", cfg.Cache.Wrap(http.HandlerFunc(products.List)))
	mux.Handle("GET /api/products/{id}", cfg.Cache.Wrap(http.HandlerFunc(products.Get)))
	mux.Handle("POST /api/products", middleware.RequireAdmin(http.HandlerFunc(products.Create)))
	mux.Handle("PUT /api/products/{id}/stock", middleware.RequireAdmin(http.HandlerFunc(products.SetStock)))

	mux.Handle("POST /api/orders", middleware.RequireAuth(http.HandlerFunc(orders.Create)))
	mux.Handle("GET /api/orders", middleware.RequireAuth(http.HandlerFunc(orders.List)))
	mux.Handle("GET /api/orders/{id}", middleware.RequireAuth(http.HandlerFunc(orders.Get)))
	mux.Handle("PUT /api/orders/{id}/status", middleware.RequireAdmin(http.HandlerFunc(orders.UpdateStatus)))
	mux.Handle("PUT /api/orders/{id}/cancel", middleware.RequireAuth(http.HandlerFunc(orders.Cancel)))

	mux.Handle("GET /api/notifications",
		middleware.RequireAuth(cfg.Cache.WrapPerUser(http.HandlerFunc(notifications.List))))
	mux.Handle("PUT /api/notifications/{id}/read",
		middleware.RequireAuth(http.HandlerFunc(notifications.MarkRead)))

	var handler http.Handler = mux
	handler = middleware.NewRateLimiter().Middleware(handler)
	handler = cfg.Auth.Middleware(handler)
	handler = logger.LoggingMiddleware(handler)
	handler = logger.RequestIDMiddleware(handler)

	return handler
}
