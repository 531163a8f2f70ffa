package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"garmentshop-be/internal/cache"
	"garmentshop-be/internal/config"
	"garmentshop-be/internal/db"
	"garmentshop-be/internal/inventory"
	"garmentshop-be/internal/logger"
	"garmentshop-be/internal/middleware"
	"garmentshop-be/internal/notification"
	"garmentshop-be/internal/order"
	"garmentshop-be/internal/product"
	"garmentshop-be/internal/transport"

	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := db.InitDB(cfg)
	defer database.Close()

	// Redis when configured, in-process memory otherwise.
	var store cache.Store
	if cfg.RedisAddr != "" {
		redisStore := cache.NewRedis(cfg.RedisAddr)
		defer redisStore.Close()
		store = redisStore
		logger.L().Info("response cache: redis", zap.String("addr", cfg.RedisAddr))
	} else {
		store = cache.NewMemory()
		logger.L().Info("response cache: in-memory")
	}

	notificationRepo := notification.NewRepository(database)
	emitter := notification.NewEmitter(notificationRepo, store, 256)
	defer emitter.Close()

	productRepo := product.NewRepository(database)
	orderRepo := order.NewRepository(database)
	ledger := inventory.NewPostgresLedger(database)

	orderSvc := order.NewService(orderRepo, productRepo, ledger, emitter, store, nil)
	productSvc := product.NewService(productRepo, store)
	notificationSvc := notification.NewService(notificationRepo, store)

	handler := transport.NewRouter(transport.RouterConfig{
		Auth:          middleware.NewAuthenticator([]byte(cfg.JWTSecret)),
		Cache:         cache.NewHTTPCache(store, cfg.CacheTTL, nil),
		Orders:        orderSvc,
		Products:      productSvc,
		Notifications: notificationSvc,
	})

	port := cfg.AppPort
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.L().Info("server listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.L().Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.L().Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.L().Error("forced shutdown", zap.Error(err))
	}
}
