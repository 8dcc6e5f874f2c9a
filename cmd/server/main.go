package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"courseshop-be/internal/config"
	"courseshop-be/internal/course"
	"courseshop-be/internal/db"
	"courseshop-be/internal/events"
	"courseshop-be/internal/httpapi"
	"courseshop-be/internal/logger"
	"courseshop-be/internal/middleware"
	"courseshop-be/internal/order"
	"courseshop-be/internal/payment"
	"courseshop-be/internal/payment/webhook"
	"courseshop-be/internal/purchase"
	"courseshop-be/internal/user"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

var (
	initDBFunc      = db.InitDB
	startServerFunc = startServer
)

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("server stopped", zap.Error(err))
	}
}

func run() error {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := initDBFunc(cfg)
	defer database.Close()

	handler, cleanup := newServer(cfg, database)
	defer cleanup()

	logger.L().Info("server starting",
		zap.String("port", cfg.AppPort),
		zap.String("env", cfg.AppEnv),
	)
	return startServerFunc(":"+cfg.AppPort, handler)
}

// newServer wires repositories, services and the router. The returned func
// releases the Redis client and Kafka writer.
func newServer(cfg *config.Config, database *sql.DB) (http.Handler, func()) {
	log := logger.L()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: 10,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable, purchase checks will hit the database", zap.Error(err))
	}
	cancel()

	var (
		publisher order.Publisher = events.Noop{}
		closers                   = []func() error{rdb.Close}
	)
	if cfg.KafkaEnabled {
		producer := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaOrderTopic)
		publisher = producer
		closers = append(closers, producer.Close)
	}

	orderRepo := order.NewRepository(database)
	courseRepo := course.NewRepository(database)
	purchases := purchase.NewCache(rdb, orderRepo)
	gateway := payment.NewYooKassaGateway(cfg.YooKassaShopID, cfg.YooKassaSecretKey)

	orderSvc := order.NewService(orderRepo, courseRepo, gateway, purchases, publisher, order.Options{
		BaseURL:  cfg.AppBaseURL,
		Currency: cfg.PaymentCurrency,
		VATCode:  cfg.YooKassaVATCode,
	})

	userRepo := user.NewRepository(database)

	h := httpapi.NewHandler(courseRepo, userRepo, orderSvc, purchases, webhook.NewWebhookHandler(orderSvc))

	limiter := middleware.NewRateLimiter()
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go limiter.Run(sweepCtx, time.Minute)
	closers = append(closers, func() error {
		stopSweep()
		return nil
	})

	router := httpapi.NewRouter(h,
		logger.RequestIDMiddleware,
		logger.LoggingMiddleware,
		middleware.AuthMiddleware([]byte(cfg.JWTSecret)),
		limiter.Middleware,
	)

	cleanup := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Warn("failed to close resource", zap.Error(err))
			}
		}
	}
	return router, cleanup
}

// startServer serves until SIGINT/SIGTERM, then drains in-flight requests.
func startServer(addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.L().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
