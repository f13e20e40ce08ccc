package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echoMw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/gym-booking/internal/config"
	"github.com/iliyamo/gym-booking/internal/database"
	"github.com/iliyamo/gym-booking/internal/handler"
	"github.com/iliyamo/gym-booking/internal/middleware"
	"github.com/iliyamo/gym-booking/internal/obs"
	"github.com/iliyamo/gym-booking/internal/queue"
	"github.com/iliyamo/gym-booking/internal/repository"
	"github.com/iliyamo/gym-booking/internal/router"
	"github.com/iliyamo/gym-booking/internal/service"
)

const serviceName = "gym-booking"

func main() {
	logger := log.New(serviceName)
	logger.SetHeader("${time_rfc3339} ${level} ${short_file}:${line}")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if cfg.Env != "prod" {
		logger.SetLevel(log.DEBUG)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, serviceName, cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatalf("tracing: %v", err)
	}

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		logger.Fatalf("store: %v", err)
	}
	defer closeRepo()
	logger.Infof("booking store: %s", cfg.StoreDriver)

	rdb := config.NewRedisClient(cfg.RedisConfig)
	if rdb == nil {
		logger.Warn("redis unavailable: cache, rate limit and distributed lock disabled")
	} else {
		defer rdb.Close()
	}

	opts := []service.Option{
		service.WithLogger(logger),
		service.WithLocation(cfg.Location()),
	}
	if rdb != nil {
		opts = append(opts, service.WithLocker(service.NewRedisLocker(rdb, "lock:resource", cfg.LockTTL, 0)))
	}
	if cfg.RabbitURL != "" {
		pub, err := queue.NewPublisher(cfg.RabbitURL, cfg.EventsExchange)
		if err != nil {
			logger.Warnf("rabbitmq publisher unavailable, events disabled: %v", err)
		} else {
			defer pub.Close()
			opts = append(opts, service.WithPublisher(pub))
		}
		if cfg.ConsumerEnabled {
			go func() {
				ccfg := queue.ConsumerConfig{URL: cfg.RabbitURL, Exchange: cfg.EventsExchange, LogPath: cfg.EventsLogPath}
				if err := queue.StartBookingConsumer(ctx, ccfg, logger); err != nil && !errors.Is(err, context.Canceled) {
					logger.Errorf("booking consumer stopped: %v", err)
				}
			}()
		}
	}
	svc := service.NewBookingService(repo, opts...)

	e := echo.New()
	e.HideBanner = true
	e.Logger = logger
	e.HTTPErrorHandler = middleware.ErrorHandler
	e.Use(echoMw.RequestLoggerWithConfig(echoMw.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echoMw.RequestLoggerValues) error {
			logger.Infof("%s %s %d %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))
	e.Use(echoMw.Recover())

	router.RegisterRoutes(e)
	router.RegisterBookings(e, handler.NewBookingHandler(svc), router.BookingOptions{
		JWTSecret:  cfg.JWTSecret,
		WriteRoles: cfg.WriteRoles,
		Middleware: []echo.MiddlewareFunc{
			middleware.NewTokenBucket(cfg.RateLimit, rdb),
			middleware.NewRedisCache(cfg.Cache, rdb),
		},
	})

	go func() {
		addr := ":" + cfg.Port
		logger.Infof("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("http shutdown: %v", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Errorf("tracer shutdown: %v", err)
	}
	logger.Info("stopped")
}

// openRepository builds the store selected by STORE_DRIVER.  The returned
// func releases its connections.
func openRepository(ctx context.Context, cfg config.Config) (repository.BookingRepository, func(), error) {
	noop := func() {}
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return repository.NewMemoryBookingRepo(), noop, nil
	case config.DriverFile:
		r, err := repository.NewFileBookingRepo(cfg.StoreFile)
		if err != nil {
			return nil, nil, err
		}
		return r, noop, nil
	case config.DriverMySQL:
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			return nil, nil, fmt.Errorf("connect mysql: %w", err)
		}
		r := repository.NewSQLBookingRepo(db)
		if err := r.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate mysql: %w", err)
		}
		return r, func() { _ = db.Close() }, nil
	case config.DriverPostgres:
		gdb, err := database.NewPostgresDB(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		closeFn := noop
		if sqlDB, err := gdb.DB(); err == nil {
			closeFn = func() { _ = sqlDB.Close() }
		}
		return repository.NewGormBookingRepo(gdb), closeFn, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
