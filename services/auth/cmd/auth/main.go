package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aminammar1/storefront/libs/health"
	"github.com/aminammar1/storefront/libs/httpmiddleware"
	"github.com/aminammar1/storefront/libs/kafka"
	"github.com/aminammar1/storefront/libs/logging"
	"github.com/aminammar1/storefront/libs/metrics"
	"github.com/aminammar1/storefront/libs/notify"
	"github.com/aminammar1/storefront/libs/trace"
	"github.com/aminammar1/storefront/services/auth/internal/config"
	"github.com/aminammar1/storefront/services/auth/internal/handlers"
	"github.com/aminammar1/storefront/services/auth/internal/otp"
	"github.com/aminammar1/storefront/services/auth/internal/rate"
	"github.com/aminammar1/storefront/services/auth/internal/security"
	"github.com/aminammar1/storefront/services/auth/internal/social"
	"github.com/aminammar1/storefront/services/auth/internal/storage"
	"github.com/aminammar1/storefront/services/auth/migrations"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"log/slog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.App.LogLevel, cfg.App.ServiceName, cfg.App.Env)
	shutdownTracer, err := trace.InitTracer(cfg.App.ServiceName, cfg.App.Env)
	if err != nil {
		logger.Error("tracer init failed", "error", err)
	} else {
		defer func() {
			_ = shutdownTracer(context.Background())
		}()
	}

	if cfg.App.Env == "dev" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(registry)

	ready := health.NewManager("postgres")

	if err := migrations.Run(context.Background(), cfg.DB.DSN()); err != nil {
		logger.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	pool, err := connectDB(cfg)
	if err != nil {
		logger.Error("db connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	loginLimiter, otpLimiter, limiterClose := buildLimiters(cfg, logger)
	defer func() {
		_ = limiterClose()
	}()

	var mailer notify.Sender
	if cfg.SMTP.Host != "" {
		mailer, err = notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
		if err != nil {
			logger.Error("smtp config invalid", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("smtp not configured, reset codes will not be delivered")
	}

	var events kafka.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewSyncProducer(cfg.Kafka.Brokers, logger, kafka.NewProducerMetrics(registry))
		if err != nil {
			logger.Error("kafka producer init failed", "error", err)
			os.Exit(1)
		}
		defer func() {
			_ = producer.Close()
		}()
		events = producer
	}

	store := storage.New(pool)
	otpManager := otp.New(store, cfg.OTP.TTL, cfg.OTP.VerifyWindow)
	verifier := social.NewHTTPVerifier(social.Config{GoogleClientID: cfg.Social.GoogleClientID})

	authHandler := handlers.New(store, otpManager, mailer, verifier, logger, handlers.Config{
		JWTSecret:  []byte(cfg.JWTSecret),
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
		OTPTTL:     cfg.OTP.TTL,
		Argon2: security.Argon2Params{
			Memory:      cfg.Argon2.Memory,
			Iterations:  cfg.Argon2.Iterations,
			Parallelism: cfg.Argon2.Parallelism,
			SaltLength:  cfg.Argon2.SaltLength,
			KeyLength:   cfg.Argon2.KeyLength,
		},
		Cookie: handlers.CookieSettings{
			Domain: cfg.Cookie.Domain,
			Secure: cfg.Cookie.Secure,
		},
	})
	authHandler.Events = events
	authHandler.LoginLimiter = loginLimiter
	authHandler.OTPLimiter = otpLimiter
	authHandler.Metrics = handlers.NewMetrics(registry)

	router := gin.New()
	router.Use(httpmiddleware.RequestID())
	router.Use(httpmiddleware.Logger(logger))
	router.Use(httpmiddleware.Recovery(logger))
	router.Use(trace.Middleware(cfg.App.ServiceName))

	router.GET("/healthz", health.LivenessHandler)
	router.GET("/readyz", health.ReadinessHandler(ready))
	router.GET(cfg.App.MetricsPath, gin.WrapH(metrics.Handler(registry)))

	authHandler.RegisterRoutes(router)

	addr := cfg.App.HTTP.Addr()
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.App.HTTP.ReadTimeout,
		WriteTimeout: cfg.App.HTTP.WriteTimeout,
		IdleTimeout:  cfg.App.HTTP.IdleTimeout,
	}

	ready.SetReady("postgres", true)

	go func() {
		logger.Info("auth service starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("auth service shutting down")
	ready.SetReady("postgres", false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
}

func connectDB(cfg *config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DB.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

// buildLimiters prefers redis so throttling is shared across replicas and
// falls back to per-process memory limiters.
func buildLimiters(cfg *config.Config, logger *slog.Logger) (rate.Limiter, rate.Limiter, func() error) {
	rl := cfg.RateLimit
	if rl.Redis.Addr == "" {
		logger.Info("rate limiting with in-memory windows")
		return rate.NewMemory(rl.LoginLimit, rl.LoginWindow),
			rate.NewMemory(rl.OTPLimit, rl.OTPWindow),
			func() error { return nil }
	}

	client := redis.NewClient(&redis.Options{
		Addr:     rl.Redis.Addr,
		Password: rl.Redis.Password,
		DB:       rl.Redis.DB,
	})
	logger.Info("rate limiting with redis windows", "addr", rl.Redis.Addr)
	return rate.NewRedisLimiter(client, rl.LoginLimit, rl.LoginWindow, rl.Redis.Prefix+"login:"),
		rate.NewRedisLimiter(client, rl.OTPLimit, rl.OTPWindow, rl.Redis.Prefix+"otp:"),
		client.Close
}
