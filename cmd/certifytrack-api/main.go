package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/certifytrack-api/api/swagger"
	"github.com/noah-isme/certifytrack-api/internal/bootstrap"
	"github.com/noah-isme/certifytrack-api/internal/handler"
	internalmiddleware "github.com/noah-isme/certifytrack-api/internal/middleware"
	"github.com/noah-isme/certifytrack-api/pkg/config"
	"github.com/noah-isme/certifytrack-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/certifytrack-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/certifytrack-api/pkg/middleware/requestid"
)

// @title CertifyTrack API
// @version 1.0.0
// @description Club events, hall bookings, AICTE activity points and certificates
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	container, err := bootstrap.New(cfg, logr)
	if err != nil {
		logr.Sugar().Fatalw("bootstrap failed", "error", err)
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	container.Start(ctx)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(container.Metrics))
	r.Use(internalmiddleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(container.Metrics)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := container.DB.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.Handlers{
		Auth:          handler.NewAuthHandler(container.Auth, container.Registration),
		Bookings:      handler.NewBookingHandler(container.Bookings),
		Events:        handler.NewEventHandler(container.Events, container.HallAssignment),
		AICTE:         handler.NewAICTEHandler(container.AICTE),
		Certificates:  handler.NewCertificateHandler(container.Certificates),
		Notifications: handler.NewNotificationHandler(container.Notifications),
		Maintenance:   handler.NewMaintenanceHandler(container.Maintenance),
		Metrics:       metricsHandler,
	}, internalmiddleware.JWT(container.Auth), container.Repos.Users)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("graceful shutdown failed", "error", err)
	}
	logr.Sugar().Infow("server stopped")
}
