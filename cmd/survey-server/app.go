package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/surveyhos/surveyhos/internal/config"
	"github.com/surveyhos/surveyhos/internal/domain/alert"
	"github.com/surveyhos/surveyhos/internal/domain/response"
	"github.com/surveyhos/surveyhos/internal/domain/servicepoint"
	"github.com/surveyhos/surveyhos/internal/domain/staff"
	"github.com/surveyhos/surveyhos/internal/domain/survey"
	"github.com/surveyhos/surveyhos/internal/platform/auth"
	"github.com/surveyhos/surveyhos/internal/platform/db"
	"github.com/surveyhos/surveyhos/internal/platform/events"
	"github.com/surveyhos/surveyhos/internal/platform/export"
	"github.com/surveyhos/surveyhos/internal/platform/middleware"
	"github.com/surveyhos/surveyhos/internal/platform/notification"
	"github.com/surveyhos/surveyhos/internal/platform/websocket"
)

const (
	version           = "1.0.0"
	kioskBodyLimit    = "64K"
	apiBodyLimit      = "1M"
	apiRequestTimeout = 30 * time.Second
)

// app is the assembled HTTP server and the background pieces that need to be
// shut down with it.
type app struct {
	echo      *echo.Echo
	pipeline  *alert.Pipeline
	publisher events.Publisher
}

// services groups the domain services shared by the server and the CLI.
type services struct {
	points    *servicepoint.Service
	staff     *staff.Service
	surveys   *survey.Service
	responses *response.Service
	recorder  *response.Recorder
	inbox     *alert.Inbox
	notices   alert.NotificationRepository
}

func newServices(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (*services, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	tx := db.NewTxRunner(pool)

	points := servicepoint.NewService(servicepoint.NewGroupRepoPG(pool), servicepoint.NewPointRepoPG(pool))
	surveys := survey.NewService(survey.NewSurveyRepoPG(pool), survey.NewQuestionRepoPG(pool), tx)
	responseRepo := response.NewResponseRepoPG(pool)
	notices := alert.NewNotificationRepoPG(pool)

	return &services{
		points:    points,
		staff:     staff.NewService(staff.NewStaffRepoPG(pool), tx),
		surveys:   surveys,
		responses: response.NewService(responseRepo, loc),
		recorder:  response.NewRecorder(responseRepo, surveys, points, tx, logger),
		inbox:     alert.NewInbox(notices),
		notices:   notices,
	}, nil
}

func newApp(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (*app, error) {
	svc, err := newServices(cfg, pool, logger)
	if err != nil {
		return nil, err
	}

	// Alert fan-out
	push := notification.NewLineGateway(cfg.LineAPIURL, cfg.LineAccessToken, cfg.GatewayTimeout())
	mail := notification.NewSMTPSender(notification.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		Timeout:  cfg.GatewayTimeout(),
	})
	publisher, err := events.NewPublisher(ctx, events.SinkConfig{
		Sink:         cfg.AlertEventSink,
		KafkaBrokers: cfg.KafkaBrokerList(),
		KafkaTopic:   cfg.KafkaAlertTopic,
		SQSQueueURL:  cfg.SQSAlertQueueURL,
	})
	if err != nil {
		return nil, fmt.Errorf("alert event sink: %w", err)
	}
	hub := websocket.NewHub(logger)
	dispatcher := alert.NewDispatcher(svc.notices, svc.staff, push, mail, logger,
		alert.WithPublicBaseURL(cfg.PublicBaseURL),
		alert.WithAdminBroadcast(cfg.LineAdminRecipientID),
		alert.WithLiveFeed(hub))
	pipeline := alert.NewPipeline(dispatcher, publisher, logger,
		alert.WithQueue(cfg.AlertQueueSize, cfg.AlertWorkers, func(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error {
			if tenantID == "" {
				tenantID = cfg.DefaultTenant
			}
			return db.WithConn(ctx, pool, tenantID, fn)
		}))

	var archiver response.Archiver
	if cfg.ExportS3Bucket != "" {
		store, err := export.NewS3Store(ctx, cfg.ExportS3Bucket, cfg.ExportS3Prefix)
		if err != nil {
			return nil, fmt.Errorf("export archive: %w", err)
		}
		archiver = store
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = middleware.NewRequestValidator()

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Kiosk routes are public and resolve the tenant from X-Tenant-ID.
	kiosk := e.Group("/kiosk", db.TenantMiddleware(pool, cfg.DefaultTenant))

	// Back office
	apiV1 := e.Group("/api/v1", middleware.BodyLimit(apiBodyLimit), middleware.RequestTimeout(apiRequestTimeout))
	if cfg.IsDev() {
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	}
	apiV1.Use(db.TenantMiddleware(pool, cfg.DefaultTenant))
	apiV1.Use(staff.ActorMiddleware(svc.staff))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	servicepoint.NewHandler(svc.points).RegisterRoutes(apiV1)
	staff.NewHandler(svc.staff).RegisterRoutes(apiV1)
	survey.NewHandler(svc.surveys).RegisterRoutes(apiV1, kiosk)
	response.NewHandler(svc.recorder, svc.responses, pipeline, archiver).
		RegisterRoutes(apiV1, kiosk, middleware.RateLimit(rateLimitCfg), middleware.BodyLimit(kioskBodyLimit))
	alertHandler := alert.NewHandler(svc.inbox)
	alertHandler.RegisterRoutes(apiV1)
	alertHandler.RegisterStream(apiV1, websocket.NewHandler(hub, alert.StreamTopicOf, cfg.CORSOrigins))

	return &app{echo: e, pipeline: pipeline, publisher: publisher}, nil
}

// shutdown stops accepting requests, then drains queued alerts.
func (a *app) shutdown(ctx context.Context, logger zerolog.Logger) {
	if err := a.echo.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	a.pipeline.Stop()
	if err := a.publisher.Close(); err != nil {
		logger.Error().Err(err).Msg("close alert publisher failed")
	}
}
