package server

import (
	"context"

	"github.com/fitaccessng/qring-backend/config"
	"github.com/fitaccessng/qring-backend/gateway"
	"github.com/fitaccessng/qring-backend/handlers"
	"github.com/fitaccessng/qring-backend/kafka"
	"github.com/fitaccessng/qring-backend/limiter"
	"github.com/fitaccessng/qring-backend/metrics"
	custommiddleware "github.com/fitaccessng/qring-backend/middleware"
	"github.com/fitaccessng/qring-backend/models"
	qredis "github.com/fitaccessng/qring-backend/redis"
	"github.com/fitaccessng/qring-backend/services"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Server struct {
	Echo    *echo.Echo
	DB      *gorm.DB
	Config  *config.Config
	Gateway *gateway.Gateway

	VisitorHandler      *handlers.VisitorHandler
	SessionHandler      *handlers.SessionHandler
	DashboardHandler    *handlers.DashboardHandler
	NotificationHandler *handlers.NotificationHandler

	registry     *prometheus.Registry
	consumer     *kafka.Consumer
	consumerStop context.CancelFunc
}

func NewServer() *Server {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := models.AutoMigrateAll(db); err != nil {
		log.Fatal("Failed to auto-migrate database:", err)
	}

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{echo.GET, echo.POST, echo.PUT, echo.DELETE, echo.PATCH},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
		ExposeHeaders:    []string{echo.HeaderContentLength},
		MaxAge:           86400,
	}))

	// Redis is optional: without it the gateway skips the occupancy
	// mirror and the public endpoints run unthrottled.
	rds, err := qredis.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Warn("Redis unavailable, continuing without it: ", err)
		rds = nil
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	authService := services.NewAuthService(db, &cfg.Auth)
	paymentService := services.NewPaymentService(db)
	qrService := services.NewQRService(db, paymentService)
	sessionService := services.NewSessionService(db)
	dashboardService := services.NewDashboardService(db)

	var publisher services.NotificationPublisher
	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		sc, err := kafka.NewSaramaConfig(&cfg.Kafka)
		if err != nil {
			log.Fatal("Failed to build kafka config:", err)
		}
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, sc)
		if err != nil {
			log.Fatal("Failed to connect kafka producer:", err)
		}
		publisher = producer
	}

	notificationService := services.NewNotificationService(db, publisher)

	presence := gateway.NewPresence()
	gw := gateway.New(sessionService, authService, presence, rds, collector, cfg.Gateway)

	s := &Server{
		Echo:                e,
		DB:                  db,
		Config:              &cfg,
		Gateway:             gw,
		VisitorHandler:      handlers.NewVisitorHandler(qrService, sessionService, notificationService, gw, collector),
		SessionHandler:      handlers.NewSessionHandler(sessionService, notificationService, gw),
		DashboardHandler:    handlers.NewDashboardHandler(dashboardService),
		NotificationHandler: handlers.NewNotificationHandler(notificationService),
		registry:            registry,
	}

	var rateLimiter *limiter.Manager
	if rds != nil {
		rateLimiter = limiter.NewManager(rds.Client, &limiter.FixedWindowStrategy{})
	}

	authMiddleware := custommiddleware.AuthMiddleware(authService)
	s.SetupRoutes(authMiddleware, rateLimiter)

	if cfg.Kafka.Enabled {
		sc, err := kafka.NewSaramaConfig(&cfg.Kafka)
		if err != nil {
			log.Fatal("Failed to build kafka consumer config:", err)
		}
		consumer, err = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Group,
			[]string{cfg.Kafka.Topic}, sc, kafka.NewNotificationHandler(notificationService))
		if err != nil {
			log.Fatal("Failed to start kafka consumer:", err)
		}
		ctx, stop := context.WithCancel(context.Background())
		s.consumer = consumer
		s.consumerStop = stop
		go func() {
			if err := consumer.Start(ctx); err != nil {
				log.Error("Kafka consumer stopped: ", err)
			}
		}()
	}

	return s
}

func (s *Server) Start(addr string) {
	log.Fatal(s.Echo.Start(addr))
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.consumerStop != nil {
		s.consumerStop()
	}
	if s.consumer != nil {
		s.consumer.Close()
	}
	return s.Echo.Shutdown(ctx)
}
