package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "uk-requests/api/swagger" // swagger docs
	"uk-requests/internal/config"
	"uk-requests/internal/database"
	"uk-requests/internal/handler"
	"uk-requests/internal/metrics"
	"uk-requests/internal/middleware"
	"uk-requests/internal/repository"
	"uk-requests/internal/service"
	"uk-requests/internal/websocket"
	"uk-requests/internal/workflow"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// @title           Maintenance Requests API
// @version         1.0
// @description     Resident maintenance requests with a role-checked status workflow and history.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, envLoaded, err := config.Load("configs/.env")
	if err != nil {
		zap.NewExample().Fatal("invalid configuration", zap.Error(err))
	}

	log, err := newLogger(cfg)
	if err != nil {
		zap.NewExample().Fatal("failed to build logger", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	if !envLoaded {
		log.Info("no configs/.env file found, using environment only")
	}

	gin.SetMode(cfg.GinMode)

	gormLevel := gormlogger.Warn
	if cfg.GinMode == gin.DebugMode {
		gormLevel = gormlogger.Info
	}
	db, err := database.NewConnection(cfg.Database.DSN(), database.NewZapLogger(log, gormLevel))
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	log.Info("connected to PostgreSQL", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.Name))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Fatal("failed to register metrics", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(log.Named("ws"))
	go wsHub.Run(ctx)

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	historyRepo := repository.NewHistoryRepository(db)

	machine := workflow.NewMachine(txManager, requestRepo, historyRepo)
	requestService := service.NewRequestService(requestRepo, historyRepo, machine, wsHub)
	verifier := middleware.NewTokenVerifier([]byte(cfg.JWTSecret), service.NewActorResolver(userRepo))

	requestHandler := handler.NewRequestHandler(requestService, log.Named("http"))

	// Set up Gin Router
	router := gin.New()
	router.Use(middleware.RequestLogger(log.Named("http")), gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, verifier.Verify)
	})

	requestHandler.RegisterRoutes(router.Group(""), middleware.Authenticate(verifier, log.Named("auth")))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	if cfg.GinMode == gin.DebugMode {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level
	return zcfg.Build()
}
