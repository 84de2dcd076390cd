package main

import (
	"log"
	"os"
	"strings"

	_ "alumniportal/api/swagger" // swagger docs
	"alumniportal/internal/database"
	"alumniportal/internal/feecache"
	"alumniportal/internal/handler"
	"alumniportal/internal/lifecycle"
	"alumniportal/internal/middleware"
	"alumniportal/internal/model"
	"alumniportal/internal/notify"
	"alumniportal/internal/query"
	"alumniportal/internal/repository"
	"alumniportal/internal/scope"
	"alumniportal/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           Alumni Portal Request API
// @version         1.0
// @description     Request lifecycle and split-payment engine for the alumni association portal.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Logger init failed: %v", err)
	}
	defer logger.Sync()

	dbHost := envOr("DB_HOST", "localhost")
	dbPort := envOr("DB_PORT", "5432")
	dbUser := envOr("DB_USER", "postgres")
	dbPassword := envOr("DB_PASSWORD", "postgres")
	dbName := envOr("DB_NAME", "postgres")
	dbSslMode := envOr("DB_SSLMODE", "disable")

	dsn := "postgres://" + dbUser + ":" + dbPassword + "@" + dbHost + ":" + dbPort + "/" + dbName + "?sslmode=" + dbSslMode

	db, err := database.NewConnection(dsn)
	if err != nil {
		logger.Fatal("Database connection failed", zap.Error(err))
	}
	logger.Info("Connected to PostgreSQL")

	// Optional redis-backed fee cache; runs straight through to the DB when
	// REDIS_ADDR is unset.
	var rdb *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD")})
	}

	// Status change fan-out: websocket hub always, kafka when brokers are set
	wsHub := notify.NewHub()
	go wsHub.Run()

	publishers := notify.Fanout{wsHub}
	if kp := notify.NewKafkaPublisher(splitList(os.Getenv("KAFKA_BROKERS")), envOr("KAFKA_TOPIC", "portal.request-status"), logger); kp != nil {
		defer kp.Close()
		publishers = append(publishers, kp)
	}

	// Set up dependencies (Repository -> Service -> Handler)
	txm := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	refreshRepo := repository.NewRefreshTokenRepository(db)
	alumniRepo := repository.NewAlumniRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	feeRepo := repository.NewFeeRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	guard := scope.NewGuard(model.CapRequestsGlobal)
	feeCache := feecache.New(feeRepo, rdb, 0, logger)

	baseDeps := lifecycle.ManagerDeps{
		Tx:       txm,
		Wallet:   walletRepo,
		Payments: paymentRepo,
		History:  historyRepo,
		Audits:   auditRepo,
		Alumni:   alumniRepo,
		Fees:     feeCache,
		Guard:    guard,
		Events:   publishers,
		Log:      logger,
	}
	newManager := func(def lifecycle.Definition) *lifecycle.Manager {
		deps := baseDeps
		deps.Requests = repository.NewRequestRepository(db, def.Type)
		return lifecycle.NewManager(def, deps)
	}
	membershipManager := newManager(lifecycle.Membership())
	certificateManager := newManager(lifecycle.Certificate())
	syndicateManager := newManager(lifecycle.Syndicate())

	queries := query.NewRequestQueryService(db, guard)

	userService := service.NewUserService(userRepo, alumniRepo, refreshRepo)
	alumniService := service.NewAlumniService(alumniRepo)
	feeService := service.NewFeeService(feeRepo, auditRepo, feeCache)
	walletService := service.NewWalletService(walletRepo, auditRepo)

	// Initialize Handlers
	userHandler := handler.NewUserHandler(userService)
	alumniHandler := handler.NewAlumniHandler(alumniService)
	feeHandler := handler.NewFeeHandler(feeService)
	walletHandler := handler.NewWalletHandler(walletService)
	auditHandler := handler.NewAuditHandler(auditRepo)
	membershipHandler := handler.NewRequestHandler("memberships", membershipManager, queries)
	certificateHandler := handler.NewRequestHandler("certificates", certificateManager, queries)
	syndicateHandler := handler.NewRequestHandler("syndicates", syndicateManager, queries)

	// Set up Gin Router
	router := gin.Default()
	router.Use(middleware.Metrics())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173", "http://localhost:5174"} // Frontend URL
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// WebSocket endpoint for live status updates
	router.GET("/ws", func(c *gin.Context) {
		notify.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	// Register API Routes
	userHandler.RegisterRoutes(router.Group(""))
	alumniHandler.RegisterRoutes(router.Group(""))
	feeHandler.RegisterRoutes(router.Group(""))
	walletHandler.RegisterRoutes(router.Group(""))
	auditHandler.RegisterRoutes(router.Group(""))
	membershipHandler.RegisterRoutes(router.Group(""))
	certificateHandler.RegisterRoutes(router.Group(""))
	syndicateHandler.RegisterRoutes(router.Group(""))

	port := envOr("PORT", "8080")

	logger.Info("Server listening", zap.String("port", port))
	if err := router.Run(":" + port); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
