package app

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "lostandfound/docs"
	"lostandfound/internal/config"
	"lostandfound/internal/handlers"
	"lostandfound/internal/middleware"
	"lostandfound/internal/pdf"
	"lostandfound/internal/repositories"
	"lostandfound/internal/routes"
	"lostandfound/internal/services"
	"lostandfound/internal/utils"
)

func Run() {
	cfg := config.LoadConfig()
	middleware.SetSigningKey(cfg.Auth.JWTSecret)

	// === DB ===
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("failed to connect to database: ", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("failed to close database: %v", err)
		}
	}()

	// === Redis (optional rolling counters) ===
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	// === Repos ===
	userRepo := repositories.NewUserRepository(db)
	codeRepo := repositories.NewVerificationCodeRepository(db)
	tokenRepo := repositories.NewResetTokenRepository(db)
	eventRepo := repositories.NewAuthEventRepository(db)

	// === Services ===
	authService := services.NewAuthService()
	userService := services.NewUserService(userRepo)
	emailService := services.NewEmailService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.FromEmail,
		cfg.Email.ResetBaseURL,
	)
	alertService := services.NewAlertService(cfg.Telegram.BotToken, cfg.Telegram.AlertChatID)

	auditService := services.NewAuditService(
		eventRepo,
		rdb,
		alertService,
		cfg.Audit.SuspiciousThreshold,
		time.Duration(cfg.Audit.SuspiciousWindowHours)*time.Hour,
		cfg.Audit.QueryLimit,
		cfg.Audit.QueryLimitCap,
	)
	detector := services.NewDetectorService(
		eventRepo,
		cfg.Audit.SuspiciousThreshold,
		time.Duration(cfg.Audit.SuspiciousWindowHours)*time.Hour,
		time.Duration(cfg.Audit.RecentWindowMinutes)*time.Minute,
	)

	tempPwService := services.NewTempPasswordService(userRepo, authService, auditService, cfg.Recovery.TempPasswordLength)
	resetService := services.NewPasswordResetService(
		userRepo,
		tokenRepo,
		emailService,
		authService,
		auditService,
		time.Duration(cfg.Recovery.TokenTTLMinutes)*time.Minute,
	)

	smsClient := utils.NewSMSClient(cfg.Mobizon.APIKey, cfg.Mobizon.SenderID, cfg.Mobizon.DryRun)
	verifyService := services.NewVerificationService(
		codeRepo,
		userRepo,
		smsClient,
		auditService,
		tempPwService,
		cfg.Recovery.CodeLength,
		time.Duration(cfg.Recovery.CodeTTLMinutes)*time.Minute,
		cfg.Recovery.CodeMaxAttempts,
		cfg.Recovery.MaxResends,
		time.Duration(cfg.Recovery.ResendWindowMinutes)*time.Minute,
	)

	// === Handlers ===
	authHandler := handlers.NewAuthHandler(userService, authService, auditService, time.Duration(cfg.Auth.AccessTTLMinutes)*time.Minute)
	recoveryHandler := handlers.NewRecoveryHandler(verifyService, resetService, tempPwService)
	auditHandler := handlers.NewAuditHandler(auditService, detector, pdf.NewAuditReportGenerator())

	// === Detector refresh loop (dashboard cache) ===
	stopDetector := detector.Start(time.Duration(cfg.Audit.RefreshSeconds) * time.Second)
	defer stopDetector()

	// === Gin ===
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(middleware.RequestID())

	// Swagger
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	routes.SetupRoutes(router, authHandler, recoveryHandler, auditHandler)

	// === Run ===
	listenAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("server listening on %s", listenAddr)
	if err := router.Run(listenAddr); err != nil {
		log.Fatal("server failed: ", err)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
