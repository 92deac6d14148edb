package main

import (
	"context"
	"log"
	"net/http"

	"chem-admin/internal/config"
	"chem-admin/internal/handler"
	"chem-admin/internal/repository"
	"chem-admin/internal/services"
	"chem-admin/internal/utils"
	"chem-admin/internal/utils/push"
	"chem-admin/internal/utils/sms"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	// 1. Context and shutdown manager
	baseCtx := context.Background()
	ctx, shutdownManager := utils.NewShutdownManager(baseCtx)
	shutdownManager.StartListening()

	// 2. Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// 3. MongoDB
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	db := mongoClient.Database(cfg.DatabaseName)

	shutdownManager.Register(func(ctx context.Context) error {
		log.Println("[SHUTDOWN] Closing MongoDB connection...")
		return mongoClient.Disconnect(ctx)
	})

	// 4. Redis
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal("Invalid Redis URL:", err)
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to ping Redis:", err)
	}

	shutdownManager.Register(func(ctx context.Context) error {
		log.Println("[SHUTDOWN] Closing Redis connection...")
		return rdb.Close()
	})

	// 5. Delivery collaborators
	var pushSender services.PushSender
	if cfg.FirebaseCredentials != "" {
		fcmClient, err := push.NewFCMClient(ctx, cfg.FirebaseCredentials)
		if err != nil {
			log.Printf("FCM disabled: %v", err)
		} else {
			pushSender = fcmClient
		}
	}

	var smsSender services.SMSSender
	if cfg.TwilioAccountSID != "" {
		smsSender = sms.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
	}

	var mailer services.Mailer
	if cfg.SMTPHost != "" {
		mailer = services.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
	}

	// 6. Layers
	quotationRepo := repository.NewQuotationRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	logRepo := repository.NewDeliveryLogRepository(db)
	userRepo := repository.NewUserRepository(db)
	reviewRepo := repository.NewReviewRepository(db)

	bus := utils.NewEventBus(rdb)
	notificationService := services.NewNotificationService(notificationRepo, tokenRepo, logRepo, userRepo, pushSender, smsSender, bus)
	threadService := services.NewThreadService(quotationRepo, notificationService)
	reviewService := services.NewReviewService(reviewRepo, logRepo, notificationService, mailer)

	quotationHandler := handler.NewQuotationHandler(threadService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	reviewHandler := handler.NewReviewHandler(reviewService)

	// 7. Inbound business events
	go notificationService.StartEventSubscribers(ctx, rdb)

	// 8. Routes
	router := gin.Default()
	router.Use(cors.Default())

	jwtUtil := utils.NewJWTUtil(cfg.JWTSecret)
	api := router.Group("/api")
	api.Use(utils.AuthMiddleware(jwtUtil))

	quotations := api.Group("/quotations")
	{
		quotations.POST("/", quotationHandler.CreateQuotation)
		quotations.GET("/", utils.RequireAdmin(), quotationHandler.GetQuotations)
		quotations.GET("/:id", quotationHandler.GetQuotation)
		quotations.GET("/:id/messages", quotationHandler.GetMessages)
		quotations.POST("/:id/messages", quotationHandler.CreateMessage)
		quotations.PUT("/:id/messages/read", quotationHandler.MarkMessagesAsRead)
		quotations.GET("/:id/messages/unread-count", quotationHandler.GetUnreadMessageCount)
		quotations.POST("/:id/closure/request", utils.RequireAdmin(), quotationHandler.RequestClosure)
		quotations.POST("/:id/closure/grant", quotationHandler.GrantClosurePermission)
		quotations.POST("/:id/closure/reject", quotationHandler.RejectClosureRequest)
		quotations.POST("/:id/close", utils.RequireAdmin(), quotationHandler.CloseThread)
	}

	notifications := api.Group("/notifications")
	{
		notifications.POST("/", utils.RequireAdmin(), notificationHandler.CreateNotification)
		notifications.GET("/", notificationHandler.GetNotifications)
		notifications.GET("/unread-count", notificationHandler.GetUnreadCount)
		notifications.PUT("/read", notificationHandler.MarkMultipleAsRead)
		notifications.PUT("/read-all", notificationHandler.MarkAllAsRead)
		notifications.PUT("/:id/read", notificationHandler.MarkAsRead)
		notifications.DELETE("/expired", utils.RequireAdmin(), notificationHandler.DeleteExpired)
		notifications.DELETE("/:id", utils.RequireAdmin(), notificationHandler.DeleteNotification)
		notifications.POST("/tokens", notificationHandler.RegisterToken)
		notifications.DELETE("/tokens/:token", notificationHandler.UnregisterToken)
	}

	reviews := api.Group("/reviews")
	{
		reviews.POST("/", reviewHandler.SubmitReview)
		reviews.GET("/", utils.RequireAdmin(), reviewHandler.ListReviews)
		reviews.PUT("/:id/moderate", utils.RequireAdmin(), reviewHandler.ModerateReview)
		reviews.POST("/:id/report", reviewHandler.ReportReview)
	}

	// 9. HTTP server
	server := &http.Server{
		Addr:    cfg.ServerPort,
		Handler: router,
	}

	go func() {
		log.Println("chem-admin running on", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	shutdownManager.Register(func(ctx context.Context) error {
		log.Println("[SHUTDOWN] Shutting down HTTP server...")
		return server.Shutdown(ctx)
	})

	select {}
}
