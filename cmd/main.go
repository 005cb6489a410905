package main

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/cambiartech/buykoins-be-sub000/internal/config"
	"github.com/cambiartech/buykoins-be-sub000/internal/handler"
	"github.com/cambiartech/buykoins-be-sub000/internal/repository"
	"github.com/cambiartech/buykoins-be-sub000/internal/services"
	"github.com/cambiartech/buykoins-be-sub000/internal/utils"
	"github.com/cambiartech/buykoins-be-sub000/internal/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {

	baseCtx := context.Background()
	ctx, shutdownManager := utils.NewShutdownManager(baseCtx)
	shutdownManager.StartListening()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// MongoDB
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("Mongo connection failed:", err)
	}
	shutdownManager.Register(func(ctx context.Context) error {
		log.Println("[SHUTDOWN] Closing MongoDB connection...")
		return mongoClient.Disconnect(ctx)
	})
	db := mongoClient.Database(cfg.MongoDB)

	// Redis (bearer-token blacklist lookups)
	redisClient, err := utils.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatal("Redis connection failed:", err)
	}
	shutdownManager.Register(func(ctx context.Context) error {
		log.Println("[SHUTDOWN] Closing Redis connection...")
		return redisClient.Close()
	})

	// Attachment storage collaborator
	uploader, err := utils.NewUploader(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioPublicBaseURL)
	if err != nil {
		log.Fatal("Minio connection failed:", err)
	}

	// Repository, services, realtime hub
	repo := repository.NewSupportRepository(db)
	chatService := services.NewChatService(repo)
	codeService := services.NewAuthCodeService(repo)
	notifier := services.NewNotifierService(cfg.NotificationServiceURL)

	jwtUtil := utils.NewJWTUtil(cfg.JWTSecret, redisClient)
	resolver := utils.NewIdentityResolver(jwtUtil)

	hub := ws.NewHub()
	socketHandler := ws.NewSocketHandler(hub, chatService, notifier, resolver)
	shutdownManager.Register(func(ctx context.Context) error {
		log.Println("[SHUTDOWN] Closing websocket connections...")
		hub.CloseAll()
		return nil
	})

	supportHandler := handler.NewSupportHandler(chatService, codeService, uploader)

	// Router and endpoints
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(cfg.AllowedOrigins, ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Guest-Token"},
		AllowCredentials: true,
	}))

	router.GET("/ws", socketHandler.HandleConnection)

	authMiddleware := handler.AuthMiddleware(resolver)
	api := router.Group("/api/support")
	{
		api.GET("/conversations", authMiddleware, supportHandler.ListConversations)
		api.GET("/conversations/:id/messages", authMiddleware, supportHandler.GetMessages)
		api.POST("/attachments", authMiddleware, supportHandler.UploadAttachment)
		api.POST("/auth-codes/verify", supportHandler.VerifyAuthCode)

		staff := api.Group("", authMiddleware, handler.OperatorOnly())
		{
			staff.PUT("/conversations/:id/status", supportHandler.UpdateStatus)
			staff.PUT("/conversations/:id/assign", supportHandler.AssignOperator)
			staff.POST("/auth-codes", supportHandler.IssueAuthCode)
		}
	}

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Println("Support chat service running on :" + cfg.Port)
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
