package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"prepai-backend/internal/ai"
	"prepai-backend/internal/config"
	"prepai-backend/internal/logger"
	"prepai-backend/internal/store"
	"prepai-backend/internal/telemetry"
	"prepai-backend/middleware"
	"prepai-backend/routes"
	"prepai-backend/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("prepai-backend")
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
		shutdownTracer = func() {}
	}
	defer shutdownTracer()

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	db := mongoClient.Database(cfg.DBName)
	stores := store.NewStores(db)

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, caching and rate limiting disabled", "error", err)
		rdb = nil
	}

	geminiClient, err := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTier)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer geminiClient.Close()

	embedder := ai.NewEmbedder(cfg)
	index := services.NewMongoVectorIndex(db.Collection("note_chunks"), embedder, cfg)
	textCache := services.NewTextCache(rdb, time.Duration(cfg.TextCacheTTL)*time.Second)
	extractor := services.NewTextExtractor()

	notesService := services.NewNotesService(cfg, stores, index, embedder, extractor, textCache)
	chatService := services.NewChatService(cfg, geminiClient, stores.Messages)
	searchService := services.NewSearchService(index, cfg.SearchTopK)
	quizService := services.NewQuizService(geminiClient)

	var asynqClient *asynq.Client
	if rdb != nil {
		asynqClient = asynq.NewClient(asynq.RedisClientOpt{
			Addr:     rdb.Options().Addr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer asynqClient.Close()
	}

	sweep := services.NewReconcileScheduler(cfg, notesService)
	if err := sweep.Start(); err != nil {
		logger.Error("Failed to start reconcile sweep", "error", err)
	}
	defer sweep.Stop()

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	router.Use(middleware.RateLimitMiddleware(rdb, cfg))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	authMiddleware := middleware.NewAuthMiddleware(cfg)

	routes.SetupAuthRoutes(router, cfg, stores)
	routes.SetupNotesRoutes(router, &routes.NotesDeps{
		Cfg:         cfg,
		Stores:      stores,
		Notes:       notesService,
		Chat:        chatService,
		Search:      searchService,
		AsynqClient: asynqClient,
	}, authMiddleware)
	routes.SetupQuizRoutes(router, &routes.QuizDeps{
		Quiz:   quizService,
		Search: searchService,
		Index:  index,
	}, authMiddleware)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}
