package main

import (
	"context"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"prepai-backend/internal/ai"
	"prepai-backend/internal/config"
	"prepai-backend/internal/logger"
	"prepai-backend/internal/queue"
	"prepai-backend/internal/store"
	"prepai-backend/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

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
		log.Fatal("Failed to connect to Redis:", err)
	}

	embedder := ai.NewEmbedder(cfg)
	index := services.NewMongoVectorIndex(db.Collection("note_chunks"), embedder, cfg)
	textCache := services.NewTextCache(rdb, time.Duration(cfg.TextCacheTTL)*time.Second)
	extractor := services.NewTextExtractor()

	notesService := services.NewNotesService(cfg, stores, index, embedder, extractor, textCache)
	processor := queue.NewTaskProcessor(notesService)

	server := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     rdb.Options().Addr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIngestNote, processor.ProcessIngestNote)

	logger.Info("Starting worker", "concurrency", 10, "redis", rdb.Options().Addr)
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
