package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/soriai/sori/config"
	"github.com/soriai/sori/internal/api/handlers"
	"github.com/soriai/sori/internal/api/middleware"
	"github.com/soriai/sori/internal/api/routes"
	"github.com/soriai/sori/internal/cache"
	"github.com/soriai/sori/internal/logger"
	"github.com/soriai/sori/internal/memory"
	"github.com/soriai/sori/internal/models"
	"github.com/soriai/sori/internal/providers/embedding"
	"github.com/soriai/sori/internal/providers/llm"
	"github.com/soriai/sori/internal/providers/realtime"
	"github.com/soriai/sori/internal/providers/stt"
	"github.com/soriai/sori/internal/providers/tts"
	"github.com/soriai/sori/internal/relay"
	mongorepo "github.com/soriai/sori/internal/repositories/mongo"
	pgrepo "github.com/soriai/sori/internal/repositories/postgres"
	"github.com/soriai/sori/internal/services"
	"github.com/soriai/sori/internal/storage"
	"github.com/soriai/sori/internal/workers"
)

func main() {
	_ = godotenv.Load()

	lg := logger.New()
	ctx := context.Background()

	// Init PostgreSQL
	if err := config.InitPostgres(); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	if err := config.PostgresDB.AutoMigrate(&models.Chatbot{}, &models.Log{}, &models.Message{}); err != nil {
		log.Fatalf("PostgreSQL migrate error: %v", err)
	}
	lg.Info("PostgreSQL connected")

	// Init Redis
	if err := config.InitRedis(); err != nil {
		log.Fatalf("Redis init error: %v", err)
	}
	lg.Info("Redis connected")

	// Init MongoDB; optional, only the turn-audio archive uses it
	archiveEnabled := os.Getenv("MONGO_URI") != ""
	if archiveEnabled {
		if err := config.InitMongo(); err != nil {
			log.Fatalf("MongoDB init error: %v", err)
		}
		if err := config.EnsureMongoIndexes(); err != nil {
			log.Fatalf("MongoDB index error: %v", err)
		}
		lg.Info("MongoDB connected")
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Fatal("OPENAI_API_KEY is not set")
	}
	oai := openai.NewClient(option.WithAPIKey(apiKey))

	sttProvider := buildSTT(ctx, oai)
	llmProvider := buildLLM(ctx, oai)
	ttsProvider := tts.NewOpenAI(oai)
	embedder := embedding.NewOpenAI(oai, os.Getenv("EMBEDDING_MODEL"))

	// Repositories and services
	rc := cache.NewRedisCache(config.RedisClient)
	botRepo := pgrepo.NewChatbotRepo(config.PostgresDB)
	logRepo := pgrepo.NewLogRepo(config.PostgresDB)

	botSvc := services.NewChatbotService(botRepo, rc)
	logSvc := services.NewLogService(logRepo, embedder, lg)
	summarizer := services.NewHistorySummarizer(llmProvider, os.Getenv("SUMMARY_MODEL"))
	registry := memory.NewRegistry(botSvc, summarizer, lg)

	deps := relay.Deps{
		Memory:          registry,
		Bots:            botSvc,
		Logs:            logSvc,
		STT:             sttProvider,
		LLM:             llmProvider,
		TTS:             ttsProvider,
		Realtime:        realtime.NewOpenAIDialer(apiKey),
		Logger:          lg,
		ProviderTimeout: parseTimeout(os.Getenv("PROVIDER_TIMEOUT")),
	}

	// Turn-audio archive: Mongo metadata, Redis stream, GCS upload
	bucket := os.Getenv("GCS_BUCKET")
	if archiveEnabled && bucket != "" {
		dbName := os.Getenv("MONGO_DB")
		if dbName == "" {
			dbName = "sori"
		}
		archRepo := mongorepo.NewArchiveRepo(config.MongoClient.Database(dbName))
		archSvc := services.NewArchiveService(archRepo, config.RedisClient, 0)
		deps.Archive = archSvc

		uploader, err := storage.NewGCSUploader(ctx, bucket, os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
		if err != nil {
			log.Fatalf("GCS init error: %v", err)
		}
		pool := &workers.ArchiveWorkerPool{
			Redis:    config.RedisClient,
			Archives: archSvc,
			Uploader: uploader,
			Logger:   lg,
		}
		if err := pool.Start(ctx); err != nil {
			log.Fatalf("archive worker start error: %v", err)
		}
		lg.Info("turn-audio archive enabled")
	}

	// Start Gin server
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(lg))

	routes.RegisterRoutes(r, routes.Deps{
		WS:    handlers.NewWSHandler(deps),
		Admin: handlers.NewAdminHandler(botSvc, logSvc),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func buildSTT(ctx context.Context, oai openai.Client) stt.Provider {
	if os.Getenv("AI_STT_PROVIDER") == "google" {
		p, err := stt.NewGoogleSpeech(ctx, os.Getenv("GOOGLE_STT_LANGUAGE"))
		if err != nil {
			log.Fatalf("Google Speech init error: %v", err)
		}
		return p
	}
	return stt.NewOpenAI(oai)
}

func buildLLM(ctx context.Context, oai openai.Client) llm.Provider {
	if os.Getenv("AI_LLM_PROVIDER") == "vertex" {
		p, err := llm.NewVertexGemini(ctx,
			os.Getenv("GCP_PROJECT_ID"),
			os.Getenv("GCP_LOCATION"),
			os.Getenv("VERTEX_MODEL"),
		)
		if err != nil {
			log.Fatalf("Vertex init error: %v", err)
		}
		return p
	}
	return llm.NewOpenAI(oai)
}

func parseTimeout(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0
	}
	return d
}
