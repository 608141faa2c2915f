package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"pdf-vector-chat/internal/ai"
	"pdf-vector-chat/internal/config"
	"pdf-vector-chat/internal/logger"
	"pdf-vector-chat/internal/telemetry"
	"pdf-vector-chat/middleware"
	"pdf-vector-chat/routes"
	"pdf-vector-chat/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)
	for _, problem := range cfg.Problems() {
		logger.Warn("Configuration problem", "problem", problem)
	}

	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("pdf-vector-chat", cfg.OTLPEndpoint)
		if err != nil {
			logger.Error("Failed to initialize tracing", "error", err)
		} else {
			defer shutdown()
		}
	}

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, embedding cache disabled", "error", err)
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	embedder, err := ai.NewEmbedder(cfg, rdb)
	if err != nil {
		log.Fatal("Failed to configure embeddings:", err)
	}

	gemini, err := ai.NewGeminiClient(cfg.GoogleAPIKey, cfg.GeminiModel, cfg.GeminiTier)
	if err != nil {
		log.Fatal("Failed to configure generative model:", err)
	}
	defer gemini.Close()

	storage, err := services.NewImageStorage(cfg)
	if err != nil {
		log.Fatal("Failed to initialize image storage:", err)
	}

	store := services.NewMongoPageStore(mongoClient, cfg)
	engine := services.NewEngine(store, embedder, cfg.StrictScope)
	synth := services.NewSynthesizer(gemini, storage)
	pdfSvc := services.NewPDFService(cfg, store, embedder, storage)

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	if cfg.TracingEnabled {
		router.Use(otelgin.Middleware("pdf-vector-chat"))
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	// Locally stored page images are served statically; blob images are
	// addressed by their public URLs.
	if storage.Mode() == "local" {
		router.Static("/pdf-pages", filepath.Join(cfg.FileStorageDir, "pdf-pages"))
	}

	routes.SetupChatRoutes(router, engine, synth)
	routes.SetupUploadRoutes(router, cfg, pdfSvc)
	routes.SetupAdminRoutes(router, store, pdfSvc)
	routes.SetupSystemRoutes(router, cfg, store, storage)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port, "storage", storage.Mode())
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
