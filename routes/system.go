package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pdf-vector-chat/internal/config"
	"pdf-vector-chat/services"
	"pdf-vector-chat/utils"
)

func SetupSystemRoutes(router *gin.Engine, cfg *config.Config, store services.PageStore, storage services.ImageStorage) {
	api := router.Group("/api")

	api.GET("/health", func(c *gin.Context) {
		ctx := c.Request.Context()

		status := "ok"
		checks := gin.H{}
		var recommendations []string

		count, err := store.Count(ctx)
		if err != nil {
			status = "degraded"
			checks["mongodb"] = gin.H{"status": "error", "error": err.Error()}
			recommendations = append(recommendations, "Check MONGODB_URI and network access to the Atlas cluster")
		} else {
			checks["mongodb"] = gin.H{"status": "ok", "records": count}
		}

		if services.CheckPdftoppm() {
			checks["pdftoppm"] = gin.H{"status": "ok"}
		} else {
			status = "degraded"
			checks["pdftoppm"] = gin.H{"status": "missing"}
			recommendations = append(recommendations, "Install poppler-utils; uploads will store placeholder pages until then")
		}

		checks["storage"] = gin.H{"status": "ok", "mode": storage.Mode()}

		c.JSON(http.StatusOK, gin.H{
			"status":          status,
			"checks":          checks,
			"recommendations": recommendations,
			"timestamp":       time.Now().UTC().Format(time.RFC3339),
		})
	})

	// Configuration diagnostics with masked secrets. Values are reported
	// as configured or missing; no live provider calls are made here.
	api.GET("/validate-config", func(c *gin.Context) {
		problems := cfg.Problems()

		overallStatus := "ready"
		if len(problems) > 0 {
			overallStatus = "warnings"
		}

		mongoBlock := gin.H{
			"configured": cfg.MongoURI != "",
			"database":   cfg.DBName,
			"collection": cfg.CollectionName,
			"index":      cfg.VectorIndexName,
		}
		if _, err := store.Count(c.Request.Context()); err != nil {
			overallStatus = "errors"
			mongoBlock["status"] = "unreachable"
			mongoBlock["error"] = err.Error()
		} else {
			mongoBlock["status"] = "connected"
		}

		c.JSON(http.StatusOK, gin.H{
			"overallStatus": overallStatus,
			"problems":      problems,
			"mongodb":       mongoBlock,
			"voyageAI": gin.H{
				"configured": cfg.VoyageAPIKey != "",
				"apiKey":     utils.MaskSecret(cfg.VoyageAPIKey),
				"model":      cfg.VoyageModel,
			},
			"serverless": gin.H{
				"configured": cfg.ServerlessURL != "",
				"url":        cfg.ServerlessURL,
			},
			"gemini": gin.H{
				"configured": cfg.GoogleAPIKey != "",
				"apiKey":     utils.MaskSecret(cfg.GoogleAPIKey),
				"model":      cfg.GeminiModel,
				"tier":       cfg.GeminiTier,
			},
			"storage": gin.H{
				"mode":           storage.Mode(),
				"blobConfigured": cfg.BlobConfigured(),
			},
		})
	})
}
