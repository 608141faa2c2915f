package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pdf-vector-chat/internal/config"
	"pdf-vector-chat/internal/logger"
	"pdf-vector-chat/models"
	"pdf-vector-chat/services"
	"pdf-vector-chat/utils"
)

func SetupUploadRoutes(router *gin.Engine, cfg *config.Config, pdfSvc *services.PDFService) {
	api := router.Group("/api")

	// Synchronous upload: blocks until ingestion finishes.
	api.POST("/upload", func(c *gin.Context) {
		pdfData, documentID, ok := readUpload(c, cfg, pdfSvc)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(),
			time.Duration(cfg.IngestTimeoutSecs)*time.Second)
		defer cancel()

		result := pdfSvc.Ingest(ctx, pdfData, documentID, nil)
		if !result.Success {
			c.JSON(http.StatusUnprocessableEntity, result)
			return
		}
		c.JSON(http.StatusOK, result)
	})

	// Streaming upload: emits newline-delimited JSON progress snapshots
	// followed by a final result line. Client disconnect cancels the
	// ingestion through the request context.
	api.POST("/upload/progress", func(c *gin.Context) {
		pdfData, documentID, ok := readUpload(c, cfg, pdfSvc)
		if !ok {
			return
		}

		c.Header("Content-Type", "application/x-ndjson")
		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)

		writer := c.Writer
		flusher, _ := writer.(http.Flusher)
		enc := json.NewEncoder(writer)

		writeLine := func(v interface{}) {
			if err := enc.Encode(v); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(),
			time.Duration(cfg.IngestTimeoutSecs)*time.Second)
		defer cancel()

		result := pdfSvc.Ingest(ctx, pdfData, documentID, func(p models.ProcessingProgress) {
			writeLine(gin.H{"type": "progress", "progress": p})
		})

		if result.Success {
			writeLine(gin.H{"type": "complete", "result": result})
		} else {
			writeLine(gin.H{"type": "error", "result": result})
		}
	})
}

// readUpload validates and buffers the multipart PDF. A missing
// document_id field gets a fresh UUID.
func readUpload(c *gin.Context, cfg *config.Config, pdfSvc *services.PDFService) ([]byte, string, bool) {
	fileHeader, err := c.FormFile("pdf")
	if err != nil {
		utils.RespondWithBadRequest(c, "No PDF file provided (field name: pdf)", nil)
		return nil, "", false
	}

	file, err := fileHeader.Open()
	if err != nil {
		utils.RespondWithInternalError(c, "Failed to read uploaded file", nil)
		return nil, "", false
	}
	defer file.Close()

	pdfData, err := io.ReadAll(io.LimitReader(file, cfg.MaxFileSize+1))
	if err != nil {
		utils.RespondWithInternalError(c, "Failed to read uploaded file", nil)
		return nil, "", false
	}

	head := pdfData
	if len(head) > 8 {
		head = head[:8]
	}
	if err := pdfSvc.ValidatePDF(fileHeader.Filename, int64(len(pdfData)), head); err != nil {
		utils.RespondWithBadRequest(c, err.Error(), nil)
		return nil, "", false
	}

	documentID := c.PostForm("document_id")
	if documentID == "" {
		documentID = uuid.NewString()
	}

	logger.Info("PDF upload accepted",
		"document_id", documentID,
		"filename", fileHeader.Filename,
		"size", len(pdfData))
	return pdfData, documentID, true
}
