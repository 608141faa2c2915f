package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pdf-vector-chat/internal/logger"
	"pdf-vector-chat/services"
	"pdf-vector-chat/utils"
)

type cleanRequest struct {
	KeepDocumentID string `json:"keep_document_id"`
}

type documentCheckRequest struct {
	DocumentID string `json:"document_id" binding:"required"`
}

func SetupAdminRoutes(router *gin.Engine, store services.PageStore, pdfSvc *services.PDFService) {
	api := router.Group("/api")

	// Remove every record except an optionally kept document. Without
	// keep_document_id the whole collection is wiped.
	api.POST("/admin/clean", func(c *gin.Context) {
		var req cleanRequest
		_ = c.ShouldBindJSON(&req)

		ctx := c.Request.Context()
		var deleted int64
		var err error
		if req.KeepDocumentID != "" {
			deleted, err = store.DeleteAllExcept(ctx, req.KeepDocumentID)
		} else {
			deleted, err = store.DeleteAll(ctx)
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Cleanup failed", gin.H{"error": err.Error()})
			return
		}

		logger.Info("Database cleanup completed",
			"deleted", deleted, "kept_document", req.KeepDocumentID)
		c.JSON(http.StatusOK, gin.H{
			"deleted_count":    deleted,
			"kept_document_id": req.KeepDocumentID,
		})
	})

	// Remove one document's records and stored page images.
	api.POST("/admin/reset/:documentId", func(c *gin.Context) {
		documentID := c.Param("documentId")

		deleted, err := pdfSvc.DeleteDocument(c.Request.Context(), documentID)
		if err != nil {
			utils.RespondWithInternalError(c, "Reset failed", gin.H{"error": err.Error()})
			return
		}

		logger.Info("Document reset", "document_id", documentID, "deleted", deleted)
		c.JSON(http.StatusOK, gin.H{
			"document_id":   documentID,
			"deleted_count": deleted,
		})
	})

	// Inspect collection state: totals, per-document counts, and sample
	// records with their embedding lengths.
	api.GET("/admin/debug", func(c *gin.Context) {
		ctx := c.Request.Context()
		documentID := c.Query("documentId")

		total, err := store.Count(ctx)
		if err != nil {
			utils.RespondWithInternalError(c, "Debug query failed", gin.H{"error": err.Error()})
			return
		}

		docs, err := store.ListDocuments(ctx)
		if err != nil {
			utils.RespondWithInternalError(c, "Debug query failed", gin.H{"error": err.Error()})
			return
		}

		samples, err := store.SampleRecords(ctx, documentID, 5)
		if err != nil {
			utils.RespondWithInternalError(c, "Debug query failed", gin.H{"error": err.Error()})
			return
		}

		sampleInfo := make([]gin.H, 0, len(samples))
		for _, rec := range samples {
			sampleInfo = append(sampleInfo, gin.H{
				"document_id":      rec.DocumentID,
				"page_number":      rec.PageNumber,
				"content_length":   len(rec.Content),
				"embedding_length": len(rec.Embedding),
				"storage_type":     rec.StorageType,
				"key":              rec.Key,
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"total_records": total,
			"documents":     docs,
			"samples":       sampleInfo,
		})
	})

	// List ingested documents with page counts.
	api.GET("/documents", func(c *gin.Context) {
		docs, err := store.ListDocuments(c.Request.Context())
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list documents", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
	})

	// Report whether a document has any stored pages.
	api.POST("/documents/check", func(c *gin.Context) {
		var req documentCheckRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "document_id is required", gin.H{"error": err.Error()})
			return
		}

		count, err := store.CountByDocument(c.Request.Context(), req.DocumentID)
		if err != nil {
			utils.RespondWithInternalError(c, "Document check failed", gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"document_id": req.DocumentID,
			"exists":      count > 0,
			"page_count":  count,
		})
	})
}
