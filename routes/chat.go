package routes

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pdf-vector-chat/internal/logger"
	"pdf-vector-chat/services"
	"pdf-vector-chat/utils"
)

// Pages retrieved per question.
const chatRetrievalLimit = 5

type chatRequest struct {
	Message    string `json:"message" binding:"required"`
	DocumentID string `json:"document_id"`
}

type summarizeRequest struct {
	DocumentID string `json:"document_id" binding:"required"`
}

func SetupChatRoutes(router *gin.Engine, engine *services.Engine, synth *services.Synthesizer) {
	api := router.Group("/api")

	api.POST("/chat", func(c *gin.Context) {
		var req chatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		query := strings.TrimSpace(req.Message)
		if query == "" {
			utils.RespondWithBadRequest(c, "Message cannot be empty", nil)
			return
		}

		ctx := c.Request.Context()
		results, method, err := engine.Retrieve(ctx, query, req.DocumentID, chatRetrievalLimit)
		if err != nil {
			logger.Error("Retrieval failed", "error", err)
			utils.RespondWithInternalError(c, "Search failed", nil)
			return
		}

		answer, err := synth.Synthesize(ctx, query, results)
		if err != nil {
			logger.Error("Answer synthesis failed", "error", err)
			utils.RespondWithInternalError(c, "Failed to generate answer", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"response":         answer.Text,
			"sources":          answer.Sources,
			"referenced_pages": services.ExtractPageReferences(answer.Text),
			"debug": gin.H{
				"search_method": method,
				"results_found": len(results),
				"document_id":   req.DocumentID,
			},
		})
	})

	api.POST("/summarize", func(c *gin.Context) {
		var req summarizeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "document_id is required", gin.H{"error": err.Error()})
			return
		}

		summary, pages, err := synth.SummarizeDocument(c.Request.Context(), engine, req.DocumentID)
		if err != nil {
			logger.Error("Document summarization failed", "document_id", req.DocumentID, "error", err)
			utils.RespondWithNotFound(c, "Could not summarize document: "+err.Error())
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"summary":        summary,
			"pages_analyzed": pages,
			"document_id":    req.DocumentID,
		})
	})
}
