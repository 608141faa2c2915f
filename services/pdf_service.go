package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"pdf-vector-chat/internal/ai"
	"pdf-vector-chat/internal/config"
	"pdf-vector-chat/internal/logger"
	"pdf-vector-chat/models"
)

// Content is truncated before storage so keyword search stays cheap and
// page records stay small.
const maxContentLength = 4000

// PDFService runs the ingestion pipeline: render pages, extract text,
// embed, store.
type PDFService struct {
	cfg      *config.Config
	store    PageStore
	embedder ai.Embedder
	storage  ImageStorage
}

func NewPDFService(cfg *config.Config, store PageStore, embedder ai.Embedder, storage ImageStorage) *PDFService {
	return &PDFService{cfg: cfg, store: store, embedder: embedder, storage: storage}
}

// ValidatePDF rejects uploads before any expensive work: extension,
// size limit, and the %PDF magic bytes.
func (p *PDFService) ValidatePDF(filename string, size int64, head []byte) error {
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return fmt.Errorf("only PDF files are supported")
	}
	if size <= 0 {
		return fmt.Errorf("file is empty")
	}
	if size > p.cfg.MaxFileSize {
		return fmt.Errorf("file exceeds maximum size of %d MB", p.cfg.MaxFileSize/(1024*1024))
	}
	if !bytes.HasPrefix(head, []byte("%PDF")) {
		return fmt.Errorf("file is not a valid PDF")
	}
	return nil
}

// Ingest processes one PDF end to end, reporting progress through the
// optional callback. Existing records for the document are replaced, so
// re-uploading the same documentID never duplicates pages.
func (p *PDFService) Ingest(ctx context.Context, pdfData []byte, documentID string, onProgress models.ProgressCallback) models.IngestResult {
	tracer := otel.Tracer("pdf-service")
	ctx, span := tracer.Start(ctx, "pdf.ingest")
	defer span.End()
	span.SetAttributes(attribute.String("pdf.document_id", documentID))

	prog := newProgressTracker(onProgress)
	prog.start(0, "Preparing document")

	if err := p.store.EnsureVectorIndex(ctx); err != nil {
		// Index creation is idempotent on Atlas; local deployments
		// without search support still work through the fallback tiers.
		logger.Warn("Vector index setup failed", "error", err)
	}
	prog.complete(0, "Ready")

	prog.start(1, "Converting PDF pages to images")
	pages, err := ConvertPDFToImages(ctx, pdfData, p.cfg.ConvertDPI)
	if err != nil {
		logger.Warn("PDF conversion failed, storing placeholder page",
			"document_id", documentID, "error", err)
		placeholder, perr := PlaceholderPageImage()
		if perr != nil {
			prog.fail(1, perr.Error())
			return models.IngestResult{Success: false, DocumentID: documentID, Message: "PDF conversion failed: " + err.Error()}
		}
		pages = [][]byte{placeholder}
	}
	prog.complete(1, fmt.Sprintf("Converted %d pages", len(pages)))

	prog.start(2, "Embedding and storing pages")
	texts := ExtractPageTexts(pdfData, len(pages))

	records := make([]models.PageRecord, 0, len(pages))
	for i, imageData := range pages {
		pageNumber := i + 1

		key, err := p.storage.SavePageImage(ctx, documentID, pageNumber, imageData)
		if err != nil {
			logger.Error("Failed to store page image", "page", pageNumber, "error", err)
			continue
		}

		input := ai.Input{Role: ai.RoleDocument}
		if texts[i] != "" {
			input.Text = texts[i]
		} else {
			input.Image = imageData
		}

		embedding, err := p.embedder.Embed(ctx, input)
		if err != nil {
			logger.Error("Failed to embed page", "page", pageNumber, "error", err)
			continue
		}

		content := texts[i]
		if len(content) > maxContentLength {
			content = content[:maxContentLength]
		}

		records = append(records, models.PageRecord{
			DocumentID:  documentID,
			PageNumber:  pageNumber,
			Content:     content,
			Key:         key,
			Width:       placeholderWidth,
			Height:      placeholderHeight,
			Embedding:   embedding,
			StorageType: p.storage.Mode(),
			CreatedAt:   time.Now(),
		})

		prog.detail(2, fmt.Sprintf("Processed page %d of %d", pageNumber, len(pages)),
			pageNumber*100/len(pages))
	}

	if len(records) == 0 {
		prog.fail(2, "No pages could be processed")
		return models.IngestResult{
			Success:    false,
			DocumentID: documentID,
			Message:    "No pages could be processed",
		}
	}

	if err := p.store.ReplacePages(ctx, documentID, records); err != nil {
		prog.fail(2, err.Error())
		return models.IngestResult{
			Success:    false,
			DocumentID: documentID,
			Message:    "Failed to store pages: " + err.Error(),
		}
	}
	prog.complete(2, fmt.Sprintf("Stored %d pages", len(records)))

	span.SetAttributes(attribute.Int("pdf.pages_stored", len(records)))
	logger.Info("Document ingested", "document_id", documentID, "pages", len(records))

	return models.IngestResult{
		Success:    true,
		PageCount:  len(records),
		DocumentID: documentID,
		Message:    fmt.Sprintf("Successfully processed %d pages", len(records)),
	}
}

// DeleteDocument removes a document's records and stored images.
func (p *PDFService) DeleteDocument(ctx context.Context, documentID string) (int64, error) {
	deleted, err := p.store.DeleteDocument(ctx, documentID)
	if err != nil {
		return 0, err
	}
	if err := p.storage.DeleteDocument(ctx, documentID); err != nil {
		logger.Warn("Failed to delete stored images", "document_id", documentID, "error", err)
	}
	return deleted, nil
}

// progressTracker maintains the step snapshot sent to callbacks.
type progressTracker struct {
	callback models.ProgressCallback
	steps    []models.ProgressStep
	current  int
}

func newProgressTracker(callback models.ProgressCallback) *progressTracker {
	return &progressTracker{
		callback: callback,
		steps: []models.ProgressStep{
			{ID: "setup", Title: "Setup", Description: "Preparing storage and indexes", Status: models.StepPending},
			{ID: "convert", Title: "Convert", Description: "Rendering PDF pages to images", Status: models.StepPending},
			{ID: "process", Title: "Process", Description: "Embedding and storing pages", Status: models.StepPending},
		},
	}
}

func (t *progressTracker) start(step int, details string) {
	t.current = step
	t.steps[step].Status = models.StepInProgress
	t.steps[step].Details = details
	t.steps[step].Progress = 0
	t.emit()
}

func (t *progressTracker) detail(step int, details string, progress int) {
	t.steps[step].Details = details
	t.steps[step].Progress = progress
	t.emit()
}

func (t *progressTracker) complete(step int, details string) {
	t.steps[step].Status = models.StepCompleted
	t.steps[step].Details = details
	t.steps[step].Progress = 100
	t.emit()
}

func (t *progressTracker) fail(step int, details string) {
	t.steps[step].Status = models.StepError
	t.steps[step].Details = details
	t.emit()
}

func (t *progressTracker) emit() {
	if t.callback == nil {
		return
	}
	total := 0
	for _, s := range t.steps {
		total += s.Progress
	}
	snapshot := models.ProcessingProgress{
		CurrentStep:     t.current,
		TotalSteps:      len(t.steps),
		Steps:           append([]models.ProgressStep(nil), t.steps...),
		OverallProgress: total / len(t.steps),
	}
	t.callback(snapshot)
}
