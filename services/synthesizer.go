package services

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	genai "github.com/google/generative-ai-go/genai"

	"pdf-vector-chat/internal/logger"
	"pdf-vector-chat/models"
)

// NotFoundMessage is returned verbatim when no tier produced results.
// No model call is made in that case.
const NotFoundMessage = "I couldn't find any relevant information in the uploaded documents. Please make sure you've uploaded a PDF first."

const answerSystemPrompt = `You are a helpful AI assistant analyzing PDF documents.
Answer the user's question based ONLY on the provided page content and images.
If the information is not clearly visible in the provided pages, say "I cannot find that information in the provided pages."
Be specific and cite page numbers when possible.

IMPORTANT: When referring to content from the document, always mention the specific page number(s) where the information can be found.
Format page references as "page X" or "on page X" so they can be easily identified.`

const summarySystemPrompt = `You are analyzing a PDF document to create a welcome summary for users.

TASK: Create a brief, engaging summary of this document that will serve as the first message in a chat interface.

REQUIREMENTS:
1. Write 2-3 paragraphs maximum
2. Identify the document type (research paper, manual, report, etc.)
3. Highlight the main topics and key themes
4. End with an invitation for the user to ask specific questions
5. Be conversational and welcoming

STYLE: Write as a helpful AI assistant introducing the document to someone who just uploaded it.
Begin with something like "I've analyzed your document..." or "I've processed your PDF..."

FORMAT: Return only the summary text, no additional formatting or metadata.`

// AnswerModel generates text from a sequence of parts. Satisfied by
// ai.GeminiClient; tests substitute a fake.
type AnswerModel interface {
	Generate(ctx context.Context, parts ...genai.Part) (string, error)
}

// Synthesizer assembles retrieved pages into a prompt and produces a
// natural-language answer with page citations.
type Synthesizer struct {
	model      AnswerModel
	storage    ImageStorage
	httpClient *http.Client

	// IncludeImages attaches the rendered page images to the prompt when
	// their keys can be resolved.
	IncludeImages bool
}

func NewSynthesizer(model AnswerModel, storage ImageStorage) *Synthesizer {
	return &Synthesizer{
		model:         model,
		storage:       storage,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		IncludeImages: true,
	}
}

// Synthesize answers the query from the retrieved results. An empty
// result set short-circuits to the fixed not-found message.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, results []models.QueryResult) (models.Answer, error) {
	if len(results) == 0 {
		return models.Answer{Text: NotFoundMessage, Sources: []models.Source{}}, nil
	}

	parts := []genai.Part{
		genai.Text(answerSystemPrompt),
		genai.Text("User question: " + query),
		genai.Text("Here is the relevant content from the document:\n\n" + buildContext(results)),
	}

	if s.IncludeImages {
		for _, r := range results {
			if r.Key == "" {
				continue
			}
			data, err := s.loadImage(ctx, r.Key)
			if err != nil {
				logger.Warn("Failed to load page image", "key", r.Key, "error", err)
				continue
			}
			parts = append(parts, genai.ImageData("png", data))
		}
	}

	parts = append(parts, genai.Text("Please provide a clear and concise answer based on these pages."))

	text, err := s.model.Generate(ctx, parts...)
	if err != nil {
		return models.Answer{}, fmt.Errorf("answer synthesis failed: %w", err)
	}

	sources := make([]models.Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, models.Source{Page: r.PageNumber, Score: r.Score})
	}
	return models.Answer{Text: text, Sources: sources}, nil
}

// SummarizeDocument samples diverse pages of one document through the
// retrieval engine and generates a welcome summary.
func (s *Synthesizer) SummarizeDocument(ctx context.Context, engine *Engine, documentID string) (string, []int, error) {
	sampleQueries := []string{
		"main content overview summary",
		"key topics themes concepts",
		"introduction abstract executive summary",
		"table of contents structure outline",
	}

	var collected []models.QueryResult
	seen := make(map[int]bool)
	for _, q := range sampleQueries {
		results, _, err := engine.Retrieve(ctx, q, documentID, 3)
		if err != nil {
			logger.Warn("Summary sampling query failed", "query", q, "error", err)
			continue
		}
		for _, r := range results {
			if !seen[r.PageNumber] && len(collected) < 8 {
				collected = append(collected, r)
				seen[r.PageNumber] = true
			}
		}
	}

	if len(collected) == 0 {
		return "", nil, fmt.Errorf("could not find document content for summarization")
	}

	pages := make([]int, 0, len(collected))
	for _, r := range collected {
		pages = append(pages, r.PageNumber)
	}
	sort.Ints(pages)

	pageList := make([]string, len(pages))
	for i, p := range pages {
		pageList[i] = strconv.Itoa(p)
	}

	parts := []genai.Part{
		genai.Text(summarySystemPrompt),
		genai.Text("Pages included in this analysis: " + strings.Join(pageList, ", ")),
		genai.Text(buildContext(collected)),
	}

	if s.IncludeImages {
		for _, r := range collected {
			if r.Key == "" {
				continue
			}
			data, err := s.loadImage(ctx, r.Key)
			if err != nil {
				continue
			}
			parts = append(parts, genai.ImageData("png", data))
		}
	}

	summary, err := s.model.Generate(ctx, parts...)
	if err != nil {
		return "", nil, fmt.Errorf("summary generation failed: %w", err)
	}
	return summary, pages, nil
}

// buildContext concatenates the textual fields of each result, labeled
// by page number.
func buildContext(results []models.QueryResult) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Page %d:", r.PageNumber)
		if r.Content != "" {
			b.WriteString("\n- Content: " + r.Content)
		}
		if r.Summary != "" {
			b.WriteString("\n- Summary: " + r.Summary)
		}
		if len(r.Topics) > 0 {
			b.WriteString("\n- Topics: " + strings.Join(r.Topics, ", "))
		}
	}
	return b.String()
}

// loadImage resolves a page key to image bytes: blob URLs are fetched
// over HTTP, anything else is a storage path.
func (s *Synthesizer) loadImage(ctx context.Context, key string) ([]byte, error) {
	if strings.HasPrefix(key, "http") {
		return fetchURL(ctx, s.httpClient, key)
	}
	if s.storage == nil {
		return nil, fmt.Errorf("no image storage configured")
	}
	return s.storage.Load(ctx, key)
}

var pageRefPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bon\s+page\s+(\d+)`),
	regexp.MustCompile(`(?i)\bpage\s+(\d+)`),
	regexp.MustCompile(`(?i)\bp\.?\s*(\d+)`),
}

// ExtractPageReferences scans answer text for page citations, returning
// deduplicated page numbers in ascending order. Values outside 1..100
// are discarded to avoid false positives from unrelated arithmetic.
func ExtractPageReferences(text string) []int {
	seen := make(map[int]bool)
	for _, pattern := range pageRefPatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			n, err := strconv.Atoi(match[1])
			if err != nil {
				continue
			}
			if n >= 1 && n <= 100 {
				seen[n] = true
			}
		}
	}

	pages := make([]int, 0, len(seen))
	for n := range seen {
		pages = append(pages, n)
	}
	sort.Ints(pages)
	return pages
}
