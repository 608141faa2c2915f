package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	ledongpdf "github.com/ledongthuc/pdf"

	"pdf-vector-chat/internal/logger"
)

// Rendered page dimensions recorded on each page record. Actual pixel
// sizes depend on the PDF page geometry and DPI; these are the nominal
// values used for placeholders and metadata.
const (
	placeholderWidth  = 1200
	placeholderHeight = 1600
)

// CheckPdftoppm reports whether the poppler-utils renderer is on PATH.
func CheckPdftoppm() bool {
	_, err := exec.LookPath("pdftoppm")
	return err == nil
}

// ConvertPDFToImages renders every page of the PDF to PNG bytes via
// pdftoppm, in page order.
func ConvertPDFToImages(ctx context.Context, pdfData []byte, dpi int) ([][]byte, error) {
	tmpDir, err := os.MkdirTemp("", "pdf-convert-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pdfPath := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(pdfPath, pdfData, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write temp pdf: %w", err)
	}

	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-r", fmt.Sprintf("%d", dpi),
		pdfPath,
		filepath.Join(tmpDir, "page"),
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w (%s)", err, strings.TrimSpace(string(output)))
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list converted pages: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "page") && strings.HasSuffix(entry.Name(), ".png") {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no pages")
	}
	// pdftoppm zero-pads page numbers, so lexical order is page order.
	sort.Strings(names)

	pages := make([][]byte, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(tmpDir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read converted page %s: %w", name, err)
		}
		pages = append(pages, data)
	}
	return pages, nil
}

// ExtractPageTexts pulls the plain text of each page. Extraction is best
// effort: scanned PDFs or parser failures yield empty strings, never an
// error for the whole document.
func ExtractPageTexts(pdfData []byte, pageCount int) []string {
	texts := make([]string, pageCount)

	reader, err := ledongpdf.NewReader(bytes.NewReader(pdfData), int64(len(pdfData)))
	if err != nil {
		logger.Warn("PDF text extraction unavailable for document", "error", err)
		return texts
	}

	n := reader.NumPage()
	if n > pageCount {
		n = pageCount
	}
	for i := 1; i <= n; i++ {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Debug("Text extraction panicked on page", "page", i, "panic", r)
				}
			}()
			page := reader.Page(i)
			if page.V.IsNull() {
				return
			}
			text, err := page.GetPlainText(nil)
			if err != nil {
				logger.Debug("Text extraction failed on page", "page", i, "error", err)
				return
			}
			texts[i-1] = strings.TrimSpace(text)
		}()
	}
	return texts
}

// PlaceholderPageImage renders a plain light-gray page used when the PDF
// cannot be converted, so the document still gets one searchable record.
func PlaceholderPageImage() ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, placeholderWidth, placeholderHeight))
	bg := color.RGBA{R: 0xF0, G: 0xF0, B: 0xF0, A: 0xFF}
	for y := 0; y < placeholderHeight; y++ {
		for x := 0; x < placeholderWidth; x++ {
			img.Set(x, y, bg)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode placeholder image: %w", err)
	}
	return buf.Bytes(), nil
}
