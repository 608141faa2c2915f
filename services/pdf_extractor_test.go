package services

import (
	"bytes"
	"image/png"
	"testing"
)

func TestPlaceholderPageImageIsValidPNG(t *testing.T) {
	data, err := PlaceholderPageImage()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("placeholder is not a decodable PNG: %v", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() != placeholderWidth || bounds.Dy() != placeholderHeight {
		t.Errorf("unexpected dimensions: %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestExtractPageTextsToleratesBrokenPDFs(t *testing.T) {
	texts := ExtractPageTexts([]byte("not a pdf at all"), 3)
	if len(texts) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(texts))
	}
	for i, text := range texts {
		if text != "" {
			t.Errorf("entry %d not empty: %q", i, text)
		}
	}
}
