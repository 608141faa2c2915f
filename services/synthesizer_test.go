package services

import (
	"context"
	"reflect"
	"strings"
	"testing"

	genai "github.com/google/generative-ai-go/genai"

	"pdf-vector-chat/models"
)

// fakeModel records calls and returns a canned response.
type fakeModel struct {
	response string
	calls    int
}

func (f *fakeModel) Generate(ctx context.Context, parts ...genai.Part) (string, error) {
	f.calls++
	return f.response, nil
}

func TestSynthesizeEmptyResultsSkipsModel(t *testing.T) {
	model := &fakeModel{response: "should never be used"}
	synth := NewSynthesizer(model, nil)
	synth.IncludeImages = false

	answer, err := synth.Synthesize(context.Background(), "what is this about?", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer.Text != NotFoundMessage {
		t.Errorf("expected the fixed not-found message, got %q", answer.Text)
	}
	if len(answer.Sources) != 0 {
		t.Errorf("expected no sources, got %+v", answer.Sources)
	}
	if model.calls != 0 {
		t.Errorf("model was called %d times for empty results", model.calls)
	}
}

func TestSynthesizeReturnsSourcesPerResult(t *testing.T) {
	model := &fakeModel{response: "The methodology appears on page 3, with results on page 7."}
	synth := NewSynthesizer(model, nil)
	synth.IncludeImages = false

	results := []models.QueryResult{
		{DocumentID: "doc-1", PageNumber: 3, Score: 0.91, Content: "methodology"},
		{DocumentID: "doc-1", PageNumber: 7, Score: 0.84, Content: "results"},
	}

	answer, err := synth.Synthesize(context.Background(), "where is the methodology?", results)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model.calls != 1 {
		t.Fatalf("expected one model call, got %d", model.calls)
	}

	want := []models.Source{{Page: 3, Score: 0.91}, {Page: 7, Score: 0.84}}
	if !reflect.DeepEqual(answer.Sources, want) {
		t.Errorf("got sources %+v, want %+v", answer.Sources, want)
	}

	if pages := ExtractPageReferences(answer.Text); !reflect.DeepEqual(pages, []int{3, 7}) {
		t.Errorf("expected cited pages [3 7], got %v", pages)
	}
}

func TestExtractPageReferences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []int
	}{
		{"plain", "See page 3 and page 7 for details", []int{3, 7}},
		{"abbreviated", "Described on p. 12 of the report", []int{12}},
		{"on page form", "This is covered on page 4", []int{4}},
		{"dedupe", "Page 5 repeats: see page 5 again", []int{5}},
		{"sorted", "page 9 before page 2", []int{2, 9}},
		{"out of range high", "see page 500 for nothing", nil},
		{"zero excluded", "page 0 is not a page", nil},
		{"case insensitive", "PAGE 8 and Page 6", []int{6, 8}},
		{"no references", "nothing cited here", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractPageReferences(tt.text)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildContextLabelsPages(t *testing.T) {
	ctx := buildContext([]models.QueryResult{
		{PageNumber: 2, Content: "the content", Summary: "the summary", Topics: []string{"alpha", "beta"}},
	})

	for _, want := range []string{"Page 2:", "the content", "the summary", "alpha, beta"} {
		if !strings.Contains(ctx, want) {
			t.Errorf("context missing %q:\n%s", want, ctx)
		}
	}
}
