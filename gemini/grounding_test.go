package gemini

import (
	"testing"

	"github.com/Desarso/chatrelay/models"
	"google.golang.org/genai"
)

func TestInsertCitations(t *testing.T) {
	text := "Go is fast. Go is simple."
	supports := []models.GroundingSupport{
		{StartIndex: 0, EndIndex: 11, ReferenceIndices: []int{1}},
		{StartIndex: 12, EndIndex: 25, ReferenceIndices: []int{2, 3}},
	}

	got := InsertCitations(text, supports)
	want := "Go is fast.[1] Go is simple.[2][3]"
	if got != want {
		t.Errorf("InsertCitations() = %q, want %q", got, want)
	}
}

func TestInsertCitationsOutOfRange(t *testing.T) {
	text := "short"
	supports := []models.GroundingSupport{
		{StartIndex: 0, EndIndex: 100, ReferenceIndices: []int{1}},
		{StartIndex: 0, EndIndex: -3, ReferenceIndices: []int{2}},
		{StartIndex: 0, EndIndex: 5, ReferenceIndices: nil},
	}

	if got := InsertCitations(text, supports); got != text {
		t.Errorf("expected text unchanged, got %q", got)
	}
}

func TestInsertCitationsNoSupports(t *testing.T) {
	if got := InsertCitations("hello", nil); got != "hello" {
		t.Errorf("expected text unchanged, got %q", got)
	}
}

func TestConvertGroundingMetadata(t *testing.T) {
	md := &genai.GroundingMetadata{
		WebSearchQueries: []string{"go generics"},
		GroundingChunks: []*genai.GroundingChunk{
			{Web: &genai.GroundingChunkWeb{URI: "https://go.dev/blog/intro", Title: "Intro"}},
			{Web: &genai.GroundingChunkWeb{URI: "https://example.com/a", Title: "A", Domain: "example.com"}},
		},
		GroundingSupports: []*genai.GroundingSupport{
			{
				Segment:               &genai.Segment{StartIndex: 0, EndIndex: 10, Text: "Go is fast"},
				GroundingChunkIndices: []int32{0, 1},
			},
		},
	}

	grounding := convertGroundingMetadata(md, true)
	if !grounding.Grounded {
		t.Fatal("expected grounded result")
	}
	if len(grounding.References) != 2 {
		t.Fatalf("expected 2 references, got %d", len(grounding.References))
	}
	if grounding.References[0].Index != 1 {
		t.Errorf("expected 1-based reference index, got %d", grounding.References[0].Index)
	}
	if grounding.References[0].Domain != "go.dev" {
		t.Errorf("expected domain fallback from URL, got %q", grounding.References[0].Domain)
	}
	if len(grounding.Supports) != 1 {
		t.Fatalf("expected 1 support, got %d", len(grounding.Supports))
	}
	if got := grounding.Supports[0].ReferenceIndices; len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("expected 1-based reference indices [1 2], got %v", got)
	}
	if len(grounding.SearchQueries) != 1 || grounding.SearchQueries[0] != "go generics" {
		t.Errorf("unexpected search queries %v", grounding.SearchQueries)
	}
}

func TestConvertGroundingMetadataDisabled(t *testing.T) {
	md := &genai.GroundingMetadata{
		GroundingChunks: []*genai.GroundingChunk{
			{Web: &genai.GroundingChunkWeb{URI: "https://example.com"}},
		},
	}
	if g := convertGroundingMetadata(md, false); g.Grounded {
		t.Error("expected ungrounded result when search is disabled")
	}
	if g := convertGroundingMetadata(nil, true); g.Grounded {
		t.Error("expected ungrounded result for nil metadata")
	}
}
