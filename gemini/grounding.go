package gemini

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/Desarso/chatrelay/models"
	"google.golang.org/genai"
)

// convertGroundingMetadata flattens the SDK grounding metadata into the wire
// shape: a 1-based reference list in chunk order plus the span supports that
// point back into it.
func convertGroundingMetadata(md *genai.GroundingMetadata, searchEnabled bool) models.Grounding {
	grounding := models.Grounding{}
	if !searchEnabled || md == nil {
		return grounding
	}
	grounding.Grounded = true
	grounding.SearchQueries = md.WebSearchQueries

	for i, chunk := range md.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		ref := models.Reference{
			Index:  i + 1,
			Title:  chunk.Web.Title,
			URL:    chunk.Web.URI,
			Domain: chunk.Web.Domain,
		}
		if ref.Domain == "" {
			ref.Domain = hostOf(chunk.Web.URI)
		}
		grounding.References = append(grounding.References, ref)
	}

	for _, support := range md.GroundingSupports {
		if support == nil || support.Segment == nil {
			continue
		}
		s := models.GroundingSupport{
			StartIndex: int(support.Segment.StartIndex),
			EndIndex:   int(support.Segment.EndIndex),
			Text:       support.Segment.Text,
		}
		for _, idx := range support.GroundingChunkIndices {
			s.ReferenceIndices = append(s.ReferenceIndices, int(idx)+1)
		}
		grounding.Supports = append(grounding.Supports, s)
	}

	return grounding
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// InsertCitations rewrites text with [n] markers after each supported span.
// Supports are applied from the highest end offset down so earlier byte
// offsets stay valid as markers are inserted. Spans that fall outside the
// text are skipped.
func InsertCitations(text string, supports []models.GroundingSupport) string {
	if len(supports) == 0 {
		return text
	}

	sorted := make([]models.GroundingSupport, len(supports))
	copy(sorted, supports)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EndIndex > sorted[j].EndIndex
	})

	for _, support := range sorted {
		if len(support.ReferenceIndices) == 0 {
			continue
		}
		end := support.EndIndex
		if end <= 0 || end > len(text) {
			continue
		}
		var markers strings.Builder
		for _, idx := range support.ReferenceIndices {
			fmt.Fprintf(&markers, "[%d]", idx)
		}
		text = text[:end] + markers.String() + text[end:]
	}

	return text
}
