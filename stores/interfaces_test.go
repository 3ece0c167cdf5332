package stores

import (
	"strings"
	"testing"

	"github.com/Desarso/chatrelay/models"
)

func TestRecordRoundTripWithGrounding(t *testing.T) {
	msg := models.NewAssistantMessage("grounded answer[1]", &models.Grounding{
		Grounded: true,
		References: []models.Reference{
			{Index: 1, Title: "Source", URL: "https://example.com", Domain: "example.com"},
		},
		SearchQueries: []string{"some query"},
		Supports: []models.GroundingSupport{
			{StartIndex: 0, EndIndex: 15, ReferenceIndices: []int{1}},
		},
	})
	msg.ID = "msg-1"

	rec := toRecord("conv-1", 2, msg)
	if rec.GroundingJSON == "" {
		t.Fatal("expected grounding to be serialized")
	}
	if rec.Sequence != 2 || rec.ConversationID != "conv-1" {
		t.Errorf("record fields: %+v", rec)
	}

	back := fromRecord(rec)
	if back.Content != msg.Content || back.Role != models.RoleAssistant {
		t.Errorf("round trip changed message: %+v", back)
	}
	if back.Grounding == nil || !back.Grounding.Grounded {
		t.Fatal("grounding lost in round trip")
	}
	if len(back.Grounding.References) != 1 || back.Grounding.References[0].URL != "https://example.com" {
		t.Errorf("references lost: %+v", back.Grounding.References)
	}
}

func TestRecordWithoutGrounding(t *testing.T) {
	rec := toRecord("conv-1", 1, models.NewUserMessage("plain question"))
	if rec.GroundingJSON != "" {
		t.Errorf("user message must not carry grounding, got %q", rec.GroundingJSON)
	}
	if back := fromRecord(rec); back.Grounding != nil {
		t.Error("grounding should stay nil through the round trip")
	}
}

func TestSummarizePreviewTruncation(t *testing.T) {
	long := strings.Repeat("a", 150)
	summary := summarize(Conversation{ConversationID: "c1", Title: "t"}, long)
	if summary.Preview != strings.Repeat("a", 100)+"..." {
		t.Errorf("preview = %q", summary.Preview)
	}

	short := summarize(Conversation{ConversationID: "c1"}, "short")
	if short.Preview != "short" {
		t.Errorf("short preview = %q", short.Preview)
	}
}
