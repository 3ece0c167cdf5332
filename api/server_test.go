package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Desarso/chatrelay/encryption"
	"github.com/Desarso/chatrelay/models"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubGenerator struct {
	deltas []string
	title  string
}

func (g *stubGenerator) Stream(ctx context.Context, message string, history []models.Message) (<-chan string, <-chan *models.GenerationResult) {
	deltaChan := make(chan string)
	resultChan := make(chan *models.GenerationResult, 1)
	go func() {
		defer close(resultChan)
		var full strings.Builder
		for _, d := range g.deltas {
			select {
			case deltaChan <- d:
				full.WriteString(d)
			case <-ctx.Done():
				close(deltaChan)
				resultChan <- &models.GenerationResult{Text: full.String()}
				return
			}
		}
		close(deltaChan)
		resultChan <- &models.GenerationResult{Text: full.String()}
	}()
	return deltaChan, resultChan
}

func (g *stubGenerator) GenerateTitle(ctx context.Context, firstMessage string) string {
	return g.title
}

type stubStore struct {
	conversations map[string]*models.Conversation
	summaries     []models.ConversationSummary
	deletedCount  int64
}

func newStubStore() *stubStore {
	return &stubStore{conversations: map[string]*models.Conversation{}}
}

func (s *stubStore) Get(ctx context.Context, id string) (*models.Conversation, error) {
	return s.conversations[id], nil
}

func (s *stubStore) Create(ctx context.Context, userMsg, assistantMsg models.Message, title string) (string, error) {
	id := "conv-new"
	s.conversations[id] = &models.Conversation{ID: id, Title: title, Messages: []models.Message{userMsg, assistantMsg}}
	return id, nil
}

func (s *stubStore) Append(ctx context.Context, id string, userMsg, assistantMsg models.Message) (bool, error) {
	conv, ok := s.conversations[id]
	if !ok {
		return false, nil
	}
	conv.Messages = append(conv.Messages, userMsg, assistantMsg)
	return true, nil
}

func (s *stubStore) List(ctx context.Context, limit, offset int) ([]models.ConversationSummary, error) {
	if offset >= len(s.summaries) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.summaries) {
		end = len(s.summaries)
	}
	return s.summaries[offset:end], nil
}

func (s *stubStore) Star(ctx context.Context, id string, starred bool) (bool, error) {
	_, ok := s.conversations[id]
	return ok, nil
}

func (s *stubStore) Rename(ctx context.Context, id, title string) (bool, error) {
	_, ok := s.conversations[id]
	return ok, nil
}

func (s *stubStore) Delete(ctx context.Context, id string) (bool, error) {
	_, ok := s.conversations[id]
	delete(s.conversations, id)
	return ok, nil
}

func (s *stubStore) DeleteAllNonStarred(ctx context.Context) (int64, error) {
	return s.deletedCount, nil
}

func (s *stubStore) DeleteNonStarredOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (s *stubStore) Connect() error                 { return nil }
func (s *stubStore) Close() error                   { return nil }
func (s *stubStore) Ping(ctx context.Context) error { return nil }

func testServer(store *stubStore, gen *stubGenerator, registry *encryption.KeyRegistry, token string) *gin.Engine {
	if registry == nil {
		registry = encryption.NewKeyRegistry(false, "", "")
	}
	server := NewServer(store, gen, registry, 30*time.Second, token)
	return server.Router()
}

func TestChatStreamNDJSON(t *testing.T) {
	store := newStubStore()
	gen := &stubGenerator{deltas: []string{"hi", " there"}, title: "Greeting"}
	router := testServer(store, gen, nil, "")

	body := strings.NewReader(`{"message":"hello"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("Content-Type = %q", ct)
	}

	var events []models.StreamEvent
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		var ev models.StreamEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("bad NDJSON line %q: %v", scanner.Text(), err)
		}
		events = append(events, ev)
	}

	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d: %+v", len(events), events)
	}
	if events[0].Type != models.EventConversationStart {
		t.Errorf("first event = %q, want conversation_start", events[0].Type)
	}
	if events[1].Content+events[2].Content != "hi there" {
		t.Errorf("chunk contents = %q + %q", events[1].Content, events[2].Content)
	}
	last := events[3]
	if last.Type != models.EventDone || last.ConversationID != "conv-new" {
		t.Errorf("terminal event = %+v", last)
	}
}

func TestChatUnknownConversationIs404(t *testing.T) {
	store := newStubStore()
	gen := &stubGenerator{deltas: []string{"x"}}
	router := testServer(store, gen, nil, "")

	req := httptest.NewRequest(http.MethodPost, "/api/chat/nope", strings.NewReader(`{"message":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404; body %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), `"type"`) {
		t.Error("no stream events may be emitted for an unknown conversation")
	}
}

func TestChatEmptyMessageIs400(t *testing.T) {
	router := testServer(newStubStore(), &stubGenerator{}, nil, "")

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListConversationsPaging(t *testing.T) {
	store := newStubStore()
	for i := 0; i < 5; i++ {
		store.summaries = append(store.summaries, models.ConversationSummary{ID: "c", Title: "t"})
	}
	router := testServer(store, &stubGenerator{}, nil, "")

	req := httptest.NewRequest(http.MethodGet, "/api/conversations?limit=3", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var list models.ConversationList
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Conversations) != 3 {
		t.Errorf("expected 3 conversations, got %d", len(list.Conversations))
	}
	if !list.HasMore {
		t.Error("expected has_more with 5 rows and limit 3")
	}
}

func TestGetConversationNotFound(t *testing.T) {
	router := testServer(newStubStore(), &stubGenerator{}, nil, "")

	req := httptest.NewRequest(http.MethodGet, "/api/conversations/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRenameRequiresTitle(t *testing.T) {
	store := newStubStore()
	store.conversations["c1"] = &models.Conversation{ID: "c1"}
	router := testServer(store, &stubGenerator{}, nil, "")

	req := httptest.NewRequest(http.MethodPatch, "/api/conversations/c1", strings.NewReader(`{"title":"   "}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDeleteNonStarredReportsCount(t *testing.T) {
	store := newStubStore()
	store.deletedCount = 7
	router := testServer(store, &stubGenerator{}, nil, "")

	req := httptest.NewRequest(http.MethodDelete, "/api/conversations/nonstarred", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if count, _ := resp.Data["deleted_count"].(float64); int64(count) != 7 {
		t.Errorf("deleted_count = %v, want 7", resp.Data["deleted_count"])
	}
}

func TestEncryptionStatus(t *testing.T) {
	registry := encryption.NewKeyRegistry(true, "hash", encryption.ModeStrict)
	router := testServer(newStubStore(), &stubGenerator{}, registry, "")

	req := httptest.NewRequest(http.MethodGet, "/api/encryption/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var status map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status["enabled"] != true || status["configured"] != true || status["mode"] != "strict" {
		t.Errorf("unexpected status payload: %v", status)
	}
}

func TestValidateKey(t *testing.T) {
	registry := encryption.NewKeyRegistry(true, "hash", encryption.ModeStrict)
	router := testServer(newStubStore(), &stubGenerator{}, registry, "")

	for _, tc := range []struct {
		keyHash string
		valid   bool
	}{
		{"hash", true},
		{"other", false},
	} {
		body := strings.NewReader(`{"key_hash":"` + tc.keyHash + `"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/encryption/validate", body)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		var resp map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp["valid"] != tc.valid {
			t.Errorf("Validate(%q) = %v, want %v", tc.keyHash, resp["valid"], tc.valid)
		}
	}
}

func TestAuthMiddleware(t *testing.T) {
	router := testServer(newStubStore(), &stubGenerator{}, nil, "secret-token")

	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing token: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", rec.Code)
	}

	// Health stays open regardless of the token.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("health: status = %d, want 200", rec.Code)
	}
}
