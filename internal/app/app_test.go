package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"healthmate/internal/config"
	"healthmate/internal/shared"

	"go.uber.org/zap"
)

const suggestionsJSON = `Here you go:
[
  {"title": "Berry Oats", "description": "Oats with berries.", "category": "breakfast"},
  {"title": "Bean Bowl", "description": "Beans and greens.", "category": "lunch"},
  {"title": "Baked Fish", "description": "Fish with vegetables.", "category": "dinner"},
  {"title": "Nuts", "description": "A handful of almonds.", "category": "snack"},
  {"title": "Walk", "description": "Walk after dinner.", "category": "lifestyle"}
]`

// fakeGateway answers chat completions with content chosen by the system prompt.
func fakeGateway(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode completion request: %v", err)
			return
		}

		content := "General health answer."
		system := req.Messages[0].Content
		switch {
		case strings.Contains(system, "JSON array"):
			content = suggestionsJSON
		case strings.Contains(system, "alternative"):
			content = "Lentil soup"
		case strings.Contains(system, "one-day diet plan"):
			content = "Breakfast: eggs\nLunch: salad"
		}

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": content}}},
			"usage":   map[string]int{"prompt_tokens": 12, "completion_tokens": 8, "total_tokens": 20},
		})
	}))
}

func newTestApp(t *testing.T, apiKey string) (*App, http.Handler) {
	gateway := fakeGateway(t)
	t.Cleanup(gateway.Close)

	dir := t.TempDir()
	cfg := &config.Config{
		LLMProvider:       config.ProviderGateway,
		CompletionAPIKey:  apiKey,
		CompletionBaseURL: gateway.URL,
		CompletionModel:   "test-model",
		CompletionTimeout: 5 * time.Second,
		DBDriver:          config.DriverSQLite,
		DatabaseURL:       filepath.Join(dir, "healthmate.db"),
		DataPath:          dir,
	}

	a, err := New(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create app: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	h, err := a.Handler()
	if err != nil {
		t.Fatalf("Failed to build handler: %v", err)
	}
	return a, h
}

func post(t *testing.T, h http.Handler, path, body string, out any) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("Failed to decode %s response %q: %v", path, rec.Body.String(), err)
		}
	}
	return rec.Code
}

func TestApp_DietFlow(t *testing.T) {
	a, h := newTestApp(t, "test-key")
	ctx := context.Background()

	var suggestions struct {
		Success     bool `json:"success"`
		Suggestions []struct {
			Title    string `json:"title"`
			Category string `json:"category"`
		} `json:"suggestions"`
		Source string `json:"source"`
	}
	if code := post(t, h, "/generate-diet-suggestions", `{"userId":"user-1"}`, &suggestions); code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", code)
	}
	if suggestions.Source != "parsed" || len(suggestions.Suggestions) != 5 || suggestions.Suggestions[0].Title != "Berry Oats" {
		t.Errorf("Expected the parsed suggestions, got %+v", suggestions)
	}

	stored, err := a.Diet.Suggestions(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("Suggestions failed: %v", err)
	}
	if len(stored) != 5 {
		t.Errorf("Expected 5 stored suggestions, got %d", len(stored))
	}

	var plan struct {
		Suggestions string `json:"suggestions"`
	}
	post(t, h, "/generate-diet-suggestions", `{"userId":"user-1","prompt":"feel lighter"}`, &plan)
	if plan.Suggestions != "Breakfast: eggs\nLunch: salad" {
		t.Fatalf("Unexpected plan '%s'", plan.Suggestions)
	}

	body, _ := json.Marshal(map[string]string{"userId": "user-1", "plan": plan.Suggestions})
	if code := post(t, h, "/save-diet-plan", string(body), nil); code != http.StatusOK {
		t.Fatalf("Expected status 200 saving plan, got %d", code)
	}

	var regen struct {
		Suggestions string `json:"suggestions"`
	}
	post(t, h, "/generate-diet-suggestions", `{"userId":"user-1","prompt":"feel lighter","regenerateSection":"Lunch"}`, &regen)
	want := "Breakfast: eggs\nLunch: salad\n\n--- Updated Lunch ---\n\nLentil soup"
	if regen.Suggestions != want {
		t.Errorf("Expected the saved plan with the new section appended, got %q", regen.Suggestions)
	}

	usage, err := a.MetricsStore.GetDailyUsage(ctx, 1)
	if err != nil {
		t.Fatalf("GetDailyUsage failed: %v", err)
	}
	if len(usage) != 1 || usage[0].TotalExecution != 3 {
		t.Errorf("Expected 3 recorded completions, got %+v", usage)
	}
}

func TestApp_ChatAndReports(t *testing.T) {
	a, h := newTestApp(t, "test-key")
	ctx := context.Background()

	var reply struct {
		Response string `json:"response"`
		ChatID   string `json:"chatId"`
	}
	if code := post(t, h, "/health-chat", `{"userId":"user-1","message":"Why am I tired?"}`, &reply); code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", code)
	}
	chats, _ := a.Chats.ListByUser(ctx, "user-1")
	if len(chats) != 1 || chats[0].ID != reply.ChatID || chats[0].Title != "Why am I tired?" {
		t.Errorf("Expected one retitled chat, got %+v", chats)
	}

	var summary struct {
		Summary string `json:"summary"`
	}
	post(t, h, "/analyze-report", `{"fileName":"blood.pdf","userId":"user-1"}`, &summary)
	if summary.Summary == "" {
		t.Fatal("Expected a summary")
	}
	reports, _ := a.Reports.ListByUser(ctx, "user-1")
	if len(reports) != 1 || reports[0].Title != "blood.pdf" {
		t.Errorf("Expected one stored report, got %+v", reports)
	}
}

func TestApp_MissingAPIKey(t *testing.T) {
	_, h := newTestApp(t, "")

	var resp struct {
		Error string `json:"error"`
	}
	code := post(t, h, "/generate-diet-suggestions", `{"userId":"user-1"}`, &resp)
	if code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", code)
	}
	if resp.Error != "COMPLETION_API_KEY is not configured" {
		t.Errorf("Expected the configuration message verbatim, got '%s'", resp.Error)
	}
}

type recordingMeta struct {
	mu    sync.Mutex
	metas []shared.AgentMeta
	err   error
}

func (r *recordingMeta) RecordMeta(meta shared.AgentMeta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metas = append(r.metas, meta)
	return r.err
}

func TestAlertRecorder(t *testing.T) {
	next := &recordingMeta{err: errors.New("db down")}
	rec := &alertRecorder{next: next}

	meta := shared.AgentMeta{AgentName: "DietPlan", Usage: shared.TokenUsage{PromptTokens: 5000, Model: "m"}}
	if err := rec.RecordMeta(meta); err == nil {
		t.Error("Expected the underlying error to be returned")
	}

	var alerted []string
	rec.setAlert(func(agent string, promptTokens int, model string) {
		alerted = append(alerted, agent)
	})
	rec.RecordMeta(meta)

	if len(alerted) != 1 || alerted[0] != "DietPlan" {
		t.Errorf("Expected one alert for DietPlan, got %v", alerted)
	}
	if len(next.metas) != 2 {
		t.Errorf("Expected both metas forwarded, got %d", len(next.metas))
	}
}
