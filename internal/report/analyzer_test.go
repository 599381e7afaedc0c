package report

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"healthmate/internal/llm"

	"go.uber.org/zap"
)

type MockTextGenerator struct {
	content string
	err     error
	calls   [][]llm.Message
}

func (m *MockTextGenerator) GenerateContent(ctx context.Context, messages []llm.Message) (llm.ContentResponse, error) {
	m.calls = append(m.calls, messages)
	if m.err != nil {
		return llm.ContentResponse{}, m.err
	}
	return llm.ContentResponse{Content: m.content}, nil
}

func TestAnalyzer_Analyze(t *testing.T) {
	ctx := context.Background()

	t.Run("FileNameOnly", func(t *testing.T) {
		gen := &MockTextGenerator{content: "  A blood panel summary.  "}
		a := NewAnalyzer(gen, "", nil, zap.NewNop())

		summary, err := a.Analyze(ctx, AnalyzeRequest{FileName: "bloodwork.pdf"})
		if err != nil {
			t.Fatalf("Analyze failed: %v", err)
		}
		if summary != "A blood panel summary." {
			t.Errorf("Expected trimmed summary, got '%s'", summary)
		}
		if !strings.Contains(gen.calls[0][1].Content, "bloodwork.pdf") {
			t.Errorf("Expected file name in prompt, got '%s'", gen.calls[0][1].Content)
		}
	})

	t.Run("HTMLIsReducedToText", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(`<html><head><style>.x{}</style></head><body><script>alert(1)</script><h1>Lipid Panel</h1><p>LDL 130 mg/dL</p></body></html>`))
		}))
		defer server.Close()

		gen := &MockTextGenerator{content: "ok"}
		a := NewAnalyzer(gen, server.URL, nil, zap.NewNop())
		if _, err := a.Analyze(ctx, AnalyzeRequest{FileName: "lipids.html", FileURL: server.URL}); err != nil {
			t.Fatalf("Analyze failed: %v", err)
		}

		prompt := gen.calls[0][1].Content
		if !strings.Contains(prompt, "Lipid Panel LDL 130 mg/dL") {
			t.Errorf("Expected extracted text in prompt, got '%s'", prompt)
		}
		if strings.Contains(prompt, "alert") {
			t.Errorf("Expected scripts to be stripped, got '%s'", prompt)
		}
	})

	t.Run("PlainTextIsTruncated", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte(strings.Repeat("a", maxContentBytes*2)))
		}))
		defer server.Close()

		gen := &MockTextGenerator{content: "ok"}
		a := NewAnalyzer(gen, server.URL, nil, zap.NewNop())
		if _, err := a.Analyze(ctx, AnalyzeRequest{FileName: "notes.txt", FileURL: server.URL}); err != nil {
			t.Fatalf("Analyze failed: %v", err)
		}
		if n := strings.Count(gen.calls[0][1].Content, "a"); n > maxContentBytes+10 {
			t.Errorf("Expected content to be truncated, got %d bytes", n)
		}
	})

	t.Run("FetchFailure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		gen := &MockTextGenerator{content: "ok"}
		a := NewAnalyzer(gen, server.URL, nil, zap.NewNop())
		if _, err := a.Analyze(ctx, AnalyzeRequest{FileName: "x.pdf", FileURL: server.URL}); err == nil {
			t.Fatal("Expected an error, got nil")
		}
		if len(gen.calls) != 0 {
			t.Errorf("Expected no completion call, got %d", len(gen.calls))
		}
	})

	t.Run("LargeHTMLIsCapped", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html><body><p>"))
			w.Write([]byte(strings.Repeat("b ", maxFetchBytes)))
			w.Write([]byte("TAIL</p></body></html>"))
		}))
		defer server.Close()

		gen := &MockTextGenerator{content: "ok"}
		a := NewAnalyzer(gen, server.URL, nil, zap.NewNop())
		if _, err := a.Analyze(ctx, AnalyzeRequest{FileName: "big.html", FileURL: server.URL}); err != nil {
			t.Fatalf("Analyze failed: %v", err)
		}
		if strings.Contains(gen.calls[0][1].Content, "TAIL") {
			t.Error("Expected the body to be cut before the end of the document")
		}
	})

	t.Run("MissingFileName", func(t *testing.T) {
		a := NewAnalyzer(&MockTextGenerator{}, "", nil, zap.NewNop())
		if _, err := a.Analyze(ctx, AnalyzeRequest{}); !errors.Is(err, ErrMissingFileName) {
			t.Errorf("Expected ErrMissingFileName, got %v", err)
		}
	})

	t.Run("UpstreamError", func(t *testing.T) {
		a := NewAnalyzer(&MockTextGenerator{err: llm.ErrMissingAPIKey}, "", nil, zap.NewNop())
		if _, err := a.Analyze(ctx, AnalyzeRequest{FileName: "x.pdf"}); !errors.Is(err, llm.ErrMissingAPIKey) {
			t.Errorf("Expected ErrMissingAPIKey, got %v", err)
		}
	})
}

func TestAnalyzer_RejectsOutsideURLs(t *testing.T) {
	ctx := context.Background()

	hits := 0
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("secret"))
	}))
	defer internal.Close()

	storage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, internal.URL+"/latest/meta-data/", http.StatusFound)
	}))
	defer storage.Close()

	tests := []struct {
		name    string
		baseURL string
		fileURL string
	}{
		{"NoBaseConfigured", "", internal.URL + "/report.txt"},
		{"OtherHost", storage.URL + "/reports/", "http://169.254.169.254/latest/meta-data/"},
		{"LocalService", storage.URL + "/reports/", internal.URL + "/reports/x.txt"},
		{"OutsidePath", storage.URL + "/reports/", storage.URL + "/admin/x.txt"},
		{"SiblingPrefix", storage.URL + "/reports", storage.URL + "/reports-private/x.txt"},
		{"DotDot", storage.URL + "/reports/", storage.URL + "/reports/../admin"},
		{"RedirectElsewhere", storage.URL + "/reports/", storage.URL + "/reports/x.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &MockTextGenerator{content: "ok"}
			a := NewAnalyzer(gen, tt.baseURL, nil, zap.NewNop())

			_, err := a.Analyze(ctx, AnalyzeRequest{FileName: "x.txt", FileURL: tt.fileURL})
			if !errors.Is(err, ErrURLNotAllowed) {
				t.Errorf("Expected ErrURLNotAllowed, got %v", err)
			}
			if len(gen.calls) != 0 {
				t.Errorf("Expected no completion call, got %d", len(gen.calls))
			}
		})
	}

	if hits != 0 {
		t.Errorf("Expected the internal server never to be reached, got %d requests", hits)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("Expected 'short', got '%s'", got)
	}
	if got := truncate("héllo", 2); got != "h" {
		t.Errorf("Expected 'h', got '%s'", got)
	}
}
