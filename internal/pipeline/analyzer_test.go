package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/osvaldoandrade/aquaq/pkg/domain"
)

func chatOK(w http.ResponseWriter, content string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	})
}

func testAnalysisContext() *domain.AnalysisContext {
	return &domain.AnalysisContext{
		AnalysisID:       "analysis_test",
		OriginalFilename: "report.pdf",
		ExtractedText:    "pH: 7.2",
		WaterData: &domain.WaterTestData{
			Parameters: []domain.WaterParameter{{Name: "pH", Value: "7.2"}},
		},
	}
}

func TestAnalyzeSuccess(t *testing.T) {
	var mu sync.Mutex
	var gotBody chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		mu.Lock()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		mu.Unlock()
		chatOK(w, "# Summary\nall good")
	}))
	defer srv.Close()

	a := NewOpenRouterAnalyzer(AnalyzerConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "test/model",
	}, nil)

	result, err := a.Analyze(context.Background(), testAnalysisContext())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !strings.Contains(result, "all good") {
		t.Errorf("result = %q", result)
	}
	mu.Lock()
	defer mu.Unlock()
	if gotBody.Model != "test/model" {
		t.Errorf("model = %q", gotBody.Model)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[0].Role != "system" {
		t.Fatalf("messages = %+v", gotBody.Messages)
	}
	user := gotBody.Messages[1].Content
	for _, want := range []string{"report.pdf", "analysis_test", "pH: 7.2"} {
		if !strings.Contains(user, want) {
			t.Errorf("user message missing %q", want)
		}
	}
}

func TestAnalyzeRetriesServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "upstream busy", http.StatusServiceUnavailable)
			return
		}
		chatOK(w, "recovered")
	}))
	defer srv.Close()

	a := NewOpenRouterAnalyzer(AnalyzerConfig{
		BaseURL:            srv.URL,
		Model:              "test/model",
		MaxAttempts:        2,
		BackoffPolicy:      "fixed",
		BackoffBaseSeconds: 1,
	}, nil)

	result, err := a.Analyze(context.Background(), testAnalysisContext())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result != "recovered" {
		t.Errorf("result = %q", result)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
}

func TestAnalyzeClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	a := NewOpenRouterAnalyzer(AnalyzerConfig{
		BaseURL:     srv.URL,
		Model:       "test/model",
		MaxAttempts: 3,
	}, nil)

	if _, err := a.Analyze(context.Background(), testAnalysisContext()); err == nil {
		t.Fatal("expected error for 400 response")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("calls = %d, want 1 (no retries on 4xx)", n)
	}
}

func TestAnalyzeFallbackModel(t *testing.T) {
	var mu sync.Mutex
	var models []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		models = append(models, req.Model)
		mu.Unlock()
		if req.Model == "primary/model" {
			http.Error(w, "model unavailable", http.StatusBadGateway)
			return
		}
		chatOK(w, "from fallback")
	}))
	defer srv.Close()

	a := NewOpenRouterAnalyzer(AnalyzerConfig{
		BaseURL:            srv.URL,
		Model:              "primary/model",
		FallbackModel:      "fallback/model",
		MaxAttempts:        1,
		BackoffPolicy:      "fixed",
		BackoffBaseSeconds: 1,
	}, nil)

	result, err := a.Analyze(context.Background(), testAnalysisContext())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result != "from fallback" {
		t.Errorf("result = %q", result)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(models) != 2 || models[0] != "primary/model" || models[1] != "fallback/model" {
		t.Errorf("models tried = %v", models)
	}
}

func TestAnalyzeCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := NewOpenRouterAnalyzer(AnalyzerConfig{
		BaseURL:     srv.URL,
		Model:       "test/model",
		MaxAttempts: 5,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.Analyze(ctx, testAnalysisContext()); err == nil {
		t.Fatal("expected error with cancelled context")
	}
}
