package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
	"github.com/OsmanWais29/filesecureai-sub002/internal/infrastructure/resilience"
)

const analysisResponse = `{"client_name":" Jane Doe ","form_type":"Consumer Proposal","form_number":"47","confidence":87,` +
	`"summary":"proposal","risks":[` +
	`{"type":"missing_signature","severity":"HIGH","description":"Debtor signature missing","recommendation":"Obtain signature",` +
	`"regulatory_reference":"BIA s.66.13","field_location":"page 3","deadline":"2025-04-01"},` +
	`{"type":"date_format","severity":"minor","description":"Date ambiguous"}]}`

func TestAnalyzerBuildsPromptAndParsesResult(t *testing.T) {
	var capturedPrompt, capturedFormat string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		capturedPrompt, _ = payload["prompt"].(string)
		capturedFormat, _ = payload["format"].(string)
		body, _ := json.Marshal(map[string]string{"response": "Here you go: " + analysisResponse})
		_, _ = w.Write(body)
	}))
	defer server.Close()

	analyzer := NewAnalyzer(New(server.URL, "gen", Options{}))
	result, err := analyzer.Analyze(context.Background(), "doc-1", "form body text", "form47.pdf")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if !strings.Contains(capturedPrompt, "form47.pdf") || !strings.Contains(capturedPrompt, "form body text") {
		t.Fatalf("unexpected prompt: %s", capturedPrompt)
	}
	if capturedFormat != "json" {
		t.Fatalf("expected json format, got %q", capturedFormat)
	}
	if result.ClientName != "Jane Doe" || result.FormNumber != "47" || result.FormType != "Consumer Proposal" {
		t.Fatalf("unexpected identity fields: %+v", result)
	}
	if result.Confidence != 0.87 {
		t.Fatalf("expected percentage confidence to be scaled, got %v", result.Confidence)
	}
	if len(result.Risks) != 2 {
		t.Fatalf("expected 2 risks, got %d", len(result.Risks))
	}
	high := result.Risks[0]
	if high.Severity != domain.SeverityHigh || high.Deadline == nil || !high.Deadline.Equal(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected high risk: %+v", high)
	}
	if result.Risks[1].Severity != domain.SeverityLow || result.Risks[1].Deadline != nil {
		t.Fatalf("unexpected low risk: %+v", result.Risks[1])
	}
}

func TestAnalyzerRejectsEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"{}"}`))
	}))
	defer server.Close()

	_, err := NewAnalyzer(New(server.URL, "gen", Options{})).Analyze(context.Background(), "doc-1", "text", "t")
	if !domain.IsKind(err, domain.ErrAnalysisFailed) {
		t.Fatalf("expected ErrAnalysisFailed, got %v", err)
	}
}

func TestAnalyzerIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := NewAnalyzer(New(server.URL, "gen", Options{})).Analyze(context.Background(), "doc-1", "text", "t")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrAnalysisFailed) || domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected permanent analysis failure, got %v", err)
	}
}

func TestAnalyzerRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		body, _ := json.Marshal(map[string]string{"response": analysisResponse})
		_, _ = w.Write(body)
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
	})
	analyzer := NewAnalyzer(New(server.URL, "gen", Options{Executor: exec}))
	if _, err := analyzer.Analyze(context.Background(), "doc-1", "text", "t"); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestAnalyzerDoesNotRetryMalformedEnvelope(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"response": truncated`))
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
	})
	_, err := NewAnalyzer(New(server.URL, "gen", Options{Executor: exec})).Analyze(context.Background(), "doc-1", "text", "t")
	if !domain.IsKind(err, domain.ErrAnalysisFailed) || domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected permanent analysis failure, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("malformed answers must not be retried, got %d calls", calls.Load())
	}
}

func TestAnalyzerMarksServerOverloadTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewAnalyzer(New(server.URL, "gen", Options{})).Analyze(context.Background(), "doc-1", "text", "t")
	if !domain.IsKind(err, domain.ErrAnalysisFailed) || !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary analysis failure, got %v", err)
	}
}

func TestClassifyGenerateError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{name: "cancelled", err: context.Canceled},
		{name: "rate limited", err: &HTTPStatusError{StatusCode: http.StatusTooManyRequests}, retryable: true, record: true},
		{name: "model missing", err: &HTTPStatusError{StatusCode: http.StatusNotFound}, record: true},
		{name: "malformed", err: &malformedResponseError{operation: "generate", err: errors.New("unexpected EOF")}, record: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			class := classifyGenerateError(tc.err)
			if class.Retryable != tc.retryable {
				t.Fatalf("Retryable = %v, want %v", class.Retryable, tc.retryable)
			}
			if class.RecordFailure != tc.record {
				t.Fatalf("RecordFailure = %v, want %v", class.RecordFailure, tc.record)
			}
		})
	}
}
