package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/osvaldoandrade/aquaq/internal/backoff"
	"github.com/osvaldoandrade/aquaq/internal/metrics"
	"github.com/osvaldoandrade/aquaq/pkg/domain"
)

const defaultAnalysisPrompt = `You are an expert in drinking water quality analysis. Review the water test data below and:

1. Evaluate each parameter against drinking water standards
2. Identify potential health risks
3. Propose concrete remediation actions
4. Give usage recommendations

Answer in Markdown with sections:
- Summary
- Parameter analysis
- Risks
- Recommendations

Test data:`

// AnalyzerConfig holds the OpenRouter client settings plus the retry policy.
type AnalyzerConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	FallbackModel string
	Temperature   float64
	MaxTokens     int
	Timeout       time.Duration
	MaxAttempts   int
	PromptPath    string

	BackoffPolicy      string
	BackoffBaseSeconds int
	BackoffMaxSeconds  int
}

// OpenRouterAnalyzer calls an OpenRouter chat-completions endpoint and
// returns the markdown analysis. Transient failures are retried with the
// configured backoff; when the primary model exhausts its attempts the
// fallback model gets one more round.
type OpenRouterAnalyzer struct {
	cfg     AnalyzerConfig
	retries backoff.Strategy
	client  *http.Client
	logger  *slog.Logger
	rng     *rand.Rand
}

func NewOpenRouterAnalyzer(cfg AnalyzerConfig, logger *slog.Logger) *OpenRouterAnalyzer {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "anthropic/claude-3.5-sonnet"
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.3
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenRouterAnalyzer{
		cfg: cfg,
		retries: backoff.Strategy{
			Policy:      cfg.BackoffPolicy,
			BaseSeconds: cfg.BackoffBaseSeconds,
			MaxSeconds:  cfg.BackoffMaxSeconds,
		},
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (a *OpenRouterAnalyzer) Analyze(ctx context.Context, analysisCtx *domain.AnalysisContext) (string, error) {
	tracer := otel.Tracer("aquaq/pipeline")
	ctx, span := tracer.Start(ctx, "analyzer.chat")
	defer span.End()

	summary := a.buildDataSummary(analysisCtx)
	prompt := a.loadPrompt()

	result, err := a.chatWithRetry(ctx, a.cfg.Model, prompt, summary)
	if err != nil && a.cfg.FallbackModel != "" && a.cfg.FallbackModel != a.cfg.Model {
		a.logger.Warn("primary model failed, trying fallback",
			"model", a.cfg.Model, "fallback", a.cfg.FallbackModel, "err", err)
		result, err = a.chatWithRetry(ctx, a.cfg.FallbackModel, prompt, summary)
	}
	if err != nil {
		span.RecordError(err)
		metrics.AnalyzerRequestsTotal.WithLabelValues("failure").Inc()
		return "", err
	}

	span.SetAttributes(attribute.Int("analyzer.result_bytes", len(result)))
	metrics.AnalyzerRequestsTotal.WithLabelValues("success").Inc()
	return result, nil
}

func (a *OpenRouterAnalyzer) chatWithRetry(ctx context.Context, model, prompt, summary string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < a.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := a.retries.Delay(attempt, a.rng)
			if err := sleepOrDone(ctx, time.Duration(delay)*time.Second); err != nil {
				return "", err
			}
		}
		result, retryable, err := a.chat(ctx, model, prompt, summary)
		if err == nil {
			return result, nil
		}
		lastErr = err
		metrics.AnalyzerRequestsTotal.WithLabelValues("retry").Inc()
		if !retryable {
			break
		}
		a.logger.Warn("analyzer request failed", "model", model, "attempt", attempt+1, "err", err)
	}
	return "", lastErr
}

// chat performs one chat-completions call. The second return value reports
// whether the failure is worth retrying: 4xx responses other than 429 are
// permanent.
func (a *OpenRouterAnalyzer) chat(ctx context.Context, model, prompt, summary string) (string, bool, error) {
	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt},
			{Role: "user", Content: summary},
		},
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
	})
	if err != nil {
		return "", false, err
	}

	url := strings.TrimSuffix(a.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", true, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", true, err
	}
	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retryable, fmt.Errorf("chat completions returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", false, fmt.Errorf("decode chat response: %w", err)
	}
	if parsed.Error != nil {
		return "", true, fmt.Errorf("chat completions error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", true, fmt.Errorf("chat completions returned no content")
	}
	return parsed.Choices[0].Message.Content, false, nil
}

// loadPrompt reads the system prompt override from disk, falling back to the
// built-in prompt when no file is configured or readable.
func (a *OpenRouterAnalyzer) loadPrompt() string {
	if strings.TrimSpace(a.cfg.PromptPath) == "" {
		return defaultAnalysisPrompt
	}
	raw, err := os.ReadFile(a.cfg.PromptPath)
	if err != nil {
		a.logger.Warn("prompt file not readable, using default", "path", a.cfg.PromptPath, "err", err)
		return defaultAnalysisPrompt
	}
	return string(raw)
}

// buildDataSummary renders the job context as the user message: file
// metadata first, structured parameters when parsing succeeded, raw text
// always last so the model can recover what the parser missed.
func (a *OpenRouterAnalyzer) buildDataSummary(analysisCtx *domain.AnalysisContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**File:** %s\n", analysisCtx.OriginalFilename)
	fmt.Fprintf(&b, "**Analysis ID:** %s\n", analysisCtx.AnalysisID)

	if wd := analysisCtx.WaterData; wd != nil {
		if wd.TestDate != "" {
			fmt.Fprintf(&b, "**Test date:** %s\n", wd.TestDate)
		}
		if wd.Laboratory != "" {
			fmt.Fprintf(&b, "**Laboratory:** %s\n", wd.Laboratory)
		}
		if wd.SampleLocation != "" {
			fmt.Fprintf(&b, "**Sample location:** %s\n", wd.SampleLocation)
		}
		if len(wd.Parameters) > 0 {
			b.WriteString("\n**Measured parameters:**\n")
			for _, p := range wd.Parameters {
				fmt.Fprintf(&b, "- %s: %s", p.Name, p.Value)
				if p.Unit != "" {
					fmt.Fprintf(&b, " %s", p.Unit)
				}
				b.WriteString("\n")
			}
		}
	}

	fmt.Fprintf(&b, "\n**Full document text:**\n%s", analysisCtx.ExtractedText)
	return b.String()
}

func sleepOrDone(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
