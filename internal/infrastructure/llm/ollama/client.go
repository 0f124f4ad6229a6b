package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
	"github.com/OsmanWais29/filesecureai-sub002/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout  time.Duration
	Executor *resilience.Executor
}

func New(baseURL, genModel string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		httpClient: &http.Client{Timeout: opts.Timeout},
		executor:   opts.Executor,
	}
}

// Analyzer asks the generation model for a structured insolvency form analysis.
type Analyzer struct {
	client *Client
	now    func() time.Time
}

func NewAnalyzer(client *Client) *Analyzer {
	return &Analyzer{client: client, now: time.Now}
}

type analysisPayload struct {
	ClientName string        `json:"client_name"`
	FormType   string        `json:"form_type"`
	FormNumber string        `json:"form_number"`
	Confidence float64       `json:"confidence"`
	Summary    string        `json:"summary"`
	Risks      []riskPayload `json:"risks"`
}

type riskPayload struct {
	Type                string `json:"type"`
	Severity            string `json:"severity"`
	Description         string `json:"description"`
	Recommendation      string `json:"recommendation"`
	RegulatoryReference string `json:"regulatory_reference"`
	FieldLocation       string `json:"field_location"`
	Deadline            string `json:"deadline"`
}

func (a *Analyzer) Analyze(ctx context.Context, documentID, text, title string) (*domain.AnalysisResult, error) {
	respText, err := a.client.generateJSON(ctx, buildAnalysisPrompt(title, text))
	if err != nil {
		if !domain.IsKind(err, domain.ErrAnalysisFailed) {
			err = domain.WrapError(domain.ErrAnalysisFailed, "analyze document "+documentID, err)
		}
		return nil, err
	}

	var payload analysisPayload
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &payload); err != nil {
		return nil, domain.WrapError(domain.ErrAnalysisFailed, "parse analysis json", err)
	}
	result := payload.toDomain()
	if result.FormType == "" && result.FormNumber == "" && result.ClientName == "" {
		return nil, domain.WrapError(domain.ErrAnalysisFailed, "analyze document "+documentID, fmt.Errorf("empty analysis result"))
	}
	return result, nil
}

func (p analysisPayload) toDomain() *domain.AnalysisResult {
	confidence := p.Confidence
	if confidence > 1 {
		confidence /= 100
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	result := &domain.AnalysisResult{
		ClientName: strings.TrimSpace(p.ClientName),
		FormType:   strings.TrimSpace(p.FormType),
		FormNumber: strings.TrimSpace(p.FormNumber),
		Confidence: confidence,
		Summary:    strings.TrimSpace(p.Summary),
		Risks:      make([]domain.RiskFinding, 0, len(p.Risks)),
	}
	for _, risk := range p.Risks {
		finding := domain.RiskFinding{
			Type:                strings.TrimSpace(risk.Type),
			Severity:            normalizeSeverity(risk.Severity),
			Description:         strings.TrimSpace(risk.Description),
			Recommendation:      strings.TrimSpace(risk.Recommendation),
			RegulatoryReference: strings.TrimSpace(risk.RegulatoryReference),
			FieldLocation:       strings.TrimSpace(risk.FieldLocation),
		}
		if deadline, ok := parseDeadline(risk.Deadline); ok {
			finding.Deadline = &deadline
		}
		result.Risks = append(result.Risks, finding)
	}
	return result
}

func normalizeSeverity(raw string) domain.Severity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high", "critical":
		return domain.SeverityHigh
	case "medium", "moderate":
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

func parseDeadline(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}
	return c.generate(ctx, reqBody)
}

func (c *Client) generate(ctx context.Context, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	call := func(ctx context.Context) error {
		return c.postJSON(ctx, "/api/generate", reqBody, &response, "generate")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama.generate", call, classifyGenerateError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", analysisError("ollama.generate", err)
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
