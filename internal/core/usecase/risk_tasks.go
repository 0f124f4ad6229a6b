package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
	"github.com/OsmanWais29/filesecureai-sub002/internal/core/ports"
)

const defaultRiskDueDays = 7

// RiskTaskOutcome reports what the generator created and what it skipped.
type RiskTaskOutcome struct {
	HighRiskCount int                    `json:"high_risk_count"`
	TaskIDs       []string               `json:"task_ids"`
	Failures      []domain.NonFatalError `json:"failures,omitempty"`
}

type RiskTaskGenerator struct {
	docs    ports.DocumentRepository
	tasks   ports.TaskStore
	alerts  ports.RiskAlertPublisher
	dueDays int
	logger  *slog.Logger
	now     func() time.Time
}

// NewRiskTaskGenerator accepts a nil alerts publisher.
func NewRiskTaskGenerator(
	docs ports.DocumentRepository,
	tasks ports.TaskStore,
	alerts ports.RiskAlertPublisher,
	dueDays int,
	logger *slog.Logger,
) *RiskTaskGenerator {
	if dueDays <= 0 {
		dueDays = defaultRiskDueDays
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RiskTaskGenerator{
		docs:    docs,
		tasks:   tasks,
		alerts:  alerts,
		dueDays: dueDays,
		logger:  logger,
		now:     time.Now,
	}
}

// Apply creates one high-priority task per high-severity finding. It never returns an error;
// individual failures are logged and reported in the outcome.
func (g *RiskTaskGenerator) Apply(ctx context.Context, documentID string, result *domain.AnalysisResult) RiskTaskOutcome {
	outcome := RiskTaskOutcome{TaskIDs: []string{}}
	if result == nil {
		return outcome
	}
	highs := result.HighRisks()
	outcome.HighRiskCount = len(highs)
	if len(highs) == 0 {
		return outcome
	}

	doc, err := g.docs.GetByID(ctx, documentID)
	if err != nil {
		g.logger.Warn("risk_task_document_lookup_failed", "document_id", documentID, "error", err)
		outcome.Failures = append(outcome.Failures, domain.NewNonFatal(domain.StageRiskAssessment, err))
		return outcome
	}

	now := g.now().UTC()
	formLabel := formLabel(result)
	for _, risk := range highs {
		task := g.buildTask(doc, risk, result, formLabel, now)
		if err := g.tasks.CreateTask(ctx, task); err != nil {
			g.logger.Warn("risk_task_create_failed",
				"document_id", documentID,
				"risk_type", risk.Type,
				"error", err,
			)
			outcome.Failures = append(outcome.Failures,
				domain.NewNonFatal(domain.StageRiskAssessment, fmt.Errorf("create task for %s: %w", risk.Type, err)))
			continue
		}
		outcome.TaskIDs = append(outcome.TaskIDs, task.ID)
	}

	if g.alerts != nil {
		alert := domain.RiskAlert{
			DocumentID:    doc.ID,
			OwnerID:       doc.OwnerID,
			FormType:      result.FormType,
			FormNumber:    result.FormNumber,
			HighRiskCount: len(highs),
			CreatedAt:     now,
		}
		if err := g.alerts.PublishRiskAlert(ctx, alert); err != nil {
			g.logger.Warn("risk_alert_publish_failed", "document_id", documentID, "error", err)
			outcome.Failures = append(outcome.Failures,
				domain.NewNonFatal(domain.StageRiskAssessment, fmt.Errorf("publish risk alert: %w", err)))
		}
	}

	g.logger.Info("risk_tasks_generated",
		"document_id", documentID,
		"high_risk_count", len(highs),
		"created", len(outcome.TaskIDs),
	)
	return outcome
}

func (g *RiskTaskGenerator) buildTask(
	doc *domain.Document,
	risk domain.RiskFinding,
	result *domain.AnalysisResult,
	formLabel string,
	now time.Time,
) *domain.Task {
	due := now.AddDate(0, 0, g.dueDays)
	if risk.Deadline != nil && !risk.Deadline.IsZero() {
		due = risk.Deadline.UTC()
	}

	return &domain.Task{
		ID:          uuid.NewString(),
		OwnerID:     doc.OwnerID,
		DocumentID:  doc.ID,
		Title:       fmt.Sprintf("%s: %s", humanizeRiskType(risk.Type), formLabel),
		Description: riskDescription(risk),
		Priority:    domain.PriorityHigh,
		Status:      domain.TaskStatusPending,
		DueAt:       &due,
		Metadata: map[string]any{
			"source":               "risk_assessment",
			"risk_type":            risk.Type,
			"severity":             string(risk.Severity),
			"field_location":       risk.FieldLocation,
			"regulatory_reference": risk.RegulatoryReference,
			"form_number":          result.FormNumber,
			"form_type":            result.FormType,
			"confidence":           result.Confidence,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func formLabel(result *domain.AnalysisResult) string {
	switch {
	case result.FormNumber != "" && result.FormType != "":
		return fmt.Sprintf("Form %s (%s)", result.FormNumber, result.FormType)
	case result.FormNumber != "":
		return "Form " + result.FormNumber
	case result.FormType != "":
		return result.FormType
	default:
		return "document"
	}
}

func riskDescription(risk domain.RiskFinding) string {
	parts := []string{strings.TrimSpace(risk.Description)}
	if risk.Recommendation != "" {
		parts = append(parts, "Recommendation: "+risk.Recommendation)
	}
	if risk.RegulatoryReference != "" {
		parts = append(parts, "Reference: "+risk.RegulatoryReference)
	}
	return strings.Join(parts, "\n\n")
}

func humanizeRiskType(raw string) string {
	words := strings.FieldsFunc(raw, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	if len(words) == 0 {
		return "Risk"
	}
	for i, w := range words {
		first, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(first)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}
