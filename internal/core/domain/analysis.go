package domain

import "time"

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

type RiskFinding struct {
	Type                string     `json:"type"`
	Severity            Severity   `json:"severity"`
	Description         string     `json:"description"`
	Recommendation      string     `json:"recommendation,omitempty"`
	RegulatoryReference string     `json:"regulatory_reference,omitempty"`
	FieldLocation       string     `json:"field_location,omitempty"`
	Deadline            *time.Time `json:"deadline,omitempty"`
}

// AnalysisResult is produced by the external analysis collaborator.
type AnalysisResult struct {
	ClientName string        `json:"client_name"`
	FormType   string        `json:"form_type"`
	FormNumber string        `json:"form_number"`
	Confidence float64       `json:"confidence"`
	Summary    string        `json:"summary,omitempty"`
	Risks      []RiskFinding `json:"risks"`
}

func (a AnalysisResult) HighRisks() []RiskFinding {
	out := make([]RiskFinding, 0, len(a.Risks))
	for _, risk := range a.Risks {
		if risk.Severity == SeverityHigh {
			out = append(out, risk)
		}
	}
	return out
}

type RiskAssessment struct {
	ID         string        `json:"id"`
	DocumentID string        `json:"document_id"`
	OwnerID    string        `json:"owner_id"`
	FormType   string        `json:"form_type"`
	FormNumber string        `json:"form_number"`
	Confidence float64       `json:"confidence"`
	Risks      []RiskFinding `json:"risks"`
	CreatedAt  time.Time     `json:"created_at"`
}
