package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
)

type RiskAssessmentRepository struct {
	db *sql.DB
}

func NewRiskAssessmentRepository(db *sql.DB) *RiskAssessmentRepository {
	return &RiskAssessmentRepository{db: db}
}

func (r *RiskAssessmentRepository) SaveAssessment(ctx context.Context, assessment *domain.RiskAssessment) error {
	risks := assessment.Risks
	if risks == nil {
		risks = []domain.RiskFinding{}
	}
	risksJSON, err := json.Marshal(risks)
	if err != nil {
		return fmt.Errorf("marshal risks: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO risk_assessments (id, document_id, owner_id, form_type, form_number, confidence, risks, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, assessment.ID, assessment.DocumentID, assessment.OwnerID, assessment.FormType, assessment.FormNumber,
		assessment.Confidence, risksJSON, assessment.CreatedAt)
	if err != nil {
		return fmt.Errorf("save risk assessment: %w", err)
	}
	return nil
}
