package usecase

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
)

// stateFromDocument reconstructs pipeline state from the status column and metadata bag.
func stateFromDocument(doc *domain.Document) (*domain.PipelineState, error) {
	if doc == nil {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "pipeline status", fmt.Errorf("document is nil"))
	}

	stage := domain.Stage(metaString(doc.Metadata, domain.MetaStage))
	if !stage.Valid() {
		stage = stageForStatus(doc.Status)
	}
	progress, ok := metaInt(doc.Metadata, domain.MetaProgress)
	if !ok {
		progress = stage.Progress()
	}
	if doc.Status == domain.StatusComplete {
		stage = domain.StageComplete
		progress = domain.StageComplete.Progress()
	}

	state := &domain.PipelineState{
		Stage:    stage,
		Progress: progress,
		Errors:   metaStrings(doc.Metadata, domain.MetaErrors),
		Metadata: map[string]any{
			"document_id": doc.ID,
			"status":      string(doc.Status),
		},
	}
	for _, key := range []string{domain.MetaAnalysis, domain.MetaCategorization, domain.MetaRiskTasks} {
		if value, ok := doc.Metadata[key]; ok && value != nil {
			state.Metadata[key] = value
		}
	}
	return state, nil
}

func stageForStatus(status domain.DocumentStatus) domain.Stage {
	switch status {
	case domain.StatusComplete:
		return domain.StageComplete
	case domain.StatusUploaded:
		return domain.StageStorage
	default:
		return domain.StageUpload
	}
}

func metaString(meta map[string]any, key string) string {
	value, _ := meta[key].(string)
	return value
}

// metaInt accepts the numeric shapes produced in memory and by JSON decoding.
func metaInt(meta map[string]any, key string) (int, bool) {
	switch v := meta[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(math.Round(v)), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

func metaStrings(meta map[string]any, key string) []string {
	out := []string{}
	switch v := meta[key].(type) {
	case []string:
		out = append(out, v...)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}
