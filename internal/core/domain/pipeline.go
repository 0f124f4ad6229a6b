package domain

type Stage string

const (
	StageUpload         Stage = "upload"
	StageStorage        Stage = "storage"
	StageTextExtraction Stage = "text-extraction"
	StageAIAnalysis     Stage = "ai-analysis"
	StageCategorization Stage = "categorization"
	StageRiskAssessment Stage = "risk-assessment"
	StageComplete       Stage = "complete"
)

var stageProgress = map[Stage]int{
	StageUpload:         10,
	StageStorage:        25,
	StageTextExtraction: 40,
	StageAIAnalysis:     55,
	StageCategorization: 75,
	StageRiskAssessment: 90,
	StageComplete:       100,
}

// Progress is the checkpoint percentage reached on entering the stage.
func (s Stage) Progress() int {
	return stageProgress[s]
}

func (s Stage) Valid() bool {
	_, ok := stageProgress[s]
	return ok
}

type PipelineState struct {
	Stage    Stage          `json:"stage"`
	Progress int            `json:"progress"`
	Errors   []string       `json:"errors"`
	Metadata map[string]any `json:"metadata"`
}

func NewPipelineState() *PipelineState {
	return &PipelineState{
		Stage:    StageUpload,
		Progress: StageUpload.Progress(),
		Errors:   []string{},
		Metadata: map[string]any{},
	}
}

// Advance moves to stage; progress never decreases.
func (p *PipelineState) Advance(stage Stage) {
	p.Stage = stage
	if next := stage.Progress(); next > p.Progress {
		p.Progress = next
	}
}

func (p *PipelineState) AddError(msg string) {
	p.Errors = append(p.Errors, msg)
}

type ProcessOptions struct {
	SkipDuplicateCheck bool   `json:"skip_duplicate_check"`
	ForceAnalysis      bool   `json:"force_analysis"`
	ClientHint         string `json:"client_hint,omitempty"`
	// Title overrides the title derived from the file name.
	Title string `json:"title,omitempty"`
}

type ProcessResult struct {
	Success    bool            `json:"success"`
	DocumentID string          `json:"document_id,omitempty"`
	State      *PipelineState  `json:"pipeline_state"`
	Duplicate  *DuplicateCheck `json:"duplicate,omitempty"`
	Warnings   []NonFatalError `json:"warnings,omitempty"`
}
