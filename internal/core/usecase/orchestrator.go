package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
	"github.com/OsmanWais29/filesecureai-sub002/internal/core/ports"
)

const (
	outcomeOK       = "ok"
	outcomeFailed   = "failed"
	outcomeDegraded = "degraded"
	outcomeSkipped  = "skipped"
)

type documentCategorizer interface {
	Apply(ctx context.Context, documentID string, result *domain.AnalysisResult) error
}

type riskTaskApplier interface {
	Apply(ctx context.Context, documentID string, result *domain.AnalysisResult) RiskTaskOutcome
}

type initialVersionRecorder interface {
	RecordInitial(ctx context.Context, doc *domain.Document, createdBy string) (string, error)
}

// OrchestratorDeps wires the pipeline collaborators. Assessments, Queue and Observer are optional.
type OrchestratorDeps struct {
	Documents   ports.DocumentRepository
	Storage     ports.ObjectStorage
	Duplicates  ports.DuplicateChecker
	Extractor   ports.TextExtractor
	Analyzer    ports.DocumentAnalyzer
	Categorizer documentCategorizer
	RiskTasks   riskTaskApplier
	Versions    initialVersionRecorder
	Assessments ports.RiskAssessmentStore
	Queue       ports.MessageQueue
	Observer    ports.PipelineObserver
	Logger      *slog.Logger
}

// IngestionOrchestrator drives an upload through the fixed stage sequence.
type IngestionOrchestrator struct {
	deps   OrchestratorDeps
	logger *slog.Logger
	now    func() time.Time
}

func NewIngestionOrchestrator(deps OrchestratorDeps) *IngestionOrchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestionOrchestrator{deps: deps, logger: logger, now: time.Now}
}

type pipelineRun struct {
	doc    *domain.Document
	state  *domain.PipelineState
	result *domain.ProcessResult
}

func newPipelineRun() *pipelineRun {
	state := domain.NewPipelineState()
	return &pipelineRun{
		state:  state,
		result: &domain.ProcessResult{State: state, Warnings: []domain.NonFatalError{}},
	}
}

func (r *pipelineRun) warn(stage domain.Stage, err error) {
	nf := domain.NewNonFatal(stage, err)
	r.result.Warnings = append(r.result.Warnings, nf)
	r.state.AddError(nf.Error())
}

// Process runs every stage synchronously. Failures return both the partial result and an error.
func (o *IngestionOrchestrator) Process(
	ctx context.Context,
	file domain.File,
	ownerID string,
	opts domain.ProcessOptions,
) (*domain.ProcessResult, error) {
	if err := validateUpload(file, ownerID); err != nil {
		return nil, err
	}
	run, err := o.intake(ctx, file, ownerID, opts)
	if err != nil {
		return run.result, err
	}
	if err := o.finish(ctx, run, file); err != nil {
		return run.result, err
	}
	return run.result, nil
}

// Submit stores the upload and hands the remaining stages to a worker via the queue.
func (o *IngestionOrchestrator) Submit(
	ctx context.Context,
	file domain.File,
	ownerID string,
	opts domain.ProcessOptions,
) (*domain.ProcessResult, error) {
	if o.deps.Queue == nil {
		return nil, fmt.Errorf("submit document: queue is not configured")
	}
	if err := validateUpload(file, ownerID); err != nil {
		return nil, err
	}
	run, err := o.intake(ctx, file, ownerID, opts)
	if err != nil {
		return run.result, err
	}
	if err := o.deps.Queue.PublishDocumentIngested(ctx, run.doc.ID); err != nil {
		run.result.Success = false
		return run.result, o.fail(ctx, run, domain.StageStorage, fmt.Errorf("publish ingestion event: %w", err))
	}
	run.result.Success = true
	o.logger.Info("document_submitted", "document_id", run.doc.ID, "owner_id", ownerID)
	return run.result, nil
}

// Resume runs stages from text extraction onward for a submitted document.
func (o *IngestionOrchestrator) Resume(ctx context.Context, documentID string) (*domain.ProcessResult, error) {
	doc, err := o.deps.Documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status == domain.StatusComplete {
		state, err := stateFromDocument(doc)
		if err != nil {
			return nil, err
		}
		o.logger.Info("document_already_processed", "document_id", doc.ID)
		return &domain.ProcessResult{Success: true, DocumentID: doc.ID, State: state}, nil
	}

	run := newPipelineRun()
	run.doc = doc
	run.result.DocumentID = doc.ID
	run.state.Advance(domain.StageStorage)

	file, err := o.loadFile(ctx, doc)
	if err != nil {
		return run.result, o.fail(ctx, run, domain.StageTextExtraction, err)
	}
	if err := o.finish(ctx, run, file); err != nil {
		return run.result, err
	}
	return run.result, nil
}

// GetStatus rebuilds pipeline state from the persisted document alone.
func (o *IngestionOrchestrator) GetStatus(ctx context.Context, documentID string) (*domain.PipelineState, error) {
	doc, err := o.deps.Documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return stateFromDocument(doc)
}

// intake covers duplicate check and record creation with byte upload.
func (o *IngestionOrchestrator) intake(
	ctx context.Context,
	file domain.File,
	ownerID string,
	opts domain.ProcessOptions,
) (*pipelineRun, error) {
	run := newPipelineRun()

	started := o.now()
	if opts.SkipDuplicateCheck || o.deps.Duplicates == nil {
		o.observe(domain.StageUpload, outcomeSkipped, started)
	} else {
		check := o.deps.Duplicates.Check(ctx, file, ownerID)
		run.result.Duplicate = &check
		if check.IsDuplicate && !opts.ForceAnalysis {
			o.observe(domain.StageUpload, outcomeFailed, started)
			err := domain.WrapError(domain.ErrDuplicate, "process document",
				fmt.Errorf("%d existing candidates for %q", len(check.Candidates), file.Name))
			run.state.AddError(err.Error())
			o.logger.Info("duplicate_upload_blocked",
				"owner_id", ownerID,
				"file_name", file.Name,
				"candidates", len(check.Candidates),
			)
			return run, err
		}
		for _, rec := range check.Recommendations {
			if rec == recommendCheckIncomplete {
				run.warn(domain.StageUpload, errors.New(rec))
			}
		}
		o.observe(domain.StageUpload, outcomeOK, started)
	}

	now := o.now().UTC()
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = versionTitle(file.Name, "Untitled document")
	}
	doc := &domain.Document{
		ID:          uuid.NewString(),
		Title:       title,
		OwnerID:     ownerID,
		MimeType:    file.MimeType,
		Size:        file.Size(),
		ContentHash: ContentHash(file.Data),
		Status:      domain.StatusUploaded,
		Metadata: map[string]any{
			domain.MetaFileName:      file.Name,
			domain.MetaClientHint:    opts.ClientHint,
			domain.MetaForceAnalysis: opts.ForceAnalysis,
			domain.MetaStage:         string(run.state.Stage),
			domain.MetaProgress:      run.state.Progress,
			domain.MetaErrors:        run.state.Errors,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	run.state.Advance(domain.StageStorage)
	started = o.now()
	if err := o.deps.Documents.Create(ctx, doc); err != nil {
		o.observe(domain.StageStorage, outcomeFailed, started)
		run.state.AddError(err.Error())
		o.logger.Error("pipeline_stage_failed", "stage", domain.StageStorage, "owner_id", ownerID, "error", err)
		return run, &domain.StageError{Stage: domain.StageStorage, Progress: run.state.Progress, Err: fmt.Errorf("create document: %w", err)}
	}
	run.doc = doc
	run.result.DocumentID = doc.ID
	o.checkpoint(ctx, run)

	key := UploadPath(ownerID, doc.ID, now, file.Name)
	if err := o.deps.Storage.PutObject(ctx, key, bytes.NewReader(file.Data)); err != nil {
		o.observe(domain.StageStorage, outcomeFailed, started)
		return run, o.fail(ctx, run, domain.StageStorage, fmt.Errorf("store document bytes: %w", err))
	}
	if err := o.deps.Documents.UpdateStoragePath(ctx, doc.ID, key); err != nil {
		o.observe(domain.StageStorage, outcomeFailed, started)
		return run, o.fail(ctx, run, domain.StageStorage, fmt.Errorf("record storage path: %w", err))
	}
	doc.StoragePath = key
	o.observe(domain.StageStorage, outcomeOK, started)
	o.logger.Info("document_stored", "document_id", doc.ID, "storage_path", key, "size", doc.Size)
	return run, nil
}

// finish runs text extraction through completion for a stored document.
func (o *IngestionOrchestrator) finish(ctx context.Context, run *pipelineRun, file domain.File) error {
	doc := run.doc

	o.enter(ctx, run, domain.StageTextExtraction)
	started := o.now()
	text, err := o.deps.Extractor.Extract(ctx, file)
	if err != nil {
		o.observe(domain.StageTextExtraction, outcomeFailed, started)
		return o.fail(ctx, run, domain.StageTextExtraction, fmt.Errorf("extract text: %w", err))
	}
	o.observe(domain.StageTextExtraction, outcomeOK, started)

	o.enter(ctx, run, domain.StageAIAnalysis)
	started = o.now()
	analysis, err := o.deps.Analyzer.Analyze(ctx, doc.ID, text, doc.Title)
	if err == nil && analysis == nil {
		err = errors.New("analyzer returned no result")
	}
	if err != nil {
		o.observe(domain.StageAIAnalysis, outcomeFailed, started)
		if !domain.IsKind(err, domain.ErrAnalysisFailed) {
			err = domain.WrapError(domain.ErrAnalysisFailed, "analyze document", err)
		}
		return o.fail(ctx, run, domain.StageAIAnalysis, err)
	}
	o.observe(domain.StageAIAnalysis, outcomeOK, started)
	run.state.Metadata[domain.MetaAnalysis] = analysis
	if err := o.deps.Documents.UpdateState(ctx, doc.ID, domain.StatusProcessing, map[string]any{
		domain.MetaAnalysis: analysis,
	}); err != nil {
		run.warn(domain.StageAIAnalysis, fmt.Errorf("persist analysis: %w", err))
	}
	o.saveAssessment(ctx, run, analysis)

	o.enter(ctx, run, domain.StageCategorization)
	started = o.now()
	if err := o.deps.Categorizer.Apply(ctx, doc.ID, analysis); err != nil {
		o.observe(domain.StageCategorization, outcomeDegraded, started)
		o.logger.Warn("pipeline_stage_degraded", "stage", domain.StageCategorization, "document_id", doc.ID, "error", err)
		run.warn(domain.StageCategorization, err)
	} else {
		o.observe(domain.StageCategorization, outcomeOK, started)
	}

	o.enter(ctx, run, domain.StageRiskAssessment)
	started = o.now()
	outcome := o.deps.RiskTasks.Apply(ctx, doc.ID, analysis)
	for _, failure := range outcome.Failures {
		run.result.Warnings = append(run.result.Warnings, failure)
		run.state.AddError(failure.Error())
	}
	if len(outcome.Failures) > 0 {
		o.observe(domain.StageRiskAssessment, outcomeDegraded, started)
	} else {
		o.observe(domain.StageRiskAssessment, outcomeOK, started)
	}
	run.state.Metadata[domain.MetaRiskTasks] = outcome

	started = o.now()
	completion := outcomeOK
	if _, err := o.deps.Versions.RecordInitial(ctx, doc, doc.OwnerID); err != nil {
		completion = outcomeDegraded
		o.logger.Warn("pipeline_versioning_failed", "document_id", doc.ID, "error", err)
		run.warn(domain.StageComplete, fmt.Errorf("record initial version: %w", err))
	}

	run.state.Advance(domain.StageComplete)
	if err := o.deps.Documents.UpdateState(ctx, doc.ID, domain.StatusComplete, map[string]any{
		domain.MetaStage:     string(run.state.Stage),
		domain.MetaProgress:  run.state.Progress,
		domain.MetaErrors:    run.state.Errors,
		domain.MetaRiskTasks: outcome,
	}); err != nil {
		o.logger.Warn("pipeline_checkpoint_failed", "stage", domain.StageComplete, "document_id", doc.ID, "error", err)
		run.warn(domain.StageComplete, fmt.Errorf("persist completion: %w", err))
		completion = outcomeDegraded
	}
	o.observe(domain.StageComplete, completion, started)

	run.result.Success = true
	o.logger.Info("pipeline_completed",
		"document_id", doc.ID,
		"warnings", len(run.result.Warnings),
		"high_risk_count", outcome.HighRiskCount,
	)
	return nil
}

func (o *IngestionOrchestrator) saveAssessment(ctx context.Context, run *pipelineRun, analysis *domain.AnalysisResult) {
	if o.deps.Assessments == nil {
		return
	}
	assessment := &domain.RiskAssessment{
		ID:         uuid.NewString(),
		DocumentID: run.doc.ID,
		OwnerID:    run.doc.OwnerID,
		FormType:   analysis.FormType,
		FormNumber: analysis.FormNumber,
		Confidence: analysis.Confidence,
		Risks:      analysis.Risks,
		CreatedAt:  o.now().UTC(),
	}
	if err := o.deps.Assessments.SaveAssessment(ctx, assessment); err != nil {
		o.logger.Warn("risk_assessment_save_failed", "document_id", run.doc.ID, "error", err)
		run.warn(domain.StageAIAnalysis, fmt.Errorf("save risk assessment: %w", err))
	}
}

// enter advances to stage and persists the checkpoint.
func (o *IngestionOrchestrator) enter(ctx context.Context, run *pipelineRun, stage domain.Stage) {
	run.state.Advance(stage)
	o.checkpoint(ctx, run)
}

func (o *IngestionOrchestrator) checkpoint(ctx context.Context, run *pipelineRun) {
	if run.doc == nil {
		return
	}
	status := domain.StatusProcessing
	if run.state.Stage == domain.StageStorage {
		status = domain.StatusUploaded
	}
	err := o.deps.Documents.UpdateState(ctx, run.doc.ID, status, map[string]any{
		domain.MetaStage:    string(run.state.Stage),
		domain.MetaProgress: run.state.Progress,
		domain.MetaErrors:   run.state.Errors,
	})
	if err != nil {
		o.logger.Warn("pipeline_checkpoint_failed", "stage", run.state.Stage, "document_id", run.doc.ID, "error", err)
	}
}

// fail persists the failed stage and returns the structured error.
func (o *IngestionOrchestrator) fail(ctx context.Context, run *pipelineRun, stage domain.Stage, err error) error {
	run.state.Advance(stage)
	run.state.AddError(err.Error())
	run.result.Success = false

	if run.doc != nil {
		persistCtx := context.WithoutCancel(ctx)
		if perr := o.deps.Documents.UpdateState(persistCtx, run.doc.ID, domain.StatusFailed, map[string]any{
			domain.MetaStage:    string(run.state.Stage),
			domain.MetaProgress: run.state.Progress,
			domain.MetaErrors:   run.state.Errors,
		}); perr != nil {
			o.logger.Warn("pipeline_checkpoint_failed", "stage", stage, "document_id", run.doc.ID, "error", perr)
		}
	}
	o.logger.Error("pipeline_stage_failed",
		"stage", stage,
		"progress", run.state.Progress,
		"document_id", run.result.DocumentID,
		"error", err,
	)
	return &domain.StageError{Stage: stage, Progress: run.state.Progress, Err: err}
}

func (o *IngestionOrchestrator) observe(stage domain.Stage, outcome string, started time.Time) {
	if o.deps.Observer == nil {
		return
	}
	o.deps.Observer.ObserveStage(stage, outcome, o.now().Sub(started))
}

func (o *IngestionOrchestrator) loadFile(ctx context.Context, doc *domain.Document) (domain.File, error) {
	if strings.TrimSpace(doc.StoragePath) == "" {
		return domain.File{}, domain.WrapError(domain.ErrInvalidInput, "load document bytes", fmt.Errorf("document %s has no storage path", doc.ID))
	}
	rc, err := o.deps.Storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return domain.File{}, fmt.Errorf("open document bytes: %w", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return domain.File{}, fmt.Errorf("read document bytes: %w", err)
	}
	name := metaString(doc.Metadata, domain.MetaFileName)
	if name == "" {
		name = doc.Title
	}
	return domain.File{Name: name, MimeType: doc.MimeType, Data: data}, nil
}

func validateUpload(file domain.File, ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "validate upload", errors.New("owner is required"))
	}
	if strings.TrimSpace(file.Name) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "validate upload", errors.New("file name is required"))
	}
	if len(file.Data) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "validate upload", errors.New("file is empty"))
	}
	return nil
}
