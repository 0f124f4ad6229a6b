package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound   = errors.New("document not found")
	ErrVersionNotFound    = errors.New("version not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrTemporary          = errors.New("temporary failure")
	ErrDuplicate          = errors.New("duplicate document")
	ErrCurrentVersion     = errors.New("current version cannot be deleted")
	ErrVersionConflict    = errors.New("version number conflict")
	ErrAnalysisFailed     = errors.New("document analysis failed")
	ErrRetrievalExhausted = errors.New("document retrieval exhausted")
	ErrOffline            = errors.New("network offline")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// StageError records where an ingestion stopped.
type StageError struct {
	Stage    Stage
	Progress int
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed at %d%%: %v", e.Stage, e.Progress, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NonFatalError is a stage failure that did not stop the pipeline.
type NonFatalError struct {
	Stage Stage  `json:"stage"`
	Err   error  `json:"-"`
	Msg   string `json:"message"`
}

func NewNonFatal(stage Stage, err error) NonFatalError {
	return NonFatalError{Stage: stage, Err: err, Msg: err.Error()}
}

func (e NonFatalError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Msg)
}

func (e NonFatalError) Unwrap() error { return e.Err }
