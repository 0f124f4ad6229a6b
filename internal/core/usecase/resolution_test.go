package usecase

import (
	"context"
	"testing"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
	"github.com/OsmanWais29/filesecureai-sub002/internal/core/ports"
)

type processorFake struct {
	opts  domain.ProcessOptions
	calls int
}

func (f *processorFake) Process(_ context.Context, _ domain.File, _ string, opts domain.ProcessOptions) (*domain.ProcessResult, error) {
	f.calls++
	f.opts = opts
	return &domain.ProcessResult{Success: true, DocumentID: "doc-new"}, nil
}

func TestResolveVersionAppendsToExistingDocument(t *testing.T) {
	f := newVersionFixture(t)
	processor := &processorFake{}
	uc := NewResolveDuplicateUseCase(f.docs, f.manager, processor, nil)

	outcome, err := uc.Resolve(context.Background(), ports.ResolutionRequest{
		Resolution: domain.ResolutionVersion,
		ExistingID: "doc-1",
		File:       domain.File{Name: "form.pdf", Data: []byte("updated")},
		OwnerID:    "owner-1",
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	current := assertSingleCurrent(t, f, "doc-1")
	if outcome.VersionID != current.ID || current.VersionNumber != 2 {
		t.Fatalf("unexpected outcome %+v for current %+v", outcome, current)
	}
	if current.ChangeNote != "New version from duplicate upload" {
		t.Fatalf("unexpected change note %q", current.ChangeNote)
	}
	if processor.calls != 0 {
		t.Fatalf("version resolution must not reprocess")
	}
}

func TestResolveRenameProcessesUnderNewTitle(t *testing.T) {
	f := newVersionFixture(t)
	processor := &processorFake{}
	uc := NewResolveDuplicateUseCase(f.docs, f.manager, processor, nil)

	outcome, err := uc.Resolve(context.Background(), ports.ResolutionRequest{
		Resolution: domain.ResolutionRename,
		File:       domain.File{Name: "form.pdf", Data: []byte("x")},
		OwnerID:    "owner-1",
		NewTitle:   "Form 47 (amended)",
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !processor.opts.SkipDuplicateCheck || processor.opts.Title != "Form 47 (amended)" {
		t.Fatalf("unexpected process options: %+v", processor.opts)
	}
	if outcome.DocumentID != "doc-new" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}

func TestResolveCancelAndInvalidInput(t *testing.T) {
	f := newVersionFixture(t)
	processor := &processorFake{}
	uc := NewResolveDuplicateUseCase(f.docs, f.manager, processor, nil)
	ctx := context.Background()

	if _, err := uc.Resolve(ctx, ports.ResolutionRequest{Resolution: domain.ResolutionCancel}); err != nil {
		t.Fatalf("cancel error = %v", err)
	}
	if f.versions.total() != 0 || processor.calls != 0 {
		t.Fatalf("cancel must be a no-op")
	}
	if _, err := uc.Resolve(ctx, ports.ResolutionRequest{Resolution: "merge"}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := uc.Resolve(ctx, ports.ResolutionRequest{Resolution: domain.ResolutionRename}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for rename without title, got %v", err)
	}
	_, err := uc.Resolve(ctx, ports.ResolutionRequest{
		Resolution: domain.ResolutionReplace,
		ExistingID: "doc-1",
		OwnerID:    "someone-else",
		File:       domain.File{Name: "x.pdf", Data: []byte("x")},
	})
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound for foreign owner, got %v", err)
	}
}
