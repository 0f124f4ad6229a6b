package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
)

var documentRowColumns = []string{
	"id", "title", "owner_id", "storage_path", "mime_type", "size", "content_hash",
	"parent_folder_id", "status", "metadata", "created_at", "updated_at",
}

func newRepoWithMock(t *testing.T) (*DocumentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &DocumentRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, title, owner_id, storage_path").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDDecodesMetadata(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(documentRowColumns).AddRow(
		"doc-1", "Form 47", "owner-1", "owner-1/doc-1/1700000000_form.pdf", "application/pdf", int64(42), "abc",
		nil, string(domain.StatusProcessing), []byte(`{"processing_stage":"ai-analysis","processing_progress":55}`), now, now,
	)
	mock.ExpectQuery("FROM documents").WithArgs("doc-1").WillReturnRows(rows)

	doc, err := repo.GetByID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if doc.ParentFolderID != "" || doc.Status != domain.StatusProcessing || doc.Size != 42 {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if doc.Metadata[domain.MetaStage] != "ai-analysis" {
		t.Fatalf("unexpected metadata: %v", doc.Metadata)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStateReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WithArgs("missing", string(domain.StatusFailed), []byte(`{"processing_stage":"storage"}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateState(context.Background(), "missing", domain.StatusFailed, map[string]any{domain.MetaStage: "storage"})
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSetParentFolderMergesMetadata(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("SET parent_folder_id").
		WithArgs("doc-1", sql.NullString{String: "folder-2", Valid: true}, []byte(`{"categorization":{"client":"Jane"}}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetParentFolder(context.Background(), "doc-1", "folder-2", map[string]any{
		domain.MetaCategorization: map[string]any{"client": "Jane"},
	})
	if err != nil {
		t.Fatalf("SetParentFolder() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchByTitleEscapesWildcards(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("lower").
		WithArgs("owner-1", `%50\%\_off%`, 10).
		WillReturnRows(sqlmock.NewRows(documentRowColumns))

	docs, err := repo.SearchByTitle(context.Background(), "owner-1", "50%_OFF", 10)
	if err != nil {
		t.Fatalf("SearchByTitle() error = %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected no documents, got %d", len(docs))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFindByContentHashScopesToOwner(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(documentRowColumns).
		AddRow("doc-1", "a.pdf", "owner-1", "p", "application/pdf", int64(1), "hash", "folder-1", "complete", []byte(`{}`), now, now)
	mock.ExpectQuery("content_hash = \\$2").WithArgs("owner-1", "hash").WillReturnRows(rows)

	docs, err := repo.FindByContentHash(context.Background(), "owner-1", "hash")
	if err != nil {
		t.Fatalf("FindByContentHash() error = %v", err)
	}
	if len(docs) != 1 || docs[0].ParentFolderID != "folder-1" {
		t.Fatalf("unexpected documents: %+v", docs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
