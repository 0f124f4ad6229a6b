package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
)

var versionRowColumns = []string{
	"id", "document_id", "version_number", "storage_path", "title", "is_current",
	"created_by", "change_note", "size", "mime_type", "content_hash", "created_at",
}

func newVersionRepoWithMock(t *testing.T) (*VersionRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewVersionRepository(db), mock, func() { _ = db.Close() }
}

func sampleVersion() *domain.DocumentVersion {
	return &domain.DocumentVersion{
		ID:            "v-2",
		DocumentID:    "doc-1",
		VersionNumber: 2,
		StoragePath:   "owner-1/doc-1/versions/v2_form.pdf",
		Title:         "form.pdf",
		CreatedBy:     "owner-1",
		Size:          10,
		MimeType:      "application/pdf",
		ContentHash:   "hash-v2",
		CreatedAt:     time.Now().UTC(),
	}
}

func TestPromoteVersionMirrorsPointerInTransaction(t *testing.T) {
	repo, mock, done := newVersionRepoWithMock(t)
	defer done()
	v := sampleVersion()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE document_versions SET is_current = FALSE").
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO document_versions").
		WithArgs("v-2", "doc-1", 2, v.StoragePath, "form.pdf", true, "owner-1", "", int64(10),
			"application/pdf", "hash-v2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE documents").
		WithArgs("doc-1", v.StoragePath, "form.pdf", int64(10), "application/pdf", "hash-v2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.PromoteVersion(context.Background(), v); err != nil {
		t.Fatalf("PromoteVersion() error = %v", err)
	}
	if !v.IsCurrent {
		t.Fatalf("expected version marked current")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPromoteVersionMapsUniqueViolationToConflict(t *testing.T) {
	repo, mock, done := newVersionRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE document_versions SET is_current = FALSE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO document_versions").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_document_versions_number"})
	mock.ExpectRollback()

	err := repo.PromoteVersion(context.Background(), sampleVersion())
	if !domain.IsKind(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSwitchCurrentRejectsForeignVersion(t *testing.T) {
	repo, mock, done := newVersionRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs("v-9", "doc-1").
		WillReturnRows(sqlmock.NewRows(versionRowColumns))
	mock.ExpectRollback()

	_, err := repo.SwitchCurrent(context.Background(), "doc-1", "v-9")
	if !domain.IsKind(err, domain.ErrVersionNotFound) {
		t.Fatalf("expected ErrVersionNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSwitchCurrentFlipsFlagsAndMirrors(t *testing.T) {
	repo, mock, done := newVersionRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs("v-1", "doc-1").
		WillReturnRows(sqlmock.NewRows(versionRowColumns).
			AddRow("v-1", "doc-1", 1, "owner-1/doc-1/1_form.pdf", "form.pdf", false, "owner-1", "", int64(7),
				"application/pdf", "hash-v1", now))
	mock.ExpectExec("SET is_current = FALSE").WithArgs("doc-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SET is_current = TRUE").WithArgs("v-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE documents").
		WithArgs("doc-1", "owner-1/doc-1/1_form.pdf", "form.pdf", int64(7), "application/pdf", "hash-v1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	v, err := repo.SwitchCurrent(context.Background(), "doc-1", "v-1")
	if err != nil {
		t.Fatalf("SwitchCurrent() error = %v", err)
	}
	if !v.IsCurrent || v.VersionNumber != 1 {
		t.Fatalf("unexpected version: %+v", v)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMaxVersionNumberReportsAbsence(t *testing.T) {
	repo, mock, done := newVersionRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT MAX").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

	n, ok, err := repo.MaxVersionNumber(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("MaxVersionNumber() error = %v", err)
	}
	if ok || n != 0 {
		t.Fatalf("expected no versions, got n=%d ok=%v", n, ok)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteVersionGuardsCurrentRow(t *testing.T) {
	repo, mock, done := newVersionRepoWithMock(t)
	defer done()

	mock.ExpectExec("AND NOT is_current").
		WithArgs("v-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteVersion(context.Background(), "v-1")
	if !domain.IsKind(err, domain.ErrVersionNotFound) {
		t.Fatalf("expected ErrVersionNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
