package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
)

func TestCategorizerIsIdempotent(t *testing.T) {
	docs := newMemDocuments(&domain.Document{ID: "doc-1", OwnerID: "owner-1"})
	folders := &memFolders{}
	categorizer := NewCategorizer(docs, folders, nil)
	result := &domain.AnalysisResult{ClientName: "Jane Doe", FormNumber: "47", FormType: "Consumer Proposal"}

	for i := 0; i < 2; i++ {
		if err := categorizer.Apply(context.Background(), "doc-1", result); err != nil {
			t.Fatalf("Apply() #%d error = %v", i+1, err)
		}
	}

	if folders.count() != 2 {
		t.Fatalf("expected one client and one form folder, got %d", folders.count())
	}
	client, form := folders.folders[0], folders.folders[1]
	if client.Title != "Jane Doe" || client.Type != domain.FolderClient || client.ParentID != "" {
		t.Fatalf("unexpected client folder: %+v", client)
	}
	if form.Title != "47 - Consumer Proposal" || form.Type != domain.FolderForm || form.ParentID != client.ID {
		t.Fatalf("unexpected form folder: %+v", form)
	}
	if form.Metadata["auto_created"] != true {
		t.Fatalf("expected auto_created metadata, got %v", form.Metadata)
	}

	doc := docs.get("doc-1")
	if doc.ParentFolderID != form.ID {
		t.Fatalf("expected document under form folder, got %q", doc.ParentFolderID)
	}
	meta, ok := doc.Metadata[domain.MetaCategorization].(map[string]any)
	if !ok || meta["client_name"] != "Jane Doe" || meta["form_number"] != "47" {
		t.Fatalf("unexpected categorization metadata: %v", doc.Metadata[domain.MetaCategorization])
	}
}

func TestCategorizerFallsBackToClientHint(t *testing.T) {
	docs := newMemDocuments(&domain.Document{
		ID:       "doc-1",
		OwnerID:  "owner-1",
		Metadata: map[string]any{domain.MetaClientHint: "Acme Ltd"},
	})
	folders := &memFolders{}
	categorizer := NewCategorizer(docs, folders, nil)

	if err := categorizer.Apply(context.Background(), "doc-1", &domain.AnalysisResult{FormType: "Statement"}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if folders.folders[0].Title != "Acme Ltd" {
		t.Fatalf("expected client hint folder, got %q", folders.folders[0].Title)
	}
	if folders.folders[1].Title != "Statement" {
		t.Fatalf("expected form type folder, got %q", folders.folders[1].Title)
	}
}

func TestCategorizerPropagatesFolderErrors(t *testing.T) {
	docs := newMemDocuments(&domain.Document{ID: "doc-1", OwnerID: "owner-1"})
	folders := &memFolders{createErr: errors.New("insert failed")}
	categorizer := NewCategorizer(docs, folders, nil)

	err := categorizer.Apply(context.Background(), "doc-1", &domain.AnalysisResult{ClientName: "Jane"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if docs.get("doc-1").ParentFolderID != "" {
		t.Fatalf("document must not be moved on folder failure")
	}
}

func TestFormFolderTitle(t *testing.T) {
	tests := map[string][2]string{
		"47 - Consumer Proposal": {"47", "Consumer Proposal"},
		"Consumer Proposal":      {"", "Consumer Proposal"},
		"Form 47":                {"47", ""},
		unknownFormFolder:        {"", " "},
	}
	for want, in := range tests {
		if got := FormFolderTitle(in[0], in[1]); got != want {
			t.Fatalf("FormFolderTitle(%q, %q) = %q, want %q", in[0], in[1], got, want)
		}
	}
}
