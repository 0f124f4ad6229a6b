package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusComplete   DocumentStatus = "complete"
	StatusFailed     DocumentStatus = "failed"
)

// Metadata keys written by the ingestion pipeline.
const (
	MetaStage          = "processing_stage"
	MetaProgress       = "processing_progress"
	MetaErrors         = "processing_errors"
	MetaFileName       = "file_name"
	MetaClientHint     = "client_hint"
	MetaForceAnalysis  = "force_analysis"
	MetaAnalysis       = "analysis"
	MetaCategorization = "categorization"
	MetaRiskTasks      = "risk_tasks"
)

type Document struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	OwnerID        string         `json:"owner_id"`
	StoragePath    string         `json:"storage_path"`
	MimeType       string         `json:"mime_type"`
	Size           int64          `json:"size"`
	ContentHash    string         `json:"content_hash"`
	ParentFolderID string         `json:"parent_folder_id,omitempty"`
	Status         DocumentStatus `json:"status"`
	Metadata       map[string]any `json:"metadata"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// File is an upload candidate held in memory for hashing and re-reads.
type File struct {
	Name     string
	MimeType string
	Data     []byte
}

func (f File) Size() int64 { return int64(len(f.Data)) }

type DocumentVersion struct {
	ID            string    `json:"id"`
	DocumentID    string    `json:"document_id"`
	VersionNumber int       `json:"version_number"`
	StoragePath   string    `json:"storage_path"`
	Title         string    `json:"title"`
	IsCurrent     bool      `json:"is_current"`
	CreatedBy     string    `json:"created_by"`
	ChangeNote    string    `json:"change_note,omitempty"`
	Size          int64     `json:"size"`
	MimeType      string    `json:"mime_type,omitempty"`
	ContentHash   string    `json:"content_hash,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// DocumentPointer is the subset of Document fields mirrored from its current version.
// Empty MimeType or ContentHash leave the document's value untouched.
type DocumentPointer struct {
	StoragePath string
	Title       string
	Size        int64
	MimeType    string
	ContentHash string
}

func (v DocumentVersion) Pointer() DocumentPointer {
	return DocumentPointer{
		StoragePath: v.StoragePath,
		Title:       v.Title,
		Size:        v.Size,
		MimeType:    v.MimeType,
		ContentHash: v.ContentHash,
	}
}

type FolderType string

const (
	FolderClient FolderType = "client"
	FolderForm   FolderType = "form"
)

type Folder struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	ParentID  string         `json:"parent_id,omitempty"`
	OwnerID   string         `json:"owner_id"`
	Type      FolderType     `json:"folder_type"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
}
