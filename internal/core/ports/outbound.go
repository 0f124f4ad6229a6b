package ports

import (
	"context"
	"io"
	"time"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	// UpdateState sets the status and merges patch into the metadata bag.
	UpdateState(ctx context.Context, id string, status domain.DocumentStatus, patch map[string]any) error
	UpdateStoragePath(ctx context.Context, id, storagePath string) error
	SetParentFolder(ctx context.Context, id, folderID string, patch map[string]any) error
	FindByContentHash(ctx context.Context, ownerID, hash string) ([]domain.Document, error)
	SearchByTitle(ctx context.Context, ownerID, fragment string, limit int) ([]domain.Document, error)
}

// VersionRepository persists document version history.
type VersionRepository interface {
	ListVersions(ctx context.Context, documentID string) ([]domain.DocumentVersion, error)
	GetVersion(ctx context.Context, versionID string) (*domain.DocumentVersion, error)
	MaxVersionNumber(ctx context.Context, documentID string) (int, bool, error)
	// PromoteVersion inserts v as the only current version and mirrors it onto the document.
	PromoteVersion(ctx context.Context, v *domain.DocumentVersion) error
	// SwitchCurrent makes versionID the only current version and mirrors it onto the document.
	SwitchCurrent(ctx context.Context, documentID, versionID string) (*domain.DocumentVersion, error)
	DeleteVersion(ctx context.Context, versionID string) error
}

// FolderRepository stores the client/form folder tree.
type FolderRepository interface {
	FindFolder(ctx context.Context, title, parentID, ownerID string, folderType domain.FolderType) (*domain.Folder, error)
	CreateFolder(ctx context.Context, folder *domain.Folder) error
}

// TaskStore persists work items.
type TaskStore interface {
	CreateTask(ctx context.Context, task *domain.Task) error
	ListTasksByDocument(ctx context.Context, documentID string) ([]domain.Task, error)
}

// RiskAssessmentStore persists analysis risk findings for audit.
type RiskAssessmentStore interface {
	SaveAssessment(ctx context.Context, assessment *domain.RiskAssessment) error
}

type ObjectInfo struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ObjectStorage stores document bytes.
type ObjectStorage interface {
	PutObject(ctx context.Context, path string, data io.Reader) error
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
	PublicURL(path string) string
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	RemoveObject(ctx context.Context, path string) error
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// RiskAlertPublisher emits the high-risk summary event.
type RiskAlertPublisher interface {
	PublishRiskAlert(ctx context.Context, alert domain.RiskAlert) error
}

// TextExtractor extracts best-effort plain text from an uploaded file.
type TextExtractor interface {
	Extract(ctx context.Context, file domain.File) (string, error)
}

// DocumentAnalyzer is the external analysis collaborator.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, documentID, text, title string) (*domain.AnalysisResult, error)
}

// SessionProvider is the identity/session collaborator.
type SessionProvider interface {
	CurrentSession(ctx context.Context) (*domain.Session, error)
	RefreshSession(ctx context.Context) error
}

// Connectivity reports network reachability.
type Connectivity interface {
	Online() bool
	// WaitOnline blocks until the network is reachable or ctx is done.
	WaitOnline(ctx context.Context) error
}

// ContentFetcher downloads bytes behind a resolved URL.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) (*domain.Content, error)
	// Probe checks that url is reachable without reading its body.
	Probe(ctx context.Context, url string) error
}

// OfflineCache is the size- and age-bounded local byte store.
type OfflineCache interface {
	Put(ctx context.Context, key string, data []byte, contentType string)
	Get(ctx context.Context, key string) (*domain.CacheEntry, bool)
	Remove(ctx context.Context, key string)
	Clear(ctx context.Context)
}

// PipelineObserver records ingestion stage outcomes.
type PipelineObserver interface {
	ObserveStage(stage domain.Stage, outcome string, duration time.Duration)
}

// RetrievalObserver records retrieval attempts and the tier that served each resolution.
type RetrievalObserver interface {
	ObserveAttempt(tier domain.Tier, outcome string, duration time.Duration)
	ObserveResolution(tier domain.Tier)
}

// RetryHooks customizes a single retried operation.
type RetryHooks struct {
	// Retryable reports whether err may be retried; nil retries everything.
	Retryable func(err error) bool
	// BeforeFinal runs once before the last attempt.
	BeforeFinal func(ctx context.Context) error
	// Gate pauses attempts while offline; attempts that fail while offline are not counted.
	Gate Connectivity
	// OnAttempt observes every counted attempt.
	OnAttempt func(attempt int, err error, elapsed time.Duration)
}

// RetryExecutor runs an operation with bounded exponential backoff.
type RetryExecutor interface {
	ExecuteAttempts(ctx context.Context, operation string, fn func(ctx context.Context, attempt int) error, hooks RetryHooks) error
}
