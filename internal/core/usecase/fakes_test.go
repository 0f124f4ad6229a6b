package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
	"github.com/OsmanWais29/filesecureai-sub002/internal/core/ports"
)

type memDocuments struct {
	mu        sync.Mutex
	docs      map[string]*domain.Document
	createErr error
	hashErr   error
	searchErr error
	updateErr error
	folderErr error
}

func newMemDocuments(docs ...*domain.Document) *memDocuments {
	m := &memDocuments{docs: make(map[string]*domain.Document)}
	for _, doc := range docs {
		if doc.Metadata == nil {
			doc.Metadata = map[string]any{}
		}
		m.docs[doc.ID] = doc
	}
	return m
}

func (m *memDocuments) Create(_ context.Context, doc *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	copyDoc := *doc
	copyDoc.Metadata = copyMap(doc.Metadata)
	m.docs[doc.ID] = &copyDoc
	return nil
}

func (m *memDocuments) GetByID(_ context.Context, id string) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
	}
	copyDoc := *doc
	copyDoc.Metadata = copyMap(doc.Metadata)
	return &copyDoc, nil
}

func (m *memDocuments) UpdateState(_ context.Context, id string, status domain.DocumentStatus, patch map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	doc, ok := m.docs[id]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	if status != "" {
		doc.Status = status
	}
	for k, v := range patch {
		doc.Metadata[k] = v
	}
	return nil
}

func (m *memDocuments) UpdateStoragePath(_ context.Context, id, storagePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	doc.StoragePath = storagePath
	return nil
}

func (m *memDocuments) SetParentFolder(_ context.Context, id, folderID string, patch map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.folderErr != nil {
		return m.folderErr
	}
	doc, ok := m.docs[id]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	doc.ParentFolderID = folderID
	for k, v := range patch {
		doc.Metadata[k] = v
	}
	return nil
}

func (m *memDocuments) FindByContentHash(_ context.Context, ownerID, hash string) ([]domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hashErr != nil {
		return nil, m.hashErr
	}
	out := []domain.Document{}
	for _, doc := range m.docs {
		if doc.OwnerID == ownerID && doc.ContentHash == hash {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (m *memDocuments) SearchByTitle(_ context.Context, ownerID, fragment string, limit int) ([]domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	out := []domain.Document{}
	for _, doc := range m.docs {
		if doc.OwnerID == ownerID && strings.Contains(strings.ToLower(doc.Title), strings.ToLower(fragment)) {
			out = append(out, *doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memDocuments) get(id string) *domain.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[id]
}

func (m *memDocuments) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

// memVersions mirrors promoted versions onto documents held by docs.
type memVersions struct {
	mu        sync.Mutex
	docs      *memDocuments
	rows      map[string]*domain.DocumentVersion
	conflicts int
	listErr   error
	deleted   []string
}

func newMemVersions(docs *memDocuments) *memVersions {
	return &memVersions{docs: docs, rows: make(map[string]*domain.DocumentVersion)}
}

func (m *memVersions) ListVersions(_ context.Context, documentID string) ([]domain.DocumentVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []domain.DocumentVersion{}
	for _, v := range m.rows {
		if v.DocumentID == documentID {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber > out[j].VersionNumber })
	return out, nil
}

func (m *memVersions) GetVersion(_ context.Context, versionID string) (*domain.DocumentVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.rows[versionID]
	if !ok {
		return nil, domain.WrapError(domain.ErrVersionNotFound, "get version", fmt.Errorf("id=%s", versionID))
	}
	copyV := *v
	return &copyV, nil
}

func (m *memVersions) MaxVersionNumber(_ context.Context, documentID string) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	highest, found := 0, false
	for _, v := range m.rows {
		if v.DocumentID == documentID {
			found = true
			highest = max(highest, v.VersionNumber)
		}
	}
	return highest, found, nil
}

func (m *memVersions) PromoteVersion(_ context.Context, v *domain.DocumentVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conflicts > 0 {
		m.conflicts--
		// Simulates a concurrent writer that claimed the same number.
		m.rows["racer-"+v.ID] = &domain.DocumentVersion{
			ID: "racer-" + v.ID, DocumentID: v.DocumentID, VersionNumber: v.VersionNumber,
			StoragePath: "racer/" + v.StoragePath,
		}
		return domain.WrapError(domain.ErrVersionConflict, "insert version", errors.New("unique violation"))
	}
	for _, row := range m.rows {
		if row.DocumentID == v.DocumentID && row.VersionNumber == v.VersionNumber {
			return domain.WrapError(domain.ErrVersionConflict, "insert version", errors.New("unique violation"))
		}
	}
	for _, row := range m.rows {
		if row.DocumentID == v.DocumentID {
			row.IsCurrent = false
		}
	}
	stored := *v
	stored.IsCurrent = true
	m.rows[v.ID] = &stored
	v.IsCurrent = true
	m.mirror(&stored)
	return nil
}

func (m *memVersions) SwitchCurrent(_ context.Context, documentID, versionID string) (*domain.DocumentVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.rows[versionID]
	if !ok || target.DocumentID != documentID {
		return nil, domain.WrapError(domain.ErrVersionNotFound, "switch version", fmt.Errorf("id=%s", versionID))
	}
	for _, row := range m.rows {
		if row.DocumentID == documentID {
			row.IsCurrent = false
		}
	}
	target.IsCurrent = true
	m.mirror(target)
	copyV := *target
	return &copyV, nil
}

func (m *memVersions) DeleteVersion(_ context.Context, versionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.rows[versionID]
	if !ok || v.IsCurrent {
		return domain.WrapError(domain.ErrVersionNotFound, "delete version", fmt.Errorf("id=%s", versionID))
	}
	delete(m.rows, versionID)
	m.deleted = append(m.deleted, versionID)
	return nil
}

func (m *memVersions) mirror(v *domain.DocumentVersion) {
	m.docs.mu.Lock()
	defer m.docs.mu.Unlock()
	if doc, ok := m.docs.docs[v.DocumentID]; ok {
		doc.StoragePath = v.StoragePath
		doc.Title = v.Title
		doc.Size = v.Size
		if v.MimeType != "" {
			doc.MimeType = v.MimeType
		}
		if v.ContentHash != "" {
			doc.ContentHash = v.ContentHash
		}
	}
}

func (m *memVersions) currentFor(documentID string) []domain.DocumentVersion {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.DocumentVersion{}
	for _, v := range m.rows {
		if v.DocumentID == documentID && v.IsCurrent {
			out = append(out, *v)
		}
	}
	return out
}

func (m *memVersions) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memFolders struct {
	mu        sync.Mutex
	folders   []domain.Folder
	createErr error
}

func (m *memFolders) FindFolder(_ context.Context, title, parentID, ownerID string, folderType domain.FolderType) (*domain.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.folders {
		f := m.folders[i]
		if f.Title == title && f.ParentID == parentID && f.OwnerID == ownerID && f.Type == folderType {
			return &f, nil
		}
	}
	return nil, nil
}

func (m *memFolders) CreateFolder(_ context.Context, folder *domain.Folder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.folders = append(m.folders, *folder)
	return nil
}

func (m *memFolders) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.folders)
}

type memTasks struct {
	mu     sync.Mutex
	tasks  []domain.Task
	failOn func(task *domain.Task) error
}

func (m *memTasks) CreateTask(_ context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != nil {
		if err := m.failOn(task); err != nil {
			return err
		}
	}
	m.tasks = append(m.tasks, *task)
	return nil
}

func (m *memTasks) ListTasksByDocument(_ context.Context, documentID string) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Task{}
	for _, task := range m.tasks {
		if task.DocumentID == documentID {
			out = append(out, task)
		}
	}
	return out, nil
}

type memAssessments struct {
	saved []domain.RiskAssessment
	err   error
}

func (m *memAssessments) SaveAssessment(_ context.Context, a *domain.RiskAssessment) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, *a)
	return nil
}

type memStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	putErr    error
	removeErr error
	hideList  bool
	signErr   error
	removed   []string
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (s *memStorage) PutObject(_ context.Context, key string, data io.Reader) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.objects[key] = body
	return nil
}

func (s *memStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.objects[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "open object", fmt.Errorf("key=%s", key))
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (s *memStorage) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	if s.signErr != nil {
		return "", s.signErr
	}
	return "https://files.test/v1/objects/" + key + "?token=signed", nil
}

func (s *memStorage) PublicURL(key string) string {
	return "https://files.test/public/" + key
}

func (s *memStorage) ListObjects(_ context.Context, prefix string) ([]ports.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []ports.ObjectInfo{}
	if s.hideList {
		return out, nil
	}
	for key, body := range s.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, ports.ObjectInfo{Path: key, Size: int64(len(body))})
		}
	}
	return out, nil
}

func (s *memStorage) RemoveObject(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, key)
	if s.removeErr != nil {
		return s.removeErr
	}
	delete(s.objects, key)
	return nil
}

func (s *memStorage) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

type textExtractorFake struct {
	text string
	err  error
}

func (f *textExtractorFake) Extract(context.Context, domain.File) (string, error) {
	return f.text, f.err
}

type analyzerFake struct {
	result *domain.AnalysisResult
	err    error
	calls  int
}

func (f *analyzerFake) Analyze(context.Context, string, string, string) (*domain.AnalysisResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishDocumentIngested(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, documentID)
	return nil
}

func (f *queueFake) SubscribeDocumentIngested(context.Context, func(context.Context, string) error) error {
	return nil
}

type alertsFake struct {
	alerts []domain.RiskAlert
	err    error
}

func (f *alertsFake) PublishRiskAlert(_ context.Context, alert domain.RiskAlert) error {
	if f.err != nil {
		return f.err
	}
	f.alerts = append(f.alerts, alert)
	return nil
}

type stageObserverFake struct {
	mu       sync.Mutex
	outcomes map[domain.Stage]string
}

func (f *stageObserverFake) ObserveStage(stage domain.Stage, outcome string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outcomes == nil {
		f.outcomes = make(map[domain.Stage]string)
	}
	f.outcomes[stage] = outcome
}

// attemptExecutor retries without sleeping and honors the hook contract.
type attemptExecutor struct {
	maxAttempts int
}

func (e attemptExecutor) ExecuteAttempts(
	ctx context.Context,
	_ string,
	fn func(ctx context.Context, attempt int) error,
	hooks ports.RetryHooks,
) error {
	maxAttempts := e.maxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt == maxAttempts && maxAttempts > 1 && hooks.BeforeFinal != nil {
			_ = hooks.BeforeFinal(ctx)
		}
		err = fn(ctx, attempt)
		if hooks.OnAttempt != nil {
			hooks.OnAttempt(attempt, err, 0)
		}
		if err == nil {
			return nil
		}
		if hooks.Retryable != nil && !hooks.Retryable(err) {
			return err
		}
	}
	return err
}

type fetcherFake struct {
	mu       sync.Mutex
	probeErr func(url string) error
	content  map[string]*domain.Content
	probed   []string
}

func (f *fetcherFake) Probe(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probed = append(f.probed, url)
	if f.probeErr != nil {
		return f.probeErr(url)
	}
	return nil
}

func (f *fetcherFake) Fetch(_ context.Context, url string) (*domain.Content, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.probeErr != nil {
		if err := f.probeErr(url); err != nil {
			return nil, err
		}
	}
	content, ok := f.content[url]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "fetch", fmt.Errorf("url=%s", url))
	}
	return content, nil
}

type sessionFake struct {
	session   *domain.Session
	refreshes int
	onRefresh func(*sessionFake)
}

func (f *sessionFake) CurrentSession(context.Context) (*domain.Session, error) {
	return f.session, nil
}

func (f *sessionFake) RefreshSession(context.Context) error {
	f.refreshes++
	if f.onRefresh != nil {
		f.onRefresh(f)
	}
	return nil
}

type connectivityFake struct {
	online bool
}

func (f *connectivityFake) Online() bool { return f.online }

func (f *connectivityFake) WaitOnline(ctx context.Context) error {
	if f.online {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]domain.CacheEntry
	puts    int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]domain.CacheEntry)}
}

func (c *memCache) Put(_ context.Context, key string, data []byte, contentType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	c.entries[key] = domain.CacheEntry{Key: key, Data: data, Size: int64(len(data)), ContentType: contentType}
}

func (c *memCache) Get(_ context.Context, key string) (*domain.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return &entry, true
}

func (c *memCache) Remove(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *memCache) Clear(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]domain.CacheEntry)
}

func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
