package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
	"github.com/OsmanWais29/filesecureai-sub002/internal/core/ports"
)

const defaultSignedURLTTL = 10 * time.Minute

// RetrieverDeps wires the retriever. Session, Connectivity, Cache and Observer are optional.
type RetrieverDeps struct {
	Storage       ports.ObjectStorage
	Fetcher       ports.ContentFetcher
	Executor      ports.RetryExecutor
	Session       ports.SessionProvider
	Connectivity  ports.Connectivity
	Cache         ports.OfflineCache
	Observer      ports.RetrievalObserver
	ViewerBaseURL string
	SignedURLTTL  time.Duration
	Logger        *slog.Logger
}

// tierStrategy produces a candidate URL for one tier of the fallback chain.
type tierStrategy struct {
	tier        domain.Tier
	resolve     func(ctx context.Context, ref domain.StorageRef, creds domain.Credentials) (string, error)
	servesBytes bool
}

// ResilientRetriever walks an ordered list of tiers under one retry driver.
type ResilientRetriever struct {
	deps       RetrieverDeps
	strategies []tierStrategy
	logger     *slog.Logger
	wg         sync.WaitGroup
}

func NewResilientRetriever(deps RetrieverDeps) *ResilientRetriever {
	if deps.SignedURLTTL <= 0 {
		deps.SignedURLTTL = defaultSignedURLTTL
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &ResilientRetriever{deps: deps, logger: logger}
	r.strategies = []tierStrategy{
		{tier: domain.TierSignedURL, resolve: r.signedURL, servesBytes: true},
		{tier: domain.TierPublicURL, resolve: r.publicURL, servesBytes: true},
		{tier: domain.TierViewer, resolve: r.viewerURL},
	}
	return r
}

// Resolve returns the first tier URL that answers a probe.
func (r *ResilientRetriever) Resolve(ctx context.Context, ref domain.StorageRef, creds domain.Credentials) (*domain.Resolution, error) {
	return r.run(ctx, ref, creds, false)
}

// Download fetches the bytes through the byte-serving tiers and offers them to the cache.
func (r *ResilientRetriever) Download(ctx context.Context, ref domain.StorageRef, creds domain.Credentials) (*domain.Resolution, error) {
	return r.run(ctx, ref, creds, true)
}

// Wait blocks until background cache writes finish.
func (r *ResilientRetriever) Wait() {
	r.wg.Wait()
}

func (r *ResilientRetriever) run(ctx context.Context, ref domain.StorageRef, creds domain.Credentials, download bool) (*domain.Resolution, error) {
	if strings.TrimSpace(ref.Path) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "resolve document", errors.New("storage path is required"))
	}

	if r.offline() {
		if res, ok := r.fromCache(ctx, ref, nil); ok {
			r.logger.Info("retrieval_served_offline", "path", ref.Path)
			return res, nil
		}
	}

	attempts := make([]domain.Attempt, 0, len(r.strategies)*3)
	var offlineErr error
	for _, strategy := range r.strategies {
		if download && !strategy.servesBytes {
			continue
		}
		resolvedURL, content, err := r.runTier(ctx, strategy, ref, creds, download, &attempts)
		if err == nil {
			res := &domain.Resolution{URL: resolvedURL, Tier: strategy.tier, Attempts: attempts}
			if content != nil {
				res.Content = content.Data
				res.ContentType = content.ContentType
				r.offerToCache(ctx, ref, content)
			}
			r.observeResolution(strategy.tier)
			r.logger.Info("retrieval_resolved", "path", ref.Path, "tier", strategy.tier, "attempts", len(attempts))
			return res, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if domain.IsKind(err, domain.ErrOffline) {
			offlineErr = err
			break
		}
		r.logger.Warn("retrieval_tier_exhausted", "path", ref.Path, "tier", strategy.tier, "error", err)
	}

	if res, ok := r.fromCache(ctx, ref, attempts); ok {
		r.logger.Info("retrieval_served_from_cache", "path", ref.Path, "attempts", len(attempts))
		return res, nil
	}

	terminal := &domain.RetrievalError{Ref: ref, Attempts: attempts}
	if offlineErr != nil {
		return nil, domain.WrapError(domain.ErrOffline, "resolve document", terminal)
	}
	return nil, terminal
}

func (r *ResilientRetriever) runTier(
	ctx context.Context,
	strategy tierStrategy,
	ref domain.StorageRef,
	creds domain.Credentials,
	download bool,
	attempts *[]domain.Attempt,
) (string, *domain.Content, error) {
	var (
		resolvedURL string
		content     *domain.Content
	)
	first := len(*attempts)

	hooks := ports.RetryHooks{
		Retryable:   r.retryable,
		BeforeFinal: r.refreshCredentials,
		Gate:        r.deps.Connectivity,
		OnAttempt: func(attempt int, err error, elapsed time.Duration) {
			rec := domain.Attempt{Tier: strategy.tier, Number: attempt, State: domain.AttemptSuccess, Duration: elapsed}
			outcome := outcomeOK
			if err != nil {
				rec.State = domain.AttemptRetrying
				rec.Error = err.Error()
				outcome = outcomeFailed
			}
			*attempts = append(*attempts, rec)
			r.observeAttempt(strategy.tier, outcome, elapsed)
		},
	}

	err := r.deps.Executor.ExecuteAttempts(ctx, "retrieve."+string(strategy.tier), func(ctx context.Context, _ int) error {
		candidate, err := strategy.resolve(ctx, ref, creds)
		if err != nil {
			return err
		}
		if download {
			fetched, err := r.deps.Fetcher.Fetch(ctx, candidate)
			if err != nil {
				return err
			}
			content = fetched
		} else if err := r.deps.Fetcher.Probe(ctx, candidate); err != nil {
			return err
		}
		resolvedURL = candidate
		return nil
	}, hooks)
	if err == nil {
		return resolvedURL, content, nil
	}

	if len(*attempts) > first {
		(*attempts)[len(*attempts)-1].State = domain.AttemptExhausted
	} else if !domain.IsKind(err, domain.ErrOffline) && ctx.Err() == nil {
		*attempts = append(*attempts, domain.Attempt{
			Tier:   strategy.tier,
			Number: 1,
			State:  domain.AttemptExhausted,
			Error:  err.Error(),
		})
	}
	return "", nil, err
}

func (r *ResilientRetriever) signedURL(ctx context.Context, ref domain.StorageRef, creds domain.Credentials) (string, error) {
	if strings.TrimSpace(creds.Token) == "" {
		if r.deps.Session == nil {
			return "", domain.WrapError(domain.ErrUnauthorized, "signed url", errors.New("no credentials"))
		}
		session, err := r.deps.Session.CurrentSession(ctx)
		if err != nil {
			return "", fmt.Errorf("current session: %w", err)
		}
		if !session.Valid(time.Now()) {
			return "", domain.WrapError(domain.ErrUnauthorized, "signed url", errors.New("session expired"))
		}
	}
	return r.deps.Storage.SignedURL(ctx, ref.Path, r.deps.SignedURLTTL)
}

func (r *ResilientRetriever) publicURL(_ context.Context, ref domain.StorageRef, _ domain.Credentials) (string, error) {
	return r.deps.Storage.PublicURL(ref.Path), nil
}

func (r *ResilientRetriever) viewerURL(_ context.Context, ref domain.StorageRef, _ domain.Credentials) (string, error) {
	base := strings.TrimSpace(r.deps.ViewerBaseURL)
	if base == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "viewer url", errors.New("viewer is not configured"))
	}
	return base + url.QueryEscape(r.deps.Storage.PublicURL(ref.Path)), nil
}

func (r *ResilientRetriever) refreshCredentials(ctx context.Context) error {
	if r.deps.Session == nil {
		return nil
	}
	return r.deps.Session.RefreshSession(ctx)
}

func (r *ResilientRetriever) offline() bool {
	return r.deps.Connectivity != nil && !r.deps.Connectivity.Online()
}

func (r *ResilientRetriever) fromCache(ctx context.Context, ref domain.StorageRef, attempts []domain.Attempt) (*domain.Resolution, bool) {
	if r.deps.Cache == nil {
		return nil, false
	}
	entry, ok := r.deps.Cache.Get(ctx, ref.CacheKey())
	if !ok {
		return nil, false
	}
	if attempts == nil {
		attempts = []domain.Attempt{}
	}
	r.observeResolution(domain.TierCache)
	// The cached bytes are served inline; URL points at the stored object for later use.
	return &domain.Resolution{
		URL:         r.deps.Storage.PublicURL(ref.Path),
		Tier:        domain.TierCache,
		FromCache:   true,
		Content:     entry.Data,
		ContentType: entry.ContentType,
		Attempts:    attempts,
	}, true
}

// offerToCache stores fetched bytes without delaying the caller.
func (r *ResilientRetriever) offerToCache(ctx context.Context, ref domain.StorageRef, content *domain.Content) {
	if r.deps.Cache == nil || content == nil {
		return
	}
	contentType := content.ContentType
	if contentType == "" {
		contentType = ref.ContentType
	}
	data := content.Data
	key := ref.CacheKey()
	bg := context.WithoutCancel(ctx)
	r.wg.Go(func() {
		r.deps.Cache.Put(bg, key, data, contentType)
	})
}

func (r *ResilientRetriever) observeAttempt(tier domain.Tier, outcome string, d time.Duration) {
	if r.deps.Observer != nil {
		r.deps.Observer.ObserveAttempt(tier, outcome, d)
	}
}

func (r *ResilientRetriever) observeResolution(tier domain.Tier) {
	if r.deps.Observer != nil {
		r.deps.Observer.ObserveResolution(tier)
	}
}

// retryable stops a tier early when another attempt cannot change the answer.
// Unauthorized is only worth retrying when a session refresh can run first.
func (r *ResilientRetriever) retryable(err error) bool {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput), domain.IsKind(err, domain.ErrDocumentNotFound):
		return false
	case domain.IsKind(err, domain.ErrUnauthorized):
		return r.deps.Session != nil
	default:
		return true
	}
}
