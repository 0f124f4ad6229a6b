package usecase

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
)

type retrieverFixture struct {
	storage      *memStorage
	fetcher      *fetcherFake
	session      *sessionFake
	connectivity *connectivityFake
	cache        *memCache
	retriever    *ResilientRetriever
}

func newRetrieverFixture(t *testing.T, viewer string) *retrieverFixture {
	t.Helper()
	f := &retrieverFixture{
		storage:      newMemStorage(),
		fetcher:      &fetcherFake{content: map[string]*domain.Content{}},
		session:      &sessionFake{},
		connectivity: &connectivityFake{online: true},
		cache:        newMemCache(),
	}
	f.retriever = NewResilientRetriever(RetrieverDeps{
		Storage:       f.storage,
		Fetcher:       f.fetcher,
		Executor:      attemptExecutor{maxAttempts: 3},
		Session:       f.session,
		Connectivity:  f.connectivity,
		Cache:         f.cache,
		ViewerBaseURL: viewer,
	})
	return f
}

var testRef = domain.StorageRef{DocumentID: "doc-1", Path: "owner-1/doc-1/100_form.pdf", ContentType: "application/pdf"}

func TestResolveFallsThroughToViewer(t *testing.T) {
	f := newRetrieverFixture(t, "https://viewer.test/view?src=")
	f.storage.signErr = errors.New("permission denied")
	f.fetcher.probeErr = func(u string) error {
		if strings.HasPrefix(u, "https://files.test/public/") {
			return errors.New("status 403")
		}
		return nil
	}

	res, err := f.retriever.Resolve(context.Background(), testRef, domain.Credentials{Token: "tok"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := "https://viewer.test/view?src=" + url.QueryEscape("https://files.test/public/"+testRef.Path)
	if res.Tier != domain.TierViewer || res.URL != want {
		t.Fatalf("unexpected resolution: %s %s", res.Tier, res.URL)
	}

	failed := map[domain.Tier]domain.AttemptState{}
	for _, attempt := range res.Attempts {
		if attempt.Tier != domain.TierViewer {
			failed[attempt.Tier] = attempt.State
			if attempt.Error == "" {
				t.Fatalf("failed attempt without error: %+v", attempt)
			}
		}
	}
	if failed[domain.TierSignedURL] != domain.AttemptExhausted || failed[domain.TierPublicURL] != domain.AttemptExhausted {
		t.Fatalf("expected both prior tiers exhausted, got %v", failed)
	}
	last := res.Attempts[len(res.Attempts)-1]
	if last.Tier != domain.TierViewer || last.State != domain.AttemptSuccess {
		t.Fatalf("unexpected final attempt: %+v", last)
	}
}

func TestResolveRefreshesSessionBeforeFinalAttempt(t *testing.T) {
	f := newRetrieverFixture(t, "")
	f.session.session = &domain.Session{AccessToken: "expired", ExpiresAt: time.Now().Add(-time.Minute)}
	f.session.onRefresh = func(s *sessionFake) {
		s.session = &domain.Session{AccessToken: "fresh", ExpiresAt: time.Now().Add(time.Hour)}
	}

	res, err := f.retriever.Resolve(context.Background(), testRef, domain.Credentials{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Tier != domain.TierSignedURL || len(res.Attempts) != 3 || f.session.refreshes != 1 {
		t.Fatalf("expected signed URL on final attempt after one refresh: tier=%s attempts=%d refreshes=%d",
			res.Tier, len(res.Attempts), f.session.refreshes)
	}
}

func TestResolveExhaustionIsTerminal(t *testing.T) {
	f := newRetrieverFixture(t, "")
	f.storage.signErr = errors.New("sign failed")
	f.fetcher.probeErr = func(string) error { return errors.New("unreachable") }

	_, err := f.retriever.Resolve(context.Background(), testRef, domain.Credentials{Token: "tok"})
	if !domain.IsKind(err, domain.ErrRetrievalExhausted) {
		t.Fatalf("expected ErrRetrievalExhausted, got %v", err)
	}
	if domain.IsKind(err, domain.ErrOffline) {
		t.Fatalf("exhaustion must be distinct from offline")
	}
	var retrievalErr *domain.RetrievalError
	if !errors.As(err, &retrievalErr) || len(retrievalErr.Attempts) != 7 {
		t.Fatalf("expected 7 recorded attempts, got %v", err)
	}
}

func TestResolveServesCacheWhileOffline(t *testing.T) {
	f := newRetrieverFixture(t, "")
	f.connectivity.online = false
	f.cache.Put(context.Background(), testRef.CacheKey(), []byte("cached"), "application/pdf")

	res, err := f.retriever.Resolve(context.Background(), testRef, domain.Credentials{Token: "tok"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !res.FromCache || res.Tier != domain.TierCache || string(res.Content) != "cached" {
		t.Fatalf("unexpected resolution: %+v", res)
	}
	if len(f.fetcher.probed) != 0 {
		t.Fatalf("offline cache hit must not touch the network")
	}
}

func TestDownloadOffersBytesToCache(t *testing.T) {
	f := newRetrieverFixture(t, "")
	signed := "https://files.test/v1/objects/" + testRef.Path + "?token=signed"
	f.fetcher.content[signed] = &domain.Content{Data: []byte("pdf bytes"), ContentType: "application/pdf"}

	res, err := f.retriever.Download(context.Background(), testRef, domain.Credentials{Token: "tok"})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if string(res.Content) != "pdf bytes" || res.Tier != domain.TierSignedURL {
		t.Fatalf("unexpected download: %+v", res)
	}
	f.retriever.Wait()
	entry, ok := f.cache.Get(context.Background(), testRef.CacheKey())
	if !ok || string(entry.Data) != "pdf bytes" {
		t.Fatalf("expected bytes cached under logical key")
	}
}

func TestResolveFallsBackToCacheAfterExhaustion(t *testing.T) {
	f := newRetrieverFixture(t, "")
	f.storage.signErr = errors.New("sign failed")
	f.fetcher.probeErr = func(string) error { return errors.New("unreachable") }
	f.cache.Put(context.Background(), testRef.CacheKey(), []byte("stale copy"), "application/pdf")

	res, err := f.retriever.Resolve(context.Background(), testRef, domain.Credentials{Token: "tok"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !res.FromCache || len(res.Attempts) == 0 {
		t.Fatalf("expected cache fallback with diagnostics, got %+v", res)
	}
	if res.URL != "https://files.test/public/"+testRef.Path {
		t.Fatalf("cache resolution must carry the object URL, got %q", res.URL)
	}
}

func TestResolveSkipsRetriesWithoutSessionProvider(t *testing.T) {
	f := newRetrieverFixture(t, "")
	f.retriever = NewResilientRetriever(RetrieverDeps{
		Storage:  f.storage,
		Fetcher:  f.fetcher,
		Executor: attemptExecutor{maxAttempts: 3},
	})

	res, err := f.retriever.Resolve(context.Background(), testRef, domain.Credentials{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Tier != domain.TierPublicURL {
		t.Fatalf("expected public tier, got %s", res.Tier)
	}
	signed := 0
	for _, attempt := range res.Attempts {
		if attempt.Tier == domain.TierSignedURL {
			signed++
		}
	}
	if signed != 1 {
		t.Fatalf("unauthorized without a session must not be retried, got %d signed attempts", signed)
	}
}

func TestDownloadDoesNotRetryMissingObject(t *testing.T) {
	f := newRetrieverFixture(t, "")

	_, err := f.retriever.Download(context.Background(), testRef, domain.Credentials{Token: "tok"})
	var retrievalErr *domain.RetrievalError
	if !errors.As(err, &retrievalErr) {
		t.Fatalf("expected RetrievalError, got %v", err)
	}
	for _, attempt := range retrievalErr.Attempts {
		if attempt.Number > 1 {
			t.Fatalf("missing objects must not be retried: %+v", attempt)
		}
	}
	if len(retrievalErr.Attempts) != 2 {
		t.Fatalf("expected one attempt per byte-serving tier, got %d", len(retrievalErr.Attempts))
	}
}
