// Package httpfetch downloads document bytes behind resolved URLs.
package httpfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultMaxBytes = 100 << 20
)

type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

func New(timeout time.Duration, maxBytes int64) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Fetcher{client: &http.Client{Timeout: timeout}, maxBytes: maxBytes}
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (*domain.Content, error) {
	resp, err := f.do(ctx, http.MethodGet, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, classify("read fetched content", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "fetch content", fmt.Errorf("content exceeds %d bytes", f.maxBytes))
	}
	return &domain.Content{Data: data, ContentType: resp.Header.Get("Content-Type")}, nil
}

func (f *Fetcher) Probe(ctx context.Context, url string) error {
	resp, err := f.do(ctx, http.MethodHead, url)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (f *Fetcher) do(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "build fetch request", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify("fetch "+method, err)
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, statusError(resp.StatusCode, resp.Status)
	}
	return resp, nil
}

func statusError(code int, status string) error {
	err := fmt.Errorf("fetch status: %s", status)
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.WrapError(domain.ErrUnauthorized, "fetch", err)
	case code == http.StatusNotFound || code == http.StatusGone:
		return domain.WrapError(domain.ErrDocumentNotFound, "fetch", err)
	case code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500:
		return domain.WrapError(domain.ErrTemporary, "fetch", err)
	default:
		return err
	}
}

func classify(operation string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return fmt.Errorf("%s: %w", operation, err)
}
