package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
	"github.com/OsmanWais29/filesecureai-sub002/internal/core/ports"
)

type Storage struct {
	basePath      string
	publicBaseURL string
	signer        *Signer
}

func New(basePath, publicBaseURL string, signer *Signer) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/storage"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{
		basePath:      basePath,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		signer:        signer,
	}, nil
}

func (s *Storage) resolve(key string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	if clean == string(filepath.Separator) {
		return "", domain.WrapError(domain.ErrInvalidInput, "storage path", errors.New("empty object path"))
	}
	return filepath.Join(s.basePath, clean), nil
}

func (s *Storage) PutObject(_ context.Context, key string, data io.Reader) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, data); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

func (s *Storage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "open object", err)
		}
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

func (s *Storage) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	if s.signer == nil {
		return "", domain.WrapError(domain.ErrUnauthorized, "sign url", errors.New("no signing key configured"))
	}
	path, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", domain.WrapError(domain.ErrDocumentNotFound, "sign url", err)
		}
		return "", fmt.Errorf("stat object: %w", err)
	}
	token, err := s.signer.Sign(normalizeKey(key), ttl)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/v1/objects/%s?token=%s", s.publicBaseURL, escapeKey(key), url.QueryEscape(token)), nil
}

func (s *Storage) PublicURL(key string) string {
	return fmt.Sprintf("%s/public/%s", s.publicBaseURL, escapeKey(key))
}

// VerifySignedToken checks a token issued by SignedURL for key.
func (s *Storage) VerifySignedToken(key, token string) error {
	if s.signer == nil {
		return domain.WrapError(domain.ErrUnauthorized, "verify url", errors.New("no signing key configured"))
	}
	return s.signer.Verify(normalizeKey(key), token)
}

func (s *Storage) ListObjects(_ context.Context, prefix string) ([]ports.ObjectInfo, error) {
	root, err := s.resolve(prefix)
	if err != nil {
		return nil, err
	}
	out := make([]ports.ObjectInfo, 0)
	err = filepath.WalkDir(filepath.Dir(root), func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return walkErr
		}
		if d.IsDir() || !strings.HasPrefix(path, root) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		out = append(out, ports.ObjectInfo{
			Path:      filepath.ToSlash(rel),
			Size:      info.Size(),
			UpdatedAt: info.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (s *Storage) RemoveObject(_ context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.WrapError(domain.ErrDocumentNotFound, "remove object", err)
		}
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

func normalizeKey(key string) string {
	return strings.TrimLeft(filepath.ToSlash(filepath.Clean("/"+key)), "/")
}

func escapeKey(key string) string {
	parts := strings.Split(normalizeKey(key), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
