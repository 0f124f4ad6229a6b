package domain

import (
	"fmt"
	"strings"
	"time"
)

type Tier string

const (
	TierSignedURL Tier = "signed-url"
	TierPublicURL Tier = "public-url"
	TierViewer    Tier = "viewer"
	TierCache     Tier = "offline-cache"
)

// AttemptState follows idle -> fetching -> {success | retrying -> fetching | exhausted}.
type AttemptState string

const (
	AttemptIdle      AttemptState = "idle"
	AttemptFetching  AttemptState = "fetching"
	AttemptRetrying  AttemptState = "retrying"
	AttemptSuccess   AttemptState = "success"
	AttemptExhausted AttemptState = "exhausted"
)

// StorageRef identifies a stored object.
type StorageRef struct {
	DocumentID  string `json:"document_id,omitempty"`
	Path        string `json:"path"`
	ContentType string `json:"content_type,omitempty"`
}

// CacheKey is the logical cache key; signed URLs rotate so they are never used.
func (r StorageRef) CacheKey() string {
	return "storage:" + strings.TrimLeft(r.Path, "/")
}

type Credentials struct {
	OwnerID string
	Token   string
}

type Session struct {
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (s *Session) Valid(now time.Time) bool {
	return s != nil && s.AccessToken != "" && now.Before(s.ExpiresAt)
}

type Attempt struct {
	Tier     Tier          `json:"tier"`
	Number   int           `json:"attempt"`
	State    AttemptState  `json:"state"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

type Resolution struct {
	URL         string    `json:"url"`
	Tier        Tier      `json:"tier"`
	FromCache   bool      `json:"from_cache"`
	Content     []byte    `json:"-"`
	ContentType string    `json:"content_type,omitempty"`
	Attempts    []Attempt `json:"attempts"`
}

type Content struct {
	Data        []byte
	ContentType string
}

// RetrievalError is the terminal failure after every tier was exhausted.
type RetrievalError struct {
	Ref      StorageRef
	Attempts []Attempt
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("resolve %s: all tiers failed after %d attempts", e.Ref.Path, len(e.Attempts))
}

func (e *RetrievalError) Is(target error) bool {
	return target == ErrRetrievalExhausted
}

type CacheEntry struct {
	Key         string    `json:"key"`
	Data        []byte    `json:"-"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	StoredAt    time.Time `json:"stored_at"`
}

type CacheStats struct {
	Entries  int   `json:"entries"`
	Bytes    int64 `json:"bytes"`
	MaxBytes int64 `json:"max_bytes"`
}
