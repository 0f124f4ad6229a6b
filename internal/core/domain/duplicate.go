package domain

import "time"

type MatchType string

const (
	MatchContentHash MatchType = "content_hash"
	MatchFilename    MatchType = "filename"
)

type DuplicateCandidate struct {
	DocumentID string    `json:"document_id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	Similarity int       `json:"similarity"`
	Match      MatchType `json:"match"`
}

type DuplicateCheck struct {
	IsDuplicate     bool                 `json:"is_duplicate"`
	Candidates      []DuplicateCandidate `json:"candidates"`
	Recommendations []string             `json:"recommendations"`
}

type DuplicateResolution string

const (
	ResolutionReplace DuplicateResolution = "replace"
	ResolutionVersion DuplicateResolution = "version"
	ResolutionRename  DuplicateResolution = "rename"
	ResolutionCancel  DuplicateResolution = "cancel"
)

func (r DuplicateResolution) Valid() bool {
	switch r {
	case ResolutionReplace, ResolutionVersion, ResolutionRename, ResolutionCancel:
		return true
	default:
		return false
	}
}
