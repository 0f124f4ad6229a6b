package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
	"github.com/OsmanWais29/filesecureai-sub002/internal/core/ports"
)

const (
	defaultNameThreshold = 70
	defaultMaxCandidates = 10
	exactMatchSimilarity = 100

	recommendCheckIncomplete = "Duplicate check could not be completed; the upload was allowed."
)

// stopWords are ignored when comparing file names.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "the": {}, "of": {}, "for": {}, "to": {}, "in": {},
	"copy": {}, "scan": {}, "scanned": {}, "doc": {}, "file": {},
}

type DuplicateOptions struct {
	NameThreshold int
	MaxCandidates int
}

type DuplicateDetector struct {
	repo          ports.DocumentRepository
	nameThreshold int
	maxCandidates int
	logger        *slog.Logger
}

func NewDuplicateDetector(repo ports.DocumentRepository, opts DuplicateOptions, logger *slog.Logger) *DuplicateDetector {
	if opts.NameThreshold <= 0 || opts.NameThreshold > 100 {
		opts.NameThreshold = defaultNameThreshold
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = defaultMaxCandidates
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DuplicateDetector{
		repo:          repo,
		nameThreshold: opts.NameThreshold,
		maxCandidates: opts.MaxCandidates,
		logger:        logger,
	}
}

// Check fails open: a lookup error never marks the file as a duplicate on its own.
func (d *DuplicateDetector) Check(ctx context.Context, file domain.File, ownerID string) domain.DuplicateCheck {
	result := domain.DuplicateCheck{
		Candidates:      []domain.DuplicateCandidate{},
		Recommendations: []string{},
	}
	seen := make(map[string]struct{})
	incomplete := false

	hash := ContentHash(file.Data)
	exact, err := d.repo.FindByContentHash(ctx, ownerID, hash)
	if err != nil {
		incomplete = true
		d.logger.Warn("duplicate_hash_lookup_failed", "owner_id", ownerID, "error", err)
	}
	for _, doc := range exact {
		seen[doc.ID] = struct{}{}
		result.Candidates = append(result.Candidates, domain.DuplicateCandidate{
			DocumentID: doc.ID,
			Title:      doc.Title,
			CreatedAt:  doc.CreatedAt,
			Similarity: exactMatchSimilarity,
			Match:      domain.MatchContentHash,
		})
	}

	normalized := NormalizeFileName(file.Name)
	if fragment := searchFragment(normalized); fragment != "" {
		similar, err := d.repo.SearchByTitle(ctx, ownerID, fragment, d.maxCandidates*5)
		if err != nil {
			incomplete = true
			d.logger.Warn("duplicate_title_lookup_failed", "owner_id", ownerID, "error", err)
		}
		for _, doc := range similar {
			if _, ok := seen[doc.ID]; ok {
				continue
			}
			score := NameSimilarity(normalized, NormalizeFileName(doc.Title))
			if score < d.nameThreshold {
				continue
			}
			seen[doc.ID] = struct{}{}
			result.Candidates = append(result.Candidates, domain.DuplicateCandidate{
				DocumentID: doc.ID,
				Title:      doc.Title,
				CreatedAt:  doc.CreatedAt,
				Similarity: score,
				Match:      domain.MatchFilename,
			})
		}
	}

	sort.SliceStable(result.Candidates, func(i, j int) bool {
		a, b := result.Candidates[i], result.Candidates[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	if len(result.Candidates) > d.maxCandidates {
		result.Candidates = result.Candidates[:d.maxCandidates]
	}

	result.IsDuplicate = len(result.Candidates) > 0
	result.Recommendations = recommendations(result.Candidates, incomplete)
	return result
}

func recommendations(candidates []domain.DuplicateCandidate, incomplete bool) []string {
	out := []string{}
	if incomplete {
		out = append(out, recommendCheckIncomplete)
	}
	if len(candidates) == 0 {
		return out
	}
	top := candidates[0]
	if top.Match == domain.MatchContentHash {
		out = append(out,
			fmt.Sprintf("An identical file already exists as %q.", top.Title),
			"Cancel the upload or add it as a new version of the existing document.",
		)
		return out
	}
	out = append(out,
		fmt.Sprintf("A document with a similar name exists: %q (%d%% match).", top.Title, top.Similarity),
		"Rename the upload if it is a different document, or add it as a new version.",
	)
	return out
}

// ContentHash is the hex SHA-256 of the full byte stream.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NormalizeFileName strips the extension, lowercases and collapses separators to single spaces.
func NormalizeFileName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if ext := filepath.Ext(base); ext != "" && len(ext) <= 6 && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, base)
	return strings.Join(strings.Fields(mapped), " ")
}

func significantWords(normalized string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, word := range strings.Fields(normalized) {
		if _, stop := stopWords[word]; stop {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		out = append(out, word)
	}
	return out
}

// NameSimilarity is common significant words over the larger word count, as a percentage.
func NameSimilarity(a, b string) int {
	wordsA := significantWords(a)
	wordsB := significantWords(b)
	denominator := max(len(wordsA), len(wordsB))
	if denominator == 0 {
		return 0
	}
	inB := make(map[string]struct{}, len(wordsB))
	for _, w := range wordsB {
		inB[w] = struct{}{}
	}
	common := 0
	for _, w := range wordsA {
		if _, ok := inB[w]; ok {
			common++
		}
	}
	return common * 100 / denominator
}

// searchFragment picks the longest significant word as the title query.
func searchFragment(normalized string) string {
	longest := ""
	for _, word := range significantWords(normalized) {
		if len(word) > len(longest) {
			longest = word
		}
	}
	return longest
}
