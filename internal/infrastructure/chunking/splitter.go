// Package chunking cuts extracted document text into bounded pieces.
package chunking

import (
	"strings"
	"unicode/utf8"
)

const elision = "\n[...]\n"

type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 900
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := s.ChunkSize - s.Overlap
	if step <= 0 {
		step = s.ChunkSize
	}

	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := min(start+s.ChunkSize, len(runes))
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

// Excerpt fits text into budget runes, keeping leading chunks and the final chunk.
// Forms carry signatures and dates at the end, so the tail is never dropped.
func (s *Splitter) Excerpt(text string, budget int) string {
	if budget <= 0 || utf8.RuneCountInString(text) <= budget {
		return text
	}
	chunks := s.Split(text)
	if len(chunks) == 0 {
		return ""
	}

	tail := []rune(chunks[len(chunks)-1])
	if limit := budget / 2; len(tail) > limit {
		tail = tail[len(tail)-limit:]
	}
	remaining := budget - len(tail) - utf8.RuneCountInString(elision)

	var b strings.Builder
	for _, chunk := range chunks[:len(chunks)-1] {
		if remaining <= 0 {
			break
		}
		runes := []rune(chunk)
		if len(runes) >= remaining {
			b.WriteString(string(runes[:remaining]))
			break
		}
		b.WriteString(chunk)
		b.WriteByte('\n')
		remaining -= len(runes) + 1
	}
	b.WriteString(elision)
	b.WriteString(string(tail))
	return b.String()
}
