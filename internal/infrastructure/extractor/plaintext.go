package extractor

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"
)

var errBinaryContent = errors.New("content is not valid utf-8 text")

type PlainText struct{}

func (PlainText) Name() string { return "plaintext" }

func (PlainText) Supports(mimeType, ext string) bool {
	if strings.HasPrefix(mimeType, "text/") && mimeType != "text/html" {
		return true
	}
	switch mimeType {
	case "application/json", "application/xml", "application/x-yaml":
		return true
	}
	switch ext {
	case ".txt", ".md", ".csv", ".json", ".xml", ".yaml", ".yml", ".log":
		return true
	}
	return false
}

func (PlainText) Extract(_ context.Context, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errBinaryContent
	}
	return string(data), nil
}
