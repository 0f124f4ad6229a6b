// Package logging builds the service's JSON slog loggers.
package logging

import (
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

const redacted = "[redacted]"

// credentialKeys are attribute names whose values are never written.
var credentialKeys = map[string]struct{}{
	"authorization": {},
	"token":         {},
	"session_token": {},
	"signing_key":   {},
	"secret":        {},
}

// signedQuery matches credential query parameters embedded in URLs, including
// those quoted inside net/http client errors.
var signedQuery = regexp.MustCompile(`(?i)([?&](?:token|signature|x-amz-signature)=)[^&\s"']+`)

func NewJSONLogger(service, level string) *slog.Logger {
	return New(os.Stdout, service, level)
}

// New writes JSON records to w, tagged with service, with credentials scrubbed.
func New(w io.Writer, service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       parseLevel(level),
		ReplaceAttr: scrubCredentials,
	})
	return slog.New(handler).With("service", service)
}

func scrubCredentials(_ []string, attr slog.Attr) slog.Attr {
	if _, ok := credentialKeys[strings.ToLower(attr.Key)]; ok {
		return slog.String(attr.Key, redacted)
	}
	switch attr.Value.Kind() {
	case slog.KindString:
		if s := attr.Value.String(); signedQuery.MatchString(s) {
			return slog.String(attr.Key, RedactURL(s))
		}
	case slog.KindAny:
		if err, ok := attr.Value.Any().(error); ok && err != nil {
			if msg := err.Error(); signedQuery.MatchString(msg) {
				return slog.String(attr.Key, RedactURL(msg))
			}
		}
	}
	return attr
}

// RedactURL blanks signed URL credentials in s.
func RedactURL(s string) string {
	return signedQuery.ReplaceAllString(s, "${1}"+redacted)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
