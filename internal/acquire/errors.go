package acquire

import (
	"fmt"
	"strings"
)

// Kind classifies why a fetch failed.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnsupportedURL
	KindPrivate
	KindRemoved
	KindGeoBlocked
	KindCopyrightBlocked
	KindAuthRequired
)

func (k Kind) String() string {
	switch k {
	case KindUnsupportedURL:
		return "unsupported_url"
	case KindPrivate:
		return "private"
	case KindRemoved:
		return "removed"
	case KindGeoBlocked:
		return "geo_blocked"
	case KindCopyrightBlocked:
		return "copyright_blocked"
	case KindAuthRequired:
		return "auth_required"
	default:
		return "unknown"
	}
}

// Error is the structured failure returned by Engine.Fetch.
type Error struct {
	Kind     Kind
	Detail   string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("fetch failed (%s)", e.Kind)
	}
	return fmt.Sprintf("fetch failed (%s): %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorKind exposes the classification to callers that only see an error.
func (e *Error) ErrorKind() Kind { return e.Kind }

// failurePatterns is matched in order against the lower-cased tool output.
// yt-dlp wording is not a stable interface; keep this table in sync with
// upstream extractor messages.
var failurePatterns = []struct {
	kind    Kind
	needles []string
}{
	{KindPrivate, []string{"private video", "this video is private", "is private", "account is private"}},
	{KindGeoBlocked, []string{"not available in your country", "in your country", "geo restrict", "geo-restrict", "from your location"}},
	{KindCopyrightBlocked, []string{"copyright"}},
	{KindRemoved, []string{"video unavailable", "has been removed", "no longer available", "http error 404", "does not exist", "was deleted"}},
	{KindAuthRequired, []string{"login required", "log in", "sign in", "use --cookies", "cookies", "authentication", "rate-limit reached"}},
}

// ClassifyMessage maps a failure message to a Kind by substring matching.
func ClassifyMessage(message string) Kind {
	lower := strings.ToLower(message)
	for _, pattern := range failurePatterns {
		for _, needle := range pattern.needles {
			if strings.Contains(lower, needle) {
				return pattern.kind
			}
		}
	}
	return KindUnknown
}

// lastErrorLine picks the most specific line from tool output: the last one
// starting with "ERROR:", else the last non-empty line.
func lastErrorLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "ERROR:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
		}
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
