// Package platform recognizes the video links recipebot can fetch.
package platform

import (
	"errors"
	"net/url"
	"strings"
)

// Target identifies the site a video URL points at. It selects the cookie
// jar and is reported in logs and metrics.
type Target int

const (
	Unknown Target = iota
	Instagram
	TikTok
	YouTube
)

// ErrUnsupported is returned for links outside the supported patterns.
var ErrUnsupported = errors.New("unsupported url")

func (t Target) String() string {
	switch t {
	case Instagram:
		return "instagram"
	case TikTok:
		return "tiktok"
	case YouTube:
		return "youtube"
	default:
		return "unknown"
	}
}

// All lists the supported targets.
func All() []Target {
	return []Target{Instagram, TikTok, YouTube}
}

var instagramKinds = map[string]struct{}{"reel": {}, "reels": {}, "p": {}, "tv": {}}

// Classify returns the target for raw, or ErrUnsupported. Only absolute
// http(s) URLs are accepted.
func Classify(raw string) (Target, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Unknown, ErrUnsupported
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	segments := pathSegments(u.Path)

	switch {
	case host == "instagram.com" || strings.HasSuffix(host, ".instagram.com"):
		if len(segments) >= 2 {
			if _, ok := instagramKinds[segments[0]]; ok {
				return Instagram, nil
			}
		}
	case host == "vm.tiktok.com" || host == "vt.tiktok.com":
		if len(segments) >= 1 {
			return TikTok, nil
		}
	case host == "tiktok.com":
		if len(segments) >= 3 && strings.HasPrefix(segments[0], "@") && segments[1] == "video" {
			return TikTok, nil
		}
		if len(segments) >= 2 && segments[0] == "t" {
			return TikTok, nil
		}
	case host == "youtu.be":
		if len(segments) >= 1 {
			return YouTube, nil
		}
	case host == "youtube.com":
		if len(segments) >= 1 && segments[0] == "watch" && u.Query().Get("v") != "" {
			return YouTube, nil
		}
		if len(segments) >= 2 && segments[0] == "shorts" {
			return YouTube, nil
		}
	}
	return Unknown, ErrUnsupported
}

// ExtractURL returns the first http(s) token in a chat message.
func ExtractURL(text string) (string, bool) {
	for _, field := range strings.Fields(text) {
		lower := strings.ToLower(field)
		if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
			return strings.TrimRight(field, ".,;!?)»\""), true
		}
	}
	return "", false
}

func pathSegments(path string) []string {
	var out []string
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
