package util

import (
	"net/url"
	"strings"
)

// YouTubeID extracts the video code from a YouTube URL in any of its usual
// shapes. Non-video URLs (channel pages, search results) return "".
func YouTubeID(link string) string {
	switch {
	case strings.Contains(link, "youtube.com/embed"):
		parsed, err := url.Parse(link)
		if err != nil {
			return ""
		}
		parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
		return parts[len(parts)-1]
	case strings.Contains(link, "youtube.com/"):
		_, id, ok := strings.Cut(link, "watch?v=")
		if !ok {
			return ""
		}
		if amp := strings.IndexByte(id, '&'); amp >= 0 {
			id = id[:amp]
		}
		return id
	case strings.Contains(link, "youtu.be/"):
		_, id, _ := strings.Cut(link, "youtu.be/")
		if q := strings.IndexByte(id, '?'); q >= 0 {
			id = id[:q]
		}
		return id
	}
	return ""
}
