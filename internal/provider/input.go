package provider

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/famomatic/tubemux/internal/types"
)

var (
	videoIDPattern  = regexp.MustCompile(`^[0-9A-Za-z_-]{11}$`)
	videoURLPattern = regexp.MustCompile(`(?:v=|/shorts/|/embed/|/live/|/v/|youtu\.be/)([0-9A-Za-z_-]{11})`)
)

// ExtractVideoID accepts a raw id or the common YouTube URL shapes.
func ExtractVideoID(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", fmt.Errorf("%w: empty url", types.ErrInvalidInput)
	}
	if videoIDPattern.MatchString(s) {
		return s, nil
	}
	if u, err := url.Parse(s); err == nil && u.Host != "" && !isYouTubeHost(u.Hostname()) {
		return "", fmt.Errorf("%w: %s is not a YouTube host", types.ErrInvalidInput, u.Hostname())
	}
	if m := videoURLPattern.FindStringSubmatch(s); len(m) == 2 {
		return m[1], nil
	}
	return "", fmt.Errorf("%w: no video id in %q", types.ErrInvalidInput, s)
}

func isYouTubeHost(host string) bool {
	host = strings.ToLower(host)
	for _, domain := range []string{"youtube.com", "youtu.be", "youtube-nocookie.com"} {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// WatchURL returns the canonical watch page URL of a video id.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
