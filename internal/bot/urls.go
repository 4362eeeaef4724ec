package bot

import (
	"regexp"
	"strings"
)

var (
	// linkPattern finds every supported link in free-form text.
	linkPattern = regexp.MustCompile(`https?://(?:www\.)?(?:youtube\.com/(?:watch\?v=|shorts/)|youtu\.be/)[\w-]{11}`)

	// loosePattern also accepts links without a scheme.
	loosePattern = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?(?:youtube\.com/watch\?v=|youtu\.be/)([\w-]{11})`)
)

// ExtractURLs returns the supported links in text, deduplicated in
// first-seen order.
func ExtractURLs(text string) []string {
	matches := linkPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	urls := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		urls = append(urls, m)
	}
	return urls
}

// IsValidYouTubeURL reports whether s contains a watch or youtu.be link.
func IsValidYouTubeURL(s string) bool {
	return loosePattern.MatchString(s)
}

// ExtractVideoID returns the 11-character video ID in s, or "".
func ExtractVideoID(s string) string {
	m := loosePattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}

// singleLink returns text as a URL when the whole message is one loosely
// formatted link, such as "youtu.be/<id>" without a scheme.
func singleLink(text string) (string, bool) {
	s := strings.TrimSpace(text)
	if s == "" || strings.ContainsAny(s, " \t\r\n") || !IsValidYouTubeURL(s) {
		return "", false
	}
	if !strings.HasPrefix(strings.ToLower(s), "http://") && !strings.HasPrefix(strings.ToLower(s), "https://") {
		s = "https://" + s
	}
	return s, true
}
