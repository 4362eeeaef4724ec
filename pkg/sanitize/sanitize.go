// Package sanitize turns raw YouTube titles and channel names into clean file names.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

type rule struct {
	re   *regexp.Regexp
	repl string
}

// rules run in order; each one sees the output of the previous.
var rules = []rule{
	{regexp.MustCompile(`(?i)\(z2.fm\)`), ""},
	{regexp.MustCompile(`(?i)\(official (video|audio)\)`), ""},
	{regexp.MustCompile(`(?i)\(320 kbps\)`), ""},
	{regexp.MustCompile(`#039;`), "'"},
	{regexp.MustCompile(`&`), " "},
	{regexp.MustCompile(`;`), ""},
	{regexp.MustCompile(`#`), ""},
	{regexp.MustCompile(`"`), ""},
	{regexp.MustCompile(`_+`), " "},
	{regexp.MustCompile(`-{2,}`), " "},
	{regexp.MustCompile(`-`), " "},
	{regexp.MustCompile(`([\[].+[\]])`), ""},
	{regexp.MustCompile(`(\s')|('\s)|(\s'\s)`), ""},
	{regexp.MustCompile(`(&#39)|(#39)|(39;)|(39)`), "'"},
	{regexp.MustCompile(`(?i)\(Official Music Video\)`), ""},
	{regexp.MustCompile(`(?i)\(lyric video\)`), ""},
	{regexp.MustCompile(`(?i)official`), ""},
	{regexp.MustCompile(`(?i)music`), ""},
	{regexp.MustCompile(`(?i)video`), ""},
	{regexp.MustCompile(`(?i)lyrics?`), ""},
	{regexp.MustCompile(`(?i)clip officiel`), ""},
	{regexp.MustCompile(`(?i)clip`), ""},
	{regexp.MustCompile(`(?i)song premiere`), ""},
	{regexp.MustCompile(`(?i)dark techno ebm industrial type`), ""},
	{regexp.MustCompile(`(?i)topic`), ""},
	{regexp.MustCompile(`2025`), ""},
	{regexp.MustCompile(`(?i)премьера`), ""},
	{regexp.MustCompile(`(?i)песни`), ""},
	{regexp.MustCompile(`\(`), ""},
	{regexp.MustCompile(`\)`), ""},
	{regexp.MustCompile(`,`), ""},
	{regexp.MustCompile(`/`), " "},
	{regexp.MustCompile(`%20`), " "},
	{regexp.MustCompile(`%[0-9A-Fa-f]{2}`), ""},
	{regexp.MustCompile(`\*`), ""},
	{regexp.MustCompile(`\?`), " "},
	{regexp.MustCompile(`\\`), " "},
	{regexp.MustCompile(`\|`), " "},
	{regexp.MustCompile(`!+`), ""},
	{regexp.MustCompile(`\.{2,}`), ""},
	{regexp.MustCompile(`\?{2,}`), " "},
	{regexp.MustCompile(`[[:cntrl:]]`), " "},
}

var (
	trailingMP3    = regexp.MustCompile(`mp3$`)
	trailingDotMP3 = regexp.MustCompile(`\.mp3$`)
	spaces         = regexp.MustCompile(`\s+`)
	apostrophe     = regexp.MustCompile(`\s*'\s*`)
	trailingDots   = regexp.MustCompile(`\s*\.+\s*$`)
)

// Sanitize normalizes a raw title or channel name. An empty input stays empty.
func Sanitize(raw string) string {
	if raw == "" {
		return ""
	}

	s := strings.ToLower(strings.TrimSpace(raw))
	for _, r := range rules {
		s = r.re.ReplaceAllLiteralString(s, r.repl)
	}

	s = trailingMP3.ReplaceAllLiteralString(s, "")
	s = trailingDotMP3.ReplaceAllLiteralString(s, "")
	s = strings.TrimSpace(spaces.ReplaceAllLiteralString(s, " "))
	s = apostrophe.ReplaceAllLiteralString(s, "'")
	s = trailingDots.ReplaceAllLiteralString(s, "")

	return capitalizeWords(s)
}

// capitalizeWords upper-cases the first rune of each word and lower-cases the rest.
func capitalizeWords(s string) string {
	if s == "" {
		return s
	}

	words := strings.Split(s, " ")
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		first, size := utf8.DecodeRuneInString(w)
		out = append(out, string(unicode.ToUpper(first))+strings.ToLower(w[size:]))
	}
	return strings.Join(out, " ")
}

// ComposeFileName joins a channel and a title into a base file name.
// The channel is dropped when blank or already part of the title.
func ComposeFileName(channel, title string) string {
	if title == "" {
		return channel
	}
	if strings.TrimSpace(channel) == "" {
		return title
	}
	if strings.Contains(strings.ToLower(title), strings.ToLower(channel)) {
		return title
	}
	return channel + " - " + title
}
