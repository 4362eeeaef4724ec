package converter

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math/rand/v2"
)

//go:embed texts.json
var embeddedTexts []byte

// Text keys.
const (
	KeyWelcome   = "welcome"
	KeyDone      = "done"
	KeyWrongType = "wrongtype"
)

var fallbackTexts = map[string]string{
	KeyWelcome:   "Welcome! Send me a .webm and I'll turn it into an .mp4 for you.",
	KeyDone:      "Done! Your mp4 is ready.",
	KeyWrongType: "Unsupported file type. Please send a .webm or .gif file.",
}

// Texts holds the variants of each bot reply.
type Texts struct {
	variants map[string][]string
	pick     func(n int) int
}

// ParseTexts decodes a JSON object mapping keys to arrays of strings.
func ParseTexts(data []byte) (*Texts, error) {
	variants := make(map[string][]string)
	if err := json.Unmarshal(data, &variants); err != nil {
		return nil, fmt.Errorf("parse texts: %w", err)
	}
	return &Texts{variants: variants, pick: rand.IntN}, nil
}

// DefaultTexts returns the embedded texts, or only the built-in fallbacks
// if the embedded file is unreadable.
func DefaultTexts() *Texts {
	t, err := ParseTexts(embeddedTexts)
	if err != nil {
		return &Texts{variants: map[string][]string{}, pick: rand.IntN}
	}
	return t
}

// Random returns a random variant for key, falling back to a built-in string.
func (t *Texts) Random(key string) string {
	if v := t.variants[key]; len(v) > 0 {
		return v[t.pick(len(v))]
	}
	if s, ok := fallbackTexts[key]; ok {
		return s
	}
	return "Message not found."
}
