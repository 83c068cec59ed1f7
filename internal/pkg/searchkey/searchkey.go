// Package searchkey derives the cache key of a search from its raw settings
// and decides whether a cached answer can serve a request.
package searchkey

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"unicode"
)

const DefaultLanguage = "en"

// MaxQueryLength is the longest query, in characters, accepted for search.
const MaxQueryLength = 150

// Options is the canonical option set. Field order fixes the JSON encoding,
// which doubles as the equality key.
type Options struct {
	Commentary   bool `json:"commentary"`
	Insights     bool `json:"insights"`
	NewTestament bool `json:"newTestament"`
	OldTestament bool `json:"oldTestament"`
}

// Normalize splits raw client settings into a language code and the option
// set. Unknown keys are dropped and missing flags read as false.
func Normalize(raw map[string]interface{}) (string, Options) {
	lang := DefaultLanguage
	var opts Options

	for k, v := range raw {
		switch k {
		case "language":
			if s, ok := v.(string); ok {
				lang = normalizeLanguage(s)
			}
		case "oldTestament":
			opts.OldTestament = asBool(v)
		case "newTestament":
			opts.NewTestament = asBool(v)
		case "commentary":
			opts.Commentary = asBool(v)
		case "insights":
			opts.Insights = asBool(v)
		}
	}
	return lang, opts
}

// NormalizeQuery trims surrounding whitespace. Case is preserved.
func NormalizeQuery(q string) string {
	return strings.TrimSpace(q)
}

func normalizeLanguage(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 2 || len(s) > 8 {
		return DefaultLanguage
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return DefaultLanguage
		}
	}
	return s
}

func asBool(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(b, "true")
	default:
		return false
	}
}

// JSON returns the canonical encoding of o.
func (o Options) JSON() []byte {
	data, _ := json.Marshal(o)
	return data
}

// Key returns the canonical encoding as a string. An absent option set and an
// empty one produce the same key.
func (o Options) Key() string {
	return string(o.JSON())
}

// SatisfiedBy reports whether an answer generated with stored covers every
// option requested in o.
func (o Options) SatisfiedBy(stored Options) bool {
	if o.OldTestament && !stored.OldTestament {
		return false
	}
	if o.NewTestament && !stored.NewTestament {
		return false
	}
	if o.Commentary && !stored.Commentary {
		return false
	}
	if o.Insights && !stored.Insights {
		return false
	}
	return true
}

// Settings returns the option set in the shape the search backend expects,
// with the language folded back in.
func (o Options) Settings(lang string) map[string]interface{} {
	return map[string]interface{}{
		"oldTestament": o.OldTestament,
		"newTestament": o.NewTestament,
		"commentary":   o.Commentary,
		"insights":     o.Insights,
		"language":     lang,
	}
}

// Parse decodes a stored option blob. NULL and empty blobs decode to the
// zero option set.
func Parse(blob []byte) (Options, error) {
	var opts Options
	trimmed := strings.TrimSpace(string(blob))
	if trimmed == "" || trimmed == "null" {
		return opts, nil
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(blob, &raw); err != nil {
		return opts, err
	}
	_, opts = Normalize(raw)
	return opts, nil
}

// ResponseHash fingerprints a generated answer for the uniqueness key.
func ResponseHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
