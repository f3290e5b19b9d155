// Package language guesses the language of unlabeled fenced code blocks.
package language

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/go-enry/go-enry/v2"
)

// Unknown is returned for empty input.
const Unknown = "unknown"

// Plaintext is returned when no language could be determined.
const Plaintext = "plaintext"

// DefaultCandidates are the languages the content classifier chooses between
// when a snippet carries no other hint.
var DefaultCandidates = []string{
	"Shell", "JavaScript", "TypeScript", "Python", "Go", "JSON", "YAML",
	"Java", "Ruby", "PHP", "C#", "SQL", "HTML", "CSS",
}

// aliases maps go-enry names to code fence tags ReadMe highlights.
var aliases = map[string]string{
	"c#":          "csharp",
	"c++":         "cpp",
	"objective-c": "objectivec",
}

// EnryDetector detects languages with go-enry.
type EnryDetector struct {
	overrides  map[string]string
	candidates []string
}

// NewEnryDetector returns a detector. overrides maps file extensions (with or
// without the dot, any case) to languages and is consulted first when a file
// name hint is given.
func NewEnryDetector(overrides map[string]string) *EnryDetector {
	norm := make(map[string]string, len(overrides))
	for ext, lang := range overrides {
		ext = strings.ToLower(strings.TrimSpace(ext))
		lang = strings.ToLower(strings.TrimSpace(lang))
		if ext == "" || ext == "." || lang == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		norm[ext] = lang
	}
	return &EnryDetector{overrides: norm, candidates: DefaultCandidates}
}

// Detect returns a lowercase fence tag and a confidence between 0 and 1.
// Overrides score 1.0, a file name hint 0.8, a shebang or modeline 0.9, the
// classifier 0.6 on snippets of at least three lines and 0.3 otherwise.
func (d *EnryDetector) Detect(content []byte, filePath string) (string, float64, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return Unknown, 0, nil
	}
	if filePath != "" {
		if lang, ok := d.overrides[strings.ToLower(filepath.Ext(filePath))]; ok {
			return lang, 1.0, nil
		}
		if lang := enry.GetLanguage(filepath.Base(filePath), content); lang != "" && lang != "Text" {
			return tag(lang), 0.8, nil
		}
	}
	if lang, ok := enry.GetLanguageByShebang(content); ok {
		return tag(lang), 0.9, nil
	}
	if lang, ok := enry.GetLanguageByModeline(content); ok {
		return tag(lang), 0.9, nil
	}
	lang, _ := enry.GetLanguageByClassifier(content, d.candidates)
	if lang == "" {
		return Plaintext, 0, nil
	}
	if lines(content) >= 3 {
		return tag(lang), 0.6, nil
	}
	return tag(lang), 0.3, nil
}

func tag(lang string) string {
	l := strings.ToLower(lang)
	if a, ok := aliases[l]; ok {
		return a
	}
	return l
}

func lines(content []byte) int {
	n := 0
	for _, l := range bytes.Split(content, []byte("\n")) {
		if len(bytes.TrimSpace(l)) > 0 {
			n++
		}
	}
	return n
}
