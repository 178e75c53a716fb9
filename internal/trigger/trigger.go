// Package trigger decides whether free-text input additionally requests a
// generated image. The vocabulary is data, not logic: a fixed set of short
// phrases embedded at build time.
package trigger

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

//go:embed triggers.yaml
var builtinVocabulary []byte

// Matcher matches trigger phrases in user messages.
type Matcher struct {
	set      map[string]struct{}
	byLength []string // descending rune length, stable within equal lengths
}

// NewMatcher builds a matcher over an explicit vocabulary.
func NewMatcher(keywords []string) *Matcher {
	m := &Matcher{set: make(map[string]struct{}, len(keywords))}
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if _, dup := m.set[kw]; dup {
			continue
		}
		m.set[kw] = struct{}{}
		m.byLength = append(m.byLength, kw)
	}
	// Longest first so a short generic phrase cannot shadow a longer, more
	// specific one that also occurs in the message.
	sort.SliceStable(m.byLength, func(i, j int) bool {
		return utf8.RuneCountInString(m.byLength[i]) > utf8.RuneCountInString(m.byLength[j])
	})
	return m
}

// Default returns a matcher over the embedded vocabulary.
func Default() *Matcher {
	var keywords []string
	if err := yaml.Unmarshal(builtinVocabulary, &keywords); err != nil {
		// the embedded file is static; a parse failure is a build defect
		panic(fmt.Sprintf("trigger: parse embedded vocabulary: %v", err))
	}
	return NewMatcher(keywords)
}

// Match reports the trigger phrase found in message, if any. An exact
// full-string match wins over the substring scan; the scan itself runs
// longest phrase first.
func (m *Matcher) Match(message string) (string, bool) {
	text := strings.TrimSpace(message)
	if text == "" {
		return "", false
	}
	if _, ok := m.set[text]; ok {
		return text, true
	}
	for _, kw := range m.byLength {
		if strings.Contains(text, kw) {
			return kw, true
		}
	}
	return "", false
}

// Size returns the vocabulary size.
func (m *Matcher) Size() int {
	return len(m.byLength)
}
