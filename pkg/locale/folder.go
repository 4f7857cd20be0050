// ABOUTME: Locale-aware case folding for case-insensitive comparisons
// ABOUTME: Used by constraint prefix lookup and autocomplete filtering

package locale

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultTag is used when no locale is configured
const DefaultTag = "en-US"

// Folder lower-cases strings according to a single configured locale
type Folder struct {
	tag language.Tag
}

// New creates a folder for a BCP-47 language tag. An empty tag selects DefaultTag.
func New(tag string) (Folder, error) {
	if tag == "" {
		tag = DefaultTag
	}
	t, err := language.Parse(tag)
	if err != nil {
		return Folder{}, fmt.Errorf("invalid locale %q: %w", tag, err)
	}
	return Folder{tag: t}, nil
}

// MustNew is like New but panics on an invalid tag
func MustNew(tag string) Folder {
	f, err := New(tag)
	if err != nil {
		panic(err)
	}
	return f
}

// Tag returns the configured language tag
func (f Folder) Tag() language.Tag {
	return f.tag
}

// Fold returns the locale-specific lower-case form of s.
// A new Caser is built per call; Casers must not be shared between goroutines.
func (f Folder) Fold(s string) string {
	return cases.Lower(f.tag).String(s)
}

// HasPrefix reports whether the folded s starts with the folded partial.
// An empty partial matches everything.
func (f Folder) HasPrefix(s, partial string) bool {
	if partial == "" {
		return true
	}
	return strings.HasPrefix(f.Fold(s), f.Fold(partial))
}

// Filter returns the sorted, de-duplicated values matching partial. Never nil.
func (f Folder) Filter(values []string, partial string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		if f.HasPrefix(v, partial) {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
