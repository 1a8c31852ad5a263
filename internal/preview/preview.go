// Package preview renders what a watch would see on a page before it is
// created: the page title and the text its CSS selector matches.
package preview

import (
	"context"
	"strings"
	"unicode/utf8"
)

// MaxExcerpt bounds the matched text returned to the UI, in characters.
const MaxExcerpt = 280

// Result is what a watch with the given selector would be looking at.
type Result struct {
	URL   string
	Title string

	// Selector is empty when the whole page is watched.
	Selector string
	// Matches counts the elements the selector matched.
	Matches int
	// Excerpt is the text of the first match, or the page description when
	// no selector was given.
	Excerpt string
}

// Found reports whether a selector preview matched anything.
func (r Result) Found() bool {
	return r.Selector == "" || r.Matches > 0
}

// Previewer loads a page and evaluates a selector against it.
type Previewer interface {
	Preview(ctx context.Context, url, selector string) (Result, error)
}

// excerpt collapses whitespace and trims s to MaxExcerpt characters.
func excerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= MaxExcerpt {
		return s
	}
	r := []rune(s)
	return string(r[:MaxExcerpt-3]) + "..."
}
