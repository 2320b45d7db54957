package fetcher

import (
	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer strips scripts, event handlers and embedded content from a
// document body while keeping the structure, classes and inline presentation
// styles the masking works with.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer builds the default policy: user-generated-content elements,
// plus <font>, plus class attributes everywhere and the inline styles the
// masking reads and writes.
func NewSanitizer() *Sanitizer {
	p := bluemonday.UGCPolicy()
	p.AllowElements("font", "span", "div", "b", "strong")
	p.AllowAttrs("color", "face", "size").OnElements("font")
	p.AllowAttrs("class").Globally()
	p.AllowStyles(
		"color", "background-color", "text-shadow",
		"user-select", "-webkit-user-select",
		"font-weight", "font-style", "text-decoration",
	).Globally()
	p.AllowImages()
	p.AllowDataURIImages()
	return &Sanitizer{policy: p}
}

// Bytes sanitises an HTML fragment.
func (s *Sanitizer) Bytes(b []byte) []byte {
	return s.policy.SanitizeBytes(b)
}

// String sanitises an HTML fragment.
func (s *Sanitizer) String(markup string) string {
	return s.policy.Sanitize(markup)
}
