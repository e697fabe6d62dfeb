// Package mdx repairs model-generated MDX and builds the HTML fallback the
// front end shows when the MDX does not compile.
package mdx

import (
	"regexp"
	"strings"
)

var (
	fenceRe       = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\\n(.*?)\\n?```$")
	frontmatterRe = regexp.MustCompile(`(?s)^---\s*\n.*?\n---\s*\n`)

	// Props written as prop=[...] instead of prop={[...]}.
	bareArrayPropRe = regexp.MustCompile(`(\w+)=\[`)
	closeBeforeTag  = regexp.MustCompile(`\]\s*(/?>)`)
	closeBeforeProp = regexp.MustCompile(`\]\s+(\w+=)`)
	closeBeforeEOL  = regexp.MustCompile(`\]\s*\n(\s*/?>)`)
)

// Sanitize strips a wrapping code fence and frontmatter block and repairs
// array props that were not wrapped in braces. Correct input is unchanged.
func Sanitize(src string) string {
	s := strings.TrimSpace(src)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	s = frontmatterRe.ReplaceAllString(s, "")

	s = bareArrayPropRe.ReplaceAllString(s, "${1}={[")
	s = closeBeforeTag.ReplaceAllString(s, "]}${1}")
	s = closeBeforeProp.ReplaceAllString(s, "]} ${1}")
	s = closeBeforeEOL.ReplaceAllString(s, "]}\n${1}")
	return s
}
