package mdx

import (
	"regexp"
)

// Registry lists the components the front end provides to the MDX runtime.
var Registry = map[string]bool{
	"ComparisonTable": true,
	"ProsConsList":    true,
	"InfoBox":         true,
	"FAQ":             true,
	"AffiliateLink":   true,
}

var componentRe = regexp.MustCompile(`<([A-Z][A-Za-z0-9]*)`)

// Components returns the JSX component names used in src, in order of
// first appearance.
func Components(src string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range componentRe.FindAllStringSubmatch(src, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Unknown returns the components in src that are not in Registry.
func Unknown(src string) []string {
	var out []string
	for _, name := range Components(src) {
		if !Registry[name] {
			out = append(out, name)
		}
	}
	return out
}
