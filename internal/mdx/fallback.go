package mdx

import (
	"bytes"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rotisserie/eris"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// FallbackNotice is shown above FallbackHTML.
const FallbackNotice = "Diese Seite wird gerade optimiert. Einige Elemente werden möglicherweise nicht korrekt dargestellt."

var (
	markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
	policy   = bluemonday.UGCPolicy()
)

// Document is a page body ready for the front end.
type Document struct {
	MDX          string   `json:"mdx"`
	Components   []string `json:"components"`
	Unknown      []string `json:"unknown_components,omitempty"`
	FallbackHTML string   `json:"fallback_html"`
	Notice       string   `json:"fallback_notice"`
}

// Render sanitizes src and builds its fallback.
func Render(src string) (*Document, error) {
	clean := Sanitize(src)
	html, err := Fallback(clean)
	if err != nil {
		return nil, err
	}
	return &Document{
		MDX:          clean,
		Components:   Components(clean),
		Unknown:      Unknown(clean),
		FallbackHTML: html,
		Notice:       FallbackNotice,
	}, nil
}

// Fallback renders src as plain markdown: self-closing components are
// dropped, wrapping components keep their children, and the resulting HTML is
// passed through a UGC sanitizer.
func Fallback(src string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(StripComponents(src)), &buf); err != nil {
		return "", eris.Wrap(err, "mdx: render fallback")
	}
	return policy.Sanitize(buf.String()), nil
}

// StripComponents removes JSX component tags from src. A tag is a '<'
// followed by an upper case letter, or "</" followed by one, and ends at
// the first '>' outside quotes and braces.
func StripComponents(src string) string {
	var b strings.Builder
	b.Grow(len(src))

	for i := 0; i < len(src); {
		if end, ok := componentTag(src, i); ok {
			i = end
			continue
		}
		b.WriteByte(src[i])
		i++
	}

	// Collapse the blank runs left behind by removed blocks.
	lines := strings.Split(b.String(), "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			blank++
			if blank > 1 {
				continue
			}
			out = append(out, "")
			continue
		}
		blank = 0
		out = append(out, strings.TrimRightFunc(l, unicode.IsSpace))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// componentTag reports whether a component tag starts at i and returns the
// index just past it.
func componentTag(src string, i int) (int, bool) {
	if src[i] != '<' {
		return 0, false
	}
	j := i + 1
	if j < len(src) && src[j] == '/' {
		j++
	}
	if j >= len(src) || src[j] < 'A' || src[j] > 'Z' {
		return 0, false
	}

	depth := 0
	var quote byte
	for k := j; k < len(src); k++ {
		c := src[k]
		switch {
		case quote != 0:
			if c == '\\' {
				k++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'' || c == '`':
			quote = c
		case c == '{':
			depth++
		case c == '}':
			if depth > 0 {
				depth--
			}
		case c == '>' && depth == 0:
			return k + 1, true
		}
	}
	return 0, false
}
