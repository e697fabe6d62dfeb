// Package sitemap renders sitemap.xml and robots.txt for the public site.
package sitemap

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/findius/findius/internal/model"
	"github.com/findius/findius/internal/store"
)

const (
	xmlns      = "http://www.sitemaps.org/schemas/sitemap/0.9"
	changeFreq = "daily"
	priority   = "0.7"
	batchSize  = 1000
)

// staticRoutes are the pages that exist independent of generated content.
var staticRoutes = []string{"/", "/tools", "/login", "/agb", "/datenschutz"}

// excluded paths never appear in the sitemap and are disallowed for crawlers.
var excluded = []string{"/suche", "/api/"}

// PageLister lists generated pages.
type PageLister interface {
	ListPages(ctx context.Context, filter store.PageFilter) ([]model.Page, error)
}

// URL is one sitemap entry.
type URL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

type urlset struct {
	XMLName xml.Name `xml:"urlset"`
	Xmlns   string   `xml:"xmlns,attr"`
	URLs    []URL    `xml:"url"`
}

// Generator builds the sitemap of a site.
type Generator struct {
	baseURL string
	pages   PageLister
	now     func() time.Time
}

// New creates a Generator for the site at baseURL.
func New(baseURL string, pages PageLister) *Generator {
	return &Generator{
		baseURL: strings.TrimRight(baseURL, "/"),
		pages:   pages,
		now:     time.Now,
	}
}

// Excluded reports whether path is kept out of the sitemap.
func Excluded(path string) bool {
	for _, p := range excluded {
		if path == strings.TrimSuffix(p, "/") || strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// PagePath is the public path of a generated page.
func PagePath(slug string) string { return "/vergleich/" + slug }

// URLs lists the static routes followed by every indexable page.
func (g *Generator) URLs(ctx context.Context) ([]URL, error) {
	now := g.now().UTC().Format(time.RFC3339)
	urls := make([]URL, 0, len(staticRoutes))
	for _, path := range staticRoutes {
		if Excluded(path) {
			continue
		}
		urls = append(urls, URL{Loc: g.baseURL + path, LastMod: now, ChangeFreq: changeFreq, Priority: priority})
	}

	for offset := 0; ; offset += batchSize {
		pages, err := g.pages.ListPages(ctx, store.PageFilter{
			IndexStatus: model.IndexStatusIndex,
			Limit:       batchSize,
			Offset:      offset,
		})
		if err != nil {
			return nil, eris.Wrap(err, "sitemap: list pages")
		}
		for _, p := range pages {
			urls = append(urls, URL{
				Loc:        g.baseURL + PagePath(p.Slug),
				LastMod:    p.UpdatedAt.UTC().Format(time.RFC3339),
				ChangeFreq: changeFreq,
				Priority:   priority,
			})
		}
		if len(pages) < batchSize {
			return urls, nil
		}
	}
}

// WriteSitemap writes sitemap.xml.
func (g *Generator) WriteSitemap(ctx context.Context, w io.Writer) error {
	urls, err := g.URLs(ctx)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return eris.Wrap(err, "sitemap: write header")
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(urlset{Xmlns: xmlns, URLs: urls}); err != nil {
		return eris.Wrap(err, "sitemap: encode")
	}
	return eris.Wrap(enc.Close(), "sitemap: flush")
}

// WriteRobots writes robots.txt.
func (g *Generator) WriteRobots(w io.Writer) error {
	var b strings.Builder
	b.WriteString("# *\nUser-agent: *\nAllow: /\n")
	for _, p := range excluded {
		fmt.Fprintf(&b, "Disallow: %s\n", p)
	}
	fmt.Fprintf(&b, "\n# Host\nHost: %s\n\n# Sitemaps\nSitemap: %s/sitemap.xml\n", g.baseURL, g.baseURL)
	_, err := io.WriteString(w, b.String())
	return eris.Wrap(err, "sitemap: write robots")
}
