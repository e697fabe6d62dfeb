// Package affiliate maps comparison queries to partner categories and
// formats partner links for the generation prompt.
package affiliate

import (
	"fmt"
	"strings"

	"github.com/findius/findius/internal/model"
)

type category struct {
	name     string
	keywords []string
}

// categories is checked in order; the first category with a matching
// keyword wins, so "kreditkarte" is found before "kredit".
var categories = []category{
	{"depot", []string{"depot", "aktien", "etf", "sparplan", "broker", "wertpapier", "trading"}},
	{"kreditkarte", []string{"kreditkarte", "credit card", "visa", "mastercard"}},
	{"haftpflicht", []string{"haftpflicht", "haftpflichtversicherung"}},
	{"dsl", []string{"dsl", "internet", "glasfaser", "breitband", "wlan", "router", "internetanbieter"}},
	{"strom", []string{"strom", "stromanbieter", "stromvergleich", "energie", "stromtarif"}},
	{"gas", []string{"gas", "gasanbieter", "gasvergleich", "gastarif"}},
	{"girokonto", []string{"girokonto", "bankkonto", "konto"}},
	{"versicherung", []string{"versicherung", "versichern"}},
	{"handy", []string{"handy", "smartphone", "mobilfunk", "handyvertrag", "sim"}},
	{"kredit", []string{"kredit", "darlehen", "finanzierung", "ratenkredit"}},
	{"tagesgeld", []string{"tagesgeld", "festgeld", "zinsen", "sparen"}},
}

// Categories returns the known category names in match order.
func Categories() []string {
	out := make([]string, len(categories))
	for i, c := range categories {
		out[i] = c.name
	}
	return out
}

// DetectCategory returns the partner category for query, or "" when no
// keyword matches.
func DetectCategory(query string) string {
	lower := strings.ToLower(query)
	for _, c := range categories {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return c.name
			}
		}
	}
	return ""
}

// BuildContext formats partners as the prompt block that tells the model
// which real links to use. It returns "" for no partners.
func BuildContext(partners []model.AffiliatePartner) string {
	if len(partners) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\nVerfügbare Affiliate-Partner (nutze diese echten Links statt \"#\" für affiliateLink und AffiliateLink href):")
	for _, p := range partners {
		fmt.Fprintf(&b, "\n- %s: %s", p.Name, p.AffiliateURL)
		if p.Subcategory != "" {
			fmt.Fprintf(&b, " (%s)", p.Subcategory)
		}
	}
	return b.String()
}
