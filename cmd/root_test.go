package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findius/findius/internal/config"
	"github.com/findius/findius/internal/model"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"serve", "migrate", "pages", "partners", "referrals", "payouts", "sitemap"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "findius", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestPagesCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range pagesCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"generate", "list", "index"} {
		assert.True(t, names[name], "pages should have subcommand %q", name)
	}
	assert.NotNil(t, pagesGenerateCmd.Flags().Lookup("answer"))
	assert.Equal(t, "index", pagesIndexCmd.Flags().Lookup("status").DefValue)
}

func TestParseAnswers(t *testing.T) {
	got, err := parseAnswers([]string{"Budget? = 100 €", "Erfahrung=Anfänger"})
	require.NoError(t, err)
	assert.Equal(t, []model.QA{
		{Question: "Budget?", Answer: "100 €"},
		{Question: "Erfahrung", Answer: "Anfänger"},
	}, got)

	for _, bad := range []string{"ohne Gleichheitszeichen", "=leer", "leer="} {
		_, err := parseAnswers([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestParsePartners(t *testing.T) {
	in := `
partners:
  - id: tr
    name: Trade Republic
    affiliate_url: https://tr.example/ref
    category: Depot
  - name: Check24 Strom
    affiliate_url: https://c24.example/strom
    category: strom
    subcategory: oeko
    is_active: false
`
	got, err := parsePartners(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.AffiliatePartner{
		ID: "tr", Name: "Trade Republic", AffiliateURL: "https://tr.example/ref", Category: "depot", IsActive: true,
	}, got[0])
	assert.False(t, got[1].IsActive)
	assert.Equal(t, "oeko", got[1].Subcategory)
}

func TestParsePartners_Invalid(t *testing.T) {
	cases := map[string]string{
		"unknown category": "partners:\n  - name: X\n    affiliate_url: https://x.example\n    category: autos\n",
		"missing url":      "partners:\n  - name: X\n    category: depot\n",
		"bad url":          "partners:\n  - name: X\n    affiliate_url: ftp://x.example\n    category: depot\n",
		"unknown field":    "partners:\n  - name: X\n    affiliate_url: https://x.example\n    category: depot\n    rank: 1\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parsePartners(strings.NewReader(in))
			assert.Error(t, err)
		})
	}
}

func TestFormatLists(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	var buf bytes.Buffer
	formatPagesList(&buf, []model.Page{{Slug: "etf-depot", Category: "depot", IndexStatus: model.IndexStatusIndex, Views: 42, CreatedAt: created}})
	out := buf.String()
	assert.Contains(t, out, "SLUG")
	assert.Contains(t, out, "etf-depot")
	assert.Contains(t, out, "2026-03-01 12:30")

	buf.Reset()
	formatPayoutsList(&buf, []model.Payout{{ID: "p1", UserID: "u1", Amount: decimal.RequireFromString("30.5"), Status: model.PayoutPending, RequestedAt: created}})
	assert.Contains(t, buf.String(), "30.50")
	assert.Contains(t, buf.String(), "pending")
}

func TestCostRates_Overrides(t *testing.T) {
	cfg = &config.Config{}
	cfg.Pricing.Models = map[string]config.ModelPricing{"gpt-4o": {Input: 1, Output: 2}}
	t.Cleanup(func() { cfg = nil })

	rates := costRates()
	assert.InDelta(t, 1.0, rates["gpt-4o"].Input, 0.0001)
	assert.Contains(t, rates, "gpt-4o-mini")
}

func TestOpenStore_SQLite(t *testing.T) {
	dir := t.TempDir()
	cfg = &config.Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = filepath.Join(dir, "cli.db")
	cfg.Community.UserCommissionShare = 0.5
	t.Cleanup(func() { cfg = nil })

	st, err := openStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	require.NoError(t, st.Ping(context.Background()))
	_, err = os.Stat(cfg.Store.DatabaseURL)
	assert.NoError(t, err)
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	cfg = &config.Config{}
	cfg.Store.Driver = "mysql"
	t.Cleanup(func() { cfg = nil })

	_, err := openStore(context.Background())
	assert.Error(t, err)
}
