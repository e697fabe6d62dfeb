package main

import (
	"io"
	"os"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/findius/findius/internal/affiliate"
	"github.com/findius/findius/internal/model"
)

var partnersCmd = &cobra.Command{
	Use:   "partners",
	Short: "Manage affiliate partners",
}

var partnersImportPath string

var partnersImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Upsert affiliate partners from a YAML file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		f, err := os.Open(partnersImportPath)
		if err != nil {
			return eris.Wrap(err, "open partners file")
		}
		defer f.Close() //nolint:errcheck

		partners, err := parsePartners(f)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.UpsertPartners(ctx, partners)
		if err != nil {
			return eris.Wrap(err, "partners import")
		}
		zap.L().Info("partners imported",
			zap.Int("read", len(partners)),
			zap.Int64("written", n),
			zap.String("file", partnersImportPath),
		)
		return nil
	},
}

type partnerEntry struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	AffiliateURL string `yaml:"affiliate_url"`
	Category     string `yaml:"category"`
	Subcategory  string `yaml:"subcategory"`
	IsActive     *bool  `yaml:"is_active"`
}

type partnersFile struct {
	Partners []partnerEntry `yaml:"partners"`
}

// parsePartners decodes a partners file. Entries are active unless
// is_active is false, and the category must be a known one.
func parsePartners(r io.Reader) ([]model.AffiliatePartner, error) {
	var file partnersFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, eris.Wrap(err, "parse partners file")
	}

	known := affiliate.Categories()
	out := make([]model.AffiliatePartner, 0, len(file.Partners))
	for i, e := range file.Partners {
		p := model.AffiliatePartner{
			ID:           strings.TrimSpace(e.ID),
			Name:         strings.TrimSpace(e.Name),
			AffiliateURL: strings.TrimSpace(e.AffiliateURL),
			Category:     strings.ToLower(strings.TrimSpace(e.Category)),
			Subcategory:  strings.TrimSpace(e.Subcategory),
			IsActive:     e.IsActive == nil || *e.IsActive,
		}
		if p.Name == "" || p.AffiliateURL == "" {
			return nil, eris.Errorf("partner %d: name and affiliate_url are required", i+1)
		}
		if !strings.HasPrefix(p.AffiliateURL, "https://") && !strings.HasPrefix(p.AffiliateURL, "http://") {
			return nil, eris.Errorf("partner %q: affiliate_url must be an http(s) URL", p.Name)
		}
		if !slices.Contains(known, p.Category) {
			return nil, eris.Errorf("partner %q: unknown category %q (known: %s)", p.Name, p.Category, strings.Join(known, ", "))
		}
		out = append(out, p)
	}
	return out, nil
}

func init() {
	partnersImportCmd.Flags().StringVar(&partnersImportPath, "file", "", "path to partners YAML file (required)")
	_ = partnersImportCmd.MarkFlagRequired("file")
	partnersCmd.AddCommand(partnersImportCmd)
	rootCmd.AddCommand(partnersCmd)
}
