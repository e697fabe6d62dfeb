package main

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/findius/findius/internal/sitemap"
)

var sitemapCmd = &cobra.Command{
	Use:   "sitemap",
	Short: "Write sitemap.xml and robots.txt",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		dir, _ := cmd.Flags().GetString("out")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "create output dir")
		}
		gen := sitemap.New(cfg.Server.PublicURL, st)

		sm, err := os.Create(filepath.Join(dir, "sitemap.xml"))
		if err != nil {
			return eris.Wrap(err, "create sitemap.xml")
		}
		defer sm.Close() //nolint:errcheck
		if err := gen.WriteSitemap(ctx, sm); err != nil {
			return err
		}

		robots, err := os.Create(filepath.Join(dir, "robots.txt"))
		if err != nil {
			return eris.Wrap(err, "create robots.txt")
		}
		defer robots.Close() //nolint:errcheck
		if err := gen.WriteRobots(robots); err != nil {
			return err
		}

		zap.L().Info("sitemap written", zap.String("dir", dir))
		return nil
	},
}

func init() {
	sitemapCmd.Flags().String("out", "public", "output directory")
	rootCmd.AddCommand(sitemapCmd)
}
