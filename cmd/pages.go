package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/findius/findius/internal/model"
	"github.com/findius/findius/internal/store"
)

var pagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "Generate and manage comparison pages",
}

// -- pages generate --

var pagesGenerateCmd = &cobra.Command{
	Use:   "generate <query>",
	Short: "Generate a comparison page for a query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		raw, _ := cmd.Flags().GetStringArray("answer")
		answers, err := parseAnswers(raw)
		if err != nil {
			return err
		}

		env, err := initApp(ctx, "generate")
		if err != nil {
			return err
		}
		defer env.Close()

		if v := env.Compare.Validate(ctx, args[0]); !v.Valid {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				return eris.Errorf("query rejected: %s", v.Reason)
			}
			zap.L().Warn("query rejected, generating anyway", zap.String("reason", v.Reason))
		}

		res, err := env.Compare.Generate(ctx, args[0], answers)
		if err != nil {
			return eris.Wrap(err, "pages generate")
		}
		if !res.Created {
			fmt.Fprintln(os.Stderr, "Page already exists.")
		}
		fmt.Fprintln(os.Stdout, res.Slug)

		for _, u := range env.Costs.Snapshot() {
			zap.L().Info("llm usage", zap.String("model", u.Model), zap.Int("calls", u.Calls), zap.Float64("usd", u.USD))
		}
		return nil
	},
}

// parseAnswers reads "question=answer" pairs.
func parseAnswers(raw []string) ([]model.QA, error) {
	answers := make([]model.QA, 0, len(raw))
	for _, r := range raw {
		q, a, ok := strings.Cut(r, "=")
		q, a = strings.TrimSpace(q), strings.TrimSpace(a)
		if !ok || q == "" || a == "" {
			return nil, eris.Errorf("invalid answer %q, expected question=answer", r)
		}
		answers = append(answers, model.QA{Question: q, Answer: a})
	}
	return answers, nil
}

// -- pages list --

var pagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List generated pages",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		category, _ := cmd.Flags().GetString("category")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		pages, err := st.ListPages(ctx, store.PageFilter{
			Category:    category,
			IndexStatus: model.IndexStatus(status),
			Limit:       limit,
		})
		if err != nil {
			return eris.Wrap(err, "pages list")
		}
		if len(pages) == 0 {
			fmt.Fprintln(os.Stderr, "No pages found.")
			return nil
		}
		formatPagesList(os.Stdout, pages)
		return nil
	},
}

func formatPagesList(w io.Writer, pages []model.Page) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SLUG\tCATEGORY\tINDEX\tVIEWS\tCREATED")
	for _, p := range pages {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			p.Slug, p.Category, p.IndexStatus, p.Views, p.CreatedAt.Format("2006-01-02 15:04"))
	}
	_ = tw.Flush()
}

// -- pages index --

var pagesIndexCmd = &cobra.Command{
	Use:   "index <slug>",
	Short: "Set the search engine index status of a page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		status, _ := cmd.Flags().GetString("status")
		is := model.IndexStatus(status)
		if !is.Valid() {
			return eris.Errorf("invalid status %q, expected index or noindex", status)
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.SetIndexStatus(ctx, args[0], is); err != nil {
			return eris.Wrap(err, "pages index")
		}
		zap.L().Info("index status updated", zap.String("slug", args[0]), zap.String("status", status))
		return nil
	},
}

func init() {
	pagesGenerateCmd.Flags().StringArray("answer", nil, `clarifying answer as "question=answer" (repeatable)`)
	pagesGenerateCmd.Flags().Bool("force", false, "generate even if the query is rejected")

	pagesListCmd.Flags().String("category", "", "filter by category")
	pagesListCmd.Flags().String("status", "", "filter by index status (index, noindex)")
	pagesListCmd.Flags().Int("limit", 50, "max number of pages to display")

	pagesIndexCmd.Flags().String("status", string(model.IndexStatusIndex), "index status (index, noindex)")

	pagesCmd.AddCommand(pagesGenerateCmd, pagesListCmd, pagesIndexCmd)
	rootCmd.AddCommand(pagesCmd)
}
