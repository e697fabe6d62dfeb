package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/findius/findius/internal/community"
	"github.com/findius/findius/internal/model"
	"github.com/findius/findius/internal/store"
)

// communityService opens the store and builds the community service.
func communityService(cmd *cobra.Command) (*community.Service, store.Store, error) {
	st, err := openStore(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	return community.New(st, cfg.Community), st, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var referralsCmd = &cobra.Command{
	Use:   "referrals",
	Short: "Manage referral conversions",
}

var referralsConvertCmd = &cobra.Command{
	Use:   "convert <referral-id>",
	Short: "Book the commission of a converted referral",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetString("total")
		total, err := decimal.NewFromString(raw)
		if err != nil {
			return eris.Wrapf(err, "invalid commission total %q", raw)
		}

		svc, st, err := communityService(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ref, err := svc.Convert(cmd.Context(), args[0], total)
		if err != nil {
			return eris.Wrap(err, "referrals convert")
		}
		return printJSON(os.Stdout, ref)
	},
}

var payoutsCmd = &cobra.Command{
	Use:   "payouts",
	Short: "Review and process payout requests",
}

var payoutsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List payout requests",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, st, err := communityService(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		user, _ := cmd.Flags().GetString("user")
		limit, _ := cmd.Flags().GetInt("limit")

		payouts, err := st.ListPayouts(cmd.Context(), store.PayoutFilter{
			UserID: user,
			Status: model.PayoutStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "payouts list")
		}
		if len(payouts) == 0 {
			fmt.Fprintln(os.Stderr, "No payouts found.")
			return nil
		}
		formatPayoutsList(os.Stdout, payouts)
		return nil
	},
}

func formatPayoutsList(w io.Writer, payouts []model.Payout) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSER\tAMOUNT\tPAYPAL\tSTATUS\tREQUESTED")
	for _, p := range payouts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID, p.UserID, p.Amount.StringFixed(2), p.PaypalEmail, p.Status, p.RequestedAt.Format("2006-01-02 15:04"))
	}
	_ = tw.Flush()
}

var payoutsAdvanceCmd = &cobra.Command{
	Use:   "advance <payout-id> <processing|completed|failed>",
	Short: "Move a payout to the next status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, st, err := communityService(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		reason, _ := cmd.Flags().GetString("reason")
		p, err := svc.Advance(cmd.Context(), args[0], model.PayoutStatus(args[1]), reason)
		if err != nil {
			return eris.Wrap(err, "payouts advance")
		}
		return printJSON(os.Stdout, p)
	},
}

func init() {
	referralsConvertCmd.Flags().String("total", "", "total commission received for the referral, e.g. 12.50 (required)")
	_ = referralsConvertCmd.MarkFlagRequired("total")
	referralsCmd.AddCommand(referralsConvertCmd)

	payoutsListCmd.Flags().String("status", "", "filter by status (pending, processing, completed, failed)")
	payoutsListCmd.Flags().String("user", "", "filter by user id")
	payoutsListCmd.Flags().Int("limit", 50, "max number of payouts to display")
	payoutsAdvanceCmd.Flags().String("reason", "", "failure reason (for failed)")
	payoutsCmd.AddCommand(payoutsListCmd, payoutsAdvanceCmd)

	rootCmd.AddCommand(referralsCmd, payoutsCmd)
}
