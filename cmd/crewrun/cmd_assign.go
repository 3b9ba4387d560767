package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sawpanic/crewrun/internal/assign"
)

var assignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Assign influencers to brands",
}

var assignAutoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Assign influencers automatically by remaining quota",
	Long: `Assign the requested number of influencers per brand for one month.
Candidates are ordered by remaining quota, then followers. Influencers
with an incomplete earlier month are skipped.

Example:
  crewrun assign auto --month 10월 --qty MLB=3 --qty DX=2`,
	RunE: runAssignAuto,
}

var assignManualCmd = &cobra.Command{
	Use:   "manual <id> <brand>",
	Short: "Assign one influencer explicitly",
	Args:  cobra.ExactArgs(2),
	RunE:  runAssignManual,
}

var assignDeleteCmd = &cobra.Command{
	Use:   "delete <id:brand:month>...",
	Short: "Delete pending assignments",
	Long:  "Delete assignments and their pending execution rows. Completed assignments are refused.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAssignDelete,
}

var (
	assignMonth monthFlag
	assignQty   quantityFlag
)

func init() {
	rootCmd.AddCommand(assignCmd)
	assignCmd.AddCommand(assignAutoCmd, assignManualCmd, assignDeleteCmd)

	for _, c := range []*cobra.Command{assignAutoCmd, assignManualCmd} {
		c.Flags().Var(&assignMonth, "month", "Assignment month, e.g. 9월 or 25FW/9월")
		c.MarkFlagRequired("month")
	}
	assignAutoCmd.Flags().Var(&assignQty, "qty", "Brand quantity BRAND=N, repeatable")
	assignAutoCmd.MarkFlagRequired("qty")
}

func runAssignAuto(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), true, func(a *app) error {
		month, err := assignMonth.Resolve(a.svc.Season())
		if err != nil {
			return err
		}
		qty, err := a.svc.ParseQuantities(assignQty.values)
		if err != nil {
			return err
		}
		res, err := a.svc.AssignAuto(cmd.Context(), assign.AutoRequest{Month: month, Quantities: qty})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: assigned %d (batch %s)\n", res.Month, len(res.Assigned), res.BatchID)
		for _, b := range a.svc.Brands() {
			n, ok := res.Requested[b]
			if !ok {
				continue
			}
			fmt.Fprintf(out, "  %-4s requested %d, assigned %d", b, n, res.Count(b))
			if short := res.Shortfall[b]; short > 0 {
				fmt.Fprintf(out, ", short %d", short)
			}
			fmt.Fprintln(out)
		}
		for _, sk := range res.Skipped {
			fmt.Fprintf(out, "  skipped %s %s: %s\n", sk.InfluencerID, sk.Brand, sk.Reason)
		}
		return nil
	})
}

func runAssignManual(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), true, func(a *app) error {
		key, err := a.svc.ParseKey(args[0], args[1], assignMonth.raw)
		if err != nil {
			return err
		}
		as, err := a.svc.AssignManual(cmd.Context(), assign.ManualRequest{
			Month: key.Month, Brand: key.Brand, InfluencerID: key.InfluencerID,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "assigned %s (%s)\n", as.Key, as.Name)
		return nil
	})
}

func runAssignDelete(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), true, func(a *app) error {
		keys, err := keyArgs(a, args)
		if err != nil {
			return err
		}
		res, err := a.svc.DeleteAssignments(cmd.Context(), keys)
		out := cmd.OutOrStdout()
		for _, k := range res.Removed {
			fmt.Fprintf(out, "deleted %s\n", k)
		}
		if err != nil {
			return errors.Join(fmt.Errorf("%d of %d not deleted", len(keys)-len(res.Removed), len(keys)), err)
		}
		return nil
	})
}
