package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sawpanic/crewrun/internal/domain"
	"github.com/sawpanic/crewrun/internal/views"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Show or set monthly brand targets",
}

var targetsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the target grid of a season",
	RunE:  runTargetsShow,
}

var targetsSetCmd = &cobra.Command{
	Use:   "set <month> <brand> <quantity>",
	Short: "Set one monthly target",
	Args:  cobra.ExactArgs(3),
	RunE:  runTargetsSet,
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Assign a season from its monthly targets",
}

var planRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run automatic assignment month by month up to the targets",
	RunE:  runPlan,
}

var (
	targetsFormat string
	planMonths    []string
)

func init() {
	rootCmd.AddCommand(targetsCmd, planCmd)
	targetsCmd.AddCommand(targetsShowCmd, targetsSetCmd)
	planCmd.AddCommand(planRunCmd)

	targetsShowCmd.Flags().StringVar(&targetsFormat, "format", formatAuto, "Output format (table|csv|json|xlsx)")

	planRunCmd.Flags().StringSliceVar(&planMonths, "month", nil, "Only these months, repeatable")
}

func runTargetsShow(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), false, func(a *app) error {
		season := a.svc.Season()
		targets, err := a.svc.Targets(cmd.Context(), season)
		if err != nil {
			return err
		}
		return writeGrids(cmd.OutOrStdout(), targetsFormat, "", []views.Grid{views.TargetsGrid(targets, a.svc.Brands(), season)})
	})
}

func runTargetsSet(cmd *cobra.Command, args []string) error {
	qty, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("quantity must be an integer, got %q", args[2])
	}
	return withApp(cmd.Context(), true, func(a *app) error {
		month, err := domain.ParseMonth(args[0], a.svc.Season())
		if err != nil {
			return err
		}
		brand, err := domain.ParseBrand(args[1], a.svc.Brands())
		if err != nil {
			return err
		}
		if err := a.svc.SetTarget(cmd.Context(), domain.Target{Month: month, Brand: brand, Quantity: qty}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s target %d\n", month, brand, qty)
		return nil
	})
}

func runPlan(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), true, func(a *app) error {
		season := a.svc.Season()
		var only []domain.Month
		for _, label := range planMonths {
			m, err := domain.ParseMonth(label, season)
			if err != nil {
				return err
			}
			only = append(only, m)
		}

		res, err := a.svc.Plan(cmd.Context(), season, only...)
		rows := make([][]string, len(res.Rows))
		for i, r := range res.Rows {
			rows[i] = []string{r.Month.Label(), string(r.Brand), strconv.Itoa(r.Target), strconv.Itoa(r.Assigned), strconv.Itoa(r.Difference)}
		}
		g := views.Grid{Title: "plan " + string(season), Header: []string{"월", "브랜드", "목표", "배정", "차이"}, Rows: rows}
		if werr := writeGrids(cmd.OutOrStdout(), formatAuto, "", []views.Grid{g}); werr != nil {
			return werr
		}
		return err
	})
}
