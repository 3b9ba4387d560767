package main

import (
	"github.com/spf13/cobra"
)

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Print progress views",
	Long: `Print one of the progress views. Table output is used on a terminal and
CSV otherwise; --out writes a file, XLSX when the name ends in .xlsx.
The season is the --season flag or the configured default.`,
}

var (
	viewMonth  monthFlag
	viewBrand  string
	viewFormat string
	viewOut    string
)

func init() {
	rootCmd.AddCommand(viewCmd)

	for _, name := range []string{"results", "influencers", "months", "brands"} {
		name := name
		c := &cobra.Command{
			Use:   name,
			Short: "Print the " + name + " view",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runView(cmd, name)
			},
		}
		c.Flags().Var(&viewMonth, "month", "Only this month")
		c.Flags().StringVar(&viewBrand, "brand", "", "Only this brand")
		c.Flags().StringVar(&viewFormat, "format", formatAuto, "Output format (table|csv|json|xlsx)")
		c.Flags().StringVar(&viewOut, "out", "", "Write to file instead of stdout")
		viewCmd.AddCommand(c)
	}
}

func runView(cmd *cobra.Command, name string) error {
	return withApp(cmd.Context(), false, func(a *app) error {
		f, err := a.svc.ParseFilter("", viewMonth.raw, viewBrand)
		if err != nil {
			return err
		}
		grids, err := a.svc.Grids(cmd.Context(), name, f)
		if err != nil {
			return err
		}
		return writeGrids(cmd.OutOrStdout(), viewFormat, viewOut, grids)
	})
}
