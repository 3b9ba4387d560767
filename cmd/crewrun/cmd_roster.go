package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sawpanic/crewrun/internal/domain"
	"github.com/sawpanic/crewrun/internal/views"
)

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Import or show the influencer roster",
}

var rosterImportCmd = &cobra.Command{
	Use:   "import <contract.xlsx|contract.csv>",
	Short: "Replace the roster with the contract workbook",
	Long: `Replace the roster with the rows of the contract workbook. The unit fee
of each influencer is derived from the contract amounts over the total
count. The "fnfcrew" sheet is read when present, otherwise the first one.`,
	Args: cobra.ExactArgs(1),
	RunE: runRosterImport,
}

var rosterShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the roster",
	RunE:  runRosterShow,
}

var (
	rosterSheet  string
	rosterFormat string
	rosterOut    string
)

func init() {
	rootCmd.AddCommand(rosterCmd)
	rosterCmd.AddCommand(rosterImportCmd, rosterShowCmd)

	rosterImportCmd.Flags().StringVar(&rosterSheet, "sheet", "", "Workbook sheet to read")
	rosterShowCmd.Flags().StringVar(&rosterFormat, "format", formatAuto, "Output format (table|csv|json|xlsx)")
	rosterShowCmd.Flags().StringVar(&rosterOut, "out", "", "Write to file instead of stdout")
}

func runRosterImport(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), true, func(a *app) error {
		n, err := a.svc.ImportRoster(cmd.Context(), args[0], rosterSheet)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d influencers into %s\n", n, a.svc.Store().Dir)
		return nil
	})
}

func runRosterShow(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), false, func(a *app) error {
		roster, err := a.svc.Roster(cmd.Context())
		if err != nil {
			return err
		}
		return writeGrids(cmd.OutOrStdout(), rosterFormat, rosterOut, []views.Grid{rosterGrid(roster, a.svc.Brands())})
	})
}

func rosterGrid(roster []domain.Influencer, brands []domain.Brand) views.Grid {
	header := []string{"ID", "이름", "팔로워"}
	for _, b := range brands {
		header = append(header, string(b))
	}
	header = append(header, "단가", "계약시즌")

	rows := make([][]string, len(roster))
	for i, inf := range roster {
		row := []string{inf.ID, inf.Name, strconv.Itoa(inf.Followers)}
		for _, b := range brands {
			row = append(row, strconv.Itoa(inf.Quota(b)))
		}
		rows[i] = append(row, strconv.Itoa(inf.UnitFee), string(inf.ContractSeason))
	}
	return views.Grid{Title: "roster", Header: header, Rows: rows}
}
