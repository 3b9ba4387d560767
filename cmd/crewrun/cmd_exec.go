package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sawpanic/crewrun/internal/domain"
	"github.com/sawpanic/crewrun/internal/reconcile"
)

var execCmd = &cobra.Command{
	Use:   "exec",
	Short: "Record execution results",
}

var execCompleteCmd = &cobra.Command{
	Use:   "complete <id:brand:month>...",
	Short: "Mark assignments as executed",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExecComplete,
}

var execRevertCmd = &cobra.Command{
	Use:   "revert <id:brand:month>...",
	Short: "Reopen executed assignments",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExecRevert,
}

var execURLCmd = &cobra.Command{
	Use:   "url <id:brand:month> <url>",
	Short: "Record the proof URL of an execution (empty clears it)",
	Args:  cobra.ExactArgs(2),
	RunE:  runExecURL,
}

var execUploadCmd = &cobra.Command{
	Use:   "upload <status.xlsx|status.csv>",
	Short: "Apply an execution status sheet",
	Long: `Apply a filled-in execution template. Every row is validated first;
when any row is invalid nothing is written.

Modes:
  merge    update the listed rows, keep the rest (default)
  replace  the sheet becomes the whole execution table`,
	Args: cobra.ExactArgs(1),
	RunE: runExecUpload,
}

var execTemplateCmd = &cobra.Command{
	Use:   "template",
	Short: "Write the execution template to fill in",
	RunE:  runExecTemplate,
}

var (
	uploadMode    string
	uploadSheet   string
	templateMonth monthFlag
	templateBrand string
	templateOut   string
	templateFmt   string
)

func init() {
	rootCmd.AddCommand(execCmd)
	execCmd.AddCommand(execCompleteCmd, execRevertCmd, execURLCmd, execUploadCmd, execTemplateCmd)

	execUploadCmd.Flags().StringVar(&uploadMode, "mode", "merge", "Upload mode (merge|replace)")
	execUploadCmd.Flags().StringVar(&uploadSheet, "sheet", "", "Workbook sheet to read")

	execTemplateCmd.Flags().Var(&templateMonth, "month", "Only this month")
	execTemplateCmd.Flags().StringVar(&templateBrand, "brand", "", "Only this brand")
	execTemplateCmd.Flags().StringVar(&templateOut, "out", "", "Write to file (.xlsx or .csv)")
	execTemplateCmd.Flags().StringVar(&templateFmt, "format", formatAuto, "Output format (table|csv|json|xlsx)")
}

func runExecComplete(cmd *cobra.Command, args []string) error {
	return runExecKeys(cmd, args, "completed", func(a *app) keysOp { return a.svc.MarkExecuted })
}

func runExecRevert(cmd *cobra.Command, args []string) error {
	return runExecKeys(cmd, args, "reverted", func(a *app) keysOp { return a.svc.Revert })
}

type keysOp func(context.Context, []domain.Key) (int, error)

// runExecKeys reports partial success and still returns the per-key errors.
func runExecKeys(cmd *cobra.Command, args []string, verb string, pick func(*app) keysOp) error {
	return withApp(cmd.Context(), true, func(a *app) error {
		keys, err := keyArgs(a, args)
		if err != nil {
			return err
		}
		n, err := pick(a)(cmd.Context(), keys)
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d of %d\n", verb, n, len(keys))
		return err
	})
}

func runExecURL(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), true, func(a *app) error {
		keys, err := keyArgs(a, args[:1])
		if err != nil {
			return err
		}
		changed, err := a.svc.SetURL(cmd.Context(), keys[0], args[1])
		if err != nil {
			return err
		}
		if !changed {
			fmt.Fprintln(cmd.OutOrStdout(), "unchanged")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", keys[0])
		return nil
	})
}

func runExecUpload(cmd *cobra.Command, args []string) error {
	mode, err := reconcile.ParseMode(uploadMode)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	return withApp(cmd.Context(), true, func(a *app) error {
		rep, err := a.svc.Upload(cmd.Context(), data, uploadSheet, mode)
		out := cmd.OutOrStdout()
		if len(rep.Errors) > 0 {
			for _, e := range rep.Errors {
				fmt.Fprintf(out, "  %s\n", e)
			}
			return fmt.Errorf("%s: %d invalid rows, nothing written", args[0], len(rep.Errors))
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s (%s): inserted %d, updated %d, unchanged %d, removed %d, duplicates %d\n",
			args[0], rep.Mode, rep.Inserted, rep.Updated, rep.Unchanged, rep.Removed, rep.Duplicates)
		return nil
	})
}

func runExecTemplate(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), false, func(a *app) error {
		f, err := a.svc.ParseFilter("", templateMonth.raw, templateBrand)
		if err != nil {
			return err
		}
		grids, err := a.svc.Grids(cmd.Context(), "template", f)
		if err != nil {
			return err
		}
		if len(grids) == 0 || len(grids[0].Rows) == 0 {
			return errors.New("no assignments match, template is empty")
		}
		return writeGrids(cmd.OutOrStdout(), templateFmt, templateOut, grids)
	})
}
