package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sawpanic/crewrun/internal/application"
	"github.com/sawpanic/crewrun/internal/assign"
	"github.com/sawpanic/crewrun/internal/domain"
	"github.com/sawpanic/crewrun/internal/persistence"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove assignments of one month, or all of them",
	Long: `Remove the assignments of --month, or every assignment when no month is
given. With --cascade the matching execution rows are removed too.`,
	RunE: runReset,
}

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "List incomplete assignments that block a month",
	RunE:  runGate,
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the data directory for inconsistencies",
	RunE:  runDoctor,
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Fill blank name and fee cells from the roster",
	RunE:  runBackfill,
}

var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Copy all tables into the SQL mirror once",
	RunE:  runMirror,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronise the data directory with the remote repository",
}

var syncPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload every table that changed",
	RunE:  runSyncPush,
}

var syncPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Replace local tables with the remote copies",
	RunE:  runSyncPull,
}

var (
	resetMonth   monthFlag
	resetCascade bool
	resetYes     bool
	gateMonth    monthFlag
	doctorJSON   bool
)

func init() {
	rootCmd.AddCommand(resetCmd, gateCmd, doctorCmd, backfillCmd, mirrorCmd, syncCmd)
	syncCmd.AddCommand(syncPushCmd, syncPullCmd)

	resetCmd.Flags().Var(&resetMonth, "month", "Only this month")
	resetCmd.Flags().BoolVar(&resetCascade, "cascade", false, "Also remove execution rows")
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "Required to reset every month")

	gateCmd.Flags().Var(&gateMonth, "month", "Month to check")
	gateCmd.MarkFlagRequired("month")

	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "Print the report as JSON")
}

func runReset(cmd *cobra.Command, _ []string) error {
	if !resetMonth.IsSet() && !resetYes {
		return errors.New("resetting every month needs --yes")
	}
	return withApp(cmd.Context(), true, func(a *app) error {
		req := assign.ResetRequest{Cascade: resetCascade}
		if resetMonth.IsSet() {
			m, err := resetMonth.Resolve(a.svc.Season())
			if err != nil {
				return err
			}
			req.Month = &m
		}
		res, err := a.svc.Reset(cmd.Context(), req)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d assignments, %d execution rows\n", res.History, res.Executions)
		return nil
	})
}

func runGate(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), false, func(a *app) error {
		month, err := gateMonth.Resolve(a.svc.Season())
		if err != nil {
			return err
		}
		rep, err := a.svc.GateReport(cmd.Context(), month)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if rep.Ready {
			fmt.Fprintf(out, "%s is open (%s scope)\n", month, rep.Scope)
			return nil
		}
		fmt.Fprintf(out, "%s is blocked by %d incomplete assignments (%s scope)\n", month, rep.Total, rep.Scope)
		brands := make([]string, 0, len(rep.Blocking))
		for b := range rep.Blocking {
			brands = append(brands, string(b))
		}
		sort.Strings(brands)
		for _, b := range brands {
			for _, k := range rep.Blocking[domain.Brand(b)] {
				fmt.Fprintf(out, "  %s\n", k)
			}
		}
		return nil
	})
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), false, func(a *app) error {
		d, err := a.svc.Doctor(cmd.Context())
		if err != nil {
			return err
		}
		if doctorJSON {
			return printJSON(cmd.OutOrStdout(), d)
		}
		printDoctor(cmd, d)
		if !d.Healthy {
			return errors.New("data directory needs attention")
		}
		return nil
	})
}

func printDoctor(cmd *cobra.Command, d application.Doctor) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "revision %s\n", d.Revision)
	tables := make([]string, 0, len(d.Rows))
	for t := range d.Rows {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		fmt.Fprintf(out, "  %-10s %d rows\n", t, d.Rows[t])
	}
	seasons := make([]string, len(d.Seasons))
	for i, s := range d.Seasons {
		seasons[i] = string(s)
	}
	fmt.Fprintf(out, "seasons: %s\n", strings.Join(seasons, ", "))
	for _, o := range d.Orphans {
		fmt.Fprintf(out, "orphan %s: %s\n", o.Kind, o.Key)
	}
	if len(d.Unknown) > 0 {
		fmt.Fprintf(out, "assignments for influencers not in the roster: %s\n", strings.Join(d.Unknown, ", "))
	}
	if d.Blanks > 0 {
		fmt.Fprintf(out, "%d blank cells can be filled with 'crewrun backfill'\n", d.Blanks)
	}
	if d.Healthy {
		fmt.Fprintln(out, "healthy")
	}
}

func runBackfill(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), true, func(a *app) error {
		n, err := a.svc.Backfill(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "filled %d rows\n", n)
		return nil
	})
}

func runMirror(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), false, func(a *app) error {
		if !a.mirror.IsEnabled() {
			return errors.New("sql mirror is disabled, set mirror.enabled or MIRROR_ENABLED")
		}
		snap, err := a.svc.Snapshot(cmd.Context())
		if err != nil {
			return err
		}
		repo := a.mirror.Repository().Mirror
		if err := repo.Replace(cmd.Context(), persistence.FromSnapshot(snap)); err != nil {
			return err
		}
		counts, err := repo.Counts(cmd.Context())
		if err != nil {
			return err
		}
		names := make([]string, 0, len(counts))
		for n := range counts {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintf(cmd.OutOrStdout(), "%-20s %d\n", n, counts[n])
		}
		return nil
	})
}

func runSyncPush(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), false, func(a *app) error {
		if a.remote == nil {
			return errors.New("remote sync is disabled, set remote.enabled")
		}
		res, err := a.remote.Push(cmd.Context(), a.svc.Store().Paths(), "crewrun: sync push")
		fmt.Fprintf(cmd.OutOrStdout(), "pushed %d, unchanged %d, missing %d\n", len(res.Pushed), len(res.Unchanged), len(res.Missing))
		return err
	})
}

func runSyncPull(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), false, func(a *app) error {
		if a.remote == nil {
			return errors.New("remote sync is disabled, set remote.enabled")
		}
		paths := a.svc.Store().Paths()
		names := make([]string, len(paths))
		for i, p := range paths {
			names[i] = filepath.Base(p)
		}
		pulled, err := a.remote.Pull(cmd.Context(), a.svc.Store().Dir, names)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pulled %s\n", strings.Join(pulled, ", "))
		return nil
	})
}
