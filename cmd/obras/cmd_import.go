package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/obras/obras"
)

var (
	syncForce bool
	runsLimit int
)

var importCmd = &cobra.Command{
	Use:   "import <workbook>",
	Short: "Import a local workbook (xlsx, xls or csv)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		res, err := svc.ImportFile(cmd.Context(), args[0], obras.SourceUpload)
		if errors.Is(err, obras.ErrNoAllowedTeams) {
			return fmt.Errorf("none of the tracked teams was found in %s", args[0])
		}
		if err != nil {
			return err
		}
		return printResult(cmd, res)
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download and import the remote workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		res, err := svc.Sync(cmd.Context(), syncForce)
		if err != nil {
			return err
		}
		return printResult(cmd, res)
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the schedule cache, history and working set",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()
		if err := svc.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schedule cleared")
		return nil
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent ingestion runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		runs, err := svc.Runs(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), runs)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "STARTED\tSOURCE\tFILE\tSTATUS\tENTRIES\tSET\tCOMPLETED\tERROR")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
				r.StartedAt.Local().Format(time.DateTime), r.Source, r.FileName, r.Status,
				r.ScheduleCount, r.WorkingSet, r.CompletedCount, r.Error)
		}
		return tw.Flush()
	},
}

func init() {
	syncCmd.Flags().BoolVarP(&syncForce, "force", "f", false, "import even when the remote workbook is unchanged")
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "number of runs to list")
}

func printResult(cmd *cobra.Command, res obras.Result) error {
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), res)
	}
	out := cmd.OutOrStdout()
	if res.Skipped {
		fmt.Fprintf(out, "remote workbook unchanged, %d entries kept\n", res.WorkingSet)
		return nil
	}
	fmt.Fprintf(out, "%d entries imported, %d in the working set, %d completed works (run %s)\n",
		res.Schedule, res.WorkingSet, res.Completed, res.Run.ID)
	return nil
}
