package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/obras/calendar"
	"github.com/hazyhaar/obras/obras"
	"github.com/hazyhaar/obras/record"
	"github.com/hazyhaar/obras/report"
)

var (
	qMonth, qWeek, qBase, qTeam string
	qAll, compact               bool

	cf     report.Filters
	cfFrom string
	cfTo   string
	csvOut string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "List schedule entries of a week (current week by default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		month, week := selector(svc)
		recs := svc.Schedule(month, week, qBase)
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), recs)
		}
		dates := make([]record.Date, 0, len(recs))
		for _, r := range recs {
			dates = append(dates, r.Date)
		}
		if span := calendar.Span(dates, compact); len(span) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s to %s\n", span[0], span[len(span)-1])
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DATA\tPERÍODO\tEQUIPE\tPEP\tNOTA\tLOCAL\tSTATUS\tCONDIÇÃO")
		for _, r := range recs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				r.Date, r.Period, r.Team, r.PEP, r.Note, r.Location, r.Status, r.Condition)
		}
		return tw.Flush()
	},
}

var teamsCmd = &cobra.Command{
	Use:   "teams",
	Short: "Show the selected week per tracked team",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		cards := svc.Teams(selector(svc))
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), cards)
		}
		out := cmd.OutOrStdout()
		for _, c := range cards {
			fmt.Fprintf(out, "%s  (%d entries, at %s)\n", c.Team, len(c.Entries), c.MainLocation)
			for _, e := range c.Entries {
				fmt.Fprintf(out, "  %s  %-8s %s  %s\n", e.Date, e.Period, e.Location, e.Status)
			}
		}
		return nil
	},
}

var criticalCmd = &cobra.Command{
	Use:   "critical",
	Short: "List PEPs in a critical condition (SEM PEP, ABER/LOG, SEM STATUS) for a week",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		items := svc.Critical(selector(svc))
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), items)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DATA\tPEP\tNOTA\tCONDIÇÃO\tEQUIPE\tLOCAL")
		for _, c := range items {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", c.Date, c.PEP, c.Note, c.Condition, c.Team, c.Location)
		}
		return tw.Flush()
	},
}

var locationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "Group this week's scheduled visits by location",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		locs := svc.Locations(qBase, qTeam)
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), locs)
		}
		out := cmd.OutOrStdout()
		for _, l := range locs {
			fmt.Fprintf(out, "%s\n", l.Name)
			for _, v := range l.Visits {
				fmt.Fprintf(out, "  %s  %s  %s  %s\n", v.Date, v.Team, v.Period, v.Status)
			}
		}
		return nil
	},
}

var completedCmd = &cobra.Command{
	Use:   "completed",
	Short: "Summarise completed works, optionally exporting them as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := completedDates(); err != nil {
			return err
		}
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		if csvOut != "" {
			f, err := os.Create(csvOut)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := svc.ExportCompleted(f, cf); err != nil {
				return err
			}
			return f.Close()
		}

		m := svc.Metrics(cf)
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), m)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d works, mean %.1f days, longest %d days\n", m.Total, m.MeanDays, m.MaxDays)
		fmt.Fprintf(out, "value R$ %s, running R$ %s, top base %s (%.1f%%)\n",
			humanize.FormatFloat("#.###,##", m.TotalValue), humanize.FormatFloat("#.###,##", m.TotalRunning),
			m.TopBase.Name, m.TopBase.Percent)
		for _, b := range m.BaseValues {
			fmt.Fprintf(out, "  %-6s R$ %s (%.1f%%)\n", b.Name, humanize.FormatFloat("#.###,##", b.Value), b.Percent)
		}
		if len(m.Pending) > 0 {
			fmt.Fprintf(out, "%d pending\n", len(m.Pending))
		}
		return nil
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List completed works missing their amount or running total",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		items := svc.Pending()
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), items)
		}
		for _, p := range items {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Post the pending completed works to the webhook",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()
		if err := svc.NotifyPending(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "notification sent")
		return nil
	},
}

// selector returns the --month/--week flags, or the current week when both
// are empty and --all is not set.
func selector(svc *obras.Service) (month, week string) {
	if qAll || qMonth != "" || qWeek != "" {
		return qMonth, qWeek
	}
	return svc.CurrentWeek()
}

func completedDates() error {
	for _, p := range []struct {
		text string
		dst  *record.Date
	}{{cfFrom, &cf.From}, {cfTo, &cf.To}} {
		if p.text == "" {
			continue
		}
		d, err := record.ParseDate(p.text)
		if err != nil {
			return err
		}
		*p.dst = d
	}
	return nil
}

func init() {
	for _, c := range []*cobra.Command{queryCmd, teamsCmd, criticalCmd} {
		c.Flags().StringVarP(&qMonth, "month", "m", "", "two-digit month (default: current)")
		c.Flags().StringVarP(&qWeek, "week", "w", "", "week of the month 1-5 (default: current)")
		c.Flags().BoolVar(&qAll, "all", false, "ignore the current-week default and select every entry")
	}
	queryCmd.Flags().StringVarP(&qBase, "base", "b", "", "base code or town")
	queryCmd.Flags().BoolVar(&compact, "compact", false, "show only the first three days of the span")
	locationsCmd.Flags().StringVarP(&qBase, "base", "b", "", "base code or town")
	locationsCmd.Flags().StringVarP(&qTeam, "team", "t", "", "team code")

	f := completedCmd.Flags()
	f.StringVarP(&cf.Base, "base", "b", "", "base")
	f.StringVarP(&cf.Status, "status", "s", "", "status")
	f.StringVarP(&cf.Month, "month", "m", "", "two-digit month of the end date")
	f.StringVar(&cf.StartWeek, "start-week", "", "start week label")
	f.StringVar(&cf.EndWeek, "end-week", "", "end week label")
	f.StringVar(&cfFrom, "from", "", "earliest date DD/MM/YYYY")
	f.StringVar(&cfTo, "to", "", "latest date DD/MM/YYYY")
	f.StringVar(&csvOut, "csv", "", "write the matching works to this CSV file")
}
