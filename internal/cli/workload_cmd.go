package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/lorrc/workload-insights/internal/core/domain"
	"github.com/lorrc/workload-insights/internal/core/ports"
)

func newMetricsCmd(s *state) *cobra.Command {
	var period string
	var employeeID, projectID int64

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show resource metrics and workload states",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := domain.ParsePeriod(period)
			if err != nil {
				return err
			}
			params := ports.MetricsParams{Period: p}
			if cmd.Flags().Changed("employee") {
				params.EmployeeID = &employeeID
			}
			if cmd.Flags().Changed("project") {
				params.ProjectID = &projectID
			}

			return s.withSession(cmd.Context(), true, func(sess *Session) error {
				metrics, err := sess.Workload.ComputeResourceMetrics(cmd.Context(), params)
				if err != nil {
					return err
				}

				views := make([]metricsView, len(metrics))
				for i, m := range metrics {
					views[i] = toMetricsView(m)
				}
				if s.jsonOutput() {
					return printJSON(cmd.OutOrStdout(), views)
				}

				tw := table.NewWriter()
				tw.SetOutputMirror(cmd.OutOrStdout())
				tw.AppendHeader(table.Row{"ID", "Name", "ETA", "Spent", "Remaining", "Hours", "Bandwidth", "Avail %", "Tasks", "Remarks", "State"})
				for _, v := range views {
					tw.AppendRow(table.Row{
						v.EmployeeID, v.EmployeeName, v.TotalETA, v.TimeSpent, v.YetToSpend,
						v.TotalWorkingHours, v.Bandwidth, v.AvailabilityPct, v.ActiveTaskCount,
						v.Remarks, v.State,
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&period, "period", "week", "planning period (week or month)")
	cmd.Flags().Int64Var(&employeeID, "employee", 0, "restrict to one employee id")
	cmd.Flags().Int64Var(&projectID, "project", 0, "count only tasks of this project id")
	return cmd
}

func newTeamHealthCmd(s *state) *cobra.Command {
	var period string

	cmd := &cobra.Command{
		Use:   "team-health",
		Short: "Score the team from its workload state distribution",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := domain.ParsePeriod(period)
			if err != nil {
				return err
			}

			return s.withSession(cmd.Context(), true, func(sess *Session) error {
				report, err := sess.Workload.TeamHealth(cmd.Context(), p)
				if err != nil {
					return err
				}
				view := toTeamHealthView(report)
				if s.jsonOutput() {
					return printJSON(cmd.OutOrStdout(), view)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Health score: %d/100 (%d members, %s)\n", view.HealthScore, view.TeamSize, view.Period)

				tw := table.NewWriter()
				tw.SetOutputMirror(out)
				tw.AppendHeader(table.Row{"State", "Members"})
				for _, st := range domain.AllWorkloadStates {
					tw.AppendRow(table.Row{st.Label(), view.Distribution[string(st)]})
				}
				tw.Render()

				for _, alert := range view.Alerts {
					fmt.Fprintf(out, "! %s\n", alert)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&period, "period", "week", "planning period (week or month)")
	return cmd
}
