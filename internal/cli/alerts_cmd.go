package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/lorrc/workload-insights/internal/core/domain"
)

func newDetectCmd(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Run every risk detector and store new alerts",
		Long: `Runs the five risk detectors and stores alerts that have no unresolved
duplicate. A failing detector does not stop the others; the command prints
what was found and exits non-zero when any detector failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.withSession(cmd.Context(), true, func(sess *Session) error {
				report, err := sess.Risk.DetectAll(cmd.Context())
				if err != nil {
					return err
				}

				if s.jsonOutput() {
					if err := printJSON(cmd.OutOrStdout(), toDetectionView(report)); err != nil {
						return err
					}
				} else {
					inserted := make(map[domain.AlertKey]bool, len(report.Inserted))
					for _, a := range report.Inserted {
						inserted[a.Key()] = true
					}

					tw := table.NewWriter()
					tw.SetOutputMirror(cmd.OutOrStdout())
					tw.AppendHeader(table.Row{"Type", "Severity", "Entity", "Title", "New"})
					for _, a := range report.Alerts {
						isNew := ""
						if inserted[a.Key()] {
							isNew = "yes"
						}
						tw.AppendRow(table.Row{a.Type, a.Severity, entityLabel(a), a.Title, isNew})
					}
					tw.Render()
					fmt.Fprintf(cmd.OutOrStdout(), "%d found, %d new, %d already open\n",
						len(report.Alerts), len(report.Inserted), report.Skipped)
				}

				for _, f := range report.Failures {
					fmt.Fprintln(cmd.ErrOrStderr(), f.Error())
				}
				if report.Partial() {
					return fmt.Errorf("%d detector(s) failed", len(report.Failures))
				}
				return nil
			})
		},
	}
}

func newAlertsCmd(s *state) *cobra.Command {
	cmd := &cobra.Command{Use: "alerts", Short: "List and resolve risk alerts"}
	cmd.AddCommand(newAlertsListCmd(s), newAlertsResolveCmd(s))
	return cmd
}

func newAlertsListCmd(s *state) *cobra.Command {
	var f domain.AlertFilter
	var riskType, severity, entityType string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored alerts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Type = domain.RiskType(riskType)
			f.Severity = domain.Severity(strings.ToLower(severity))
			f.EntityType = domain.EntityType(entityType)

			return s.withSession(cmd.Context(), false, func(sess *Session) error {
				alerts, err := sess.Risk.ListAlerts(cmd.Context(), f)
				if err != nil {
					return err
				}
				if s.jsonOutput() {
					return printJSON(cmd.OutOrStdout(), toAlertViews(alerts))
				}

				tw := table.NewWriter()
				tw.SetOutputMirror(cmd.OutOrStdout())
				tw.AppendHeader(table.Row{"ID", "Type", "Severity", "Entity", "Title", "Created", "Resolved"})
				for _, a := range alerts {
					resolved := ""
					if a.IsResolved && a.ResolvedBy != nil {
						resolved = *a.ResolvedBy
					}
					tw.AppendRow(table.Row{a.ID, a.Type, a.Severity, entityLabel(a), a.Title, a.CreatedAt.Format("2006-01-02 15:04"), resolved})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&riskType, "type", "", "risk type filter")
	cmd.Flags().StringVar(&severity, "severity", "", "severity filter (low, medium, high, critical)")
	cmd.Flags().StringVar(&entityType, "entity-type", "", "entity type filter (task, employee, project, team)")
	cmd.Flags().BoolVar(&f.Unresolved, "unresolved", false, "only unresolved alerts")
	cmd.Flags().IntVar(&f.Limit, "limit", 20, "maximum number of alerts")
	return cmd
}

func newAlertsResolveCmd(s *state) *cobra.Command {
	var by string

	cmd := &cobra.Command{
		Use:   "resolve <alert-id>",
		Short: "Mark an alert resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid alert id %q", args[0])
			}
			if by == "" {
				by = defaultActor()
			}

			return s.withSession(cmd.Context(), false, func(sess *Session) error {
				alert, err := sess.Risk.ResolveAlert(cmd.Context(), id, by)
				if err != nil {
					return err
				}
				if s.jsonOutput() {
					return printJSON(cmd.OutOrStdout(), toAlertView(*alert))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Alert %d resolved by %s\n", alert.ID, by)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&by, "by", "", "who resolved it (default: $USER)")
	return cmd
}

func entityLabel(a domain.RiskAlert) string {
	return string(a.EntityType) + ":" + a.EntityID
}

func defaultActor() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "workloadctl"
}
