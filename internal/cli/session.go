package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leadline/leadline/pkg/client"
)

func apiClient(addr string) *client.Client {
	if addr == "" {
		addr = "http://localhost:3764"
	}
	return client.New(strings.TrimRight(addr, "/"), os.Getenv("LEADLINE_API_KEY"))
}

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and end active sessions",
	}
	cmd.AddCommand(newSessionListCmd())
	cmd.AddCommand(newSessionShowCmd())
	cmd.AddCommand(newSessionEndCmd())
	return cmd
}

func newSessionListCmd() *cobra.Command {
	var addr string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active sessions with aggregate stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := apiClient(addr)
			list, err := c.ListSessions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%d active, %d qualified (avg score %.1f, avg engagement %.1f)\n",
				list.Aggregate.ActiveSessions, list.Aggregate.QualifiedLeads,
				list.Aggregate.AvgTotalScore, list.Aggregate.AvgEngagement)
			for _, s := range list.Sessions {
				tier := s.Tier
				if tier == "" {
					tier = "-"
				}
				_, _ = fmt.Fprintf(out, "%s  %-8s %-13s score=%-3d tier=%-7s msgs=%d\n",
					s.SessionID, s.Status, s.Phase, s.TotalScore, tier, s.MessageCount)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Daemon address (default http://localhost:3764)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max sessions to list")
	return cmd
}

func newSessionShowCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one session's qualification and workflow state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := apiClient(addr)
			d, err := c.GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Session %s (%s, %s)\n", d.SessionID, d.ConversationType, d.Status)
			_, _ = fmt.Fprintf(out, "Phase: %s  Messages: %d\n", d.Phase, d.MessageCount)
			if d.CustomerInfo.Company != "" {
				_, _ = fmt.Fprintf(out, "Company: %s\n", d.CustomerInfo.Company)
			}
			if q := d.Qualification; q != nil {
				_, _ = fmt.Fprintf(out, "Score: %d (%s, qualified=%v)\n", q.TotalScore, q.Tier, q.IsQualified)
				_, _ = fmt.Fprintf(out, "  budget=%d authority=%d need=%d timeline=%d\n",
					q.BudgetScore, q.AuthorityScore, q.NeedScore, q.TimelineScore)
				for _, r := range q.QualificationReasons {
					_, _ = fmt.Fprintf(out, "  + %s\n", r)
				}
				for _, r := range q.DisqualificationReasons {
					_, _ = fmt.Fprintf(out, "  - %s\n", r)
				}
			}
			if len(d.MissingSteps) > 0 {
				_, _ = fmt.Fprintf(out, "Missing: %s\n", strings.Join(d.MissingSteps, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Daemon address (default http://localhost:3764)")
	return cmd
}

func newSessionEndCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "end <session-id>",
		Short: "End a session (archives its lead record)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := apiClient(addr)
			if err := c.EndSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Ended session %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Daemon address (default http://localhost:3764)")
	return cmd
}
