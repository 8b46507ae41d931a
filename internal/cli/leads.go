package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLeadsCmd() *cobra.Command {
	var addr string
	var limit int

	cmd := &cobra.Command{
		Use:   "leads",
		Short: "List archived lead records, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := apiClient(addr)
			leads, err := c.ListLeads(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(leads) == 0 {
				_, _ = fmt.Fprintln(out, "No archived leads")
				return nil
			}
			for _, l := range leads {
				company := l.Company
				if company == "" {
					company = "-"
				}
				_, _ = fmt.Fprintf(out, "%s  %-7s score=%-3d qualified=%-5v %s (%s)\n",
					l.EndedAt.Format("2006-01-02 15:04"), l.Tier, l.TotalScore, l.IsQualified, company, l.SessionID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Daemon address (default http://localhost:3764)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Max leads to list")
	return cmd
}
