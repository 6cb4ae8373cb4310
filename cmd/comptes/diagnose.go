package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jask/comptes/internal/money"
	"github.com/jask/comptes/internal/service"
)

func diagnoseCmd() *cobra.Command {
	var req service.DiagnoseRequest
	cmd := &cobra.Command{
		Use:   "diagnose-hash",
		Short: "Explain why a movement is or is not seen as a duplicate",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			d, err := (&service.DiagnoseService{DB: a.db}).Diagnose(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n%s %s\n", titleStyle.Render("font:"), d.Source, titleStyle.Render("hash:"), d.Fingerprint)
			if d.Match != nil {
				fmt.Fprintln(out, addedStyle.Render(fmt.Sprintf("Coincidència: moviment #%d (%s, %s)", d.Match.ID, d.Match.Date, d.Match.Concept)))
				return nil
			}
			if len(d.Candidates) == 0 {
				fmt.Fprintln(out, warningStyle.Render("Cap moviment amb la mateixa data i import."))
				return nil
			}
			for _, c := range d.Candidates {
				m := c.Movement
				fmt.Fprintf(out, "#%-6d %s | %-40s | %10s | dist=%d diff@%d\n         %s\n",
					m.ID, m.Date, m.OriginalConcept, money.Format(money.FromCents(m.AmountCents)), c.Distance, c.FirstDiff, mutedStyle.Render(m.Fingerprint))
			}
			return nil
		}),
	}
	cmd.Flags().Int64Var(&req.AccountID, "account", 0, "account id")
	cmd.Flags().StringVar(&req.Date, "date", "", "movement date")
	cmd.Flags().StringVar(&req.Concept, "concept", "", "movement concept")
	cmd.Flags().StringVar(&req.Amount, "amount", "", "movement amount")
	for _, f := range []string{"account", "date", "concept", "amount"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}
