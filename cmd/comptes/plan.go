package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jask/comptes/internal/plan"
)

func planCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "plan", Short: "Run YAML import plans"}

	show := &cobra.Command{
		Use:   "show <plan.yaml>",
		Short: "Validate and list a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := plan.Load(args[0])
			if err != nil {
				return err
			}
			p.Print(cmd.OutOrStdout())
			return nil
		},
	}

	var yes bool
	run := &cobra.Command{
		Use:   "run <plan.yaml>",
		Short: "Import every statement of a plan in order",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			p, err := plan.Load(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, st := range p.Statements {
				path, err := p.Path(st)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("[%d/%d] %s", i+1, len(p.Statements), path)))
				flags := statementFlags{account: st.Account, bank: st.Bank, mode: st.Mode, edits: st.Edits}
				req, err := flags.request(path)
				if err != nil {
					return fmt.Errorf("statement %d: %w", i+1, err)
				}
				if _, err := importStatement(cmd.Context(), a, req, !yes, cmd.InOrStdin(), out); err != nil {
					a.logger.Error("plan stopped", "statement", i+1, "file", path, "error", err)
					return fmt.Errorf("statement %d: %w", i+1, err)
				}
			}
			return nil
		}),
	}
	run.Flags().BoolVarP(&yes, "yes", "y", false, "import without asking")

	cmd.AddCommand(show, run)
	return cmd
}
