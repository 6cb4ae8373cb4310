package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jask/comptes/internal/database/repository"
	"github.com/jask/comptes/internal/extract"
	"github.com/jask/comptes/internal/service"
	"github.com/jask/comptes/internal/tui"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "categories", Short: "Manage the category tree"}
	var accountID int64

	tree := &cobra.Command{
		Use:   "tree",
		Short: "Print an account's category tree",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			cats, err := repository.NewCategoryRepo(a.db).ListByAccount(cmd.Context(), accountID)
			if err != nil {
				return err
			}
			renderTree(cmd.OutOrStdout(), service.BuildTree(cats))
			return nil
		}),
	}

	var dryRun bool
	imp := &cobra.Command{
		Use:   "import <file.qif>",
		Short: "Import a KMyMoney category export",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			cats, issues := extract.ParseCategories(data, a.logger)
			out := cmd.OutOrStdout()
			for _, is := range issues {
				fmt.Fprintln(out, mutedStyle.Render("· "+is.String()))
			}

			svc := &service.CategoryImportService{DB: a.db, Logger: a.logger}
			warnings, err := svc.Validate(cmd.Context(), accountID, cats)
			if err != nil {
				return err
			}
			for _, w := range warnings {
				fmt.Fprintln(out, warningStyle.Render("! "+w))
			}
			if dryRun {
				for _, c := range cats {
					fmt.Fprintf(out, "%s%s (%s)\n", strings.Repeat("  ", c.Level), c.Name, c.Kind)
				}
				return nil
			}
			res, err := svc.Import(cmd.Context(), accountID, cats)
			if err != nil {
				return err
			}
			for _, w := range res.Warnings {
				fmt.Fprintln(out, warningStyle.Render("! "+w))
			}
			fmt.Fprintln(out, addedStyle.Render(fmt.Sprintf("%d categories creades, %d omeses", res.Created, res.Skipped)))
			return nil
		}),
	}
	imp.Flags().BoolVar(&dryRun, "dry-run", false, "validate and list without importing")

	var all, yes bool
	del := &cobra.Command{
		Use:   "delete",
		Short: "Delete every category except the income and expense roots",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			if !all && accountID == 0 {
				return errors.New("either --account or --all is required")
			}
			svc := &service.CategoryMaintenanceService{DB: a.db, Logger: a.logger}
			var scope *int64
			if !all {
				scope = &accountID
			}
			counts, err := svc.Counts(cmd.Context(), scope)
			if err != nil {
				return err
			}
			if !yes {
				ok, err := tui.Confirm(fmt.Sprintf("Esborrar %d de %d categories?", counts.Deletable, counts.Total), nil, cmd.InOrStdin(), cmd.OutOrStdout())
				if err != nil || !ok {
					return err
				}
			}
			var n int
			if all {
				n, err = svc.DeleteAll(cmd.Context())
			} else {
				n, err = svc.DeleteForAccount(cmd.Context(), accountID)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), addedStyle.Render(fmt.Sprintf("%d categories esborrades", n)))
			return nil
		}),
	}
	del.Flags().BoolVar(&all, "all", false, "delete categories of every account")
	del.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")

	for _, c := range []*cobra.Command{tree, imp, del} {
		c.Flags().Int64Var(&accountID, "account", 0, "account id")
	}
	_ = tree.MarkFlagRequired("account")
	_ = imp.MarkFlagRequired("account")

	cmd.AddCommand(tree, imp, del)
	return cmd
}
