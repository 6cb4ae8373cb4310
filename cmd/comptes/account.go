package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jask/comptes/internal/database"
	"github.com/jask/comptes/internal/database/repository"
	"github.com/jask/comptes/internal/extract"
)

func accountCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "account", Short: "Manage bank accounts"}

	var bank string
	add := &cobra.Command{
		Use:   "add <number>",
		Short: "Create an account with its income and expense roots",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			b, err := extract.ParseBank(bank)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			repos := repository.New(a.db)
			id, err := repos.Accounts.Create(ctx, repository.Account{Number: args[0], Bank: string(b)})
			if err != nil {
				return err
			}
			if err := database.EnsureRootCategories(ctx, repos.Categories, id); err != nil {
				return err
			}
			a.logger.Info("account created", "id", id, "number", args[0], "bank", b)
			fmt.Fprintf(cmd.OutOrStdout(), "%d\n", id)
			return nil
		}),
	}
	add.Flags().StringVar(&bank, "bank", string(extract.CaixaBank), "bank: caixabank, caixa_enginyers or kmymoney")

	list := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			repos := repository.New(a.db)
			accounts, err := repos.Accounts.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, acc := range accounts {
				n, err := repos.Movements.Count(cmd.Context(), acc.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s  %-28s %-16s %s\n", titleStyle.Render(fmt.Sprintf("%3d", acc.ID)), acc.Number, acc.Bank, mutedStyle.Render(fmt.Sprintf("%d moviments", n)))
			}
			return nil
		}),
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an account with its movements and categories",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid account id %q", args[0])
			}
			if err := repository.NewAccountRepo(a.db).Delete(cmd.Context(), id); err != nil {
				return err
			}
			a.logger.Info("account deleted", "id", id)
			return nil
		}),
	}

	cmd.AddCommand(add, list, del)
	return cmd
}
