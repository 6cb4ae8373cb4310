package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"

	"github.com/jask/comptes/internal/extract"
	"github.com/jask/comptes/internal/service"
	"github.com/jask/comptes/internal/tui"
)

var errCancelled = errors.New("cancelled")

type statementFlags struct {
	account int64
	bank    string
	mode    string
	edits   []string
}

func (f *statementFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.account, "account", 0, "account id")
	cmd.Flags().StringVar(&f.bank, "bank", "", "bank: caixabank, caixa_enginyers or kmymoney")
	cmd.Flags().StringVar(&f.mode, "mode", "", "import mode when no movement matches the ledger: from_beginning or from_last_db")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("bank")
}

func (f *statementFlags) request(path string) (service.ImportRequest, error) {
	bank, err := extract.ParseBank(f.bank)
	if err != nil {
		return service.ImportRequest{}, err
	}
	mode, err := service.ParseImportMode(f.mode)
	if err != nil {
		return service.ImportRequest{}, err
	}
	edits, err := service.ParseEdits(f.edits)
	if err != nil {
		return service.ImportRequest{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return service.ImportRequest{}, err
	}
	return service.ImportRequest{
		PreviewRequest: service.PreviewRequest{AccountID: f.account, Bank: bank, FileName: filepath.Base(path), Data: data, Mode: mode},
		Edits:          edits,
	}, nil
}

func movementsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "movements", Short: "Preview and import bank statements"}

	var parseFlags statementFlags
	var dump bool
	parse := &cobra.Command{
		Use:   "parse <file>",
		Short: "Preview what importing a statement would do",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			req, err := parseFlags.request(args[0])
			if err != nil {
				return err
			}
			p, err := a.importService().Preview(cmd.Context(), req.PreviewRequest)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if dump {
				printer := pp.New()
				printer.SetOutput(out)
				printer.Println(p.Display().Movements)
			}
			renderPreview(out, p)
			return nil
		}),
	}
	parseFlags.register(parse)
	parse.Flags().BoolVar(&dump, "dump", false, "pretty-print the parsed movements")

	var importFlags statementFlags
	var yes bool
	imp := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a statement into an account",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			req, err := importFlags.request(args[0])
			if err != nil {
				return err
			}
			_, err = importStatement(cmd.Context(), a, req, !yes, cmd.InOrStdin(), cmd.OutOrStdout())
			if errors.Is(err, errCancelled) {
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("Importació cancel·lada."))
				return nil
			}
			return err
		}),
	}
	importFlags.register(imp)
	imp.Flags().BoolVarP(&yes, "yes", "y", false, "import without asking")
	imp.Flags().StringArrayVar(&importFlags.edits, "edit", nil, "override a movement before writing: <pos>:<date|concept|category>=<value>, pos as listed in the preview")

	cmd.AddCommand(parse, imp)
	return cmd
}

// importStatement previews req, asks for a mode and confirmation when
// interactive, then imports.
func importStatement(ctx context.Context, a *app, req service.ImportRequest, interactive bool, in io.Reader, out io.Writer) (service.ImportResult, error) {
	svc := a.importService()
	p, err := svc.Preview(ctx, req.PreviewRequest)
	if err != nil {
		return service.ImportResult{}, err
	}

	if p.RequiresImportMode && req.Mode == service.ModeUnset && interactive {
		mode, err := tui.PickImportMode(p.Warnings, in, out)
		if err != nil {
			return service.ImportResult{}, err
		}
		if mode == service.ModeUnset {
			return service.ImportResult{}, errCancelled
		}
		req.Mode = mode
		if p, err = svc.Preview(ctx, req.PreviewRequest); err != nil {
			return service.ImportResult{}, err
		}
	}

	renderPreview(out, p)
	if p.Blocked() {
		return service.ImportResult{}, &service.BlockedError{Reasons: append(slices.Clone(p.Errors), p.Warnings...)}
	}
	if p.ToImportCount == 0 {
		return service.ImportResult{}, nil
	}
	if interactive {
		ok, err := tui.Confirm(fmt.Sprintf("Importar %d moviments?", p.ToImportCount), nil, in, out)
		if err != nil {
			return service.ImportResult{}, err
		}
		if !ok {
			return service.ImportResult{}, errCancelled
		}
	}

	for pos := range req.Edits {
		if pos >= p.ToImportCount {
			return service.ImportResult{}, fmt.Errorf("edit position %d out of range (%d movements)", pos, p.ToImportCount)
		}
	}
	res, err := svc.Import(ctx, req)
	if err != nil {
		return service.ImportResult{}, err
	}
	fmt.Fprintln(out, addedStyle.Render(fmt.Sprintf("%d moviments importats, %d omesos (lot %s)", res.Created, res.Skipped, res.BatchID)))
	return res, nil
}
