package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jask/comptes/internal/money"
)

// balanceTolerance absorbs one cent of rounding between bank and ledger.
var balanceTolerance = decimal.New(1, -2)

// applyBalances trusts balances the source declares and derives a running
// balance otherwise, starting from the latest stored balance (or zero).
// Declared balances are checked only when ValidateBalances is set: banks
// order same-day movements differently, which makes the check noisy.
func (r *Reconciler) applyBalances(ctx context.Context, accountID int64, res *Reconciliation) error {
	if len(res.Movements) == 0 {
		return nil
	}
	if res.Movements[0].Balance != nil {
		if !r.Options.ValidateBalances {
			return nil
		}
		errs, err := r.validateBalances(ctx, accountID, res.Movements)
		if err != nil {
			return err
		}
		if len(errs) > 0 {
			res.Movements = nil
			res.DuplicatesSkipped = 0
			res.Errors = append(res.Errors, errs...)
			res.BalanceValidationFailed = true
		}
		return nil
	}

	running, err := r.startingBalance(ctx, accountID)
	if err != nil {
		return err
	}
	for i := range res.Movements {
		running = running.Add(decimal.NewFromFloat(res.Movements[i].Amount))
		b := running.Round(2).InexactFloat64()
		res.Movements[i].Balance = &b
	}
	return nil
}

func (r *Reconciler) startingBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	last, err := r.Ledger.LatestWithBalance(ctx, accountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("latest balance: %w", err)
	}
	if last == nil || last.BalanceCents == nil {
		return decimal.Zero, nil
	}
	return decimal.New(*last.BalanceCents, -2), nil
}

func (r *Reconciler) validateBalances(ctx context.Context, accountID int64, ms []Movement) ([]string, error) {
	previous, err := r.startingBalance(ctx, accountID)
	if err != nil {
		return nil, err
	}
	var errs []string
	for i, m := range ms {
		expected := previous.Add(decimal.NewFromFloat(m.Amount))
		if m.Balance == nil {
			previous = expected
			continue
		}
		declared := decimal.NewFromFloat(*m.Balance)
		if expected.Sub(declared).Abs().GreaterThan(balanceTolerance) {
			errs = append(errs, fmt.Sprintf("Moviment %d (%s - %s): Saldo esperat %s€, fitxer indica %s€",
				i+1, m.Date, m.Concept, expected.StringFixed(2), money.Format(*m.Balance)))
		}
		previous = declared
	}
	return errs, nil
}
