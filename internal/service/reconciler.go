package service

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jask/comptes/internal/database/repository"
	"github.com/jask/comptes/internal/normalize"
)

// ImportMode decides what to import when no file movement is found in the ledger.
type ImportMode string

const (
	ModeUnset         ImportMode = ""
	ModeFromBeginning ImportMode = "from_beginning"
	ModeFromLastDB    ImportMode = "from_last_db"
)

// ParseImportMode validates a mode flag; the empty string means unset.
func ParseImportMode(s string) (ImportMode, error) {
	switch m := ImportMode(s); m {
	case ModeUnset, ModeFromBeginning, ModeFromLastDB:
		return m, nil
	}
	return "", fmt.Errorf("invalid import mode %q", s)
}

// LedgerReader is the part of the movement store reconciliation needs.
type LedgerReader interface {
	FindByFingerprints(ctx context.Context, accountID int64, fps []string) ([]repository.Movement, error)
	Fingerprints(ctx context.Context, accountID int64) (map[string]struct{}, error)
	Latest(ctx context.Context, accountID int64) (*repository.Movement, error)
	LatestWithBalance(ctx context.Context, accountID int64) (*repository.Movement, error)
}

// ReconcileOptions tune overlap detection and balance handling.
type ReconcileOptions struct {
	MaxIDGap         int64
	MaxDayGap        int
	LookupChunkSize  int
	ValidateBalances bool
}

func DefaultReconcileOptions() ReconcileOptions {
	return ReconcileOptions{MaxIDGap: 10, MaxDayGap: 90, LookupChunkSize: 500}
}

// Reconciliation is the outcome of matching a parsed file against the ledger.
// Callers must check Blocked before importing.
type Reconciliation struct {
	Movements         []Movement
	DuplicatesSkipped int
	ToImportCount     int
	// Anchor is the last ledger row confirmed to appear in the file.
	Anchor             *repository.Movement
	AnchorFound        bool
	Warnings           []string
	Errors             []string
	NonConsecutive     bool
	GapAt              int // 0-based file position of the break, -1 when none
	RequiresImportMode bool

	BalanceValidationFailed bool
}

// Blocked reports whether the result must not be imported as is.
func (r Reconciliation) Blocked() bool {
	return r.NonConsecutive || r.BalanceValidationFailed || r.RequiresImportMode
}

// Reconciler trims a parsed file to the movements the ledger is missing.
type Reconciler struct {
	Ledger  LedgerReader
	Logger  *log.Logger
	Options ReconcileOptions
}

type anchorScan struct {
	index   int // last matched position of the consecutive prefix, -1 when none
	row     *repository.Movement
	matched int
	gap     int // position of the break, -1 when none
	gapWith int // position of the stored movement that failed the check
	stored  []int
}

// Reconcile runs overlap detection, the import window decision and balance
// derivation over ms, which must be ordered oldest first.
func (r *Reconciler) Reconcile(ctx context.Context, accountID int64, ms []Movement, mode ImportMode) (Reconciliation, error) {
	scan, err := r.findAnchor(ctx, accountID, ms)
	if err != nil {
		return Reconciliation{}, err
	}

	var res Reconciliation
	switch {
	case scan.gap >= 0:
		r.Logger.Warn("non-consecutive movements", "account", accountID, "position", scan.gap+1, "stored_position", scan.gapWith+1)
		return gapResult(scan), nil
	case scan.index >= 0:
		res = r.afterAnchor(ms, scan)
	default:
		res, err = r.withoutAnchor(ctx, accountID, ms, mode)
		if err != nil {
			return Reconciliation{}, err
		}
	}

	if err := r.applyBalances(ctx, accountID, &res); err != nil {
		return Reconciliation{}, err
	}
	res.ToImportCount = len(res.Movements)
	r.Logger.Debug("reconciled", "account", accountID, "file", len(ms), "to_import", res.ToImportCount, "duplicates", res.DuplicatesSkipped, "anchor", res.AnchorFound)
	return res, nil
}

// findAnchor scans from the oldest movement for the longest prefix already
// stored, each stored row consecutive with the previous one. When the scan
// stops at a missing movement but a later file movement is stored, that row
// must still be consecutive with the anchor or the file has a gap.
func (r *Reconciler) findAnchor(ctx context.Context, accountID int64, ms []Movement) (anchorScan, error) {
	scan := anchorScan{index: -1, gap: -1, gapWith: -1}
	stored, err := r.lookup(ctx, accountID, ms)
	if err != nil {
		return scan, err
	}

	var prev *repository.Movement
	for i := range ms {
		row, ok := stored[ms[i].Fingerprint]
		if !ok {
			break
		}
		if prev != nil && !r.consecutive(*prev, row) {
			scan.gap, scan.gapWith, scan.row = i, i, prev
			return scan, nil
		}
		prev = &row
		scan.index, scan.row = i, prev
		scan.matched++
	}
	if scan.index < 0 {
		return scan, nil
	}

	checked := false
	for j := scan.index + 1; j < len(ms); j++ {
		row, ok := stored[ms[j].Fingerprint]
		if !ok {
			continue
		}
		if !checked {
			if !r.consecutive(*scan.row, row) {
				scan.gap, scan.gapWith = scan.index+1, j
				return scan, nil
			}
			checked = true
		}
		scan.stored = append(scan.stored, j)
	}
	return scan, nil
}

// lookup fetches the stored rows matching the file's fingerprints in chunks.
func (r *Reconciler) lookup(ctx context.Context, accountID int64, ms []Movement) (map[string]repository.Movement, error) {
	chunk := r.Options.LookupChunkSize
	if chunk <= 0 {
		chunk = DefaultReconcileOptions().LookupChunkSize
	}
	fps := make([]string, 0, len(ms))
	for _, m := range ms {
		fps = append(fps, m.Fingerprint)
	}
	out := make(map[string]repository.Movement, len(ms))
	for start := 0; start < len(fps); start += chunk {
		end := min(start+chunk, len(fps))
		rows, err := r.Ledger.FindByFingerprints(ctx, accountID, fps[start:end])
		if err != nil {
			return nil, fmt.Errorf("lookup fingerprints: %w", err)
		}
		for _, row := range rows {
			out[row.Fingerprint] = row
		}
	}
	return out, nil
}

// consecutive tolerates small id gaps from deletions and sparse accounts
// whose movements are months apart.
func (r *Reconciler) consecutive(prev, cur repository.Movement) bool {
	if d := cur.ID - prev.ID; d > 0 && d <= r.Options.MaxIDGap {
		return true
	}
	p, err1 := time.Parse(normalize.ISODate, prev.Date)
	c, err2 := time.Parse(normalize.ISODate, cur.Date)
	if err1 != nil || err2 != nil {
		return false
	}
	days := int(c.Sub(p).Hours() / 24)
	return days >= 0 && days <= r.Options.MaxDayGap
}

func gapResult(scan anchorScan) Reconciliation {
	errs := []string{fmt.Sprintf("S'ha detectat un salt en els moviments a la posició %d del fitxer.", scan.gap+1)}
	if scan.gapWith != scan.gap {
		errs = append(errs, fmt.Sprintf("El moviment de la posició %d ja existeix a la base de dades però no és consecutiu amb l'últim moviment coincident.", scan.gapWith+1))
	}
	errs = append(errs,
		"Els moviments del fitxer no són consecutius amb els de la base de dades.",
		"Això pot indicar que falten moviments o que el fitxer no està complet.",
		"Revisa el fitxer i assegura't que conté tots els moviments des de l'inici.",
	)
	return Reconciliation{
		Anchor:         scan.row,
		AnchorFound:    true,
		Errors:         errs,
		NonConsecutive: true,
		GapAt:          scan.gap,
	}
}

func (r *Reconciler) afterAnchor(ms []Movement, scan anchorScan) Reconciliation {
	skip := make(map[int]bool, len(scan.stored))
	for _, j := range scan.stored {
		skip[j] = true
	}
	var toImport []Movement
	for j := scan.index + 1; j < len(ms); j++ {
		if !skip[j] {
			toImport = append(toImport, ms[j])
		}
	}
	res := Reconciliation{
		Movements:         toImport,
		DuplicatesSkipped: scan.matched + len(scan.stored),
		Anchor:            scan.row,
		AnchorFound:       true,
		GapAt:             -1,
	}
	if len(scan.stored) > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d moviments posteriors a l'últim coincident ja existien a la base de dades i s'han omès.", len(scan.stored)))
	}
	if len(toImport) == 0 {
		res.Warnings = append(res.Warnings, "Tots els moviments del fitxer ja existeixen a la base de dades.")
	}
	return res
}

func (r *Reconciler) withoutAnchor(ctx context.Context, accountID int64, ms []Movement, mode ImportMode) (Reconciliation, error) {
	res := Reconciliation{GapAt: -1}
	switch mode {
	case ModeUnset:
		res.RequiresImportMode = true
		res.Warnings = []string{
			"No s'ha trobat cap moviment coincident a la base de dades.",
			"Els moviments s'afegiran a continuació de l'últim registre sense poder verificar la coherència.",
			"Comprova que les dates i imports siguin correctes abans d'importar.",
		}
	case ModeFromBeginning:
		res.Movements = ms
		res.Warnings = []string{"Importació des del principi del fitxer."}
	case ModeFromLastDB:
		latest, err := r.Ledger.Latest(ctx, accountID)
		if err != nil {
			return res, fmt.Errorf("latest movement: %w", err)
		}
		if latest == nil {
			res.Movements = ms
			res.Warnings = []string{"Cap moviment a la BD. S'importaran tots els moviments."}
			return res, nil
		}
		existing, err := r.Ledger.Fingerprints(ctx, accountID)
		if err != nil {
			return res, fmt.Errorf("account fingerprints: %w", err)
		}
		for _, m := range ms {
			if _, ok := existing[m.Fingerprint]; !ok {
				res.Movements = append(res.Movements, m)
			}
		}
		res.Anchor = latest
		res.DuplicatesSkipped = len(ms) - len(res.Movements)
		res.Warnings = []string{"Importació des de l'última data a la BD: " + displayDate(latest.Date)}
	default:
		res.RequiresImportMode = true
		res.Warnings = []string{"Mode d'importació no vàlid."}
	}
	return res, nil
}

func displayDate(iso string) string {
	t, err := time.Parse(normalize.ISODate, iso)
	if err != nil {
		return iso
	}
	return t.Format("02/01/2006")
}
