package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/jask/comptes/internal/database"
	"github.com/jask/comptes/internal/database/repository"
	"github.com/jask/comptes/internal/extract"
	"github.com/jask/comptes/internal/normalize"
)

// ErrImportBlocked is returned when the reconciliation forbids importing.
var ErrImportBlocked = errors.New("import blocked")

// ErrUnknownBank is returned for bank tags without an extractor.
var ErrUnknownBank = extract.ErrUnknownBank

// BlockedError carries the reconciliation messages that stopped an import.
type BlockedError struct {
	Reasons []string
}

func (e *BlockedError) Error() string {
	if len(e.Reasons) == 0 {
		return ErrImportBlocked.Error()
	}
	return ErrImportBlocked.Error() + ": " + strings.Join(e.Reasons, " ")
}

func (e *BlockedError) Unwrap() error { return ErrImportBlocked }

// AccountNotFoundError reports a missing account id.
type AccountNotFoundError struct{ ID int64 }

func (e AccountNotFoundError) Error() string {
	return fmt.Sprintf("El compte corrent amb ID %d no existeix.", e.ID)
}

// ImportOptions gathers the knobs of a movement import.
type ImportOptions struct {
	Reconcile    ReconcileOptions
	ChunkSize    int
	PreviewLimit int
	NotesMinTerm int
}

func DefaultImportOptions() ImportOptions {
	return ImportOptions{
		Reconcile:    DefaultReconcileOptions(),
		ChunkSize:    DefaultChunkSize,
		PreviewLimit: 100,
		NotesMinTerm: DefaultNotesMinTerm,
	}
}

// PreviewRequest identifies a statement to import.
type PreviewRequest struct {
	AccountID int64
	Bank      extract.Bank
	FileName  string
	Data      []byte
	Mode      ImportMode
}

// Preview is what an import would do, before it is confirmed.
type Preview struct {
	Reconciliation
	Issues []extract.Issue
	Format extract.Format
	Parsed int
	limit  int
}

// PreviewDisplay is the preview rendered for humans.
type PreviewDisplay struct {
	Movements []Movement
	Total     int
	Limited   bool
}

// Display lists the movements to import newest first, capped at the
// preview limit.
func (p Preview) Display() PreviewDisplay {
	ms := slices.Clone(p.Movements)
	slices.Reverse(ms)
	d := PreviewDisplay{Movements: ms, Total: len(ms)}
	if p.limit > 0 && len(ms) > p.limit {
		d.Movements = ms[:p.limit]
		d.Limited = true
	}
	return d
}

// Edit overrides fields of one movement before it is written.
type Edit struct {
	Date       *string
	Concept    *string
	CategoryID *int64
}

// ParseEdits reads edits written as "<pos>:<field>=<value>", where pos is
// the movement's position in the oldest-first import list and field is one
// of date, concept or category. Several edits may target the same position.
func ParseEdits(specs []string) (map[int]Edit, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	edits := make(map[int]Edit, len(specs))
	for _, spec := range specs {
		head, value, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("edit %q: expected <pos>:<field>=<value>", spec)
		}
		posText, field, ok := strings.Cut(head, ":")
		if !ok {
			return nil, fmt.Errorf("edit %q: expected <pos>:<field>=<value>", spec)
		}
		pos, err := strconv.Atoi(strings.TrimSpace(posText))
		if err != nil || pos < 0 {
			return nil, fmt.Errorf("edit %q: invalid position", spec)
		}
		e := edits[pos]
		switch strings.ToLower(strings.TrimSpace(field)) {
		case "date":
			e.Date = &value
		case "concept":
			e.Concept = &value
		case "category":
			id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("edit %q: invalid category id", spec)
			}
			e.CategoryID = &id
		default:
			return nil, fmt.Errorf("edit %q: unknown field %q", spec, field)
		}
		edits[pos] = e
	}
	return edits, nil
}

// ImportRequest confirms a preview, optionally with edits keyed by position
// in the oldest-first list of movements to import.
type ImportRequest struct {
	PreviewRequest
	Edits map[int]Edit
}

// ImportResult summarises a confirmed import.
type ImportResult struct {
	BatchID           string
	Created           int
	Skipped           int
	DuplicatesSkipped int
	Warnings          []string
}

// MovementImportService runs statement files through extraction,
// reconciliation, category matching and the importer.
type MovementImportService struct {
	DB      *sql.DB
	Logger  *log.Logger
	Options ImportOptions
}

// Preview parses and reconciles a statement. Missing categories named in
// the file are created; no movement is written.
func (s *MovementImportService) Preview(ctx context.Context, req PreviewRequest) (Preview, error) {
	return s.preview(ctx, repository.New(s.DB), req)
}

// Import re-runs the preview in one transaction and writes the result.
func (s *MovementImportService) Import(ctx context.Context, req ImportRequest) (ImportResult, error) {
	var out ImportResult
	err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		repos := repository.New(tx)
		p, err := s.preview(ctx, repos, req.PreviewRequest)
		if err != nil {
			return err
		}
		if p.Blocked() {
			reasons := append(slices.Clone(p.Errors), p.Warnings...)
			return &BlockedError{Reasons: reasons}
		}
		ms, err := s.applyEdits(ctx, repos, req.AccountID, p.Movements, req.Edits)
		if err != nil {
			return err
		}

		im := &Importer{Logger: s.Logger, ChunkSize: s.Options.ChunkSize}
		stats, err := im.Import(ctx, repos, req.AccountID, ms)
		if err != nil {
			return err
		}

		batch := repository.ImportBatch{
			ID:         uuid.NewString(),
			AccountID:  req.AccountID,
			Bank:       string(req.Bank),
			FileName:   req.FileName,
			Created:    stats.Created,
			Skipped:    stats.Skipped,
			ImportedAt: time.Now().UTC(),
		}
		if err := repos.Batches.Insert(ctx, batch); err != nil {
			return fmt.Errorf("record import batch: %w", err)
		}
		out = ImportResult{
			BatchID:           batch.ID,
			Created:           stats.Created,
			Skipped:           stats.Skipped,
			DuplicatesSkipped: p.DuplicatesSkipped,
			Warnings:          p.Warnings,
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrImportBlocked) {
			s.Logger.Error("movement import failed", "account", req.AccountID, "file", req.FileName, "error", err)
		}
		return ImportResult{}, err
	}
	s.Logger.Info("statement imported", "account", req.AccountID, "file", req.FileName, "batch", out.BatchID, "created", out.Created)
	return out, nil
}

func (s *MovementImportService) preview(ctx context.Context, repos repository.Repos, req PreviewRequest) (Preview, error) {
	acc, err := repos.Accounts.Get(ctx, req.AccountID)
	if err != nil {
		return Preview{}, fmt.Errorf("load account: %w", err)
	}
	if acc == nil {
		return Preview{}, AccountNotFoundError{ID: req.AccountID}
	}
	if err := database.EnsureRootCategories(ctx, repos.Categories, req.AccountID); err != nil {
		return Preview{}, err
	}

	parsed, err := extract.Extract(req.Bank, req.FileName, req.Data, s.Logger)
	if err != nil {
		return Preview{}, err
	}
	ms := Annotate(req.AccountID, parsed.Movements)

	rec := &Reconciler{Ledger: repos.Movements, Logger: s.Logger, Options: s.Options.Reconcile}
	res, err := rec.Reconcile(ctx, req.AccountID, ms, req.Mode)
	if err != nil {
		return Preview{}, err
	}

	p := Preview{
		Reconciliation: res,
		Issues:         parsed.Issues,
		Format:         parsed.Format,
		Parsed:         len(ms),
		limit:          s.Options.PreviewLimit,
	}
	if res.Blocked() || len(res.Movements) == 0 {
		return p, nil
	}

	index, err := LoadCategoryIndex(ctx, repos.Categories, req.AccountID, s.Logger)
	if err != nil {
		return Preview{}, err
	}
	matcher := &CategoryMatcher{Index: index, Notes: repos.Movements, MinTermLen: s.Options.NotesMinTerm, Logger: s.Logger}
	if err := matcher.Match(ctx, req.AccountID, p.Movements); err != nil {
		return Preview{}, err
	}
	return p, nil
}

func (s *MovementImportService) applyEdits(ctx context.Context, repos repository.Repos, accountID int64, ms []Movement, edits map[int]Edit) ([]Movement, error) {
	if len(edits) == 0 {
		return ms, nil
	}
	out := slices.Clone(ms)
	for pos, e := range edits {
		if pos < 0 || pos >= len(out) {
			return nil, fmt.Errorf("edit position %d out of range (%d movements)", pos, len(out))
		}
		m := &out[pos]
		if e.Date != nil {
			d, ok := normalize.ParseDate(*e.Date)
			if !ok {
				return nil, fmt.Errorf("edit position %d: invalid date %q", pos, *e.Date)
			}
			m.Date = d
		}
		if e.Concept != nil {
			m.Concept = strings.TrimSpace(*e.Concept)
			m.conceptEdited = true
		}
		if e.CategoryID != nil {
			c, err := repos.Categories.Get(ctx, *e.CategoryID)
			if err != nil {
				return nil, fmt.Errorf("edit position %d: %w", pos, err)
			}
			if c == nil || c.AccountID != accountID {
				return nil, fmt.Errorf("edit position %d: category %d does not belong to account %d", pos, *e.CategoryID, accountID)
			}
			m.CategoryID = e.CategoryID
			m.categoryEdited = true
		}
	}
	return out, nil
}
