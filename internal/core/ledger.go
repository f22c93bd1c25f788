package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"accounting-engine/internal/logger"
)

// LedgerService posts manual journal entries behind the balance validator.
type LedgerService interface {
	PostJournalEntry(ctx context.Context, input JournalEntryInput) (*JournalEntry, error)
	// ValidateEntry runs every check PostJournalEntry runs, then rolls back.
	ValidateEntry(ctx context.Context, input JournalEntryInput) error
	// ReverseJournalEntry posts the mirror image of an entry. An entry can be reversed once.
	ReverseJournalEntry(ctx context.Context, organizationID, entryID int, description string) (*JournalEntry, error)
	GetJournalEntry(ctx context.Context, organizationID, entryID int) (*JournalEntry, error)
	GetTrialBalance(ctx context.Context, organizationID int) (*TrialBalance, error)
}

// TrialBalance is the per-account sum of every posted line of an organization.
type TrialBalance struct {
	Accounts    []AccountBalance `json:"accounts"`
	EntryCount  int              `json:"entry_count"`
	TotalDebit  decimal.Decimal  `json:"total_debit"`
	TotalCredit decimal.Decimal  `json:"total_credit"`
	// Balanced allows each posted entry the same one-cent difference the journal
	// validator accepts.
	Balanced bool `json:"balanced"`
}

// SummarizeTrialBalance totals accounts posted by entryCount journal entries.
func SummarizeTrialBalance(accounts []AccountBalance, entryCount int) *TrialBalance {
	debits, credits := TrialBalanceTotals(accounts)
	return &TrialBalance{
		Accounts:    accounts,
		EntryCount:  entryCount,
		TotalDebit:  debits,
		TotalCredit: credits,
		Balanced:    withinTolerance(debits, credits, entryCount),
	}
}

type Ledger struct {
	pool *pgxpool.Pool
	seq  SequenceGenerator
	log  zerolog.Logger
}

func NewLedger(pool *pgxpool.Pool, seq SequenceGenerator) *Ledger {
	return &Ledger{pool: pool, seq: seq, log: logger.WithComponent("ledger")}
}

func (l *Ledger) PostJournalEntry(ctx context.Context, input JournalEntryInput) (*JournalEntry, error) {
	id, err := l.execute(ctx, input, true)
	if err != nil {
		return nil, err
	}
	return l.GetJournalEntry(ctx, input.OrganizationID, id)
}

func (l *Ledger) ValidateEntry(ctx context.Context, input JournalEntryInput) error {
	_, err := l.execute(ctx, input, false)
	return err
}

func (l *Ledger) execute(ctx context.Context, input JournalEntryInput, commit bool) (int, error) {
	input.Lines = append([]JournalLine(nil), input.Lines...)
	for i := range input.Lines {
		input.Lines[i].Debit = roundMoney(input.Lines[i].Debit)
		input.Lines[i].Credit = roundMoney(input.Lines[i].Credit)
	}
	if err := ValidateJournalLines(input.Lines); err != nil {
		return 0, err
	}
	entryDate := input.EntryDate
	if entryDate.IsZero() {
		entryDate = time.Now()
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, storeError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	for i, line := range input.Lines {
		if err := accountExists(ctx, tx, input.OrganizationID, line.AccountID); err != nil {
			return 0, fmt.Errorf("line %d: %w", i+1, err)
		}
	}

	num, err := l.seq.NextTx(ctx, tx, input.OrganizationID, DocTypeJournalEntry)
	if err != nil {
		return 0, err
	}

	var entryID int
	err = tx.QueryRow(ctx, `
		INSERT INTO journal_entries (organization_id, entry_number, entry_date, description, reference)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, input.OrganizationID, num.Number, entryDate, input.Description, input.Reference).Scan(&entryID)
	if err != nil {
		return 0, storeError("insert journal entry", err)
	}

	if err := insertJournalLinesTx(ctx, tx, entryID, input.Lines); err != nil {
		return 0, err
	}

	if !commit {
		return entryID, nil
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, storeError("commit journal entry", err)
	}

	debits, _ := JournalTotals(input.Lines)
	l.log.Info().
		Int("organization_id", input.OrganizationID).
		Str("entry_number", num.Number).
		Str("amount", debits.StringFixed(2)).
		Msg("journal entry posted")
	return entryID, nil
}

func (l *Ledger) ReverseJournalEntry(ctx context.Context, organizationID, entryID int, description string) (*JournalEntry, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, storeError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	var original JournalEntry
	err = tx.QueryRow(ctx, `
		SELECT id, entry_number, entry_date, description, reversed_entry_id
		FROM journal_entries
		WHERE id = $1 AND organization_id = $2
		FOR UPDATE
	`, entryID, organizationID).Scan(&original.ID, &original.EntryNumber, &original.EntryDate,
		&original.Description, &original.ReversedEntryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("journal entry %d not found in organization %d", entryID, organizationID)
		}
		return nil, storeError("lock journal entry", err)
	}
	if original.ReversedEntryID != nil {
		return nil, ruleViolation("journal entry %s is itself a reversal", original.EntryNumber)
	}

	var count int
	err = tx.QueryRow(ctx, "SELECT count(*) FROM journal_entries WHERE reversed_entry_id = $1", entryID).Scan(&count)
	if err != nil {
		return nil, storeError("check reversal status", err)
	}
	if count > 0 {
		return nil, ruleViolation("journal entry %s is already reversed", original.EntryNumber)
	}

	lines, err := loadJournalLines(ctx, tx, entryID)
	if err != nil {
		return nil, err
	}
	for i := range lines {
		lines[i].Debit, lines[i].Credit = lines[i].Credit, lines[i].Debit
	}

	num, err := l.seq.NextTx(ctx, tx, organizationID, DocTypeJournalEntry)
	if err != nil {
		return nil, err
	}
	if description == "" {
		description = fmt.Sprintf("Reversal of %s: %s", original.EntryNumber, original.Description)
	}

	var newID int
	err = tx.QueryRow(ctx, `
		INSERT INTO journal_entries (organization_id, entry_number, entry_date, description, reference, reversed_entry_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, organizationID, num.Number, original.EntryDate, description, original.EntryNumber, entryID).Scan(&newID)
	if err != nil {
		return nil, storeError("insert reversal entry", err)
	}
	if err := insertJournalLinesTx(ctx, tx, newID, lines); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeError("commit reversal", err)
	}

	l.log.Info().Str("entry_number", original.EntryNumber).Str("reversal", num.Number).Msg("journal entry reversed")
	return l.GetJournalEntry(ctx, organizationID, newID)
}

func (l *Ledger) GetJournalEntry(ctx context.Context, organizationID, entryID int) (*JournalEntry, error) {
	e := JournalEntry{OrganizationID: organizationID}
	err := l.pool.QueryRow(ctx, `
		SELECT id, entry_number, entry_date, description, reference, reversed_entry_id, created_at
		FROM journal_entries
		WHERE id = $1 AND organization_id = $2
	`, entryID, organizationID).Scan(&e.ID, &e.EntryNumber, &e.EntryDate, &e.Description, &e.Reference,
		&e.ReversedEntryID, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("journal entry %d not found in organization %d", entryID, organizationID)
		}
		return nil, storeError("read journal entry", err)
	}
	e.Lines, err = loadJournalLines(ctx, l.pool, entryID)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (l *Ledger) GetTrialBalance(ctx context.Context, organizationID int) (*TrialBalance, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT a.id, a.code, a.name,
		       COALESCE(SUM(jl.debit), 0), COALESCE(SUM(jl.credit), 0)
		FROM accounts a
		LEFT JOIN journal_lines jl ON a.id = jl.account_id
		WHERE a.organization_id = $1
		GROUP BY a.id, a.code, a.name
		ORDER BY a.code
	`, organizationID)
	if err != nil {
		return nil, storeError("query trial balance", err)
	}
	defer rows.Close()

	var balances []AccountBalance
	for rows.Next() {
		var b AccountBalance
		if err := rows.Scan(&b.AccountID, &b.Code, &b.Name, &b.Debit, &b.Credit); err != nil {
			return nil, storeError("scan account balance", err)
		}
		b.Balance = b.Debit.Sub(b.Credit)
		balances = append(balances, b)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("iterate trial balance", err)
	}

	var entryCount int
	err = l.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM journal_entries WHERE organization_id = $1
	`, organizationID).Scan(&entryCount)
	if err != nil {
		return nil, storeError("count journal entries", err)
	}
	return SummarizeTrialBalance(balances, entryCount), nil
}

// TrialBalanceTotals sums the debit and credit columns of a trial balance.
func TrialBalanceTotals(balances []AccountBalance) (debits, credits decimal.Decimal) {
	debits, credits = decimal.Zero, decimal.Zero
	for _, b := range balances {
		debits = debits.Add(b.Debit)
		credits = credits.Add(b.Credit)
	}
	return debits, credits
}

func insertJournalLinesTx(ctx context.Context, tx pgx.Tx, entryID int, lines []JournalLine) error {
	for i, line := range lines {
		_, err := tx.Exec(ctx, `
			INSERT INTO journal_lines (entry_id, account_id, debit, credit)
			VALUES ($1, $2, $3, $4)
		`, entryID, line.AccountID, line.Debit, line.Credit)
		if err != nil {
			return storeError(fmt.Sprintf("insert journal line %d", i+1), err)
		}
	}
	return nil
}

func loadJournalLines(ctx context.Context, q pgxQuerier, entryID int) ([]JournalLine, error) {
	rows, err := q.Query(ctx, `
		SELECT id, entry_id, account_id, debit, credit
		FROM journal_lines
		WHERE entry_id = $1
		ORDER BY id
	`, entryID)
	if err != nil {
		return nil, storeError("query journal lines", err)
	}
	defer rows.Close()

	var lines []JournalLine
	for rows.Next() {
		var jl JournalLine
		if err := rows.Scan(&jl.ID, &jl.EntryID, &jl.AccountID, &jl.Debit, &jl.Credit); err != nil {
			return nil, storeError("scan journal line", err)
		}
		lines = append(lines, jl)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("iterate journal lines", err)
	}
	return lines, nil
}

func accountExists(ctx context.Context, q pgxQuerier, organizationID, accountID int) error {
	var exists bool
	err := q.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1 AND organization_id = $2)",
		accountID, organizationID).Scan(&exists)
	if err != nil {
		return storeError("read account", err)
	}
	if !exists {
		return notFound("account %d not found in organization %d", accountID, organizationID)
	}
	return nil
}
