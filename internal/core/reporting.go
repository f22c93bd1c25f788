package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// StatementLine is one journal line in an account statement.
// RunningBalance is the cumulative net-debit position after this line.
type StatementLine struct {
	EntryNumber    string          `json:"entry_number"`
	EntryDate      time.Time       `json:"entry_date"`
	Description    string          `json:"description"`
	Reference      string          `json:"reference"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	RunningBalance decimal.Decimal `json:"running_balance"`
}

// AccountLine is one account in a profit and loss report, signed so that
// income received and cost incurred are both positive.
type AccountLine struct {
	Code    string          `json:"code"`
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
}

type ProfitAndLoss struct {
	OrganizationID int             `json:"organization_id"`
	From           *time.Time      `json:"from,omitempty"`
	To             *time.Time      `json:"to,omitempty"`
	Revenue        []AccountLine   `json:"revenue"`
	Expenses       []AccountLine   `json:"expenses"`
	NetIncome      decimal.Decimal `json:"net_income"`
}

// ReportingService provides read-only queries over posted journal entries.
type ReportingService interface {
	// GetAccountStatement returns the lines posted to accountCode, ordered by
	// entry date then entry id. from and to are optional inclusive bounds.
	GetAccountStatement(ctx context.Context, organizationID int, accountCode string, from, to *time.Time) ([]StatementLine, error)
	GetProfitAndLoss(ctx context.Context, organizationID int, from, to *time.Time) (*ProfitAndLoss, error)
}

type reportingService struct {
	pool *pgxpool.Pool
}

func NewReportingService(pool *pgxpool.Pool) ReportingService {
	return &reportingService{pool: pool}
}

// dateBounds appends the optional entry_date filters to q.
func dateBounds(q string, args []any, from, to *time.Time) (string, []any) {
	if from != nil {
		args = append(args, *from)
		q += fmt.Sprintf(" AND je.entry_date >= $%d::date", len(args))
	}
	if to != nil {
		args = append(args, *to)
		q += fmt.Sprintf(" AND je.entry_date <= $%d::date", len(args))
	}
	return q, args
}

func (s *reportingService) GetAccountStatement(ctx context.Context, organizationID int, accountCode string, from, to *time.Time) ([]StatementLine, error) {
	var accountID int
	err := s.pool.QueryRow(ctx,
		"SELECT id FROM accounts WHERE organization_id = $1 AND code = $2",
		organizationID, accountCode,
	).Scan(&accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("account %s not found in organization %d", accountCode, organizationID)
		}
		return nil, storeError("resolve account", err)
	}

	q, args := dateBounds(`
		SELECT je.entry_number, je.entry_date, je.description, je.reference,
		       jl.debit, jl.credit
		FROM journal_lines jl
		JOIN journal_entries je ON je.id = jl.entry_id
		WHERE je.organization_id = $1
		  AND jl.account_id = $2`,
		[]any{organizationID, accountID}, from, to)
	q += " ORDER BY je.entry_date ASC, je.id ASC, jl.id ASC"

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, storeError("query account statement", err)
	}
	defer rows.Close()

	lines := []StatementLine{}
	running := decimal.Zero
	for rows.Next() {
		var sl StatementLine
		if err := rows.Scan(&sl.EntryNumber, &sl.EntryDate, &sl.Description, &sl.Reference, &sl.Debit, &sl.Credit); err != nil {
			return nil, storeError("scan statement line", err)
		}
		running = running.Add(sl.Debit).Sub(sl.Credit)
		sl.RunningBalance = running
		lines = append(lines, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("iterate statement lines", err)
	}
	return lines, nil
}

// GetProfitAndLoss aggregates revenue and expense accounts over the period
// straight from journal_lines.
func (s *reportingService) GetProfitAndLoss(ctx context.Context, organizationID int, from, to *time.Time) (*ProfitAndLoss, error) {
	inner, args := dateBounds(`
		SELECT jl.account_id,
		       SUM(jl.debit)  AS debit_total,
		       SUM(jl.credit) AS credit_total
		FROM journal_lines jl
		JOIN journal_entries je ON je.id = jl.entry_id
		WHERE je.organization_id = $1`,
		[]any{organizationID}, from, to)

	q := `
		SELECT a.code, a.name, a.type,
		       COALESCE(t.debit_total, 0),
		       COALESCE(t.credit_total, 0)
		FROM accounts a
		LEFT JOIN (` + inner + `
		    GROUP BY jl.account_id
		) t ON t.account_id = a.id
		WHERE a.organization_id = $1
		  AND a.type IN ('revenue', 'expense')
		ORDER BY a.type, a.code`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, storeError("query profit and loss", err)
	}
	defer rows.Close()

	report := &ProfitAndLoss{
		OrganizationID: organizationID,
		From:           from,
		To:             to,
		Revenue:        []AccountLine{},
		Expenses:       []AccountLine{},
	}
	var totalRevenue, totalExpenses decimal.Decimal
	for rows.Next() {
		var (
			line          AccountLine
			accType       AccountType
			debit, credit decimal.Decimal
		)
		if err := rows.Scan(&line.Code, &line.Name, &accType, &debit, &credit); err != nil {
			return nil, storeError("scan profit and loss row", err)
		}
		switch accType {
		case Revenue:
			line.Balance = credit.Sub(debit)
			report.Revenue = append(report.Revenue, line)
			totalRevenue = totalRevenue.Add(line.Balance)
		case Expense:
			line.Balance = debit.Sub(credit)
			report.Expenses = append(report.Expenses, line)
			totalExpenses = totalExpenses.Add(line.Balance)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("iterate profit and loss rows", err)
	}

	report.NetIncome = totalRevenue.Sub(totalExpenses)
	return report, nil
}
