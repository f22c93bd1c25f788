package core

import (
	"github.com/shopspring/decimal"
)

// journalTolerance absorbs rounding differences between debit and credit totals.
var journalTolerance = decimal.NewFromFloat(0.01)

// withinTolerance reports whether debits and credits differ by no more than the
// allowance of the given number of journal entries.
func withinTolerance(debits, credits decimal.Decimal, entries int) bool {
	if entries < 1 {
		entries = 1
	}
	allowed := journalTolerance.Mul(decimal.NewFromInt(int64(entries)))
	return debits.Sub(credits).Abs().LessThanOrEqual(allowed)
}

// ValidateJournalLines is the double-entry gate for manual postings. It never touches
// the store: at least two lines, each line strictly one-sided, and debits equal to
// credits within one cent.
func ValidateJournalLines(lines []JournalLine) error {
	if len(lines) < 2 {
		return ruleViolation("journal entry must have at least 2 lines")
	}

	debits, credits := JournalTotals(lines)
	for i, l := range lines {
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return ruleViolation("line %d: debit and credit cannot be negative", i+1)
		}
		if l.Debit.IsPositive() == l.Credit.IsPositive() {
			return ruleViolation("line %d: exactly one of debit or credit must be positive", i+1)
		}
		if l.AccountID <= 0 {
			return ruleViolation("line %d: account is required", i+1)
		}
	}

	if !withinTolerance(debits, credits, 1) {
		return ruleViolation("journal entry is unbalanced: debits %s, credits %s",
			debits.StringFixed(2), credits.StringFixed(2))
	}
	return nil
}

// JournalTotals sums both sides of the lines.
func JournalTotals(lines []JournalLine) (debits, credits decimal.Decimal) {
	debits, credits = decimal.Zero, decimal.Zero
	for _, l := range lines {
		debits = debits.Add(l.Debit)
		credits = credits.Add(l.Credit)
	}
	return debits, credits
}
