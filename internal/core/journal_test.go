package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accounting-engine/internal/core"
)

func debit(account int, amount string) core.JournalLine {
	return core.JournalLine{AccountID: account, Debit: dec(amount), Credit: dec("0")}
}

func credit(account int, amount string) core.JournalLine {
	return core.JournalLine{AccountID: account, Debit: dec("0"), Credit: dec(amount)}
}

func TestValidateJournalLines(t *testing.T) {
	tests := []struct {
		name    string
		lines   []core.JournalLine
		wantErr string
	}{
		{
			name:  "split credit balances",
			lines: []core.JournalLine{debit(1, "100"), credit(2, "60"), credit(3, "40")},
		},
		{
			name:  "difference within one cent",
			lines: []core.JournalLine{debit(1, "100.00"), credit(2, "100.01")},
		},
		{
			name:    "unbalanced",
			lines:   []core.JournalLine{debit(1, "100"), credit(2, "90")},
			wantErr: "journal entry is unbalanced: debits 100.00, credits 90.00",
		},
		{
			name:    "difference above one cent",
			lines:   []core.JournalLine{debit(1, "100.00"), credit(2, "100.02")},
			wantErr: "journal entry is unbalanced: debits 100.00, credits 100.02",
		},
		{
			name:    "single line",
			lines:   []core.JournalLine{debit(1, "100")},
			wantErr: "journal entry must have at least 2 lines",
		},
		{
			name:    "no lines",
			wantErr: "journal entry must have at least 2 lines",
		},
		{
			name: "line with both sides",
			lines: []core.JournalLine{
				{AccountID: 1, Debit: dec("50"), Credit: dec("50")},
				credit(2, "0.01"),
			},
			wantErr: "line 1: exactly one of debit or credit must be positive",
		},
		{
			name:    "empty line",
			lines:   []core.JournalLine{debit(1, "100"), credit(2, "100"), {AccountID: 3}},
			wantErr: "line 3: exactly one of debit or credit must be positive",
		},
		{
			name:    "negative amount",
			lines:   []core.JournalLine{debit(1, "-100"), credit(2, "-100")},
			wantErr: "line 1: debit and credit cannot be negative",
		},
		{
			name:    "missing account",
			lines:   []core.JournalLine{debit(0, "100"), credit(2, "100")},
			wantErr: "line 1: account is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := core.ValidateJournalLines(tt.lines)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrBusinessRule)
			assert.Equal(t, tt.wantErr, core.Reason(err))
		})
	}
}

func TestJournalTotals(t *testing.T) {
	debits, credits := core.JournalTotals([]core.JournalLine{debit(1, "100"), credit(2, "60"), credit(3, "40.50")})
	assert.Equal(t, "100.00", debits.StringFixed(2))
	assert.Equal(t, "100.50", credits.StringFixed(2))
}

func TestSummarizeTrialBalance(t *testing.T) {
	accounts := []core.AccountBalance{
		{Code: "1200", Debit: dec("100.00")},
		{Code: "3000", Credit: dec("99.99")},
	}
	require.NoError(t, core.ValidateJournalLines([]core.JournalLine{debit(1, "100.00"), credit(2, "99.99")}))

	tb := core.SummarizeTrialBalance(accounts, 1)
	assert.Equal(t, "100.00", tb.TotalDebit.StringFixed(2))
	assert.Equal(t, "99.99", tb.TotalCredit.StringFixed(2))
	assert.True(t, tb.Balanced, "an accepted entry keeps the trial balance balanced")

	twoCents := []core.AccountBalance{{Code: "1200", Debit: dec("200.00")}, {Code: "3000", Credit: dec("199.98")}}
	assert.True(t, core.SummarizeTrialBalance(twoCents, 2).Balanced)
	assert.False(t, core.SummarizeTrialBalance(twoCents, 1).Balanced)

	assert.True(t, core.SummarizeTrialBalance(nil, 0).Balanced)
}
