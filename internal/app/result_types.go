package app

import (
	"github.com/shopspring/decimal"

	"accounting-engine/internal/core"
)

// TrialBalanceResult is returned by GetTrialBalance.
type TrialBalanceResult struct {
	OrganizationID int                   `json:"organization_id"`
	Accounts       []core.AccountBalance `json:"accounts"`
	TotalDebit     decimal.Decimal       `json:"total_debit"`
	TotalCredit    decimal.Decimal       `json:"total_credit"`
	Balanced       bool                  `json:"balanced"`
}

// DocumentListResult is returned by ListDocuments.
type DocumentListResult struct {
	Kind      core.DocumentKind `json:"kind"`
	Documents []core.Document   `json:"documents"`
}

// BalanceVerificationResult is returned by VerifyPartnerBalances.
type BalanceVerificationResult struct {
	OrganizationID int                       `json:"organization_id"`
	Discrepancies  []core.BalanceDiscrepancy `json:"discrepancies"`
	Consistent     bool                      `json:"consistent"`
}
