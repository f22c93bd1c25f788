package app

import (
	"time"

	"github.com/shopspring/decimal"

	"accounting-engine/internal/core"
)

// CalculateTaxRequest is the input for the tax calculator.
// Computation defaults to PERCENTAGE; for FIXED, Rate is the absolute tax amount.
type CalculateTaxRequest struct {
	Base        decimal.Decimal     `json:"base"`
	Rate        decimal.Decimal     `json:"rate"`
	Mode        string              `json:"mode"`
	Computation core.TaxComputation `json:"computation,omitempty"`
}

// CreateDocumentRequest is the input for creating a DRAFT sales order, invoice or vendor bill.
type CreateDocumentRequest struct {
	Kind           string           `json:"kind"`
	OrganizationID int              `json:"organization_id"`
	ContactID      int              `json:"contact_id"`
	IssueDate      time.Time        `json:"issue_date"`
	DueDate        *time.Time       `json:"due_date,omitempty"`
	Notes          string           `json:"notes,omitempty"`
	Lines          []core.LineInput `json:"lines"`
}

// ListDocumentsRequest filters ListDocuments. Empty Status and nil ContactID match everything.
type ListDocumentsRequest struct {
	Kind           string
	OrganizationID int
	Status         string
	ContactID      *int
}

// ConvertOrderRequest is the input for invoicing a confirmed sales order.
type ConvertOrderRequest struct {
	OrganizationID int        `json:"organization_id"`
	OrderID        int        `json:"order_id"`
	IssueDate      time.Time  `json:"issue_date"`
	DueDate        *time.Time `json:"due_date,omitempty"`
}

const dateLayout = "2006-01-02"

// PeriodRequest bounds a report. From and To are optional YYYY-MM-DD dates.
type PeriodRequest struct {
	OrganizationID int
	From           string
	To             string
}

// AccountStatementRequest selects the lines posted to one account.
type AccountStatementRequest struct {
	OrganizationID int
	AccountCode    string
	From           string
	To             string
}
