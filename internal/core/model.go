package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	Asset     AccountType = "asset"
	Liability AccountType = "liability"
	Equity    AccountType = "equity"
	Revenue   AccountType = "revenue"
	Expense   AccountType = "expense"
)

type Account struct {
	ID             int         `json:"id"`
	OrganizationID int         `json:"organization_id"`
	Code           string      `json:"code"`
	Name           string      `json:"name"`
	Type           AccountType `json:"type"`
	ParentID       *int        `json:"parent_id,omitempty"`
}

// DocumentSequence is the per-(organization, doc type) counter row.
// NextVal is the number the next caller will receive.
type DocumentSequence struct {
	OrganizationID int    `json:"organization_id"`
	DocType        string `json:"doc_type"`
	Prefix         string `json:"prefix"`
	NextVal        int64  `json:"next_val"`
	FormatMask     string `json:"format_mask"`
}

// DocumentNumber is what the Sequence Generator hands out.
type DocumentNumber struct {
	Number   string `json:"document_number"`
	Sequence int64  `json:"sequence_number"`
}

// Sequence doc types used by the engine itself.
const (
	DocTypeSalesOrder   = "SO"
	DocTypeInvoice      = "INV"
	DocTypeVendorBill   = "BILL"
	DocTypePayment      = "PAY"
	DocTypeJournalEntry = "JE"
)

type ContactKind string

const (
	ContactCustomer ContactKind = "CUSTOMER"
	ContactVendor   ContactKind = "VENDOR"
	ContactBoth     ContactKind = "BOTH"
)

type Contact struct {
	ID             int         `json:"id"`
	OrganizationID int         `json:"organization_id"`
	Name           string      `json:"name"`
	Kind           ContactKind `json:"kind"`
}

type Product struct {
	ID             int             `json:"id"`
	OrganizationID int             `json:"organization_id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	TaxID          *int            `json:"tax_id,omitempty"`
}

// Document is a Sales Order, Invoice or Vendor Bill. Kind decides which tables back it
// and which transition table governs Status.
type Document struct {
	ID             int             `json:"id"`
	Kind           DocumentKind    `json:"kind"`
	OrganizationID int             `json:"organization_id"`
	ContactID      int             `json:"contact_id"`
	DocumentNumber string          `json:"document_number"`
	Status         DocumentStatus  `json:"status"`
	IssueDate      time.Time       `json:"issue_date"`
	DueDate        *time.Time      `json:"due_date,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TotalTax       decimal.Decimal `json:"total_tax"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	AmountDue      decimal.Decimal `json:"amount_due"`
	SalesOrderID   *int            `json:"sales_order_id,omitempty"` // invoices created from an order
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Lines          []DocumentLine  `json:"lines"`
}

type DocumentLine struct {
	ID              int             `json:"id"`
	LineNumber      int             `json:"line_number"`
	ProductID       *int            `json:"product_id,omitempty"`
	Description     string          `json:"description"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TaxID           *int            `json:"tax_id,omitempty"`
	TaxComputation  TaxComputation  `json:"tax_computation,omitempty"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	LineSubtotal    decimal.Decimal `json:"line_subtotal"`
	LineTax         decimal.Decimal `json:"line_tax"`
	LineTotal       decimal.Decimal `json:"line_total"`
}

// LineInput is one line as submitted by the caller. UnitPrice zero means "use the
// product price"; TaxID nil means "use the product default tax", if any.
type LineInput struct {
	ProductID       *int            `json:"product_id,omitempty"`
	Description     string          `json:"description"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TaxID           *int            `json:"tax_id,omitempty"`
}

// CreateDocumentInput carries everything CreateDocument needs.
type CreateDocumentInput struct {
	Kind           DocumentKind `json:"kind"`
	OrganizationID int          `json:"organization_id"`
	ContactID      int          `json:"contact_id"`
	IssueDate      time.Time    `json:"issue_date"`
	DueDate        *time.Time   `json:"due_date,omitempty"`
	Notes          string       `json:"notes,omitempty"`
	Lines          []LineInput  `json:"lines"`
}

type PaymentDirection string

const (
	// PaymentReceived is money in from a customer; it settles invoices.
	PaymentReceived PaymentDirection = "RECEIVED"
	// PaymentSent is money out to a vendor; it settles vendor bills.
	PaymentSent PaymentDirection = "SENT"
)

// settles returns the document kind this payment direction can be allocated to.
func (d PaymentDirection) settles() (DocumentKind, bool) {
	switch d {
	case PaymentReceived:
		return KindInvoice, true
	case PaymentSent:
		return KindVendorBill, true
	}
	return "", false
}

type Payment struct {
	ID             int                 `json:"id"`
	OrganizationID int                 `json:"organization_id"`
	ContactID      int                 `json:"contact_id"`
	PaymentNumber  string              `json:"payment_number"`
	Direction      PaymentDirection    `json:"direction"`
	Amount         decimal.Decimal     `json:"amount"`
	PaymentDate    time.Time           `json:"payment_date"`
	Method         string              `json:"method"`
	Reference      string              `json:"reference,omitempty"`
	InvoiceID      *int                `json:"invoice_id,omitempty"`
	VendorBillID   *int                `json:"vendor_bill_id,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	Allocations    []PaymentAllocation `json:"allocations"`
}

// Allocated is the sum of the payment's allocations.
func (p *Payment) Allocated() decimal.Decimal {
	total := decimal.Zero
	for _, a := range p.Allocations {
		total = total.Add(a.AllocatedAmount)
	}
	return total
}

// Unallocated is the part of the payment not yet assigned to any document.
func (p *Payment) Unallocated() decimal.Decimal {
	return p.Amount.Sub(p.Allocated())
}

// PaymentAllocation assigns part of a payment to exactly one invoice or vendor bill.
type PaymentAllocation struct {
	ID              int             `json:"id"`
	PaymentID       int             `json:"payment_id"`
	InvoiceID       *int            `json:"invoice_id,omitempty"`
	VendorBillID    *int            `json:"vendor_bill_id,omitempty"`
	AllocatedAmount decimal.Decimal `json:"allocated_amount"`
}

// DocumentID returns whichever foreign key is set.
func (a PaymentAllocation) DocumentID() int {
	if a.InvoiceID != nil {
		return *a.InvoiceID
	}
	if a.VendorBillID != nil {
		return *a.VendorBillID
	}
	return 0
}

// AllocationInput is one {document, amount} pair of an allocation request.
type AllocationInput struct {
	DocumentID int             `json:"document_id"`
	Amount     decimal.Decimal `json:"amount"`
}

type RecordPaymentInput struct {
	OrganizationID int               `json:"organization_id"`
	ContactID      int               `json:"contact_id"`
	Direction      PaymentDirection  `json:"direction"`
	Amount         decimal.Decimal   `json:"amount"`
	PaymentDate    time.Time         `json:"payment_date"`
	Method         string            `json:"method"`
	Reference      string            `json:"reference,omitempty"`
	// DocumentID is the optional direct invoice or bill this payment was made against.
	// Without explicit Allocations the payment is applied to it up to its outstanding
	// amount; explicit Allocations must include it.
	DocumentID     *int              `json:"document_id,omitempty"`
	Allocations    []AllocationInput `json:"allocations,omitempty"`
}

// PartnerBalance is the cached outstanding position of one contact.
// Outstanding = Receivable - Payable, seen from the organization.
type PartnerBalance struct {
	OrganizationID    int             `json:"organization_id"`
	ContactID         int             `json:"contact_id"`
	ReceivableAmount  decimal.Decimal `json:"receivable_amount"`
	PayableAmount     decimal.Decimal `json:"payable_amount"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
	LastUpdated       time.Time       `json:"last_updated"`
}

type JournalEntry struct {
	ID              int           `json:"id"`
	OrganizationID  int           `json:"organization_id"`
	EntryNumber     string        `json:"entry_number"`
	EntryDate       time.Time     `json:"entry_date"`
	Description     string        `json:"description"`
	Reference       string        `json:"reference,omitempty"`
	ReversedEntryID *int          `json:"reversed_entry_id,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	Lines           []JournalLine `json:"lines"`
}

type JournalLine struct {
	ID        int             `json:"id"`
	EntryID   int             `json:"entry_id"`
	AccountID int             `json:"account_id"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

type JournalEntryInput struct {
	OrganizationID int           `json:"organization_id"`
	EntryDate      time.Time     `json:"entry_date"`
	Description    string        `json:"description"`
	Reference      string        `json:"reference,omitempty"`
	Lines          []JournalLine `json:"lines"`
}

type AccountBalance struct {
	AccountID int             `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Balance   decimal.Decimal `json:"balance"`
}
