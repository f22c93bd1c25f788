package app

import (
	"context"

	"accounting-engine/internal/core"
)

// ApplicationService is the single interface all adapters (CLI, Web) call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println, no ANSI codes, and no display logic of any kind.
type ApplicationService interface {
	// OnboardOrganization creates an organization with default sequences and chart of accounts.
	OnboardOrganization(ctx context.Context, name string) (*core.Organization, error)
	ListOrganizations(ctx context.Context) ([]core.Organization, error)

	CreateContact(ctx context.Context, organizationID int, input core.ContactInput) (*core.Contact, error)
	ListContacts(ctx context.Context, organizationID int) ([]core.Contact, error)
	CreateTax(ctx context.Context, organizationID int, input core.TaxInput) (*core.Tax, error)
	CreateProduct(ctx context.Context, organizationID int, input core.ProductInput) (*core.Product, error)
	CreateAccount(ctx context.Context, organizationID int, input core.AccountInput) (*core.Account, error)

	// IssueDocumentNumber takes the next number from an (organization, doc type) sequence.
	IssueDocumentNumber(ctx context.Context, organizationID int, docType string) (*core.DocumentNumber, error)

	// CalculateTax is the pure tax calculator; it never touches the store.
	CalculateTax(req CalculateTaxRequest) (*core.TaxResult, error)

	CreateDocument(ctx context.Context, req CreateDocumentRequest) (*core.Document, error)
	GetDocument(ctx context.Context, kind string, organizationID, documentID int) (*core.Document, error)
	ListDocuments(ctx context.Context, req ListDocumentsRequest) (*DocumentListResult, error)
	// ReplaceDocumentLines replaces the lines of a DRAFT document.
	ReplaceDocumentLines(ctx context.Context, kind string, organizationID, documentID int, lines []core.LineInput) (*core.Document, error)
	// TransitionDocument applies confirm, send, cancel or void.
	TransitionDocument(ctx context.Context, kind string, organizationID, documentID int, action string) (*core.Document, error)
	DeleteDocument(ctx context.Context, kind string, organizationID, documentID int) error
	// ConvertOrderToInvoice turns a CONFIRMED sales order into a DRAFT invoice.
	ConvertOrderToInvoice(ctx context.Context, req ConvertOrderRequest) (*core.Document, error)

	RecordPayment(ctx context.Context, req core.RecordPaymentInput) (*core.Payment, error)
	// AllocatePayment replaces the payment's allocation set.
	AllocatePayment(ctx context.Context, organizationID, paymentID int, allocations []core.AllocationInput) (*core.Payment, error)
	DeletePayment(ctx context.Context, organizationID, paymentID int) error
	GetPayment(ctx context.Context, organizationID, paymentID int) (*core.Payment, error)
	ListPayments(ctx context.Context, organizationID int, contactID *int) ([]core.Payment, error)

	// GetPartnerBalance reads through the balance cache when one is configured.
	GetPartnerBalance(ctx context.Context, organizationID, contactID int) (*core.PartnerBalance, error)
	RecomputePartnerBalance(ctx context.Context, organizationID, contactID int) (*core.PartnerBalance, error)
	VerifyPartnerBalances(ctx context.Context, organizationID int) (*BalanceVerificationResult, error)

	// ValidateJournalEntry runs every posting check without committing.
	ValidateJournalEntry(ctx context.Context, input core.JournalEntryInput) error
	PostJournalEntry(ctx context.Context, input core.JournalEntryInput) (*core.JournalEntry, error)
	ReverseJournalEntry(ctx context.Context, organizationID, entryID int, description string) (*core.JournalEntry, error)
	GetJournalEntry(ctx context.Context, organizationID, entryID int) (*core.JournalEntry, error)
	GetTrialBalance(ctx context.Context, organizationID int) (*TrialBalanceResult, error)
	GetChartOfAccounts(ctx context.Context, organizationID int) ([]*core.AccountNode, error)

	GetAccountStatement(ctx context.Context, req AccountStatementRequest) ([]core.StatementLine, error)
	GetProfitAndLoss(ctx context.Context, req PeriodRequest) (*core.ProfitAndLoss, error)
}
