package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"accounting-engine/internal/cache"
	"accounting-engine/internal/core"
)

type appService struct {
	orgs     core.OrganizationService
	seq      core.SequenceGenerator
	docs     core.DocumentService
	payments core.PaymentService
	balances core.PartnerBalanceService
	ledger   core.LedgerService
	accounts core.AccountService
	reports  core.ReportingService
	cache    cache.BalanceCache
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	orgs core.OrganizationService,
	seq core.SequenceGenerator,
	docs core.DocumentService,
	payments core.PaymentService,
	balances core.PartnerBalanceService,
	ledger core.LedgerService,
	accounts core.AccountService,
	reports core.ReportingService,
	balanceCache cache.BalanceCache,
) ApplicationService {
	if balanceCache == nil {
		balanceCache = cache.NewBalanceCache(nil, 0)
	}
	return &appService{
		orgs:     orgs,
		seq:      seq,
		docs:     docs,
		payments: payments,
		balances: balances,
		ledger:   ledger,
		accounts: accounts,
		reports:  reports,
		cache:    balanceCache,
	}
}

// NewFromPool wires every core service on top of pool.
func NewFromPool(pool *pgxpool.Pool, balanceCache cache.BalanceCache) ApplicationService {
	seq := core.NewSequenceGenerator(pool)
	balances := core.NewPartnerBalanceService(pool)
	return NewAppService(
		core.NewOrganizationService(pool),
		seq,
		core.NewDocumentService(pool, seq, balances),
		core.NewPaymentService(pool, seq, balances),
		balances,
		core.NewLedger(pool, seq),
		core.NewAccountService(pool),
		core.NewReportingService(pool),
		balanceCache,
	)
}

func (s *appService) OnboardOrganization(ctx context.Context, name string) (*core.Organization, error) {
	return s.orgs.OnboardOrganization(ctx, name)
}

func (s *appService) ListOrganizations(ctx context.Context) ([]core.Organization, error) {
	return s.orgs.ListOrganizations(ctx)
}

func (s *appService) CreateContact(ctx context.Context, organizationID int, input core.ContactInput) (*core.Contact, error) {
	input.Kind = core.ContactKind(strings.ToUpper(string(input.Kind)))
	return s.orgs.CreateContact(ctx, organizationID, input)
}

func (s *appService) ListContacts(ctx context.Context, organizationID int) ([]core.Contact, error) {
	return s.orgs.ListContacts(ctx, organizationID)
}

func (s *appService) CreateTax(ctx context.Context, organizationID int, input core.TaxInput) (*core.Tax, error) {
	input.Computation = core.TaxComputation(strings.ToUpper(string(input.Computation)))
	return s.orgs.CreateTax(ctx, organizationID, input)
}

func (s *appService) CreateProduct(ctx context.Context, organizationID int, input core.ProductInput) (*core.Product, error) {
	return s.orgs.CreateProduct(ctx, organizationID, input)
}

func (s *appService) CreateAccount(ctx context.Context, organizationID int, input core.AccountInput) (*core.Account, error) {
	input.Type = core.AccountType(strings.ToLower(string(input.Type)))
	return s.orgs.CreateAccount(ctx, organizationID, input)
}

func (s *appService) IssueDocumentNumber(ctx context.Context, organizationID int, docType string) (*core.DocumentNumber, error) {
	return s.seq.IssueDocumentNumber(ctx, organizationID, strings.ToUpper(strings.TrimSpace(docType)))
}

// CalculateTax dispatches to the percentage or fixed calculator.
func (s *appService) CalculateTax(req CalculateTaxRequest) (*core.TaxResult, error) {
	mode, err := core.ParseTaxMode(req.Mode)
	if err != nil {
		return nil, err
	}
	computation := core.TaxComputation(strings.ToUpper(string(req.Computation)))
	if computation == "" {
		computation = core.TaxPercentage
	}
	tax := core.Tax{Rate: req.Rate, Computation: computation}
	result, err := tax.Apply(req.Base, mode)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *appService) CreateDocument(ctx context.Context, req CreateDocumentRequest) (*core.Document, error) {
	kind, err := core.ParseDocumentKind(req.Kind)
	if err != nil {
		return nil, err
	}
	doc, err := s.docs.CreateDocument(ctx, core.CreateDocumentInput{
		Kind:           kind,
		OrganizationID: req.OrganizationID,
		ContactID:      req.ContactID,
		IssueDate:      req.IssueDate,
		DueDate:        req.DueDate,
		Notes:          req.Notes,
		Lines:          req.Lines,
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, doc)
	return doc, nil
}

func (s *appService) GetDocument(ctx context.Context, kind string, organizationID, documentID int) (*core.Document, error) {
	k, err := core.ParseDocumentKind(kind)
	if err != nil {
		return nil, err
	}
	return s.docs.GetDocument(ctx, k, organizationID, documentID)
}

func (s *appService) ListDocuments(ctx context.Context, req ListDocumentsRequest) (*DocumentListResult, error) {
	kind, err := core.ParseDocumentKind(req.Kind)
	if err != nil {
		return nil, err
	}
	var status *core.DocumentStatus
	if req.Status != "" {
		st := core.DocumentStatus(strings.ToUpper(req.Status))
		status = &st
	}
	docs, err := s.docs.ListDocuments(ctx, kind, req.OrganizationID, status, req.ContactID)
	if err != nil {
		return nil, err
	}
	return &DocumentListResult{Kind: kind, Documents: docs}, nil
}

func (s *appService) ReplaceDocumentLines(ctx context.Context, kind string, organizationID, documentID int, lines []core.LineInput) (*core.Document, error) {
	k, err := core.ParseDocumentKind(kind)
	if err != nil {
		return nil, err
	}
	doc, err := s.docs.ReplaceLines(ctx, k, organizationID, documentID, lines)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, doc)
	return doc, nil
}

func (s *appService) TransitionDocument(ctx context.Context, kind string, organizationID, documentID int, action string) (*core.Document, error) {
	k, err := core.ParseDocumentKind(kind)
	if err != nil {
		return nil, err
	}
	a, err := core.ParseDocumentAction(action)
	if err != nil {
		return nil, err
	}
	doc, err := s.docs.Transition(ctx, k, organizationID, documentID, a)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, doc)
	return doc, nil
}

func (s *appService) DeleteDocument(ctx context.Context, kind string, organizationID, documentID int) error {
	k, err := core.ParseDocumentKind(kind)
	if err != nil {
		return err
	}
	doc, err := s.docs.GetDocument(ctx, k, organizationID, documentID)
	if err != nil {
		return err
	}
	if err := s.docs.DeleteDocument(ctx, k, organizationID, documentID); err != nil {
		return err
	}
	s.invalidate(ctx, doc)
	return nil
}

func (s *appService) ConvertOrderToInvoice(ctx context.Context, req ConvertOrderRequest) (*core.Document, error) {
	doc, err := s.docs.ConvertOrderToInvoice(ctx, req.OrganizationID, req.OrderID, req.IssueDate, req.DueDate)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, doc)
	return doc, nil
}

func (s *appService) RecordPayment(ctx context.Context, req core.RecordPaymentInput) (*core.Payment, error) {
	req.Direction = core.PaymentDirection(strings.ToUpper(string(req.Direction)))
	p, err := s.payments.RecordPayment(ctx, req)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, p.OrganizationID, p.ContactID)
	return p, nil
}

func (s *appService) AllocatePayment(ctx context.Context, organizationID, paymentID int, allocations []core.AllocationInput) (*core.Payment, error) {
	p, err := s.payments.AllocatePayment(ctx, paymentID, allocations, organizationID)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, p.OrganizationID, p.ContactID)
	return p, nil
}

func (s *appService) DeletePayment(ctx context.Context, organizationID, paymentID int) error {
	p, err := s.payments.GetPayment(ctx, organizationID, paymentID)
	if err != nil {
		return err
	}
	if err := s.payments.DeletePayment(ctx, organizationID, paymentID); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, p.OrganizationID, p.ContactID)
	return nil
}

func (s *appService) GetPayment(ctx context.Context, organizationID, paymentID int) (*core.Payment, error) {
	return s.payments.GetPayment(ctx, organizationID, paymentID)
}

func (s *appService) ListPayments(ctx context.Context, organizationID int, contactID *int) ([]core.Payment, error) {
	return s.payments.ListPayments(ctx, organizationID, contactID)
}

func (s *appService) GetPartnerBalance(ctx context.Context, organizationID, contactID int) (*core.PartnerBalance, error) {
	if b, ok := s.cache.Get(ctx, organizationID, contactID); ok {
		return b, nil
	}
	b, err := s.balances.GetPartnerBalance(ctx, organizationID, contactID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, b)
	return b, nil
}

func (s *appService) RecomputePartnerBalance(ctx context.Context, organizationID, contactID int) (*core.PartnerBalance, error) {
	b, err := s.balances.RecomputeBalances(ctx, organizationID, contactID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, b)
	return b, nil
}

func (s *appService) VerifyPartnerBalances(ctx context.Context, organizationID int) (*BalanceVerificationResult, error) {
	diffs, err := s.balances.VerifyPartnerBalances(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	return &BalanceVerificationResult{
		OrganizationID: organizationID,
		Discrepancies:  diffs,
		Consistent:     len(diffs) == 0,
	}, nil
}

func (s *appService) ValidateJournalEntry(ctx context.Context, input core.JournalEntryInput) error {
	return s.ledger.ValidateEntry(ctx, input)
}

func (s *appService) PostJournalEntry(ctx context.Context, input core.JournalEntryInput) (*core.JournalEntry, error) {
	return s.ledger.PostJournalEntry(ctx, input)
}

func (s *appService) ReverseJournalEntry(ctx context.Context, organizationID, entryID int, description string) (*core.JournalEntry, error) {
	return s.ledger.ReverseJournalEntry(ctx, organizationID, entryID, description)
}

func (s *appService) GetJournalEntry(ctx context.Context, organizationID, entryID int) (*core.JournalEntry, error) {
	return s.ledger.GetJournalEntry(ctx, organizationID, entryID)
}

func (s *appService) GetTrialBalance(ctx context.Context, organizationID int) (*TrialBalanceResult, error) {
	tb, err := s.ledger.GetTrialBalance(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	return &TrialBalanceResult{
		OrganizationID: organizationID,
		Accounts:       tb.Accounts,
		TotalDebit:     tb.TotalDebit,
		TotalCredit:    tb.TotalCredit,
		Balanced:       tb.Balanced,
	}, nil
}

func (s *appService) GetChartOfAccounts(ctx context.Context, organizationID int) ([]*core.AccountNode, error) {
	return s.accounts.GetChartOfAccounts(ctx, organizationID)
}

func (s *appService) GetAccountStatement(ctx context.Context, req AccountStatementRequest) ([]core.StatementLine, error) {
	from, to, err := parsePeriod(req.From, req.To)
	if err != nil {
		return nil, err
	}
	return s.reports.GetAccountStatement(ctx, req.OrganizationID, strings.TrimSpace(req.AccountCode), from, to)
}

func (s *appService) GetProfitAndLoss(ctx context.Context, req PeriodRequest) (*core.ProfitAndLoss, error) {
	from, to, err := parsePeriod(req.From, req.To)
	if err != nil {
		return nil, err
	}
	return s.reports.GetProfitAndLoss(ctx, req.OrganizationID, from, to)
}

// parsePeriod reads optional YYYY-MM-DD bounds.
func parsePeriod(from, to string) (*time.Time, *time.Time, error) {
	parse := func(field, v string) (*time.Time, error) {
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		t, err := time.Parse(dateLayout, strings.TrimSpace(v))
		if err != nil {
			return nil, &core.RuleError{Reason: fmt.Sprintf("%s must be a YYYY-MM-DD date, got %q", field, v)}
		}
		return &t, nil
	}
	f, err := parse("from", from)
	if err != nil {
		return nil, nil, err
	}
	t, err := parse("to", to)
	if err != nil {
		return nil, nil, err
	}
	if f != nil && t != nil && t.Before(*f) {
		return nil, nil, &core.RuleError{Reason: "period end precedes period start"}
	}
	return f, t, nil
}

// invalidate drops the cached balance of the document's contact. Sales orders carry no
// balance and are skipped.
func (s *appService) invalidate(ctx context.Context, doc *core.Document) {
	if doc == nil || doc.Kind == core.KindSalesOrder {
		return
	}
	s.cache.Invalidate(ctx, doc.OrganizationID, doc.ContactID)
}
