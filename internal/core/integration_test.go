package core_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accounting-engine/internal/core"
	"accounting-engine/internal/db"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database; every test truncates all engine tables.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err, "connect to test database")

	_, err = db.Migrate(ctx, pool)
	require.NoError(t, err, "migrate test database")

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE journal_lines, journal_entries, payment_allocations, payments, partner_balances,
		               sales_order_lines, invoice_lines, vendor_bill_lines, sales_orders, invoices, vendor_bills,
		               products, taxes, accounts, contacts, document_sequences, organizations
		RESTART IDENTITY CASCADE
	`)
	require.NoError(t, err, "clean test database")

	t.Cleanup(pool.Close)
	return pool
}

// fixture is an onboarded organization with one customer/vendor contact and an 18% tax.
type fixture struct {
	pool     *pgxpool.Pool
	org      *core.Organization
	contact  *core.Contact
	gst      *core.Tax
	orgs     core.OrganizationService
	seq      core.SequenceGenerator
	balances core.PartnerBalanceService
	docs     core.DocumentService
	payments core.PaymentService
	ledger   *core.Ledger
	accounts core.AccountService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	pool := setupTestDB(t)
	ctx := context.Background()

	f := &fixture{pool: pool}
	f.orgs = core.NewOrganizationService(pool)
	f.seq = core.NewSequenceGenerator(pool)
	f.balances = core.NewPartnerBalanceService(pool)
	f.docs = core.NewDocumentService(pool, f.seq, f.balances)
	f.payments = core.NewPaymentService(pool, f.seq, f.balances)
	f.ledger = core.NewLedger(pool, f.seq)
	f.accounts = core.NewAccountService(pool)

	var err error
	f.org, err = f.orgs.OnboardOrganization(ctx, "Test Company")
	require.NoError(t, err)
	f.contact, err = f.orgs.CreateContact(ctx, f.org.ID, core.ContactInput{Name: "Acme Traders", Kind: core.ContactBoth})
	require.NoError(t, err)
	f.gst, err = f.orgs.CreateTax(ctx, f.org.ID, core.TaxInput{Name: "GST 18%", Rate: dec("18"), Computation: core.TaxPercentage})
	require.NoError(t, err)
	return f
}

// awaitingDocument creates a document of a single untaxed line and sends it.
func (f *fixture) awaitingDocument(t *testing.T, kind core.DocumentKind, amount string) *core.Document {
	t.Helper()
	ctx := context.Background()
	doc, err := f.docs.CreateDocument(ctx, core.CreateDocumentInput{
		Kind:           kind,
		OrganizationID: f.org.ID,
		ContactID:      f.contact.ID,
		Lines:          []core.LineInput{{Description: "Consulting", Quantity: dec("1"), UnitPrice: dec(amount)}},
	})
	require.NoError(t, err)
	doc, err = f.docs.Transition(ctx, kind, f.org.ID, doc.ID, core.ActionSend)
	require.NoError(t, err)
	require.Equal(t, core.StatusAwaitingPayment, doc.Status)
	return doc
}

func (f *fixture) accountID(t *testing.T, code string) int {
	t.Helper()
	accounts, err := f.accounts.ListAccounts(context.Background(), f.org.ID)
	require.NoError(t, err)
	for _, a := range accounts {
		if a.Code == code {
			return a.ID
		}
	}
	t.Fatalf("account %s not found", code)
	return 0
}

func TestSequenceGenerator_ConcurrentIssuance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const callers = 20
	var wg sync.WaitGroup
	errCh := make(chan error, callers)
	numCh := make(chan *core.DocumentNumber, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := f.seq.IssueDocumentNumber(ctx, f.org.ID, core.DocTypeInvoice)
			if err != nil {
				errCh <- err
				return
			}
			numCh <- num
		}()
	}
	wg.Wait()
	close(errCh)
	close(numCh)

	for err := range errCh {
		t.Errorf("concurrent issue error: %v", err)
	}

	seen := make(map[int64]string)
	for num := range numCh {
		if prev, dup := seen[num.Sequence]; dup {
			t.Fatalf("sequence %d issued twice (%s and %s)", num.Sequence, prev, num.Number)
		}
		seen[num.Sequence] = num.Number
	}
	require.Len(t, seen, callers)
	for i := int64(1); i <= callers; i++ {
		assert.Contains(t, seen, i, "gap at %d", i)
	}

	seq, err := f.seq.GetSequence(ctx, f.org.ID, core.DocTypeInvoice)
	require.NoError(t, err)
	assert.Equal(t, int64(callers+1), seq.NextVal)
}

func TestSequenceGenerator_UnknownSequence(t *testing.T) {
	f := newFixture(t)
	_, err := f.seq.IssueDocumentNumber(context.Background(), f.org.ID, "QUOTE")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDocument_SalesOrderToInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.docs.CreateDocument(ctx, core.CreateDocumentInput{
		Kind:           core.KindSalesOrder,
		OrganizationID: f.org.ID,
		ContactID:      f.contact.ID,
		Lines: []core.LineInput{
			{Description: "Widget", Quantity: dec("2"), UnitPrice: dec("50"), DiscountPercent: dec("10"), TaxID: &f.gst.ID},
			{Description: "Delivery", Quantity: dec("1"), UnitPrice: dec("10")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, core.StatusDraft, order.Status)
	assert.Equal(t, "116.20", order.TotalAmount.StringFixed(2)) // 90 + 16.20 tax + 10
	assert.True(t, order.AmountDue.IsZero(), "sales orders carry no amount due")
	require.Len(t, order.Lines, 2)

	_, err = f.docs.ConvertOrderToInvoice(ctx, f.org.ID, order.ID, time.Time{}, nil)
	assert.ErrorIs(t, err, core.ErrBusinessRule, "a draft order cannot be invoiced")

	order, err = f.docs.Transition(ctx, core.KindSalesOrder, f.org.ID, order.ID, core.ActionConfirm)
	require.NoError(t, err)
	assert.Equal(t, core.StatusConfirmed, order.Status)

	invoice, err := f.docs.ConvertOrderToInvoice(ctx, f.org.ID, order.ID, time.Time{}, nil)
	require.NoError(t, err)
	assert.Equal(t, core.StatusDraft, invoice.Status)
	assert.True(t, invoice.TotalAmount.Equal(order.TotalAmount))
	assert.True(t, invoice.AmountDue.Equal(order.TotalAmount))
	require.NotNil(t, invoice.SalesOrderID)
	assert.Equal(t, order.ID, *invoice.SalesOrderID)

	order, err = f.docs.GetDocument(ctx, core.KindSalesOrder, f.org.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusInvoiced, order.Status)

	_, err = f.docs.Transition(ctx, core.KindSalesOrder, f.org.ID, order.ID, core.ActionCancel)
	assert.ErrorIs(t, err, core.ErrBusinessRule)

	balance, err := f.balances.GetPartnerBalance(ctx, f.org.ID, f.contact.ID)
	require.NoError(t, err)
	assert.Equal(t, "116.20", balance.ReceivableAmount.StringFixed(2))
}

func TestDocument_EditOnlyInDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.docs.CreateDocument(ctx, core.CreateDocumentInput{
		Kind:           core.KindVendorBill,
		OrganizationID: f.org.ID,
		ContactID:      f.contact.ID,
		Lines:          []core.LineInput{{Description: "Paper", Quantity: dec("10"), UnitPrice: dec("3")}},
	})
	require.NoError(t, err)

	doc, err = f.docs.ReplaceLines(ctx, core.KindVendorBill, f.org.ID, doc.ID, []core.LineInput{
		{Description: "Paper", Quantity: dec("20"), UnitPrice: dec("3"), TaxID: &f.gst.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, "70.80", doc.TotalAmount.StringFixed(2))
	assert.Equal(t, "70.80", doc.AmountDue.StringFixed(2))

	balance, err := f.balances.GetPartnerBalance(ctx, f.org.ID, f.contact.ID)
	require.NoError(t, err)
	assert.Equal(t, "70.80", balance.PayableAmount.StringFixed(2))
	assert.Equal(t, "-70.80", balance.OutstandingAmount.StringFixed(2))

	_, err = f.docs.Transition(ctx, core.KindVendorBill, f.org.ID, doc.ID, core.ActionConfirm)
	require.NoError(t, err)

	_, err = f.docs.ReplaceLines(ctx, core.KindVendorBill, f.org.ID, doc.ID, []core.LineInput{
		{Description: "Paper", Quantity: dec("1"), UnitPrice: dec("3")},
	})
	assert.ErrorIs(t, err, core.ErrBusinessRule)
	assert.ErrorIs(t, f.docs.DeleteDocument(ctx, core.KindVendorBill, f.org.ID, doc.ID), core.ErrBusinessRule)
}

func TestDocument_TotalsSurviveConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.docs.CreateDocument(ctx, core.CreateDocumentInput{
		Kind:           core.KindInvoice,
		OrganizationID: f.org.ID,
		ContactID:      f.contact.ID,
		Lines:          []core.LineInput{{Description: "Widgets", Quantity: dec("3"), UnitPrice: dec("10.005"), TaxID: &f.gst.ID}},
	})
	require.NoError(t, err)
	assert.Equal(t, "35.44", doc.TotalAmount.StringFixed(2))
	require.Len(t, doc.Lines, 1)
	assert.Equal(t, "10.01", doc.Lines[0].UnitPrice.StringFixed(2))

	sent, err := f.docs.Transition(ctx, core.KindInvoice, f.org.ID, doc.ID, core.ActionSend)
	require.NoError(t, err)
	assert.True(t, doc.Subtotal.Equal(sent.Subtotal), "subtotal %s vs %s", doc.Subtotal, sent.Subtotal)
	assert.True(t, doc.TotalTax.Equal(sent.TotalTax), "tax %s vs %s", doc.TotalTax, sent.TotalTax)
	assert.True(t, doc.TotalAmount.Equal(sent.TotalAmount), "total %s vs %s", doc.TotalAmount, sent.TotalAmount)
	assert.Equal(t, "35.44", sent.AmountDue.StringFixed(2))
}

func TestDocument_OtherOrganizationIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.awaitingDocument(t, core.KindInvoice, "100")

	other, err := f.orgs.OnboardOrganization(ctx, "Other Company")
	require.NoError(t, err)

	_, err = f.docs.GetDocument(ctx, core.KindInvoice, other.ID, doc.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = f.docs.Transition(ctx, core.KindInvoice, other.ID, doc.ID, core.ActionVoid)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestPayment_AllocationLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	invoice := f.awaitingDocument(t, core.KindInvoice, "1000")

	p, err := f.payments.RecordPayment(ctx, core.RecordPaymentInput{
		OrganizationID: f.org.ID,
		ContactID:      f.contact.ID,
		Direction:      core.PaymentReceived,
		Amount:         dec("1000"),
		Method:         "bank",
		Allocations:    []core.AllocationInput{{DocumentID: invoice.ID, Amount: dec("600")}},
	})
	require.NoError(t, err)
	assert.Equal(t, "400.00", p.Unallocated().StringFixed(2))

	invoice, err = f.docs.GetDocument(ctx, core.KindInvoice, f.org.ID, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusAwaitingPayment, invoice.Status)
	assert.Equal(t, "400.00", invoice.AmountDue.StringFixed(2))

	balance, err := f.balances.GetPartnerBalance(ctx, f.org.ID, f.contact.ID)
	require.NoError(t, err)
	assert.Equal(t, "400.00", balance.ReceivableAmount.StringFixed(2))

	// Reallocation replaces the set, so the payment's own 600 does not count against the invoice.
	_, err = f.payments.AllocatePayment(ctx, p.ID, []core.AllocationInput{{DocumentID: invoice.ID, Amount: dec("1000")}}, f.org.ID)
	require.NoError(t, err)

	invoice, err = f.docs.GetDocument(ctx, core.KindInvoice, f.org.ID, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPaid, invoice.Status)
	assert.True(t, invoice.AmountDue.IsZero())

	_, err = f.docs.Transition(ctx, core.KindInvoice, f.org.ID, invoice.ID, core.ActionVoid)
	assert.ErrorIs(t, err, core.ErrBusinessRule, "a paid invoice cannot be voided")

	require.NoError(t, f.payments.DeletePayment(ctx, f.org.ID, p.ID))

	invoice, err = f.docs.GetDocument(ctx, core.KindInvoice, f.org.ID, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusAwaitingPayment, invoice.Status)
	assert.Equal(t, "1000.00", invoice.AmountDue.StringFixed(2))

	balance, err = f.balances.GetPartnerBalance(ctx, f.org.ID, f.contact.ID)
	require.NoError(t, err)
	assert.Equal(t, "1000.00", balance.OutstandingAmount.StringFixed(2))
}

func TestPayment_CeilingRejectedWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.awaitingDocument(t, core.KindInvoice, "600")
	b := f.awaitingDocument(t, core.KindInvoice, "500")

	_, err := f.payments.RecordPayment(ctx, core.RecordPaymentInput{
		OrganizationID: f.org.ID,
		ContactID:      f.contact.ID,
		Direction:      core.PaymentReceived,
		Amount:         dec("1000"),
		Allocations: []core.AllocationInput{
			{DocumentID: a.ID, Amount: dec("600")},
			{DocumentID: b.ID, Amount: dec("500")},
		},
	})
	require.Error(t, err)
	assert.Equal(t, "Total allocated amount cannot exceed payment amount", core.Reason(err))

	payments, err := f.payments.ListPayments(ctx, f.org.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, payments)

	seq, err := f.seq.GetSequence(ctx, f.org.ID, core.DocTypePayment)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq.NextVal, "a rejected payment consumes no number")
}

func TestPayment_DocumentOverAllocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	invoice := f.awaitingDocument(t, core.KindInvoice, "500")

	record := func(amount string) error {
		_, err := f.payments.RecordPayment(ctx, core.RecordPaymentInput{
			OrganizationID: f.org.ID,
			ContactID:      f.contact.ID,
			Direction:      core.PaymentReceived,
			Amount:         dec(amount),
			Allocations:    []core.AllocationInput{{DocumentID: invoice.ID, Amount: dec(amount)}},
		})
		return err
	}

	require.NoError(t, record("300"))
	err := record("300")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrBusinessRule)
	assert.Contains(t, core.Reason(err), "over-allocation of document")

	require.NoError(t, record("200"))
	invoice, err = f.docs.GetDocument(ctx, core.KindInvoice, f.org.ID, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPaid, invoice.Status)
}

func TestPayment_DirectDocumentAutoAllocates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bill := f.awaitingDocument(t, core.KindVendorBill, "250")

	p, err := f.payments.RecordPayment(ctx, core.RecordPaymentInput{
		OrganizationID: f.org.ID,
		ContactID:      f.contact.ID,
		Direction:      core.PaymentSent,
		Amount:         dec("300"),
		DocumentID:     &bill.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, p.VendorBillID)
	require.Len(t, p.Allocations, 1)
	assert.Equal(t, "250.00", p.Allocations[0].AllocatedAmount.StringFixed(2))
	assert.Equal(t, "50.00", p.Unallocated().StringFixed(2))

	bill, err = f.docs.GetDocument(ctx, core.KindVendorBill, f.org.ID, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPaid, bill.Status)
}

func TestPayment_DirectDocumentMustBeAllocated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.awaitingDocument(t, core.KindInvoice, "100")
	b := f.awaitingDocument(t, core.KindInvoice, "100")

	_, err := f.payments.RecordPayment(ctx, core.RecordPaymentInput{
		OrganizationID: f.org.ID,
		ContactID:      f.contact.ID,
		Direction:      core.PaymentReceived,
		Amount:         dec("100"),
		DocumentID:     &a.ID,
		Allocations:    []core.AllocationInput{{DocumentID: b.ID, Amount: dec("100")}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrBusinessRule)

	payments, err := f.payments.ListPayments(ctx, f.org.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, payments)

	p, err := f.payments.RecordPayment(ctx, core.RecordPaymentInput{
		OrganizationID: f.org.ID,
		ContactID:      f.contact.ID,
		Direction:      core.PaymentReceived,
		Amount:         dec("150"),
		DocumentID:     &a.ID,
		Allocations: []core.AllocationInput{
			{DocumentID: b.ID, Amount: dec("50")},
			{DocumentID: a.ID, Amount: dec("100")},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, p.InvoiceID)
	assert.Equal(t, a.ID, *p.InvoiceID)
	assert.Len(t, p.Allocations, 2)
}

func TestPayment_CrossedDirectDocumentsDoNotDeadlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.awaitingDocument(t, core.KindInvoice, "1000")
	b := f.awaitingDocument(t, core.KindInvoice, "1000")

	const pairs = 10
	var wg sync.WaitGroup
	errCh := make(chan error, pairs*2)
	record := func(direct, other int) {
		defer wg.Done()
		_, err := f.payments.RecordPayment(ctx, core.RecordPaymentInput{
			OrganizationID: f.org.ID,
			ContactID:      f.contact.ID,
			Direction:      core.PaymentReceived,
			Amount:         dec("40"),
			DocumentID:     &direct,
			Allocations: []core.AllocationInput{
				{DocumentID: direct, Amount: dec("20")},
				{DocumentID: other, Amount: dec("20")},
			},
		})
		if err != nil {
			errCh <- err
		}
	}
	for i := 0; i < pairs; i++ {
		wg.Add(2)
		go record(a.ID, b.ID)
		go record(b.ID, a.ID)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("record payment: %v", err)
	}

	for _, id := range []int{a.ID, b.ID} {
		doc, err := f.docs.GetDocument(ctx, core.KindInvoice, f.org.ID, id)
		require.NoError(t, err)
		assert.Equal(t, "600.00", doc.AmountDue.StringFixed(2))
	}
}

func TestPayment_WrongDirectionIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bill := f.awaitingDocument(t, core.KindVendorBill, "100")

	// A received payment settles invoices only; bill ids are not looked up.
	_, err := f.payments.RecordPayment(ctx, core.RecordPaymentInput{
		OrganizationID: f.org.ID,
		ContactID:      f.contact.ID,
		Direction:      core.PaymentReceived,
		Amount:         dec("100"),
		Allocations:    []core.AllocationInput{{DocumentID: bill.ID, Amount: dec("100")}},
	})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestPartnerBalance_VerifyAndRecompute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.awaitingDocument(t, core.KindInvoice, "300")
	f.awaitingDocument(t, core.KindVendorBill, "120")

	diffs, err := f.balances.VerifyPartnerBalances(ctx, f.org.ID)
	require.NoError(t, err)
	assert.Empty(t, diffs)

	_, err = f.pool.Exec(ctx, "UPDATE partner_balances SET outstanding_amount = 0 WHERE contact_id = $1", f.contact.ID)
	require.NoError(t, err)

	diffs, err = f.balances.VerifyPartnerBalances(ctx, f.org.ID)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t, f.contact.ID, diffs[0].ContactID)
	assert.Equal(t, "180.00", diffs[0].Actual.StringFixed(2))

	balance, err := f.balances.RecomputeBalances(ctx, f.org.ID, f.contact.ID)
	require.NoError(t, err)
	assert.Equal(t, "180.00", balance.OutstandingAmount.StringFixed(2))

	diffs, err = f.balances.VerifyPartnerBalances(ctx, f.org.ID)
	require.NoError(t, err)
	assert.Empty(t, diffs)

	_, err = f.balances.RecomputeBalances(ctx, f.org.ID, 9999)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestLedger_PostAndReverse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	receivable := f.accountID(t, "1100")
	revenue := f.accountID(t, "4000")
	tax := f.accountID(t, "2200")

	entry, err := f.ledger.PostJournalEntry(ctx, core.JournalEntryInput{
		OrganizationID: f.org.ID,
		Description:    "Manual sale",
		Lines: []core.JournalLine{
			debit(receivable, "118"),
			credit(revenue, "100"),
			credit(tax, "18"),
		},
	})
	require.NoError(t, err)
	require.Len(t, entry.Lines, 3)

	reversal, err := f.ledger.ReverseJournalEntry(ctx, f.org.ID, entry.ID, "")
	require.NoError(t, err)
	require.NotNil(t, reversal.ReversedEntryID)
	assert.Equal(t, entry.ID, *reversal.ReversedEntryID)
	assert.Equal(t, entry.EntryNumber, reversal.Reference)
	require.Len(t, reversal.Lines, 3)
	assert.Equal(t, "118.00", reversal.Lines[0].Credit.StringFixed(2))

	_, err = f.ledger.ReverseJournalEntry(ctx, f.org.ID, entry.ID, "")
	assert.ErrorIs(t, err, core.ErrBusinessRule, "an entry is reversed once")
	_, err = f.ledger.ReverseJournalEntry(ctx, f.org.ID, reversal.ID, "")
	assert.ErrorIs(t, err, core.ErrBusinessRule, "a reversal is not reversed")

	tb, err := f.ledger.GetTrialBalance(ctx, f.org.ID)
	require.NoError(t, err)
	assert.Equal(t, "236.00", tb.TotalDebit.StringFixed(2))
	assert.True(t, tb.TotalDebit.Equal(tb.TotalCredit))
	assert.True(t, tb.Balanced)
	assert.Equal(t, 2, tb.EntryCount)
	for _, b := range tb.Accounts {
		assert.True(t, b.Balance.IsZero(), "account %s nets to zero after reversal", b.Code)
	}
}

func TestLedger_TrialBalanceAcceptsRoundingCent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bank := f.accountID(t, "1200")
	equity := f.accountID(t, "3000")

	_, err := f.ledger.PostJournalEntry(ctx, core.JournalEntryInput{
		OrganizationID: f.org.ID,
		Description:    "Opening balance",
		Lines:          []core.JournalLine{debit(bank, "100.00"), credit(equity, "99.99")},
	})
	require.NoError(t, err)

	tb, err := f.ledger.GetTrialBalance(ctx, f.org.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", tb.TotalDebit.StringFixed(2))
	assert.Equal(t, "99.99", tb.TotalCredit.StringFixed(2))
	assert.Equal(t, 1, tb.EntryCount)
	assert.True(t, tb.Balanced)
}

func TestLedger_RejectsWithoutConsumingNumbers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bank := f.accountID(t, "1200")
	equity := f.accountID(t, "3000")

	unbalanced := core.JournalEntryInput{
		OrganizationID: f.org.ID,
		Lines:          []core.JournalLine{debit(bank, "100"), credit(equity, "90")},
	}
	_, err := f.ledger.PostJournalEntry(ctx, unbalanced)
	assert.ErrorIs(t, err, core.ErrBusinessRule)

	foreign := core.JournalEntryInput{
		OrganizationID: f.org.ID,
		Lines:          []core.JournalLine{debit(bank, "100"), credit(99999, "100")},
	}
	_, err = f.ledger.PostJournalEntry(ctx, foreign)
	assert.ErrorIs(t, err, core.ErrNotFound)

	valid := core.JournalEntryInput{
		OrganizationID: f.org.ID,
		Lines:          []core.JournalLine{debit(bank, "100"), credit(equity, "100")},
	}
	require.NoError(t, f.ledger.ValidateEntry(ctx, valid))

	seq, err := f.seq.GetSequence(ctx, f.org.ID, core.DocTypeJournalEntry)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq.NextVal)

	var entries int
	require.NoError(t, f.pool.QueryRow(ctx, "SELECT count(*) FROM journal_entries").Scan(&entries))
	assert.Zero(t, entries)
}

func TestOrganization_OnboardingCreatesChart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tree, err := f.accounts.GetChartOfAccounts(ctx, f.org.ID)
	require.NoError(t, err)
	require.Len(t, tree, 5)
	assert.Equal(t, "1000", tree[0].Code)
	require.Len(t, tree[0].Children, 2)
	assert.Equal(t, "1100", tree[0].Children[0].Code)

	_, err = f.orgs.CreateAccount(ctx, f.org.ID, core.AccountInput{Code: "1300", Name: "Cash", Type: core.Asset, ParentCode: "1999"})
	assert.ErrorIs(t, err, core.ErrNotFound)

	accounts, err := f.accounts.ListAccounts(ctx, f.org.ID)
	require.NoError(t, err)
	assert.Len(t, accounts, 9, "a rejected account leaves nothing behind")

	for _, docType := range []string{core.DocTypeSalesOrder, core.DocTypeInvoice, core.DocTypeVendorBill, core.DocTypePayment, core.DocTypeJournalEntry} {
		_, err := f.seq.GetSequence(ctx, f.org.ID, docType)
		assert.NoError(t, err, docType)
	}
}
