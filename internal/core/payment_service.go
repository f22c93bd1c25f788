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

// PaymentService records payments and splits them across invoices or vendor bills.
type PaymentService interface {
	// RecordPayment inserts a numbered payment and applies its allocations in one transaction.
	RecordPayment(ctx context.Context, input RecordPaymentInput) (*Payment, error)
	// AllocatePayment replaces the payment's whole allocation set.
	AllocatePayment(ctx context.Context, paymentID int, allocations []AllocationInput, organizationID int) (*Payment, error)
	// DeletePayment removes the allocations, settles the affected documents again and then
	// removes the payment.
	DeletePayment(ctx context.Context, organizationID, paymentID int) error
	GetPayment(ctx context.Context, organizationID, paymentID int) (*Payment, error)
	ListPayments(ctx context.Context, organizationID int, contactID *int) ([]Payment, error)
}

type paymentService struct {
	pool     *pgxpool.Pool
	seq      SequenceGenerator
	balances PartnerBalanceService
	log      zerolog.Logger
}

func NewPaymentService(pool *pgxpool.Pool, seq SequenceGenerator, balances PartnerBalanceService) PaymentService {
	return &paymentService{
		pool:     pool,
		seq:      seq,
		balances: balances,
		log:      logger.WithComponent("payments"),
	}
}

const selectPayment = `
	SELECT id, organization_id, contact_id, payment_number, direction, amount, payment_date,
	       method, reference, invoice_id, vendor_bill_id, created_at
	FROM payments`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.OrganizationID, &p.ContactID, &p.PaymentNumber, &p.Direction, &p.Amount,
		&p.PaymentDate, &p.Method, &p.Reference, &p.InvoiceID, &p.VendorBillID, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *paymentService) RecordPayment(ctx context.Context, input RecordPaymentInput) (*Payment, error) {
	kind, ok := input.Direction.settles()
	if !ok {
		return nil, ruleViolation("unknown payment direction %q (want RECEIVED or SENT)", input.Direction)
	}
	amount := roundMoney(input.Amount)
	if !amount.IsPositive() {
		return nil, ruleViolation("payment amount must be positive")
	}
	allocs := append([]AllocationInput(nil), input.Allocations...)
	if err := validateAllocationShape(allocs); err != nil {
		return nil, err
	}
	if err := checkPaymentCeiling(amount, allocs); err != nil {
		return nil, err
	}
	paymentDate := input.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = time.Now()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, storeError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := checkContactTx(ctx, tx, input.OrganizationID, input.ContactID, kind); err != nil {
		return nil, err
	}

	// The direct document is read without a lock; applyAllocationsTx locks every
	// touched document in id order and rechecks its ceiling.
	var invoiceID, billID *int
	if input.DocumentID != nil {
		if len(allocs) > 0 && !allocatesTo(allocs, *input.DocumentID) {
			return nil, ruleViolation("allocations must include document %d the payment is made against", *input.DocumentID)
		}
		doc, err := readDocument(ctx, tx, kind, input.OrganizationID, *input.DocumentID)
		if err != nil {
			return nil, err
		}
		if doc.ContactID != input.ContactID {
			return nil, ruleViolation("%s does not belong to contact %d", describe(doc), input.ContactID)
		}
		if kind == KindInvoice {
			invoiceID = &doc.ID
		} else {
			billID = &doc.ID
		}
		if len(allocs) == 0 {
			// A payment made against one document settles as much of it as it can.
			applied := decimal.Min(amount, doc.AmountDue)
			if applied.IsPositive() {
				allocs = []AllocationInput{{DocumentID: doc.ID, Amount: applied}}
			}
		}
	}

	num, err := s.seq.NextTx(ctx, tx, input.OrganizationID, DocTypePayment)
	if err != nil {
		return nil, err
	}

	p, err := scanPayment(tx.QueryRow(ctx, `
		INSERT INTO payments (organization_id, contact_id, payment_number, direction, amount, payment_date,
		                      method, reference, invoice_id, vendor_bill_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, organization_id, contact_id, payment_number, direction, amount, payment_date,
		          method, reference, invoice_id, vendor_bill_id, created_at
	`, input.OrganizationID, input.ContactID, num.Number, string(input.Direction), amount, paymentDate,
		input.Method, input.Reference, invoiceID, billID))
	if err != nil {
		return nil, storeError("insert payment", err)
	}

	if err := s.applyAllocationsTx(ctx, tx, p, allocs); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeError("commit payment", err)
	}

	s.log.Info().
		Int("organization_id", p.OrganizationID).
		Str("payment_number", p.PaymentNumber).
		Str("direction", string(p.Direction)).
		Str("amount", p.Amount.StringFixed(2)).
		Int("allocations", len(allocs)).
		Msg("payment recorded")

	return s.GetPayment(ctx, input.OrganizationID, p.ID)
}

func (s *paymentService) AllocatePayment(ctx context.Context, paymentID int, allocations []AllocationInput, organizationID int) (*Payment, error) {
	allocs := append([]AllocationInput(nil), allocations...)
	if err := validateAllocationShape(allocs); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, storeError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	p, err := lockPaymentTx(ctx, tx, organizationID, paymentID)
	if err != nil {
		return nil, err
	}
	if err := checkPaymentCeiling(p.Amount, allocs); err != nil {
		return nil, err
	}
	if err := s.applyAllocationsTx(ctx, tx, p, allocs); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeError("commit allocation", err)
	}

	s.log.Info().
		Str("payment_number", p.PaymentNumber).
		Str("allocated", AllocationTotal(allocs).StringFixed(2)).
		Int("documents", len(allocs)).
		Msg("payment reallocated")

	return s.GetPayment(ctx, organizationID, paymentID)
}

func (s *paymentService) DeletePayment(ctx context.Context, organizationID, paymentID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storeError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	p, err := lockPaymentTx(ctx, tx, organizationID, paymentID)
	if err != nil {
		return err
	}
	if err := s.applyAllocationsTx(ctx, tx, p, nil); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, "DELETE FROM payments WHERE id = $1", paymentID); err != nil {
		return storeError("delete payment", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return storeError("commit payment deletion", err)
	}

	s.log.Info().Str("payment_number", p.PaymentNumber).Msg("payment deleted")
	return nil
}

func (s *paymentService) GetPayment(ctx context.Context, organizationID, paymentID int) (*Payment, error) {
	p, err := scanPayment(s.pool.QueryRow(ctx, selectPayment+`
		WHERE id = $1 AND organization_id = $2`, paymentID, organizationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("payment %d not found in organization %d", paymentID, organizationID)
		}
		return nil, storeError("read payment", err)
	}
	p.Allocations, err = loadAllocations(ctx, s.pool, paymentID)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *paymentService) ListPayments(ctx context.Context, organizationID int, contactID *int) ([]Payment, error) {
	rows, err := s.pool.Query(ctx, selectPayment+`
		WHERE organization_id = $1 AND ($2::int IS NULL OR contact_id = $2)
		ORDER BY id`, organizationID, contactID)
	if err != nil {
		return nil, storeError("query payments", err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, storeError("scan payment", err)
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("iterate payments", err)
	}
	return payments, nil
}

// applyAllocationsTx replaces p's allocation set with allocs. The payment row must already
// be locked and the payment ceiling checked. Every document in the old or new set is locked
// in id order, its amount due and status derived again, and the contact's balance recomputed.
func (s *paymentService) applyAllocationsTx(ctx context.Context, tx pgx.Tx, p *Payment, allocs []AllocationInput) error {
	kind, ok := p.Direction.settles()
	if !ok {
		return ruleViolation("payment %s has unknown direction %q", p.PaymentNumber, p.Direction)
	}
	fk := tablesByKind[kind].allocationFK

	old, err := loadAllocations(ctx, tx, p.ID)
	if err != nil {
		return err
	}

	docs := make(map[int]*Document)
	for _, id := range touchedDocuments(old, allocs) {
		doc, err := lockDocumentTx(ctx, tx, kind, p.OrganizationID, id)
		if err != nil {
			return err
		}
		docs[id] = doc
	}

	for _, a := range allocs {
		doc := docs[a.DocumentID]
		if err := checkAllocationTarget(p, doc); err != nil {
			return err
		}
		elsewhere, err := allocatedToDocument(ctx, tx, fk, doc.ID, p.ID)
		if err != nil {
			return err
		}
		if err := checkDocumentCeiling(doc, elsewhere, a.Amount); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, "DELETE FROM payment_allocations WHERE payment_id = $1", p.ID); err != nil {
		return storeError("delete payment allocations", err)
	}
	for _, a := range allocs {
		_, err := tx.Exec(ctx, fmt.Sprintf(`
			INSERT INTO payment_allocations (payment_id, %s, allocated_amount) VALUES ($1, $2, $3)`, fk),
			p.ID, a.DocumentID, a.Amount)
		if err != nil {
			return storeError("insert payment allocation", err)
		}
	}

	for _, doc := range docs {
		if err := settleDocumentTx(ctx, tx, doc); err != nil {
			return err
		}
	}

	_, err = s.balances.RecomputeBalancesTx(ctx, tx, p.OrganizationID, p.ContactID)
	return err
}

// settleDocumentTx derives amount_due and status of a locked document from all its allocations.
func settleDocumentTx(ctx context.Context, tx pgx.Tx, doc *Document) error {
	t := tablesByKind[doc.Kind]
	allocated, err := allocatedToDocument(ctx, tx, t.allocationFK, doc.ID, 0)
	if err != nil {
		return err
	}
	if allocated.GreaterThan(doc.TotalAmount) {
		return ruleViolation("over-allocation of document: %s would be allocated %s of %s",
			describe(doc), allocated.StringFixed(2), doc.TotalAmount.StringFixed(2))
	}

	due := AmountDue(doc.TotalAmount, allocated)
	status := SettlementStatus(doc.Status, due)
	_, err = tx.Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET amount_due = $1, status = $2, updated_at = NOW() WHERE id = $3`, t.header),
		due, string(status), doc.ID)
	if err != nil {
		return storeError(fmt.Sprintf("settle %s", kindLabel(doc.Kind)), err)
	}
	doc.AmountDue, doc.Status = due, status
	return nil
}

// allocatedToDocument sums allocations against a document, leaving out those of
// excludePaymentID (0 excludes nothing).
func allocatedToDocument(ctx context.Context, q pgxQuerier, fk string, documentID, excludePaymentID int) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := q.QueryRow(ctx, fmt.Sprintf(`
		SELECT COALESCE(SUM(allocated_amount), 0) FROM payment_allocations
		WHERE %s = $1 AND payment_id <> $2`, fk), documentID, excludePaymentID).Scan(&total)
	if err != nil {
		return decimal.Zero, storeError("sum document allocations", err)
	}
	return total, nil
}

func lockPaymentTx(ctx context.Context, tx pgx.Tx, organizationID, paymentID int) (*Payment, error) {
	p, err := scanPayment(tx.QueryRow(ctx, selectPayment+`
		WHERE id = $1 AND organization_id = $2
		FOR UPDATE`, paymentID, organizationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("payment %d not found in organization %d", paymentID, organizationID)
		}
		return nil, storeError("lock payment", err)
	}
	return p, nil
}

func loadAllocations(ctx context.Context, q pgxQuerier, paymentID int) ([]PaymentAllocation, error) {
	rows, err := q.Query(ctx, `
		SELECT id, payment_id, invoice_id, vendor_bill_id, allocated_amount
		FROM payment_allocations
		WHERE payment_id = $1
		ORDER BY id
	`, paymentID)
	if err != nil {
		return nil, storeError("query payment allocations", err)
	}
	defer rows.Close()

	var out []PaymentAllocation
	for rows.Next() {
		var a PaymentAllocation
		if err := rows.Scan(&a.ID, &a.PaymentID, &a.InvoiceID, &a.VendorBillID, &a.AllocatedAmount); err != nil {
			return nil, storeError("scan payment allocation", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("iterate payment allocations", err)
	}
	return out, nil
}
