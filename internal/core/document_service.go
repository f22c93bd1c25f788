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

// DocumentService creates sales orders, invoices and vendor bills and moves them
// through their transition tables. Every method runs in a single transaction.
type DocumentService interface {
	// CreateDocument creates a DRAFT document with its lines, numbered from the kind's sequence.
	CreateDocument(ctx context.Context, input CreateDocumentInput) (*Document, error)
	// ReplaceLines swaps the lines of a DRAFT document and recomputes its totals.
	ReplaceLines(ctx context.Context, kind DocumentKind, organizationID, documentID int, lines []LineInput) (*Document, error)
	// Transition applies confirm, send, cancel or void.
	Transition(ctx context.Context, kind DocumentKind, organizationID, documentID int, action DocumentAction) (*Document, error)
	// DeleteDocument removes a DRAFT document and its lines.
	DeleteDocument(ctx context.Context, kind DocumentKind, organizationID, documentID int) error
	// ConvertOrderToInvoice creates a DRAFT invoice from a CONFIRMED sales order and
	// moves the order to INVOICED.
	ConvertOrderToInvoice(ctx context.Context, organizationID, orderID int, issueDate time.Time, dueDate *time.Time) (*Document, error)

	GetDocument(ctx context.Context, kind DocumentKind, organizationID, documentID int) (*Document, error)
	// ListDocuments returns documents of a kind, optionally filtered by status and contact.
	ListDocuments(ctx context.Context, kind DocumentKind, organizationID int, status *DocumentStatus, contactID *int) ([]Document, error)
}

type documentService struct {
	pool     *pgxpool.Pool
	seq      SequenceGenerator
	balances PartnerBalanceService
	log      zerolog.Logger
}

func NewDocumentService(pool *pgxpool.Pool, seq SequenceGenerator, balances PartnerBalanceService) DocumentService {
	return &documentService{
		pool:     pool,
		seq:      seq,
		balances: balances,
		log:      logger.WithComponent("documents"),
	}
}

func (s *documentService) CreateDocument(ctx context.Context, input CreateDocumentInput) (*Document, error) {
	t, err := tablesFor(input.Kind)
	if err != nil {
		return nil, err
	}
	if len(input.Lines) == 0 {
		return nil, ruleViolation("%s must have at least one line", kindLabel(input.Kind))
	}
	for i, in := range input.Lines {
		if err := validateLineInput(i, in); err != nil {
			return nil, err
		}
	}
	issueDate := input.IssueDate
	if issueDate.IsZero() {
		issueDate = time.Now()
	}
	if input.DueDate != nil && input.DueDate.Before(truncateDay(issueDate)) {
		return nil, ruleViolation("due date cannot be before the issue date")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, storeError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := checkContactTx(ctx, tx, input.OrganizationID, input.ContactID, input.Kind); err != nil {
		return nil, err
	}

	lines, err := resolveLinesTx(ctx, tx, input.OrganizationID, input.Lines)
	if err != nil {
		return nil, err
	}
	totals := RecomputeTotals(lines)

	num, err := s.seq.NextTx(ctx, tx, input.OrganizationID, input.Kind.sequenceDocType())
	if err != nil {
		return nil, err
	}

	amountDue := decimal.Zero
	if input.Kind.settleable() {
		amountDue = totals.TotalAmount
	}

	var docID int
	err = tx.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %s (organization_id, contact_id, document_number, status, issue_date, due_date, notes,
		                subtotal, total_tax, total_amount, amount_due)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`, t.header),
		input.OrganizationID, input.ContactID, num.Number, string(StatusDraft), issueDate, input.DueDate, input.Notes,
		totals.Subtotal, totals.TotalTax, totals.TotalAmount, amountDue,
	).Scan(&docID)
	if err != nil {
		return nil, storeError(fmt.Sprintf("insert %s", kindLabel(input.Kind)), err)
	}

	if err := insertLinesTx(ctx, tx, t, docID, lines); err != nil {
		return nil, err
	}

	if input.Kind.settleable() {
		if _, err := s.balances.RecomputeBalancesTx(ctx, tx, input.OrganizationID, input.ContactID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeError(fmt.Sprintf("commit %s creation", kindLabel(input.Kind)), err)
	}

	s.log.Info().
		Str("kind", string(input.Kind)).
		Int("organization_id", input.OrganizationID).
		Str("document_number", num.Number).
		Str("total_amount", totals.TotalAmount.StringFixed(2)).
		Msg("document created")

	return s.GetDocument(ctx, input.Kind, input.OrganizationID, docID)
}

func (s *documentService) ReplaceLines(ctx context.Context, kind DocumentKind, organizationID, documentID int, inputs []LineInput) (*Document, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, ruleViolation("%s must have at least one line", kindLabel(kind))
	}
	for i, in := range inputs {
		if err := validateLineInput(i, in); err != nil {
			return nil, err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, storeError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	doc, err := lockDocumentTx(ctx, tx, kind, organizationID, documentID)
	if err != nil {
		return nil, err
	}
	if err := ensureEditable(doc, "edited"); err != nil {
		return nil, err
	}

	lines, err := resolveLinesTx(ctx, tx, organizationID, inputs)
	if err != nil {
		return nil, err
	}
	RecomputeTotals(lines)

	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE document_id = $1", t.lines), documentID); err != nil {
		return nil, storeError("delete document lines", err)
	}
	if err := insertLinesTx(ctx, tx, t, documentID, lines); err != nil {
		return nil, err
	}
	if err := s.persistTotalsTx(ctx, tx, doc, lines); err != nil {
		return nil, err
	}
	if kind.settleable() {
		if _, err := s.balances.RecomputeBalancesTx(ctx, tx, organizationID, doc.ContactID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeError("commit line replacement", err)
	}

	return s.GetDocument(ctx, kind, organizationID, documentID)
}

func (s *documentService) Transition(ctx context.Context, kind DocumentKind, organizationID, documentID int, action DocumentAction) (*Document, error) {
	if action == ActionInvoice {
		return nil, ruleViolation("sales orders are invoiced by converting them to an invoice")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, storeError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	doc, err := lockDocumentTx(ctx, tx, kind, organizationID, documentID)
	if err != nil {
		return nil, err
	}

	next, err := NextStatus(kind, doc.Status, action)
	if err != nil {
		return nil, err
	}

	switch action {
	case ActionConfirm, ActionSend:
		// Totals are frozen from the current lines at the moment the document leaves DRAFT.
		lines, err := loadLines(ctx, tx, kind, documentID)
		if err != nil {
			return nil, err
		}
		if len(lines) == 0 {
			return nil, ruleViolation("%s has no lines", describe(doc))
		}
		if err := s.persistTotalsTx(ctx, tx, doc, lines); err != nil {
			return nil, err
		}
	case ActionCancel, ActionVoid:
		if err := ensureNoSettlementTx(ctx, tx, doc, action); err != nil {
			return nil, err
		}
	}

	_, err = tx.Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET status = $1, updated_at = NOW() WHERE id = $2`, tablesByKind[kind].header),
		string(next), documentID)
	if err != nil {
		return nil, storeError(fmt.Sprintf("update %s status", kindLabel(kind)), err)
	}

	if kind.settleable() {
		if _, err := s.balances.RecomputeBalancesTx(ctx, tx, organizationID, doc.ContactID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeError("commit transition", err)
	}

	s.log.Info().
		Str("kind", string(kind)).
		Str("document_number", doc.DocumentNumber).
		Str("from", string(doc.Status)).
		Str("to", string(next)).
		Msg("document transitioned")

	return s.GetDocument(ctx, kind, organizationID, documentID)
}

func (s *documentService) DeleteDocument(ctx context.Context, kind DocumentKind, organizationID, documentID int) error {
	t, err := tablesFor(kind)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storeError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	doc, err := lockDocumentTx(ctx, tx, kind, organizationID, documentID)
	if err != nil {
		return err
	}
	if err := ensureEditable(doc, "deleted"); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE document_id = $1", t.lines), documentID); err != nil {
		return storeError("delete document lines", err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", t.header), documentID); err != nil {
		return storeError(fmt.Sprintf("delete %s", kindLabel(kind)), err)
	}

	if kind.settleable() {
		if _, err := s.balances.RecomputeBalancesTx(ctx, tx, organizationID, doc.ContactID); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return storeError("commit deletion", err)
	}

	s.log.Info().Str("kind", string(kind)).Str("document_number", doc.DocumentNumber).Msg("draft document deleted")
	return nil
}

func (s *documentService) ConvertOrderToInvoice(ctx context.Context, organizationID, orderID int, issueDate time.Time, dueDate *time.Time) (*Document, error) {
	if issueDate.IsZero() {
		issueDate = time.Now()
	}
	if dueDate != nil && dueDate.Before(truncateDay(issueDate)) {
		return nil, ruleViolation("due date cannot be before the issue date")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, storeError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	order, err := lockDocumentTx(ctx, tx, KindSalesOrder, organizationID, orderID)
	if err != nil {
		return nil, err
	}
	next, err := NextStatus(KindSalesOrder, order.Status, ActionInvoice)
	if err != nil {
		return nil, err
	}

	lines, err := loadLines(ctx, tx, KindSalesOrder, orderID)
	if err != nil {
		return nil, err
	}
	totals := RecomputeTotals(lines)

	num, err := s.seq.NextTx(ctx, tx, organizationID, DocTypeInvoice)
	if err != nil {
		return nil, err
	}

	var invoiceID int
	err = tx.QueryRow(ctx, `
		INSERT INTO invoices (organization_id, contact_id, document_number, status, issue_date, due_date, notes,
		                      subtotal, total_tax, total_amount, amount_due, sales_order_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10, $11)
		RETURNING id
	`, organizationID, order.ContactID, num.Number, string(StatusDraft), issueDate, dueDate,
		fmt.Sprintf("From sales order %s", order.DocumentNumber),
		totals.Subtotal, totals.TotalTax, totals.TotalAmount, orderID,
	).Scan(&invoiceID)
	if err != nil {
		return nil, storeError("insert invoice", err)
	}

	if err := insertLinesTx(ctx, tx, tablesByKind[KindInvoice], invoiceID, lines); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, "UPDATE sales_orders SET status = $1, updated_at = NOW() WHERE id = $2", string(next), orderID)
	if err != nil {
		return nil, storeError("mark sales order invoiced", err)
	}

	if _, err := s.balances.RecomputeBalancesTx(ctx, tx, organizationID, order.ContactID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeError("commit order invoicing", err)
	}

	s.log.Info().
		Str("sales_order", order.DocumentNumber).
		Str("invoice", num.Number).
		Msg("sales order converted to invoice")

	return s.GetDocument(ctx, KindInvoice, organizationID, invoiceID)
}

func (s *documentService) GetDocument(ctx context.Context, kind DocumentKind, organizationID, documentID int) (*Document, error) {
	doc, err := readDocument(ctx, s.pool, kind, organizationID, documentID)
	if err != nil {
		return nil, err
	}

	doc.Lines, err = loadLines(ctx, s.pool, kind, documentID)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *documentService) ListDocuments(ctx context.Context, kind DocumentKind, organizationID int, status *DocumentStatus, contactID *int) ([]Document, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}
	var statusArg *string
	if status != nil {
		v := string(*status)
		statusArg = &v
	}

	rows, err := s.pool.Query(ctx, t.selectHeader()+`
		WHERE organization_id = $1
		  AND ($2::text IS NULL OR status = $2)
		  AND ($3::int IS NULL OR contact_id = $3)
		ORDER BY id`, organizationID, statusArg, contactID)
	if err != nil {
		return nil, storeError(fmt.Sprintf("query %s", t.header), err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows, kind)
		if err != nil {
			return nil, storeError(fmt.Sprintf("scan %s", kindLabel(kind)), err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(fmt.Sprintf("iterate %s", t.header), err)
	}
	return docs, nil
}

// persistTotalsTx recomputes totals from lines and writes them to the header. Only
// called on DRAFT documents, which never carry allocations, so amount_due is the total.
func (s *documentService) persistTotalsTx(ctx context.Context, tx pgx.Tx, doc *Document, lines []DocumentLine) error {
	t := tablesByKind[doc.Kind]
	totals := RecomputeTotals(lines)

	for _, l := range lines {
		if l.ID == 0 {
			continue
		}
		_, err := tx.Exec(ctx, fmt.Sprintf(`
			UPDATE %s SET line_subtotal = $1, line_tax = $2, line_total = $3 WHERE id = $4`, t.lines),
			l.LineSubtotal, l.LineTax, l.LineTotal, l.ID)
		if err != nil {
			return storeError("update line totals", err)
		}
	}

	amountDue := decimal.Zero
	if doc.Kind.settleable() {
		amountDue = totals.TotalAmount
	}
	_, err := tx.Exec(ctx, fmt.Sprintf(`
		UPDATE %s
		SET subtotal = $1, total_tax = $2, total_amount = $3, amount_due = $4, updated_at = NOW()
		WHERE id = $5`, t.header),
		totals.Subtotal, totals.TotalTax, totals.TotalAmount, amountDue, doc.ID)
	if err != nil {
		return storeError("update document totals", err)
	}
	return nil
}

// ensureNoSettlementTx blocks cancel/void once money or an invoice hangs off the document.
func ensureNoSettlementTx(ctx context.Context, tx pgx.Tx, doc *Document, action DocumentAction) error {
	if doc.Kind == KindSalesOrder {
		var invoices int
		if err := tx.QueryRow(ctx, "SELECT count(*) FROM invoices WHERE sales_order_id = $1", doc.ID).Scan(&invoices); err != nil {
			return storeError("check invoices of sales order", err)
		}
		if invoices > 0 {
			return ruleViolation("cannot %s %s: it has already been invoiced", action, describe(doc))
		}
		return nil
	}

	var allocations int
	err := tx.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM payment_allocations WHERE %s = $1", tablesByKind[doc.Kind].allocationFK),
		doc.ID).Scan(&allocations)
	if err != nil {
		return storeError("check payment allocations", err)
	}
	if allocations > 0 {
		return ruleViolation("cannot %s %s: payments are allocated to it", action, describe(doc))
	}
	return nil
}

// checkContactTx verifies the contact exists in the organization and can trade on
// documents of this kind.
func checkContactTx(ctx context.Context, q pgxQuerier, organizationID, contactID int, kind DocumentKind) error {
	var contactKind ContactKind
	err := q.QueryRow(ctx, "SELECT kind FROM contacts WHERE id = $1 AND organization_id = $2",
		contactID, organizationID).Scan(&contactKind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound("contact %d not found in organization %d", contactID, organizationID)
		}
		return storeError("read contact", err)
	}
	switch {
	case contactKind == ContactBoth:
	case kind == KindVendorBill && contactKind != ContactVendor:
		return ruleViolation("contact %d is not a vendor", contactID)
	case kind != KindVendorBill && contactKind != ContactCustomer:
		return ruleViolation("contact %d is not a customer", contactID)
	}
	return nil
}

// resolveLinesTx turns caller input into priced, taxed lines. Product defaults fill a
// missing price or tax; the tax rate is snapshotted onto the line. Inputs are rounded
// to their column scales.
func resolveLinesTx(ctx context.Context, tx pgx.Tx, organizationID int, inputs []LineInput) ([]DocumentLine, error) {
	lines := make([]DocumentLine, 0, len(inputs))
	for i, in := range inputs {
		line := DocumentLine{
			LineNumber:      i + 1,
			ProductID:       in.ProductID,
			Description:     in.Description,
			Quantity:        in.Quantity,
			UnitPrice:       in.UnitPrice,
			DiscountPercent: in.DiscountPercent,
			TaxID:           in.TaxID,
			TaxComputation:  TaxPercentage,
		}

		if in.ProductID != nil {
			var p Product
			err := tx.QueryRow(ctx, `
				SELECT id, name, unit_price, tax_id FROM products WHERE id = $1 AND organization_id = $2
			`, *in.ProductID, organizationID).Scan(&p.ID, &p.Name, &p.UnitPrice, &p.TaxID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, notFound("line %d: product %d not found in organization %d", i+1, *in.ProductID, organizationID)
				}
				return nil, storeError(fmt.Sprintf("line %d: resolve product", i+1), err)
			}
			if line.UnitPrice.IsZero() {
				line.UnitPrice = p.UnitPrice
			}
			if line.Description == "" {
				line.Description = p.Name
			}
			if line.TaxID == nil {
				line.TaxID = p.TaxID
			}
		}

		if line.TaxID != nil {
			var tax Tax
			err := tx.QueryRow(ctx, `
				SELECT rate, computation FROM taxes WHERE id = $1 AND organization_id = $2
			`, *line.TaxID, organizationID).Scan(&tax.Rate, &tax.Computation)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, notFound("line %d: tax %d not found in organization %d", i+1, *line.TaxID, organizationID)
				}
				return nil, storeError(fmt.Sprintf("line %d: resolve tax", i+1), err)
			}
			line.TaxRate = tax.Rate
			line.TaxComputation = tax.Computation
		}

		NormalizeLine(&line)
		lines = append(lines, line)
	}
	return lines, nil
}

// insertLinesTx writes lines with fresh line numbers; computed fields must already be set.
func insertLinesTx(ctx context.Context, tx pgx.Tx, t documentTables, documentID int, lines []DocumentLine) error {
	for i, l := range lines {
		_, err := tx.Exec(ctx, fmt.Sprintf(`
			INSERT INTO %s (document_id, line_number, product_id, description, quantity, unit_price, discount_percent,
			                tax_id, tax_computation, tax_rate, line_subtotal, line_tax, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`, t.lines),
			documentID, i+1, l.ProductID, l.Description, l.Quantity, l.UnitPrice, l.DiscountPercent,
			l.TaxID, string(l.TaxComputation), l.TaxRate, l.LineSubtotal, l.LineTax, l.LineTotal)
		if err != nil {
			return storeError(fmt.Sprintf("insert line %d", i+1), err)
		}
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
