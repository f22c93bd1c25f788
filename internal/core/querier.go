package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared query helpers.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// documentTables names the header and line tables backing one document kind.
// Table names are constants; they are never built from caller input.
type documentTables struct {
	header       string
	lines        string
	allocationFK string // payment_allocations column pointing at the header
	salesOrderFK string // select expression for the originating sales order
}

var tablesByKind = map[DocumentKind]documentTables{
	KindSalesOrder: {header: "sales_orders", lines: "sales_order_lines", salesOrderFK: "NULL::int"},
	KindInvoice:    {header: "invoices", lines: "invoice_lines", allocationFK: "invoice_id", salesOrderFK: "sales_order_id"},
	KindVendorBill: {header: "vendor_bills", lines: "vendor_bill_lines", allocationFK: "vendor_bill_id", salesOrderFK: "NULL::int"},
}

func tablesFor(kind DocumentKind) (documentTables, error) {
	t, ok := tablesByKind[kind]
	if !ok {
		return documentTables{}, ruleViolation("unknown document kind %q", kind)
	}
	return t, nil
}

func (t documentTables) selectHeader() string {
	return fmt.Sprintf(`
		SELECT id, organization_id, contact_id, document_number, status, issue_date, due_date, notes,
		       subtotal, total_tax, total_amount, amount_due, %s, created_at, updated_at
		FROM %s`, t.salesOrderFK, t.header)
}

func scanDocument(row pgx.Row, kind DocumentKind) (*Document, error) {
	d := Document{Kind: kind}
	err := row.Scan(&d.ID, &d.OrganizationID, &d.ContactID, &d.DocumentNumber, &d.Status, &d.IssueDate, &d.DueDate,
		&d.Notes, &d.Subtotal, &d.TotalTax, &d.TotalAmount, &d.AmountDue, &d.SalesOrderID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// lockDocumentTx reads a document FOR UPDATE, scoped to the organization.
func lockDocumentTx(ctx context.Context, tx pgx.Tx, kind DocumentKind, organizationID, documentID int) (*Document, error) {
	return queryDocument(ctx, tx, kind, organizationID, documentID, "FOR UPDATE")
}

// readDocument reads a document header without locking it.
func readDocument(ctx context.Context, q pgxQuerier, kind DocumentKind, organizationID, documentID int) (*Document, error) {
	return queryDocument(ctx, q, kind, organizationID, documentID, "")
}

func queryDocument(ctx context.Context, q pgxQuerier, kind DocumentKind, organizationID, documentID int, suffix string) (*Document, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}
	doc, err := scanDocument(q.QueryRow(ctx, t.selectHeader()+`
		WHERE id = $1 AND organization_id = $2 `+suffix, documentID, organizationID), kind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("%s %d not found in organization %d", kindLabel(kind), documentID, organizationID)
		}
		return nil, storeError(fmt.Sprintf("read %s", kindLabel(kind)), err)
	}
	return doc, nil
}

func loadLines(ctx context.Context, q pgxQuerier, kind DocumentKind, documentID int) ([]DocumentLine, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, fmt.Sprintf(`
		SELECT id, line_number, product_id, description, quantity, unit_price, discount_percent,
		       tax_id, tax_computation, tax_rate, line_subtotal, line_tax, line_total
		FROM %s
		WHERE document_id = $1
		ORDER BY line_number`, t.lines), documentID)
	if err != nil {
		return nil, storeError("query document lines", err)
	}
	defer rows.Close()

	var lines []DocumentLine
	for rows.Next() {
		var l DocumentLine
		if err := rows.Scan(&l.ID, &l.LineNumber, &l.ProductID, &l.Description, &l.Quantity, &l.UnitPrice,
			&l.DiscountPercent, &l.TaxID, &l.TaxComputation, &l.TaxRate, &l.LineSubtotal, &l.LineTax, &l.LineTotal); err != nil {
			return nil, storeError("scan document line", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("iterate document lines", err)
	}
	return lines, nil
}

func kindLabel(kind DocumentKind) string {
	switch kind {
	case KindSalesOrder:
		return "sales order"
	case KindInvoice:
		return "invoice"
	case KindVendorBill:
		return "vendor bill"
	}
	return string(kind)
}
