package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type DocumentKind string

const (
	KindSalesOrder DocumentKind = "SALES_ORDER"
	KindInvoice    DocumentKind = "INVOICE"
	KindVendorBill DocumentKind = "VENDOR_BILL"
)

// ParseDocumentKind accepts the canonical names plus the URL-friendly forms
// "sales-order", "invoice" and "vendor-bill".
func ParseDocumentKind(s string) (DocumentKind, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")) {
	case string(KindSalesOrder), "SALES_ORDERS":
		return KindSalesOrder, nil
	case string(KindInvoice), "INVOICES":
		return KindInvoice, nil
	case string(KindVendorBill), "VENDOR_BILLS", "BILL", "BILLS":
		return KindVendorBill, nil
	}
	return "", ruleViolation("unknown document kind %q", s)
}

// sequenceDocType is the sequence used to number documents of this kind.
func (k DocumentKind) sequenceDocType() string {
	switch k {
	case KindSalesOrder:
		return DocTypeSalesOrder
	case KindInvoice:
		return DocTypeInvoice
	default:
		return DocTypeVendorBill
	}
}

// settleable reports whether documents of this kind carry an amount due.
func (k DocumentKind) settleable() bool {
	return k == KindInvoice || k == KindVendorBill
}

type DocumentStatus string

const (
	StatusDraft           DocumentStatus = "DRAFT"
	StatusConfirmed       DocumentStatus = "CONFIRMED"
	StatusInvoiced        DocumentStatus = "INVOICED"
	StatusCancelled       DocumentStatus = "CANCELLED"
	StatusAwaitingPayment DocumentStatus = "AWAITING_PAYMENT"
	StatusPaid            DocumentStatus = "PAID"
	StatusVoid            DocumentStatus = "VOID"
)

// DocumentAction is a requested transition.
type DocumentAction string

const (
	ActionConfirm DocumentAction = "confirm"
	ActionSend    DocumentAction = "send"
	ActionCancel  DocumentAction = "cancel"
	ActionVoid    DocumentAction = "void"
	// ActionInvoice is issued by ConvertOrderToInvoice, not by callers directly.
	ActionInvoice DocumentAction = "invoice"
)

func ParseDocumentAction(s string) (DocumentAction, error) {
	a := DocumentAction(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case ActionConfirm, ActionSend, ActionCancel, ActionVoid:
		return a, nil
	}
	return "", ruleViolation("unknown document action %q", s)
}

type transition struct {
	from []DocumentStatus
	to   DocumentStatus
}

func (t transition) allows(s DocumentStatus) bool {
	for _, f := range t.from {
		if f == s {
			return true
		}
	}
	return false
}

// transitions is the complete table of requested transitions per document family.
// PAID is never requested; it is derived from allocations by SettlementStatus.
var transitions = map[DocumentKind]map[DocumentAction]transition{
	KindSalesOrder: {
		ActionConfirm: {from: []DocumentStatus{StatusDraft}, to: StatusConfirmed},
		ActionCancel:  {from: []DocumentStatus{StatusDraft, StatusConfirmed}, to: StatusCancelled},
		ActionInvoice: {from: []DocumentStatus{StatusConfirmed}, to: StatusInvoiced},
	},
	KindInvoice: {
		ActionSend:    {from: []DocumentStatus{StatusDraft}, to: StatusAwaitingPayment},
		ActionConfirm: {from: []DocumentStatus{StatusDraft}, to: StatusAwaitingPayment},
		ActionVoid:    {from: []DocumentStatus{StatusDraft, StatusAwaitingPayment}, to: StatusVoid},
	},
	KindVendorBill: {
		ActionSend:    {from: []DocumentStatus{StatusDraft}, to: StatusAwaitingPayment},
		ActionConfirm: {from: []DocumentStatus{StatusDraft}, to: StatusAwaitingPayment},
		ActionVoid:    {from: []DocumentStatus{StatusDraft, StatusAwaitingPayment}, to: StatusVoid},
	},
}

// NextStatus looks the transition up in the table. Anything not listed is a
// business rule violation.
func NextStatus(kind DocumentKind, current DocumentStatus, action DocumentAction) (DocumentStatus, error) {
	actions, ok := transitions[kind]
	if !ok {
		return "", ruleViolation("unknown document kind %q", kind)
	}
	t, ok := actions[action]
	if !ok {
		return "", ruleViolation("action %q is not available for a %s", action, kindLabel(kind))
	}
	if !t.allows(current) {
		return "", ruleViolation("cannot %s a %s in status %s", action, kindLabel(kind), current)
	}
	return t.to, nil
}

// IsTerminal reports whether no further transitions leave s.
func IsTerminal(s DocumentStatus) bool {
	switch s {
	case StatusInvoiced, StatusCancelled, StatusPaid, StatusVoid:
		return true
	}
	return false
}

// settlementTolerance absorbs sub-cent rounding when deciding that a document is paid.
var settlementTolerance = decimal.NewFromFloat(0.005)

// AmountDue is totalAmount minus everything allocated against the document.
func AmountDue(totalAmount, allocated decimal.Decimal) decimal.Decimal {
	return totalAmount.Sub(allocated)
}

// SettlementStatus derives the status of an invoice or bill after its allocations changed.
// Only AWAITING_PAYMENT and PAID documents move; a PAID document whose allocations were
// reduced goes back to AWAITING_PAYMENT.
func SettlementStatus(current DocumentStatus, amountDue decimal.Decimal) DocumentStatus {
	switch current {
	case StatusAwaitingPayment, StatusPaid:
		if amountDue.LessThanOrEqual(settlementTolerance) {
			return StatusPaid
		}
		return StatusAwaitingPayment
	}
	return current
}

// ensureEditable rejects line replacement and deletion outside DRAFT.
func ensureEditable(doc *Document, op string) error {
	if doc.Status != StatusDraft {
		return ruleViolation("%s cannot be %s: status is %s (must be DRAFT)", describe(doc), op, doc.Status)
	}
	return nil
}

func describe(doc *Document) string {
	return fmt.Sprintf("%s %s", kindLabel(doc.Kind), doc.DocumentNumber)
}
