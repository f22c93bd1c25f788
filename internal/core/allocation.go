package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// validateAllocationShape checks what can be checked without the store: every amount is
// positive and no document appears twice. Amounts are rounded to cents in place.
func validateAllocationShape(allocs []AllocationInput) error {
	seen := make(map[int]bool, len(allocs))
	for i := range allocs {
		a := &allocs[i]
		if a.DocumentID <= 0 {
			return ruleViolation("allocation %d: document id is required", i+1)
		}
		a.Amount = roundMoney(a.Amount)
		if !a.Amount.IsPositive() {
			return ruleViolation("allocation %d: amount must be positive", i+1)
		}
		if seen[a.DocumentID] {
			return ruleViolation("document %d appears more than once in the allocation request", a.DocumentID)
		}
		seen[a.DocumentID] = true
	}
	return nil
}

// AllocationTotal sums the requested amounts.
func AllocationTotal(allocs []AllocationInput) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocs {
		total = total.Add(a.Amount)
	}
	return total
}

// checkPaymentCeiling rejects a request whose sum exceeds the payment amount.
func checkPaymentCeiling(paymentAmount decimal.Decimal, allocs []AllocationInput) error {
	if AllocationTotal(allocs).GreaterThan(paymentAmount) {
		return ruleViolation("Total allocated amount cannot exceed payment amount")
	}
	return nil
}

// checkDocumentCeiling rejects an allocation larger than what is still open on the document.
// allocatedElsewhere is the sum of allocations from other payments.
func checkDocumentCeiling(doc *Document, allocatedElsewhere, amount decimal.Decimal) error {
	outstanding := doc.TotalAmount.Sub(allocatedElsewhere)
	if amount.GreaterThan(outstanding) {
		return ruleViolation("over-allocation of document: %s has %s outstanding, %s requested",
			describe(doc), outstanding.StringFixed(2), amount.StringFixed(2))
	}
	return nil
}

// checkAllocationTarget verifies a document can receive money from this payment.
func checkAllocationTarget(p *Payment, doc *Document) error {
	if doc.ContactID != p.ContactID {
		return ruleViolation("%s belongs to contact %d, payment %s belongs to contact %d",
			describe(doc), doc.ContactID, p.PaymentNumber, p.ContactID)
	}
	if doc.Status != StatusAwaitingPayment && doc.Status != StatusPaid {
		return ruleViolation("%s cannot receive payments in status %s", describe(doc), doc.Status)
	}
	return nil
}

// touchedDocuments is the sorted union of document ids in the old and new allocation sets.
// Locks are always taken in this order.
func touchedDocuments(old []PaymentAllocation, next []AllocationInput) []int {
	set := make(map[int]struct{}, len(old)+len(next))
	for _, a := range old {
		set[a.DocumentID()] = struct{}{}
	}
	for _, a := range next {
		set[a.DocumentID] = struct{}{}
	}
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// allocatesTo reports whether allocs target documentID.
func allocatesTo(allocs []AllocationInput, documentID int) bool {
	for _, a := range allocs {
		if a.DocumentID == documentID {
			return true
		}
	}
	return false
}
