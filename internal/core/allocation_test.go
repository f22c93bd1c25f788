package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func intPtr(v int) *int {
	return &v
}

func TestCheckPaymentCeiling(t *testing.T) {
	payment := amt("1000")

	err := checkPaymentCeiling(payment, []AllocationInput{{DocumentID: 1, Amount: amt("600")}, {DocumentID: 2, Amount: amt("500")}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBusinessRule)
	assert.Equal(t, "Total allocated amount cannot exceed payment amount", Reason(err))

	assert.NoError(t, checkPaymentCeiling(payment, []AllocationInput{{DocumentID: 1, Amount: amt("600")}, {DocumentID: 2, Amount: amt("400")}}))
	assert.NoError(t, checkPaymentCeiling(payment, []AllocationInput{{DocumentID: 1, Amount: amt("300")}}))
	assert.NoError(t, checkPaymentCeiling(payment, nil))
}

func TestValidateAllocationShape(t *testing.T) {
	allocs := []AllocationInput{{DocumentID: 4, Amount: amt("10.005")}, {DocumentID: 9, Amount: amt("1")}}
	require.NoError(t, validateAllocationShape(allocs))
	assert.Equal(t, "10.01", allocs[0].Amount.String())

	tests := []struct {
		name   string
		allocs []AllocationInput
		reason string
	}{
		{"missing document", []AllocationInput{{Amount: amt("5")}}, "allocation 1: document id is required"},
		{"zero amount", []AllocationInput{{DocumentID: 1, Amount: amt("0")}}, "allocation 1: amount must be positive"},
		{"rounds to zero", []AllocationInput{{DocumentID: 1, Amount: amt("0.004")}}, "allocation 1: amount must be positive"},
		{"negative amount", []AllocationInput{{DocumentID: 1, Amount: amt("5")}, {DocumentID: 2, Amount: amt("-5")}}, "allocation 2: amount must be positive"},
		{"duplicate document", []AllocationInput{{DocumentID: 3, Amount: amt("5")}, {DocumentID: 3, Amount: amt("6")}}, "document 3 appears more than once in the allocation request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAllocationShape(tt.allocs)
			require.Error(t, err)
			assert.Equal(t, tt.reason, Reason(err))
		})
	}
}

func TestCheckDocumentCeiling(t *testing.T) {
	doc := &Document{ID: 1, Kind: KindInvoice, DocumentNumber: "INV/2026/000001", TotalAmount: amt("500")}

	assert.NoError(t, checkDocumentCeiling(doc, amt("300"), amt("200")))

	err := checkDocumentCeiling(doc, amt("300"), amt("250"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBusinessRule)
	assert.Equal(t, "over-allocation of document: invoice INV/2026/000001 has 200.00 outstanding, 250.00 requested", Reason(err))
}

func TestCheckAllocationTarget(t *testing.T) {
	p := &Payment{ID: 1, ContactID: 7, PaymentNumber: "PAY/2026/000001"}

	assert.NoError(t, checkAllocationTarget(p, &Document{Kind: KindInvoice, ContactID: 7, Status: StatusAwaitingPayment}))
	assert.NoError(t, checkAllocationTarget(p, &Document{Kind: KindInvoice, ContactID: 7, Status: StatusPaid}))

	for _, st := range []DocumentStatus{StatusDraft, StatusVoid} {
		err := checkAllocationTarget(p, &Document{Kind: KindInvoice, ContactID: 7, Status: st})
		assert.ErrorIs(t, err, ErrBusinessRule, "status %s", st)
	}

	err := checkAllocationTarget(p, &Document{Kind: KindVendorBill, ContactID: 8, Status: StatusAwaitingPayment})
	assert.ErrorIs(t, err, ErrBusinessRule)
}

func TestTouchedDocuments(t *testing.T) {
	old := []PaymentAllocation{{InvoiceID: intPtr(5)}, {InvoiceID: intPtr(2)}}
	next := []AllocationInput{{DocumentID: 3}, {DocumentID: 5}}

	assert.Equal(t, []int{2, 3, 5}, touchedDocuments(old, next))
	assert.Equal(t, []int{8}, touchedDocuments([]PaymentAllocation{{VendorBillID: intPtr(8)}}, nil))
	assert.Empty(t, touchedDocuments(nil, nil))
}

func TestPaymentAllocatedAndUnallocated(t *testing.T) {
	p := Payment{
		Amount: amt("1000"),
		Allocations: []PaymentAllocation{
			{InvoiceID: intPtr(1), AllocatedAmount: amt("600")},
			{InvoiceID: intPtr(2), AllocatedAmount: amt("150.50")},
		},
	}
	assert.Equal(t, "750.50", p.Allocated().StringFixed(2))
	assert.Equal(t, "249.50", p.Unallocated().StringFixed(2))
}

func TestAllocatesTo(t *testing.T) {
	allocs := []AllocationInput{{DocumentID: 4, Amount: amt("10")}, {DocumentID: 9, Amount: amt("1")}}
	assert.True(t, allocatesTo(allocs, 9))
	assert.False(t, allocatesTo(allocs, 5))
	assert.False(t, allocatesTo(nil, 4))
}
