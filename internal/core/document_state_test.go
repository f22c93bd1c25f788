package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accounting-engine/internal/core"
)

func TestNextStatus_Allowed(t *testing.T) {
	tests := []struct {
		kind   core.DocumentKind
		from   core.DocumentStatus
		action core.DocumentAction
		want   core.DocumentStatus
	}{
		{core.KindSalesOrder, core.StatusDraft, core.ActionConfirm, core.StatusConfirmed},
		{core.KindSalesOrder, core.StatusDraft, core.ActionCancel, core.StatusCancelled},
		{core.KindSalesOrder, core.StatusConfirmed, core.ActionCancel, core.StatusCancelled},
		{core.KindSalesOrder, core.StatusConfirmed, core.ActionInvoice, core.StatusInvoiced},
		{core.KindInvoice, core.StatusDraft, core.ActionSend, core.StatusAwaitingPayment},
		{core.KindInvoice, core.StatusDraft, core.ActionConfirm, core.StatusAwaitingPayment},
		{core.KindInvoice, core.StatusDraft, core.ActionVoid, core.StatusVoid},
		{core.KindInvoice, core.StatusAwaitingPayment, core.ActionVoid, core.StatusVoid},
		{core.KindVendorBill, core.StatusDraft, core.ActionConfirm, core.StatusAwaitingPayment},
		{core.KindVendorBill, core.StatusAwaitingPayment, core.ActionVoid, core.StatusVoid},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind)+"/"+string(tt.from)+"/"+string(tt.action), func(t *testing.T) {
			got, err := core.NextStatus(tt.kind, tt.from, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextStatus_Rejected(t *testing.T) {
	tests := []struct {
		kind   core.DocumentKind
		from   core.DocumentStatus
		action core.DocumentAction
	}{
		{core.KindSalesOrder, core.StatusConfirmed, core.ActionConfirm},
		{core.KindSalesOrder, core.StatusDraft, core.ActionInvoice},
		{core.KindSalesOrder, core.StatusInvoiced, core.ActionCancel},
		{core.KindSalesOrder, core.StatusDraft, core.ActionVoid},
		{core.KindInvoice, core.StatusAwaitingPayment, core.ActionSend},
		{core.KindInvoice, core.StatusPaid, core.ActionVoid},
		{core.KindInvoice, core.StatusVoid, core.ActionSend},
		{core.KindInvoice, core.StatusDraft, core.ActionCancel},
		{core.KindVendorBill, core.StatusPaid, core.ActionVoid},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind)+"/"+string(tt.from)+"/"+string(tt.action), func(t *testing.T) {
			_, err := core.NextStatus(tt.kind, tt.from, tt.action)
			assert.ErrorIs(t, err, core.ErrBusinessRule)
		})
	}
}

func TestNextStatus_TerminalStatesHaveNoExit(t *testing.T) {
	kinds := []core.DocumentKind{core.KindSalesOrder, core.KindInvoice, core.KindVendorBill}
	actions := []core.DocumentAction{core.ActionConfirm, core.ActionSend, core.ActionCancel, core.ActionVoid, core.ActionInvoice}
	terminal := []core.DocumentStatus{core.StatusInvoiced, core.StatusCancelled, core.StatusPaid, core.StatusVoid}

	for _, k := range kinds {
		for _, s := range terminal {
			require.True(t, core.IsTerminal(s))
			for _, a := range actions {
				_, err := core.NextStatus(k, s, a)
				assert.Error(t, err, "%s %s %s", k, s, a)
			}
		}
	}
	assert.False(t, core.IsTerminal(core.StatusDraft))
	assert.False(t, core.IsTerminal(core.StatusAwaitingPayment))
}

func TestSettlementStatus(t *testing.T) {
	assert.Equal(t, core.StatusPaid, core.SettlementStatus(core.StatusAwaitingPayment, dec("0")))
	assert.Equal(t, core.StatusPaid, core.SettlementStatus(core.StatusAwaitingPayment, dec("0.004")))
	assert.Equal(t, core.StatusAwaitingPayment, core.SettlementStatus(core.StatusAwaitingPayment, dec("0.01")))
	assert.Equal(t, core.StatusAwaitingPayment, core.SettlementStatus(core.StatusPaid, dec("400")))
	assert.Equal(t, core.StatusDraft, core.SettlementStatus(core.StatusDraft, dec("0")))
	assert.Equal(t, core.StatusVoid, core.SettlementStatus(core.StatusVoid, dec("100")))
}

func TestAmountDue(t *testing.T) {
	assert.Equal(t, "400.00", core.AmountDue(dec("1000"), dec("600")).StringFixed(2))
}

func TestParseDocumentKind(t *testing.T) {
	for in, want := range map[string]core.DocumentKind{
		"sales-order":  core.KindSalesOrder,
		"sales_orders": core.KindSalesOrder,
		"INVOICE":      core.KindInvoice,
		"invoices":     core.KindInvoice,
		"vendor-bill":  core.KindVendorBill,
		"bills":        core.KindVendorBill,
	} {
		got, err := core.ParseDocumentKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := core.ParseDocumentKind("quote")
	assert.ErrorIs(t, err, core.ErrBusinessRule)
}

func TestParseDocumentAction(t *testing.T) {
	a, err := core.ParseDocumentAction("Confirm")
	require.NoError(t, err)
	assert.Equal(t, core.ActionConfirm, a)

	// Invoicing only happens through order conversion.
	_, err = core.ParseDocumentAction("invoice")
	assert.ErrorIs(t, err, core.ErrBusinessRule)
}
