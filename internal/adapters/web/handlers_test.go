package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accounting-engine/internal/app"
	"accounting-engine/internal/core"
)

// stubService answers GetDocument from canned values and defers everything else to
// a store-less ApplicationService.
type stubService struct {
	app.ApplicationService
	doc *core.Document
	err error
}

func (s *stubService) GetDocument(ctx context.Context, kind string, organizationID, documentID int) (*core.Document, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.doc, nil
}

func newTestHandler(doc *core.Document, err error) http.Handler {
	base := app.NewAppService(nil, nil, nil, nil, nil, nil, nil, nil, nil)
	return NewHandler(&stubService{ApplicationService: base, doc: doc, err: err}, "")
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestHandler(nil, nil), http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCalculateTax(t *testing.T) {
	h := newTestHandler(nil, nil)

	rec := do(t, h, http.MethodPost, "/api/tax/calculate", `{"base":"118","rate":"18","mode":"INCLUSIVE"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result core.TaxResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Net.Equal(decimal.NewFromInt(100)), result.Net.String())
	assert.True(t, result.TaxAmount.Equal(decimal.NewFromInt(18)), result.TaxAmount.String())
	assert.True(t, result.Gross.Equal(decimal.NewFromInt(118)), result.Gross.String())
}

func TestCalculateTax_BadRequests(t *testing.T) {
	h := newTestHandler(nil, nil)

	rec := do(t, h, http.MethodPost, "/api/tax/calculate", `{"base":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "BAD_REQUEST", resp.Code)
	assert.True(t, strings.HasPrefix(resp.Error, "invalid JSON body: "), resp.Error)

	rec = do(t, h, http.MethodPost, "/api/tax/calculate", `{"base":"100","rate":"-1"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "BUSINESS_RULE_VIOLATION", decodeError(t, rec).Code)

	rec = do(t, h, http.MethodPost, "/api/tax/calculate", `{"base":"100","rate":"18","mode":"SIDEWAYS"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestInvalidOrgParameter(t *testing.T) {
	rec := do(t, newTestHandler(nil, nil), http.MethodGet, "/api/orgs/abc/documents/invoice/1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid org parameter", decodeError(t, rec).Error)

	rec = do(t, newTestHandler(nil, nil), http.MethodGet, "/api/orgs/1/documents/invoice/0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid id parameter", decodeError(t, rec).Error)
}

func TestGetDocument(t *testing.T) {
	doc := &core.Document{ID: 4, Kind: core.KindInvoice, DocumentNumber: "INV/2026/000004", Status: core.StatusAwaitingPayment}
	rec := do(t, newTestHandler(doc, nil), http.MethodGet, "/api/orgs/1/documents/invoice/4", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got core.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "INV/2026/000004", got.DocumentNumber)
	assert.Equal(t, core.StatusAwaitingPayment, got.Status)
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"not found", fmt.Errorf("invoice 4 not found: %w", core.ErrNotFound), http.StatusNotFound, "NOT_FOUND", "invoice 4 not found: not found"},
		{"conflict", fmt.Errorf("failed to insert: uq_number: %w", core.ErrConflict), http.StatusConflict, "CONFLICT", "failed to insert: uq_number: conflict"},
		{"rule", &core.RuleError{Reason: "cannot void a paid invoice"}, http.StatusUnprocessableEntity, "BUSINESS_RULE_VIOLATION", "cannot void a paid invoice"},
		{"concurrency", fmt.Errorf("failed to lock: %w", core.ErrConcurrency), http.StatusServiceUnavailable, "CONCURRENCY_FAILURE", "failed to lock: concurrency failure"},
		{"internal", errors.New("dial tcp 10.0.0.5:5432: connection refused"), http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestHandler(nil, tt.err), http.MethodGet, "/api/orgs/1/documents/invoice/4", "")
			assert.Equal(t, tt.status, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, tt.message, resp.Error)
			assert.NotEmpty(t, resp.RequestID)
		})
	}
}

func TestRequestID(t *testing.T) {
	h := newTestHandler(nil, &core.RuleError{Reason: "nope"})

	req := httptest.NewRequest(http.MethodGet, "/api/orgs/1/documents/invoice/4", nil)
	req.Header.Set("X-Request-ID", "client-abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "client-abc-123", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "client-abc-123", decodeError(t, rec).RequestID)

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "bad id with spaces")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	got := rec.Header().Get("X-Request-ID")
	assert.NotEqual(t, "bad id with spaces", got)
	assert.Len(t, got, 36)
}

func TestRequestBodyLimit(t *testing.T) {
	h := newTestHandler(nil, nil)
	body := `{"base":"` + strings.Repeat("1", 2<<20) + `"}`
	rec := do(t, h, http.MethodPost, "/api/tax/calculate", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "REQUEST_TOO_LARGE", decodeError(t, rec).Code)
}
