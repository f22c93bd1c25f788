package web

import (
	"net/http"

	"accounting-engine/internal/core"
)

// apiListPayments handles GET /api/orgs/{org}/payments?contact_id=.
func (h *Handler) apiListPayments(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	contactID, ok := optionalIntQuery(w, r, "contact_id")
	if !ok {
		return
	}
	payments, err := h.svc.ListPayments(r.Context(), org, contactID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"payments": payments})
}

// apiRecordPayment handles POST /api/orgs/{org}/payments.
func (h *Handler) apiRecordPayment(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	var req core.RecordPaymentInput
	if !decodeJSON(w, r, &req) {
		return
	}
	req.OrganizationID = org

	p, err := h.svc.RecordPayment(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, p)
}

// apiGetPayment handles GET /api/orgs/{org}/payments/{id}.
func (h *Handler) apiGetPayment(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	p, err := h.svc.GetPayment(r.Context(), org, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, p)
}

// apiDeletePayment handles DELETE /api/orgs/{org}/payments/{id}.
func (h *Handler) apiDeletePayment(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeletePayment(r.Context(), org, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// apiAllocatePayment handles PUT /api/orgs/{org}/payments/{id}/allocations.
// The body replaces the payment's whole allocation set.
func (h *Handler) apiAllocatePayment(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Allocations []core.AllocationInput `json:"allocations"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	p, err := h.svc.AllocatePayment(r.Context(), org, id, body.Allocations)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, p)
}

// apiGetPartnerBalance handles GET /api/orgs/{org}/contacts/{contact}/balance.
func (h *Handler) apiGetPartnerBalance(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	contact, ok := intParam(w, r, "contact")
	if !ok {
		return
	}
	b, err := h.svc.GetPartnerBalance(r.Context(), org, contact)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, b)
}

// apiRecomputePartnerBalance handles POST /api/orgs/{org}/contacts/{contact}/balance/recompute.
func (h *Handler) apiRecomputePartnerBalance(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	contact, ok := intParam(w, r, "contact")
	if !ok {
		return
	}
	b, err := h.svc.RecomputePartnerBalance(r.Context(), org, contact)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, b)
}

// apiVerifyBalances handles GET /api/orgs/{org}/balances/verify.
func (h *Handler) apiVerifyBalances(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	result, err := h.svc.VerifyPartnerBalances(r.Context(), org)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
