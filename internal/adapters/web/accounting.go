package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"accounting-engine/internal/app"
	"accounting-engine/internal/core"
)

// apiCalculateTax handles POST /api/tax/calculate.
func (h *Handler) apiCalculateTax(w http.ResponseWriter, r *http.Request) {
	var req app.CalculateTaxRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.CalculateTax(req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiNextDocumentNumber handles POST /api/orgs/{org}/sequences/{docType}/next.
func (h *Handler) apiNextDocumentNumber(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	num, err := h.svc.IssueDocumentNumber(r.Context(), org, chi.URLParam(r, "docType"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, num)
}

// apiPostJournalEntry handles POST /api/orgs/{org}/journal-entries.
func (h *Handler) apiPostJournalEntry(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	var input core.JournalEntryInput
	if !decodeJSON(w, r, &input) {
		return
	}
	input.OrganizationID = org

	entry, err := h.svc.PostJournalEntry(r.Context(), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, entry)
}

// apiValidateJournalEntry handles POST /api/orgs/{org}/journal-entries/validate.
func (h *Handler) apiValidateJournalEntry(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	var input core.JournalEntryInput
	if !decodeJSON(w, r, &input) {
		return
	}
	input.OrganizationID = org

	if err := h.svc.ValidateJournalEntry(r.Context(), input); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]bool{"valid": true})
}

// apiGetJournalEntry handles GET /api/orgs/{org}/journal-entries/{id}.
func (h *Handler) apiGetJournalEntry(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	entry, err := h.svc.GetJournalEntry(r.Context(), org, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, entry)
}

// apiReverseJournalEntry handles POST /api/orgs/{org}/journal-entries/{id}/reverse.
func (h *Handler) apiReverseJournalEntry(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Description string `json:"description"`
	}
	if r.ContentLength > 0 && !decodeJSON(w, r, &body) {
		return
	}
	entry, err := h.svc.ReverseJournalEntry(r.Context(), org, id, body.Description)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, entry)
}

// apiTrialBalance handles GET /api/orgs/{org}/trial-balance.
func (h *Handler) apiTrialBalance(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	result, err := h.svc.GetTrialBalance(r.Context(), org)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiChartOfAccounts handles GET /api/orgs/{org}/accounts/tree.
func (h *Handler) apiChartOfAccounts(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	tree, err := h.svc.GetChartOfAccounts(r.Context(), org)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"accounts": tree})
}

// apiAccountStatement handles GET /api/orgs/{org}/accounts/{code}/statement?from=&to=.
func (h *Handler) apiAccountStatement(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	lines, err := h.svc.GetAccountStatement(r.Context(), app.AccountStatementRequest{
		OrganizationID: org,
		AccountCode:    chi.URLParam(r, "code"),
		From:           r.URL.Query().Get("from"),
		To:             r.URL.Query().Get("to"),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"lines": lines})
}

// apiProfitAndLoss handles GET /api/orgs/{org}/reports/profit-and-loss?from=&to=.
func (h *Handler) apiProfitAndLoss(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	report, err := h.svc.GetProfitAndLoss(r.Context(), app.PeriodRequest{
		OrganizationID: org,
		From:           r.URL.Query().Get("from"),
		To:             r.URL.Query().Get("to"),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, report)
}
