package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"accounting-engine/internal/app"
	"accounting-engine/internal/core"
)

// apiListDocuments handles GET /api/orgs/{org}/documents/{kind}?status=&contact_id=.
func (h *Handler) apiListDocuments(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	contactID, ok := optionalIntQuery(w, r, "contact_id")
	if !ok {
		return
	}
	result, err := h.svc.ListDocuments(r.Context(), app.ListDocumentsRequest{
		Kind:           chi.URLParam(r, "kind"),
		OrganizationID: org,
		Status:         r.URL.Query().Get("status"),
		ContactID:      contactID,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCreateDocument handles POST /api/orgs/{org}/documents/{kind}.
func (h *Handler) apiCreateDocument(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	var req app.CreateDocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Kind = chi.URLParam(r, "kind")
	req.OrganizationID = org

	doc, err := h.svc.CreateDocument(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, doc)
}

// apiGetDocument handles GET /api/orgs/{org}/documents/{kind}/{id}.
func (h *Handler) apiGetDocument(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	doc, err := h.svc.GetDocument(r.Context(), chi.URLParam(r, "kind"), org, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, doc)
}

// apiDeleteDocument handles DELETE /api/orgs/{org}/documents/{kind}/{id}.
func (h *Handler) apiDeleteDocument(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteDocument(r.Context(), chi.URLParam(r, "kind"), org, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// apiReplaceLines handles PUT /api/orgs/{org}/documents/{kind}/{id}/lines.
func (h *Handler) apiReplaceLines(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Lines []core.LineInput `json:"lines"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	doc, err := h.svc.ReplaceDocumentLines(r.Context(), chi.URLParam(r, "kind"), org, id, body.Lines)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, doc)
}

// apiTransitionDocument handles POST /api/orgs/{org}/documents/{kind}/{id}/transitions/{action}.
func (h *Handler) apiTransitionDocument(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	doc, err := h.svc.TransitionDocument(r.Context(), chi.URLParam(r, "kind"), org, id, chi.URLParam(r, "action"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, doc)
}

// apiConvertOrder handles POST /api/orgs/{org}/sales-orders/{id}/convert.
// The body is optional; issue_date defaults to today.
func (h *Handler) apiConvertOrder(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		IssueDate *time.Time `json:"issue_date"`
		DueDate   *time.Time `json:"due_date"`
	}
	if r.ContentLength > 0 && !decodeJSON(w, r, &body) {
		return
	}
	req := app.ConvertOrderRequest{OrganizationID: org, OrderID: id, DueDate: body.DueDate}
	if body.IssueDate != nil {
		req.IssueDate = *body.IssueDate
	}
	doc, err := h.svc.ConvertOrderToInvoice(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, doc)
}
