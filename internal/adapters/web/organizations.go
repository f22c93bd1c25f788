package web

import (
	"net/http"

	"accounting-engine/internal/core"
)

// apiOnboardOrganization handles POST /api/orgs.
func (h *Handler) apiOnboardOrganization(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	org, err := h.svc.OnboardOrganization(r.Context(), body.Name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, org)
}

// apiListContacts handles GET /api/orgs/{org}/contacts.
func (h *Handler) apiListContacts(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	contacts, err := h.svc.ListContacts(r.Context(), org)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"contacts": contacts})
}

// apiCreateContact handles POST /api/orgs/{org}/contacts.
func (h *Handler) apiCreateContact(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	var input core.ContactInput
	if !decodeJSON(w, r, &input) {
		return
	}
	c, err := h.svc.CreateContact(r.Context(), org, input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, c)
}

// apiCreateTax handles POST /api/orgs/{org}/taxes.
func (h *Handler) apiCreateTax(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	var input core.TaxInput
	if !decodeJSON(w, r, &input) {
		return
	}
	t, err := h.svc.CreateTax(r.Context(), org, input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, t)
}

// apiCreateProduct handles POST /api/orgs/{org}/products.
func (h *Handler) apiCreateProduct(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	var input core.ProductInput
	if !decodeJSON(w, r, &input) {
		return
	}
	p, err := h.svc.CreateProduct(r.Context(), org, input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, p)
}

// apiCreateAccount handles POST /api/orgs/{org}/accounts.
func (h *Handler) apiCreateAccount(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}
	var input core.AccountInput
	if !decodeJSON(w, r, &input) {
		return
	}
	a, err := h.svc.CreateAccount(r.Context(), org, input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, a)
}
