package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"accounting-engine/internal/app"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc    app.ApplicationService
	router chi.Router
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins string) http.Handler {
	h := &Handler{svc: svc}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))
	r.Use(RequestBodyLimit(1 << 20)) // 1 MB

	r.Get("/api/health", h.health)
	r.Post("/api/tax/calculate", h.apiCalculateTax)
	r.Post("/api/orgs", h.apiOnboardOrganization)

	r.Route("/api/orgs/{org}", func(r chi.Router) {
		// ── Master data ──────────────────────────────────────────────────────
		r.Get("/contacts", h.apiListContacts)
		r.Post("/contacts", h.apiCreateContact)
		r.Post("/taxes", h.apiCreateTax)
		r.Post("/products", h.apiCreateProduct)
		r.Post("/accounts", h.apiCreateAccount)
		r.Get("/accounts/tree", h.apiChartOfAccounts)

		// ── Sequences ────────────────────────────────────────────────────────
		r.Post("/sequences/{docType}/next", h.apiNextDocumentNumber)

		// ── Documents ────────────────────────────────────────────────────────
		r.Get("/documents/{kind}", h.apiListDocuments)
		r.Post("/documents/{kind}", h.apiCreateDocument)
		r.Get("/documents/{kind}/{id}", h.apiGetDocument)
		r.Delete("/documents/{kind}/{id}", h.apiDeleteDocument)
		r.Put("/documents/{kind}/{id}/lines", h.apiReplaceLines)
		r.Post("/documents/{kind}/{id}/transitions/{action}", h.apiTransitionDocument)
		r.Post("/sales-orders/{id}/convert", h.apiConvertOrder)

		// ── Payments and balances ────────────────────────────────────────────
		r.Get("/payments", h.apiListPayments)
		r.Post("/payments", h.apiRecordPayment)
		r.Get("/payments/{id}", h.apiGetPayment)
		r.Delete("/payments/{id}", h.apiDeletePayment)
		r.Put("/payments/{id}/allocations", h.apiAllocatePayment)
		r.Get("/contacts/{contact}/balance", h.apiGetPartnerBalance)
		r.Post("/contacts/{contact}/balance/recompute", h.apiRecomputePartnerBalance)
		r.Get("/balances/verify", h.apiVerifyBalances)

		// ── Ledger ───────────────────────────────────────────────────────────
		r.Post("/journal-entries", h.apiPostJournalEntry)
		r.Post("/journal-entries/validate", h.apiValidateJournalEntry)
		r.Get("/journal-entries/{id}", h.apiGetJournalEntry)
		r.Post("/journal-entries/{id}/reverse", h.apiReverseJournalEntry)
		r.Get("/trial-balance", h.apiTrialBalance)
		r.Get("/reports/profit-and-loss", h.apiProfitAndLoss)
		r.Get("/accounts/{code}/statement", h.apiAccountStatement)
	})

	h.router = r
	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// intParam parses a positive integer URL parameter, writing a 400 on failure.
func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || v <= 0 {
		writeError(w, r, "invalid "+name+" parameter", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return v, true
}

// orgID extracts the {org} URL parameter.
func orgID(w http.ResponseWriter, r *http.Request) (int, bool) {
	return intParam(w, r, "org")
}

// optionalIntQuery parses an optional integer query parameter.
func optionalIntQuery(w http.ResponseWriter, r *http.Request, name string) (*int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, r, "invalid "+name+" query parameter", "BAD_REQUEST", http.StatusBadRequest)
		return nil, false
	}
	return &v, true
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
