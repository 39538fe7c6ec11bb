package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fastprodman/propledger/internal/auth"
	"github.com/fastprodman/propledger/internal/repos/ledger"
	"github.com/fastprodman/propledger/internal/services/purchase"
	"github.com/go-chi/chi/v5"
)

// Service is the purchase coordinator as seen by HTTP handlers.
type Service interface {
	Purchase(ctx context.Context, buyerID, propertyID string) error
	Property(ctx context.Context, id string) (ledger.Property, error)
	Sales(ctx context.Context, propertyID string) ([]ledger.SaleRecord, error)
	Account(ctx context.Context, id string) (ledger.Account, error)
}

var _ Service = (*purchase.Service)(nil)

// HandlerProvider wraps the purchase service and exposes HTTP handlers.
type HandlerProvider struct {
	svc      Service
	verifier auth.Verifier
	log      *slog.Logger
}

func NewHandler(svc Service, verifier auth.Verifier, log *slog.Logger) *HandlerProvider {
	if log == nil {
		log = slog.Default()
	}

	return &HandlerProvider{svc: svc, verifier: verifier, log: log}
}

type failure struct {
	status  int
	message string
}

const authMessage = "Error authenticating user. Please refresh page."

var failures = map[purchase.Kind]failure{
	purchase.KindAuthRequired:        {http.StatusUnauthorized, authMessage},
	purchase.KindAuthFailed:          {http.StatusUnauthorized, authMessage},
	purchase.KindPropertyIDRequired:  {http.StatusBadRequest, "Error retrieving property. Please wait and try again."},
	purchase.KindPropertyNotFound:    {http.StatusNotFound, "Error fetching property. Please wait and try again."},
	purchase.KindBuyerNotFound:       {http.StatusNotFound, "Error fetching user. Please wait and try again."},
	purchase.KindInsufficientBalance: {http.StatusConflict, "Insufficient balance for purchasing property."},
	purchase.KindOwnershipConflict:   {http.StatusConflict, "You cannot purchase properties that you already own."},
	purchase.KindContention:          {http.StatusServiceUnavailable, "Property is in high demand. Please wait and try again."},
	purchase.KindInternal:            {http.StatusInternalServerError, "Unexpected server error. Please wait and try again."},
}

// failureFor never returns a raw error string to the caller.
func failureFor(err error) failure {
	f, ok := failures[purchase.KindOf(err)]
	if !ok {
		return failures[purchase.KindInternal]
	}

	return f
}

type result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// --- Helpers ---

func (h *HandlerProvider) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		h.log.Error("failed to encode JSON response", "error", err)
	}
}

func (h *HandlerProvider) writeFailure(w http.ResponseWriter, err error) {
	f := failureFor(err)
	h.writeJSON(w, f.status, result{Success: false, Message: f.message})
}

// authenticate resolves the caller from the Authorization header.
func (h *HandlerProvider) authenticate(r *http.Request) (string, error) {
	token := auth.BearerToken(r)
	if token == "" {
		return "", purchase.Fail(purchase.KindAuthRequired, auth.ErrMissingToken)
	}

	userID, err := h.verifier.Verify(r.Context(), token)
	if err != nil {
		h.log.DebugContext(r.Context(), "token rejected", "error", err)

		return "", purchase.Fail(purchase.KindAuthFailed, err)
	}

	return userID, nil
}

// --- Handlers ---

// PurchaseHandler handles POST /purchase. The target comes from the
// Property header.
func (h *HandlerProvider) PurchaseHandler(w http.ResponseWriter, r *http.Request) {
	buyerID, err := h.authenticate(r)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	propertyID := strings.TrimSpace(r.Header.Get("Property"))
	if propertyID == "" {
		h.writeFailure(w, purchase.Fail(purchase.KindPropertyIDRequired, errors.New("missing Property header")))
		return
	}

	err = h.svc.Purchase(r.Context(), buyerID, propertyID)
	if err != nil {
		h.log.InfoContext(r.Context(), "purchase rejected",
			"buyer_id", buyerID, "property_id", propertyID, "kind", purchase.KindOf(err).String())
		h.writeFailure(w, err)

		return
	}

	h.writeJSON(w, http.StatusOK, result{Success: true})
}

// GetPropertyHandler handles GET /properties/{propertyId}
func (h *HandlerProvider) GetPropertyHandler(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Property(r.Context(), chi.URLParam(r, "propertyId"))
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, p)
}

// ListSalesHandler handles GET /properties/{propertyId}/sales
func (h *HandlerProvider) ListSalesHandler(w http.ResponseWriter, r *http.Request) {
	sales, err := h.svc.Sales(r.Context(), chi.URLParam(r, "propertyId"))
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
}

// GetAccountHandler handles GET /accounts/me
func (h *HandlerProvider) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := h.authenticate(r)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	a, err := h.svc.Account(r.Context(), userID)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	if a.Properties == nil {
		a.Properties = []string{}
	}

	h.writeJSON(w, http.StatusOK, a)
}
