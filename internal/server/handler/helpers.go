// Package handler contains the HTTP handlers for the exchange API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gridironmarkets/gridiron/internal/domain"
	"github.com/gridironmarkets/gridiron/internal/ledger"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps a domain or ledger error to an HTTP status and sends
// it. Unknown errors become 500 and are logged.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "handler: request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}

// statusForError translates the error taxonomy into HTTP status codes.
// Validation failures are 400, missing entities 404, state conflicts 409,
// balance and arithmetic failures 422, held locks 423.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidExpiry),
		errors.Is(err, domain.ErrInvalidResolutionOutcome),
		errors.Is(err, domain.ErrCollateralAccountMismatch),
		errors.Is(err, domain.ErrClaimAccountMismatch),
		errors.Is(err, domain.ErrMissingSellerAccounts),
		errors.Is(err, domain.ErrSellerAccountMismatch):
		return http.StatusBadRequest

	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, ledger.ErrUnknownAsset),
		errors.Is(err, ledger.ErrUnknownAccount):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden

	case errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrOrderBookFull),
		errors.Is(err, domain.ErrMarketNotOpen),
		errors.Is(err, domain.ErrMarketAlreadyResolved),
		errors.Is(err, domain.ErrMarketNotExpired),
		errors.Is(err, domain.ErrMarketNotResolved),
		errors.Is(err, domain.ErrCannotRedeemForOutcome),
		errors.Is(err, domain.ErrNothingToRedeem),
		errors.Is(err, domain.ErrTooExpensive),
		errors.Is(err, domain.ErrInsufficientLiquidity):
		return http.StatusConflict

	case errors.Is(err, domain.ErrArithmeticOverflow),
		errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity

	case errors.Is(err, domain.ErrLockHeld):
		return http.StatusLocked

	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads the request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// parseListOpts extracts standard pagination parameters from the query
// string. Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}
}

// pathParam extracts a named path parameter from the request.
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}
