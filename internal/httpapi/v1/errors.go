package v1

import (
    "encoding/json"
    "errors"
    "net/http"

    "github.com/tinoosan/fintrack/internal/errs"
)

// errorResponse is the standard error payload for the API.
type errorResponse struct {
    Error string `json:"error"`
    Code  string `json:"code,omitempty"`
    Field string `json:"field,omitempty"`
}

// toJSON writes a JSON response with status code.
func toJSON(w http.ResponseWriter, status int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
    toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) { writeErr(w, http.StatusBadRequest, msg, "bad_request") }

// decodeJSON decodes the body into v, rejecting unknown fields. It writes 400 and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
    dec := json.NewDecoder(r.Body)
    dec.DisallowUnknownFields()
    if err := dec.Decode(v); err != nil {
        badRequest(w, "invalid JSON: "+err.Error())
        return false
    }
    return true
}

// writeServiceErr maps service errors onto HTTP statuses and stable error codes.
func (s *Server) writeServiceErr(w http.ResponseWriter, r *http.Request, err error) {
    var fe *errs.FieldError
    var pf *errs.PartialFailureError
    switch {
    case errors.As(err, &fe):
        toJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: fe.Error(), Code: "validation_error", Field: fe.Field})
    case errors.Is(err, errs.ErrInvalid):
        writeErr(w, http.StatusUnprocessableEntity, err.Error(), "validation_error")
    case errors.Is(err, errs.ErrUnauthorized):
        writeErr(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
    case errors.Is(err, errs.ErrForbidden):
        writeErr(w, http.StatusForbidden, "forbidden", "forbidden")
    case errors.Is(err, errs.ErrNotFound):
        writeErr(w, http.StatusNotFound, "not_found", "not_found")
    case errors.Is(err, errs.ErrDuplicateRequest):
        writeErr(w, http.StatusConflict, "a pending or accepted request already exists", "duplicate_request")
    case errors.Is(err, errs.ErrHasDependents):
        writeErr(w, http.StatusConflict, err.Error(), "has_dependents")
    case errors.Is(err, errs.ErrAlreadyExists):
        writeErr(w, http.StatusConflict, "already exists", "already_exists")
    case errors.Is(err, errs.ErrConflict):
        writeErr(w, http.StatusConflict, "concurrent update, retry", "conflict")
    case errors.As(err, &pf):
        // the service already logged and counted it; the id lets clients find the half-applied row
        toJSON(w, http.StatusInternalServerError, partialFailureResponse{
            Error:         "transaction partially applied; wallet balance will be reconciled",
            Code:          "partial_failure",
            Op:            pf.Op,
            TransactionID: pf.TransactionID,
            WalletID:      pf.WalletID,
        })
    default:
        s.log.Error("request failed", "path", r.URL.Path, "err", err)
        writeErr(w, http.StatusInternalServerError, "internal error", "internal")
    }
}
