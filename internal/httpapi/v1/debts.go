package v1

import (
    "net/http"

    "github.com/tinoosan/fintrack/internal/ledger"
    "github.com/tinoosan/fintrack/internal/service/debt"
)

// POST /v1/debts
func (s *Server) postDebt(w http.ResponseWriter, r *http.Request) {
    var req postDebtRequest
    if !decodeJSON(w, r, &req) { return }
    d, err := s.svc.Debts.Create(r.Context(), debt.Draft{
        OwnerID: viewer(r).ID,
        Name:    req.Name,
        Type:    req.Type,
        Amount:  ledger.Amount(s.svc.Currency, req.AmountMinor),
        DueDate: req.DueDate,
        Note:    req.Note,
    })
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusCreated, toDebtResponse(d))
}

// GET /v1/debts?owner_id=&name=&year=&month=&status=&type=
func (s *Server) listDebts(w http.ResponseWriter, r *http.Request) {
    owner, ok := ownerParam(w, r)
    if !ok { return }
    q := r.URL.Query()
    f := ledger.DebtFilter{Name: q.Get("name")}
    if f.Year, ok = optionalInt(w, r, "year"); !ok { return }
    if f.Month, ok = optionalInt(w, r, "month"); !ok { return }
    if raw := q.Get("status"); raw != "" {
        st := ledger.DebtStatus(raw)
        f.Status = &st
    }
    if raw := q.Get("type"); raw != "" {
        t := ledger.DebtType(raw)
        f.Type = &t
    }
    ds, err := s.svc.Debts.List(r.Context(), viewer(r), owner, f)
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusOK, mapItems(ds, toDebtResponse))
}

// GET /v1/debts/{id}?owner_id=
func (s *Server) getDebt(w http.ResponseWriter, r *http.Request) {
    id, ok := pathID(w, r)
    if !ok { return }
    owner, ok := ownerParam(w, r)
    if !ok { return }
    d, err := s.svc.Debts.Get(r.Context(), viewer(r), owner, id)
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusOK, toDebtResponse(d))
}

// PATCH /v1/debts/{id}/status
func (s *Server) patchDebtStatus(w http.ResponseWriter, r *http.Request) {
    id, ok := pathID(w, r)
    if !ok { return }
    var req patchDebtStatusRequest
    if !decodeJSON(w, r, &req) { return }
    d, err := s.svc.Debts.SetStatus(r.Context(), viewer(r).ID, id, req.Status)
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusOK, toDebtResponse(d))
}

// DELETE /v1/debts/{id}
func (s *Server) deleteDebt(w http.ResponseWriter, r *http.Request) {
    id, ok := pathID(w, r)
    if !ok { return }
    if err := s.svc.Debts.Delete(r.Context(), viewer(r).ID, id); err != nil { s.writeServiceErr(w, r, err); return }
    w.WriteHeader(http.StatusNoContent)
}
