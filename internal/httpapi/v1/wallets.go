package v1

import (
    "net/http"

    "github.com/tinoosan/fintrack/internal/ledger"
)

// POST /v1/wallets
func (s *Server) postWallet(w http.ResponseWriter, r *http.Request) {
    var req postWalletRequest
    if !decodeJSON(w, r, &req) { return }
    wl, err := s.svc.Wallets.Create(r.Context(), viewer(r).ID, req.Name, ledger.Amount(s.svc.Currency, req.InitialBalance))
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusCreated, toWalletResponse(wl))
}

// GET /v1/wallets?owner_id=
func (s *Server) listWallets(w http.ResponseWriter, r *http.Request) {
    owner, ok := ownerParam(w, r)
    if !ok { return }
    ws, err := s.svc.Wallets.List(r.Context(), viewer(r), owner)
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusOK, mapItems(ws, toWalletResponse))
}

// GET /v1/wallets/{id}?owner_id=
func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
    id, ok := pathID(w, r)
    if !ok { return }
    owner, ok := ownerParam(w, r)
    if !ok { return }
    wl, err := s.svc.Wallets.Get(r.Context(), viewer(r), owner, id)
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusOK, toWalletResponse(wl))
}

// PUT /v1/wallets/{id}/balance overrides the balance (manual correction).
func (s *Server) putWalletBalance(w http.ResponseWriter, r *http.Request) {
    id, ok := pathID(w, r)
    if !ok { return }
    var req putBalanceRequest
    if !decodeJSON(w, r, &req) { return }
    wl, err := s.svc.Wallets.SetBalance(r.Context(), viewer(r).ID, id, ledger.Amount(s.svc.Currency, req.BalanceMinor))
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusOK, toWalletResponse(wl))
}

// POST /v1/wallets/{id}/reconcile recomputes the balance from the transaction history.
func (s *Server) reconcileWallet(w http.ResponseWriter, r *http.Request) {
    id, ok := pathID(w, r)
    if !ok { return }
    rec, err := s.svc.Wallets.Recompute(r.Context(), viewer(r).ID, id)
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusOK, reconciliationResponse{
        WalletID:    rec.WalletID,
        BeforeMinor: ledger.Minor(rec.Before),
        AfterMinor:  ledger.Minor(rec.After),
        DriftMinor:  rec.DriftMinor,
    })
}

// DELETE /v1/wallets/{id}
func (s *Server) deleteWallet(w http.ResponseWriter, r *http.Request) {
    id, ok := pathID(w, r)
    if !ok { return }
    if err := s.svc.Wallets.Delete(r.Context(), viewer(r).ID, id); err != nil { s.writeServiceErr(w, r, err); return }
    w.WriteHeader(http.StatusNoContent)
}
