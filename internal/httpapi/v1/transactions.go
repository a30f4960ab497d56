package v1

import (
    "net/http"
    "strings"
    "time"

    "github.com/tinoosan/fintrack/internal/ledger"
    "github.com/tinoosan/fintrack/internal/meta"
    "github.com/tinoosan/fintrack/internal/service/transaction"
)

const maxIdempotencyKeyLen = 200

// POST /v1/transactions
// With an Idempotency-Key header a retried request returns the original transaction with 200
// instead of applying the balance effect again.
func (s *Server) postTransaction(w http.ResponseWriter, r *http.Request) {
    var req postTransactionRequest
    if !decodeJSON(w, r, &req) { return }
    key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
    if len(key) > maxIdempotencyKeyLen { badRequest(w, "Idempotency-Key too long"); return }

    date := req.Date
    if date.IsZero() { date = time.Now() }
    d := transaction.Draft{
        OwnerID:     viewer(r).ID,
        WalletID:    req.WalletID,
        CategoryID:  req.CategoryID,
        Type:        req.Type,
        Amount:      ledger.Amount(s.svc.Currency, req.AmountMinor),
        Description: req.Description,
        Date:        date,
        Metadata:    meta.New(req.Metadata),
    }
    t, replayed, err := s.svc.Transactions.CreateIdempotent(r.Context(), d, key)
    if err != nil { s.writeServiceErr(w, r, err); return }
    if replayed {
        if t.WalletID != d.WalletID || t.CategoryID != d.CategoryID || t.Type != d.Type || ledger.Minor(t.Amount) != req.AmountMinor {
            writeErr(w, http.StatusUnprocessableEntity, "Idempotency-Key was used with a different request", "idempotency_key_reused")
            return
        }
        w.Header().Set("Idempotent-Replayed", "true")
        toJSON(w, http.StatusOK, toTransactionResponse(t))
        return
    }
    toJSON(w, http.StatusCreated, toTransactionResponse(t))
}

// GET /v1/transactions?owner_id=&from=&to=&type=&wallet_id=&category_id=
func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
    owner, ok := ownerParam(w, r)
    if !ok { return }
    var f ledger.TransactionFilter
    if f.From, ok = optionalDate(w, r, "from"); !ok { return }
    if f.To, ok = optionalDate(w, r, "to"); !ok { return }
    if f.WalletID, ok = optionalUUID(w, r, "wallet_id"); !ok { return }
    if f.CategoryID, ok = optionalUUID(w, r, "category_id"); !ok { return }
    if raw := r.URL.Query().Get("type"); raw != "" {
        t := ledger.TxType(raw)
        f.Type = &t
    }
    items := make([]transactionResponse, 0)
    for t, err := range s.svc.Transactions.List(r.Context(), viewer(r), owner, f) {
        if err != nil { s.writeServiceErr(w, r, err); return }
        items = append(items, toTransactionResponse(t))
    }
    toJSON(w, http.StatusOK, listResponse[transactionResponse]{Items: items})
}

// DELETE /v1/transactions/{id}
func (s *Server) deleteTransaction(w http.ResponseWriter, r *http.Request) {
    id, ok := pathID(w, r)
    if !ok { return }
    if err := s.svc.Transactions.Delete(r.Context(), viewer(r).ID, id); err != nil { s.writeServiceErr(w, r, err); return }
    w.WriteHeader(http.StatusNoContent)
}

// GET /v1/summary?owner_id=&year=&month=
// Year and month default to the current UTC month.
func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
    owner, ok := ownerParam(w, r)
    if !ok { return }
    now := time.Now().UTC()
    year, ok := optionalInt(w, r, "year")
    if !ok { return }
    month, ok := optionalInt(w, r, "month")
    if !ok { return }
    if year == 0 { year = now.Year() }
    if month == 0 { month = int(now.Month()) }
    sum, err := s.svc.Transactions.MonthlySummary(r.Context(), viewer(r), owner, year, month)
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusOK, summaryResponse{
        Year:              sum.Year,
        Month:             sum.Month,
        IncomeMinor:       ledger.Minor(sum.Income),
        ExpenseMinor:      ledger.Minor(sum.Expense),
        NetMinor:          ledger.Minor(sum.Net),
        TotalBalanceMinor: ledger.Minor(sum.TotalBalance),
    })
}
