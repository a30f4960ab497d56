package v1

import (
    "net/http"

    "github.com/tinoosan/fintrack/internal/dictionary"
    "github.com/tinoosan/fintrack/internal/ledger"
)

// POST /v1/categories
func (s *Server) postCategory(w http.ResponseWriter, r *http.Request) {
    var req postCategoryRequest
    if !decodeJSON(w, r, &req) { return }
    c, err := s.svc.Categories.Create(r.Context(), viewer(r).ID, req.Name, req.Type)
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusCreated, toCategoryResponse(c))
}

// GET /v1/categories?owner_id=&type=
func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
    owner, ok := ownerParam(w, r)
    if !ok { return }
    var typ *ledger.TxType
    if raw := r.URL.Query().Get("type"); raw != "" {
        t := ledger.TxType(raw)
        if !t.Valid() { badRequest(w, "type must be income or expense"); return }
        typ = &t
    }
    cs, err := s.svc.Categories.List(r.Context(), viewer(r), owner, typ)
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusOK, mapItems(cs, toCategoryResponse))
}

// DELETE /v1/categories/{id}
func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
    id, ok := pathID(w, r)
    if !ok { return }
    if err := s.svc.Categories.Delete(r.Context(), viewer(r).ID, id); err != nil { s.writeServiceErr(w, r, err); return }
    w.WriteHeader(http.StatusNoContent)
}

// GET /v1/dictionary/categories?type=
func (s *Server) getCategoriesDictionary(w http.ResponseWriter, r *http.Request) {
    var t *ledger.TxType
    if raw := r.URL.Query().Get("type"); raw != "" {
        tt := ledger.TxType(raw)
        if !tt.Valid() { badRequest(w, "type must be income or expense"); return }
        t = &tt
    }
    toJSON(w, http.StatusOK, listResponse[dictionary.CategoryDef]{Items: dictionary.CategoriesFor(t)})
}
