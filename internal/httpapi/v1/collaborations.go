package v1

import (
    "net/http"

    "github.com/tinoosan/fintrack/internal/ledger"
)

// POST /v1/collaborations asks the owner of owner_email for read access to their finances.
func (s *Server) postCollaboration(w http.ResponseWriter, r *http.Request) {
    var req postCollaborationRequest
    if !decodeJSON(w, r, &req) { return }
    g, err := s.svc.Collab.RequestAccess(r.Context(), viewer(r), req.OwnerEmail)
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusCreated, toCollaborationResponse(g))
}

// GET /v1/collaborations/outgoing
func (s *Server) outgoingCollaborations(w http.ResponseWriter, r *http.Request) {
    gs, err := s.svc.Collab.Outgoing(r.Context(), viewer(r).ID)
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusOK, mapItems(gs, toCollaborationResponse))
}

// GET /v1/collaborations/incoming lists pending requests addressed to the caller.
func (s *Server) incomingCollaborations(w http.ResponseWriter, r *http.Request) {
    gs, err := s.svc.Collab.Incoming(r.Context(), viewer(r).Email)
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusOK, mapItems(gs, toCollaborationResponse))
}

// GET /v1/collaborations/viewable lists the owners whose data the caller may read, self first.
func (s *Server) viewableOwners(w http.ResponseWriter, r *http.Request) {
    v := viewer(r)
    ids, err := s.svc.Collab.ResolveViewableOwners(r.Context(), v.ID, v.Email)
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusOK, listResponse[ledger.Identity]{Items: ids})
}

// POST /v1/collaborations/{id}/accept
func (s *Server) acceptCollaboration(w http.ResponseWriter, r *http.Request) {
    id, ok := pathID(w, r)
    if !ok { return }
    g, err := s.svc.Collab.Accept(r.Context(), viewer(r), id)
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusOK, toCollaborationResponse(g))
}

// POST /v1/collaborations/{id}/reject
func (s *Server) rejectCollaboration(w http.ResponseWriter, r *http.Request) {
    id, ok := pathID(w, r)
    if !ok { return }
    g, err := s.svc.Collab.Reject(r.Context(), viewer(r), id)
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusOK, toCollaborationResponse(g))
}

// DELETE /v1/collaborations/{id} cancels a pending request the caller sent.
func (s *Server) cancelCollaboration(w http.ResponseWriter, r *http.Request) {
    id, ok := pathID(w, r)
    if !ok { return }
    if err := s.svc.Collab.Cancel(r.Context(), viewer(r).ID, id); err != nil { s.writeServiceErr(w, r, err); return }
    w.WriteHeader(http.StatusNoContent)
}
