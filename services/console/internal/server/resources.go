package server

import (
	"net/http"

	"adminconsole/pkg/domain"
	"adminconsole/services/console/internal/catalog"

	"github.com/go-chi/chi/v5"
)

type filterRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (s *Server) resource(w http.ResponseWriter, r *http.Request) (*catalog.Resource, bool) {
	res, ok := s.app.Catalog.Get(chi.URLParam(r, "name"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown resource")
		return nil, false
	}
	return res, true
}

func (s *Server) handleResources(w http.ResponseWriter, _ *http.Request) {
	defs := make([]catalog.Definition, 0)
	for _, name := range s.app.Catalog.Names() {
		if res, ok := s.app.Catalog.Get(name); ok {
			defs = append(defs, res.Definition())
		}
	}
	writeJSON(w, http.StatusOK, defs)
}

func (s *Server) handleResourceState(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resource(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res.List().Snapshot())
}

func (s *Server) handleResourceFetch(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resource(w, r)
	if !ok {
		return
	}
	_ = res.List().Fetch(r.Context())
	writeJSON(w, http.StatusOK, res.List().Snapshot())
}

func (s *Server) handleResourceSearch(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resource(w, r)
	if !ok {
		return
	}
	var req searchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res.List().SetSearch(r.Context(), req.Term)
	writeJSON(w, http.StatusAccepted, res.List().Snapshot())
}

func (s *Server) handleResourceFilter(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resource(w, r)
	if !ok {
		return
	}
	var req filterRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := res.SetFilter(r.Context(), req.Key, req.Value); err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res.List().Snapshot())
}

func (s *Server) handleResourcePage(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resource(w, r)
	if !ok {
		return
	}
	var req pageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	_ = res.List().SetPage(r.Context(), req.Page)
	writeJSON(w, http.StatusOK, res.List().Snapshot())
}

func (s *Server) handleResourceCreate(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resource(w, r)
	if !ok {
		return
	}
	var rec domain.Record
	if err := decodeBody(r, &rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := res.Create(r.Context(), rec); err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res.List().Snapshot())
}

func (s *Server) handleResourceUpdate(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resource(w, r)
	if !ok {
		return
	}
	var rec domain.Record
	if err := decodeBody(r, &rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := res.Update(r.Context(), chi.URLParam(r, "id"), rec); err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res.List().Snapshot())
}

func (s *Server) handleResourceDelete(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resource(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := res.Delete(r.Context(), id, confirmed(r)); err != nil {
		writeActionError(w, err)
		return
	}
	s.audit(r, "console.resource.delete", "success", "resource", res.Definition().Name, "id", id)
	writeJSON(w, http.StatusOK, res.List().Snapshot())
}
