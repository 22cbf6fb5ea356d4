package handlers

import (
	"net/http"

	"github.com/toolshed/marketplace/internal/application/services"
	"github.com/toolshed/marketplace/internal/domain/entities"
)

// LookupHandler serves the maker and category typeahead tables
type LookupHandler struct {
	lookups *services.LookupService
}

// NewLookupHandler creates a new lookup handler
func NewLookupHandler(lookups *services.LookupService) *LookupHandler {
	return &LookupHandler{lookups: lookups}
}

// Search handles GET /api/lookups/{kind}?q=
func (h *LookupHandler) Search(w http.ResponseWriter, r *http.Request) {
	kind, err := entities.ParseLookupKind(r.PathValue("kind"))
	if err != nil {
		respondWithError(w, http.StatusNotFound, "unknown lookup kind")
		return
	}

	entries, err := h.lookups.Search(r.Context(), kind, r.URL.Query().Get("q"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"results": entries,
		"count":   len(entries),
	})
}

type createLookupRequest struct {
	Name string `json:"name"`
}

// Create handles POST /api/lookups/{kind}
func (h *LookupHandler) Create(w http.ResponseWriter, r *http.Request) {
	kind, err := entities.ParseLookupKind(r.PathValue("kind"))
	if err != nil {
		respondWithError(w, http.StatusNotFound, "unknown lookup kind")
		return
	}

	var req createLookupRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	entry, err := h.lookups.Create(r.Context(), kind, req.Name)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, entry)
}
