package handlers

import (
	"net/http"
	"strconv"

	"github.com/toolshed/marketplace/internal/application/services"
	"github.com/toolshed/marketplace/pkg/geo"
	apperrors "github.com/toolshed/marketplace/pkg/errors"
)

// ListingHandler handles listing search and listing lifecycle requests
type ListingHandler struct {
	search  *services.ListingSearchService
	catalog *services.CatalogService
}

// NewListingHandler creates a new listing handler
func NewListingHandler(search *services.ListingSearchService, catalog *services.CatalogService) *ListingHandler {
	return &ListingHandler{
		search:  search,
		catalog: catalog,
	}
}

// Search handles GET /api/listings/search
func (h *ListingHandler) Search(w http.ResponseWriter, r *http.Request) {
	params, err := parseSearchParams(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	results, err := h.search.Search(r.Context(), params)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"listings": results,
		"count":    len(results),
	})
}

func parseSearchParams(r *http.Request) (services.ListingSearchParams, error) {
	query := r.URL.Query()
	params := services.ListingSearchParams{
		Query:      query.Get("q"),
		CategoryID: query.Get("category"),
	}

	lat, err := parseOptionalFloat(query.Get("lat"), "lat")
	if err != nil {
		return params, err
	}
	lon, err := parseOptionalFloat(query.Get("lon"), "lon")
	if err != nil {
		return params, err
	}
	if (lat == nil) != (lon == nil) {
		return params, apperrors.NewValidationError("lat and lon must be given together")
	}
	if lat != nil {
		params.Origin = &geo.Coordinates{Latitude: *lat, Longitude: *lon}
	}

	if params.RadiusKm, err = parseOptionalFloat(query.Get("radius"), "radius"); err != nil {
		return params, err
	}

	if raw := query.Get("near_me"); raw != "" {
		nearMe, err := strconv.ParseBool(raw)
		if err != nil {
			return params, apperrors.NewValidationError("invalid near_me parameter")
		}
		params.UseOwnAddress = nearMe
	}
	if params.RadiusKm != nil && params.Origin == nil && !params.UseOwnAddress {
		return params, apperrors.NewValidationError("radius requires an origin")
	}
	if user := currentUser(r); user != nil {
		params.ViewerID = user.ID
	}

	if params.Limit, err = parseOptionalInt(query.Get("limit"), "limit"); err != nil {
		return params, err
	}
	if params.Offset, err = parseOptionalInt(query.Get("offset"), "offset"); err != nil {
		return params, err
	}
	return params, nil
}

// Create handles POST /api/listings
func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input services.CreateListingInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	listing, err := h.catalog.CreateListing(r.Context(), currentUser(r).ID, input)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, listing)
}

type setActiveRequest struct {
	Active *bool `json:"active"`
}

// SetActive handles PATCH /api/listings/{id}
func (h *ListingHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if req.Active == nil {
		respondWithError(w, http.StatusBadRequest, "active is required")
		return
	}

	listing, err := h.catalog.SetListingActive(r.Context(), currentUser(r).ID, r.PathValue("id"), *req.Active)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, listing)
}

// Delete handles DELETE /api/listings/{id}
func (h *ListingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteListing(r.Context(), currentUser(r).ID, r.PathValue("id")); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
