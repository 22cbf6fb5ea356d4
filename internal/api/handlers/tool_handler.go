package handlers

import (
	"errors"
	"net/http"

	"github.com/toolshed/marketplace/internal/application/services"
)

const manualFormField = "manual"

// ToolHandler handles tool and manual upload requests
type ToolHandler struct {
	catalog       *services.CatalogService
	maxUploadSize int64
}

// NewToolHandler creates a new tool handler
func NewToolHandler(catalog *services.CatalogService, maxUploadSize int64) *ToolHandler {
	return &ToolHandler{
		catalog:       catalog,
		maxUploadSize: maxUploadSize,
	}
}

// Create handles POST /api/tools
func (h *ToolHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input services.CreateToolInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	tool, err := h.catalog.CreateTool(r.Context(), currentUser(r).ID, input)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, tool)
}

// Get handles GET /api/tools/{id}
func (h *ToolHandler) Get(w http.ResponseWriter, r *http.Request) {
	tool, err := h.catalog.GetTool(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, tool)
}

// Delete handles DELETE /api/tools/{id}
func (h *ToolHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteTool(r.Context(), currentUser(r).ID, r.PathValue("id")); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadManual handles POST /api/uploads with a multipart "manual" file
func (h *ToolHandler) UploadManual(w http.ResponseWriter, r *http.Request) {
	// multipart framing adds a little on top of the file itself
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+64<<10)

	file, header, err := r.FormFile(manualFormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, http.StatusRequestEntityTooLarge, "file exceeds the upload limit")
			return
		}
		respondWithError(w, http.StatusBadRequest, "a manual file is required")
		return
	}
	defer file.Close()

	upload, err := h.catalog.UploadManual(r.Context(), currentUser(r).ID, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, upload)
}
