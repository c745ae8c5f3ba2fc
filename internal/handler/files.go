package handler

import (
	"errors"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mesa-digital/api/internal/storage"
	"github.com/rs/zerolog/log"
)

// ObjectServer writes stored objects to a response.
// Satisfied by *storage.FS.
type ObjectServer interface {
	Serve(w http.ResponseWriter, r *http.Request, bucket, name string) error
}

// FileHandler serves uploaded images publicly.
type FileHandler struct {
	objects ObjectServer
}

// NewFileHandler creates a new FileHandler.
func NewFileHandler(objects ObjectServer) *FileHandler {
	return &FileHandler{objects: objects}
}

// RegisterRoutes registers the object endpoint.
// Expected to be mounted at /storage.
func (h *FileHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{bucket}/{name}", h.Get)
}

// Get streams one object.
func (h *FileHandler) Get(w http.ResponseWriter, r *http.Request) {
	err := h.objects.Serve(w, r, chi.URLParam(r, "bucket"), chi.URLParam(r, "name"))
	if err == nil {
		return
	}
	if errors.Is(err, storage.ErrUnknownBucket) || errors.Is(err, storage.ErrInvalidName) || errors.Is(err, fs.ErrNotExist) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "file not found"})
		return
	}
	log.Error().Err(err).Msg("serve object")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}
