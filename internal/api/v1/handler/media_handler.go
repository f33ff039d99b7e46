package handler

import (
	"errors"
	"net/http"

	"streampass/internal/service"

	"github.com/rs/zerolog"
)

// MediaHandler serves /videos either by redirecting to a presigned object
// URL or straight from a local directory.
type MediaHandler struct {
	mediaSvc service.MediaService
	dir      string
	logger   zerolog.Logger
}

// NewMediaHandler serves from dir when mediaSvc is nil.
func NewMediaHandler(mediaSvc service.MediaService, dir string, logger zerolog.Logger) *MediaHandler {
	return &MediaHandler{mediaSvc: mediaSvc, dir: dir, logger: logger}
}

func (h *MediaHandler) RegisterRoutes(mux *http.ServeMux) {
	if h.mediaSvc == nil {
		mux.Handle("GET /videos/", http.StripPrefix("/videos/", http.FileServer(http.Dir(h.dir))))
		return
	}
	mux.HandleFunc("GET /videos/{path...}", h.redirect)
}

// redirect godoc
// @Summary Download a video
// @Description Redirects to a short-lived URL for the video, or serves it from disk.
// @Tags media
// @Param path path string true "Video path"
// @Success 302
// @Failure 404 {string} string "not found"
// @Router /videos/{path} [get]
func (h *MediaHandler) redirect(w http.ResponseWriter, r *http.Request) {
	url, err := h.mediaSvc.PresignVideo(r.Context(), r.PathValue("path"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidMediaPath) {
			http.NotFound(w, r)
			return
		}
		h.logger.Error().Err(err).Msg("failed to presign video")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}
