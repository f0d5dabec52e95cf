package mediastore

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/peervc/peervc/internal/httpserver"
	"github.com/peervc/peervc/internal/metrics"
)

// Only media a call participant could plausibly share is accepted.
var allowedTypePrefixes = []string{"image/", "video/", "audio/"}

// Handlers exposes upload and download of shared media. A client uploads
// here first, then announces the returned URL over the signaling relay.
type Handlers struct {
	log      *slog.Logger
	metrics  *metrics.Metrics
	store    Store
	maxBytes int64
}

func NewHandlers(log *slog.Logger, m *metrics.Metrics, store Store, maxBytes int64) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Handlers{log: log, metrics: m, store: store, maxBytes: maxBytes}
}

func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /upload", h.handleUpload)
	mux.HandleFunc("GET /media/{id}", h.handleDownload)
}

type uploadResponse struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	MediaType string `json:"mediaType"`
}

func (h *Handlers) handleUpload(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")
	if !typeAllowed(contentType) {
		h.metrics.Inc(metrics.MediaUploadRejected)
		httpserver.WriteJSON(w, http.StatusUnsupportedMediaType, map[string]any{
			"error": "only image, video and audio uploads are accepted",
		})
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		h.metrics.Inc(metrics.MediaUploadRejected)
		httpserver.WriteJSON(w, http.StatusRequestEntityTooLarge, map[string]any{
			"error": "upload exceeds the size limit",
		})
		return
	}
	if len(data) == 0 {
		h.metrics.Inc(metrics.MediaUploadRejected)
		httpserver.WriteJSON(w, http.StatusBadRequest, map[string]any{"error": "empty upload"})
		return
	}

	id, err := h.store.Put(r.Context(), contentType, data)
	if err != nil {
		h.log.Error("media upload failed", "err", err)
		httpserver.WriteJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		return
	}

	h.metrics.Inc(metrics.MediaUpload)
	h.log.Info("media uploaded", "id", id, "type", contentType, "bytes", len(data))
	httpserver.WriteJSON(w, http.StatusCreated, uploadResponse{
		ID:        id,
		URL:       "/media/" + id,
		MediaType: contentType,
	})
}

func (h *Handlers) handleDownload(w http.ResponseWriter, r *http.Request) {
	blob, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.log.Error("media fetch failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", blob.ContentType)
	w.Header().Set("Cache-Control", "private, max-age=60")
	_, _ = w.Write(blob.Data)
}

func typeAllowed(contentType string) bool {
	for _, prefix := range allowedTypePrefixes {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}
