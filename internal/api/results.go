package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/avscribe/av-engine/internal/database"
)

// ResultsStore is the persistence surface the results endpoints read.
type ResultsStore interface {
	ListResults(ctx context.Context, filter database.ResultFilter) ([]database.TranscriptionResult, error)
	SearchResults(ctx context.Context, query string, filter database.ResultFilter) ([]database.TranscriptionResult, error)
	GetResult(ctx context.Context, filePath string) (*database.TranscriptionResult, error)
	DeleteResult(ctx context.Context, filePath string) error
	Stats(ctx context.Context) (*database.ResultStats, error)
}

type ResultsHandler struct {
	store ResultsStore
}

func NewResultsHandler(store ResultsStore) *ResultsHandler {
	return &ResultsHandler{store: store}
}

func (h *ResultsHandler) Routes(r chi.Router) {
	r.Get("/results", h.List)
	r.Get("/results/search", h.Search)
	r.Get("/results/stats", h.GetStats)
	// File paths contain slashes, so single results are addressed by a
	// ?path= query parameter rather than a URL segment.
	r.Get("/results/file", h.Get)
	r.Get("/results/file/srt", h.GetSRT)
	r.Delete("/results/file", h.Delete)
}

func (h *ResultsHandler) filter(r *http.Request) (database.ResultFilter, error) {
	p, err := ParsePagination(r)
	if err != nil {
		return database.ResultFilter{}, err
	}
	return database.ResultFilter{
		FileType: r.URL.Query().Get("file_type"),
		Language: r.URL.Query().Get("language"),
		Limit:    p.Limit,
		Offset:   p.Offset,
	}, nil
}

// List returns persisted results, newest first.
func (h *ResultsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := h.filter(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := h.store.ListResults(r.Context(), filter)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list results")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"total":   len(results),
	})
}

// Search returns results whose transcript matches ?q= as a
// case-insensitive substring.
func (h *ResultsHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		WriteError(w, http.StatusBadRequest, "missing query parameter: q")
		return
	}
	filter, err := h.filter(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := h.store.SearchResults(r.Context(), q, filter)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "search failed")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"total":   len(results),
		"query":   q,
	})
}

// GetStats returns the dashboard aggregates.
func (h *ResultsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

// Get returns a single result by its file path.
func (h *ResultsHandler) Get(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		WriteError(w, http.StatusBadRequest, "missing query parameter: path")
		return
	}

	result, err := h.store.GetResult(r.Context(), path)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to load result")
		return
	}
	if result == nil {
		WriteError(w, http.StatusNotFound, "no result for path")
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// GetSRT exports the stored subtitles as text. ?speakers=true selects the
// speaker-labeled variant when the result has one.
func (h *ResultsHandler) GetSRT(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		WriteError(w, http.StatusBadRequest, "missing query parameter: path")
		return
	}

	result, err := h.store.GetResult(r.Context(), path)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to load result")
		return
	}
	if result == nil {
		WriteError(w, http.StatusNotFound, "no result for path")
		return
	}

	content := result.SRTContent
	if speakers, _ := QueryBool(r, "speakers"); speakers && result.SRTWithSpeakers != "" {
		content = result.SRTWithSpeakers
	}

	w.Header().Set("Content-Type", "application/x-subrip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+result.FileName+`.srt"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(content))
}

// Delete removes a result so the next batch run reprocesses the file.
func (h *ResultsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		WriteError(w, http.StatusBadRequest, "missing query parameter: path")
		return
	}

	if err := h.store.DeleteResult(r.Context(), path); err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to delete result")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"deleted": path})
}
