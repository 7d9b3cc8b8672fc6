package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/kerbaras/comicdl/pkg/services"
)

type handler struct {
	manager *services.Manager
	logger  zerolog.Logger
}

// downloadRequest is the body of POST /comics/{comic}/downloads.
type downloadRequest struct {
	Chapters []string              `json:"chapters"`
	Sources  services.AssetSources `json:"sources"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handler) chapterStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	writeJSON(w, http.StatusOK, h.manager.GetChapterStatus(vars["comic"], vars["chapter"]))
}

// downloadChapters queues the chapters and returns at once; progress is read
// back through the chapter status route.
func (h *handler) downloadChapters(w http.ResponseWriter, r *http.Request) {
	comicID := mux.Vars(r)["comic"]

	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Chapters) == 0 {
		writeError(w, http.StatusBadRequest, "no chapters requested")
		return
	}

	// The batch outlives the request.
	wait, err := h.manager.Submit(context.Background(), comicID, req.Chapters, req.Sources)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	go func() {
		if err := wait(); err != nil {
			h.logger.Warn().Err(err).Str("comic_id", comicID).Msg("Download batch finished with errors")
		}
	}()

	statuses := make(map[string]services.ChapterStatus, len(req.Chapters))
	for _, id := range req.Chapters {
		statuses[id] = h.manager.GetChapterStatus(comicID, id)
	}
	writeJSON(w, http.StatusAccepted, statuses)
}

func (h *handler) deleteChapter(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.manager.DeleteChapter(r.Context(), vars["comic"], vars["chapter"]); err != nil {
		h.logger.Error().Err(err).Str("comic_id", vars["comic"]).Str("chapter_id", vars["chapter"]).Msg("Delete failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) cancelChapter(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if !h.manager.Cancel(vars["comic"], vars["chapter"]) {
		writeError(w, http.StatusNotFound, "chapter is not queued")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) downloadInfo(w http.ResponseWriter, r *http.Request) {
	total := 0
	if v := r.URL.Query().Get("total"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "total must be an integer")
			return
		}
		total = n
	}
	writeJSON(w, http.StatusOK, h.manager.GetDownloadInfo(mux.Vars(r)["comic"], total))
}

func (h *handler) cover(w http.ResponseWriter, r *http.Request) {
	path, ok := h.manager.GetDownloadedCoverURI(mux.Vars(r)["comic"])
	if !ok {
		writeError(w, http.StatusNotFound, "cover not downloaded")
		return
	}
	http.ServeFile(w, r, path)
}

func (h *handler) pages(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	pages, ok := h.manager.GetDownloadedPages(vars["comic"], vars["chapter"])
	if !ok {
		writeError(w, http.StatusNotFound, "chapter not downloaded")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"pages": pages})
}

func (h *handler) page(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	pages, ok := h.manager.GetDownloadedPages(vars["comic"], vars["chapter"])
	if !ok {
		writeError(w, http.StatusNotFound, "chapter not downloaded")
		return
	}
	i, err := strconv.Atoi(vars["page"])
	if err != nil || i >= len(pages) {
		writeError(w, http.StatusNotFound, "page out of range")
		return
	}
	http.ServeFile(w, r, pages[i])
}

func (h *handler) listQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Queue())
}

func (h *handler) listDownloads(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Downloads())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
