package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/hpungsan/funnier/internal/connectivity"
	"github.com/hpungsan/funnier/internal/errors"
	"github.com/hpungsan/funnier/internal/ops"
)

// Handlers contains HTTP route handlers for the viewer.
type Handlers struct {
	env      *ops.Env
	renderer *Renderer
}

// HandlePhotos handles GET /photos, the photos displayable on the current network.
func (h *Handlers) HandlePhotos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	input := ops.PhotosInput{
		All:     parseBoolParam(r, "all"),
		Network: q.Get("network"),
		Tag:     q.Get("tag"),
		Limit:   parseIntParam(r, "limit", ops.DefaultPhotosLimit),
		Offset:  parseIntParam(r, "offset", 0),
	}

	result, err := ops.Photos(h.env, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	cache := h.env.Cache
	h.renderer.renderPage(w, r, "photos", PhotosPageData{
		PageData: PageData{
			Title:   displayTitle(result.Title),
			Version: h.renderer.version,
			Nav:     "photos",
		},
		Description:     renderMarkdown(cache.Description()),
		Items:           result.Items,
		Pagination:      result.Pagination,
		Network:         result.Network,
		Total:           cache.Len(),
		Stale:           cache.IsStale(),
		LastViewedIndex: cache.LastViewedIndex(),
		All:             input.All,
		Tag:             input.Tag,
	})
}

// HandleDetail handles GET /photos/{id}. Viewing a photo records it as the
// last viewed position and marks it viewed.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("photo ID is required"))
		return
	}

	result, err := ops.LastViewed(r.Context(), h.env, ops.LastViewedInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if result.Photo == nil {
		h.renderer.renderError(w, r, errors.NewNotFound(id))
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	photos := h.env.Cache.Photos()
	data := DetailPageData{
		PageData: PageData{
			Title:   displayTitle(result.Photo.Title),
			Version: h.renderer.version,
			Nav:     "photos",
		},
		Photo:  *result.Photo,
		Index:  result.Index,
		Total:  len(photos),
		Cached: result.Photo.URL != "" && h.env.Blobs.Has(result.Photo.URL),
	}
	if result.Index > 0 && result.Index <= len(photos) {
		data.PrevID = photos[result.Index-1].ID
	}
	if result.Index+1 < len(photos) {
		data.NextID = photos[result.Index+1].ID
	}

	h.renderer.renderPage(w, r, "detail", data)
}

// HandleImage handles GET /photos/{id}/image. Cached images are always
// served; a miss is fetched only on an unmetered network.
func (h *Handlers) HandleImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	allowFetch := h.env.Status() == connectivity.Unmetered

	data, err := h.env.Cache.Image(r.Context(), id, allowFetch)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if data == nil {
		http.Error(w, "image not cached", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// HandleSync handles POST /sync, a manual refresh.
func (h *Handlers) HandleSync(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	result, err := ops.Sync(r.Context(), h.env, ops.SyncInput{
		Network: r.FormValue("network"),
		Trigger: "web",
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/photos")
		w.WriteHeader(http.StatusOK)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, "/photos", http.StatusSeeOther)
}

// HandleStatus handles GET /status: cache summary and recent sync history.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := ops.Status(r.Context(), h.env)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, status)
		return
	}

	history, err := ops.History(r.Context(), h.env, ops.HistoryInput{
		Limit:  parseIntParam(r, "limit", ops.DefaultHistoryLimit),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "status", StatusPageData{
		PageData: PageData{
			Title:   "Status",
			Version: h.renderer.version,
			Nav:     "status",
		},
		Status:     status,
		Runs:       history.Items,
		Pagination: history.Pagination,
	})
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// displayTitle returns title, or a placeholder for untitled photos and sets.
func displayTitle(title string) string {
	if strings.TrimSpace(title) == "" {
		return "Untitled"
	}
	return title
}
