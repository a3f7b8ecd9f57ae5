package http

import (
	"net/http"

	"github.com/aussiebroadwan/clinic/pkg/httpx"
)

// HandleListCategories handles GET /v1/categories.
func HandleListCategories(w http.ResponseWriter, r *http.Request) {
	list, err := sessionFrom(r.Context()).ListCategories(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

// HandleCreateCategory handles POST /v1/categories.
func HandleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	c, err := sessionFrom(r.Context()).CreateCategory(r.Context(), req.Name, req.Description)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, c)
}

// HandleUpdateCategory handles PUT /v1/categories/{name}.
func HandleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	c, err := sessionFrom(r.Context()).UpdateCategory(r.Context(), r.PathValue("name"), req.Name, req.Description)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

// HandleDeleteCategory handles DELETE /v1/categories/{name}.
func HandleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := sessionFrom(r.Context()).DeleteCategory(r.Context(), r.PathValue("name")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStatistics handles GET /v1/statistics.
func HandleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := sessionFrom(r.Context()).GetStatistics(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stats)
}

// HandleOverview handles GET /v1/overview, the super-admin panel.
func HandleOverview(w http.ResponseWriter, r *http.Request) {
	o, err := sessionFrom(r.Context()).Overview(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, o)
}
