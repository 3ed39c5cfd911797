package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/erazemk/popis/internal/metrics"
	"github.com/erazemk/popis/internal/model"
	"github.com/erazemk/popis/internal/store"
)

// CategoriesHandler handles category endpoints.
type CategoriesHandler struct {
	Store   *store.Store
	Metrics *metrics.Metrics
}

type categoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

type categoryResponse struct {
	model.Category
	ItemCount int `json:"itemCount"`
}

// List handles GET /api/categories.
func (h *CategoriesHandler) List(w http.ResponseWriter, r *http.Request) {
	categories := h.Store.Categories()

	resp := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		resp = append(resp, categoryResponse{Category: c, ItemCount: h.Store.ItemCount(c.ID)})
	}
	jsonResponse(w, http.StatusOK, resp)
}

// Get handles GET /api/categories/{id}.
func (h *CategoriesHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := h.Store.Category(chi.URLParam(r, "id"))
	if !ok {
		jsonError(w, http.StatusNotFound, "category not found")
		return
	}
	jsonResponse(w, http.StatusOK, categoryResponse{Category: c, ItemCount: h.Store.ItemCount(c.ID)})
}

// Create handles POST /api/categories.
func (h *CategoriesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.Store.AddCategory(r.Context(), req.Name, req.Color, req.Icon)
	h.Metrics.ObserveMutation("add_category", mutationResult(err))
	if err != nil {
		storeError(w, err)
		return
	}

	slog.Info("category created", "category", c.Name, "id", c.ID)
	jsonResponse(w, http.StatusCreated, categoryResponse{Category: *c})
}

// Update handles PUT /api/categories/{id}.
func (h *CategoriesHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.Store.EditCategory(r.Context(), chi.URLParam(r, "id"), req.Name, req.Color, req.Icon)
	h.Metrics.ObserveMutation("edit_category", mutationResult(err))
	if err != nil {
		storeError(w, err)
		return
	}

	slog.Info("category updated", "category", c.Name, "id", c.ID)
	jsonResponse(w, http.StatusOK, categoryResponse{Category: *c, ItemCount: h.Store.ItemCount(c.ID)})
}

// Delete handles DELETE /api/categories/{id}.
func (h *CategoriesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := h.Store.DeleteCategory(r.Context(), id)
	h.Metrics.ObserveMutation("delete_category", mutationResult(err))
	if err != nil {
		storeError(w, err)
		return
	}

	slog.Info("category deleted", "id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "category deleted"})
}
