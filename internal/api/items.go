package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/erazemk/popis/internal/metrics"
	"github.com/erazemk/popis/internal/model"
	"github.com/erazemk/popis/internal/store"
)

// ItemsHandler handles item endpoints.
type ItemsHandler struct {
	Store   *store.Store
	Metrics *metrics.Metrics
}

// quantity accepts a JSON number or a numeric string such as "3" from a
// form field. Anything else decodes as model.DefaultQuantity.
type quantity int

func (q *quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*q = quantity(model.ParseQuantity(s))
		return nil
	}
	*q = quantity(model.ParseQuantity(string(data)))
	return nil
}

type itemRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	CategoryID  string   `json:"categoryId"`
	Location    string   `json:"location"`
	Quantity    quantity `json:"quantity"`
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := model.ItemFilter{
		CategoryID: r.URL.Query().Get("category"),
		Query:      r.URL.Query().Get("q"),
	}
	jsonResponse(w, http.StatusOK, h.Store.ListItems(filter))
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Store.AddItem(r.Context(), req.Name, req.Description, req.CategoryID, req.Location, int(req.Quantity))
	h.Metrics.ObserveMutation("add_item", mutationResult(err))
	if err != nil {
		storeError(w, err)
		return
	}

	slog.Info("item created", "item", item.Name, "id", item.ID)
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, ok := h.Store.Item(chi.URLParam(r, "id"))
	if !ok {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Update handles PUT /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Store.EditItem(r.Context(), chi.URLParam(r, "id"), req.Name, req.Description, req.CategoryID, req.Location, int(req.Quantity))
	h.Metrics.ObserveMutation("edit_item", mutationResult(err))
	if err != nil {
		storeError(w, err)
		return
	}

	slog.Info("item updated", "item", item.Name, "id", item.ID)
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := h.Store.DeleteItem(r.Context(), id)
	h.Metrics.ObserveMutation("delete_item", mutationResult(err))
	if err != nil {
		storeError(w, err)
		return
	}

	slog.Info("item deleted", "id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}
