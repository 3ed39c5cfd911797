package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erazemk/popis/internal/auth"
	"github.com/erazemk/popis/internal/backend"
	"github.com/erazemk/popis/internal/metrics"
	"github.com/erazemk/popis/internal/model"
	"github.com/erazemk/popis/internal/store"
)

const testPassword = "correct-horse"

// failingBackend rejects every write.
type failingBackend struct {
	backend.Backend
}

func (failingBackend) Set(ctx context.Context, key, value string) error {
	return errors.New("disk full")
}

func newTestServer(t *testing.T, inventory backend.Backend) *httptest.Server {
	t.Helper()
	ctx := context.Background()

	creds := backend.NewMemory(0)
	if err := auth.SetPassword(ctx, creds, testPassword); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	st, err := store.Open(ctx, inventory)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}

	router := NewRouter(Config{
		Store:   st,
		Backend: creds,
		Metrics: metrics.New(),
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func setupTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	server := newTestServer(t, backend.NewMemory(0))
	return server, login(t, server)
}

func login(t *testing.T, server *httptest.Server) string {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"password": testPassword})
	resp, err := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}

	var loginResp map[string]string
	json.NewDecoder(resp.Body).Decode(&loginResp)
	token := loginResp["token"]
	if token == "" {
		t.Fatal("empty token from login")
	}
	return token
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader io.Reader = bytes.NewReader(nil)
	switch b := body.(type) {
	case nil:
	case string:
		bodyReader = strings.NewReader(b)
	default:
		data, _ := json.Marshal(b)
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do sends an authenticated request, checks the status and decodes the body into out.
func do(t *testing.T, method, url, token string, body any, wantStatus int, out any) {
	t.Helper()

	req, err := authRequest(method, url, token, body)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		data, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected %d, got %d: %s", method, url, wantStatus, resp.StatusCode, data)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
}

func createCategory(t *testing.T, server *httptest.Server, token, name string) categoryResponse {
	t.Helper()
	var c categoryResponse
	do(t, "POST", server.URL+"/api/categories", token, map[string]string{"name": name}, http.StatusCreated, &c)
	return c
}

func createItem(t *testing.T, server *httptest.Server, token string, body map[string]any) model.Item {
	t.Helper()
	var item model.Item
	do(t, "POST", server.URL+"/api/items", token, body, http.StatusCreated, &item)
	return item
}

func TestLoginEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"wrong password", `{"password":"wrong"}`, http.StatusUnauthorized},
		{"empty password", `{"password":""}`, http.StatusBadRequest},
		{"malformed body", `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(server.URL+"/api/auth/login", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("login request: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}

func TestLoginRateLimit(t *testing.T) {
	server, _ := setupTestServer(t)

	// setupTestServer already used one attempt.
	var last int
	for i := 0; i < LoginRateLimit; i++ {
		resp, err := http.Post(server.URL+"/api/auth/login", "application/json", strings.NewReader(`{"password":"wrong"}`))
		if err != nil {
			t.Fatalf("login request: %v", err)
		}
		resp.Body.Close()
		last = resp.StatusCode
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("expected 429 after %d attempts, got %d", LoginRateLimit+1, last)
	}
}

func TestUnauthenticatedAccess(t *testing.T) {
	server := newTestServer(t, backend.NewMemory(0))

	for _, path := range []string{"/api/items", "/api/categories"} {
		resp, err := http.Get(server.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s: expected 401, got %d", path, resp.StatusCode)
		}
	}

	req, _ := authRequest("GET", server.URL+"/api/items", "not-a-token", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad token, got %d", resp.StatusCode)
	}
}

func TestLogout(t *testing.T) {
	server, token := setupTestServer(t)

	do(t, "GET", server.URL+"/api/items", token, nil, http.StatusOK, nil)
	do(t, "POST", server.URL+"/api/auth/logout", token, nil, http.StatusOK, nil)
	do(t, "GET", server.URL+"/api/items", token, nil, http.StatusUnauthorized, nil)

	// A new login still works.
	fresh := login(t, server)
	do(t, "GET", server.URL+"/api/items", fresh, nil, http.StatusOK, nil)
}

func TestChangePassword(t *testing.T) {
	server, token := setupTestServer(t)

	do(t, "PUT", server.URL+"/api/auth/password", token,
		map[string]string{"currentPassword": "wrong", "newPassword": "new-password"}, http.StatusUnauthorized, nil)
	do(t, "PUT", server.URL+"/api/auth/password", token,
		map[string]string{"currentPassword": testPassword, "newPassword": "short"}, http.StatusUnprocessableEntity, nil)

	var resp loginResponse
	do(t, "PUT", server.URL+"/api/auth/password", token,
		map[string]string{"currentPassword": testPassword, "newPassword": "new-password"}, http.StatusOK, &resp)
	if resp.Token == "" {
		t.Fatal("expected a fresh token")
	}

	// The secret was rotated: old tokens stop working, the new one works.
	do(t, "GET", server.URL+"/api/items", token, nil, http.StatusUnauthorized, nil)
	do(t, "GET", server.URL+"/api/items", resp.Token, nil, http.StatusOK, nil)

	body, _ := json.Marshal(map[string]string{"password": testPassword})
	r, err := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	r.Body.Close()
	if r.StatusCode != http.StatusUnauthorized {
		t.Errorf("old password should be rejected, got %d", r.StatusCode)
	}
}

func TestCategoriesAPIFlow(t *testing.T) {
	server, token := setupTestServer(t)

	c := createCategory(t, server, token, "  Kitchen ")
	if c.Name != "Kitchen" {
		t.Errorf("expected trimmed name, got %q", c.Name)
	}
	if c.Color != model.DefaultCategoryColor || c.Icon != model.DefaultCategoryIcon {
		t.Errorf("expected default color and icon, got %q %q", c.Color, c.Icon)
	}

	var updated categoryResponse
	do(t, "PUT", server.URL+"/api/categories/"+c.ID, token,
		map[string]string{"name": "Pantry", "color": "#e74c3c", "icon": "kitchen"}, http.StatusOK, &updated)
	if updated.ID != c.ID || updated.Name != "Pantry" || updated.Color != "#e74c3c" {
		t.Errorf("unexpected updated category: %+v", updated)
	}

	var list []categoryResponse
	do(t, "GET", server.URL+"/api/categories", token, nil, http.StatusOK, &list)
	if len(list) != 1 || list[0].Name != "Pantry" {
		t.Fatalf("unexpected category list: %+v", list)
	}

	do(t, "DELETE", server.URL+"/api/categories/"+c.ID, token, nil, http.StatusOK, nil)
	do(t, "GET", server.URL+"/api/categories", token, nil, http.StatusOK, &list)
	if len(list) != 0 {
		t.Errorf("expected no categories, got %d", len(list))
	}
}

func TestCategoryErrors(t *testing.T) {
	server, token := setupTestServer(t)

	var body map[string]any
	do(t, "POST", server.URL+"/api/categories", token, map[string]string{"name": "   "}, http.StatusUnprocessableEntity, &body)
	fields, _ := body["fields"].(map[string]any)
	if _, ok := fields["name"]; !ok {
		t.Errorf("expected field error for name, got %v", body)
	}

	do(t, "GET", server.URL+"/api/categories/missing", token, nil, http.StatusNotFound, nil)
	do(t, "PUT", server.URL+"/api/categories/missing", token, map[string]string{"name": "X"}, http.StatusNotFound, nil)
	do(t, "DELETE", server.URL+"/api/categories/missing", token, nil, http.StatusNotFound, nil)
	do(t, "POST", server.URL+"/api/categories", token, "{", http.StatusBadRequest, nil)
}

func TestDeleteCategoryInUse(t *testing.T) {
	server, token := setupTestServer(t)

	kitchen := createCategory(t, server, token, "Kitchen")
	createItem(t, server, token, map[string]any{"name": "Blender", "categoryId": kitchen.ID, "quantity": 1})
	toaster := createItem(t, server, token, map[string]any{"name": "Toaster", "categoryId": kitchen.ID})

	var list []categoryResponse
	do(t, "GET", server.URL+"/api/categories", token, nil, http.StatusOK, &list)
	if list[0].ItemCount != 2 {
		t.Errorf("expected itemCount 2, got %d", list[0].ItemCount)
	}

	var one categoryResponse
	do(t, "GET", server.URL+"/api/categories/"+kitchen.ID, token, nil, http.StatusOK, &one)
	if one.ID != kitchen.ID || one.Name != "Kitchen" || one.ItemCount != 2 {
		t.Errorf("unexpected category: %+v", one)
	}

	var conflict struct {
		Error string `json:"error"`
		Count int    `json:"count"`
	}
	do(t, "DELETE", server.URL+"/api/categories/"+kitchen.ID, token, nil, http.StatusConflict, &conflict)
	if conflict.Count != 2 {
		t.Errorf("expected count 2, got %d", conflict.Count)
	}
	if !strings.Contains(conflict.Error, "Kitchen") {
		t.Errorf("expected error to name the category, got %q", conflict.Error)
	}

	do(t, "GET", server.URL+"/api/categories", token, nil, http.StatusOK, &list)
	if len(list) != 1 {
		t.Fatalf("category should still exist, got %d categories", len(list))
	}

	do(t, "DELETE", server.URL+"/api/items/"+toaster.ID, token, nil, http.StatusOK, nil)
	var items []model.Item
	do(t, "GET", server.URL+"/api/items", token, nil, http.StatusOK, &items)
	for _, item := range items {
		do(t, "DELETE", server.URL+"/api/items/"+item.ID, token, nil, http.StatusOK, nil)
	}
	do(t, "DELETE", server.URL+"/api/categories/"+kitchen.ID, token, nil, http.StatusOK, nil)
}

func TestItemsAPIFlow(t *testing.T) {
	server, token := setupTestServer(t)

	kitchen := createCategory(t, server, token, "Kitchen")
	office := createCategory(t, server, token, "Office")

	lamp := createItem(t, server, token, map[string]any{
		"name":        "Desk Lamp",
		"description": "LED",
		"categoryId":  office.ID,
		"location":    "Study",
		"quantity":    "2",
	})
	if lamp.Quantity != 2 {
		t.Errorf("expected quantity 2 from string, got %d", lamp.Quantity)
	}
	createItem(t, server, token, map[string]any{"name": "Blender", "categoryId": kitchen.ID, "location": "Counter"})

	var got model.Item
	do(t, "GET", server.URL+"/api/items/"+lamp.ID, token, nil, http.StatusOK, &got)
	if got.Name != "Desk Lamp" || got.Location != "Study" {
		t.Errorf("unexpected item: %+v", got)
	}

	var items []model.Item
	do(t, "GET", server.URL+"/api/items?category="+office.ID, token, nil, http.StatusOK, &items)
	if len(items) != 1 || items[0].ID != lamp.ID {
		t.Errorf("category filter: unexpected items %+v", items)
	}

	do(t, "GET", server.URL+"/api/items?q=LAMP", token, nil, http.StatusOK, &items)
	if len(items) != 1 || items[0].ID != lamp.ID {
		t.Errorf("search: unexpected items %+v", items)
	}

	do(t, "GET", server.URL+"/api/items?category=all&q=", token, nil, http.StatusOK, &items)
	if len(items) != 2 {
		t.Errorf("expected 2 items, got %d", len(items))
	}

	var updated model.Item
	do(t, "PUT", server.URL+"/api/items/"+lamp.ID, token, map[string]any{
		"name":       "Floor Lamp",
		"categoryId": kitchen.ID,
		"quantity":   7,
	}, http.StatusOK, &updated)
	if updated.ID != lamp.ID || updated.Name != "Floor Lamp" || updated.CategoryID != kitchen.ID || updated.Quantity != 7 {
		t.Errorf("unexpected updated item: %+v", updated)
	}
	if updated.Location != "" {
		t.Errorf("expected location cleared, got %q", updated.Location)
	}
	if !updated.CreatedAt.Equal(lamp.CreatedAt) {
		t.Errorf("createdAt changed: %v != %v", updated.CreatedAt, lamp.CreatedAt)
	}

	do(t, "DELETE", server.URL+"/api/items/"+lamp.ID, token, nil, http.StatusOK, nil)
	do(t, "GET", server.URL+"/api/items/"+lamp.ID, token, nil, http.StatusNotFound, nil)
}

func TestItemQuantityCoercion(t *testing.T) {
	server, token := setupTestServer(t)
	c := createCategory(t, server, token, "Misc")

	tests := []struct {
		name     string
		quantity any
		want     int
	}{
		{"absent", nil, 1},
		{"zero", 0, 1},
		{"negative", -5, 1},
		{"non-numeric string", "abc", 1},
		{"numeric string", "12", 12},
		{"number", 7, 7},
		{"leading integer", "3 pcs", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := map[string]any{"name": "Thing", "categoryId": c.ID}
			if tt.quantity != nil {
				body["quantity"] = tt.quantity
			}
			item := createItem(t, server, token, body)
			if item.Quantity != tt.want {
				t.Errorf("expected quantity %d, got %d", tt.want, item.Quantity)
			}
		})
	}
}

func TestItemValidation(t *testing.T) {
	server, token := setupTestServer(t)
	c := createCategory(t, server, token, "Misc")

	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{"missing name", map[string]any{"categoryId": c.ID}, "name"},
		{"blank name", map[string]any{"name": "  ", "categoryId": c.ID}, "name"},
		{"missing category", map[string]any{"name": "Thing"}, "categoryId"},
		{"unknown category", map[string]any{"name": "Thing", "categoryId": "nope"}, "categoryId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body struct {
				Fields map[string]string `json:"fields"`
			}
			do(t, "POST", server.URL+"/api/items", token, tt.body, http.StatusUnprocessableEntity, &body)
			if _, ok := body.Fields[tt.field]; !ok {
				t.Errorf("expected field error for %s, got %v", tt.field, body.Fields)
			}
		})
	}

	var items []model.Item
	do(t, "GET", server.URL+"/api/items", token, nil, http.StatusOK, &items)
	if len(items) != 0 {
		t.Errorf("expected no items after rejected creates, got %d", len(items))
	}

	do(t, "PUT", server.URL+"/api/items/missing", token, map[string]any{"name": "X", "categoryId": c.ID}, http.StatusNotFound, nil)
	do(t, "DELETE", server.URL+"/api/items/missing", token, nil, http.StatusNotFound, nil)
}

func TestPersistenceFailure(t *testing.T) {
	server := newTestServer(t, failingBackend{Backend: backend.NewMemory(0)})
	token := login(t, server)

	do(t, "POST", server.URL+"/api/categories", token, map[string]string{"name": "Kitchen"}, http.StatusInternalServerError, nil)

	var list []categoryResponse
	do(t, "GET", server.URL+"/api/categories", token, nil, http.StatusOK, &list)
	if len(list) != 0 {
		t.Errorf("failed write should not create a category, got %d", len(list))
	}
}

func TestHealthAndMetrics(t *testing.T) {
	server, token := setupTestServer(t)
	createCategory(t, server, token, "Kitchen")

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from /healthz, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("expected X-Frame-Options DENY, got %q", got)
	}

	resp, err = http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(data), `popis_mutations_total{operation="add_category",result="ok"} 1`) {
		t.Errorf("expected add_category mutation in metrics output")
	}
}

func TestStoreErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", store.ErrValidation, http.StatusUnprocessableEntity},
		{"unknown category", store.ErrUnknownCategory, http.StatusUnprocessableEntity},
		{"not found", store.ErrNotFound, http.StatusNotFound},
		{"in use", &store.CategoryInUseError{ID: "c1", Name: "Kitchen", Count: 3}, http.StatusConflict},
		{"persistence", store.ErrPersistence, http.StatusInternalServerError},
		{"unknown", errors.New("something unexpected"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			storeError(w, tt.err)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}

			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("response body is not valid JSON: %v", err)
			}
			if _, ok := body["error"]; !ok {
				t.Errorf("expected error key in body: %v", body)
			}
		})
	}
}
