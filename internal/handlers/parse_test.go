package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/detective/core/internal/models"
)

func TestParseHandler(t *testing.T) {
	api := New(Deps{})

	t.Run("returns 200 OK for a nested hierarchy", func(t *testing.T) {
		body := `{"root": {"id": "root", "name": "Shop", "value": 100}}`

		req := httptest.NewRequest(http.MethodPost, "/parse", strings.NewReader(body))
		w := httptest.NewRecorder()

		api.ParseHandler(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	})

	t.Run("returns a positioned graph", func(t *testing.T) {
		body := `{
			"root": {
				"id": "root", "name": "Shop", "value": 100, "change": 2,
				"children": [
					{"id": "web", "name": "Web", "value": 60, "status": "critical"},
					{"id": "app", "name": "App", "value": 40, "change": -1}
				]
			}
		}`

		req := httptest.NewRequest(http.MethodPost, "/parse", strings.NewReader(body))
		w := httptest.NewRecorder()

		api.ParseHandler(w, req)

		var graph models.Graph
		require.NoError(t, json.NewDecoder(w.Body).Decode(&graph))

		require.Len(t, graph.Nodes, 3)
		require.Len(t, graph.Edges, 2)
		assert.Equal(t, models.LayoutTree, graph.Mode)
		assert.Equal(t, "root", graph.Nodes[0].ID)
		assert.Equal(t, 0.0, graph.Nodes[0].X)
		assert.Equal(t, 820.0, graph.Nodes[1].X)
		assert.Equal(t, "#ff4d4f", graph.Nodes[1].Fill)
		assert.Equal(t, "#ff7875", graph.Nodes[2].Fill)
		assert.NotEmpty(t, graph.Edges[0].Path)
	})

	t.Run("accepts yaml in the flat form", func(t *testing.T) {
		body := "nodes:\n  - id: root\n    name: Shop\n  - id: web\n    name: Web\n    parent: root\n"

		req := httptest.NewRequest(http.MethodPost, "/parse", strings.NewReader(body))
		w := httptest.NewRecorder()

		api.ParseHandler(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var graph models.Graph
		require.NoError(t, json.NewDecoder(w.Body).Decode(&graph))
		assert.Len(t, graph.Nodes, 2)
	})

	t.Run("pretty prints on request", func(t *testing.T) {
		body := `{"root": {"id": "root", "name": "Shop"}}`

		req := httptest.NewRequest(http.MethodPost, "/parse?pretty=true", strings.NewReader(body))
		w := httptest.NewRecorder()

		api.ParseHandler(w, req)

		assert.Contains(t, w.Body.String(), "\n  \"nodes\"")
	})

	t.Run("returns 400 for an empty body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/parse", strings.NewReader(""))
		w := httptest.NewRecorder()

		api.ParseHandler(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid hierarchy")
	})

	t.Run("returns 400 for malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/parse", strings.NewReader(`{"root": `))
		w := httptest.NewRecorder()

		api.ParseHandler(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("returns 400 listing every validation problem", func(t *testing.T) {
		body := `{"nodes": [
			{"id": "root", "name": "Root"},
			{"id": "a", "name": "A", "parent": "ghost"},
			{"id": "b", "parent": "root", "value": -4}
		]}`

		req := httptest.NewRequest(http.MethodPost, "/parse", strings.NewReader(body))
		w := httptest.NewRecorder()

		api.ParseHandler(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Contains(t, resp["error"], "unknown parent")
	})

	t.Run("returns 405 for GET request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/parse", nil)
		w := httptest.NewRecorder()

		api.ParseHandler(w, req)

		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}
