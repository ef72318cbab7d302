package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/detective/core/internal/layout"
	"github.com/detective/core/internal/models"
	"github.com/detective/core/internal/parser"
	"github.com/detective/core/internal/tree"
)

// ParseHandler turns a posted hierarchy document (JSON or YAML) into a graph
// positioned with the tree layout on the default canvas.
func (a *API) ParseHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		badRequest(w, "Failed to read body")
		return
	}

	defer r.Body.Close()

	src, err := parser.ParseHierarchy(body)
	if err != nil {
		badRequest(w, "Invalid hierarchy: "+err.Error())
		return
	}

	t, err := tree.Load(src)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	graph := parser.BuildGraph(t.Root())
	graph.Mode = models.LayoutTree
	layout.StyleGraph(graph, layout.TreeLayout(t.Root(), a.canvas), "")

	w.Header().Set("Content-Type", "application/json")

	encoder := json.NewEncoder(w)
	if r.URL.Query().Get("pretty") == "true" {
		encoder.SetIndent("", "  ")
	}

	if err := encoder.Encode(graph); err != nil {
		a.log.Error("Error encoding response", zap.Error(err))
	}
}
