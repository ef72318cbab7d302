package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/detective/core/internal/format"
	"github.com/detective/core/internal/models"
	"github.com/detective/core/internal/tree"
)

func (a *API) GraphView(w http.ResponseWriter, r *http.Request) {
	writeOK(w, a.session.Snapshot())
}

// GraphNodes lists the flattened tree through the view's filter, or through
// a predicate built from the query string when one is given.
func (a *API) GraphNodes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if len(q) == 0 {
		nodes, err := a.session.Nodes()
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeOK(w, nodes)
		return
	}

	p, err := predicateFromQuery(q)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	nodes, err := a.session.FilterNodes(p)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, nodes)
}

func predicateFromQuery(q url.Values) (tree.Predicate, error) {
	p := tree.DefaultPredicate()
	if v := q.Get("category"); v != "" {
		p.Category = v
	}
	p.Query = q.Get("q")

	for key, dst := range map[string]*bool{
		"healthy":  &p.ShowHealthy,
		"warning":  &p.ShowWarning,
		"critical": &p.ShowCritical,
	} {
		if v := q.Get(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return p, &paramError{key, v}
			}
			*dst = b
		}
	}
	for key, dst := range map[string]*float64{
		"min": &p.MinValue,
		"max": &p.MaxValue,
	} {
		if v := q.Get(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return p, &paramError{key, v}
			}
			*dst = f
		}
	}
	return p, nil
}

type paramError struct {
	key, value string
}

func (e *paramError) Error() string {
	return "invalid " + e.key + " parameter: " + strconv.Quote(e.value)
}

func (a *API) GraphNavigation(w http.ResponseWriter, r *http.Request) {
	nav, err := a.session.Navigation()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, nav)
}

type modeRequest struct {
	Mode models.LayoutMode `json:"mode"`
}

// GraphMode toggles the layout, or sets it when the body names a mode.
func (a *API) GraphMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if req.Mode == "" {
		a.session.ToggleMode()
	} else if err := a.session.SetMode(req.Mode); err != nil {
		badRequest(w, err.Error())
		return
	}
	writeOK(w, a.session.State())
}

type selectRequest struct {
	ID string `json:"id"`
}

func (a *API) GraphSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if req.ID == "" {
		a.session.ClearSelection()
		writeOK(w, a.session.State())
		return
	}
	if _, err := a.session.Select(req.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, a.session.Snapshot().Selected)
}

type zoomRequest struct {
	Scale     *float64 `json:"scale"`
	Direction string   `json:"direction"`
}

func (a *API) GraphZoom(w http.ResponseWriter, r *http.Request) {
	var req zoomRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	var scale float64
	switch {
	case req.Scale != nil:
		if *req.Scale <= 0 {
			badRequest(w, "scale must be positive")
			return
		}
		scale = a.session.Zoom(*req.Scale)
	case req.Direction == "in":
		scale = a.session.ZoomIn()
	case req.Direction == "out":
		scale = a.session.ZoomOut()
	default:
		badRequest(w, `expected "scale" or "direction":"in|out"`)
		return
	}
	writeOK(w, map[string]any{"scale": scale, "viewport": a.session.State().Viewport})
}

type panRequest struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

func (a *API) GraphPan(w http.ResponseWriter, r *http.Request) {
	var req panRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	a.session.Pan(req.DX, req.DY)
	writeOK(w, a.session.State().Viewport)
}

// GraphFilter replaces the view's filter. Fields missing from the body keep
// their accept-everything defaults.
func (a *API) GraphFilter(w http.ResponseWriter, r *http.Request) {
	p := tree.DefaultPredicate()
	if err := decodeJSON(r, &p); err != nil {
		badRequest(w, err.Error())
		return
	}
	a.session.SetFilter(p)

	nodes, err := a.session.Nodes()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, nodes)
}

type expandRequest struct {
	Keys []string `json:"keys"`
}

func (a *API) GraphExpand(w http.ResponseWriter, r *http.Request) {
	var req expandRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	a.session.SetExpanded(req.Keys)
	writeOK(w, a.session.State())
}

type dragRequest struct {
	ID    string  `json:"id"`
	Phase string  `json:"phase"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

func (a *API) GraphDrag(w http.ResponseWriter, r *http.Request) {
	var req dragRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	var err error
	switch req.Phase {
	case "start":
		err = a.session.DragStart(req.ID, req.X, req.Y)
	case "move":
		err = a.session.DragMove(req.ID, req.X, req.Y)
	case "end":
		err = a.session.DragEnd(req.ID)
	default:
		badRequest(w, `phase must be "start", "move" or "end"`)
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	pos, _ := a.session.Position(req.ID)
	writeOK(w, pos)
}

type metricRequest struct {
	MetricType string `json:"metric_type"`
}

func (a *API) GraphMetric(w http.ResponseWriter, r *http.Request) {
	var req metricRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if !format.IsValidMetricType(req.MetricType) {
		badRequest(w, "unknown metric type "+strconv.Quote(req.MetricType))
		return
	}
	if err := a.session.SetMetricType(r.Context(), req.MetricType); err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, a.session.Snapshot())
}

func (a *API) GraphReset(w http.ResponseWriter, r *http.Request) {
	if err := a.session.Reset(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, a.session.Snapshot())
}
