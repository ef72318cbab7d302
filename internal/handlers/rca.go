package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/detective/core/internal/rca"
)

type rcaResponse struct {
	rca.Status
	Chart []rca.ChartPoint `json:"chart"`
}

// RCAStatus reports the runner state with results in the requested display
// order (sort=impact|confidence|change).
func (a *API) RCAStatus(w http.ResponseWriter, r *http.Request) {
	order := rca.SortOrder(r.URL.Query().Get("sort"))
	if !order.Valid() {
		badRequest(w, "invalid sort order "+string(order))
		return
	}

	st := a.runner.StatusSorted(order)
	writeOK(w, rcaResponse{Status: st, Chart: rca.ChartData(st.Results.Results)})
}

// RCARun starts an analysis. The body is an optional partial config laid
// over the configured defaults.
func (a *API) RCARun(w http.ResponseWriter, r *http.Request) {
	cfg := a.rcaDefaults
	if err := decodeJSON(r, &cfg); err != nil {
		badRequest(w, err.Error())
		return
	}

	id, err := a.runner.Start(cfg)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": id})
}

func (a *API) RCAStop(w http.ResponseWriter, r *http.Request) {
	a.runner.Stop()
	writeOK(w, a.runner.Status())
}

func (a *API) RCAReset(w http.ResponseWriter, r *http.Request) {
	a.runner.Reset()
	writeOK(w, a.runner.Status())
}

func (a *API) RCAExport(w http.ResponseWriter, r *http.Request) {
	f, err := a.runner.ExportCSV()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	a.log.Info("rca results exported", zap.String("export_id", f.ID), zap.String("filename", f.Filename))
	writeFile(w, f)
}
