package handlers

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/detective/core/internal/export"
	"github.com/detective/core/internal/notify"
)

// Export gathers a dataset from the data boundary and serializes it
// (type=metrics|history|rca|all, format=csv|json|excel|pdf|png).
func (a *API) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dataType := export.DataType(q.Get("type"))
	if dataType == "" {
		dataType = export.DataMetrics
	}
	f := export.Format(q.Get("format"))
	if f == "" {
		f = export.FormatCSV
	}
	if !dataType.Valid() {
		badRequest(w, "unknown data type "+string(dataType))
		return
	}
	if !f.Valid() {
		badRequest(w, "unknown format "+string(f))
		return
	}

	query := a.exportQuery
	if mt := q.Get("metric_type"); mt != "" {
		query.MetricType = mt
	}

	payload, err := export.Gather(r.Context(), a.source, dataType, query)
	if err == nil {
		var file *export.File
		if file, err = a.exporter.Export(payload, f); err == nil {
			a.log.Info("data exported",
				zap.String("export_id", file.ID),
				zap.String("type", string(dataType)),
				zap.String("format", string(f)))
			a.feed.Notify(notify.LevelSuccess, "Data exported successfully as "+strings.ToUpper(string(f)))
			writeFile(w, file)
			return
		}
	}

	var empty *export.EmptyResultError
	if errors.As(err, &empty) {
		a.log.Warn("nothing to export", zap.String("type", string(dataType)))
		a.feed.Notify(notify.LevelWarning, "No data to export")
		writeDomainError(w, err)
		return
	}

	a.log.Error("export failed", zap.String("type", string(dataType)), zap.String("format", string(f)), zap.Error(err))
	a.feed.Notify(notify.LevelError, "Export failed")
	writeDomainError(w, err)
}
