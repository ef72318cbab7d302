// Package export turns finalized in-memory payloads into downloadable files.
// Encoders are pluggable: CSV and JSON are built in, the spreadsheet,
// document and image formats need a registered Serializer.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/detective/core/internal/models"
)

const DefaultDomain = "root-cause-analysis"

var ErrUnsupportedFormat = errors.New("unsupported export format")

// EmptyResultError rejects an export with nothing in it.
type EmptyResultError struct {
	DataType DataType
}

func (e *EmptyResultError) Error() string {
	if e.DataType == "" {
		return "no results to export"
	}
	return fmt.Sprintf("no %s results to export", e.DataType)
}

type DataType string

const (
	DataMetrics DataType = "metrics"
	DataHistory DataType = "history"
	DataRCA     DataType = "rca"
	DataAll     DataType = "all"
)

func (d DataType) Valid() bool {
	switch d {
	case DataMetrics, DataHistory, DataRCA, DataAll:
		return true
	}
	return false
}

// fileLabel is the data-type segment of a filename.
func (d DataType) fileLabel() string {
	if d == DataAll {
		return "complete"
	}
	return string(d)
}

type Format string

const (
	FormatExcel Format = "excel"
	FormatCSV   Format = "csv"
	FormatPDF   Format = "pdf"
	FormatPNG   Format = "png"
	FormatJSON  Format = "json"
)

var formats = map[Format]struct{ ext, mime string }{
	FormatExcel: {"xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	FormatCSV:   {"csv", "text/csv"},
	FormatPDF:   {"pdf", "application/pdf"},
	FormatPNG:   {"png", "image/png"},
	FormatJSON:  {"json", "application/json"},
}

func (f Format) Valid() bool {
	_, ok := formats[f]
	return ok
}

func (f Format) Extension() string { return formats[f].ext }

func (f Format) ContentType() string { return formats[f].mime }

// Table is a tabular payload. Cells are already rendered.
type Table struct {
	Header []string
	Rows   [][]string
}

// Payload is what gets exported. Data is a Table or any JSON-encodable
// value.
type Payload struct {
	Type DataType
	Data any
}

func (p Payload) empty() bool {
	switch d := p.Data.(type) {
	case nil:
		return true
	case Table:
		return len(d.Rows) == 0
	}
	return false
}

// Serializer encodes a payload.
type Serializer interface {
	Serialize(w io.Writer, p Payload) error
}

type SerializerFunc func(w io.Writer, p Payload) error

func (f SerializerFunc) Serialize(w io.Writer, p Payload) error { return f(w, p) }

// File is a finished export.
type File struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

type Exporter struct {
	domain string
	clock  clock.Clock

	mu          sync.RWMutex
	serializers map[Format]Serializer
}

func New(domain string, clk clock.Clock) *Exporter {
	if domain == "" {
		domain = DefaultDomain
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Exporter{
		domain: domain,
		clock:  clk,
		serializers: map[Format]Serializer{
			FormatCSV:  SerializerFunc(writeCSV),
			FormatJSON: SerializerFunc(writeJSON),
		},
	}
}

// Register installs or replaces the serializer for f.
func (e *Exporter) Register(f Format, s Serializer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.serializers[f] = s
}

// Filename follows <domain>_<datatype>_<YYYY-MM-DD>.<ext>.
func (e *Exporter) Filename(d DataType, f Format) string {
	return fmt.Sprintf("%s_%s_%s.%s", e.domain, d.fileLabel(), e.clock.Now().UTC().Format(time.DateOnly), f.Extension())
}

func (e *Exporter) Export(p Payload, f Format) (*File, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
	if p.empty() {
		return nil, &EmptyResultError{DataType: p.Type}
	}

	e.mu.RLock()
	s, ok := e.serializers[f]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q has no serializer", ErrUnsupportedFormat, f)
	}

	var buf bytes.Buffer
	if err := s.Serialize(&buf, p); err != nil {
		return nil, fmt.Errorf("serialize %s: %w", f, err)
	}

	return &File{
		ID:          uuid.NewString(),
		Filename:    e.Filename(p.Type, f),
		ContentType: f.ContentType(),
		Data:        buf.Bytes(),
	}, nil
}

// writeCSV writes tables as CSV and anything else as indented JSON.
func writeCSV(w io.Writer, p Payload) error {
	t, ok := p.Data.(Table)
	if !ok {
		return writeJSON(w, p)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

func writeJSON(w io.Writer, p Payload) error {
	data := p.Data
	if t, ok := data.(Table); ok {
		data = t.records()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (t Table) records() []map[string]string {
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]string, len(t.Header))
		for i, h := range t.Header {
			if i < len(row) {
				rec[h] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// sanitize keeps spreadsheet applications from evaluating text cells as
// formulas.
func sanitize(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@':
		return "'" + s
	}
	return s
}

// RCATable keys columns by the candidate's JSON field names.
func RCATable(results []models.RCACandidate) Table {
	t := Table{Header: []string{"dimension", "value", "impact", "confidence", "change_percent"}}
	for _, r := range results {
		t.Rows = append(t.Rows, []string{sanitize(r.Dimension), sanitize(r.Value), number(r.Impact), number(r.Confidence), number(r.ChangePercent)})
	}
	return t
}

func HistoryTable(points []models.HistoryPoint) Table {
	t := Table{Header: []string{"date", "value"}}
	for _, p := range points {
		t.Rows = append(t.Rows, []string{sanitize(p.Date), number(p.Value)})
	}
	return t
}

// RCAResultsCSV renders the analysis result download:
// rca_results_<metricType>_<YYYY-MM-DD>.csv with display headers.
func RCAResultsCSV(results []models.RCACandidate, metricType string, date time.Time) (*File, error) {
	if len(results) == 0 {
		return nil, &EmptyResultError{DataType: DataRCA}
	}
	t := RCATable(results)
	t.Header = []string{"Dimension", "Value", "Impact", "Confidence", "Change %"}

	var buf bytes.Buffer
	if err := writeCSV(&buf, Payload{Type: DataRCA, Data: t}); err != nil {
		return nil, fmt.Errorf("serialize rca results: %w", err)
	}
	return &File{
		ID:          uuid.NewString(),
		Filename:    fmt.Sprintf("rca_results_%s_%s.csv", metricType, date.Format(time.DateOnly)),
		ContentType: FormatCSV.ContentType(),
		Data:        buf.Bytes(),
	}, nil
}
