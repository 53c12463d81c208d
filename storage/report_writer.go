package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"price-tracker/models"
)

var _ ReportWriter = (*JSONReportWriter)(nil)

// JSONReportWriter writes the run outputs the renderer and publisher read.
type JSONReportWriter struct {
	dir string
}

// NewJSONReportWriter creates the output dir if needed.
func NewJSONReportWriter(dir string) (*JSONReportWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("report: create output dir: %w", err)
	}
	return &JSONReportWriter{dir: dir}, nil
}

// WriteReport writes resumen.json, graficos.json and the ranking files.
// Each file is replaced atomically.
func (w *JSONReportWriter) WriteReport(report *models.Report) error {
	files := []struct {
		name string
		data interface{}
	}{
		{"resumen.json", report},
		{"graficos.json", report.Charts},
		{"ranking_dia.json", nonNil(report.TopUpDay)},
		{"ranking_mes.json", nonNil(report.TopUpMonth)},
		{"ranking_anio.json", nonNil(report.TopUpYear)},
	}
	for _, f := range files {
		if err := writeJSONAtomic(filepath.Join(w.dir, f.name), f.data); err != nil {
			return err
		}
	}
	return nil
}

func nonNil(v []models.VariationRecord) []models.VariationRecord {
	if v == nil {
		return []models.VariationRecord{}
	}
	return v
}

func writeJSONAtomic(path string, data interface{}) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("report: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("report: encode %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("report: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("report: rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
