// Package export writes case records as CSV, XLSX, JSON or YAML.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/guardianship-cli/internal/model"
)

// Format is an output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatXLSX Format = "xlsx"
)

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "results"

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatYAML, FormatXLSX:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", eris.Errorf("export: unknown format %q", s)
	}
}

// FormatForPath picks the format from a file extension.
func FormatForPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", eris.Errorf("export: %q has no file extension", path)
	}
	return ParseFormat(ext)
}

// Write encodes records to w. XLSX is written as a workbook stream.
func Write(w io.Writer, format Format, records []model.CaseRecord) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, records)
	case FormatJSON:
		return WriteJSON(w, records)
	case FormatYAML:
		return WriteYAML(w, records)
	case FormatXLSX:
		f, err := workbook(records)
		if err != nil {
			return err
		}
		return eris.Wrap(f.Write(w), "export: write xlsx")
	default:
		return eris.Errorf("export: unknown format %q", format)
	}
}

// WriteFile writes records to path in the format implied by its extension.
func WriteFile(path string, records []model.CaseRecord) error {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}
	if format == FormatXLSX {
		return WriteXLSX(path, records)
	}

	file, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create file")
	}
	if err := Write(file, format, records); err != nil {
		_ = file.Close()
		return err
	}
	return eris.Wrap(file.Close(), "export: close file")
}

// WriteCSV writes a header row followed by one row per record. The header is
// written even when records is empty.
func WriteCSV(w io.Writer, records []model.CaseRecord) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if err := enc.EncodeHeader(model.CaseRecord{}); err != nil {
		return eris.Wrap(err, "export: encode csv header")
	}
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return eris.Wrap(err, "export: encode csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteJSON writes records as an indented JSON array.
func WriteJSON(w io.Writer, records []model.CaseRecord) error {
	if records == nil {
		records = []model.CaseRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(records), "export: encode json")
}

// WriteYAML writes records as a YAML sequence.
func WriteYAML(w io.Writer, records []model.CaseRecord) error {
	if records == nil {
		records = []model.CaseRecord{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(records); err != nil {
		return eris.Wrap(err, "export: encode yaml")
	}
	return eris.Wrap(enc.Close(), "export: close yaml encoder")
}

// WriteXLSX saves records to an XLSX workbook at path.
func WriteXLSX(path string, records []model.CaseRecord) error {
	f, err := workbook(records)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Save(path), "export: save xlsx")
}

func workbook(records []model.CaseRecord) (*xlsx.File, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return nil, eris.Wrap(err, "export: add sheet")
	}
	addRow(sheet, model.Columns)
	for _, r := range records {
		addRow(sheet, r.Values())
	}
	return f, nil
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
