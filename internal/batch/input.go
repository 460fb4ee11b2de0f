package batch

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/guardianship-cli/internal/fetcher"
)

// Default identifier columns for each lookup mode.
const (
	CaseNumberColumn = "case_number"
	PartyIDColumn    = "registry_id"
)

// ReadInput reads the identifier column from a CSV or XLSX file. The first
// row is the header.
func ReadInput(ctx context.Context, path, column string) ([]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
		if err != nil {
			return nil, err
		}
		return IdentifiersFromRows(rows, column)
	case ".csv", ".txt":
		return readCSV(ctx, path, column)
	default:
		return nil, eris.Errorf("batch: unsupported input file %q (want .csv or .xlsx)", path)
	}
}

func readCSV(ctx context.Context, path, column string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "batch: open input")
	}
	defer f.Close() //nolint:errcheck

	valCh, errCh := fetcher.StreamColumn(ctx, f, column, fetcher.CSVOptions{})

	var ids []string
	for v := range valCh {
		ids = append(ids, v)
	}
	for err := range errCh {
		if err != nil {
			return nil, err
		}
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// IdentifiersFromRows returns the trimmed values of column from a table
// whose first row is the header.
func IdentifiersFromRows(rows [][]string, column string) ([]string, error) {
	if len(rows) == 0 {
		return nil, eris.New("batch: input has no header row")
	}

	idx, err := fetcher.ColumnIndex(rows[0], column)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		val := ""
		if idx < len(row) {
			val = strings.TrimSpace(row[idx])
		}
		ids = append(ids, val)
	}
	return ids, nil
}
