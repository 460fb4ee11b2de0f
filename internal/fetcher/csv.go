// Package fetcher talks to the court portal over HTTP and reads CSV and XLSX input files.
package fetcher

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the CSV column reader.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // comment character (0 = none)
	LazyQuotes bool
}

const utf8BOM = "\ufeff"

// ColumnIndex finds column in a header row. Matching ignores case,
// surrounding whitespace and a leading byte order mark.
func ColumnIndex(header []string, column string) (int, error) {
	want := strings.TrimSpace(column)
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, utf8BOM))
		if strings.EqualFold(h, want) {
			return i, nil
		}
	}
	return -1, eris.Errorf("table: column %q not found in header %v", column, header)
}

// StreamColumn reads a CSV table whose first row is the header and sends the
// trimmed value of column for every data row. Rows too short to hold the
// column send "", so values stay aligned with input rows. Both channels are
// closed when reading completes; at most one error is sent.
func StreamColumn(ctx context.Context, r io.Reader, column string, opts CSVOptions) (<-chan string, <-chan error) {
	valCh := make(chan string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(valCh)
		defer close(errCh)

		br := bufio.NewReader(r)
		if peek, err := br.Peek(len(utf8BOM)); err == nil && string(peek) == utf8BOM {
			_, _ = br.Discard(len(utf8BOM))
		}

		reader := csv.NewReader(br)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1

		header, err := reader.Read()
		if err == io.EOF {
			errCh <- eris.New("csv: input has no header row")
			return
		}
		if err != nil {
			errCh <- eris.Wrap(err, "csv: read header")
			return
		}
		idx, err := ColumnIndex(header, column)
		if err != nil {
			errCh <- err
			return
		}

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			val := ""
			if idx < len(record) {
				val = strings.TrimSpace(record[idx])
			}

			select {
			case valCh <- val:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return valCh, errCh
}
