package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/guardianship-cli/internal/batch"
	"github.com/sells-group/guardianship-cli/internal/model"
	"github.com/sells-group/guardianship-cli/pkg/box"
)

func TestParseLookupMode(t *testing.T) {
	m, err := parseLookupMode("case-number")
	require.NoError(t, err)
	assert.Equal(t, model.LookupByCaseNumber, m)

	m, err = parseLookupMode("party-id")
	require.NoError(t, err)
	assert.Equal(t, model.LookupByPartyID, m)

	_, err = parseLookupMode("name")
	assert.Error(t, err)
}

func TestDefaultColumn(t *testing.T) {
	assert.Equal(t, "case_number", defaultColumn(model.LookupByCaseNumber))
	assert.Equal(t, "registry_id", defaultColumn(model.LookupByPartyID))
}

func TestWriteBatchOutput(t *testing.T) {
	recs := []model.CaseRecord{{CaseNumber: "A", Court: "Allen Circuit Court"}}

	var stdout bytes.Buffer
	require.NoError(t, writeBatchOutput(&stdout, "", recs))
	assert.Contains(t, stdout.String(), "A,Allen Circuit Court")

	path := filepath.Join(t.TempDir(), "out.json")
	stdout.Reset()
	require.NoError(t, writeBatchOutput(&stdout, path, recs))
	assert.Empty(t, stdout.String())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"court": "Allen Circuit Court"`)

	assert.Error(t, writeBatchOutput(&stdout, filepath.Join(t.TempDir(), "out.parquet"), recs))
}

func TestFormatBatchSummary(t *testing.T) {
	var buf bytes.Buffer
	formatBatchSummary(&buf, &batch.Result{
		RunID:   "run-1",
		Stats:   model.RunStats{Total: 4, Found: 2, NotFound: 1, Errored: 1},
		Elapsed: 1500 * time.Millisecond,
	})

	out := buf.String()
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "Total:")
	assert.Contains(t, out, "Not found:")
	assert.Contains(t, out, "Errors:")
	assert.Contains(t, out, "2s")
}

func TestReadBoxIdentifiers(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, vals := range [][]string{{"Registry_ID", "name"}, {"1001", "Doe"}, {"1002", "Roe"}} {
		row := sheet.AddRow()
		for _, v := range vals {
			row.AddCell().SetString(v)
		}
	}
	var book bytes.Buffer
	require.NoError(t, f.Write(&book))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2.0/files/55/content", r.URL.Path)
		_, _ = w.Write(book.Bytes())
	}))
	defer srv.Close()

	bc, err := box.NewClient(box.Config{AccessToken: "tok", BaseURL: srv.URL})
	require.NoError(t, err)

	ids, err := readBoxIdentifiers(context.Background(), bc, "55", batch.PartyIDColumn)
	require.NoError(t, err)
	assert.Equal(t, []string{"1001", "1002"}, ids)
}
