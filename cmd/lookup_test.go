package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/guardianship-cli/internal/config"
	"github.com/sells-group/guardianship-cli/internal/export"
	"github.com/sells-group/guardianship-cli/internal/model"
	"github.com/sells-group/guardianship-cli/internal/registry"
)

// mockLooker implements registry.Looker for testing.
type mockLooker struct {
	mock.Mock
}

func (m *mockLooker) Lookup(ctx context.Context, id registry.Identifier) (model.CaseRecord, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.CaseRecord), args.Error(1)
}

const detailPage = `<html><body>
<div id="form-con">
  <h6>In the Marion Superior Court 1 Case No. 49D08-1901-GU-000123</h6>
  <h2 class="name">Doe, John Q.</h2>
  <p>Adult Ward</p>
  <p>Year of Birth: 1990</p>
  <p>Guardianship Type: Permanent</p>
  <table>
    <tr><th>Guardian</th><th>Scope</th><th>Issue Date</th><th>Expiration Date</th></tr>
    <tr><td>Jane Doe</td><td>Person and Estate</td><td>2020-01-01</td><td>2025-01-01</td></tr>
  </table>
</div>
</body></html>`

func TestLookupIdentifier(t *testing.T) {
	id, err := lookupIdentifier("49D08-1901-GU-000123", "")
	require.NoError(t, err)
	assert.Equal(t, registry.CaseNumber("49D08-1901-GU-000123"), id)

	id, err = lookupIdentifier("", "1001")
	require.NoError(t, err)
	assert.Equal(t, registry.PartyID("1001"), id)

	_, err = lookupIdentifier("a", "b")
	assert.Error(t, err)

	_, err = lookupIdentifier("", "")
	assert.ErrorIs(t, err, registry.ErrEmptyIdentifier)
}

func TestRunLookup_PrintsRecord(t *testing.T) {
	rec := model.CaseRecord{CaseNumber: "49D08-1901-GU-000123", Court: "Marion Superior Court 1"}

	looker := &mockLooker{}
	looker.On("Lookup", mock.Anything, registry.CaseNumber(rec.CaseNumber)).Return(rec, nil)

	var buf bytes.Buffer
	err := runLookup(context.Background(), looker, registry.CaseNumber(rec.CaseNumber), export.FormatJSON, &buf)
	require.NoError(t, err)
	looker.AssertExpectations(t)

	var out []map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "Marion Superior Court 1", out[0]["court"])
	assert.Len(t, out[0], len(model.Columns))
}

func TestRunLookup_ErrorStillPrintsEmptyRecord(t *testing.T) {
	looker := &mockLooker{}
	looker.On("Lookup", mock.Anything, registry.CaseNumber("X-1")).
		Return(model.EmptyRecord("X-1"), errors.New("connection reset by peer"))

	var buf bytes.Buffer
	err := runLookup(context.Background(), looker, registry.CaseNumber("X-1"), export.FormatCSV, &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset by peer")
	assert.Contains(t, buf.String(), "case_number,court")
	assert.Contains(t, buf.String(), "X-1,,,,,,,,,")
}

func TestNewLooker_AgainstPortal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /grp/Search/Detail/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1001", r.PathValue("id"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(detailPage))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	looker, err := newLooker(config.RegistryConfig{
		SearchURL:         srv.URL + "/grp/",
		DetailURLTemplate: srv.URL + "/grp/Search/Detail/%s",
		TimeoutSecs:       5,
		MaxAttempts:       1,
		RequestsPerSecond: 100,
	})
	require.NoError(t, err)

	rec, err := looker.Lookup(context.Background(), registry.PartyID("1001"))
	require.NoError(t, err)
	assert.Equal(t, "49D08-1901-GU-000123", rec.CaseNumber)
	assert.Equal(t, "Marion Superior Court 1", rec.Court)
	assert.Equal(t, "Doe, John Q.", rec.WardName)
	assert.Equal(t, "1990", rec.BirthYear)
	assert.Equal(t, "Jane Doe", rec.Guardians)
}

func TestNewLooker_RejectsRelativeSearchURL(t *testing.T) {
	_, err := newLooker(config.RegistryConfig{SearchURL: "/grp/", DetailURLTemplate: "/grp/%s"})
	assert.Error(t, err)
}
