package fetcher

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectValues(valCh <-chan string, errCh <-chan error) ([]string, error) {
	var vals []string
	for v := range valCh {
		vals = append(vals, v)
	}
	for err := range errCh {
		if err != nil {
			return vals, err
		}
	}
	return vals, nil
}

func TestColumnIndex(t *testing.T) {
	idx, err := ColumnIndex([]string{"county", " Case_Number "}, "case_number")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	idx, err = ColumnIndex([]string{"\ufeffregistry_id"}, "registry_id")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	_, err = ColumnIndex([]string{"name"}, "registry_id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "registry_id" not found`)
}

func TestStreamColumn_Basic(t *testing.T) {
	input := "county,case_number\nMarion,49D08-1901-GU-000123\nAllen, 02D01-2003-GU-000045 \n"
	vals, err := collectValues(StreamColumn(context.Background(), strings.NewReader(input), "case_number", CSVOptions{}))
	require.NoError(t, err)
	assert.Equal(t, []string{"49D08-1901-GU-000123", "02D01-2003-GU-000045"}, vals)
}

func TestStreamColumn_ShortRowsStayAligned(t *testing.T) {
	input := "county,case_number\nMarion\nAllen,B\nLake,\n"
	vals, err := collectValues(StreamColumn(context.Background(), strings.NewReader(input), "case_number", CSVOptions{}))
	require.NoError(t, err)
	assert.Equal(t, []string{"", "B", ""}, vals)
}

func TestStreamColumn_StripsBOM(t *testing.T) {
	input := "\ufeffcase_number\nA\n"
	vals, err := collectValues(StreamColumn(context.Background(), strings.NewReader(input), "case_number", CSVOptions{}))
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, vals)
}

func TestStreamColumn_PipeDelimited(t *testing.T) {
	input := "registry_id|name\n1001|Doe\n"
	vals, err := collectValues(StreamColumn(context.Background(), strings.NewReader(input), "registry_id", CSVOptions{Delimiter: '|'}))
	require.NoError(t, err)
	assert.Equal(t, []string{"1001"}, vals)
}

func TestStreamColumn_Comment(t *testing.T) {
	input := "# exported list\ncase_number\nA\n"
	vals, err := collectValues(StreamColumn(context.Background(), strings.NewReader(input), "case_number", CSVOptions{Comment: '#'}))
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, vals)
}

func TestStreamColumn_HeaderOnly(t *testing.T) {
	vals, err := collectValues(StreamColumn(context.Background(), strings.NewReader("case_number\n"), "case_number", CSVOptions{}))
	require.NoError(t, err)
	assert.Empty(t, vals)
}

func TestStreamColumn_Empty(t *testing.T) {
	_, err := collectValues(StreamColumn(context.Background(), strings.NewReader(""), "case_number", CSVOptions{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no header row")
}

func TestStreamColumn_MissingColumn(t *testing.T) {
	_, err := collectValues(StreamColumn(context.Background(), strings.NewReader("name\nDoe\n"), "case_number", CSVOptions{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk on fire")
}

func TestStreamColumn_ReadError(t *testing.T) {
	_, err := collectValues(StreamColumn(context.Background(), failingReader{}, "case_number", CSVOptions{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv: read header")
}

func TestStreamColumn_ContextAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := collectValues(StreamColumn(ctx, strings.NewReader("case_number\na\nb\n"), "case_number", CSVOptions{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")
}
