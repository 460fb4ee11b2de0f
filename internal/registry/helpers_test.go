package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func fixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(data)
}

func fixturePage(t *testing.T, status int, name string) *Page {
	t.Helper()
	page, err := ParsePage(status, fixture(t, name))
	require.NoError(t, err)
	return page
}
