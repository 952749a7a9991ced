package smoketest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prophet-town/s2geometry/regionstore"
)

func openTestStore(t *testing.T) *regionstore.Store {
	t.Helper()

	store, err := regionstore.Open(filepath.Join(t.TempDir(), "regions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRun(t *testing.T) {
	store := openTestStore(t)

	report := Run(context.Background(), store)
	require.True(t, report.OK)
	require.Len(t, report.Checks, 5)
	for _, c := range report.Checks {
		require.Truef(t, c.OK, "check %q failed: %s", c.Name, c.Detail)
	}

	// The scratch region is cleaned up.
	infos, err := store.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, infos)
}

func TestHandleSmokeTest(t *testing.T) {
	store := openTestStore(t)

	r := httptest.NewRequest(http.MethodGet, "/smoke-test", nil)
	w := httptest.NewRecorder()
	HandleSmokeTest(store)(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var report Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	require.True(t, report.OK)
}

func TestHandleSmokeTestClosedStore(t *testing.T) {
	store, err := regionstore.Open(filepath.Join(t.TempDir(), "regions.db"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	r := httptest.NewRequest(http.MethodGet, "/smoke-test", nil)
	w := httptest.NewRecorder()
	HandleSmokeTest(store)(w, r)

	require.Equal(t, http.StatusInternalServerError, w.Code)

	var report Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	require.False(t, report.OK)
}
