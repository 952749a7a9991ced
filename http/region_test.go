package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prophet-town/s2geometry/regionstore"
	"github.com/prophet-town/s2geometry/sphere"
)

func newTestAPI(t *testing.T) *RegionAPI {
	t.Helper()

	store, err := regionstore.Open(filepath.Join(t.TempDir(), "regions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return &RegionAPI{Store: store}
}

func doJSON(t *testing.T, h http.HandlerFunc, method, target, body string, out any) *httptest.ResponseRecorder {
	t.Helper()

	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h(w, r)

	if out != nil && w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	}
	return w
}

func TestRegionLifecycle(t *testing.T) {
	api := newTestAPI(t)

	face := sphere.CellIDFromFace(2)

	t.Run("put normalizes sibling cells", func(t *testing.T) {
		children := face.Children()
		body, err := json.Marshal(saveRegionRequest{
			Cells: []string{
				children[0].Token(),
				children[1].Token(),
				children[2].Token(),
				children[3].Token(),
			},
		})
		require.NoError(t, err)

		var res saveRegionResponse
		w := doJSON(t, api.HandleRegion, http.MethodPut, "/v0/region?name=harbor", string(body), &res)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, 1, res.CellCount)
		require.True(t, res.Changed)
		require.Equal(t, uint64(1)<<60, res.LeafCoverage)
	})

	t.Run("get returns the normalized region", func(t *testing.T) {
		var res regionResponse
		w := doJSON(t, api.HandleRegion, http.MethodGet, "/v0/region?name=harbor", "", &res)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, []string{face.Token()}, res.Cells)
	})

	t.Run("list includes the region", func(t *testing.T) {
		var res []regionInfoResponse
		w := doJSON(t, api.HandleRegions, http.MethodGet, "/v0/regions", "", &res)
		require.Equal(t, http.StatusOK, w.Code)
		require.Len(t, res, 1)
		require.Equal(t, "harbor", res[0].Name)
	})

	t.Run("delete removes the region", func(t *testing.T) {
		w := doJSON(t, api.HandleRegion, http.MethodDelete, "/v0/region?name=harbor", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = doJSON(t, api.HandleRegion, http.MethodGet, "/v0/region?name=harbor", "", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRegionBadInput(t *testing.T) {
	api := newTestAPI(t)

	t.Run("malformed body", func(t *testing.T) {
		w := doJSON(t, api.HandleRegion, http.MethodPut, "/v0/region?name=harbor", "{", nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		w := doJSON(t, api.HandleRegion, http.MethodPut, "/v0/region?name=harbor", `{"cells":["zzz"]}`, nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("none token", func(t *testing.T) {
		w := doJSON(t, api.HandleRegion, http.MethodPut, "/v0/region?name=harbor", `{"cells":["X"]}`, nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("empty name", func(t *testing.T) {
		w := doJSON(t, api.HandleRegion, http.MethodPut, "/v0/region", `{"cells":[]}`, nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("delete unknown region", func(t *testing.T) {
		w := doJSON(t, api.HandleRegion, http.MethodDelete, "/v0/region?name=nowhere", "", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		w := doJSON(t, api.HandleRegion, http.MethodPost, "/v0/region?name=harbor", "{}", nil)
		require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestRegionContains(t *testing.T) {
	api := newTestAPI(t)

	face := sphere.CellIDFromFace(0)
	body, err := json.Marshal(saveRegionRequest{Cells: []string{face.Token()}})
	require.NoError(t, err)
	w := doJSON(t, api.HandleRegion, http.MethodPut, "/v0/region?name=harbor", string(body), nil)
	require.Equal(t, http.StatusOK, w.Code)

	t.Run("cell inside", func(t *testing.T) {
		leaf := face.ChildBeginAt(sphere.MaxLevel)
		var res containsResponse
		w := doJSON(t, api.HandleContains, http.MethodGet,
			"/v0/region/contains?name=harbor&cell="+leaf.Token(), "", &res)
		require.Equal(t, http.StatusOK, w.Code)
		require.True(t, res.Contains)
		require.True(t, res.Intersects)
	})

	t.Run("cell outside", func(t *testing.T) {
		other := sphere.CellIDFromFace(3)
		var res containsResponse
		w := doJSON(t, api.HandleContains, http.MethodGet,
			"/v0/region/contains?name=harbor&cell="+other.Token(), "", &res)
		require.Equal(t, http.StatusOK, w.Code)
		require.False(t, res.Contains)
		require.False(t, res.Intersects)
	})

	t.Run("point", func(t *testing.T) {
		// Face 0 is centered on the positive x axis, lat 0 lng 0.
		var res containsResponse
		w := doJSON(t, api.HandleContains, http.MethodGet,
			"/v0/region/contains?name=harbor&lat=0&lng=0", "", &res)
		require.Equal(t, http.StatusOK, w.Code)
		require.True(t, res.Contains)
	})

	t.Run("bad point", func(t *testing.T) {
		w := doJSON(t, api.HandleContains, http.MethodGet,
			"/v0/region/contains?name=harbor&lat=north&lng=0", "", nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing argument", func(t *testing.T) {
		w := doJSON(t, api.HandleContains, http.MethodGet,
			"/v0/region/contains?name=harbor", "", nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}
