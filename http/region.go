package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"

	"github.com/prophet-town/s2geometry/regionstore"
	"github.com/prophet-town/s2geometry/sphere"
)

// RegionAPI serves the named-region endpoints backed by a region store.
type RegionAPI struct {
	Store *regionstore.Store
}

type regionResponse struct {
	Name         string    `json:"name"`
	Cells        []string  `json:"cells"`
	CellCount    int       `json:"cell_count"`
	LeafCoverage uint64    `json:"leaf_coverage"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type regionInfoResponse struct {
	Name         string    `json:"name"`
	CellCount    int       `json:"cell_count"`
	LeafCoverage uint64    `json:"leaf_coverage"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type saveRegionRequest struct {
	Cells []string `json:"cells"`
}

type saveRegionResponse struct {
	Name         string `json:"name"`
	CellCount    int    `json:"cell_count"`
	LeafCoverage uint64 `json:"leaf_coverage"`
	Changed      bool   `json:"changed"`
}

// HandleRegions lists the stored regions.
func (a *RegionAPI) HandleRegions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	infos, err := a.Store.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]regionInfoResponse, len(infos))
	for i, info := range infos {
		out[i] = regionInfoResponse{
			Name:         info.Name,
			CellCount:    info.CellCount,
			LeafCoverage: info.LeafCoverage,
			UpdatedAt:    info.UpdatedAt,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleRegion fetches, replaces or deletes a single region addressed by the
// name query parameter.
func (a *RegionAPI) HandleRegion(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")

	switch r.Method {
	case http.MethodGet:
		region, err := a.Store.Get(r.Context(), name)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, regionResponse{
			Name:         region.Name,
			Cells:        tokens(region.Cells),
			CellCount:    len(region.Cells),
			LeafCoverage: region.Cells.LeafCellsCovered(),
			UpdatedAt:    region.UpdatedAt,
		})

	case http.MethodPut:
		var req saveRegionRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		u, err := parseTokens(req.Cells)
		if err != nil {
			writeError(w, r, err)
			return
		}
		changed := u.Normalize()

		if _, err := a.Store.Save(r.Context(), name, u); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, saveRegionResponse{
			Name:         name,
			CellCount:    len(u),
			LeafCoverage: u.LeafCellsCovered(),
			Changed:      changed,
		})

	case http.MethodDelete:
		if err := a.Store.Delete(r.Context(), name); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type containsResponse struct {
	Name       string `json:"name"`
	Cell       string `json:"cell"`
	Contains   bool   `json:"contains"`
	Intersects bool   `json:"intersects"`
}

// HandleContains answers membership queries against a stored region, for
// either a cell token or a lat/lng point.
func (a *RegionAPI) HandleContains(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	name := q.Get("name")

	var id sphere.CellID
	switch {
	case q.Get("cell") != "":
		id = sphere.CellIDFromToken(q.Get("cell"))
		if !id.IsValid() {
			writeError(w, r, errors.New("invalid cell token").
				WithType(ErrTypeBadToken).
				WithTag("token", q.Get("cell")))
			return
		}

	case q.Get("lat") != "" && q.Get("lng") != "":
		lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
		lng, lngErr := strconv.ParseFloat(q.Get("lng"), 64)
		if latErr != nil || lngErr != nil {
			writeError(w, r, errors.New("invalid lat/lng").
				WithType(ErrTypeBadRequest).
				WithTag("lat", q.Get("lat")).
				WithTag("lng", q.Get("lng")))
			return
		}
		id = sphere.CellIDFromPoint(sphere.PointFromLatLngDegrees(lat, lng))

	default:
		writeError(w, r, errors.New("missing cell token or lat/lng").
			WithType(ErrTypeBadRequest))
		return
	}

	region, err := a.Store.Get(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, containsResponse{
		Name:       name,
		Cell:       id.Token(),
		Contains:   region.Cells.Contains(id),
		Intersects: region.Cells.Intersects(id),
	})
}
