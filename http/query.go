package http

import (
	"net/http"

	"github.com/aukilabs/go-tooling/pkg/errors"

	"github.com/prophet-town/s2geometry/sphere"
)

// The query endpoints run the cell union algebra over tokens carried in the
// request body, without touching the store.

type cellsRequest struct {
	Cells []string `json:"cells"`
}

type binaryRequest struct {
	A []string `json:"a"`
	B []string `json:"b"`
}

type rangeRequest struct {
	Begin string `json:"begin,omitempty"`
	End   string `json:"end,omitempty"`
	Min   string `json:"min,omitempty"`
	Max   string `json:"max,omitempty"`
}

type expandRequest struct {
	Cells        []string `json:"cells"`
	Level        *int     `json:"level,omitempty"`
	Radius       *float64 `json:"radius,omitempty"`
	MaxLevelDiff int      `json:"max_level_diff,omitempty"`
}

type cellsResponse struct {
	Cells        []string `json:"cells"`
	CellCount    int      `json:"cell_count"`
	LeafCoverage uint64   `json:"leaf_coverage"`
	Changed      bool     `json:"changed,omitempty"`
}

func newCellsResponse(u sphere.CellUnion, changed bool) cellsResponse {
	return cellsResponse{
		Cells:        tokens(u),
		CellCount:    len(u),
		LeafCoverage: u.LeafCellsCovered(),
		Changed:      changed,
	}
}

// HandleNormalize canonicalizes a raw cell sequence.
func HandleNormalize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	instrumentQueryOp("normalize")

	var req cellsRequest
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

	writeJSON(w, http.StatusOK, newCellsResponse(u, changed))
}

// HandleBinaryOp serves union, intersection and difference of two regions.
func HandleBinaryOp(op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		instrumentQueryOp(op)

		var req binaryRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		rawA, err := parseTokens(req.A)
		if err != nil {
			writeError(w, r, err)
			return
		}
		rawB, err := parseTokens(req.B)
		if err != nil {
			writeError(w, r, err)
			return
		}
		a := sphere.NewCellUnion(rawA)
		b := sphere.NewCellUnion(rawB)

		var out sphere.CellUnion
		switch op {
		case "union":
			out = a.Union(b)
		case "intersection":
			out = a.Intersection(b)
		case "difference":
			out = a.Difference(b)
		default:
			writeError(w, r, errors.New("unknown query operation").
				WithType(ErrTypeBadRequest).
				WithTag("op", op))
			return
		}

		writeJSON(w, http.StatusOK, newCellsResponse(out, false))
	}
}

// HandleRange builds the minimal cover of a contiguous id range, either the
// half-open leaf range [begin, end) or the inclusive span of two cells.
func HandleRange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	instrumentQueryOp("range")

	var req rangeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var u sphere.CellUnion
	switch {
	case req.Min != "" && req.Max != "":
		lo := sphere.CellIDFromToken(req.Min)
		hi := sphere.CellIDFromToken(req.Max)
		if !lo.IsValid() || !hi.IsValid() || hi < lo {
			writeError(w, r, errors.New("invalid min/max cells").
				WithType(ErrTypeBadRequest).
				WithTag("min", req.Min).
				WithTag("max", req.Max))
			return
		}
		u = sphere.NewCellUnionFromMinMax(lo, hi)

	case req.Begin != "" && req.End != "":
		begin := sphere.CellIDFromToken(req.Begin)
		end := sphere.CellIDFromToken(req.End)
		// The end of the leaf range is one past the last leaf, which is not
		// itself a valid cell, so only ordering is checked here.
		if !begin.IsLeaf() || end < begin {
			writeError(w, r, errors.New("invalid begin/end leaf range").
				WithType(ErrTypeBadRequest).
				WithTag("begin", req.Begin).
				WithTag("end", req.End))
			return
		}
		u = sphere.NewCellUnionFromRange(begin, end)

	default:
		writeError(w, r, errors.New("missing begin/end or min/max").
			WithType(ErrTypeBadRequest))
		return
	}

	writeJSON(w, http.StatusOK, newCellsResponse(u, false))
}

// HandleExpand grows a region by a level rim or by an angular radius.
func HandleExpand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	instrumentQueryOp("expand")

	var req expandRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	raw, err := parseTokens(req.Cells)
	if err != nil {
		writeError(w, r, err)
		return
	}
	u := sphere.NewCellUnion(raw)

	switch {
	case req.Level != nil:
		if *req.Level < 0 || *req.Level > sphere.MaxLevel {
			writeError(w, r, errors.New("expansion level out of range").
				WithType(ErrTypeBadRequest).
				WithTag("level", *req.Level))
			return
		}
		u.ExpandAtLevel(*req.Level)

	case req.Radius != nil:
		if *req.Radius < 0 {
			writeError(w, r, errors.New("expansion radius is negative").
				WithType(ErrTypeBadRequest).
				WithTag("radius", *req.Radius))
			return
		}
		u.ExpandByRadius(*req.Radius, req.MaxLevelDiff)

	default:
		writeError(w, r, errors.New("missing expansion level or radius").
			WithType(ErrTypeBadRequest))
		return
	}

	writeJSON(w, http.StatusOK, newCellsResponse(u, false))
}
