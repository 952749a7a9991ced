package http

import (
	"net/http"

	"github.com/aukilabs/go-tooling/pkg/errors"

	"github.com/prophet-town/s2geometry/sphere"
)

type cellResponse struct {
	Token     string   `json:"token"`
	Face      int      `json:"face"`
	Level     int      `json:"level"`
	IsLeaf    bool     `json:"is_leaf"`
	Path      string   `json:"path"`
	RangeMin  string   `json:"range_min"`
	RangeMax  string   `json:"range_max"`
	Parent    string   `json:"parent,omitempty"`
	Children  []string `json:"children,omitempty"`
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	Neighbors []string `json:"neighbors"`
}

// HandleCell describes a single cell: its place in the hierarchy, its leaf
// range, its center and its neighbors at the same level.
func HandleCell(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	token := r.URL.Query().Get("token")
	id := sphere.CellIDFromToken(token)
	if !id.IsValid() {
		writeError(w, r, errors.New("invalid cell token").
			WithType(ErrTypeBadToken).
			WithTag("token", token))
		return
	}

	res := cellResponse{
		Token:    id.Token(),
		Face:     id.Face(),
		Level:    id.Level(),
		IsLeaf:   id.IsLeaf(),
		Path:     id.String(),
		RangeMin: id.RangeMin().Token(),
		RangeMax: id.RangeMax().Token(),
	}

	if !id.IsFace() {
		res.Parent = id.Parent().Token()
	}
	if !id.IsLeaf() {
		for _, child := range id.Children() {
			res.Children = append(res.Children, child.Token())
		}
	}

	res.Lat, res.Lng = id.Point().LatLngDegrees()

	// Deduplicate: corner neighbors can be reported twice.
	neighbors := sphere.NewCellUnion(id.AllNeighbors(id.Level()))
	res.Neighbors = tokens(neighbors)

	writeJSON(w, http.StatusOK, res)
}
