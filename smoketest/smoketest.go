// Package smoketest runs an end to end self check against a live region
// store: persistence round trips, algebra identities and range covers.
package smoketest

import (
	"context"
	"math/rand"
	"net/http"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"

	"github.com/prophet-town/s2geometry/regionstore"
	"github.com/prophet-town/s2geometry/sphere"
)

// Check is the outcome of a single smoke test step.
type Check struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// Report is the outcome of a smoke test run.
type Report struct {
	OK       bool          `json:"ok"`
	Duration time.Duration `json:"duration"`
	Checks   []Check       `json:"checks"`
}

func (r *Report) check(name string, err error) {
	c := Check{Name: name, OK: err == nil}
	if err != nil {
		c.Detail = err.Error()
		r.OK = false
	}
	r.Checks = append(r.Checks, c)
}

// Run exercises the store and the cell algebra with a scratch region. The
// scratch region is deleted again before returning.
func Run(ctx context.Context, store *regionstore.Store) Report {
	start := time.Now()
	report := Report{OK: true}

	// A fixed seed keeps runs comparable while still exercising unions of
	// every shape.
	rng := rand.New(rand.NewSource(1))
	name := "smoke-test-" + uuid.NewString()

	u := randomUnion(rng)

	report.check("save scratch region", func() error {
		_, err := store.Save(ctx, name, u)
		return err
	}())

	report.check("load scratch region", func() error {
		region, err := store.Get(ctx, name)
		if err != nil {
			return err
		}
		if !region.Cells.Equal(u) {
			return errors.New("stored region differs from saved region").
				WithTag("name", name)
		}
		return nil
	}())

	report.check("algebra identities", checkAlgebra(rng))
	report.check("range cover", checkRangeCover(rng))

	report.check("delete scratch region", func() error {
		if err := store.Delete(ctx, name); err != nil {
			return err
		}
		if _, err := store.Get(ctx, name); !errors.IsType(err, regionstore.ErrTypeNotFound) {
			return errors.New("deleted region still present").
				WithTag("name", name)
		}
		return nil
	}())

	report.Duration = time.Since(start)
	return report
}

// randomUnion returns a normalized union of random cells at mixed levels.
func randomUnion(rng *rand.Rand) sphere.CellUnion {
	ids := make([]sphere.CellID, 0, 16)
	for i := 0; i < 16; i++ {
		face := rng.Intn(sphere.NumFaces)
		id := sphere.CellIDFromFace(face)
		level := rng.Intn(8)
		for l := 0; l < level; l++ {
			children := id.Children()
			id = children[rng.Intn(4)]
		}
		ids = append(ids, id)
	}
	return sphere.NewCellUnion(ids)
}

// checkAlgebra verifies that difference, intersection and union fit
// together: (x∖y) ∪ (y∖x) ∪ (x∩y) must equal x∪y exactly, and x∖y must not
// intersect y.
func checkAlgebra(rng *rand.Rand) error {
	for i := 0; i < 10; i++ {
		x := randomUnion(rng)
		y := randomUnion(rng)

		xMinusY := x.Difference(y)
		yMinusX := y.Difference(x)
		both := x.Intersection(y)

		rebuilt := xMinusY.Union(yMinusX).Union(both)
		if !rebuilt.Equal(x.Union(y)) {
			return errors.New("difference/intersection does not rebuild the union").
				WithTag("iteration", i)
		}
		if xMinusY.IntersectsUnion(y) {
			return errors.New("difference intersects its subtrahend").
				WithTag("iteration", i)
		}
		if xMinusY.IntersectsUnion(yMinusX) {
			return errors.New("opposite differences intersect").
				WithTag("iteration", i)
		}
	}
	return nil
}

// checkRangeCover verifies that a min/max cover is gapless and bounded by
// the requested cells.
func checkRangeCover(rng *rand.Rand) error {
	for i := 0; i < 10; i++ {
		a := randomUnion(rng)
		b := randomUnion(rng)
		if len(a) == 0 || len(b) == 0 {
			continue
		}

		lo, hi := a[0], b[len(b)-1]
		if hi < lo {
			lo, hi = hi, lo
		}

		cover := sphere.NewCellUnionFromMinMax(lo, hi)
		if cover.Normalize() {
			return errors.New("range cover was not normalized").
				WithTag("iteration", i)
		}
		if cover[0].RangeMin() != lo.RangeMin() {
			return errors.New("range cover starts past the lower bound").
				WithTag("iteration", i)
		}
		if cover[len(cover)-1].RangeMax() != hi.RangeMax() {
			return errors.New("range cover ends short of the upper bound").
				WithTag("iteration", i)
		}
		for j := 1; j < len(cover); j++ {
			if cover[j].RangeMin() != cover[j-1].RangeMax().Next() {
				return errors.Newf("range cover has a gap before element %d", j).
					WithTag("iteration", i)
			}
		}
	}
	return nil
}

// HandleSmokeTest runs the suite and reports the outcome as JSON, with a 500
// status when any check failed.
func HandleSmokeTest(store *regionstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := Run(r.Context(), store)
		if !report.OK {
			logs.WithTag("checks", len(report.Checks)).
				Warn(errors.New("smoke test failed"))
		}

		b, err := json.Marshal(report)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if !report.OK {
			w.WriteHeader(http.StatusInternalServerError)
		}
		w.Write(b)
	}
}
