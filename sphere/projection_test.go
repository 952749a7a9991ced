package sphere

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestCellIDFromPointRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(47))

	t.Run("leaf cells", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			id := randomCellIDAtLevel(rng, MaxLevel)
			require.Equal(t, id, CellIDFromPoint(id.Point()))
		}
	})

	t.Run("coarser cells contain their center", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			level := rng.Intn(MaxLevel + 1)
			id := randomCellIDAtLevel(rng, level)
			leaf := CellIDFromPoint(id.Point())
			require.True(t, id.Contains(leaf))
			require.Equal(t, id, leaf.ParentAt(level))
		}
	})
}

func TestCellIDFaceCenters(t *testing.T) {
	axes := []Point{
		PointFromCoords(1, 0, 0),
		PointFromCoords(0, 1, 0),
		PointFromCoords(0, 0, 1),
		PointFromCoords(-1, 0, 0),
		PointFromCoords(0, -1, 0),
		PointFromCoords(0, 0, -1),
	}
	for f := 0; f < NumFaces; f++ {
		id := CellIDFromFace(f)
		require.True(t, id.Point().ApproxEqual(axes[f]), "face %d", f)
		require.Equal(t, id, CellIDFromPoint(axes[f]).ParentAt(0), "face %d", f)
	}
}

func TestCellIDPointIsUnit(t *testing.T) {
	rng := rand.New(rand.NewSource(48))
	for i := 0; i < 100; i++ {
		id := randomCellIDAtLevel(rng, rng.Intn(MaxLevel+1))
		require.InDelta(t, 1, r3.Norm(id.Point().Vec), 1e-14)
		for k := 0; k < 4; k++ {
			require.InDelta(t, 1, r3.Norm(id.Vertex(k).Vec), 1e-14)
		}
	}
}

func TestCellIDVertexDiagonals(t *testing.T) {
	rng := rand.New(rand.NewSource(49))
	for i := 0; i < 200; i++ {
		level := rng.Intn(MaxLevel + 1)
		id := randomCellIDAtLevel(rng, level)

		// Opposite corners are two apart; both diagonals obey the level
		// metrics.
		for _, d := range []float64{
			id.Vertex(0).Angle(id.Vertex(2)),
			id.Vertex(1).Angle(id.Vertex(3)),
		} {
			require.GreaterOrEqual(t, d, MinDiag.Value(level)*(1-1e-9))
			require.LessOrEqual(t, d, MaxDiag.Value(level)*(1+1e-9))
		}

		// The center sits inside the cell, so no vertex is farther away than
		// the longest diagonal, and at least one is at least half a diagonal
		// away.
		center := id.Point()
		farthest := 0.0
		for k := 0; k < 4; k++ {
			d := center.Angle(id.Vertex(k))
			require.LessOrEqual(t, d, MaxDiag.Value(level)*(1+1e-9))
			if d > farthest {
				farthest = d
			}
		}
		require.GreaterOrEqual(t, farthest, MinDiag.Value(level)/2*(1-1e-9))
	}
}

func TestCellIDAllNeighborsOfFaces(t *testing.T) {
	for f := 0; f < NumFaces; f++ {
		nbrs := CellIDFromFace(f).AllNeighbors(0)

		// Four edge neighbors plus four corner entries that duplicate them.
		require.Equal(t, 8, len(nbrs))

		distinct := map[CellID]bool{}
		for _, nbr := range nbrs {
			require.True(t, nbr.IsFace())
			distinct[nbr] = true
		}
		require.Equal(t, 4, len(distinct))

		// A face touches every other face except the opposite one.
		require.False(t, distinct[CellIDFromFace(f)])
		require.False(t, distinct[CellIDFromFace((f+3)%NumFaces)])
	}
}

func TestCellIDAllNeighborsInterior(t *testing.T) {
	// A cell away from any face boundary, so the rings stay on one face and
	// contain no duplicates.
	id := CellIDFromPoint(PointFromCoords(1, 0.1, 0.1)).ParentAt(2)

	sameLevel := id.AllNeighbors(2)
	require.Equal(t, 8, len(sameLevel))
	seen := map[CellID]bool{}
	for _, nbr := range sameLevel {
		require.Equal(t, 2, nbr.Level())
		require.Equal(t, id.Face(), nbr.Face())
		require.NotEqual(t, id, nbr)
		require.False(t, seen[nbr])
		seen[nbr] = true
	}

	finer := id.AllNeighbors(3)
	require.Equal(t, 12, len(finer))
	seen = map[CellID]bool{}
	for _, nbr := range finer {
		require.Equal(t, 3, nbr.Level())
		require.False(t, id.Intersects(nbr))
		require.False(t, seen[nbr])
		seen[nbr] = true
	}

	// The finer ring hugs the cell boundary, so the coarser ring covers it.
	require.True(t, NewCellUnion(sameLevel).ContainsUnion(NewCellUnion(finer)))
}

func TestSTUVRoundTrip(t *testing.T) {
	require.Equal(t, -1.0, stToUV(0))
	require.Equal(t, 0.0, stToUV(0.5))
	require.Equal(t, 1.0, stToUV(1))
	require.Equal(t, 0.5, uvToST(0))

	rng := rand.New(rand.NewSource(50))
	for i := 0; i < 1000; i++ {
		s := rng.Float64()
		require.InDelta(t, s, uvToST(stToUV(s)), 1e-14)

		u := 2*rng.Float64() - 1
		require.InDelta(t, u, stToUV(uvToST(u)), 1e-14)
	}
}
