package sphere

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// The sphere is modeled as the six faces of a circumscribed cube, each face
// subdivided 30 times into a 2^30 x 2^30 grid of leaf cells ordered along a
// Hilbert curve. Face coordinates go through three spaces: (u,v) on the cube
// face in [-1,1], (s,t) in [0,1] after the quadratic reprojection that evens
// out cell sizes, and discrete (i,j) grid coordinates in [0, 2^30).

const (
	lookupBits = 4
	swapMask   = 0x01
	invertMask = 0x02
)

var (
	// posToIJ[orientation][pos] gives the (i,j) sub-cell, packed as i<<1|j,
	// visited at curve position pos within a cell of the given orientation.
	// ijToPos is its inverse.
	posToIJ = [4][4]int{
		{0, 1, 3, 2},
		{0, 2, 3, 1},
		{3, 2, 0, 1},
		{3, 1, 0, 2},
	}
	ijToPos = [4][4]int{
		{0, 1, 3, 2},
		{0, 3, 1, 2},
		{2, 3, 1, 0},
		{2, 1, 3, 0},
	}

	// posToOrientation[pos] is the orientation change a child at curve
	// position pos applies to its parent's orientation.
	posToOrientation = [4]int{swapMask, 0, 0, invertMask | swapMask}

	// Lookup tables processing four levels of the curve at a time. Keys and
	// values carry two orientation bits in their low end: lookupPos maps
	// "iiiijjjjoo" to "ppppppppoo", lookupIJ is the inverse.
	lookupIJ  [1 << (2*lookupBits + 2)]int
	lookupPos [1 << (2*lookupBits + 2)]int
)

func init() {
	initLookupCell(0, 0, 0, 0, 0, 0)
	initLookupCell(0, 0, 0, swapMask, swapMask, 0)
	initLookupCell(0, 0, 0, invertMask, invertMask, 0)
	initLookupCell(0, 0, 0, swapMask|invertMask, swapMask|invertMask, 0)
}

func initLookupCell(level, i, j, origOrientation, orientation, pos int) {
	if level == lookupBits {
		ij := (i << lookupBits) + j
		lookupPos[(ij<<2)+origOrientation] = (pos << 2) + orientation
		lookupIJ[(pos<<2)+origOrientation] = (ij << 2) + orientation
		return
	}

	level++
	i <<= 1
	j <<= 1
	pos <<= 2
	r := posToIJ[orientation]
	initLookupCell(level, i+(r[0]>>1), j+(r[0]&1), origOrientation, orientation^posToOrientation[0], pos)
	initLookupCell(level, i+(r[1]>>1), j+(r[1]&1), origOrientation, orientation^posToOrientation[1], pos+1)
	initLookupCell(level, i+(r[2]>>1), j+(r[2]&1), origOrientation, orientation^posToOrientation[2], pos+2)
	initLookupCell(level, i+(r[3]>>1), j+(r[3]&1), origOrientation, orientation^posToOrientation[3], pos+3)
}

// sizeIJ is the edge length in leaf cells of a cell at the given level.
func sizeIJ(level int) int {
	return 1 << uint(MaxLevel-level)
}

func clampInt(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// stToUV applies the quadratic projection from cell space to face space.
func stToUV(s float64) float64 {
	if s >= 0.5 {
		return (1 / 3.) * (4*s*s - 1)
	}
	return (1 / 3.) * (1 - 4*(1-s)*(1-s))
}

// uvToST inverts stToUV.
func uvToST(u float64) float64 {
	if u >= 0 {
		return 0.5 * math.Sqrt(1+3*u)
	}
	return 1 - 0.5*math.Sqrt(1-3*u)
}

// stToIJ converts an s or t value to the corresponding leaf grid coordinate.
func stToIJ(s float64) int {
	return clampInt(int(math.Floor(maxSize*s)), 0, maxSize-1)
}

// faceUVToXYZ turns face coordinates into the (unnormalized) direction
// vector of the point on the sphere.
func faceUVToXYZ(face int, u, v float64) r3.Vec {
	switch face {
	case 0:
		return r3.Vec{X: 1, Y: u, Z: v}
	case 1:
		return r3.Vec{X: -u, Y: 1, Z: v}
	case 2:
		return r3.Vec{X: -u, Y: -v, Z: 1}
	case 3:
		return r3.Vec{X: -1, Y: -v, Z: -u}
	case 4:
		return r3.Vec{X: v, Y: -1, Z: -u}
	default:
		return r3.Vec{X: v, Y: u, Z: -1}
	}
}

// faceOf returns the face whose center axis has the largest dot product
// with r, which is the face r projects onto.
func faceOf(r r3.Vec) int {
	abs := r3.Vec{X: math.Abs(r.X), Y: math.Abs(r.Y), Z: math.Abs(r.Z)}
	var f int
	switch {
	case abs.X > abs.Y && abs.X > abs.Z:
		f = 0
	case abs.Y > abs.Z:
		f = 1
	default:
		f = 2
	}
	switch f {
	case 0:
		if r.X < 0 {
			f += 3
		}
	case 1:
		if r.Y < 0 {
			f += 3
		}
	case 2:
		if r.Z < 0 {
			f += 3
		}
	}
	return f
}

// validFaceXYZToUV projects r onto the given face. The face must be the one
// r actually lies over, so the divisor is never zero.
func validFaceXYZToUV(face int, r r3.Vec) (u, v float64) {
	switch face {
	case 0:
		return r.Y / r.X, r.Z / r.X
	case 1:
		return -r.X / r.Y, r.Z / r.Y
	case 2:
		return -r.X / r.Z, -r.Y / r.Z
	case 3:
		return r.Z / r.X, r.Y / r.X
	case 4:
		return r.Z / r.Y, -r.X / r.Y
	default:
		return -r.Y / r.Z, -r.X / r.Z
	}
}

func xyzToFaceUV(r r3.Vec) (face int, u, v float64) {
	face = faceOf(r)
	u, v = validFaceXYZToUV(face, r)
	return face, u, v
}

// cellIDFromFaceIJ returns the leaf cell at grid position (i, j) on the
// given face.
func cellIDFromFaceIJ(f, i, j int) CellID {
	// The final value is shifted up one bit at the end to append the
	// trailing marker bit.
	n := uint64(f) << (posBits - 1)

	// Alternate faces start with opposite curve orientations so the curve
	// stays continuous across the whole sphere.
	bits := f & swapMask

	// Each round folds four bits of i and four of j through the lookup
	// table into eight position bits, threading the orientation bits
	// through in the low end of the key.
	for k := 7; k >= 0; k-- {
		mask := (1 << lookupBits) - 1
		bits += ((i >> uint(k*lookupBits)) & mask) << (lookupBits + 2)
		bits += ((j >> uint(k*lookupBits)) & mask) << 2
		bits = lookupPos[bits]
		n |= uint64(bits>>2) << (uint(k) * 2 * lookupBits)
		bits &= swapMask | invertMask
	}

	return CellID(n*2 + 1)
}

// faceIJOrientation is the inverse of cellIDFromFaceIJ: it recovers the
// face, the grid coordinates of a leaf cell inside this cell, and the
// Hilbert curve orientation of the cell.
func (ci CellID) faceIJOrientation() (f, i, j, orientation int) {
	f = ci.Face()
	orientation = f & swapMask
	nbits := MaxLevel - 7*lookupBits // bits handled by the first round

	for k := 7; k >= 0; k-- {
		orientation += (int(uint64(ci)>>uint(k*2*lookupBits+1)) & ((1 << uint(2*nbits)) - 1)) << 2
		orientation = lookupIJ[orientation]
		i += (orientation >> (lookupBits + 2)) << uint(k*lookupBits)
		j += ((orientation >> 2) & ((1 << lookupBits) - 1)) << uint(k*lookupBits)
		orientation &= swapMask | invertMask
		nbits = lookupBits
	}

	// For non-leaf cells the low bits decoded above came from the trailing
	// 10...0 marker rather than curve positions. Each "00" pair in that
	// suffix flipped the swap bit, which the parity of the marker length
	// undoes here.
	if ci.lsb()&0x1111111111111110 != 0 {
		orientation ^= swapMask
	}

	return f, i, j, orientation
}

// cellIDFromFaceIJWrap handles grid coordinates up to one cell outside the
// face by reprojecting them onto the neighboring face.
func cellIDFromFaceIJWrap(f, i, j int) CellID {
	i = clampInt(i, -1, maxSize)
	j = clampInt(j, -1, maxSize)

	// Map (i,j) to face coordinates barely outside [-1,1] and let the cube
	// projection pick the adjacent face. The linear transform is used in
	// both directions here so it cancels out; the clamp keeps the
	// reprojection division from drifting into the wrong leaf cell.
	const scale = 1.0 / maxSize
	limit := math.Nextafter(1, 2)
	u := math.Max(-limit, math.Min(limit, scale*float64((i<<1)+1-maxSize)))
	v := math.Max(-limit, math.Min(limit, scale*float64((j<<1)+1-maxSize)))

	f, u, v = xyzToFaceUV(faceUVToXYZ(f, u, v))
	return cellIDFromFaceIJ(f, stToIJ(0.5*(u+1)), stToIJ(0.5*(v+1)))
}

func cellIDFromFaceIJSame(f, i, j int, sameFace bool) CellID {
	if sameFace {
		return cellIDFromFaceIJ(f, i, j)
	}
	return cellIDFromFaceIJWrap(f, i, j)
}

// CellIDFromPoint returns the leaf cell containing the given point.
func CellIDFromPoint(p Point) CellID {
	f, u, v := xyzToFaceUV(p.Vec)
	i := stToIJ(uvToST(u))
	j := stToIJ(uvToST(v))
	return cellIDFromFaceIJ(f, i, j)
}

// centerSiTi returns the center of the cell in si/ti coordinates, which
// count half leaf cells so that every cell center is an integer position.
func (ci CellID) centerSiTi() (face, si, ti int) {
	face, i, j, _ := ci.faceIJOrientation()
	size := sizeIJ(ci.Level())
	return face, 2*(i&-size) + size, 2*(j&-size) + size
}

// Point returns the center of the cell on the unit sphere.
func (ci CellID) Point() Point {
	f, si, ti := ci.centerSiTi()
	u := stToUV(float64(si) / (2 * maxSize))
	v := stToUV(float64(ti) / (2 * maxSize))
	return Point{r3.Unit(faceUVToXYZ(f, u, v))}
}

// Vertex returns corner k of the cell (k = 0..3) as a point on the unit
// sphere. Consecutive values of k give corners that share an edge.
func (ci CellID) Vertex(k int) Point {
	f, i, j, _ := ci.faceIJOrientation()
	size := sizeIJ(ci.Level())
	iLo, jLo := i&-size, j&-size

	var vi, vj int
	switch k & 3 {
	case 0:
		vi, vj = iLo, jLo
	case 1:
		vi, vj = iLo+size, jLo
	case 2:
		vi, vj = iLo+size, jLo+size
	default:
		vi, vj = iLo, jLo+size
	}

	u := stToUV(float64(vi) / maxSize)
	v := stToUV(float64(vj) / maxSize)
	return Point{r3.Unit(faceUVToXYZ(f, u, v))}
}

// AllNeighbors returns all cells at the given level adjacent to the
// boundary of this cell, wrapping across face boundaries. The level must be
// at least the cell's own level. Cells touching a face corner can appear
// more than once.
func (ci CellID) AllNeighbors(level int) []CellID {
	var neighbors []CellID
	face, i, j, _ := ci.faceIJOrientation()

	// Lower left corner of the cell in leaf coordinates.
	size := sizeIJ(ci.Level())
	i &= -size
	j &= -size

	nbrSize := sizeIJ(level)

	// One pass produces the top, bottom, left, right and diagonal
	// neighbors. The loop test sits at the end to avoid overflow at the
	// face edge.
	for k := -nbrSize; ; k += nbrSize {
		var sameFace bool
		switch {
		case k < 0:
			sameFace = j+k >= 0
		case k >= size:
			sameFace = j+k < maxSize
		default:
			sameFace = true
			// Bottom and top rows.
			neighbors = append(neighbors,
				cellIDFromFaceIJSame(face, i+k, j-nbrSize, j-size >= 0).ParentAt(level),
				cellIDFromFaceIJSame(face, i+k, j+size, j+size < maxSize).ParentAt(level))
		}

		// Left and right columns, including the diagonals.
		neighbors = append(neighbors,
			cellIDFromFaceIJSame(face, i-nbrSize, j+k, sameFace && i-size >= 0).ParentAt(level),
			cellIDFromFaceIJSame(face, i+size, j+k, sameFace && i+size < maxSize).ParentAt(level))

		if k >= size {
			break
		}
	}

	return neighbors
}
