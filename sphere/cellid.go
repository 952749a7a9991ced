// Package sphere implements a hierarchical decomposition of the unit sphere:
// 64-bit cell identifiers over a Hilbert-curve subdivision of the six faces
// of a cube projected onto the sphere, and canonical sets of such cells
// supporting exact set algebra.
package sphere

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

const (
	// MaxLevel is the finest subdivision level. A cell at MaxLevel is a leaf.
	MaxLevel = 30

	// NumFaces is the number of cube faces projected onto the sphere.
	NumFaces = 6

	faceBits = 3
	posBits  = 2*MaxLevel + 1
	maxSize  = 1 << MaxLevel
)

// CellID uniquely identifies a cell of the sphere decomposition. The high 3
// bits hold the face, followed by the Hilbert curve position of the cell
// center along that face, 2 bits per level, terminated by a single set bit.
// The remaining low bits are zero, so the number of trailing zero bits
// encodes the level.
//
// Within a face, ids at a given level follow the Hilbert curve order, which
// makes consecutive ids spatially adjacent. The ids of all descendants of a
// cell form the contiguous range [RangeMin, RangeMax].
type CellID uint64

// None is the zero, invalid cell id.
const None CellID = 0

// CellIDFromFace returns the cell covering the entire given face (level 0).
func CellIDFromFace(face int) CellID {
	return CellID(uint64(face)<<posBits + lsbForLevel(0))
}

// CellIDFromFacePosLevel returns the cell at the given level containing the
// leaf curve position pos on the given face.
func CellIDFromFacePosLevel(face int, pos uint64, level int) CellID {
	return CellID(uint64(face)<<posBits + pos | 1).ParentAt(level)
}

// CellIDBegin returns the first cell at the given level in the face/curve
// order. Iterating with Next from here visits every cell at that level.
func CellIDBegin(level int) CellID {
	return CellIDFromFace(0).ChildBeginAt(level)
}

// CellIDEnd returns the id one past the last cell at the given level. It is
// not itself a valid cell but behaves consistently under Next and Prev.
func CellIDEnd(level int) CellID {
	return CellIDFromFace(NumFaces - 1).ChildEndAt(level)
}

// Face returns the cube face the cell lies on, in 0..5.
func (ci CellID) Face() int {
	return int(uint64(ci) >> posBits)
}

// Pos returns the 61-bit Hilbert curve position of the cell within its face.
func (ci CellID) Pos() uint64 {
	return uint64(ci) & (^uint64(0) >> faceBits)
}

// Level returns the subdivision level of the cell, in 0..MaxLevel.
func (ci CellID) Level() int {
	return MaxLevel - bits.TrailingZeros64(uint64(ci))>>1
}

// IsValid reports whether the id denotes a well-formed cell: a face in range
// and a terminating bit at an even position.
func (ci CellID) IsValid() bool {
	return ci.Face() < NumFaces && ci.lsb()&0x1555555555555555 != 0
}

// IsLeaf reports whether the cell is at the finest level.
func (ci CellID) IsLeaf() bool {
	return uint64(ci)&1 != 0
}

// IsFace reports whether the cell is a whole face (level 0).
func (ci CellID) IsFace() bool {
	return uint64(ci)&(lsbForLevel(0)-1) == 0
}

// Parent returns the cell one level coarser containing this one.
func (ci CellID) Parent() CellID {
	nlsb := ci.lsb() << 2
	return CellID(uint64(ci)&-nlsb | nlsb)
}

// ParentAt returns the ancestor of the cell at the given coarser level.
func (ci CellID) ParentAt(level int) CellID {
	nlsb := lsbForLevel(level)
	return CellID(uint64(ci)&-nlsb | nlsb)
}

// ChildPosition returns which child (0..3) this cell's ancestry takes at the
// given level, for levels 1..Level.
func (ci CellID) ChildPosition(level int) int {
	return int(uint64(ci)>>uint64(2*(MaxLevel-level)+1)) & 3
}

// ChildBegin returns the first of the four children of the cell. Iterating
// with Next while below ChildEnd visits all four.
func (ci CellID) ChildBegin() CellID {
	ol := ci.lsb()
	return CellID(uint64(ci) - ol + ol>>2)
}

// ChildBeginAt returns the first descendant of the cell at the given level.
func (ci CellID) ChildBeginAt(level int) CellID {
	return CellID(uint64(ci) - ci.lsb() + lsbForLevel(level))
}

// ChildEnd returns the id one past the last child of the cell.
func (ci CellID) ChildEnd() CellID {
	ol := ci.lsb()
	return CellID(uint64(ci) + ol + ol>>2)
}

// ChildEndAt returns the id one past the last descendant of the cell at the
// given level.
func (ci CellID) ChildEndAt(level int) CellID {
	return CellID(uint64(ci) + ci.lsb() + lsbForLevel(level))
}

// Children returns the four children of the cell in curve order.
func (ci CellID) Children() [4]CellID {
	var ch [4]CellID
	lsb := ci.lsb()
	ch[0] = CellID(uint64(ci) - lsb + lsb>>2)
	lsb >>= 1
	ch[1] = CellID(uint64(ch[0]) + lsb)
	ch[2] = CellID(uint64(ch[1]) + lsb)
	ch[3] = CellID(uint64(ch[2]) + lsb)
	return ch
}

// Next returns the next cell at the same level along the curve, wrapping
// from one face to the next. Next of the last cell at a level returns the
// invalid end sentinel for that level.
func (ci CellID) Next() CellID {
	return CellID(uint64(ci) + ci.lsb()<<1)
}

// Prev returns the previous cell at the same level along the curve.
func (ci CellID) Prev() CellID {
	return CellID(uint64(ci) - ci.lsb()<<1)
}

// RangeMin returns the first leaf id contained by the cell.
func (ci CellID) RangeMin() CellID {
	return CellID(uint64(ci) - (ci.lsb() - 1))
}

// RangeMax returns the last leaf id contained by the cell.
func (ci CellID) RangeMax() CellID {
	return CellID(uint64(ci) + (ci.lsb() - 1))
}

// Contains reports whether the cell contains oci, that is, oci is the same
// cell or a descendant. Both ids must be valid.
func (ci CellID) Contains(oci CellID) bool {
	return ci.RangeMin() <= oci && oci <= ci.RangeMax()
}

// Intersects reports whether the cells overlap. Since two cells either nest
// or are disjoint, this means one contains the other.
func (ci CellID) Intersects(oci CellID) bool {
	return oci.RangeMin() <= ci.RangeMax() && oci.RangeMax() >= ci.RangeMin()
}

// MaxTile returns the largest cell with the same RangeMin as this one whose
// leaf range does not extend beyond limit, shrinking to a descendant when
// the cell itself is too large. If the cell's range starts at or after
// limit's, limit is returned. This is the greedy step used to tile a leaf
// range with a minimal number of cells.
func (ci CellID) MaxTile(limit CellID) CellID {
	id := ci
	start := id.RangeMin()
	if start >= limit.RangeMin() {
		return limit
	}
	if id.RangeMax() >= limit {
		// Too large. Shrinking keeps the range start fixed, and since
		// start < limit.RangeMin() a small enough descendant always fits.
		for id.RangeMax() >= limit {
			id = id.ChildBegin()
		}
		return id
	}
	// Possibly too small. Growing normally succeeds at most once.
	for !id.IsFace() {
		parent := id.Parent()
		if parent.RangeMin() != start || parent.RangeMax() >= limit {
			break
		}
		id = parent
	}
	return id
}

// Token returns a compact, sortable text form of the id: the 16-digit hex
// representation with trailing zero digits removed. None encodes as "X".
func (ci CellID) Token() string {
	if ci == None {
		return "X"
	}
	return strings.TrimRight(fmt.Sprintf("%016x", uint64(ci)), "0")
}

// CellIDFromToken returns the cell id for a token produced by Token. It
// returns None for malformed tokens.
func CellIDFromToken(s string) CellID {
	if len(s) == 0 || len(s) > 16 {
		return None
	}
	n, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return None
	}
	return CellID(n << (4 * uint(16-len(s))))
}

// String returns the cell as "face/childPath", one digit per level.
func (ci CellID) String() string {
	if !ci.IsValid() {
		return "Invalid: " + strconv.FormatUint(uint64(ci), 16)
	}
	var b strings.Builder
	b.WriteByte(byte('0' + ci.Face()))
	b.WriteByte('/')
	for level := 1; level <= ci.Level(); level++ {
		b.WriteByte(byte('0' + ci.ChildPosition(level)))
	}
	return b.String()
}

func (ci CellID) lsb() uint64 {
	return uint64(ci) & -uint64(ci)
}

func lsbForLevel(level int) uint64 {
	return 1 << uint(2*(MaxLevel-level))
}
