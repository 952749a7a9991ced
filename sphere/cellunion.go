package sphere

import (
	"sort"
)

// CellUnion is a set of cells represented as a slice of ids. A plain slice
// value may hold arbitrary ids in any order (a raw union, which the codec
// carries verbatim); the set operations expect and produce normalized
// unions: sorted ascending, no duplicates, no cell contained in another,
// and never all four children of a common parent.
//
// A normalized union is a canonical form: two unions cover the same set of
// leaves exactly when their normalized contents are identical.
type CellUnion []CellID

// NewCellUnion returns the normalized union of the given cells. The input
// slice is copied, not retained.
func NewCellUnion(ids []CellID) CellUnion {
	u := make(CellUnion, len(ids))
	copy(u, ids)
	u.Normalize()
	return u
}

// NewCellUnionFromRange returns the minimal union covering the contiguous
// leaf range [begin, end). begin and end must be leaf ids or the matching
// CellIDBegin/CellIDEnd sentinels. The output is normalized by
// construction: Normalize afterwards reports no change.
func NewCellUnionFromRange(begin, end CellID) CellUnion {
	var u CellUnion
	// Repeatedly add the largest cell whose range starts at the current
	// position and stays within the limit.
	for id := begin.MaxTile(end); id != end; id = id.Next().MaxTile(end) {
		u = append(u, id)
	}
	return u
}

// NewCellUnionFromMinMax returns the minimal union covering every leaf from
// lo.RangeMin() to hi.RangeMax() inclusive.
func NewCellUnionFromMinMax(lo, hi CellID) CellUnion {
	return NewCellUnionFromRange(lo.RangeMin(), hi.RangeMax().Next())
}

// Normalize sorts the cells and rewrites the union to canonical form:
// duplicates and cells contained in other cells are dropped, and complete
// groups of four siblings are replaced by their parent, cascading to
// coarser levels. The rewrite is done in place. It reports whether the
// contents changed beyond plain reordering.
func (u *CellUnion) Normalize() bool {
	ids := *u
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	n := len(ids)
	out := ids[:0]
	for _, id := range ids {
		// Covered by the last kept cell.
		if len(out) > 0 && out[len(out)-1].Contains(id) {
			continue
		}
		// Drop kept cells this one covers. Descendants from the first half
		// of a parent's range sort before the parent itself.
		for len(out) > 0 && id.Contains(out[len(out)-1]) {
			out = out[:len(out)-1]
		}
		for len(out) >= 3 && areSiblings(out[len(out)-3], out[len(out)-2], out[len(out)-1], id) {
			out = out[:len(out)-3]
			id = id.Parent()
		}
		out = append(out, id)
	}
	*u = out
	return len(out) != n
}

// areSiblings reports whether a, b, c and d are the four children of a
// common parent, assuming a <= b <= c <= d.
func areSiblings(a, b, c, d CellID) bool {
	// Four siblings always xor to zero. The converse needs the mask test
	// below, which checks that all four agree above the child-index bits.
	if a^b^c != d {
		return false
	}
	if d.IsFace() {
		return false
	}
	mask := d.lsb() << 1
	mask = ^(mask + (mask << 1))
	masked := uint64(d) & mask
	return uint64(a)&mask == masked &&
		uint64(b)&mask == masked &&
		uint64(c)&mask == masked
}

// IsNormalized reports whether the union is already in canonical form.
func (u CellUnion) IsNormalized() bool {
	for i, id := range u {
		if i > 0 && u[i-1].RangeMax() >= id.RangeMin() {
			return false
		}
		if i >= 3 && areSiblings(u[i-3], u[i-2], u[i-1], id) {
			return false
		}
	}
	return true
}

// Contains reports whether the union covers the whole of the given cell.
// The union must be normalized. An empty union contains nothing.
func (u CellUnion) Contains(id CellID) bool {
	// Any cell containing id sits directly around id's insertion point.
	i := sort.Search(len(u), func(i int) bool { return u[i] >= id })
	if i < len(u) && u[i].RangeMin() <= id {
		return true
	}
	return i > 0 && u[i-1].RangeMax() >= id
}

// Intersects reports whether the union covers any part of the given cell.
// The union must be normalized.
func (u CellUnion) Intersects(id CellID) bool {
	i := sort.Search(len(u), func(i int) bool { return u[i] >= id })
	if i < len(u) && u[i].RangeMin() <= id.RangeMax() {
		return true
	}
	return i > 0 && u[i-1].RangeMax() >= id.RangeMin()
}

// ContainsUnion reports whether every leaf covered by o is also covered by
// u. Both unions must be normalized.
func (u CellUnion) ContainsUnion(o CellUnion) bool {
	for _, id := range o {
		if !u.Contains(id) {
			return false
		}
	}
	return true
}

// IntersectsUnion reports whether the two unions cover any leaf in common.
// Both unions must be normalized.
func (u CellUnion) IntersectsUnion(o CellUnion) bool {
	for _, id := range o {
		if u.Intersects(id) {
			return true
		}
	}
	return false
}

// ContainsPoint reports whether the leaf cell containing p is covered.
func (u CellUnion) ContainsPoint(p Point) bool {
	return u.Contains(CellIDFromPoint(p))
}

// Union returns the normalized union of the two cell sets. The operands are
// left unchanged.
func (u CellUnion) Union(o CellUnion) CellUnion {
	out := make(CellUnion, 0, len(u)+len(o))
	out = append(out, u...)
	out = append(out, o...)
	out.Normalize()
	return out
}

// Intersection returns the normalized intersection of two normalized
// unions. Since two cells either nest or are disjoint, every overlapping
// pair contributes its finer cell.
func (u CellUnion) Intersection(o CellUnion) CellUnion {
	var out CellUnion
	i, j := 0, 0
	for i < len(u) && j < len(o) {
		a, b := u[i], o[j]
		switch {
		case a.RangeMax() < b.RangeMin():
			i++
		case b.RangeMax() < a.RangeMin():
			j++
		case a.Contains(b):
			out = append(out, b)
			j++
		default:
			out = append(out, a)
			i++
		}
	}
	out.Normalize()
	return out
}

// IntersectionWithCell returns the intersection of the union with a single
// cell: id itself when the union covers it entirely, otherwise the cells of
// the union lying inside id. The union must be normalized.
func (u CellUnion) IntersectionWithCell(id CellID) CellUnion {
	if u.Contains(id) {
		return CellUnion{id}
	}
	var out CellUnion
	idMax := id.RangeMax()
	i := sort.Search(len(u), func(i int) bool { return u[i] >= id.RangeMin() })
	for ; i < len(u) && u[i] <= idMax; i++ {
		out = append(out, u[i])
	}
	return out
}

// Difference returns the normalized set of leaves covered by u but not by
// o. Both unions must be normalized.
func (u CellUnion) Difference(o CellUnion) CellUnion {
	var out CellUnion
	for _, id := range u {
		cellDifference(id, o, &out)
	}
	out.Normalize()
	return out
}

// cellDifference appends the part of id not covered by o, subdividing on
// partial overlap. A leaf never subdivides: for a leaf, intersecting
// implies contained.
func cellDifference(id CellID, o CellUnion, out *CellUnion) {
	if !o.Intersects(id) {
		*out = append(*out, id)
		return
	}
	if !o.Contains(id) {
		for _, child := range id.Children() {
			cellDifference(child, o, out)
		}
	}
}

// ExpandAtLevel grows the region by all cells at the given level adjacent
// to its boundary, leaving a rim at least one such cell wide around the
// original region. Cells finer than the given level are first lifted to
// their ancestor at that level, so the region may also coarsen. The result
// is normalized.
func (u *CellUnion) ExpandAtLevel(level int) {
	var out CellUnion
	levelLsb := lsbForLevel(level)
	for i := len(*u) - 1; i >= 0; i-- {
		id := (*u)[i]
		if id.lsb() < levelLsb {
			id = id.ParentAt(level)
			// The lifted cell may cover earlier cells entirely.
			for i > 0 && id.Contains((*u)[i-1]) {
				i--
			}
		}
		out = append(out, id)
		out = append(out, id.AllNeighbors(level)...)
	}
	out.Normalize()
	*u = out
}

// ExpandByRadius grows the region by at least minRadius radians in every
// direction. The rim cells are chosen as coarse as the radius allows but at
// most maxLevelDiff levels finer than the coarsest cell present, which
// bounds both the output size and the overshoot: under the radius rule
// alone the region never grows by more than 2*MaxDiag.Value(level) at the
// chosen level.
func (u *CellUnion) ExpandByRadius(minRadius float64, maxLevelDiff int) {
	minLevel := MaxLevel
	for _, id := range *u {
		if l := id.Level(); l < minLevel {
			minLevel = l
		}
	}

	// Finest level whose cells are everywhere at least minRadius wide.
	radiusLevel := MinWidth.MaxLevel(minRadius)
	if radiusLevel == 0 && minRadius > MinWidth.Value(0) {
		// The requested expansion is wider than a whole face cell.
		u.ExpandAtLevel(0)
	}
	if l := minLevel + maxLevelDiff; l < radiusLevel {
		radiusLevel = l
	}
	u.ExpandAtLevel(radiusLevel)
}

// LeafCellsCovered returns the number of leaf cells covered by the union.
// A face cell covers 1<<60 leaves and the whole sphere 6<<60, so the count
// always fits in a uint64.
func (u CellUnion) LeafCellsCovered() uint64 {
	var n uint64
	for _, id := range u {
		n += 1 << uint(2*(MaxLevel-id.Level()))
	}
	return n
}

// Denormalize returns the cells of the union with each cell replaced by its
// descendants at the smallest level that is at least minLevel, at least the
// cell's own level, and offset from minLevel by a multiple of levelMod
// (clamped to MaxLevel). levelMod must be in 1..3.
func (u CellUnion) Denormalize(minLevel, levelMod int) []CellID {
	out := make([]CellID, 0, len(u))
	for _, id := range u {
		level := id.Level()
		newLevel := level
		if newLevel < minLevel {
			newLevel = minLevel
		}
		if levelMod > 1 {
			newLevel += (levelMod - (newLevel-minLevel)%levelMod) % levelMod
			if newLevel > MaxLevel {
				newLevel = MaxLevel
			}
		}
		if newLevel == level {
			out = append(out, id)
			continue
		}
		end := id.ChildEndAt(newLevel)
		for ci := id.ChildBeginAt(newLevel); ci != end; ci = ci.Next() {
			out = append(out, ci)
		}
	}
	return out
}

// Release returns the backing cells and leaves the union empty. The caller
// takes ownership of the returned slice.
func (u *CellUnion) Release() []CellID {
	ids := *u
	*u = nil
	return ids
}

// Pack reallocates the backing array to fit the cells held, dropping spare
// capacity left behind by earlier edits.
func (u *CellUnion) Pack() {
	if cap(*u) == len(*u) {
		return
	}
	packed := make(CellUnion, len(*u))
	copy(packed, *u)
	*u = packed
}

// Equal reports whether the two unions hold exactly the same ids.
func (u CellUnion) Equal(o CellUnion) bool {
	if len(u) != len(o) {
		return false
	}
	for i, id := range u {
		if id != o[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the union.
func (u CellUnion) Clone() CellUnion {
	if u == nil {
		return nil
	}
	out := make(CellUnion, len(u))
	copy(out, u)
	return out
}
