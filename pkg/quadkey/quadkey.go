// Package quadkey implements Bing-style tile identifiers, their adjacency
// arithmetic, and zone (tile-set) optimisation and border-neighbour
// expansion, as used to address geographic topics on the messaging fabric.
package quadkey

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const (
	minLatitude = -85.05112878
	maxLatitude = 85.05112878
)

func clip(n, minV, maxV float64) float64 {
	if n < minV {
		return minV
	}
	if n > maxV {
		return maxV
	}
	return n
}

// FromLatLon computes the tile, at the given depth, containing (lat, lon),
// using the standard Bing Maps tile pixel projection: a Web-Mercator-like
// projection clipped to the Mercator-valid latitude band, quantised to a
// 256px tile grid at the requested level of detail.
func FromLatLon(lat, lon float64, depth int) QuadKey {
	lat = clip(lat, minLatitude, maxLatitude)
	lon = clip(lon, -180, 180)

	x := (lon + 180) / 360
	sinLat := math.Sin(lat * math.Pi / 180)
	y := 0.5 - math.Log((1+sinLat)/(1-sinLat))/(4*math.Pi)

	mapSize := float64(uint64(256) << uint(depth))
	pixelX := int64(clip(x*mapSize+0.5, 0, mapSize-1))
	pixelY := int64(clip(y*mapSize+0.5, 0, mapSize-1))
	tileX := pixelX / 256
	tileY := pixelY / 256

	digits := make([]byte, depth)
	for i := depth; i > 0; i-- {
		var digit byte
		mask := int64(1) << uint(i-1)
		if tileX&mask != 0 {
			digit++
		}
		if tileY&mask != 0 {
			digit += 2
		}
		digits[depth-i] = '0' + digit
	}
	return QuadKey(digits)
}

// MaxDepth is the deepest tile this implementation addresses.
const MaxDepth = 30

// QuadKey is an immutable tile address: a string over {0,1,2,3} of length
// 1..MaxDepth. The zero value is not a valid QuadKey.
type QuadKey string

// New validates s as a QuadKey.
func New(s string) (QuadKey, error) {
	if len(s) < 1 || len(s) > MaxDepth {
		return "", fmt.Errorf("quadkey: length %d out of range [1,%d]", len(s), MaxDepth)
	}
	for _, c := range s {
		if c < '0' || c > '3' {
			return "", fmt.Errorf("quadkey: invalid digit %q", c)
		}
	}
	return QuadKey(s), nil
}

// Depth returns the tile depth (string length).
func (q QuadKey) Depth() int { return len(q) }

// MakeShallower truncates q to depth d (d <= q.Depth()). d must be >= 1.
func (q QuadKey) MakeShallower(d int) QuadKey {
	if d < 1 {
		d = 1
	}
	if d >= len(q) {
		return q
	}
	return q[:d]
}

// Contains reports whether q is an ancestor of, or equal to, other — i.e.
// other's string representation starts with q's.
func (q QuadKey) Contains(other QuadKey) bool {
	return strings.HasPrefix(string(other), string(q))
}

// Split produces the 4^extraDepth descendants of q at depth
// q.Depth()+extraDepth.
func (q QuadKey) Split(extraDepth int) []QuadKey {
	if extraDepth <= 0 {
		return []QuadKey{q}
	}
	frontier := []QuadKey{q}
	for i := 0; i < extraDepth; i++ {
		next := make([]QuadKey, 0, len(frontier)*4)
		for _, f := range frontier {
			for _, d := range "0123" {
				next = append(next, f+QuadKey(d))
			}
		}
		frontier = next
	}
	return frontier
}

func (q QuadKey) String() string { return string(q) }

// north, south, east/west digit-flip tables: index by the last digit.
var northTable = map[byte]*byte{
	'0': nil, '1': nil,
	'2': bptr('0'), '3': bptr('1'),
}
var southTable = map[byte]*byte{
	'0': bptr('2'), '1': bptr('3'),
	'2': nil, '3': nil,
}
var eastWestTable = map[byte]byte{
	'0': '1', '1': '0', '2': '3', '3': '2',
}

func bptr(b byte) *byte { return &b }

// NorthOf returns the tile directly north of q, or ok=false at the North
// pole (when the recursion runs off the top of the tree).
func (q QuadKey) NorthOf() (QuadKey, bool) {
	return vertical(q, northTable)
}

// SouthOf returns the tile directly south of q, or ok=false at the South
// pole.
func (q QuadKey) SouthOf() (QuadKey, bool) {
	return vertical(q, southTable)
}

func vertical(q QuadKey, table map[byte]*byte) (QuadKey, bool) {
	if len(q) == 0 {
		return "", false
	}
	last := q[len(q)-1]
	if rep := table[last]; rep != nil {
		return q[:len(q)-1] + QuadKey(*rep), true
	}
	if len(q) == 1 {
		return "", false
	}
	prefix, ok := vertical(q[:len(q)-1], table)
	if !ok {
		return "", false
	}
	// trailing 0/1 recurses on the prefix and re-appends the flipped digit
	// (0<->2 going north, 1<->3... actually the flip for 0/1 digits mirrors
	// the same table entries used for 2/3, shifted by the recursive carry).
	flipped := eastWestFlipVertical(last, table)
	return prefix + QuadKey(flipped), true
}

// eastWestFlipVertical returns the digit appended after recursing on the
// parent: trailing '0' keeps column parity and becomes '2' going north
// (or stays the southbound column digit), trailing '1' becomes '3', and
// vice versa for south_of. The table passed in already encodes the
// direction (north or south), so digits 0/1 map through the complementary
// entries of the *other* table: north_of(...0) recurses and appends '2',
// north_of(...1) appends '3'; south_of(...2) recurses and appends '0',
// south_of(...3) appends '1'.
func eastWestFlipVertical(last byte, table map[byte]*byte) byte {
	// table is northTable when called from NorthOf, southTable from SouthOf.
	// Determine which direction by checking which keys are nil.
	if table['0'] == nil { // northTable: 0,1 carry; 2,3 terminate
		if last == '0' {
			return '2'
		}
		return '3' // last == '1'
	}
	// southTable: 2,3 carry; 0,1 terminate
	if last == '2' {
		return '0'
	}
	return '1' // last == '3'
}

// EastOf returns the tile directly east of q. Longitude wraps, so this is
// always defined. Unlike north/south, the recursion bottoms out at depth 1
// with a direct single-digit flip rather than an absent pole: digits 0/2
// (left column) terminate locally, digits 1/3 (right column) carry into
// the parent's east neighbour.
func (q QuadKey) EastOf() QuadKey {
	if len(q) == 1 {
		return QuadKey(eastWestTable[q[0]])
	}
	last := q[len(q)-1]
	switch last {
	case '0':
		return q[:len(q)-1] + "1"
	case '2':
		return q[:len(q)-1] + "3"
	case '1':
		return q[:len(q)-1].EastOf() + "0"
	default: // '3'
		return q[:len(q)-1].EastOf() + "2"
	}
}

// WestOf returns the tile directly west of q. Always defined; digits 1/3
// (right column) terminate locally, digits 0/2 (left column) carry.
func (q QuadKey) WestOf() QuadKey {
	if len(q) == 1 {
		return QuadKey(eastWestTable[q[0]])
	}
	last := q[len(q)-1]
	switch last {
	case '1':
		return q[:len(q)-1] + "0"
	case '3':
		return q[:len(q)-1] + "2"
	case '0':
		return q[:len(q)-1].WestOf() + "1"
	default: // '2'
		return q[:len(q)-1].WestOf() + "3"
	}
}

// Neighbours are the 8 tiles adjacent to a QuadKey, in the fixed order
// NW, N, NE, W, E, SW, S, SE. A direction that does not exist (polar
// edge) is reported via the corresponding Ok field as false.
type Neighbours struct {
	NW, N, NE, W, E, SW, S, SE     QuadKey
	NWOk, NOk, NEOk                bool
	WOk, EOk                       bool
	SWOk, SOk, SEOk                bool
}

// Neighbours computes the 8 geometric neighbours of q. Diagonals are
// composed as north/south of the east/west tile (not the reverse), so that
// a missing pole on the vertical step propagates correctly: e.g. NW is
// north_of(west_of(q)), not west_of(north_of(q)).
func (q QuadKey) Neighbours() Neighbours {
	w := q.WestOf()
	e := q.EastOf()

	n, nOk := q.NorthOf()
	s, sOk := q.SouthOf()

	nw, nwOk := w.NorthOf()
	sw, swOk := w.SouthOf()
	ne, neOk := e.NorthOf()
	se, seOk := e.SouthOf()

	return Neighbours{
		NW: nw, NWOk: nwOk,
		N: n, NOk: nOk,
		NE: ne, NEOk: neOk,
		W: w, WOk: true,
		E: e, EOk: true,
		SW: sw, SWOk: swOk,
		S: s, SOk: sOk,
		SE: se, SEOk: seOk,
	}
}

// tailsFor maps each of the 8 cardinal directions to the set of trailing
// digit-suffixes that, appended to a shallower tile's shallow neighbour,
// select exactly the sub-tiles touching that tile's border in that
// direction.
var tailsFor = map[string]string{
	"NW": "3",
	"N":  "23",
	"NE": "2",
	"W":  "13",
	"E":  "02",
	"SW": "1",
	"S":  "01",
	"SE": "0",
}

func mkTail(cardinal string, extraDepth int) []string {
	digits := tailsFor[cardinal]
	if extraDepth <= 0 {
		return []string{""}
	}
	frontier := []string{""}
	for i := 0; i < extraDepth; i++ {
		next := make([]string, 0, len(frontier)*len(digits))
		for _, f := range frontier {
			for _, d := range digits {
				next = append(next, f+string(d))
			}
		}
		frontier = next
	}
	return frontier
}

// QuadZone is a set of QuadKeys.
type QuadZone struct {
	keys map[QuadKey]struct{}
}

// NewZone builds a QuadZone from the given keys.
func NewZone(keys ...QuadKey) *QuadZone {
	z := &QuadZone{keys: make(map[QuadKey]struct{}, len(keys))}
	for _, k := range keys {
		z.keys[k] = struct{}{}
	}
	return z
}

// Add inserts q into the zone.
func (z *QuadZone) Add(q QuadKey) { z.keys[q] = struct{}{} }

// Contains reports whether q is an element of the zone (exact membership,
// not ancestor containment).
func (z *QuadZone) Contains(q QuadKey) bool {
	_, ok := z.keys[q]
	return ok
}

// ContainsAncestorOf reports whether some element of the zone is an
// ancestor of (or equal to) q.
func (z *QuadZone) ContainsAncestorOf(q QuadKey) bool {
	for k := range z.keys {
		if k.Contains(q) {
			return true
		}
	}
	return false
}

// Keys returns the zone's elements sorted lexicographically.
func (z *QuadZone) Keys() []QuadKey {
	out := make([]QuadKey, 0, len(z.keys))
	for k := range z.keys {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func siblingParent(q QuadKey) QuadKey {
	return q.MakeShallower(q.Depth() - 1)
}

// Optimise runs the fixed-point sibling-coalescence reduction described by
// the core spec: repeatedly sort the zone, drop any key that is covered by
// an ancestor already present, and replace any four contiguous siblings
// (same parent, child digits 0,1,2,3 all present) with their parent. Runs
// to convergence; a zone that changed on the previous pass is re-examined.
func (z *QuadZone) Optimise() {
	for {
		changed := z.optimisePass()
		if !changed {
			return
		}
	}
}

func (z *QuadZone) optimisePass() bool {
	keys := z.Keys()
	if len(keys) == 0 {
		return false
	}
	changed := false

	// Drop keys covered by an earlier (shallower-or-equal, sorted) ancestor.
	kept := make([]QuadKey, 0, len(keys))
	for _, k := range keys {
		covered := false
		for _, p := range kept {
			if p != k && p.Contains(k) {
				covered = true
				break
			}
		}
		if covered {
			changed = true
			continue
		}
		kept = append(kept, k)
	}

	// Coalesce groups of 4 contiguous siblings sharing a parent.
	byParent := make(map[QuadKey][]QuadKey)
	roots := make([]QuadKey, 0)
	for _, k := range kept {
		if k.Depth() == 0 {
			continue
		}
		parent := siblingParent(k)
		if _, ok := byParent[parent]; !ok {
			roots = append(roots, parent)
		}
		byParent[parent] = append(byParent[parent], k)
	}

	final := make(map[QuadKey]struct{}, len(kept))
	coalesced := make(map[QuadKey]struct{})
	for _, root := range roots {
		children := byParent[root]
		if len(children) != 4 {
			continue
		}
		sort.Slice(children, func(i, j int) bool { return children[i] < children[j] })
		if children[0] == root+"0" && children[1] == root+"1" &&
			children[2] == root+"2" && children[3] == root+"3" {
			final[root] = struct{}{}
			for _, c := range children {
				coalesced[c] = struct{}{}
			}
			changed = true
		}
	}
	for _, k := range kept {
		if _, done := coalesced[k]; done {
			continue
		}
		final[k] = struct{}{}
	}

	z.keys = final
	return changed
}

// Neighbours returns the set of tiles at depth d that touch the zone's
// boundary but are not themselves contained in the zone. For a zone member
// shallower than d, the relevant border of that member is expanded to
// depth-d tiles first via mkTail; for a member at or deeper than d, each
// of its 8 neighbours is simply shallowed to d.
func (z *QuadZone) Neighbours(d int) *QuadZone {
	out := NewZone()
	for _, q := range z.Keys() {
		n := q.Neighbours()
		add := func(card string, tile QuadKey, ok bool) {
			if !ok {
				return
			}
			if q.Depth() >= d {
				out.Add(tile.MakeShallower(d))
				return
			}
			extra := d - tile.Depth()
			for _, tail := range mkTail(card, extra) {
				out.Add(tile + QuadKey(tail))
			}
		}
		add("NW", n.NW, n.NWOk)
		add("N", n.N, n.NOk)
		add("NE", n.NE, n.NEOk)
		add("W", n.W, n.WOk)
		add("E", n.E, n.EOk)
		add("SW", n.SW, n.SWOk)
		add("S", n.S, n.SOk)
		add("SE", n.SE, n.SEOk)
	}
	// Subtract anything already contained (by ancestry) in the original zone.
	final := NewZone()
	for _, k := range out.Keys() {
		if !z.ContainsAncestorOf(k) {
			final.Add(k)
		}
	}
	return final
}
