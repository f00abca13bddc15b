// Package roi computes the set of quadkey tiles a station should
// subscribe to around its own position, shrinking the subscribed depth
// (and so widening the covered area) as speed increases.
package roi

import (
	"github.com/orange-opensource/its-fabric/pkg/quadkey"
)

// RegionOfInterest derives a subscription tile set from a station's
// current quadkey, speed and message type.
type RegionOfInterest struct {
	// Depths gives, per message type ("cam", "denm", "cpm", ...), the
	// quadkey depth subscribed to at zero speed.
	Depths map[string]int
	// Speeds are ascending thresholds (m/s): crossing the Nth threshold
	// reduces the subscribed depth by one level per threshold crossed,
	// down to a floor of depth 1.
	Speeds []float64
}

// Get returns the quadkey strings a station at the given position and
// speed should be subscribed to for msgType: the tile containing the
// position, made shallower by the speed-adjusted depth reduction, plus
// its 8 immediate neighbours at that shallower depth.
func (r *RegionOfInterest) Get(qk quadkey.QuadKey, speed float64, msgType string) []string {
	depth := r.Depths[msgType]
	for _, s := range r.Speeds {
		if speed < s || depth == 1 {
			break
		}
		depth--
	}

	shallow := qk.MakeShallower(depth)
	n := shallow.Neighbours()

	zone := quadkey.NewZone(shallow)
	for _, c := range []struct {
		k  quadkey.QuadKey
		ok bool
	}{
		{n.NW, n.NWOk}, {n.N, n.NOk}, {n.NE, n.NEOk},
		{n.W, n.WOk}, {n.E, n.EOk},
		{n.SW, n.SWOk}, {n.S, n.SOk}, {n.SE, n.SEOk},
	} {
		if c.ok {
			zone.Add(c.k)
		}
	}

	keys := zone.Keys()
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}
