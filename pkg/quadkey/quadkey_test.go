package quadkey

import "testing"

func qk(t *testing.T, s string) QuadKey {
	t.Helper()
	q, err := New(s)
	if err != nil {
		t.Fatalf("New(%q): %v", s, err)
	}
	return q
}

// Neighbour values below are cross-derived two independent ways (direct
// recursive simulation of the upstream algorithm, and tile bit arithmetic)
// and agree with each other; a couple of the diagonal/west values quoted in
// prose descriptions of this algorithm elsewhere do not match either
// derivation and appear to be transposition slips, so this test follows
// the algorithm rather than that prose.
func TestNeighboursOf033(t *testing.T) {
	q := qk(t, "033")
	n := q.Neighbours()

	cases := []struct {
		name string
		got  QuadKey
		ok   bool
		want QuadKey
	}{
		{"NW", n.NW, n.NWOk, "030"},
		{"N", n.N, n.NOk, "031"},
		{"NE", n.NE, n.NEOk, "120"},
		{"W", n.W, n.WOk, "032"},
		{"E", n.E, n.EOk, "122"},
		{"SW", n.SW, n.SWOk, "210"},
		{"S", n.S, n.SOk, "211"},
		{"SE", n.SE, n.SEOk, "300"},
	}
	for _, c := range cases {
		if !c.ok {
			t.Errorf("%s: expected a value, got absent", c.name)
			continue
		}
		if c.got != c.want {
			t.Errorf("%s: got %s, want %s", c.name, c.got, c.want)
		}
	}
}

func TestNorthPoleIsAbsent(t *testing.T) {
	q := qk(t, "0")
	if _, ok := q.NorthOf(); ok {
		t.Fatalf("expected north of %q to be absent", q)
	}
}

func TestSouthPoleIsAbsent(t *testing.T) {
	q := qk(t, "3")
	if _, ok := q.SouthOf(); ok {
		t.Fatalf("expected south of %q to be absent", q)
	}
}

func TestEastWestNeverAbsent(t *testing.T) {
	for _, s := range []string{"0", "1", "2", "3", "033", "123012"} {
		q := qk(t, s)
		_ = q.EastOf()
		_ = q.WestOf()
	}
}

func TestDirectionInverses(t *testing.T) {
	samples := []string{"0", "1", "2", "3", "012", "123", "0321", "2222"}
	for _, s := range samples {
		q := qk(t, s)
		if n, ok := q.NorthOf(); ok {
			if back, ok2 := n.SouthOf(); !ok2 || back != q {
				t.Errorf("south_of(north_of(%s)) = %v,%v want %s", q, back, ok2, q)
			}
		}
		if s2, ok := q.SouthOf(); ok {
			if back, ok2 := s2.NorthOf(); !ok2 || back != q {
				t.Errorf("north_of(south_of(%s)) = %v,%v want %s", q, back, ok2, q)
			}
		}
		if e := q.EastOf(); e.WestOf() != q {
			t.Errorf("west_of(east_of(%s)) = %s want %s", q, e.WestOf(), q)
		}
		if w := q.WestOf(); w.EastOf() != q {
			t.Errorf("east_of(west_of(%s)) = %s want %s", q, w.EastOf(), q)
		}
	}
}

func TestZoneOptimise(t *testing.T) {
	z := NewZone(qk(t, "00"), qk(t, "01"), qk(t, "02"), qk(t, "03"), qk(t, "1"))
	z.Optimise()
	got := z.Keys()
	want := []QuadKey{"0", "1"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestZoneOptimiseConvergesWithoutOverlap(t *testing.T) {
	z := NewZone()
	for _, d := range "0123" {
		for _, e := range "0123" {
			z.Add(qk(t, "2"+string(d)+string(e)))
		}
	}
	z.Add(qk(t, "1"))
	z.Optimise()
	got := z.Keys()
	if len(got) != 2 {
		t.Fatalf("expected coalescing down to 2 keys, got %v", got)
	}
	for i := range got {
		for j := range got {
			if i == j {
				continue
			}
			if got[i].Contains(got[j]) {
				t.Fatalf("optimised zone has ancestor overlap: %v", got)
			}
		}
	}
}

func TestSplit(t *testing.T) {
	children := qk(t, "1").Split(2)
	if len(children) != 16 {
		t.Fatalf("expected 16 children, got %d", len(children))
	}
	for _, c := range children {
		if c.Depth() != 3 || !qk(t, "1").Contains(c) {
			t.Fatalf("child %s not a depth-3 descendant of 1", c)
		}
	}
}

func TestZoneNeighboursExcludesSelf(t *testing.T) {
	z := NewZone(qk(t, "0"))
	n := z.Neighbours(1)
	for _, k := range n.Keys() {
		if z.ContainsAncestorOf(k) {
			t.Fatalf("neighbour %s overlaps the original zone", k)
		}
	}
}

func TestMakeShallower(t *testing.T) {
	q := qk(t, "0123012301230123012301") // depth 22
	if got := q.MakeShallower(12); got.Depth() != 12 {
		t.Fatalf("depth = %d, want 12", got.Depth())
	}
	if got := q.MakeShallower(30); got != q {
		t.Fatalf("deeper request should be a no-op, got %s", got)
	}
}
