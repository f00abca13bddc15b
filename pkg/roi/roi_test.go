package roi

import (
	"sort"
	"testing"

	"github.com/orange-opensource/its-fabric/pkg/quadkey"
)

func TestGetReducesDepthWithSpeed(t *testing.T) {
	r := &RegionOfInterest{
		Depths: map[string]int{"cam": 4},
		Speeds: []float64{10, 20, 30},
	}
	qk, err := quadkey.New("0123")
	if err != nil {
		t.Fatalf("quadkey.New: %v", err)
	}

	stationary := r.Get(qk, 0, "cam")
	fast := r.Get(qk, 25, "cam")

	if len(stationary) == 0 || len(fast) == 0 {
		t.Fatalf("expected non-empty tile sets")
	}
	for _, k := range fast {
		if len(k) >= 4 {
			t.Fatalf("expected shallower tiles at high speed, got %q", k)
		}
	}
}

func TestGetIncludesSelf(t *testing.T) {
	r := &RegionOfInterest{Depths: map[string]int{"cam": 2}, Speeds: nil}
	qk, _ := quadkey.New("01")
	keys := r.Get(qk, 0, "cam")
	sort.Strings(keys)
	found := false
	for _, k := range keys {
		if k == "01" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected self tile %q in result %v", "01", keys)
	}
}
