package mqttclient

import (
	"reflect"
	"sort"
	"testing"
)

func sorted(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}

func TestDiffExcludesSubscribed(t *testing.T) {
	c := &Client{}
	subs := map[string]struct{}{"a": {}, "b": {}}
	got := c.diff([]string{"a", "b", "c"}, subs)
	if !reflect.DeepEqual(sorted(got), []string{"c"}) {
		t.Fatalf("diff = %v, want [c]", got)
	}
}

func TestIntersectKeepsOnlySubscribed(t *testing.T) {
	subs := map[string]struct{}{"a": {}, "b": {}}
	got := intersect([]string{"a", "c"}, subs)
	if !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("intersect = %v, want [a]", got)
	}
}

func TestToSetAndSetKeysRoundTrip(t *testing.T) {
	s := toSet([]string{"x", "y", "x"})
	if len(s) != 2 {
		t.Fatalf("expected 2 unique keys, got %d", len(s))
	}
	keys := sorted(setKeys(s))
	if !reflect.DeepEqual(keys, []string{"x", "y"}) {
		t.Fatalf("setKeys = %v, want [x y]", keys)
	}
}
