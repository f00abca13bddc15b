package iqm

import (
	"testing"

	"github.com/orange-opensource/its-fabric/pkg/authority"
	"github.com/orange-opensource/its-fabric/pkg/filter"
)

func TestNeighboursFromSectionsParsesPort(t *testing.T) {
	sections := authority.Sections{
		"veh-2": {"host": "broker.example", "port": "1883", "prefix": "p"},
	}
	got := NeighboursFromSections(sections)
	nc, ok := got["veh-2"]
	if !ok {
		t.Fatalf("expected veh-2 to be present")
	}
	if nc.Host != "broker.example" || nc.Port != 1883 || nc.Prefix != "p" {
		t.Fatalf("unexpected NeighbourConfig: %+v", nc)
	}
}

func TestQueueNameOmitsEmptySegments(t *testing.T) {
	cases := []struct {
		prefix, base, suffix, want string
	}{
		{"", "in", "", "in"},
		{"veh", "in", "", "veh/in"},
		{"", "in", "42", "in/42"},
		{"veh", "in", "42", "veh/in/42"},
	}
	for _, c := range cases {
		got := queueName(c.prefix, c.base, c.suffix)
		if got != c.want {
			t.Fatalf("queueName(%q,%q,%q) = %q, want %q", c.prefix, c.base, c.suffix, got, c.want)
		}
	}
}

func TestDiffNeighboursStopsChangedBeforeStart(t *testing.T) {
	current := map[string]NeighbourConfig{
		"a": {Host: "a.example", Port: 1883},
		"b": {Host: "b.example", Port: 1883},
	}
	loaded := map[string]NeighbourConfig{
		"a": {Host: "a.example", Port: 1883}, // unchanged
		"b": {Host: "b2.example", Port: 1883}, // changed
		"c": {Host: "c.example", Port: 1883},  // new
	}

	toStop, toStart := diffNeighbours(current, loaded)

	if !contains(toStop, "b") || contains(toStop, "a") || contains(toStop, "c") {
		t.Fatalf("toStop = %v, want only [b]", toStop)
	}
	if !contains(toStart, "b") || !contains(toStart, "c") || contains(toStart, "a") {
		t.Fatalf("toStart = %v, want [b c]", toStart)
	}
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

type fakePublisher struct {
	topic   string
	payload []byte
	retain  bool
	calls   int
}

func (f *fakePublisher) Publish(topic string, payload []byte, retain bool) {
	f.topic, f.payload, f.retain = topic, payload, retain
	f.calls++
}

func TestRouterRewritesTopicPerDestination(t *testing.T) {
	r := NewRouter(Filters{})
	pubA := &fakePublisher{}
	pubB := &fakePublisher{}

	job := CopyJob{Publisher: pubA, CopyFrom: "in", CopyTo: []string{"out"}}
	r.HandleMessage(job, "in/veh-1/cam", []byte(`{"type":"cam"}`))
	if pubA.topic != "out/veh-1/cam" {
		t.Fatalf("topic = %q, want out/veh-1/cam", pubA.topic)
	}

	job2 := CopyJob{Publisher: pubB, CopyFrom: "inter", CopyTo: []string{"out", "out2"}}
	r.HandleMessage(job2, "inter/veh-2/denm", []byte(`{}`))
	if pubB.calls != 2 {
		t.Fatalf("expected 2 publishes for 2 destinations, got %d", pubB.calls)
	}
}

func TestRouterDropsOnInFilter(t *testing.T) {
	f, err := filter.New(filter.Config{
		Name:     "drop-private",
		InPrefix: "in/private/",
		Drop:     true,
	}, "veh-1", "", "", nil)
	if err != nil {
		t.Fatalf("filter.New: %v", err)
	}

	r := NewRouter(Filters{In: []*filter.Filter{f}})
	pub := &fakePublisher{}
	job := CopyJob{Publisher: pub, CopyFrom: "in", CopyTo: []string{"out"}}

	r.HandleMessage(job, "in/private/cam", []byte(`{}`))
	if pub.calls != 0 {
		t.Fatalf("expected dropped message not to be published, got %d calls", pub.calls)
	}

	r.HandleMessage(job, "in/public/cam", []byte(`{}`))
	if pub.calls != 1 {
		t.Fatalf("expected non-matching message to be published, got %d calls", pub.calls)
	}
}
