package iqm

import (
	"strconv"

	"github.com/orange-opensource/its-fabric/pkg/authority"
)

// NeighbourConfig is the authority-supplied description of one
// neighbour queue manager to interconnect with: its MQTT broker and
// credentials, plus the prefix/suffix that name its queues.
type NeighbourConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Prefix   string
	Suffix   string
}

// Equal reports whether two NeighbourConfigs describe the same
// connection, so that an unchanged neighbour is left running rather
// than being stopped and restarted.
func (n NeighbourConfig) Equal(o NeighbourConfig) bool {
	return n == o
}

// NeighboursFromSections converts the raw property maps an Authority
// loads (one section per neighbour ID) into NeighbourConfigs, ready for
// UpdateNeighbours. A section missing a numeric "port" is given port 0
// rather than rejected outright, so one malformed neighbour entry does
// not stop the rest of the set from loading.
func NeighboursFromSections(sections authority.Sections) map[string]NeighbourConfig {
	out := make(map[string]NeighbourConfig, len(sections))
	for id, props := range sections {
		port, _ := strconv.Atoi(props["port"])
		out[id] = NeighbourConfig{
			Host:     props["host"],
			Port:     port,
			Username: props["username"],
			Password: props["password"],
			Prefix:   props["prefix"],
			Suffix:   props["suffix"],
		}
	}
	return out
}

// diffNeighbours compares the currently running neighbour set against a
// freshly loaded one and reports, by neighbour ID, which to stop
// (removed or changed) and which to start (new or changed). Mirrors
// the upstream's update_cb: stop-then-start ordering is the caller's
// responsibility, not this function's — it only computes the sets.
func diffNeighbours(current, loaded map[string]NeighbourConfig) (toStop, toStart []string) {
	for id, cur := range current {
		next, stillPresent := loaded[id]
		if !stillPresent || !cur.Equal(next) {
			toStop = append(toStop, id)
		}
	}
	for id, next := range loaded {
		cur, wasPresent := current[id]
		if !wasPresent || !cur.Equal(next) {
			toStart = append(toStart, id)
		}
	}
	return toStop, toStart
}
