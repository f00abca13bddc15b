// Package iqm implements the Inter-Queue Manager: it copies messages
// from one MQTT queue to one or more others, running each message
// through an ordered chain of filters on the way in and, per
// destination, another chain on the way out.
package iqm

import (
	"strings"

	"github.com/orange-opensource/its-fabric/pkg/filter"
)

// Publisher is the minimal capability the router needs from an MQTT
// client to deliver a copied message.
type Publisher interface {
	Publish(topic string, payload []byte, retain bool)
}

// Filters holds the ordered in/out filter chains shared by every copy
// job the router runs, mirroring the upstream's per-direction filter
// lists built once at startup from the "filter.*" configuration
// sections.
type Filters struct {
	In  []*filter.Filter
	Out []*filter.Filter
}

// CopyJob describes one message-copying relationship: messages received
// on a subscription rooted at CopyFrom are republished, with CopyFrom
// rewritten to each of CopyTo, via Publisher.
type CopyJob struct {
	Publisher Publisher
	CopyFrom  string
	CopyTo    []string
}

// Router runs the shared in/out filter chains against incoming
// messages for a set of copy jobs.
type Router struct {
	Filters Filters
}

// NewRouter builds a Router with the given filter chains.
func NewRouter(f Filters) *Router {
	return &Router{Filters: f}
}

// HandleMessage applies the router's "in" filter chain to the incoming
// message; if it survives (nothing dropped it), rewrites its topic for
// each of job.CopyTo, applies the "out" filter chain per destination,
// and publishes whatever survives via job.Publisher.
//
// The retain flag starts false and is carried, filter to filter,
// exactly like the upstream's local mutable `retain` accumulator: each
// filter may leave it untouched, or replace it with a fixed value or a
// value read out of the payload.
func (r *Router) HandleMessage(job CopyJob, topic string, payload []byte) {
	res := filter.Result{Topic: topic, Payload: payload, Retain: false}
	for _, f := range r.Filters.In {
		res = f.Apply(res.Topic, res.Payload, res.Retain)
		if res.Dropped {
			return
		}
	}

	for _, dest := range job.CopyTo {
		newTopic := dest + strings.TrimPrefix(res.Topic, job.CopyFrom)
		out := filter.Result{Topic: newTopic, Payload: res.Payload, Retain: res.Retain}
		for _, f := range r.Filters.Out {
			out = f.Apply(out.Topic, out.Payload, out.Retain)
			if out.Dropped {
				break
			}
		}
		if out.Dropped {
			continue
		}
		job.Publisher.Publish(out.Topic, out.Payload, toBoolRetain(out.Retain))
	}
}

// toBoolRetain coerces a retain value that may have been rewritten to a
// non-bool (an integer read out of a payload) into the boolean MQTT
// retain flag: zero is not-retained, anything else is retained.
func toBoolRetain(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	default:
		return false
	}
}
