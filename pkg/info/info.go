// Package info implements the broker self-description beacon: a
// small, low-rate retained message published on a well-known topic so
// that anything subscribed to it can discover what a running fabric
// node is, without needing to see any traffic on its data topics.
package info

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Publisher is the minimal capability the beacon needs to emit its
// message.
type Publisher interface {
	Publish(topic string, payload []byte, retain bool)
}

// Config configures a Beacon.
type Config struct {
	InstanceID   string
	InstanceType string // e.g. "local", "global"
	Topic        string // defaults to "info"

	// Period is how often the beacon republishes. ValidityDuration is
	// reported to subscribers as 2*Period, matching the upstream
	// convention that a missed beacon or two should not be read as the
	// broker having gone away.
	Period time.Duration

	// ServiceArea is the set of quadkey tiles this node's data covers,
	// reported so a subscriber can tell whether this broker is relevant
	// to a region of interest without waiting for actual traffic.
	ServiceArea []string

	Publisher Publisher
	Logger    zerolog.Logger
}

// message is the wire shape of a beacon publication.
type message struct {
	Type              string   `json:"type"`
	Version           string   `json:"version"`
	InstanceID        string   `json:"instance_id"`
	InstanceType      string   `json:"instance_type"`
	Running           bool     `json:"running"`
	TimestampMillis   int64    `json:"timestamp"`
	ValidityDuration  int64    `json:"validity_duration"`
	ServiceArea       []string `json:"service_area,omitempty"`
}

const beaconVersion = "1.2.0"

// Beacon periodically publishes a retained self-description message
// until Stop is called.
type Beacon struct {
	cfg    Config
	topic  string
	log    zerolog.Logger
	now    func() time.Time
	stop   chan struct{}
	stopMu sync.Once
}

// New builds a Beacon. A zero cfg.Topic defaults to "info".
func New(cfg Config) *Beacon {
	topic := cfg.Topic
	if topic == "" {
		topic = "info"
	}
	return &Beacon{
		cfg:   cfg,
		topic: topic,
		log:   cfg.Logger.With().Str("component", "info").Logger(),
		now:   time.Now,
		stop:  make(chan struct{}),
	}
}

// Start publishes immediately, then republishes every cfg.Period until
// Stop is called. It returns immediately; the publish loop runs in its
// own goroutine.
func (b *Beacon) Start() {
	b.publish()
	go b.loop()
}

// Stop halts the publish loop. It does not publish a final
// "running: false" message, matching the upstream client which simply
// disconnects and lets the retained message go stale.
func (b *Beacon) Stop() {
	b.stopMu.Do(func() { close(b.stop) })
}

func (b *Beacon) loop() {
	ticker := time.NewTicker(b.cfg.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.publish()
		case <-b.stop:
			return
		}
	}
}

func (b *Beacon) publish() {
	msg := message{
		Type:             "broker",
		Version:          beaconVersion,
		InstanceID:       b.cfg.InstanceID,
		InstanceType:     b.cfg.InstanceType,
		Running:          true,
		TimestampMillis:  b.now().UnixMilli(),
		ValidityDuration: int64(2 * b.cfg.Period / time.Second),
		ServiceArea:      b.cfg.ServiceArea,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		b.log.Error().Err(err).Msg("info: failed to marshal beacon message")
		return
	}
	b.cfg.Publisher.Publish(b.topic, payload, true)
}
