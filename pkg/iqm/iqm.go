package iqm

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/orange-opensource/its-fabric/pkg/filter"
	"github.com/orange-opensource/its-fabric/pkg/mqttclient"
)

// Broker describes how to reach an MQTT broker: the local one this IQM
// publishes its own queues on.
type Broker struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Config is everything needed to build an IQM instance: its identity,
// its local broker, and its filter chains.
type Config struct {
	InstanceID string
	Prefix     string
	Suffix     string

	Local   Broker
	Filters []filter.Config

	Logger zerolog.Logger

	// OnMessage, when set, is called once for every message the router
	// processes (local or neighbour-sourced), before filtering is
	// applied, so a caller can feed a health.HealthCheck's message
	// counter without this package depending on pkg/health.
	OnMessage func()
}

// IQM is an Inter-Queue Manager: it copies messages arriving on its
// local "in" queue out to both its local "out" queue and its local
// "inter" queue (for neighbours to pick up), and copies messages
// arriving on any neighbour's inter queue to its own local "out"
// queue. Both copies run through the same in/out filter chains.
type IQM struct {
	instanceID string
	prefix     string
	suffix     string

	inQueue    string
	outQueue   string
	interQueue string

	localQM   *mqttclient.Client
	router    *Router
	log       zerolog.Logger
	onMessage func()

	mu               sync.Mutex
	neighbours       map[string]NeighbourConfig
	neighbourClients map[string]*mqttclient.Client
}

// New builds an IQM from cfg. It does not connect to any broker until
// Start is called.
func New(cfg Config) (*IQM, error) {
	var filtersIn, filtersOut []*filter.Filter
	queues := map[string]string{}

	m := &IQM{
		instanceID:       cfg.InstanceID,
		prefix:           cfg.Prefix,
		suffix:           cfg.Suffix,
		inQueue:          queueName(cfg.Prefix, "in", cfg.Suffix),
		outQueue:         queueName(cfg.Prefix, "out", cfg.Suffix),
		interQueue:       queueName(cfg.Prefix, "inter", cfg.Suffix),
		log:              cfg.Logger.With().Str("component", "iqm").Logger(),
		neighbours:       map[string]NeighbourConfig{},
		neighbourClients: map[string]*mqttclient.Client{},
		onMessage:        cfg.OnMessage,
	}
	queues["in-queue"] = m.inQueue
	queues["out-queue"] = m.outQueue
	queues["inter-queue"] = m.interQueue

	for _, fc := range cfg.Filters {
		f, err := filter.New(fc, cfg.InstanceID, cfg.Prefix, cfg.Suffix, queues)
		if err != nil {
			return nil, fmt.Errorf("iqm: %w", err)
		}
		switch f.Dir {
		case filter.In:
			filtersIn = append(filtersIn, f)
		case filter.Out:
			filtersOut = append(filtersOut, f)
		}
	}
	m.router = NewRouter(Filters{In: filtersIn, Out: filtersOut})

	m.localQM = mqttclient.New(mqttclient.Options{
		ClientID:  cfg.InstanceID + "-local",
		Host:      cfg.Local.Host,
		Port:      cfg.Local.Port,
		Username:  cfg.Local.Username,
		Password:  cfg.Local.Password,
		OnMessage: m.handleLocalMessage,
		Logger:    cfg.Logger,
	})

	return m, nil
}

// queueName composes a queue's topic root from the shared prefix and
// suffix around a fixed base name, omitting either segment when empty.
func queueName(prefix, base, suffix string) string {
	var b strings.Builder
	if prefix != "" {
		b.WriteString(prefix)
		b.WriteString("/")
	}
	b.WriteString(base)
	if suffix != "" {
		b.WriteString("/")
		b.WriteString(suffix)
	}
	return b.String()
}

// Start connects the local queue manager and subscribes it to its own
// in-queue.
func (m *IQM) Start() {
	m.localQM.Start()
	m.localQM.WaitForReady()
	m.localQM.Subscribe([]string{m.inQueue + "/#"})
}

// Stop disconnects every neighbour queue manager, then the local one.
func (m *IQM) Stop() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.neighbourClients))
	for id := range m.neighbourClients {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.stopNeighbour(id)
	}
	m.localQM.Stop()
}

// handleLocalMessage is the copy callback for messages arriving on the
// local in-queue: they are republished, filtered, to both the local
// out-queue and the local inter-queue (for neighbours).
func (m *IQM) handleLocalMessage(topic string, payload []byte) {
	if m.onMessage != nil {
		m.onMessage()
	}
	m.router.HandleMessage(CopyJob{
		Publisher: m.localQM,
		CopyFrom:  m.inQueue,
		CopyTo:    []string{m.outQueue, m.interQueue},
	}, topic, payload)
}

// UpdateNeighbours reconciles the running neighbour queue managers
// against a freshly loaded neighbour set, as delivered by the
// authority. Neighbours that are gone or have changed connection
// details are stopped before any new or changed neighbour is started,
// so a changed neighbour's old client is never left running alongside
// its replacement.
func (m *IQM) UpdateNeighbours(loaded map[string]NeighbourConfig) {
	m.mu.Lock()
	toStop, toStart := diffNeighbours(m.neighbours, loaded)
	m.mu.Unlock()

	for _, id := range toStop {
		m.stopNeighbour(id)
	}
	for _, id := range toStart {
		m.startNeighbour(id, loaded[id])
	}

	m.mu.Lock()
	m.neighbours = loaded
	m.mu.Unlock()
}

func (m *IQM) stopNeighbour(id string) {
	m.mu.Lock()
	client, ok := m.neighbourClients[id]
	if ok {
		delete(m.neighbourClients, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	client.Stop()
	m.log.Info().Str("neighbour", id).Msg("iqm: stopped neighbour queue manager")
}

func (m *IQM) startNeighbour(id string, nc NeighbourConfig) {
	interQueue := queueName(nc.Prefix, "inter", nc.Suffix)

	client := mqttclient.New(mqttclient.Options{
		ClientID: m.instanceID + "-" + id,
		Host:     nc.Host,
		Port:     nc.Port,
		Username: nc.Username,
		Password: nc.Password,
		OnMessage: func(topic string, payload []byte) {
			if m.onMessage != nil {
				m.onMessage()
			}
			m.router.HandleMessage(CopyJob{
				Publisher: m.localQM,
				CopyFrom:  interQueue,
				CopyTo:    []string{m.outQueue},
			}, topic, payload)
		},
		Logger: m.log,
	})

	m.mu.Lock()
	m.neighbourClients[id] = client
	m.mu.Unlock()

	client.Start()
	client.WaitForReady()
	client.Subscribe([]string{interQueue + "/#"})
	m.log.Info().Str("neighbour", id).Msg("iqm: started neighbour queue manager")
}
