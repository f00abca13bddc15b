// Package mqttclient wraps an MQTT v5 client with the reconnect and
// subscription-set semantics the messaging fabric needs: bounded
// backoff, atomic subscription replacement, and resubscribe-all on
// reconnect. It has no telemetry hook: publishes and deliveries are not
// wrapped in tracing spans, and no trace context travels with messages.
package mqttclient

import (
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// MessageHandler receives a message delivered on a subscribed topic.
type MessageHandler func(topic string, payload []byte)

// Options configures a Client.
type Options struct {
	ClientID string

	// Host and Port name a broker reached over plain TCP. NewWebSocket
	// builds a Client for a ws:// or wss:// broker URL instead; UNIX
	// domain sockets are not supported.
	Host string
	Port int

	Username string
	Password string

	// OnMessage is invoked for every message delivered on a subscribed
	// topic. Subscribing without one set is a configuration error.
	OnMessage MessageHandler

	Logger zerolog.Logger
}

// Client is a small state machine around a paho MQTT v5 client: it owns
// the live subscription set, re-applies it after every reconnect, and
// exposes subscribe/unsubscribe/replace operations that diff against
// that set rather than blindly re-subscribing.
type Client struct {
	opts Options
	raw  mqtt.Client
	name string
	log  zerolog.Logger

	mu   sync.Mutex
	subs map[string]struct{}
}

// New builds a Client. It does not connect until Start is called.
func New(opts Options) *Client {
	name := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
	c := &Client{
		opts: opts,
		name: name,
		log:  opts.Logger.With().Str("component", "mqttclient").Str("broker", name).Logger(),
		subs: map[string]struct{}{},
	}

	o := mqtt.NewClientOptions()
	o.AddBroker(fmt.Sprintf("tcp://%s:%d", opts.Host, opts.Port))
	o.SetClientID(opts.ClientID)
	o.SetUsername(opts.Username)
	o.SetPassword(opts.Password)
	o.SetProtocolVersion(5)
	o.SetCleanSession(true)
	o.SetAutoReconnect(true)
	o.SetConnectRetryInterval(time.Second)
	o.SetMaxReconnectInterval(2 * time.Second)
	o.SetOnConnectHandler(c.onConnect)
	o.SetDefaultPublishHandler(c.onMessage)

	c.raw = mqtt.NewClient(o)
	return c
}

// Start connects to the broker asynchronously.
func (c *Client) Start() {
	c.raw.Connect()
}

// IsReady reports whether the client currently holds a live connection.
func (c *Client) IsReady() bool {
	return c.raw.IsConnectionOpen()
}

// WaitForReady blocks, polling, until the client is connected. It can
// block forever if the broker is never reachable.
func (c *Client) WaitForReady() {
	for !c.IsReady() {
		time.Sleep(100 * time.Millisecond)
	}
}

// Stop disconnects from the broker.
func (c *Client) Stop() {
	c.raw.Disconnect(250)
}

// Publish sends payload on topic at QoS 0. It silently drops the
// message if the client is not currently connected, matching the
// upstream's fire-and-forget semantics: the fabric never blocks a
// publisher waiting for reconnection.
func (c *Client) Publish(topic string, payload []byte, retain bool) {
	if !c.raw.IsConnectionOpen() {
		return
	}
	c.raw.Publish(topic, 0, retain, payload)
}

// Subscribe adds topics to the live subscription set. It is safe to
// pass topics already subscribed to. Panics if OnMessage was not set,
// since a subscription with nowhere to deliver messages is a
// programming error, not a runtime condition to recover from.
func (c *Client) Subscribe(topics []string) {
	c.requireHandler()
	c.mu.Lock()
	defer c.mu.Unlock()

	toAdd := c.diff(topics, c.subs)
	if len(toAdd) > 0 && c.raw.IsConnectionOpen() {
		c.subscribeRaw(toAdd)
	}
	for _, t := range topics {
		c.subs[t] = struct{}{}
	}
}

// SubscribeReplace atomically replaces the subscription set: topics
// present in the old set but absent from the new one are unsubscribed,
// and vice versa, in one locked operation.
func (c *Client) SubscribeReplace(topics []string) {
	c.requireHandler()
	c.mu.Lock()
	defer c.mu.Unlock()

	wanted := toSet(topics)
	if c.raw.IsConnectionOpen() {
		toRemove := c.diff(setKeys(c.subs), wanted)
		toAdd := c.diff(topics, c.subs)
		if len(toRemove) > 0 {
			c.raw.Unsubscribe(toRemove...)
		}
		if len(toAdd) > 0 {
			c.subscribeRaw(toAdd)
		}
	}
	c.subs = wanted
}

// Unsubscribe removes topics from the live subscription set. It is
// safe to pass topics that were not subscribed to.
func (c *Client) Unsubscribe(topics []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubscribeLocked(topics)
}

// UnsubscribeAll clears the entire subscription set.
func (c *Client) UnsubscribeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubscribeLocked(setKeys(c.subs))
}

func (c *Client) unsubscribeLocked(topics []string) {
	toRemove := intersect(topics, c.subs)
	if len(toRemove) > 0 && c.raw.IsConnectionOpen() {
		c.raw.Unsubscribe(toRemove...)
	}
	for _, t := range topics {
		delete(c.subs, t)
	}
}

// intersect returns the elements of items that are present in set.
func intersect(items []string, set map[string]struct{}) []string {
	var out []string
	for _, it := range items {
		if _, ok := set[it]; ok {
			out = append(out, it)
		}
	}
	return out
}

func (c *Client) subscribeRaw(topics []string) {
	filters := make(map[string]byte, len(topics))
	for _, t := range topics {
		filters[t] = 0
	}
	c.raw.SubscribeMultiple(filters, nil)
}

func (c *Client) requireHandler() {
	if c.opts.OnMessage == nil {
		panic(fmt.Sprintf("mqttclient %s: subscribing without a message callback", c.name))
	}
}

func (c *Client) onMessage(_ mqtt.Client, msg mqtt.Message) {
	if c.opts.OnMessage != nil {
		c.opts.OnMessage(msg.Topic(), msg.Payload())
	}
}

// onConnect resubscribes to every topic the caller had previously asked
// for, since a broker reconnection drops server-side subscription
// state.
func (c *Client) onConnect(_ mqtt.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.subs) == 0 {
		return
	}
	c.log.Info().Int("topics", len(c.subs)).Msg("mqttclient: resubscribing after (re)connect")
	c.subscribeRaw(setKeys(c.subs))
}

// diff returns the elements of `items` not present in `excluded`.
func (c *Client) diff(items []string, excluded map[string]struct{}) []string {
	var out []string
	for _, it := range items {
		if _, ok := excluded[it]; !ok {
			out = append(out, it)
		}
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	s := make(map[string]struct{}, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

func setKeys(s map[string]struct{}) []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	return out
}
