package mqttclient

import (
	"crypto/tls"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// WebSocketOptions configures the WebSocket (or WebSocket+TLS) broker
// transport variant required alongside plain TCP, per the messaging
// fabric's transport list.
type WebSocketOptions struct {
	ClientID string
	URL      string // e.g. "wss://broker.example.org/mqtt"
	Username string
	Password string

	OnMessage MessageHandler
	TLSConfig *tls.Config

	Logger zerolog.Logger
}

// NewWebSocket builds a Client that reaches its broker over a
// WebSocket (ws:// or wss://) URL instead of raw TCP. All subscription,
// reconnect and publish semantics are identical to New; only the
// transport differs, since paho.mqtt.golang's WebSocket support is
// selected purely by the scheme of the broker URL handed to AddBroker.
func NewWebSocket(opts WebSocketOptions) *Client {
	c := &Client{
		opts: Options{ClientID: opts.ClientID, OnMessage: opts.OnMessage},
		name: opts.URL,
		log:  opts.Logger.With().Str("component", "mqttclient").Str("broker", opts.URL).Logger(),
		subs: map[string]struct{}{},
	}

	o := mqtt.NewClientOptions()
	o.AddBroker(opts.URL)
	o.SetClientID(opts.ClientID)
	o.SetUsername(opts.Username)
	o.SetPassword(opts.Password)
	o.SetProtocolVersion(5)
	o.SetCleanSession(true)
	o.SetAutoReconnect(true)
	o.SetConnectRetryInterval(time.Second)
	o.SetMaxReconnectInterval(2 * time.Second)
	if opts.TLSConfig != nil {
		o.SetTLSConfig(opts.TLSConfig)
	}
	o.SetOnConnectHandler(c.onConnect)
	o.SetDefaultPublishHandler(c.onMessage)

	c.raw = mqtt.NewClient(o)
	return c
}
