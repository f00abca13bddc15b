package authority

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/orange-opensource/its-fabric/pkg/mqttclient"
)

// MQTTAuthority subscribes to a single topic on which the central
// authority publishes the whole neighbour set, JSON-encoded, on every
// change.
type MQTTAuthority struct {
	topic    string
	client   *mqttclient.Client
	updateCb UpdateFunc
	log      zerolog.Logger
}

// NewMQTT builds an MQTTAuthority from cfg.
func NewMQTT(instanceID string, cfg Config, updateCb UpdateFunc) *MQTTAuthority {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = instanceID
	}

	a := &MQTTAuthority{
		topic:    cfg.Topic,
		updateCb: updateCb,
	}
	a.client = mqttclient.New(mqttclient.Options{
		ClientID:  clientID,
		Host:      cfg.Host,
		Port:      cfg.Port,
		Username:  cfg.Username,
		Password:  cfg.Password,
		OnMessage: a.onMessage,
	})
	return a
}

func (a *MQTTAuthority) Start() {
	a.log.Info().Str("topic", a.topic).Msg("authority: starting mqtt client")
	a.client.Start()
	a.client.WaitForReady()
	a.client.Subscribe([]string{a.topic})
}

func (a *MQTTAuthority) Stop() {
	a.log.Info().Str("topic", a.topic).Msg("authority: stopping mqtt client")
	a.client.Stop()
}

func (a *MQTTAuthority) onMessage(_ string, payload []byte) {
	a.log.Info().Msg("authority: received neighbours")
	var loaded Sections
	if err := json.Unmarshal(payload, &loaded); err != nil {
		a.log.Debug().Err(err).Msg("authority: malformed neighbour payload; changing nothing")
		return
	}
	a.updateCb(loaded)
}
