// Package authority implements the IQM's central-authority clients:
// the sources from which a fabric node learns its current neighbour
// set. Three transports are supported — a local file, periodic HTTP
// polling, and an MQTT subscription — selected by configuration and
// exposed behind a single Authority interface.
package authority

import "fmt"

// Sections is the loaded neighbour set in its rawest form: one section
// per neighbour ID, each a flat string-keyed property map. This
// mirrors Python's configparser.ConfigParser section/key/value shape,
// which both the file and HTTP authority variants parse; the MQTT
// variant decodes the same shape out of a JSON payload instead.
type Sections map[string]map[string]string

// UpdateFunc is invoked with a freshly loaded neighbour set every time
// one becomes available, whatever the transport.
type UpdateFunc func(Sections)

// Authority is a running central-authority client.
type Authority interface {
	Start()
	Stop()
}

// Config configures whichever Authority variant Type selects. Only the
// fields relevant to that variant need be set.
type Config struct {
	Type string // "file", "http", or "mqtt"

	// file
	Path          string
	ReloadSeconds int // 0 means load once and never reload

	// http
	URI string

	// mqtt
	Host     string
	Port     int
	Username string
	Password string
	Topic    string
	ClientID string
}

// New builds the Authority variant named by cfg.Type.
func New(instanceID string, cfg Config, updateCb UpdateFunc) (Authority, error) {
	switch cfg.Type {
	case "file":
		return NewFile(cfg, updateCb), nil
	case "http":
		return NewHTTP(cfg, updateCb), nil
	case "mqtt":
		return NewMQTT(instanceID, cfg, updateCb), nil
	default:
		return nil, fmt.Errorf("authority: unknown central authority type %q", cfg.Type)
	}
}
