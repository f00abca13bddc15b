package authority

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// HTTPAuthority polls a URI on a fixed interval for the neighbour set,
// expressed in the same INI-style format the file authority reads. A
// failed poll leaves the current neighbour set unchanged rather than
// clearing it, so a transient outage of the authority server does not
// tear down every neighbour connection.
type HTTPAuthority struct {
	uri    string
	reload time.Duration

	client   *http.Client
	updateCb UpdateFunc
	log      zerolog.Logger
	stop     chan struct{}
}

// NewHTTP builds an HTTPAuthority from cfg.
func NewHTTP(cfg Config, updateCb UpdateFunc) *HTTPAuthority {
	return &HTTPAuthority{
		uri:      cfg.URI,
		reload:   time.Duration(cfg.ReloadSeconds) * time.Second,
		client:   &http.Client{Timeout: 10 * time.Second},
		updateCb: updateCb,
		stop:     make(chan struct{}),
	}
}

func (h *HTTPAuthority) Start() {
	h.log.Info().Str("uri", h.uri).Dur("reload", h.reload).Msg("authority: starting http client")
	go h.run()
}

func (h *HTTPAuthority) Stop() {
	h.log.Info().Str("uri", h.uri).Msg("authority: stopping http client")
	close(h.stop)
}

func (h *HTTPAuthority) run() {
	h.load()
	ticker := time.NewTicker(h.reload)
	defer ticker.Stop()
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			h.load()
		}
	}
}

func (h *HTTPAuthority) load() {
	h.log.Debug().Msg("authority: loading neighbours")
	resp, err := h.client.Get(h.uri)
	if err != nil {
		h.log.Debug().Err(err).Msg("authority: failed to download the list of neighbours; changing nothing")
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		h.log.Debug().Err(err).Msg("authority: failed to read the list of neighbours; changing nothing")
		return
	}

	sections := parseINI(bytes.NewReader(body))
	h.log.Debug().Int("neighbours", len(sections)).Msg("authority: loaded neighbours")
	h.updateCb(sections)
}
