package gnss

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// tpvMessage and attMessage mirror the subset of gpsd's JSON protocol
// fields this client consumes; gpsd reports many more fields we ignore.
type tpvMessage struct {
	Class string   `json:"class"`
	Time  string   `json:"time"`
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
	Alt   *float64 `json:"altHAE"`
	Speed *float64 `json:"speed"`
	Track *float64 `json:"track"`
	EPH   *float64 `json:"eph"`
	EPV   *float64 `json:"epv"`
}

type attMessage struct {
	Class    string   `json:"class"`
	AccLen   *float64 `json:"acc_len"`
	Heading  *float64 `json:"heading"`
	MHeading *float64 `json:"mheading"`
}

// Client is a small abstraction over a gpsd daemon: it maintains the
// latest TPV (position/velocity) and ATT (attitude) sentences in the
// background and exposes the latest fix as a Report, or nil if no fix
// is available or the last one is older than one second.
type Client struct {
	addr string
	log  zerolog.Logger

	mu       sync.Mutex
	tpv      *tpvMessage
	tpvStamp time.Time
	att      *attMessage

	cancel context.CancelFunc
	done   chan struct{}
}

const staleAfter = time.Second

// NewClient builds a Client targeting the given gpsd host:port. An empty
// host defaults to 127.0.0.1, and a zero port defaults to gpsd's
// well-known port 2947.
func NewClient(host string, port int, log zerolog.Logger) *Client {
	if host == "" {
		host = "127.0.0.1"
	}
	if port == 0 {
		port = 2947
	}
	return &Client{addr: net.JoinHostPort(host, strconv.Itoa(port)), log: log.With().Str("component", "gnss").Logger()}
}

// Start connects to gpsd in the background and keeps reconnecting,
// bounded by a one-second backoff, until Stop is called.
func (c *Client) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.loop(ctx)
}

// Stop signals the background loop to exit; it does not block.
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// Wait blocks until the background loop has exited.
func (c *Client) Wait() {
	if c.done != nil {
		<-c.done
	}
}

func (c *Client) loop(ctx context.Context) {
	defer close(c.done)
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := net.DialTimeout("tcp", c.addr, 2*time.Second)
		if err != nil {
			c.log.Warn().Err(err).Str("addr", c.addr).Msg("gnss: connect failed, retrying")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		c.readLoop(ctx, conn)
		conn.Close()
	}
}

func (c *Client) readLoop(ctx context.Context, conn net.Conn) {
	if _, err := conn.Write([]byte(`?WATCH={"enable":true,"json":true};` + "\n")); err != nil {
		return
	}
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		line := scanner.Bytes()
		if len(line) == 0 {
			return
		}
		var probe struct {
			Class string `json:"class"`
		}
		if err := json.Unmarshal(line, &probe); err != nil {
			// gpsd sentences may be truncated at its max line length;
			// skip malformed lines rather than tearing down the link.
			continue
		}
		switch probe.Class {
		case "TPV":
			var tpv tpvMessage
			if json.Unmarshal(line, &tpv) == nil {
				c.mu.Lock()
				c.tpv = &tpv
				c.tpvStamp = time.Now()
				c.mu.Unlock()
			}
		case "ATT":
			var att attMessage
			if json.Unmarshal(line, &att) == nil {
				c.mu.Lock()
				c.att = &att
				c.mu.Unlock()
			}
		}
	}
}

// Latest returns the most recent Report, or nil if no position fix has
// been received yet, or the last one is more than a second old.
func (c *Client) Latest() *Report {
	c.mu.Lock()
	tpv, stamp, att := c.tpv, c.tpvStamp, c.att
	c.mu.Unlock()

	if tpv == nil || tpv.Lat == nil || tpv.Lon == nil {
		return nil
	}
	if time.Since(stamp) > staleAfter {
		return nil
	}

	params := Params{
		Latitude:        tpv.Lat,
		Longitude:       tpv.Lon,
		Altitude:        tpv.Alt,
		Speed:           tpv.Speed,
		Track:           tpv.Track,
		HorizontalError: tpv.EPH,
		AltitudeError:   tpv.EPV,
	}
	if att != nil {
		params.Acceleration = att.AccLen
		params.TrueHeading = att.Heading
		params.MagneticHeading = att.MHeading
	}
	rpt, err := New(params)
	if err != nil {
		c.log.Warn().Err(err).Msg("gnss: dropping invalid fix")
		return nil
	}
	return rpt
}
