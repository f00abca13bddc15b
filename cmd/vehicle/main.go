package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/orange-opensource/its-fabric/internal/logger"
	"github.com/orange-opensource/its-fabric/pkg/config"
	"github.com/orange-opensource/its-fabric/pkg/etsi"
	"github.com/orange-opensource/its-fabric/pkg/gnss"
	"github.com/orange-opensource/its-fabric/pkg/health"
	"github.com/orange-opensource/its-fabric/pkg/mqttclient"
	"github.com/orange-opensource/its-fabric/pkg/quadkey"
	"github.com/orange-opensource/its-fabric/pkg/roi"
	"github.com/orange-opensource/its-fabric/pkg/telemetry"
	"github.com/orange-opensource/its-fabric/pkg/web"
)

const appName = "vehicle"
const appVersion = "1.0.0"

const (
	camPeriod        = time.Second
	subscribeRefresh = 2 * time.Second
	publishDepth     = 22
)

var (
	configPath = flag.String("config", "configs/vehicle.yaml", "Path to configuration file")
	stationID  = flag.String("uuid", "", "Station source_uuid (random if unset)")
	version    = flag.Bool("version", false, "Print version and exit")
)

// Application wires one vehicle endpoint: a GNSS fix source, a CAM
// beacon loop, and a geo-subscription engine that keeps the station's
// live MQTT subscription set matched to its region of interest.
type Application struct {
	log       *logger.Logger
	cfgMgr    *config.Manager
	health    *health.HealthCheck
	telemetry *telemetry.Provider
	gnss      *gnss.Client
	client    *mqttclient.Client
	webServer *web.Server

	region   *roi.RegionOfInterest
	inTopic  string
	outTopic string
	uuid     string
	clock    *etsi.Clock

	stop chan struct{}
	wg   sync.WaitGroup
}

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("%s version %s\n", appName, appVersion)
		os.Exit(0)
	}

	root, err := config.LoadRoot(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	app, err := NewApplication(root, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize: %v\n", err)
		os.Exit(1)
	}

	app.Start()
	app.WaitForShutdown()

	if err := app.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "error during shutdown: %v\n", err)
		os.Exit(1)
	}
}

// NewApplication builds every component from root but starts nothing.
func NewApplication(root *config.Root, configFile string) (*Application, error) {
	app := &Application{stop: make(chan struct{})}

	log, err := logger.New(logger.Config{
		Path:       root.Logging.Path,
		Level:      root.Logging.Level,
		Format:     root.Logging.Format,
		MaxSizeMB:  root.Logging.MaxSizeMB,
		MaxBackups: root.Logging.MaxBackups,
		MaxAgeDays: root.Logging.MaxAgeDays,
		Compress:   root.Logging.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("vehicle: initializing logger: %w", err)
	}
	app.log = log
	zlog := log.Zerolog()

	app.uuid = *stationID
	if app.uuid == "" {
		app.uuid = uuid.NewString()
	}

	app.health = health.NewHealthCheck(&health.Config{
		Enabled:       true,
		CheckInterval: 10 * time.Second,
	})

	app.cfgMgr, err = config.NewManager(configFile, nil)
	if err != nil {
		return nil, fmt.Errorf("vehicle: initializing config manager: %w", err)
	}

	ctx := context.Background()
	app.telemetry, err = telemetry.New(ctx, telemetry.Config{
		ServiceName:        appName,
		Endpoint:           root.Telemetry.Endpoint,
		Username:           root.Telemetry.Username,
		Password:           root.Telemetry.Password,
		BatchTimeout:       time.Duration(root.Telemetry.BatchTimeoutMS) * time.Millisecond,
		MaxExportBatchSize: root.Telemetry.MaxExportBatchSize,
		Compression:        telemetry.Compression(root.Telemetry.Compression),
	})
	if err != nil {
		return nil, fmt.Errorf("vehicle: initializing telemetry: %w", err)
	}

	app.clock = etsi.NewClock(etsi.NewFallbackTable(func(latest time.Time) {
		zlog.Warn().Time("latest_known_entry", latest).Msg("vehicle: leap-second table is stale")
	}))

	app.gnss = gnss.NewClient(root.GNSS.Host, root.GNSS.Port, zlog)

	app.region = &roi.RegionOfInterest{Depths: root.ROI.Depths, Speeds: root.ROI.Speeds}
	app.inTopic = queueName(root.Topics.Prefix, "in", root.Topics.Suffix)
	app.outTopic = queueName(root.Topics.Prefix, "out", root.Topics.Suffix)

	app.client = mqttclient.New(mqttclient.Options{
		ClientID: app.uuid,
		Host:     root.MQTT.Host,
		Port:     root.MQTT.Port,
		Username: root.MQTT.Username,
		Password: root.MQTT.Password,
		OnMessage: func(topic string, payload []byte) {
			app.health.RecordMessage()
			msg, err := etsi.FromJSON(payload)
			if err != nil {
				zlog.Warn().Err(err).Str("topic", topic).Msg("vehicle: dropping undecodable message")
				app.health.RecordError(err)
				return
			}
			zlog.Debug().Str("type", msg.Type()).Str("source_uuid", msg.SourceUUID()).Msg("vehicle: received nearby message")
		},
		Logger: zlog,
	})

	app.webServer = web.New(web.Config{
		Port:          root.Web.Port,
		AdminToken:    root.Web.AdminToken,
		Health:        app.health,
		ConfigManager: app.cfgMgr,
		Logger:        zlog.With().Str("component", "web").Logger(),
	})

	return app, nil
}

// Start brings up the GNSS feed and MQTT client, then launches the
// beaconing and geo-subscription loops in the background.
func (a *Application) Start() {
	a.log.Info("starting vehicle endpoint", "source_uuid", a.uuid)

	a.gnss.Start()
	a.client.Start()
	a.client.WaitForReady()
	a.health.UpdateComponentStatus("vehicle", true, "publishing")

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.publishLoop()
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.subscribeLoop()
	}()

	go func() {
		if err := a.webServer.Start(); err != nil {
			a.log.Error("web server error", err)
		}
	}()
}

// Stop tears down components in reverse start order.
func (a *Application) Stop() error {
	a.log.Info("stopping vehicle endpoint", "component", "main")

	close(a.stop)
	a.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.webServer.Stop(ctx); err != nil {
		a.log.Error("web server shutdown error", err)
	}

	a.gnss.Stop()
	a.gnss.Wait()
	a.client.Stop()

	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.log.Error("telemetry shutdown error", err)
	}

	return a.log.Close()
}

// WaitForShutdown blocks until SIGINT or SIGTERM is received.
func (a *Application) WaitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	a.log.Info("received shutdown signal", "signal", sig.String())
}

// publishLoop emits a CAM every camPeriod while a fresh GNSS fix is
// available, publishing to the IQM's in-queue at the station's own
// quadkey tile so the IQM's filter chain and fan-out route it onward.
func (a *Application) publishLoop() {
	ticker := time.NewTicker(camPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rpt := a.gnss.Latest()
			if rpt == nil {
				continue
			}
			cam := etsi.NewCAM(a.uuid, etsi.StationTypePassengerCar, rpt, a.clock)
			payload, err := cam.MarshalJSON()
			if err != nil {
				a.health.RecordError(err)
				continue
			}
			a.client.Publish(a.inTopic+"/"+cam.Topic(publishDepth), payload, false)
			a.health.RecordMessage()
		case <-a.stop:
			return
		}
	}
}

// subscribeLoop keeps the client's subscription set matched to the
// vehicle's region of interest as its position and speed change,
// diffing against the previous set via SubscribeReplace rather than
// blindly resubscribing every tick.
func (a *Application) subscribeLoop() {
	ticker := time.NewTicker(subscribeRefresh)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rpt := a.gnss.Latest()
			if rpt == nil || rpt.Latitude == nil || rpt.Longitude == nil {
				continue
			}
			speed := 0.0
			if rpt.Speed != nil {
				speed = *rpt.Speed
			}
			qk := quadkey.FromLatLon(*rpt.Latitude, *rpt.Longitude, maxDepth(a.region))
			var topics []string
			for msgType := range a.region.Depths {
				for _, tile := range a.region.Get(qk, speed, msgType) {
					topics = append(topics, a.outTopic+"/"+tile)
				}
			}
			a.client.SubscribeReplace(topics)
		case <-a.stop:
			return
		}
	}
}

func maxDepth(region *roi.RegionOfInterest) int {
	max := 1
	for _, d := range region.Depths {
		if d > max {
			max = d
		}
	}
	return max
}

func queueName(prefix, base, suffix string) string {
	var parts []string
	if prefix != "" {
		parts = append(parts, prefix)
	}
	parts = append(parts, base)
	if suffix != "" {
		parts = append(parts, suffix)
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += "/" + p
	}
	return out
}
