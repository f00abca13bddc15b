package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/orange-opensource/its-fabric/internal/logger"
	"github.com/orange-opensource/its-fabric/pkg/authority"
	"github.com/orange-opensource/its-fabric/pkg/config"
	"github.com/orange-opensource/its-fabric/pkg/health"
	"github.com/orange-opensource/its-fabric/pkg/iqm"
	"github.com/orange-opensource/its-fabric/pkg/telemetry"
	"github.com/orange-opensource/its-fabric/pkg/web"
)

const appName = "iqm"

var (
	configPath = flag.String("config", "configs/iqm.yaml", "Path to configuration file")
	instanceID = flag.String("instance-id", "", "Instance identifier (overrides config)")
	version    = flag.Bool("version", false, "Print version and exit")
)

const appVersion = "1.0.0"

// Application wires together one Inter-Queue Manager instance: its
// local broker connection, its neighbour authority client, telemetry
// export, and the health/admin web front door.
type Application struct {
	log       *logger.Logger
	cfgMgr    *config.Manager
	health    *health.HealthCheck
	telemetry *telemetry.Provider
	authority authority.Authority
	router    *iqm.IQM
	webServer *web.Server
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

	if err := app.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		os.Exit(1)
	}

	app.WaitForShutdown()

	if err := app.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "error during shutdown: %v\n", err)
		os.Exit(1)
	}
}

// NewApplication builds every component from root but starts nothing.
func NewApplication(root *config.Root, configFile string) (*Application, error) {
	app := &Application{}

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
		return nil, fmt.Errorf("iqm: initializing logger: %w", err)
	}
	app.log = log
	zlog := log.Zerolog()

	id := *instanceID
	if id == "" {
		id = root.MQTT.ClientID
	}

	app.health = health.NewHealthCheck(&health.Config{
		Enabled:       true,
		CheckInterval: 10 * time.Second,
	})

	app.cfgMgr, err = config.NewManager(configFile, nil)
	if err != nil {
		return nil, fmt.Errorf("iqm: initializing config manager: %w", err)
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
		return nil, fmt.Errorf("iqm: initializing telemetry: %w", err)
	}

	app.router, err = iqm.New(iqm.Config{
		InstanceID: id,
		Prefix:     root.Topics.Prefix,
		Suffix:     root.Topics.Suffix,
		Local: iqm.Broker{
			Host:     root.MQTT.Host,
			Port:     root.MQTT.Port,
			Username: root.MQTT.Username,
			Password: root.MQTT.Password,
		},
		Filters:   root.Filters,
		Logger:    zlog,
		OnMessage: app.health.RecordMessage,
	})
	if err != nil {
		return nil, fmt.Errorf("iqm: initializing router: %w", err)
	}

	app.authority, err = authority.New(id, authority.Config{
		Type:          root.Authority.Type,
		Path:          root.Authority.Path,
		ReloadSeconds: root.Authority.ReloadSeconds,
		URI:           root.Authority.URI,
		Host:          root.Authority.Host,
		Port:          root.Authority.Port,
		Username:      root.Authority.Username,
		Password:      root.Authority.Password,
		Topic:         root.Authority.Topic,
		ClientID:      root.Authority.ClientID,
	}, func(sections authority.Sections) {
		app.router.UpdateNeighbours(iqm.NeighboursFromSections(sections))
	})
	if err != nil {
		return nil, fmt.Errorf("iqm: initializing authority client: %w", err)
	}

	app.webServer = web.New(web.Config{
		Port:          root.Web.Port,
		AdminToken:    root.Web.AdminToken,
		Health:        app.health,
		ConfigManager: app.cfgMgr,
		Logger:        zlog.With().Str("component", "web").Logger(),
	})

	return app, nil
}

// Start brings up the router, the authority client, and the web front
// door, in that order so the router is already accepting local traffic
// before neighbours can be reconciled against it.
func (a *Application) Start() error {
	a.log.Info("starting iqm", "component", "main")
	a.router.Start()
	a.authority.Start()
	a.health.UpdateComponentStatus("iqm", true, "router started")

	go func() {
		if err := a.webServer.Start(); err != nil {
			a.log.Error("web server error", err)
		}
	}()

	return nil
}

// Stop tears down components in reverse start order.
func (a *Application) Stop() error {
	a.log.Info("stopping iqm", "component", "main")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.webServer.Stop(ctx); err != nil {
		a.log.Error("web server shutdown error", err)
	}

	a.authority.Stop()
	a.router.Stop()

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
