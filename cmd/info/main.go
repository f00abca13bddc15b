package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/orange-opensource/its-fabric/internal/logger"
	"github.com/orange-opensource/its-fabric/pkg/config"
	"github.com/orange-opensource/its-fabric/pkg/info"
	"github.com/orange-opensource/its-fabric/pkg/mqttclient"
)

const appName = "info"
const appVersion = "1.0.0"

var (
	configPath = flag.String("config", "configs/info.yaml", "Path to configuration file")
	instanceID = flag.String("instance-id", "", "Instance identifier (overrides config)")
	version    = flag.Bool("version", false, "Print version and exit")
)

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
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	id := *instanceID
	if id == "" {
		id = root.MQTT.ClientID
	}

	client := mqttclient.New(mqttclient.Options{
		ClientID: id + "-info",
		Host:     root.MQTT.Host,
		Port:     root.MQTT.Port,
		Username: root.MQTT.Username,
		Password: root.MQTT.Password,
		Logger:   log.Zerolog(),
	})

	period := time.Duration(root.Info.PeriodSecs) * time.Second
	if period <= 0 {
		period = 10 * time.Minute
	}

	beacon := info.New(info.Config{
		InstanceID:   id,
		InstanceType: root.Info.InstanceType,
		Topic:        root.Info.Topic,
		Period:       period,
		ServiceArea:  root.Info.ServiceArea,
		Publisher:    client,
		Logger:       log.Zerolog(),
	})

	log.Info("starting info beacon", "instance_id", id, "period_seconds", int(period.Seconds()))
	client.Start()
	client.WaitForReady()
	beacon.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("received shutdown signal", "signal", sig.String())

	beacon.Stop()
	client.Stop()
	log.Close()
}
