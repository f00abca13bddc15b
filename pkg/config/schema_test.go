package config

import "testing"

func TestLoadRootParsesFullTree(t *testing.T) {
	path := writeTestConfig(t, `
logging:
  level: debug
  format: console
mqtt:
  host: broker.example
  port: 8883
  tls: true
topics:
  prefix: region-a
  suffix: ""
  default_depths:
    cam: 22
    denm: 20
roi:
  depths:
    cam: 22
  speeds: [5, 15, 30]
authority:
  type: file
  path: /etc/fabric/neighbours.ini
  reload_seconds: 60
filters:
  - name: drop-private
    in_prefix: "in/private/"
    drop: true
telemetry:
  endpoint: "http://collector:4318"
  compression: gzip
info:
  topic: info
  period_seconds: 600
  service_area: ["12020203"]
bootstrap:
  endpoint: "https://bootstrap.example/register"
  role: vehicle
web:
  port: 8080
gnss:
  host: 127.0.0.1
  port: 2947
`)

	root, err := LoadRoot(path)
	if err != nil {
		t.Fatalf("LoadRoot: %v", err)
	}

	if root.MQTT.Host != "broker.example" || root.MQTT.Port != 8883 || !root.MQTT.TLS {
		t.Fatalf("unexpected MQTT config: %+v", root.MQTT)
	}
	if root.Topics.Prefix != "region-a" || root.Topics.DefaultDepths["cam"] != 22 {
		t.Fatalf("unexpected topics config: %+v", root.Topics)
	}
	if len(root.Filters) != 1 || root.Filters[0].Name != "drop-private" || !root.Filters[0].Drop {
		t.Fatalf("unexpected filters: %+v", root.Filters)
	}
	if root.Authority.Type != "file" || root.Authority.ReloadSeconds != 60 {
		t.Fatalf("unexpected authority config: %+v", root.Authority)
	}
	if root.Info.PeriodSecs != 600 || len(root.Info.ServiceArea) != 1 {
		t.Fatalf("unexpected info config: %+v", root.Info)
	}
	if root.Bootstrap.Role != "vehicle" {
		t.Fatalf("unexpected bootstrap config: %+v", root.Bootstrap)
	}
}

func TestLoadRootMissingFileIsAnError(t *testing.T) {
	if _, err := LoadRoot("/nonexistent/path/config.yaml"); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}
