package health

import (
	"errors"
	"testing"
	"time"
)

func TestOverallHealthTracksComponents(t *testing.T) {
	hc := NewHealthCheck(&Config{})

	hc.UpdateComponentStatus("iqm", true, "ok")
	if !hc.IsHealthy() {
		t.Fatalf("expected healthy with one healthy component")
	}

	hc.UpdateComponentStatus("mqttclient", false, "disconnected")
	if hc.IsHealthy() {
		t.Fatalf("expected unhealthy once a component reports unhealthy")
	}

	hc.UpdateComponentStatus("mqttclient", true, "reconnected")
	if !hc.IsHealthy() {
		t.Fatalf("expected healthy again once the component recovers")
	}
}

func TestRecordMessageAndErrorCounters(t *testing.T) {
	hc := NewHealthCheck(&Config{})

	hc.RecordMessage()
	hc.RecordMessage()
	hc.RecordError(errors.New("boom"))

	status := hc.GetStatus()
	if status.MessagesProcessed != 2 {
		t.Fatalf("MessagesProcessed = %d, want 2", status.MessagesProcessed)
	}
	if status.ErrorCount != 1 || status.LastError != "boom" {
		t.Fatalf("unexpected error state: %+v", status)
	}
}

func TestGetStatusReturnsIndependentCopy(t *testing.T) {
	hc := NewHealthCheck(&Config{})
	hc.UpdateComponentStatus("iqm", true, "ok")

	status := hc.GetStatus()
	status.ComponentStatus["iqm"] = ComponentStatus{Name: "iqm", Healthy: false}

	again := hc.GetStatus()
	if !again.ComponentStatus["iqm"].Healthy {
		t.Fatalf("mutating a returned status leaked into the HealthCheck's state")
	}
}

func TestUpdateSessionCount(t *testing.T) {
	hc := NewHealthCheck(&Config{})
	hc.UpdateSessionCount(3)
	if hc.GetStatus().SessionsActive != 3 {
		t.Fatalf("SessionsActive = %d, want 3", hc.GetStatus().SessionsActive)
	}
}

func TestCheckLoopRefreshesTimestamp(t *testing.T) {
	hc := NewHealthCheck(&Config{Enabled: true, CheckInterval: 10 * time.Millisecond})
	start := hc.GetStatus().Timestamp
	time.Sleep(50 * time.Millisecond)
	if !hc.GetStatus().Timestamp.After(start) {
		t.Fatalf("expected the check loop to refresh Timestamp")
	}
}
