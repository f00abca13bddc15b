package info

import (
	"encoding/json"
	"testing"
	"time"
)

type fakePublisher struct {
	topic   string
	payload []byte
	retain  bool
	calls   int
}

func (f *fakePublisher) Publish(topic string, payload []byte, retain bool) {
	f.topic, f.payload, f.retain = topic, payload, retain
	f.calls++
}

func TestStartPublishesImmediatelyWithRetain(t *testing.T) {
	pub := &fakePublisher{}
	b := New(Config{
		InstanceID:   "broker-1",
		InstanceType: "local",
		Period:       time.Minute,
		ServiceArea:  []string{"12020203"},
		Publisher:    pub,
	})
	b.Start()
	defer b.Stop()

	if pub.calls != 1 {
		t.Fatalf("calls = %d, want 1", pub.calls)
	}
	if pub.topic != "info" {
		t.Fatalf("topic = %q, want info", pub.topic)
	}
	if !pub.retain {
		t.Fatalf("expected beacon message to be retained")
	}

	var msg message
	if err := json.Unmarshal(pub.payload, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.InstanceID != "broker-1" || msg.InstanceType != "local" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.ValidityDuration != 120 {
		t.Fatalf("ValidityDuration = %d, want 120 (2x a 60s period)", msg.ValidityDuration)
	}
	if !msg.Running {
		t.Fatalf("expected Running to be true")
	}
	if len(msg.ServiceArea) != 1 || msg.ServiceArea[0] != "12020203" {
		t.Fatalf("ServiceArea = %v", msg.ServiceArea)
	}
}

func TestCustomTopicIsRespected(t *testing.T) {
	pub := &fakePublisher{}
	b := New(Config{Topic: "broker/info", Period: time.Second, Publisher: pub})
	b.Start()
	defer b.Stop()

	if pub.topic != "broker/info" {
		t.Fatalf("topic = %q, want broker/info", pub.topic)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	pub := &fakePublisher{}
	b := New(Config{Period: time.Millisecond, Publisher: pub})
	b.Start()
	b.Stop()
	b.Stop()
}
