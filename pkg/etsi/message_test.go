package etsi

import (
	"encoding/json"
	"testing"

	"github.com/orange-opensource/its-fabric/pkg/gnss"
)

func sampleReport(t *testing.T) *gnss.Report {
	t.Helper()
	rpt, err := gnss.New(gnss.Params{
		Latitude:        float64Ptr(43.635),
		Longitude:       float64Ptr(1.444),
		Altitude:        float64Ptr(150.0),
		Speed:           float64Ptr(10.0),
		Track:           float64Ptr(90.0),
		HorizontalError: float64Ptr(2.0),
		Acceleration:    float64Ptr(0.5),
	})
	if err != nil {
		t.Fatalf("gnss.New: %v", err)
	}
	return rpt
}

func testClock() *Clock {
	return NewClock(NewFallbackTable(nil))
}

func TestCAMRoundTripsThroughJSON(t *testing.T) {
	rpt := sampleReport(t)
	cam := NewCAM("vehicle-1", StationTypePassengerCar, rpt, testClock())

	raw, err := json.Marshal(cam)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	msg, err := FromJSON(raw)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if msg.Type() != "cam" {
		t.Fatalf("type = %s, want cam", msg.Type())
	}
	if got := msg.Latitude(); got < 43.634 || got > 43.636 {
		t.Fatalf("latitude = %v, want ~43.635", got)
	}
}

func TestDENMSequenceNumberAllocationAndContinuation(t *testing.T) {
	rpt := sampleReport(t)
	clock := testClock()

	first := NewDENM("vehicle-2", rpt, DENMOptions{Cause: CauseAccident}, clock)
	second := NewDENM("vehicle-2", rpt, DENMOptions{Cause: CauseAccident}, clock)
	if second.SequenceNumber() == first.SequenceNumber() {
		t.Fatalf("expected distinct sequence numbers, got %d twice", first.SequenceNumber())
	}

	seq := first.SequenceNumber()
	termination := TerminationCancellation
	cancel := NewDENM("vehicle-2", rpt, DENMOptions{
		Cause:          CauseAccident,
		Termination:    &termination,
		SequenceNumber: &seq,
	}, clock)
	if cancel.SequenceNumber() != first.SequenceNumber() {
		t.Fatalf("cancellation must reuse the original sequence number")
	}
}

func TestCPMPerceivedObjectsRoundTrip(t *testing.T) {
	rpt := sampleReport(t)
	clock := testClock()

	vehicle := TrafficPassengerCar
	cpm := NewCPM("vehicle-3", StationTypePassengerCar, rpt, nil, clock)
	cpm.AddPerceivedObject(PerceivedObject{
		ObjectID:             1,
		MeasurementDeltaTime: 0.1,
		XDistance:            12.5,
		YDistance:            -3.0,
		Quality:              7,
		ObjectClass:          &ObjectClass{Vehicle: &vehicle},
		ObjectClassConfidence: 90,
	})

	objs := cpm.PerceivedObjects()
	if len(objs) != 1 {
		t.Fatalf("expected 1 perceived object, got %d", len(objs))
	}
	if objs[0].ObjectClass == nil || objs[0].ObjectClass.Vehicle == nil || *objs[0].ObjectClass.Vehicle != TrafficPassengerCar {
		t.Fatalf("object class not preserved: %+v", objs[0].ObjectClass)
	}
}
