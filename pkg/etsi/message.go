package etsi

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/orange-opensource/its-fabric/pkg/gnss"
)

// StationType mirrors the ETSI ITS station type enumeration carried in
// CAM/CPM basic containers.
type StationType int

const (
	StationTypeUnknown StationType = 0
	StationTypePedestrian StationType = 1
	StationTypeCyclist StationType = 2
	StationTypeMoped StationType = 3
	StationTypeMotorcycle StationType = 4
	StationTypePassengerCar StationType = 5
	StationTypeBus StationType = 6
	StationTypeLightTruck StationType = 7
	StationTypeHeavyTruck StationType = 8
	StationTypeTrailer StationType = 9
	StationTypeSpecialVehicles StationType = 10
	StationTypeTram StationType = 11
	StationTypeRoadSideUnit StationType = 15
)

// TrafficParticipantType mirrors the classification values used by CPM
// perceived-object vehicle classification.
type TrafficParticipantType int

const (
	TrafficUnknown TrafficParticipantType = 0
	TrafficPedestrian TrafficParticipantType = 1
	TrafficCyclist TrafficParticipantType = 2
	TrafficMoped TrafficParticipantType = 3
	TrafficMotorcycle TrafficParticipantType = 4
	TrafficPassengerCar TrafficParticipantType = 5
	TrafficBus TrafficParticipantType = 6
	TrafficLightTruck TrafficParticipantType = 7
	TrafficHeavyTruck TrafficParticipantType = 8
	TrafficTrailer TrafficParticipantType = 9
	TrafficSpecialVehicles TrafficParticipantType = 10
	TrafficTram TrafficParticipantType = 11
	TrafficLightVruVehicle TrafficParticipantType = 12
	TrafficAnimal TrafficParticipantType = 13
	TrafficRoadSideUnit TrafficParticipantType = 15
)

// Message is the common capability every ETSI ITS message type (CAM,
// DENM, CPM) exposes regardless of its payload shape: its envelope
// fields, its reference position, and JSON (de)serialisation.
//
// Concrete types embed Envelope by value next to their own typed message
// body struct, and their accessors convert that body's scaled integers
// back to SI units.
type Message interface {
	Type() string
	SourceUUID() string
	StationID() uint32
	Latitude() float64
	Longitude() float64
	Altitude() float64
	Topic(depth int) string
	MarshalJSON() ([]byte, error)
}

// Envelope is the shared wire structure every message type carries:
// a discriminator, the source station's identity, and a timestamp.
// Concrete message types hold their type-specific payload alongside
// this and serialise both together.
type Envelope struct {
	MsgType   string `json:"type"`
	Origin    string `json:"origin"`
	Version   string `json:"version"`
	SourceUUID string `json:"source_uuid"`
	Timestamp int64  `json:"timestamp"`
}

func newEnvelope(msgType, version, uuid string, clock *Clock) Envelope {
	return Envelope{
		MsgType:    msgType,
		Origin:     "self",
		Version:    version,
		SourceUUID: uuid,
		Timestamp:  clock.UnixToETSIMillis(unixSeconds()),
	}
}

func unixSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// Decoder reconstructs one concrete Message type from its wire JSON.
// FromJSON dispatches on the "type" discriminator through a registry of
// Decoders keyed by type name instead of a single hardcoded dispatch
// table.
type Decoder func(raw []byte) (Message, error)

var registry = map[string]Decoder{}

// Register associates a message type discriminator with a decoder. Call
// from an init() in each message type's file.
func Register(msgType string, d Decoder) {
	registry[msgType] = d
}

// FromJSON parses raw wire JSON into the concrete Message type named by
// its "type" field.
func FromJSON(raw []byte) (Message, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("etsi: not a known ITS message: %w", err)
	}
	decode, ok := registry[probe.Type]
	if !ok {
		return nil, fmt.Errorf("etsi: unknown message type %q", probe.Type)
	}
	return decode(raw)
}

// GNSSReport is an alias kept local to this package so message
// constructors do not need to import gnss's exported name twice.
type GNSSReport = gnss.Report
