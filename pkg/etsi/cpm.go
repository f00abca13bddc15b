package etsi

import (
	"encoding/json"
	"fmt"

	"github.com/orange-opensource/its-fabric/pkg/quadkey"
)

const cpmVersion = "2.1.1"

// ObjectClass tags a PerceivedObject's best-effort classification. Only
// one of the three categories is meaningful at a time, mirroring the
// upstream Vehicle/Vru/Other union.
type ObjectClass struct {
	Vehicle *TrafficParticipantType `json:"vehicle,omitempty"`
	VruPedestrian *int `json:"vru_pedestrian,omitempty"`
	Other   *int                    `json:"other,omitempty"`
}

// PerceivedObject is one entry of a CPM's perceived-object list: another
// road user or obstacle detected by the reporting station's sensors,
// expressed in a station-relative Cartesian frame.
type PerceivedObject struct {
	ObjectID               int
	MeasurementDeltaTime   float64 // seconds relative to the CPM's own timestamp
	XDistance, YDistance   float64
	ObjectAge              *float64 // seconds
	XSpeed, YSpeed         *float64
	Quality                int
	ObjectClass            *ObjectClass
	ObjectClassConfidence  int
}

type cartesianComponent struct {
	Value      int64 `json:"value"`
	Confidence int64 `json:"confidence"`
}

type wirePerceivedObject struct {
	ObjectID             int    `json:"object_id"`
	MeasurementDeltaTime int64  `json:"measurement_delta_time"`
	ObjectAge            *int64 `json:"object_age,omitempty"`
	Position             struct {
		XCoordinate cartesianComponent `json:"x_coordinate"`
		YCoordinate cartesianComponent `json:"y_coordinate"`
	} `json:"position"`
	Velocity struct {
		CartesianVelocity struct {
			XVelocity cartesianComponent `json:"x_velocity"`
			YVelocity cartesianComponent `json:"y_velocity"`
		} `json:"cartesian_velocity"`
	} `json:"velocity"`
	ObjectPerceptionQuality int `json:"object_perception_quality"`
	Classification          []struct {
		ObjectClass ObjectClass `json:"object_class"`
		Confidence  int         `json:"confidence"`
	} `json:"classification,omitempty"`
}

type cpmAltitude struct {
	Value      int64 `json:"value"`
	Confidence int64 `json:"confidence"`
}

type cpmReferencePosition struct {
	Latitude                  int64             `json:"latitude"`
	Longitude                 int64             `json:"longitude"`
	Altitude                  cpmAltitude       `json:"altitude"`
	PositionConfidenceEllipse confidenceEllipseCPM `json:"position_confidence_ellipse"`
}

// confidenceEllipseCPM differs from CAM's in field naming (no
// "_confidence" suffix); kept distinct to match the CPM schema exactly.
type confidenceEllipseCPM struct {
	SemiMajor            int64 `json:"semi_major"`
	SemiMinor            int64 `json:"semi_minor"`
	SemiMajorOrientation int64 `json:"semi_major_orientation"`
}

type cpmManagementContainer struct {
	StationType       StationType          `json:"station_type"`
	ReferenceTime     int64                `json:"reference_time"`
	ReferencePosition cpmReferencePosition `json:"reference_position"`
}

type orientationAngle struct {
	Value      int64 `json:"value"`
	Confidence int   `json:"confidence"`
}

type originatingVehicleContainer struct {
	OrientationAngle orientationAngle `json:"orientation_angle"`
}

type cpmBody struct {
	ProtocolVersion             int                          `json:"protocol_version"`
	StationID                   uint32                       `json:"station_id"`
	ManagementContainer         cpmManagementContainer       `json:"management_container"`
	OriginatingVehicleContainer *originatingVehicleContainer `json:"originating_vehicle_container,omitempty"`
	OriginatingRSUContainer     *[]struct{}                  `json:"originating_rsu_container,omitempty"`
	PerceivedObjectContainer    []wirePerceivedObject         `json:"perceived_object_container"`
}

// CPM is a Collective Perception Message: a station's own position plus
// a list of other road users or obstacles it currently perceives.
type CPM struct {
	Envelope
	Msg            cpmBody `json:"message"`
	referenceStamp float64
}

// NewCPM builds a CPM from a GNSS fix and an initial set of perceived
// objects (which may be empty; objects can also be added afterwards
// with AddPerceivedObject).
func NewCPM(uuid string, stationType StationType, rpt *GNSSReport, objects []PerceivedObject, clock *Clock) *CPM {
	now := unixTimeOf(rpt)
	lat := deref(rpt.Latitude)
	lon := deref(rpt.Longitude)

	c := &CPM{
		Envelope:       newEnvelope("cpm", cpmVersion, uuid, clock),
		referenceStamp: now,
		Msg: cpmBody{
			ProtocolVersion: 1,
			StationID:       StationID(uuid),
			ManagementContainer: cpmManagementContainer{
				StationType:   stationType,
				ReferenceTime: clock.UnixToETSIMillis(now),
				ReferencePosition: cpmReferencePosition{
					Latitude:  SIToETSI(&lat, DeciMicroDegree, 900000001, nil, nil),
					Longitude: SIToETSI(&lon, DeciMicroDegree, 1800000001, nil, nil),
					Altitude: cpmAltitude{
						Value:      SIToETSI(rpt.Altitude, CentiMeter, 800001, nil, nil),
						Confidence: SIToETSI(nil, CentiMeter, 15, nil, nil),
					},
					PositionConfidenceEllipse: confidenceEllipseCPM{
						SemiMajor:            SIToETSI(rpt.HorizontalError, CentiMeter, 4095, &Range{Min: 0, Max: 4093}, int64Ptr(4094)),
						SemiMinor:            SIToETSI(rpt.HorizontalError, CentiMeter, 4095, &Range{Min: 0, Max: 4093}, int64Ptr(4094)),
						SemiMajorOrientation: SIToETSI(float64Ptr(0), DeciDegree, 3601, nil, nil),
					},
				},
			},
			PerceivedObjectContainer: []wirePerceivedObject{},
		},
	}

	switch stationType {
	case StationTypeUnknown:
		// No station-specific container.
	case StationTypeRoadSideUnit:
		empty := []struct{}{}
		c.Msg.OriginatingRSUContainer = &empty
	default:
		c.Msg.OriginatingVehicleContainer = &originatingVehicleContainer{
			OrientationAngle: orientationAngle{
				Value:      SIToETSI(rpt.TrueHeading, DeciDegree, 3601, nil, nil),
				Confidence: 127,
			},
		}
	}

	for _, po := range objects {
		c.AddPerceivedObject(po)
	}
	return c
}

// AddPerceivedObject appends one more perceived object to the CPM.
func (c *CPM) AddPerceivedObject(po PerceivedObject) {
	mdt := po.MeasurementDeltaTime
	w := wirePerceivedObject{
		ObjectID:             po.ObjectID,
		MeasurementDeltaTime: SIToETSI(&mdt, MilliSecond, 0, &Range{Min: -2048, Max: 2047}, nil),
	}
	w.Position.XCoordinate = cartesianComponent{Value: SIToETSI(&po.XDistance, CentiMeter, 0, nil, nil), Confidence: 4096}
	w.Position.YCoordinate = cartesianComponent{Value: SIToETSI(&po.YDistance, CentiMeter, 0, nil, nil), Confidence: 4096}
	w.Velocity.CartesianVelocity.XVelocity = cartesianComponent{
		Value:      SIToETSI(po.XSpeed, CentiMeterPerSecond, 16383, &Range{Min: -16383, Max: 16382}, nil),
		Confidence: 127,
	}
	w.Velocity.CartesianVelocity.YVelocity = cartesianComponent{
		Value:      SIToETSI(po.YSpeed, CentiMeterPerSecond, 16383, &Range{Min: -16383, Max: 16382}, nil),
		Confidence: 127,
	}
	w.ObjectPerceptionQuality = po.Quality
	if po.ObjectAge != nil {
		age := SIToETSI(po.ObjectAge, MilliSecond, 0, &Range{Min: 0, Max: 2047}, nil)
		w.ObjectAge = &age
	}
	if po.ObjectClass != nil {
		w.Classification = []struct {
			ObjectClass ObjectClass `json:"object_class"`
			Confidence  int         `json:"confidence"`
		}{{ObjectClass: *po.ObjectClass, Confidence: po.ObjectClassConfidence}}
	}
	c.Msg.PerceivedObjectContainer = append(c.Msg.PerceivedObjectContainer, w)
}

// PerceivedObjects decodes the wire perceived-object list back into the
// richer PerceivedObject shape, resolving each object's best (highest
// confidence) classification when more than one was reported.
func (c *CPM) PerceivedObjects() []PerceivedObject {
	out := make([]PerceivedObject, 0, len(c.Msg.PerceivedObjectContainer))
	for _, po := range c.Msg.PerceivedObjectContainer {
		mdt := deref(ETSIToSI(po.MeasurementDeltaTime, MilliSecond, 0, nil))
		item := PerceivedObject{
			ObjectID:             po.ObjectID,
			MeasurementDeltaTime: mdt,
			XDistance:            deref(ETSIToSI(po.Position.XCoordinate.Value, CentiMeter, 0, nil)),
			YDistance:            deref(ETSIToSI(po.Position.YCoordinate.Value, CentiMeter, 0, nil)),
			XSpeed:               ETSIToSI(po.Velocity.CartesianVelocity.XVelocity.Value, CentiMeterPerSecond, 16383, nil),
			YSpeed:               ETSIToSI(po.Velocity.CartesianVelocity.YVelocity.Value, CentiMeterPerSecond, 16383, nil),
			Quality:              po.ObjectPerceptionQuality,
		}
		if po.ObjectAge != nil {
			item.ObjectAge = ETSIToSI(*po.ObjectAge, MilliSecond, 0, nil)
		}
		if len(po.Classification) > 0 {
			best := po.Classification[0]
			for _, cls := range po.Classification[1:] {
				if cls.Confidence > best.Confidence {
					best = cls
				}
			}
			oc := best.ObjectClass
			item.ObjectClass = &oc
			item.ObjectClassConfidence = best.Confidence
		}
		out = append(out, item)
	}
	return out
}

func init() {
	Register("cpm", func(raw []byte) (Message, error) {
		var c CPM
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("etsi: decode cpm: %w", err)
		}
		return &c, nil
	})
}

func (c *CPM) Type() string       { return "cpm" }
func (c *CPM) SourceUUID() string { return c.Envelope.SourceUUID }
func (c *CPM) StationID() uint32  { return c.Msg.StationID }

func (c *CPM) Latitude() float64 {
	return deref(ETSIToSI(c.Msg.ManagementContainer.ReferencePosition.Latitude, DeciMicroDegree, 900000001, nil))
}

func (c *CPM) Longitude() float64 {
	return deref(ETSIToSI(c.Msg.ManagementContainer.ReferencePosition.Longitude, DeciMicroDegree, 1800000001, nil))
}

func (c *CPM) Altitude() float64 {
	return deref(ETSIToSI(c.Msg.ManagementContainer.ReferencePosition.Altitude.Value, CentiMeter, 800001, nil))
}

func (c *CPM) Topic(depth int) string {
	return string(quadkey.FromLatLon(c.Latitude(), c.Longitude(), depth))
}

func (c *CPM) MarshalJSON() ([]byte, error) {
	type alias CPM
	return json.Marshal((*alias)(c))
}
