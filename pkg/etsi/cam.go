package etsi

import (
	"encoding/json"
	"fmt"

	"github.com/orange-opensource/its-fabric/pkg/quadkey"
)

// camVersion is the schema version stamped on every CAM this package
// produces.
const camVersion = "1.1.3"

// ConfidenceEllipse models a circular position-confidence approximation:
// semi-major and semi-minor are kept equal, so the ellipse orientation
// carries no information and is always reported as zero.
type confidenceEllipse struct {
	SemiMajorConfidence int64 `json:"semi_major_confidence"`
	SemiMinorConfidence int64 `json:"semi_minor_confidence"`
	SemiMajorOrientation int64 `json:"semi_major_orientation"`
}

type referencePosition struct {
	Latitude  int64 `json:"latitude"`
	Longitude int64 `json:"longitude"`
	Altitude  int64 `json:"altitude"`
}

type camBasicContainer struct {
	StationType       StationType       `json:"station_type"`
	ReferencePosition referencePosition `json:"reference_position"`
	Confidence        struct {
		PositionConfidenceEllipse confidenceEllipse `json:"position_confidence_ellipse"`
	} `json:"confidence"`
}

type camHighFrequencyContainer struct {
	Heading                  int64 `json:"heading"`
	Speed                    int64 `json:"speed"`
	LongitudinalAcceleration int64 `json:"longitudinal_acceleration"`
}

type camBody struct {
	ProtocolVersion     int                       `json:"protocol_version"`
	StationID           uint32                    `json:"station_id"`
	GenerationDeltaTime uint16                    `json:"generation_delta_time"`
	BasicContainer      camBasicContainer         `json:"basic_container"`
	HighFrequency       camHighFrequencyContainer `json:"high_frequency_container"`
}

// CAM is a Cooperative Awareness Message: a periodic beacon of a
// station's own position, heading, speed and acceleration.
type CAM struct {
	Envelope
	Msg camBody `json:"message"`
}

// NewCAM builds a CAM from a GNSS fix, using clock to stamp the envelope
// timestamp and the generation delta time.
func NewCAM(uuid string, stationType StationType, rpt *GNSSReport, clock *Clock) *CAM {
	lat := deref(rpt.Latitude)
	lon := deref(rpt.Longitude)
	alt := rpt.Altitude

	return &CAM{
		Envelope: newEnvelope("cam", camVersion, uuid, clock),
		Msg: camBody{
			ProtocolVersion:     1,
			StationID:           StationID(uuid),
			GenerationDeltaTime: clock.GenerationDeltaTime(unixTimeOf(rpt)),
			BasicContainer: camBasicContainer{
				StationType: stationType,
				ReferencePosition: referencePosition{
					Latitude:  SIToETSI(&lat, DeciMicroDegree, 900000001, nil, nil),
					Longitude: SIToETSI(&lon, DeciMicroDegree, 1800000001, nil, nil),
					Altitude:  SIToETSI(alt, CentiMeter, 800001, nil, nil),
				},
				Confidence: struct {
					PositionConfidenceEllipse confidenceEllipse `json:"position_confidence_ellipse"`
				}{
					PositionConfidenceEllipse: confidenceEllipse{
						SemiMajorConfidence:  SIToETSI(rpt.HorizontalError, CentiMeter, 4095, &Range{Min: 0, Max: 4093}, int64Ptr(4094)),
						SemiMinorConfidence:  SIToETSI(rpt.HorizontalError, CentiMeter, 4095, &Range{Min: 0, Max: 4093}, int64Ptr(4094)),
						SemiMajorOrientation: SIToETSI(float64Ptr(0), DeciDegree, 3601, nil, nil),
					},
				},
			},
			HighFrequency: camHighFrequencyContainer{
				Heading:                  SIToETSI(rpt.Track, DeciDegree, 3601, nil, nil),
				Speed:                    SIToETSI(rpt.Speed, CentiMeterPerSecond, 16383, nil, nil),
				LongitudinalAcceleration: SIToETSI(rpt.Acceleration, DeciMeterPerSecondSquared, 161, nil, nil),
			},
		},
	}
}

func init() {
	Register("cam", func(raw []byte) (Message, error) {
		var c CAM
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("etsi: decode cam: %w", err)
		}
		return &c, nil
	})
}

func (c *CAM) Type() string       { return "cam" }
func (c *CAM) SourceUUID() string { return c.Envelope.SourceUUID }
func (c *CAM) StationID() uint32  { return c.Msg.StationID }

func (c *CAM) Latitude() float64 {
	return deref(ETSIToSI(c.Msg.BasicContainer.ReferencePosition.Latitude, DeciMicroDegree, 900000001, nil))
}

func (c *CAM) Longitude() float64 {
	return deref(ETSIToSI(c.Msg.BasicContainer.ReferencePosition.Longitude, DeciMicroDegree, 1800000001, nil))
}

func (c *CAM) Altitude() float64 {
	return deref(ETSIToSI(c.Msg.BasicContainer.ReferencePosition.Altitude, CentiMeter, 800001, nil))
}

// Topic returns the geo-addressing topic suffix for this CAM's position
// at the given quadkey depth.
func (c *CAM) Topic(depth int) string {
	return string(quadkey.FromLatLon(c.Latitude(), c.Longitude(), depth))
}

func (c *CAM) MarshalJSON() ([]byte, error) {
	type alias CAM
	return json.Marshal((*alias)(c))
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func int64Ptr(v int64) *int64     { return &v }
func float64Ptr(v float64) *float64 { return &v }

func unixTimeOf(rpt *GNSSReport) float64 {
	return float64(rpt.Timestamp.UnixNano()) / 1e9
}
