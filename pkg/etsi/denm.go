package etsi

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/orange-opensource/its-fabric/pkg/quadkey"
)

const denmVersion = "1.1.3"

// TerminationType distinguishes a DENM that cancels an earlier event
// from one that merely negates it (reports it as no longer observed,
// without asserting it never existed).
type TerminationType int

const (
	TerminationCancellation TerminationType = 0
	TerminationNegation     TerminationType = 1
)

// Cause is the top-level DENM event cause. Values must exactly match
// the ETSI TS 102 894-2 CauseCode enumeration; they are part of the
// wire format, not an internal convenience.
type Cause int

const (
	CauseReserved                                     Cause = 0
	CauseTrafficCondition                              Cause = 1
	CauseAccident                                      Cause = 2
	CauseRoadworks                                      Cause = 3
	CauseAdverseWeatherConditionAdhesion                Cause = 6
	CauseHazardousLocationSurfaceCondition              Cause = 9
	CauseHazardousLocationObstacleOnTheRoad             Cause = 10
	CauseHazardousLocationAnimalOnTheRoad               Cause = 11
	CauseHumanPresenceOnTheRoad                         Cause = 12
	CauseWrongWayDriving                                Cause = 14
	CauseRescueAndRecoveryWorkInProgress                Cause = 15
	CauseAdverseWeatherConditionExtremeWeatherCondition Cause = 17
	CauseAdverseWeatherConditionVisibility              Cause = 18
	CauseAdverseWeatherConditionPrecipitation           Cause = 19
	CauseSlowVehicle                                    Cause = 26
	CauseDangerousEndOfQueue                            Cause = 27
	CauseVehicleBreakdown                               Cause = 91
	CausePostCrash                                      Cause = 92
	CauseHumanProblem                                   Cause = 93
	CauseStationaryVehicle                              Cause = 94
	CauseEmergencyVehicleApproaching                    Cause = 95
	CauseHazardousLocationDangerousCurve                Cause = 96
	CauseCollisionRisk                                  Cause = 97
	CauseSignalViolation                                Cause = 98
	CauseDangerousSituation                             Cause = 99
)

// SubCause is an untyped sub-cause value: its valid range and meaning
// depend on the enclosing Cause, mirroring the upstream catalogue's
// per-cause nested enumerations. Callers should use the SubCause*
// constants matching the DENM's Cause.
type SubCause int

// Sub-causes for CauseTrafficCondition.
const (
	SubCauseTrafficConditionUnavailable                     SubCause = 0
	SubCauseTrafficConditionIncreasedVolumeOfTraffic         SubCause = 1
	SubCauseTrafficConditionJamSlowlyIncreasing              SubCause = 2
	SubCauseTrafficConditionJamIncreasing                    SubCause = 3
	SubCauseTrafficConditionJamStronglyIncreasing            SubCause = 4
	SubCauseTrafficConditionStationary                       SubCause = 5
	SubCauseTrafficConditionJamSlightlyDecreasing            SubCause = 6
	SubCauseTrafficConditionJamDecreasing                    SubCause = 7
	SubCauseTrafficConditionJamStronglyDecreasing            SubCause = 8
)

// Sub-causes for CauseAccident.
const (
	SubCauseAccidentUnavailable                  SubCause = 0
	SubCauseAccidentMultiVehicle                 SubCause = 1
	SubCauseAccidentHeavy                        SubCause = 2
	SubCauseAccidentInvolvingLorry               SubCause = 3
	SubCauseAccidentInvolvingBus                 SubCause = 4
	SubCauseAccidentInvolvingHazardousMaterials  SubCause = 5
	SubCauseAccidentOnOppositeLane               SubCause = 6
	SubCauseAccidentUnsecured                    SubCause = 7
	SubCauseAccidentAssistanceRequested          SubCause = 8
)

// Sub-causes for CauseRoadworks.
const (
	SubCauseRoadworksUnavailable               SubCause = 0
	SubCauseRoadworksMajor                     SubCause = 1
	SubCauseRoadworksRoadMarkingWork           SubCause = 2
	SubCauseRoadworksSlowMovingMaintenance     SubCause = 3
	SubCauseRoadworksShortTermStationary       SubCause = 4
	SubCauseRoadworksStreetCleaning           SubCause = 5
	SubCauseRoadworksWinterService            SubCause = 6
)

// Sub-causes for CauseStationaryVehicle.
const (
	SubCauseStationaryVehicleUnavailable           SubCause = 0
	SubCauseStationaryVehicleHumanProblem          SubCause = 1
	SubCauseStationaryVehicleVehicleBreakdown      SubCause = 2
	SubCauseStationaryVehiclePostCrash             SubCause = 3
	SubCauseStationaryVehiclePublicTransportStop   SubCause = 4
	SubCauseStationaryVehicleCarryingDangerousGoods SubCause = 5
)

// Sub-causes for CauseDangerousSituation.
const (
	SubCauseDangerousSituationUnavailable                   SubCause = 0
	SubCauseDangerousSituationEmergencyElectronicBrake      SubCause = 1
	SubCauseDangerousSituationPreCrashSystemEngaged         SubCause = 2
	SubCauseDangerousSituationESPEngaged                    SubCause = 3
	SubCauseDangerousSituationABSEngaged                    SubCause = 4
	SubCauseDangerousSituationAEBEngaged                    SubCause = 5
	SubCauseDangerousSituationBrakeWarningEngaged           SubCause = 6
	SubCauseDangerousSituationCollisionRiskWarningEngaged   SubCause = 7
)

type actionID struct {
	OriginatingStationID uint32 `json:"originating_station_id"`
	SequenceNumber       int    `json:"sequence_number"`
}

type denmEventPosition struct {
	Latitude  int64 `json:"latitude"`
	Longitude int64 `json:"longitude"`
	Altitude  int64 `json:"altitude"`
}

type managementContainer struct {
	ActionID          actionID          `json:"action_id"`
	DetectionTime     int64             `json:"detection_time"`
	ReferenceTime     int64             `json:"reference_time"`
	EventPosition     denmEventPosition `json:"event_position"`
	Termination       *TerminationType  `json:"termination,omitempty"`
	ValidityDuration  *float64          `json:"validity_duration,omitempty"`
}

type eventType struct {
	Cause    Cause     `json:"cause"`
	SubCause *SubCause `json:"subcause,omitempty"`
}

type situationContainer struct {
	EventType eventType `json:"event_type"`
}

type denmBody struct {
	ProtocolVersion     int                 `json:"protocol_version"`
	StationID           uint32              `json:"station_id"`
	ManagementContainer managementContainer `json:"management_container"`
	SituationContainer  situationContainer  `json:"situation_container"`
}

// DENM is a Decentralized Environmental Notification Message: an
// event-triggered alert, optionally continuing (by sequence number) or
// terminating (cancelling/negating) an earlier DENM from the same
// originating station.
type DENM struct {
	Envelope
	Msg denmBody `json:"message"`
}

var (
	seqNumsMu sync.Mutex
	seqNums   = map[string]int{}
)

func nextSeqNum(uuid string) int {
	seqNumsMu.Lock()
	defer seqNumsMu.Unlock()
	n := (seqNums[uuid] + 1) % 65536
	seqNums[uuid] = n
	return n
}

// DENMOptions carries the optional fields accepted by NewDENM. Cause has
// no implicit default (its zero value is the meaningful CauseReserved);
// callers wanting the common "unspecified dangerous situation" alert
// should set Cause: CauseDangerousSituation explicitly.
type DENMOptions struct {
	DetectionTime    *float64
	Cause            Cause
	SubCause         *SubCause
	ValidityDuration *float64
	Termination      *TerminationType
	SequenceNumber   *int
}

// NewDENM builds a DENM from a GNSS fix and the event being reported.
// If SequenceNumber is nil, a new per-station monotonically increasing
// (mod 65536) sequence number is allocated; pass the sequence number of
// an earlier DENM to build a continuation (e.g. its cancellation).
func NewDENM(uuid string, rpt *GNSSReport, opts DENMOptions, clock *Clock) *DENM {
	now := unixTimeOf(rpt)
	detectionTime := now
	if opts.DetectionTime != nil {
		detectionTime = *opts.DetectionTime
	}

	seq := opts.SequenceNumber
	if seq == nil {
		n := nextSeqNum(uuid)
		seq = &n
	}

	cause := opts.Cause

	lat := deref(rpt.Latitude)
	lon := deref(rpt.Longitude)

	d := &DENM{
		Envelope: newEnvelope("denm", denmVersion, uuid, clock),
		Msg: denmBody{
			ProtocolVersion: 1,
			StationID:       StationID(uuid),
			ManagementContainer: managementContainer{
				ActionID: actionID{
					OriginatingStationID: StationID(uuid),
					SequenceNumber:       *seq,
				},
				DetectionTime:    clock.UnixToETSIMillis(detectionTime),
				ReferenceTime:    clock.UnixToETSIMillis(now),
				ValidityDuration: opts.ValidityDuration,
				Termination:      opts.Termination,
				EventPosition: denmEventPosition{
					Latitude:  SIToETSI(&lat, DeciMicroDegree, 900000001, nil, nil),
					Longitude: SIToETSI(&lon, DeciMicroDegree, 1800000001, nil, nil),
					Altitude:  SIToETSI(rpt.Altitude, CentiMeter, 800001, nil, nil),
				},
			},
			SituationContainer: situationContainer{
				EventType: eventType{Cause: cause, SubCause: opts.SubCause},
			},
		},
	}
	return d
}

func init() {
	Register("denm", func(raw []byte) (Message, error) {
		var d DENM
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("etsi: decode denm: %w", err)
		}
		return &d, nil
	})
}

func (d *DENM) Type() string       { return "denm" }
func (d *DENM) SourceUUID() string { return d.Envelope.SourceUUID }
func (d *DENM) StationID() uint32  { return d.Msg.StationID }

// SequenceNumber is read-only: propagate it into a continuation's
// DENMOptions.SequenceNumber instead of mutating an existing DENM.
func (d *DENM) SequenceNumber() int {
	return d.Msg.ManagementContainer.ActionID.SequenceNumber
}

func (d *DENM) Latitude() float64 {
	return deref(ETSIToSI(d.Msg.ManagementContainer.EventPosition.Latitude, DeciMicroDegree, 900000001, nil))
}

func (d *DENM) Longitude() float64 {
	return deref(ETSIToSI(d.Msg.ManagementContainer.EventPosition.Longitude, DeciMicroDegree, 1800000001, nil))
}

func (d *DENM) Altitude() float64 {
	return deref(ETSIToSI(d.Msg.ManagementContainer.EventPosition.Altitude, CentiMeter, 800001, nil))
}

func (d *DENM) Cause() Cause { return d.Msg.SituationContainer.EventType.Cause }

func (d *DENM) Topic(depth int) string {
	return string(quadkey.FromLatLon(d.Latitude(), d.Longitude(), depth))
}

func (d *DENM) MarshalJSON() ([]byte, error) {
	type alias DENM
	return json.Marshal((*alias)(d))
}
