package mavlink

import (
	"encoding/binary"
	"math"
)

// Message IDs of the dialect subset the ground station decodes or emits.
const (
	MsgIDHeartbeat         uint32 = 0
	MsgIDSysStatus         uint32 = 1
	MsgIDSetMode           uint32 = 11
	MsgIDGpsRawInt         uint32 = 24
	MsgIDGlobalPositionInt uint32 = 33
	MsgIDVfrHud            uint32 = 74
	MsgIDCommandLong       uint32 = 76
	MsgIDBatteryStatus     uint32 = 147
)

// Nominal payload lengths used to zero-pad truncated MAVLink 2 payloads
// before field slicing.
var nominalLen = map[uint32]int{
	MsgIDHeartbeat:         9,
	MsgIDSysStatus:         31,
	MsgIDSetMode:           6,
	MsgIDGpsRawInt:         30,
	MsgIDGlobalPositionInt: 28,
	MsgIDVfrHud:            20,
	MsgIDCommandLong:       33,
	MsgIDBatteryStatus:     36,
}

// baseModeArmed is the MAV_MODE_FLAG_SAFETY_ARMED bit of HEARTBEAT.base_mode.
const baseModeArmed = 0x80

// baseModeCustomEnabled is MAV_MODE_FLAG_CUSTOM_MODE_ENABLED, set on every
// SET_MODE the ground station emits.
const baseModeCustomEnabled = 0x01

// CmdComponentArmDisarm is MAV_CMD_COMPONENT_ARM_DISARM.
const CmdComponentArmDisarm = 400

// Message is a decoded MAVLink payload. Consumers switch on the concrete
// type; messages outside the supported set are Unknown.
type Message interface {
	MsgID() uint32
}

// Heartbeat is HEARTBEAT (0).
type Heartbeat struct {
	CustomMode     uint32
	Type           uint8
	Autopilot      uint8
	BaseMode       uint8
	SystemStatus   uint8
	MavlinkVersion uint8
}

func (Heartbeat) MsgID() uint32 { return MsgIDHeartbeat }

// Armed reports whether the safety-armed bit is set in base_mode.
func (h Heartbeat) Armed() bool { return h.BaseMode&baseModeArmed != 0 }

// SysStatus is SYS_STATUS (1), reduced to the battery fields the ground
// station consumes.
type SysStatus struct {
	VoltageBattery   uint16 // mV
	CurrentBattery   int16  // cA, -1 unknown
	BatteryRemaining int8   // percent, -1 unknown
}

func (SysStatus) MsgID() uint32 { return MsgIDSysStatus }

// GpsRawInt is GPS_RAW_INT (24), reduced to fix quality.
type GpsRawInt struct {
	FixType           uint8
	SatellitesVisible uint8
}

func (GpsRawInt) MsgID() uint32 { return MsgIDGpsRawInt }

// GlobalPositionInt is GLOBAL_POSITION_INT (33).
type GlobalPositionInt struct {
	TimeBootMs  uint32
	Lat         int32 // degE7
	Lon         int32 // degE7
	Alt         int32 // mm, MSL
	RelativeAlt int32 // mm
	Vx          int16 // cm/s
	Vy          int16 // cm/s
	Vz          int16 // cm/s
	Hdg         uint16 // cdeg, 65535 unknown
}

func (GlobalPositionInt) MsgID() uint32 { return MsgIDGlobalPositionInt }

// Latitude returns lat in degrees.
func (m GlobalPositionInt) Latitude() float64 { return float64(m.Lat) / 1e7 }

// Longitude returns lon in degrees.
func (m GlobalPositionInt) Longitude() float64 { return float64(m.Lon) / 1e7 }

// AltitudeMSL returns MSL altitude in metres.
func (m GlobalPositionInt) AltitudeMSL() float32 { return float32(m.Alt) / 1000 }

// AltitudeRel returns altitude above home in metres.
func (m GlobalPositionInt) AltitudeRel() float32 { return float32(m.RelativeAlt) / 1000 }

// Heading returns heading in degrees.
func (m GlobalPositionInt) Heading() float32 { return float32(m.Hdg) / 100 }

// VfrHud is VFR_HUD (74).
type VfrHud struct {
	Airspeed    float32 // m/s
	Groundspeed float32 // m/s
	Alt         float32 // m, MSL
	Climb       float32 // m/s
	Heading     int16   // deg
	Throttle    uint16  // percent
}

func (VfrHud) MsgID() uint32 { return MsgIDVfrHud }

// BatteryStatus is BATTERY_STATUS (147), reduced to the remaining charge.
type BatteryStatus struct {
	BatteryRemaining int8 // percent, -1 unknown
}

func (BatteryStatus) MsgID() uint32 { return MsgIDBatteryStatus }

// Unknown carries a CRC-valid frame the ground station has no schema for.
type Unknown struct {
	ID      uint32
	Payload []byte
}

func (u Unknown) MsgID() uint32 { return u.ID }

// decodePayload slices a payload into its typed message. The payload is
// zero-padded to the message's nominal length first, so MAVLink 2
// trailing-zero truncation decodes identically to the full frame.
func decodePayload(msgID uint32, payload []byte) Message {
	if want, ok := nominalLen[msgID]; ok && len(payload) < want {
		padded := make([]byte, want)
		copy(padded, payload)
		payload = padded
	}

	switch msgID {
	case MsgIDHeartbeat:
		return Heartbeat{
			CustomMode:     binary.LittleEndian.Uint32(payload[0:4]),
			Type:           payload[4],
			Autopilot:      payload[5],
			BaseMode:       payload[6],
			SystemStatus:   payload[7],
			MavlinkVersion: payload[8],
		}
	case MsgIDSysStatus:
		return SysStatus{
			VoltageBattery:   binary.LittleEndian.Uint16(payload[14:16]),
			CurrentBattery:   int16(binary.LittleEndian.Uint16(payload[16:18])),
			BatteryRemaining: int8(payload[30]),
		}
	case MsgIDGpsRawInt:
		return GpsRawInt{
			FixType:           payload[28],
			SatellitesVisible: payload[29],
		}
	case MsgIDGlobalPositionInt:
		return GlobalPositionInt{
			TimeBootMs:  binary.LittleEndian.Uint32(payload[0:4]),
			Lat:         int32(binary.LittleEndian.Uint32(payload[4:8])),
			Lon:         int32(binary.LittleEndian.Uint32(payload[8:12])),
			Alt:         int32(binary.LittleEndian.Uint32(payload[12:16])),
			RelativeAlt: int32(binary.LittleEndian.Uint32(payload[16:20])),
			Vx:          int16(binary.LittleEndian.Uint16(payload[20:22])),
			Vy:          int16(binary.LittleEndian.Uint16(payload[22:24])),
			Vz:          int16(binary.LittleEndian.Uint16(payload[24:26])),
			Hdg:         binary.LittleEndian.Uint16(payload[26:28]),
		}
	case MsgIDVfrHud:
		return VfrHud{
			Airspeed:    math.Float32frombits(binary.LittleEndian.Uint32(payload[0:4])),
			Groundspeed: math.Float32frombits(binary.LittleEndian.Uint32(payload[4:8])),
			Alt:         math.Float32frombits(binary.LittleEndian.Uint32(payload[8:12])),
			Climb:       math.Float32frombits(binary.LittleEndian.Uint32(payload[12:16])),
			Heading:     int16(binary.LittleEndian.Uint16(payload[16:18])),
			Throttle:    binary.LittleEndian.Uint16(payload[18:20]),
		}
	case MsgIDBatteryStatus:
		return BatteryStatus{
			BatteryRemaining: int8(payload[35]),
		}
	}
	return Unknown{ID: msgID, Payload: payload}
}

// SetMode builds a SET_MODE frame selecting an autopilot custom mode.
func (e *Encoder) SetMode(targetSystem uint8, customMode uint32) ([]byte, error) {
	payload := make([]byte, 6)
	binary.LittleEndian.PutUint32(payload[0:4], customMode)
	payload[4] = targetSystem
	payload[5] = baseModeCustomEnabled
	return e.Encode(MsgIDSetMode, payload)
}

// CommandLong builds a COMMAND_LONG frame with confirmation zero.
func (e *Encoder) CommandLong(targetSystem, targetComponent uint8, command uint16, params [7]float32) ([]byte, error) {
	payload := make([]byte, 33)
	for i, p := range params {
		binary.LittleEndian.PutUint32(payload[i*4:i*4+4], math.Float32bits(p))
	}
	binary.LittleEndian.PutUint16(payload[28:30], command)
	payload[30] = targetSystem
	payload[31] = targetComponent
	payload[32] = 0 // confirmation
	return e.Encode(MsgIDCommandLong, payload)
}

// ArmDisarm builds the COMMAND_LONG arming (param1 1.0) or disarming
// (param1 0.0) the target system.
func (e *Encoder) ArmDisarm(targetSystem, targetComponent uint8, arm bool) ([]byte, error) {
	var params [7]float32
	if arm {
		params[0] = 1.0
	}
	return e.CommandLong(targetSystem, targetComponent, CmdComponentArmDisarm, params)
}

// HeartbeatPayload builds the 9-byte GCS heartbeat payload used to keep the
// autopilot's GCS failsafe satisfied.
func HeartbeatPayload() []byte {
	payload := make([]byte, 9)
	payload[4] = 6 // MAV_TYPE_GCS
	payload[5] = 8 // MAV_AUTOPILOT_INVALID
	payload[8] = 3 // MAVLink version
	return payload
}
