package create

import (
	"encoding/binary"
	"fmt"
)

// SensorGroup is an OI sensor packet id.
type SensorGroup byte

const (
	// GroupBumps covers packets 7-16.
	GroupBumps SensorGroup = 1
	// GroupAll covers packets 7-42.
	GroupAll SensorGroup = 6
)

var groupSizes = map[SensorGroup]int{
	GroupBumps: 10,
	GroupAll:   52,
}

// Sensors holds decoded sensor packets.
type Sensors struct {
	BumpRight       bool
	BumpLeft        bool
	WheelDropRight  bool
	WheelDropLeft   bool
	WheelDropCaster bool
	Wall            bool
	CliffLeft       bool
	CliffFrontLeft  bool
	CliffFrontRight bool
	CliffRight      bool
	VirtualWall     bool
	Overcurrents    byte

	// Fields below are only set by GroupAll.
	Infrared       byte
	Buttons        byte
	Distance       int16 // mm since last read
	Angle          int16 // degrees since last read
	ChargingState  byte
	Voltage        uint16 // mV
	Current        int16  // mA
	Temperature    int8   // degrees C
	Charge         uint16 // mAh
	Capacity       uint16 // mAh
	RequestedRight int16
	RequestedLeft  int16
}

// Byte offsets inside a GroupAll reply.
const (
	offBumps         = 0
	offWall          = 1
	offCliffLeft     = 2
	offCliffFL       = 3
	offCliffFR       = 4
	offCliffRight    = 5
	offVirtualWall   = 6
	offOvercurrents  = 7
	offInfrared      = 10
	offButtons       = 11
	offDistance      = 12
	offAngle         = 14
	offChargingState = 16
	offVoltage       = 17
	offCurrent       = 19
	offTemperature   = 21
	offCharge        = 22
	offCapacity      = 24
	offReqRight      = 48
	offReqLeft       = 50
)

func decodeSensors(group SensorGroup, b []byte) (Sensors, error) {
	if want := groupSizes[group]; len(b) != want {
		return Sensors{}, fmt.Errorf("sensor group %d: got %d bytes, want %d", group, len(b), want)
	}

	var s Sensors
	bumps := b[offBumps]
	s.BumpRight = bumps&0x01 != 0
	s.BumpLeft = bumps&0x02 != 0
	s.WheelDropRight = bumps&0x04 != 0
	s.WheelDropLeft = bumps&0x08 != 0
	s.WheelDropCaster = bumps&0x10 != 0
	s.Wall = b[offWall] != 0
	s.CliffLeft = b[offCliffLeft] != 0
	s.CliffFrontLeft = b[offCliffFL] != 0
	s.CliffFrontRight = b[offCliffFR] != 0
	s.CliffRight = b[offCliffRight] != 0
	s.VirtualWall = b[offVirtualWall] != 0
	s.Overcurrents = b[offOvercurrents]

	if group != GroupAll {
		return s, nil
	}

	be := binary.BigEndian
	s.Infrared = b[offInfrared]
	s.Buttons = b[offButtons]
	s.Distance = int16(be.Uint16(b[offDistance:]))
	s.Angle = int16(be.Uint16(b[offAngle:]))
	s.ChargingState = b[offChargingState]
	s.Voltage = be.Uint16(b[offVoltage:])
	s.Current = int16(be.Uint16(b[offCurrent:]))
	s.Temperature = int8(b[offTemperature])
	s.Charge = be.Uint16(b[offCharge:])
	s.Capacity = be.Uint16(b[offCapacity:])
	s.RequestedRight = int16(be.Uint16(b[offReqRight:]))
	s.RequestedLeft = int16(be.Uint16(b[offReqLeft:]))
	return s, nil
}
