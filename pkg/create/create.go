// Package create drives an iRobot Create over its serial Open Interface.
package create

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
)

// ErrConnectionLost is returned (wrapped) for every failure of the serial link.
var ErrConnectionLost = errors.New("create: connection lost")

// Open Interface opcodes.
const (
	opStart       byte = 128
	opSafe        byte = 131
	opFull        byte = 132
	opSensors     byte = 142
	opDriveDirect byte = 145
)

// MaxVelocity is the largest wheel velocity the Create accepts, in mm/s.
const MaxVelocity = 500

// Mode selects the OI mode entered after START.
type Mode string

const (
	ModeSafe Mode = "safe"
	ModeFull Mode = "full"
)

// Config holds serial settings for a Create connection.
type Config struct {
	Port        string
	BaudRate    int
	Mode        Mode
	ReadTimeout time.Duration
}

// Conn is a connection to a Create. Commands are serialized; the sensor
// getters return the values decoded by the last ReadSensors call.
type Conn struct {
	mu      sync.Mutex
	port    io.ReadWriteCloser
	sensors Sensors
	closed  bool
}

// Open opens the serial port and puts the Create into the configured mode.
func Open(cfg Config) (*Conn, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 57600
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 200 * time.Millisecond
	}

	port, err := serial.Open(cfg.Port, &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Port, err)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}

	c := New(port)
	if err := c.Init(cfg.Mode); err != nil {
		port.Close()
		return nil, err
	}
	return c, nil
}

// New wraps an already open port. The port must return (0, nil) or an error
// when a read times out.
func New(port io.ReadWriteCloser) *Conn {
	return &Conn{port: port}
}

// Init sends START followed by the mode opcode.
func (c *Conn) Init(mode Mode) error {
	op := opSafe
	if mode == ModeFull {
		op = opFull
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.write(opStart); err != nil {
		return err
	}
	// The OI needs a moment after START before it accepts a mode change.
	time.Sleep(20 * time.Millisecond)
	return c.write(op)
}

// DriveDirect sets the left and right wheel velocities in mm/s.
// Values outside [-500, 500] are clamped.
func (c *Conn) DriveDirect(ctx context.Context, left, right int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r := uint16(int16(clamp(right)))
	l := uint16(int16(clamp(left)))

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write(opDriveDirect, byte(r>>8), byte(r), byte(l>>8), byte(l))
}

// ReadSensors requests a sensor group and caches the decoded reply.
func (c *Conn) ReadSensors(ctx context.Context, group SensorGroup) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	size, ok := groupSizes[group]
	if !ok {
		return fmt.Errorf("unsupported sensor group %d", group)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.write(opSensors, byte(group)); err != nil {
		return err
	}
	buf := make([]byte, size)
	if err := c.readFull(buf); err != nil {
		return err
	}
	s, err := decodeSensors(group, buf)
	if err != nil {
		return err
	}
	c.sensors = s
	return nil
}

// Sensors returns the last decoded sensor values.
func (c *Conn) Sensors() Sensors {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sensors
}

func (c *Conn) IsBumpLeft() bool  { return c.Sensors().BumpLeft }
func (c *Conn) IsBumpRight() bool { return c.Sensors().BumpRight }
func (c *Conn) InfraredByte() int { return int(c.Sensors().Infrared) }

// IsCliff reports whether any of the four cliff sensors is triggered.
func (c *Conn) IsCliff() bool {
	s := c.Sensors()
	return s.CliffLeft || s.CliffFrontLeft || s.CliffFrontRight || s.CliffRight
}

// Close closes the port without sending anything; stopping the wheels is
// the caller's job. It is safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.port.Close()
}

func (c *Conn) write(b ...byte) error {
	if c.closed {
		return fmt.Errorf("%w: port closed", ErrConnectionLost)
	}
	if _, err := c.port.Write(b); err != nil {
		return fmt.Errorf("%w: write: %v", ErrConnectionLost, err)
	}
	return nil
}

// readFull is io.ReadFull for ports that report a timeout as a zero-length read.
func (c *Conn) readFull(buf []byte) error {
	n := 0
	for n < len(buf) {
		m, err := c.port.Read(buf[n:])
		n += m
		if err != nil {
			return fmt.Errorf("%w: read: %v", ErrConnectionLost, err)
		}
		if m == 0 {
			return fmt.Errorf("%w: read timeout after %d of %d bytes", ErrConnectionLost, n, len(buf))
		}
	}
	return nil
}

// Probe checks whether a Create answers on the connection by requesting group 6.
func Probe(ctx context.Context, c *Conn) bool {
	return c.ReadSensors(ctx, GroupAll) == nil
}

func clamp(v int) int {
	if v > MaxVelocity {
		return MaxVelocity
	}
	if v < -MaxVelocity {
		return -MaxVelocity
	}
	return v
}
