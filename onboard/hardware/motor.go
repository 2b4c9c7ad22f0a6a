package hardware

import (
	"fmt"
	"sync"

	"gobot.io/x/gobot/drivers/gpio"
)

// DriveCommand is a pure directional intent for the drive train. The kit has
// no enable pins wired, so a wheel is either off or running at full duty in
// whichever direction its IN lines select.
type DriveCommand int

const (
	Stop DriveCommand = iota
	Forward
	Backward
	TurnLeft
	TurnRight
)

func (c DriveCommand) String() string {
	switch c {
	case Stop:
		return "STOP"
	case Forward:
		return "FORWARD"
	case Backward:
		return "BACKWARD"
	case TurnLeft:
		return "TURN_LEFT"
	case TurnRight:
		return "TURN_RIGHT"
	default:
		return fmt.Sprintf("DriveCommand(%d)", int(c))
	}
}

// SidePins holds the four direction lines for one side of the chassis. The
// front and rear wheel of a side share a motor driver channel and always run
// together.
type SidePins struct {
	FrontA string `yaml:"front_a"`
	FrontB string `yaml:"front_b"`
	RearA  string `yaml:"rear_a"`
	RearB  string `yaml:"rear_b"`
}

type MotorPins struct {
	Left  SidePins `yaml:"left"`
	Right SidePins `yaml:"right"`
}

// MotorDriver realizes DriveCommands on the eight direction pins. Turns are
// tank turns: the two sides run in opposition and the chassis rotates in
// place.
type MotorDriver struct {
	writer gpio.DigitalWriter
	pins   MotorPins
	lock   sync.Mutex
	last   DriveCommand
}

func NewMotorDriver(writer gpio.DigitalWriter, pins MotorPins) *MotorDriver {
	return &MotorDriver{
		writer: writer,
		pins:   pins,
	}
}

// SetCommand sets the direction lines for cmd. Safe to call with the current
// command; the pin writes are idempotent.
func (m *MotorDriver) SetCommand(cmd DriveCommand) (err error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	var left, right int
	switch cmd {
	case Forward:
		left, right = 1, 1
	case Backward:
		left, right = -1, -1
	case TurnLeft:
		left, right = -1, 1
	case TurnRight:
		left, right = 1, -1
	case Stop:
		left, right = 0, 0
	default:
		return fmt.Errorf("unknown drive command %v", cmd)
	}

	if err = m.setSide(m.pins.Left, left); err != nil {
		return
	}
	if err = m.setSide(m.pins.Right, right); err != nil {
		return
	}

	m.last = cmd
	return
}

// Stop is shorthand for SetCommand(Stop).
func (m *MotorDriver) Stop() error {
	return m.SetCommand(Stop)
}

// LastCommand reports the most recently applied command.
func (m *MotorDriver) LastCommand() DriveCommand {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.last
}

// setSide drives one wheel pair: dir > 0 forward, dir < 0 backward, 0 stops.
// An H-bridge channel runs forward with A high and B low, backward with the
// lines swapped, and freewheels with both low.
func (m *MotorDriver) setSide(pins SidePins, dir int) error {
	var a, b byte
	switch {
	case dir > 0:
		a, b = 1, 0
	case dir < 0:
		a, b = 0, 1
	}

	writes := []struct {
		pin   string
		level byte
	}{
		{pins.FrontA, a},
		{pins.FrontB, b},
		{pins.RearA, a},
		{pins.RearB, b},
	}

	for _, w := range writes {
		if err := m.writer.DigitalWrite(w.pin, w.level); err != nil {
			return err
		}
	}
	return nil
}
