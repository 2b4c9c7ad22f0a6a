package onboard

import (
	"github.com/makerclub/gorover/onboard/hardware"
)

// Rover is the device surface the control loop and command sources drive.
// Implemented by the GPIO hardware and by the simulator.
type Rover interface {
	Drive(cmd hardware.DriveCommand) error
	Stop() error
	DistanceCM() float64
	State() RoverState
}

// RoverState is a snapshot of the last actuation and sensor values.
type RoverState struct {
	Command    hardware.DriveCommand `json:"command"`
	DistanceCM float64               `json:"distance_cm"`
}

// GPIORover wires the motor driver and sonar onto a single GPIO adaptor
// (a gobot raspi adaptor on the real chassis, mocks under test).
type GPIORover struct {
	Motors *hardware.MotorDriver
	Sonar  *hardware.Sonar

	adaptor hardware.SonarAdaptor
	led     string
}

func NewGPIORover(config RoverConfig, adaptor hardware.SonarAdaptor) *GPIORover {
	return &GPIORover{
		Motors:  hardware.NewMotorDriver(adaptor, config.Pins.Motors),
		Sonar:   hardware.NewSonar(adaptor, config.Pins.Sonar, 0),
		adaptor: adaptor,
		led:     config.Pins.LED,
	}
}

func (r *GPIORover) Drive(cmd hardware.DriveCommand) error {
	return r.Motors.SetCommand(cmd)
}

func (r *GPIORover) Stop() error {
	return r.Motors.Stop()
}

// DistanceCM polls the sonar. A timed out pulse, or no valid echo yet, reads
// as maximum range: the controller only cares about the threshold
// comparison, so "don't know" means "clear".
func (r *GPIORover) DistanceCM() float64 {
	d, err := r.Sonar.DistanceCM()
	if err != nil || d <= 0 {
		return hardware.MaxRangeCM
	}
	return d
}

func (r *GPIORover) State() RoverState {
	return RoverState{
		Command:    r.Motors.LastCommand(),
		DistanceCM: r.Sonar.LastCM(),
	}
}

// SetLED drives the status LED, used as a ready indicator once the listeners
// are up.
func (r *GPIORover) SetLED(on bool) error {
	if r.led == "" {
		return nil
	}
	var level byte
	if on {
		level = 1
	}
	return r.adaptor.DigitalWrite(r.led, level)
}
