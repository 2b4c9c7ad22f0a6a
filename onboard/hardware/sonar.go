package hardware

import (
	"errors"
	"sync"
	"time"

	"gobot.io/x/gobot/drivers/gpio"
)

const (
	// HC-SR04 usable envelope. Readings outside it are echoes off the floor
	// or electrical noise and get discarded.
	MinRangeCM = 2
	MaxRangeCM = 400

	// One way speed of sound, cm per microsecond. The echo pulse covers the
	// round trip so the width is halved before applying this.
	soundCMPerUS = 0.0343

	triggerSettle = 2 * time.Microsecond
	triggerPulse  = 10 * time.Microsecond
)

// ErrEchoTimeout reports that no echo edge arrived inside the measurement
// window. Callers treat it as "nothing in range", not as a fault.
var ErrEchoTimeout = errors.New("sonar: no echo within timeout")

type SonarPins struct {
	Trigger string `yaml:"trigger"`
	Echo    string `yaml:"echo"`
}

// SonarAdaptor is the slice of a gobot adaptor the rangefinder needs.
type SonarAdaptor interface {
	gpio.DigitalWriter
	gpio.DigitalReader
}

// Sonar drives an HC-SR04 ultrasonic rangefinder: a 10us pulse on the
// trigger pin, then the echo pin goes high for the acoustic round trip time.
// Measurements block the caller for at most the configured timeout.
type Sonar struct {
	adaptor SonarAdaptor
	pins    SonarPins
	timeout time.Duration

	lock sync.Mutex
	last float64
}

func NewSonar(adaptor SonarAdaptor, pins SonarPins, timeout time.Duration) *Sonar {
	if timeout <= 0 {
		timeout = 30 * time.Millisecond
	}
	return &Sonar{
		adaptor: adaptor,
		pins:    pins,
		timeout: timeout,
	}
}

// DistanceCM performs one measurement and returns the distance in
// centimeters. A timed out or out-of-range pulse keeps and returns the
// previous valid reading; the error is ErrEchoTimeout when no echo arrived
// at all. Before the first valid reading the fallback value is 0.
func (s *Sonar) DistanceCM() (float64, error) {
	raw, err := s.measure()

	s.lock.Lock()
	defer s.lock.Unlock()

	if err != nil {
		return s.last, err
	}
	if raw < MinRangeCM || raw > MaxRangeCM {
		return s.last, nil
	}
	s.last = raw
	return s.last, nil
}

// LastCM returns the most recent valid reading without touching the sensor.
func (s *Sonar) LastCM() float64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.last
}

func (s *Sonar) measure() (float64, error) {
	if err := s.adaptor.DigitalWrite(s.pins.Trigger, 0); err != nil {
		return 0, err
	}
	time.Sleep(triggerSettle)
	if err := s.adaptor.DigitalWrite(s.pins.Trigger, 1); err != nil {
		return 0, err
	}
	time.Sleep(triggerPulse)
	if err := s.adaptor.DigitalWrite(s.pins.Trigger, 0); err != nil {
		return 0, err
	}

	deadline := time.Now().Add(s.timeout)

	start, err := s.waitLevel(1, deadline)
	if err != nil {
		return 0, err
	}
	end, err := s.waitLevel(0, deadline)
	if err != nil {
		return 0, err
	}

	width := float64(end.Sub(start)) / float64(time.Microsecond)
	return width * soundCMPerUS / 2, nil
}

// waitLevel polls the echo pin until it reads level, returning the time of
// the transition. Polling is busy; the window is tens of milliseconds and
// the sysfs read itself dominates.
func (s *Sonar) waitLevel(level int, deadline time.Time) (time.Time, error) {
	for {
		v, err := s.adaptor.DigitalRead(s.pins.Echo)
		if err != nil {
			return time.Time{}, err
		}
		now := time.Now()
		if v == level {
			return now, nil
		}
		if now.After(deadline) {
			return time.Time{}, ErrEchoTimeout
		}
	}
}
