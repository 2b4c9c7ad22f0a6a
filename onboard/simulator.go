package onboard

import (
	"math"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/makerclub/gorover/onboard/hardware"
)

const (
	simSpeedCMS   = 40.0             // full duty straight-line speed
	simTurnRadS   = math.Pi          // tank turn rate, ~180 deg/s
	simInterval   = time.Second / 50 // integration step
	simWallOffset = 200.0            // default wall distance from origin
)

// SimulatedRover is a kinematic stand-in for the chassis so the whole stack
// runs on a laptop. It dead-reckons a pose on a 2D plane and ray-casts the
// sonar against a single wall at x = wall.
type SimulatedRover struct {
	lock    sync.Mutex
	cmd     hardware.DriveCommand
	pos     mgl64.Vec2
	heading float64 // radians, 0 faces +x
	wall    float64

	stop chan struct{}
}

func NewSimulatedRover() *SimulatedRover {
	s := &SimulatedRover{
		wall: simWallOffset,
		stop: make(chan struct{}),
	}
	go s.update()
	return s
}

func (s *SimulatedRover) Drive(cmd hardware.DriveCommand) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.cmd = cmd
	return nil
}

func (s *SimulatedRover) Stop() error {
	return s.Drive(hardware.Stop)
}

// DistanceCM casts the sonar ray at the wall plane. Facing away reads as
// maximum range, same as a real timeout.
func (s *SimulatedRover) DistanceCM() float64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.distanceLocked()
}

func (s *SimulatedRover) distanceLocked() float64 {
	facing := math.Cos(s.heading)
	if facing <= 0 {
		return hardware.MaxRangeCM
	}

	d := (s.wall - s.pos.X()) / facing
	if d < 0 {
		d = 0
	}
	if d > hardware.MaxRangeCM {
		d = hardware.MaxRangeCM
	}
	return d
}

func (s *SimulatedRover) State() RoverState {
	s.lock.Lock()
	defer s.lock.Unlock()
	return RoverState{
		Command:    s.cmd,
		DistanceCM: s.distanceLocked(),
	}
}

// Pose reports the dead-reckoned position and heading for the dashboard.
func (s *SimulatedRover) Pose() (pos mgl64.Vec2, heading float64) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.pos, s.heading
}

func (s *SimulatedRover) Close() {
	close(s.stop)
}

func (s *SimulatedRover) update() {
	ticker := time.NewTicker(simInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.step(simInterval.Seconds())
		}
	}
}

func (s *SimulatedRover) step(dt float64) {
	s.lock.Lock()
	defer s.lock.Unlock()

	dir := mgl64.Rotate2D(s.heading).Mul2x1(mgl64.Vec2{1, 0})

	switch s.cmd {
	case hardware.Forward:
		s.pos = s.pos.Add(dir.Mul(simSpeedCMS * dt))
	case hardware.Backward:
		s.pos = s.pos.Sub(dir.Mul(simSpeedCMS * dt))
	case hardware.TurnLeft:
		s.heading += simTurnRadS * dt
	case hardware.TurnRight:
		s.heading -= simTurnRadS * dt
	}

	// keep the rover out of the wall, the way the real one bumps and stalls
	if s.pos.X() > s.wall {
		s.pos = mgl64.Vec2{s.wall, s.pos.Y()}
	}
}
