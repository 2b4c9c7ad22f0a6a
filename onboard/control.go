package onboard

import (
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/makerclub/gorover/onboard/hardware"
)

// LoopState is the avoidance state machine position.
type LoopState int

const (
	// StateRemote forwards remote commands and watches the sonar.
	StateRemote LoopState = iota
	// StateAvoidBackup backs away from a detected obstacle.
	StateAvoidBackup
	// StateAvoidTurn rotates in place before handing control back.
	StateAvoidTurn
)

func (s LoopState) String() string {
	switch s {
	case StateAvoidBackup:
		return "AVOID_BACKUP"
	case StateAvoidTurn:
		return "AVOID_TURN"
	default:
		return "REMOTE"
	}
}

// LoopStatus is a snapshot of the control loop for telemetry.
type LoopStatus struct {
	State    string                `json:"state"`
	Avoiding bool                  `json:"avoiding"`
	Command  hardware.DriveCommand `json:"-"`
}

// ControlLoop is the single scheduler in the system: one fixed tick polls the
// sonar, checks the avoidance timers and arbitrates between remote commands
// and the avoidance override.
//
// Arbitration is a hard priority: once an obstacle is closer than the
// threshold the backup-then-turn maneuver runs to completion, and remote
// commands offered in the meantime are discarded rather than queued.
type ControlLoop struct {
	rover Rover
	cfg   AvoidanceConfig

	lock       sync.Mutex
	state      LoopState
	stateUntil time.Time
	pending    hardware.DriveCommand
	hasPending bool
	lastOffer  time.Time
	issued     hardware.DriveCommand
	nextTurn   hardware.DriveCommand
	rnd        *rand.Rand

	stop chan struct{}
	done chan struct{}
}

func NewControlLoop(rover Rover, cfg AvoidanceConfig) *ControlLoop {
	return &ControlLoop{
		rover:    rover,
		cfg:      cfg,
		state:    StateRemote,
		nextTurn: hardware.TurnLeft,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Offer hands the loop the latest remote command. Last write wins; there is
// no queue. Offers made during an avoidance maneuver are dropped.
func (c *ControlLoop) Offer(cmd hardware.DriveCommand) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.state != StateRemote {
		return
	}
	c.pending = cmd
	c.hasPending = true
	c.lastOffer = time.Now()
}

// Tick advances the state machine once. Run calls this on every tick;
// exposing it keeps the machine testable against a fabricated clock.
func (c *ControlLoop) Tick(now time.Time) {
	c.lock.Lock()
	defer c.lock.Unlock()

	switch c.state {
	case StateRemote:
		d := c.rover.DistanceCM()
		if d < c.cfg.DetectCM {
			log.Printf("[control] obstacle at %.0fcm, avoiding", d)
			c.enterBackup(now)
			return
		}

		if c.hasPending {
			c.issue(c.pending)
			c.hasPending = false
		} else if c.issued != hardware.Stop && now.Sub(c.lastOffer) > c.cfg.CommandTimeout() {
			// dead-man stop: the app went quiet mid-drive
			c.issue(hardware.Stop)
		}

	case StateAvoidBackup:
		c.hasPending = false
		if !now.Before(c.stateUntil) {
			c.enterTurn(now)
		}

	case StateAvoidTurn:
		c.hasPending = false
		if !now.Before(c.stateUntil) {
			c.issue(hardware.Stop)
			c.state = StateRemote
			c.lastOffer = now
			log.Print("[control] avoidance complete, remote control resumed")
		}
	}
}

// Run drives the loop until Shutdown. The rover is stopped on the way out.
func (c *ControlLoop) Run() {
	ticker := time.NewTicker(c.cfg.TickInterval())
	defer ticker.Stop()
	defer close(c.done)

	for {
		select {
		case <-c.stop:
			c.rover.Stop()
			return
		case now := <-ticker.C:
			c.Tick(now)
		}
	}
}

func (c *ControlLoop) Shutdown() {
	close(c.stop)
	<-c.done
}

func (c *ControlLoop) State() LoopState {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.state
}

func (c *ControlLoop) Avoiding() bool {
	return c.State() != StateRemote
}

func (c *ControlLoop) Status() LoopStatus {
	c.lock.Lock()
	defer c.lock.Unlock()
	return LoopStatus{
		State:    c.state.String(),
		Avoiding: c.state != StateRemote,
		Command:  c.issued,
	}
}

func (c *ControlLoop) enterBackup(now time.Time) {
	c.hasPending = false
	c.issue(hardware.Backward)
	c.state = StateAvoidBackup
	c.stateUntil = now.Add(c.cfg.BackupDuration())
}

func (c *ControlLoop) enterTurn(now time.Time) {
	c.issue(c.turnCommand())
	c.state = StateAvoidTurn
	c.stateUntil = now.Add(c.cfg.TurnDuration())
}

func (c *ControlLoop) turnCommand() hardware.DriveCommand {
	switch c.cfg.Turn {
	case TurnLeft:
		return hardware.TurnLeft
	case TurnRight:
		return hardware.TurnRight
	case TurnAlternate:
		cmd := c.nextTurn
		if c.nextTurn == hardware.TurnLeft {
			c.nextTurn = hardware.TurnRight
		} else {
			c.nextTurn = hardware.TurnLeft
		}
		return cmd
	default:
		if c.rnd.Intn(2) == 0 {
			return hardware.TurnLeft
		}
		return hardware.TurnRight
	}
}

// issue pushes a command at the motors. Actuation is open loop; a write
// error is logged and the loop carries on to the next tick.
func (c *ControlLoop) issue(cmd hardware.DriveCommand) {
	if err := c.rover.Drive(cmd); err != nil {
		log.Printf("[control] drive %v: %v", cmd, err)
		return
	}
	c.issued = cmd
}
