package onboard

import (
	"errors"
	"testing"
	"time"

	"github.com/makerclub/gorover/onboard/hardware"
	. "github.com/smartystreets/goconvey/convey"
)

// MockRover records every issued command and plays back a scripted sequence
// of sonar readings. Once the script runs out the last value repeats.
type MockRover struct {
	distances []float64
	reads     int
	issued    []hardware.DriveCommand
	cmd       hardware.DriveCommand
	driveErr  error
}

func (m *MockRover) Drive(cmd hardware.DriveCommand) error {
	if m.driveErr != nil {
		return m.driveErr
	}
	m.cmd = cmd
	m.issued = append(m.issued, cmd)
	return nil
}

func (m *MockRover) Stop() error {
	return m.Drive(hardware.Stop)
}

func (m *MockRover) DistanceCM() float64 {
	if len(m.distances) == 0 {
		return hardware.MaxRangeCM
	}
	i := m.reads
	if i >= len(m.distances) {
		i = len(m.distances) - 1
	}
	m.reads++
	return m.distances[i]
}

func (m *MockRover) State() RoverState {
	return RoverState{Command: m.cmd}
}

func testConfig() AvoidanceConfig {
	cfg := DefaultAvoidance()
	cfg.Turn = TurnLeft
	return cfg
}

// tickRange advances the loop from t+from to t+to inclusive in tick steps.
func tickRange(c *ControlLoop, base time.Time, from, to time.Duration) {
	tick := c.cfg.TickInterval()
	for at := from; at <= to; at += tick {
		c.Tick(base.Add(at))
	}
}

func TestAvoidanceSequence(t *testing.T) {
	Convey("an obstacle at 15cm triggers the full maneuver", t, func() {
		rover := &MockRover{distances: []float64{15, 100}}
		c := NewControlLoop(rover, testConfig())
		base := time.Now()

		c.Offer(hardware.Forward)
		c.Tick(base)

		Convey("the loop backs up immediately", func() {
			So(c.State(), ShouldEqual, StateAvoidBackup)
			So(rover.cmd, ShouldEqual, hardware.Backward)
			So(c.Avoiding(), ShouldBeTrue)
		})

		Convey("backup holds for the full window despite remote commands", func() {
			c.Offer(hardware.Forward)
			tickRange(c, base, 50*time.Millisecond, 550*time.Millisecond)

			So(c.State(), ShouldEqual, StateAvoidBackup)
			for _, cmd := range rover.issued {
				So(cmd, ShouldEqual, hardware.Backward)
			}

			Convey("then turns for the full window", func() {
				c.Tick(base.Add(600 * time.Millisecond))
				So(c.State(), ShouldEqual, StateAvoidTurn)
				So(rover.cmd, ShouldEqual, hardware.TurnLeft)

				tickRange(c, base, 650*time.Millisecond, 1750*time.Millisecond)
				So(c.State(), ShouldEqual, StateAvoidTurn)
				So(rover.cmd, ShouldEqual, hardware.TurnLeft)

				Convey("and stops before handing back remote control", func() {
					c.Tick(base.Add(1800 * time.Millisecond))
					So(c.State(), ShouldEqual, StateRemote)
					So(rover.cmd, ShouldEqual, hardware.Stop)
					So(c.Avoiding(), ShouldBeFalse)

					Convey("remote commands flow again", func() {
						c.Offer(hardware.Forward)
						c.Tick(base.Add(1850 * time.Millisecond))
						So(rover.cmd, ShouldEqual, hardware.Forward)
					})
				})
			})
		})
	})

	Convey("sub-threshold readings during the maneuver change nothing", t, func() {
		rover := &MockRover{distances: []float64{5}}
		c := NewControlLoop(rover, testConfig())
		base := time.Now()

		c.Tick(base)
		So(c.State(), ShouldEqual, StateAvoidBackup)
		reads := rover.reads

		tickRange(c, base, 50*time.Millisecond, 1750*time.Millisecond)
		So(c.State(), ShouldEqual, StateAvoidTurn)

		Convey("the sonar is not even polled while avoiding", func() {
			So(rover.reads, ShouldEqual, reads)
		})

		Convey("the chain ends back in remote control on schedule", func() {
			c.Tick(base.Add(1800 * time.Millisecond))
			So(c.State(), ShouldEqual, StateRemote)
		})
	})
}

func TestRemoteControl(t *testing.T) {
	Convey("with a clear path the loop mirrors the remote", t, func() {
		rover := &MockRover{distances: []float64{100}}
		c := NewControlLoop(rover, testConfig())
		base := time.Now()

		c.Offer(hardware.Forward)
		c.Tick(base)
		So(rover.cmd, ShouldEqual, hardware.Forward)
		So(c.State(), ShouldEqual, StateRemote)

		c.Offer(hardware.TurnLeft)
		c.Tick(base.Add(50 * time.Millisecond))
		So(rover.cmd, ShouldEqual, hardware.TurnLeft)
		So(c.State(), ShouldEqual, StateRemote)
	})

	Convey("repeated identical commands do not flicker the motors", t, func() {
		rover := &MockRover{distances: []float64{100}}
		c := NewControlLoop(rover, testConfig())
		base := time.Now()

		for i := 0; i < 10; i++ {
			c.Offer(hardware.Forward)
			c.Tick(base.Add(time.Duration(i) * 50 * time.Millisecond))
		}

		So(len(rover.issued), ShouldEqual, 10)
		for _, cmd := range rover.issued {
			So(cmd, ShouldEqual, hardware.Forward)
		}
	})

	Convey("a quiet command source dead-mans to a stop", t, func() {
		rover := &MockRover{distances: []float64{100}}
		c := NewControlLoop(rover, testConfig())
		base := time.Now()

		c.Offer(hardware.Forward)
		c.Tick(base)
		So(rover.cmd, ShouldEqual, hardware.Forward)

		// no further offers; a second of silence passes
		tickRange(c, base, 50*time.Millisecond, time.Second)
		So(rover.cmd, ShouldEqual, hardware.Stop)

		Convey("and the stop is not reissued every tick", func() {
			issued := len(rover.issued)
			tickRange(c, base, 1050*time.Millisecond, 2*time.Second)
			So(len(rover.issued), ShouldEqual, issued)
		})
	})

	Convey("a sonar that always reads clear never triggers avoidance", t, func() {
		rover := &MockRover{distances: []float64{hardware.MaxRangeCM}}
		c := NewControlLoop(rover, testConfig())
		base := time.Now()

		for i := 0; i <= 100; i++ {
			c.Offer(hardware.Forward)
			c.Tick(base.Add(time.Duration(i) * 50 * time.Millisecond))
			So(c.State(), ShouldEqual, StateRemote)
		}
		So(rover.cmd, ShouldEqual, hardware.Forward)
	})
}

func TestLoopResilience(t *testing.T) {
	Convey("a drive error is swallowed and the loop keeps ticking", t, func() {
		rover := &MockRover{distances: []float64{100}, driveErr: errors.New("bus gone")}
		c := NewControlLoop(rover, testConfig())
		base := time.Now()

		c.Offer(hardware.Forward)
		So(func() { c.Tick(base) }, ShouldNotPanic)
		So(c.State(), ShouldEqual, StateRemote)

		Convey("and recovery picks the next command up", func() {
			rover.driveErr = nil
			c.Offer(hardware.Forward)
			c.Tick(base.Add(50 * time.Millisecond))
			So(rover.cmd, ShouldEqual, hardware.Forward)
		})
	})
}

func TestTurnPolicies(t *testing.T) {
	trigger := func(cfg AvoidanceConfig) hardware.DriveCommand {
		rover := &MockRover{distances: []float64{5, 100}}
		c := NewControlLoop(rover, cfg)
		base := time.Now()
		c.Tick(base)
		c.Tick(base.Add(cfg.BackupDuration()))
		return rover.cmd
	}

	Convey("fixed policies always pick their side", t, func() {
		cfg := testConfig()
		cfg.Turn = TurnRight
		So(trigger(cfg), ShouldEqual, hardware.TurnRight)

		cfg.Turn = TurnLeft
		So(trigger(cfg), ShouldEqual, hardware.TurnLeft)
	})

	Convey("alternate swaps sides between maneuvers", t, func() {
		cfg := testConfig()
		cfg.Turn = TurnAlternate

		rover := &MockRover{distances: []float64{5, 5}}
		c := NewControlLoop(rover, cfg)
		base := time.Now()

		c.Tick(base)
		c.Tick(base.Add(cfg.BackupDuration()))
		first := rover.cmd
		So(first, ShouldEqual, hardware.TurnLeft)

		// run out the turn, retrigger on the next reading
		c.Tick(base.Add(cfg.BackupDuration() + cfg.TurnDuration()))
		next := cfg.BackupDuration() + cfg.TurnDuration() + 50*time.Millisecond
		c.Tick(base.Add(next))
		c.Tick(base.Add(next + cfg.BackupDuration()))
		So(rover.cmd, ShouldEqual, hardware.TurnRight)
	})

	Convey("random picks one of the two turns", t, func() {
		cfg := testConfig()
		cfg.Turn = TurnRandom
		cmd := trigger(cfg)
		So(cmd, ShouldBeIn, []hardware.DriveCommand{hardware.TurnLeft, hardware.TurnRight})
	})
}
