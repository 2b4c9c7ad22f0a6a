package onboard

import (
	"time"

	"github.com/makerclub/gorover/onboard/errors"
	"github.com/makerclub/gorover/onboard/hardware"
)

// Step is one timed segment of a scripted behavior.
type Step struct {
	Cmd      hardware.DriveCommand
	Duration time.Duration
}

// Behavior is an open-loop command script. With direction-only motors the
// durations stand in for distances and angles, which is the whole point of
// the classroom exercises: tune the numbers until the path closes.
type Behavior struct {
	Name  string
	Steps []Step
}

// Run plays the behavior on the rover, finishing with a stop. A close on
// abort cuts the script short (the motors still get stopped).
func (b Behavior) Run(rover Rover, abort <-chan struct{}) error {
	defer rover.Stop()

	for _, step := range b.Steps {
		if err := rover.Drive(step.Cmd); err != nil {
			return err
		}
		select {
		case <-time.After(step.Duration):
		case <-abort:
			return nil
		}
	}
	return nil
}

// Square drives four edges with a right-angle tank turn after each.
func Square(edge, turn time.Duration) Behavior {
	b := Behavior{Name: "square"}
	for i := 0; i < 4; i++ {
		b.Steps = append(b.Steps,
			Step{hardware.Forward, edge},
			Step{hardware.TurnRight, turn},
		)
	}
	return b
}

// Spin rotates in place for the given duration.
func Spin(d time.Duration) Behavior {
	return Behavior{
		Name:  "spin",
		Steps: []Step{{hardware.TurnRight, d}},
	}
}

// FigureEight approximates the two lobes with octagons, turning left around
// the first and right around the second.
func FigureEight(edge, turn time.Duration) Behavior {
	b := Behavior{Name: "figure8"}
	for i := 0; i < 8; i++ {
		b.Steps = append(b.Steps,
			Step{hardware.Forward, edge},
			Step{hardware.TurnLeft, turn},
		)
	}
	for i := 0; i < 8; i++ {
		b.Steps = append(b.Steps,
			Step{hardware.Forward, edge},
			Step{hardware.TurnRight, turn},
		)
	}
	return b
}

// DriveUntilObstacle runs the rover forward until the sonar reports
// something closer than detectCM, then stops. Unlike the behaviors above
// this one closes the loop on the sensor.
func DriveUntilObstacle(rover Rover, detectCM float64, poll time.Duration, abort <-chan struct{}) error {
	defer rover.Stop()

	if err := rover.Drive(hardware.Forward); err != nil {
		return err
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-abort:
			return nil
		case <-ticker.C:
			if rover.DistanceCM() < detectCM {
				return nil
			}
		}
	}
}

// LookupBehavior resolves a behavior by its shell name using the kit's
// stock durations.
func LookupBehavior(name string) (Behavior, error) {
	switch name {
	case "square":
		return Square(1500*time.Millisecond, 600*time.Millisecond), nil
	case "spin":
		return Spin(2400 * time.Millisecond), nil
	case "figure8":
		return FigureEight(700*time.Millisecond, 300*time.Millisecond), nil
	default:
		return Behavior{}, errors.UnknownBehaviorError{Name: name}
	}
}
