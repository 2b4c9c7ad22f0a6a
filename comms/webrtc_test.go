package comms

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/makerclub/gorover/onboard"
	"github.com/makerclub/gorover/onboard/hardware"
	. "github.com/smartystreets/goconvey/convey"
)

func TestProcessCommand(t *testing.T) {
	Convey("dashboard commands reach the control loop", t, func() {
		rover := &stubRover{distance: 100}
		loop := onboard.NewControlLoop(rover, onboard.DefaultAvoidance())
		conductor := &Conductor{Name: "test", Rover: rover, Loop: loop}

		cases := map[string]hardware.DriveCommand{
			"forward":  hardware.Forward,
			"backward": hardware.Backward,
			"left":     hardware.TurnLeft,
			"right":    hardware.TurnRight,
			"stop":     hardware.Stop,
		}

		now := time.Now()
		for name, want := range cases {
			conductor.ProcessCommand(Cmd{Cmd: name})
			loop.Tick(now)
			So(rover.cmd, ShouldEqual, want)
		}

		Convey("unknown commands are dropped", func() {
			conductor.ProcessCommand(Cmd{Cmd: "forward"})
			loop.Tick(now)
			conductor.ProcessCommand(Cmd{Cmd: "teleport"})
			loop.Tick(now.Add(50 * time.Millisecond))
			So(rover.cmd, ShouldEqual, hardware.Forward)
		})
	})
}

func TestReceiveOffer(t *testing.T) {
	Convey("junk signaling messages are rejected", t, func() {
		conductor := &Conductor{}

		_, err := conductor.ReceiveOffer("{not json", nil)
		So(err, ShouldNotBeNil)

		Convey("and so are non-offer SDP types", func() {
			msg, _ := json.Marshal(map[string]string{"type": "answer", "sdp": ""})
			_, err := conductor.ReceiveOffer(string(msg), nil)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "SDP type")
		})
	})
}

func TestStatePayload(t *testing.T) {
	Convey("telemetry frames carry the rover and loop state", t, func() {
		rover := &stubRover{distance: 17}
		rover.Drive(hardware.Forward)
		loop := onboard.NewControlLoop(rover, onboard.DefaultAvoidance())

		payload := NewStatePayload("bench", rover, loop)
		So(payload.Name, ShouldEqual, "bench")
		So(payload.Command, ShouldEqual, "FORWARD")
		So(payload.DistanceCM, ShouldEqual, 17)
		So(payload.Avoiding, ShouldBeFalse)
		So(payload.State, ShouldEqual, "REMOTE")

		raw, err := json.Marshal(payload)
		So(err, ShouldBeNil)
		So(string(raw), ShouldContainSubstring, `"distance_cm":17`)
	})
}
