package onboard

import (
	"testing"
	"time"

	"github.com/makerclub/gorover/onboard/hardware"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSimulatedRover(t *testing.T) {
	Convey("the simulator integrates motion", t, func() {
		s := NewSimulatedRover()
		defer s.Close()

		start, _ := s.Pose()
		before := s.DistanceCM()

		So(s.Drive(hardware.Forward), ShouldBeNil)
		time.Sleep(300 * time.Millisecond)
		So(s.Stop(), ShouldBeNil)

		pos, heading := s.Pose()
		So(pos.X(), ShouldBeGreaterThan, start.X())
		So(heading, ShouldAlmostEqual, 0)

		Convey("driving toward the wall closes the sonar range", func() {
			So(s.DistanceCM(), ShouldBeLessThan, before)
		})

		Convey("stopping freezes the pose", func() {
			time.Sleep(100 * time.Millisecond)
			after, _ := s.Pose()
			So(after.X(), ShouldAlmostEqual, pos.X(), 1e-6)
		})
	})

	Convey("turning changes heading, not position", t, func() {
		s := NewSimulatedRover()
		defer s.Close()

		So(s.Drive(hardware.TurnLeft), ShouldBeNil)
		time.Sleep(300 * time.Millisecond)
		So(s.Stop(), ShouldBeNil)

		pos, heading := s.Pose()
		So(heading, ShouldBeGreaterThan, 0)
		So(pos.Len(), ShouldAlmostEqual, 0, 1e-6)
	})

	Convey("facing away from the wall reads clear", t, func() {
		s := NewSimulatedRover()
		defer s.Close()

		s.lock.Lock()
		s.heading = 3.14159
		s.lock.Unlock()

		So(s.DistanceCM(), ShouldEqual, float64(hardware.MaxRangeCM))
	})
}
