package hardware

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

var sonarPins = SonarPins{Trigger: "TRIG", Echo: "ECHO"}

// mockSonarAdaptor scripts the echo pin. read is called for every poll of
// the echo pin and may sleep to shape the pulse width.
type mockSonarAdaptor struct {
	mockWriter
	read func(call int) (int, error)
	call int
}

func newMockSonarAdaptor(read func(call int) (int, error)) *mockSonarAdaptor {
	return &mockSonarAdaptor{
		mockWriter: mockWriter{levels: make(map[string]byte)},
		read:       read,
	}
}

func (a *mockSonarAdaptor) DigitalRead(pin string) (int, error) {
	a.call++
	return a.read(a.call)
}

func TestSonar(t *testing.T) {
	Convey("a silent echo pin times out as no obstacle", t, func() {
		a := newMockSonarAdaptor(func(int) (int, error) { return 0, nil })
		s := NewSonar(a, sonarPins, 5*time.Millisecond)

		d, err := s.DistanceCM()
		So(err, ShouldEqual, ErrEchoTimeout)
		So(d, ShouldEqual, 0)

		Convey("and the trigger pulse was still fired", func() {
			So(a.levels["TRIG"], ShouldEqual, 0)
		})
	})

	Convey("a pulse that never ends also times out", t, func() {
		a := newMockSonarAdaptor(func(int) (int, error) { return 1, nil })
		s := NewSonar(a, sonarPins, 5*time.Millisecond)

		_, err := s.DistanceCM()
		So(err, ShouldEqual, ErrEchoTimeout)
	})

	Convey("a plausible pulse produces a distance", t, func() {
		// rise on the first poll, fall ~5ms later: nominally 86cm
		a := newMockSonarAdaptor(func(call int) (int, error) {
			if call == 1 {
				return 1, nil
			}
			time.Sleep(5 * time.Millisecond)
			return 0, nil
		})
		s := NewSonar(a, sonarPins, 100*time.Millisecond)

		d, err := s.DistanceCM()
		So(err, ShouldBeNil)
		So(d, ShouldBeBetween, 60, 300)
		So(s.LastCM(), ShouldEqual, d)

		Convey("a later degenerate pulse keeps the old reading", func() {
			a.read = func(call int) (int, error) {
				// instant rise and fall, sub-2cm width
				if call%2 == 1 {
					return 1, nil
				}
				return 0, nil
			}

			d2, err := s.DistanceCM()
			So(err, ShouldBeNil)
			So(d2, ShouldEqual, d)
		})
	})
}
