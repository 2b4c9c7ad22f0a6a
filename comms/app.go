package comms

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"strings"

	"github.com/makerclub/gorover/onboard"
	"github.com/makerclub/gorover/onboard/errors"
	"github.com/makerclub/gorover/onboard/hardware"
)

// Joystick thresholds used by the kit's phone app. Values are -100..100 per
// stick axis but the hardware is direction-only, so they collapse to intents.
const (
	deadzone      = 15
	minActivate   = 20
	tankThreshold = 25
)

// Query is a non-drive request from the app.
type Query int

const (
	QueryNone Query = iota
	QueryAck
	QueryDistance
	QueryStatus
)

// AppRequest is one parsed protocol line.
type AppRequest struct {
	Drive *hardware.DriveCommand
	Query Query
}

// ParseLine parses one newline-delimited command from the phone app:
//
//	M#<left>#<right>#   joystick frame
//	C#<mode>#           control frame; mode 3 is a distance query
//	SONIC / DISTANCE / SONAR / STATUS   text queries
//
// Anything else is a BadCommandError and gets dropped upstream.
func ParseLine(line string) (req AppRequest, err error) {
	switch {
	case strings.HasPrefix(line, "M#"):
		parts := strings.Split(strings.Trim(line[2:], "#"), "#")
		if len(parts) < 2 {
			return req, errors.BadCommandError{Raw: line}
		}
		left, lerr := strconv.Atoi(strings.TrimSpace(parts[0]))
		right, rerr := strconv.Atoi(strings.TrimSpace(parts[1]))
		if lerr != nil || rerr != nil {
			return req, errors.BadCommandError{Raw: line}
		}

		cmd := MapJoystick(left, right)
		req.Drive = &cmd
		return

	case strings.HasPrefix(line, "C#"):
		parts := strings.Split(line, "#")
		if len(parts) < 2 || parts[1] == "" {
			return req, errors.BadCommandError{Raw: line}
		}
		if parts[1] == "3" {
			req.Query = QueryDistance
		} else {
			req.Query = QueryAck
		}
		return

	default:
		upper := strings.ToUpper(line)
		for _, keyword := range []string{"SONIC", "DISTANCE", "SONAR"} {
			if strings.Contains(upper, keyword) {
				req.Query = QueryDistance
				return
			}
		}
		if strings.Contains(upper, "STATUS") {
			req.Query = QueryStatus
			return
		}
		return req, errors.BadCommandError{Raw: line}
	}
}

// MapJoystick collapses a stick frame to a directional intent. A dominant
// single side, or opposed sides, reads as a tank turn toward the slack side.
func MapJoystick(left, right int) hardware.DriveCommand {
	left = applyDeadzone(clamp(left))
	right = applyDeadzone(clamp(right))

	if abs(left) < minActivate && abs(right) < minActivate {
		return hardware.Stop
	}

	switch {
	case left > 0 && right < 0:
		return hardware.TurnRight
	case left < 0 && right > 0:
		return hardware.TurnLeft
	case abs(left) >= tankThreshold && abs(right) < tankThreshold:
		return hardware.TurnRight
	case abs(right) >= tankThreshold && abs(left) < tankThreshold:
		return hardware.TurnLeft
	case left+right > 0:
		return hardware.Forward
	default:
		return hardware.Backward
	}
}

func applyDeadzone(v int) int {
	if abs(v) < deadzone {
		return 0
	}
	return v
}

func clamp(v int) int {
	if v > 100 {
		return 100
	}
	if v < -100 {
		return -100
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// AppServer speaks the phone app's TCP protocol and feeds parsed drive
// intents into the command sink. One client at a time is the expected use
// but concurrent connections are harmless: the sink is last-write-wins.
type AppServer struct {
	Sink  CommandSink
	Rover onboard.Rover

	listener net.Listener
}

func NewAppServer(sink CommandSink, rover onboard.Rover) *AppServer {
	return &AppServer{Sink: sink, Rover: rover}
}

// ListenAndServe blocks accepting app connections until Close.
func (s *AppServer) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln
	log.Printf("[app] listening on %s", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.serve(conn)
	}
}

func (s *AppServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *AppServer) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *AppServer) serve(conn net.Conn) {
	log.Printf("[app] client connected: %s", conn.RemoteAddr())
	defer func() {
		conn.Close()
		// a vanished app must not leave the rover driving
		s.Sink.Offer(hardware.Stop)
		log.Printf("[app] client disconnected: %s", conn.RemoteAddr())
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s.handle(conn, line)
	}
}

func (s *AppServer) handle(w io.Writer, line string) {
	req, err := ParseLine(line)
	if err != nil {
		log.Printf("[app] %v", err)
		fmt.Fprint(w, "ERROR\n")
		return
	}

	switch {
	case req.Drive != nil:
		s.Sink.Offer(*req.Drive)
		fmt.Fprint(w, "OK\n")
	case req.Query == QueryDistance:
		fmt.Fprintf(w, "SONIC:%d\n", int(s.Rover.DistanceCM()))
	case req.Query == QueryStatus:
		fmt.Fprintf(w, "STATUS:OK,DISTANCE:%d\n", int(s.Rover.DistanceCM()))
	default:
		fmt.Fprint(w, "OK\n")
	}
}
