package comms

import (
	"github.com/makerclub/gorover/onboard"
	"github.com/makerclub/gorover/onboard/hardware"
)

// Cmd is a JSON command arriving on the WebRTC command channel.
type Cmd struct {
	Cmd   string  `json:"cmd"`
	Value float64 `json:"value,omitempty"`
}

// CommandSink is where remote command sources deliver drive intents; the
// control loop's offer slot in production.
type CommandSink interface {
	Offer(cmd hardware.DriveCommand)
}

// StatePayload is one telemetry frame for the dashboard.
type StatePayload struct {
	Name       string  `json:"name"`
	Command    string  `json:"command"`
	DistanceCM float64 `json:"distance_cm"`
	State      string  `json:"state"`
	Avoiding   bool    `json:"avoiding"`
}

func NewStatePayload(name string, rover onboard.Rover, loop *onboard.ControlLoop) StatePayload {
	state := rover.State()
	status := loop.Status()
	return StatePayload{
		Name:       name,
		Command:    state.Command.String(),
		DistanceCM: state.DistanceCM,
		State:      status.State,
		Avoiding:   status.Avoiding,
	}
}
