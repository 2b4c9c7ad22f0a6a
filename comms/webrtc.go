package comms

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/makerclub/gorover/onboard"
	"github.com/makerclub/gorover/onboard/hardware"
	"github.com/pion/webrtc/v2"
)

// Telemetry frames per second pushed to dashboard clients.
const FrameRate = 10

type WebRTCClient struct {
	pc        *webrtc.PeerConnection
	tx, rx    *webrtc.DataChannel
	conductor ConductorInterface
}

type ConductorInterface interface {
	ProcessCommand(cmd Cmd)
}

// Conductor owns the dashboard peers: it answers SDP offers relayed over the
// signaling websocket, takes drive commands off the "command" channel and
// pushes telemetry out the "data" channel.
type Conductor struct {
	Name  string
	Rover onboard.Rover
	Loop  *onboard.ControlLoop

	lock       sync.Mutex
	clients    []*WebRTCClient
	iceServers []webrtc.ICEServer
}

// SetICEServers installs extra ICE servers (e.g. Twilio TURN) used for
// subsequently negotiated peers.
func (c *Conductor) SetICEServers(servers []webrtc.ICEServer) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.iceServers = servers
}

func NewWebRTCClient(
	sdp webrtc.SessionDescription,
	conductor ConductorInterface,
	extraICE []webrtc.ICEServer,
	signals chan<- string) (client *WebRTCClient, err error) {

	client = new(WebRTCClient)

	config := webrtc.Configuration{
		ICEServers: append([]webrtc.ICEServer{
			{URLs: []string{"stun:stun.stunprotocol.org:3478"}},
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		}, extraICE...),
	}

	// Trickle ICE so candidates stream back over the signaling socket
	s := webrtc.SettingEngine{}
	s.SetTrickle(true)
	api := webrtc.NewAPI(webrtc.WithSettingEngine(s))

	client.pc, err = api.NewPeerConnection(config)
	if err != nil {
		return
	}

	client.pc.OnICECandidate(func(ic *webrtc.ICECandidate) {
		if ic == nil {
			return
		}

		msg, err := json.Marshal(ic.ToJSON())
		if err != nil {
			return
		}
		signals <- string(msg)
	})

	client.pc.OnDataChannel(func(channel *webrtc.DataChannel) {
		switch label := channel.Label(); label {
		case "data":
			client.tx = channel

		case "command":
			client.rx = channel
			client.rx.OnMessage(client.receiveMessage)

		default:
			log.Printf("[rtc] ignoring unknown data channel %s", label)
		}
	})

	client.conductor = conductor

	if err = client.pc.SetRemoteDescription(sdp); err != nil {
		return nil, err
	}

	go func() {
		answer, err := client.pc.CreateAnswer(nil)
		if err != nil {
			log.Printf("[rtc] answer: %v", err)
			return
		}
		if err = client.pc.SetLocalDescription(answer); err != nil {
			log.Printf("[rtc] local description: %v", err)
			return
		}
		answerJson, err := json.Marshal(answer)
		if err != nil {
			return
		}
		signals <- string(answerJson)
	}()

	return
}

func (client *WebRTCClient) AddIceCandidate(msg string) error {
	var ic webrtc.ICECandidateInit
	if err := json.Unmarshal([]byte(msg), &ic); err != nil {
		return errors.New("unable to deserialize ice msg")
	}

	return client.pc.AddICECandidate(ic)
}

func (client *WebRTCClient) receiveMessage(msg webrtc.DataChannelMessage) {
	var cmd Cmd
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		client.rx.SendText("Error: invalid json")
		return
	}

	client.conductor.ProcessCommand(cmd)
}

// ProcessCommand feeds a dashboard command into the control loop's slot.
// Unknown commands are logged and dropped; a bad client must not stall the
// tick.
func (c *Conductor) ProcessCommand(cmd Cmd) {
	var drive hardware.DriveCommand

	switch cmd.Cmd {
	case "forward":
		drive = hardware.Forward
	case "backward":
		drive = hardware.Backward
	case "left":
		drive = hardware.TurnLeft
	case "right":
		drive = hardware.TurnRight
	case "stop":
		drive = hardware.Stop
	default:
		log.Printf("[rtc] unable to process command %v", cmd)
		return
	}

	c.Loop.Offer(drive)
}

// UpdateClients pushes telemetry frames to every connected dashboard until
// the process exits.
func (c *Conductor) UpdateClients() {
	for {
		payload := NewStatePayload(c.Name, c.Rover, c.Loop)
		msg, err := json.Marshal(payload)
		if err != nil {
			panic(err)
		}

		c.lock.Lock()
		for _, client := range c.clients {
			if client.tx != nil && client.tx.ReadyState() == webrtc.DataChannelStateOpen {
				client.tx.SendText(string(msg))
			}
		}
		c.lock.Unlock()

		time.Sleep(time.Second / FrameRate)
	}
}

// ReceiveOffer handles one signaling message: an SDP offer creates a new
// peer, anything else is rejected.
func (c *Conductor) ReceiveOffer(msg string, signals chan<- string) (client *WebRTCClient, err error) {
	var sdp webrtc.SessionDescription
	if err = json.Unmarshal([]byte(msg), &sdp); err != nil {
		return
	}

	switch sdp.Type {
	case webrtc.SDPTypeOffer:
		c.lock.Lock()
		ice := c.iceServers
		c.lock.Unlock()

		client, err = NewWebRTCClient(sdp, ConductorInterface(c), ice, signals)
		if err != nil {
			return nil, err
		}

		c.lock.Lock()
		c.clients = append(c.clients, client)
		c.lock.Unlock()
		return client, nil

	default:
		return nil, fmt.Errorf("unexpected SDP type %s", sdp.Type)
	}
}
