package comms

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/pion/webrtc/v2"
)

type twilioConfig struct {
	TwilioSid   string `env:"TWILIO_SID"`
	TwilioToken string `env:"TWILIO_TOKEN"`
}

// TwilioClient fetches short-lived TURN credentials so dashboards outside
// the classroom network can still reach the rover.
type TwilioClient struct {
	config *twilioConfig
}

type TwilioTokensResponse struct {
	IceServers []TwilioIceServer `json:"ice_servers"`
}

type TwilioIceServer struct {
	Url        string `json:"url"`
	Credential string `json:"credential"`
	Username   string `json:"username"`
}

func NewTwilioClient() (client *TwilioClient, err error) {
	client = new(TwilioClient)
	client.config = new(twilioConfig)
	if err = env.Parse(client.config); err != nil {
		return nil, err
	}

	if client.config.TwilioSid == "" || client.config.TwilioToken == "" {
		return nil, fmt.Errorf("TWILIO_SID and TWILIO_TOKEN are not both set")
	}

	return
}

func (tc *TwilioClient) IceServers() (iceServers []webrtc.ICEServer, err error) {
	client := &http.Client{}

	u := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Tokens.json", tc.config.TwilioSid)
	form := url.Values{}
	form.Add("Ttl", "21600")
	req, err := http.NewRequest("POST", u, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("unable to generate request: %v", err)
	}

	req.SetBasicAuth(tc.config.TwilioSid, tc.config.TwilioToken)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to get response: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("twilio server returned status code %d", resp.StatusCode)
	}

	var tokens TwilioTokensResponse
	if err = json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("unable to read JSON response: %v", err)
	}

	if len(tokens.IceServers) == 0 {
		return nil, fmt.Errorf("response did not contain any ice servers")
	}

	for _, ices := range tokens.IceServers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       []string{ices.Url},
			Username:   ices.Username,
			Credential: ices.Credential,
		})
	}

	return
}
