package onboard

import (
	"fmt"
	"io"
	"io/ioutil"
	"strings"
	"time"

	"github.com/makerclub/gorover/onboard/hardware"
	"gopkg.in/yaml.v2"
)

// TurnPolicy selects which way the rover turns at the end of an avoidance
// maneuver.
type TurnPolicy int

const (
	TurnRandom TurnPolicy = iota
	TurnLeft
	TurnRight
	TurnAlternate
)

func (p TurnPolicy) String() string {
	switch p {
	case TurnLeft:
		return "left"
	case TurnRight:
		return "right"
	case TurnAlternate:
		return "alternate"
	default:
		return "random"
	}
}

func (p TurnPolicy) MarshalYAML() (interface{}, error) {
	return p.String(), nil
}

func (p *TurnPolicy) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	switch strings.ToLower(s) {
	case "", "random":
		*p = TurnRandom
	case "left":
		*p = TurnLeft
	case "right":
		*p = TurnRight
	case "alternate":
		*p = TurnAlternate
	default:
		return fmt.Errorf("unknown turn policy %q", s)
	}
	return nil
}

// AvoidanceConfig is the student tuning surface for the obstacle avoidance
// maneuver. Durations are plain milliseconds in the YAML so the numbers read
// the same as on the kit's spec sheet.
type AvoidanceConfig struct {
	DetectCM         float64    `yaml:"detect_cm"`
	BackupMS         int        `yaml:"backup_ms"`
	TurnMS           int        `yaml:"turn_ms"`
	Turn             TurnPolicy `yaml:"turn"`
	TickMS           int        `yaml:"tick_ms"`
	CommandTimeoutMS int        `yaml:"command_timeout_ms"`
}

// Kit defaults: detect at 20cm, 600ms backup, 1200ms turn (roughly 180
// degrees at full duty), 50ms tick, 800ms dead-man stop.
func DefaultAvoidance() AvoidanceConfig {
	return AvoidanceConfig{
		DetectCM:         20,
		BackupMS:         600,
		TurnMS:           1200,
		Turn:             TurnRandom,
		TickMS:           50,
		CommandTimeoutMS: 800,
	}
}

func (c AvoidanceConfig) BackupDuration() time.Duration {
	return time.Duration(c.BackupMS) * time.Millisecond
}

func (c AvoidanceConfig) TurnDuration() time.Duration {
	return time.Duration(c.TurnMS) * time.Millisecond
}

func (c AvoidanceConfig) TickInterval() time.Duration {
	if c.TickMS <= 0 {
		return 50 * time.Millisecond
	}
	return time.Duration(c.TickMS) * time.Millisecond
}

func (c AvoidanceConfig) CommandTimeout() time.Duration {
	if c.CommandTimeoutMS <= 0 {
		return 800 * time.Millisecond
	}
	return time.Duration(c.CommandTimeoutMS) * time.Millisecond
}

type WifiConfig struct {
	SSID     string `yaml:"ssid"`
	Password string `yaml:"password"`
}

type PinConfig struct {
	Motors hardware.MotorPins `yaml:"motors"`
	Sonar  hardware.SonarPins `yaml:"sonar"`
	LED    string             `yaml:"led"`
}

type ListenConfig struct {
	App  string `yaml:"app"`
	HTTP string `yaml:"http"`
}

type RoverConfig struct {
	Version          int             `yaml:"version"`
	Name             string          `yaml:"name"`
	Wifi             WifiConfig      `yaml:"wifi"`
	Listen           ListenConfig    `yaml:"listen"`
	SignalingServers []string        `yaml:"signaling_servers"`
	Pins             PinConfig       `yaml:"pins"`
	Avoidance        AvoidanceConfig `yaml:"avoidance"`
}

// LoadConfig parses a versioned YAML rover config.
func LoadConfig(r io.Reader) (config RoverConfig, err error) {
	raw, err := ioutil.ReadAll(r)
	if err != nil {
		return
	}

	config.Avoidance = DefaultAvoidance()
	if err = yaml.Unmarshal(raw, &config); err != nil {
		return
	}

	switch config.Version {
	case 1:
		if config.Avoidance.DetectCM <= 0 {
			err = fmt.Errorf("avoidance detect_cm must be positive, got %v", config.Avoidance.DetectCM)
		} else if config.Avoidance.BackupMS <= 0 || config.Avoidance.TurnMS <= 0 {
			err = fmt.Errorf("avoidance durations must be positive")
		}

	default:
		err = fmt.Errorf("unable to work with config version %d", config.Version)
	}

	return
}
