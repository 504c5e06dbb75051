// Package model holds the physical parameters of the robot and the maze.
package model

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/robotalks/mouse.go/pkg/ctrl"
)

// Field dimensions in millimeters.
const (
	SegWidthFull  = 90.0
	SegWidthDiag  = SegWidthFull * math.Sqrt2
	WallThickness = 6.0
)

// Machine describes one robot.
type Machine struct {
	// RotationRadius is the distance from the body center to a wheel.
	RotationRadius float64 `json:"rotation-radius"`
	// TailLength is the distance from the body center to the back end.
	TailLength float64 `json:"tail-length"`
	// CenterShift moves the stop point of half segment straights.
	CenterShift float64 `json:"center-shift"`

	ControlPeriod time.Duration `json:"control-period"`
	OverrunBudget time.Duration `json:"overrun-budget"`
	// DisableSettle is the number of ticks waited before releasing motors.
	DisableSettle int `json:"disable-settle"`

	Speed ctrl.FeedbackModel `json:"speed-model"`
	Gain  ctrl.FeedbackGain  `json:"speed-gain"`
	// Alpha weighs the directly sensed velocity against the integrated
	// acceleration in the velocity estimate.
	Alpha ctrl.Polar `json:"alpha"`
	// SlipGain scales the heading correction applied to odometry:
	// slip = SlipGain * v * w / 1000.
	SlipGain float64 `json:"slip-gain"`
	// FixCap is the largest per tick step of a pose correction.
	FixCap ctrl.Pose `json:"fix-cap"`

	Tracker ctrl.TrackerGain `json:"tracker"`
}

// Ts returns the control period in seconds.
func (m *Machine) Ts() float64 {
	return m.ControlPeriod.Seconds()
}

// Default returns the parameters of the reference robot.
func Default() Machine {
	return Machine{
		RotationRadius: 14.5,
		TailLength:     13,
		CenterShift:    0,
		ControlPeriod:  time.Millisecond,
		OverrunBudget:  1500 * time.Microsecond,
		DisableSettle:  10,
		Speed: ctrl.FeedbackModel{
			K1: ctrl.Polar{Tra: 5463, Rot: 137},
			T1: ctrl.Polar{Tra: 0.1998 / 1.6, Rot: 0.1354},
		},
		Gain: ctrl.FeedbackGain{
			Kp: ctrl.Polar{Tra: 0.0008, Rot: 0.06},
			Ki: ctrl.Polar{Tra: 0.02, Rot: 9.0},
		},
		Alpha:    ctrl.Polar{Tra: 0.9, Rot: 0.9},
		SlipGain: 0,
		FixCap:   ctrl.Pose{X: 0.2, Y: 0.2, Th: 0.002},
		Tracker: ctrl.TrackerGain{
			Zeta:    0.8,
			OmegaN:  18,
			LowZeta: 0.5,
			LowB:    0.001,
			LowV:    50,
		},
	}
}

// Config selects the machine parameters.
type Config struct {
	File string
}

var defaultConfig Config

// SetupFlags registers the flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.File, "model-file", defaultConfig.File, "JSON file overriding machine parameters")
}

// NewConfig returns a copy of the flag-populated config.
func NewConfig() *Config {
	c := defaultConfig
	return &c
}

// Machine loads the parameters, starting from Default and applying the
// override file if set.
func (c *Config) Machine() (Machine, error) {
	m := Default()
	if c.File == "" {
		return m, nil
	}
	data, err := os.ReadFile(c.File)
	if err != nil {
		return m, fmt.Errorf("read model file: %w", err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parse model file %s: %w", c.File, err)
	}
	if m.ControlPeriod <= 0 {
		return m, fmt.Errorf("model file %s: control period must be positive", c.File)
	}
	return m, nil
}
