package nav

import (
	"flag"

	"github.com/robotalks/mouse.go/pkg/model"
)

// RunParameter configures the speed of a run.
type RunParameter struct {
	SearchV   float64 `json:"search-v"`
	MaxSpeed  float64 `json:"max-speed"`
	Accel     float64 `json:"accel"`
	CurveGain float64 `json:"curve-gain"`
	Diag      bool    `json:"diag"`
}

// Corrections selects the pose corrections applied while running.
type Corrections struct {
	WallAttach bool `json:"wall-attach"`
	WallAvoid  bool `json:"wall-avoid"`
	// WallCut snaps the along track position where a side wall ends.
	WallCut  bool `json:"wall-cut"`
	FrontFix bool `json:"front-fix"`

	// FrontFixBound rejects front corrections implying a larger jump.
	FrontFixBound float64 `json:"front-fix-bound"`
	// FrontFixClamp limits accepted forward corrections.
	FrontFixClamp float64 `json:"front-fix-clamp"`
	// FrontFixBias is added to the position derived from the range sensor.
	FrontFixBias float64 `json:"front-fix-bias"`
	// WallCutMin and WallCutMax bound the accepted wall cut jump.
	WallCutMin float64 `json:"wall-cut-min"`
	WallCutMax float64 `json:"wall-cut-max"`
}

// Config is the sequencer configuration.
type Config struct {
	Search      RunParameter `json:"search"`
	Fast        RunParameter `json:"fast"`
	Corrections Corrections  `json:"corrections"`
}

var defaultConfig = Config{
	Search: RunParameter{
		SearchV:   300,
		MaxSpeed:  600,
		Accel:     4800,
		CurveGain: 1,
		Diag:      true,
	},
	Fast: RunParameter{
		SearchV:   300,
		MaxSpeed:  1200,
		Accel:     6000,
		CurveGain: 1.2,
		Diag:      true,
	},
	Corrections: Corrections{
		WallAttach:    true,
		WallAvoid:     true,
		FrontFix:      true,
		FrontFixBound: 20,
		FrontFixClamp: 10,
		FrontFixBias:  5,
		WallCutMin:    -30,
		WallCutMax:    5,
	},
}

// SetupFlags registers the sequencer flags.
func SetupFlags() {
	flag.Float64Var(&defaultConfig.Search.SearchV, "search-v", defaultConfig.Search.SearchV, "search velocity in mm/s")
	flag.Float64Var(&defaultConfig.Search.MaxSpeed, "search-max-speed", defaultConfig.Search.MaxSpeed, "maximum speed on known straights while searching")
	flag.BoolVar(&defaultConfig.Search.Diag, "search-diag", defaultConfig.Search.Diag, "run known segments diagonally while searching")
	flag.Float64Var(&defaultConfig.Fast.MaxSpeed, "fast-max-speed", defaultConfig.Fast.MaxSpeed, "maximum speed of the fast run")
	flag.Float64Var(&defaultConfig.Fast.CurveGain, "fast-curve-gain", defaultConfig.Fast.CurveGain, "slalom speed gain of the fast run")
	flag.BoolVar(&defaultConfig.Fast.Diag, "fast-diag", defaultConfig.Fast.Diag, "allow diagonals in the fast run")
	flag.BoolVar(&defaultConfig.Corrections.WallAttach, "wall-attach", defaultConfig.Corrections.WallAttach, "attach to front walls before turning in place")
	flag.BoolVar(&defaultConfig.Corrections.WallAvoid, "wall-avoid", defaultConfig.Corrections.WallAvoid, "follow side walls")
	flag.BoolVar(&defaultConfig.Corrections.WallCut, "wall-cut", defaultConfig.Corrections.WallCut, "correct position where side walls end")
	flag.BoolVar(&defaultConfig.Corrections.FrontFix, "front-fix", defaultConfig.Corrections.FrontFix, "correct position from the front range sensor")
	flag.Float64Var(&defaultConfig.Corrections.FrontFixBound, "front-fix-bound", defaultConfig.Corrections.FrontFixBound, "largest accepted front correction in mm")
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return defaultConfig
}

// NewConfig creates a configuration from flags.
func NewConfig() *Config {
	c := defaultConfig
	return &c
}

// NewSequencer creates a Sequencer with this configuration.
func (c *Config) NewSequencer(m model.Machine, deps Deps) *Sequencer {
	return NewSequencer(*c, m, deps)
}
