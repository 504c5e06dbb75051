// Package wall classifies wall presence around the robot from the
// reflectance and front range sensors.
package wall

import (
	"context"
	"flag"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/golang/glog"
	"gonum.org/v1/gonum/stat"

	"github.com/robotalks/mouse.go/pkg/ctrl"
	fx "github.com/robotalks/mouse.go/pkg/framework"
	"github.com/robotalks/mouse.go/pkg/hw"
)

// Dir names a wall around the robot.
type Dir int

// Walls.
const (
	Left Dir = iota
	Right
	Front
)

func (d Dir) String() string {
	switch d {
	case Left:
		return "left"
	case Right:
		return "right"
	case Front:
		return "front"
	}
	return fmt.Sprintf("dir(%d)", int(d))
}

// Config configures the Detector.
type Config struct {
	BackupPath string
	// SideThreshold is the side distance, relative to the baseline, at
	// which a side wall is considered present.
	SideThreshold float64
	// FrontThreshold is the range reading in millimeters below which a
	// front wall is considered present.
	FrontThreshold float64
	// Hysteresis is the relative margin around the thresholds.
	Hysteresis float64
	// RangeStaleMs is the age after which range readings are ignored.
	RangeStaleMs int
	// BufferSize is the length of the rate of change window.
	BufferSize         int
	CalibrationSamples int
	// RefA and RefB map a raw reflectance to a distance: RefA*ln(raw)+RefB.
	RefA, RefB float64
	Period     time.Duration
}

var defaultConfig = Config{
	BackupPath:         "WallDetector.bin",
	SideThreshold:      -25,
	FrontThreshold:     135,
	Hysteresis:         0.05,
	RangeStaleMs:       50,
	BufferSize:         32,
	CalibrationSamples: 500,
	RefA:               12.9035,
	RefB:               -86.7561,
	Period:             time.Millisecond,
}

// SetupFlags registers the flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.BackupPath, "wall-calibration", defaultConfig.BackupPath, "wall detector calibration record")
	flag.Float64Var(&defaultConfig.SideThreshold, "wall-side-threshold", defaultConfig.SideThreshold, "side wall presence threshold")
	flag.Float64Var(&defaultConfig.FrontThreshold, "wall-front-threshold", defaultConfig.FrontThreshold, "front wall presence threshold in mm")
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	c := defaultConfig
	return c
}

// NewConfig returns a copy of the flag-populated config.
func NewConfig() *Config {
	c := defaultConfig
	return &c
}

// NewDetector loads the calibration baseline from BackupPath and creates
// the detector. A missing or short record is an error.
func (c *Config) NewDetector(ref hw.Reflector, rng hw.RangeSensor) (*Detector, error) {
	baseline, err := LoadBaseline(c.BackupPath)
	if err != nil {
		return nil, err
	}
	glog.Infof("wall baseline %v", baseline)
	return NewDetector(*c, baseline, ref, rng), nil
}

// Detector classifies walls once per tick.
type Detector struct {
	Config

	ref hw.Reflector
	rng hw.RangeSensor

	buffer *ctrl.Accumulator[Value]

	lock     sync.RWMutex
	baseline Value
	distance Value
	diff     Value
	walls    [3]bool
}

// NewDetector creates a detector with a known baseline.
func NewDetector(c Config, baseline Value, ref hw.Reflector, rng hw.RangeSensor) *Detector {
	return &Detector{
		Config:   c,
		ref:      ref,
		rng:      rng,
		buffer:   ctrl.NewAccumulator(c.BufferSize, Value{}),
		baseline: baseline,
	}
}

// AddToLoop implements LoopAdder. The detector runs right after the
// velocity control loop.
func (d *Detector) AddToLoop(l *fx.Loop) {
	l.AddController(fx.PrLvControl+1, fx.ControlFunc(func(fx.ControlContext) error {
		d.Update()
		return nil
	}))
}

// RefToDistance maps a raw reflectance reading to a distance.
func (d *Detector) RefToDistance(raw float64) float64 {
	if raw < 1 {
		raw = 1
	}
	return d.RefA*math.Log(raw) + d.RefB
}

func (d *Detector) sample() Value {
	var v Value
	for i := 0; i < 2; i++ {
		v.SetSide(i, d.RefToDistance(d.ref.Side(i)))
		v.SetFront(i, d.RefToDistance(d.ref.Front(i)))
	}
	return v
}

// Update samples the sensors and refreshes the classification.
func (d *Detector) Update() {
	raw := d.sample()
	fresh := d.rng.MsSinceValid() <= d.RangeStaleMs
	rng := d.rng.Distance()

	d.lock.Lock()
	defer d.lock.Unlock()
	d.distance = raw.Sub(d.baseline)
	d.buffer.Push(d.distance)

	on, off := hysteresisBounds(d.SideThreshold, d.Hysteresis)
	for i := 0; i < 2; i++ {
		d.walls[i] = hysteresis(d.walls[i], d.distance.Side(i), on, off)
	}
	if fresh {
		on, off = hysteresisBounds(-d.FrontThreshold, d.Hysteresis)
		d.walls[Front] = hysteresis(d.walls[Front], -rng, on, off)
	} else {
		d.walls[Front] = false
	}
	d.diff = d.rateOfChange()
}

// rateOfChange compares the newer half of the buffer with the older
// half, over the time spanned by the buffer.
func (d *Detector) rateOfChange() Value {
	n := d.buffer.Size()
	var sum Value
	for i := 0; i < n/2; i++ {
		sum = sum.Add(d.buffer.At(i)).Sub(d.buffer.At(n/2 + i))
	}
	return sum.Scale(1 / float64(n/2) / (float64(n-1) * d.Period.Seconds()))
}

// hysteresisBounds returns the set and clear levels around threshold.
func hysteresisBounds(threshold, margin float64) (on, off float64) {
	a, b := threshold*(1-margin), threshold*(1+margin)
	return math.Max(a, b), math.Min(a, b)
}

// hysteresis sets the flag when x rises above on and clears it when x
// falls below off.
func hysteresis(state bool, x, on, off float64) bool {
	switch {
	case x > on:
		return true
	case x < off:
		return false
	}
	return state
}

// IsWall returns the presence flag of a wall.
func (d *Detector) IsWall(dir Dir) bool {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return d.walls[dir]
}

// Walls returns left, right and front presence flags.
func (d *Detector) Walls() [3]bool {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return d.walls
}

// Distance returns the distances relative to the baseline.
func (d *Detector) Distance() Value {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return d.distance
}

// Diff returns the rate of change of the distances.
func (d *Detector) Diff() Value {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return d.diff
}

// Baseline returns the calibration baseline.
func (d *Detector) Baseline() Value {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return d.baseline
}

// CalibrateSide averages the side channels at the current stationary
// pose, which must be centered between two side walls.
func (d *Detector) CalibrateSide(ctx context.Context, syncer fx.TickSyncer) error {
	avg, err := d.average(ctx, syncer)
	if err != nil {
		return err
	}
	d.lock.Lock()
	for i := 0; i < 2; i++ {
		d.baseline.SetSide(i, avg.Side(i))
	}
	d.lock.Unlock()
	glog.Infof("side baseline %.2f %.2f", avg.Side(0), avg.Side(1))
	return nil
}

// CalibrateFront averages the front channels with the robot touching
// the wall behind and facing a front wall.
func (d *Detector) CalibrateFront(ctx context.Context, syncer fx.TickSyncer) error {
	avg, err := d.average(ctx, syncer)
	if err != nil {
		return err
	}
	d.lock.Lock()
	for i := 0; i < 2; i++ {
		d.baseline.SetFront(i, avg.Front(i))
	}
	d.lock.Unlock()
	glog.Infof("front baseline %.2f %.2f", avg.Front(0), avg.Front(1))
	return nil
}

func (d *Detector) average(ctx context.Context, syncer fx.TickSyncer) (Value, error) {
	n := d.CalibrationSamples
	var samples [4][]float64
	for i := range samples {
		samples[i] = make([]float64, 0, n)
	}
	for k := 0; k < n; k++ {
		if err := syncer.Sync(ctx); err != nil {
			return Value{}, fmt.Errorf("wall calibration: %w", err)
		}
		v := d.sample()
		for i := range samples {
			samples[i] = append(samples[i], v[i])
		}
	}
	var avg Value
	for i := range samples {
		avg[i] = stat.Mean(samples[i], nil)
	}
	return avg, nil
}

// Backup persists the baseline to BackupPath.
func (d *Detector) Backup() error {
	if err := SaveBaseline(d.BackupPath, d.Baseline()); err != nil {
		return fmt.Errorf("wall backup: %w", err)
	}
	return nil
}
