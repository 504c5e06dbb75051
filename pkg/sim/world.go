package sim

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/mouse.go/pkg/ctrl"
	"github.com/robotalks/mouse.go/pkg/hw"
	"github.com/robotalks/mouse.go/pkg/model"
	"github.com/robotalks/mouse.go/pkg/wall"
)

// Config describes the simulated sensors. Mount positions are in the
// body frame, x forward and y left; left and right sensors are mirrored.
type Config struct {
	RangeMax     float64
	RangeValidMs int
	RangeMount   Pos2D

	ReflectorRange float64
	SideMount      Pos2D
	FrontMount     Pos2D
	// RefAtZero is the reflector distance reading of a touching wall.
	RefAtZero float64
	RefA      float64
	RefB      float64
}

// DefaultConfig returns the sensor layout of the reference robot.
func DefaultConfig() Config {
	wc := wall.DefaultConfig()
	return Config{
		RangeMax:       255,
		RangeValidMs:   20,
		RangeMount:     Pos2D{X: -8},
		ReflectorRange: 150,
		SideMount:      Pos2D{X: 20, Y: 15},
		FrontMount:     Pos2D{X: 25, Y: 12},
		RefAtZero:      40,
		RefA:           wc.RefA,
		RefB:           wc.RefB,
	}
}

// World is the simulated robot in its maze. It implements the hardware
// capabilities used by the control core.
type World struct {
	Config  Config
	Machine model.Machine
	Maze    *Maze
	// InitErrors makes the named devices fail to initialize.
	InitErrors map[string]error

	lock   sync.Mutex
	pose   Pose2D
	v      ctrl.Polar
	a      ctrl.Polar
	duty   [2]float64
	free   bool
	braked bool
	wheel  [2]float64
	tof    float64
	tofAge int
	ticks  uint64
	epoch  time.Time

	ready chan struct{}
}

// StartPose is the pose with the tail against the south wall of cell (0, 0).
func StartPose(m model.Machine) Pose2D {
	return Pose2D{
		Pos2D:       Pos2D{X: model.SegWidthFull / 2, Y: m.TailLength + model.WallThickness/2},
		Orientation: Radians(math.Pi / 2),
	}
}

// NewWorld creates a World with the robot at start.
func NewWorld(c Config, m model.Machine, maze *Maze, start Pose2D) *World {
	if maze == nil {
		maze = &Maze{}
	}
	w := &World{
		Config:  c,
		Machine: m,
		Maze:    maze,
		pose:    start,
		free:    true,
		epoch:   time.Unix(0, 0),
		ready:   make(chan struct{}, 1),
	}
	w.tof = c.RangeMax
	w.tofAge = c.RangeValidMs
	w.sense()
	return w
}

// Step advances the world by one control period.
func (w *World) Step() {
	w.lock.Lock()
	defer w.lock.Unlock()
	m := &w.Machine
	dt := m.Ts()
	if w.braked {
		w.v, w.a = ctrl.Polar{}, ctrl.Polar{}
	} else {
		var u ctrl.Polar
		if !w.free {
			u = ctrl.Polar{Tra: (w.duty[0] + w.duty[1]) / 2, Rot: w.duty[1] - w.duty[0]}
		}
		w.a = m.Speed.K1.Mul(u).Sub(w.v).Div(m.Speed.T1)
		w.v = w.v.Add(w.a.Scale(dt))
	}
	mid := w.pose.Orientation.Rotate(w.v.Rot * dt / 2)
	w.pose.OffsetBy(mid.Project(w.v.Tra * dt))
	w.pose.Orientation = w.pose.Orientation.Rotate(w.v.Rot * dt)
	l, r := ctrl.PolarToWheels(w.v, m.RotationRadius)
	w.wheel[0] += l * dt
	w.wheel[1] += r * dt
	w.ticks++
	w.sense()
}

func (w *World) sense() {
	origin := w.pose.Transform(w.Config.RangeMount)
	if d, ok := w.Maze.Cast(origin, w.pose.Orientation, w.Config.RangeMax); ok {
		w.tof, w.tofAge = d, 0
	} else {
		w.tofAge++
	}
}

// Run implements Runnable: it steps the world in real time and signals
// Ready after every step.
func (w *World) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.Machine.ControlPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Step()
			select {
			case w.ready <- struct{}{}:
			default:
			}
		}
	}
}

// Now is the simulated time.
func (w *World) Now() time.Time {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.epoch.Add(time.Duration(w.ticks) * w.Machine.ControlPeriod)
}

// Ticks returns the number of steps taken.
func (w *World) Ticks() uint64 {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.ticks
}

// Pose returns the true pose of the robot.
func (w *World) Pose() Pose2D {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.pose
}

// Velocity returns the true velocity of the robot.
func (w *World) Velocity() ctrl.Polar {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.v
}

// MotorState returns the applied duty and whether the motors are free
// or braked.
func (w *World) MotorState() (duty [2]float64, free, braked bool) {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.duty, w.free, w.braked
}

// Baseline returns the reflector distances with the robot centered in a
// cell between walls, which is what the calibration measures.
func (w *World) Baseline() wall.Value {
	c := &w.Config
	gap := model.SegWidthFull/2 - model.WallThickness/2
	var v wall.Value
	for i := 0; i < 2; i++ {
		v.SetSide(i, c.RefAtZero-(gap-c.SideMount.Y))
		v.SetFront(i, c.RefAtZero-(gap-c.FrontMount.X))
	}
	return v
}

// Drive implements MotorDriver.
func (w *World) Drive(left, right float64) {
	w.lock.Lock()
	w.duty = [2]float64{ctrl.Saturate(left, 1), ctrl.Saturate(right, 1)}
	w.free, w.braked = false, false
	w.lock.Unlock()
}

// Free implements MotorDriver.
func (w *World) Free() {
	w.lock.Lock()
	w.duty, w.free, w.braked = [2]float64{}, true, false
	w.lock.Unlock()
}

// EmergencyStop implements MotorDriver.
func (w *World) EmergencyStop() {
	w.lock.Lock()
	w.duty, w.free, w.braked = [2]float64{}, false, true
	w.lock.Unlock()
	glog.V(1).Info("sim: emergency stop")
}

// Ready implements SampleSource.
func (w *World) Ready() <-chan struct{} {
	return w.ready
}

// Position implements Encoder.
func (w *World) Position(ch int) float64 {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.wheel[ch]
}

// Gyro implements IMU.
func (w *World) Gyro() float64 {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.v.Rot
}

// Accel implements IMU.
func (w *World) Accel() float64 {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.a.Tra
}

// AngularAccel implements IMU.
func (w *World) AngularAccel() float64 {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.a.Rot
}

// Calibrate implements IMU. The simulated IMU has no offsets.
func (w *World) Calibrate(ctx context.Context) error {
	return ctx.Err()
}

// Distance implements RangeSensor.
func (w *World) Distance() float64 {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.tof
}

// MsSinceValid implements RangeSensor.
func (w *World) MsSinceValid() int {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.msSinceValid()
}

// IsValid implements RangeSensor.
func (w *World) IsValid() bool {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.msSinceValid() < w.Config.RangeValidMs
}

func (w *World) msSinceValid() int {
	return w.tofAge * int(w.Machine.ControlPeriod/time.Millisecond)
}

// Side implements Reflector.
func (w *World) Side(i int) float64 {
	m := w.Config.SideMount
	dir := math.Pi / 2
	if i == 1 {
		m.Y, dir = -m.Y, -dir
	}
	return w.reflect(m, dir)
}

// Front implements Reflector.
func (w *World) Front(i int) float64 {
	m := w.Config.FrontMount
	if i == 1 {
		m.Y = -m.Y
	}
	return w.reflect(m, 0)
}

// reflect converts the gap seen by a reflector into its raw reading,
// the inverse of distance = a*ln(raw) + b.
func (w *World) reflect(mount Pos2D, dir float64) float64 {
	w.lock.Lock()
	defer w.lock.Unlock()
	c := &w.Config
	gap, ok := w.Maze.Cast(w.pose.Transform(mount), w.pose.Orientation.Rotate(dir), c.ReflectorRange)
	if !ok {
		return 1
	}
	return math.Exp((c.RefAtZero - gap - c.RefB) / c.RefA)
}

// Devices returns the simulated devices for bring-up.
func (w *World) Devices() []hw.Device {
	names := []string{"encoder", "imu", "range", "reflector", "motor"}
	devices := make([]hw.Device, len(names))
	for i, name := range names {
		devices[i] = &device{name: name, err: w.InitErrors[name]}
	}
	return devices
}

type device struct {
	name string
	err  error
}

func (d *device) Name() string                   { return d.name }
func (d *device) Init(ctx context.Context) error { return d.err }
