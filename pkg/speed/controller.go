// Package speed implements the velocity control loop: it estimates the
// robot velocity and pose every tick and drives the wheels to follow a
// commanded velocity.
package speed

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/mouse.go/pkg/ctrl"
	fx "github.com/robotalks/mouse.go/pkg/framework"
	"github.com/robotalks/mouse.go/pkg/hw"
	"github.com/robotalks/mouse.go/pkg/model"
)

const accumulatorSize = 4

// Snapshot is a consistent copy of the controller state.
type Snapshot struct {
	Enabled bool
	Pose    ctrl.Pose
	RefV    ctrl.Polar
	RefA    ctrl.Polar
	EstV    ctrl.Polar
	EstA    ctrl.Polar
	Duty    [2]float64
}

// Controller is the velocity control loop. Tick runs once per control
// period after the sensors have been sampled; everything else may be
// called from any goroutine.
type Controller struct {
	Machine model.Machine

	sensors hw.Sensors
	motor   hw.MotorDriver

	fbc      *ctrl.FeedbackController
	wheelPos [2]*ctrl.Accumulator[float64]
	accel    *ctrl.Accumulator[ctrl.Polar]

	lock    sync.RWMutex
	enabled bool
	refV    ctrl.Polar
	refA    ctrl.Polar
	estV    ctrl.Polar
	estA    ctrl.Polar
	encV    ctrl.WheelParameter
	pose    ctrl.Pose
	fix     ctrl.Pose
	duty    [2]float64

	tickLock sync.Mutex
	tickCh   chan struct{}
}

// New creates a Controller.
func New(m model.Machine, sensors hw.Sensors, motor hw.MotorDriver) *Controller {
	c := &Controller{
		Machine: m,
		sensors: sensors,
		motor:   motor,
		fbc:     ctrl.NewFeedbackController(m.Speed, m.Gain),
		accel:   ctrl.NewAccumulator(accumulatorSize, ctrl.Polar{}),
		tickCh:  make(chan struct{}),
	}
	for i := range c.wheelPos {
		c.wheelPos[i] = ctrl.NewAccumulator(accumulatorSize, 0.0)
	}
	return c
}

// AddToLoop implements LoopAdder.
func (c *Controller) AddToLoop(l *fx.Loop) {
	l.AddController(fx.PrLvControl, fx.ControlFunc(func(fx.ControlContext) error {
		c.Tick()
		return nil
	}))
	l.AddController(fx.PrLvPostProc, fx.ControlFunc(func(fx.ControlContext) error {
		c.publishTick()
		return nil
	}))
}

// Enable resets the estimator and the feedback state and starts driving.
func (c *Controller) Enable(resetPose bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.fbc.Reset()
	for i, acc := range c.wheelPos {
		acc.Clear(c.sensors.Position(i))
	}
	c.accel.Clear(ctrl.Polar{})
	c.refV, c.refA, c.estV, c.estA = ctrl.Polar{}, ctrl.Polar{}, ctrl.Polar{}, ctrl.Polar{}
	c.fix = ctrl.Pose{}
	if resetPose {
		c.pose = ctrl.Pose{}
	}
	c.enabled = true
	glog.V(1).Infof("speed controller enabled, pose %v", c.pose)
}

// Disable stops driving, lets the loop settle for a few ticks and
// releases the motors.
func (c *Controller) Disable() {
	c.lock.Lock()
	c.enabled = false
	c.duty = [2]float64{}
	c.lock.Unlock()

	settle := c.Machine.DisableSettle
	deadline := time.After(time.Duration(2*settle) * c.Machine.ControlPeriod)
settling:
	for i := 0; i < settle; i++ {
		select {
		case <-c.nextTick():
		case <-deadline:
			break settling
		}
	}
	c.motor.Free()
	glog.V(1).Info("speed controller disabled")
}

// Enabled reports whether the controller is driving.
func (c *Controller) Enabled() bool {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.enabled
}

// SetTarget sets the reference velocity and acceleration used from the
// next tick on.
func (c *Controller) SetTarget(vTra, vRot, aTra, aRot float64) {
	c.lock.Lock()
	c.refV = ctrl.Polar{Tra: vTra, Rot: vRot}
	c.refA = ctrl.Polar{Tra: aTra, Rot: aRot}
	c.lock.Unlock()
}

// Pose returns the estimated pose in the current segment frame.
func (c *Controller) Pose() ctrl.Pose {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.pose
}

// EstVelocity returns the estimated velocity.
func (c *Controller) EstVelocity() ctrl.Polar {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.estV
}

// EstAccel returns the estimated acceleration.
func (c *Controller) EstAccel() ctrl.Polar {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.estA
}

// RefVelocity returns the current reference velocity.
func (c *Controller) RefVelocity() ctrl.Polar {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.refV
}

// Snapshot returns a copy of the state.
func (c *Controller) Snapshot() Snapshot {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return Snapshot{
		Enabled: c.enabled,
		Pose:    c.pose,
		RefV:    c.refV,
		RefA:    c.refA,
		EstV:    c.estV,
		EstA:    c.estA,
		Duty:    c.duty,
	}
}

// FixPose requests a correction of the pose by delta. Corrections add
// up and are applied over the following ticks, at most FixCap per tick.
func (c *Controller) FixPose(delta ctrl.Pose) {
	c.lock.Lock()
	c.fix = c.fix.Add(delta)
	c.lock.Unlock()
}

// PendingFix returns the part of the requested corrections not yet applied.
func (c *Controller) PendingFix() ctrl.Pose {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.fix
}

// ResetPose overwrites the pose. Only used at maneuver boundaries.
func (c *Controller) ResetPose(p ctrl.Pose) {
	c.lock.Lock()
	c.pose = p
	c.lock.Unlock()
}

// Rebase moves the segment frame to origin, given in the current frame.
func (c *Controller) Rebase(origin ctrl.Pose) {
	c.lock.Lock()
	c.pose = c.pose.Relative(origin)
	c.fix = c.fix.Rotate(-origin.Th)
	c.lock.Unlock()
}

// Tick runs one control period.
func (c *Controller) Tick() {
	m := &c.Machine
	ts := m.Ts()
	var pos [2]float64
	for i := range pos {
		pos[i] = c.sensors.Position(i)
	}
	gyro := c.sensors.Gyro()
	accel := ctrl.Polar{Tra: c.sensors.Accel(), Rot: c.sensors.AngularAccel()}

	c.lock.Lock()
	defer c.lock.Unlock()

	for i, acc := range c.wheelPos {
		acc.Push(pos[i])
		c.encV.Wheel[i] = (acc.At(0) - acc.At(1)) / ts
	}
	c.encV.Wheel2Pole(m.RotationRadius)
	c.accel.Push(accel)
	c.estA = c.accel.At(0)
	direct := ctrl.Polar{Tra: c.encV.Tra, Rot: gyro}
	integrated := c.estV.Add(c.estA.Scale(ts))
	c.estV = ctrl.ComplementaryFilter(m.Alpha, direct, integrated)

	slip := m.SlipGain * c.refV.Tra * c.refV.Rot / 1000
	c.pose.Th += c.estV.Rot * ts
	c.pose.X += c.estV.Tra * ts * math.Cos(c.pose.Th+slip)
	c.pose.Y += c.estV.Tra * ts * math.Sin(c.pose.Th+slip)

	step := ctrl.Pose{
		X:  ctrl.Saturate(c.fix.X, m.FixCap.X),
		Y:  ctrl.Saturate(c.fix.Y, m.FixCap.Y),
		Th: ctrl.Saturate(c.fix.Th, m.FixCap.Th),
	}
	c.pose = c.pose.Add(step)
	c.fix = c.fix.Sub(step)

	if !c.enabled {
		return
	}
	u := c.fbc.Update(c.refV, c.estV, c.refA, c.estA, ts)
	c.duty[0] = ctrl.Saturate(u.Tra-u.Rot/2, 1)
	c.duty[1] = ctrl.Saturate(u.Tra+u.Rot/2, 1)
	c.motor.Drive(c.duty[0], c.duty[1])
}

// Sync implements TickSyncer: it returns after the next tick completes.
func (c *Controller) Sync(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.nextTick():
		return nil
	}
}

func (c *Controller) nextTick() <-chan struct{} {
	c.tickLock.Lock()
	defer c.tickLock.Unlock()
	return c.tickCh
}

func (c *Controller) publishTick() {
	c.tickLock.Lock()
	close(c.tickCh)
	c.tickCh = make(chan struct{})
	c.tickLock.Unlock()
}

// OverrunAlarm turns loop overruns into indicator events.
func OverrunAlarm(ind hw.Indicator) fx.OverrunHandler {
	return fx.OverrunFunc(func(o fx.Overrun) {
		hw.Notifyf(ind, hw.EventOverrun, "tick %d took %v", o.Tick, o.Elapsed)
	})
}
