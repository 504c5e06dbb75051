package nav

import (
	"context"
	"math"

	"github.com/golang/glog"

	"github.com/robotalks/mouse.go/pkg/ctrl"
	"github.com/robotalks/mouse.go/pkg/hw"
)

const (
	straightJerk = 500000
	// headingGain turns the integrated lateral error into heading fixes.
	headingGain = 1e-7

	turnJerk        = 4800 * math.Pi
	turnAccel       = 48 * math.Pi
	turnVel         = 4 * math.Pi
	turnBack        = 10.0
	turnKp          = 20.0
	turnKi          = 10.0
	turnSettleError = 0.05 * math.Pi
	turnSettleTicks = 1000

	attachTicks       = 2000
	attachKp          = 120.0
	attachKi          = 0.5
	attachSatIntegral = 1.0
	attachEnd         = 0.05
	attachSatTra      = 180.0
	attachSatRot      = math.Pi / 2

	stopDecel = 9.0
	waitDecel = 6.0
)

func (s *Sequencer) tracker() *ctrl.TrajectoryTracker {
	return ctrl.NewTrajectoryTracker(s.Machine.Tracker)
}

// straightX runs straight to distance in the current frame, from the
// current reference velocity to vEnd, then moves the frame there.
func (s *Sequencer) straightX(ctx context.Context, distance, vMax, vEnd float64, rp RunParameter) error {
	sc := s.deps.Speed
	ts := s.Machine.Ts()
	if p := sc.Pose(); distance-p.X > 0 {
		vStart := sc.RefVelocity().Tra
		tt := s.tracker()
		tt.Reset(vStart)
		ad := ctrl.NewAccelDesigner(straightJerk, rp.Accel, vStart, vMax, vEnd, distance-p.X, p.X, 0)
		var intY float64
		for t := 0.0; t < ad.TEnd(); t += ts {
			estQ := sc.Pose()
			ref := tt.Update(estQ, sc.EstVelocity(), sc.EstAccel(),
				ctrl.Pose{X: ad.X(t)}, ctrl.Pose{X: ad.V(t)}, ctrl.Pose{X: ad.A(t)}, ctrl.Pose{X: ad.J(t)}, ts)
			sc.SetTarget(ref.V.Tra, ref.V.Rot, ref.A.Tra, ref.A.Rot)
			if err := s.sync(ctx); err != nil {
				return err
			}
			s.wallAvoid(distance - estQ.X)
			s.wallCut(ref.V.Tra)
			intY += sc.Pose().Y
			sc.FixPose(ctrl.Pose{Th: intY * headingGain})
			if vEnd == 0 && t > ad.TEnd()/2 && sc.EstVelocity().Tra < 10 {
				break
			}
		}
	}
	if vEnd < 1 {
		sc.SetTarget(0, 0, 0, 0)
	}
	sc.Rebase(ctrl.Pose{X: distance})
	s.advance(ctrl.Pose{X: distance})
	return nil
}

// turn rotates in place by angle and moves the frame accordingly.
func (s *Sequencer) turn(ctx context.Context, angle float64) error {
	sc := s.deps.Speed
	ts := s.Machine.Ts()
	back := func() float64 {
		p := sc.Pose()
		return -(p.X*math.Cos(-p.Th) - p.Y*math.Sin(-p.Th)) * turnBack
	}
	ad := ctrl.NewAccelDesigner(turnJerk, turnAccel, 0, turnVel, 0, angle, 0, 0)
	for t := 0.0; t < ad.TEnd(); t += ts {
		sc.SetTarget(back(), ad.V(t), 0, ad.A(t))
		if err := s.sync(ctx); err != nil {
			return err
		}
	}
	var intErr float64
	for i := 0; ; i++ {
		e := angle - sc.Pose().Th
		intErr += e * ts
		sc.SetTarget(back(), turnKp*e+turnKi*intErr, 0, 0)
		if err := s.sync(ctx); err != nil {
			return err
		}
		if math.Abs(turnKp*e)+math.Abs(turnKi*intErr) < turnSettleError {
			break
		}
		if i >= turnSettleTicks {
			glog.Warningf("turn %.3f did not settle, error %.4f", angle, e)
			break
		}
	}
	sc.SetTarget(0, 0, 0, 0)
	sc.Rebase(ctrl.Pose{Th: angle})
	s.advance(ctrl.Pose{Th: angle})
	return nil
}

// trace follows the curve of a slalom at velocity and moves the frame
// to its end. A V90 turn fixes the along track position from the front
// wall in its middle.
func (s *Sequencer) trace(ctx context.Context, tr *ctrl.Trajectory, velocity float64, midFix bool) error {
	sc := s.deps.Speed
	ts := s.Machine.Ts()
	tt := s.tracker()
	tt.Reset(velocity)
	tr.Reset(velocity)
	var frontFixX float64
	for t := 0.0; t < tr.TEnd(); t += ts {
		st := tr.Update(ts)
		ref := tt.Update(sc.Pose(), sc.EstVelocity(), sc.EstAccel(), st.Q, st.DQ, st.DDQ, st.DDDQ, ts)
		sc.SetTarget(ref.V.Tra, ref.V.Rot, ref.A.Tra, ref.A.Rot)
		if err := s.sync(ctx); err != nil {
			return err
		}
		s.wallAvoid(0)
		s.wallCut(ref.V.Tra)
		if midFix && math.Abs(t-tr.TEnd()/2) < ts*0.9 {
			if x, ok := s.frontPosition(velocity, segFull, 5); ok {
				frontFixX = x
			}
		}
	}
	net := tr.NetCurve()
	if frontFixX != 0 {
		sc.FixPose(ctrl.Pose{X: frontFixX}.Rotate(net.Th / 2))
	}
	sc.SetTarget(velocity, 0, 0, 0)
	sc.Rebase(net)
	s.advance(net)
	return nil
}

// wallAttach squares up against the front wall with the front
// reflectors, then resets the along track position and the heading.
func (s *Sequencer) wallAttach(ctx context.Context) error {
	if !s.Config.Corrections.WallAttach {
		return nil
	}
	sc := s.deps.Speed
	ts := s.Machine.Ts()
	tof := s.deps.Range.Distance()
	d := s.deps.Walls.Distance()
	if tof >= 90 && (d.Front(0) <= 0 || d.Front(1) <= 0) {
		return nil
	}
	glog.V(1).Infof("wall attach, range %.1f front %.1f/%.1f", tof, d.Front(0), d.Front(1))
	var wi [2]float64
	for i := 0; i < attachTicks; i++ {
		d := s.deps.Walls.Distance()
		var wp ctrl.WheelParameter
		for j := range wp.Wheel {
			e := -d.Front(j)
			wi[j] = ctrl.Saturate(wi[j]+e*ts*attachKi, attachSatIntegral)
			wp.Wheel[j] = e*attachKp + wi[j]
		}
		if wp.Wheel[0]*wp.Wheel[0]+wp.Wheel[1]*wp.Wheel[1]+wi[0]*wi[0]+wi[1]*wi[1] < attachEnd {
			break
		}
		wp.Wheel2Pole(s.Machine.RotationRadius)
		sc.SetTarget(ctrl.Saturate(wp.Tra, attachSatTra), ctrl.Saturate(wp.Rot, attachSatRot), 0, 0)
		if err := s.sync(ctx); err != nil {
			return err
		}
	}
	sc.SetTarget(0, 0, 0, 0)
	sc.ResetPose(ctrl.Pose{Y: sc.Pose().Y})
	return nil
}

// putBack backs into the wall behind and leaves the robot touching it.
func (s *Sequencer) putBack(ctx context.Context) error {
	const maxV, thGain = 150, 100.0
	sc := s.deps.Speed
	for i := 0; i < maxV+100; i++ {
		v := float64(min(i, maxV))
		sc.SetTarget(-v, -sc.Pose().Th*thGain, 0, 0)
		if err := s.sync(ctx); err != nil {
			return err
		}
	}
	sc.Disable()
	for _, duty := range []float64{-0.1, -0.2} {
		s.deps.Motor.Drive(duty, duty)
		if err := s.delay(ctx, 200); err != nil {
			return err
		}
	}
	sc.Enable(true)
	return nil
}

// uturn turns around in place, turning twice toward the closer side wall
// and attaching to the front wall before each turn.
func (s *Sequencer) uturn(ctx context.Context) error {
	angle := math.Pi / 2
	if d := s.deps.Walls.Distance(); d.Side(0) < d.Side(1) {
		angle = -angle
	}
	for i := 0; i < 2; i++ {
		if err := s.wallAttach(ctx); err != nil {
			return err
		}
		if err := s.turn(ctx, angle); err != nil {
			return err
		}
	}
	return nil
}

// stop ramps the speed down and brakes. The run ends with
// ErrCollisionImminent.
func (s *Sequencer) stop(ctx context.Context) error {
	s.setState(StateRecovery)
	hw.Notifyf(s.deps.Indicator, hw.EventCollision, "wall ahead at %v", s.Offset())
	glog.Errorf("collision imminent at %v, stopping", s.Offset())
	sc := s.deps.Speed
	for v := sc.EstVelocity().Tra; v > 0; v -= stopDecel {
		sc.SetTarget(v, 0, 0, 0)
		if err := s.sync(ctx); err != nil {
			break
		}
	}
	sc.Disable()
	s.deps.Motor.EmergencyStop()
	return ErrCollisionImminent
}

// startInit turns toward the start direction, backs into the wall and
// parks.
func (s *Sequencer) startInit(ctx context.Context) error {
	for i := 0; i < 2; i++ {
		if err := s.wallAttach(ctx); err != nil {
			return err
		}
		if err := s.turn(ctx, math.Pi/2); err != nil {
			return err
		}
	}
	if err := s.putBack(ctx); err != nil {
		return err
	}
	s.deps.Motor.Free()
	return nil
}

// queueWaitDecel slows down while holding the heading until an action
// is queued.
func (s *Sequencer) queueWaitDecel(ctx context.Context) error {
	sc := s.deps.Speed
	v := sc.RefVelocity().Tra
	for s.QueueLen() == 0 {
		v = math.Max(0, v-waitDecel)
		p := sc.Pose()
		th := math.Atan2(-p.Y, 2+20*v/240) - p.Th
		sc.SetTarget(v, 40*th, 0, 0)
		if err := s.sync(ctx); err != nil {
			return err
		}
	}
	return nil
}
