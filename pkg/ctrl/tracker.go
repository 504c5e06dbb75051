package ctrl

import "math"

// TrackerGain configures TrajectoryTracker.
//
// Zeta and OmegaN shape the second order error dynamics of the position
// feedback. LowZeta and LowB are the gains used near standstill, where
// LowV is the speed below which the low speed law takes over.
type TrackerGain struct {
	Zeta    float64
	OmegaN  float64
	LowZeta float64
	LowB    float64
	LowV    float64
}

// TrackerCommand is the velocity command produced by the tracker.
type TrackerCommand struct {
	V Polar
	A Polar
}

// TrajectoryTracker follows a time parametrized reference path by
// dynamic feedback linearization. The position error is fed back in the
// world frame and projected through the current heading, so a lateral
// error turns into a rotational command scaled by 1/v.
type TrajectoryTracker struct {
	Gain TrackerGain

	xi float64
}

// NewTrajectoryTracker creates a tracker.
func NewTrajectoryTracker(gain TrackerGain) *TrajectoryTracker {
	return &TrajectoryTracker{Gain: gain}
}

// Reset primes the internal velocity state with the current speed.
func (tt *TrajectoryTracker) Reset(v0 float64) {
	tt.xi = v0
}

// Update computes the command for one period ts from the estimated pose,
// velocity and acceleration and the reference pose with its first three
// time derivatives.
func (tt *TrajectoryTracker) Update(estQ Pose, estV, estA Polar, refQ, refDQ, refDDQ, refDDDQ Pose, ts float64) TrackerCommand {
	g := tt.Gain
	c, s := math.Cos(estQ.Th), math.Sin(estQ.Th)
	kp := g.OmegaN * g.OmegaN
	kd := 2 * g.Zeta * g.OmegaN

	dx, dy := estV.Tra*c, estV.Tra*s
	ddx := estA.Tra*c - estV.Tra*estV.Rot*s
	ddy := estA.Tra*s + estV.Tra*estV.Rot*c
	ux := refDDQ.X + kd*(refDQ.X-dx) + kp*(refQ.X-estQ.X)
	uy := refDDQ.Y + kd*(refDQ.Y-dy) + kp*(refQ.Y-estQ.Y)
	dux := refDDDQ.X + kd*(refDDQ.X-ddx) + kp*(refDQ.X-dx)
	duy := refDDDQ.Y + kd*(refDDQ.Y-ddy) + kp*(refDQ.Y-dy)
	dxi := ux*c + uy*s

	var high TrackerCommand
	if xi := tt.xi; xi != 0 {
		w := (uy*c - ux*s) / xi
		dw := (duy*c - dux*s - 2*w*dxi) / xi
		high = TrackerCommand{V: Polar{Tra: xi, Rot: w}, A: Polar{Tra: dxi, Rot: dw}}
	}

	beta := 1.0
	if g.LowV > 0 {
		beta = math.Min(1, math.Abs(tt.xi)/g.LowV)
	}
	cmd := high
	if beta < 1 {
		low := tt.lowSpeed(estQ, refQ, refDQ, refDDQ)
		cmd = TrackerCommand{
			V: high.V.Scale(beta).Add(low.V.Scale(1 - beta)),
			A: Polar{Tra: beta*high.A.Tra + (1-beta)*low.A.Tra, Rot: low.A.Rot},
		}
	}
	tt.xi += dxi * ts
	return cmd
}

func (tt *TrajectoryTracker) lowSpeed(estQ, refQ, refDQ, refDDQ Pose) TrackerCommand {
	g := tt.Gain
	e := refQ.Relative(estQ)
	rc, rs := math.Cos(refQ.Th), math.Sin(refQ.Th)
	vd := refDQ.X*rc + refDQ.Y*rs
	wd := refDQ.Th
	k1 := 2 * g.LowZeta * math.Sqrt(wd*wd+g.LowB*vd*vd)
	k2 := g.LowB
	k3 := k1
	return TrackerCommand{
		V: Polar{
			Tra: vd*math.Cos(e.Th) + k1*e.X,
			Rot: wd + k2*vd*Sinc(e.Th)*e.Y + k3*e.Th,
		},
		A: Polar{Tra: refDDQ.X*rc + refDDQ.Y*rs, Rot: refDDQ.Th},
	}
}
