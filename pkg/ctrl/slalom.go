package ctrl

import "math"

// Shape describes a slalom turn: a curve whose heading follows a
// jerk-limited angular profile, with straight sections before and after
// so that entry and exit lie on the grid.
type Shape struct {
	// Total is the pose of the exit relative to the entry.
	Total Pose
	// Curve is the pose at the end of the curved part relative to its start.
	Curve        Pose
	StraightPrev float64
	StraightPost float64
	// VRef is the speed at which the angular limits below hold.
	VRef  float64
	Dddth float64
	Ddth  float64
	Dth   float64
}

const shapeIntegrationStep = 1e-5

// NewShape designs a shape ending at total, whose curved part ends at
// lateral offset yCurveEnd. xAdv is the straight length on both sides
// used when the turn reverses the heading.
func NewShape(total Pose, yCurveEnd, xAdv, dddth, ddth, dth float64) *Shape {
	ad := NewAccelDesigner(dddth, ddth, 0, dth, 0, total.Th, 0, 0)
	var x, y float64
	for t := 0.0; t < ad.TEnd(); t += shapeIntegrationStep {
		h := math.Min(shapeIntegrationStep, ad.TEnd()-t)
		th := ad.X(t + h/2)
		x += math.Cos(th) * h
		y += math.Sin(th) * h
	}
	v := yCurveEnd / y
	sh := &Shape{
		Total: total,
		Curve: Pose{X: x * v, Y: y * v, Th: total.Th},
		VRef:  v,
		Dddth: dddth,
		Ddth:  ddth,
		Dth:   dth,
	}
	if sin := math.Sin(total.Th); math.Abs(sin) < 1e-3 {
		sh.StraightPrev, sh.StraightPost = xAdv, xAdv
	} else {
		sh.StraightPost = (total.Y - sh.Curve.Y) / sin
		sh.StraightPrev = total.X - sh.Curve.X - sh.StraightPost*math.Cos(total.Th)
	}
	return sh
}

// SlalomState is the reference at one instant of a Trajectory.
type SlalomState struct {
	Q, DQ, DDQ, DDDQ Pose
}

// Trajectory generates the curved part of a Shape at a given speed.
// The angular profile is time scaled so the path geometry does not
// depend on the speed.
type Trajectory struct {
	Shape  *Shape
	Mirror bool

	v  float64
	ad AccelDesigner
	t  float64
	q  Pose
}

// NewTrajectory creates a trajectory; Mirror turns a left turn shape
// into a right turn.
func NewTrajectory(shape *Shape, mirror bool) *Trajectory {
	return &Trajectory{Shape: shape, Mirror: mirror}
}

// Reset restarts the trajectory at speed v.
func (tr *Trajectory) Reset(v float64) {
	sh := tr.Shape
	k := v / sh.VRef
	tr.v = v
	tr.ad.Reset(sh.Dddth*k*k*k, sh.Ddth*k*k, 0, sh.Dth*k, 0, sh.Total.Th, 0, 0)
	tr.t = 0
	tr.q = Pose{}
}

// TEnd is the duration of the curve at the current speed.
func (tr *Trajectory) TEnd() float64 {
	return tr.ad.TEnd()
}

// Velocity is the speed set by Reset.
func (tr *Trajectory) Velocity() float64 {
	return tr.v
}

// NetCurve is the end pose of the curve, mirrored if needed.
func (tr *Trajectory) NetCurve() Pose {
	if tr.Mirror {
		return tr.Shape.Curve.Mirror()
	}
	return tr.Shape.Curve
}

// Update advances the trajectory by ts and returns the reference.
func (tr *Trajectory) Update(ts float64) SlalomState {
	v := tr.v
	thm := tr.ad.X(tr.t + ts/2)
	tr.q.X += v * math.Cos(thm) * ts
	tr.q.Y += v * math.Sin(thm) * ts
	tr.t += ts
	th := tr.ad.X(tr.t)
	w, dw, ddw := tr.ad.V(tr.t), tr.ad.A(tr.t), tr.ad.J(tr.t)
	tr.q.Th = th
	c, s := math.Cos(th), math.Sin(th)
	st := SlalomState{
		Q:    tr.q,
		DQ:   Pose{X: v * c, Y: v * s, Th: w},
		DDQ:  Pose{X: -v * w * s, Y: v * w * c, Th: dw},
		DDDQ: Pose{X: -v*dw*s - v*w*w*c, Y: v*dw*c - v*w*w*s, Th: ddw},
	}
	if tr.Mirror {
		st.Q, st.DQ, st.DDQ, st.DDDQ = st.Q.Mirror(), st.DQ.Mirror(), st.DDQ.Mirror(), st.DDDQ.Mirror()
	}
	return st
}
