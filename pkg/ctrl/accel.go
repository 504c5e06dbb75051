package ctrl

import "math"

// AccelCurve is a jerk-limited velocity change from vs to ve. The
// acceleration ramps up at the jerk limit, holds at the acceleration
// limit if there is room, and ramps back down, so the profile is
// symmetric in time.
type AccelCurve struct {
	jm, am     float64
	vs, ve     float64
	t1, t2, t3 float64
	v1, v2     float64
	x1, x2, x3 float64
}

// NewAccelCurve creates a curve from vs to ve.
func NewAccelCurve(jMax, aMax, vs, ve float64) *AccelCurve {
	c := &AccelCurve{}
	c.Reset(jMax, aMax, vs, ve)
	return c
}

// Reset redesigns the curve.
func (c *AccelCurve) Reset(jMax, aMax, vs, ve float64) {
	dv := ve - vs
	sign := 1.0
	if dv < 0 {
		sign = -1
	}
	var tc, tm float64
	am := aMax
	if math.Abs(dv) > aMax*aMax/jMax {
		tc = aMax / jMax
		tm = math.Abs(dv)/aMax - tc
	} else {
		tc = math.Sqrt(math.Abs(dv) / jMax)
		am = jMax * tc
	}
	c.jm, c.am = sign*jMax, sign*am
	c.vs, c.ve = vs, ve
	c.t1, c.t2, c.t3 = tc, tc+tm, 2*tc+tm
	c.v1 = vs + c.jm*tc*tc/2
	c.v2 = c.v1 + c.am*tm
	c.x1 = vs*tc + c.jm*tc*tc*tc/6
	c.x2 = c.x1 + c.v1*tm + c.am*tm*tm/2
	c.x3 = (vs + ve) / 2 * c.t3
}

// J returns the jerk at time t.
func (c *AccelCurve) J(t float64) float64 {
	switch {
	case t <= 0:
		return 0
	case t < c.t1:
		return c.jm
	case t < c.t2:
		return 0
	case t < c.t3:
		return -c.jm
	}
	return 0
}

// A returns the acceleration at time t.
func (c *AccelCurve) A(t float64) float64 {
	switch {
	case t <= 0:
		return 0
	case t < c.t1:
		return c.jm * t
	case t < c.t2:
		return c.am
	case t < c.t3:
		return c.am - c.jm*(t-c.t2)
	}
	return 0
}

// V returns the velocity at time t.
func (c *AccelCurve) V(t float64) float64 {
	switch {
	case t <= 0:
		return c.vs
	case t < c.t1:
		return c.vs + c.jm*t*t/2
	case t < c.t2:
		return c.v1 + c.am*(t-c.t1)
	case t < c.t3:
		d := t - c.t2
		return c.v2 + c.am*d - c.jm*d*d/2
	}
	return c.ve
}

// X returns the position at time t, starting from 0.
func (c *AccelCurve) X(t float64) float64 {
	switch {
	case t <= 0:
		return c.vs * t
	case t < c.t1:
		return c.vs*t + c.jm*t*t*t/6
	case t < c.t2:
		d := t - c.t1
		return c.x1 + c.v1*d + c.am*d*d/2
	case t < c.t3:
		d := t - c.t2
		return c.x2 + c.v2*d + c.am*d*d/2 - c.jm*d*d*d/6
	}
	return c.x3 + c.ve*(t-c.t3)
}

// TEnd is the duration of the velocity change.
func (c *AccelCurve) TEnd() float64 { return c.t3 }

// XEnd is the distance covered during the velocity change.
func (c *AccelCurve) XEnd() float64 { return c.x3 }

// VEnd is the final velocity.
func (c *AccelCurve) VEnd() float64 { return c.ve }

// AccelDistance is the distance needed to change velocity from vs to ve.
func AccelDistance(jMax, aMax, vs, ve float64) float64 {
	var c AccelCurve
	c.Reset(jMax, aMax, vs, ve)
	return c.x3
}

// ReachableVelocity returns the velocity closest to vt reachable from
// vs within distance d.
func ReachableVelocity(jMax, aMax, vs, vt, d float64) float64 {
	if AccelDistance(jMax, aMax, vs, vt) <= d {
		return vt
	}
	lo, hi := vs, vt
	for i := 0; i < 64; i++ {
		mid := (lo + hi) / 2
		if AccelDistance(jMax, aMax, vs, mid) <= d {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo
}

// AccelDesigner is a jerk-limited point to point profile: accelerate
// from vs toward vSat, cruise, and decelerate to ve, covering distance d.
// A negative d produces the mirrored profile.
type AccelDesigner struct {
	sign       float64
	ac, dc     AccelCurve
	vm         float64
	x0, t0     float64
	t1, t2, t3 float64
	x1, x2, x3 float64
}

// NewAccelDesigner creates a designer.
func NewAccelDesigner(jMax, aMax, vs, vSat, ve, d, x0, t0 float64) *AccelDesigner {
	ad := &AccelDesigner{}
	ad.Reset(jMax, aMax, vs, vSat, ve, d, x0, t0)
	return ad
}

// Reset redesigns the profile. When ve cannot be reached within d, the
// closest reachable end velocity is used instead.
func (ad *AccelDesigner) Reset(jMax, aMax, vs, vSat, ve, d, x0, t0 float64) {
	ad.sign = 1
	if d < 0 {
		ad.sign, d, vs, ve = -1, -d, -vs, -ve
	}
	vSat = math.Abs(vSat)
	ve = ReachableVelocity(jMax, aMax, vs, ve, d)
	vm := math.Max(vSat, ve)
	if AccelDistance(jMax, aMax, vs, vm)+AccelDistance(jMax, aMax, vm, ve) > d {
		lo, hi := math.Max(vs, ve), vm
		for i := 0; i < 64; i++ {
			mid := (lo + hi) / 2
			if AccelDistance(jMax, aMax, vs, mid)+AccelDistance(jMax, aMax, mid, ve) <= d {
				lo = mid
			} else {
				hi = mid
			}
		}
		vm = lo
	}
	ad.vm = vm
	ad.ac.Reset(jMax, aMax, vs, vm)
	ad.dc.Reset(jMax, aMax, vm, ve)
	cruise := math.Max(0, d-ad.ac.XEnd()-ad.dc.XEnd())
	tc := 0.0
	if vm > 0 {
		tc = cruise / vm
	}
	ad.x0, ad.t0 = x0, t0
	ad.t1 = t0 + ad.ac.TEnd()
	ad.t2 = ad.t1 + tc
	ad.t3 = ad.t2 + ad.dc.TEnd()
	ad.x1 = ad.ac.XEnd()
	ad.x2 = ad.x1 + cruise
	ad.x3 = d
}

// J returns the jerk at time t.
func (ad *AccelDesigner) J(t float64) float64 {
	switch {
	case t < ad.t1:
		return ad.sign * ad.ac.J(t-ad.t0)
	case t < ad.t2:
		return 0
	}
	return ad.sign * ad.dc.J(t-ad.t2)
}

// A returns the acceleration at time t.
func (ad *AccelDesigner) A(t float64) float64 {
	switch {
	case t < ad.t1:
		return ad.sign * ad.ac.A(t-ad.t0)
	case t < ad.t2:
		return 0
	}
	return ad.sign * ad.dc.A(t-ad.t2)
}

// V returns the velocity at time t.
func (ad *AccelDesigner) V(t float64) float64 {
	switch {
	case t < ad.t1:
		return ad.sign * ad.ac.V(t-ad.t0)
	case t < ad.t2:
		return ad.sign * ad.vm
	}
	return ad.sign * ad.dc.V(t-ad.t2)
}

// X returns the position at time t.
func (ad *AccelDesigner) X(t float64) float64 {
	var x float64
	switch {
	case t < ad.t1:
		x = ad.ac.X(t - ad.t0)
	case t < ad.t2:
		x = ad.x1 + ad.vm*(t-ad.t1)
	default:
		x = ad.x2 + ad.dc.X(t-ad.t2)
	}
	return ad.x0 + ad.sign*x
}

// TEnd is the time the profile completes.
func (ad *AccelDesigner) TEnd() float64 { return ad.t3 }

// VEnd is the final velocity.
func (ad *AccelDesigner) VEnd() float64 { return ad.sign * ad.dc.VEnd() }

// XEnd is the final position.
func (ad *AccelDesigner) XEnd() float64 { return ad.x0 + ad.sign*ad.x3 }

// VMax is the peak velocity of the profile.
func (ad *AccelDesigner) VMax() float64 { return ad.sign * ad.vm }
