package ctrl

import (
	"fmt"
	"math"
)

// Pose is a planar pose. X and Y are in millimeters, Th in radians,
// counter-clockwise positive.
type Pose struct {
	X, Y, Th float64
}

// Add adds componentwise.
func (p Pose) Add(q Pose) Pose {
	return Pose{X: p.X + q.X, Y: p.Y + q.Y, Th: p.Th + q.Th}
}

// Sub subtracts componentwise.
func (p Pose) Sub(q Pose) Pose {
	return Pose{X: p.X - q.X, Y: p.Y - q.Y, Th: p.Th - q.Th}
}

// Scale multiplies all components by k.
func (p Pose) Scale(k float64) Pose {
	return Pose{X: p.X * k, Y: p.Y * k, Th: p.Th * k}
}

// Rotate rotates the position by th around the origin. Th is kept.
func (p Pose) Rotate(th float64) Pose {
	c, s := math.Cos(th), math.Sin(th)
	return Pose{X: p.X*c - p.Y*s, Y: p.X*s + p.Y*c, Th: p.Th}
}

// Mirror reflects the pose about the x axis.
func (p Pose) Mirror() Pose {
	return Pose{X: p.X, Y: -p.Y, Th: -p.Th}
}

// Relative expresses p in the frame located at origin.
func (p Pose) Relative(origin Pose) Pose {
	return p.Sub(origin).Rotate(-origin.Th)
}

// Compose moves the local pose p out of the frame located at origin.
func (p Pose) Compose(origin Pose) Pose {
	return origin.Add(p.Rotate(origin.Th))
}

func (p Pose) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f°)", p.X, p.Y, Degrees(p.Th))
}

// NormalizeAngle maps r into (-π, π].
func NormalizeAngle(r float64) float64 {
	if r >= 2*math.Pi || r <= -2*math.Pi {
		r = math.Remainder(r, 2*math.Pi)
	}
	if r > math.Pi {
		r -= 2 * math.Pi
	} else if r <= -math.Pi {
		r += 2 * math.Pi
	}
	return r
}

// Degrees converts radians to degrees.
func Degrees(r float64) float64 {
	return r * 180 / math.Pi
}

// Radians converts degrees to radians.
func Radians(d float64) float64 {
	return d * math.Pi / 180
}

// Sinc is sin(x)/x, continuous at 0.
func Sinc(x float64) float64 {
	if math.Abs(x) < 1e-6 {
		return 1 - x*x/6
	}
	return math.Sin(x) / x
}

// Saturate clamps x into [-limit, limit].
func Saturate(x, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, x))
}
