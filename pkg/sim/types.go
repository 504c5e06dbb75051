// Package sim is a hardware-free micromouse: a differential drive body
// with first order motors in a maze of thin walls, exposing the same
// capabilities as the real hardware.
package sim

import (
	"math"

	"github.com/robotalks/mouse.go/pkg/ctrl"
)

// Pos2D defines the position in 2D, in millimeters.
type Pos2D struct {
	X, Y float64
}

// Pose2D defines the pose in 2D.
type Pose2D struct {
	Pos2D
	Orientation Angle
}

// Angle is a heading in radians, counter-clockwise from the x axis.
type Angle float64

// Segment is a wall, represented by its center line.
type Segment struct {
	A, B Pos2D
}

// Add is a helper to add Pos2D.
func (p Pos2D) Add(p1 Pos2D) Pos2D {
	return Pos2D{X: p.X + p1.X, Y: p.Y + p1.Y}
}

// Sub is a helper to subtract Pos2D.
func (p Pos2D) Sub(p1 Pos2D) Pos2D {
	return Pos2D{X: p.X - p1.X, Y: p.Y - p1.Y}
}

// OffsetBy performs Add in-place.
func (p *Pos2D) OffsetBy(p1 Pos2D) *Pos2D {
	p.X += p1.X
	p.Y += p1.Y
	return p
}

// cross is the z component of the cross product.
func (p Pos2D) cross(p1 Pos2D) float64 {
	return p.X*p1.Y - p.Y*p1.X
}

// Transform moves a point given in the body frame of pose into the
// world frame.
func (pose Pose2D) Transform(local Pos2D) Pos2D {
	c, s := pose.Orientation.Cos(), pose.Orientation.Sin()
	return Pos2D{
		X: pose.X + local.X*c - local.Y*s,
		Y: pose.Y + local.X*s + local.Y*c,
	}
}

// Radians creates an Angle normalized into (-π, π].
func Radians(r float64) Angle {
	return Angle(ctrl.NormalizeAngle(r))
}

// Rotate returns the angle turned by r radians.
func (a Angle) Rotate(r float64) Angle {
	return Radians(float64(a) + r)
}

// Cos wraps math.Cos.
func (a Angle) Cos() float64 {
	return math.Cos(float64(a))
}

// Sin wraps math.Sin.
func (a Angle) Sin() float64 {
	return math.Sin(float64(a))
}

// Project projects distance into X and Y.
func (a Angle) Project(dist float64) Pos2D {
	return Pos2D{X: dist * a.Cos(), Y: dist * a.Sin()}
}
