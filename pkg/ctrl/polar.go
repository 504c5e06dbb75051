package ctrl

import "fmt"

// Polar is a quantity in pole coordinates: a translational and a
// rotational component of the robot body.
type Polar struct {
	Tra float64
	Rot float64
}

// Add returns p + q.
func (p Polar) Add(q Polar) Polar {
	return Polar{Tra: p.Tra + q.Tra, Rot: p.Rot + q.Rot}
}

// Sub returns p - q.
func (p Polar) Sub(q Polar) Polar {
	return Polar{Tra: p.Tra - q.Tra, Rot: p.Rot - q.Rot}
}

// Mul multiplies elementwise.
func (p Polar) Mul(q Polar) Polar {
	return Polar{Tra: p.Tra * q.Tra, Rot: p.Rot * q.Rot}
}

// Div divides elementwise.
func (p Polar) Div(q Polar) Polar {
	return Polar{Tra: p.Tra / q.Tra, Rot: p.Rot / q.Rot}
}

// Scale multiplies both components by k.
func (p Polar) Scale(k float64) Polar {
	return Polar{Tra: p.Tra * k, Rot: p.Rot * k}
}

func (p Polar) String() string {
	return fmt.Sprintf("(%.3f, %.3f)", p.Tra, p.Rot)
}
