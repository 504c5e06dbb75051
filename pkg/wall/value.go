package wall

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Value holds one scalar per reflectance channel: left and right side
// followed by left and right front.
type Value [4]float64

// Side returns the side channel i, 0 left and 1 right.
func (v Value) Side(i int) float64 { return v[i] }

// Front returns the front channel i, 0 left and 1 right.
func (v Value) Front(i int) float64 { return v[2+i] }

// SetSide sets the side channel i.
func (v *Value) SetSide(i int, x float64) { v[i] = x }

// SetFront sets the front channel i.
func (v *Value) SetFront(i int, x float64) { v[2+i] = x }

// Add adds elementwise.
func (v Value) Add(w Value) Value {
	floats.Add(v[:], w[:])
	return v
}

// Sub subtracts elementwise.
func (v Value) Sub(w Value) Value {
	floats.Sub(v[:], w[:])
	return v
}

// Scale multiplies all channels by k.
func (v Value) Scale(k float64) Value {
	floats.Scale(k, v[:])
	return v
}

func (v Value) String() string {
	return fmt.Sprintf("side(%.1f, %.1f) front(%.1f, %.1f)", v[0], v[1], v[2], v[3])
}
