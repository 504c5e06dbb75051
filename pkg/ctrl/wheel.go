package ctrl

// WheelParameter holds the same quantity in wheel and pole coordinates.
// Wheel[0] is the left wheel, Wheel[1] the right one.
type WheelParameter struct {
	Tra   float64
	Rot   float64
	Wheel [2]float64
}

// Wheel2Pole updates Tra and Rot from Wheel using radius, the distance
// from the body center to each wheel.
func (w *WheelParameter) Wheel2Pole(radius float64) {
	w.Tra = (w.Wheel[1] + w.Wheel[0]) / 2
	w.Rot = (w.Wheel[1] - w.Wheel[0]) / (2 * radius)
}

// Pole2Wheel updates Wheel from Tra and Rot.
func (w *WheelParameter) Pole2Wheel(radius float64) {
	w.Wheel[0] = w.Tra - radius*w.Rot
	w.Wheel[1] = w.Tra + radius*w.Rot
}

// Polar returns the pole coordinates.
func (w WheelParameter) Polar() Polar {
	return Polar{Tra: w.Tra, Rot: w.Rot}
}

// WheelsToPolar converts a wheel pair to pole coordinates.
func WheelsToPolar(left, right, radius float64) Polar {
	w := WheelParameter{Wheel: [2]float64{left, right}}
	w.Wheel2Pole(radius)
	return w.Polar()
}

// PolarToWheels converts pole coordinates to a wheel pair.
func PolarToWheels(p Polar, radius float64) (left, right float64) {
	w := WheelParameter{Tra: p.Tra, Rot: p.Rot}
	w.Pole2Wheel(radius)
	return w.Wheel[0], w.Wheel[1]
}
