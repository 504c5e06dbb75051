// Package hw declares the capabilities the control core needs from the
// robot hardware. Drivers and the simulator implement them.
package hw

import "context"

// MotorDriver drives the two wheel motors.
type MotorDriver interface {
	// Drive sets the normalized duty of both motors, in [-1, 1].
	Drive(left, right float64)
	// Free releases both motors, letting them coast.
	Free()
	// EmergencyStop brakes both motors immediately.
	EmergencyStop()
}

// SampleSource signals that a new set of sensor samples is ready.
type SampleSource interface {
	Ready() <-chan struct{}
}

// Encoder reports unwrapped wheel positions in millimeters.
type Encoder interface {
	// Position returns the position of wheel ch, 0 left and 1 right.
	Position(ch int) float64
}

// IMU is the inertial sensor.
type IMU interface {
	// Gyro is the yaw rate in rad/s.
	Gyro() float64
	// Accel is the longitudinal acceleration in mm/s².
	Accel() float64
	// AngularAccel is the yaw acceleration in rad/s².
	AngularAccel() float64
	// Calibrate measures the sensor offsets while stationary.
	Calibrate(context.Context) error
}

// RangeSensor is the front time-of-flight sensor.
type RangeSensor interface {
	// Distance is the last valid distance in millimeters.
	Distance() float64
	// MsSinceValid is the age of the last valid reading.
	MsSinceValid() int
	// IsValid reports whether the last reading is fresh enough to use.
	IsValid() bool
}

// Reflector exposes the raw readings of the reflectance sensors.
type Reflector interface {
	// Side is the raw reading of the side sensor i, 0 left and 1 right.
	Side(i int) float64
	// Front is the raw reading of the front sensor i, 0 left and 1 right.
	Front(i int) float64
}

// Sensors bundles what the control loop samples every tick.
type Sensors interface {
	SampleSource
	Encoder
	IMU
}

// Device is a piece of hardware brought up at startup.
type Device interface {
	Name() string
	Init(context.Context) error
}
