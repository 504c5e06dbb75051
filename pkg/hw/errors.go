package hw

import (
	"context"
	"fmt"

	"github.com/golang/glog"
)

// InitError reports a device failing to come up.
type InitError struct {
	Device string
	Err    error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("init %s: %v", e.Device, e.Err)
}

// Unwrap returns the underlying error.
func (e *InitError) Unwrap() error {
	return e.Err
}

// Bringup initializes devices in order and stops at the first failure.
func Bringup(ctx context.Context, devices ...Device) error {
	for _, dev := range devices {
		if err := dev.Init(ctx); err != nil {
			glog.Errorf("bring up %s failed: %v", dev.Name(), err)
			return &InitError{Device: dev.Name(), Err: err}
		}
		glog.V(1).Infof("%s ready", dev.Name())
	}
	return nil
}
