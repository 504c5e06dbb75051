package sim

import (
	"context"

	fx "github.com/robotalks/mouse.go/pkg/framework"
)

// Stepper runs the world and the control loop in lockstep. Its Sync
// drives a sequencer deterministically, one tick per call, without a
// real time clock.
type Stepper struct {
	World *World
	Loop  *fx.Loop
}

// NewStepper creates a Stepper and makes the loop read simulated time.
func NewStepper(w *World, l *fx.Loop) *Stepper {
	l.Clock = w.Now
	return &Stepper{World: w, Loop: l}
}

// Sync implements TickSyncer.
func (s *Stepper) Sync(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.World.Step()
	s.Loop.RunOnce(ctx)
	return nil
}

// Steps runs n ticks.
func (s *Stepper) Steps(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := s.Sync(ctx); err != nil {
			return err
		}
	}
	return nil
}
