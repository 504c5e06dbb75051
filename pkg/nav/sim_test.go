package nav_test

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/mouse.go/pkg/ctrl"
	fx "github.com/robotalks/mouse.go/pkg/framework"
	"github.com/robotalks/mouse.go/pkg/hw"
	"github.com/robotalks/mouse.go/pkg/model"
	"github.com/robotalks/mouse.go/pkg/nav"
	"github.com/robotalks/mouse.go/pkg/sim"
	"github.com/robotalks/mouse.go/pkg/speed"
	"github.com/robotalks/mouse.go/pkg/wall"
)

type rig struct {
	world   *sim.World
	speed   *speed.Controller
	walls   *wall.Detector
	seq     *nav.Sequencer
	stepper *sim.Stepper

	lock   sync.Mutex
	events []hw.Event
}

func newRig(t *testing.T, maze *sim.Maze, configure ...func(*nav.Config)) *rig {
	m := model.Default()
	r := &rig{world: sim.NewWorld(sim.DefaultConfig(), m, maze, sim.StartPose(m))}
	r.speed = speed.New(m, r.world, r.world)
	r.walls = wall.NewDetector(wall.DefaultConfig(), r.world.Baseline(), r.world, r.world)
	loop := fx.NewLoop().Add(r.speed, r.walls)
	r.stepper = sim.NewStepper(r.world, loop)
	cfg := nav.DefaultConfig()
	for _, fn := range configure {
		fn(&cfg)
	}
	r.seq = cfg.NewSequencer(m, nav.Deps{
		Speed:     r.speed,
		Walls:     r.walls,
		Range:     r.world,
		Motor:     r.world,
		IMU:       r.world,
		Sync:      r.stepper,
		Indicator: hw.IndicatorFunc(r.notify),
	})
	return r
}

func (r *rig) notify(e hw.Event) {
	r.lock.Lock()
	r.events = append(r.events, e)
	r.lock.Unlock()
}

func (r *rig) count(kind hw.EventKind) int {
	r.lock.Lock()
	defer r.lock.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (r *rig) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.seq.Done():
	case <-time.After(30 * time.Second):
		r.seq.Disable()
		t.Fatal("run did not end")
	}
}

func noDiag(c *nav.Config) { c.Search.Diag = false }

func deadEnd(t *testing.T) *sim.Maze {
	maze, err := sim.ParseMaze(`
		+---+
		|   |
		+   +
		|   |
		+---+
	`)
	require.NoError(t, err)
	return maze
}

func TestSearchRunInOpenMaze(t *testing.T) {
	testCases := []struct {
		name      string
		configure []func(*nav.Config)
	}{
		{name: "known path"},
		{name: "action by action", configure: []func(*nav.Config){noDiag}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRig(t, nil, tc.configure...)
			require.NoError(t, r.seq.Enqueue(nav.StartStep, nav.StFull, nav.TurnL, nav.StFull, nav.StHalfStop))
			require.NoError(t, r.seq.Enable(context.Background()))
			r.wait(t)

			require.NoError(t, r.seq.Err())
			assert.Equal(t, nav.StateTerminal, r.seq.State())
			assert.Zero(t, r.count(hw.EventCollision))
			assert.Equal(t, 1, r.count(hw.EventRunComplete))

			o := r.seq.Offset()
			assert.InDelta(t, -135, o.X, 1e-3)
			assert.InDelta(t, 225, o.Y, 1e-3)
			assert.InDelta(t, math.Pi, math.Abs(o.Th), 1e-6)
			// headings are CCW positive: the final heading is 180 degrees,
			// so the start heading (90) is -90 degrees seen from the end.
			assert.InDelta(t, -90, ctrl.Degrees(ctrl.NormalizeAngle(math.Pi/2-o.Th)), 1e-6)

			p := r.world.Pose()
			assert.InDelta(t, o.X, p.X, 20)
			assert.InDelta(t, o.Y, p.Y, 20)
			assert.InDelta(t, 0, ctrl.NormalizeAngle(float64(p.Orientation)-o.Th), 0.2)
			assert.InDelta(t, 0, r.world.Velocity().Tra, 20)
			_, free, _ := r.world.MotorState()
			assert.True(t, free)
		})
	}
}

func TestUTurnInDeadEnd(t *testing.T) {
	r := newRig(t, deadEnd(t), noDiag)
	require.NoError(t, r.seq.Enqueue(nav.StartStep, nav.StHalfStop, nav.Rotate180, nav.StHalf, nav.StHalfStop))
	require.NoError(t, r.seq.Enable(context.Background()))
	r.wait(t)

	require.NoError(t, r.seq.Err())
	assert.Equal(t, nav.StateTerminal, r.seq.State())
	assert.Zero(t, r.count(hw.EventCollision))
	assert.Equal(t, 1, r.count(hw.EventRunComplete))

	o := r.seq.Offset()
	assert.InDelta(t, 45, o.X, 1e-3)
	assert.InDelta(t, 45, o.Y, 1e-3)
	assert.InDelta(t, -math.Pi/2, ctrl.NormalizeAngle(o.Th), 1e-6)
	p := r.world.Pose()
	assert.InDelta(t, 45, p.X, 10)
	assert.InDelta(t, 45, p.Y, 10)
	assert.InDelta(t, 0, ctrl.NormalizeAngle(float64(p.Orientation)+math.Pi/2), 0.2)
}

func TestStartInitParks(t *testing.T) {
	r := newRig(t, deadEnd(t), noDiag)
	require.NoError(t, r.seq.Enqueue(nav.StartStep, nav.StHalfStop, nav.StartInit))
	require.NoError(t, r.seq.Enable(context.Background()))
	r.wait(t)

	require.NoError(t, r.seq.Err())
	assert.Equal(t, nav.StateTerminal, r.seq.State())
	assert.Zero(t, r.count(hw.EventCollision))
	assert.Equal(t, 1, r.count(hw.EventRunComplete))
	assert.False(t, r.speed.Enabled())
	_, free, braked := r.world.MotorState()
	assert.True(t, free)
	assert.False(t, braked)
	// turned twice to the left, facing back toward the start.
	assert.InDelta(t, 0, ctrl.NormalizeAngle(float64(r.world.Pose().Orientation)+math.Pi/2), 0.2)
}

func TestSearchRunMergesStraights(t *testing.T) {
	r := newRig(t, nil)
	require.NoError(t, r.seq.Enqueue(nav.StartStep, nav.StFull, nav.StFull, nav.StFull, nav.StHalfStop))
	require.NoError(t, r.seq.Enable(context.Background()))
	r.wait(t)

	require.NoError(t, r.seq.Err())
	o := r.seq.Offset()
	assert.InDelta(t, 45, o.X, 1e-3)
	assert.InDelta(t, 90+270+45, o.Y, 1e-3)
	p := r.world.Pose()
	assert.InDelta(t, o.Y, p.Y, 20)
	assert.InDelta(t, 45, p.X, 10)
}

func TestSearchRunStopsBeforeWall(t *testing.T) {
	r := newRig(t, deadEnd(t))
	require.NoError(t, r.seq.Enqueue(nav.StartStep, nav.StFull))
	require.NoError(t, r.seq.Enable(context.Background()))
	r.wait(t)

	assert.ErrorIs(t, r.seq.Err(), nav.ErrCollisionImminent)
	assert.Equal(t, nav.StateTerminal, r.seq.State())
	assert.Equal(t, 1, r.count(hw.EventCollision))
	_, _, braked := r.world.MotorState()
	assert.True(t, braked)
	// it never reached the wall.
	assert.Less(t, r.world.Pose().Y, 180-model.WallThickness/2-r.speed.Machine.TailLength)
}

func TestDisableMidManeuver(t *testing.T) {
	r := newRig(t, nil)
	require.NoError(t, r.seq.Enqueue(nav.StartStep, nav.StFull, nav.StFull, nav.StFull, nav.StFull))
	require.NoError(t, r.seq.Enable(context.Background()))
	require.Eventually(t, func() bool { return r.world.Ticks() > 300 }, 10*time.Second, time.Millisecond)
	r.seq.Disable()

	assert.Equal(t, nav.StateTerminal, r.seq.State())
	assert.NoError(t, r.seq.Err())
	assert.False(t, r.speed.Enabled())
	_, free, _ := r.world.MotorState()
	assert.True(t, free)
	ticks := r.world.Ticks()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, ticks, r.world.Ticks())
	assert.ErrorIs(t, r.seq.Enqueue(nav.StFull), nav.ErrTerminal)
}
