package nav

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/mouse.go/pkg/ctrl"
	"github.com/robotalks/mouse.go/pkg/hw"
	"github.com/robotalks/mouse.go/pkg/wall"
)

func waitDone(t *testing.T, s *Sequencer) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("run did not end")
	}
}

func TestSequencerLifecycle(t *testing.T) {
	ctx := context.Background()
	s, f := newFakeSequencer()
	assert.Equal(t, StateIdle, s.State())
	require.NoError(t, s.Enable(ctx))
	assert.ErrorIs(t, s.Enable(ctx), ErrBusy)
	assert.ErrorIs(t, s.SetPath([]Action{StFull}), ErrBusy)
	assert.ErrorIs(t, s.Reset(), ErrBusy)
	require.Eventually(t, func() bool { return s.State() == StateIdle }, time.Second, time.Millisecond)
	assert.True(t, s.Running())

	s.Disable()
	assert.False(t, s.Running())
	assert.Equal(t, StateTerminal, s.State())
	assert.NoError(t, s.Err())
	assert.Equal(t, 1, f.speed.disables)
	assert.ErrorIs(t, s.Enqueue(StFull), ErrTerminal)
	assert.ErrorIs(t, s.Enable(ctx), ErrTerminal)
	assert.ErrorIs(t, s.SetPath([]Action{StFull}), ErrTerminal)

	require.NoError(t, s.Reset())
	assert.Equal(t, StateIdle, s.State())
	require.NoError(t, s.Enqueue(StFull))
	assert.Equal(t, 1, s.QueueLen())
}

func TestSequencerDisableIdle(t *testing.T) {
	s, f := newFakeSequencer()
	require.NoError(t, s.Enqueue(StFull, TurnL))
	s.Disable()
	assert.Equal(t, StateTerminal, s.State())
	assert.Equal(t, 0, s.QueueLen())
	assert.Equal(t, 1, f.speed.disables)
	// no run was started.
	<-s.Done()
}

func TestPopAction(t *testing.T) {
	s, _ := newFakeSequencer()
	require.NoError(t, s.Enqueue(StFull, StFull, StFull, TurnL, StFull))
	testCases := []struct {
		action Action
		num    int
	}{
		{StFull, 3},
		{TurnL, 1},
		{StFull, 1},
	}
	for _, tc := range testCases {
		a, n, ok := s.popAction()
		require.True(t, ok)
		assert.Equal(t, tc.action, a)
		assert.Equal(t, tc.num, n)
	}
	_, _, ok := s.popAction()
	assert.False(t, ok)

	require.NoError(t, s.Enqueue(StFull, TurnL, StHalf, StHalfStop, StFull))
	assert.Equal(t, []Action{StFull, TurnL, StHalf}, s.popKnown())
	assert.Equal(t, 2, s.QueueLen())
	assert.Empty(t, s.popKnown())
}

func TestSearchStopsBeforeWall(t *testing.T) {
	testCases := []struct {
		name   string
		action Action
		dir    wall.Dir
	}{
		{name: "front", action: StFull, dir: wall.Front},
		{name: "left", action: TurnL, dir: wall.Left},
		{name: "right", action: TurnR, dir: wall.Right},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, f := newFakeSequencer()
			f.walls.walls[tc.dir] = true
			require.NoError(t, s.Enqueue(tc.action))
			require.NoError(t, s.Enable(context.Background()))
			waitDone(t, s)
			assert.ErrorIs(t, s.Err(), ErrCollisionImminent)
			assert.Equal(t, StateTerminal, s.State())
			assert.True(t, f.motor.stopped)
			assert.Contains(t, f.ind.kinds(), hw.EventCollision)
			assert.NotContains(t, f.ind.kinds(), hw.EventRunComplete)
		})
	}
}

func TestFastRunOffsets(t *testing.T) {
	testCases := []struct {
		name   string
		path   []Action
		expect ctrl.Pose
	}{
		{name: "straight", path: []Action{StFull, StFull}, expect: ctrl.Pose{X: 45, Y: 225, Th: math.Pi / 2}},
		{name: "left", path: []Action{StFull, TurnL, StFull}, expect: ctrl.Pose{X: -90, Y: 180, Th: math.Pi}},
		{name: "zigzag", path: []Action{StFull, TurnL, TurnR, StFull}, expect: ctrl.Pose{X: -45, Y: 315, Th: math.Pi / 2}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, f := newFakeSequencer()
			require.NoError(t, s.SetPath(tc.path))
			require.NoError(t, s.Enable(context.Background()))
			waitDone(t, s)
			require.NoError(t, s.Err())
			assert.Equal(t, StateTerminal, s.State())
			assert.Contains(t, f.ind.kinds(), hw.EventRunComplete)
			assert.True(t, f.motor.free)
			o := s.Offset()
			assert.InDelta(t, tc.expect.X, o.X, 0.5)
			assert.InDelta(t, tc.expect.Y, o.Y, 0.5)
			assert.InDelta(t, 0, ctrl.NormalizeAngle(tc.expect.Th-o.Th), 1e-6)
		})
	}
}

func TestFastRunRejectsBadPath(t *testing.T) {
	s, f := newFakeSequencer()
	require.NoError(t, s.SetPath([]Action{StFull, Rotate180}))
	require.NoError(t, s.Enable(context.Background()))
	waitDone(t, s)
	assert.ErrorIs(t, s.Err(), ErrInvalidPath)
	assert.Contains(t, f.ind.kinds(), hw.EventError)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "recovery", StateRecovery.String())
	assert.Equal(t, "State(9)", State(9).String())
}
