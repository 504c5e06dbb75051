package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testMsg struct {
	n int
}

func (m *testMsg) NewMessage() Message { return &testMsg{} }

func TestLoopPriorityOrder(t *testing.T) {
	var order []int
	l := NewLoop()
	for _, lv := range []int{PrLvPostProc, PrLvSense, PrLvControl} {
		lv := lv
		l.AddController(lv, ControlFunc(func(cc ControlContext) error {
			require.Equal(t, lv, cc.PriorityLevel())
			order = append(order, lv)
			return nil
		}))
	}
	l.RunOnce(context.Background())
	require.Equal(t, []int{PrLvSense, PrLvControl, PrLvPostProc}, order)
	require.EqualValues(t, 1, l.Ticks())
}

func TestLoopOverrunDoesNotHalt(t *testing.T) {
	var reports []Overrun
	l := &Loop{
		Interval:  time.Millisecond,
		OnOverrun: OverrunFunc(func(o Overrun) { reports = append(reports, o) }),
	}
	slow := true
	var runs int
	l.AddController(PrLvControl, ControlFunc(func(cc ControlContext) error {
		runs++
		if slow {
			time.Sleep(3 * time.Millisecond)
		}
		return errors.New("ignored")
	}))
	l.RunOnce(context.Background())
	slow = false
	l.RunOnce(context.Background())

	require.Equal(t, 2, runs)
	require.Len(t, reports, 1)
	assert.EqualValues(t, 1, reports[0].Tick)
	assert.Equal(t, time.Millisecond, reports[0].Budget)
	assert.True(t, reports[0].Elapsed > reports[0].Budget)
	assert.EqualValues(t, 1, l.Overruns())
}

func TestLoopMessages(t *testing.T) {
	l := NewLoop()
	var got []int
	l.AddController(PrLvIdle, ControlFunc(func(cc ControlContext) error {
		cc.Messages().ProcessMessages(ProcessMessageFunc(func(mc MessageProcessingContext) {
			m := mc.CurrentMessage().(*testMsg)
			if m.n%2 == 0 {
				got = append(got, m.n)
				mc.MessageTaken()
			}
		}))
		return nil
	}))
	l.PostMessage(&testMsg{n: 1})
	l.PostMessage(&testMsg{n: 2})
	l.RunOnce(context.Background())
	require.Equal(t, []int{2}, got)

	// the odd message survives to the next iteration.
	var left []int
	l.AddController(PrLvIdle, ControlFunc(func(cc ControlContext) error {
		cc.Messages().ProcessMessages(ProcessMessageFunc(func(mc MessageProcessingContext) {
			left = append(left, mc.CurrentMessage().(*testMsg).n)
			mc.MessageTaken()
		}))
		return nil
	}))
	l.PostMessage(&testMsg{n: 3})
	l.RunOnce(context.Background())
	require.Equal(t, []int{1, 3}, left)
}

func TestLoopRunWithTrigger(t *testing.T) {
	trigger := make(chan struct{})
	ticks := make(chan uint64, 3)
	l := &Loop{Trigger: trigger, Budget: time.Second}
	l.AddController(PrLvControl, ControlFunc(func(cc ControlContext) error {
		ticks <- cc.Tick()
		return nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	for i := 0; i < 3; i++ {
		trigger <- struct{}{}
	}
	for i := uint64(1); i <= 3; i++ {
		require.Equal(t, i, <-ticks)
	}
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
