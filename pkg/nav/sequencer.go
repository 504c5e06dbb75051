// Package nav sequences maneuvers: it consumes the actions queued by the
// planner and turns each of them into straight, turn and slalom motions
// tracked through the velocity controller, correcting the pose estimate
// from the wall sensors on the way.
package nav

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/mouse.go/pkg/ctrl"
	fx "github.com/robotalks/mouse.go/pkg/framework"
	"github.com/robotalks/mouse.go/pkg/hw"
	"github.com/robotalks/mouse.go/pkg/model"
	"github.com/robotalks/mouse.go/pkg/wall"
)

// Errors of the sequencer.
var (
	ErrTerminal          = errors.New("sequencer is terminal, reset required")
	ErrBusy              = errors.New("sequencer is running")
	ErrCollisionImminent = errors.New("collision imminent")
)

// State is the state of the sequencer.
type State int

// States.
const (
	StateIdle State = iota
	StateSearch
	StateFast
	StateRecovery
	StateTerminal
)

var stateNames = [...]string{
	StateIdle:     "idle",
	StateSearch:   "search",
	StateFast:     "fast",
	StateRecovery: "recovery",
	StateTerminal: "terminal",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// SpeedController is the velocity control loop as seen by the sequencer.
type SpeedController interface {
	Enable(resetPose bool)
	Disable()
	SetTarget(vTra, vRot, aTra, aRot float64)
	Pose() ctrl.Pose
	EstVelocity() ctrl.Polar
	EstAccel() ctrl.Polar
	RefVelocity() ctrl.Polar
	FixPose(delta ctrl.Pose)
	ResetPose(p ctrl.Pose)
	Rebase(origin ctrl.Pose)
}

// WallSensor is the wall detector as seen by the sequencer.
type WallSensor interface {
	IsWall(wall.Dir) bool
	Distance() wall.Value
	Diff() wall.Value
}

// Deps are the collaborators of a Sequencer. IMU and Indicator are
// optional.
type Deps struct {
	Speed     SpeedController
	Walls     WallSensor
	Range     hw.RangeSensor
	Motor     hw.MotorDriver
	IMU       hw.IMU
	Sync      fx.TickSyncer
	Indicator hw.Indicator
}

// Stats counts the pose correction decisions of a run.
type Stats struct {
	Accepted int
	Rejected int
}

// Sequencer executes queued actions. Exactly one goroutine, started by
// Enable, commands the speed controller at a time.
type Sequencer struct {
	Config  Config
	Machine model.Machine

	deps Deps

	lock    sync.Mutex
	state   State
	queue   []Action
	path    []Action
	offset  ctrl.Pose
	stats   Stats
	err     error
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	// owned by the run goroutine.
	prevWall [2]bool
}

var closedCh = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// NewSequencer creates a Sequencer.
func NewSequencer(c Config, m model.Machine, deps Deps) *Sequencer {
	return &Sequencer{Config: c, Machine: m, deps: deps}
}

// Enqueue appends search actions. A sequencer waiting for actions picks
// them up immediately.
func (s *Sequencer) Enqueue(actions ...Action) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.state == StateTerminal {
		return ErrTerminal
	}
	s.queue = append(s.queue, actions...)
	return nil
}

// SetPath sets the search path executed as a fast run by the next Enable
// when no actions are queued.
func (s *Sequencer) SetPath(path []Action) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	switch {
	case s.state == StateTerminal:
		return ErrTerminal
	case s.running:
		return ErrBusy
	}
	s.path = append([]Action(nil), path...)
	return nil
}

// Enable starts consuming actions. With an empty queue and a path set,
// it starts a fast run, otherwise a search run which waits for actions.
func (s *Sequencer) Enable(ctx context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	switch {
	case s.state == StateTerminal:
		return ErrTerminal
	case s.running:
		return ErrBusy
	}
	mode := StateSearch
	if len(s.queue) == 0 && len(s.path) > 0 {
		mode = StateFast
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.state, s.offset, s.stats, s.err = mode, ctrl.Pose{}, Stats{}, nil
	s.prevWall = [2]bool{}
	s.running, s.cancel, s.done = true, cancel, make(chan struct{})
	glog.Infof("sequencer enabled, %v run", mode)
	go s.run(runCtx, mode, s.done)
	return nil
}

// Disable aborts the current run, if any, and neutralizes the motors.
// The sequencer turns terminal.
func (s *Sequencer) Disable() {
	s.lock.Lock()
	running, cancel, done := s.running, s.cancel, s.done
	s.lock.Unlock()
	if running {
		cancel()
		<-done
	} else {
		s.deps.Speed.Disable()
	}
	s.lock.Lock()
	s.queue, s.path = nil, nil
	s.state = StateTerminal
	s.lock.Unlock()
	glog.Info("sequencer disabled")
}

// Reset leaves the terminal state.
func (s *Sequencer) Reset() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.running {
		return ErrBusy
	}
	s.state, s.err = StateIdle, nil
	s.queue, s.path = nil, nil
	return nil
}

// Done is closed when the current run ends.
func (s *Sequencer) Done() <-chan struct{} {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.done == nil {
		return closedCh
	}
	return s.done
}

// State returns the current state.
func (s *Sequencer) State() State {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

// Running reports whether a run is in progress.
func (s *Sequencer) Running() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.running
}

// Err returns the error which ended the last run.
func (s *Sequencer) Err() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.err
}

// Offset returns the pose, in the maze frame, of the frame the current
// maneuver started in.
func (s *Sequencer) Offset() ctrl.Pose {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.offset
}

// QueueLen returns the number of queued actions.
func (s *Sequencer) QueueLen() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.queue)
}

// Stats returns the correction statistics of the current run.
func (s *Sequencer) Stats() Stats {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.stats
}

func (s *Sequencer) run(ctx context.Context, mode State, done chan struct{}) {
	defer func() {
		s.lock.Lock()
		s.cancel()
		s.running = false
		s.lock.Unlock()
		close(done)
	}()

	var err error
	if mode == StateFast {
		err = s.fastRun(ctx)
	} else {
		err = s.searchRun(ctx)
	}
	switch {
	case err == nil:
		s.deps.Speed.Disable()
		hw.Notifyf(s.deps.Indicator, hw.EventRunComplete, "run complete at %v", s.Offset())
		glog.Infof("run complete at %v", s.Offset())
	case errors.Is(err, ErrCollisionImminent):
		// stop has already released the motors.
	case ctx.Err() != nil:
		s.deps.Speed.Disable()
		err = nil
	default:
		s.deps.Speed.Disable()
		hw.Notifyf(s.deps.Indicator, hw.EventError, "run aborted: %v", err)
		glog.Errorf("run aborted: %v", err)
	}
	s.lock.Lock()
	s.state, s.err = StateTerminal, err
	s.lock.Unlock()
}

func (s *Sequencer) setState(state State) {
	s.lock.Lock()
	s.state = state
	s.lock.Unlock()
}

func (s *Sequencer) setOffset(p ctrl.Pose) {
	s.lock.Lock()
	s.offset = p
	s.lock.Unlock()
}

// advance moves the offset by a completed local motion.
func (s *Sequencer) advance(local ctrl.Pose) {
	s.lock.Lock()
	s.offset = local.Compose(s.offset)
	s.offset.Th = ctrl.NormalizeAngle(s.offset.Th)
	s.lock.Unlock()
}

// popAction takes the next action, merging consecutive full straights.
func (s *Sequencer) popAction() (Action, int, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if len(s.queue) == 0 {
		return 0, 0, false
	}
	action, num := s.queue[0], 1
	s.queue = s.queue[1:]
	for action == StFull && len(s.queue) > 0 && s.queue[0] == StFull {
		s.queue = s.queue[1:]
		num++
	}
	return action, num, true
}

// popKnown takes the leading actions which can run as a fast path.
func (s *Sequencer) popKnown() []Action {
	s.lock.Lock()
	defer s.lock.Unlock()
	var path []Action
	for len(s.queue) > 0 {
		switch a := s.queue[0]; a {
		case StHalf, StFull, TurnL, TurnR:
			path = append(path, a)
			s.queue = s.queue[1:]
			continue
		}
		break
	}
	return path
}

func (s *Sequencer) takePath() []Action {
	s.lock.Lock()
	defer s.lock.Unlock()
	path := s.path
	s.path = nil
	return path
}

func (s *Sequencer) sync(ctx context.Context) error {
	return s.deps.Sync.Sync(ctx)
}

func (s *Sequencer) delay(ctx context.Context, ticks int) error {
	for i := 0; i < ticks; i++ {
		if err := s.sync(ctx); err != nil {
			return err
		}
	}
	return nil
}

// isAlong reports whether th is a multiple of 90 degrees.
func isAlong(th float64) bool {
	return int(math.Abs(ctrl.Degrees(th))+1)%90 < 2
}

// isDiag reports whether th is an odd multiple of 45 degrees.
func isDiag(th float64) bool {
	return int(math.Abs(ctrl.Degrees(th))+45+1)%90 < 2
}
