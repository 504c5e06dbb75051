package nav

import (
	"context"
	"fmt"
	"math"

	"github.com/golang/glog"

	"github.com/robotalks/mouse.go/pkg/ctrl"
	"github.com/robotalks/mouse.go/pkg/model"
	"github.com/robotalks/mouse.go/pkg/wall"
)

// startOffset is the pose of the robot with its back against the wall of
// the start cell.
func (s *Sequencer) startOffset() ctrl.Pose {
	return ctrl.Pose{
		X:  segFull / 2,
		Y:  s.Machine.TailLength + model.WallThickness/2,
		Th: math.Pi / 2,
	}
}

func (s *Sequencer) searchRun(ctx context.Context) error {
	rp := s.Config.Search
	s.deps.Speed.Enable(true)
	for {
		if s.QueueLen() == 0 {
			s.setState(StateIdle)
		}
		if err := s.queueWaitDecel(ctx); err != nil {
			return err
		}
		s.setState(StateSearch)
		if rp.Diag && s.QueueLen() >= 2 {
			if err := s.searchRunKnown(ctx, rp); err != nil {
				return err
			}
		}
		action, num, ok := s.popAction()
		if !ok {
			continue
		}
		glog.V(1).Infof("search %v x%d at %v", action, num, s.Offset())
		finished, err := s.searchAction(ctx, rp, action, num)
		if err != nil || finished {
			return err
		}
	}
}

// searchRunKnown runs the leading straights and turns of the queue as
// a fast path.
func (s *Sequencer) searchRunKnown(ctx context.Context, rp RunParameter) error {
	path := s.popKnown()
	if len(path) == 0 {
		return nil
	}
	fast, err := ConvertSearchToFast(path, true)
	if err != nil {
		return err
	}
	glog.V(1).Infof("known path %v", fast)
	var straight float64
	for _, a := range fast {
		if err := s.fastAction(ctx, a, &straight, rp); err != nil {
			return err
		}
	}
	if straight > 0.1 {
		return s.straightX(ctx, straight, rp.MaxSpeed, rp.SearchV, rp)
	}
	return nil
}

// searchAction executes one search action. It reports whether the run
// is finished.
func (s *Sequencer) searchAction(ctx context.Context, rp RunParameter, action Action, num int) (bool, error) {
	v := rp.SearchV
	switch action {
	case StartStep:
		s.deps.Speed.ResetPose(ctrl.Pose{})
		s.setOffset(s.startOffset())
		return false, s.straightX(ctx, segFull-s.Machine.TailLength-model.WallThickness/2, v, v, rp)
	case StartInit:
		return true, s.startInit(ctx)
	case StFull:
		if s.deps.Walls.IsWall(wall.Front) {
			return false, s.stop(ctx)
		}
		vMax := v
		if num > 1 {
			vMax = rp.MaxSpeed
		}
		return false, s.straightX(ctx, segFull*float64(num), vMax, v, rp)
	case StHalf:
		return false, s.straightX(ctx, segFull/2*float64(num)-s.Machine.CenterShift, v, v, rp)
	case TurnL, TurnR:
		dir := wall.Left
		if action == TurnR {
			dir = wall.Right
		}
		if s.deps.Walls.IsWall(dir) {
			return false, s.stop(ctx)
		}
		s.frontFix(v, segFull)
		tr := ctrl.NewTrajectory(Shape(ShapeS90), action == TurnR)
		if err := s.straightX(ctx, tr.Shape.StraightPrev, v, v, rp); err != nil {
			return false, err
		}
		if err := s.trace(ctx, tr, v, false); err != nil {
			return false, err
		}
		return false, s.straightX(ctx, tr.Shape.StraightPost, v, v, rp)
	case Rotate180:
		return false, s.uturn(ctx)
	case StHalfStop:
		if err := s.straightX(ctx, segFull/2+s.Machine.CenterShift, v, 0, rp); err != nil {
			return false, err
		}
		if err := s.turn(ctx, 0); err != nil {
			return false, err
		}
		return s.QueueLen() == 0, nil
	}
	return false, fmt.Errorf("%w: %v", ErrUnknownAction, action)
}

func (s *Sequencer) fastRun(ctx context.Context) error {
	rp := s.Config.Fast
	fast, err := ConvertSearchToFast(s.takePath(), rp.Diag)
	if err != nil {
		return err
	}
	glog.V(1).Infof("fast path %v", fast)
	if s.deps.IMU != nil {
		if err := s.deps.IMU.Calibrate(ctx); err != nil {
			return fmt.Errorf("imu calibration: %w", err)
		}
	}
	// back against the wall.
	s.deps.Motor.Drive(-0.2, -0.2)
	if err := s.delay(ctx, 200); err != nil {
		return err
	}
	s.deps.Motor.Free()

	s.deps.Speed.Enable(true)
	s.setOffset(s.startOffset())
	straight := segFull/2 - s.Machine.TailLength - model.WallThickness/2
	for _, a := range fast {
		if err := s.fastAction(ctx, a, &straight, rp); err != nil {
			return err
		}
	}
	if straight > 0.1 {
		if err := s.straightX(ctx, straight, rp.MaxSpeed, 0, rp); err != nil {
			return err
		}
	}
	s.deps.Speed.SetTarget(0, 0, 0, 0)
	return s.delay(ctx, 200)
}

// fastAction accumulates straights and runs slaloms.
func (s *Sequencer) fastAction(ctx context.Context, a FastAction, straight *float64, rp RunParameter) error {
	if l := a.straightLength(); l > 0 {
		*straight += l
		return nil
	}
	sl, ok := fastSlaloms[a]
	if !ok {
		return fmt.Errorf("%w: %v", ErrInvalidPath, a)
	}
	return s.slalomProcess(ctx, sl, straight, rp)
}

func (s *Sequencer) slalomProcess(ctx context.Context, sl slalom, straight *float64, rp RunParameter) error {
	sh := Shape(sl.shape)
	tr := ctrl.NewTrajectory(sh, sl.mirror)
	velocity := sh.VRef * rp.CurveGain
	prev, post := sh.StraightPrev, sh.StraightPost
	if sl.reverse {
		prev, post = post, prev
	}
	*straight += prev
	if *straight > 1 {
		if err := s.straightX(ctx, *straight, rp.MaxSpeed, velocity, rp); err != nil {
			return err
		}
		*straight = 0
	}
	if isAlong(s.Offset().Th) {
		if rp.Diag && !sl.reverse {
			s.frontFix(velocity, segFull+segFull/2-sh.StraightPrev)
		}
		if !rp.Diag {
			s.frontFix(velocity, segFull-sh.StraightPrev)
		}
	}
	if err := s.trace(ctx, tr, velocity, sl.shape == ShapeFV90); err != nil {
		return err
	}
	*straight += post
	return nil
}
