package nav

import (
	"math"

	"github.com/golang/glog"

	"github.com/robotalks/mouse.go/pkg/ctrl"
	"github.com/robotalks/mouse.go/pkg/hw"
	"github.com/robotalks/mouse.go/pkg/wall"
)

const (
	avoidMinV      = 100.0
	avoidMaxTh     = 0.2 * math.Pi
	avoidGain      = 0.01
	avoidDiffLimit = 100.0
	avoidDiagShift = 0.04
	avoidDiagFront = -50.0

	cutMinV   = 120.0
	cutMaxTh  = 0.1 * math.Pi
	cutOffset = -15.0
)

func (s *Sequencer) accept(kind string, value float64) {
	s.lock.Lock()
	s.stats.Accepted++
	s.lock.Unlock()
	glog.V(2).Infof("%s accepted: %.2f", kind, value)
	hw.Notifyf(s.deps.Indicator, hw.EventCorrection, "%s %.1f", kind, value)
}

func (s *Sequencer) reject(kind string, value float64) {
	s.lock.Lock()
	s.stats.Rejected++
	s.lock.Unlock()
	glog.V(2).Infof("%s rejected: %.2f", kind, value)
}

// frontPosition derives the along track position from the range sensor,
// given the expected reading distToWall at position 0. The reading is
// projected forward by its age plus latencyMs at velocity. Readings
// implying a jump of FrontFixBound or more are rejected.
func (s *Sequencer) frontPosition(velocity, distToWall, latencyMs float64) (float64, bool) {
	cor := &s.Config.Corrections
	rng := s.deps.Range
	if rng == nil || !rng.IsValid() {
		return 0, false
	}
	value := rng.Distance() - (latencyMs+float64(rng.MsSinceValid()))/1000*velocity
	x := distToWall - value + cor.FrontFixBias
	if math.Abs(x) >= cor.FrontFixBound {
		s.reject("front fix", x)
		return 0, false
	}
	x = math.Min(x, cor.FrontFixClamp)
	s.accept("front fix", x)
	return x, true
}

// frontFix corrects the along track position from the front wall.
func (s *Sequencer) frontFix(velocity, distToWall float64) {
	if !s.Config.Corrections.FrontFix {
		return
	}
	if x, ok := s.frontPosition(velocity, distToWall, 0); ok {
		s.deps.Speed.FixPose(ctrl.Pose{X: x - s.deps.Speed.Pose().X})
	}
}

// wallAvoid pulls the lateral position toward the side walls while
// running along the grid, and away from the posts while running
// diagonally with remain still ahead.
func (s *Sequencer) wallAvoid(remain float64) {
	if !s.Config.Corrections.WallAvoid {
		return
	}
	sc := s.deps.Speed
	if sc.EstVelocity().Tra < avoidMinV {
		return
	}
	if math.Abs(sc.Pose().Th) > avoidMaxTh {
		return
	}
	walls := s.deps.Walls
	th := s.Offset().Th
	var fix ctrl.Pose
	if isAlong(th) {
		d, diff := walls.Distance(), walls.Diff()
		if walls.IsWall(wall.Left) && math.Abs(diff.Side(0)) < avoidDiffLimit {
			fix.Y += d.Side(0) * avoidGain
		}
		if walls.IsWall(wall.Right) && math.Abs(diff.Side(1)) < avoidDiffLimit {
			fix.Y -= d.Side(1) * avoidGain
		}
	}
	if isDiag(th) && remain > segFull/3 {
		d := walls.Distance()
		if d.Front(0) > avoidDiagFront {
			fix.Y += avoidDiagShift
		}
		if d.Front(1) > avoidDiagFront {
			fix.Y -= avoidDiagShift
		}
	}
	if fix.Y != 0 {
		sc.FixPose(fix)
	}
}

// wallCut snaps the along track position to the grid when a side wall
// ends. The jump must lie within (WallCutMin, WallCutMax).
func (s *Sequencer) wallCut(velocity float64) {
	// edges are tracked every tick, so one seen while gated is consumed.
	var edge [2]bool
	for i, dir := range []wall.Dir{wall.Left, wall.Right} {
		present := s.deps.Walls.IsWall(dir)
		edge[i] = s.prevWall[i] && !present
		s.prevWall[i] = present
	}
	cor := &s.Config.Corrections
	if !cor.WallCut || velocity < cutMinV {
		return
	}
	sc := s.deps.Speed
	p := sc.Pose()
	if math.Abs(p.Th) > cutMaxTh || !isAlong(s.Offset().Th) {
		return
	}
	for _, e := range edge {
		if !e {
			continue
		}
		diff := roundTo(p.X, segFull) + cutOffset - p.X
		if cor.WallCutMin < diff && diff < cor.WallCutMax {
			sc.FixPose(ctrl.Pose{X: diff})
			s.accept("wall cut", diff)
		} else {
			s.reject("wall cut", diff)
		}
	}
}

func roundTo(v, div float64) float64 {
	return math.Floor((v+div/2)/div) * div
}
