// Package see is the adapter to visualize the simulated maze in
// github.com/robotalks/see.
package see

import (
	"encoding/json"
	"fmt"
	"io"

	fx "github.com/robotalks/mouse.go/pkg/framework"
	"github.com/robotalks/mouse.go/pkg/sim"
)

const mouseID = "mouse"

// Adapter reports the maze once and then the mouse as JSON lines.
type Adapter struct {
	Config *Config
	World  *sim.World
	Out    io.Writer

	initial bool
	trail   []Pos
}

// NewAdapter creates the adapter.
func NewAdapter(config *Config, w *sim.World, out io.Writer) *Adapter {
	return &Adapter{
		Config:  config,
		World:   w,
		Out:     out,
		initial: true,
	}
}

// AddToLoop implements LoopAdder.
func (a *Adapter) AddToLoop(l *fx.Loop) {
	l.AddController(fx.PrLvPostProc, fx.ControlFunc(a.ReportChanges))
}

// ReportChanges is a controller to report changes.
func (a *Adapter) ReportChanges(cc fx.ControlContext) error {
	var msgs []Message
	if a.initial {
		msgs = append(msgs, Message{Action: ActionReset})
		for i, w := range a.World.Maze.Walls {
			msgs = append(msgs, Message{Action: ActionObject, Object: WallObject(fmt.Sprintf("wall-%d", i), w)})
		}
		a.initial = false
	}
	every := uint64(max(a.Config.Every, 1))
	if len(msgs) > 0 || cc.Tick()%every == 0 {
		pose := a.World.Pose()
		obj := MouseObject(mouseID, pose, a.World.Machine.TailLength)
		if a.Config.Trail > 0 {
			a.trail = append(a.trail, Pos{X: pose.X, Y: pose.Y})
			if n := len(a.trail) - a.Config.Trail; n > 0 {
				a.trail = a.trail[n:]
			}
			obj.With(PropPoints, a.trail)
		}
		msgs = append(msgs, Message{Action: ActionObject, Object: obj})
	}
	if len(msgs) == 0 {
		return nil
	}
	encoded, err := json.Marshal(msgs)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.Out, string(encoded))
	return err
}
