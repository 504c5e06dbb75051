package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"

	fx "github.com/robotalks/mouse.go/pkg/framework"
	"github.com/robotalks/mouse.go/pkg/hw"
	"github.com/robotalks/mouse.go/pkg/link"
	"github.com/robotalks/mouse.go/pkg/link/env"
	"github.com/robotalks/mouse.go/pkg/model"
	"github.com/robotalks/mouse.go/pkg/nav"
	"github.com/robotalks/mouse.go/pkg/sim"
	"github.com/robotalks/mouse.go/pkg/sim/see"
	"github.com/robotalks/mouse.go/pkg/speed"
	"github.com/robotalks/mouse.go/pkg/wall"
)

var (
	mazeFile  = flag.String("maze", "", "maze text file, empty for an open field")
	seeOutput = flag.Bool("see", false, "write visualization objects to stdout")
	simWalls  = flag.Bool("sim-baseline", true, "use the simulated wall baseline when the calibration record is missing")
)

func init() {
	model.SetupFlags()
	wall.SetupFlags()
	nav.SetupFlags()
	link.SetupReporterFlags()
	env.SetupFlags()
	see.SetupFlags()
}

func loadMaze() (*sim.Maze, error) {
	if *mazeFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(*mazeFile)
	if err != nil {
		return nil, err
	}
	return sim.ParseMaze(string(data))
}

// newDetector loads the calibration record. A missing record fails
// unless fallback allows the simulated baseline.
func newDetector(conf *wall.Config, world *sim.World, fallback bool) (*wall.Detector, error) {
	d, err := conf.NewDetector(world, world)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, wall.ErrCalibrationMissing) || !fallback {
		return nil, fmt.Errorf("wall detector: %w", err)
	}
	glog.Errorf("wall detector: %v, using simulated baseline", err)
	return wall.NewDetector(*conf, world.Baseline(), world, world), nil
}

func main() {
	flag.Parse()

	m, err := model.NewConfig().Machine()
	if err != nil {
		glog.Exit(err)
	}
	maze, err := loadMaze()
	if err != nil {
		glog.Exitf("maze: %v", err)
	}
	world := sim.NewWorld(sim.DefaultConfig(), m, maze, sim.StartPose(m))
	if err := hw.Bringup(context.Background(), world.Devices()...); err != nil {
		glog.Exit(err)
	}

	sc := speed.New(m, world, world)
	walls, err := newDetector(wall.NewConfig(), world, *simWalls)
	if err != nil {
		glog.Exit(err)
	}
	bridge := link.NewBridge(nil, walls, sc)
	seq := nav.NewConfig().NewSequencer(m, nav.Deps{
		Speed:     sc,
		Walls:     walls,
		Range:     world,
		Motor:     world,
		IMU:       world,
		Sync:      sc,
		Indicator: bridge,
	})
	bridge.Nav = seq

	loop := fx.NewLoop()
	loop.Trigger = world.Ready()
	loop.Clock = world.Now
	loop.Budget = m.ControlPeriod
	loop.OnOverrun = speed.OverrunAlarm(bridge)
	loop.Add(sc, walls, bridge, link.NewReporterConfig().NewReporter(seq, sc, bridge))
	if *seeOutput {
		loop.Add(see.NewAdapter(see.NewConfig(), world, os.Stdout))
	}

	err = fx.NewRunner().HandleSignals().
		Go(world, loop, env.NewConfig().NewServer(bridge.Serve)).
		Wait()
	seq.Disable()
	if err != nil {
		glog.Exit(err)
	}
}
