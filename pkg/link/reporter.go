package link

import (
	"flag"

	fx "github.com/robotalks/mouse.go/pkg/framework"
	"github.com/robotalks/mouse.go/pkg/speed"
)

// Publisher queues messages for the peers.
type Publisher interface {
	Publish(Message)
}

// SnapshotSource provides the velocity controller state.
type SnapshotSource interface {
	Snapshot() speed.Snapshot
}

// ReporterConfig configures the telemetry rate.
type ReporterConfig struct {
	// Every is the number of ticks between reports.
	Every uint64
}

var defaultReporterConfig = ReporterConfig{Every: 50}

// SetupReporterFlags registers the telemetry flags.
func SetupReporterFlags() {
	flag.Uint64Var(&defaultReporterConfig.Every, "telemetry-every", defaultReporterConfig.Every, "ticks between telemetry reports")
}

// NewReporterConfig returns a copy of the flag-populated config.
func NewReporterConfig() *ReporterConfig {
	c := defaultReporterConfig
	return &c
}

// NewReporter creates a Reporter.
func (c *ReporterConfig) NewReporter(n Navigator, src SnapshotSource, out Publisher) *Reporter {
	return &Reporter{ReporterConfig: *c, Nav: n, Source: src, Out: out}
}

// Reporter publishes telemetry from the control loop.
type Reporter struct {
	ReporterConfig
	Nav    Navigator
	Source SnapshotSource
	Out    Publisher
}

// AddToLoop implements LoopAdder.
func (r *Reporter) AddToLoop(l *fx.Loop) {
	l.AddController(fx.PrLvPostProc, r)
}

// Control implements Controller.
func (r *Reporter) Control(cc fx.ControlContext) error {
	if every := max(r.Every, 1); cc.Tick()%every == 0 {
		r.Out.Publish(r.Telemetry(cc.Tick()))
	}
	return nil
}

// Telemetry builds the report of tick.
func (r *Reporter) Telemetry(tick uint64) *Telemetry {
	s := r.Source.Snapshot()
	offset := r.Nav.Offset()
	return &Telemetry{
		State:    r.Nav.State().String(),
		Tick:     tick,
		X:        s.Pose.X,
		Y:        s.Pose.Y,
		Th:       s.Pose.Th,
		OffsetX:  offset.X,
		OffsetY:  offset.Y,
		OffsetTh: offset.Th,
		V:        s.EstV.Tra,
		W:        s.EstV.Rot,
	}
}
