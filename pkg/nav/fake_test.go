package nav

import (
	"context"
	"sync"

	"github.com/robotalks/mouse.go/pkg/ctrl"
	"github.com/robotalks/mouse.go/pkg/hw"
	"github.com/robotalks/mouse.go/pkg/model"
	"github.com/robotalks/mouse.go/pkg/wall"
)

type fakeSpeed struct {
	lock     sync.Mutex
	enabled  bool
	disables int
	pose     ctrl.Pose
	estV     ctrl.Polar
	refV     ctrl.Polar
	fixes    []ctrl.Pose
}

func (f *fakeSpeed) Enable(resetPose bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.enabled = true
	if resetPose {
		f.pose = ctrl.Pose{}
	}
}

func (f *fakeSpeed) Disable() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.enabled = false
	f.disables++
}

func (f *fakeSpeed) SetTarget(vTra, vRot, aTra, aRot float64) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.refV = ctrl.Polar{Tra: vTra, Rot: vRot}
}

func (f *fakeSpeed) Pose() ctrl.Pose {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.pose
}

func (f *fakeSpeed) EstVelocity() ctrl.Polar {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.estV
}

func (f *fakeSpeed) EstAccel() ctrl.Polar { return ctrl.Polar{} }

func (f *fakeSpeed) RefVelocity() ctrl.Polar {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.refV
}

func (f *fakeSpeed) FixPose(delta ctrl.Pose) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.fixes = append(f.fixes, delta)
}

func (f *fakeSpeed) ResetPose(p ctrl.Pose) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.pose = p
}

func (f *fakeSpeed) Rebase(origin ctrl.Pose) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.pose = f.pose.Relative(origin)
}

type fakeWalls struct {
	walls [3]bool
	dist  wall.Value
	diff  wall.Value
}

func (f *fakeWalls) IsWall(d wall.Dir) bool { return f.walls[d] }
func (f *fakeWalls) Distance() wall.Value   { return f.dist }
func (f *fakeWalls) Diff() wall.Value       { return f.diff }

type fakeRange struct {
	dist  float64
	age   int
	valid bool
}

func (f *fakeRange) Distance() float64 { return f.dist }
func (f *fakeRange) MsSinceValid() int { return f.age }
func (f *fakeRange) IsValid() bool     { return f.valid }

type fakeMotor struct {
	lock    sync.Mutex
	stopped bool
	free    bool
}

func (f *fakeMotor) Drive(left, right float64) {}

func (f *fakeMotor) Free() {
	f.lock.Lock()
	f.free = true
	f.lock.Unlock()
}

func (f *fakeMotor) EmergencyStop() {
	f.lock.Lock()
	f.stopped = true
	f.lock.Unlock()
}

type fakeSyncer struct{}

func (fakeSyncer) Sync(ctx context.Context) error { return ctx.Err() }

type recorder struct {
	lock   sync.Mutex
	events []hw.Event
}

func (r *recorder) Notify(e hw.Event) {
	r.lock.Lock()
	r.events = append(r.events, e)
	r.lock.Unlock()
}

func (r *recorder) kinds() []hw.EventKind {
	r.lock.Lock()
	defer r.lock.Unlock()
	var kinds []hw.EventKind
	for _, e := range r.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

type fakes struct {
	speed *fakeSpeed
	walls *fakeWalls
	rng   *fakeRange
	motor *fakeMotor
	ind   *recorder
}

func newFakeSequencer() (*Sequencer, *fakes) {
	f := &fakes{
		speed: &fakeSpeed{},
		walls: &fakeWalls{},
		rng:   &fakeRange{},
		motor: &fakeMotor{},
		ind:   &recorder{},
	}
	s := NewSequencer(DefaultConfig(), model.Default(), Deps{
		Speed:     f.speed,
		Walls:     f.walls,
		Range:     f.rng,
		Motor:     f.motor,
		Sync:      fakeSyncer{},
		Indicator: f.ind,
	})
	return s, f
}
