package link

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/mouse.go/pkg/ctrl"
	fx "github.com/robotalks/mouse.go/pkg/framework"
	"github.com/robotalks/mouse.go/pkg/hw"
	"github.com/robotalks/mouse.go/pkg/nav"
)

// Navigator is the sequencer as driven over the link.
type Navigator interface {
	Enqueue(actions ...nav.Action) error
	SetPath(path []nav.Action) error
	Enable(ctx context.Context) error
	Disable()
	Reset() error
	Running() bool
	State() nav.State
	Offset() ctrl.Pose
}

// Calibrator is the wall detector calibration.
type Calibrator interface {
	CalibrateSide(context.Context, fx.TickSyncer) error
	CalibrateFront(context.Context, fx.TickSyncer) error
	Backup() error
}

// DefaultOutboxSize is the number of outgoing messages buffered before
// telemetry is dropped.
const DefaultOutboxSize = 64

// Bridge serves the link on the robot: it executes received commands
// one at a time and broadcasts telemetry and events to every connected
// peer.
type Bridge struct {
	Nav Navigator
	// Walls and Sync are needed by the calibration commands.
	Walls Calibrator
	Sync  fx.TickSyncer

	cmdCh  chan *command
	outbox chan Message

	lock    sync.Mutex
	pipes   map[*Pipe]struct{}
	dropped uint64
}

type command struct {
	seq  uint32
	msg  Message
	pipe *Pipe
}

// NewBridge creates a Bridge.
func NewBridge(n Navigator, walls Calibrator, syncer fx.TickSyncer) *Bridge {
	return &Bridge{
		Nav:    n,
		Walls:  walls,
		Sync:   syncer,
		cmdCh:  make(chan *command, 16),
		outbox: make(chan Message, DefaultOutboxSize),
		pipes:  make(map[*Pipe]struct{}),
	}
}

// AddToLoop implements LoopAdder.
func (b *Bridge) AddToLoop(l *fx.Loop) {
	l.AddRunnable(b)
}

// Serve runs a peer connection until it fails or ctx is done.
func (b *Bridge) Serve(ctx context.Context, rw PacketReadWriter) error {
	p := NewPipe(rw, nil)
	p.Handler = HandleMessageFunc(func(ctx context.Context, msg Message, env *Envelope) error {
		if !env.IsCommand() || env.IsReply() {
			return nil
		}
		select {
		case b.cmdCh <- &command{seq: env.Seq, msg: msg, pipe: p}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	b.lock.Lock()
	b.pipes[p] = struct{}{}
	b.lock.Unlock()
	glog.Info("link: peer connected")
	defer func() {
		b.lock.Lock()
		delete(b.pipes, p)
		b.lock.Unlock()
		glog.Info("link: peer disconnected")
	}()
	return p.Run(ctx)
}

// Run implements Runnable: it executes commands and sends the outbox.
func (b *Bridge) Run(ctx context.Context) error {
	go b.sendLoop(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-b.cmdCh:
			err := b.execute(ctx, cmd.msg)
			if err != nil {
				glog.Warningf("link: %s failed: %v", opOf(cmd.msg), err)
			}
			if err = cmd.pipe.Send(NewCommandResult(opOf(cmd.msg), err), cmd.seq); err != nil {
				glog.Errorf("link: reply failed: %v", err)
			}
		}
	}
}

func (b *Bridge) sendLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.outbox:
			b.lock.Lock()
			pipes := make([]*Pipe, 0, len(b.pipes))
			for p := range b.pipes {
				pipes = append(pipes, p)
			}
			b.lock.Unlock()
			for _, p := range pipes {
				if err := p.Send(msg, 0); err != nil {
					glog.Errorf("link: send failed: %v", err)
				}
			}
		}
	}
}

// Publish queues a message for all peers. It never blocks: messages are
// dropped while the outbox is full.
func (b *Bridge) Publish(msg Message) {
	select {
	case b.outbox <- msg:
	default:
		b.lock.Lock()
		b.dropped++
		b.lock.Unlock()
		glog.V(2).Infof("link: outbox full, %T dropped", msg)
	}
}

// Dropped returns the number of messages dropped by Publish.
func (b *Bridge) Dropped() uint64 {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.dropped
}

// Notify implements Indicator by forwarding events to the peers.
func (b *Bridge) Notify(e hw.Event) {
	b.Publish(&Event{Kind: e.Kind.String(), Message: e.Message})
}

func (b *Bridge) execute(ctx context.Context, msg Message) error {
	switch m := msg.(type) {
	case *ActionBatch:
		actions, err := nav.ParseActions(m.Actions)
		if err != nil {
			return err
		}
		return b.Nav.Enqueue(actions...)
	case *FastPath:
		path, err := nav.ParseActions(m.Actions)
		if err != nil {
			return err
		}
		return b.Nav.SetPath(path)
	case *Command:
		return b.command(ctx, m.Op)
	}
	return fmt.Errorf("%w: %T", ErrUnsupportedCommand, msg)
}

func (b *Bridge) command(ctx context.Context, op string) error {
	switch op {
	case OpEnable:
		return b.Nav.Enable(ctx)
	case OpDisable:
		b.Nav.Disable()
		return nil
	case OpReset:
		return b.Nav.Reset()
	case OpCalibrateSide, OpCalibrateFront, OpBackup:
		if b.Walls == nil {
			break
		}
		if b.Nav.Running() {
			return fmt.Errorf("%s: %w", op, nav.ErrBusy)
		}
		var err error
		switch op {
		case OpCalibrateSide:
			err = b.Walls.CalibrateSide(ctx, b.Sync)
		case OpCalibrateFront:
			err = b.Walls.CalibrateFront(ctx, b.Sync)
		default:
			err = b.Walls.Backup()
		}
		if err == nil {
			b.Notify(hw.Event{Kind: hw.EventCalibrated, Message: op})
		}
		return err
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedCommand, op)
}

func opOf(msg Message) string {
	switch m := msg.(type) {
	case *ActionBatch:
		return "actions"
	case *FastPath:
		return "path"
	case *Command:
		return m.Op
	}
	return fmt.Sprintf("%T", msg)
}
