package link

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/mouse.go/pkg/ctrl"
	fx "github.com/robotalks/mouse.go/pkg/framework"
	"github.com/robotalks/mouse.go/pkg/hw"
	"github.com/robotalks/mouse.go/pkg/nav"
	"github.com/robotalks/mouse.go/pkg/speed"
)

type memEnd struct {
	in     <-chan []byte
	out    chan<- []byte
	closed chan struct{}
	once   *sync.Once
}

func newMemPipe() (*memEnd, *memEnd) {
	a, b := make(chan []byte, 64), make(chan []byte, 64)
	closed, once := make(chan struct{}), &sync.Once{}
	return &memEnd{in: a, out: b, closed: closed, once: once},
		&memEnd{in: b, out: a, closed: closed, once: once}
}

func (e *memEnd) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-e.in:
		return pkt, nil
	case <-e.closed:
		return nil, io.EOF
	}
}

func (e *memEnd) WritePacket(pkt []byte) error {
	select {
	case <-e.closed:
		return io.ErrClosedPipe
	default:
	}
	e.out <- append([]byte(nil), pkt...)
	return nil
}

func (e *memEnd) Close() error {
	e.once.Do(func() { close(e.closed) })
	return nil
}

type fakeNav struct {
	lock     sync.Mutex
	queue    []nav.Action
	path     []nav.Action
	enabled  int
	disabled int
	resets   int
	running  bool
	state    nav.State
	offset   ctrl.Pose
}

func (n *fakeNav) Enqueue(actions ...nav.Action) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.queue = append(n.queue, actions...)
	return nil
}

func (n *fakeNav) SetPath(path []nav.Action) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.path = path
	return nil
}

func (n *fakeNav) Enable(ctx context.Context) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.enabled++
	return nil
}

func (n *fakeNav) Disable() {
	n.lock.Lock()
	n.disabled++
	n.lock.Unlock()
}

func (n *fakeNav) Reset() error {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.resets++
	return nil
}

func (n *fakeNav) Running() bool {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.running
}

func (n *fakeNav) State() nav.State {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.state
}

func (n *fakeNav) Offset() ctrl.Pose {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.offset
}

type fakeWalls struct {
	lock  sync.Mutex
	calls []string
}

func (w *fakeWalls) record(op string) {
	w.lock.Lock()
	w.calls = append(w.calls, op)
	w.lock.Unlock()
}

func (w *fakeWalls) CalibrateSide(ctx context.Context, s fx.TickSyncer) error {
	w.record(OpCalibrateSide)
	return s.Sync(ctx)
}

func (w *fakeWalls) CalibrateFront(ctx context.Context, s fx.TickSyncer) error {
	w.record(OpCalibrateFront)
	return s.Sync(ctx)
}

func (w *fakeWalls) Backup() error {
	w.record(OpBackup)
	return nil
}

type nopSyncer struct{}

func (nopSyncer) Sync(ctx context.Context) error { return ctx.Err() }

type recorder struct {
	lock sync.Mutex
	msgs []Message
}

func (r *recorder) Publish(msg Message) {
	r.lock.Lock()
	r.msgs = append(r.msgs, msg)
	r.lock.Unlock()
}

func (r *recorder) messages() []Message {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]Message(nil), r.msgs...)
}

func TestEnvelope(t *testing.T) {
	tm := &Telemetry{State: "search", Tick: 42, X: 1.5, Y: -2, Th: 0.25, OffsetX: 45, OffsetY: 90, OffsetTh: 3.14, V: 300, W: -1}
	env, err := Wrap(tm, 0)
	require.NoError(t, err)
	pkt, err := env.Encode()
	require.NoError(t, err)
	decoded, err := DecodeEnvelope(pkt)
	require.NoError(t, err)
	assert.True(t, decoded.IsEvent())
	assert.False(t, decoded.IsCommand())
	msg, err := decoded.Open()
	require.NoError(t, err)
	require.Equal(t, tm, msg)

	kinds := []struct {
		msg              Message
		command, replied bool
	}{
		{&Command{Op: OpEnable}, true, false},
		{&ActionBatch{Actions: []string{"ST_FULL"}}, true, false},
		{&FastPath{}, true, false},
		{&CommandResult{Op: OpEnable}, true, true},
		{&Event{Kind: "collision"}, false, false},
	}
	for _, k := range kinds {
		env, err := Wrap(k.msg, 3)
		require.NoError(t, err)
		assert.Equal(t, k.command, env.IsCommand(), "%T", k.msg)
		assert.Equal(t, k.replied, env.IsReply(), "%T", k.msg)
	}
}

func TestEnvelopeUnknownType(t *testing.T) {
	env := &Envelope{TypeId: 0x1234}
	_, err := env.Open()
	require.ErrorIs(t, err, ErrUnknownMessageType)
}

func TestCommandResultErr(t *testing.T) {
	require.NoError(t, NewCommandResult(OpReset, nil).Err())
	err := NewCommandResult(OpReset, nav.ErrBusy).Err()
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	require.Equal(t, OpReset, cmdErr.Op)
	require.Equal(t, "reset: sequencer is running", err.Error())
}

type bridgeTest struct {
	nav    *fakeNav
	walls  *fakeWalls
	bridge *Bridge
	client *Client
	msgCh  chan Message
}

func newBridgeTest(t *testing.T) *bridgeTest {
	ctx, cancel := context.WithCancel(context.Background())
	robot, monitor := newMemPipe()
	bt := &bridgeTest{
		nav:   &fakeNav{},
		walls: &fakeWalls{},
		msgCh: make(chan Message, 16),
	}
	bt.bridge = NewBridge(bt.nav, bt.walls, nopSyncer{})
	bt.client = NewClient(monitor)
	bt.client.OnMessage = func(msg Message) { bt.msgCh <- msg }
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); bt.bridge.Run(ctx) }()
	go func() { defer wg.Done(); bt.bridge.Serve(ctx, robot) }()
	go func() { defer wg.Done(); bt.client.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
	return bt
}

func (bt *bridgeTest) do(msg Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return bt.client.Command(ctx, msg)
}

func TestBridgeCommands(t *testing.T) {
	bt := newBridgeTest(t)

	require.NoError(t, bt.do(&ActionBatch{Actions: []string{"START_STEP", "ST_FULL", "TURN_L"}}))
	require.Equal(t, []nav.Action{nav.StartStep, nav.StFull, nav.TurnL}, bt.nav.queue)

	require.NoError(t, bt.do(&FastPath{Actions: []string{"ST_FULL", "TURN_R", "ST_HALF_STOP"}}))
	require.Equal(t, []nav.Action{nav.StFull, nav.TurnR, nav.StHalfStop}, bt.nav.path)

	err := bt.do(&ActionBatch{Actions: []string{"ST_FULL", "JUMP"}})
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	require.Equal(t, "actions", cmdErr.Op)
	require.Contains(t, cmdErr.Message, "unknown action")
	require.Len(t, bt.nav.queue, 3)

	for _, op := range []string{OpEnable, OpDisable, OpReset} {
		require.NoError(t, bt.do(&Command{Op: op}), op)
	}
	require.Equal(t, 1, bt.nav.enabled)
	require.Equal(t, 1, bt.nav.disabled)
	require.Equal(t, 1, bt.nav.resets)

	err = bt.do(&Command{Op: "fly"})
	require.ErrorAs(t, err, &cmdErr)
	require.Contains(t, cmdErr.Message, ErrUnsupportedCommand.Error())
}

func TestBridgeCalibration(t *testing.T) {
	bt := newBridgeTest(t)
	for _, op := range []string{OpCalibrateSide, OpCalibrateFront, OpBackup} {
		require.NoError(t, bt.do(&Command{Op: op}), op)
		select {
		case msg := <-bt.msgCh:
			require.Equal(t, &Event{Kind: hw.EventCalibrated.String(), Message: op}, msg)
		case <-time.After(time.Second):
			t.Fatalf("no event after %s", op)
		}
	}
	require.Equal(t, []string{OpCalibrateSide, OpCalibrateFront, OpBackup}, bt.walls.calls)

	bt.nav.lock.Lock()
	bt.nav.running = true
	bt.nav.lock.Unlock()
	err := bt.do(&Command{Op: OpCalibrateSide})
	require.Error(t, err)
	require.Contains(t, err.Error(), nav.ErrBusy.Error())
	require.Len(t, bt.walls.calls, 3)
}

func TestBridgeEvents(t *testing.T) {
	bt := newBridgeTest(t)
	// the reply proves the peer is registered.
	require.NoError(t, bt.do(&Command{Op: OpReset}))
	bt.bridge.Notify(hw.Event{Kind: hw.EventCollision, Message: "wall ahead"})
	select {
	case msg := <-bt.msgCh:
		require.Equal(t, &Event{Kind: "collision", Message: "wall ahead"}, msg)
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
}

func TestBridgeRepliesUnknownType(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	robot, monitor := newMemPipe()
	b := NewBridge(&fakeNav{}, nil, nopSyncer{})
	go b.Run(ctx)
	go b.Serve(ctx, robot)

	pkt, err := (&Envelope{TypeId: GroupNav | 0x0fff, Seq: 7}).Encode()
	require.NoError(t, err)
	require.NoError(t, monitor.WritePacket(pkt))
	pkt, err = monitor.ReadPacket()
	require.NoError(t, err)
	env, err := DecodeEnvelope(pkt)
	require.NoError(t, err)
	require.EqualValues(t, 7, env.Seq)
	require.True(t, env.IsReply())
	msg, err := env.Open()
	require.NoError(t, err)
	require.Contains(t, msg.(*CommandResult).Error, ErrUnknownMessageType.Error())
}

func TestBridgeOutboxDrops(t *testing.T) {
	b := NewBridge(&fakeNav{}, nil, nopSyncer{})
	for i := 0; i < DefaultOutboxSize+3; i++ {
		b.Publish(&Telemetry{Tick: uint64(i)})
	}
	require.EqualValues(t, 3, b.Dropped())
}

func TestClientExpiration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, monitor := newMemPipe()
	c := NewClient(monitor)
	c.Expiration = 20 * time.Millisecond
	go c.Run(ctx)
	err := c.Command(context.Background(), &Command{Op: OpEnable})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

type fakeSnapshot speed.Snapshot

func (s fakeSnapshot) Snapshot() speed.Snapshot { return speed.Snapshot(s) }

func TestReporter(t *testing.T) {
	n := &fakeNav{state: nav.StateSearch, offset: ctrl.Pose{X: 45, Y: 135, Th: 1.5}}
	src := fakeSnapshot{Pose: ctrl.Pose{X: 10, Y: 1, Th: 0.1}, EstV: ctrl.Polar{Tra: 300, Rot: 2}}
	out := &recorder{}
	r := (&ReporterConfig{Every: 2}).NewReporter(n, src, out)
	l := fx.NewLoop()
	l.Add(r)
	for i := 0; i < 5; i++ {
		l.RunOnce(context.Background())
	}
	msgs := out.messages()
	require.Len(t, msgs, 2)
	require.Equal(t, &Telemetry{
		State:    "search",
		Tick:     2,
		X:        10,
		Y:        1,
		Th:       0.1,
		OffsetX:  45,
		OffsetY:  135,
		OffsetTh: 1.5,
		V:        300,
		W:        2,
	}, msgs[0])
	require.EqualValues(t, 4, msgs[1].(*Telemetry).Tick)
}
