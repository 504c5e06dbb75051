package uart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"
	"go.bug.st/serial"
)

var (
	// ErrNotReady indicates the line is not synchronized.
	ErrNotReady = errors.New("not ready")
	// ErrFrameTooLarge indicates the packet doesn't fit in a frame.
	ErrFrameTooLarge = errors.New("frame too large")
)

// Default timings.
const (
	DefaultTimeout     = 100 * time.Millisecond
	DefaultSendTimeout = time.Second
)

// Conn implements PacketReadWriter over a serial line. Run must be
// running for packets to flow.
type Conn struct {
	Port io.ReadWriter
	// Timeout aborts an incomplete handshake or frame.
	Timeout time.Duration
	// SendTimeout bounds the wait for synchronization in WritePacket.
	SendTimeout time.Duration
	// OnState is notified of state changes on the Run goroutine.
	OnState func(SyncState)

	lock    sync.Mutex
	seq     Seq
	state   SyncState
	readyCh chan struct{}

	parser    parser
	syncTimer <-chan time.Time

	frames    chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewConn creates a Conn on port.
func NewConn(port io.ReadWriter) *Conn {
	return &Conn{
		Port:        port,
		Timeout:     DefaultTimeout,
		SendTimeout: DefaultSendTimeout,
		seq:         NewSeq(),
		readyCh:     make(chan struct{}),
		frames:      make(chan []byte, 16),
		done:        make(chan struct{}),
	}
}

// Open opens a serial port such as /dev/ttyUSB0 at baud.
func Open(name string, baud int) (*Conn, error) {
	port, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return NewConn(port), nil
}

// Ports lists the serial ports of the system.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}

// State gets the state.
func (c *Conn) State() SyncState {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.state
}

// Ready is closed while the line is synchronized.
func (c *Conn) Ready() <-chan struct{} {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.readyCh
}

// WritePacket implements PacketWriter. It waits up to SendTimeout for
// the line to synchronize.
func (c *Conn) WritePacket(pkt []byte) error {
	if len(pkt) > MaxFrameData {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(pkt))
	}
	select {
	case <-c.Ready():
	case <-c.done:
		return io.ErrClosedPipe
	case <-time.After(c.SendTimeout):
		return ErrNotReady
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.state.IsReady() {
		return ErrNotReady
	}
	f := Frame{Seq: c.seq, Data: pkt}
	if _, err := c.Port.Write(f.Bytes()); err != nil {
		return err
	}
	c.seq = c.seq.Next()
	return nil
}

// ReadPacket implements PacketReader.
func (c *Conn) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-c.frames:
		return pkt, nil
	case <-c.done:
		return nil, io.EOF
	}
}

// Close implements io.Closer.
func (c *Conn) Close() (err error) {
	c.closeOnce.Do(func() {
		close(c.done)
		if closer, ok := c.Port.(io.Closer); ok {
			err = closer.Close()
		}
	})
	return
}

// Run implements Runnable: it reads the line and keeps it synchronized.
func (c *Conn) Run(ctx context.Context) error {
	defer c.Close()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := c.apply(c.parser.reset()); err != nil {
		return err
	}
	dataCh, errCh := make(chan []byte), make(chan error, 1)
	go c.readLoop(ctx, dataCh, errCh)
	for {
		select {
		case data := <-dataCh:
			for _, b := range data {
				if err := c.apply(c.parser.parse(b)); err != nil {
					return err
				}
			}
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		case <-c.syncTimer:
			if err := c.apply(c.parser.timeout()); err != nil {
				return err
			}
		}
	}
}

func (c *Conn) readLoop(ctx context.Context, dataCh chan<- []byte, errCh chan<- error) {
	for {
		buf := make([]byte, 64)
		n, err := c.Port.Read(buf)
		if err != nil {
			errCh <- err
			return
		}
		select {
		case dataCh <- buf[:n]:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Conn) apply(pr parseResult) error {
	c.lock.Lock()
	changed := c.state != pr.state
	if changed {
		if pr.state.IsReady() && !c.state.IsReady() {
			close(c.readyCh)
		} else if !pr.state.IsReady() && c.state.IsReady() {
			c.readyCh = make(chan struct{})
		}
		c.state = pr.state
	}
	var err error
	if pr.sync != 0 {
		_, err = c.Port.Write([]byte{pr.sync, byte(c.seq)})
	}
	c.lock.Unlock()
	if err != nil {
		return err
	}

	if pr.restartTimer() {
		c.syncTimer = time.After(c.Timeout)
	} else if pr.state.IsReady() {
		c.syncTimer = nil
	}
	if changed {
		glog.V(4).Infof("uart: state %x", pr.state)
		if c.OnState != nil {
			c.OnState(pr.state)
		}
	}
	if pr.frame != nil {
		select {
		case c.frames <- pr.frame.Data:
		case <-c.done:
		}
	}
	return nil
}
