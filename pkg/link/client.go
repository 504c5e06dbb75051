package link

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// DefaultCommandExpiration is the default expiration expecting a result.
const DefaultCommandExpiration = 2 * time.Second

// Result is the outcome of a command.
type Result struct {
	Msg *CommandResult
	Err error
}

// Future is the future of a sent command.
type Future interface {
	ResultChan() <-chan Result
}

// Client is the planner or monitor end of the link. Telemetry and events
// are delivered to OnMessage on the pipe goroutine.
type Client struct {
	Expiration time.Duration
	OnMessage  func(Message)

	pipe     Pipe
	seq      uint32
	commands list.List
	seqMap   map[uint32]*commandFuture
	lock     sync.Mutex
}

// NewClient creates a Client over rw.
func NewClient(rw PacketReadWriter) *Client {
	c := &Client{
		Expiration: DefaultCommandExpiration,
		seqMap:     make(map[uint32]*commandFuture),
	}
	c.pipe.ReadWriter = rw
	c.pipe.Handler = HandleMessageFunc(c.handleMessage)
	return c
}

// Do sends a command.
func (c *Client) Do(msg Message) Future {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.seq++
	if c.seq == 0 {
		c.seq++
	}
	f := &commandFuture{
		seq:      c.seq,
		expireAt: time.Now().Add(c.Expiration),
		result:   make(chan Result, 1),
	}
	if err := c.pipe.Send(msg, f.seq); err != nil {
		f.result <- Result{Err: err}
		close(f.result)
		return f
	}
	f.elem = c.commands.PushBack(f)
	c.seqMap[f.seq] = f
	return f
}

// Command sends a command and waits for its result.
func (c *Client) Command(ctx context.Context, msg Message) error {
	select {
	case r := <-c.Do(msg).ResultChan():
		return r.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run implements Runnable: it receives messages and expires commands
// without results.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		ticker := time.NewTicker(max(c.Expiration/4, time.Millisecond))
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				c.purgeExpired(now)
			}
		}
	}()
	err := c.pipe.Run(ctx)
	c.purgeExpired(time.Now().Add(c.Expiration))
	return err
}

func (c *Client) handleMessage(ctx context.Context, msg Message, env *Envelope) error {
	if !env.IsReply() {
		if h := c.OnMessage; h != nil {
			h(msg)
		}
		return nil
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	f := c.seqMap[env.Seq]
	if f == nil {
		return nil
	}
	c.commands.Remove(f.elem)
	delete(c.seqMap, env.Seq)
	result := Result{}
	if r, ok := msg.(*CommandResult); ok {
		result.Msg, result.Err = r, r.Err()
	}
	f.result <- result
	close(f.result)
	return nil
}

func (c *Client) purgeExpired(now time.Time) {
	c.lock.Lock()
	defer c.lock.Unlock()
	for c.commands.Len() > 0 {
		elem := c.commands.Front()
		f := elem.Value.(*commandFuture)
		if f.expireAt.After(now) {
			break
		}
		c.commands.Remove(elem)
		delete(c.seqMap, f.seq)
		f.result <- Result{Err: context.DeadlineExceeded}
		close(f.result)
	}
}

type commandFuture struct {
	seq      uint32
	expireAt time.Time
	elem     *list.Element
	result   chan Result
}

func (f *commandFuture) ResultChan() <-chan Result {
	return f.result
}
