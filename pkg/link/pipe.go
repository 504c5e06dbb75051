package link

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/golang/glog"
)

// Handler handles a received message.
type Handler interface {
	HandleMessage(context.Context, Message, *Envelope) error
}

// HandleMessageFunc is func form of Handler.
type HandleMessageFunc func(context.Context, Message, *Envelope) error

// HandleMessage implements Handler.
func (f HandleMessageFunc) HandleMessage(ctx context.Context, msg Message, env *Envelope) error {
	return f(ctx, msg, env)
}

// Pipe is a bi-directional pipe for messages.
type Pipe struct {
	ReadWriter PacketReadWriter
	Handler    Handler

	sendLock sync.Mutex
}

// NewPipe creates a Pipe with given PacketReadWriter.
func NewPipe(rw PacketReadWriter, h Handler) *Pipe {
	return &Pipe{ReadWriter: rw, Handler: h}
}

// Send sends a message. seq pairs a command with its result and is 0
// for events.
func (p *Pipe) Send(msg Message, seq uint32) error {
	env, err := Wrap(msg, seq)
	if err != nil {
		return err
	}
	pkt, err := env.Encode()
	if err != nil {
		return err
	}
	p.sendLock.Lock()
	defer p.sendLock.Unlock()
	return p.ReadWriter.WritePacket(pkt)
}

// Run implements Runnable. It returns when the transport fails or ctx
// is done.
func (p *Pipe) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { p.Close() })
	defer stop()
	defer p.Close()
	for {
		pkt, err := p.ReadWriter.ReadPacket()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		env, err := DecodeEnvelope(pkt)
		if err != nil {
			glog.Warningf("link: bad packet: %v", err)
			continue
		}
		msg, err := env.Open()
		if err != nil {
			glog.Warningf("link: %v", err)
			if env.IsCommand() && !env.IsReply() {
				if err = p.Send(NewCommandResult("", err), env.Seq); err != nil {
					return err
				}
			}
			continue
		}
		if h := p.Handler; h != nil {
			if err = h.HandleMessage(ctx, msg, env); err != nil {
				return err
			}
		}
	}
}

// Close implements Closer.
func (p *Pipe) Close() error {
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		if err := closer.Close(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
			return err
		}
	}
	return nil
}
