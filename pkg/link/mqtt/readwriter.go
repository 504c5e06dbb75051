package mqtt

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Topic suffixes under <robot-id>/.
const (
	TopicCmd   = "cmd"
	TopicState = "state"
	TopicMeta  = "meta"
)

// ReadWriter implements PacketReadWriter on a pair of topics.
type ReadWriter struct {
	Queue    *Queue
	SubTopic string
	PubTopic string

	packetCh  chan []byte
	done      chan struct{}
	closeOnce sync.Once
	sub       *Subscription
}

// NewPacketReadWriter creates the ReadWriter, see ForRobot and
// ForMonitor for the topics.
func NewPacketReadWriter(q *Queue) *ReadWriter {
	return &ReadWriter{Queue: q, packetCh: make(chan []byte, 16), done: make(chan struct{})}
}

// ForRobot receives on <id>/cmd and sends on <id>/state.
func (p *ReadWriter) ForRobot(id string) *ReadWriter {
	p.SubTopic, p.PubTopic = id+"/"+TopicCmd, id+"/"+TopicState
	return p
}

// ForMonitor receives on <id>/state and sends on <id>/cmd.
func (p *ReadWriter) ForMonitor(id string) *ReadWriter {
	p.SubTopic, p.PubTopic = id+"/"+TopicState, id+"/"+TopicCmd
	return p
}

// Subscribe starts receiving packets.
func (p *ReadWriter) Subscribe() error {
	p.sub = p.Queue.Sub(p.SubTopic, p.handleMsg)
	p.sub.Token.Wait()
	return p.sub.Token.Error()
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.packetCh:
		return pkt, nil
	case <-p.done:
		return nil, io.EOF
	}
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	token := p.Queue.Pub(p.PubTopic, pkt)
	token.Wait()
	return token.Error()
}

// Close implements io.Closer. The queue stays connected.
func (p *ReadWriter) Close() (err error) {
	p.closeOnce.Do(func() {
		close(p.done)
		if p.sub != nil {
			err = p.sub.Close()
		}
	})
	return
}

func (p *ReadWriter) handleMsg(_ string, payload []byte) {
	select {
	case p.packetCh <- payload:
	case <-p.done:
	}
}

// Meta describes a robot on the broker.
type Meta struct {
	ID          string            `json:"id"`
	Description string            `json:"description,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// Announce publishes meta, retained, whenever the queue connects. The
// will clearing it must be set on the options before the queue is
// created, see SetWill.
func Announce(q *Queue, meta Meta) {
	data, err := json.Marshal(&meta)
	if err != nil {
		panic(err)
	}
	prev := q.OnConnect
	q.OnConnect = func(q *Queue) {
		q.PubWith(meta.ID+"/"+TopicMeta, data, 1, true)
		if prev != nil {
			prev(q)
		}
	}
}

// SetWill makes the broker clear the retained meta of id when the
// connection is lost.
func SetWill(opts *paho.ClientOptions, topicPrefix, id string) {
	opts.SetBinaryWill(topicPrefix+id+"/"+TopicMeta, nil, 1, true)
}

// Withdraw clears the retained meta.
func Withdraw(q *Queue, id string) error {
	token := q.PubWith(id+"/"+TopicMeta, nil, 1, true)
	token.Wait()
	return token.Error()
}

// Discover collects the robots announced on the broker within timeout.
func Discover(ctx context.Context, q *Queue, timeout time.Duration) ([]Meta, error) {
	found := make(chan Meta, 16)
	sub := q.Sub("+/"+TopicMeta, func(topic string, payload []byte) {
		if len(payload) == 0 {
			return
		}
		var meta Meta
		if err := json.Unmarshal(payload, &meta); err != nil {
			return
		}
		if meta.ID == "" {
			meta.ID = strings.TrimSuffix(topic, "/"+TopicMeta)
		}
		select {
		case found <- meta:
		case <-time.After(timeout):
		}
	})
	defer sub.Close()
	var metas []Meta
	expire := time.After(timeout)
	for {
		select {
		case meta := <-found:
			metas = append(metas, meta)
		case <-expire:
			return metas, nil
		case <-ctx.Done():
			return metas, ctx.Err()
		}
	}
}
