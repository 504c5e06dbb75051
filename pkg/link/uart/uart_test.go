package uart

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeq(t *testing.T) {
	assert.Equal(t, Seq(2), Seq(1).Next())
	assert.Equal(t, Seq(1), Seq(0xef).Next())
	assert.Equal(t, Seq(1), Seq(0xff).Next())
	assert.False(t, Seq(0).IsValid())
	assert.False(t, Seq(0xf0).IsValid())
	assert.True(t, Seq(0xef).IsValid())
	for i := 0; i < 10; i++ {
		assert.True(t, NewSeq().IsValid())
	}
}

func TestFrameBytes(t *testing.T) {
	f := Frame{Seq: 5, Data: []byte{1, 2}}
	require.Equal(t, []byte{5, 0, 2, 1, 2, 0xfc}, f.Bytes())
	f = Frame{Seq: 7}
	require.Equal(t, []byte{7, 0, 0, 0xff}, f.Bytes())
	f = Frame{Seq: 9, Data: make([]byte, 300)}
	b := f.Bytes()
	require.Len(t, b, 304)
	require.Equal(t, []byte{9, 1, 44}, b[:3])
}

func readyParser(t *testing.T, peer Seq) *parser {
	p := &parser{}
	pr := p.reset()
	require.Equal(t, syncREQ, pr.sync)
	require.Equal(t, SyncStateSyncing, pr.state)
	require.True(t, pr.restartTimer())
	pr = p.parse(syncREQ)
	require.Equal(t, SyncStateSyncing|SyncStateReceiving, pr.state)
	pr = p.parse(byte(peer))
	require.Equal(t, syncACK, pr.sync)
	require.Equal(t, SyncStateReady, pr.state)
	require.False(t, pr.restartTimer())
	return p
}

func feed(p *parser, data []byte) (frames []*Frame, last parseResult) {
	for _, b := range data {
		last = p.parse(b)
		if last.frame != nil {
			frames = append(frames, last.frame)
		}
	}
	return
}

func TestParserFrames(t *testing.T) {
	p := readyParser(t, 9)
	var stream []byte
	payloads := [][]byte{{0xff, 0xfe, 0}, {}, bytes.Repeat([]byte{0x42}, 500)}
	seq := Seq(9)
	for _, data := range payloads {
		stream = append(stream, (&Frame{Seq: seq, Data: data}).Bytes()...)
		seq = seq.Next()
	}
	frames, last := feed(p, stream)
	require.Len(t, frames, 3)
	for i, f := range frames {
		require.Equal(t, payloads[i], f.Data)
	}
	require.Equal(t, Seq(9), frames[0].Seq)
	require.Equal(t, SyncStateReady, last.state)
	require.Equal(t, Seq(12), p.peerSeq)
}

func TestParserResync(t *testing.T) {
	good := (&Frame{Seq: 9, Data: []byte{1, 2, 3}}).Bytes()
	badSum := append([]byte(nil), good...)
	badSum[len(badSum)-1]++
	cases := []struct {
		name string
		data []byte
	}{
		{"wrong seq", []byte{10}},
		{"bad checksum", badSum},
		{"bad length", []byte{9, 0x80}},
		{"bad ack seq", []byte{syncACK, 8}},
		{"bad sync seq", []byte{syncREQ, 0xf5}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := readyParser(t, 9)
			frames, last := feed(p, c.data)
			require.Empty(t, frames)
			require.Equal(t, syncREQ, last.sync)
			require.Equal(t, SyncStateSyncing, last.state)
		})
	}
}

func TestParserAckWhileReady(t *testing.T) {
	p := readyParser(t, 9)
	_, last := feed(p, []byte{syncACK, 9})
	require.Zero(t, last.sync)
	require.Equal(t, SyncStateReady, last.state)
	frames, _ := feed(p, (&Frame{Seq: 9, Data: []byte{1}}).Bytes())
	require.Len(t, frames, 1)
}

func TestParserSyncAck(t *testing.T) {
	p := &parser{}
	p.reset()
	_, last := feed(p, []byte{syncACK, 3})
	require.Zero(t, last.sync)
	require.Equal(t, SyncStateReady, last.state)
	require.Equal(t, Seq(3), p.peerSeq)
}

func TestParserTimeout(t *testing.T) {
	p := readyParser(t, 9)
	pr := p.timeout()
	require.Zero(t, pr.sync)
	require.Equal(t, SyncStateReady, pr.state)

	_, last := feed(p, []byte{9, 0, 5, 1})
	require.Equal(t, SyncStateReady|SyncStateReceiving, last.state)
	require.True(t, last.restartTimer())
	pr = p.timeout()
	require.Equal(t, syncREQ, pr.sync)
	require.Equal(t, SyncStateSyncing, pr.state)
}

type chanPort struct {
	in     <-chan byte
	out    chan<- byte
	closed chan struct{}
	once   sync.Once
}

func newPortPair() (*chanPort, *chanPort) {
	a, b := make(chan byte, 1<<16), make(chan byte, 1<<16)
	return &chanPort{in: a, out: b, closed: make(chan struct{})},
		&chanPort{in: b, out: a, closed: make(chan struct{})}
}

func (p *chanPort) Read(buf []byte) (int, error) {
	select {
	case b := <-p.in:
		buf[0] = b
	case <-p.closed:
		return 0, io.EOF
	}
	n := 1
	for ; n < len(buf); n++ {
		select {
		case b := <-p.in:
			buf[n] = b
		default:
			return n, nil
		}
	}
	return n, nil
}

func (p *chanPort) Write(data []byte) (int, error) {
	for _, b := range data {
		select {
		case p.out <- b:
		case <-p.closed:
			return 0, io.ErrClosedPipe
		}
	}
	return len(data), nil
}

func (p *chanPort) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func TestConnPair(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pa, pb := newPortPair()
	a, b := NewConn(pa), NewConn(pb)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); a.Run(ctx) }()
	go func() { defer wg.Done(); b.Run(ctx) }()
	defer func() {
		cancel()
		wg.Wait()
	}()

	for _, c := range []*Conn{a, b} {
		select {
		case <-c.Ready():
		case <-time.After(time.Second):
			t.Fatal("not synchronized")
		}
	}
	big := bytes.Repeat([]byte{0xfe, 0xff}, 600)
	require.NoError(t, a.WritePacket([]byte("hello")))
	require.NoError(t, a.WritePacket(big))
	require.NoError(t, b.WritePacket([]byte("world")))

	pkt, err := b.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, "hello", string(pkt))
	pkt, err = b.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, big, pkt)
	pkt, err = a.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, "world", string(pkt))
}

func TestConnNotReady(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pa, _ := newPortPair()
	c := NewConn(pa)
	c.SendTimeout = 20 * time.Millisecond
	go c.Run(ctx)
	require.ErrorIs(t, c.WritePacket([]byte{1}), ErrNotReady)
	require.ErrorIs(t, c.WritePacket(make([]byte, MaxFrameData+1)), ErrFrameTooLarge)
}

func TestConnClose(t *testing.T) {
	pa, _ := newPortPair()
	c := NewConn(pa)
	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()
	require.NoError(t, c.Close())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	_, err := c.ReadPacket()
	require.Equal(t, io.EOF, err)
	require.ErrorIs(t, c.WritePacket([]byte{1}), io.ErrClosedPipe)
}
