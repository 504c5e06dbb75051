package env

import (
	"context"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/mouse.go/pkg/link"
)

// serveEcho replies every command with a result carrying its op.
func serveEcho(ctx context.Context, rw link.PacketReadWriter) error {
	var pipe *link.Pipe
	pipe = link.NewPipe(rw, link.HandleMessageFunc(func(ctx context.Context, msg link.Message, env *link.Envelope) error {
		if cmd, ok := msg.(*link.Command); ok {
			var err error
			if cmd.Op == "fail" {
				err = link.ErrUnsupportedCommand
			}
			return pipe.Send(link.NewCommandResult(cmd.Op, err), env.Seq)
		}
		return nil
	}))
	return pipe.Run(ctx)
}

func startServer(t *testing.T, rawURL string) string {
	ctx, cancel := context.WithCancel(context.Background())
	addrCh := make(chan net.Addr, 1)
	done := make(chan error, 1)
	srv := (&Config{URL: rawURL}).NewServer(serveEcho)
	srv.Listening = func(addr net.Addr) { addrCh <- addr }
	go func() { done <- srv.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	select {
	case addr := <-addrCh:
		return addr.String()
	case err := <-done:
		t.Fatalf("server failed: %v", err)
	case <-time.After(time.Second):
		t.Fatal("server not listening")
	}
	return ""
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name   string
		listen string
		dial   func(addr string) string
	}{
		{"tcp", "tcp://127.0.0.1:0", func(addr string) string { return "tcp://" + addr }},
		{"websocket", "ws://127.0.0.1:0/link", func(addr string) string { return "ws://" + addr + "/link" }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			addr := startServer(t, c.listen)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			rw, err := (&Config{URL: c.dial(addr)}).Dial(ctx)
			require.NoError(t, err)
			client := link.NewClient(rw)
			go client.Run(ctx)

			require.NoError(t, client.Command(ctx, &link.Command{Op: link.OpEnable}))
			err = client.Command(ctx, &link.Command{Op: "fail"})
			var cmdErr *link.CommandError
			require.ErrorAs(t, err, &cmdErr)
			assert.Equal(t, "fail", cmdErr.Op)
		})
	}
}

func TestUnsupportedScheme(t *testing.T) {
	conf := &Config{URL: "carrier-pigeon://home"}
	_, err := conf.Dial(context.Background())
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
	err = conf.NewServer(serveEcho).Run(context.Background())
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestOpenSerialBadBaud(t *testing.T) {
	u, err := url.Parse("serial:///dev/null?baud=fast")
	require.NoError(t, err)
	_, err = openSerial(u)
	assert.ErrorContains(t, err, "baud")
}

func TestMachineID(t *testing.T) {
	id := MachineID()
	assert.NotEmpty(t, id)
	assert.Equal(t, id, MachineID())
}
