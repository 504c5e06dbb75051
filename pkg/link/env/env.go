// Package env connects both ends of the link by URL:
//
//	mqtt://broker:1883/prefix/   MQTT topics <prefix><robot-id>/cmd and /state
//	tcp://host:7070              length-prefixed packets over TCP
//	ws://host:7071/link          websocket
//	serial:///dev/ttyUSB0?baud=115200
package env

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/denisbrodbeck/machineid"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	fx "github.com/robotalks/mouse.go/pkg/framework"
	"github.com/robotalks/mouse.go/pkg/link"
	"github.com/robotalks/mouse.go/pkg/link/mqtt"
	"github.com/robotalks/mouse.go/pkg/link/stream"
	"github.com/robotalks/mouse.go/pkg/link/uart"
	"github.com/robotalks/mouse.go/pkg/link/websocket"
)

// ErrUnsupportedScheme indicates an unknown link URL scheme.
var ErrUnsupportedScheme = errors.New("unsupported link scheme")

// DefaultBaud is the serial speed unless given in the URL.
const DefaultBaud = 115200

const discoverTimeout = time.Second

// Config selects the link.
type Config struct {
	URL     string
	RobotID string
}

var defaultConfig = Config{
	URL: "tcp://localhost:7070",
}

func init() {
	if val := os.Getenv("MOUSE_LINK_URL"); val != "" {
		defaultConfig.URL = val
	}
	defaultConfig.RobotID = MachineID()
}

// MachineID derives a stable robot ID from the machine.
func MachineID() string {
	id, err := machineid.ProtectedID("mouse.go")
	if err != nil {
		glog.Warningf("machine id: %v", err)
		return "mouse"
	}
	return id[:12]
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.URL, "link", defaultConfig.URL, "link URL (mqtt://, tcp://, ws://, serial://)")
	flag.StringVar(&defaultConfig.RobotID, "robot-id", defaultConfig.RobotID, "robot ID used in MQTT topics")
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	c := defaultConfig
	return &c
}

// ServeFunc serves one packet connection until it fails or ctx is done.
type ServeFunc func(context.Context, link.PacketReadWriter) error

// Server is the robot end of the link.
type Server struct {
	Config *Config
	Serve  ServeFunc
	// Listening, if set, receives the bound address of tcp and ws links.
	Listening func(net.Addr)
}

// NewServer creates a Server passing every connection to serve.
func (c *Config) NewServer(serve ServeFunc) *Server {
	return &Server{Config: c, Serve: serve}
}

// Run implements Runnable.
func (s *Server) Run(ctx context.Context) error {
	u, err := url.Parse(s.Config.URL)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "mqtt", "mqtts":
		return s.runMQTT(ctx)
	case "tcp":
		return s.runTCP(ctx, u.Host)
	case "ws":
		return s.runWebsocket(ctx, u)
	case "serial":
		conn, err := openSerial(u)
		if err != nil {
			return err
		}
		return runUART(ctx, conn, s.Serve)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
}

func (s *Server) runMQTT(ctx context.Context) error {
	id := s.Config.RobotID
	opts, prefix, err := mqtt.ClientOptionsFromURL(s.Config.URL)
	if err != nil {
		return err
	}
	mqtt.SetWill(opts, prefix, id)
	if opts.ClientID == "" {
		opts.SetClientID("mouse:" + id)
	}
	q := mqtt.NewQueue(opts, prefix)
	mqtt.Announce(q, mqtt.Meta{ID: id, Description: "micromouse"})
	if err := waitToken(ctx, q.Connect()); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	defer q.Close()
	defer mqtt.Withdraw(q, id)
	rw := mqtt.NewPacketReadWriter(q).ForRobot(id)
	if err := rw.Subscribe(); err != nil {
		return err
	}
	glog.Infof("link: serving mqtt %s%s", prefix, id)
	return s.Serve(ctx, rw)
}

func (s *Server) listen(ctx context.Context, addr string) (net.Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	glog.Infof("link: listening on %v", ln.Addr())
	if s.Listening != nil {
		s.Listening(ln.Addr())
	}
	return ln, nil
}

func (s *Server) runTCP(ctx context.Context, addr string) error {
	ln, err := s.listen(ctx, addr)
	if err != nil {
		return err
	}
	return fx.RunWithContextCloser(ctx, ln, func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return err
			}
			go func() {
				defer conn.Close()
				if err := s.Serve(ctx, stream.New(conn)); err != nil && ctx.Err() == nil {
					glog.Warningf("link: %v: %v", conn.RemoteAddr(), err)
				}
			}()
		}
	})
}

func (s *Server) runWebsocket(ctx context.Context, u *url.URL) error {
	ln, err := s.listen(ctx, u.Host)
	if err != nil {
		return err
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	mux := http.NewServeMux()
	mux.Handle(path, websocket.Handler(func(rw *websocket.ReadWriter) error {
		return s.Serve(ctx, rw)
	}))
	srv := &http.Server{Handler: mux}
	return fx.RunWithContextCancel(ctx, func() { srv.Close() }, func() error {
		return srv.Serve(ln)
	})
}

// Dial connects the planner or monitor end.
func (c *Config) Dial(ctx context.Context) (link.PacketReadWriter, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "mqtt", "mqtts":
		opts, prefix, err := mqtt.ClientOptionsFromURL(c.URL)
		if err != nil {
			return nil, err
		}
		q := mqtt.NewQueue(opts, prefix)
		if err := waitToken(ctx, q.Connect()); err != nil {
			return nil, fmt.Errorf("mqtt connect: %w", err)
		}
		rw := mqtt.NewPacketReadWriter(q).ForMonitor(c.RobotID)
		if err := rw.Subscribe(); err != nil {
			q.Close()
			return nil, err
		}
		return &closers{PacketReadWriter: rw, closers: []func() error{rw.Close, q.Close}}, nil
	case "tcp":
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", u.Host)
		if err != nil {
			return nil, err
		}
		return stream.New(conn), nil
	case "ws":
		return websocket.Dial(ctx, c.URL)
	case "serial":
		conn, err := openSerial(u)
		if err != nil {
			return nil, err
		}
		go conn.Run(ctx)
		return conn, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
}

// Discover lists the robots announced on an MQTT link.
func (c *Config) Discover(ctx context.Context) ([]mqtt.Meta, error) {
	opts, prefix, err := mqtt.ClientOptionsFromURL(c.URL)
	if err != nil {
		return nil, err
	}
	q := mqtt.NewQueue(opts, prefix)
	if err := waitToken(ctx, q.Connect()); err != nil {
		return nil, err
	}
	defer q.Close()
	return mqtt.Discover(ctx, q, discoverTimeout)
}

func openSerial(u *url.URL) (*uart.Conn, error) {
	baud := DefaultBaud
	if val := u.Query().Get("baud"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return nil, fmt.Errorf("baud %q: %w", val, err)
		}
		baud = n
	}
	return uart.Open(u.Path, baud)
}

func runUART(ctx context.Context, conn *uart.Conn, serve ServeFunc) error {
	runner := fx.NewRunnerWith(ctx)
	runner.Go(conn, fx.RunFunc(func(ctx context.Context) error {
		return serve(ctx, conn)
	}))
	return runner.Wait()
}

func waitToken(ctx context.Context, token paho.Token) error {
	done := make(chan struct{})
	go func() {
		token.Wait()
		close(done)
	}()
	select {
	case <-done:
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// closers closes the MQTT read/writer together with its queue.
type closers struct {
	link.PacketReadWriter
	closers []func() error
}

func (c *closers) Close() error {
	var errs fx.AggregatedError
	for _, fn := range c.closers {
		errs.Add(fn())
	}
	return errs.Aggregate()
}
