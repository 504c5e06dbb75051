// Package sh is an interactive shell driving a robot over the link.
package sh

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"
	"sync/atomic"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/mouse.go/pkg/link"
	"github.com/robotalks/mouse.go/pkg/link/env"
)

// ErrNotConnected indicates a command needs a connection.
var ErrNotConnected = errors.New("not connected")

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool

	Shell  *ishell.Shell
	Config *env.Config
	Conn   *Conn

	follow atomic.Bool
}

// Conn is a running link client.
type Conn struct {
	Client *link.Client
	cancel func()
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

// New creates a new shell.
func New(conf *env.Config, interactive bool) *Shell {
	s := &Shell{
		Interactive: interactive,
		Shell:       ishell.New(),
		Config:      conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	for _, op := range []string{link.OpEnable, link.OpDisable, link.OpReset,
		link.OpCalibrateSide, link.OpCalibrateFront, link.OpBackup} {
		s.Shell.AddCmd(opCmd(op))
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Conn == nil {
			c.Err(ErrNotConnected)
			return
		}
		fn(c)
	}
}

// DoCommand sends a command and waits for its result.
func DoCommand(c *ishell.Context, msg link.Message) error {
	s := ShellFrom(c)
	if s.Conn == nil {
		c.Err(ErrNotConnected)
		return ErrNotConnected
	}
	if err := s.Conn.Client.Command(context.Background(), msg); err != nil {
		c.Err(err)
		return err
	}
	c.Println("OK")
	return nil
}

// FormatMessage prints a message with its type name.
func FormatMessage(msg link.Message) string {
	return fmt.Sprintf("[%s] %s", reflect.Indirect(reflect.ValueOf(msg)).Type().Name(), msg.String())
}

// SetFollow turns printing of telemetry and events on or off.
func (s *Shell) SetFollow(on bool) {
	s.follow.Store(on)
}

func (s *Shell) onMessage(msg link.Message) {
	if s.follow.Load() {
		s.Shell.Println(FormatMessage(msg))
	}
}

// Connect connects the robot with id, the configured robot if empty.
func (s *Shell) Connect(id string) error {
	conf := *s.Config
	if id != "" {
		conf.RobotID = id
	}
	ctx, cancel := context.WithCancel(context.Background())
	rw, err := conf.Dial(ctx)
	if err != nil {
		cancel()
		return err
	}
	conn := &Conn{Client: link.NewClient(rw), cancel: cancel}
	conn.Client.OnMessage = s.onMessage
	go func() {
		if err := conn.Client.Run(ctx); err != nil && ctx.Err() == nil {
			s.Shell.Println("link closed:", err)
		}
	}()
	s.Disconnect()
	s.Conn = conn
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", conf.RobotID))
	return nil
}

// Disconnect disconnects current robot.
func (s *Shell) Disconnect() {
	if s.Conn != nil {
		s.Conn.cancel()
		s.Conn = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Run connects and runs the shell. Args are processed as a single
// command instead of starting the interactive shell.
func (s *Shell) Run(args ...string) {
	if err := s.Connect(""); err != nil {
		log.Fatalf("connect %s failed: %v", s.Config.URL, err)
	}
	defer s.Disconnect()
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

func opCmd(op string) *ishell.Cmd {
	return &ishell.Cmd{
		Name: op,
		Help: "send " + op + " command",
		Func: MustBeConnected(func(c *ishell.Context) {
			DoCommand(c, &link.Command{Op: op})
		}),
	}
}

var commands = []*ishell.Cmd{
	{
		Name:    "discover",
		Aliases: []string{"list", "l"},
		Help:    "list robots announced on the MQTT link",
		Func: func(c *ishell.Context) {
			robots, err := ShellFrom(c).Config.Discover(context.Background())
			if err != nil {
				c.Err(err)
				return
			}
			if len(robots) == 0 {
				c.Println("No robots found")
				return
			}
			for _, r := range robots {
				c.Printf("%s: %s\n", r.ID, r.Description)
			}
		},
	},
	{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[ROBOT-ID]",
		Func: func(c *ishell.Context) {
			var id string
			if len(c.Args) > 0 {
				id = c.Args[0]
			}
			if err := ShellFrom(c).Connect(id); err != nil {
				c.Err(err)
			}
		},
	},
	{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	},
	{
		Name:    "actions",
		Aliases: []string{"a"},
		Help:    "ACTION... queue search actions, e.g. START_STEP ST_FULL TURN_L",
		Func: MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Err(errors.New("ACTION required"))
				return
			}
			DoCommand(c, &link.ActionBatch{Actions: c.Args})
		}),
	},
	{
		Name:    "path",
		Aliases: []string{"p"},
		Help:    "ACTION... run a search path fast",
		Func: MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Err(errors.New("ACTION required"))
				return
			}
			DoCommand(c, &link.FastPath{Actions: c.Args})
		}),
	},
	{
		Name:    "follow",
		Aliases: []string{"f"},
		Help:    "on|off print telemetry and events",
		Func: func(c *ishell.Context) {
			on := len(c.Args) == 0 || c.Args[0] != "off"
			ShellFrom(c).SetFollow(on)
		},
	},
}
