package main

import (
	"context"
	"flag"
	"log"
	"strings"

	"github.com/robotalks/mouse.go/pkg/cli/sh"
	fx "github.com/robotalks/mouse.go/pkg/framework"
	"github.com/robotalks/mouse.go/pkg/link"
	"github.com/robotalks/mouse.go/pkg/link/env"
)

var (
	actions = flag.String("actions", "", "comma separated search actions to queue, e.g. START_STEP,ST_FULL,TURN_L")
	path    = flag.String("path", "", "comma separated search path to run fast")
	cmds    = flag.String("cmd", "", "comma separated commands: enable, disable, reset, calibrate-side, calibrate-front, backup")
	follow  = flag.Bool("follow", false, "keep printing telemetry and events")
	list    = flag.Bool("list", false, "list robots announced on the MQTT link")
	noShell = flag.Bool("e", false, "evaluate the command in arguments only, no interactive shell")
)

func init() {
	env.SetupFlags()
}

func tokens(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func printMessage(msg link.Message) {
	log.Println(sh.FormatMessage(msg))
}

func send(ctx context.Context, client *link.Client) error {
	var msgs []link.Message
	if t := tokens(*actions); len(t) > 0 {
		msgs = append(msgs, &link.ActionBatch{Actions: t})
	}
	if t := tokens(*path); len(t) > 0 {
		msgs = append(msgs, &link.FastPath{Actions: t})
	}
	for _, op := range tokens(*cmds) {
		msgs = append(msgs, &link.Command{Op: op})
	}
	for _, msg := range msgs {
		if err := client.Command(ctx, msg); err != nil {
			return err
		}
		log.Printf("ok: %s", msg.String())
	}
	return nil
}

func listRobots(ctx context.Context, conf *env.Config) {
	robots, err := conf.Discover(ctx)
	if err != nil {
		log.Fatalln(err)
	}
	for _, r := range robots {
		log.Printf("%s: %s %v", r.ID, r.Description, r.Labels)
	}
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	conf := env.NewConfig()
	ctx := context.Background()
	if *list {
		listRobots(ctx, conf)
		return
	}
	if *actions == "" && *path == "" && *cmds == "" && !*follow {
		sh.New(conf, !*noShell).Run(flag.Args()...)
		return
	}

	rw, err := conf.Dial(ctx)
	if err != nil {
		log.Fatalln(err)
	}
	client := link.NewClient(rw)
	if *follow {
		client.OnMessage = printMessage
	}

	runner := fx.NewRunnerWith(ctx).HandleSignals()
	runner.Go(client, fx.RunFunc(func(ctx context.Context) error {
		if err := send(ctx, client); err != nil {
			return err
		}
		if !*follow {
			runner.Stop()
		}
		return nil
	}))
	if err := runner.Wait(); err != nil {
		log.Fatalln(err)
	}
}
