package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	cli "github.com/spf13/pflag"

	"jarvis/internal/ipc"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: jarvis-ctl [--socket PATH] listen|stop|status|say <command...>")
	cli.PrintDefaults()
}

func main() {
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Control socket path")
	timeout := cli.DurationP("timeout", "t", 30*time.Second, "Reply timeout")
	cli.Usage = usage
	cli.Parse()

	args := cli.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	var msg ipc.ControlMessage
	switch args[0] {
	case "listen", "start":
		msg.Cmd = ipc.CmdListen
	case "stop":
		msg.Cmd = ipc.CmdStop
	case "status":
		msg.Cmd = ipc.CmdStatus
	case "say", "command":
		msg.Cmd = ipc.CmdCommand
		msg.Text = strings.Join(args[1:], " ")
	default:
		usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	reply, err := ipc.Send(ctx, *socket, msg)
	if err != nil {
		fmt.Println("jarvis-daemon not running:", err)
		os.Exit(1)
	}
	if !reply.OK {
		fmt.Println("error:", reply.Error)
		os.Exit(1)
	}
	if reply.Response != "" {
		fmt.Println(reply.Response)
	}
	fmt.Println("state:", reply.State)
}
