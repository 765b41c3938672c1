package main

import (
	"context"
	"fmt"
	"os"
	"time"

	cli "github.com/spf13/pflag"

	"delta/internal/config"
	"delta/internal/ipc"
)

func main() {
	configPath := cli.StringP("config", "c", config.DefaultPath, "Settings file path")
	socket := cli.StringP("socket", "s", "", "Control socket (overrides settings)")
	cli.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: delta-ctl [flags] listen | mictest | ask <text>\n")
		cli.PrintDefaults()
	}
	cli.Parse()

	msg, err := ipc.Parse(cli.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		cli.Usage()
		os.Exit(2)
	}

	path := *socket
	if path == "" {
		cfg, _ := config.Load(*configPath)
		path = cfg.IPC.Socket
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := ipc.Send(ctx, path, msg); err != nil {
		fmt.Println("delta not running:", err)
		os.Exit(1)
	}
}
