package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/rvemu/rvemu/rvgo/cmd"
)

func main() {
	app := cli.NewApp()
	app.Name = "rvemu"
	app.Usage = "RV32IM emulator with a GDB stub"
	app.Description = "Runs raw or ELF RISC-V images freely, or serves them to GDB over the remote serial protocol."
	app.ArgsUsage = "<image>"
	app.Flags = cmd.RunFlags
	app.Action = cmd.Run
	app.Commands = []*cli.Command{
		cmd.RunCommand,
		cmd.SelfTestCommand,
		cmd.LoadELFCommand,
	}
	ctx, cancel := context.WithCancel(context.Background())

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for {
			<-c
			cancel()
			fmt.Println("\r\nExiting...")
		}
	}()

	err := app.RunContext(ctx, os.Args)
	if err != nil {
		if errors.Is(err, ctx.Err()) {
			_, _ = fmt.Fprintf(os.Stderr, "command interrupted\n")
			os.Exit(130)
		} else {
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
}
