package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/pkg/profile"

	"github.com/rvemu/rvemu/rvgo/fast"
	"github.com/rvemu/rvemu/rvgo/gdb"
)

// RunConfig controls a free run.
type RunConfig struct {
	MaxSteps  uint64
	InfoEvery uint64
	Trace     bool
}

// FreeRun executes the machine until EBREAK, a fault, the step limit or ctx
// cancellation. A cancelled ctx is returned as its error.
func FreeRun(ctx context.Context, l log.Logger, m *Machine, cfg RunConfig) (fast.Stop, error) {
	state := m.Core
	start := time.Now()
	startStep := state.Steps

	var cancelled error
	stop := state.Run(nil, func(c *fast.Core) bool {
		step := c.Steps
		if cfg.Trace {
			l.Info("step", "step", step, "insn", HexU32(c.Instr), "next", HexU32(c.PC))
		}
		if cfg.InfoEvery != 0 && step%cfg.InfoEvery == 0 {
			delta := time.Since(start)
			l.Info("processing",
				"step", step,
				"pc", HexU32(c.PC),
				"insn", HexU32(c.Instr),
				"ips", float64(step-startStep)/(float64(delta)/float64(time.Second)),
				"name", m.LookupSymbol(c.PC),
			)
		}
		if cfg.MaxSteps != 0 && step-startStep >= cfg.MaxSteps {
			return true
		}
		if step%100 == 0 { // don't do the ctx err check (includes lock) too often
			if err := ctx.Err(); err != nil {
				cancelled = err
				return true
			}
		}
		return false
	})
	return stop, cancelled
}

func Run(ctx *cli.Context) error {
	if ctx.Bool(PProfCPUFlag.Name) {
		defer profile.Start(profile.NoShutdownHook, profile.ProfilePath("."), profile.CPUProfile).Stop()
	}

	lvl, err := ParseLevel(ctx.String(LogLevelFlag.Name))
	if err != nil {
		return err
	}
	l := Logger(os.Stderr, lvl)

	if ctx.Bool(TestFlag.Name) {
		return RunSelfTests(l)
	}

	imagePath := ctx.Args().First()
	if imagePath == "" {
		return errNoImage
	}

	cfg, err := machineConfig(ctx)
	if err != nil {
		return err
	}
	cfg.ConsoleOut = &LoggingWriter{Name: "console", Log: l}
	m, err := NewMachine(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up machine: %w", err)
	}
	defer func() {
		if err := m.Close(); err != nil {
			l.Error("failed to flush console", "err", err)
		}
	}()
	if err := m.LoadImageFile(imagePath); err != nil {
		return err
	}
	l.Info("loaded image", "path", imagePath, "entry", HexU32(m.Core.PC), "symbols", len(m.Symbols))

	if ctx.Bool(GDBFlag.Name) {
		addr := fmt.Sprintf(":%d", ctx.Uint(GDBPortFlag.Name))
		srv, err := gdb.Listen(addr, m.Core, l, ctx.Bool(TraceFlag.Name))
		if err != nil {
			return err
		}
		return srv.Serve(ctx.Context)
	}

	stop, err := FreeRun(ctx.Context, l, m, RunConfig{
		MaxSteps:  ctx.Uint64(MaxStepsFlag.Name),
		InfoEvery: ctx.Uint64(InfoEveryFlag.Name),
		Trace:     ctx.Bool(TraceFlag.Name),
	})
	if err != nil {
		return err
	}

	state := m.Core
	ctxt := []any{
		"reason", stop.Reason,
		"pc", HexU32(stop.PC),
		"steps", state.Steps,
		"status", state.Status,
		"hash", state.StateHash(),
	}
	if stop.Err != nil {
		// a guest fault ends the run, the emulator itself did its job
		l.Error("execution stopped", append(ctxt, "err", stop.Err, "name", m.LookupSymbol(stop.PC))...)
	} else {
		l.Info("execution stopped", ctxt...)
	}
	return nil
}

var RunCommand = &cli.Command{
	Name:        "run",
	Usage:       "Run a RISC-V image",
	Description: "Run a raw or ELF RV32IM image until EBREAK or a fault, or serve it to GDB with --gdb.",
	ArgsUsage:   "<image>",
	Action:      Run,
	Flags:       RunFlags,
}
