package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/rvemu/rvemu/rvgo/bus"
	"github.com/rvemu/rvemu/rvgo/riscv"
)

// RegionFlag holds a "start:size" memory region, both in hex.
type RegionFlag struct {
	bus.Range
}

func parseHexU32(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func (r *RegionFlag) Set(value string) error {
	start, size, ok := strings.Cut(value, ":")
	if !ok {
		return fmt.Errorf("region %q: expected start:size", value)
	}
	s, err := parseHexU32(start)
	if err != nil {
		return fmt.Errorf("region %q: bad start: %w", value, err)
	}
	n, err := parseHexU32(size)
	if err != nil {
		return fmt.Errorf("region %q: bad size: %w", value, err)
	}
	if n == 0 {
		return fmt.Errorf("region %q: size must not be zero", value)
	}
	if uint64(s)+uint64(n) > 1<<32 {
		return fmt.Errorf("region %q: does not fit the 32-bit address space", value)
	}
	r.Range = bus.Range{Start: s, Size: n}
	return nil
}

func (r *RegionFlag) String() string {
	return fmt.Sprintf("%x:%x", r.Start, r.Size)
}

var (
	TestFlag = &cli.BoolFlag{
		Name:    "test",
		Aliases: []string{"u"},
		Usage:   "run the built-in instruction tests instead of an image",
	}
	GDBFlag = &cli.BoolFlag{
		Name:    "gdb",
		Aliases: []string{"g"},
		Usage:   "serve the image to a GDB client instead of running it freely",
	}
	GDBPortFlag = &cli.UintFlag{
		Name:  "gdb.port",
		Usage: "TCP port of the GDB stub",
		Value: riscv.DefaultGDBPort,
	}
	FlashFlag = &cli.GenericFlag{
		Name:  "flash",
		Usage: "flash region as start:size in hex; raw images are loaded at its start",
		Value: &RegionFlag{bus.Range{Start: riscv.DefaultFlashBase, Size: riscv.DefaultFlashSize}},
	}
	RAMFlag = &cli.GenericFlag{
		Name:  "ram",
		Usage: "RAM region as start:size in hex",
		Value: &RegionFlag{bus.Range{Start: riscv.DefaultRAMBase, Size: riscv.DefaultRAMSize}},
	}
	ConsoleFlag = &cli.StringFlag{
		Name:  "console",
		Usage: "base address of the console device in hex, empty to disable",
		Value: fmt.Sprintf("%x", riscv.DefaultConsoleBase),
	}
	TraceFlag = &cli.BoolFlag{
		Name:    "trace",
		Aliases: []string{"t"},
		Usage:   "log every executed instruction, or every RSP packet with --gdb",
	}
	MaxStepsFlag = &cli.Uint64Flag{
		Name:  "max-steps",
		Usage: "stop a free run after this many instructions, 0 for no limit",
	}
	InfoEveryFlag = &cli.Uint64Flag{
		Name:  "info-every",
		Usage: "log progress every N instructions, 0 to disable",
	}
	LogLevelFlag = &cli.StringFlag{
		Name:  "log.level",
		Usage: "trace, debug, info, warn, error or crit",
		Value: "info",
	}
	PProfCPUFlag = &cli.BoolFlag{
		Name:  "pprof.cpu",
		Usage: "write a CPU profile to the working directory",
	}
	LoadELFPathFlag = &cli.PathFlag{
		Name:      "path",
		Usage:     "path to a 32-bit RISC-V ELF file",
		TakesFile: true,
		Required:  true,
	}
	LoadELFOutFlag = &cli.PathFlag{
		Name:      "out",
		Usage:     "output path of the raw flash image",
		TakesFile: true,
		Required:  true,
	}
)

// MachineFlags configure the address map, shared by all commands.
var MachineFlags = []cli.Flag{FlashFlag, RAMFlag, ConsoleFlag}

// RunFlags are the flags of the default action.
var RunFlags = append([]cli.Flag{
	TestFlag,
	GDBFlag,
	GDBPortFlag,
	TraceFlag,
	MaxStepsFlag,
	InfoEveryFlag,
	LogLevelFlag,
	PProfCPUFlag,
}, MachineFlags...)

// machineConfig reads the address map flags.
func machineConfig(ctx *cli.Context) (MachineConfig, error) {
	cfg := MachineConfig{
		Flash: ctx.Generic(FlashFlag.Name).(*RegionFlag).Range,
		RAM:   ctx.Generic(RAMFlag.Name).(*RegionFlag).Range,
	}
	if s := ctx.String(ConsoleFlag.Name); s != "" {
		base, err := parseHexU32(s)
		if err != nil {
			return cfg, fmt.Errorf("bad console address %q: %w", s, err)
		}
		cfg.Console = true
		cfg.ConsoleBase = base
	}
	return cfg, nil
}
