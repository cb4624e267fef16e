package cmd

import (
	"debug/elf"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/rvemu/rvemu/rvgo/fast"
)

var OutFilePerm = os.FileMode(0o644)

// FlattenELF loads the ELF into a machine and returns the flash contents up to
// the end of the last segment placed in flash. Segments outside flash cannot
// be part of a raw image and are reported through the logger.
func FlattenELF(l log.Logger, f *elf.File, cfg MachineConfig) ([]byte, error) {
	m, err := NewMachine(cfg)
	if err != nil {
		return nil, err
	}
	loaded, err := fast.LoadELF(f, m.Core)
	if err != nil {
		return nil, fmt.Errorf("failed to load ELF data: %w", err)
	}
	flash := m.Flash.Range()
	var end uint64
	for _, r := range loaded {
		if !flash.Contains(r.Start) {
			l.Warn("segment outside flash is dropped", "start", HexU32(r.Start), "size", r.Size)
			continue
		}
		end = max(end, r.End())
	}
	if end == 0 {
		return nil, fmt.Errorf("no loadable segment in flash %s", flash)
	}
	if m.Core.ResetVector != flash.Start {
		l.Warn("raw images start at the flash base, the ELF entry is not kept",
			"entry", HexU32(m.Core.ResetVector), "flash", HexU32(flash.Start))
	}
	return m.Flash.Bytes()[:end-uint64(flash.Start)], nil
}

func LoadELF(ctx *cli.Context) error {
	lvl, err := ParseLevel(ctx.String(LogLevelFlag.Name))
	if err != nil {
		return err
	}
	l := Logger(os.Stderr, lvl)

	elfPath := ctx.Path(LoadELFPathFlag.Name)
	elfProgram, err := elf.Open(elfPath)
	if err != nil {
		return fmt.Errorf("failed to open ELF file %q: %w", elfPath, err)
	}
	defer elfProgram.Close()

	cfg, err := machineConfig(ctx)
	if err != nil {
		return err
	}
	image, err := FlattenELF(l, elfProgram, cfg)
	if err != nil {
		return err
	}
	out := ctx.Path(LoadELFOutFlag.Name)
	if err := os.WriteFile(out, image, OutFilePerm); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	l.Info("wrote raw image", "path", out, "size", len(image))
	return nil
}

var LoadELFCommand = &cli.Command{
	Name:        "load-elf",
	Usage:       "Flatten an ELF file into a raw flash image",
	Description: "Load the PT_LOAD segments of an RV32 ELF file into flash and write the flash contents as a raw image.",
	Action:      LoadELF,
	Flags: append([]cli.Flag{
		LoadELFPathFlag,
		LoadELFOutFlag,
		LogLevelFlag,
	}, MachineFlags...),
}
