package main

import (
	"context"
	"fmt"

	"github.com/scott-cotton/cli"

	"github.com/signadot/tony-format/contentstore/delta"
)

func diff(cfg *DiffConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Diff.Parse(cc, args)
	if err != nil {
		cfg.Diff.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) != 2 {
		return fmt.Errorf("%w: diff requires 2 args, got %v", cli.ErrUsage, args)
	}
	reg, err := cfg.registry()
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := readSnapshot(ctx, reg, cc, args[0])
	if err != nil {
		return err
	}
	b, err := readSnapshot(ctx, reg, cc, args[1])
	if err != nil {
		return err
	}
	if cfg.Reverse {
		a, b = b, a
	}
	if cfg.Merge {
		patch, err := delta.MergePatch(a, b)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cc.Out, "%s\n", patch)
		return err
	}
	d, err := delta.Process(a, b)
	if err != nil {
		return err
	}
	if err := d.Dump(cc.Out, delta.WithColor(cfg.colors(cc.Out))); err != nil {
		return err
	}
	if d.Changed() {
		return cli.ExitCodeErr(1)
	}
	return nil
}
