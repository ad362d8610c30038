package main

import (
	"context"
	"fmt"

	"github.com/scott-cotton/cli"

	"github.com/signadot/tony-format/contentstore/content"
	"github.com/signadot/tony-format/contentstore/xpath"
)

func initTree(cfg *InitConfig, cc *cli.Context, args []string) error {
	_, err := cfg.Init.Parse(cc, args)
	if err != nil {
		cfg.Init.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if cfg.Type == "" {
		return fmt.Errorf("%w: init requires -type", cli.ErrUsage)
	}
	reg, err := cfg.registry()
	if err != nil {
		return err
	}
	typ, err := reg.ByName(cfg.Type)
	if err != nil {
		return err
	}
	t, err := content.Initialize(typ)
	if err != nil {
		return err
	}
	d, err := t.MarshalSnapshot()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cc.Out, "%s\n", d)
	return err
}

func validate(cfg *ValidateConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Validate.Parse(cc, args)
	if err != nil {
		cfg.Validate.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) == 0 {
		args = []string{"-"}
	}
	reg, err := cfg.registry()
	if err != nil {
		return err
	}
	failed := false
	for _, arg := range args {
		t, err := readSnapshot(context.Background(), reg, cc, arg)
		if err != nil {
			return err
		}
		vs := t.Validate()
		if len(vs) == 0 {
			fmt.Fprintf(cc.Out, "%s: ok\n", arg)
			continue
		}
		failed = true
		for _, v := range vs {
			fmt.Fprintf(cc.Out, "%s: %s\n", arg, v)
		}
	}
	if failed {
		return cli.ExitCodeErr(1)
	}
	return nil
}

func export(cfg *ExportConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Export.Parse(cc, args)
	if err != nil {
		cfg.Export.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) == 0 {
		args = []string{"-"}
	}
	reg, err := cfg.registry()
	if err != nil {
		return err
	}
	for _, arg := range args {
		t, err := readSnapshot(context.Background(), reg, cc, arg)
		if err != nil {
			return err
		}
		d, err := t.ExportJSON()
		if err != nil {
			return fmt.Errorf("error exporting %s: %w", arg, err)
		}
		if _, err := fmt.Fprintf(cc.Out, "%s\n", d); err != nil {
			return err
		}
	}
	return nil
}

func paths(cfg *PathsConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Paths.Parse(cc, args)
	if err != nil {
		cfg.Paths.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: paths requires one snapshot, got %v", cli.ErrUsage, args)
	}
	reg, err := cfg.registry()
	if err != nil {
		return err
	}
	t, err := readSnapshot(context.Background(), reg, cc, args[0])
	if err != nil {
		return err
	}
	for _, p := range t.AllPaths(cfg.Groups) {
		fmt.Fprintln(cc.Out, p)
	}
	return nil
}

func createable(cfg *CreateableConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Createable.Parse(cc, args)
	if err != nil {
		cfg.Createable.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: createable requires one snapshot, got %v", cli.ErrUsage, args)
	}
	p, err := xpath.Parse(cfg.Path)
	if err != nil {
		return fmt.Errorf("%w: %w", cli.ErrUsage, err)
	}
	reg, err := cfg.registry()
	if err != nil {
		return err
	}
	t, err := readSnapshot(context.Background(), reg, cc, args[0])
	if err != nil {
		return err
	}
	ps, err := t.CreateableChildren(p, cfg.Recursive)
	if err != nil {
		return err
	}
	for _, p := range ps {
		fmt.Fprintln(cc.Out, p)
	}
	return nil
}
