package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/scott-cotton/cli"

	"github.com/signadot/tony-format/contentstore/content"
	"github.com/signadot/tony-format/contentstore/schema"
)

func fxcMain(cfg *MainConfig, cc *cli.Context, args []string) error {
	defer func() {
		if cfg.CloseOut != nil {
			cfg.CloseOut()
		}
	}()
	args, err := cfg.Main.Parse(cc, args)
	if err != nil {
		return err
	}
	if cfg.Store != "" && cfg.Badger != "" {
		return fmt.Errorf("%w: must specify at most one of -store -badger", cli.ErrUsage)
	}
	if len(args) == 0 {
		return cli.ErrNoCommandProvided
	}
	sub := cfg.Main.FindSub(cc, args[0])
	if sub == nil {
		return fmt.Errorf("%w: %q not found", cli.ErrNoSuchCommand, args[0])
	}
	err = sub.Run(cc, args[1:])
	if errors.Is(err, cli.ErrUsage) {
		sub.Usage(cc, err)
		os.Exit(sub.Exit(cc, err))
	}
	return err
}

func (cfg *MainConfig) outOpt(cc *cli.Context, a string) (any, error) {
	cfg.Out = a
	if a == "-" {
		return nil, nil
	}
	f, err := os.OpenFile(cfg.Out, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	cc.Out = f
	cfg.CloseOut = f.Close
	return nil, nil
}

// readSnapshot loads a snapshot file, "-" meaning stdin, with its type
// taken from reg.
func readSnapshot(ctx context.Context, reg schema.Provider, cc *cli.Context, path string) (*content.Tree, error) {
	var (
		d   []byte
		err error
	)
	if path == "-" {
		d, err = io.ReadAll(cc.In)
	} else {
		d, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	typeID, err := content.SnapshotTypeID(d)
	if err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", path, err)
	}
	typ, err := reg.AssignmentTree(ctx, typeID)
	if err != nil {
		return nil, err
	}
	t, err := content.UnmarshalSnapshot(d, typ)
	if err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", path, err)
	}
	return t, nil
}
