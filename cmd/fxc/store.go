package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/scott-cotton/cli"

	"github.com/signadot/tony-format/contentstore/access"
	"github.com/signadot/tony-format/contentstore/ledger"
)

func put(cfg *PutConfig, cc *cli.Context, args []string) (err error) {
	args, err = cfg.Put.Parse(cc, args)
	if err != nil {
		cfg.Put.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: put requires one snapshot, got %v", cli.ErrUsage, args)
	}
	ctx := context.Background()
	reg, err := cfg.registry()
	if err != nil {
		return err
	}
	t, err := readSnapshot(ctx, reg, cc, args[0])
	if err != nil {
		return err
	}
	l, closeStore, err := cfg.ledger()
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeStore()) }()

	opts := ledger.CommitOptions{Step: int64(cfg.Step), Cap: access.System()}
	var pk ledger.PK
	if cfg.ID > 0 {
		pk, err = l.Commit(ctx, int64(cfg.ID), t, opts)
	} else {
		pk, err = l.Create(ctx, t, opts)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cc.Out, pk)
	return err
}

func get(cfg *GetConfig, cc *cli.Context, args []string) (err error) {
	args, err = cfg.Get.Parse(cc, args)
	if err != nil {
		cfg.Get.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: get requires one pk, got %v", cli.ErrUsage, args)
	}
	pk, err := ledger.ParsePK(args[0])
	if err != nil {
		return fmt.Errorf("%w: %w", cli.ErrUsage, err)
	}
	l, closeStore, err := cfg.ledger()
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeStore()) }()

	t, err := l.Load(context.Background(), pk)
	if err != nil {
		return err
	}
	var d []byte
	if cfg.JSON {
		d, err = t.ExportJSON()
	} else {
		d, err = t.MarshalSnapshot()
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cc.Out, "%s\n", d)
	return err
}

func versions(cfg *VersionsConfig, cc *cli.Context, args []string) (err error) {
	args, err = cfg.Versions.Parse(cc, args)
	if err != nil {
		cfg.Versions.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: versions requires one id, got %v", cli.ErrUsage, args)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad id %q", cli.ErrUsage, args[0])
	}
	l, closeStore, err := cfg.ledger()
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeStore()) }()

	info, err := l.VersionInfo(context.Background(), id)
	if err != nil {
		return err
	}
	fmt.Fprintln(cc.Out, info)
	for _, v := range info.Sorted() {
		vd := info.Versions[v]
		mark := ""
		if vd.Live {
			mark = " live"
		}
		fmt.Fprintf(cc.Out, "%d step=%d modified=%s by=%d%s\n",
			v, vd.Step, vd.ModifiedAt.Format(time.RFC3339), vd.ModifiedBy, mark)
	}
	return nil
}

func rm(cfg *RmConfig, cc *cli.Context, args []string) (err error) {
	args, err = cfg.Rm.Parse(cc, args)
	if err != nil {
		cfg.Rm.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: rm requires one pk, got %v", cli.ErrUsage, args)
	}
	pk, err := ledger.ParsePK(args[0])
	if err != nil || pk.IsNew() {
		return fmt.Errorf("%w: bad pk %q", cli.ErrUsage, args[0])
	}
	l, closeStore, err := cfg.ledger()
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeStore()) }()

	ctx := context.Background()
	if cfg.All {
		return l.Remove(ctx, pk.ID)
	}
	return l.RemoveVersion(ctx, pk)
}
