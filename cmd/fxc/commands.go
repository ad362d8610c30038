package main

import (
	"github.com/scott-cotton/cli"
)

func MainCommand() *cli.Command {
	cfg := &MainConfig{}
	sOpts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	opts := append(sOpts, &cli.Opt{
		Name:        "o",
		Description: "output file (default stdout)",
		Type:        cli.NamedFuncOpt(cfg.outOpt, "(filepath)"),
	})

	return cli.NewCommandAt(&cfg.Main, "fxc").
		WithSynopsis("fxc [opts] command [opts]").
		WithDescription("fxc works with typed content trees and their versions.").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return fxcMain(cfg, cc, args)
		}).
		WithSubs(
			InitCommand(cfg),
			ValidateCommand(cfg),
			ExportCommand(cfg),
			PathsCommand(cfg),
			CreateableCommand(cfg),
			DiffCommand(cfg),
			PutCommand(cfg),
			GetCommand(cfg),
			VersionsCommand(cfg),
			RmCommand(cfg))
}

func InitCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &InitConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Init, "init").
		WithSynopsis("init -type <name>").
		WithDescription("write the initial snapshot of a type").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return initTree(cfg, cc, args)
		})
}

func ValidateCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &ValidateConfig{MainConfig: mainCfg}
	return cli.NewCommandAt(&cfg.Validate, "validate").
		WithAliases("v").
		WithSynopsis("validate [files]").
		WithDescription("report constraint violations of snapshots").
		WithRun(func(cc *cli.Context, args []string) error {
			return validate(cfg, cc, args)
		})
}

func ExportCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &ExportConfig{MainConfig: mainCfg}
	return cli.NewCommandAt(&cfg.Export, "export").
		WithAliases("x").
		WithSynopsis("export [files]").
		WithDescription("export snapshots as plain json documents").
		WithRun(func(cc *cli.Context, args []string) error {
			return export(cfg, cc, args)
		})
}

func PathsCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &PathsConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Paths, "paths").
		WithAliases("p").
		WithSynopsis("paths [-groups] file").
		WithDescription("list the paths of a snapshot in document order").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return paths(cfg, cc, args)
		})
}

func CreateableCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &CreateableConfig{MainConfig: mainCfg, Path: "/"}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Createable, "createable").
		WithAliases("c").
		WithSynopsis("createable [-path p] [-r] file").
		WithDescription("list the group and property instances which may still be created").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return createable(cfg, cc, args)
		})
}

func DiffCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &DiffConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Diff, "diff").
		WithAliases("d", "di").
		WithSynopsis("diff [-r] [-merge] a b").
		WithDescription("report the changes between two snapshots of the same type").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return diff(cfg, cc, args)
		})
}

func PutCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &PutConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Put, "put").
		WithSynopsis("put [-id n] [-step s] file").
		WithDescription("store a snapshot as a new instance or a new version of one").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return put(cfg, cc, args)
		})
}

func GetCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &GetConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Get, "get").
		WithAliases("g").
		WithSynopsis("get [-json] <id[.version|.MAX|.LIVE]>").
		WithDescription("write a stored version").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return get(cfg, cc, args)
		})
}

func VersionsCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &VersionsConfig{MainConfig: mainCfg}
	return cli.NewCommandAt(&cfg.Versions, "versions").
		WithSynopsis("versions <id>").
		WithDescription("list the stored versions of an instance").
		WithRun(func(cc *cli.Context, args []string) error {
			return versions(cfg, cc, args)
		})
}

func RmCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &RmConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Rm, "rm").
		WithSynopsis("rm [-all] <id[.version]>").
		WithDescription("remove a version, or with -all every version of an instance").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return rm(cfg, cc, args)
		})
}
