package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/scott-cotton/cli"

	"github.com/signadot/tony-format/contentstore/ledger"
	"github.com/signadot/tony-format/contentstore/schema"
	"github.com/signadot/tony-format/contentstore/storage"
	"github.com/signadot/tony-format/contentstore/storage/badgerstore"
	"github.com/signadot/tony-format/contentstore/storage/fsstore"
)

type MainConfig struct {
	Schema string `cli:"name=schema desc='type definitions file (default $FXC_SCHEMA)'"`
	Store  string `cli:"name=store desc='file store directory (default $FXC_STORE)'"`
	Badger string `cli:"name=badger desc='badger database directory, used instead of -store'"`
	Color  bool   `cli:"name=color desc='output with color'"`

	Out      string
	CloseOut func() error

	Main *cli.Command
}

func (cfg *MainConfig) registry() (*schema.Registry, error) {
	path := cfg.Schema
	if path == "" {
		path = os.Getenv("FXC_SCHEMA")
	}
	if path == "" {
		return nil, fmt.Errorf("%w: no type definitions, use -schema or $FXC_SCHEMA", cli.ErrUsage)
	}
	types, err := schema.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error loading types from %s: %w", path, err)
	}
	reg := schema.NewRegistry()
	for _, t := range types {
		if err := reg.Register(t); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (cfg *MainConfig) backend() (storage.Backend, error) {
	if cfg.Badger != "" {
		bcfg := badgerstore.DefaultConfig()
		bcfg.Path = cfg.Badger
		bcfg.Logger = newLogger()
		bcfg.GCInterval = 0
		return badgerstore.Open(bcfg)
	}
	dir := cfg.Store
	if dir == "" {
		dir = os.Getenv("FXC_STORE")
	}
	if dir == "" {
		return nil, fmt.Errorf("%w: no store, use -store, -badger or $FXC_STORE", cli.ErrUsage)
	}
	return fsstore.Open(dir, 0o022, newLogger())
}

// ledger opens the configured backend; the returned function closes it.
func (cfg *MainConfig) ledger() (*ledger.Ledger, func() error, error) {
	reg, err := cfg.registry()
	if err != nil {
		return nil, nil, err
	}
	b, err := cfg.backend()
	if err != nil {
		return nil, nil, err
	}
	return ledger.New(b, reg, ledger.WithLogger(newLogger())), b.Close, nil
}

func (cfg *MainConfig) colors(w io.Writer) bool {
	if cfg.Color {
		return true
	}
	for _, opt := range cfg.Main.Opts {
		if opt.Name == "color" && opt.Value != nil {
			return false
		}
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd())
}

type InitConfig struct {
	*MainConfig
	Type string `cli:"name=type desc='type name'"`

	Init *cli.Command
}

type ValidateConfig struct {
	*MainConfig

	Validate *cli.Command
}

type ExportConfig struct {
	*MainConfig

	Export *cli.Command
}

type PathsConfig struct {
	*MainConfig
	Groups bool `cli:"name=groups desc='include group paths'"`

	Paths *cli.Command
}

type CreateableConfig struct {
	*MainConfig
	Path      string `cli:"name=path desc='group path to inspect'"`
	Recursive bool   `cli:"name=r desc='descend into existing groups'"`

	Createable *cli.Command
}

type DiffConfig struct {
	*MainConfig
	Reverse bool `cli:"name=r desc='reverse the diff'"`
	Merge   bool `cli:"name=merge desc='output a json merge patch'"`

	Diff *cli.Command
}

type PutConfig struct {
	*MainConfig
	ID   int `cli:"name=id desc='instance id to commit to, a new instance if unset'"`
	Step int `cli:"name=step desc='workflow step of the version'"`

	Put *cli.Command
}

type GetConfig struct {
	*MainConfig
	JSON bool `cli:"name=json desc='export as a plain json document'"`

	Get *cli.Command
}

type VersionsConfig struct {
	*MainConfig

	Versions *cli.Command
}

type RmConfig struct {
	*MainConfig
	All bool `cli:"name=all desc='remove the instance with every version'"`

	Rm *cli.Command
}
