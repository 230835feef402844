package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"voxelschem.ai/internal/persistence/worldstore"
	"voxelschem.ai/internal/sim/catalogs"
	"voxelschem.ai/internal/sim/engineversion"
	"voxelschem.ai/internal/sim/tuning"
)

func main() {
	app := &cli.App{
		Name:  "schem",
		Usage: "capture, inspect and paste voxel schematics",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "tuning", Usage: "path to tuning.yaml (default: ./configs/tuning.yaml if present)"},
			&cli.StringFlag{Name: "world", Usage: "world database path (overrides world_db)"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "suppress log output"},
		},
		Commands: []*cli.Command{
			setCommand(),
			saveCommand(),
			pasteCommand(),
			infoCommand(),
			loadCommand(),
			jobsCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.New(os.Stderr, "[schem] ", 0).Fatal(err)
	}
}

type env struct {
	tun    tuning.Tuning
	cat    *catalogs.BlockCatalog
	view   *catalogs.View
	logger *log.Logger
}

func newLogger(c *cli.Context, prefix string) *log.Logger {
	if c.Bool("quiet") {
		return log.New(io.Discard, "", 0)
	}
	return log.New(os.Stderr, prefix, log.LstdFlags|log.Lmicroseconds)
}

func loadEnv(c *cli.Context) (*env, error) {
	tun := tuning.Defaults()
	tp := strings.TrimSpace(c.String("tuning"))
	if tp == "" {
		if _, err := os.Stat(filepath.Join("configs", "tuning.yaml")); err == nil {
			tp = filepath.Join("configs", "tuning.yaml")
		}
	}
	if tp != "" {
		t, err := tuning.Load(tp)
		if err != nil {
			return nil, fmt.Errorf("load tuning: %w", err)
		}
		tun = t
	}
	if w := strings.TrimSpace(c.String("world")); w != "" {
		tun.WorldDB = w
	}

	ver, err := engineversion.ResolveString(tun.EngineVersion)
	if err != nil {
		return nil, fmt.Errorf("engine version: %w", err)
	}
	cat, err := catalogs.LoadBlocks(tun.BlocksCatalog)
	if err != nil {
		return nil, fmt.Errorf("load block catalog: %w", err)
	}
	e := &env{tun: tun, cat: cat, view: cat.ForVersion(ver), logger: newLogger(c, "[schem] ")}
	e.logger.Printf("engine %s, %d block types (catalog %s)", ver, len(cat.Palette), shortDigest(cat.Digest))
	return e, nil
}

func (e *env) openWorld() (*worldstore.Store, error) {
	s, err := worldstore.Open(e.tun.WorldDB, e.view)
	if err != nil {
		return nil, fmt.Errorf("open world %s: %w", e.tun.WorldDB, err)
	}
	return s, nil
}

// schematicPath resolves a bare name against schematic_dir.
func (e *env) schematicPath(name string) string {
	if filepath.IsAbs(name) || strings.ContainsRune(name, filepath.Separator) {
		return name
	}
	return filepath.Join(e.tun.SchematicDir, name)
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

func needArgs(c *cli.Context, n int, usage string) error {
	if c.NArg() < n {
		return errors.New("usage: schem " + c.Command.Name + " " + usage)
	}
	return nil
}
