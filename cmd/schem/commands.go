package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	persistlog "voxelschem.ai/internal/persistence/log"
	"voxelschem.ai/internal/sim/materialize"
	"voxelschem.ai/internal/sim/registry"
	"voxelschem.ai/internal/sim/schematic"
	"voxelschem.ai/internal/sim/schematic/rotation"
	"voxelschem.ai/internal/sim/voxel"
)

func setCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "place one block in the world",
		ArgsUsage: "BLOCK",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "at", Required: true, Usage: "x,y,z"},
			&cli.BoolFlag{Name: "connect", Value: true, Usage: "recompute fence/wall connections"},
		},
		Action: func(c *cli.Context) error {
			if err := needArgs(c, 1, "--at x,y,z BLOCK"); err != nil {
				return err
			}
			pos, err := parseVec(c.String("at"))
			if err != nil {
				return err
			}
			d, err := voxel.Parse(c.Args().First())
			if err != nil {
				return err
			}
			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			w, err := e.openWorld()
			if err != nil {
				return err
			}
			w.SetBlock(pos, d, c.Bool("connect"))
			if err := w.Close(); err != nil {
				return err
			}
			color.Green("set %s to %s", pos, d)
			return nil
		},
	}
}

func saveCommand() *cli.Command {
	return &cli.Command{
		Name:      "save",
		Usage:     "capture a world region into a schematic file",
		ArgsUsage: "NAME",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Required: true, Usage: "first corner x,y,z"},
			&cli.StringFlag{Name: "to", Required: true, Usage: "second corner x,y,z"},
			&cli.BoolFlag{Name: "zstd", Usage: "wrap the file in a zstd frame"},
		},
		Action: func(c *cli.Context) error {
			if err := needArgs(c, 1, "--from x,y,z --to x,y,z NAME"); err != nil {
				return err
			}
			from, err := parseVec(c.String("from"))
			if err != nil {
				return err
			}
			to, err := parseVec(c.String("to"))
			if err != nil {
				return err
			}
			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			w, err := e.openWorld()
			if err != nil {
				return err
			}
			defer w.Close()

			path := e.schematicPath(c.Args().First())
			opts := schematic.SaveOptions{Compress: e.tun.CompressSaves || c.Bool("zstd")}
			s, err := schematic.StartSave(c.Context, path, w, from, to, opts).Wait(c.Context)
			if err != nil {
				return err
			}
			color.Green("saved %s blocks to %s (%s)", humanize.Comma(int64(s.Len())), path, fileSize(path))
			return nil
		},
	}
}

func pasteCommand() *cli.Command {
	return &cli.Command{
		Name:      "paste",
		Usage:     "paste a schematic into the world, a bounded number of blocks per tick",
		ArgsUsage: "NAME",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "at", Required: true, Usage: "anchor x,y,z"},
			&cli.Float64Flag{Name: "angle", Usage: "rotation about the vertical axis in degrees (snapped to quarter turns)"},
			&cli.IntFlag{Name: "rotate", Usage: "quarter turns (0..3) or degrees (multiple of 90); overrides --angle"},
			&cli.IntFlag{Name: "budget", Usage: "blocks per tick (default: changes_per_tick)"},
			&cli.BoolFlag{Name: "fast", Usage: "step ticks back to back instead of at tick_rate_hz"},
		},
		Action: func(c *cli.Context) error {
			if err := needArgs(c, 1, "--at x,y,z NAME"); err != nil {
				return err
			}
			anchor, err := parseVec(c.String("at"))
			if err != nil {
				return err
			}
			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			path := e.schematicPath(c.Args().First())
			s, err := schematic.Load(c.Context, path, e.view)
			if err != nil {
				return err
			}
			if !s.IsSupported() {
				return fmt.Errorf("%s has %d block(s) unknown to engine %s", path, s.UnknownCount(), e.view.Version())
			}

			w, err := e.openWorld()
			if err != nil {
				return err
			}
			defer w.Close()
			jobs := persistlog.NewJobLogger(e.tun.JobLogDir)
			defer jobs.Close()

			d := materialize.NewDispatcher(w, materialize.Config{
				TickRateHz:       e.tun.TickRateHz,
				ChangesPerTick:   e.tun.ChangesPerTick,
				MaxWritesPerTick: e.tun.MaxWritesPerTick,
				Shapes:           e.view,
				Sink:             jobs,
				Logger:           newLogger(c, "[dispatch] "),
			})

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			start := time.Now()
			angle := pasteAngle(c.Float64("angle"), c.Int("rotate"), c.IsSet("rotate"))
			p, targets, err := s.PasteWith(d, anchor, schematic.PasteOptions{
				Angle:  angle,
				Budget: c.Int("budget"),
			})
			if err != nil {
				return err
			}
			color.Cyan("pasting %s blocks from %s at %s (job %s, %d per tick)",
				humanize.Comma(int64(len(targets))), path, anchor, p.ID(), p.Budget())

			if c.Bool("fast") {
				err = d.Drain(ctx)
			} else {
				err = runUntilDone(ctx, d, p)
			}
			if err != nil {
				p.Cancel()
				d.Step()
			}

			r := p.Result()
			if r.Cancelled {
				color.Yellow("cancelled after %d tick(s): %s applied, %s discarded",
					r.Ticks, humanize.Comma(int64(r.Applied)), humanize.Comma(int64(r.Discarded)))
				return nil
			}
			color.Green("done in %d tick(s), %s: %s blocks applied",
				r.Ticks, time.Since(start).Round(time.Millisecond), humanize.Comma(int64(r.Applied)))
			if ok, n := s.Placed(w, anchor, angle); ok != n {
				color.Yellow("%d of %d blocks do not match after paste", n-ok, n)
			}
			return nil
		},
	}
}

func runUntilDone(ctx context.Context, d *materialize.Dispatcher, p *materialize.Pipeline) error {
	errc := make(chan error, 1)
	go func() { errc <- d.Run(ctx) }()
	select {
	case <-p.Done():
		d.Stop()
		<-errc
		return nil
	case err := <-errc:
		return err
	}
}

func infoCommand() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "describe schematic files",
		ArgsUsage: "FILE...",
		Action: func(c *cli.Context) error {
			if err := needArgs(c, 1, "FILE..."); err != nil {
				return err
			}
			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			bold := color.New(color.Bold)
			for _, name := range c.Args().Slice() {
				path := e.schematicPath(name)
				s, err := schematic.Load(c.Context, path, e.view)
				if err != nil {
					color.Red("%s: %v", path, err)
					continue
				}
				dim := s.Dimensions()
				bold.Printf("%s\n", path)
				fmt.Printf("  format version: %d\n", s.Version())
				fmt.Printf("  blocks:         %s\n", humanize.Comma(int64(s.Len())))
				fmt.Printf("  dimensions:     %dx%dx%d\n", dim.X, dim.Y, dim.Z)
				fmt.Printf("  file size:      %s\n", fileSize(path))
				if s.IsSupported() {
					color.Green("  supported on %s", e.view.Version())
				} else {
					color.Yellow("  %d unknown block(s) on %s", s.UnknownCount(), e.view.Version())
				}
			}
			return nil
		},
	}
}

func loadCommand() *cli.Command {
	return &cli.Command{
		Name:  "load",
		Usage: "load every schematic in schematic_dir into a registry and list it",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "owner", Value: "cli", Usage: "owner name for the loaded batch"},
			&cli.StringFlag{Name: "dir", Usage: "directory to scan (default: schematic_dir)"},
		},
		Action: func(c *cli.Context) error {
			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			dir := c.String("dir")
			if dir == "" {
				dir = e.tun.SchematicDir
			}
			reg := registry.New(registry.Config{
				Resolver: e.view,
				Workers:  e.tun.IOWorkers,
				Logger:   newLogger(c, "[registry] "),
			})
			owner := c.String("owner")
			res, err := reg.AddFromDir(c.Context, owner, dir, e.tun.SchematicGlob)
			if err != nil {
				return err
			}
			for _, name := range reg.Names(owner) {
				s, _ := reg.Get(owner, name)
				fmt.Printf("  %-32s %s blocks\n", name, humanize.Comma(int64(s.Len())))
			}
			color.Green("loaded %d", res.Loaded)
			if res.Skipped > 0 {
				color.Yellow("skipped %d", res.Skipped)
			}
			return nil
		},
	}
}

func jobsCommand() *cli.Command {
	return &cli.Command{
		Name:  "jobs",
		Usage: "list logged paste jobs",
		Action: func(c *cli.Context) error {
			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			entries, err := persistlog.ReadJobs(e.tun.JobLogDir)
			if err != nil {
				return err
			}
			for _, j := range entries {
				status := color.GreenString("complete")
				if j.Cancelled {
					status = color.YellowString("cancelled")
				}
				fmt.Printf("%s  %-24s %s  %s/%s blocks  %d tick(s)\n",
					j.LoggedAt, j.Label, status,
					humanize.Comma(int64(j.Applied)), humanize.Comma(int64(j.Total)), j.Ticks)
			}
			return nil
		},
	}
}

// pasteAngle returns the paste rotation in radians. An explicit rotate value
// wins over degrees.
func pasteAngle(degrees float64, rotate int, rotateSet bool) float64 {
	if rotateSet {
		return float64(rotation.NormalizeRotation(rotate)) * math.Pi / 2
	}
	return degrees * math.Pi / 180
}

func parseVec(s string) (voxel.Vec3i, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return voxel.Vec3i{}, fmt.Errorf("bad position %q: want x,y,z", s)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return voxel.Vec3i{}, fmt.Errorf("bad position %q: %w", s, err)
		}
		v[i] = n
	}
	return voxel.Vec3i{X: v[0], Y: v[1], Z: v[2]}, nil
}

func fileSize(path string) string {
	fi, err := os.Stat(path)
	if err != nil {
		return "?"
	}
	return humanize.Bytes(uint64(fi.Size()))
}
