// asset3d is a CLI utility for importing, baking and loading 3D assets.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"go.uber.org/zap"

	"github.com/Faultbox/asset3d/internal/asset3d"
	"github.com/Faultbox/asset3d/internal/assets"
	"github.com/Faultbox/asset3d/internal/config"
	"github.com/Faultbox/asset3d/internal/document"
	"github.com/Faultbox/asset3d/internal/importer"
	"github.com/Faultbox/asset3d/internal/logger"
	"github.com/Faultbox/asset3d/internal/system"
	"github.com/Faultbox/asset3d/pkg/math"
	"github.com/Faultbox/asset3d/pkg/scene"
)

func main() {
	config.ParseFlags()
	args := config.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	command := args[0]
	rest := args[1:]
	logger.Debug("Configuration loaded",
		zap.String("command", command),
		zap.String("root", cfg.Assets.Root),
		zap.Int("workers", cfg.Assets.Workers),
		zap.Float64("sample_rate", cfg.Animation.SampleRate))

	switch command {
	case "inspect", "i":
		err = cmdInspect(rest)
	case "load":
		err = cmdLoad(cfg, rest)
	case "tracks":
		err = cmdTracks(cfg, rest)
	case "config":
		err = cmdConfig(cfg, rest)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		logger.Error("Command failed", zap.String("command", command), zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logger.Sync()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`asset3d - 3D asset import and loading utility

Usage:
  asset3d [flags] <command> [options]

Commands:
  inspect [-dump] <file>        Import a file and show its scene graph
  load [-timeout d] <path>      Load through the asset subsystem and show the entity tree
  tracks <file>                 Bake animations and show their tracks
  config [-save]                Show the effective config, or save it as the user default

Flags:
  -config <file>   Config file (default ./asset3d.yaml)
  -root <dir>      Directory load paths are resolved against
  -workers <n>     Background import workers
  -sample-rate <r> Baking rate in samples per second
  -slerp           Interpolate rotations spherically
  -debug           Debug logging

Examples:
  asset3d inspect models/tree.x
  asset3d -root models load tree.x
  asset3d -sample-rate 30 tracks models/tree.x
  asset3d -workers 8 config -save`)
}

func cmdInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dump := fs.Bool("dump", false, "Dump the full scene structure")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: asset3d inspect [-dump] <file>")
	}

	im := importer.New(logger.Named("importer"))
	imp, err := im.ImportFile(fs.Arg(0))
	if err != nil {
		return err
	}

	if *dump {
		dumper := spew.NewDefaultConfig()
		dumper.DisableCapacities = true
		dumper.DisablePointerAddresses = true
		dumper.Dump(imp.Scene)
		return nil
	}

	sc := imp.Scene
	fmt.Printf("File:       %s\n", imp.ID)
	fmt.Printf("Format:     %s\n", imp.Format)
	fmt.Printf("Invert V:   %v\n", imp.InvertTexcoordY)
	fmt.Printf("Nodes:      %d\n", sc.NodeCount())
	fmt.Println()

	fmt.Println("Hierarchy:")
	printNode(sc.Root, 1)

	if len(sc.Meshes) > 0 {
		fmt.Println()
		fmt.Println("Meshes:")
		for i, m := range sc.Meshes {
			fmt.Printf("  [%d] %-16s %5d verts %5d faces normals=%v texcoords=%v\n",
				i, m.Name, len(m.Vertices), len(m.Faces), m.HasNormals(), m.HasTexCoords())
		}
	}

	if len(sc.Animations) > 0 {
		fmt.Println()
		fmt.Println("Animations:")
		for _, a := range sc.Animations {
			fmt.Printf("  %-16s %8.1f ticks @ %g/s, %d channels\n", a.Name, a.Duration, a.TicksPerSecond, len(a.Channels))
			for _, ch := range a.Channels {
				fmt.Printf("    %-14s pos=%d rot=%d scale=%d\n",
					ch.NodeName, len(ch.PositionKeys), len(ch.RotationKeys), len(ch.ScalingKeys))
			}
		}
	}
	return nil
}

func printNode(n *scene.Node, depth int) {
	if n == nil {
		return
	}
	t, _, s := n.Transform.Decompose()
	fmt.Printf("%s%s  t=(%.3g, %.3g, %.3g) s=(%.3g, %.3g, %.3g)",
		strings.Repeat("  ", depth), n.Name, t.X, t.Y, t.Z, s.X, s.Y, s.Z)
	if len(n.Meshes) > 0 {
		fmt.Printf("  meshes=%v", n.Meshes)
	}
	fmt.Println()
	for _, c := range n.Children {
		printNode(c, depth+1)
	}
}

func cmdLoad(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	timeout := fs.Duration("timeout", 30*time.Second, "Give up after this long")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: asset3d load [-timeout d] <path>")
	}

	opts := assets.OptionsFromConfig(cfg)
	opts.Log = logger.Named("assets")
	mgr := assets.NewManager(opts)

	sys := system.New(logger.Named("system"))
	sys.Add(mgr)
	defer sys.Close()

	doc := sys.Document()
	host, err := doc.AppendEntity(document.NoEntity, "host", "host")
	if err != nil {
		return err
	}
	doc.SetProperty(host, asset3d.PropTransform, document.Matrix4(math.Identity()))
	doc.SetProperty(host, mgr.PropertyKey(), document.String(fs.Arg(0)))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	start := time.Now()
	if err := sys.Run(ctx, 10*time.Millisecond, func() bool { return !mgr.Loading() }); err != nil {
		return err
	}

	path := mgr.Resolve(fs.Arg(0))
	if st := mgr.State(fs.Arg(0)); st != assets.StateLoaded {
		return fmt.Errorf("%s: %s", path, st)
	}

	logger.Sugar.Infof("Loaded %s in %v", path, time.Since(start).Round(time.Millisecond))
	fmt.Println()
	printEntity(doc, host, 0)

	fmt.Println()
	fmt.Println("Resources:")
	for _, key := range doc.ResourceKeys() {
		fmt.Printf("  %s\n", key)
	}
	return nil
}

func printEntity(doc *document.Document, id document.EntityID, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Printf("%s%s (%s)\n", indent, doc.Name(id), doc.Kind(id))
	for _, key := range doc.Properties(id) {
		v, _ := doc.Property(id, key)
		fmt.Printf("%s  .%-16s %s\n", indent, key, document.Describe(v))
	}
	if v, err := doc.Eval(id, asset3d.PropTransform); err == nil {
		if m, ok := v.(document.Matrix4); ok {
			t, _, _ := math.Mat4(m).Decompose()
			fmt.Printf("%s  = world position (%.3g, %.3g, %.3g)\n", indent, t.X, t.Y, t.Z)
		}
	}
	for _, c := range doc.Children(id) {
		printEntity(doc, c, depth+1)
	}
}

func cmdTracks(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: asset3d tracks <file>")
	}

	opts := assets.OptionsFromConfig(cfg)
	a, err := asset3d.Load(importer.New(logger.Named("importer")), args[0], asset3d.Options{Bake: opts.Bake})
	if err != nil {
		return err
	}

	if len(a.Animations) == 0 {
		fmt.Println("No animations")
		return nil
	}
	for _, ts := range a.Animations {
		fmt.Printf("%s  duration=%v tracks=%d\n", ts.Name, ts.Duration(), len(ts.Tracks))
		for _, tr := range ts.Tracks {
			fmt.Printf("  %-28s %5d samples  loop=%s time=%s\n",
				tr.Property, len(tr.Curve.Samples), tr.Loop, tr.CurveTime)
		}
	}
	return nil
}

func cmdConfig(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	save := fs.Bool("save", false, "Write the effective config to the user config directory")
	fs.Parse(args)

	if *save {
		if err := cfg.Save(); err != nil {
			return err
		}
		logger.Info("Config saved", zap.String("dir", config.ConfigDir()))
		return nil
	}

	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	os.Stdout.Write(data)
	return nil
}
