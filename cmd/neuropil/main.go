// Command-line interface for label curation: relabeling, point-driven label transfer,
// PNG export and the curation HTTP server.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/janelia-flyem/neuropil/imageio"
	"github.com/janelia-flyem/neuropil/labels"
	"github.com/janelia-flyem/neuropil/npil"
	"github.com/janelia-flyem/neuropil/server"
	"github.com/janelia-flyem/neuropil/workspace"
)

var (
	// Display usage if true.
	showHelp = flag.Bool("help", false, "")

	// Run in verbose mode if true.
	runVerbose = flag.Bool("verbose", false, "")

	// Send log messages to a rotating file instead of stdout.
	logfile = flag.String("logfile", "", "")

	// TOML configuration for the serve command.
	configFile = flag.String("config", "", "")
)

const helpMessage = `
neuropil is a toolkit for curating neuron segmentation labels

Usage: neuropil [options] <command>

      -config     =string   TOML configuration file for the serve command.
      -logfile    =string   Send log messages to a rotating log file.
      -verbose    (flag)    Run in verbose mode.
  -h, -help       (flag)    Show help message

Paths may be a TIFF file, a single image or a directory of image slices.

Commands:

	about
	help
	info         <path>
	relabel      <input> <outdir>
	relabel-pair <dendrite> <axon> <outdir>
	transfer     <from> <to> <points.csv> [from-out=<dir>] [to-out=<dir>]
	export       <input> [dir=saved_labels_png]
	serve        [config.toml]

The "transfer" command moves each label under a point from the first volume to the second
and writes both results as PNG slices, by default into saved_labels_png/from and
saved_labels_png/to.
`

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = func() { fmt.Print(helpMessage) }
	flag.Parse()

	if flag.NArg() >= 1 && strings.ToLower(flag.Args()[0]) == "help" {
		*showHelp = true
	}
	if *showHelp || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}
	if *runVerbose {
		npil.SetLogMode(npil.DebugMode)
	}
	if *logfile != "" {
		logConfig := npil.LogConfig{Logfile: *logfile}
		logConfig.SetLogger()
	}

	// A missing .env is fine; settings then come from the real environment.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		npil.Warningf("Unable to read .env file: %v\n", err)
	}

	command := npil.Command(flag.Args())
	err := DoCommand(command)
	npil.Shutdown()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// DoCommand serves as a switchboard for commands.
func DoCommand(cmd npil.Command) error {
	if len(cmd) == 0 {
		return fmt.Errorf("Blank command!")
	}
	switch cmd.Name() {
	case "about":
		fmt.Println(npil.Versions())
		return nil
	case "info":
		return DoInfo(cmd)
	case "relabel":
		return DoRelabel(cmd)
	case "relabel-pair":
		return DoRelabelPair(cmd)
	case "transfer":
		return DoTransfer(cmd)
	case "export":
		return DoExport(cmd)
	case "serve":
		return DoServe(cmd)
	default:
		return fmt.Errorf("unknown command %q; try 'neuropil help'", cmd.Name())
	}
}

// DoInfo prints the shape, type, label count and memory use of a volume.
func DoInfo(cmd npil.Command) error {
	path := cmd.Argument(1)
	if path == "" {
		return fmt.Errorf("info command must be followed by the path to a volume")
	}
	vol, err := imageio.Load(path)
	if err != nil {
		return err
	}
	counts := labels.Count(vol)
	fmt.Printf("%s: %s\n", path, vol)
	fmt.Printf("  %s nonzero values\n", npil.Commas(int64(len(counts))))
	fmt.Printf("  memory: %s\n", npil.ByteSize(npil.MemSize(vol)))
	for i, lc := range counts {
		if i == 10 {
			fmt.Printf("  ... and %d more\n", len(counts)-10)
			break
		}
		fmt.Printf("  label %d: %s voxels\n", lc.Label, npil.Commas(int64(lc.Voxels)))
	}
	return nil
}

func relabelAndExport(input, outdir string) error {
	vol, err := imageio.Load(input)
	if err != nil {
		return err
	}
	timedLog := npil.NewTimeLog()
	relabeled, mapping := labels.Normalize(vol)
	timedLog.Debugf("Relabeled %s", input)
	fmt.Printf("Relabeled: shape %v\n", relabeled.Shape())
	fmt.Println(mapping)
	n, err := imageio.ExportSlices(relabeled, outdir)
	if err != nil {
		return err
	}
	fmt.Printf("Saved %d PNG files to %s\n", n, outdir)
	return nil
}

// DoRelabel relabels a volume to 1..N and exports it as PNG slices.
func DoRelabel(cmd npil.Command) error {
	input, outdir := cmd.Argument(1), cmd.Argument(2)
	if input == "" || outdir == "" {
		return fmt.Errorf("relabel command needs an input volume and an output directory")
	}
	return relabelAndExport(input, outdir)
}

// DoRelabelPair relabels a dendrite and an axon volume into subdirectories of outdir.
func DoRelabelPair(cmd npil.Command) error {
	dendrite, axon, outdir := cmd.Argument(1), cmd.Argument(2), cmd.Argument(3)
	if dendrite == "" || axon == "" || outdir == "" {
		return fmt.Errorf("relabel-pair command needs dendrite and axon volumes and an output directory")
	}
	if err := relabelAndExport(dendrite, filepath.Join(outdir, "dendrite")); err != nil {
		return fmt.Errorf("dendrite: %v", err)
	}
	if err := relabelAndExport(axon, filepath.Join(outdir, "axon")); err != nil {
		return fmt.Errorf("axon: %v", err)
	}
	return nil
}

// DoTransfer moves the labels under each point from one volume to another and exports both.
func DoTransfer(cmd npil.Command) error {
	fromPath, toPath, pointsPath := cmd.Argument(1), cmd.Argument(2), cmd.Argument(3)
	if fromPath == "" || toPath == "" || pointsPath == "" {
		return fmt.Errorf("transfer command needs source and destination volumes and a points CSV file")
	}
	settings := cmd.Settings()
	fromOut, found := settings["from-out"]
	if !found {
		fromOut = filepath.Join(imageio.DefaultExportDir, "from")
	}
	toOut, found := settings["to-out"]
	if !found {
		toOut = filepath.Join(imageio.DefaultExportDir, "to")
	}

	src, err := imageio.Load(fromPath)
	if err != nil {
		return err
	}
	dst, err := imageio.Load(toPath)
	if err != nil {
		return err
	}
	if wider := dst.DataType().Wider(src.DataType()); wider != dst.DataType() {
		if err := dst.SetDataType(wider); err != nil {
			return err
		}
	}
	f, err := os.Open(pointsPath)
	if err != nil {
		return err
	}
	pts, err := labels.ParsePoints(f)
	f.Close()
	if err != nil {
		return err
	}
	numPoints := pts.Len()
	delta, err := labels.Transfer(src, dst, pts)
	if err != nil {
		return err
	}
	fmt.Printf("Transferred %d labels (%s voxels) using %d points\n",
		len(delta.Moves), npil.Commas(int64(delta.Voxels())), numPoints)

	if _, err := imageio.ExportSlices(src, fromOut); err != nil {
		return err
	}
	if _, err := imageio.ExportSlices(dst, toOut); err != nil {
		return err
	}
	fmt.Printf("Labels transferred from '%s' to '%s'; results in %s and %s\n", fromPath, toPath, fromOut, toOut)
	return nil
}

// DoExport writes each slice of a label volume as a 16-bit PNG.
func DoExport(cmd npil.Command) error {
	input := cmd.Argument(1)
	if input == "" {
		return fmt.Errorf("export command must be followed by the path to a volume")
	}
	dir, found := cmd.Parameter("dir")
	if !found {
		dir = imageio.DefaultExportDir
	}
	vol, err := imageio.Load(input)
	if err != nil {
		return err
	}
	n, err := imageio.ExportSlices(vol, dir)
	if err != nil {
		return err
	}
	fmt.Printf("Saved %d PNG files to %s\n", n, dir)
	return nil
}

// DoServe loads the configured layers and runs the curation server until interrupted.
func DoServe(cmd npil.Command) error {
	filename := cmd.Argument(1)
	if filename == "" {
		filename = *configFile
	}
	config, err := server.LoadConfig(filename)
	if err != nil {
		return err
	}
	if *logfile == "" {
		config.Logging.SetLogger()
	}

	ws := workspace.New()
	if err := server.LoadLayers(ws, config.Layers); err != nil {
		return err
	}
	s, err := server.New(config, ws)
	if err != nil {
		return err
	}
	defer s.Close()

	// Capture ctrl+c and other interrupts.  Then handle graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx)
}
