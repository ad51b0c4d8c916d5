// Command spacetime-tui is an interactive terminal viewer: it renders the
// scene every tick at terminal resolution and steers the camera and the
// simulation from the keyboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/df07/go-spacetime-raytracer/pkg/scene"
)

func main() {
	sceneID := flag.String("scene", "single", "Preset (single, binary, triple), file:<name> from the scenes directory, or a .yaml path")
	scenesDir := flag.String("scenes-dir", "", "Directory holding scene files (default: ./scenes or ../scenes)")
	workers := flag.Int("workers", 0, "Number of parallel workers (0 = auto-detect CPU count)")
	fps := flag.Int("fps", 30, "Target frames per second")
	logPath := flag.String("log", "", "Write render logs to this file")
	flag.Parse()

	dir := *scenesDir
	if dir == "" {
		dir = scene.FindScenesDir()
	}
	s, err := scene.Load(*sceneID, dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load scene: %v\n", err)
		os.Exit(1)
	}

	// Anything printed to stdout would tear the screen
	var out io.Writer = io.Discard
	if *logPath != "" {
		f, err := os.Create(*logPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	logger := log.New(out, "", log.LstdFlags)

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer screen.Fini()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	tick := time.Second / time.Duration(max(1, *fps))
	NewViewer(screen, s, *workers, logger).Run(ctx, tick)
}
