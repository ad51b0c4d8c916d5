package main

import (
	"flag"
	"log"
	"os"

	"github.com/df07/go-spacetime-raytracer/pkg/scene"
	"github.com/df07/go-spacetime-raytracer/web/server"
)

func main() {
	// Parse command line flags
	port := flag.Int("port", 8080, "Port to serve on")
	scenesDir := flag.String("scenes-dir", "", "Directory holding scene files (default: ./scenes or ../scenes)")
	flag.Parse()

	dir := *scenesDir
	if dir == "" {
		dir = scene.FindScenesDir()
	}

	// Create and start web server
	webServer := server.NewServer(*port, dir)

	log.Printf("Spacetime Raytracer Web Server")
	if dir != "" {
		log.Printf("Serving scene files from %s", dir)
	}
	log.Printf("Visit http://localhost:%d to start rendering", *port)

	if err := webServer.Start(); err != nil {
		log.Printf("Error starting server: %v", err)
		os.Exit(1)
	}
}
