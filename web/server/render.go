package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/df07/go-spacetime-raytracer/pkg/core"
	"github.com/df07/go-spacetime-raytracer/pkg/export"
	"github.com/df07/go-spacetime-raytracer/pkg/renderer"
	"github.com/df07/go-spacetime-raytracer/pkg/scene"
)

// TileUpdate represents a single tile update sent via SSE
type TileUpdate struct {
	TileX       int    `json:"tileX"`
	TileY       int    `json:"tileY"`
	ImageData   string `json:"imageData"` // Base64 encoded PNG of just this tile
	PassNumber  int    `json:"passNumber"`
	TileNumber  int    `json:"tileNumber"`  // Current tile number in this pass (1-based)
	TotalTiles  int    `json:"totalTiles"`  // Total number of tiles in the image
	TotalPasses int    `json:"totalPasses"` // Total number of passes planned
}

// PassUpdate summarizes a finished pass
type PassUpdate struct {
	Event          string  `json:"event"`
	RenderID       string  `json:"renderId"`
	PassNumber     int     `json:"passNumber"`
	TotalPasses    int     `json:"totalPasses"`
	ElapsedMs      int64   `json:"elapsedMs"`
	TotalPixels    int     `json:"totalPixels"`
	TotalSamples   int     `json:"totalSamples"`
	AverageSamples float64 `json:"averageSamples"`
	MaxSamples     int     `json:"maxSamples"`
	MinSamples     int     `json:"minSamples"`
	MaxSamplesUsed int     `json:"maxSamplesUsed"`
	BodyCount      int     `json:"bodyCount"`
	Captured       int     `json:"captured"`
	Escaped        int     `json:"escaped"`
	Exhausted      int     `json:"exhausted"`
	DiskHits       int     `json:"diskHits"`
	IsLast         bool    `json:"isLast"`
}

// SSEEvent represents a unified SSE event for thread-safe writing
type SSEEvent struct {
	Type string `json:"type"` // "start", "console", "tile", "passComplete", "error", "complete"
	Data string `json:"data"` // JSON-encoded data
}

// RenderingPipeline contains the configured scene and frame renderer
type RenderingPipeline struct {
	ID       string
	Scene    *scene.Scene
	Renderer *renderer.FrameRenderer
}

// handleRender handles progressive rendering with real-time tile streaming via SSE
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	// Set SSE headers
	s.setSSEHeaders(w)

	ctx := r.Context()

	// Create unified SSE event channel for thread-safe writing
	sseEventChan := make(chan SSEEvent, 100)

	// Start single SSE writer goroutine; it drains the channel until the handler closes it
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeSSEEvents(w, ctx, sseEventChan)
	}()
	defer func() {
		close(sseEventChan)
		<-writerDone
	}()

	// Parse and validate request
	req, err := s.parseRenderRequest(r)
	if err != nil {
		s.handleError(ctx, sseEventChan, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	// Setup console logging and streaming
	renderID := uuid.NewString()
	consoleChan, webLogger := s.setupConsoleLogging(renderID)
	stopConsole := make(chan struct{})
	consoleDone := make(chan struct{})
	go func() {
		defer close(consoleDone)
		s.streamConsoleMessages(ctx, consoleChan, sseEventChan, stopConsole)
	}()
	defer func() {
		close(stopConsole)
		<-consoleDone
	}()

	pipeline, err := s.setupRenderingPipeline(req, renderID, webLogger)
	if err != nil {
		s.handleError(ctx, sseEventChan, err.Error())
		return
	}

	startData, _ := json.Marshal(map[string]interface{}{
		"renderId": renderID,
		"scene":    pipeline.Scene.Name,
		"width":    req.Width,
		"height":   req.Height,
	})
	s.sendEvent(ctx, sseEventChan, SSEEvent{Type: "start", Data: string(startData)})

	// Start rendering and stream events
	startTime := time.Now()
	renderOptions := renderer.RenderOptions{TileUpdates: true}
	passChan, tileChan, errChan := pipeline.Renderer.RenderProgressive(ctx, renderOptions)

	// Handle rendering events and send to unified channel
	s.handleRenderingEvents(ctx, sseEventChan, passChan, tileChan, errChan, pipeline, req, startTime)
}

// setSSEHeaders sets the required headers for Server-Sent Events
func (s *Server) setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// setupConsoleLogging creates console channel and web logger for a render
func (s *Server) setupConsoleLogging(renderID string) (chan ConsoleMessage, core.Logger) {
	consoleChan := make(chan ConsoleMessage, 50)
	webLogger := NewWebLogger(renderID, consoleChan)
	return consoleChan, webLogger
}

// writeSSEEvents handles writing all SSE events in a single goroutine (thread-safe)
func (s *Server) writeSSEEvents(w http.ResponseWriter, ctx context.Context, sseEventChan <-chan SSEEvent) {
	disconnected := false
	for event := range sseEventChan {
		if disconnected || ctx.Err() != nil {
			// Client is gone; keep draining so senders never block
			continue
		}

		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data); err != nil {
			disconnected = true
			continue
		}
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}
	}
}

// streamConsoleMessages forwards logger output until stop is closed, then
// flushes whatever is still buffered
func (s *Server) streamConsoleMessages(ctx context.Context, consoleChan <-chan ConsoleMessage, sseEventChan chan<- SSEEvent, stop <-chan struct{}) {
	forward := func(consoleMsg ConsoleMessage) {
		data, err := json.Marshal(consoleMsg)
		if err != nil {
			log.Printf("Error marshaling console message: %v", err)
			return
		}
		select {
		case sseEventChan <- SSEEvent{Type: "console", Data: string(data)}:
		case <-ctx.Done():
		default:
			// Channel full, skip message to avoid blocking
		}
	}

	for {
		select {
		case consoleMsg := <-consoleChan:
			forward(consoleMsg)
		case <-stop:
			for {
				select {
				case consoleMsg := <-consoleChan:
					forward(consoleMsg)
				default:
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// setupRenderingPipeline creates the frame and its progressive renderer
func (s *Server) setupRenderingPipeline(req *RenderRequest, renderID string, logger core.Logger) (*RenderingPipeline, error) {
	sceneObj, err := s.createScene(req)
	if err != nil {
		return nil, err
	}

	frame, err := sceneObj.Frame()
	if err != nil {
		return nil, err
	}

	config := renderer.ProgressiveConfig{
		TileSize:           DefaultTileSize,
		InitialSamples:     1,
		MaxSamplesPerPixel: req.MaxSamples,
		MaxPasses:          req.MaxPasses,
		NumWorkers:         0, // Auto-detect
		Sampling: renderer.SamplingConfig{
			AdaptiveMinSamples: req.AdaptiveMinSamples,
			AdaptiveThreshold:  req.AdaptiveThreshold,
		},
	}

	fr, err := renderer.NewFrameRenderer(frame, config, logger)
	if err != nil {
		return nil, err
	}
	return &RenderingPipeline{
		ID:       renderID,
		Scene:    sceneObj,
		Renderer: fr,
	}, nil
}

// handleRenderingEvents processes the main rendering event loop
func (s *Server) handleRenderingEvents(ctx context.Context, sseEventChan chan SSEEvent,
	passChan <-chan renderer.PassResult, tileChan <-chan renderer.TileCompletionResult, errChan <-chan error,
	pipeline *RenderingPipeline, req *RenderRequest, startTime time.Time) {

	for passChan != nil || tileChan != nil {
		select {
		case passResult, ok := <-passChan:
			if !ok {
				passChan = nil // Channel closed
				continue
			}
			s.handlePassComplete(ctx, sseEventChan, passResult, pipeline, req, startTime)

		case tileResult, ok := <-tileChan:
			if !ok {
				tileChan = nil // Channel closed
				continue
			}
			s.handleTileUpdate(ctx, sseEventChan, tileResult)

		case <-ctx.Done():
			// Client disconnected; the renderer stops before its next pass
			return
		}
	}

	if err := <-errChan; err != nil {
		s.handleError(ctx, sseEventChan, fmt.Sprintf("Rendering failed: %v", err))
		return
	}

	s.sendEvent(ctx, sseEventChan, SSEEvent{Type: "complete", Data: "Rendering completed"})
}

// handlePassComplete processes and sends pass completion events
func (s *Server) handlePassComplete(ctx context.Context, sseEventChan chan SSEEvent, passResult renderer.PassResult,
	pipeline *RenderingPipeline, req *RenderRequest, startTime time.Time) {
	stats := passResult.Stats
	passUpdate := PassUpdate{
		Event:          "passComplete",
		RenderID:       pipeline.ID,
		PassNumber:     passResult.PassNumber,
		TotalPasses:    req.MaxPasses,
		ElapsedMs:      time.Since(startTime).Milliseconds(),
		TotalPixels:    stats.TotalPixels,
		TotalSamples:   stats.TotalSamples,
		AverageSamples: stats.AverageSamples,
		MaxSamples:     stats.MaxSamples,
		MinSamples:     stats.MinSamples,
		MaxSamplesUsed: stats.MaxSamplesUsed,
		BodyCount:      len(pipeline.Renderer.Frame().Bodies),
		Captured:       stats.Outcomes.Captured,
		Escaped:        stats.Outcomes.Escaped,
		Exhausted:      stats.Outcomes.Exhausted,
		DiskHits:       stats.Outcomes.DiskHits,
		IsLast:         passResult.IsLast,
	}

	data, err := json.Marshal(passUpdate)
	if err != nil {
		log.Printf("Error marshaling pass update: %v", err)
		return
	}
	s.sendEvent(ctx, sseEventChan, SSEEvent{Type: "passComplete", Data: string(data)})
}

// handleTileUpdate processes and sends tile update events
func (s *Server) handleTileUpdate(ctx context.Context, sseEventChan chan SSEEvent, tileResult renderer.TileCompletionResult) {
	// Convert tile image to base64 PNG
	tileData, err := s.imageToBase64PNG(tileResult.TileImage)
	if err != nil {
		log.Printf("Error encoding tile image (%d, %d): %v", tileResult.TileX, tileResult.TileY, err)
		return
	}

	update := TileUpdate{
		TileX:       tileResult.TileX,
		TileY:       tileResult.TileY,
		ImageData:   tileData,
		PassNumber:  tileResult.PassNumber,
		TileNumber:  tileResult.TileNumber,
		TotalTiles:  tileResult.TotalTiles,
		TotalPasses: tileResult.TotalPasses,
	}

	data, err := json.Marshal(update)
	if err != nil {
		log.Printf("Error marshaling tile update: %v", err)
		return
	}
	s.sendEvent(ctx, sseEventChan, SSEEvent{Type: "tile", Data: string(data)})
}

// parseRenderRequest parses request parameters
func (s *Server) parseRenderRequest(r *http.Request) (*RenderRequest, error) {
	req := &RenderRequest{}

	// Parse common scene parameters using shared function
	if err := s.parseCommonSceneParams(r, req); err != nil {
		return nil, err
	}

	q := r.URL.Query()
	sampling := renderer.DefaultSamplingConfig()
	var err error
	if req.MaxSamples, err = parseIntParam(q, "maxSamples", 16, 1, 10000); err != nil {
		return nil, err
	}
	if req.MaxPasses, err = parseIntParam(q, "maxPasses", 5, 1, 10000); err != nil {
		return nil, err
	}
	if req.AdaptiveMinSamples, err = parseFloatParam(q, "adaptiveMinSamples", sampling.AdaptiveMinSamples, 0.01, 1.0); err != nil {
		return nil, err
	}
	if req.AdaptiveThreshold, err = parseFloatParam(q, "adaptiveThreshold", sampling.AdaptiveThreshold, 0, 0.5); err != nil {
		return nil, err
	}

	// Performance warning
	if req.Width*req.Height > 800*600 && req.MaxSamples > 100 {
		log.Printf("Render warning: Large image with high samples may render slowly")
	}

	return req, nil
}

// handleFrame renders one frame to completion and returns it as an image
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	fail := func(status int, msg string) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		http.Error(w, msg, status)
	}

	req, err := s.parseRenderRequest(r)
	if err != nil {
		fail(http.StatusBadRequest, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	formatName := r.URL.Query().Get("format")
	if formatName == "" {
		formatName = "png"
	}
	format, err := export.ParseFormat(formatName)
	if err != nil {
		fail(http.StatusBadRequest, err.Error())
		return
	}

	sceneObj, err := s.createScene(req)
	if err != nil {
		fail(http.StatusBadRequest, err.Error())
		return
	}
	if sceneObj.Params.EncodeGamma, err = parseBoolParam(r.URL.Query(), "gamma", !format.Linear()); err != nil {
		fail(http.StatusBadRequest, err.Error())
		return
	}

	frame, err := sceneObj.Frame()
	if err != nil {
		fail(http.StatusBadRequest, err.Error())
		return
	}

	config := renderer.DefaultProgressiveConfig()
	config.MaxSamplesPerPixel = req.MaxSamples
	config.MaxPasses = 1
	config.Sampling = renderer.SamplingConfig{
		AdaptiveMinSamples: req.AdaptiveMinSamples,
		AdaptiveThreshold:  req.AdaptiveThreshold,
	}

	logger := NewWebLogger(uuid.NewString(), nil)
	fr, err := renderer.NewFrameRenderer(frame, config, logger)
	if err != nil {
		fail(http.StatusBadRequest, err.Error())
		return
	}

	img, _, err := fr.Render(r.Context())
	if err != nil {
		fail(http.StatusInternalServerError, fmt.Sprintf("Rendering failed: %v", err))
		return
	}

	data, err := export.EncodeBytes(img, format)
	if err != nil {
		fail(http.StatusInternalServerError, fmt.Sprintf("Encoding failed: %v", err))
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", fmt.Sprintf("%s.%s", sceneObj.Name, format)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Printf("Error writing frame: %v", err)
	}
}

// imageToBase64PNG converts an image to base64-encoded PNG
func (s *Server) imageToBase64PNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// sendEvent queues an event unless the client has gone away
func (s *Server) sendEvent(ctx context.Context, sseEventChan chan<- SSEEvent, event SSEEvent) {
	select {
	case sseEventChan <- event:
	case <-ctx.Done():
	}
}

// handleError sends an error event to the SSE channel
func (s *Server) handleError(ctx context.Context, sseEventChan chan<- SSEEvent, message string) {
	s.sendEvent(ctx, sseEventChan, SSEEvent{Type: "error", Data: message})
}
