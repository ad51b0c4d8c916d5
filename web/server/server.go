package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzhttp"

	"github.com/df07/go-spacetime-raytracer/pkg/core"
	"github.com/df07/go-spacetime-raytracer/pkg/scene"
)

// DefaultTileSize is the tile edge streamed to the browser
const DefaultTileSize = 64

// Server handles web requests for the spacetime raytracer
type Server struct {
	port      int
	scenesDir string
	staticDir string
}

// NewServer creates a new web server. scenesDir may be empty, in which case
// only the built-in presets are offered.
func NewServer(port int, scenesDir string) *Server {
	return &Server{port: port, scenesDir: scenesDir, staticDir: "static/"}
}

// RenderRequest represents a render request from the client. Scene values
// are used for every parameter the query leaves out.
type RenderRequest struct {
	Scene  string `json:"scene"` // Preset name or "file:<name>"
	Width  int    `json:"width"`
	Height int    `json:"height"`

	CameraDistance  float64 `json:"cameraDistance"`
	CameraAzimuth   float64 `json:"cameraAzimuth"`
	CameraElevation float64 `json:"cameraElevation"`
	CameraFOV       float64 `json:"cameraFov"`

	StepSize        float64 `json:"stepSize"`
	MaxSteps        int     `json:"maxSteps"`
	EscapeRadius    float64 `json:"escapeRadius"`
	Background      string  `json:"background"`
	Disk            bool    `json:"disk"`
	Overlay         bool    `json:"overlay"`
	DopplerExponent float64 `json:"dopplerExponent"`
	Exposure        float64 `json:"exposure"`
	SimTime         float64 `json:"simTime"`

	MaxSamples         int     `json:"maxSamples"`
	MaxPasses          int     `json:"maxPasses"`
	AdaptiveMinSamples float64 `json:"adaptiveMinSamples"`
	AdaptiveThreshold  float64 `json:"adaptiveThreshold"`

	sceneObj *scene.Scene
}

// Handler returns the router for every endpoint
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Serve static files
	mux.Handle("/", http.FileServer(http.Dir(s.staticDir)))

	// SSE and image endpoints stream or carry compressed payloads already
	mux.HandleFunc("/api/render", s.handleRender)
	mux.HandleFunc("/api/frame", s.handleFrame)

	// JSON endpoints
	mux.Handle("/api/health", gzhttp.GzipHandler(http.HandlerFunc(s.handleHealth)))
	mux.Handle("/api/scenes", gzhttp.GzipHandler(http.HandlerFunc(s.handleScenes)))
	mux.Handle("/api/scene-config", gzhttp.GzipHandler(http.HandlerFunc(s.handleSceneConfig)))
	mux.Handle("/api/inspect", gzhttp.GzipHandler(http.HandlerFunc(s.handleInspect)))

	return mux
}

// Start starts the web server
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	log.Printf("Starting web server on http://localhost%s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// handleHealth provides a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleScenes lists the built-in presets and the scene files
func (s *Server) handleScenes(w http.ResponseWriter, r *http.Request) {
	response, err := scene.ListAllScenes(s.scenesDir)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, response)
}

// parseCommonSceneParams loads the requested scene and applies the scene,
// camera and frame parameters shared by every endpoint
func (s *Server) parseCommonSceneParams(r *http.Request, req *RenderRequest) error {
	q := r.URL.Query()

	req.Scene = q.Get("scene")
	if req.Scene == "" {
		req.Scene = "single" // Default scene
	}
	sceneObj, err := s.loadScene(req.Scene)
	if err != nil {
		return err
	}

	if req.Width, err = parseIntParam(q, "width", clampInt(sceneObj.Width, 16, 2000), 16, 2000); err != nil {
		return err
	}
	if req.Height, err = parseIntParam(q, "height", clampInt(sceneObj.Height, 16, 2000), 16, 2000); err != nil {
		return err
	}

	cam := sceneObj.Camera
	if req.CameraDistance, err = parseFloatParam(q, "cameraDistance", cam.Distance, 2, 200); err != nil {
		return err
	}
	if req.CameraAzimuth, err = parseFloatParam(q, "cameraAzimuth", cam.Azimuth, -100, 100); err != nil {
		return err
	}
	if req.CameraElevation, err = parseFloatParam(q, "cameraElevation", cam.Elevation, 0, 3.2); err != nil {
		return err
	}
	if req.CameraFOV, err = parseFloatParam(q, "cameraFov", cam.FOV, 0.1, 3.0); err != nil {
		return err
	}

	p := sceneObj.Params
	if req.StepSize, err = parseFloatParam(q, "stepSize", p.StepSize, 0.001, 1.0); err != nil {
		return err
	}
	if req.MaxSteps, err = parseIntParam(q, "maxSteps", p.MaxSteps, 1, 20000); err != nil {
		return err
	}
	if req.EscapeRadius, err = parseFloatParam(q, "escapeRadius", p.EscapeRadius, 1, 1000); err != nil {
		return err
	}
	req.Background = q.Get("background")
	if req.Background == "" {
		req.Background = p.BackgroundMode.String()
	}
	if req.Disk, err = parseBoolParam(q, "disk", p.DiskEnabled); err != nil {
		return err
	}
	if req.Overlay, err = parseBoolParam(q, "overlay", p.OverlayEnabled); err != nil {
		return err
	}
	if req.DopplerExponent, err = parseFloatParam(q, "dopplerExponent", p.DopplerExponent, 0, 8); err != nil {
		return err
	}
	if req.Exposure, err = parseFloatParam(q, "exposure", p.Exposure, 0.01, 100); err != nil {
		return err
	}
	if req.SimTime, err = parseFloatParam(q, "simTime", 0, 0, 10000); err != nil {
		return err
	}

	req.sceneObj = sceneObj
	return nil
}

// loadScene resolves presets and "file:" IDs only; clients may not name paths
func (s *Server) loadScene(id string) (*scene.Scene, error) {
	isPath := strings.ContainsAny(id, `/\`) && !strings.HasPrefix(id, "file:")
	if isPath || strings.HasSuffix(id, ".yaml") || strings.HasSuffix(id, ".yml") {
		return nil, fmt.Errorf("unknown scene: %s", id)
	}
	return scene.Load(id, s.scenesDir)
}

// createScene applies the parsed request to its scene
func (s *Server) createScene(req *RenderRequest) (*scene.Scene, error) {
	sceneObj := req.sceneObj
	if sceneObj == nil {
		return nil, fmt.Errorf("unknown scene: %s", req.Scene)
	}

	background, err := core.ParseBackgroundMode(req.Background)
	if err != nil {
		return nil, err
	}

	sceneObj.Width = req.Width
	sceneObj.Height = req.Height
	sceneObj.Camera.Distance = req.CameraDistance
	sceneObj.Camera.Azimuth = req.CameraAzimuth
	sceneObj.Camera.Elevation = req.CameraElevation
	sceneObj.Camera.FOV = req.CameraFOV
	sceneObj.Params.StepSize = req.StepSize
	sceneObj.Params.MaxSteps = req.MaxSteps
	sceneObj.Params.EscapeRadius = req.EscapeRadius
	sceneObj.Params.BackgroundMode = background
	sceneObj.Params.DiskEnabled = req.Disk
	sceneObj.Params.OverlayEnabled = req.Overlay
	sceneObj.Params.DopplerExponent = req.DopplerExponent
	sceneObj.Params.Exposure = req.Exposure
	sceneObj.Advance(req.SimTime)
	return sceneObj, nil
}

// parseIntParam parses an integer parameter from URL query with validation
func parseIntParam(values url.Values, key string, defaultValue, min, max int) (int, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", key, value)
		}
		if parsed < min || parsed > max {
			return 0, fmt.Errorf("%s must be between %d and %d, got: %d", key, min, max, parsed)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

// parseFloatParam parses a float parameter from URL query with validation
func parseFloatParam(values url.Values, key string, defaultValue, min, max float64) (float64, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", key, value)
		}
		if !(parsed >= min && parsed <= max) {
			return 0, fmt.Errorf("%s must be between %g and %g, got: %g", key, min, max, parsed)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

// parseBoolParam parses a boolean parameter from URL query
func parseBoolParam(values url.Values, key string, defaultValue bool) (bool, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.ParseBool(strings.ToLower(value))
		if err != nil {
			return false, fmt.Errorf("invalid %s: %s", key, value)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// handleSceneConfig returns the default configuration for a scene
func (s *Server) handleSceneConfig(w http.ResponseWriter, r *http.Request) {
	sceneName := r.URL.Query().Get("scene")
	if sceneName == "" {
		sceneName = "single" // Default scene
	}

	sceneObj, err := s.loadScene(sceneName)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Unknown scene: " + sceneName})
		return
	}

	bodies := make([]map[string]interface{}, 0, len(sceneObj.Simulation.Bodies))
	for _, b := range sceneObj.Simulation.Bodies {
		bodies = append(bodies, map[string]interface{}{
			"position":  [3]float64{b.Position.X(), b.Position.Y(), b.Position.Z()},
			"velocity":  [3]float64{b.Velocity.X(), b.Velocity.Y(), b.Velocity.Z()},
			"rs":        b.Rs,
			"diskInner": b.DiskInnerMult * b.Rs,
			"diskOuter": b.DiskOuterMult * b.Rs,
		})
	}

	p := sceneObj.Params
	cam := sceneObj.Camera
	response := map[string]interface{}{
		"scene":       sceneName,
		"name":        sceneObj.Name,
		"description": sceneObj.Description,
		"bodies":      bodies,
		"defaults": map[string]interface{}{
			"width":           sceneObj.Width,
			"height":          sceneObj.Height,
			"cameraDistance":  cam.Distance,
			"cameraAzimuth":   cam.Azimuth,
			"cameraElevation": cam.Elevation,
			"cameraFov":       cam.FOV,
			"stepSize":        p.StepSize,
			"maxSteps":        p.MaxSteps,
			"escapeRadius":    p.EscapeRadius,
			"background":      p.BackgroundMode.String(),
			"disk":            p.DiskEnabled,
			"overlay":         p.OverlayEnabled,
			"dopplerExponent": p.DopplerExponent,
			"exposure":        p.Exposure,
			"time":            p.Time,
		},
		"limits": map[string]interface{}{
			"width":              map[string]int{"min": 16, "max": 2000},
			"height":             map[string]int{"min": 16, "max": 2000},
			"maxSteps":           map[string]int{"min": 1, "max": 20000},
			"maxSamples":         map[string]int{"min": 1, "max": 10000},
			"maxPasses":          map[string]int{"min": 1, "max": 10000},
			"stepSize":           map[string]float64{"min": 0.001, "max": 1.0},
			"cameraDistance":     map[string]float64{"min": 2, "max": 200},
			"cameraFov":          map[string]float64{"min": 0.1, "max": 3.0},
			"dopplerExponent":    map[string]float64{"min": 0, "max": 8},
			"exposure":           map[string]float64{"min": 0.01, "max": 100},
			"adaptiveMinSamples": map[string]float64{"min": 0.01, "max": 1.0},
			"adaptiveThreshold":  map[string]float64{"min": 0, "max": 0.5},
		},
	}

	writeJSON(w, http.StatusOK, response)
}
