package server

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/df07/go-spacetime-raytracer/pkg/core"
	"github.com/df07/go-spacetime-raytracer/pkg/renderer"
)

// InspectResponse represents the JSON response for pixel inspection
type InspectResponse struct {
	Outcome       string                 `json:"outcome"`     // "captured" or "escaped"
	Termination   string                 `json:"termination"` // "capture", "escape" or "exhausted"
	Steps         int                    `json:"steps"`
	Deflection    float64                `json:"deflection"` // Angle between the launch and exit directions, radians
	Direction     [3]float64             `json:"direction"`
	ExitDirection [3]float64             `json:"exitDirection"`
	Position      [3]float64             `json:"position"`
	DiskCrossings int                    `json:"diskCrossings"`
	Color         string                 `json:"color"` // Finished pixel color as #rrggbb
	Body          map[string]interface{} `json:"body,omitempty"`
}

// InspectResult contains everything known about one traced pixel
type InspectResult struct {
	Ray    core.Ray
	Sample renderer.Sample
	Color  core.Vec3
	Body   *core.Body // Capturing body, nil unless a horizon was entered
}

// inspectPixel traces the center ray of pixel (x, y) without jitter
func inspectPixel(frame core.Frame, x, y int) InspectResult {
	camera := renderer.NewCamera(frame.Camera, frame.Width, frame.Height, frame.FOV)
	color, sample := renderer.TracePixel(frame, x, y)

	result := InspectResult{
		Ray:    camera.PixelCenterRay(x, y),
		Sample: sample,
		Color:  color,
	}
	if i := sample.Result.BodyIndex; i >= 0 && i < len(frame.Bodies) {
		body := frame.Bodies[i]
		result.Body = &body
	}
	return result
}

func vecArray(v core.Vec3) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

func hexColor(c core.Vec3) string {
	c = c.Clamp(0, 1)
	return fmt.Sprintf("#%02x%02x%02x",
		int(math.Round(c.X*255)), int(math.Round(c.Y*255)), int(math.Round(c.Z*255)))
}

// handleInspect handles single-ray inspection requests
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	// Create request object for parameter parsing
	inspectReq := &RenderRequest{}

	// Parse common scene parameters using shared function
	if err := s.parseCommonSceneParams(r, inspectReq); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid scene parameters: " + err.Error()})
		return
	}

	// Parse pixel coordinates
	pixelX, err := strconv.Atoi(r.URL.Query().Get("x"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid x coordinate"})
		return
	}
	pixelY, err := strconv.Atoi(r.URL.Query().Get("y"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid y coordinate"})
		return
	}

	// Validate pixel coordinates
	if pixelX < 0 || pixelX >= inspectReq.Width || pixelY < 0 || pixelY >= inspectReq.Height {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Pixel coordinates out of bounds"})
		return
	}

	sceneObj, err := s.createScene(inspectReq)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	frame, err := sceneObj.Frame()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result := inspectPixel(frame, pixelX, pixelY)
	res := result.Sample.Result

	response := InspectResponse{
		Outcome:       res.Outcome.String(),
		Termination:   res.Termination.String(),
		Steps:         res.Steps,
		Deflection:    result.Ray.Direction.AngleTo(res.ExitDirection),
		Direction:     vecArray(result.Ray.Direction),
		ExitDirection: vecArray(res.ExitDirection),
		Position:      vecArray(res.Position),
		DiskCrossings: result.Sample.DiskCrossings,
		Color:         hexColor(result.Color),
	}
	if result.Body != nil {
		response.Body = map[string]interface{}{
			"index":     res.BodyIndex,
			"position":  vecArray(result.Body.Position),
			"rs":        result.Body.Rs,
			"diskInner": result.Body.DiskInner,
			"diskOuter": result.Body.DiskOuter,
		}
	}

	writeJSON(w, http.StatusOK, response)
}
