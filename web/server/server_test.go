package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/mrjoshuak/go-openexr/exr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wide-pair.yaml"), []byte(`name: Wide Pair
group: Binaries
preset: binary
width: 320
height: 180
`), 0o644))
	return NewServer(0, dir)
}

func get(t *testing.T, s *Server, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

// readBody transparently decompresses gzip responses
func readBody(t *testing.T, rec *httptest.ResponseRecorder) []byte {
	t.Helper()
	if rec.Header().Get("Content-Encoding") != "gzip" {
		return rec.Body.Bytes()
	}
	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	return data
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(readBody(t, rec), &out))
	return out
}

func TestHandleHealth(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeJSON(t, rec)["status"])
}

func TestHandleScenes(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/scenes", "Accept-Encoding", "gzip")
	require.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Groups []struct {
			Name   string `json:"name"`
			Scenes []struct {
				ID string `json:"id"`
			} `json:"scenes"`
		} `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(readBody(t, rec), &response))
	require.Len(t, response.Groups, 2)
	assert.Len(t, response.Groups[0].Scenes, 3)
	assert.Equal(t, "file:wide-pair", response.Groups[1].Scenes[0].ID)
}

func TestHandleSceneConfig(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/api/scene-config?scene=binary", "Accept-Encoding", "gzip")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Len(t, body["bodies"], 2)
	defaults := body["defaults"].(map[string]interface{})
	assert.Equal(t, 16.0, defaults["cameraDistance"])
	assert.Equal(t, "stars", defaults["background"])

	rec = get(t, s, "/api/scene-config?scene=file:wide-pair")
	require.Equal(t, http.StatusOK, rec.Code)
	defaults = decodeJSON(t, rec)["defaults"].(map[string]interface{})
	assert.Equal(t, 320.0, defaults["width"])

	for _, name := range []string{"nine", "../etc/passwd", "scenes/wide-pair.yaml", "file:../x"} {
		rec = get(t, s, "/api/scene-config?scene="+url.QueryEscape(name))
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
}

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		query    string
		expected int
		wantErr  bool
	}{
		{"", 7, false},
		{"n=12", 12, false},
		{"n=1", 1, false},
		{"n=0", 0, true},
		{"n=101", 0, true},
		{"n=abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			values, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			got, err := parseIntParam(values, "n", 7, 1, 100)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseFloatParam(t *testing.T) {
	tests := []struct {
		query    string
		expected float64
		wantErr  bool
	}{
		{"", 0.5, false},
		{"f=0.25", 0.25, false},
		{"f=2", 0, true},
		{"f=NaN", 0, true},
		{"f=x", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			values, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			got, err := parseFloatParam(values, "f", 0.5, 0, 1)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseBoolParam(t *testing.T) {
	values := url.Values{"a": {"true"}, "b": {"0"}, "c": {"TRUE"}, "d": {"maybe"}}

	got, err := parseBoolParam(values, "a", false)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = parseBoolParam(values, "b", true)
	require.NoError(t, err)
	assert.False(t, got)

	got, err = parseBoolParam(values, "c", false)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = parseBoolParam(values, "missing", true)
	require.NoError(t, err)
	assert.True(t, got)

	_, err = parseBoolParam(values, "d", false)
	assert.Error(t, err)
}

func TestParseRenderRequest(t *testing.T) {
	s := newTestServer(t)

	req, err := s.parseRenderRequest(httptest.NewRequest(http.MethodGet, "/api/render?scene=triple", nil))
	require.NoError(t, err)
	assert.Equal(t, "triple", req.Scene)
	assert.Equal(t, 800, req.Width)
	assert.Equal(t, 20.0, req.CameraDistance)
	assert.Equal(t, "stars", req.Background)
	assert.True(t, req.Disk)
	assert.Equal(t, 16, req.MaxSamples)

	req, err = s.parseRenderRequest(httptest.NewRequest(http.MethodGet,
		"/api/render?width=64&height=32&disk=false&overlay=true&background=checker&stepSize=0.05&maxPasses=2", nil))
	require.NoError(t, err)
	assert.Equal(t, "single", req.Scene)
	assert.Equal(t, 64, req.Width)
	assert.Equal(t, 32, req.Height)
	assert.False(t, req.Disk)
	assert.True(t, req.Overlay)
	assert.Equal(t, "checker", req.Background)
	assert.Equal(t, 0.05, req.StepSize)
	assert.Equal(t, 2, req.MaxPasses)

	sceneObj, err := s.createScene(req)
	require.NoError(t, err)
	assert.Equal(t, 64, sceneObj.Width)
	assert.False(t, sceneObj.Params.DiskEnabled)
	assert.True(t, sceneObj.Params.OverlayEnabled)

	for _, query := range []string{"width=5", "stepSize=0", "maxSamples=0", "scene=quad", "disk=sometimes"} {
		_, err := s.parseRenderRequest(httptest.NewRequest(http.MethodGet, "/api/render?"+query, nil))
		assert.Error(t, err, query)
	}

	req, err = s.parseRenderRequest(httptest.NewRequest(http.MethodGet, "/api/render?background=plaid", nil))
	require.NoError(t, err)
	_, err = s.createScene(req)
	assert.Error(t, err)
}

// sseEvents splits an SSE body into (event, data) pairs
func sseEvents(t *testing.T, body string) [][2]string {
	t.Helper()
	var events [][2]string
	var event string
	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			events = append(events, [2]string{event, strings.TrimPrefix(line, "data: ")})
		}
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestHandleRender_StreamsPasses(t *testing.T) {
	rec := get(t, newTestServer(t),
		"/api/render?width=24&height=16&maxSamples=2&maxPasses=2&maxSteps=150&background=checker")
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := sseEvents(t, rec.Body.String())
	require.NotEmpty(t, events)
	assert.Equal(t, "start", events[0][0])
	assert.Equal(t, "complete", events[len(events)-1][0])

	var passes []PassUpdate
	tiles := 0
	for _, e := range events {
		switch e[0] {
		case "error":
			t.Fatalf("unexpected error event: %s", e[1])
		case "tile":
			var tile TileUpdate
			require.NoError(t, json.Unmarshal([]byte(e[1]), &tile))
			assert.NotEmpty(t, tile.ImageData)
			tiles++
		case "passComplete":
			var p PassUpdate
			require.NoError(t, json.Unmarshal([]byte(e[1]), &p))
			passes = append(passes, p)
		}
	}

	require.Len(t, passes, 2)
	assert.Equal(t, 1, passes[0].PassNumber)
	assert.True(t, passes[1].IsLast)
	assert.Equal(t, 24*16, passes[1].TotalPixels)
	assert.Equal(t, 1, passes[1].BodyCount)
	assert.Equal(t, passes[1].TotalSamples, passes[1].Captured+passes[1].Escaped)
	assert.NotEmpty(t, passes[0].RenderID)
	assert.Equal(t, passes[0].RenderID, passes[1].RenderID)
	assert.Greater(t, tiles, 0)
}

func TestHandleRender_InvalidRequest(t *testing.T) {
	events := sseEvents(t, get(t, newTestServer(t), "/api/render?width=5").Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0][0])
	assert.Contains(t, events[0][1], "width")
}

func TestHandleFrame_PNG(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/frame?width=24&height=16&maxSamples=1&maxSteps=150")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 24, img.Bounds().Dx())
	assert.Equal(t, 16, img.Bounds().Dy())
}

func TestHandleFrame_EXR(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/frame?format=exr&width=16&height=16&maxSamples=1&maxSteps=150")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/x-exr", rec.Header().Get("Content-Type"))

	data := rec.Body.Bytes()
	img, err := exr.Decode(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
}

func TestHandleFrame_Errors(t *testing.T) {
	s := newTestServer(t)
	for _, query := range []string{"format=gif", "width=1", "gamma=perhaps", "scene=nine"} {
		rec := get(t, s, "/api/frame?"+query)
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestHandleInspect(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/api/inspect?width=33&height=33&x=16&y=16")
	require.Equal(t, http.StatusOK, rec.Code)

	var response InspectResponse
	require.NoError(t, json.Unmarshal(readBody(t, rec), &response))
	assert.Equal(t, "captured", response.Outcome)
	assert.Equal(t, "capture", response.Termination)
	assert.Greater(t, response.Steps, 0)
	require.NotNil(t, response.Body)
	assert.Equal(t, 1.0, response.Body["rs"])
	assert.Equal(t, "#000000", response.Color)

	// A corner ray of the edge-on single hole escapes
	rec = get(t, s, "/api/inspect?width=33&height=33&x=0&y=0&cameraElevation=1.5708&disk=false")
	require.Equal(t, http.StatusOK, rec.Code)
	response = InspectResponse{}
	require.NoError(t, json.Unmarshal(readBody(t, rec), &response))
	assert.Equal(t, "escaped", response.Outcome)
	assert.Nil(t, response.Body)
	assert.Greater(t, response.Deflection, 0.0)
}

func TestHandleInspect_Errors(t *testing.T) {
	s := newTestServer(t)
	for _, query := range []string{"x=1", "x=a&y=1", "x=1&y=b", "x=-1&y=0", "x=0&y=40&height=33", "x=0&y=0&scene=nine"} {
		rec := get(t, s, "/api/inspect?"+query)
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestStaticFiles(t *testing.T) {
	s := newTestServer(t)
	s.staticDir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(s.staticDir, "index.html"), []byte("<html>spacetime</html>"), 0o644))

	rec := get(t, s, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "spacetime")
}
