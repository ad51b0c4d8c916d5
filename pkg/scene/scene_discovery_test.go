package scene

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTitleCase(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"binary-lens", "Binary Lens"},
		{"edge_on", "Edge On"},
		{"my-custom-scene", "My Custom Scene"},
		{"simple", "Simple"},
		{"UPPER-case", "Upper Case"},
		{"", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			result := titleCase(tc.input)
			if result != tc.expected {
				t.Errorf("titleCase(%q) = %q, want %q", tc.input, result, tc.expected)
			}
		})
	}
}

func writeScene(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseSceneMetadata(t *testing.T) {
	testCases := []struct {
		name     string
		content  string
		expected SceneInfo
	}{
		{
			name: "complete_metadata.yaml",
			content: `name: Binary Lens
variant: Late Orbit
description: Two black holes a quarter orbit in
group: Binaries
preset: binary
`,
			expected: SceneInfo{
				ID:          "file:complete_metadata",
				Name:        "Binary Lens",
				DisplayName: "Binary Lens - Late Orbit",
				Description: "Two black holes a quarter orbit in",
				Group:       "Binaries",
				Type:        "file",
				Variant:     "Late Orbit",
				Bodies:      2,
			},
		},
		{
			name: "partial_metadata.yaml",
			content: `name: Pair
description: Explicit bodies
bodies:
  - position: [-3, 0, 0]
    rs: 1
  - position: [3, 0, 0]
    rs: 1
`,
			expected: SceneInfo{
				ID:          "file:partial_metadata",
				Name:        "Pair",
				DisplayName: "Pair",
				Description: "Explicit bodies",
				Group:       "Scene Files",
				Type:        "file",
				Bodies:      2,
			},
		},
		{
			name:    "no_metadata.yaml",
			content: "width: 100\n",
			expected: SceneInfo{
				ID:          "file:no_metadata",
				Name:        "No Metadata",
				DisplayName: "No Metadata",
				Group:       "Scene Files",
				Type:        "file",
				Bodies:      1,
			},
		},
	}

	dir := t.TempDir()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeScene(t, dir, tc.name, tc.content)

			result, err := ParseSceneMetadata(path)
			require.NoError(t, err)

			tc.expected.FilePath = path
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestParseSceneMetadata_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ParseSceneMetadata(filepath.Join(dir, "nonexistent.yaml"))
	assert.Error(t, err)

	_, err = ParseSceneMetadata(writeScene(t, dir, "broken.yaml", "name: [unclosed\n"))
	assert.Error(t, err)

	_, err = ParseSceneMetadata(writeScene(t, dir, "badpreset.yaml", "preset: nine\n"))
	assert.Error(t, err)
}

func TestListFileScenes(t *testing.T) {
	scenes, err := ListFileScenes("")
	require.NoError(t, err)
	assert.NotNil(t, scenes)
	assert.Empty(t, scenes)

	dir := t.TempDir()
	writeScene(t, dir, "zeta.yaml", "name: Zeta\n")
	writeScene(t, dir, "alpha.yaml", "name: Alpha\n")
	writeScene(t, dir, "broken.yaml", "name: [\n")
	writeScene(t, dir, "notes.txt", "not a scene")

	scenes, err = ListFileScenes(dir)
	require.NoError(t, err)
	require.Len(t, scenes, 2)
	assert.Equal(t, "Alpha", scenes[0].DisplayName)
	assert.Equal(t, "Zeta", scenes[1].DisplayName)
}

func TestListAllScenes(t *testing.T) {
	dir := t.TempDir()
	writeScene(t, dir, "lens.yaml", "name: Lens\ngroup: Lensing\n")
	writeScene(t, dir, "plain.yaml", "name: Plain\n")

	response, err := ListAllScenes(dir)
	require.NoError(t, err)
	require.Len(t, response.Groups, 3)

	// Built-in presets come first, then the other groups alphabetically
	assert.Equal(t, "Built-in Scenes", response.Groups[0].Name)
	assert.Equal(t, "Lensing", response.Groups[1].Name)
	assert.Equal(t, "Scene Files", response.Groups[2].Name)

	var ids []string
	for _, s := range response.Groups[0].Scenes {
		ids = append(ids, s.ID)
		assert.Equal(t, "builtin", s.Type)
		assert.NotEmpty(t, s.Description)
	}
	assert.Equal(t, []string{"single", "binary", "triple"}, ids)

	for _, group := range response.Groups {
		for _, s := range group.Scenes {
			assert.NotEmpty(t, s.ID)
			assert.NotEmpty(t, s.DisplayName)
			assert.Greater(t, s.Bodies, 0)
			if s.Type == "file" {
				assert.True(t, strings.HasPrefix(s.ID, "file:"), s.ID)
				assert.NotEmpty(t, s.FilePath)
			}
		}
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeScene(t, dir, "custom.yaml", "preset: triple\n")

	s, err := Load("file:custom", dir)
	require.NoError(t, err)
	assert.Len(t, s.Simulation.Bodies, 3)

	s, err = Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "custom", s.Name)

	s, err = Load("binary", dir)
	require.NoError(t, err)
	assert.Len(t, s.Simulation.Bodies, 2)

	for _, id := range []string{"file:", "file:../secret", "file:a/b", "unknown"} {
		_, err := Load(id, dir)
		assert.Error(t, err, id)
	}

	_, err = Load("file:custom", "")
	assert.Error(t, err)
}
