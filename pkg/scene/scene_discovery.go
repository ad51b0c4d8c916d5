package scene

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/df07/go-spacetime-raytracer/pkg/simulation"
)

const (
	builtinGroup = "Built-in Scenes"
	fileGroup    = "Scene Files"
	filePrefix   = "file:"
)

// SceneInfo represents a discovered scene with its metadata
type SceneInfo struct {
	ID          string `json:"id"`          // Unique identifier
	Name        string `json:"name"`        // Scene name
	DisplayName string `json:"displayName"` // UI display name
	Description string `json:"description"` // Optional description
	Group       string `json:"group"`       // Grouping category
	Type        string `json:"type"`        // "builtin" or "file"
	FilePath    string `json:"filePath"`    // Path to YAML file (file type only)
	Variant     string `json:"variant"`     // Variant name (optional)
	Bodies      int    `json:"bodies"`      // Number of bodies at load time
}

// SceneGroup represents a group of related scenes
type SceneGroup struct {
	Name   string      `json:"name"`
	Scenes []SceneInfo `json:"scenes"`
}

// ScenesResponse represents the complete response for /api/scenes
type ScenesResponse struct {
	Groups []SceneGroup `json:"groups"`
}

// FindScenesDir returns the first scenes directory found next to or above the
// working directory, or "" when there is none
func FindScenesDir() string {
	for _, path := range []string{"scenes", "../scenes"} {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return path
		}
	}
	return ""
}

// ListFileScenes scans dir for *.yaml scene files. A missing directory yields
// an empty list.
func ListFileScenes(dir string) ([]SceneInfo, error) {
	if dir == "" {
		return []SceneInfo{}, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan scenes directory: %w", err)
	}

	scenes := []SceneInfo{}
	for _, filePath := range files {
		info, err := ParseSceneMetadata(filePath)
		if err != nil {
			// Log warning but continue processing other files
			fmt.Printf("Warning: failed to parse metadata for %s: %v\n", filePath, err)
			continue
		}
		scenes = append(scenes, info)
	}

	sort.Slice(scenes, func(i, j int) bool {
		return scenes[i].DisplayName < scenes[j].DisplayName
	})
	return scenes, nil
}

// ParseSceneMetadata reads the descriptive fields of a scene file without building it
func ParseSceneMetadata(filePath string) (SceneInfo, error) {
	filename := filepath.Base(filePath)
	nameWithoutExt := strings.TrimSuffix(filename, filepath.Ext(filename))

	info := SceneInfo{
		ID:          filePrefix + nameWithoutExt,
		Name:        titleCase(nameWithoutExt),
		DisplayName: titleCase(nameWithoutExt),
		Group:       fileGroup,
		Type:        "file",
		FilePath:    filePath,
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return info, err
	}

	var meta struct {
		Name        string     `yaml:"name"`
		Description string     `yaml:"description"`
		Group       string     `yaml:"group"`
		Variant     string     `yaml:"variant"`
		Preset      string     `yaml:"preset"`
		Bodies      []bodyFile `yaml:"bodies"`
	}
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return info, fmt.Errorf("invalid scene yaml: %w", err)
	}

	if meta.Name != "" {
		info.Name = meta.Name
	}
	info.Description = meta.Description
	info.Variant = meta.Variant
	if meta.Group != "" {
		info.Group = meta.Group
	}

	info.Bodies = len(meta.Bodies)
	if info.Bodies == 0 {
		preset, err := simulation.ParsePreset(meta.Preset)
		if meta.Preset == "" {
			preset, err = simulation.PresetSingle, nil
		}
		if err != nil {
			return info, err
		}
		info.Bodies = len(simulation.New(preset).Bodies)
	}

	if info.Variant != "" {
		info.DisplayName = fmt.Sprintf("%s - %s", info.Name, info.Variant)
	} else {
		info.DisplayName = info.Name
	}
	return info, nil
}

// ListAllScenes returns the presets and the scene files in dir, grouped by category
func ListAllScenes(dir string) (ScenesResponse, error) {
	var response ScenesResponse

	var allScenes []SceneInfo
	for _, preset := range simulation.Presets {
		allScenes = append(allScenes, SceneInfo{
			ID:          preset.String(),
			Name:        titleCase(preset.String()),
			DisplayName: titleCase(preset.String()),
			Description: presetDescriptions[preset],
			Group:       builtinGroup,
			Type:        "builtin",
			Bodies:      len(simulation.New(preset).Bodies),
		})
	}

	fileScenes, err := ListFileScenes(dir)
	if err != nil {
		return response, fmt.Errorf("failed to list scene files: %w", err)
	}
	allScenes = append(allScenes, fileScenes...)

	// Group scenes by their Group field
	groupMap := make(map[string][]SceneInfo)
	for _, s := range allScenes {
		groupMap[s.Group] = append(groupMap[s.Group], s)
	}

	// Built-in first, then alphabetical
	var groupNames []string
	for groupName := range groupMap {
		if groupName != builtinGroup {
			groupNames = append(groupNames, groupName)
		}
	}
	sort.Strings(groupNames)

	response.Groups = append(response.Groups, SceneGroup{
		Name:   builtinGroup,
		Scenes: groupMap[builtinGroup],
	})
	for _, groupName := range groupNames {
		response.Groups = append(response.Groups, SceneGroup{
			Name:   groupName,
			Scenes: groupMap[groupName],
		})
	}

	return response, nil
}

// Load resolves a scene ID: "file:<name>" loads <dir>/<name>.yaml, a path
// ending in .yaml loads that file, anything else is a preset name
func Load(id, dir string) (*Scene, error) {
	switch {
	case strings.HasPrefix(id, filePrefix):
		name := strings.TrimPrefix(id, filePrefix)
		if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
			return nil, fmt.Errorf("invalid scene file name %q", name)
		}
		if dir == "" {
			return nil, fmt.Errorf("no scenes directory for %q", id)
		}
		return LoadFile(filepath.Join(dir, name+".yaml"))
	case strings.HasSuffix(id, ".yaml") || strings.HasSuffix(id, ".yml"):
		return LoadFile(id)
	default:
		return NewPreset(id)
	}
}

// titleCase converts a filename-style string to title case
// e.g., "binary-lens" -> "Binary Lens"
func titleCase(s string) string {
	// Replace hyphens and underscores with spaces
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "_", " ")

	// Title case each word
	words := strings.Fields(s)
	for i, word := range words {
		if len(word) > 0 {
			words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
		}
	}

	return strings.Join(words, " ")
}
