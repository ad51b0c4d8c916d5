package background

import (
	"math"

	"github.com/df07/go-spacetime-raytracer/pkg/core"
)

const (
	starCellsTheta = 60                 // Cells from pole to pole
	starCellsPhi   = 2 * starCellsTheta // Cells around the equator, square cells in angle
	starThreshold  = 0.7                // Cells whose hash exceeds this hold a visible star
	starSigma      = 0.09               // Glow width in cell units
)

// starHues are the discrete star color buckets: blue-white, warm-white, orange, red
var starHues = [4]core.Vec3{
	{X: 0.75, Y: 0.85, Z: 1.0},
	{X: 1.0, Y: 0.95, Z: 0.85},
	{X: 1.0, Y: 0.7, Z: 0.4},
	{X: 1.0, Y: 0.45, Z: 0.35},
}

// Starfield is a procedural sky of hashed point stars with gaussian glow
type Starfield struct {
	Sky       core.Vec3 // Base sky color between stars
	Intensity float64
}

// NewStarfield creates the default starfield
func NewStarfield() *Starfield {
	return &Starfield{
		Sky:       core.NewVec3(0.002, 0.002, 0.004),
		Intensity: 2.0,
	}
}

// Sample evaluates the stars of the 3x3 cell neighborhood around (theta, phi)
func (s *Starfield) Sample(theta, phi float64) core.Vec3 {
	u := theta / math.Pi * starCellsTheta
	v := (phi + math.Pi) / (2 * math.Pi) * starCellsPhi
	cu := int(math.Floor(u))
	cv := int(math.Floor(v))

	// A cell's longitudinal width shrinks toward the poles
	stretch := math.Max(math.Sin(theta), 1e-3)

	color := s.Sky
	for di := -1; di <= 1; di++ {
		ci := cu + di
		if ci < 0 || ci >= starCellsTheta {
			continue
		}
		for dj := -1; dj <= 1; dj++ {
			cj := cv + dj
			wrapped := ((cj % starCellsPhi) + starCellsPhi) % starCellsPhi

			h := cellHash(ci, wrapped, 0)
			if h < starThreshold {
				continue
			}
			brightness := (h - starThreshold) / (1 - starThreshold)

			// Star center within its cell, kept away from the cell border so the 3x3
			// neighborhood covers the whole glow
			cx := float64(ci) + 0.2 + 0.6*cellHash(ci, wrapped, 1)
			cy := float64(cj) + 0.2 + 0.6*cellHash(ci, wrapped, 2)

			dx := u - cx
			dy := (v - cy) * stretch
			glow := math.Exp(-(dx*dx + dy*dy) / (2 * starSigma * starSigma))
			if glow < 1e-4 {
				continue
			}

			hue := starHues[int(cellHash(ci, wrapped, 3)*float64(len(starHues)))%len(starHues)]
			color = color.Add(hue.Multiply(s.Intensity * brightness * glow))
		}
	}
	return color
}

// cellHash returns a deterministic value in [0, 1) for a cell and channel
func cellHash(i, j, channel int) float64 {
	h := uint64(i)*0x8DA6B343 ^ uint64(j)*0xD8163841 ^ uint64(channel)*0xCB1AB31F
	h ^= h >> 33
	h *= 0xFF51AFD7ED558CCD
	h ^= h >> 33
	h *= 0xC4CEB9FE1A85EC53
	h ^= h >> 33
	return float64(h>>11) / float64(1<<53)
}
