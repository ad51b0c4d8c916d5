package background

import (
	"math"

	"github.com/df07/go-spacetime-raytracer/pkg/core"
)

// CheckerCells is the number of cells along each angular axis
const CheckerCells = 20

// Checkerboard tiles the sky into a fixed angular grid of two alternating
// colors. It is exact, which makes lensing distortion easy to read.
type Checkerboard struct {
	Even core.Vec3
	Odd  core.Vec3
}

// NewCheckerboard creates the default two-tone checkerboard
func NewCheckerboard() *Checkerboard {
	return &Checkerboard{
		Even: core.NewVec3(0.8, 0.8, 0.8),
		Odd:  core.NewVec3(0.1, 0.1, 0.15),
	}
}

// Cell returns the grid cell containing (theta, phi)
func (c *Checkerboard) Cell(theta, phi float64) (int, int) {
	i := int(math.Floor(theta / math.Pi * CheckerCells))
	j := int(math.Floor((phi + math.Pi) / (2 * math.Pi) * CheckerCells))
	i = min(max(i, 0), CheckerCells-1)
	j = ((j % CheckerCells) + CheckerCells) % CheckerCells
	return i, j
}

// Sample returns the color of the cell containing (theta, phi)
func (c *Checkerboard) Sample(theta, phi float64) core.Vec3 {
	i, j := c.Cell(theta, phi)
	if (i+j)%2 == 0 {
		return c.Even
	}
	return c.Odd
}
