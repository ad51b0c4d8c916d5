// Package disk detects equatorial-plane crossings of bent rays and shades the
// thin accretion disk around each body.
package disk

import (
	"math"

	"github.com/df07/go-spacetime-raytracer/pkg/core"
)

// Disk temperature range in Kelvin, inner edge hottest
const (
	TCold = 2500.0
	THot  = 15000.0
)

// Blackbody fit validity range in Kelvin
const (
	MinBlackbodyTemp = 1000.0
	MaxBlackbodyTemp = 40000.0
)

// NovikovThorne returns the thin-disk luminosity profile
//
//	L(r) = (1/r²)(1 - √(r_isco/r)),   r_isco = 3 rs
//
// normalized by its value at r_isco·49/36. The true maximum sits at 25/16 r_isco
// and reads about 1.06 on this scale.
func NovikovThorne(r, rs float64) float64 {
	isco := core.ISCORadius(rs)
	if r <= isco {
		return 0
	}
	peak := isco * 49.0 / 36.0
	return luminosity(r, isco) / luminosity(peak, isco)
}

func luminosity(r, isco float64) float64 {
	return (1.0 - math.Sqrt(isco/r)) / (r * r)
}

// Temperature interpolates between TCold and THot by (inner/r)^0.75
func Temperature(r, inner float64) float64 {
	if r <= 0 {
		return THot
	}
	t := math.Pow(inner/r, 0.75)
	t = math.Max(0, math.Min(1, t))
	return TCold + (THot-TCold)*t
}

// Blackbody maps a temperature to a linear RGB color with unit peak channel,
// using the piecewise logarithmic and power-law fit to the Planck locus.
func Blackbody(kelvin float64) core.Vec3 {
	t := math.Max(MinBlackbodyTemp, math.Min(MaxBlackbodyTemp, kelvin)) / 100.0

	var r, g, b float64
	if t <= 66 {
		r = 255
		g = 99.4708025861*math.Log(t) - 161.1195681661
	} else {
		r = 329.698727446 * math.Pow(t-60, -0.1332047592)
		g = 288.1221695283 * math.Pow(t-60, -0.0755148492)
	}

	switch {
	case t >= 66:
		b = 255
	case t <= 19:
		b = 0
	default:
		b = 138.5177312231*math.Log(t-10) - 305.0447927307
	}

	// The fit is display-encoded; linearize so the compositor works in linear light
	srgb := core.NewVec3(r, g, b).Multiply(1.0 / 255.0).Clamp(0, 1)
	return core.NewVec3(math.Pow(srgb.X, 2.2), math.Pow(srgb.Y, 2.2), math.Pow(srgb.Z, 2.2))
}

// OrbitalSpeed is the Keplerian orbital speed √(rs/(2r)) in units of c
func OrbitalSpeed(r, rs float64) float64 {
	if r <= 0 {
		return 0
	}
	return math.Sqrt(rs / (2 * r))
}

// DopplerFactor returns g = 1/(1 + v·sinAzimuth). sinAzimuth is the cosine between
// the gas velocity and the ray's propagation direction, so gas moving toward
// the observer (against the ray) is boosted.
func DopplerFactor(v, sinAzimuth float64) float64 {
	return 1.0 / math.Max(1.0+v*sinAzimuth, 1e-3)
}

// EdgeFade softens the annulus edges over a width of rs, shrunk for narrow disks
func EdgeFade(r, inner, outer, rs float64) float64 {
	width := math.Min(rs, 0.5*(outer-inner))
	if width <= 0 {
		return 0
	}
	return smoothstep(inner, inner+width, r) * (1.0 - smoothstep(outer-width, outer, r))
}

func smoothstep(edge0, edge1, x float64) float64 {
	t := math.Max(0, math.Min(1, (x-edge0)/(edge1-edge0)))
	return t * t * (3 - 2*t)
}
