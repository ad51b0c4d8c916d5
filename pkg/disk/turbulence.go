package disk

import "math"

const noiseOctaves = 4

// Turbulence returns the multiplicative detail factor for a disk point at radius r
// and azimuth (radians, about +Y). The pattern rotates with the local Keplerian
// angular velocity, so inner rings shear past outer ones as time advances.
func Turbulence(r, azimuth, rs, time float64) float64 {
	if r <= 0 || rs <= 0 {
		return 1
	}

	omega := math.Sqrt(rs/2) / math.Pow(r, 1.5)
	a := azimuth - omega*time
	scaled := r / rs

	rings := 0.5 + 0.5*math.Sin(scaled*6.0)
	spiral := 0.5 + 0.5*math.Sin(3*a+4*math.Log(scaled))

	// Sample the noise in the co-rotating Cartesian frame; polar coordinates would seam at ±π
	s, c := math.Sincos(a)
	n := fbm(scaled*c*0.8, scaled*s*0.8)

	structure := 0.55 + 0.25*rings + 0.2*spiral
	return structure * (0.6 + 0.8*n)
}

// fbm sums octaves of value noise, normalized to [0, 1]
func fbm(x, y float64) float64 {
	sum, amp, norm := 0.0, 0.5, 0.0
	for i := 0; i < noiseOctaves; i++ {
		sum += amp * valueNoise(x, y)
		norm += amp
		x, y = x*2.0, y*2.0
		amp *= 0.5
	}
	return sum / norm
}

// valueNoise is smoothly interpolated lattice noise in [0, 1]
func valueNoise(x, y float64) float64 {
	x0, y0 := math.Floor(x), math.Floor(y)
	fx, fy := x-x0, y-y0
	ix, iy := int64(x0), int64(y0)

	ux := fx * fx * (3 - 2*fx)
	uy := fy * fy * (3 - 2*fy)

	a := latticeHash(ix, iy)
	b := latticeHash(ix+1, iy)
	c := latticeHash(ix, iy+1)
	d := latticeHash(ix+1, iy+1)

	top := a + (b-a)*ux
	bottom := c + (d-c)*ux
	return top + (bottom-top)*uy
}

// latticeHash maps an integer lattice point to [0, 1)
func latticeHash(x, y int64) float64 {
	h := uint64(x)*0x9E3779B97F4A7C15 ^ uint64(y)*0xC2B2AE3D27D4EB4F
	h ^= h >> 31
	h *= 0xBF58476D1CE4E5B9
	h ^= h >> 29
	return float64(h>>11) / float64(1<<53)
}
